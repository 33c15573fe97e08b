package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type PaymentMethodType string

const (
	PaymentMethodCard         PaymentMethodType = "card"
	PaymentMethodWallet       PaymentMethodType = "wallet"
	PaymentMethodBankRedirect PaymentMethodType = "bank_redirect"
)

type AuthenticationType string

const (
	AuthThreeDS   AuthenticationType = "three_ds"
	AuthNoThreeDS AuthenticationType = "no_three_ds"
)

type CaptureMethod string

const (
	CaptureAutomatic CaptureMethod = "automatic"
	CaptureManual    CaptureMethod = "manual"
)

type Card struct {
	Number     string `json:"number"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CVC        string `json:"cvc"`
	HolderName string `json:"holder_name,omitempty"`
}

// Last4 returns the trailing digits of the card number.
func (c Card) Last4() string {
	n := strings.ReplaceAll(c.Number, " ", "")
	if len(n) <= 4 {
		return n
	}
	return n[len(n)-4:]
}

// ExpYear4 returns the expiry year in four digit form.
func (c Card) ExpYear4() string {
	y := strings.TrimSpace(c.ExpYear)
	if len(y) == 2 {
		return "20" + y
	}
	return y
}

// String masks everything but the last four digits so cards never reach logs.
func (c Card) String() string {
	return fmt.Sprintf("card(****%s %s/%s)", c.Last4(), c.ExpMonth, c.ExpYear4())
}

func (c Card) GoString() string { return c.String() }

type Wallet struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

type BankRedirect struct {
	Type    string `json:"type"`
	Country string `json:"country,omitempty"`
}

type PaymentMethodData struct {
	Type         PaymentMethodType `json:"type"`
	Card         *Card             `json:"card,omitempty"`
	Wallet       *Wallet           `json:"wallet,omitempty"`
	BankRedirect *BankRedirect     `json:"bank_redirect,omitempty"`
}

// Validate checks that the detail matching Type is present.
func (p PaymentMethodData) Validate() error {
	switch p.Type {
	case PaymentMethodCard:
		if p.Card == nil {
			return MissingField("payment_method_data.card")
		}
		if strings.TrimSpace(p.Card.Number) == "" {
			return MissingField("payment_method_data.card.number")
		}
	case PaymentMethodWallet:
		if p.Wallet == nil {
			return MissingField("payment_method_data.wallet")
		}
	case PaymentMethodBankRedirect:
		if p.BankRedirect == nil {
			return MissingField("payment_method_data.bank_redirect")
		}
	default:
		return MissingField("payment_method_data.type")
	}
	return nil
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (a *Address) FullName() string {
	if a == nil {
		return ""
	}
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

type PaymentsAuthorizeData struct {
	Amount              MinorUnit
	Currency            string
	PaymentMethodData   PaymentMethodData
	CaptureMethod       CaptureMethod
	Email               string
	CustomerName        string
	StatementDescriptor string
	Metadata            map[string]string
}

// IsAutoCapture reports whether the connector should capture immediately.
func (d PaymentsAuthorizeData) IsAutoCapture() bool {
	return d.CaptureMethod != CaptureManual
}

type PaymentsCaptureData struct {
	AmountToCapture        MinorUnit
	PaymentAmount          MinorUnit
	Currency               string
	ConnectorTransactionID string
}

type PaymentsCancelData struct {
	Amount                 MinorUnit
	Currency               string
	ConnectorTransactionID string
	CancellationReason     string
}

type PaymentsSyncData struct {
	Amount                 MinorUnit
	Currency               string
	ConnectorTransactionID string
	CaptureMethod          CaptureMethod
}

type RefundsData struct {
	RefundID               string
	ConnectorTransactionID string
	ConnectorRefundID      string
	Currency               string
	PaymentAmount          MinorUnit
	RefundAmount           MinorUnit
	Reason                 string
}

type RedirectForm struct {
	Endpoint   string            `json:"endpoint"`
	Method     string            `json:"method"`
	FormFields map[string]string `json:"form_fields,omitempty"`
}

type PaymentsResponseData struct {
	ResourceID                   string
	Redirection                  *RedirectForm
	ConnectorMetadata            json.RawMessage
	NetworkTxnID                 string
	ConnectorResponseReferenceID string
}

type RefundsResponseData struct {
	ConnectorRefundID string
	RefundStatus      RefundStatus
}
