package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	"gorm.io/datatypes"
)

type IntentStatus string

const (
	IntentRequiresPaymentMethod  IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation   IntentStatus = "requires_confirmation"
	IntentRequiresCustomerAction IntentStatus = "requires_customer_action"
	IntentRequiresCapture        IntentStatus = "requires_capture"
	IntentProcessing             IntentStatus = "processing"
	IntentSucceeded              IntentStatus = "succeeded"
	IntentPartiallyCaptured      IntentStatus = "partially_captured"
	IntentFailed                 IntentStatus = "failed"
	IntentCancelled              IntentStatus = "cancelled"
)

// IsTerminal reports whether no further payment operation can move the intent, refunds aside.
func (s IntentStatus) IsTerminal() bool {
	switch s {
	case IntentSucceeded, IntentPartiallyCaptured, IntentFailed, IntentCancelled:
		return true
	}
	return false
}

// PaymentIntent is the merchant facing payment. Each connector try is a PaymentAttempt;
// ActiveAttemptID points at the one that decides the intent status.
type PaymentIntent struct {
	ID              snowflake.ID                  `json:"id" gorm:"primaryKey"`
	MerchantID      snowflake.ID                  `json:"merchant_id" gorm:"not null;index;uniqueIndex:ux_payment_intents_idempotency,priority:1"`
	Status          IntentStatus                  `json:"status" gorm:"type:varchar(32);not null;index"`
	Amount          int64                         `json:"amount" gorm:"not null"`
	Currency        string                        `json:"currency" gorm:"type:varchar(3);not null"`
	AmountCaptured  int64                         `json:"amount_captured" gorm:"not null;default:0"`
	CustomerID      string                        `json:"customer_id,omitempty" gorm:"type:varchar(255)"`
	Email           string                        `json:"email,omitempty" gorm:"type:varchar(255)"`
	Description     string                        `json:"description,omitempty" gorm:"type:text"`
	ReturnURL       string                        `json:"return_url,omitempty" gorm:"type:text"`
	CaptureMethod   connectordomain.CaptureMethod `json:"capture_method" gorm:"type:varchar(16);not null"`
	IdempotencyKey  *string                       `json:"-" gorm:"type:varchar(255);uniqueIndex:ux_payment_intents_idempotency,priority:2"`
	ActiveAttemptID *snowflake.ID                 `json:"active_attempt_id,omitempty"`
	BillingAddress  datatypes.JSON                `json:"billing_address,omitempty" gorm:"type:jsonb"`
	Metadata        datatypes.JSON                `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt       time.Time                     `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time                     `json:"updated_at" gorm:"not null"`
}

func (PaymentIntent) TableName() string { return "payment_intents" }

// Capturable is the amount a capture may still take.
func (p PaymentIntent) Capturable() int64 {
	if p.AmountCaptured >= p.Amount {
		return 0
	}
	return p.Amount - p.AmountCaptured
}

type PaymentAttempt struct {
	ID                          snowflake.ID                       `json:"id" gorm:"primaryKey"`
	PaymentID                   snowflake.ID                       `json:"payment_id" gorm:"not null;index"`
	MerchantID                  snowflake.ID                       `json:"merchant_id" gorm:"not null;index"`
	Connector                   string                             `json:"connector" gorm:"type:varchar(64);not null"`
	MerchantConnectorID         snowflake.ID                       `json:"merchant_connector_id" gorm:"not null"`
	Status                      connectordomain.AttemptStatus      `json:"status" gorm:"type:varchar(32);not null;index:idx_payment_attempts_status_updated,priority:1"`
	Amount                      int64                              `json:"amount" gorm:"not null"`
	Currency                    string                             `json:"currency" gorm:"type:varchar(3);not null"`
	PaymentMethod               connectordomain.PaymentMethodType  `json:"payment_method" gorm:"type:varchar(32);not null"`
	AuthenticationType          connectordomain.AuthenticationType `json:"authentication_type" gorm:"type:varchar(16);not null"`
	ConnectorTransactionID      string                             `json:"connector_transaction_id,omitempty" gorm:"type:varchar(255);index"`
	ConnectorRequestReferenceID string                             `json:"connector_request_reference_id" gorm:"type:varchar(64);not null"`
	RedirectURL                 string                             `json:"redirect_url,omitempty" gorm:"type:text"`
	ErrorCode                   string                             `json:"error_code,omitempty" gorm:"type:varchar(255)"`
	ErrorMessage                string                             `json:"error_message,omitempty" gorm:"type:text"`
	ErrorReason                 string                             `json:"error_reason,omitempty" gorm:"type:text"`
	ConnectorMetadata           datatypes.JSON                     `json:"connector_metadata,omitempty" gorm:"type:jsonb"`
	ConnectorResponse           datatypes.JSON                     `json:"-" gorm:"type:jsonb"`
	CreatedAt                   time.Time                          `json:"created_at" gorm:"not null"`
	UpdatedAt                   time.Time                          `json:"updated_at" gorm:"not null;index:idx_payment_attempts_status_updated,priority:2"`
}

func (PaymentAttempt) TableName() string { return "payment_attempts" }

type Refund struct {
	ID                  snowflake.ID                 `json:"id" gorm:"primaryKey"`
	PaymentID           snowflake.ID                 `json:"payment_id" gorm:"not null;index"`
	AttemptID           snowflake.ID                 `json:"attempt_id" gorm:"not null"`
	MerchantID          snowflake.ID                 `json:"merchant_id" gorm:"not null;index"`
	Connector           string                       `json:"connector" gorm:"type:varchar(64);not null"`
	MerchantConnectorID snowflake.ID                 `json:"merchant_connector_id" gorm:"not null"`
	Amount              int64                        `json:"amount" gorm:"not null"`
	Currency            string                       `json:"currency" gorm:"type:varchar(3);not null"`
	Status              connectordomain.RefundStatus `json:"status" gorm:"type:varchar(32);not null;index"`
	ConnectorRefundID   string                       `json:"connector_refund_id,omitempty" gorm:"type:varchar(255)"`
	Reason              string                       `json:"reason,omitempty" gorm:"type:text"`
	ErrorCode           string                       `json:"error_code,omitempty" gorm:"type:varchar(255)"`
	ErrorMessage        string                       `json:"error_message,omitempty" gorm:"type:text"`
	ConnectorResponse   datatypes.JSON               `json:"-" gorm:"type:jsonb"`
	CreatedAt           time.Time                    `json:"created_at" gorm:"not null"`
	UpdatedAt           time.Time                    `json:"updated_at" gorm:"not null"`
}

func (Refund) TableName() string { return "refunds" }

// Payment is an intent with its active attempt.
type Payment struct {
	Intent  PaymentIntent   `json:"intent"`
	Attempt *PaymentAttempt `json:"attempt,omitempty"`
}
