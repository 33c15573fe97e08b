package xendit

import (
	"strings"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

type customer struct {
	GivenNames   string `json:"given_names,omitempty"`
	Email        string `json:"email,omitempty"`
	MobileNumber string `json:"mobile_number,omitempty"`
}

type invoiceRequest struct {
	ExternalID         string            `json:"external_id"`
	Amount             float64           `json:"amount"`
	Currency           string            `json:"currency"`
	Description        string            `json:"description,omitempty"`
	PayerEmail         string            `json:"payer_email,omitempty"`
	SuccessRedirectURL string            `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string            `json:"failure_redirect_url,omitempty"`
	PaymentMethods     []string          `json:"payment_methods,omitempty"`
	Customer           *customer         `json:"customer,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

type invoice struct {
	ID            string  `json:"id"`
	ExternalID    string  `json:"external_id"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	PaidAmount    float64 `json:"paid_amount"`
	Currency      string  `json:"currency"`
	InvoiceURL    string  `json:"invoice_url"`
	PaymentMethod string  `json:"payment_method"`
	PaymentID     string  `json:"payment_id"`
}

type refundRequest struct {
	InvoiceID   string  `json:"invoice_id"`
	ReferenceID string  `json:"reference_id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Reason      string  `json:"reason"`
}

type refundResponse struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	FailureCode   string  `json:"failure_code"`
	ReferenceID   string  `json:"reference_id"`
	PaymentID     string  `json:"payment_id"`
	InvoiceID     string  `json:"invoice_id"`
	Currency      string  `json:"currency"`
	Reason        string  `json:"reason"`
	ChannelCode   string  `json:"channel_code"`
	RefundFeeRate float64 `json:"refund_fee_rate"`
}

var refundReasons = map[string]string{
	"duplicate":             "DUPLICATE",
	"fraudulent":            "FRAUDULENT",
	"requested_by_customer": "REQUESTED_BY_CUSTOMER",
	"cancellation":          "CANCELLATION",
}

func buildInvoiceRequest(rd *domain.AuthorizeRouterData) (invoiceRequest, error) {
	if rd.ReturnURL == "" {
		return invoiceRequest{}, domain.MissingField("return_url")
	}
	amount, err := domain.FloatMajorUnitForConnector{}.Convert(rd.Request.Amount, rd.Request.Currency)
	if err != nil {
		return invoiceRequest{}, err
	}
	req := invoiceRequest{
		ExternalID:         rd.ConnectorRequestReferenceID,
		Amount:             amount,
		Currency:           strings.ToUpper(rd.Request.Currency),
		Description:        rd.Description,
		PayerEmail:         rd.Request.Email,
		SuccessRedirectURL: rd.ReturnURL,
		FailureRedirectURL: rd.ReturnURL,
		Metadata:           rd.Request.Metadata,
	}
	if req.ExternalID == "" {
		req.ExternalID = rd.AttemptID
	}
	if name := firstNonEmpty(rd.Request.CustomerName, rd.Address.FullName()); name != "" || rd.Request.Email != "" {
		req.Customer = &customer{GivenNames: name, Email: rd.Request.Email}
		if rd.Address != nil {
			req.Customer.MobileNumber = rd.Address.Phone
		}
	}
	if methods := paymentMethods(rd.Request.PaymentMethodData); len(methods) > 0 {
		req.PaymentMethods = methods
	}
	return req, nil
}

func paymentMethods(pm domain.PaymentMethodData) []string {
	switch pm.Type {
	case domain.PaymentMethodCard:
		return []string{"CREDIT_CARD"}
	case domain.PaymentMethodWallet:
		if pm.Wallet != nil && pm.Wallet.Type != "" {
			return []string{strings.ToUpper(pm.Wallet.Type)}
		}
	case domain.PaymentMethodBankRedirect:
		if pm.BankRedirect != nil && pm.BankRedirect.Type != "" {
			return []string{strings.ToUpper(pm.BankRedirect.Type)}
		}
	}
	return nil
}

func attemptStatus(status string) domain.AttemptStatus {
	switch strings.ToUpper(status) {
	case "PAID", "SETTLED":
		return domain.AttemptCharged
	case "EXPIRED":
		return domain.AttemptFailure
	default:
		return domain.AttemptAuthenticationPending
	}
}

func refundStatus(status string) domain.RefundStatus {
	switch strings.ToUpper(status) {
	case "SUCCEEDED":
		return domain.RefundSuccess
	case "FAILED", "CANCELLED":
		return domain.RefundFailure
	default:
		return domain.RefundPending
	}
}

func applyInvoice[F domain.Flow, Req any](rd *domain.RouterData[F, Req, domain.PaymentsResponseData], inv invoice, currency string, httpStatus int) *domain.RouterData[F, Req, domain.PaymentsResponseData] {
	out := rd.Clone()
	out.Status = attemptStatus(inv.Status)

	if out.Status == domain.AttemptFailure {
		status := domain.AttemptFailure
		out.Fail(domain.ErrorResponse{
			StatusCode:             httpStatus,
			Code:                   "INVOICE_EXPIRED",
			Message:                "invoice expired before payment",
			AttemptStatus:          &status,
			ConnectorTransactionID: inv.ID,
		})
		return out
	}

	if out.Status == domain.AttemptCharged && inv.PaidAmount > 0 {
		if paid, err := (domain.FloatMajorUnitForConnector{}).ConvertBack(inv.PaidAmount, firstNonEmpty(inv.Currency, currency)); err == nil {
			out.AmountCaptured = &paid
		}
	}

	resp := domain.PaymentsResponseData{
		ResourceID:                   inv.ID,
		ConnectorResponseReferenceID: inv.ExternalID,
		NetworkTxnID:                 inv.PaymentID,
	}
	if out.Status == domain.AttemptAuthenticationPending && inv.InvoiceURL != "" {
		resp.Redirection = &domain.RedirectForm{Endpoint: inv.InvoiceURL, Method: "GET"}
	}
	out.Succeed(resp)
	return out
}

func applyRefund[F domain.Flow](rd *domain.RouterData[F, domain.RefundsData, domain.RefundsResponseData], body refundResponse) *domain.RouterData[F, domain.RefundsData, domain.RefundsResponseData] {
	out := rd.Clone()
	status := refundStatus(body.Status)
	if status == domain.RefundFailure {
		out.Err = &domain.ErrorResponse{
			Code:                   firstNonEmpty(body.FailureCode, domain.NoErrorCode),
			Message:                "refund " + strings.ToLower(body.Status),
			ConnectorTransactionID: body.ID,
		}
	}
	out.Response = domain.RefundsResponseData{ConnectorRefundID: body.ID, RefundStatus: status}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
