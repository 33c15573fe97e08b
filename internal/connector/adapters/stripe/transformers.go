package stripe

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

const apiVersion = "2024-06-20"

var cancellationReasons = map[string]string{
	"duplicate":             "duplicate",
	"fraudulent":            "fraudulent",
	"requested_by_customer": "requested_by_customer",
	"abandoned":             "abandoned",
}

var refundReasons = map[string]string{
	"duplicate":             "duplicate",
	"fraudulent":            "fraudulent",
	"requested_by_customer": "requested_by_customer",
}

type errorResponse struct {
	Error struct {
		Type          string `json:"type"`
		Code          string `json:"code"`
		DeclineCode   string `json:"decline_code"`
		Message       string `json:"message"`
		PaymentIntent *struct {
			ID string `json:"id"`
		} `json:"payment_intent"`
	} `json:"error"`
}

type paymentIntent struct {
	ID               string            `json:"id"`
	Object           string            `json:"object"`
	Status           string            `json:"status"`
	Amount           int64             `json:"amount"`
	AmountReceived   int64             `json:"amount_received"`
	AmountCapturable int64             `json:"amount_capturable"`
	Currency         string            `json:"currency"`
	LatestCharge     string            `json:"latest_charge"`
	Metadata         map[string]string `json:"metadata"`
	NextAction       *struct {
		Type          string `json:"type"`
		RedirectToURL *struct {
			URL       string `json:"url"`
			ReturnURL string `json:"return_url"`
		} `json:"redirect_to_url"`
	} `json:"next_action"`
	LastPaymentError *struct {
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"last_payment_error"`
}

type refundObject struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	PaymentIntent string `json:"payment_intent"`
	FailureReason string `json:"failure_reason"`
}

type connectorMetadata struct {
	LatestCharge string `json:"latest_charge,omitempty"`
}

func buildPaymentIntentForm(rd *domain.AuthorizeRouterData) (url.Values, error) {
	req := rd.Request
	amount, err := domain.StringMinorUnitForConnector{}.Convert(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("amount", amount)
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("confirm", "true")
	if req.IsAutoCapture() {
		form.Set("capture_method", "automatic")
	} else {
		form.Set("capture_method", "manual")
	}
	if rd.Description != "" {
		form.Set("description", rd.Description)
	}
	if rd.ReturnURL != "" {
		form.Set("return_url", rd.ReturnURL)
	}
	if req.Email != "" {
		form.Set("receipt_email", req.Email)
	}
	if req.StatementDescriptor != "" {
		form.Set("statement_descriptor_suffix", req.StatementDescriptor)
	}

	form.Set("metadata[order_id]", rd.PaymentID)
	keys := make([]string, 0, len(req.Metadata))
	for k := range req.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		form.Set("metadata["+k+"]", req.Metadata[k])
	}

	if err := setPaymentMethod(form, rd); err != nil {
		return nil, err
	}
	return form, nil
}

func setPaymentMethod(form url.Values, rd *domain.AuthorizeRouterData) error {
	pm := rd.Request.PaymentMethodData
	switch pm.Type {
	case domain.PaymentMethodCard:
		if pm.Card == nil {
			return domain.MissingField("payment_method_data.card")
		}
		card := pm.Card
		if strings.TrimSpace(card.Number) == "" {
			return domain.MissingField("payment_method_data.card.number")
		}
		form.Set("payment_method_data[type]", "card")
		form.Set("payment_method_data[card][number]", strings.ReplaceAll(card.Number, " ", ""))
		form.Set("payment_method_data[card][exp_month]", card.ExpMonth)
		form.Set("payment_method_data[card][exp_year]", card.ExpYear4())
		if card.CVC != "" {
			form.Set("payment_method_data[card][cvc]", card.CVC)
		}
		if name := firstNonEmpty(card.HolderName, rd.Address.FullName()); name != "" {
			form.Set("payment_method_data[billing_details][name]", name)
		}
		form.Set("payment_method_types[]", "card")
		if rd.AuthType == domain.AuthThreeDS {
			form.Set("payment_method_options[card][request_three_d_secure]", "any")
		}
	case domain.PaymentMethodWallet:
		if pm.Wallet == nil || pm.Wallet.Token == "" {
			return domain.MissingField("payment_method_data.wallet.token")
		}
		form.Set("payment_method", pm.Wallet.Token)
	default:
		return fmt.Errorf("%w: stripe does not accept %s", domain.ErrPaymentMethodNotSupported, pm.Type)
	}

	if a := rd.Address; a != nil && a.Country != "" {
		form.Set("payment_method_data[billing_details][address][line1]", a.Line1)
		form.Set("payment_method_data[billing_details][address][city]", a.City)
		form.Set("payment_method_data[billing_details][address][postal_code]", a.PostalCode)
		form.Set("payment_method_data[billing_details][address][country]", a.Country)
	}
	return nil
}

func attemptStatus(status string, lastError bool) domain.AttemptStatus {
	switch status {
	case "succeeded":
		return domain.AttemptCharged
	case "requires_capture":
		return domain.AttemptAuthorized
	case "requires_action":
		return domain.AttemptAuthenticationPending
	case "processing", "requires_confirmation":
		return domain.AttemptPending
	case "canceled":
		return domain.AttemptVoided
	case "requires_payment_method":
		if lastError {
			return domain.AttemptFailure
		}
		return domain.AttemptPending
	default:
		return domain.AttemptPending
	}
}

func refundStatus(status string) domain.RefundStatus {
	switch status {
	case "succeeded":
		return domain.RefundSuccess
	case "failed", "canceled":
		return domain.RefundFailure
	case "requires_action":
		return domain.RefundManualReview
	default:
		return domain.RefundPending
	}
}

func applyPaymentIntent[F domain.Flow, Req any](rd *domain.RouterData[F, Req, domain.PaymentsResponseData], pi paymentIntent, httpStatus int) *domain.RouterData[F, Req, domain.PaymentsResponseData] {
	out := rd.Clone()
	out.Status = attemptStatus(pi.Status, pi.LastPaymentError != nil)

	if pi.AmountReceived > 0 {
		captured := domain.MinorUnit(pi.AmountReceived)
		out.AmountCaptured = &captured
	}

	if out.Status == domain.AttemptFailure && pi.LastPaymentError != nil {
		status := domain.AttemptFailure
		out.Fail(domain.ErrorResponse{
			StatusCode:             httpStatus,
			Code:                   pi.LastPaymentError.Code,
			Message:                pi.LastPaymentError.Message,
			Reason:                 pi.LastPaymentError.DeclineCode,
			AttemptStatus:          &status,
			ConnectorTransactionID: pi.ID,
		})
		return out
	}

	resp := domain.PaymentsResponseData{
		ResourceID:                   pi.ID,
		ConnectorResponseReferenceID: pi.ID,
	}
	if pi.LatestCharge != "" {
		meta, _ := json.Marshal(connectorMetadata{LatestCharge: pi.LatestCharge})
		resp.ConnectorMetadata = meta
	}
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil && pi.NextAction.RedirectToURL.URL != "" {
		resp.Redirection = &domain.RedirectForm{Endpoint: pi.NextAction.RedirectToURL.URL, Method: "GET"}
	}
	out.Succeed(resp)
	return out
}

func applyRefund[F domain.Flow](rd *domain.RouterData[F, domain.RefundsData, domain.RefundsResponseData], body refundObject) *domain.RouterData[F, domain.RefundsData, domain.RefundsResponseData] {
	out := rd.Clone()
	status := refundStatus(body.Status)
	if status == domain.RefundFailure && body.FailureReason != "" {
		out.Err = &domain.ErrorResponse{
			Code:                   body.FailureReason,
			Message:                "refund " + body.Status,
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
