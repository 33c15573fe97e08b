package khalti

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

type customerInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type initiateRequest struct {
	ReturnURL         string        `json:"return_url"`
	WebsiteURL        string        `json:"website_url"`
	Amount            int64         `json:"amount"`
	PurchaseOrderID   string        `json:"purchase_order_id"`
	PurchaseOrderName string        `json:"purchase_order_name"`
	CustomerInfo      *customerInfo `json:"customer_info,omitempty"`
}

type initiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at"`
	ExpiresIn  int    `json:"expires_in"`
}

type lookupRequest struct {
	Pidx string `json:"pidx"`
}

type lookupResponse struct {
	Pidx          string `json:"pidx"`
	TotalAmount   int64  `json:"total_amount"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Fee           int64  `json:"fee"`
	Refunded      bool   `json:"refunded"`
}

type refundRequest struct {
	Amount int64  `json:"amount,omitempty"`
	Mobile string `json:"mobile,omitempty"`
}

type refundResponse struct {
	Detail        string `json:"detail"`
	TransactionID string `json:"transaction_id"`
	Refunded      bool   `json:"refunded"`
}

type connectorMetadata struct {
	TransactionID string `json:"transaction_id,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

func buildInitiateRequest(rd *domain.AuthorizeRouterData) (initiateRequest, error) {
	if !strings.EqualFold(rd.Request.Currency, "NPR") {
		return initiateRequest{}, fmt.Errorf("%w: khalti only accepts NPR, got %q", domain.ErrInvalidCurrency, rd.Request.Currency)
	}
	if rd.ReturnURL == "" {
		return initiateRequest{}, domain.MissingField("return_url")
	}
	amount, err := domain.MinorUnitForConnector{}.Convert(rd.Request.Amount, rd.Request.Currency)
	if err != nil {
		return initiateRequest{}, err
	}

	orderID := rd.ConnectorRequestReferenceID
	if orderID == "" {
		orderID = rd.AttemptID
	}
	orderName := rd.Description
	if orderName == "" {
		orderName = rd.PaymentID
	}

	req := initiateRequest{
		ReturnURL:         rd.ReturnURL,
		WebsiteURL:        websiteURL(rd.ReturnURL),
		Amount:            amount,
		PurchaseOrderID:   orderID,
		PurchaseOrderName: orderName,
	}
	info := customerInfo{Name: rd.Request.CustomerName, Email: rd.Request.Email}
	if rd.Address != nil {
		info.Phone = rd.Address.Phone
		if info.Name == "" {
			info.Name = rd.Address.FullName()
		}
	}
	if info != (customerInfo{}) {
		req.CustomerInfo = &info
	}
	return req, nil
}

func websiteURL(returnURL string) string {
	u, err := url.Parse(returnURL)
	if err != nil || u.Host == "" {
		return returnURL
	}
	return u.Scheme + "://" + u.Host
}

func attemptStatus(status string) domain.AttemptStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "refunded", "partially refunded":
		return domain.AttemptCharged
	case "initiated":
		return domain.AttemptAuthenticationPending
	case "expired", "user canceled":
		return domain.AttemptFailure
	default:
		return domain.AttemptPending
	}
}

func applyLookup(rd *domain.PSyncRouterData, body lookupResponse, httpStatus int) *domain.PSyncRouterData {
	out := rd.Clone()
	out.Status = attemptStatus(body.Status)

	if out.Status == domain.AttemptFailure {
		status := domain.AttemptFailure
		out.Fail(domain.ErrorResponse{
			StatusCode:             httpStatus,
			Code:                   strings.ToUpper(strings.ReplaceAll(body.Status, " ", "_")),
			Message:                "khalti payment " + strings.ToLower(body.Status),
			AttemptStatus:          &status,
			ConnectorTransactionID: body.Pidx,
		})
		return out
	}

	if out.Status == domain.AttemptCharged && body.TotalAmount > 0 {
		captured := domain.MinorUnit(body.TotalAmount)
		out.AmountCaptured = &captured
	}
	resp := domain.PaymentsResponseData{
		ResourceID:                   firstNonEmpty(body.Pidx, rd.Request.ConnectorTransactionID),
		ConnectorResponseReferenceID: body.TransactionID,
	}
	if body.TransactionID != "" {
		resp.ConnectorMetadata, _ = json.Marshal(connectorMetadata{TransactionID: body.TransactionID})
	}
	out.Succeed(resp)
	return out
}

func transactionID(meta json.RawMessage) string {
	if len(meta) == 0 {
		return ""
	}
	var m connectorMetadata
	if err := json.Unmarshal(meta, &m); err != nil {
		return ""
	}
	return m.TransactionID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
