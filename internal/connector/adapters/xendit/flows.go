package xendit

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

type authorize struct {
	domain.Base[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData]
}

func (authorize) HTTPMethod() string { return http.MethodPost }

func (i authorize) GetURL(_ *domain.AuthorizeRouterData, cfg domain.Endpoints) (string, error) {
	return endpoint(i.Connector, cfg, "v2/invoices")
}

func (authorize) GetRequestBody(rd *domain.AuthorizeRouterData, _ domain.Endpoints) (domain.RequestContent, error) {
	req, err := buildInvoiceRequest(rd)
	if err != nil {
		return nil, err
	}
	return domain.JSONContent{Value: req}, nil
}

func (authorize) HandleResponse(rd *domain.AuthorizeRouterData, res domain.Response) (*domain.AuthorizeRouterData, error) {
	var inv invoice
	if err := res.Decode(&inv); err != nil {
		return nil, err
	}
	return applyInvoice(rd, inv, rd.Request.Currency, res.StatusCode), nil
}

// void expires the hosted invoice so it can no longer be paid.
type void struct {
	domain.Base[domain.Void, domain.PaymentsCancelData, domain.PaymentsResponseData]
}

func (void) HTTPMethod() string { return http.MethodPost }

func (i void) GetURL(rd *domain.VoidRouterData, cfg domain.Endpoints) (string, error) {
	id := rd.Request.ConnectorTransactionID
	if id == "" {
		return "", domain.MissingField("connector_transaction_id")
	}
	return endpoint(i.Connector, cfg, "invoices/"+url.PathEscape(id)+"/expire!")
}

func (void) GetRequestBody(*domain.VoidRouterData, domain.Endpoints) (domain.RequestContent, error) {
	return domain.JSONContent{Value: struct{}{}}, nil
}

func (void) HandleResponse(rd *domain.VoidRouterData, res domain.Response) (*domain.VoidRouterData, error) {
	var inv invoice
	if err := res.Decode(&inv); err != nil {
		return nil, err
	}
	out := rd.Clone()
	if strings.EqualFold(inv.Status, "EXPIRED") {
		out.Status = domain.AttemptVoided
	} else {
		out.Status = attemptStatus(inv.Status)
	}
	out.Succeed(domain.PaymentsResponseData{ResourceID: inv.ID, ConnectorResponseReferenceID: inv.ExternalID})
	return out, nil
}

type psync struct {
	domain.Base[domain.PSync, domain.PaymentsSyncData, domain.PaymentsResponseData]
}

func (psync) HTTPMethod() string { return http.MethodGet }

func (i psync) GetURL(rd *domain.PSyncRouterData, cfg domain.Endpoints) (string, error) {
	id := rd.Request.ConnectorTransactionID
	if id == "" {
		return "", domain.MissingField("connector_transaction_id")
	}
	return endpoint(i.Connector, cfg, "v2/invoices/"+url.PathEscape(id))
}

func (psync) GetRequestBody(*domain.PSyncRouterData, domain.Endpoints) (domain.RequestContent, error) {
	return nil, nil
}

func (psync) HandleResponse(rd *domain.PSyncRouterData, res domain.Response) (*domain.PSyncRouterData, error) {
	var inv invoice
	if err := res.Decode(&inv); err != nil {
		return nil, err
	}
	return applyInvoice(rd, inv, rd.Request.Currency, res.StatusCode), nil
}

type refund struct {
	domain.Base[domain.Execute, domain.RefundsData, domain.RefundsResponseData]
}

func (refund) HTTPMethod() string { return http.MethodPost }

func (i refund) GetURL(_ *domain.RefundRouterData, cfg domain.Endpoints) (string, error) {
	return endpoint(i.Connector, cfg, "refunds")
}

func (i refund) GetHeaders(rd *domain.RefundRouterData, cfg domain.Endpoints) ([]domain.Header, error) {
	headers, err := i.Base.GetHeaders(rd, cfg)
	if err != nil {
		return nil, err
	}
	if rd.Request.RefundID != "" {
		headers = append(headers, domain.Header{Name: "Idempotency-key", Value: rd.Request.RefundID})
	}
	return headers, nil
}

func (refund) GetRequestBody(rd *domain.RefundRouterData, _ domain.Endpoints) (domain.RequestContent, error) {
	if rd.Request.ConnectorTransactionID == "" {
		return nil, domain.MissingField("connector_transaction_id")
	}
	amount, err := domain.FloatMajorUnitForConnector{}.Convert(rd.Request.RefundAmount, rd.Request.Currency)
	if err != nil {
		return nil, err
	}
	reason, ok := refundReasons[rd.Request.Reason]
	if !ok {
		reason = "OTHERS"
	}
	return domain.JSONContent{Value: refundRequest{
		InvoiceID:   rd.Request.ConnectorTransactionID,
		ReferenceID: rd.Request.RefundID,
		Amount:      amount,
		Currency:    strings.ToUpper(rd.Request.Currency),
		Reason:      reason,
	}}, nil
}

func (refund) HandleResponse(rd *domain.RefundRouterData, res domain.Response) (*domain.RefundRouterData, error) {
	var body refundResponse
	if err := res.Decode(&body); err != nil {
		return nil, err
	}
	return applyRefund(rd, body), nil
}

type rsync struct {
	domain.Base[domain.RSync, domain.RefundsData, domain.RefundsResponseData]
}

func (rsync) HTTPMethod() string { return http.MethodGet }

func (i rsync) GetURL(rd *domain.RSyncRouterData, cfg domain.Endpoints) (string, error) {
	id := rd.Request.ConnectorRefundID
	if id == "" {
		return "", domain.MissingField("connector_refund_id")
	}
	return endpoint(i.Connector, cfg, "refunds/"+url.PathEscape(id))
}

func (rsync) GetRequestBody(*domain.RSyncRouterData, domain.Endpoints) (domain.RequestContent, error) {
	return nil, nil
}

func (rsync) HandleResponse(rd *domain.RSyncRouterData, res domain.Response) (*domain.RSyncRouterData, error) {
	var body refundResponse
	if err := res.Decode(&body); err != nil {
		return nil, err
	}
	return applyRefund(rd, body), nil
}
