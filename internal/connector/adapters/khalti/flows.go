package khalti

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

type authorize struct {
	domain.Base[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData]
}

func (authorize) HTTPMethod() string { return http.MethodPost }

func (i authorize) GetURL(_ *domain.AuthorizeRouterData, cfg domain.Endpoints) (string, error) {
	return endpoint(i.Connector, cfg, "epayment/initiate/")
}

func (authorize) GetRequestBody(rd *domain.AuthorizeRouterData, _ domain.Endpoints) (domain.RequestContent, error) {
	req, err := buildInitiateRequest(rd)
	if err != nil {
		return nil, err
	}
	return domain.JSONContent{Value: req}, nil
}

func (authorize) HandleResponse(rd *domain.AuthorizeRouterData, res domain.Response) (*domain.AuthorizeRouterData, error) {
	var body initiateResponse
	if err := res.Decode(&body); err != nil {
		return nil, err
	}
	if body.Pidx == "" {
		return nil, domain.MissingField("pidx")
	}
	out := rd.Clone()
	out.Status = domain.AttemptAuthenticationPending
	meta, _ := json.Marshal(connectorMetadata{ExpiresAt: body.ExpiresAt})
	out.Succeed(domain.PaymentsResponseData{
		ResourceID:                   body.Pidx,
		ConnectorResponseReferenceID: body.Pidx,
		ConnectorMetadata:            meta,
		Redirection:                  &domain.RedirectForm{Endpoint: body.PaymentURL, Method: "GET"},
	})
	return out, nil
}

type psync struct {
	domain.Base[domain.PSync, domain.PaymentsSyncData, domain.PaymentsResponseData]
}

func (psync) HTTPMethod() string { return http.MethodPost }

func (i psync) GetURL(_ *domain.PSyncRouterData, cfg domain.Endpoints) (string, error) {
	return endpoint(i.Connector, cfg, "epayment/lookup/")
}

func (psync) GetRequestBody(rd *domain.PSyncRouterData, _ domain.Endpoints) (domain.RequestContent, error) {
	if rd.Request.ConnectorTransactionID == "" {
		return nil, domain.MissingField("connector_transaction_id")
	}
	return domain.JSONContent{Value: lookupRequest{Pidx: rd.Request.ConnectorTransactionID}}, nil
}

func (psync) HandleResponse(rd *domain.PSyncRouterData, res domain.Response) (*domain.PSyncRouterData, error) {
	var body lookupResponse
	if err := res.Decode(&body); err != nil {
		return nil, err
	}
	return applyLookup(rd, body, res.StatusCode), nil
}

// GetErrorResponse handles lookups of expired or cancelled payments, which Khalti answers
// with a 4xx carrying the usual lookup body.
func (i psync) GetErrorResponse(res domain.Response) (domain.ErrorResponse, error) {
	var body lookupResponse
	if err := res.Decode(&body); err == nil && body.Status != "" {
		status := attemptStatus(body.Status)
		return domain.ErrorResponse{
			StatusCode:             res.StatusCode,
			Code:                   body.Status,
			Message:                "khalti payment " + body.Status,
			AttemptStatus:          &status,
			ConnectorTransactionID: body.Pidx,
		}, nil
	}
	return i.Base.GetErrorResponse(res)
}

type refund struct {
	domain.Base[domain.Execute, domain.RefundsData, domain.RefundsResponseData]
}

func (refund) HTTPMethod() string { return http.MethodPost }

func (i refund) GetURL(rd *domain.RefundRouterData, cfg domain.Endpoints) (string, error) {
	txn := transactionID(rd.ConnectorMeta)
	if txn == "" {
		return "", domain.MissingField("connector_metadata.transaction_id")
	}
	return merchantEndpoint(i.Connector, cfg, "merchant-transaction/"+url.PathEscape(txn)+"/refund/")
}

func (refund) GetRequestBody(rd *domain.RefundRouterData, _ domain.Endpoints) (domain.RequestContent, error) {
	req := refundRequest{}
	if rd.Request.PaymentAmount == 0 || rd.Request.RefundAmount < rd.Request.PaymentAmount {
		amount, err := domain.MinorUnitForConnector{}.Convert(rd.Request.RefundAmount, rd.Request.Currency)
		if err != nil {
			return nil, err
		}
		req.Amount = amount
	}
	return domain.JSONContent{Value: req}, nil
}

func (refund) HandleResponse(rd *domain.RefundRouterData, res domain.Response) (*domain.RefundRouterData, error) {
	var body refundResponse
	if err := res.Decode(&body); err != nil {
		return nil, err
	}
	out := rd.Clone()
	refundID := firstNonEmpty(body.TransactionID, transactionID(rd.ConnectorMeta))
	out.Response = domain.RefundsResponseData{ConnectorRefundID: refundID, RefundStatus: domain.RefundSuccess}
	return out, nil
}
