package adyen

import (
	"net/http"
	"net/url"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

type authorize struct {
	domain.Base[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData]
	serverErrors
}

func (authorize) HTTPMethod() string { return http.MethodPost }

func (i authorize) GetURL(_ *domain.AuthorizeRouterData, cfg domain.Endpoints) (string, error) {
	return endpoint(i.Connector, cfg, "payments")
}

func (authorize) GetRequestBody(rd *domain.AuthorizeRouterData, _ domain.Endpoints) (domain.RequestContent, error) {
	req, err := buildPaymentRequest(rd)
	if err != nil {
		return nil, err
	}
	return domain.JSONContent{Value: req}, nil
}

func (authorize) HandleResponse(rd *domain.AuthorizeRouterData, res domain.Response) (*domain.AuthorizeRouterData, error) {
	var body paymentResponse
	if err := res.Decode(&body); err != nil {
		return nil, err
	}
	return applyPaymentResponse(rd, body, res.StatusCode), nil
}

type capture struct {
	domain.Base[domain.Capture, domain.PaymentsCaptureData, domain.PaymentsResponseData]
	serverErrors
}

func (capture) HTTPMethod() string { return http.MethodPost }

func (i capture) GetURL(rd *domain.CaptureRouterData, cfg domain.Endpoints) (string, error) {
	psp := rd.Request.ConnectorTransactionID
	if psp == "" {
		return "", domain.MissingField("connector_transaction_id")
	}
	return endpoint(i.Connector, cfg, "payments/"+url.PathEscape(psp)+"/captures")
}

func (capture) GetRequestBody(rd *domain.CaptureRouterData, _ domain.Endpoints) (domain.RequestContent, error) {
	account, err := merchantAccount(rd.ConnectorAuthType)
	if err != nil {
		return nil, err
	}
	amt, err := amountOf(rd.Request.AmountToCapture, rd.Request.Currency)
	if err != nil {
		return nil, err
	}
	return domain.JSONContent{Value: modificationRequest{
		MerchantAccount: account,
		Reference:       reference(rd.Envelope, "capture"),
		Amount:          &amt,
	}}, nil
}

// HandleResponse treats a received capture as settled for the requested amount. Adyen
// reports the final outcome only through notifications.
func (capture) HandleResponse(rd *domain.CaptureRouterData, res domain.Response) (*domain.CaptureRouterData, error) {
	var body modificationResponse
	if err := res.Decode(&body); err != nil {
		return nil, err
	}
	out := rd.Clone()
	out.Status = domain.AttemptCharged
	if rd.Request.PaymentAmount > 0 && rd.Request.AmountToCapture < rd.Request.PaymentAmount {
		out.Status = domain.AttemptPartialCharged
	}
	captured := rd.Request.AmountToCapture
	out.AmountCaptured = &captured
	out.Succeed(domain.PaymentsResponseData{
		ResourceID:                   rd.Request.ConnectorTransactionID,
		ConnectorResponseReferenceID: body.PSPReference,
	})
	return out, nil
}

type void struct {
	domain.Base[domain.Void, domain.PaymentsCancelData, domain.PaymentsResponseData]
	serverErrors
}

func (void) HTTPMethod() string { return http.MethodPost }

func (i void) GetURL(rd *domain.VoidRouterData, cfg domain.Endpoints) (string, error) {
	psp := rd.Request.ConnectorTransactionID
	if psp == "" {
		return "", domain.MissingField("connector_transaction_id")
	}
	return endpoint(i.Connector, cfg, "payments/"+url.PathEscape(psp)+"/cancels")
}

func (void) GetRequestBody(rd *domain.VoidRouterData, _ domain.Endpoints) (domain.RequestContent, error) {
	account, err := merchantAccount(rd.ConnectorAuthType)
	if err != nil {
		return nil, err
	}
	return domain.JSONContent{Value: modificationRequest{
		MerchantAccount: account,
		Reference:       reference(rd.Envelope, "cancel"),
	}}, nil
}

func (void) HandleResponse(rd *domain.VoidRouterData, res domain.Response) (*domain.VoidRouterData, error) {
	var body modificationResponse
	if err := res.Decode(&body); err != nil {
		return nil, err
	}
	out := rd.Clone()
	out.Status = domain.AttemptVoided
	out.Succeed(domain.PaymentsResponseData{
		ResourceID:                   rd.Request.ConnectorTransactionID,
		ConnectorResponseReferenceID: body.PSPReference,
	})
	return out, nil
}

type psync struct {
	domain.NoCall[domain.PSync, domain.PaymentsSyncData, domain.PaymentsResponseData]
}

type refund struct {
	domain.Base[domain.Execute, domain.RefundsData, domain.RefundsResponseData]
	serverErrors
}

func (refund) HTTPMethod() string { return http.MethodPost }

func (i refund) GetURL(rd *domain.RefundRouterData, cfg domain.Endpoints) (string, error) {
	psp := rd.Request.ConnectorTransactionID
	if psp == "" {
		return "", domain.MissingField("connector_transaction_id")
	}
	return endpoint(i.Connector, cfg, "payments/"+url.PathEscape(psp)+"/refunds")
}

func (refund) GetRequestBody(rd *domain.RefundRouterData, _ domain.Endpoints) (domain.RequestContent, error) {
	account, err := merchantAccount(rd.ConnectorAuthType)
	if err != nil {
		return nil, err
	}
	amt, err := amountOf(rd.Request.RefundAmount, rd.Request.Currency)
	if err != nil {
		return nil, err
	}
	ref := rd.Request.RefundID
	if ref == "" {
		ref = reference(rd.Envelope, "refund")
	}
	return domain.JSONContent{Value: modificationRequest{
		MerchantAccount: account,
		Reference:       ref,
		Amount:          &amt,
	}}, nil
}

func (refund) HandleResponse(rd *domain.RefundRouterData, res domain.Response) (*domain.RefundRouterData, error) {
	var body modificationResponse
	if err := res.Decode(&body); err != nil {
		return nil, err
	}
	out := rd.Clone()
	out.Response = domain.RefundsResponseData{
		ConnectorRefundID: body.PSPReference,
		RefundStatus:      domain.RefundPending,
	}
	return out, nil
}

type rsync struct {
	domain.NoCall[domain.RSync, domain.RefundsData, domain.RefundsResponseData]
}
