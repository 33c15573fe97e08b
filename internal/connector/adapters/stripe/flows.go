package stripe

import (
	"net/http"
	"net/url"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

type authorize struct {
	base[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData]
}

func (authorize) HTTPMethod() string { return http.MethodPost }

func (i authorize) GetURL(_ *domain.AuthorizeRouterData, cfg domain.Endpoints) (string, error) {
	return i.url(cfg, "v1/payment_intents")
}

func (authorize) GetRequestBody(rd *domain.AuthorizeRouterData, _ domain.Endpoints) (domain.RequestContent, error) {
	form, err := buildPaymentIntentForm(rd)
	if err != nil {
		return nil, err
	}
	return domain.FormContent{Values: form}, nil
}

func (authorize) HandleResponse(rd *domain.AuthorizeRouterData, res domain.Response) (*domain.AuthorizeRouterData, error) {
	var pi paymentIntent
	if err := res.Decode(&pi); err != nil {
		return nil, err
	}
	return applyPaymentIntent(rd, pi, res.StatusCode), nil
}

type capture struct {
	base[domain.Capture, domain.PaymentsCaptureData, domain.PaymentsResponseData]
}

func (capture) HTTPMethod() string { return http.MethodPost }

func (i capture) GetURL(rd *domain.CaptureRouterData, cfg domain.Endpoints) (string, error) {
	id := rd.Request.ConnectorTransactionID
	if id == "" {
		return "", domain.MissingField("connector_transaction_id")
	}
	return i.url(cfg, "v1/payment_intents/"+url.PathEscape(id)+"/capture")
}

func (capture) GetRequestBody(rd *domain.CaptureRouterData, _ domain.Endpoints) (domain.RequestContent, error) {
	amount, err := domain.StringMinorUnitForConnector{}.Convert(rd.Request.AmountToCapture, rd.Request.Currency)
	if err != nil {
		return nil, err
	}
	return domain.FormContent{Values: url.Values{"amount_to_capture": {amount}}}, nil
}

func (capture) HandleResponse(rd *domain.CaptureRouterData, res domain.Response) (*domain.CaptureRouterData, error) {
	var pi paymentIntent
	if err := res.Decode(&pi); err != nil {
		return nil, err
	}
	out := applyPaymentIntent(rd, pi, res.StatusCode)
	if out.Status == domain.AttemptCharged && pi.AmountReceived > 0 && domain.MinorUnit(pi.AmountReceived) < rd.Request.PaymentAmount {
		out.Status = domain.AttemptPartialCharged
	}
	return out, nil
}

type void struct {
	base[domain.Void, domain.PaymentsCancelData, domain.PaymentsResponseData]
}

func (void) HTTPMethod() string { return http.MethodPost }

func (i void) GetURL(rd *domain.VoidRouterData, cfg domain.Endpoints) (string, error) {
	id := rd.Request.ConnectorTransactionID
	if id == "" {
		return "", domain.MissingField("connector_transaction_id")
	}
	return i.url(cfg, "v1/payment_intents/"+url.PathEscape(id)+"/cancel")
}

func (void) GetRequestBody(rd *domain.VoidRouterData, _ domain.Endpoints) (domain.RequestContent, error) {
	form := url.Values{}
	if reason, ok := cancellationReasons[rd.Request.CancellationReason]; ok {
		form.Set("cancellation_reason", reason)
	}
	return domain.FormContent{Values: form}, nil
}

func (void) HandleResponse(rd *domain.VoidRouterData, res domain.Response) (*domain.VoidRouterData, error) {
	var pi paymentIntent
	if err := res.Decode(&pi); err != nil {
		return nil, err
	}
	return applyPaymentIntent(rd, pi, res.StatusCode), nil
}

type psync struct {
	base[domain.PSync, domain.PaymentsSyncData, domain.PaymentsResponseData]
}

func (psync) HTTPMethod() string { return http.MethodGet }

func (i psync) GetURL(rd *domain.PSyncRouterData, cfg domain.Endpoints) (string, error) {
	id := rd.Request.ConnectorTransactionID
	if id == "" {
		return "", domain.MissingField("connector_transaction_id")
	}
	return i.url(cfg, "v1/payment_intents/"+url.PathEscape(id))
}

func (psync) GetRequestBody(*domain.PSyncRouterData, domain.Endpoints) (domain.RequestContent, error) {
	return nil, nil
}

func (psync) HandleResponse(rd *domain.PSyncRouterData, res domain.Response) (*domain.PSyncRouterData, error) {
	var pi paymentIntent
	if err := res.Decode(&pi); err != nil {
		return nil, err
	}
	return applyPaymentIntent(rd, pi, res.StatusCode), nil
}

type refund struct {
	base[domain.Execute, domain.RefundsData, domain.RefundsResponseData]
}

func (refund) HTTPMethod() string { return http.MethodPost }

func (i refund) GetURL(_ *domain.RefundRouterData, cfg domain.Endpoints) (string, error) {
	return i.url(cfg, "v1/refunds")
}

func (refund) GetRequestBody(rd *domain.RefundRouterData, _ domain.Endpoints) (domain.RequestContent, error) {
	if rd.Request.ConnectorTransactionID == "" {
		return nil, domain.MissingField("connector_transaction_id")
	}
	amount, err := domain.StringMinorUnitForConnector{}.Convert(rd.Request.RefundAmount, rd.Request.Currency)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("payment_intent", rd.Request.ConnectorTransactionID)
	form.Set("amount", amount)
	form.Set("metadata[refund_id]", rd.Request.RefundID)
	form.Set("metadata[order_id]", rd.PaymentID)
	if reason, ok := refundReasons[rd.Request.Reason]; ok {
		form.Set("reason", reason)
	}
	return domain.FormContent{Values: form}, nil
}

func (refund) HandleResponse(rd *domain.RefundRouterData, res domain.Response) (*domain.RefundRouterData, error) {
	var body refundObject
	if err := res.Decode(&body); err != nil {
		return nil, err
	}
	return applyRefund(rd, body), nil
}

type rsync struct {
	base[domain.RSync, domain.RefundsData, domain.RefundsResponseData]
}

func (rsync) HTTPMethod() string { return http.MethodGet }

func (i rsync) GetURL(rd *domain.RSyncRouterData, cfg domain.Endpoints) (string, error) {
	id := rd.Request.ConnectorRefundID
	if id == "" {
		return "", domain.MissingField("connector_refund_id")
	}
	return i.url(cfg, "v1/refunds/"+url.PathEscape(id))
}

func (rsync) GetRequestBody(*domain.RSyncRouterData, domain.Endpoints) (domain.RequestContent, error) {
	return nil, nil
}

func (rsync) HandleResponse(rd *domain.RSyncRouterData, res domain.Response) (*domain.RSyncRouterData, error) {
	var body refundObject
	if err := res.Decode(&body); err != nil {
		return nil, err
	}
	return applyRefund(rd, body), nil
}
