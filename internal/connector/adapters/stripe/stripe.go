package stripe

import (
	"strings"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

const name = "stripe"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return name
}

func (f *Factory) NewConnector() domain.Connector {
	return New()
}

// Stripe talks to the PaymentIntents and Refunds APIs.
type Stripe struct {
	flows domain.Integrations
}

func New() *Stripe {
	s := &Stripe{}
	s.flows = domain.Integrations{
		domain.FlowAuthorize: authorize{base[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData]{s}},
		domain.FlowCapture:   capture{base[domain.Capture, domain.PaymentsCaptureData, domain.PaymentsResponseData]{s}},
		domain.FlowVoid:      void{base[domain.Void, domain.PaymentsCancelData, domain.PaymentsResponseData]{s}},
		domain.FlowPSync:     psync{base[domain.PSync, domain.PaymentsSyncData, domain.PaymentsResponseData]{s}},
		domain.FlowExecute:   refund{base[domain.Execute, domain.RefundsData, domain.RefundsResponseData]{s}},
		domain.FlowRSync:     rsync{base[domain.RSync, domain.RefundsData, domain.RefundsResponseData]{s}},
	}
	return s
}

func (s *Stripe) ID() string { return name }

func (s *Stripe) BaseURL(cfg domain.Endpoints) string { return cfg.BaseURL(name) }

func (s *Stripe) CurrencyUnit() domain.CurrencyUnit { return domain.CurrencyUnitMinor }

func (s *Stripe) CommonContentType() string { return domain.ContentTypeForm }

func (s *Stripe) Integration(flow domain.FlowName) (any, bool) { return s.flows.Lookup(flow) }

func (s *Stripe) AuthHeaders(auth domain.ConnectorAuthType) ([]domain.Header, error) {
	a, err := auth.Expect(domain.AuthHeaderKey)
	if err != nil {
		return nil, err
	}
	return []domain.Header{
		{Name: "Authorization", Value: "Bearer " + strings.TrimSpace(a.APIKey), Masked: true},
		{Name: "Stripe-Version", Value: apiVersion},
	}, nil
}

func (s *Stripe) BuildErrorResponse(res domain.Response) (domain.ErrorResponse, error) {
	var body errorResponse
	if err := res.Decode(&body); err != nil {
		return domain.ErrorResponse{}, err
	}
	code := body.Error.Code
	if code == "" {
		code = body.Error.Type
	}
	out := domain.ErrorResponse{
		StatusCode: res.StatusCode,
		Code:       code,
		Message:    body.Error.Message,
		Reason:     body.Error.DeclineCode,
	}
	if body.Error.PaymentIntent != nil {
		out.ConnectorTransactionID = body.Error.PaymentIntent.ID
	}
	return domain.NormalizeErrorResponse(out), nil
}

type base[F domain.Flow, Req any, Resp any] struct {
	s *Stripe
}

func (b base[F, Req, Resp]) ContentType() string { return domain.ContentTypeForm }

func (b base[F, Req, Resp]) GetHeaders(rd *domain.RouterData[F, Req, Resp], _ domain.Endpoints) ([]domain.Header, error) {
	headers, err := domain.DefaultHeaders(b.s, rd.ConnectorAuthType, domain.ContentTypeForm)
	if err != nil {
		return nil, err
	}
	if ref := rd.ConnectorRequestReferenceID; ref != "" {
		var f F
		headers = append(headers, domain.Header{Name: "Idempotency-Key", Value: ref + "_" + string(f.Name())})
	}
	return headers, nil
}

func (b base[F, Req, Resp]) GetErrorResponse(res domain.Response) (domain.ErrorResponse, error) {
	return b.s.BuildErrorResponse(res)
}

func (b base[F, Req, Resp]) url(cfg domain.Endpoints, path string) (string, error) {
	baseURL, err := domain.BaseURLOrError(b.s, cfg)
	if err != nil {
		return "", err
	}
	return baseURL + path, nil
}
