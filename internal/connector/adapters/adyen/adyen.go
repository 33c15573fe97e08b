package adyen

import (
	"net/http"
	"strings"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

const name = "adyen"

// serverErrorCode marks 5xx answers whose body is not an Adyen error object.
const serverErrorCode = "server_error"

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

// Adyen integrates the Checkout API. Payment and refund status changes after the first
// response arrive through notifications, so PSync and RSync make no call.
type Adyen struct {
	flows domain.Integrations
}

func New() *Adyen {
	a := &Adyen{}
	a.flows = domain.Integrations{
		domain.FlowAuthorize: authorize{Base: domain.Base[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData]{Connector: a}},
		domain.FlowCapture:   capture{Base: domain.Base[domain.Capture, domain.PaymentsCaptureData, domain.PaymentsResponseData]{Connector: a}},
		domain.FlowVoid:      void{Base: domain.Base[domain.Void, domain.PaymentsCancelData, domain.PaymentsResponseData]{Connector: a}},
		domain.FlowPSync:     psync{},
		domain.FlowExecute:   refund{Base: domain.Base[domain.Execute, domain.RefundsData, domain.RefundsResponseData]{Connector: a}},
		domain.FlowRSync:     rsync{},
	}
	return a
}

func (a *Adyen) ID() string { return name }

func (a *Adyen) BaseURL(cfg domain.Endpoints) string { return cfg.BaseURL(name) }

func (a *Adyen) CurrencyUnit() domain.CurrencyUnit { return domain.CurrencyUnitMinor }

func (a *Adyen) CommonContentType() string { return domain.ContentTypeJSON }

func (a *Adyen) Integration(flow domain.FlowName) (any, bool) { return a.flows.Lookup(flow) }

func (a *Adyen) AuthHeaders(auth domain.ConnectorAuthType) ([]domain.Header, error) {
	key, err := auth.Expect(domain.AuthBodyKey)
	if err != nil {
		return nil, err
	}
	return []domain.Header{{Name: "X-API-Key", Value: strings.TrimSpace(key.APIKey), Masked: true}}, nil
}

func (a *Adyen) BuildErrorResponse(res domain.Response) (domain.ErrorResponse, error) {
	var body errorResponse
	if err := res.Decode(&body); err != nil {
		return domain.ErrorResponse{}, err
	}
	status := body.Status
	if status == 0 {
		status = res.StatusCode
	}
	return domain.NormalizeErrorResponse(domain.ErrorResponse{
		StatusCode:             status,
		Code:                   body.ErrorCode,
		Message:                body.Message,
		Reason:                 body.ErrorType,
		ConnectorTransactionID: body.PSPReference,
	}), nil
}

// serverErrors handles 5xx answers. Adyen sends its error object for some of them,
// while gateway failures come back as HTML or an empty body.
type serverErrors struct{}

func (serverErrors) Get5xxErrorResponse(res domain.Response) (domain.ErrorResponse, error) {
	var body errorResponse
	if err := res.Decode(&body); err == nil && body.ErrorCode != "" {
		return domain.NormalizeErrorResponse(domain.ErrorResponse{
			StatusCode:             res.StatusCode,
			Code:                   body.ErrorCode,
			Message:                body.Message,
			Reason:                 body.ErrorType,
			ConnectorTransactionID: body.PSPReference,
		}), nil
	}
	return domain.ErrorResponse{
		StatusCode: res.StatusCode,
		Code:       serverErrorCode,
		Message:    http.StatusText(res.StatusCode),
	}, nil
}

func merchantAccount(auth domain.ConnectorAuthType) (string, error) {
	key, err := auth.Expect(domain.AuthBodyKey)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(key.Key1), nil
}

func endpoint(c domain.Connector, cfg domain.Endpoints, path string) (string, error) {
	base, err := domain.BaseURLOrError(c, cfg)
	if err != nil {
		return "", err
	}
	return base + path, nil
}

func amountOf(value domain.MinorUnit, currency string) (amount, error) {
	v, err := domain.MinorUnitForConnector{}.Convert(value, currency)
	if err != nil {
		return amount{}, err
	}
	return amount{Value: v, Currency: strings.ToUpper(currency)}, nil
}

func reference(rd domain.Envelope, suffix string) string {
	ref := rd.ConnectorRequestReferenceID
	if ref == "" {
		ref = rd.AttemptID
	}
	if suffix != "" {
		ref += "_" + suffix
	}
	return ref
}
