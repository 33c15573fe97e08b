package xendit

import (
	"encoding/base64"
	"strings"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

const name = "xendit"

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

// Xendit authorizes through hosted invoices: the customer is redirected to the invoice
// page and the payment is captured there.
type Xendit struct {
	flows domain.Integrations
}

func New() *Xendit {
	x := &Xendit{}
	x.flows = domain.Integrations{
		domain.FlowAuthorize: authorize{domain.Base[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData]{Connector: x}},
		domain.FlowVoid:      void{domain.Base[domain.Void, domain.PaymentsCancelData, domain.PaymentsResponseData]{Connector: x}},
		domain.FlowPSync:     psync{domain.Base[domain.PSync, domain.PaymentsSyncData, domain.PaymentsResponseData]{Connector: x}},
		domain.FlowExecute:   refund{domain.Base[domain.Execute, domain.RefundsData, domain.RefundsResponseData]{Connector: x}},
		domain.FlowRSync:     rsync{domain.Base[domain.RSync, domain.RefundsData, domain.RefundsResponseData]{Connector: x}},
	}
	return x
}

func (x *Xendit) ID() string { return name }

func (x *Xendit) BaseURL(cfg domain.Endpoints) string { return cfg.BaseURL(name) }

func (x *Xendit) CurrencyUnit() domain.CurrencyUnit { return domain.CurrencyUnitBase }

func (x *Xendit) CommonContentType() string { return domain.ContentTypeJSON }

func (x *Xendit) Integration(flow domain.FlowName) (any, bool) { return x.flows.Lookup(flow) }

// AuthHeaders uses the secret key as the basic auth username with an empty password.
func (x *Xendit) AuthHeaders(auth domain.ConnectorAuthType) ([]domain.Header, error) {
	a, err := auth.Expect(domain.AuthHeaderKey)
	if err != nil {
		return nil, err
	}
	token := base64.StdEncoding.EncodeToString([]byte(strings.TrimSpace(a.APIKey) + ":"))
	return []domain.Header{{Name: "Authorization", Value: "Basic " + token, Masked: true}}, nil
}

func (x *Xendit) BuildErrorResponse(res domain.Response) (domain.ErrorResponse, error) {
	var body errorResponse
	if err := res.Decode(&body); err != nil {
		return domain.ErrorResponse{}, err
	}
	return domain.NormalizeErrorResponse(domain.ErrorResponse{
		StatusCode: res.StatusCode,
		Code:       body.ErrorCode,
		Message:    body.Message,
	}), nil
}

func endpoint(c domain.Connector, cfg domain.Endpoints, path string) (string, error) {
	base, err := domain.BaseURLOrError(c, cfg)
	if err != nil {
		return "", err
	}
	return base + path, nil
}
