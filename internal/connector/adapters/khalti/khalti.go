package khalti

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

const name = "khalti"

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

// Khalti integrates the ePayment (KPG-2) API. Amounts are in paisa.
type Khalti struct {
	flows domain.Integrations
}

func New() *Khalti {
	k := &Khalti{}
	k.flows = domain.Integrations{
		domain.FlowAuthorize: authorize{domain.Base[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData]{Connector: k}},
		domain.FlowPSync:     psync{domain.Base[domain.PSync, domain.PaymentsSyncData, domain.PaymentsResponseData]{Connector: k}},
		domain.FlowExecute:   refund{domain.Base[domain.Execute, domain.RefundsData, domain.RefundsResponseData]{Connector: k}},
	}
	return k
}

func (k *Khalti) ID() string { return name }

func (k *Khalti) BaseURL(cfg domain.Endpoints) string { return cfg.BaseURL(name) }

func (k *Khalti) CurrencyUnit() domain.CurrencyUnit { return domain.CurrencyUnitMinor }

func (k *Khalti) CommonContentType() string { return domain.ContentTypeJSON }

func (k *Khalti) Integration(flow domain.FlowName) (any, bool) { return k.flows.Lookup(flow) }

func (k *Khalti) AuthHeaders(auth domain.ConnectorAuthType) ([]domain.Header, error) {
	a, err := auth.Expect(domain.AuthHeaderKey)
	if err != nil {
		return nil, err
	}
	return []domain.Header{{Name: "Authorization", Value: "key " + strings.TrimSpace(a.APIKey), Masked: true}}, nil
}

// BuildErrorResponse reads Khalti's error body, where field validation errors are keyed
// by field name next to error_key and detail.
func (k *Khalti) BuildErrorResponse(res domain.Response) (domain.ErrorResponse, error) {
	var body map[string]json.RawMessage
	if err := res.Decode(&body); err != nil {
		return domain.ErrorResponse{}, err
	}

	out := domain.ErrorResponse{StatusCode: res.StatusCode}
	if raw, ok := body["error_key"]; ok {
		_ = json.Unmarshal(raw, &out.Code)
	}
	if raw, ok := body["detail"]; ok {
		_ = json.Unmarshal(raw, &out.Message)
	}

	fields := make([]string, 0, len(body))
	for key, raw := range body {
		if key == "error_key" || key == "detail" || key == "status_code" {
			continue
		}
		var msgs []string
		if err := json.Unmarshal(raw, &msgs); err == nil && len(msgs) > 0 {
			fields = append(fields, key+": "+strings.Join(msgs, " "))
		}
	}
	sort.Strings(fields)
	if len(fields) > 0 {
		out.Reason = strings.Join(fields, "; ")
		if out.Message == "" {
			out.Message = out.Reason
		}
	}
	return domain.NormalizeErrorResponse(out), nil
}

func endpoint(c domain.Connector, cfg domain.Endpoints, path string) (string, error) {
	base, err := domain.BaseURLOrError(c, cfg)
	if err != nil {
		return "", err
	}
	return base + path, nil
}

// merchantEndpoint resolves merchant APIs that live outside the versioned /v2 prefix.
func merchantEndpoint(c domain.Connector, cfg domain.Endpoints, path string) (string, error) {
	base, err := domain.BaseURLOrError(c, cfg)
	if err != nil {
		return "", err
	}
	base = strings.TrimSuffix(base, "/")
	base = strings.TrimSuffix(base, "/v2")
	return base + "/" + path, nil
}
