package connector

import (
	"errors"
	"testing"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnector struct {
	name  string
	flows domain.Integrations
}

func (c *stubConnector) ID() string                                 { return c.name }
func (c *stubConnector) BaseURL(cfg domain.Endpoints) string        { return cfg.BaseURL(c.name) }
func (c *stubConnector) CurrencyUnit() domain.CurrencyUnit          { return domain.CurrencyUnitMinor }
func (c *stubConnector) CommonContentType() string                  { return domain.ContentTypeJSON }
func (c *stubConnector) Integration(f domain.FlowName) (any, bool)  { return c.flows.Lookup(f) }
func (c *stubConnector) AuthHeaders(domain.ConnectorAuthType) ([]domain.Header, error) {
	return nil, nil
}
func (c *stubConnector) BuildErrorResponse(domain.Response) (domain.ErrorResponse, error) {
	return domain.ErrorResponse{}, nil
}

type stubFactory struct {
	name  string
	built *int
}

func (f stubFactory) Provider() string { return f.name }

func (f stubFactory) NewConnector() domain.Connector {
	*f.built++
	return &stubConnector{name: f.name, flows: domain.Integrations{
		domain.FlowAuthorize: domain.NoCall[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData]{},
		domain.FlowPSync:     domain.NoCall[domain.PSync, domain.PaymentsSyncData, domain.PaymentsResponseData]{},
	}}
}

func TestRegistryConvert(t *testing.T) {
	built := 0
	r := NewRegistry(stubFactory{name: "Acme", built: &built})

	data, err := r.Convert("  ACME ")
	require.NoError(t, err)
	assert.Equal(t, "acme", data.Name)
	assert.Equal(t, "Acme", data.Connector.ID())

	_, err = r.Convert("acme")
	require.NoError(t, err)
	assert.Equal(t, 1, built)

	_, err = r.Convert("globex")
	assert.True(t, errors.Is(err, domain.ErrConnectorNotFound))

	data, err = r.ConvertForAccount("acme", "mca_1")
	require.NoError(t, err)
	assert.Equal(t, "mca_1", data.MerchantConnectorID)
}

func TestRegistrySupportsAndList(t *testing.T) {
	built := 0
	r := NewRegistry(stubFactory{name: "zeta", built: &built}, stubFactory{name: "acme", built: &built})

	assert.True(t, r.Supports("acme", domain.FlowAuthorize))
	assert.False(t, r.Supports("acme", domain.FlowExecute))
	assert.False(t, r.Supports("nope", domain.FlowAuthorize))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "acme", list[0].Name)
	assert.Equal(t, []domain.FlowName{domain.FlowAuthorize, domain.FlowPSync}, list[0].Flows)
	assert.Equal(t, domain.CurrencyUnitMinor, list[1].CurrencyUnit)
}
