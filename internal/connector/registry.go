package connector

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

// ConnectorData is a resolved connector ready for dispatch.
type ConnectorData struct {
	Name                string
	Connector           domain.Connector
	MerchantConnectorID string
}

// Info describes a registered connector for the public catalog.
type Info struct {
	Name         string              `json:"name"`
	CurrencyUnit domain.CurrencyUnit `json:"currency_unit"`
	ContentType  string              `json:"content_type"`
	Flows        []domain.FlowName   `json:"flows"`
}

type Registry struct {
	mu        sync.RWMutex
	factories map[string]domain.ConnectorFactory
	instances map[string]domain.Connector
}

func NewRegistry(factories ...domain.ConnectorFactory) *Registry {
	r := &Registry{
		factories: make(map[string]domain.ConnectorFactory, len(factories)),
		instances: make(map[string]domain.Connector, len(factories)),
	}
	for _, f := range factories {
		r.Register(f)
	}
	return r
}

func (r *Registry) Register(factory domain.ConnectorFactory) {
	if factory == nil {
		return
	}
	name := normalizeName(factory.Provider())
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	delete(r.instances, name)
}

// Convert resolves a connector by name. Connectors are stateless so one instance per name
// is shared.
func (r *Registry) Convert(name string) (ConnectorData, error) {
	key := normalizeName(name)

	r.mu.RLock()
	c, ok := r.instances[key]
	factory, known := r.factories[key]
	r.mu.RUnlock()
	if ok {
		return ConnectorData{Name: key, Connector: c}, nil
	}
	if !known {
		return ConnectorData{}, fmt.Errorf("%w: %q", domain.ErrConnectorNotFound, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.instances[key]; ok {
		return ConnectorData{Name: key, Connector: c}, nil
	}
	c = factory.NewConnector()
	r.instances[key] = c
	return ConnectorData{Name: key, Connector: c}, nil
}

// ConvertForAccount resolves a connector and tags it with the merchant connector account
// it will be called on behalf of.
func (r *Registry) ConvertForAccount(name, merchantConnectorID string) (ConnectorData, error) {
	data, err := r.Convert(name)
	if err != nil {
		return ConnectorData{}, err
	}
	data.MerchantConnectorID = merchantConnectorID
	return data, nil
}

func (r *Registry) Supports(name string, flow domain.FlowName) bool {
	data, err := r.Convert(name)
	if err != nil {
		return false
	}
	return domain.SupportsFlow(data.Connector, flow)
}

func (r *Registry) List() []Info {
	r.mu.RLock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	out := make([]Info, 0, len(names))
	for _, name := range names {
		data, err := r.Convert(name)
		if err != nil {
			continue
		}
		flows := make([]domain.FlowName, 0, len(domain.AllFlows))
		for _, f := range domain.AllFlows {
			if domain.SupportsFlow(data.Connector, f) {
				flows = append(flows, f)
			}
		}
		out = append(out, Info{
			Name:         name,
			CurrencyUnit: data.Connector.CurrencyUnit(),
			ContentType:  data.Connector.CommonContentType(),
			Flows:        flows,
		})
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
