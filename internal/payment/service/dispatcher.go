package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/payrail/internal/connector"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	connectorservice "github.com/railzwaylabs/payrail/internal/connector/service"
	mcadomain "github.com/railzwaylabs/payrail/internal/merchantaccount/domain"
	"github.com/railzwaylabs/payrail/internal/observability"
	"github.com/railzwaylabs/payrail/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type DispatcherParams struct {
	fx.In

	Registry  *connector.Registry
	Accounts  mcadomain.Service
	Sender    connectorservice.Sender
	Endpoints connectordomain.Endpoints
	Metrics   *observability.Metrics
	Log       *zap.Logger
}

// Dispatcher picks the merchant connector account for an operation and runs connector
// flows against it.
type Dispatcher struct {
	registry  *connector.Registry
	accounts  mcadomain.Service
	sender    connectorservice.Sender
	endpoints connectordomain.Endpoints
	metrics   *observability.Metrics
	log       *zap.Logger
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	return &Dispatcher{
		registry:  p.Registry,
		accounts:  p.Accounts,
		sender:    p.Sender,
		endpoints: p.Endpoints,
		metrics:   p.Metrics,
		log:       p.Log.Named("payment.dispatcher"),
	}
}

type route struct {
	account *mcadomain.MerchantConnectorAccount
	data    connector.ConnectorData
	auth    connectordomain.ConnectorAuthType
}

// selectRoute picks the account for a new payment: the explicit account when given,
// otherwise the highest priority enabled account that supports Authorize and the payment
// method, optionally restricted to one connector.
func (d *Dispatcher) selectRoute(
	ctx context.Context,
	merchantID snowflake.ID,
	connectorName string,
	accountID *snowflake.ID,
	pm connectordomain.PaymentMethodType,
) (route, error) {
	if accountID != nil {
		mca, err := d.accounts.Get(ctx, merchantID, *accountID)
		if err != nil {
			return route{}, err
		}
		if mca.Disabled {
			return route{}, fmt.Errorf("%w: %s is disabled", domain.ErrConnectorAccountState, mca.ConnectorLabel)
		}
		if name := strings.TrimSpace(connectorName); name != "" && !strings.EqualFold(name, mca.ConnectorName) {
			return route{}, fmt.Errorf("%w: account %s belongs to %s", domain.ErrConnectorAccountState, mca.ID, mca.ConnectorName)
		}
		if !d.registry.Supports(mca.ConnectorName, connectordomain.FlowAuthorize) {
			return route{}, fmt.Errorf("%w: %s", connectordomain.ErrFlowNotSupported, mca.ConnectorName)
		}
		return d.resolve(ctx, mca)
	}

	if name := strings.TrimSpace(connectorName); name != "" {
		if _, err := d.registry.Convert(name); err != nil {
			return route{}, err
		}
	}

	candidates, err := d.accounts.ListActive(ctx, merchantID, connectorName)
	if err != nil {
		return route{}, err
	}
	for i := range candidates {
		mca := &candidates[i]
		if !d.registry.Supports(mca.ConnectorName, connectordomain.FlowAuthorize) {
			continue
		}
		if !mca.AcceptsPaymentMethod(pm) {
			continue
		}
		return d.resolve(ctx, mca)
	}
	return route{}, domain.ErrNoConnectorAvailable
}

// routeFor resolves the account an existing attempt or refund was made on. Disabled
// accounts still serve follow-up operations.
func (d *Dispatcher) routeFor(ctx context.Context, merchantID, accountID snowflake.ID) (route, error) {
	mca, err := d.accounts.Get(ctx, merchantID, accountID)
	if err != nil {
		if errors.Is(err, mcadomain.ErrNotFound) {
			return route{}, fmt.Errorf("%w: account %s no longer exists", domain.ErrConnectorAccountState, accountID)
		}
		return route{}, err
	}
	return d.resolve(ctx, mca)
}

func (d *Dispatcher) resolve(ctx context.Context, mca *mcadomain.MerchantConnectorAccount) (route, error) {
	data, err := d.registry.ConvertForAccount(mca.ConnectorName, mca.ID.String())
	if err != nil {
		return route{}, err
	}
	auth, err := d.accounts.ResolveAuth(ctx, mca)
	if err != nil {
		return route{}, err
	}
	return route{account: mca, data: data, auth: auth}, nil
}

func (rt route) envelope(intent *domain.PaymentIntent, attempt *domain.PaymentAttempt) connectordomain.Envelope {
	env := connectordomain.Envelope{
		MerchantID:                  intent.MerchantID.String(),
		CustomerID:                  intent.CustomerID,
		Connector:                   rt.data.Name,
		MerchantConnectorID:         rt.data.MerchantConnectorID,
		PaymentID:                   intent.ID.String(),
		AttemptID:                   attempt.ID.String(),
		Status:                      attempt.Status,
		PaymentMethod:               attempt.PaymentMethod,
		AuthType:                    attempt.AuthenticationType,
		ConnectorAuthType:           rt.auth,
		Description:                 intent.Description,
		ReturnURL:                   intent.ReturnURL,
		ConnectorMeta:               json.RawMessage(attempt.ConnectorMetadata),
		ConnectorRequestReferenceID: attempt.ConnectorRequestReferenceID,
		TestMode:                    rt.account.TestMode,
	}
	if len(intent.BillingAddress) > 0 {
		var addr connectordomain.Address
		if err := json.Unmarshal(intent.BillingAddress, &addr); err == nil {
			env.Address = &addr
		}
	}
	return env
}

func (d *Dispatcher) observe(connectorName string, flow connectordomain.FlowName, status string) {
	d.metrics.PaymentStatus.WithLabelValues(connectorName, string(flow), status).Inc()
}

// call runs one flow through the connector and returns the updated envelope together with
// the masked raw connector response.
func call[F connectordomain.Flow, Req any, Resp any](
	ctx context.Context,
	d *Dispatcher,
	rt route,
	rd *connectordomain.RouterData[F, Req, Resp],
) (*connectordomain.RouterData[F, Req, Resp], datatypes.JSON, error) {
	integ, err := connectordomain.IntegrationFor[F, Req, Resp](rt.data.Connector)
	if err != nil {
		return nil, nil, err
	}
	rec := &recordingSender{next: d.sender}
	out, err := connectorservice.ExecuteProcessingStep(ctx, rec, rt.data.Connector, integ, rd, d.endpoints)
	raw := maskResponse(rec.body)
	if err != nil {
		d.log.Error("connector processing step failed",
			zap.String("connector", rt.data.Name),
			zap.String("flow", string(rd.Flow())),
			zap.Error(err),
		)
		return nil, raw, err
	}
	return out, raw, nil
}

// recordingSender keeps the last response body for storage.
type recordingSender struct {
	next connectorservice.Sender
	body []byte
}

func (r *recordingSender) Send(ctx context.Context, connectorName string, flow connectordomain.FlowName, req *connectordomain.Request) (connectordomain.Response, error) {
	res, err := r.next.Send(ctx, connectorName, flow, req)
	if err == nil {
		r.body = res.Body
	}
	return res, err
}
