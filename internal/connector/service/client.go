package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/railzwaylabs/payrail/internal/config"
	"github.com/railzwaylabs/payrail/internal/connector/domain"
	"github.com/railzwaylabs/payrail/internal/observability"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrConnectorTimeout     = errors.New("connector_timeout")
	ErrConnectorUnreachable = errors.New("connector_unreachable")

	errServerStatus = errors.New("connector_server_error")
)

const maxResponseBytes = 4 << 20

// Sender delivers a built connector request.
type Sender interface {
	Send(ctx context.Context, connector string, flow domain.FlowName, req *domain.Request) (domain.Response, error)
}

type ClientParams struct {
	fx.In

	Config         config.Config
	Log            *zap.Logger
	Metrics        *observability.Metrics
	TracerProvider trace.TracerProvider `optional:"true"`
}

// Client sends connector requests through a per-connector circuit breaker.
type Client struct {
	http    *http.Client
	log     *zap.Logger
	metrics *observability.Metrics
	breaker config.BreakerConfig
	timeout time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewClient(p ClientParams) *Client {
	opts := []otelhttp.Option{}
	if p.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(p.TracerProvider))
	}
	return newClient(
		&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport, opts...)},
		p.Config.Breaker,
		p.Config.Connectors.Timeout,
		p.Log,
		p.Metrics,
	)
}

func newClient(httpClient *http.Client, breaker config.BreakerConfig, timeout time.Duration, log *zap.Logger, metrics *observability.Metrics) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:     httpClient,
		log:      log.Named("connector.client"),
		metrics:  metrics,
		breaker:  breaker,
		timeout:  timeout,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *Client) Send(ctx context.Context, connector string, flow domain.FlowName, req *domain.Request) (domain.Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := req.HTTPRequest()
	if err != nil {
		return domain.Response{}, err
	}
	httpReq = httpReq.WithContext(ctx)

	start := time.Now()
	result, err := c.breakerFor(connector).Execute(func() (interface{}, error) {
		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		res := domain.Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}
		if res.IsServerError() {
			return res, errServerStatus
		}
		return res, nil
	})
	elapsed := time.Since(start)

	outcome := "ok"
	defer func() {
		c.metrics.ConnectorCalls.WithLabelValues(connector, string(flow), outcome).Inc()
		c.metrics.ConnectorLatency.WithLabelValues(connector, string(flow)).Observe(elapsed.Seconds())
	}()

	if err != nil && !errors.Is(err, errServerStatus) {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = "circuit_open"
			err = fmt.Errorf("%w: %s", domain.ErrCircuitOpen, connector)
		case isTimeout(err), errors.Is(err, context.Canceled):
			// The request may have reached the connector.
			outcome = "timeout"
			err = fmt.Errorf("%w: %s %s: %v", ErrConnectorTimeout, connector, flow, err)
		default:
			outcome = "transport_error"
			err = fmt.Errorf("%w: %s %s: %v", ErrConnectorUnreachable, connector, flow, err)
		}
		c.log.Warn("connector call failed",
			zap.String("connector", connector),
			zap.String("flow", string(flow)),
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.String("headers", req.MaskedHeaders()),
			zap.Duration("latency", elapsed),
			zap.Error(err),
		)
		return domain.Response{}, err
	}

	res := result.(domain.Response)
	switch {
	case res.IsSuccess():
	case res.IsServerError():
		outcome = "server_error"
	default:
		outcome = "client_error"
	}

	c.log.Info("connector call",
		zap.String("connector", connector),
		zap.String("flow", string(flow)),
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("status", res.StatusCode),
		zap.Duration("latency", elapsed),
	)
	return res, nil
}

func (c *Client) breakerFor(connector string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[connector]; ok {
		return cb
	}

	maxFailures := c.breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        connector,
		MaxRequests: 1,
		Interval:    c.breaker.Interval,
		Timeout:     c.breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			c.log.Warn("connector breaker state changed",
				zap.String("connector", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	c.breakers[connector] = cb
	c.metrics.BreakerState.WithLabelValues(connector).Set(float64(gobreaker.StateClosed))
	return cb
}

// BreakerState reports the current breaker state of a connector.
func (c *Client) BreakerState(connector string) gobreaker.State {
	return c.breakerFor(connector).State()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
