package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	apikeydomain "github.com/railzwaylabs/payrail/internal/apikey/domain"
	"github.com/railzwaylabs/payrail/internal/authorization"
	"github.com/railzwaylabs/payrail/internal/config"
	"github.com/railzwaylabs/payrail/internal/connector"
	mcadomain "github.com/railzwaylabs/payrail/internal/merchantaccount/domain"
	"github.com/railzwaylabs/payrail/internal/migration"
	paymentdomain "github.com/railzwaylabs/payrail/internal/payment/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	DB         *gorm.DB
	SchemaGate migration.SchemaGate
	Gatherer   prometheus.Gatherer
	Registry   *connector.Registry
	Payments   paymentdomain.PaymentsService
	Refunds    paymentdomain.RefundsService
	Accounts   mcadomain.Service
	APIKeys    apikeydomain.Service
	Authorizer authorization.Authorizer
}

type Server struct {
	cfg        config.Config
	log        *zap.Logger
	db         *gorm.DB
	schemaGate migration.SchemaGate
	gatherer   prometheus.Gatherer
	registry   *connector.Registry
	payments   paymentdomain.PaymentsService
	refunds    paymentdomain.RefundsService
	accounts   mcadomain.Service
	apiKeys    apikeydomain.Service
	authorizer authorization.Authorizer
	engine     *gin.Engine
}

func NewServer(p Params) (*Server, error) {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := registerValidators(p.Registry); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        p.Config,
		log:        p.Log.Named("server"),
		db:         p.DB,
		schemaGate: p.SchemaGate,
		gatherer:   p.Gatherer,
		registry:   p.Registry,
		payments:   p.Payments,
		refunds:    p.Refunds,
		accounts:   p.Accounts,
		apiKeys:    p.APIKeys,
		authorizer: p.Authorizer,
		engine:     gin.New(),
	}
	s.engine.Use(RequestID(), s.Recovery(), s.AccessLog())
	s.engine.NoRoute(func(c *gin.Context) { AbortWithError(c, ErrNotFound) })

	s.RegisterSystemRoutes()
	s.RegisterAPIRoutes()
	return s, nil
}

func (s *Server) RegisterAPIRoutes() {
	v1 := s.engine.Group("/v1")
	v1.GET("/connectors", s.ListConnectors)

	api := v1.Group("", s.APIKeyRequired())

	payments := api.Group("/payments")
	payments.POST("", s.Authorize(authorization.ResourcePayments, authorization.ActionWrite), s.CreatePayment)
	payments.GET("/:id", s.Authorize(authorization.ResourcePayments, authorization.ActionRead), s.GetPayment)
	payments.POST("/:id/capture", s.Authorize(authorization.ResourcePayments, authorization.ActionWrite), s.CapturePayment)
	payments.POST("/:id/cancel", s.Authorize(authorization.ResourcePayments, authorization.ActionWrite), s.CancelPayment)
	payments.POST("/:id/sync", s.Authorize(authorization.ResourcePayments, authorization.ActionRead), s.SyncPayment)

	refunds := api.Group("/refunds")
	refunds.POST("", s.Authorize(authorization.ResourceRefunds, authorization.ActionWrite), s.CreateRefund)
	refunds.GET("/:id", s.Authorize(authorization.ResourceRefunds, authorization.ActionRead), s.GetRefund)
	refunds.POST("/:id/sync", s.Authorize(authorization.ResourceRefunds, authorization.ActionRead), s.SyncRefund)

	accounts := api.Group("/connector_accounts")
	accounts.POST("", s.Authorize(authorization.ResourceConnectorAccounts, authorization.ActionWrite), s.CreateConnectorAccount)
	accounts.GET("", s.Authorize(authorization.ResourceConnectorAccounts, authorization.ActionRead), s.ListConnectorAccounts)
	accounts.GET("/:id", s.Authorize(authorization.ResourceConnectorAccounts, authorization.ActionRead), s.GetConnectorAccount)
	accounts.PATCH("/:id", s.Authorize(authorization.ResourceConnectorAccounts, authorization.ActionWrite), s.UpdateConnectorAccount)
	accounts.DELETE("/:id", s.Authorize(authorization.ResourceConnectorAccounts, authorization.ActionWrite), s.DeleteConnectorAccount)

	keys := api.Group("/api_keys")
	keys.POST("", s.Authorize(authorization.ResourceAPIKeys, authorization.ActionWrite), s.CreateAPIKey)
	keys.GET("", s.Authorize(authorization.ResourceAPIKeys, authorization.ActionRead), s.ListAPIKeys)
	keys.DELETE("/:id", s.Authorize(authorization.ResourceAPIKeys, authorization.ActionWrite), s.RevokeAPIKey)
}

// Handler returns the engine wrapped with request tracing.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.engine, "payrail.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(registerHTTPServer),
)

func registerHTTPServer(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.log.Info("shutting down http server")
			return srv.Shutdown(ctx)
		},
	})
}

func (s *Server) metricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}
