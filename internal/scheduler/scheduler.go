package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/railzwaylabs/payrail/internal/clock"
	"github.com/railzwaylabs/payrail/internal/config"
	paymentdomain "github.com/railzwaylabs/payrail/internal/payment/domain"
	paymentservice "github.com/railzwaylabs/payrail/internal/payment/service"
	"github.com/railzwaylabs/payrail/internal/storage/kv"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AttemptSyncer interface {
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]paymentdomain.PaymentAttempt, error)
	SyncAttempt(ctx context.Context, attempt paymentdomain.PaymentAttempt) (*paymentdomain.Payment, error)
}

type RefundSyncer interface {
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]paymentdomain.Refund, error)
	SyncRefund(ctx context.Context, refund *paymentdomain.Refund) (*paymentdomain.Refund, error)
}

type StreamDrainer interface {
	DrainOnce(ctx context.Context) (int, error)
	Trim(ctx context.Context, before time.Time) (int64, error)
}

type Params struct {
	fx.In

	Config   config.Config
	Payments *paymentservice.PaymentsService
	Refunds  *paymentservice.RefundsService
	Drainer  *kv.Drainer
	Clock    clock.Clock
	Log      *zap.Logger
}

// Scheduler runs the background reconciliation jobs: syncing payments and refunds whose
// outcome is still open, and in KV mode draining attempt writes into the database.
type Scheduler struct {
	cfg      config.SchedulerConfig
	kvTTL    time.Duration
	payments AttemptSyncer
	refunds  RefundSyncer
	drainer  StreamDrainer
	clock    clock.Clock
	log      *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(p Params) *Scheduler {
	var drainer StreamDrainer
	if p.Config.Storage.Mode == config.StorageModeRedisKV {
		drainer = p.Drainer
	}
	return newScheduler(p.Config.Scheduler, p.Config.Storage.KVTTL, p.Payments, p.Refunds, drainer, p.Clock, p.Log)
}

func newScheduler(cfg config.SchedulerConfig, kvTTL time.Duration, payments AttemptSyncer, refunds RefundSyncer, drainer StreamDrainer, clk clock.Clock, log *zap.Logger) *Scheduler {
	if cfg.PSyncInterval <= 0 {
		cfg.PSyncInterval = time.Minute
	}
	if cfg.PSyncBatch <= 0 {
		cfg.PSyncBatch = 50
	}
	if cfg.PSyncWorkers <= 0 {
		cfg.PSyncWorkers = 4
	}
	if cfg.DrainerInterval <= 0 {
		cfg.DrainerInterval = 2 * time.Second
	}
	return &Scheduler{
		cfg:      cfg,
		kvTTL:    kvTTL,
		payments: payments,
		refunds:  refunds,
		drainer:  drainer,
		clock:    clk,
		log:      log.Named("scheduler"),
	}
}

// RunForever ticks the jobs until ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	s.log.Info("scheduler started",
		zap.Duration("psync_interval", s.cfg.PSyncInterval),
		zap.Bool("drainer", s.drainer != nil),
	)

	psync := time.NewTicker(s.cfg.PSyncInterval)
	defer psync.Stop()

	var drain, retention <-chan time.Time
	if s.drainer != nil {
		drainTicker := time.NewTicker(s.cfg.DrainerInterval)
		defer drainTicker.Stop()
		drain = drainTicker.C

		retentionTicker := time.NewTicker(time.Hour)
		defer retentionTicker.Stop()
		retention = retentionTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-psync.C:
			s.runJob(ctx, "psync", s.SyncPending)
		case <-drain:
			s.runJob(ctx, "drain_attempts", s.Drain)
		case <-retention:
			s.runJob(ctx, "trim_drainer_stream", s.TrimDrainerStream)
		}
	}
}

// Start runs the scheduler in the background until Stop is called.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		s.RunForever(ctx)
	}(s.done)
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runJob(ctx context.Context, name string, job func(context.Context) (int, error)) {
	start := time.Now()
	processed, err := job(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("scheduler job failed", zap.String("job", name), zap.Int("processed", processed), zap.Error(err))
		return
	}
	if processed > 0 {
		s.log.Info("scheduler job finished",
			zap.String("job", name),
			zap.Int("processed", processed),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// SyncPending asks the connectors about attempts and refunds that have been open longer
// than the configured minimum age. One failing item does not stop the batch.
func (s *Scheduler) SyncPending(ctx context.Context) (int, error) {
	olderThan := s.clock.Now(ctx).Add(-s.cfg.PSyncMinAge)

	attempts, err := s.payments.ListPending(ctx, olderThan, s.cfg.PSyncBatch)
	if err != nil {
		return 0, err
	}
	refunds, err := s.refunds.ListPending(ctx, olderThan, s.cfg.PSyncBatch)
	if err != nil {
		return 0, err
	}

	var synced, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.PSyncWorkers)
	for _, attempt := range attempts {
		g.Go(func() error {
			if _, err := s.payments.SyncAttempt(gctx, attempt); err != nil {
				failed.Add(1)
				s.log.Warn("payment sync failed",
					zap.String("payment_id", attempt.PaymentID.String()),
					zap.String("attempt_id", attempt.ID.String()),
					zap.Error(err),
				)
				return nil
			}
			synced.Add(1)
			return nil
		})
	}
	for i := range refunds {
		refund := &refunds[i]
		g.Go(func() error {
			if _, err := s.refunds.SyncRefund(gctx, refund); err != nil {
				failed.Add(1)
				s.log.Warn("refund sync failed", zap.String("refund_id", refund.ID.String()), zap.Error(err))
				return nil
			}
			synced.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(synced.Load()), err
	}
	if n := failed.Load(); n > 0 {
		s.log.Warn("sync batch finished with failures", zap.Int64("failed", n))
	}
	return int(synced.Load()), nil
}

func (s *Scheduler) Drain(ctx context.Context) (int, error) {
	if s.drainer == nil {
		return 0, nil
	}
	return s.drainer.DrainOnce(ctx)
}
