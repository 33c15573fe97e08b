package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/payrail/internal/clock"
	"github.com/railzwaylabs/payrail/internal/config"
	"github.com/railzwaylabs/payrail/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePayments struct {
	mu        sync.Mutex
	pending   []domain.PaymentAttempt
	olderThan time.Time
	synced    []snowflake.ID
	failOn    snowflake.ID
}

func (f *fakePayments) ListPending(_ context.Context, olderThan time.Time, limit int) ([]domain.PaymentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.olderThan = olderThan
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakePayments) SyncAttempt(_ context.Context, attempt domain.PaymentAttempt) (*domain.Payment, error) {
	if attempt.ID == f.failOn {
		return nil, errors.New("connector unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, attempt.ID)
	return &domain.Payment{}, nil
}

type fakeRefunds struct {
	pending []domain.Refund
	synced  atomic.Int32
}

func (f *fakeRefunds) ListPending(context.Context, time.Time, int) ([]domain.Refund, error) {
	return f.pending, nil
}

func (f *fakeRefunds) SyncRefund(_ context.Context, r *domain.Refund) (*domain.Refund, error) {
	f.synced.Add(1)
	return r, nil
}

type fakeDrainer struct {
	drains  atomic.Int32
	trimmed time.Time
}

func (f *fakeDrainer) DrainOnce(context.Context) (int, error) {
	f.drains.Add(1)
	return 1, nil
}

func (f *fakeDrainer) Trim(_ context.Context, before time.Time) (int64, error) {
	f.trimmed = before
	return 3, nil
}

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestSyncPendingSyncsEveryItem(t *testing.T) {
	payments := &fakePayments{
		pending: []domain.PaymentAttempt{{ID: 1}, {ID: 2}, {ID: 3}},
		failOn:  2,
	}
	refunds := &fakeRefunds{pending: []domain.Refund{{ID: 10}, {ID: 11}}}
	s := newScheduler(config.SchedulerConfig{
		PSyncBatch:   10,
		PSyncMinAge:  2 * time.Minute,
		PSyncWorkers: 2,
	}, 0, payments, refunds, nil, clock.Fixed(now), zap.NewNop())

	n, err := s.SyncPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.ElementsMatch(t, []snowflake.ID{1, 3}, payments.synced)
	assert.EqualValues(t, 2, refunds.synced.Load())
	assert.Equal(t, now.Add(-2*time.Minute), payments.olderThan)
}

func TestSyncPendingRespectsBatch(t *testing.T) {
	payments := &fakePayments{pending: []domain.PaymentAttempt{{ID: 1}, {ID: 2}, {ID: 3}}}
	s := newScheduler(config.SchedulerConfig{PSyncBatch: 2}, 0, payments, &fakeRefunds{}, nil, clock.Fixed(now), zap.NewNop())

	n, err := s.SyncPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDrainWithoutKVIsNoop(t *testing.T) {
	s := newScheduler(config.SchedulerConfig{}, time.Hour, &fakePayments{}, &fakeRefunds{}, nil, clock.Fixed(now), zap.NewNop())

	n, err := s.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.TrimDrainerStream(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTrimDrainerStreamUsesRetention(t *testing.T) {
	drainer := &fakeDrainer{}
	s := newScheduler(config.SchedulerConfig{}, 24*time.Hour, &fakePayments{}, &fakeRefunds{}, drainer, clock.Fixed(now), zap.NewNop())

	n, err := s.TrimDrainerStream(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, now.Add(-24*time.Hour), drainer.trimmed)
}

func TestStartStopDoesNotLeak(t *testing.T) {
	drainer := &fakeDrainer{}
	s := newScheduler(config.SchedulerConfig{
		PSyncInterval:   10 * time.Millisecond,
		DrainerInterval: 5 * time.Millisecond,
	}, 0, &fakePayments{}, &fakeRefunds{}, drainer, clock.Fixed(now), zap.NewNop())

	s.Start()
	s.Start()
	assert.Eventually(t, func() bool { return drainer.drains.Load() >= 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
