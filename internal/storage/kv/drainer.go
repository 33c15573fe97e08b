package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/railzwaylabs/payrail/internal/config"
	"github.com/railzwaylabs/payrail/internal/observability"
	"github.com/railzwaylabs/payrail/internal/payment/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type DrainerParams struct {
	fx.In

	Redis   *redis.Client
	DB      *repository.AttemptStore
	Config  config.Config
	Metrics *observability.Metrics
	Log     *zap.Logger
}

// Drainer moves queued attempt writes from the stream into the database. Entries are
// acknowledged only after the upsert succeeds, so a failed batch is retried on the next
// run from the consumer's pending list.
type Drainer struct {
	rdb      *redis.Client
	db       *repository.AttemptStore
	stream   string
	group    string
	consumer string
	batch    int64
	metrics  *observability.Metrics
	log      *zap.Logger
}

func NewDrainer(p DrainerParams) *Drainer {
	consumer, err := os.Hostname()
	if err != nil || consumer == "" {
		consumer = "drainer"
	}
	batch := int64(p.Config.Storage.DrainerBatch)
	if batch <= 0 {
		batch = 100
	}
	return &Drainer{
		rdb:      p.Redis,
		db:       p.DB,
		stream:   p.Config.Storage.DrainerStream,
		group:    p.Config.Storage.DrainerGroup,
		consumer: consumer,
		batch:    batch,
		metrics:  p.Metrics,
		log:      p.Log.Named("kv.drainer"),
	}
}

// EnsureGroup creates the consumer group and the stream if either is missing.
func (d *Drainer) EnsureGroup(ctx context.Context) error {
	err := d.rdb.XGroupCreateMkStream(ctx, d.stream, d.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create drainer group: %w", err)
	}
	return nil
}

// DrainOnce persists this consumer's unacknowledged entries followed by one batch of new
// ones. It returns how many entries were written.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	if err := d.EnsureGroup(ctx); err != nil {
		return 0, err
	}
	total := 0
	for _, start := range []string{"0", ">"} {
		n, err := d.drain(ctx, start)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (d *Drainer) drain(ctx context.Context, start string) (int, error) {
	streams, err := d.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    d.group,
		Consumer: d.consumer,
		Streams:  []string{d.stream, start},
		Count:    d.batch,
		Block:    -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read drainer stream: %w", err)
	}

	written := 0
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			ok, err := d.apply(ctx, msg)
			if err != nil {
				return written, err
			}
			if ok {
				written++
			}
		}
	}
	return written, nil
}

func (d *Drainer) apply(ctx context.Context, msg redis.XMessage) (bool, error) {
	op, _ := msg.Values[fieldOp].(string)
	data, _ := msg.Values[fieldData].(string)

	attempt, err := decodeAttempt([]byte(data))
	if err != nil {
		d.log.Error("dropping undecodable drainer entry", zap.String("entry_id", msg.ID), zap.String("op", op), zap.Error(err))
		d.metrics.DrainedEntries.WithLabelValues(op, "invalid").Inc()
		return false, d.ack(ctx, msg.ID)
	}

	if err := d.db.Upsert(ctx, attempt); err != nil {
		d.metrics.DrainedEntries.WithLabelValues(op, "error").Inc()
		return false, fmt.Errorf("drain attempt %s: %w", attempt.ID, err)
	}
	d.metrics.DrainedEntries.WithLabelValues(op, "ok").Inc()
	return true, d.ack(ctx, msg.ID)
}

func (d *Drainer) ack(ctx context.Context, id string) error {
	if err := d.rdb.XAck(ctx, d.stream, d.group, id).Err(); err != nil {
		return fmt.Errorf("ack drainer entry %s: %w", id, err)
	}
	return nil
}

// Trim removes stream entries written before the given time. It never trims past the
// group's last delivered entry or the oldest entry still waiting for acknowledgement.
func (d *Drainer) Trim(ctx context.Context, before time.Time) (int64, error) {
	if err := d.EnsureGroup(ctx); err != nil {
		return 0, err
	}
	minID := fmt.Sprintf("%d-0", before.UnixMilli())

	groups, err := d.rdb.XInfoGroups(ctx, d.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("inspect drainer group: %w", err)
	}
	for _, g := range groups {
		if g.Name == d.group && streamIDBefore(g.LastDeliveredID, minID) {
			minID = g.LastDeliveredID
		}
	}

	pending, err := d.rdb.XPending(ctx, d.stream, d.group).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("inspect drainer pending entries: %w", err)
	}
	if pending != nil && pending.Count > 0 && streamIDBefore(pending.Lower, minID) {
		minID = pending.Lower
	}

	n, err := d.rdb.XTrimMinID(ctx, d.stream, minID).Result()
	if err != nil {
		return 0, fmt.Errorf("trim drainer stream: %w", err)
	}
	return n, nil
}

// streamIDBefore compares two stream ids of the form <ms>-<seq>.
func streamIDBefore(a, b string) bool {
	am, as := splitStreamID(a)
	bm, bs := splitStreamID(b)
	if am != bm {
		return am < bm
	}
	return as < bs
}

func splitStreamID(id string) (uint64, uint64) {
	ms, seq, _ := strings.Cut(id, "-")
	m, _ := strconv.ParseUint(ms, 10, 64)
	s, _ := strconv.ParseUint(seq, 10, 64)
	return m, s
}
