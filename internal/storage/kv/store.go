package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/payrail/internal/config"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	"github.com/railzwaylabs/payrail/internal/payment/domain"
	"github.com/railzwaylabs/payrail/internal/payment/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	OpInsert = "insert"
	OpUpdate = "update"

	fieldData = "data"
	fieldOp   = "op"
	fieldID   = "id"
)

func attemptKey(id snowflake.ID) string {
	return "attempt:" + id.String()
}

// AttemptStore keeps attempts in Redis and queues every write on the drainer stream.
// Reads fall back to the database once a key has expired or was never written here.
type AttemptStore struct {
	rdb    *redis.Client
	db     *repository.AttemptStore
	stream string
	ttl    time.Duration
	log    *zap.Logger
}

func NewAttemptStore(rdb *redis.Client, db *repository.AttemptStore, cfg config.Config, log *zap.Logger) *AttemptStore {
	return &AttemptStore{
		rdb:    rdb,
		db:     db,
		stream: cfg.Storage.DrainerStream,
		ttl:    cfg.Storage.KVTTL,
		log:    log.Named("kv.attempts"),
	}
}

func (s *AttemptStore) Insert(ctx context.Context, _ *gorm.DB, attempt *domain.PaymentAttempt) error {
	return s.write(ctx, OpInsert, attempt)
}

func (s *AttemptStore) Update(ctx context.Context, _ *gorm.DB, attempt *domain.PaymentAttempt) error {
	return s.write(ctx, OpUpdate, attempt)
}

func (s *AttemptStore) write(ctx context.Context, op string, attempt *domain.PaymentAttempt) error {
	data, err := encodeAttempt(attempt)
	if err != nil {
		return err
	}
	key := attemptKey(attempt.ID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldData, data)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			Values: map[string]any{
				fieldOp:   op,
				fieldID:   attempt.ID.String(),
				fieldData: data,
			},
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("kv %s attempt %s: %w", op, attempt.ID, err)
	}
	return nil
}

func (s *AttemptStore) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentAttempt, error) {
	data, err := s.rdb.HGet(ctx, attemptKey(id), fieldData).Bytes()
	switch {
	case err == nil:
		return decodeAttempt(data)
	case errors.Is(err, redis.Nil):
		return s.db.FindByID(ctx, db, id)
	default:
		return nil, fmt.Errorf("kv get attempt %s: %w", id, err)
	}
}

// ListPending reads candidates from the database and replaces each with its KV copy when
// one exists, dropping those the KV copy shows as settled or recently touched.
func (s *AttemptStore) ListPending(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]domain.PaymentAttempt, error) {
	rows, err := s.db.ListPending(ctx, db, olderThan, limit)
	if err != nil || len(rows) == 0 {
		return rows, err
	}

	cmds := make([]*redis.StringCmd, len(rows))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i := range rows {
			cmds[i] = pipe.HGet(ctx, attemptKey(rows[i].ID), fieldData)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("kv overlay pending attempts: %w", err)
	}

	out := rows[:0]
	for i, row := range rows {
		data, err := cmds[i].Bytes()
		if err != nil {
			out = append(out, row)
			continue
		}
		cached, err := decodeAttempt(data)
		if err != nil {
			s.log.Warn("skipping undecodable kv attempt", zap.String("attempt_id", row.ID.String()), zap.Error(err))
			out = append(out, row)
			continue
		}
		if !pending(cached.Status) || !cached.UpdatedAt.Before(olderThan) {
			continue
		}
		out = append(out, *cached)
	}
	return out, nil
}

func pending(status connectordomain.AttemptStatus) bool {
	switch status {
	case connectordomain.AttemptStarted, connectordomain.AttemptPending, connectordomain.AttemptAuthenticationPending:
		return true
	}
	return false
}

var _ domain.AttemptRepository = (*AttemptStore)(nil)
