package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	"github.com/railzwaylabs/payrail/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var pendingAttemptStatuses = []connectordomain.AttemptStatus{
	connectordomain.AttemptStarted,
	connectordomain.AttemptPending,
	connectordomain.AttemptAuthenticationPending,
}

// AttemptStore is the database backed attempt repository. In KV storage mode it is the
// drain target.
type AttemptStore struct {
	db *gorm.DB
}

func NewAttemptStore(db *gorm.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (r *AttemptStore) Insert(ctx context.Context, db *gorm.DB, attempt *domain.PaymentAttempt) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(attempt).Error
}

func (r *AttemptStore) Update(ctx context.Context, db *gorm.DB, attempt *domain.PaymentAttempt) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Save(attempt).Error
}

func (r *AttemptStore) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentAttempt, error) {
	if db == nil {
		db = r.db
	}
	var attempt domain.PaymentAttempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptStore) ListPending(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]domain.PaymentAttempt, error) {
	if db == nil {
		db = r.db
	}
	var attempts []domain.PaymentAttempt
	err := db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", pendingAttemptStatuses, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

var upsertColumns = []string{
	"status", "connector_transaction_id", "redirect_url",
	"error_code", "error_message", "error_reason",
	"connector_metadata", "connector_response", "updated_at",
}

// Upsert writes the attempt unless the stored row is newer. updated_at is taken from the
// attempt so replayed writes keep their order.
func (r *AttemptStore) Upsert(ctx context.Context, attempt *domain.PaymentAttempt) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "payment_attempts.updated_at <= excluded.updated_at"},
		}},
	}).Create(attempt).Error
}
