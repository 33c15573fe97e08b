package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	"github.com/railzwaylabs/payrail/internal/payment/domain"
	"gorm.io/gorm"
)

type refundRepo struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) domain.RefundRepository {
	return &refundRepo{db: db}
}

func (r *refundRepo) Insert(ctx context.Context, db *gorm.DB, refund *domain.Refund) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(refund).Error
}

func (r *refundRepo) Update(ctx context.Context, db *gorm.DB, refund *domain.Refund) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Save(refund).Error
}

func (r *refundRepo) FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) (*domain.Refund, error) {
	if db == nil {
		db = r.db
	}
	var refund domain.Refund
	if err := db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		First(&refund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

func (r *refundRepo) ListByPayment(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) ([]domain.Refund, error) {
	if db == nil {
		db = r.db
	}
	var refunds []domain.Refund
	err := db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&refunds).Error
	return refunds, err
}

func (r *refundRepo) ListPending(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]domain.Refund, error) {
	if db == nil {
		db = r.db
	}
	var refunds []domain.Refund
	err := db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []connectordomain.RefundStatus{
			connectordomain.RefundPending,
			connectordomain.RefundManualReview,
		}, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&refunds).Error
	return refunds, err
}
