package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/payrail/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type intentRepo struct {
	db *gorm.DB
}

func NewIntentRepository(db *gorm.DB) domain.IntentRepository {
	return &intentRepo{db: db}
}

func (r *intentRepo) Insert(ctx context.Context, db *gorm.DB, intent *domain.PaymentIntent) error {
	if db == nil {
		db = r.db
	}
	err := db.WithContext(ctx).Create(intent).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrIdempotencyConflict
	}
	return err
}

func (r *intentRepo) Update(ctx context.Context, db *gorm.DB, intent *domain.PaymentIntent) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Save(intent).Error
}

func (r *intentRepo) FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) (*domain.PaymentIntent, error) {
	if db == nil {
		db = r.db
	}
	var intent domain.PaymentIntent
	if err := db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *intentRepo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) (*domain.PaymentIntent, error) {
	if db == nil {
		db = r.db
	}
	var intent domain.PaymentIntent
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *intentRepo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, key string) (*domain.PaymentIntent, error) {
	if db == nil {
		db = r.db
	}
	var intent domain.PaymentIntent
	if err := db.WithContext(ctx).
		Where("merchant_id = ? AND idempotency_key = ?", merchantID, key).
		First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}
