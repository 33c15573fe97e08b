package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/payrail/internal/merchantaccount/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, mca *domain.MerchantConnectorAccount) error {
	if db == nil {
		db = r.db
	}
	err := db.WithContext(ctx).Create(mca).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateLabel
	}
	return err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, mca *domain.MerchantConnectorAccount) error {
	if db == nil {
		db = r.db
	}
	err := db.WithContext(ctx).Save(mca).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateLabel
	}
	return err
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) (*domain.MerchantConnectorAccount, error) {
	if db == nil {
		db = r.db
	}
	var mca domain.MerchantConnectorAccount
	if err := db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		First(&mca).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mca, nil
}

func (r *repo) FindByLabel(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, label string) (*domain.MerchantConnectorAccount, error) {
	if db == nil {
		db = r.db
	}
	var mca domain.MerchantConnectorAccount
	if err := db.WithContext(ctx).
		Where("merchant_id = ? AND connector_label = ?", merchantID, label).
		First(&mca).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mca, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) ([]domain.MerchantConnectorAccount, error) {
	if db == nil {
		db = r.db
	}
	var items []domain.MerchantConnectorAccount
	err := db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("priority DESC").
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, connectorName string) ([]domain.MerchantConnectorAccount, error) {
	if db == nil {
		db = r.db
	}
	q := db.WithContext(ctx).
		Where("merchant_id = ? AND disabled = ?", merchantID, false)
	if name := strings.ToLower(strings.TrimSpace(connectorName)); name != "" {
		q = q.Where("connector_name = ?", name)
	}
	var items []domain.MerchantConnectorAccount
	err := q.Order("priority DESC").Order("created_at ASC").Find(&items).Error
	return items, err
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) error {
	if db == nil {
		db = r.db
	}
	res := db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		Delete(&domain.MerchantConnectorAccount{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
