package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/payrail/internal/apikey/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *domain.APIKey) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(key).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, key *domain.APIKey) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Save(key).Error
}

func (r *repo) FindByHash(ctx context.Context, db *gorm.DB, hash string) (*domain.APIKey, error) {
	if db == nil {
		db = r.db
	}
	var key domain.APIKey
	if err := db.WithContext(ctx).Where("key_hash = ?", hash).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &key, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) (*domain.APIKey, error) {
	if db == nil {
		db = r.db
	}
	var key domain.APIKey
	if err := db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &key, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) ([]domain.APIKey, error) {
	if db == nil {
		db = r.db
	}
	var keys []domain.APIKey
	err := db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}
