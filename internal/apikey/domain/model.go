package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("api_key_not_found")
	ErrInvalidRole  = errors.New("invalid_role")
	ErrInvalidName  = errors.New("invalid_name")
)

const KeyPrefix = "pr"

type Role string

const (
	RoleMerchantAdmin     Role = "merchant_admin"
	RoleMerchantDeveloper Role = "merchant_developer"
	RoleMerchantReadonly  Role = "merchant_readonly"
)

func (r Role) Valid() bool {
	switch r {
	case RoleMerchantAdmin, RoleMerchantDeveloper, RoleMerchantReadonly:
		return true
	}
	return false
}

// APIKey is a merchant credential. Only the SHA-256 hash of the secret is stored.
type APIKey struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	MerchantID snowflake.ID `json:"merchant_id" gorm:"not null;index"`
	Name       string       `json:"name" gorm:"type:varchar(255);not null"`
	Prefix     string       `json:"prefix" gorm:"type:varchar(32);not null"`
	KeyHash    string       `json:"-" gorm:"type:varchar(64);not null;uniqueIndex"`
	Role       Role         `json:"role" gorm:"type:varchar(32);not null"`
	IsActive   bool         `json:"is_active" gorm:"not null;default:true"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null"`
}

func (APIKey) TableName() string { return "api_keys" }

// Usable reports whether the key is active and not expired at now.
func (k APIKey) Usable(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	return k.ExpiresAt == nil || k.ExpiresAt.After(now)
}

func HashAPIKey(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

type CreateInput struct {
	MerchantID snowflake.ID
	Name       string
	Role       Role
	ExpiresAt  *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	Update(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindByHash(ctx context.Context, db *gorm.DB, hash string) (*APIKey, error)
	FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) (*APIKey, error)
	List(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) ([]APIKey, error)
}

type Service interface {
	// Create returns the stored key and its plaintext secret, which is never retrievable again.
	Create(ctx context.Context, input CreateInput) (*APIKey, string, error)
	Resolve(ctx context.Context, plain string) (*APIKey, error)
	Revoke(ctx context.Context, merchantID, id snowflake.ID) error
	List(ctx context.Context, merchantID snowflake.ID) ([]APIKey, error)
}
