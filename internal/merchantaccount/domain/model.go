package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound             = errors.New("connector_account_not_found")
	ErrDuplicateLabel       = errors.New("duplicate_connector_label")
	ErrInvalidConnector     = errors.New("invalid_connector")
	ErrInvalidDetails       = errors.New("invalid_connector_account_details")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrDisabled             = errors.New("connector_account_disabled")
)

const DefaultProfile = "default"

// MerchantConnectorAccount is a merchant's credentials and routing preferences for one
// connector. Credentials are stored encrypted and never serialized.
type MerchantConnectorAccount struct {
	ID                    snowflake.ID   `json:"id" gorm:"primaryKey"`
	MerchantID            snowflake.ID   `json:"merchant_id" gorm:"not null;uniqueIndex:ux_mca_merchant_label,priority:1"`
	ConnectorName         string         `json:"connector_name" gorm:"type:varchar(64);not null;index"`
	ConnectorLabel        string         `json:"connector_label" gorm:"type:varchar(255);not null;uniqueIndex:ux_mca_merchant_label,priority:2"`
	AuthKind              string         `json:"auth_type" gorm:"column:auth_type;type:varchar(32);not null"`
	EncryptedDetails      []byte         `json:"-" gorm:"column:connector_account_details;type:bytea;not null"`
	TestMode              bool           `json:"test_mode" gorm:"not null;default:false"`
	Disabled              bool           `json:"disabled" gorm:"not null;default:false"`
	Priority              int            `json:"priority" gorm:"not null;default:0"`
	Metadata              datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	PaymentMethodsEnabled datatypes.JSON `json:"payment_methods_enabled,omitempty" gorm:"type:jsonb"`
	CreatedAt             time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt             time.Time      `json:"updated_at" gorm:"not null"`
}

func (MerchantConnectorAccount) TableName() string { return "merchant_connector_accounts" }

// AcceptsPaymentMethod reports whether the account is enabled for the method. An empty
// list enables every method.
func (m MerchantConnectorAccount) AcceptsPaymentMethod(pm connectordomain.PaymentMethodType) bool {
	if len(m.PaymentMethodsEnabled) == 0 {
		return true
	}
	var methods []connectordomain.PaymentMethodType
	if err := json.Unmarshal(m.PaymentMethodsEnabled, &methods); err != nil {
		return false
	}
	if len(methods) == 0 {
		return true
	}
	for _, method := range methods {
		if method == pm {
			return true
		}
	}
	return false
}

type CreateInput struct {
	MerchantID            snowflake.ID
	ConnectorName         string
	Profile               string
	ConnectorLabel        string
	AccountDetails        json.RawMessage
	TestMode              bool
	Disabled              bool
	Priority              int
	Metadata              map[string]any
	PaymentMethodsEnabled []connectordomain.PaymentMethodType
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	ConnectorLabel        *string
	AccountDetails        json.RawMessage
	TestMode              *bool
	Disabled              *bool
	Priority              *int
	Metadata              map[string]any
	PaymentMethodsEnabled *[]connectordomain.PaymentMethodType
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, mca *MerchantConnectorAccount) error
	Update(ctx context.Context, db *gorm.DB, mca *MerchantConnectorAccount) error
	FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) (*MerchantConnectorAccount, error)
	FindByLabel(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, label string) (*MerchantConnectorAccount, error)
	List(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) ([]MerchantConnectorAccount, error)
	ListActive(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, connectorName string) ([]MerchantConnectorAccount, error)
	Delete(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) error
}

type Service interface {
	Create(ctx context.Context, input CreateInput) (*MerchantConnectorAccount, error)
	Get(ctx context.Context, merchantID, id snowflake.ID) (*MerchantConnectorAccount, error)
	List(ctx context.Context, merchantID snowflake.ID) ([]MerchantConnectorAccount, error)
	Update(ctx context.Context, merchantID, id snowflake.ID, input UpdateInput) (*MerchantConnectorAccount, error)
	Delete(ctx context.Context, merchantID, id snowflake.ID) error

	// ResolveAuth decrypts the account credentials for a connector call.
	ResolveAuth(ctx context.Context, mca *MerchantConnectorAccount) (connectordomain.ConnectorAuthType, error)
	// ListActive returns enabled accounts ordered by priority, optionally for one connector.
	ListActive(ctx context.Context, merchantID snowflake.ID, connectorName string) ([]MerchantConnectorAccount, error)
}
