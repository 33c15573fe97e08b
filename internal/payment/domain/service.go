package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	"gorm.io/gorm"
)

var (
	ErrPaymentNotFound       = errors.New("payment_not_found")
	ErrRefundNotFound        = errors.New("refund_not_found")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidCurrency       = errors.New("invalid_currency")
	ErrInvalidCaptureMethod  = errors.New("invalid_capture_method")
	ErrInvalidStatus         = errors.New("invalid_payment_status")
	ErrAmountExceedsLimit    = errors.New("amount_exceeds_limit")
	ErrNoConnectorAvailable  = errors.New("no_connector_available")
	ErrConnectorAccountState = errors.New("connector_account_unavailable")
	ErrIdempotencyConflict   = errors.New("idempotency_key_reused")
)

type CreatePaymentInput struct {
	MerchantID          snowflake.ID
	IdempotencyKey      string
	Amount              int64
	Currency            string
	CaptureMethod       connectordomain.CaptureMethod
	AuthenticationType  connectordomain.AuthenticationType
	PaymentMethodData   connectordomain.PaymentMethodData
	Connector           string
	MerchantConnectorID *snowflake.ID
	CustomerID          string
	CustomerName        string
	Email               string
	Description         string
	StatementDescriptor string
	ReturnURL           string
	BillingAddress      *connectordomain.Address
	Metadata            map[string]string
}

type CapturePaymentInput struct {
	// Amount defaults to the full capturable amount.
	Amount *int64
}

type CreateRefundInput struct {
	MerchantID snowflake.ID
	PaymentID  snowflake.ID
	// Amount defaults to the remaining refundable amount.
	Amount *int64
	Reason string
}

type IntentRepository interface {
	Insert(ctx context.Context, db *gorm.DB, intent *PaymentIntent) error
	Update(ctx context.Context, db *gorm.DB, intent *PaymentIntent) error
	FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) (*PaymentIntent, error)
	// FindByIDForUpdate locks the intent row until db's transaction ends.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) (*PaymentIntent, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, key string) (*PaymentIntent, error)
}

// AttemptRepository persists attempts. Depending on the storage mode it is backed by the
// database directly or by the Redis KV store with asynchronous draining.
type AttemptRepository interface {
	Insert(ctx context.Context, db *gorm.DB, attempt *PaymentAttempt) error
	Update(ctx context.Context, db *gorm.DB, attempt *PaymentAttempt) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentAttempt, error)
	// ListPending returns attempts whose outcome is unknown and that were last touched
	// before olderThan, oldest first.
	ListPending(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]PaymentAttempt, error)
}

type RefundRepository interface {
	Insert(ctx context.Context, db *gorm.DB, refund *Refund) error
	Update(ctx context.Context, db *gorm.DB, refund *Refund) error
	FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) (*Refund, error)
	ListByPayment(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) ([]Refund, error)
	ListPending(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]Refund, error)
}

type PaymentsService interface {
	Create(ctx context.Context, input CreatePaymentInput) (*Payment, error)
	Capture(ctx context.Context, merchantID, id snowflake.ID, input CapturePaymentInput) (*Payment, error)
	Cancel(ctx context.Context, merchantID, id snowflake.ID, reason string) (*Payment, error)
	Sync(ctx context.Context, merchantID, id snowflake.ID) (*Payment, error)
	Retrieve(ctx context.Context, merchantID, id snowflake.ID, forceSync bool) (*Payment, error)
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]PaymentAttempt, error)
}

type RefundsService interface {
	Create(ctx context.Context, input CreateRefundInput) (*Refund, error)
	Sync(ctx context.Context, merchantID, id snowflake.ID) (*Refund, error)
	Retrieve(ctx context.Context, merchantID, id snowflake.ID, forceSync bool) (*Refund, error)
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]Refund, error)
}
