package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/payrail/internal/clock"
	"github.com/railzwaylabs/payrail/internal/connector"
	"github.com/railzwaylabs/payrail/internal/connector/adapters/adyen"
	"github.com/railzwaylabs/payrail/internal/connector/adapters/stripe"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	"github.com/railzwaylabs/payrail/internal/merchantaccount/domain"
	"github.com/railzwaylabs/payrail/internal/merchantaccount/repository"
	"github.com/railzwaylabs/payrail/internal/security/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.MerchantConnectorAccount{}))
	return db
}

func newTestService(t *testing.T, v vault.Provider) (*Service, *gorm.DB) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	if v == nil {
		v, err = vault.NewAESVault("test-encryption-key")
		require.NoError(t, err)
	}
	svc := New(Params{
		Repo:     repository.New(db),
		Vault:    v,
		Registry: connector.NewRegistry(stripe.NewFactory(), adyen.NewFactory()),
		Clock:    clock.Fixed(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)),
		Node:     node,
		Log:      zap.NewNop(),
	})
	return svc.(*Service), db
}

var stripeDetails = json.RawMessage(`{"auth_type":"HeaderKey","api_key":"sk_test_123"}`)

func TestCreateDefaultsLabelAndEncryptsDetails(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()
	merchantID := snowflake.ID(42)

	mca, err := svc.Create(ctx, domain.CreateInput{
		MerchantID:     merchantID,
		ConnectorName:  " Stripe ",
		AccountDetails: stripeDetails,
		Priority:       10,
		Metadata:       map[string]any{"region": "us"},
	})
	require.NoError(t, err)
	assert.Equal(t, "stripe", mca.ConnectorName)
	assert.Equal(t, "stripe_default", mca.ConnectorLabel)
	assert.Equal(t, "HeaderKey", mca.AuthKind)

	var stored domain.MerchantConnectorAccount
	require.NoError(t, db.First(&stored, mca.ID).Error)
	assert.NotContains(t, string(stored.EncryptedDetails), "sk_test_123")

	auth, err := svc.ResolveAuth(ctx, &stored)
	require.NoError(t, err)
	assert.Equal(t, connectordomain.AuthHeaderKey, auth.Kind)
	assert.Equal(t, "sk_test_123", auth.APIKey)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   domain.CreateInput
		wantErr error
	}{
		{
			name:    "unknown connector",
			input:   domain.CreateInput{MerchantID: 1, ConnectorName: "paypal", AccountDetails: stripeDetails},
			wantErr: domain.ErrInvalidConnector,
		},
		{
			name:    "missing details",
			input:   domain.CreateInput{MerchantID: 1, ConnectorName: "stripe"},
			wantErr: domain.ErrInvalidDetails,
		},
		{
			name: "auth kind the connector cannot use",
			input: domain.CreateInput{
				MerchantID:     1,
				ConnectorName:  "adyen",
				AccountDetails: json.RawMessage(`{"auth_type":"HeaderKey","api_key":"k"}`),
			},
			wantErr: domain.ErrInvalidDetails,
		},
		{
			name: "unknown payment method",
			input: domain.CreateInput{
				MerchantID:            1,
				ConnectorName:         "stripe",
				AccountDetails:        stripeDetails,
				PaymentMethodsEnabled: []connectordomain.PaymentMethodType{"crypto"},
			},
			wantErr: domain.ErrInvalidPaymentMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateRejectsDuplicateLabel(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	input := domain.CreateInput{MerchantID: 7, ConnectorName: "stripe", Profile: "eu", AccountDetails: stripeDetails}
	first, err := svc.Create(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "stripe_eu", first.ConnectorLabel)

	_, err = svc.Create(ctx, input)
	require.ErrorIs(t, err, domain.ErrDuplicateLabel)

	// Labels are scoped to a merchant.
	input.MerchantID = 8
	_, err = svc.Create(ctx, input)
	require.NoError(t, err)
}

func TestListOrdersByPriorityAndListActiveSkipsDisabled(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	merchantID := snowflake.ID(9)

	low, err := svc.Create(ctx, domain.CreateInput{MerchantID: merchantID, ConnectorName: "stripe", Profile: "low", AccountDetails: stripeDetails, Priority: 1})
	require.NoError(t, err)
	high, err := svc.Create(ctx, domain.CreateInput{
		MerchantID:     merchantID,
		ConnectorName:  "adyen",
		AccountDetails: json.RawMessage(`{"auth_type":"BodyKey","api_key":"k","key1":"MerchantAccount"}`),
		Priority:       50,
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateInput{MerchantID: merchantID, ConnectorName: "stripe", Profile: "off", AccountDetails: stripeDetails, Priority: 100, Disabled: true})
	require.NoError(t, err)

	all, err := svc.List(ctx, merchantID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "stripe_off", all[0].ConnectorLabel)

	active, err := svc.ListActive(ctx, merchantID, "")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, high.ID, active[0].ID)
	assert.Equal(t, low.ID, active[1].ID)

	onlyStripe, err := svc.ListActive(ctx, merchantID, "STRIPE")
	require.NoError(t, err)
	require.Len(t, onlyStripe, 1)
	assert.Equal(t, low.ID, onlyStripe[0].ID)
}

func TestUpdatePartial(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	merchantID := snowflake.ID(11)

	mca, err := svc.Create(ctx, domain.CreateInput{MerchantID: merchantID, ConnectorName: "stripe", AccountDetails: stripeDetails, Priority: 3})
	require.NoError(t, err)
	other, err := svc.Create(ctx, domain.CreateInput{MerchantID: merchantID, ConnectorName: "stripe", Profile: "backup", AccountDetails: stripeDetails})
	require.NoError(t, err)

	disabled := true
	priority := 99
	methods := []connectordomain.PaymentMethodType{connectordomain.PaymentMethodCard}
	updated, err := svc.Update(ctx, merchantID, mca.ID, domain.UpdateInput{
		Disabled:              &disabled,
		Priority:              &priority,
		AccountDetails:        json.RawMessage(`{"auth_type":"HeaderKey","api_key":"sk_test_rotated"}`),
		PaymentMethodsEnabled: &methods,
	})
	require.NoError(t, err)
	assert.True(t, updated.Disabled)
	assert.Equal(t, 99, updated.Priority)
	assert.Equal(t, "stripe_default", updated.ConnectorLabel)
	assert.True(t, updated.AcceptsPaymentMethod(connectordomain.PaymentMethodCard))
	assert.False(t, updated.AcceptsPaymentMethod(connectordomain.PaymentMethodWallet))

	got, err := svc.Get(ctx, merchantID, mca.ID)
	require.NoError(t, err)
	auth, err := svc.ResolveAuth(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "sk_test_rotated", auth.APIKey)

	_, err = svc.Update(ctx, merchantID, mca.ID, domain.UpdateInput{ConnectorLabel: &other.ConnectorLabel})
	require.ErrorIs(t, err, domain.ErrDuplicateLabel)
}

func TestGetAndDeleteAreScopedToMerchant(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	mca, err := svc.Create(ctx, domain.CreateInput{MerchantID: 1, ConnectorName: "stripe", AccountDetails: stripeDetails})
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, mca.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, 2, mca.ID), domain.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, 1, mca.ID))
	_, err = svc.Get(ctx, 1, mca.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveAuthRotatesRetiredKey(t *testing.T) {
	old, err := vault.NewAESVault("old-key")
	require.NoError(t, err)
	svc, db := newTestService(t, old)
	ctx := context.Background()

	mca, err := svc.Create(ctx, domain.CreateInput{MerchantID: 5, ConnectorName: "stripe", AccountDetails: stripeDetails})
	require.NoError(t, err)

	rotated, err := vault.NewAESVault("new-key", "old-key")
	require.NoError(t, err)
	svc.vault = rotated

	var stored domain.MerchantConnectorAccount
	require.NoError(t, db.First(&stored, mca.ID).Error)
	require.True(t, rotated.NeedsRotation(stored.EncryptedDetails))

	auth, err := svc.ResolveAuth(ctx, &stored)
	require.NoError(t, err)
	assert.Equal(t, "sk_test_123", auth.APIKey)

	var after domain.MerchantConnectorAccount
	require.NoError(t, db.First(&after, mca.ID).Error)
	assert.False(t, rotated.NeedsRotation(after.EncryptedDetails))
}
