package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	apikeydomain "github.com/railzwaylabs/payrail/internal/apikey/domain"
	apikeyrepository "github.com/railzwaylabs/payrail/internal/apikey/repository"
	apikeyservice "github.com/railzwaylabs/payrail/internal/apikey/service"
	"github.com/railzwaylabs/payrail/internal/authorization"
	"github.com/railzwaylabs/payrail/internal/clock"
	"github.com/railzwaylabs/payrail/internal/config"
	"github.com/railzwaylabs/payrail/internal/connector"
	"github.com/railzwaylabs/payrail/internal/connector/adapters/stripe"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	mcadomain "github.com/railzwaylabs/payrail/internal/merchantaccount/domain"
	mcarepository "github.com/railzwaylabs/payrail/internal/merchantaccount/repository"
	mcaservice "github.com/railzwaylabs/payrail/internal/merchantaccount/service"
	"github.com/railzwaylabs/payrail/internal/migration"
	paymentdomain "github.com/railzwaylabs/payrail/internal/payment/domain"
	"github.com/railzwaylabs/payrail/internal/security/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testMerchant = snowflake.ID(7)

type fakePayments struct {
	mu        sync.Mutex
	created   []paymentdomain.CreatePaymentInput
	captured  *paymentdomain.CapturePaymentInput
	forceSync bool
	err       error
}

func (f *fakePayments) payment(id snowflake.ID) *paymentdomain.Payment {
	return &paymentdomain.Payment{Intent: paymentdomain.PaymentIntent{
		ID:         id,
		MerchantID: testMerchant,
		Status:     paymentdomain.IntentSucceeded,
		Amount:     1000,
		Currency:   "USD",
	}}
}

func (f *fakePayments) Create(_ context.Context, input paymentdomain.CreatePaymentInput) (*paymentdomain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, input)
	return f.payment(42), nil
}

func (f *fakePayments) Capture(_ context.Context, _, id snowflake.ID, input paymentdomain.CapturePaymentInput) (*paymentdomain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.captured = &input
	return f.payment(id), nil
}

func (f *fakePayments) Cancel(_ context.Context, _, id snowflake.ID, _ string) (*paymentdomain.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.payment(id), nil
}

func (f *fakePayments) Sync(_ context.Context, _, id snowflake.ID) (*paymentdomain.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.payment(id), nil
}

func (f *fakePayments) Retrieve(_ context.Context, merchantID, id snowflake.ID, forceSync bool) (*paymentdomain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if merchantID != testMerchant {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	f.forceSync = forceSync
	return f.payment(id), nil
}

func (f *fakePayments) ListPending(context.Context, time.Time, int) ([]paymentdomain.PaymentAttempt, error) {
	return nil, nil
}

type fakeRefunds struct {
	created []paymentdomain.CreateRefundInput
	err     error
}

func (f *fakeRefunds) Create(_ context.Context, input paymentdomain.CreateRefundInput) (*paymentdomain.Refund, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, input)
	return &paymentdomain.Refund{ID: 77, PaymentID: input.PaymentID, MerchantID: input.MerchantID, Status: connectordomain.RefundPending}, nil
}

func (f *fakeRefunds) Sync(_ context.Context, _, id snowflake.ID) (*paymentdomain.Refund, error) {
	return &paymentdomain.Refund{ID: id, Status: connectordomain.RefundSuccess}, nil
}

func (f *fakeRefunds) Retrieve(_ context.Context, _, id snowflake.ID, _ bool) (*paymentdomain.Refund, error) {
	return &paymentdomain.Refund{ID: id, Status: connectordomain.RefundPending}, nil
}

func (f *fakeRefunds) ListPending(context.Context, time.Time, int) ([]paymentdomain.Refund, error) {
	return nil, nil
}

type testServer struct {
	srv      *Server
	payments *fakePayments
	refunds  *fakeRefunds
	apiKeys  apikeydomain.Service
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.AutoMigrate(context.Background(), db))
	return db
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.Fixed(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	registry := connector.NewRegistry(stripe.NewFactory())
	v, err := vault.NewAESVault("test-encryption-key")
	require.NoError(t, err)

	authorizer, err := authorization.New(db, zap.NewNop())
	require.NoError(t, err)
	gate, err := migration.NewSchemaGate(config.Config{Database: config.DatabaseConfig{Driver: "sqlite"}}, db)
	require.NoError(t, err)

	apiKeys := apikeyservice.New(apikeyservice.Params{
		Repo:  apikeyrepository.Provide(db),
		Clock: clk,
		Node:  node,
		Log:   zap.NewNop(),
	})
	payments := &fakePayments{}
	refunds := &fakeRefunds{}
	srv, err := NewServer(Params{
		Log:        zap.NewNop(),
		DB:         db,
		SchemaGate: gate,
		Gatherer:   prometheus.NewRegistry(),
		Registry:   registry,
		Payments:   payments,
		Refunds:    refunds,
		Accounts: mcaservice.New(mcaservice.Params{
			Repo:     mcarepository.New(db),
			Vault:    v,
			Registry: registry,
			Clock:    clk,
			Node:     node,
			Log:      zap.NewNop(),
		}),
		APIKeys:    apiKeys,
		Authorizer: authorizer,
	})
	require.NoError(t, err)
	return &testServer{srv: srv, payments: payments, refunds: refunds, apiKeys: apiKeys}
}

func (ts *testServer) key(t *testing.T, role apikeydomain.Role) string {
	_, secret, err := ts.apiKeys.Create(context.Background(), apikeydomain.CreateInput{
		MerchantID: testMerchant,
		Name:       string(role),
		Role:       role,
	})
	require.NoError(t, err)
	return secret
}

func (ts *testServer) do(method, path, key string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

var cardPayment = map[string]any{
	"amount":   1000,
	"currency": "USD",
	"payment_method_data": map[string]any{
		"type": "card",
		"card": map[string]any{"number": "4242424242424242", "exp_month": "12", "exp_year": "30", "cvc": "123"},
	},
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready":true`)

	rec = ts.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", "", nil, HeaderRequestID, "req-123")
	assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))

	rec = ts.do(http.MethodGet, "/healthz", "", nil)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestListConnectorsIsPublic(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/v1/connectors", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []connector.Info
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "stripe", list[0].Name)
	assert.Contains(t, list[0].Flows, connectordomain.FlowAuthorize)
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		key  string
	}{
		{name: "missing"},
		{name: "unknown", key: "pr_test_000000"},
		{name: "wrong prefix", key: "sk_test_123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodGet, "/v1/payments/42", tt.key, nil)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			env := decode(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, "unauthorized", env.Error.Code)
		})
	}
}

func TestRolesAreEnforced(t *testing.T) {
	ts := newTestServer(t)
	readonly := ts.key(t, apikeydomain.RoleMerchantReadonly)
	developer := ts.key(t, apikeydomain.RoleMerchantDeveloper)

	rec := ts.do(http.MethodPost, "/v1/payments", readonly, cardPayment)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/v1/payments/42", readonly, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/v1/connector_accounts", developer, map[string]any{
		"connector_name":            "stripe",
		"connector_account_details": map[string]any{"auth_type": "HeaderKey", "api_key": "sk_test_1"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreatePayment(t *testing.T) {
	ts := newTestServer(t)
	key := ts.key(t, apikeydomain.RoleMerchantDeveloper)

	body := map[string]any{}
	for k, v := range cardPayment {
		body[k] = v
	}
	body["connector"] = "stripe"
	body["capture_method"] = "manual"
	body["merchant_connector_id"] = "99"

	rec := ts.do(http.MethodPost, "/v1/payments", key, body, "Idempotency-Key", "order-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, ts.payments.created, 1)
	input := ts.payments.created[0]
	assert.Equal(t, testMerchant, input.MerchantID)
	assert.Equal(t, "order-1", input.IdempotencyKey)
	assert.Equal(t, int64(1000), input.Amount)
	assert.Equal(t, connectordomain.CaptureManual, input.CaptureMethod)
	assert.Equal(t, "stripe", input.Connector)
	require.NotNil(t, input.MerchantConnectorID)
	assert.Equal(t, snowflake.ID(99), *input.MerchantConnectorID)
	require.NotNil(t, input.PaymentMethodData.Card)
	assert.Equal(t, "4242", input.PaymentMethodData.Card.Last4())

	var payment paymentdomain.Payment
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &payment))
	assert.Equal(t, snowflake.ID(42), payment.Intent.ID)
}

func TestCreatePaymentValidation(t *testing.T) {
	ts := newTestServer(t)
	key := ts.key(t, apikeydomain.RoleMerchantDeveloper)

	with := func(field string, value any) map[string]any {
		body := map[string]any{}
		for k, v := range cardPayment {
			body[k] = v
		}
		body[field] = value
		return body
	}

	tests := []struct {
		name  string
		body  any
		field string
		code  string
	}{
		{name: "zero amount", body: with("amount", 0), field: "amount", code: "invalid_amount"},
		{name: "unknown currency", body: with("currency", "XXQ"), field: "currency", code: "invalid_currency"},
		{name: "unknown connector", body: with("connector", "paypal"), field: "connector", code: "invalid_connector"},
		{name: "bad capture method", body: with("capture_method", "later"), field: "capture_method", code: "invalid_capture_method"},
		{name: "bad email", body: with("email", "nope"), field: "email", code: "invalid_email"},
		{name: "malformed json", body: `{"amount":`, code: "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/v1/payments", key, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			env := decode(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.Equal(t, tt.field, env.Error.Field)
		})
	}
	assert.Empty(t, ts.payments.created)
}

func TestDomainErrorsMapToStatus(t *testing.T) {
	ts := newTestServer(t)
	key := ts.key(t, apikeydomain.RoleMerchantDeveloper)

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{paymentdomain.ErrPaymentNotFound, http.StatusNotFound, "payment_not_found"},
		{fmt.Errorf("%w: 500 > 400", paymentdomain.ErrAmountExceedsLimit), http.StatusUnprocessableEntity, "amount_exceeds_limit"},
		{paymentdomain.ErrInvalidStatus, http.StatusUnprocessableEntity, "invalid_payment_status"},
		{paymentdomain.ErrNoConnectorAvailable, http.StatusUnprocessableEntity, "no_connector_available"},
		{paymentdomain.ErrIdempotencyConflict, http.StatusConflict, "idempotency_key_reused"},
		{fmt.Errorf("stripe capture: %w", connectordomain.ErrProcessingStepFailed), http.StatusBadGateway, "processing_step_failed"},
		{errors.New("database is on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ts.payments.err = tt.err
			rec := ts.do(http.MethodPost, "/v1/payments/42/capture", key, map[string]any{"amount_to_capture": 500})
			require.Equal(t, tt.status, rec.Code)
			env := decode(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotContains(t, env.Error.Message, "on fire")
		})
	}
}

func TestCaptureAmountIsOptional(t *testing.T) {
	ts := newTestServer(t)
	key := ts.key(t, apikeydomain.RoleMerchantDeveloper)

	rec := ts.do(http.MethodPost, "/v1/payments/42/capture", key, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, ts.payments.captured)
	assert.Nil(t, ts.payments.captured.Amount)

	rec = ts.do(http.MethodPost, "/v1/payments/42/capture", key, map[string]any{"amount_to_capture": 250})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ts.payments.captured.Amount)
	assert.Equal(t, int64(250), *ts.payments.captured.Amount)
}

func TestGetPaymentForceSync(t *testing.T) {
	ts := newTestServer(t)
	key := ts.key(t, apikeydomain.RoleMerchantReadonly)

	rec := ts.do(http.MethodGet, "/v1/payments/42?force_sync=true", key, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.payments.forceSync)

	rec = ts.do(http.MethodGet, "/v1/payments/42?force_sync=maybe", key, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/v1/payments/not-an-id", key, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRefund(t *testing.T) {
	ts := newTestServer(t)
	key := ts.key(t, apikeydomain.RoleMerchantDeveloper)

	rec := ts.do(http.MethodPost, "/v1/refunds", key, map[string]any{"payment_id": "42", "amount": 300, "reason": "duplicate"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ts.refunds.created, 1)
	assert.Equal(t, snowflake.ID(42), ts.refunds.created[0].PaymentID)
	assert.Equal(t, testMerchant, ts.refunds.created[0].MerchantID)
	require.NotNil(t, ts.refunds.created[0].Amount)
	assert.Equal(t, int64(300), *ts.refunds.created[0].Amount)

	rec = ts.do(http.MethodPost, "/v1/refunds", key, map[string]any{"amount": 300})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/v1/refunds/77/sync", key, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var refund paymentdomain.Refund
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &refund))
	assert.Equal(t, connectordomain.RefundSuccess, refund.Status)
}

func TestConnectorAccountLifecycle(t *testing.T) {
	ts := newTestServer(t)
	key := ts.key(t, apikeydomain.RoleMerchantAdmin)

	create := map[string]any{
		"connector_name":            "stripe",
		"connector_account_details": map[string]any{"auth_type": "HeaderKey", "api_key": "sk_test_1"},
		"priority":                  5,
		"payment_methods_enabled":   []string{"card"},
	}
	rec := ts.do(http.MethodPost, "/v1/connector_accounts", key, create)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "sk_test_1")

	var mca mcadomain.MerchantConnectorAccount
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &mca))
	assert.Equal(t, "stripe_default", mca.ConnectorLabel)
	assert.Equal(t, testMerchant, mca.MerchantID)

	rec = ts.do(http.MethodPost, "/v1/connector_accounts", key, create)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_connector_label", decode(t, rec).Error.Code)

	rec = ts.do(http.MethodPost, "/v1/connector_accounts", key, map[string]any{
		"connector_name":            "stripe",
		"connector_account_details": map[string]any{"auth_type": "HeaderKey", "api_key": "sk_test_1"},
		"payment_methods_enabled":   []string{"crypto"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/v1/connector_accounts/" + mca.ID.String()
	rec = ts.do(http.MethodPatch, path, key, map[string]any{"priority": 9, "disabled": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &mca))
	assert.Equal(t, 9, mca.Priority)
	assert.True(t, mca.Disabled)

	rec = ts.do(http.MethodGet, "/v1/connector_accounts", key, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []mcadomain.MerchantConnectorAccount
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &list))
	assert.Len(t, list, 1)

	rec = ts.do(http.MethodDelete, path, key, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, path, key, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "connector_account_not_found", decode(t, rec).Error.Code)
}

func TestAPIKeyManagement(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.key(t, apikeydomain.RoleMerchantAdmin)

	rec := ts.do(http.MethodPost, "/v1/api_keys", admin, map[string]any{"name": "ci", "role": "merchant_readonly"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created createAPIKeyResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &created))
	require.NotEmpty(t, created.Secret)

	rec = ts.do(http.MethodGet, "/v1/payments/42", created.Secret, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodDelete, "/v1/api_keys/"+created.APIKey.ID.String(), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/v1/payments/42", created.Secret, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/v1/api_keys", admin, map[string]any{"name": "ci", "role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
