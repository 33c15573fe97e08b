package khalti

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/railzwaylabs/payrail/internal/config"
	"github.com/railzwaylabs/payrail/internal/connector/domain"
	"github.com/railzwaylabs/payrail/internal/connector/service"
	"github.com/railzwaylabs/payrail/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captured struct {
	path string
	auth string
	body map[string]any
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		c.body = map[string]any{}
		_ = json.Unmarshal(raw, &c.body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func run[F domain.Flow, Req any, Resp any](t *testing.T, baseURL string, rd *domain.RouterData[F, Req, Resp]) *domain.RouterData[F, Req, Resp] {
	t.Helper()
	k := New()
	integ, err := domain.IntegrationFor[F, Req, Resp](k)
	require.NoError(t, err)
	cfg := config.NewConnectorsConfig(map[string]string{name: baseURL + "/api/v2/"}, time.Second)
	client := service.NewClient(service.ClientParams{
		Config:  config.Config{Connectors: cfg},
		Log:     zap.NewNop(),
		Metrics: observability.NewNopMetrics(),
	})
	out, err := service.ExecuteProcessingStep(context.Background(), client, k, integ, rd, cfg)
	require.NoError(t, err)
	return out
}

func envelope() domain.Envelope {
	return domain.Envelope{
		Connector:                   name,
		PaymentID:                   "pay_1",
		AttemptID:                   "att_1",
		Status:                      domain.AttemptStarted,
		ConnectorAuthType:           domain.ConnectorAuthType{Kind: domain.AuthHeaderKey, APIKey: "live_secret_key_68791341fdd94846a146f0457ff7b455"},
		ConnectorRequestReferenceID: "ref_1",
		ReturnURL:                   "https://futsal.example.com/payments/return",
		Description:                 "Court booking",
	}
}

func TestAuthorizeInitiatesEPayment(t *testing.T) {
	srv, c := newServer(t, http.StatusOK, `{"pidx":"bZQLD9wRVWo4CdESSfuSsB","payment_url":"https://test-pay.khalti.com/?pidx=bZQLD9wRVWo4CdESSfuSsB","expires_at":"2026-10-19T13:00:00+05:45","expires_in":1800}`)

	rd := domain.NewRouterData[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData](envelope(), domain.PaymentsAuthorizeData{
		Amount:       150000,
		Currency:     "NPR",
		CustomerName: "Ram Bahadur",
		Email:        "ram@example.com",
	})
	out := run(t, srv.URL, rd)

	assert.Equal(t, "/api/v2/epayment/initiate/", c.path)
	assert.Equal(t, "key live_secret_key_68791341fdd94846a146f0457ff7b455", c.auth)
	want := map[string]any{
		"return_url":          "https://futsal.example.com/payments/return",
		"website_url":         "https://futsal.example.com",
		"amount":              float64(150000),
		"purchase_order_id":   "ref_1",
		"purchase_order_name": "Court booking",
		"customer_info":       map[string]any{"name": "Ram Bahadur", "email": "ram@example.com"},
	}
	if diff := cmp.Diff(want, c.body); diff != "" {
		t.Errorf("initiate body mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, domain.AttemptAuthenticationPending, out.Status)
	assert.Equal(t, "bZQLD9wRVWo4CdESSfuSsB", out.Response.ResourceID)
	require.NotNil(t, out.Response.Redirection)
	assert.Contains(t, out.Response.Redirection.Endpoint, "pidx=bZQLD9wRVWo4CdESSfuSsB")
}

func TestAuthorizeRejectsNonNPR(t *testing.T) {
	k := New()
	integ, err := domain.IntegrationFor[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData](k)
	require.NoError(t, err)

	rd := domain.NewRouterData[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData](envelope(), domain.PaymentsAuthorizeData{Amount: 100, Currency: "USD"})
	_, err = integ.GetRequestBody(rd, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidCurrency))
}

func TestAuthorizeValidationError(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, `{"return_url":["Enter a valid URL."],"amount":["Amount should be greater than Rs. 10, that is 1000 paisa."],"error_key":"validation_error"}`)

	rd := domain.NewRouterData[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData](envelope(), domain.PaymentsAuthorizeData{Amount: 10, Currency: "NPR"})
	out := run(t, srv.URL, rd)

	require.NotNil(t, out.Err)
	assert.Equal(t, "validation_error", out.Err.Code)
	assert.Equal(t, "amount: Amount should be greater than Rs. 10, that is 1000 paisa.; return_url: Enter a valid URL.", out.Err.Reason)
	assert.Equal(t, out.Err.Reason, out.Err.Message)
	assert.Equal(t, domain.AttemptFailure, out.Status)
}

func TestPSyncCompleted(t *testing.T) {
	srv, c := newServer(t, http.StatusOK, `{"pidx":"pidx_1","total_amount":150000,"status":"Completed","transaction_id":"GFq9PFS7b2iYvL8Lir9oXe","fee":0,"refunded":false}`)

	env := envelope()
	env.Status = domain.AttemptAuthenticationPending
	rd := domain.NewRouterData[domain.PSync, domain.PaymentsSyncData, domain.PaymentsResponseData](env, domain.PaymentsSyncData{ConnectorTransactionID: "pidx_1"})
	out := run(t, srv.URL, rd)

	assert.Equal(t, "/api/v2/epayment/lookup/", c.path)
	assert.Equal(t, "pidx_1", c.body["pidx"])
	assert.Equal(t, domain.AttemptCharged, out.Status)
	assert.Equal(t, domain.MinorUnit(150000), *out.AmountCaptured)
	assert.Equal(t, "GFq9PFS7b2iYvL8Lir9oXe", transactionID(out.Response.ConnectorMetadata))
}

func TestPSyncExpiredReturnedAsClientError(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, `{"pidx":"pidx_1","total_amount":150000,"status":"Expired","transaction_id":null,"fee":0,"refunded":false}`)

	env := envelope()
	env.Status = domain.AttemptAuthenticationPending
	rd := domain.NewRouterData[domain.PSync, domain.PaymentsSyncData, domain.PaymentsResponseData](env, domain.PaymentsSyncData{ConnectorTransactionID: "pidx_1"})
	out := run(t, srv.URL, rd)

	require.NotNil(t, out.Err)
	assert.Equal(t, "Expired", out.Err.Code)
	assert.Equal(t, domain.AttemptFailure, out.Status)
}

func TestRefundUsesMerchantTransactionAPI(t *testing.T) {
	srv, c := newServer(t, http.StatusOK, `{"detail":"Transaction refund successful.","transaction_id":"GFq9PFS7b2iYvL8Lir9oXe"}`)

	env := envelope()
	env.Status = domain.AttemptCharged
	env.ConnectorMeta = json.RawMessage(`{"transaction_id":"GFq9PFS7b2iYvL8Lir9oXe"}`)
	rd := domain.NewRouterData[domain.Execute, domain.RefundsData, domain.RefundsResponseData](env, domain.RefundsData{
		RefundID: "ref_1", ConnectorTransactionID: "pidx_1", Currency: "NPR", RefundAmount: 50000, PaymentAmount: 150000,
	})
	out := run(t, srv.URL, rd)

	assert.Equal(t, "/api/merchant-transaction/GFq9PFS7b2iYvL8Lir9oXe/refund/", c.path)
	assert.Equal(t, float64(50000), c.body["amount"])
	assert.Equal(t, domain.RefundSuccess, out.Response.RefundStatus)

	env.ConnectorMeta = nil
	rd = domain.NewRouterData[domain.Execute, domain.RefundsData, domain.RefundsResponseData](env, domain.RefundsData{RefundAmount: 100, Currency: "NPR"})
	k := New()
	integ, err := domain.IntegrationFor[domain.Execute, domain.RefundsData, domain.RefundsResponseData](k)
	require.NoError(t, err)
	_, err = integ.GetURL(rd, config.NewConnectorsConfig(nil, time.Second))
	assert.True(t, errors.Is(err, domain.ErrMissingRequiredField))
}

func TestFullRefundOmitsAmount(t *testing.T) {
	srv, c := newServer(t, http.StatusOK, `{"detail":"Transaction refund successful."}`)

	env := envelope()
	env.ConnectorMeta = json.RawMessage(`{"transaction_id":"txn_9"}`)
	rd := domain.NewRouterData[domain.Execute, domain.RefundsData, domain.RefundsResponseData](env, domain.RefundsData{
		Currency: "NPR", RefundAmount: 150000, PaymentAmount: 150000,
	})
	out := run(t, srv.URL, rd)

	_, hasAmount := c.body["amount"]
	assert.False(t, hasAmount)
	assert.Equal(t, "txn_9", out.Response.ConnectorRefundID)
}
