package stripe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/railzwaylabs/payrail/internal/config"
	"github.com/railzwaylabs/payrail/internal/connector/domain"
	"github.com/railzwaylabs/payrail/internal/connector/service"
	"github.com/railzwaylabs/payrail/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorded struct {
	method string
	path   string
	form   url.Values
	header http.Header
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.header = r.Header.Clone()
		rec.form, _ = url.ParseQuery(string(raw))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newSender() *service.Client {
	cfg := config.Config{Connectors: config.NewConnectorsConfig(nil, 2*time.Second)}
	return service.NewClient(service.ClientParams{Config: cfg, Log: zap.NewNop(), Metrics: observability.NewNopMetrics()})
}

func run[F domain.Flow, Req any, Resp any](t *testing.T, srv *httptest.Server, rd *domain.RouterData[F, Req, Resp]) *domain.RouterData[F, Req, Resp] {
	t.Helper()
	s := New()
	integ, err := domain.IntegrationFor[F, Req, Resp](s)
	require.NoError(t, err)
	cfg := config.NewConnectorsConfig(map[string]string{name: srv.URL}, time.Second)
	out, err := service.ExecuteProcessingStep(context.Background(), newSender(), s, integ, rd, cfg)
	require.NoError(t, err)
	return out
}

func envelope() domain.Envelope {
	return domain.Envelope{
		Connector:                   name,
		PaymentID:                   "pay_1",
		AttemptID:                   "att_1",
		Status:                      domain.AttemptStarted,
		ConnectorAuthType:           domain.ConnectorAuthType{Kind: domain.AuthHeaderKey, APIKey: "sk_test_123"},
		ConnectorRequestReferenceID: "ref_1",
		ReturnURL:                   "https://shop.test/return",
	}
}

func cardAuthorize(capture domain.CaptureMethod) *domain.AuthorizeRouterData {
	return domain.NewRouterData[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData](envelope(), domain.PaymentsAuthorizeData{
		Amount:        1050,
		Currency:      "USD",
		CaptureMethod: capture,
		PaymentMethodData: domain.PaymentMethodData{
			Type: domain.PaymentMethodCard,
			Card: &domain.Card{Number: "4242424242424242", ExpMonth: "12", ExpYear: "30", CVC: "123"},
		},
		Metadata: map[string]string{"cart": "c_9"},
	})
}

func TestAuthorizeManualCapture(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"id":"pi_1","status":"requires_capture","amount":1050,"latest_charge":"ch_1"}`)

	out := run(t, srv, cardAuthorize(domain.CaptureManual))

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/v1/payment_intents", rec.path)
	assert.Equal(t, "Bearer sk_test_123", rec.header.Get("Authorization"))
	assert.Equal(t, "ref_1_authorize", rec.header.Get("Idempotency-Key"))
	assert.Equal(t, domain.ContentTypeForm, rec.header.Get("Content-Type"))
	assert.Equal(t, "1050", rec.form.Get("amount"))
	assert.Equal(t, "usd", rec.form.Get("currency"))
	assert.Equal(t, "manual", rec.form.Get("capture_method"))
	assert.Equal(t, "2030", rec.form.Get("payment_method_data[card][exp_year]"))
	assert.Equal(t, "pay_1", rec.form.Get("metadata[order_id]"))
	assert.Equal(t, "c_9", rec.form.Get("metadata[cart]"))

	require.True(t, out.IsSuccess())
	assert.Equal(t, domain.AttemptAuthorized, out.Status)
	assert.Equal(t, "pi_1", out.Response.ResourceID)
	assert.JSONEq(t, `{"latest_charge":"ch_1"}`, string(out.Response.ConnectorMetadata))
}

func TestAuthorizeRequiresAction(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"id":"pi_2","status":"requires_action","next_action":{"type":"redirect_to_url","redirect_to_url":{"url":"https://hooks.stripe.com/3ds"}}}`)

	out := run(t, srv, cardAuthorize(domain.CaptureAutomatic))

	assert.Equal(t, domain.AttemptAuthenticationPending, out.Status)
	require.NotNil(t, out.Response.Redirection)
	assert.Equal(t, "https://hooks.stripe.com/3ds", out.Response.Redirection.Endpoint)
}

func TestAuthorizeDeclined(t *testing.T) {
	srv, _ := newServer(t, http.StatusPaymentRequired, `{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds.","payment_intent":{"id":"pi_3"}}}`)

	out := run(t, srv, cardAuthorize(domain.CaptureAutomatic))

	require.NotNil(t, out.Err)
	assert.Equal(t, "card_declined", out.Err.Code)
	assert.Equal(t, "insufficient_funds", out.Err.Reason)
	assert.Equal(t, "pi_3", out.Err.ConnectorTransactionID)
	assert.Equal(t, domain.AttemptFailure, out.Status)
}

func TestAuthorizeFailedWithLastPaymentError(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"id":"pi_4","status":"requires_payment_method","last_payment_error":{"code":"card_declined","message":"declined"}}`)

	out := run(t, srv, cardAuthorize(domain.CaptureAutomatic))

	require.NotNil(t, out.Err)
	assert.Equal(t, domain.AttemptFailure, out.Status)
	assert.Equal(t, "pi_4", out.Err.ConnectorTransactionID)
}

func TestAuthorizeRejectsBankRedirect(t *testing.T) {
	s := New()
	integ, err := domain.IntegrationFor[domain.Authorize, domain.PaymentsAuthorizeData, domain.PaymentsResponseData](s)
	require.NoError(t, err)

	rd := cardAuthorize(domain.CaptureAutomatic)
	rd.Request.PaymentMethodData = domain.PaymentMethodData{Type: domain.PaymentMethodBankRedirect, BankRedirect: &domain.BankRedirect{Type: "ideal"}}
	_, err = integ.GetRequestBody(rd, nil)
	assert.True(t, errors.Is(err, domain.ErrPaymentMethodNotSupported))

	rd = cardAuthorize(domain.CaptureAutomatic)
	rd.ConnectorAuthType = domain.ConnectorAuthType{Kind: domain.AuthBodyKey, APIKey: "k", Key1: "m"}
	_, err = integ.GetHeaders(rd, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidAuthType))
}

func TestCapturePartial(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"id":"pi_1","status":"succeeded","amount":1050,"amount_received":500}`)

	env := envelope()
	env.Status = domain.AttemptAuthorized
	rd := domain.NewRouterData[domain.Capture, domain.PaymentsCaptureData, domain.PaymentsResponseData](env, domain.PaymentsCaptureData{
		AmountToCapture: 500, PaymentAmount: 1050, Currency: "USD", ConnectorTransactionID: "pi_1",
	})
	out := run(t, srv, rd)

	assert.Equal(t, "/v1/payment_intents/pi_1/capture", rec.path)
	assert.Equal(t, "500", rec.form.Get("amount_to_capture"))
	assert.Equal(t, domain.AttemptPartialCharged, out.Status)
	require.NotNil(t, out.AmountCaptured)
	assert.Equal(t, domain.MinorUnit(500), *out.AmountCaptured)
}

func TestVoidAndSync(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"id":"pi_1","status":"canceled"}`)

	env := envelope()
	env.Status = domain.AttemptAuthorized
	void := domain.NewRouterData[domain.Void, domain.PaymentsCancelData, domain.PaymentsResponseData](env, domain.PaymentsCancelData{
		ConnectorTransactionID: "pi_1", CancellationReason: "requested_by_customer",
	})
	out := run(t, srv, void)
	assert.Equal(t, "/v1/payment_intents/pi_1/cancel", rec.path)
	assert.Equal(t, "requested_by_customer", rec.form.Get("cancellation_reason"))
	assert.Equal(t, domain.AttemptVoided, out.Status)

	sync := domain.NewRouterData[domain.PSync, domain.PaymentsSyncData, domain.PaymentsResponseData](env, domain.PaymentsSyncData{ConnectorTransactionID: "pi_1"})
	synced := run(t, srv, sync)
	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/v1/payment_intents/pi_1", rec.path)
	assert.Equal(t, domain.AttemptVoided, synced.Status)
}

func TestRefundAndRSync(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"id":"re_1","status":"pending","amount":300,"payment_intent":"pi_1"}`)

	env := envelope()
	env.Status = domain.AttemptCharged
	env.RefundID = "ref_99"
	rd := domain.NewRouterData[domain.Execute, domain.RefundsData, domain.RefundsResponseData](env, domain.RefundsData{
		RefundID: "ref_99", ConnectorTransactionID: "pi_1", Currency: "USD", RefundAmount: 300, PaymentAmount: 1050, Reason: "requested_by_customer",
	})
	out := run(t, srv, rd)
	assert.Equal(t, "/v1/refunds", rec.path)
	assert.Equal(t, "pi_1", rec.form.Get("payment_intent"))
	assert.Equal(t, "300", rec.form.Get("amount"))
	assert.Equal(t, "ref_99", rec.form.Get("metadata[refund_id]"))
	assert.Equal(t, "requested_by_customer", rec.form.Get("reason"))
	assert.Equal(t, domain.RefundPending, out.Response.RefundStatus)
	assert.Equal(t, "re_1", out.Response.ConnectorRefundID)
	assert.Equal(t, domain.AttemptCharged, out.Status)

	srv2, rec2 := newServer(t, http.StatusOK, `{"id":"re_1","status":"succeeded"}`)
	sync := domain.Convert[domain.RSync, domain.RefundsData, domain.RefundsResponseData](out, domain.RefundsData{ConnectorRefundID: "re_1"})
	synced := run(t, srv2, sync)
	assert.Equal(t, "/v1/refunds/re_1", rec2.path)
	assert.Equal(t, domain.RefundSuccess, synced.Response.RefundStatus)
}
