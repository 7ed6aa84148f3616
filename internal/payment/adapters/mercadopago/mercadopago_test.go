package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/pixbot/internal/payment/domain"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{
		AccessToken:     "TEST-token",
		BaseURL:         srv.URL,
		NotificationURL: "https://bot.example.com/api/payments/webhooks/mercadopago",
		Timeout:         2 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := New(cfg, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func testProduct(price string) *productdomain.Product {
	return &productdomain.Product{
		ID:    snowflake.ID(1700000000000),
		Name:  "Curso PIX",
		Price: decimal.RequireFromString(price),
	}
}

func TestCreateCharge(t *testing.T) {
	var captured map[string]any
	var headers http.Header
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": 1319876543,
			"status": "pending",
			"status_detail": "pending_waiting_transfer",
			"external_reference": "sale:42",
			"transaction_amount": 29.9,
			"date_created": "2026-03-01T08:00:00.000-04:00",
			"point_of_interaction": {"transaction_data": {
				"qr_code": "00020126580014br.gov.bcb.pix",
				"qr_code_base64": "iVBORw0KGgo=",
				"ticket_url": "https://www.mercadopago.com.br/payments/1319876543/ticket"
			}}
		}`))
	}, nil)

	charge, err := client.CreateCharge(context.Background(), testProduct("29.90"), paymentdomain.Buyer{ID: 99, Name: "Ana"}, "sale:42")
	require.NoError(t, err)

	assert.Equal(t, "1319876543", charge.ID)
	assert.Equal(t, paymentdomain.ChargeStatusPending, charge.Status)
	assert.Equal(t, "sale:42", charge.ExternalReference)
	assert.Equal(t, "00020126580014br.gov.bcb.pix", charge.QRCode)
	assert.True(t, charge.Amount.Equal(decimal.RequireFromString("29.90")))
	require.NotNil(t, charge.DateCreated)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), *charge.DateCreated)
	assert.NotEmpty(t, charge.Raw)

	assert.Equal(t, "Bearer TEST-token", headers.Get("Authorization"))
	assert.NotEmpty(t, headers.Get("X-Idempotency-Key"))
	assert.Equal(t, "pix", captured["payment_method_id"])
	assert.Equal(t, 29.9, captured["transaction_amount"])
	assert.Equal(t, "sale:42", captured["external_reference"])
	assert.Equal(t, "https://bot.example.com/api/payments/webhooks/mercadopago", captured["notification_url"])
	payer := captured["payer"].(map[string]any)
	assert.Equal(t, "telegram-99@buyers.pixbot.invalid", payer["email"])
	assert.Equal(t, "Ana", payer["first_name"])
}

func TestCreateChargeRejectsInvalidAmount(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, nil)

	for _, price := range []string{"0", "-1", "0.001"} {
		_, err := client.CreateCharge(context.Background(), testProduct(price), paymentdomain.Buyer{ID: 1}, "sale:1")
		assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount, price)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestCreateChargeProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid payer email","error":"bad_request","status":400}`))
	}, nil)

	_, err := client.CreateCharge(context.Background(), testProduct("10"), paymentdomain.Buyer{ID: 1}, "sale:1")
	require.Error(t, err)
	assert.ErrorIs(t, err, paymentdomain.ErrGateway)

	var gwErr *paymentdomain.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	assert.Equal(t, "create_charge", gwErr.Operation)
}

func TestGatewayTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })

	_, err := client.GetChargeStatus(context.Background(), "123")
	assert.ErrorIs(t, err, paymentdomain.ErrGateway)
}

func TestGetChargeStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payments/555", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 555,
			"status": "approved",
			"external_reference": "sale:7",
			"transaction_amount": 10,
			"date_approved": "2026-03-01T12:05:00Z",
			"payer": {"email": "ana@example.com", "first_name": "Ana", "last_name": "Souza"}
		}`))
	}, nil)

	charge, err := client.GetChargeStatus(context.Background(), "555")
	require.NoError(t, err)
	assert.True(t, charge.Status.Approved())
	assert.Equal(t, "sale:7", charge.ExternalReference)
	assert.Equal(t, "Ana Souza", charge.Payer.Name)
	assert.Equal(t, "ana@example.com", charge.Payer.Email)
	require.NotNil(t, charge.DateApproved)

	_, err = client.GetChargeStatus(context.Background(), " ")
	assert.ErrorIs(t, err, paymentdomain.ErrGateway)
}

func TestNewRequiresAccessToken(t *testing.T) {
	_, err := New(Config{}, zap.NewNop(), nil)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

func TestVerifySignature(t *testing.T) {
	secret := "mp-secret"
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, func(cfg *Config) {
		cfg.WebhookSecret = secret
	})
	notification := &paymentdomain.Notification{Type: "payment", PaymentID: "123456"}

	ts := "1742505638683"
	headers := http.Header{}
	headers.Set("x-request-id", "req-1")
	headers.Set("x-signature", "ts="+ts+",v1="+sign(secret, "id:123456;request-id:req-1;ts:"+ts+";"))
	require.NoError(t, client.Verify(context.Background(), notification, headers))

	headers.Set("x-signature", "ts="+ts+",v1="+sign("other", "id:123456;request-id:req-1;ts:"+ts+";"))
	assert.ErrorIs(t, client.Verify(context.Background(), notification, headers), paymentdomain.ErrInvalidSignature)

	headers.Del("x-signature")
	assert.ErrorIs(t, client.Verify(context.Background(), notification, headers), paymentdomain.ErrInvalidSignature)

	open := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, nil)
	assert.NoError(t, open.Verify(context.Background(), notification, http.Header{}))
}
