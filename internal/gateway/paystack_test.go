package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paystackSign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackWebhookSignature(t *testing.T) {
	p := NewPaystack("sk_test_secret", time.Second)
	body := []byte(`{"event":"charge.success"}`)

	t.Run("valid signature", func(t *testing.T) {
		h := http.Header{}
		h.Set("x-paystack-signature", paystackSign("sk_test_secret", body))
		assert.True(t, p.VerifyWebhookSignature(h, body))
	})

	t.Run("wrong secret", func(t *testing.T) {
		h := http.Header{}
		h.Set("x-paystack-signature", paystackSign("sk_other", body))
		assert.False(t, p.VerifyWebhookSignature(h, body))
	})

	t.Run("tampered body", func(t *testing.T) {
		h := http.Header{}
		h.Set("x-paystack-signature", paystackSign("sk_test_secret", body))
		assert.False(t, p.VerifyWebhookSignature(h, []byte(`{"event":"charge.success","amount":1}`)))
	})

	t.Run("missing header", func(t *testing.T) {
		assert.False(t, p.VerifyWebhookSignature(http.Header{}, body))
	})
}

func TestPaystackClassify(t *testing.T) {
	p := NewPaystack("sk", time.Second)

	assert.Equal(t, EventSuccess, p.Classify("charge.success"))
	assert.Equal(t, EventSuccess, p.Classify("transfer.success"))
	assert.Equal(t, EventFailure, p.Classify("charge.failed"))
	assert.Equal(t, EventFailure, p.Classify("transfer.failed"))
	assert.Equal(t, EventFailure, p.Classify("transfer.reversed"))
	assert.Equal(t, EventUnrecognized, p.Classify("subscription.create"))
	assert.Equal(t, EventUnrecognized, p.Classify(""))
}

func TestPaystackParseEvent(t *testing.T) {
	p := NewPaystack("sk", time.Second)

	t.Run("full payload", func(t *testing.T) {
		body := []byte(`{
			"event": "charge.success",
			"data": {
				"reference": "esc_abc",
				"amount": 50000,
				"metadata": {"booking_id": "bkg-1"}
			}
		}`)
		ev, err := p.ParseEvent(body)
		require.NoError(t, err)
		assert.Equal(t, "charge.success", ev.Type)
		assert.Equal(t, "esc_abc", ev.Reference)
		assert.Equal(t, int64(50000), ev.Amount)
		assert.Equal(t, "bkg-1", ev.BookingID)
		assert.JSONEq(t, string(body), string(ev.Raw))
	})

	t.Run("missing metadata falls back to reference resolution", func(t *testing.T) {
		ev, err := p.ParseEvent([]byte(`{"event":"charge.success","data":{"reference":"esc_abc"}}`))
		require.NoError(t, err)
		assert.Empty(t, ev.BookingID)
		assert.Equal(t, "esc_abc", ev.Reference)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := p.ParseEvent([]byte(`{nope`))
		assert.Error(t, err)
	})
}

func TestPaystackVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/esc_abc", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"status": "success", "amount": 50000, "reference": "esc_abc"},
		})
	}))
	defer srv.Close()

	p := NewPaystackWithBaseURL("sk_test", srv.URL, time.Second)
	res, err := p.Verify(context.Background(), "esc_abc")
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, int64(50000), res.Amount)
	assert.Equal(t, "esc_abc", res.Reference)
}

func TestPaystackInitialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		meta, _ := payload["metadata"].(map[string]any)
		assert.Equal(t, "bkg-1", meta["booking_id"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/xyz",
				"reference":         payload["reference"],
			},
		})
	}))
	defer srv.Close()

	p := NewPaystackWithBaseURL("sk_test", srv.URL, time.Second)
	res, err := p.Initialize(context.Background(), InitializeRequest{
		Amount:     50000,
		PayerEmail: "c@example.com",
		BookingID:  "bkg-1",
		Reference:  "esc_abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/xyz", res.AuthorizationURL)
	assert.Equal(t, "esc_abc", res.Reference)
}

func TestPaystackErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	}))
	defer srv.Close()

	p := NewPaystackWithBaseURL("bad_key", srv.URL, time.Second)
	_, err := p.Verify(context.Background(), "esc_abc")
	assert.Error(t, err)
}

func TestPaystackPayout(t *testing.T) {
	t.Run("successful transfer", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/transfer", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": true,
				"data":   map[string]any{"reference": "pay_1", "status": "pending"},
			})
		}))
		defer srv.Close()

		p := NewPaystackWithBaseURL("sk", srv.URL, time.Second)
		res, err := p.Payout(context.Background(), PayoutRequest{Account: "pro-1", Amount: 1000, Reference: "pay_1"})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "pay_1", res.Reference)
	})

	t.Run("declared failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": true,
				"data":   map[string]any{"reference": "pay_2", "status": "failed"},
			})
		}))
		defer srv.Close()

		p := NewPaystackWithBaseURL("sk", srv.URL, time.Second)
		res, err := p.Payout(context.Background(), PayoutRequest{Account: "pro-1", Amount: 1000, Reference: "pay_2"})
		require.NoError(t, err)
		assert.False(t, res.Success)
	})
}
