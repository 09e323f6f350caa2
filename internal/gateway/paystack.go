package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const paystackBaseURL = "https://api.paystack.co"

// Paystack event classification. Explicit enumeration; anything else is
// unrecognized and surfaces as such.
var paystackEvents = map[string]EventClass{
	"charge.success":    EventSuccess,
	"transfer.success":  EventSuccess,
	"charge.failed":     EventFailure,
	"transfer.failed":   EventFailure,
	"transfer.reversed": EventFailure,
}

type Paystack struct {
	secret  string
	baseURL string
	client  *http.Client
}

func NewPaystack(secret string, timeout time.Duration) *Paystack {
	return &Paystack{
		secret:  secret,
		baseURL: paystackBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewPaystackWithBaseURL points the adapter at a test server.
func NewPaystackWithBaseURL(secret, baseURL string, timeout time.Duration) *Paystack {
	p := NewPaystack(secret, timeout)
	p.baseURL = baseURL
	return p
}

func (p *Paystack) Name() string { return "paystack" }

func (p *Paystack) do(ctx context.Context, method, path string, body any, out any) (json.RawMessage, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return raw, fmt.Errorf("paystack %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, err
		}
	}
	return raw, nil
}

func (p *Paystack) Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	meta := map[string]any{"booking_id": req.BookingID}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	payload := map[string]any{
		"email":    req.PayerEmail,
		"amount":   req.Amount,
		"metadata": meta,
	}
	if req.Reference != "" {
		payload["reference"] = req.Reference
	}
	var body struct {
		Data struct {
			AuthorizationURL string `json:"authorization_url"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	raw, err := p.do(ctx, http.MethodPost, "/transaction/initialize", payload, &body)
	if err != nil {
		return InitializeResult{}, err
	}
	return InitializeResult{
		AuthorizationURL: body.Data.AuthorizationURL,
		Reference:        body.Data.Reference,
		Raw:              raw,
	}, nil
}

func (p *Paystack) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	var body struct {
		Data struct {
			Status    string `json:"status"`
			Amount    int64  `json:"amount"`
			Reference string `json:"reference"`
		} `json:"data"`
	}
	raw, err := p.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &body)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{
		Status:    body.Data.Status,
		Amount:    body.Data.Amount,
		Reference: body.Data.Reference,
		Raw:       raw,
	}, nil
}

func (p *Paystack) Payout(ctx context.Context, req PayoutRequest) (PayoutResult, error) {
	payload := map[string]any{
		"source":    "balance",
		"recipient": req.Account,
		"amount":    req.Amount,
		"reason":    req.Reason,
		"reference": req.Reference,
	}
	var body struct {
		Status bool `json:"status"`
		Data   struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	raw, err := p.do(ctx, http.MethodPost, "/transfer", payload, &body)
	if err != nil {
		return PayoutResult{Raw: raw}, err
	}
	ref := body.Data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return PayoutResult{
		Success:   body.Status && body.Data.Status != "failed",
		Reference: ref,
		Raw:       raw,
	}, nil
}

func (p *Paystack) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	payload := map[string]any{
		"transaction": req.Reference,
		"amount":      req.Amount,
	}
	var body struct {
		Status bool `json:"status"`
	}
	raw, err := p.do(ctx, http.MethodPost, "/refund", payload, &body)
	if err != nil {
		return RefundResult{Raw: raw}, err
	}
	return RefundResult{Success: body.Status, Reference: req.Reference, Raw: raw}, nil
}

// VerifyWebhookSignature checks the x-paystack-signature header: HMAC-SHA512
// of the raw body under the secret key. hmac.Equal keeps the comparison
// constant-time.
func (p *Paystack) VerifyWebhookSignature(headers http.Header, body []byte) bool {
	sig := headers.Get("x-paystack-signature")
	if sig == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

func (p *Paystack) ParseEvent(body []byte) (Event, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"`
			Metadata  struct {
				BookingID string `json:"booking_id"`
			} `json:"metadata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Event{}, err
	}
	return Event{
		Type:      payload.Event,
		Reference: payload.Data.Reference,
		Amount:    payload.Data.Amount,
		BookingID: payload.Data.Metadata.BookingID,
		Raw:       body,
	}, nil
}

func (p *Paystack) Classify(eventType string) EventClass { return paystackEvents[eventType] }

func (p *Paystack) EventMapping() map[string]EventClass { return paystackEvents }
