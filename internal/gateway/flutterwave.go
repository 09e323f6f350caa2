package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const flutterwaveBaseURL = "https://api.flutterwave.com/v3"

var flutterwaveEvents = map[string]EventClass{
	"charge.completed":   EventSuccess,
	"transfer.completed": EventSuccess,
	"charge.failed":      EventFailure,
	"transfer.failed":    EventFailure,
}

type Flutterwave struct {
	secret    string
	verifHash string
	baseURL   string
	client    *http.Client
}

func NewFlutterwave(secret, verifHash string, timeout time.Duration) *Flutterwave {
	return &Flutterwave{
		secret:    secret,
		verifHash: verifHash,
		baseURL:   flutterwaveBaseURL,
		client:    &http.Client{Timeout: timeout},
	}
}

func NewFlutterwaveWithBaseURL(secret, verifHash, baseURL string, timeout time.Duration) *Flutterwave {
	f := NewFlutterwave(secret, verifHash, timeout)
	f.baseURL = baseURL
	return f
}

func (f *Flutterwave) Name() string { return "flutterwave" }

func (f *Flutterwave) do(ctx context.Context, method, path string, body any, out any) (json.RawMessage, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+f.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return raw, fmt.Errorf("flutterwave %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, err
		}
	}
	return raw, nil
}

func (f *Flutterwave) Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	meta := map[string]any{"booking_id": req.BookingID}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	payload := map[string]any{
		"tx_ref":   req.Reference,
		"amount":   req.Amount,
		"customer": map[string]any{"email": req.PayerEmail},
		"meta":     meta,
	}
	var body struct {
		Data struct {
			Link string `json:"link"`
		} `json:"data"`
	}
	raw, err := f.do(ctx, http.MethodPost, "/payments", payload, &body)
	if err != nil {
		return InitializeResult{}, err
	}
	return InitializeResult{
		AuthorizationURL: body.Data.Link,
		Reference:        req.Reference,
		Raw:              raw,
	}, nil
}

func (f *Flutterwave) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	var body struct {
		Data struct {
			Status string `json:"status"`
			Amount int64  `json:"amount"`
			TxRef  string `json:"tx_ref"`
		} `json:"data"`
	}
	raw, err := f.do(ctx, http.MethodGet, "/transactions/verify_by_reference?tx_ref="+reference, nil, &body)
	if err != nil {
		return VerifyResult{}, err
	}
	status := body.Data.Status
	if status == "successful" {
		status = "success"
	}
	return VerifyResult{
		Status:    status,
		Amount:    body.Data.Amount,
		Reference: body.Data.TxRef,
		Raw:       raw,
	}, nil
}

func (f *Flutterwave) Payout(ctx context.Context, req PayoutRequest) (PayoutResult, error) {
	payload := map[string]any{
		"account_number": req.Account,
		"amount":         req.Amount,
		"narration":      req.Reason,
		"reference":      req.Reference,
	}
	var body struct {
		Status string `json:"status"`
	}
	raw, err := f.do(ctx, http.MethodPost, "/transfers", payload, &body)
	if err != nil {
		return PayoutResult{Raw: raw}, err
	}
	return PayoutResult{
		Success:   body.Status == "success",
		Reference: req.Reference,
		Raw:       raw,
	}, nil
}

func (f *Flutterwave) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	payload := map[string]any{"amount": req.Amount}
	var body struct {
		Status string `json:"status"`
	}
	raw, err := f.do(ctx, http.MethodPost, "/transactions/"+req.Reference+"/refund", payload, &body)
	if err != nil {
		return RefundResult{Raw: raw}, err
	}
	return RefundResult{Success: body.Status == "success", Reference: req.Reference, Raw: raw}, nil
}

// VerifyWebhookSignature checks the verif-hash header against the configured
// secret hash; Flutterwave sends the shared value verbatim rather than an
// HMAC over the body.
func (f *Flutterwave) VerifyWebhookSignature(headers http.Header, _ []byte) bool {
	sig := headers.Get("verif-hash")
	if sig == "" || f.verifHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sig), []byte(f.verifHash)) == 1
}

func (f *Flutterwave) ParseEvent(body []byte) (Event, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			TxRef  string `json:"tx_ref"`
			Amount int64  `json:"amount"`
			Meta   struct {
				BookingID string `json:"booking_id"`
			} `json:"meta"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Event{}, err
	}
	return Event{
		Type:      payload.Event,
		Reference: payload.Data.TxRef,
		Amount:    payload.Data.Amount,
		BookingID: payload.Data.Meta.BookingID,
		Raw:       body,
	}, nil
}

func (f *Flutterwave) Classify(eventType string) EventClass { return flutterwaveEvents[eventType] }

func (f *Flutterwave) EventMapping() map[string]EventClass { return flutterwaveEvents }
