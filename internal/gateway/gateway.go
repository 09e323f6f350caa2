// Package gateway defines the narrow payment-provider capability the escrow
// core consumes. Adapters are stateless and injected; nothing in the core
// talks to a provider except through this interface.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type EventClass int

const (
	EventUnrecognized EventClass = iota
	EventSuccess
	EventFailure
)

func (c EventClass) String() string {
	switch c {
	case EventSuccess:
		return "success"
	case EventFailure:
		return "failure"
	}
	return "unrecognized"
}

type InitializeRequest struct {
	Amount     int64 // minor units
	PayerEmail string
	BookingID  string
	Reference  string
	Metadata   map[string]any
}

type InitializeResult struct {
	AuthorizationURL string
	Reference        string
	Raw              json.RawMessage
}

type VerifyResult struct {
	Status    string // "success" | "failed" | provider-specific pending states
	Amount    int64
	Reference string
	Raw       json.RawMessage
}

type PayoutRequest struct {
	Account   string
	Amount    int64
	Reason    string
	Reference string
}

type PayoutResult struct {
	Success   bool
	Reference string
	Raw       json.RawMessage
}

type RefundRequest struct {
	Reference string
	Amount    int64
}

type RefundResult struct {
	Success   bool
	Reference string
	Raw       json.RawMessage
}

// Event is a provider webhook normalized to the shape the ingestion pipeline
// works with. BookingID comes from provider metadata and may be empty, in
// which case the escrow is resolved by Reference.
type Event struct {
	Type      string
	Reference string
	Amount    int64
	BookingID string
	Raw       json.RawMessage
}

type Adapter interface {
	Name() string
	Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error)
	Verify(ctx context.Context, reference string) (VerifyResult, error)
	Payout(ctx context.Context, req PayoutRequest) (PayoutResult, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
	VerifyWebhookSignature(headers http.Header, body []byte) bool
	ParseEvent(body []byte) (Event, error)
	// Classify maps a provider event type through an explicit enumeration.
	// Anything not in the table is EventUnrecognized, never guessed.
	Classify(eventType string) EventClass
	// EventMapping exposes the classification table for startup validation.
	EventMapping() map[string]EventClass
}

// Registry holds the configured adapters keyed by name.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if err := validateMapping(a); err != nil {
			return nil, err
		}
		r.adapters[a.Name()] = a
	}
	return r, nil
}

// validateMapping rejects adapters with empty or degenerate classification
// tables at startup instead of discovering the gap on the first live webhook.
func validateMapping(a Adapter) error {
	m := a.EventMapping()
	if len(m) == 0 {
		return fmt.Errorf("gateway %s: empty event mapping", a.Name())
	}
	var hasSuccess bool
	for ev, class := range m {
		if ev == "" {
			return fmt.Errorf("gateway %s: empty event type in mapping", a.Name())
		}
		if class == EventUnrecognized {
			return fmt.Errorf("gateway %s: event %q mapped to unrecognized", a.Name(), ev)
		}
		if class == EventSuccess {
			hasSuccess = true
		}
	}
	if !hasSuccess {
		return fmt.Errorf("gateway %s: mapping has no success event", a.Name())
	}
	return nil
}

var ErrUnknownGateway = errors.New("unknown payment gateway")

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, ErrUnknownGateway
	}
	return a, nil
}
