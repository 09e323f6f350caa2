package models

import "time"

type EscrowState string

const (
	EscrowPending   EscrowState = "pending"
	EscrowHeld      EscrowState = "held"
	EscrowReleased  EscrowState = "released"
	EscrowRefunded  EscrowState = "refunded"
	EscrowDisputed  EscrowState = "disputed"
	EscrowCancelled EscrowState = "cancelled"
)

// Terminal reports whether no further transition may leave s.
func (s EscrowState) Terminal() bool {
	switch s {
	case EscrowReleased, EscrowRefunded, EscrowCancelled:
		return true
	}
	return false
}

// Escrow is the authoritative record of held funds for one booking (1:1).
// State is mutated only through compare-and-swap transitions inside the
// same atomic unit as the ledger and booking-projection writes.
type Escrow struct {
	ID                 string         `json:"id"`
	BookingID          string         `json:"booking_id"`
	Amount             int64          `json:"amount"` // minor units
	State              EscrowState    `json:"state"`
	Gateway            string         `json:"gateway"`
	GatewayReference   *string        `json:"gateway_reference,omitempty"`
	IdempotencyKey     string         `json:"idempotency_key"`
	Reconciled         bool           `json:"reconciled"`
	ScheduledReleaseAt *time.Time     `json:"scheduled_release_at,omitempty"`
	InitiatedBy        *string        `json:"initiated_by,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
