package models

import "time"

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPending  PaymentStatus = "pending"
	PaymentEscrowed PaymentStatus = "escrowed"
	PaymentReleased PaymentStatus = "released"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

// Booking is owned by booking management; this core reads it and writes only
// the payment-facing projection fields (PaymentStatus, EscrowAmount, EscrowID,
// PaymentReleased, SettledAt). EscrowID is a weak back-reference for lookup;
// Escrow.BookingID is the owning direction.
type Booking struct {
	ID               string        `json:"id"`
	CustomerID       string        `json:"customer_id"`
	CreativeID       string        `json:"creative_id"`
	TotalAmount      int64         `json:"total_amount"`
	Status           string        `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	EscrowAmount     int64         `json:"escrow_amount"`
	EscrowID         *string       `json:"escrow_id,omitempty"`
	PaymentReleased  bool          `json:"payment_released"`
	SettledAt        *time.Time    `json:"settled_at,omitempty"`
	CustomerReviewed bool          `json:"customer_reviewed"`
	ProReviewed      bool          `json:"pro_reviewed"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// BothReviewed reports whether the dual-review settlement condition holds.
func (b Booking) BothReviewed() bool { return b.CustomerReviewed && b.ProReviewed }
