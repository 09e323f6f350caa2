package models

import (
	"encoding/json"
	"time"
)

type TransactionType string

const (
	TxnEscrow  TransactionType = "escrow"
	TxnRelease TransactionType = "release"
	TxnRefund  TransactionType = "refund"
	TxnPayout  TransactionType = "payout"
	TxnFee     TransactionType = "fee"
)

type TransactionStatus string

const (
	TxnPending TransactionStatus = "pending"
	TxnSuccess TransactionStatus = "success"
	TxnFailed  TransactionStatus = "failed"
)

// Transaction is one append-only ledger entry: a single financial movement
// attempt. Reference (external) and IdempotencyKey (internal) are the two
// dedup anchors; both are enforced by unique indexes, never by
// check-then-insert. The only in-place mutation a Transaction ever sees is
// status pending -> success|failed.
type Transaction struct {
	ID              string            `json:"id"`
	BookingID       string            `json:"booking_id"`
	CustomerID      string            `json:"customer_id"`
	CreativeID      string            `json:"creative_id"`
	Amount          int64             `json:"amount"` // minor units
	Type            TransactionType   `json:"type"`
	Status          TransactionStatus `json:"status"`
	Gateway         string            `json:"gateway"`
	Reference       *string           `json:"reference,omitempty"`
	IdempotencyKey  *string           `json:"idempotency_key,omitempty"`
	GatewayResponse json.RawMessage   `json:"gateway_response,omitempty"`
	Note            string            `json:"note,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}
