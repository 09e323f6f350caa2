package models

import "time"

// Issue types raised by the reconciliation engine.
const (
	IssueTxnWithoutBooking      = "txn_without_booking"
	IssueTxnBookingMissing      = "txn_booking_missing"
	IssueTxnMissingEscrow       = "txn_missing_escrow"
	IssueAmountMismatch         = "amount_mismatch"
	IssueReleasedNotProjected   = "escrow_released_booking_not_updated"
	IssueEscrowWithoutBooking   = "escrow_without_booking"
	IssueEscrowWithoutTxn       = "escrow_without_txn"
	IssueReconcileError         = "reconcile_error"
)

type IssueSeverity string

const (
	SeverityLow    IssueSeverity = "low"
	SeverityMedium IssueSeverity = "medium"
	SeverityHigh   IssueSeverity = "high"
)

type ReconciliationIssue struct {
	Type     string        `json:"type"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
	Related  string        `json:"related,omitempty"` // offending entity id
}

type ReconciliationSummary struct {
	TotalTransactionsChecked int `json:"total_transactions_checked"`
	TotalEscrowsChecked      int `json:"total_escrows_checked"`
	TotalIssues              int `json:"total_issues"`
}

// ReconciliationReport is immutable once written. Issues are capped at a
// fixed maximum per run; Summary.TotalIssues keeps counting past the cap.
type ReconciliationReport struct {
	ID      string                `json:"id"`
	RunBy   *string               `json:"run_by,omitempty"` // nil = scheduled run
	RunAt   time.Time             `json:"run_at"`
	Summary ReconciliationSummary `json:"summary"`
	Issues  []ReconciliationIssue `json:"issues"`
	Meta    map[string]any        `json:"meta,omitempty"`
}
