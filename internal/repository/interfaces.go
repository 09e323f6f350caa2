package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/craftlink/craftlink-backend/internal/models"
)

// ErrNotFound is returned when the requested row does not exist. Postgres
// implementations map pgx.ErrNoRows onto it; services wrap it into the typed
// taxonomy at the boundary.
var ErrNotFound = errors.New("not found")

// ErrNoTransition is returned by compare-and-swap updates when no row matched
// the expected from-state set. The guard and the write are one statement, so
// a caller seeing this error knows the state moved (or never existed); there
// is no read-then-write gap to race through.
var ErrNoTransition = errors.New("no matching state transition")

// BookingPaymentPatch carries the only booking fields this core may write.
// Nil fields are left untouched.
type BookingPaymentPatch struct {
	PaymentStatus   *models.PaymentStatus
	EscrowAmount    *int64
	EscrowID        *string
	PaymentReleased *bool
	SettledAt       *time.Time
}

type Escrows interface {
	// UpsertPending inserts a pending escrow for the booking, or refreshes
	// amount/gateway/metadata on an existing row that is still pending.
	// The booking_id unique constraint enforces the 1:1 invariant.
	UpsertPending(ctx context.Context, e models.Escrow) (models.Escrow, error)
	GetByID(ctx context.Context, id string) (models.Escrow, error)
	GetByBookingID(ctx context.Context, bookingID string) (models.Escrow, error)
	GetByReference(ctx context.Context, reference string) (models.Escrow, error)
	SetReference(ctx context.Context, id, reference string) error
	// TransitionState performs the guard check and the write as one CAS
	// statement: UPDATE ... WHERE id=$1 AND state = ANY(from).
	TransitionState(ctx context.Context, id string, from []models.EscrowState, to models.EscrowState) (models.Escrow, error)
	ListByState(ctx context.Context, state models.EscrowState, afterID string, limit int) ([]models.Escrow, error)
	List(ctx context.Context, afterID string, limit int) ([]models.Escrow, error)
	MarkReconciled(ctx context.Context, id string) error
}

type Transactions interface {
	Create(ctx context.Context, t models.Transaction) (models.Transaction, error)
	// UpsertByReference is the idempotent insert-or-fetch keyed by the
	// external reference. inserted=false means the row already existed and
	// is returned unchanged.
	UpsertByReference(ctx context.Context, t models.Transaction) (txn models.Transaction, inserted bool, err error)
	// UpsertByIdempotencyKey is the internal-anchor twin, deduplicating
	// near-simultaneous release/refund/payout attempts.
	UpsertByIdempotencyKey(ctx context.Context, t models.Transaction) (txn models.Transaction, inserted bool, err error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	GetByReference(ctx context.Context, reference string) (models.Transaction, error)
	// SettleStatus applies the single legal in-place mutation:
	// pending -> success|failed. Rows already settled are left alone.
	SettleStatus(ctx context.Context, id string, status models.TransactionStatus, gatewayResponse json.RawMessage) error
	// Reclaim reopens a failed attempt as one CAS statement: the row goes
	// back to pending under a fresh reference, so exactly one retry owns
	// it. ErrNoTransition means a concurrent retry already claimed it.
	Reclaim(ctx context.Context, id, reference, note string) (models.Transaction, error)
	// GetSuccessfulEscrowTxn returns the confirmed payment entry for the
	// booking, or ErrNotFound.
	GetSuccessfulEscrowTxn(ctx context.Context, bookingID string) (models.Transaction, error)
	ListByBooking(ctx context.Context, bookingID string, limit, offset int) ([]models.Transaction, error)
	List(ctx context.Context, afterID string, limit int) ([]models.Transaction, error)
	// SuccessfulEscrowTxnExists supports the escrow_without_txn drift check.
	SuccessfulEscrowTxnExists(ctx context.Context, bookingID string) (bool, error)
}

type Bookings interface {
	GetByID(ctx context.Context, id string) (models.Booking, error)
	Exists(ctx context.Context, id string) (bool, error)
	UpdatePayment(ctx context.Context, id string, patch BookingPaymentPatch) error
	SetReviewed(ctx context.Context, id string, customer, pro *bool) error
}

type Disputes interface {
	Create(ctx context.Context, d models.Dispute) (models.Dispute, error)
	GetByID(ctx context.Context, id string) (models.Dispute, error)
	// GetActiveByBooking returns the non-terminal dispute for the booking,
	// or ErrNotFound. At most one may be active at a time.
	GetActiveByBooking(ctx context.Context, bookingID string) (models.Dispute, error)
	AppendEvidence(ctx context.Context, id string, ev models.Evidence) (models.Dispute, error)
	TransitionStatus(ctx context.Context, id string, from []models.DisputeStatus, to models.DisputeStatus) (models.Dispute, error)
	// Resolve sets status=resolved together with the resolution fields in
	// one write, so a resolved dispute always carries its resolution.
	Resolve(ctx context.Context, id string, from []models.DisputeStatus, resolution models.DisputeResolution, note, resolvedBy string) (models.Dispute, error)
	ListByBooking(ctx context.Context, bookingID string) ([]models.Dispute, error)
}

type Reports interface {
	Create(ctx context.Context, r models.ReconciliationReport) (models.ReconciliationReport, error)
	GetByID(ctx context.Context, id string) (models.ReconciliationReport, error)
	List(ctx context.Context, limit, offset int) ([]models.ReconciliationReport, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}

type Users interface {
	Create(ctx context.Context, email, passwordHash, role string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
}

// Store bundles the repositories plus the per-booking atomic unit. WithTx
// runs fn against transaction-scoped repositories; everything fn writes
// commits or rolls back together.
type Store interface {
	Escrows() Escrows
	Transactions() Transactions
	Bookings() Bookings
	Disputes() Disputes
	Reports() Reports
	AuditLogs() AuditLogs
	Users() Users
	WithTx(ctx context.Context, fn func(Store) error) error
}
