package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/craftlink/craftlink-backend/internal/models"
	repo "github.com/craftlink/craftlink-backend/internal/repository"
)

type transactionsRepo struct{ q querier }

const txnCols = `id, booking_id, customer_id, creative_id, amount, type, status,
gateway, reference, idempotency_key, gateway_response, note, created_at`

func scanTxn(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.BookingID, &t.CustomerID, &t.CreativeID, &t.Amount, &t.Type,
		&t.Status, &t.Gateway, &t.Reference, &t.IdempotencyKey,
		&t.GatewayResponse, &t.Note, &t.CreatedAt,
	)
	return t, err
}

func (r *transactionsRepo) Create(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	out, err := scanTxn(r.q.QueryRow(ctx, `
INSERT INTO transactions (
  id, booking_id, customer_id, creative_id, amount, type, status, gateway,
  reference, idempotency_key, gateway_response, note
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING `+txnCols,
		t.ID, t.BookingID, t.CustomerID, t.CreativeID, t.Amount, t.Type,
		t.Status, t.Gateway, t.Reference, t.IdempotencyKey, t.GatewayResponse, t.Note,
	))
	return out, err
}

// UpsertByReference inserts or returns the existing row for the external
// reference. The no-op DO UPDATE makes the conflicting row visible to
// RETURNING; xmax=0 distinguishes a fresh insert from a fetched duplicate.
func (r *transactionsRepo) UpsertByReference(ctx context.Context, t models.Transaction) (models.Transaction, bool, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	var out models.Transaction
	var inserted bool
	err := r.q.QueryRow(ctx, `
INSERT INTO transactions (
  id, booking_id, customer_id, creative_id, amount, type, status, gateway,
  reference, idempotency_key, gateway_response, note
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (reference) DO UPDATE
   SET reference = EXCLUDED.reference
RETURNING `+txnCols+`, (xmax = 0) AS inserted`,
		t.ID, t.BookingID, t.CustomerID, t.CreativeID, t.Amount, t.Type,
		t.Status, t.Gateway, t.Reference, t.IdempotencyKey, t.GatewayResponse, t.Note,
	).Scan(
		&out.ID, &out.BookingID, &out.CustomerID, &out.CreativeID, &out.Amount,
		&out.Type, &out.Status, &out.Gateway, &out.Reference, &out.IdempotencyKey,
		&out.GatewayResponse, &out.Note, &out.CreatedAt, &inserted,
	)
	return out, inserted, err
}

func (r *transactionsRepo) UpsertByIdempotencyKey(ctx context.Context, t models.Transaction) (models.Transaction, bool, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	var out models.Transaction
	var inserted bool
	err := r.q.QueryRow(ctx, `
INSERT INTO transactions (
  id, booking_id, customer_id, creative_id, amount, type, status, gateway,
  reference, idempotency_key, gateway_response, note
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (idempotency_key) DO UPDATE
   SET idempotency_key = EXCLUDED.idempotency_key
RETURNING `+txnCols+`, (xmax = 0) AS inserted`,
		t.ID, t.BookingID, t.CustomerID, t.CreativeID, t.Amount, t.Type,
		t.Status, t.Gateway, t.Reference, t.IdempotencyKey, t.GatewayResponse, t.Note,
	).Scan(
		&out.ID, &out.BookingID, &out.CustomerID, &out.CreativeID, &out.Amount,
		&out.Type, &out.Status, &out.Gateway, &out.Reference, &out.IdempotencyKey,
		&out.GatewayResponse, &out.Note, &out.CreatedAt, &inserted,
	)
	return out, inserted, err
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	t, err := scanTxn(r.q.QueryRow(ctx, `SELECT `+txnCols+` FROM transactions WHERE id=$1`, id))
	return t, mapErr(err)
}

func (r *transactionsRepo) GetByReference(ctx context.Context, reference string) (models.Transaction, error) {
	t, err := scanTxn(r.q.QueryRow(ctx, `SELECT `+txnCols+` FROM transactions WHERE reference=$1`, reference))
	return t, mapErr(err)
}

// SettleStatus only ever moves pending rows; settled rows are immutable.
func (r *transactionsRepo) SettleStatus(ctx context.Context, id string, status models.TransactionStatus, gatewayResponse json.RawMessage) error {
	_, err := r.q.Exec(ctx, `
UPDATE transactions
   SET status=$2,
       gateway_response = COALESCE($3, gateway_response)
 WHERE id=$1 AND status='pending'`,
		id, status, gatewayResponse,
	)
	return err
}

// Reclaim is the retry-path twin of SettleStatus: the status guard and the
// write are one statement, so concurrent retries of the same failed attempt
// collapse onto a single pending row.
func (r *transactionsRepo) Reclaim(ctx context.Context, id, reference, note string) (models.Transaction, error) {
	t, err := scanTxn(r.q.QueryRow(ctx, `
UPDATE transactions
   SET status='pending', reference=$2, note=$3
 WHERE id=$1 AND status='failed'
RETURNING `+txnCols,
		id, reference, note,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, repo.ErrNoTransition
	}
	return t, err
}

func (r *transactionsRepo) ListByBooking(ctx context.Context, bookingID string, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+txnCols+` FROM transactions
 WHERE booking_id=$1
 ORDER BY created_at DESC
 LIMIT $2 OFFSET $3`,
		bookingID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return collectTxns(rows)
}

func (r *transactionsRepo) List(ctx context.Context, afterID string, limit int) ([]models.Transaction, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+txnCols+` FROM transactions WHERE id > $1 ORDER BY id LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectTxns(rows)
}

func collectTxns(rows pgx.Rows) ([]models.Transaction, error) {
	defer rows.Close()
	var out []models.Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *transactionsRepo) SuccessfulEscrowTxnExists(ctx context.Context, bookingID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
SELECT EXISTS(
  SELECT 1 FROM transactions
   WHERE booking_id=$1 AND type='escrow' AND status='success'
)`, bookingID).Scan(&exists)
	return exists, err
}

func (r *transactionsRepo) GetSuccessfulEscrowTxn(ctx context.Context, bookingID string) (models.Transaction, error) {
	t, err := scanTxn(r.q.QueryRow(ctx, `
SELECT `+txnCols+` FROM transactions
 WHERE booking_id=$1 AND type='escrow' AND status='success'
 ORDER BY created_at DESC
 LIMIT 1`, bookingID))
	return t, mapErr(err)
}
