package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/craftlink/craftlink-backend/internal/models"
	repo "github.com/craftlink/craftlink-backend/internal/repository"
)

type escrowsRepo struct{ q querier }

const escrowCols = `id, booking_id, amount, state, gateway, gateway_reference,
idempotency_key, reconciled, scheduled_release_at, initiated_by, metadata,
created_at, updated_at`

func scanEscrow(row pgx.Row) (models.Escrow, error) {
	var e models.Escrow
	err := row.Scan(
		&e.ID, &e.BookingID, &e.Amount, &e.State, &e.Gateway, &e.GatewayReference,
		&e.IdempotencyKey, &e.Reconciled, &e.ScheduledReleaseAt, &e.InitiatedBy,
		&e.Metadata, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func (r *escrowsRepo) UpsertPending(ctx context.Context, e models.Escrow) (models.Escrow, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	// The DO UPDATE is guarded by state='pending': a held/terminal escrow is
	// never touched, the statement simply returns no row.
	const q = `
INSERT INTO escrows (
  id, booking_id, amount, state, gateway, gateway_reference, idempotency_key,
  initiated_by, metadata
) VALUES ($1,$2,$3,'pending',$4,$5,$6,$7,$8)
ON CONFLICT (booking_id) DO UPDATE
   SET amount            = EXCLUDED.amount,
       gateway           = EXCLUDED.gateway,
       gateway_reference = EXCLUDED.gateway_reference,
       idempotency_key   = EXCLUDED.idempotency_key,
       initiated_by      = EXCLUDED.initiated_by,
       metadata          = EXCLUDED.metadata,
       updated_at        = now()
 WHERE escrows.state = 'pending'
RETURNING ` + escrowCols
	out, err := scanEscrow(r.q.QueryRow(ctx, q,
		e.ID, e.BookingID, e.Amount, e.Gateway, e.GatewayReference,
		e.IdempotencyKey, e.InitiatedBy, e.Metadata,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Escrow{}, repo.ErrNoTransition
	}
	return out, err
}

func (r *escrowsRepo) GetByID(ctx context.Context, id string) (models.Escrow, error) {
	e, err := scanEscrow(r.q.QueryRow(ctx, `SELECT `+escrowCols+` FROM escrows WHERE id=$1`, id))
	return e, mapErr(err)
}

func (r *escrowsRepo) GetByBookingID(ctx context.Context, bookingID string) (models.Escrow, error) {
	e, err := scanEscrow(r.q.QueryRow(ctx, `SELECT `+escrowCols+` FROM escrows WHERE booking_id=$1`, bookingID))
	return e, mapErr(err)
}

func (r *escrowsRepo) GetByReference(ctx context.Context, reference string) (models.Escrow, error) {
	e, err := scanEscrow(r.q.QueryRow(ctx, `SELECT `+escrowCols+` FROM escrows WHERE gateway_reference=$1`, reference))
	return e, mapErr(err)
}

func (r *escrowsRepo) SetReference(ctx context.Context, id, reference string) error {
	_, err := r.q.Exec(ctx,
		`UPDATE escrows SET gateway_reference=$2, updated_at=now() WHERE id=$1`,
		id, reference,
	)
	return err
}

func (r *escrowsRepo) TransitionState(ctx context.Context, id string, from []models.EscrowState, to models.EscrowState) (models.Escrow, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	e, err := scanEscrow(r.q.QueryRow(ctx, `
UPDATE escrows SET state=$2, updated_at=now()
 WHERE id=$1 AND state = ANY($3)
RETURNING `+escrowCols,
		id, to, states,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Escrow{}, repo.ErrNoTransition
	}
	return e, err
}

func (r *escrowsRepo) ListByState(ctx context.Context, state models.EscrowState, afterID string, limit int) ([]models.Escrow, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+escrowCols+` FROM escrows
 WHERE state=$1 AND id > $2
 ORDER BY id
 LIMIT $3`,
		state, afterID, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectEscrows(rows)
}

func (r *escrowsRepo) List(ctx context.Context, afterID string, limit int) ([]models.Escrow, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+escrowCols+` FROM escrows WHERE id > $1 ORDER BY id LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectEscrows(rows)
}

func collectEscrows(rows pgx.Rows) ([]models.Escrow, error) {
	defer rows.Close()
	var out []models.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *escrowsRepo) MarkReconciled(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `UPDATE escrows SET reconciled=true WHERE id=$1`, id)
	return err
}
