package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/craftlink/craftlink-backend/internal/models"
	repo "github.com/craftlink/craftlink-backend/internal/repository"
)

type disputesRepo struct{ q querier }

const disputeCols = `id, booking_id, initiator_id, respondent_id, reason,
description, evidence, status, resolution, resolution_note, resolved_by,
resolved_at, created_at, updated_at`

func scanDispute(row pgx.Row) (models.Dispute, error) {
	var d models.Dispute
	err := row.Scan(
		&d.ID, &d.BookingID, &d.InitiatorID, &d.RespondentID, &d.Reason,
		&d.Description, &d.Evidence, &d.Status, &d.Resolution, &d.ResolutionNote,
		&d.ResolvedBy, &d.ResolvedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

func (r *disputesRepo) Create(ctx context.Context, d models.Dispute) (models.Dispute, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Evidence == nil {
		d.Evidence = []models.Evidence{}
	}
	out, err := scanDispute(r.q.QueryRow(ctx, `
INSERT INTO disputes (
  id, booking_id, initiator_id, respondent_id, reason, description, evidence, status
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING `+disputeCols,
		d.ID, d.BookingID, d.InitiatorID, d.RespondentID, d.Reason,
		d.Description, d.Evidence, d.Status,
	))
	return out, err
}

func (r *disputesRepo) GetByID(ctx context.Context, id string) (models.Dispute, error) {
	d, err := scanDispute(r.q.QueryRow(ctx, `SELECT `+disputeCols+` FROM disputes WHERE id=$1`, id))
	return d, mapErr(err)
}

func (r *disputesRepo) GetActiveByBooking(ctx context.Context, bookingID string) (models.Dispute, error) {
	d, err := scanDispute(r.q.QueryRow(ctx, `
SELECT `+disputeCols+` FROM disputes
 WHERE booking_id=$1 AND status IN ('open','under_review')
 ORDER BY created_at DESC
 LIMIT 1`, bookingID))
	return d, mapErr(err)
}

// AppendEvidence is append-only and legal only while the dispute is open or
// under review; the status guard lives in the statement itself.
func (r *disputesRepo) AppendEvidence(ctx context.Context, id string, ev models.Evidence) (models.Dispute, error) {
	d, err := scanDispute(r.q.QueryRow(ctx, `
UPDATE disputes
   SET evidence = evidence || $2::jsonb,
       updated_at = now()
 WHERE id=$1 AND status IN ('open','under_review')
RETURNING `+disputeCols,
		id, []models.Evidence{ev},
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Dispute{}, repo.ErrNoTransition
	}
	return d, err
}

func (r *disputesRepo) TransitionStatus(ctx context.Context, id string, from []models.DisputeStatus, to models.DisputeStatus) (models.Dispute, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	d, err := scanDispute(r.q.QueryRow(ctx, `
UPDATE disputes SET status=$2, updated_at=now()
 WHERE id=$1 AND status = ANY($3)
RETURNING `+disputeCols,
		id, to, states,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Dispute{}, repo.ErrNoTransition
	}
	return d, err
}

func (r *disputesRepo) Resolve(ctx context.Context, id string, from []models.DisputeStatus, resolution models.DisputeResolution, note, resolvedBy string) (models.Dispute, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	d, err := scanDispute(r.q.QueryRow(ctx, `
UPDATE disputes
   SET status='resolved',
       resolution=$2,
       resolution_note=$3,
       resolved_by=$4,
       resolved_at=now(),
       updated_at=now()
 WHERE id=$1 AND status = ANY($5)
RETURNING `+disputeCols,
		id, resolution, note, resolvedBy, states,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Dispute{}, repo.ErrNoTransition
	}
	return d, err
}

func (r *disputesRepo) ListByBooking(ctx context.Context, bookingID string) ([]models.Dispute, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+disputeCols+` FROM disputes WHERE booking_id=$1 ORDER BY created_at DESC`,
		bookingID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
