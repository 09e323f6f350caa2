package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/craftlink/craftlink-backend/internal/models"
	repo "github.com/craftlink/craftlink-backend/internal/repository"
)

// bookingsRepo writes only the payment-facing projection of bookings.
// Everything else on the row belongs to booking management.
type bookingsRepo struct{ q querier }

const bookingCols = `id, customer_id, creative_id, total_amount, status,
payment_status, escrow_amount, escrow_id, payment_released, settled_at,
customer_reviewed, pro_reviewed, completed_at, created_at`

func scanBooking(row pgx.Row) (models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.CustomerID, &b.CreativeID, &b.TotalAmount, &b.Status,
		&b.PaymentStatus, &b.EscrowAmount, &b.EscrowID, &b.PaymentReleased,
		&b.SettledAt, &b.CustomerReviewed, &b.ProReviewed, &b.CompletedAt,
		&b.CreatedAt,
	)
	return b, err
}

func (r *bookingsRepo) GetByID(ctx context.Context, id string) (models.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id=$1`, id))
	return b, mapErr(err)
}

func (r *bookingsRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *bookingsRepo) UpdatePayment(ctx context.Context, id string, p repo.BookingPaymentPatch) error {
	tag, err := r.q.Exec(ctx, `
UPDATE bookings
   SET payment_status   = COALESCE($2, payment_status),
       escrow_amount    = COALESCE($3, escrow_amount),
       escrow_id        = COALESCE($4, escrow_id),
       payment_released = COALESCE($5, payment_released),
       settled_at       = COALESCE($6, settled_at)
 WHERE id=$1`,
		id, p.PaymentStatus, p.EscrowAmount, p.EscrowID, p.PaymentReleased, p.SettledAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *bookingsRepo) SetReviewed(ctx context.Context, id string, customer, pro *bool) error {
	tag, err := r.q.Exec(ctx, `
UPDATE bookings
   SET customer_reviewed = COALESCE($2, customer_reviewed),
       pro_reviewed      = COALESCE($3, pro_reviewed)
 WHERE id=$1`,
		id, customer, pro,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
