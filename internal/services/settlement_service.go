package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/craftlink/craftlink-backend/internal/metrics"
	"github.com/craftlink/craftlink-backend/internal/models"
	repo "github.com/craftlink/craftlink-backend/internal/repository"
	"github.com/craftlink/craftlink-backend/internal/reputation"
	"github.com/craftlink/craftlink-backend/internal/worker"
)

// SettlementService decides when held funds become releasable: both parties
// reviewed the completed booking, or the grace period elapsed, whichever
// comes first. Disputed escrows are always skipped.
type SettlementService struct {
	store   repo.Store
	escrows *EscrowService
	scorer  reputation.Scorer
	wp      *worker.Pool
	grace   time.Duration
	now     func() time.Time
}

func NewSettlementService(store repo.Store, escrows *EscrowService, scorer reputation.Scorer, wp *worker.Pool, grace time.Duration) *SettlementService {
	return &SettlementService{
		store:   store,
		escrows: escrows,
		scorer:  scorer,
		wp:      wp,
		grace:   grace,
		now:     time.Now,
	}
}

type SettleResult struct {
	EscrowID  string `json:"escrow_id"`
	Reference string `json:"reference"`
}

// SettleEscrow releases the booking's escrow if the policy allows it.
// A nil result with nil error means "nothing to do": already released,
// frozen by a dispute, or not yet eligible.
func (s *SettlementService) SettleEscrow(ctx context.Context, bookingID string) (*SettleResult, error) {
	escrow, err := s.store.Escrows().GetByBookingID(ctx, bookingID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, models.NotFound("escrow_not_found", "no escrow for booking")
	}
	if err != nil {
		return nil, err
	}
	if escrow.State != models.EscrowHeld {
		metrics.SettlementsTotal.WithLabelValues("skipped").Inc()
		return nil, nil
	}

	booking, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !s.eligible(booking) {
		metrics.SettlementsTotal.WithLabelValues("skipped").Inc()
		return nil, nil
	}

	rel, err := s.escrows.ReleaseFunds(ctx, bookingID, "settlement", "automatic settlement release")
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	if !rel.Success {
		metrics.SettlementsTotal.WithLabelValues("failed").Inc()
		return nil, models.Gateway("payout_declined", "settlement payout was declined", nil)
	}

	// The payout entry records the actual fund movement to the professional,
	// distinct from the release entry written by ReleaseFunds.
	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		payoutRef := "pay_" + uuid.NewString()
		idemKey := "payout:" + escrow.ID
		if _, _, err := tx.Transactions().UpsertByIdempotencyKey(ctx, models.Transaction{
			BookingID:      bookingID,
			CustomerID:     booking.CustomerID,
			CreativeID:     booking.CreativeID,
			Amount:         escrow.Amount,
			Type:           models.TxnPayout,
			Status:         models.TxnSuccess,
			Gateway:        escrow.Gateway,
			Reference:      &payoutRef,
			IdempotencyKey: &idemKey,
			Note:           "settlement payout to professional",
		}); err != nil {
			return err
		}

		released := true
		settledAt := s.now()
		return tx.Bookings().UpdatePayment(ctx, bookingID, repo.BookingPaymentPatch{
			PaymentReleased: &released,
			SettledAt:       &settledAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.recalcTrust(booking.CustomerID, booking.CreativeID)
	metrics.SettlementsTotal.WithLabelValues("released").Inc()
	return &SettleResult{EscrowID: escrow.ID, Reference: rel.Reference}, nil
}

// MarkReviewed records review completion flags on the booking, then tries an
// opportunistic settlement so a double-reviewed booking pays out immediately
// instead of waiting for the next sweep. A nil result means the settlement
// policy skipped the escrow.
func (s *SettlementService) MarkReviewed(ctx context.Context, bookingID string, customer, professional *bool) (*SettleResult, error) {
	if customer == nil && professional == nil {
		return nil, models.Validation("missing_flags", "at least one review flag is required")
	}
	if err := s.store.Bookings().SetReviewed(ctx, bookingID, customer, professional); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, models.NotFound("booking_not_found", "no such booking")
		}
		return nil, err
	}

	res, err := s.SettleEscrow(ctx, bookingID)
	if err != nil {
		// The review flags are already durable; settlement failures here are
		// picked up by the periodic sweep.
		if models.IsKind(err, models.KindNotFound) {
			return nil, nil
		}
		slog.Warn("opportunistic settlement failed", "booking_id", bookingID, "err", err)
		return nil, nil
	}
	return res, nil
}

func (s *SettlementService) eligible(b models.Booking) bool {
	if b.CompletedAt == nil {
		return false
	}
	if b.BothReviewed() {
		return true
	}
	return s.now().Sub(*b.CompletedAt) >= s.grace
}

type BatchSummary struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// AutoSettlePendingEscrows sweeps all held escrows with a keyset cursor; each
// booking settles in its own atomic unit and per-item failures never abort
// the batch.
func (s *SettlementService) AutoSettlePendingEscrows(ctx context.Context) BatchSummary {
	const batchSize = 100
	var summary BatchSummary
	afterID := ""

	for {
		escrows, err := s.store.Escrows().ListByState(ctx, models.EscrowHeld, afterID, batchSize)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("list held escrows: %v", err))
			return summary
		}
		if len(escrows) == 0 {
			return summary
		}
		for _, esc := range escrows {
			afterID = esc.ID
			summary.Processed++
			res, err := s.SettleEscrow(ctx, esc.BookingID)
			if err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Sprintf("booking %s: %v", esc.BookingID, err))
				slog.Error("auto-settle item failed", "booking_id", esc.BookingID, "err", err)
				continue
			}
			if res != nil {
				summary.Succeeded++
			}
		}
		if len(escrows) < batchSize {
			return summary
		}
	}
}

func (s *SettlementService) recalcTrust(userIDs ...string) {
	for _, id := range userIDs {
		uid := id
		s.wp.Submit(func() {
			if err := s.scorer.RecalculateTrustScore(context.Background(), uid); err != nil {
				slog.Warn("trust score recalc failed", "user_id", uid, "err", err)
			}
		})
	}
}
