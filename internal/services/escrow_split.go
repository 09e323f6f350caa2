package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/craftlink/craftlink-backend/internal/gateway"
	"github.com/craftlink/craftlink-backend/internal/metrics"
	"github.com/craftlink/craftlink-backend/internal/models"
	"github.com/craftlink/craftlink-backend/internal/notify"
	repo "github.com/craftlink/craftlink-backend/internal/repository"
)

// SplitResult reports the two legs of a split resolution.
type SplitResult struct {
	Success          bool   `json:"success"`
	RefundReference  string `json:"refund_reference,omitempty"`
	ReleaseReference string `json:"release_reference,omitempty"`
}

// SplitFunds settles a disputed escrow by refunding part of the amount to
// the customer and releasing the rest to the professional. The two ledger
// entries must sum exactly to the escrow amount; SplitAmounts puts any
// indivisible remainder on the release side.
func (s *EscrowService) SplitFunds(ctx context.Context, bookingID string, refundAmount, releaseAmount int64, initiatedBy, note string) (SplitResult, error) {
	escrow, err := s.store.Escrows().GetByBookingID(ctx, bookingID)
	if errors.Is(err, repo.ErrNotFound) {
		return SplitResult{}, models.NotFound("escrow_not_found", "no escrow for booking")
	}
	if err != nil {
		return SplitResult{}, err
	}
	if escrow.State.Terminal() {
		return SplitResult{}, models.StateConflict("escrow_terminal", fmt.Sprintf("escrow is already %s", escrow.State))
	}
	if refundAmount < 0 || releaseAmount < 0 || refundAmount+releaseAmount != escrow.Amount {
		return SplitResult{}, models.Integrity("invalid_split",
			fmt.Sprintf("split portions %d+%d do not sum to escrow amount %d", refundAmount, releaseAmount, escrow.Amount))
	}

	booking, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return SplitResult{}, err
	}
	if err := s.checkLedgerAmount(ctx, escrow); err != nil {
		return SplitResult{}, err
	}
	adapter, err := s.gateways.Get(escrow.Gateway)
	if err != nil {
		return SplitResult{}, models.Gateway("unknown_gateway", "escrow gateway not configured", err)
	}

	refundTxn, releaseTxn, err := s.claimSplit(ctx, escrow, booking, refundAmount, releaseAmount, note)
	if err != nil {
		return SplitResult{}, err
	}

	// Customer leg first; the professional's payout only runs once the
	// refund is settled one way or the other. Legs already succeeded on a
	// prior attempt are not re-executed.
	refundOK := true
	var refundRaw []byte
	if refundTxn != nil && refundTxn.Status == models.TxnPending {
		res, gwErr := adapter.Refund(ctx, gateway.RefundRequest{
			Reference: deref(escrow.GatewayReference),
			Amount:    refundAmount,
		})
		if gwErr != nil {
			return SplitResult{RefundReference: deref(refundTxn.Reference)},
				models.Gateway("gateway_unreachable", "refund leg failed with unknown outcome", gwErr)
		}
		refundOK, refundRaw = res.Success, res.Raw
	}

	releaseOK := true
	var releaseRaw []byte
	if releaseTxn != nil && releaseTxn.Status == models.TxnPending && refundOK {
		res, gwErr := adapter.Payout(ctx, gateway.PayoutRequest{
			Account:   booking.CreativeID,
			Amount:    releaseAmount,
			Reason:    note,
			Reference: deref(releaseTxn.Reference),
		})
		if gwErr != nil {
			return SplitResult{
					RefundReference:  refRef(refundTxn),
					ReleaseReference: deref(releaseTxn.Reference),
				},
				models.Gateway("gateway_unreachable", "release leg failed with unknown outcome", gwErr)
		}
		releaseOK, releaseRaw = res.Success, res.Raw
	}

	success := refundOK && releaseOK
	finalState := models.EscrowReleased
	paymentStatus := models.PaymentReleased
	if releaseAmount == 0 {
		// A split that refunds everything is a refund.
		finalState = models.EscrowRefunded
		paymentStatus = models.PaymentRefunded
	}

	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		if refundTxn != nil {
			st := models.TxnSuccess
			if !refundOK {
				st = models.TxnFailed
			}
			if err := tx.Transactions().SettleStatus(ctx, refundTxn.ID, st, refundRaw); err != nil {
				return err
			}
		}
		if releaseTxn != nil {
			st := models.TxnSuccess
			if !releaseOK || !refundOK {
				st = models.TxnFailed
			}
			if err := tx.Transactions().SettleStatus(ctx, releaseTxn.ID, st, releaseRaw); err != nil {
				return err
			}
		}

		if !success {
			if _, err := tx.Escrows().TransitionState(ctx, escrow.ID, releaseGuard, models.EscrowDisputed); err != nil && !errors.Is(err, repo.ErrNoTransition) {
				return err
			}
			return tx.AuditLogs().Create(ctx, models.AuditLog{
				EntityType: "escrow",
				EntityID:   &escrow.ID,
				Action:     "split_failed",
				Actor:      strPtr(initiatedBy),
				Details:    map[string]any{"refund_ok": refundOK, "release_ok": releaseOK},
			})
		}

		if _, err := tx.Escrows().TransitionState(ctx, escrow.ID, releaseGuard, finalState); err != nil {
			if errors.Is(err, repo.ErrNoTransition) {
				return models.StateConflict("state_changed", "escrow state changed concurrently")
			}
			return err
		}
		metrics.EscrowTransitions.WithLabelValues(string(escrow.State), string(finalState)).Inc()

		released := releaseAmount > 0
		patch := repo.BookingPaymentPatch{PaymentStatus: &paymentStatus}
		if released {
			patch.PaymentReleased = &released
		}
		if err := tx.Bookings().UpdatePayment(ctx, bookingID, patch); err != nil {
			return err
		}

		return tx.AuditLogs().Create(ctx, models.AuditLog{
			EntityType: "escrow",
			EntityID:   &escrow.ID,
			Action:     "split",
			Actor:      strPtr(initiatedBy),
			Details: map[string]any{
				"refund_amount":  refundAmount,
				"release_amount": releaseAmount,
				"note":           note,
			},
		})
	})
	if err != nil {
		return SplitResult{}, err
	}

	if !success {
		s.wp.Submit(func() {
			_ = s.notifier.NotifyAdmins(context.Background(), notify.AdminAlert{
				Type:    "escrow_split_failed",
				Title:   "split settlement failed for booking " + bookingID,
				Message: "a split leg was declined by the gateway; escrow parked in disputed",
				Meta:    map[string]any{"booking_id": bookingID, "escrow_id": escrow.ID},
			})
		})
	}

	return SplitResult{
		Success:          success,
		RefundReference:  refRef(refundTxn),
		ReleaseReference: refRef(releaseTxn),
	}, nil
}

// claimSplit writes the pending ledger rows for the two legs. A zero-amount
// leg gets no ledger row.
func (s *EscrowService) claimSplit(ctx context.Context, escrow models.Escrow, booking models.Booking, refundAmount, releaseAmount int64, note string) (refundTxn, releaseTxn *models.Transaction, err error) {
	claim := func(kind models.TransactionType, amount int64, leg string) (*models.Transaction, error) {
		ref := fmt.Sprintf("%s_%s", kind, uuid.NewString())
		idemKey := fmt.Sprintf("split_%s:%s", leg, escrow.ID)
		txn, inserted, err := s.store.Transactions().UpsertByIdempotencyKey(ctx, models.Transaction{
			BookingID:      escrow.BookingID,
			CustomerID:     booking.CustomerID,
			CreativeID:     booking.CreativeID,
			Amount:         amount,
			Type:           kind,
			Status:         models.TxnPending,
			Gateway:        escrow.Gateway,
			Reference:      &ref,
			IdempotencyKey: &idemKey,
			Note:           note,
		})
		if err != nil {
			return nil, err
		}
		if !inserted {
			switch txn.Status {
			case models.TxnPending:
				return nil, models.StateConflict("movement_in_progress", "a split for this escrow is already in flight")
			case models.TxnFailed:
				// Prior leg failed at the gateway; reclaim the same row via
				// CAS so concurrent retries cannot both run the leg.
				reclaimed, err := s.store.Transactions().Reclaim(ctx, txn.ID, ref, note+" (retry)")
				if errors.Is(err, repo.ErrNoTransition) {
					return nil, models.StateConflict("movement_in_progress", "a split for this escrow is already in flight")
				}
				if err != nil {
					return nil, err
				}
				return &reclaimed, nil
			}
		}
		return &txn, nil
	}

	if refundAmount > 0 {
		refundTxn, err = claim(models.TxnRefund, refundAmount, "refund")
		if err != nil {
			return nil, nil, err
		}
	}
	if releaseAmount > 0 {
		releaseTxn, err = claim(models.TxnRelease, releaseAmount, "release")
		if err != nil {
			return nil, nil, err
		}
	}
	return refundTxn, releaseTxn, nil
}

func refRef(t *models.Transaction) string {
	if t == nil {
		return ""
	}
	return deref(t.Reference)
}
