package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/craftlink/craftlink-backend/internal/models"
	"github.com/craftlink/craftlink-backend/internal/notify"
	repo "github.com/craftlink/craftlink-backend/internal/repository"
	"github.com/craftlink/craftlink-backend/internal/reputation"
	"github.com/craftlink/craftlink-backend/internal/worker"
)

// DisputeService runs the dispute state machine alongside the escrow one.
// An open dispute freezes settlement; only admins resolve or cancel.
type DisputeService struct {
	store    repo.Store
	escrows  *EscrowService
	notifier notify.Notifier
	scorer   reputation.Scorer
	wp       *worker.Pool
}

func NewDisputeService(store repo.Store, escrows *EscrowService, notifier notify.Notifier, scorer reputation.Scorer, wp *worker.Pool) *DisputeService {
	return &DisputeService{store: store, escrows: escrows, notifier: notifier, scorer: scorer, wp: wp}
}

type CreateDisputeRequest struct {
	BookingID   string
	InitiatorID string
	Reason      string
	Description string
	Evidence    []models.Evidence
}

func (s *DisputeService) CreateDispute(ctx context.Context, req CreateDisputeRequest) (models.Dispute, error) {
	if req.BookingID == "" {
		return models.Dispute{}, models.Validation("missing_booking_id", "bookingId is required")
	}
	if req.InitiatorID == "" {
		return models.Dispute{}, models.Validation("missing_initiator", "initiatorId is required")
	}
	if req.Reason == "" {
		return models.Dispute{}, models.Validation("missing_reason", "reason is required")
	}

	booking, err := s.store.Bookings().GetByID(ctx, req.BookingID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Dispute{}, models.NotFound("booking_not_found", "booking does not exist")
	}
	if err != nil {
		return models.Dispute{}, err
	}

	respondent := booking.CreativeID
	if req.InitiatorID == booking.CreativeID {
		respondent = booking.CustomerID
	}

	// A new dispute is only permitted once any prior one is terminal.
	if _, err := s.store.Disputes().GetActiveByBooking(ctx, req.BookingID); err == nil {
		return models.Dispute{}, models.StateConflict("dispute_already_open", "an active dispute already exists for this booking")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return models.Dispute{}, err
	}

	now := time.Now()
	for i := range req.Evidence {
		if req.Evidence[i].UploadedAt.IsZero() {
			req.Evidence[i].UploadedAt = now
		}
		if req.Evidence[i].UploadedBy == "" {
			req.Evidence[i].UploadedBy = req.InitiatorID
		}
	}

	var dispute models.Dispute
	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		var err error
		dispute, err = tx.Disputes().Create(ctx, models.Dispute{
			BookingID:    req.BookingID,
			InitiatorID:  req.InitiatorID,
			RespondentID: respondent,
			Reason:       req.Reason,
			Description:  req.Description,
			Evidence:     req.Evidence,
			Status:       models.DisputeOpen,
		})
		if err != nil {
			return err
		}
		if err := s.escrows.FreezeForDispute(ctx, tx, req.BookingID); err != nil {
			return err
		}
		return tx.AuditLogs().Create(ctx, models.AuditLog{
			EntityType: "dispute",
			EntityID:   &dispute.ID,
			Action:     "opened",
			Actor:      &req.InitiatorID,
			Details:    map[string]any{"booking_id": req.BookingID, "reason": req.Reason},
		})
	})
	if err != nil {
		return models.Dispute{}, err
	}

	s.wp.Submit(func() {
		_ = s.notifier.NotifyAdmins(context.Background(), notify.AdminAlert{
			Type:    "dispute_opened",
			Title:   "dispute opened on booking " + req.BookingID,
			Message: req.Reason,
			Meta:    map[string]any{"dispute_id": dispute.ID, "booking_id": req.BookingID},
		})
	})

	return dispute, nil
}

func (s *DisputeService) AddEvidence(ctx context.Context, disputeID string, ev models.Evidence) (models.Dispute, error) {
	if ev.UploadedBy == "" {
		return models.Dispute{}, models.Validation("missing_uploader", "uploadedBy is required")
	}
	if ev.URL == "" {
		return models.Dispute{}, models.Validation("missing_url", "evidence url is required")
	}
	if ev.UploadedAt.IsZero() {
		ev.UploadedAt = time.Now()
	}

	d, err := s.store.Disputes().AppendEvidence(ctx, disputeID, ev)
	if errors.Is(err, repo.ErrNoTransition) {
		if _, getErr := s.store.Disputes().GetByID(ctx, disputeID); errors.Is(getErr, repo.ErrNotFound) {
			return models.Dispute{}, models.NotFound("dispute_not_found", "dispute does not exist")
		}
		return models.Dispute{}, models.StateConflict("dispute_closed", "evidence may only be added while the dispute is open or under review")
	}
	return d, err
}

func (s *DisputeService) StartReview(ctx context.Context, disputeID, adminID string) (models.Dispute, error) {
	d, err := s.store.Disputes().TransitionStatus(ctx, disputeID,
		[]models.DisputeStatus{models.DisputeOpen}, models.DisputeUnderReview)
	if errors.Is(err, repo.ErrNoTransition) {
		if _, getErr := s.store.Disputes().GetByID(ctx, disputeID); errors.Is(getErr, repo.ErrNotFound) {
			return models.Dispute{}, models.NotFound("dispute_not_found", "dispute does not exist")
		}
		return models.Dispute{}, models.StateConflict("not_open", "only open disputes can move to review")
	}
	if err != nil {
		return models.Dispute{}, err
	}
	if err := s.store.AuditLogs().Create(ctx, models.AuditLog{
		EntityType: "dispute",
		EntityID:   &d.ID,
		Action:     "under_review",
		Actor:      &adminID,
	}); err != nil {
		slog.Warn("dispute audit write failed", "dispute_id", d.ID, "action", "under_review", "err", err)
	}
	return d, nil
}

type ResolveDisputeRequest struct {
	DisputeID      string
	ResolvedBy     string
	Resolution     models.DisputeResolution
	ResolutionNote string
	// RefundAmount is the customer's portion for split resolutions. The
	// release portion is amount-refund, so any indivisible remainder lands
	// on the professional's side. Set ReleaseAmount to override; the two
	// must then sum exactly to the escrow amount.
	RefundAmount  *int64
	ReleaseAmount *int64
}

func (s *DisputeService) ResolveDispute(ctx context.Context, req ResolveDisputeRequest) (models.Dispute, error) {
	if !req.Resolution.Valid() {
		return models.Dispute{}, models.Validation("invalid_resolution", "unknown resolution: "+string(req.Resolution))
	}

	dispute, err := s.store.Disputes().GetByID(ctx, req.DisputeID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Dispute{}, models.NotFound("dispute_not_found", "dispute does not exist")
	}
	if err != nil {
		return models.Dispute{}, err
	}

	var refundPortion, releasePortion int64
	if req.Resolution == models.ResolveSplit {
		escrow, err := s.store.Escrows().GetByBookingID(ctx, dispute.BookingID)
		if errors.Is(err, repo.ErrNotFound) {
			return models.Dispute{}, models.NotFound("escrow_not_found", "no escrow for disputed booking")
		}
		if err != nil {
			return models.Dispute{}, err
		}
		refundPortion, releasePortion, err = splitPortions(escrow.Amount, req.RefundAmount, req.ReleaseAmount)
		if err != nil {
			return models.Dispute{}, err
		}
	}

	// Claim the dispute first: the resolved CAS is what prevents two admins
	// from both moving funds. Fund movement failures after this point leave
	// the escrow parked in disputed for a manual retry.
	resolved, err := s.store.Disputes().Resolve(ctx, req.DisputeID,
		[]models.DisputeStatus{models.DisputeOpen, models.DisputeUnderReview},
		req.Resolution, req.ResolutionNote, req.ResolvedBy)
	if errors.Is(err, repo.ErrNoTransition) {
		return models.Dispute{}, models.StateConflict("dispute_closed", "dispute is already resolved or cancelled")
	}
	if err != nil {
		return models.Dispute{}, err
	}

	switch req.Resolution {
	case models.ResolveReleasePro:
		note := "dispute resolved in favor of professional"
		if _, err := s.escrows.ReleaseFunds(ctx, dispute.BookingID, req.ResolvedBy, note); err != nil {
			return resolved, err
		}
	case models.ResolveRefundCustomer:
		note := "dispute resolved in favor of customer"
		if _, err := s.escrows.RefundFunds(ctx, dispute.BookingID, req.ResolvedBy, note); err != nil {
			return resolved, err
		}
	case models.ResolveSplit:
		if _, err := s.escrows.SplitFunds(ctx, dispute.BookingID, refundPortion, releasePortion, req.ResolvedBy, "dispute split resolution"); err != nil {
			return resolved, err
		}
	default: // no_action, other: unfreeze without fund movement
		err = s.store.WithTx(ctx, func(tx repo.Store) error {
			return s.escrows.Unfreeze(ctx, tx, dispute.BookingID)
		})
		if err != nil {
			return resolved, err
		}
	}

	if err := s.store.AuditLogs().Create(ctx, models.AuditLog{
		EntityType: "dispute",
		EntityID:   &resolved.ID,
		Action:     "resolved",
		Actor:      &req.ResolvedBy,
		Details:    map[string]any{"resolution": string(req.Resolution), "note": req.ResolutionNote},
	}); err != nil {
		slog.Warn("dispute audit write failed", "dispute_id", resolved.ID, "action", "resolved", "err", err)
	}

	s.recalcTrust(dispute.InitiatorID, dispute.RespondentID)
	return resolved, nil
}

func (s *DisputeService) CancelDispute(ctx context.Context, disputeID, cancelledBy string) (models.Dispute, error) {
	d, err := s.store.Disputes().TransitionStatus(ctx, disputeID,
		[]models.DisputeStatus{models.DisputeOpen, models.DisputeUnderReview}, models.DisputeCancelled)
	if errors.Is(err, repo.ErrNoTransition) {
		if _, getErr := s.store.Disputes().GetByID(ctx, disputeID); errors.Is(getErr, repo.ErrNotFound) {
			return models.Dispute{}, models.NotFound("dispute_not_found", "dispute does not exist")
		}
		return models.Dispute{}, models.StateConflict("dispute_closed", "dispute is already resolved or cancelled")
	}
	if err != nil {
		return models.Dispute{}, err
	}

	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		if err := s.escrows.Unfreeze(ctx, tx, d.BookingID); err != nil {
			return err
		}
		return tx.AuditLogs().Create(ctx, models.AuditLog{
			EntityType: "dispute",
			EntityID:   &d.ID,
			Action:     "cancelled",
			Actor:      &cancelledBy,
		})
	})
	if err != nil {
		return d, err
	}
	return d, nil
}

func (s *DisputeService) GetDispute(ctx context.Context, disputeID string) (models.Dispute, error) {
	d, err := s.store.Disputes().GetByID(ctx, disputeID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Dispute{}, models.NotFound("dispute_not_found", "dispute does not exist")
	}
	return d, err
}

func (s *DisputeService) ListByBooking(ctx context.Context, bookingID string) ([]models.Dispute, error) {
	return s.store.Disputes().ListByBooking(ctx, bookingID)
}

// splitPortions validates the split and applies the deterministic rounding
// rule: when only the refund portion is given, the remainder goes to the
// professional's release side.
func splitPortions(total int64, refund, release *int64) (int64, int64, error) {
	if refund == nil && release == nil {
		return 0, 0, models.Validation("missing_split", "split resolution requires a refund or release portion")
	}
	var r, l int64
	switch {
	case refund != nil && release != nil:
		r, l = *refund, *release
	case refund != nil:
		r, l = *refund, total-*refund
	default:
		l, r = *release, total-*release
	}
	if r < 0 || l < 0 || r+l != total {
		return 0, 0, models.Integrity("invalid_split",
			fmt.Sprintf("split portions %d+%d do not sum to escrow amount %d", r, l, total))
	}
	return r, l, nil
}

func (s *DisputeService) recalcTrust(userIDs ...string) {
	for _, id := range userIDs {
		uid := id
		s.wp.Submit(func() {
			if err := s.scorer.RecalculateTrustScore(context.Background(), uid); err != nil {
				slog.Warn("trust score recalc failed", "user_id", uid, "err", err)
			}
		})
	}
}
