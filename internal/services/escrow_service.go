package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/craftlink/craftlink-backend/internal/gateway"
	"github.com/craftlink/craftlink-backend/internal/metrics"
	"github.com/craftlink/craftlink-backend/internal/models"
	"github.com/craftlink/craftlink-backend/internal/notify"
	repo "github.com/craftlink/craftlink-backend/internal/repository"
	"github.com/craftlink/craftlink-backend/internal/worker"
)

// EscrowService owns the funds state machine. Every mutation of an escrow,
// its ledger entries, and its booking projection happens inside one WithTx
// unit, and every state change is a compare-and-swap, so a webhook retry
// and an admin action have no read-then-write gap to race through.
type EscrowService struct {
	store     repo.Store
	gateways  *gateway.Registry
	notifier  notify.Notifier
	wp        *worker.Pool
	sigBypass bool
}

func NewEscrowService(store repo.Store, gateways *gateway.Registry, notifier notify.Notifier, wp *worker.Pool, sigBypass bool) *EscrowService {
	return &EscrowService{store: store, gateways: gateways, notifier: notifier, wp: wp, sigBypass: sigBypass}
}

type InitializeEscrowRequest struct {
	BookingID   string
	Amount      int64
	PayerEmail  string
	Gateway     string
	Metadata    map[string]any
	InitiatedBy string
}

type InitializeEscrowResult struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
	EscrowID         string `json:"escrow_id"`
}

// MovementResult reports a release/refund attempt. Reference is always set
// when a ledger entry exists, so callers can show pending-vs-done.
type MovementResult struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
}

func (s *EscrowService) InitializeEscrow(ctx context.Context, req InitializeEscrowRequest) (InitializeEscrowResult, error) {
	if req.BookingID == "" {
		return InitializeEscrowResult{}, models.Validation("missing_booking_id", "bookingId is required")
	}
	if req.Amount <= 0 {
		return InitializeEscrowResult{}, models.Validation("invalid_amount", "amount must be > 0")
	}
	if req.PayerEmail == "" {
		return InitializeEscrowResult{}, models.Validation("missing_payer_email", "payer email is required")
	}

	adapter, err := s.gateways.Get(req.Gateway)
	if err != nil {
		return InitializeEscrowResult{}, models.Validation("unknown_gateway", "unsupported payment gateway: "+req.Gateway)
	}

	booking, err := s.store.Bookings().GetByID(ctx, req.BookingID)
	if errors.Is(err, repo.ErrNotFound) {
		return InitializeEscrowResult{}, models.NotFound("booking_not_found", "booking does not exist")
	}
	if err != nil {
		return InitializeEscrowResult{}, err
	}

	if existing, err := s.store.Escrows().GetByBookingID(ctx, req.BookingID); err == nil {
		switch existing.State {
		case models.EscrowHeld, models.EscrowReleased, models.EscrowRefunded, models.EscrowDisputed:
			return InitializeEscrowResult{}, models.StateConflict("already_initialized", "escrow already active for booking")
		}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return InitializeEscrowResult{}, err
	}

	init, err := adapter.Initialize(ctx, gateway.InitializeRequest{
		Amount:     req.Amount,
		PayerEmail: req.PayerEmail,
		BookingID:  req.BookingID,
		Reference:  "esc_" + uuid.NewString(),
		Metadata:   req.Metadata,
	})
	if err != nil {
		return InitializeEscrowResult{}, models.Gateway("initialize_failed", "gateway initialize failed", err)
	}

	var escrowID string
	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		esc, err := tx.Escrows().UpsertPending(ctx, models.Escrow{
			BookingID:        req.BookingID,
			Amount:           req.Amount,
			Gateway:          req.Gateway,
			GatewayReference: &init.Reference,
			IdempotencyKey:   uuid.NewString(),
			InitiatedBy:      strPtr(req.InitiatedBy),
			Metadata:         req.Metadata,
		})
		if errors.Is(err, repo.ErrNoTransition) {
			return models.StateConflict("already_initialized", "escrow already active for booking")
		}
		if err != nil {
			return err
		}
		escrowID = esc.ID

		ref := init.Reference
		if _, _, err := tx.Transactions().UpsertByReference(ctx, models.Transaction{
			BookingID:       req.BookingID,
			CustomerID:      booking.CustomerID,
			CreativeID:      booking.CreativeID,
			Amount:          req.Amount,
			Type:            models.TxnEscrow,
			Status:          models.TxnPending,
			Gateway:         req.Gateway,
			Reference:       &ref,
			GatewayResponse: init.Raw,
			Note:            "escrow initialized",
		}); err != nil {
			return err
		}

		status := models.PaymentPending
		if err := tx.Bookings().UpdatePayment(ctx, req.BookingID, repo.BookingPaymentPatch{
			PaymentStatus: &status,
			EscrowID:      &esc.ID,
		}); err != nil {
			return err
		}

		return tx.AuditLogs().Create(ctx, models.AuditLog{
			EntityType: "escrow",
			EntityID:   &esc.ID,
			Action:     "initialized",
			Actor:      strPtr(req.InitiatedBy),
			Details:    map[string]any{"booking_id": req.BookingID, "amount": req.Amount, "gateway": req.Gateway},
		})
	})
	if err != nil {
		return InitializeEscrowResult{}, err
	}

	return InitializeEscrowResult{
		AuthorizationURL: init.AuthorizationURL,
		Reference:        init.Reference,
		EscrowID:         escrowID,
	}, nil
}

// WebhookResult is always HTTP-success-shaped toward the gateway (bar
// signature failures) to avoid retry storms; Reason makes rejections
// observable instead of silent.
type WebhookResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

const (
	WebhookReasonBadSignature    = "invalid_signature"
	WebhookReasonMalformed       = "malformed_event"
	WebhookReasonUnrecognized    = "unrecognized_event"
	WebhookReasonUnresolved      = "unresolved_target"
	WebhookReasonVerifyFailed    = "verify_failed"
	WebhookReasonVerifyMismatch  = "verify_mismatch"
	WebhookReasonAlreadyHandled  = "already_processed"
	WebhookReasonProcessed       = "processed"
	WebhookReasonFailureRecorded = "failure_recorded"
)

func (s *EscrowService) HandleWebhook(ctx context.Context, gatewayName string, headers http.Header, body []byte) (WebhookResult, error) {
	adapter, err := s.gateways.Get(gatewayName)
	if err != nil {
		slog.Warn("webhook for unknown gateway", "gateway", gatewayName)
		return WebhookResult{Accepted: false, Reason: "unknown_gateway"}, nil
	}

	if !s.sigBypass && !adapter.VerifyWebhookSignature(headers, body) {
		metrics.UntrustedWebhooks.WithLabelValues(gatewayName).Inc()
		slog.Warn("untrusted webhook rejected", "gateway", gatewayName)
		return WebhookResult{Accepted: false, Reason: WebhookReasonBadSignature}, nil
	}

	event, err := adapter.ParseEvent(body)
	if err != nil {
		metrics.WebhooksProcessed.WithLabelValues(gatewayName, "failed").Inc()
		slog.Warn("malformed webhook body", "gateway", gatewayName, "err", err)
		return WebhookResult{Accepted: true, Reason: WebhookReasonMalformed}, nil
	}

	class := adapter.Classify(event.Type)
	if class == gateway.EventUnrecognized {
		metrics.WebhooksProcessed.WithLabelValues(gatewayName, "unrecognized").Inc()
		slog.Info("unrecognized webhook event acknowledged", "gateway", gatewayName, "event", event.Type)
		return WebhookResult{Accepted: true, Reason: WebhookReasonUnrecognized}, nil
	}

	escrow, booking, err := s.resolveTarget(ctx, event)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			metrics.WebhooksProcessed.WithLabelValues(gatewayName, "unresolved").Inc()
			slog.Warn("webhook target unresolved",
				"gateway", gatewayName, "event", event.Type, "reference", event.Reference)
			return WebhookResult{Accepted: true, Reason: WebhookReasonUnresolved}, nil
		}
		return WebhookResult{}, err
	}

	switch class {
	case gateway.EventSuccess:
		return s.applySuccessEvent(ctx, adapter, event, escrow, booking)
	default:
		return s.applyFailureEvent(ctx, gatewayName, event, escrow, booking)
	}
}

func (s *EscrowService) resolveTarget(ctx context.Context, event gateway.Event) (models.Escrow, models.Booking, error) {
	var escrow models.Escrow
	var err error
	if event.BookingID != "" {
		escrow, err = s.store.Escrows().GetByBookingID(ctx, event.BookingID)
	} else if event.Reference != "" {
		escrow, err = s.store.Escrows().GetByReference(ctx, event.Reference)
	} else {
		return models.Escrow{}, models.Booking{}, repo.ErrNotFound
	}
	if err != nil {
		return models.Escrow{}, models.Booking{}, err
	}
	booking, err := s.store.Bookings().GetByID(ctx, escrow.BookingID)
	if err != nil {
		return models.Escrow{}, models.Booking{}, err
	}
	return escrow, booking, nil
}

// applySuccessEvent double-checks the success claim against the gateway by
// reference before trusting the webhook body, then applies the ledger write
// and the pending->held transition as one atomic unit.
func (s *EscrowService) applySuccessEvent(ctx context.Context, adapter gateway.Adapter, event gateway.Event, escrow models.Escrow, booking models.Booking) (WebhookResult, error) {
	name := adapter.Name()

	verified, err := adapter.Verify(ctx, event.Reference)
	if err != nil {
		// Unknown outcome: the ledger row (if any) stays pending and
		// reconciliation is the backstop.
		metrics.WebhooksProcessed.WithLabelValues(name, "failed").Inc()
		slog.Error("gateway verify failed", "gateway", name, "reference", event.Reference, "err", err)
		return WebhookResult{Accepted: true, Reason: WebhookReasonVerifyFailed}, nil
	}
	if verified.Status != "success" {
		metrics.UntrustedWebhooks.WithLabelValues(name).Inc()
		slog.Warn("webhook success claim contradicted by gateway",
			"gateway", name, "reference", event.Reference, "verified_status", verified.Status)
		return WebhookResult{Accepted: true, Reason: WebhookReasonVerifyMismatch}, nil
	}

	result := WebhookResult{Accepted: true, Reason: WebhookReasonProcessed}
	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		ref := event.Reference
		txn, inserted, err := tx.Transactions().UpsertByReference(ctx, models.Transaction{
			BookingID:       escrow.BookingID,
			CustomerID:      booking.CustomerID,
			CreativeID:      booking.CreativeID,
			Amount:          verified.Amount,
			Type:            models.TxnEscrow,
			Status:          models.TxnSuccess,
			Gateway:         name,
			Reference:       &ref,
			GatewayResponse: event.Raw,
			Note:            "payment confirmed via webhook",
		})
		if err != nil {
			return err
		}
		if !inserted {
			if txn.Status == models.TxnSuccess {
				// Redelivery of an already-applied event: nothing else moves.
				result.Reason = WebhookReasonAlreadyHandled
				return nil
			}
			if err := tx.Transactions().SettleStatus(ctx, txn.ID, models.TxnSuccess, event.Raw); err != nil {
				return err
			}
		}

		updated, err := tx.Escrows().TransitionState(ctx, escrow.ID,
			[]models.EscrowState{models.EscrowPending}, models.EscrowHeld)
		if errors.Is(err, repo.ErrNoTransition) {
			// Escrow already past pending (e.g. webhook retried after a
			// concurrent delivery won); the ledger row above is the record.
			result.Reason = WebhookReasonAlreadyHandled
			return nil
		}
		if err != nil {
			return err
		}
		metrics.EscrowTransitions.WithLabelValues(string(models.EscrowPending), string(models.EscrowHeld)).Inc()

		status := models.PaymentEscrowed
		if err := tx.Bookings().UpdatePayment(ctx, escrow.BookingID, repo.BookingPaymentPatch{
			PaymentStatus: &status,
			EscrowAmount:  &updated.Amount,
			EscrowID:      &updated.ID,
		}); err != nil {
			return err
		}

		return tx.AuditLogs().Create(ctx, models.AuditLog{
			EntityType: "escrow",
			EntityID:   &escrow.ID,
			Action:     "held",
			Details:    map[string]any{"reference": event.Reference, "event": event.Type},
		})
	})
	if err != nil {
		return WebhookResult{}, err
	}

	label := "processed"
	if result.Reason == WebhookReasonAlreadyHandled {
		label = "already_processed"
	}
	metrics.WebhooksProcessed.WithLabelValues(name, label).Inc()
	return result, nil
}

func (s *EscrowService) applyFailureEvent(ctx context.Context, gatewayName string, event gateway.Event, escrow models.Escrow, booking models.Booking) (WebhookResult, error) {
	err := s.store.WithTx(ctx, func(tx repo.Store) error {
		ref := event.Reference
		txn, inserted, err := tx.Transactions().UpsertByReference(ctx, models.Transaction{
			BookingID:       escrow.BookingID,
			CustomerID:      booking.CustomerID,
			CreativeID:      booking.CreativeID,
			Amount:          event.Amount,
			Type:            models.TxnEscrow,
			Status:          models.TxnFailed,
			Gateway:         gatewayName,
			Reference:       &ref,
			GatewayResponse: event.Raw,
			Note:            "payment failed via webhook",
		})
		if err != nil {
			return err
		}
		if !inserted && txn.Status == models.TxnPending {
			if err := tx.Transactions().SettleStatus(ctx, txn.ID, models.TxnFailed, event.Raw); err != nil {
				return err
			}
		}

		// Escrow stays pending so the customer can retry payment; only the
		// booking projection records the failure.
		status := models.PaymentFailed
		return tx.Bookings().UpdatePayment(ctx, escrow.BookingID, repo.BookingPaymentPatch{
			PaymentStatus: &status,
		})
	})
	if err != nil {
		return WebhookResult{}, err
	}
	metrics.WebhooksProcessed.WithLabelValues(gatewayName, "processed").Inc()
	return WebhookResult{Accepted: true, Reason: WebhookReasonFailureRecorded}, nil
}

// releaseGuard is the allowed from-set for releases; pending is included to
// support same-call release in degraded flows.
var releaseGuard = []models.EscrowState{models.EscrowHeld, models.EscrowPending, models.EscrowDisputed}

func (s *EscrowService) ReleaseFunds(ctx context.Context, bookingID, initiatedBy, note string) (MovementResult, error) {
	return s.moveFunds(ctx, bookingID, initiatedBy, note, models.TxnRelease)
}

func (s *EscrowService) RefundFunds(ctx context.Context, bookingID, initiatedBy, reason string) (MovementResult, error) {
	return s.moveFunds(ctx, bookingID, initiatedBy, reason, models.TxnRefund)
}

func (s *EscrowService) moveFunds(ctx context.Context, bookingID, initiatedBy, note string, kind models.TransactionType) (MovementResult, error) {
	if bookingID == "" {
		return MovementResult{}, models.Validation("missing_booking_id", "bookingId is required")
	}

	escrow, err := s.store.Escrows().GetByBookingID(ctx, bookingID)
	if errors.Is(err, repo.ErrNotFound) {
		return MovementResult{}, models.NotFound("escrow_not_found", "no escrow for booking")
	}
	if err != nil {
		return MovementResult{}, err
	}
	if escrow.State.Terminal() {
		return MovementResult{}, models.StateConflict("escrow_terminal", fmt.Sprintf("escrow is already %s", escrow.State))
	}

	booking, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return MovementResult{}, err
	}
	if err := s.checkLedgerAmount(ctx, escrow); err != nil {
		return MovementResult{}, err
	}

	adapter, err := s.gateways.Get(escrow.Gateway)
	if err != nil {
		return MovementResult{}, models.Gateway("unknown_gateway", "escrow gateway not configured", err)
	}

	txn, reused, err := s.claimMovement(ctx, escrow, booking, kind, note)
	if err != nil {
		return MovementResult{}, err
	}
	if reused {
		// The prior attempt for this escrow already succeeded; hand back the
		// same reference instead of moving money twice.
		return MovementResult{Success: true, Reference: deref(txn.Reference)}, nil
	}

	success, raw, gwErr := s.executeMovement(ctx, adapter, escrow, booking, txn, kind, note)
	if gwErr != nil {
		// Transport-level failure: outcome unknown. The pending ledger row
		// stays pending; reconciliation discovers gateway-silent cases.
		return MovementResult{Success: false, Reference: deref(txn.Reference)},
			models.Gateway("gateway_unreachable", "gateway call failed with unknown outcome", gwErr)
	}

	finalState := models.EscrowReleased
	paymentStatus := models.PaymentReleased
	if kind == models.TxnRefund {
		finalState = models.EscrowRefunded
		paymentStatus = models.PaymentRefunded
	}

	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		txnStatus := models.TxnSuccess
		if !success {
			txnStatus = models.TxnFailed
		}
		if err := tx.Transactions().SettleStatus(ctx, txn.ID, txnStatus, raw); err != nil {
			return err
		}

		if !success {
			// Never leave a failed movement silently held: park the escrow
			// in disputed so it is visibly in need of attention.
			if _, err := tx.Escrows().TransitionState(ctx, escrow.ID, releaseGuard, models.EscrowDisputed); err != nil && !errors.Is(err, repo.ErrNoTransition) {
				return err
			}
			metrics.EscrowTransitions.WithLabelValues(string(escrow.State), string(models.EscrowDisputed)).Inc()
			return tx.AuditLogs().Create(ctx, models.AuditLog{
				EntityType: "escrow",
				EntityID:   &escrow.ID,
				Action:     string(kind) + "_failed",
				Actor:      strPtr(initiatedBy),
				Details:    map[string]any{"reference": deref(txn.Reference)},
			})
		}

		if _, err := tx.Escrows().TransitionState(ctx, escrow.ID, releaseGuard, finalState); err != nil {
			if errors.Is(err, repo.ErrNoTransition) {
				return models.StateConflict("state_changed", "escrow state changed concurrently")
			}
			return err
		}
		metrics.EscrowTransitions.WithLabelValues(string(escrow.State), string(finalState)).Inc()

		released := kind == models.TxnRelease
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
			Action:     string(finalState),
			Actor:      strPtr(initiatedBy),
			Details:    map[string]any{"reference": deref(txn.Reference), "note": note},
		})
	})
	if err != nil {
		return MovementResult{}, err
	}

	if !success {
		s.wp.Submit(func() {
			_ = s.notifier.NotifyAdmins(context.Background(), notify.AdminAlert{
				Type:    "escrow_movement_failed",
				Title:   fmt.Sprintf("%s failed for booking %s", kind, bookingID),
				Message: "gateway declined the fund movement; escrow parked in disputed",
				Meta:    map[string]any{"booking_id": bookingID, "escrow_id": escrow.ID, "reference": deref(txn.Reference)},
			})
		})
	}

	return MovementResult{Success: success, Reference: deref(txn.Reference)}, nil
}

// claimMovement writes the attempt's pending ledger row under the internal
// idempotency key, so two near-simultaneous calls collapse onto one row.
// reused=true means a prior attempt already succeeded.
func (s *EscrowService) claimMovement(ctx context.Context, escrow models.Escrow, booking models.Booking, kind models.TransactionType, note string) (models.Transaction, bool, error) {
	ref := fmt.Sprintf("%s_%s", kind, uuid.NewString())
	idemKey := fmt.Sprintf("%s:%s", kind, escrow.ID)

	txn, inserted, err := s.store.Transactions().UpsertByIdempotencyKey(ctx, models.Transaction{
		BookingID:      escrow.BookingID,
		CustomerID:     booking.CustomerID,
		CreativeID:     booking.CreativeID,
		Amount:         escrow.Amount,
		Type:           kind,
		Status:         models.TxnPending,
		Gateway:        escrow.Gateway,
		Reference:      &ref,
		IdempotencyKey: &idemKey,
		Note:           note,
	})
	if err != nil {
		return models.Transaction{}, false, err
	}
	if inserted {
		return txn, false, nil
	}

	switch txn.Status {
	case models.TxnSuccess:
		return txn, true, nil
	case models.TxnPending:
		return models.Transaction{}, false, models.StateConflict("movement_in_progress",
			fmt.Sprintf("a %s for this escrow is already in flight", kind))
	default:
		// Prior attempt failed at the gateway; reclaim the same row back to
		// pending under a fresh reference. The CAS hands the attempt to one
		// retry; a concurrent retry finds no failed row and conflicts here
		// instead of reaching the gateway.
		reclaimed, err := s.store.Transactions().Reclaim(ctx, txn.ID, ref, note+" (retry)")
		if errors.Is(err, repo.ErrNoTransition) {
			return models.Transaction{}, false, models.StateConflict("movement_in_progress",
				fmt.Sprintf("a %s for this escrow is already in flight", kind))
		}
		return reclaimed, false, err
	}
}

// checkLedgerAmount refuses to move funds when the confirmed payment on the
// ledger disagrees with the escrow amount. Reconciliation flags the drift,
// but money must not move on a mismatched escrow. An escrow without a
// confirmed payment yet (degraded flows) passes; the state guards cover it.
func (s *EscrowService) checkLedgerAmount(ctx context.Context, escrow models.Escrow) error {
	txn, err := s.store.Transactions().GetSuccessfulEscrowTxn(ctx, escrow.BookingID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if txn.Amount != escrow.Amount {
		return models.Integrity("amount_mismatch",
			fmt.Sprintf("escrow amount %d does not match confirmed payment %d", escrow.Amount, txn.Amount))
	}
	return nil
}

func (s *EscrowService) executeMovement(ctx context.Context, adapter gateway.Adapter, escrow models.Escrow, booking models.Booking, txn models.Transaction, kind models.TransactionType, note string) (bool, json.RawMessage, error) {
	if kind == models.TxnRefund {
		res, err := adapter.Refund(ctx, gateway.RefundRequest{
			Reference: deref(escrow.GatewayReference),
			Amount:    txn.Amount,
		})
		return res.Success, res.Raw, err
	}
	res, err := adapter.Payout(ctx, gateway.PayoutRequest{
		Account:   booking.CreativeID,
		Amount:    txn.Amount,
		Reason:    note,
		Reference: deref(txn.Reference),
	})
	return res.Success, res.Raw, err
}

// CancelEscrow aborts an escrow before funds are ever held (booking
// cancelled pre-payment). Held and later states cannot be cancelled.
func (s *EscrowService) CancelEscrow(ctx context.Context, bookingID, actor, reason string) (models.Escrow, error) {
	escrow, err := s.store.Escrows().GetByBookingID(ctx, bookingID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Escrow{}, models.NotFound("escrow_not_found", "no escrow for booking")
	}
	if err != nil {
		return models.Escrow{}, err
	}

	var out models.Escrow
	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		var err error
		out, err = tx.Escrows().TransitionState(ctx, escrow.ID,
			[]models.EscrowState{models.EscrowPending}, models.EscrowCancelled)
		if errors.Is(err, repo.ErrNoTransition) {
			return models.StateConflict("not_cancellable", "only pending escrows can be cancelled")
		}
		if err != nil {
			return err
		}
		metrics.EscrowTransitions.WithLabelValues(string(models.EscrowPending), string(models.EscrowCancelled)).Inc()

		status := models.PaymentUnpaid
		if err := tx.Bookings().UpdatePayment(ctx, bookingID, repo.BookingPaymentPatch{PaymentStatus: &status}); err != nil {
			return err
		}
		return tx.AuditLogs().Create(ctx, models.AuditLog{
			EntityType: "escrow",
			EntityID:   &escrow.ID,
			Action:     "cancelled",
			Actor:      strPtr(actor),
			Details:    map[string]any{"reason": reason},
		})
	})
	return out, err
}

// FreezeForDispute moves a held escrow to disputed so settlement skips it.
// A pending or absent escrow is left alone; the dispute itself still opens.
func (s *EscrowService) FreezeForDispute(ctx context.Context, tx repo.Store, bookingID string) error {
	escrow, err := tx.Escrows().GetByBookingID(ctx, bookingID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = tx.Escrows().TransitionState(ctx, escrow.ID,
		[]models.EscrowState{models.EscrowHeld}, models.EscrowDisputed)
	if errors.Is(err, repo.ErrNoTransition) {
		return nil
	}
	if err == nil {
		metrics.EscrowTransitions.WithLabelValues(string(models.EscrowHeld), string(models.EscrowDisputed)).Inc()
	}
	return err
}

// Unfreeze returns a disputed escrow to held without moving funds
// (dispute resolved as no_action/other, or cancelled).
func (s *EscrowService) Unfreeze(ctx context.Context, tx repo.Store, bookingID string) error {
	escrow, err := tx.Escrows().GetByBookingID(ctx, bookingID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = tx.Escrows().TransitionState(ctx, escrow.ID,
		[]models.EscrowState{models.EscrowDisputed}, models.EscrowHeld)
	if errors.Is(err, repo.ErrNoTransition) {
		return nil
	}
	if err == nil {
		metrics.EscrowTransitions.WithLabelValues(string(models.EscrowDisputed), string(models.EscrowHeld)).Inc()
	}
	return err
}

func (s *EscrowService) GetByBookingID(ctx context.Context, bookingID string) (models.Escrow, error) {
	e, err := s.store.Escrows().GetByBookingID(ctx, bookingID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Escrow{}, models.NotFound("escrow_not_found", "no escrow for booking")
	}
	return e, err
}

func (s *EscrowService) ListTransactions(ctx context.Context, bookingID string, limit, offset int) ([]models.Transaction, error) {
	return s.store.Transactions().ListByBooking(ctx, bookingID, limit, offset)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
