package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/craftlink/craftlink-backend/internal/metrics"
	"github.com/craftlink/craftlink-backend/internal/models"
	"github.com/craftlink/craftlink-backend/internal/notify"
	repo "github.com/craftlink/craftlink-backend/internal/repository"
)

// maxStoredIssues caps the issue list persisted per report; totals keep
// counting past the cap.
const maxStoredIssues = 500

// alertTopIssues is how many issues the admin alert carries.
const alertTopIssues = 5

// ReconciliationService cross-checks ledger, escrow, and booking state for
// drift. It reads with a keyset cursor, never holds a transaction across the
// scan, and mutates nothing but the escrows' reconciled marker and its own
// append-only reports.
type ReconciliationService struct {
	store    repo.Store
	notifier notify.Notifier
	limit    int
}

func NewReconciliationService(store repo.Store, notifier notify.Notifier, limit int) *ReconciliationService {
	return &ReconciliationService{store: store, notifier: notifier, limit: limit}
}

type reconRun struct {
	issues []models.ReconciliationIssue
	total  int
}

func (r *reconRun) add(issueType string, sev models.IssueSeverity, msg, related string) {
	r.total++
	if len(r.issues) < maxStoredIssues {
		r.issues = append(r.issues, models.ReconciliationIssue{
			Type:     issueType,
			Severity: sev,
			Message:  msg,
			Related:  related,
		})
	}
}

// Run executes one reconciliation pass and writes an immutable report.
// runBy is nil for scheduled runs.
func (s *ReconciliationService) Run(ctx context.Context, runBy *string) (models.ReconciliationReport, error) {
	run := &reconRun{}

	txnsChecked := s.scanTransactions(ctx, run)
	escrowsChecked := s.scanEscrows(ctx, run)

	report, err := s.store.Reports().Create(ctx, models.ReconciliationReport{
		RunBy: runBy,
		Summary: models.ReconciliationSummary{
			TotalTransactionsChecked: txnsChecked,
			TotalEscrowsChecked:      escrowsChecked,
			TotalIssues:              run.total,
		},
		Issues: run.issues,
		Meta:   map[string]any{"limit": s.limit, "issue_cap": maxStoredIssues},
	})
	if err != nil {
		return models.ReconciliationReport{}, err
	}

	metrics.ReconciliationIssues.Set(float64(run.total))

	if err := s.store.AuditLogs().Create(ctx, models.AuditLog{
		EntityType: "reconciliation",
		EntityID:   &report.ID,
		Action:     "run",
		Actor:      runBy,
		Details: map[string]any{
			"transactions_checked": txnsChecked,
			"escrows_checked":      escrowsChecked,
			"issues":               run.total,
		},
	}); err != nil {
		slog.Warn("reconciliation audit write failed", "report_id", report.ID, "err", err)
	}

	if run.total > 0 {
		s.alert(ctx, report)
	}
	return report, nil
}

func (s *ReconciliationService) scanTransactions(ctx context.Context, run *reconRun) int {
	const batchSize = 200
	checked := 0
	afterID := ""

	for checked < s.limit {
		txns, err := s.store.Transactions().List(ctx, afterID, min(batchSize, s.limit-checked))
		if err != nil {
			run.add(models.IssueReconcileError, models.SeverityHigh,
				fmt.Sprintf("listing transactions: %v", err), "")
			return checked
		}
		if len(txns) == 0 {
			return checked
		}
		for _, txn := range txns {
			afterID = txn.ID
			checked++
			if err := s.checkTransaction(ctx, run, txn); err != nil {
				run.add(models.IssueReconcileError, models.SeverityMedium,
					fmt.Sprintf("transaction %s: %v", txn.ID, err), txn.ID)
			}
		}
		if len(txns) < batchSize {
			return checked
		}
	}
	return checked
}

func (s *ReconciliationService) checkTransaction(ctx context.Context, run *reconRun, txn models.Transaction) error {
	if txn.BookingID == "" {
		run.add(models.IssueTxnWithoutBooking, models.SeverityHigh,
			"transaction has no booking reference", txn.ID)
		return nil
	}

	exists, err := s.store.Bookings().Exists(ctx, txn.BookingID)
	if err != nil {
		return err
	}
	if !exists {
		run.add(models.IssueTxnBookingMissing, models.SeverityHigh,
			fmt.Sprintf("booking %s referenced by transaction does not exist", txn.BookingID), txn.ID)
		return nil
	}

	if txn.Type != models.TxnEscrow || txn.Status != models.TxnSuccess {
		return nil
	}

	escrow, err := s.store.Escrows().GetByBookingID(ctx, txn.BookingID)
	if errors.Is(err, repo.ErrNotFound) {
		run.add(models.IssueTxnMissingEscrow, models.SeverityHigh,
			"successful payment transaction has no matching escrow", txn.ID)
		return nil
	}
	if err != nil {
		return err
	}

	if escrow.Amount != txn.Amount {
		run.add(models.IssueAmountMismatch, models.SeverityHigh,
			fmt.Sprintf("escrow amount %d != transaction amount %d", escrow.Amount, txn.Amount), escrow.ID)
	}

	if escrow.State == models.EscrowReleased {
		booking, err := s.store.Bookings().GetByID(ctx, txn.BookingID)
		if err != nil {
			return err
		}
		if !booking.PaymentReleased {
			run.add(models.IssueReleasedNotProjected, models.SeverityMedium,
				"escrow released but booking.paymentReleased is false", escrow.ID)
		}
	}
	return nil
}

func (s *ReconciliationService) scanEscrows(ctx context.Context, run *reconRun) int {
	const batchSize = 200
	checked := 0
	afterID := ""

	for checked < s.limit {
		escrows, err := s.store.Escrows().List(ctx, afterID, min(batchSize, s.limit-checked))
		if err != nil {
			run.add(models.IssueReconcileError, models.SeverityHigh,
				fmt.Sprintf("listing escrows: %v", err), "")
			return checked
		}
		if len(escrows) == 0 {
			return checked
		}
		for _, esc := range escrows {
			afterID = esc.ID
			checked++
			clean, err := s.checkEscrow(ctx, run, esc)
			if err != nil {
				run.add(models.IssueReconcileError, models.SeverityMedium,
					fmt.Sprintf("escrow %s: %v", esc.ID, err), esc.ID)
				continue
			}
			if clean && !esc.Reconciled {
				if err := s.store.Escrows().MarkReconciled(ctx, esc.ID); err != nil {
					slog.Warn("marking escrow reconciled failed", "escrow_id", esc.ID, "err", err)
				}
			}
		}
		if len(escrows) < batchSize {
			return checked
		}
	}
	return checked
}

func (s *ReconciliationService) checkEscrow(ctx context.Context, run *reconRun, esc models.Escrow) (bool, error) {
	clean := true

	exists, err := s.store.Bookings().Exists(ctx, esc.BookingID)
	if err != nil {
		return false, err
	}
	if !exists {
		run.add(models.IssueEscrowWithoutBooking, models.SeverityHigh,
			fmt.Sprintf("booking %s referenced by escrow does not exist", esc.BookingID), esc.ID)
		clean = false
	}

	if esc.State == models.EscrowHeld {
		has, err := s.store.Transactions().SuccessfulEscrowTxnExists(ctx, esc.BookingID)
		if err != nil {
			return false, err
		}
		if !has {
			run.add(models.IssueEscrowWithoutTxn, models.SeverityHigh,
				"held escrow lacks a successful payment transaction", esc.ID)
			clean = false
		}
	}
	return clean, nil
}

func (s *ReconciliationService) GetReport(ctx context.Context, id string) (models.ReconciliationReport, error) {
	report, err := s.store.Reports().GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return models.ReconciliationReport{}, models.NotFound("report_not_found", "no such reconciliation report")
	}
	return report, err
}

func (s *ReconciliationService) ListReports(ctx context.Context, limit, offset int) ([]models.ReconciliationReport, error) {
	return s.store.Reports().List(ctx, limit, offset)
}

func (s *ReconciliationService) alert(ctx context.Context, report models.ReconciliationReport) {
	severity := models.SeverityMedium
	if report.Summary.TotalIssues > 10 {
		severity = models.SeverityHigh
	}

	top := report.Issues
	if len(top) > alertTopIssues {
		top = top[:alertTopIssues]
	}
	lines := make([]string, 0, len(top))
	for _, iss := range top {
		lines = append(lines, fmt.Sprintf("[%s] %s (%s)", iss.Type, iss.Message, iss.Related))
	}

	if err := s.notifier.NotifyAdmins(ctx, notify.AdminAlert{
		Type:    "reconciliation_drift",
		Title:   fmt.Sprintf("reconciliation found %d issue(s)", report.Summary.TotalIssues),
		Message: fmt.Sprintf("severity %s; top issues: %v", severity, lines),
		Meta: map[string]any{
			"report_id": report.ID,
			"severity":  string(severity),
			"issues":    report.Summary.TotalIssues,
		},
	}); err != nil {
		slog.Warn("reconciliation alert delivery failed", "err", err)
	}
}
