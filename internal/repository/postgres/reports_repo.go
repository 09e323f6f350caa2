package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/craftlink/craftlink-backend/internal/models"
)

// reportsRepo is append-only: reports are never updated or deleted.
type reportsRepo struct{ q querier }

const reportCols = `id, run_by, run_at, total_transactions_checked,
total_escrows_checked, total_issues, issues, meta`

func scanReport(row pgx.Row) (models.ReconciliationReport, error) {
	var r models.ReconciliationReport
	err := row.Scan(
		&r.ID, &r.RunBy, &r.RunAt,
		&r.Summary.TotalTransactionsChecked, &r.Summary.TotalEscrowsChecked,
		&r.Summary.TotalIssues, &r.Issues, &r.Meta,
	)
	return r, err
}

func (r *reportsRepo) Create(ctx context.Context, rep models.ReconciliationReport) (models.ReconciliationReport, error) {
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	if rep.Issues == nil {
		rep.Issues = []models.ReconciliationIssue{}
	}
	out, err := scanReport(r.q.QueryRow(ctx, `
INSERT INTO reconciliation_reports (
  id, run_by, total_transactions_checked, total_escrows_checked,
  total_issues, issues, meta
) VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+reportCols,
		rep.ID, rep.RunBy, rep.Summary.TotalTransactionsChecked,
		rep.Summary.TotalEscrowsChecked, rep.Summary.TotalIssues,
		rep.Issues, rep.Meta,
	))
	return out, err
}

func (r *reportsRepo) GetByID(ctx context.Context, id string) (models.ReconciliationReport, error) {
	rep, err := scanReport(r.q.QueryRow(ctx, `SELECT `+reportCols+` FROM reconciliation_reports WHERE id=$1`, id))
	return rep, mapErr(err)
}

func (r *reportsRepo) List(ctx context.Context, limit, offset int) ([]models.ReconciliationReport, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+reportCols+` FROM reconciliation_reports
 ORDER BY run_at DESC
 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ReconciliationReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
