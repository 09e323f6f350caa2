package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	repo "github.com/craftlink/craftlink-backend/internal/repository"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every repo works
// unchanged inside or outside WithTx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool // nil when tx-scoped
	q    querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Escrows() repo.Escrows           { return &escrowsRepo{s.q} }
func (s *Store) Transactions() repo.Transactions { return &transactionsRepo{s.q} }
func (s *Store) Bookings() repo.Bookings         { return &bookingsRepo{s.q} }
func (s *Store) Disputes() repo.Disputes         { return &disputesRepo{s.q} }
func (s *Store) Reports() repo.Reports           { return &reportsRepo{s.q} }
func (s *Store) AuditLogs() repo.AuditLogs       { return &auditLogsRepo{s.q} }
func (s *Store) Users() repo.Users               { return &usersRepo{s.q} }

// WithTx runs fn against tx-scoped repositories in one serializable pgx
// transaction. Nested calls reuse the surrounding transaction.
func (s *Store) WithTx(ctx context.Context, fn func(repo.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	if err := fn(&Store{q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.ErrNotFound
	}
	return err
}
