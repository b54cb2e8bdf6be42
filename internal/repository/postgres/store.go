package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/pointledger/internal/repository"
	"github.com/utafrali/pointledger/pkg/database"
	apperrors "github.com/utafrali/pointledger/pkg/errors"
)

// PostgreSQL error codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// ErrOwnerMismatch is returned by EnsureTreasury when the stored treasury
// belongs to a different owner than the one configured.
var ErrOwnerMismatch = errors.New("treasury owner does not match configuration")

// Pool is the connection pool the store runs on. *pgxpool.Pool and pgxmock
// pools satisfy it.
type Pool interface {
	database.DBTX
	Ping(ctx context.Context) error
}

// Store runs each unit of work in a SERIALIZABLE transaction and locks every
// row it reads with SELECT ... FOR UPDATE.
type Store struct {
	pool Pool
}

// New creates a Store on pool.
func New(pool Pool) *Store {
	return &Store{pool: pool}
}

var _ repository.Store = (*Store)(nil)

// EnsureTreasury creates the treasury row for owner on first start and
// verifies the owner on every later start.
func (s *Store) EnsureTreasury(ctx context.Context, owner string) error {
	const insert = `
		INSERT INTO ledger_state (id, owner)
		VALUES (1, $1)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, insert, owner); err != nil {
		return fmt.Errorf("ensure treasury: %w", err)
	}

	var stored string
	if err := s.pool.QueryRow(ctx, `SELECT owner FROM ledger_state WHERE id = 1`).Scan(&stored); err != nil {
		return fmt.Errorf("load treasury owner: %w", err)
	}
	if stored != owner {
		return fmt.Errorf("%w: stored %q, configured %q", ErrOwnerMismatch, stored, owner)
	}
	return nil
}

func (s *Store) Atomic(ctx context.Context, fn func(repository.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, true, fn)
}

func (s *Store) View(ctx context.Context, fn func(repository.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, false, fn)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, lock bool, fn func(repository.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx, lock: lock}); err != nil {
		return classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// classify turns serialization failures into a retryable conflict.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected) {
		return apperrors.Conflict("concurrent update conflict, retry the request", err)
	}
	return err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraint
}
