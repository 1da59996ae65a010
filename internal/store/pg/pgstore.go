package pg

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pitaka.app/internal/bank"
)

// Migrations holds the schema applied by internal/migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Store implements bank.Store on Postgres. Every atomic unit is one serializable
// transaction.
type Store struct {
	db *sql.DB
}

var _ bank.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Atomically runs fn in a serializable transaction. The transaction rolls back
// when fn fails or ctx is cancelled before commit.
func (s *Store) Atomically(ctx context.Context, fn func(tx bank.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return mapErr(err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

var _ bank.Tx = (*pgTx)(nil)

// mapErr translates SQLSTATEs into bank errors. Errors already carrying a bank
// sentinel pass through.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", bank.ErrConflict, pgErr.ConstraintName)
	case "40001", "40P01":
		return fmt.Errorf("%w: concurrent update, retry", bank.ErrConflict)
	case "23514":
		if pgErr.ConstraintName == "accounts_balance_nonnegative" {
			return fmt.Errorf("%w: negative balance", bank.ErrInsufficientFunds)
		}
	case "23503":
		return fmt.Errorf("%w: %s", bank.ErrNotFound, pgErr.ConstraintName)
	}
	return err
}

func notFound(what string) error { return fmt.Errorf("%w: %s", bank.ErrNotFound, what) }

// one maps sql.ErrNoRows to a bank not-found error.
func one(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(what)
	}
	return mapErr(err)
}

// affected turns a zero-row update or delete into not-found.
func affected(res sql.Result, err error, what string) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(what)
	}
	return nil
}

func sortedUnique(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
