package pg

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"pitaka.app/internal/bank"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestAtomicallyCommits(t *testing.T) {
	s, mock := newMock(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("insert into users").
		WithArgs("u1", "ana@example.com", "Ana", "hash", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.Atomically(context.Background(), func(tx bank.Tx) error {
		return tx.CreateUser(context.Background(), &bank.User{
			ID: "u1", Email: "ana@example.com", FullName: "Ana", PasswordHash: "hash", CreatedAt: now,
		})
	})
	if err != nil {
		t.Fatalf("Atomically: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAtomicallyRollsBackOnError(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("update accounts set balance").
		WithArgs("acc-1", bank.Amount(500)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := s.Atomically(context.Background(), func(tx bank.Tx) error {
		if err := tx.SetBalance(context.Background(), "acc-1", 500); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLockAccountsSortsAndDedupes(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	for _, id := range []string{"a", "b", "c"} {
		mock.ExpectQuery(`select 1 from accounts where id=\$1 for update`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	}
	mock.ExpectCommit()

	err := s.Atomically(context.Background(), func(tx bank.Tx) error {
		return tx.LockAccounts(context.Background(), "c", "a", "b", "a", "")
	})
	if err != nil {
		t.Fatalf("LockAccounts: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetBalanceMissingAccount(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("update accounts set balance").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Atomically(context.Background(), func(tx bank.Tx) error {
		return tx.SetBalance(context.Background(), "nope", 1)
	})
	if !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMapErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "transfers_reference_key"}, bank.ErrConflict},
		{"serialization", &pgconn.PgError{Code: "40001"}, bank.ErrConflict},
		{"negative balance", &pgconn.PgError{Code: "23514", ConstraintName: "accounts_balance_nonnegative"}, bank.ErrInsufficientFunds},
		{"foreign key", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23503"}), bank.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapErr(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("mapErr(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}

	other := &pgconn.PgError{Code: "23514", ConstraintName: "transactions_amount_check"}
	if got := mapErr(other); got != error(other) {
		t.Fatalf("unrelated check violation should pass through, got %v", got)
	}
}

func TestListTransactionsBuildsFilter(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	cols := []string{"transaction_id", "owner_id", "account_id", "kind", "amount", "fee", "description", "method",
		"status", "occurred_at", "transfer_id", "loan_id", "savings_id", "payment_id", "investment_id"}

	mock.ExpectBegin()
	mock.ExpectQuery(`from transactions where owner_id=\$1 and account_id=\$2 and kind=\$3 order by seq desc limit \$4 offset \$5`).
		WithArgs("u1", "acc-1", "DEPOSIT", 10, 20).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("TXN1S", "u1", "acc-1", "DEPOSIT", int64(150000), int64(0), "cash in", "cash", "COMPLETED", at, "", "", "", "", ""))
	mock.ExpectCommit()

	var got []bank.Transaction
	err := s.Atomically(context.Background(), func(tx bank.Tx) error {
		var err error
		got, err = tx.ListTransactions(context.Background(), bank.TransactionFilter{
			OwnerID: "u1", AccountID: "acc-1", Kind: bank.KindDeposit, Limit: 10, Offset: 20,
		})
		return err
	})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(got) != 1 || got[0].Amount != bank.Pesos(1500) || got[0].Kind != bank.KindDeposit {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetLoanLoadsPayments(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`from loans where id=\$1 and \(\$2='' or owner_id=\$2\) for update`).
		WithArgs("loan-1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "loan_product_id", "account_id", "principal", "paid",
			"remaining", "next_payment_amount", "term_months", "annual_rate", "purpose", "due_date", "progress_percent",
			"status", "created_at", "updated_at"}).
			AddRow("loan-1", "u1", "personal", "acc-1", int64(1000000), int64(0), int64(1000000), int64(88849),
				12, "0.120000", "", at, 0.0, "ACTIVE", at, at))
	mock.ExpectQuery("from loan_payments where loan_id").
		WithArgs("loan-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "loan_id", "owner_id", "account_id", "amount", "reference", "transaction_id", "paid_at"}).
			AddRow("pay-1", "loan-1", "u1", "acc-1", int64(88849), "LPY1", "LPY1S", at))
	mock.ExpectCommit()

	var loan bank.Loan
	err := s.Atomically(context.Background(), func(tx bank.Tx) error {
		var err error
		loan, err = tx.GetLoan(context.Background(), "u1", "loan-1")
		return err
	})
	if err != nil {
		t.Fatalf("GetLoan: %v", err)
	}
	if !loan.AnnualRate.Equal(decimal.RequireFromString("0.12")) {
		t.Fatalf("annual rate = %s", loan.AnnualRate)
	}
	if len(loan.PaymentIDs) != 1 || loan.PaymentIDs[0] != "pay-1" {
		t.Fatalf("payment ids = %v", loan.PaymentIDs)
	}
}

func TestGetLoanNotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("from loans").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := s.Atomically(context.Background(), func(tx bank.Tx) error {
		_, err := tx.GetLoan(context.Background(), "u1", "missing")
		return err
	})
	if !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
