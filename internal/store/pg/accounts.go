package pg

import (
	"context"
	"database/sql"
	"strings"

	"pitaka.app/internal/bank"
)

func (t *pgTx) CreateUser(ctx context.Context, u *bank.User) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into users(id, email, full_name, password_hash, created_at)
		values ($1,$2,$3,$4,$5)
	`, u.ID, u.Email, u.FullName, u.PasswordHash, u.CreatedAt)
	return mapErr(err)
}

const userCols = `id, email, full_name, password_hash, created_at`

func scanUser(row *sql.Row) (bank.User, error) {
	var u bank.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.CreatedAt)
	return u, one(err, "user")
}

func (t *pgTx) UserByID(ctx context.Context, id string) (bank.User, error) {
	return scanUser(t.tx.QueryRowContext(ctx, `select `+userCols+` from users where id=$1`, id))
}

func (t *pgTx) UserByEmail(ctx context.Context, email string) (bank.User, error) {
	return scanUser(t.tx.QueryRowContext(ctx, `select `+userCols+` from users where lower(email)=$1`, strings.ToLower(email)))
}

const accountCols = `id, owner_id, account_number, kind, display_name, balance, currency_label, active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(r scanner) (bank.Account, error) {
	var a bank.Account
	err := r.Scan(&a.ID, &a.OwnerID, &a.AccountNumber, &a.Kind, &a.DisplayName, &a.Balance,
		&a.CurrencyLabel, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (t *pgTx) CreateAccount(ctx context.Context, a *bank.Account) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into accounts(`+accountCols+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, a.ID, a.OwnerID, a.AccountNumber, a.Kind, a.DisplayName, a.Balance, a.CurrencyLabel, a.Active, a.CreatedAt, a.UpdatedAt)
	return mapErr(err)
}

// LockAccounts locks rows in sorted order so concurrent units cannot deadlock.
// Missing ids are left for the following read to report.
func (t *pgTx) LockAccounts(ctx context.Context, ids ...string) error {
	for _, id := range sortedUnique(ids) {
		var dummy int
		err := t.tx.QueryRowContext(ctx, `select 1 from accounts where id=$1 for update`, id).Scan(&dummy)
		if err != nil && err != sql.ErrNoRows {
			return mapErr(err)
		}
	}
	return nil
}

func (t *pgTx) AccountByID(ctx context.Context, id string) (bank.Account, error) {
	a, err := scanAccount(t.tx.QueryRowContext(ctx, `select `+accountCols+` from accounts where id=$1`, id))
	return a, one(err, "account")
}

func (t *pgTx) AccountByNumber(ctx context.Context, number string) (bank.Account, error) {
	a, err := scanAccount(t.tx.QueryRowContext(ctx, `select `+accountCols+` from accounts where account_number=$1`, number))
	return a, one(err, "account")
}

func (t *pgTx) AccountNumberTaken(ctx context.Context, number string) (bool, error) {
	var taken bool
	err := t.tx.QueryRowContext(ctx, `select exists(select 1 from accounts where account_number=$1)`, number).Scan(&taken)
	return taken, mapErr(err)
}

func (t *pgTx) ListAccounts(ctx context.Context, ownerID string) ([]bank.Account, error) {
	rows, err := t.tx.QueryContext(ctx, `select `+accountCols+` from accounts where owner_id=$1 order by id`, ownerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []bank.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *pgTx) SetBalance(ctx context.Context, accountID string, balance bank.Amount) error {
	res, err := t.tx.ExecContext(ctx, `update accounts set balance=$2, updated_at=now() where id=$1`, accountID, balance)
	return affected(res, err, "account")
}
