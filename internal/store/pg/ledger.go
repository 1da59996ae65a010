package pg

import (
	"context"
	"fmt"
	"strings"

	"pitaka.app/internal/bank"
)

const txnCols = `transaction_id, owner_id, account_id, kind, amount, fee, description, method, status, occurred_at,
	coalesce(transfer_id,''), coalesce(loan_id,''), coalesce(savings_id,''), coalesce(payment_id,''), coalesce(investment_id,'')`

func scanTxn(r scanner) (bank.Transaction, error) {
	var x bank.Transaction
	err := r.Scan(&x.TransactionID, &x.OwnerID, &x.AccountID, &x.Kind, &x.Amount, &x.Fee, &x.Description, &x.Method,
		&x.Status, &x.OccurredAt, &x.TransferID, &x.LoanID, &x.SavingsID, &x.PaymentID, &x.InvestmentID)
	return x, err
}

func (t *pgTx) InsertTransaction(ctx context.Context, x *bank.Transaction) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into transactions(transaction_id, owner_id, account_id, kind, amount, fee, description, method, status, occurred_at,
			transfer_id, loan_id, savings_id, payment_id, investment_id)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, nullif($11,''), nullif($12,''), nullif($13,''), nullif($14,''), nullif($15,''))
	`, x.TransactionID, x.OwnerID, x.AccountID, x.Kind, x.Amount, x.Fee, x.Description, x.Method, x.Status, x.OccurredAt,
		x.TransferID, x.LoanID, x.SavingsID, x.PaymentID, x.InvestmentID)
	return mapErr(err)
}

func (t *pgTx) GetTransaction(ctx context.Context, ownerID, transactionID string) (bank.Transaction, error) {
	x, err := scanTxn(t.tx.QueryRowContext(ctx,
		`select `+txnCols+` from transactions where transaction_id=$1 and owner_id=$2`, transactionID, ownerID))
	return x, one(err, "transaction")
}

// ListTransactions returns newest first. A zero limit returns every match.
func (t *pgTx) ListTransactions(ctx context.Context, f bank.TransactionFilter) ([]bank.Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.OwnerID != "" {
		add("owner_id=$%d", f.OwnerID)
	}
	if f.AccountID != "" {
		add("account_id=$%d", f.AccountID)
	}
	if f.Kind != "" {
		add("kind=$%d", string(f.Kind))
	}
	q := `select ` + txnCols + ` from transactions`
	if len(where) > 0 {
		q += ` where ` + strings.Join(where, " and ")
	}
	q += ` order by seq desc`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" limit $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" offset $%d", len(args))
	}
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []bank.Transaction
	for rows.Next() {
		x, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}
