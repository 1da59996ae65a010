package pg

import (
	"context"

	"pitaka.app/internal/bank"
)

const productCols = `id, name, description, min_amount, max_amount, annual_rate, min_term_months, max_term_months`

func scanProduct(r scanner) (bank.LoanProduct, error) {
	var p bank.LoanProduct
	err := r.Scan(&p.ID, &p.Name, &p.Description, &p.MinAmount, &p.MaxAmount, &p.AnnualRate, &p.MinTermMonths, &p.MaxTermMonths)
	return p, err
}

func (t *pgTx) UpsertLoanProduct(ctx context.Context, p *bank.LoanProduct) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into loan_products(`+productCols+`) values ($1,$2,$3,$4,$5,$6,$7,$8)
		on conflict (id) do update set name=excluded.name, description=excluded.description,
			min_amount=excluded.min_amount, max_amount=excluded.max_amount, annual_rate=excluded.annual_rate,
			min_term_months=excluded.min_term_months, max_term_months=excluded.max_term_months
	`, p.ID, p.Name, p.Description, p.MinAmount, p.MaxAmount, p.AnnualRate, p.MinTermMonths, p.MaxTermMonths)
	return mapErr(err)
}

func (t *pgTx) GetLoanProduct(ctx context.Context, id string) (bank.LoanProduct, error) {
	p, err := scanProduct(t.tx.QueryRowContext(ctx, `select `+productCols+` from loan_products where id=$1`, id))
	return p, one(err, "loan product")
}

func (t *pgTx) ListLoanProducts(ctx context.Context) ([]bank.LoanProduct, error) {
	rows, err := t.tx.QueryContext(ctx, `select `+productCols+` from loan_products order by name`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []bank.LoanProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const loanCols = `id, owner_id, loan_product_id, account_id, principal, paid, remaining, next_payment_amount,
	term_months, annual_rate, purpose, due_date, progress_percent, status, created_at, updated_at`

func scanLoan(r scanner) (bank.Loan, error) {
	var l bank.Loan
	err := r.Scan(&l.ID, &l.OwnerID, &l.LoanProductID, &l.AccountID, &l.Principal, &l.Paid, &l.Remaining,
		&l.NextPaymentAmount, &l.TermMonths, &l.AnnualRate, &l.Purpose, &l.DueDate, &l.ProgressPercent,
		&l.Status, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (t *pgTx) InsertLoan(ctx context.Context, l *bank.Loan) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into loans(`+loanCols+`) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, l.ID, l.OwnerID, l.LoanProductID, l.AccountID, l.Principal, l.Paid, l.Remaining, l.NextPaymentAmount,
		l.TermMonths, l.AnnualRate, l.Purpose, l.DueDate, l.ProgressPercent, l.Status, l.CreatedAt, l.UpdatedAt)
	return mapErr(err)
}

// GetLoan locks the row; an empty ownerID matches any owner. PaymentIDs come from
// loan_payments rather than a stored column.
func (t *pgTx) GetLoan(ctx context.Context, ownerID, id string) (bank.Loan, error) {
	l, err := scanLoan(t.tx.QueryRowContext(ctx, `
		select `+loanCols+` from loans where id=$1 and ($2='' or owner_id=$2) for update
	`, id, ownerID))
	if err != nil {
		return bank.Loan{}, one(err, "loan")
	}
	pays, err := t.ListLoanPayments(ctx, l.ID)
	if err != nil {
		return bank.Loan{}, err
	}
	l.PaymentIDs = make([]string, 0, len(pays))
	for _, p := range pays {
		l.PaymentIDs = append(l.PaymentIDs, p.ID)
	}
	return l, nil
}

func (t *pgTx) UpdateLoan(ctx context.Context, l *bank.Loan) error {
	res, err := t.tx.ExecContext(ctx, `
		update loans set paid=$2, remaining=$3, next_payment_amount=$4, due_date=$5, progress_percent=$6,
			status=$7, updated_at=$8
		where id=$1
	`, l.ID, l.Paid, l.Remaining, l.NextPaymentAmount, l.DueDate, l.ProgressPercent, l.Status, l.UpdatedAt)
	return affected(res, err, "loan")
}

func (t *pgTx) ListLoans(ctx context.Context, ownerID string) ([]bank.Loan, error) {
	rows, err := t.tx.QueryContext(ctx, `select `+loanCols+` from loans where owner_id=$1 order by id desc`, ownerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []bank.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	for i := range out {
		pays, err := t.ListLoanPayments(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].PaymentIDs = make([]string, 0, len(pays))
		for _, p := range pays {
			out[i].PaymentIDs = append(out[i].PaymentIDs, p.ID)
		}
	}
	return out, nil
}

func (t *pgTx) InsertLoanPayment(ctx context.Context, p *bank.LoanPayment) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into loan_payments(id, loan_id, owner_id, account_id, amount, reference, transaction_id, paid_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, p.ID, p.LoanID, p.OwnerID, p.AccountID, p.Amount, p.Reference, p.TransactionID, p.PaidAt)
	return mapErr(err)
}

func (t *pgTx) ListLoanPayments(ctx context.Context, loanID string) ([]bank.LoanPayment, error) {
	rows, err := t.tx.QueryContext(ctx, `
		select id, loan_id, owner_id, account_id, amount, reference, transaction_id, paid_at
		from loan_payments where loan_id=$1 order by id
	`, loanID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []bank.LoanPayment
	for rows.Next() {
		var p bank.LoanPayment
		if err := rows.Scan(&p.ID, &p.LoanID, &p.OwnerID, &p.AccountID, &p.Amount, &p.Reference, &p.TransactionID, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
