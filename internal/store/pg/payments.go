package pg

import (
	"context"

	"pitaka.app/internal/bank"
)

const billerCols = `id, name, category, minimum_amount, maximum_amount, convenience_fee, active`

func scanBiller(r scanner) (bank.Biller, error) {
	var b bank.Biller
	err := r.Scan(&b.ID, &b.Name, &b.Category, &b.MinimumAmount, &b.MaximumAmount, &b.ConvenienceFee, &b.Active)
	return b, err
}

func (t *pgTx) UpsertBiller(ctx context.Context, b *bank.Biller) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into billers(`+billerCols+`) values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (id) do update set name=excluded.name, category=excluded.category,
			minimum_amount=excluded.minimum_amount, maximum_amount=excluded.maximum_amount,
			convenience_fee=excluded.convenience_fee, active=excluded.active
	`, b.ID, b.Name, b.Category, b.MinimumAmount, b.MaximumAmount, b.ConvenienceFee, b.Active)
	return mapErr(err)
}

func (t *pgTx) GetBiller(ctx context.Context, id string) (bank.Biller, error) {
	b, err := scanBiller(t.tx.QueryRowContext(ctx, `select `+billerCols+` from billers where id=$1`, id))
	return b, one(err, "biller")
}

func (t *pgTx) ListBillers(ctx context.Context) ([]bank.Biller, error) {
	rows, err := t.tx.QueryContext(ctx, `select `+billerCols+` from billers order by name`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []bank.Biller
	for rows.Next() {
		b, err := scanBiller(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const paymentCols = `id, owner_id, account_id, biller_id, biller_name, payee_account_number, amount, fee,
	reference_number, status, transaction_id, description, created_at`

func scanPayment(r scanner) (bank.Payment, error) {
	var p bank.Payment
	err := r.Scan(&p.ID, &p.OwnerID, &p.AccountID, &p.BillerID, &p.BillerName, &p.PayeeAccountNumber, &p.Amount, &p.Fee,
		&p.ReferenceNumber, &p.Status, &p.TransactionID, &p.Description, &p.CreatedAt)
	return p, err
}

func (t *pgTx) InsertPayment(ctx context.Context, p *bank.Payment) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into payments(`+paymentCols+`) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, p.ID, p.OwnerID, p.AccountID, p.BillerID, p.BillerName, p.PayeeAccountNumber, p.Amount, p.Fee,
		p.ReferenceNumber, p.Status, p.TransactionID, p.Description, p.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) GetPayment(ctx context.Context, ownerID, id string) (bank.Payment, error) {
	p, err := scanPayment(t.tx.QueryRowContext(ctx, `select `+paymentCols+` from payments where id=$1 and owner_id=$2`, id, ownerID))
	return p, one(err, "payment")
}

func (t *pgTx) ListPayments(ctx context.Context, ownerID string) ([]bank.Payment, error) {
	rows, err := t.tx.QueryContext(ctx, `select `+paymentCols+` from payments where owner_id=$1 order by id desc`, ownerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []bank.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
