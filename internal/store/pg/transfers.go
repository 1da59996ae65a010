package pg

import (
	"context"

	"pitaka.app/internal/bank"
)

const transferCols = `id, owner_id, sender_id, sender_account_id, coalesce(recipient_id,''), coalesce(recipient_account_id,''),
	recipient_account_number, recipient_name, amount, fee, kind, status, reference, bank_name, bank_code, description, created_at`

func scanTransfer(r scanner) (bank.Transfer, error) {
	var x bank.Transfer
	err := r.Scan(&x.ID, &x.OwnerID, &x.SenderID, &x.SenderAccountID, &x.RecipientID, &x.RecipientAccountID,
		&x.RecipientAccountNumber, &x.RecipientName, &x.Amount, &x.Fee, &x.Kind, &x.Status, &x.Reference,
		&x.BankName, &x.BankCode, &x.Description, &x.CreatedAt)
	return x, err
}

func (t *pgTx) InsertTransfer(ctx context.Context, x *bank.Transfer) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into transfers(id, owner_id, sender_id, sender_account_id, recipient_id, recipient_account_id,
			recipient_account_number, recipient_name, amount, fee, kind, status, reference, bank_name, bank_code, description, created_at)
		values ($1,$2,$3,$4,nullif($5,''),nullif($6,''),$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, x.ID, x.OwnerID, x.SenderID, x.SenderAccountID, x.RecipientID, x.RecipientAccountID,
		x.RecipientAccountNumber, x.RecipientName, x.Amount, x.Fee, x.Kind, x.Status, x.Reference,
		x.BankName, x.BankCode, x.Description, x.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) GetTransfer(ctx context.Context, ownerID, id string) (bank.Transfer, error) {
	x, err := scanTransfer(t.tx.QueryRowContext(ctx, `select `+transferCols+` from transfers where id=$1 and owner_id=$2`, id, ownerID))
	return x, one(err, "transfer")
}

func (t *pgTx) ListTransfers(ctx context.Context, ownerID string, limit int) ([]bank.Transfer, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := t.tx.QueryContext(ctx, `select `+transferCols+` from transfers where owner_id=$1 order by id desc limit $2`, ownerID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []bank.Transfer
	for rows.Next() {
		x, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

const recipientCols = `id, owner_id, name, account_number, bank_name, bank_code, favorite, created_at`

func scanRecipient(r scanner) (bank.Recipient, error) {
	var x bank.Recipient
	err := r.Scan(&x.ID, &x.OwnerID, &x.Name, &x.AccountNumber, &x.BankName, &x.BankCode, &x.Favorite, &x.CreatedAt)
	return x, err
}

func (t *pgTx) FindRecipient(ctx context.Context, ownerID, accountNumber, bankCode string) (bank.Recipient, error) {
	x, err := scanRecipient(t.tx.QueryRowContext(ctx, `
		select `+recipientCols+` from recipients where owner_id=$1 and account_number=$2 and bank_code=$3
	`, ownerID, accountNumber, bankCode))
	return x, one(err, "recipient")
}

func (t *pgTx) InsertRecipient(ctx context.Context, x *bank.Recipient) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into recipients(`+recipientCols+`) values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, x.ID, x.OwnerID, x.Name, x.AccountNumber, x.BankName, x.BankCode, x.Favorite, x.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) GetRecipient(ctx context.Context, ownerID, id string) (bank.Recipient, error) {
	x, err := scanRecipient(t.tx.QueryRowContext(ctx, `select `+recipientCols+` from recipients where id=$1 and owner_id=$2`, id, ownerID))
	return x, one(err, "recipient")
}

func (t *pgTx) UpdateRecipient(ctx context.Context, x *bank.Recipient) error {
	res, err := t.tx.ExecContext(ctx, `update recipients set name=$3, favorite=$4 where id=$1 and owner_id=$2`,
		x.ID, x.OwnerID, x.Name, x.Favorite)
	return affected(res, err, "recipient")
}

func (t *pgTx) DeleteRecipient(ctx context.Context, ownerID, id string) error {
	res, err := t.tx.ExecContext(ctx, `delete from recipients where id=$1 and owner_id=$2`, id, ownerID)
	return affected(res, err, "recipient")
}

func (t *pgTx) ListRecipients(ctx context.Context, ownerID string) ([]bank.Recipient, error) {
	rows, err := t.tx.QueryContext(ctx, `select `+recipientCols+` from recipients where owner_id=$1 order by favorite desc, name`, ownerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []bank.Recipient
	for rows.Next() {
		x, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}
