package pg

import (
	"context"

	"pitaka.app/internal/bank"
)

const cardCols = `id, owner_id, cardholder_name, network, masked_number, last4, fingerprint,
	expiry_month, expiry_year, nickname, is_default, created_at`

func scanCard(r scanner) (bank.Card, error) {
	var c bank.Card
	err := r.Scan(&c.ID, &c.OwnerID, &c.CardholderName, &c.Network, &c.MaskedNumber, &c.Last4, &c.Fingerprint,
		&c.ExpiryMonth, &c.ExpiryYear, &c.Nickname, &c.IsDefault, &c.CreatedAt)
	return c, err
}

func (t *pgTx) InsertCard(ctx context.Context, c *bank.Card) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into cards(`+cardCols+`) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, c.ID, c.OwnerID, c.CardholderName, c.Network, c.MaskedNumber, c.Last4, c.Fingerprint,
		c.ExpiryMonth, c.ExpiryYear, c.Nickname, c.IsDefault, c.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) GetCard(ctx context.Context, ownerID, id string) (bank.Card, error) {
	c, err := scanCard(t.tx.QueryRowContext(ctx, `select `+cardCols+` from cards where id=$1 and owner_id=$2`, id, ownerID))
	return c, one(err, "card")
}

func (t *pgTx) CardByFingerprint(ctx context.Context, ownerID, fingerprint string) (bank.Card, error) {
	c, err := scanCard(t.tx.QueryRowContext(ctx, `
		select `+cardCols+` from cards where owner_id=$1 and fingerprint=$2
	`, ownerID, fingerprint))
	return c, one(err, "card")
}

func (t *pgTx) ListCards(ctx context.Context, ownerID string) ([]bank.Card, error) {
	rows, err := t.tx.QueryContext(ctx, `select `+cardCols+` from cards where owner_id=$1 order by id`, ownerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []bank.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *pgTx) ClearDefaultCards(ctx context.Context, ownerID string) error {
	_, err := t.tx.ExecContext(ctx, `update cards set is_default=false where owner_id=$1 and is_default`, ownerID)
	return mapErr(err)
}

func (t *pgTx) SetCardDefault(ctx context.Context, ownerID, id string) error {
	res, err := t.tx.ExecContext(ctx, `update cards set is_default=true where id=$1 and owner_id=$2`, id, ownerID)
	return affected(res, err, "card")
}

func (t *pgTx) DeleteCard(ctx context.Context, ownerID, id string) error {
	res, err := t.tx.ExecContext(ctx, `delete from cards where id=$1 and owner_id=$2`, id, ownerID)
	return affected(res, err, "card")
}
