package pg

import (
	"context"

	"pitaka.app/internal/bank"
)

const companyCols = `id, symbol, name, sector, current_price, previous_close, updated_at`

func scanCompany(r scanner) (bank.Company, error) {
	var c bank.Company
	err := r.Scan(&c.ID, &c.Symbol, &c.Name, &c.Sector, &c.CurrentPrice, &c.PreviousClose, &c.UpdatedAt)
	return c, err
}

func (t *pgTx) UpsertCompany(ctx context.Context, c *bank.Company) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into companies(`+companyCols+`) values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (id) do update set symbol=excluded.symbol, name=excluded.name, sector=excluded.sector,
			current_price=excluded.current_price, previous_close=excluded.previous_close, updated_at=excluded.updated_at
	`, c.ID, c.Symbol, c.Name, c.Sector, c.CurrentPrice, c.PreviousClose, c.UpdatedAt)
	return mapErr(err)
}

// GetCompany locks the row so a quote and the trade priced from it commit together.
func (t *pgTx) GetCompany(ctx context.Context, id string) (bank.Company, error) {
	c, err := scanCompany(t.tx.QueryRowContext(ctx, `select `+companyCols+` from companies where id=$1 for update`, id))
	return c, one(err, "company")
}

func (t *pgTx) ListCompanies(ctx context.Context) ([]bank.Company, error) {
	rows, err := t.tx.QueryContext(ctx, `select `+companyCols+` from companies order by symbol`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []bank.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *pgTx) SetCompanyPrice(ctx context.Context, id string, price, previousClose bank.Amount) error {
	res, err := t.tx.ExecContext(ctx, `
		update companies set current_price=$2, previous_close=$3, updated_at=now() where id=$1
	`, id, price, previousClose)
	return affected(res, err, "company")
}

const investmentCols = `id, owner_id, company_id, symbol, shares, cost_basis, purchase_price, active, created_at, updated_at`

func scanInvestment(r scanner) (bank.Investment, error) {
	var i bank.Investment
	err := r.Scan(&i.ID, &i.OwnerID, &i.CompanyID, &i.Symbol, &i.Shares, &i.CostBasis, &i.PurchasePrice,
		&i.Active, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func (t *pgTx) OpenPosition(ctx context.Context, ownerID, companyID string) (bank.Investment, error) {
	i, err := scanInvestment(t.tx.QueryRowContext(ctx, `
		select `+investmentCols+` from investments where owner_id=$1 and company_id=$2 and active for update
	`, ownerID, companyID))
	return i, one(err, "investment")
}

func (t *pgTx) GetInvestment(ctx context.Context, ownerID, id string) (bank.Investment, error) {
	i, err := scanInvestment(t.tx.QueryRowContext(ctx, `
		select `+investmentCols+` from investments where id=$1 and owner_id=$2
	`, id, ownerID))
	return i, one(err, "investment")
}

func (t *pgTx) InsertInvestment(ctx context.Context, inv *bank.Investment) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into investments(`+investmentCols+`) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, inv.ID, inv.OwnerID, inv.CompanyID, inv.Symbol, inv.Shares, inv.CostBasis, inv.PurchasePrice,
		inv.Active, inv.CreatedAt, inv.UpdatedAt)
	return mapErr(err)
}

func (t *pgTx) UpdateInvestment(ctx context.Context, inv *bank.Investment) error {
	res, err := t.tx.ExecContext(ctx, `
		update investments set shares=$3, cost_basis=$4, purchase_price=$5, active=$6, updated_at=$7
		where id=$1 and owner_id=$2
	`, inv.ID, inv.OwnerID, inv.Shares, inv.CostBasis, inv.PurchasePrice, inv.Active, inv.UpdatedAt)
	return affected(res, err, "investment")
}

func (t *pgTx) ListInvestments(ctx context.Context, ownerID string, activeOnly bool) ([]bank.Investment, error) {
	rows, err := t.tx.QueryContext(ctx, `
		select `+investmentCols+` from investments where owner_id=$1 and (active or not $2) order by id
	`, ownerID, activeOnly)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []bank.Investment
	for rows.Next() {
		i, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}
