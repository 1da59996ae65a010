package pg

import (
	"context"
	"database/sql"

	"pitaka.app/internal/bank"
)

const goalCols = `id, owner_id, linked_account_id, name, target_amount, current_amount, progress, end_date,
	auto_transfer_enabled, auto_transfer_amount, auto_transfer_frequency, active, created_at, updated_at`

func scanGoal(r scanner) (bank.SavingsGoal, error) {
	var (
		g   bank.SavingsGoal
		end sql.NullTime
	)
	err := r.Scan(&g.ID, &g.OwnerID, &g.LinkedAccountID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &g.Progress, &end,
		&g.AutoTransfer.Enabled, &g.AutoTransfer.Amount, &g.AutoTransfer.Frequency, &g.Active, &g.CreatedAt, &g.UpdatedAt)
	if end.Valid {
		g.EndDate = end.Time
	}
	return g, err
}

func (t *pgTx) InsertSavingsGoal(ctx context.Context, g *bank.SavingsGoal) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into savings_goals(`+goalCols+`) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, g.ID, g.OwnerID, g.LinkedAccountID, g.Name, g.TargetAmount, g.CurrentAmount, g.Progress, nullTime(g.EndDate),
		g.AutoTransfer.Enabled, g.AutoTransfer.Amount, g.AutoTransfer.Frequency, g.Active, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	for _, e := range g.Entries {
		if err := t.AppendSavingsEntry(ctx, g.ID, e); err != nil {
			return err
		}
	}
	return nil
}

// GetSavingsGoal locks the goal row and loads its entries.
func (t *pgTx) GetSavingsGoal(ctx context.Context, ownerID, id string) (bank.SavingsGoal, error) {
	g, err := scanGoal(t.tx.QueryRowContext(ctx, `
		select `+goalCols+` from savings_goals where id=$1 and owner_id=$2 for update
	`, id, ownerID))
	if err != nil {
		return bank.SavingsGoal{}, one(err, "savings goal")
	}
	if g.Entries, err = t.savingsEntries(ctx, g.ID); err != nil {
		return bank.SavingsGoal{}, err
	}
	return g, nil
}

func (t *pgTx) UpdateSavingsGoal(ctx context.Context, g *bank.SavingsGoal) error {
	res, err := t.tx.ExecContext(ctx, `
		update savings_goals set name=$3, target_amount=$4, current_amount=$5, progress=$6, end_date=$7,
			auto_transfer_enabled=$8, auto_transfer_amount=$9, auto_transfer_frequency=$10, active=$11, updated_at=$12
		where id=$1 and owner_id=$2
	`, g.ID, g.OwnerID, g.Name, g.TargetAmount, g.CurrentAmount, g.Progress, nullTime(g.EndDate),
		g.AutoTransfer.Enabled, g.AutoTransfer.Amount, g.AutoTransfer.Frequency, g.Active, g.UpdatedAt)
	return affected(res, err, "savings goal")
}

func (t *pgTx) AppendSavingsEntry(ctx context.Context, goalID string, e bank.SavingsEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into savings_entries(goal_id, entry_date, amount, kind, reference) values ($1,$2,$3,$4,$5)
	`, goalID, e.Date, e.Amount, e.Kind, e.Reference)
	return mapErr(err)
}

func (t *pgTx) savingsEntries(ctx context.Context, goalID string) ([]bank.SavingsEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		select entry_date, amount, kind, reference from savings_entries where goal_id=$1 order by seq
	`, goalID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []bank.SavingsEntry{}
	for rows.Next() {
		var e bank.SavingsEntry
		if err := rows.Scan(&e.Date, &e.Amount, &e.Kind, &e.Reference); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) ListSavingsGoals(ctx context.Context, ownerID string) ([]bank.SavingsGoal, error) {
	rows, err := t.tx.QueryContext(ctx, `select `+goalCols+` from savings_goals where owner_id=$1 order by id`, ownerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []bank.SavingsGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	for i := range out {
		if out[i].Entries, err = t.savingsEntries(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}
