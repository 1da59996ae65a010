package bank

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pitaka.app/internal/ids"
)

type SavingsGoalRequest struct {
	LinkedAccountID string        `json:"linked_account_id"`
	Name            string        `json:"name"`
	TargetAmount    Amount        `json:"target_amount"`
	EndDate         time.Time     `json:"end_date"`
	AutoTransfer    *AutoTransfer `json:"auto_transfer"`
}

type SavingsGoalUpdate struct {
	Name         *string       `json:"name"`
	TargetAmount *Amount       `json:"target_amount"`
	EndDate      *time.Time    `json:"end_date"`
	AutoTransfer *AutoTransfer `json:"auto_transfer"`
}

type SavingsMoveRequest struct {
	Amount Amount `json:"amount"`
}

type SavingsResult struct {
	Goal        SavingsGoal  `json:"goal"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Account     Account      `json:"account"`
}

// progress is current/target clamped to [0, 1].
func goalProgress(current, target Amount) float64 {
	return percentOf(current, target) / 100
}

func validateAutoTransfer(a AutoTransfer) error {
	if !a.Enabled {
		return nil
	}
	if !a.Amount.IsPositive() {
		return fmt.Errorf("%w: auto transfer amount must be greater than zero", ErrInvalidAmount)
	}
	switch a.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return nil
	}
	return fmt.Errorf("%w: auto transfer frequency must be DAILY, WEEKLY or MONTHLY", ErrValidation)
}

func (s *Service) CreateSavingsGoal(ctx context.Context, p Principal, req SavingsGoalRequest) (SavingsGoal, error) {
	if err := requireID("linked account id", req.LinkedAccountID); err != nil {
		return SavingsGoal{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return SavingsGoal{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := requirePositive(req.TargetAmount); err != nil {
		return SavingsGoal{}, err
	}
	var auto AutoTransfer
	if req.AutoTransfer != nil {
		auto = *req.AutoTransfer
		if err := validateAutoTransfer(auto); err != nil {
			return SavingsGoal{}, err
		}
	}
	var g SavingsGoal
	err := s.unit(ctx, "create_savings_goal", func(tx Tx, _ func(Event)) error {
		acct, err := findOwned(ctx, tx, p.ownerID, req.LinkedAccountID)
		if err != nil {
			return err
		}
		if err := requireActive(acct); err != nil {
			return err
		}
		now := s.now()
		if !req.EndDate.IsZero() && !req.EndDate.After(now) {
			return fmt.Errorf("%w: end date must be in the future", ErrValidation)
		}
		g = SavingsGoal{
			ID:              ids.New(),
			OwnerID:         p.ownerID,
			LinkedAccountID: acct.ID,
			Name:            name,
			TargetAmount:    req.TargetAmount,
			EndDate:         req.EndDate,
			Entries:         []SavingsEntry{},
			AutoTransfer:    auto,
			Active:          true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.InsertSavingsGoal(ctx, &g)
	})
	return g, err
}

func (s *Service) ListSavingsGoals(ctx context.Context, p Principal) ([]SavingsGoal, error) {
	var out []SavingsGoal
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListSavingsGoals(ctx, p.ownerID)
		return err
	})
	return out, err
}

func (s *Service) GetSavingsGoal(ctx context.Context, p Principal, id string) (SavingsGoal, error) {
	if err := requireID("savings goal id", id); err != nil {
		return SavingsGoal{}, err
	}
	var g SavingsGoal
	err := s.read(ctx, func(tx Tx) error {
		var err error
		g, err = tx.GetSavingsGoal(ctx, p.ownerID, id)
		return err
	})
	return g, err
}

func (s *Service) UpdateSavingsGoal(ctx context.Context, p Principal, id string, upd SavingsGoalUpdate) (SavingsGoal, error) {
	if err := requireID("savings goal id", id); err != nil {
		return SavingsGoal{}, err
	}
	var g SavingsGoal
	err := s.unit(ctx, "update_savings_goal", func(tx Tx, _ func(Event)) error {
		var err error
		g, err = tx.GetSavingsGoal(ctx, p.ownerID, id)
		if err != nil {
			return err
		}
		if !g.Active {
			return fmt.Errorf("%w: savings goal is closed", ErrInvalidState)
		}
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return fmt.Errorf("%w: name must not be empty", ErrValidation)
			}
			g.Name = name
		}
		if upd.TargetAmount != nil {
			if err := requirePositive(*upd.TargetAmount); err != nil {
				return err
			}
			g.TargetAmount = *upd.TargetAmount
		}
		if upd.EndDate != nil {
			if !upd.EndDate.IsZero() && !upd.EndDate.After(s.now()) {
				return fmt.Errorf("%w: end date must be in the future", ErrValidation)
			}
			g.EndDate = *upd.EndDate
		}
		if upd.AutoTransfer != nil {
			if err := validateAutoTransfer(*upd.AutoTransfer); err != nil {
				return err
			}
			g.AutoTransfer = *upd.AutoTransfer
		}
		g.Progress = goalProgress(g.CurrentAmount, g.TargetAmount)
		g.UpdatedAt = s.now()
		return tx.UpdateSavingsGoal(ctx, &g)
	})
	return g, err
}

// DepositToGoal moves money from the linked account into the goal.
func (s *Service) DepositToGoal(ctx context.Context, p Principal, goalID string, req SavingsMoveRequest) (SavingsResult, error) {
	return s.moveGoal(ctx, p, goalID, req.Amount, SavingsDeposit)
}

// WithdrawFromGoal moves money from the goal back to the linked account.
func (s *Service) WithdrawFromGoal(ctx context.Context, p Principal, goalID string, req SavingsMoveRequest) (SavingsResult, error) {
	return s.moveGoal(ctx, p, goalID, req.Amount, SavingsWithdrawal)
}

func (s *Service) moveGoal(ctx context.Context, p Principal, goalID string, amount Amount, kind SavingsEntryKind) (SavingsResult, error) {
	if err := requireID("savings goal id", goalID); err != nil {
		return SavingsResult{}, err
	}
	if err := requirePositive(amount); err != nil {
		return SavingsResult{}, err
	}
	op := "savings_deposit"
	if kind == SavingsWithdrawal {
		op = "savings_withdraw"
	}
	var res SavingsResult
	err := s.unit(ctx, op, func(tx Tx, emit func(Event)) error {
		g, err := tx.GetSavingsGoal(ctx, p.ownerID, goalID)
		if err != nil {
			return err
		}
		if !g.Active {
			return fmt.Errorf("%w: savings goal is closed", ErrInvalidState)
		}
		r, err := s.applyGoalMove(ctx, tx, emit, p, &g, amount, kind)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

// applyGoalMove is the two-ledger step shared by deposit, withdraw and close.
func (s *Service) applyGoalMove(ctx context.Context, tx Tx, emit func(Event), p Principal, g *SavingsGoal, amount Amount, kind SavingsEntryKind) (SavingsResult, error) {
	if err := tx.LockAccounts(ctx, g.LinkedAccountID); err != nil {
		return SavingsResult{}, err
	}
	acct, err := findOwned(ctx, tx, p.ownerID, g.LinkedAccountID)
	if err != nil {
		return SavingsResult{}, err
	}
	if err := requireActive(acct); err != nil {
		return SavingsResult{}, err
	}

	txnKind := KindTransfer
	evt := EventSavingsDeposit
	desc := "Transfer to savings goal " + g.Name
	if kind == SavingsWithdrawal {
		if g.CurrentAmount < amount {
			return SavingsResult{}, ErrInsufficientGoalFunds
		}
		if err := s.credit(ctx, tx, &acct, amount); err != nil {
			return SavingsResult{}, err
		}
		g.CurrentAmount -= amount
		txnKind = KindTransferReceived
		evt = EventSavingsWithdraw
		desc = "Withdrawal from savings goal " + g.Name
	} else {
		if err := s.debit(ctx, tx, &acct, amount); err != nil {
			return SavingsResult{}, err
		}
		g.CurrentAmount += amount
	}

	now := s.now()
	ref := ids.Reference(ids.PrefixSavings)
	entry := SavingsEntry{Date: now, Amount: amount, Kind: kind, Reference: ref}
	if err := tx.AppendSavingsEntry(ctx, g.ID, entry); err != nil {
		return SavingsResult{}, err
	}
	g.Entries = append(g.Entries, entry)
	g.Progress = goalProgress(g.CurrentAmount, g.TargetAmount)
	g.UpdatedAt = now
	if err := tx.UpdateSavingsGoal(ctx, g); err != nil {
		return SavingsResult{}, err
	}

	suffix := ids.SuffixSender
	if kind == SavingsWithdrawal {
		suffix = ids.SuffixReceiver
	}
	txn := Transaction{
		TransactionID: ref + suffix,
		OwnerID:       p.ownerID,
		AccountID:     acct.ID,
		Kind:          txnKind,
		Amount:        amount,
		Description:   desc,
		SavingsID:     g.ID,
		OccurredAt:    now,
	}
	if err := s.record(ctx, tx, &txn); err != nil {
		return SavingsResult{}, err
	}
	emit(Event{Type: evt, Reference: ref, OwnerID: p.ownerID, AccountID: acct.ID,
		Amount: amount, Balance: balancePtr(acct.Balance)})
	return SavingsResult{Goal: *g, Transaction: &txn, Account: acct}, nil
}

// CloseSavingsGoal returns any saved funds to the linked account and deactivates the goal.
func (s *Service) CloseSavingsGoal(ctx context.Context, p Principal, id string) (SavingsResult, error) {
	if err := requireID("savings goal id", id); err != nil {
		return SavingsResult{}, err
	}
	var res SavingsResult
	err := s.unit(ctx, "close_savings_goal", func(tx Tx, emit func(Event)) error {
		g, err := tx.GetSavingsGoal(ctx, p.ownerID, id)
		if err != nil {
			return err
		}
		if !g.Active {
			return fmt.Errorf("%w: savings goal is already closed", ErrInvalidState)
		}
		if g.CurrentAmount > 0 {
			res, err = s.applyGoalMove(ctx, tx, emit, p, &g, g.CurrentAmount, SavingsWithdrawal)
			if err != nil {
				return err
			}
		} else {
			acct, err := findOwned(ctx, tx, p.ownerID, g.LinkedAccountID)
			if err != nil {
				return err
			}
			res = SavingsResult{Account: acct}
		}
		g.Active = false
		g.UpdatedAt = s.now()
		if err := tx.UpdateSavingsGoal(ctx, &g); err != nil {
			return err
		}
		res.Goal = g
		return nil
	})
	return res, err
}
