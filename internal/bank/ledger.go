package bank

import (
	"context"
	"fmt"
	"strings"

	"pitaka.app/internal/ids"
)

// TransactionQuery filters a ledger listing for the calling owner.
type TransactionQuery struct {
	AccountID string
	Kind      TransactionKind
	Limit     int
	Offset    int
}

// ListTransactions returns the caller's ledger rows, newest first.
func (s *Service) ListTransactions(ctx context.Context, p Principal, q TransactionQuery) ([]Transaction, error) {
	if q.Kind != "" && !q.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown transaction kind %q", ErrValidation, q.Kind)
	}
	if q.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrValidation)
	}
	var out []Transaction
	err := s.read(ctx, func(tx Tx) error {
		if q.AccountID != "" {
			if _, err := findOwned(ctx, tx, p.ownerID, q.AccountID); err != nil {
				return err
			}
		}
		var err error
		out, err = tx.ListTransactions(ctx, TransactionFilter{
			OwnerID:   p.ownerID,
			AccountID: q.AccountID,
			Kind:      q.Kind,
			Limit:     clampLimit(q.Limit),
			Offset:    q.Offset,
		})
		return err
	})
	return out, err
}

func (s *Service) GetTransaction(ctx context.Context, p Principal, transactionID string) (Transaction, error) {
	if err := requireID("transaction id", transactionID); err != nil {
		return Transaction{}, err
	}
	var t Transaction
	err := s.read(ctx, func(tx Tx) error {
		var err error
		t, err = tx.GetTransaction(ctx, p.ownerID, transactionID)
		return err
	})
	return t, err
}

func (s *Service) ListTransfers(ctx context.Context, p Principal, limit int) ([]Transfer, error) {
	var out []Transfer
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListTransfers(ctx, p.ownerID, clampLimit(limit))
		return err
	})
	return out, err
}

func (s *Service) GetTransfer(ctx context.Context, p Principal, id string) (Transfer, error) {
	if err := requireID("transfer id", id); err != nil {
		return Transfer{}, err
	}
	var t Transfer
	err := s.read(ctx, func(tx Tx) error {
		var err error
		t, err = tx.GetTransfer(ctx, p.ownerID, id)
		return err
	})
	return t, err
}

// Reconciliation compares an account's stored balance with a replay of its ledger.
type Reconciliation struct {
	AccountID     string `json:"account_id"`
	Balance       Amount `json:"balance"`
	LedgerBalance Amount `json:"ledger_balance"`
	Entries       int    `json:"entries"`
	Consistent    bool   `json:"consistent"`
}

// Reconcile replays every ledger row of the account from its zero opening balance.
func (s *Service) Reconcile(ctx context.Context, p Principal, accountID string) (Reconciliation, error) {
	if err := requireID("account id", accountID); err != nil {
		return Reconciliation{}, err
	}
	var rec Reconciliation
	err := s.read(ctx, func(tx Tx) error {
		acct, err := findOwned(ctx, tx, p.ownerID, accountID)
		if err != nil {
			return err
		}
		rows, err := tx.ListTransactions(ctx, TransactionFilter{AccountID: acct.ID})
		if err != nil {
			return err
		}
		var sum Amount
		for _, r := range rows {
			if r.Status != StatusCompleted {
				continue
			}
			sum += r.Signed()
		}
		rec = Reconciliation{
			AccountID:     acct.ID,
			Balance:       acct.Balance,
			LedgerBalance: sum,
			Entries:       len(rows),
			Consistent:    sum == acct.Balance,
		}
		return nil
	})
	return rec, err
}

type RecipientRequest struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	BankCode      string `json:"bank_code"`
	Favorite      bool   `json:"favorite"`
}

// RecipientUpdate holds the mutable address-book fields; nil leaves a field as is.
type RecipientUpdate struct {
	Name     *string `json:"name"`
	Favorite *bool   `json:"favorite"`
}

func (s *Service) ListRecipients(ctx context.Context, p Principal) ([]Recipient, error) {
	var out []Recipient
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListRecipients(ctx, p.ownerID)
		return err
	})
	return out, err
}

// AddRecipient saves an address-book entry. Duplicates are a conflict.
func (s *Service) AddRecipient(ctx context.Context, p Principal, req RecipientRequest) (Recipient, error) {
	name := strings.TrimSpace(req.Name)
	number := strings.TrimSpace(req.AccountNumber)
	if name == "" {
		return Recipient{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !isDigits(number) {
		return Recipient{}, fmt.Errorf("%w: account number must be numeric", ErrValidation)
	}
	r := Recipient{
		ID:            ids.New(),
		OwnerID:       p.ownerID,
		Name:          name,
		AccountNumber: number,
		BankName:      strings.TrimSpace(req.BankName),
		BankCode:      strings.ToUpper(strings.TrimSpace(req.BankCode)),
		Favorite:      req.Favorite,
	}
	err := s.unit(ctx, "add_recipient", func(tx Tx, _ func(Event)) error {
		r.CreatedAt = s.now()
		return tx.InsertRecipient(ctx, &r)
	})
	if err != nil {
		return Recipient{}, err
	}
	return r, nil
}

func (s *Service) UpdateRecipient(ctx context.Context, p Principal, id string, upd RecipientUpdate) (Recipient, error) {
	if err := requireID("recipient id", id); err != nil {
		return Recipient{}, err
	}
	var r Recipient
	err := s.unit(ctx, "update_recipient", func(tx Tx, _ func(Event)) error {
		var err error
		r, err = tx.GetRecipient(ctx, p.ownerID, id)
		if err != nil {
			return err
		}
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return fmt.Errorf("%w: name must not be empty", ErrValidation)
			}
			r.Name = name
		}
		if upd.Favorite != nil {
			r.Favorite = *upd.Favorite
		}
		return tx.UpdateRecipient(ctx, &r)
	})
	return r, err
}

func (s *Service) DeleteRecipient(ctx context.Context, p Principal, id string) error {
	if err := requireID("recipient id", id); err != nil {
		return err
	}
	return s.unit(ctx, "delete_recipient", func(tx Tx, _ func(Event)) error {
		return tx.DeleteRecipient(ctx, p.ownerID, id)
	})
}

// upsertRecipient returns the saved entry for (owner, number, bank), creating it on
// first use.
func (s *Service) upsertRecipient(ctx context.Context, tx Tx, ownerID, name, number, bankName, bankCode string) (Recipient, error) {
	r, err := tx.FindRecipient(ctx, ownerID, number, bankCode)
	if err == nil {
		return r, nil
	}
	if !IsNotFound(err) {
		return Recipient{}, err
	}
	r = Recipient{
		ID:            ids.New(),
		OwnerID:       ownerID,
		Name:          name,
		AccountNumber: number,
		BankName:      bankName,
		BankCode:      bankCode,
		CreatedAt:     s.now(),
	}
	if err := tx.InsertRecipient(ctx, &r); err != nil {
		return Recipient{}, err
	}
	return r, nil
}
