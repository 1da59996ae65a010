package bank

import (
	"context"
	"fmt"
	"strings"

	"pitaka.app/internal/ids"
)

type DepositRequest struct {
	AccountID   string `json:"account_id"`
	Amount      Amount `json:"amount"`
	Description string `json:"description"`
	Method      string `json:"method"`
}

type WithdrawRequest struct {
	AccountID   string `json:"account_id"`
	Amount      Amount `json:"amount"`
	Description string `json:"description"`
	Method      string `json:"method"`
}

// MovementResult is the outcome of a single-account movement.
type MovementResult struct {
	Transaction Transaction `json:"transaction"`
	Account     Account     `json:"account"`
}

// Deposit credits an owned account.
func (s *Service) Deposit(ctx context.Context, p Principal, req DepositRequest) (MovementResult, error) {
	if err := requireID("account id", req.AccountID); err != nil {
		return MovementResult{}, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return MovementResult{}, err
	}
	var res MovementResult
	err := s.unit(ctx, "deposit", func(tx Tx, emit func(Event)) error {
		if err := tx.LockAccounts(ctx, req.AccountID); err != nil {
			return err
		}
		acct, err := findOwned(ctx, tx, p.ownerID, req.AccountID)
		if err != nil {
			return err
		}
		if err := requireActive(acct); err != nil {
			return err
		}
		if err := s.credit(ctx, tx, &acct, req.Amount); err != nil {
			return err
		}
		txn := Transaction{
			TransactionID: ids.Reference(ids.PrefixTransaction),
			OwnerID:       p.ownerID,
			AccountID:     acct.ID,
			Kind:          KindDeposit,
			Amount:        req.Amount,
			Description:   defaultString(req.Description, "Deposit"),
			Method:        req.Method,
		}
		if err := s.record(ctx, tx, &txn); err != nil {
			return err
		}
		res = MovementResult{Transaction: txn, Account: acct}
		emit(Event{Type: EventDeposit, Reference: txn.TransactionID, OwnerID: p.ownerID,
			AccountID: acct.ID, Amount: req.Amount, Balance: balancePtr(acct.Balance)})
		return nil
	})
	return res, err
}

// Withdraw debits an owned account.
func (s *Service) Withdraw(ctx context.Context, p Principal, req WithdrawRequest) (MovementResult, error) {
	if err := requireID("account id", req.AccountID); err != nil {
		return MovementResult{}, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return MovementResult{}, err
	}
	var res MovementResult
	err := s.unit(ctx, "withdraw", func(tx Tx, emit func(Event)) error {
		if err := tx.LockAccounts(ctx, req.AccountID); err != nil {
			return err
		}
		acct, err := findOwned(ctx, tx, p.ownerID, req.AccountID)
		if err != nil {
			return err
		}
		if err := requireActive(acct); err != nil {
			return err
		}
		if err := s.debit(ctx, tx, &acct, req.Amount); err != nil {
			return err
		}
		txn := Transaction{
			TransactionID: ids.Reference(ids.PrefixTransaction),
			OwnerID:       p.ownerID,
			AccountID:     acct.ID,
			Kind:          KindWithdrawal,
			Amount:        req.Amount,
			Description:   defaultString(req.Description, "Withdrawal"),
			Method:        req.Method,
		}
		if err := s.record(ctx, tx, &txn); err != nil {
			return err
		}
		res = MovementResult{Transaction: txn, Account: acct}
		emit(Event{Type: EventWithdrawal, Reference: txn.TransactionID, OwnerID: p.ownerID,
			AccountID: acct.ID, Amount: req.Amount, Balance: balancePtr(acct.Balance)})
		return nil
	})
	return res, err
}

type InternalTransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        Amount `json:"amount"`
	Description   string `json:"description"`
}

type ExternalTransferRequest struct {
	FromAccountID          string `json:"from_account_id"`
	RecipientAccountNumber string `json:"recipient_account_number"`
	RecipientName          string `json:"recipient_name"`
	Amount                 Amount `json:"amount"`
	Description            string `json:"description"`
}

type InterbankTransferRequest struct {
	FromAccountID          string `json:"from_account_id"`
	BankCode               string `json:"bank_code"`
	BankName               string `json:"bank_name"`
	RecipientAccountNumber string `json:"recipient_account_number"`
	RecipientName          string `json:"recipient_name"`
	Amount                 Amount `json:"amount"`
	Description            string `json:"description"`
}

// TransferResult carries the operation record and the caller-visible ledger rows.
// Rows written to another owner's account are not included.
type TransferResult struct {
	Transfer         Transfer      `json:"transfer"`
	Transactions     []Transaction `json:"transactions"`
	SenderAccount    Account       `json:"sender_account"`
	RecipientAccount *Account      `json:"recipient_account,omitempty"`
	Recipient        *Recipient    `json:"recipient,omitempty"`
}

// TransferInternal moves money between two accounts of the same owner.
func (s *Service) TransferInternal(ctx context.Context, p Principal, req InternalTransferRequest) (TransferResult, error) {
	if err := requireID("from account id", req.FromAccountID); err != nil {
		return TransferResult{}, err
	}
	if err := requireID("to account id", req.ToAccountID); err != nil {
		return TransferResult{}, err
	}
	if req.FromAccountID == req.ToAccountID {
		return TransferResult{}, fmt.Errorf("%w: source and destination must differ", ErrValidation)
	}
	if err := requirePositive(req.Amount); err != nil {
		return TransferResult{}, err
	}
	var res TransferResult
	err := s.unit(ctx, "transfer_internal", func(tx Tx, emit func(Event)) error {
		if err := tx.LockAccounts(ctx, req.FromAccountID, req.ToAccountID); err != nil {
			return err
		}
		from, err := findOwned(ctx, tx, p.ownerID, req.FromAccountID)
		if err != nil {
			return err
		}
		to, err := findOwned(ctx, tx, p.ownerID, req.ToAccountID)
		if err != nil {
			return err
		}
		if err := requireActive(from); err != nil {
			return err
		}
		if err := requireActive(to); err != nil {
			return err
		}
		res, err = s.moveBetween(ctx, tx, emit, p, &from, &to, moveParams{
			kind:        TransferInternal,
			prefix:      ids.PrefixTransfer,
			amount:      req.Amount,
			description: defaultString(req.Description, "Transfer between own accounts"),
		})
		return err
	})
	return res, err
}

// TransferExternal sends money to another Pitaka user's account, addressed by
// account number, and remembers the recipient.
func (s *Service) TransferExternal(ctx context.Context, p Principal, req ExternalTransferRequest) (TransferResult, error) {
	if err := requireID("from account id", req.FromAccountID); err != nil {
		return TransferResult{}, err
	}
	number := strings.TrimSpace(req.RecipientAccountNumber)
	if !validAccountNumber(number) {
		return TransferResult{}, fmt.Errorf("%w: recipient account number must be %d digits", ErrValidation, ids.AccountNumberLength)
	}
	if err := requirePositive(req.Amount); err != nil {
		return TransferResult{}, err
	}
	var res TransferResult
	err := s.unit(ctx, "transfer_external", func(tx Tx, emit func(Event)) error {
		to, err := tx.AccountByNumber(ctx, number)
		if err != nil {
			return err
		}
		if to.OwnerID == p.ownerID {
			return fmt.Errorf("%w: destination is your own account, use an internal transfer", ErrValidation)
		}
		if to.ID == req.FromAccountID {
			return fmt.Errorf("%w: source and destination must differ", ErrValidation)
		}
		if err := tx.LockAccounts(ctx, req.FromAccountID, to.ID); err != nil {
			return err
		}
		from, err := findOwned(ctx, tx, p.ownerID, req.FromAccountID)
		if err != nil {
			return err
		}
		// re-read after the lock
		if to, err = tx.AccountByID(ctx, to.ID); err != nil {
			return err
		}
		if err := requireActive(from); err != nil {
			return err
		}
		if err := requireActive(to); err != nil {
			return err
		}
		name := strings.TrimSpace(req.RecipientName)
		if name == "" {
			owner, err := tx.UserByID(ctx, to.OwnerID)
			if err != nil {
				return err
			}
			name = owner.FullName
		}
		rcpt, err := s.upsertRecipient(ctx, tx, p.ownerID, name, number, "", "")
		if err != nil {
			return err
		}
		res, err = s.moveBetween(ctx, tx, emit, p, &from, &to, moveParams{
			kind:          TransferExternal,
			prefix:        ids.PrefixExternal,
			amount:        req.Amount,
			description:   defaultString(req.Description, "Transfer to "+name),
			recipientID:   rcpt.ID,
			recipientName: name,
		})
		if err != nil {
			return err
		}
		res.Recipient = &rcpt
		return nil
	})
	return res, err
}

// TransferInterbank debits the sender for amount plus the interbank fee. The
// destination lives outside the system, so only one ledger row is written.
func (s *Service) TransferInterbank(ctx context.Context, p Principal, req InterbankTransferRequest) (TransferResult, error) {
	if err := requireID("from account id", req.FromAccountID); err != nil {
		return TransferResult{}, err
	}
	bankCode := strings.ToUpper(strings.TrimSpace(req.BankCode))
	bankName := strings.TrimSpace(req.BankName)
	number := strings.TrimSpace(req.RecipientAccountNumber)
	name := strings.TrimSpace(req.RecipientName)
	switch {
	case bankCode == "":
		return TransferResult{}, fmt.Errorf("%w: bank code is required", ErrValidation)
	case bankName == "":
		return TransferResult{}, fmt.Errorf("%w: bank name is required", ErrValidation)
	case number == "" || !isDigits(number):
		return TransferResult{}, fmt.Errorf("%w: recipient account number must be numeric", ErrValidation)
	case name == "":
		return TransferResult{}, fmt.Errorf("%w: recipient name is required", ErrValidation)
	}
	if err := requirePositive(req.Amount); err != nil {
		return TransferResult{}, err
	}
	fee := s.fees.Fee(req.Amount)

	var res TransferResult
	err := s.unit(ctx, "transfer_interbank", func(tx Tx, emit func(Event)) error {
		if err := tx.LockAccounts(ctx, req.FromAccountID); err != nil {
			return err
		}
		from, err := findOwned(ctx, tx, p.ownerID, req.FromAccountID)
		if err != nil {
			return err
		}
		if err := requireActive(from); err != nil {
			return err
		}
		if err := s.debit(ctx, tx, &from, req.Amount+fee); err != nil {
			return err
		}
		rcpt, err := s.upsertRecipient(ctx, tx, p.ownerID, name, number, bankName, bankCode)
		if err != nil {
			return err
		}
		ref := ids.Reference(ids.PrefixInterbank)
		now := s.now()
		tr := Transfer{
			ID:                     ids.New(),
			OwnerID:                p.ownerID,
			SenderID:               p.ownerID,
			SenderAccountID:        from.ID,
			RecipientID:            rcpt.ID,
			RecipientAccountNumber: number,
			RecipientName:          name,
			Amount:                 req.Amount,
			Fee:                    fee,
			Kind:                   TransferInterbank,
			Status:                 StatusCompleted,
			Reference:              ref,
			BankName:               bankName,
			BankCode:               bankCode,
			Description:            defaultString(req.Description, "Interbank transfer to "+bankName),
			CreatedAt:              now,
		}
		if err := tx.InsertTransfer(ctx, &tr); err != nil {
			return err
		}
		out := Transaction{
			TransactionID: ref + ids.SuffixSender,
			OwnerID:       p.ownerID,
			AccountID:     from.ID,
			Kind:          KindTransfer,
			Amount:        req.Amount,
			Fee:           fee,
			Description:   tr.Description,
			TransferID:    tr.ID,
			OccurredAt:    now,
		}
		if err := s.record(ctx, tx, &out); err != nil {
			return err
		}
		res = TransferResult{Transfer: tr, Transactions: []Transaction{out}, SenderAccount: from, Recipient: &rcpt}
		emit(Event{Type: EventTransfer, Reference: ref, OwnerID: p.ownerID, AccountID: from.ID,
			Amount: req.Amount, Fee: fee, Balance: balancePtr(from.Balance)})
		return nil
	})
	return res, err
}

// TransferRequest addresses the destination either by id or by account number.
type TransferRequest struct {
	FromAccountID   string `json:"from_account_id"`
	ToAccountID     string `json:"to_account_id"`
	ToAccountNumber string `json:"to_account_number"`
	RecipientName   string `json:"recipient_name"`
	Amount          Amount `json:"amount"`
	Description     string `json:"description"`
}

// Transfer routes a generic transfer to the internal or external path depending
// on who owns the destination.
func (s *Service) Transfer(ctx context.Context, p Principal, req TransferRequest) (TransferResult, error) {
	if req.ToAccountID != "" {
		return s.TransferInternal(ctx, p, InternalTransferRequest{
			FromAccountID: req.FromAccountID, ToAccountID: req.ToAccountID,
			Amount: req.Amount, Description: req.Description,
		})
	}
	number := strings.TrimSpace(req.ToAccountNumber)
	if number == "" {
		return TransferResult{}, fmt.Errorf("%w: to_account_id or to_account_number is required", ErrValidation)
	}
	var own *Account
	err := s.read(ctx, func(tx Tx) error {
		a, err := tx.AccountByNumber(ctx, number)
		if err != nil {
			return err
		}
		if a.OwnerID == p.ownerID {
			own = &a
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	if own != nil {
		return s.TransferInternal(ctx, p, InternalTransferRequest{
			FromAccountID: req.FromAccountID, ToAccountID: own.ID,
			Amount: req.Amount, Description: req.Description,
		})
	}
	return s.TransferExternal(ctx, p, ExternalTransferRequest{
		FromAccountID: req.FromAccountID, RecipientAccountNumber: number,
		RecipientName: req.RecipientName, Amount: req.Amount, Description: req.Description,
	})
}

type moveParams struct {
	kind          TransferKind
	prefix        string
	amount        Amount
	description   string
	recipientID   string
	recipientName string
}

// moveBetween debits from, credits to and writes the Transfer with its two paired
// ledger rows. Both accounts must already be locked.
func (s *Service) moveBetween(ctx context.Context, tx Tx, emit func(Event), p Principal, from, to *Account, m moveParams) (TransferResult, error) {
	if err := s.debit(ctx, tx, from, m.amount); err != nil {
		return TransferResult{}, err
	}
	if err := s.credit(ctx, tx, to, m.amount); err != nil {
		return TransferResult{}, err
	}
	ref := ids.Reference(m.prefix)
	now := s.now()
	tr := Transfer{
		ID:                     ids.New(),
		OwnerID:                p.ownerID,
		SenderID:               p.ownerID,
		SenderAccountID:        from.ID,
		RecipientID:            m.recipientID,
		RecipientAccountID:     to.ID,
		RecipientAccountNumber: to.AccountNumber,
		RecipientName:          m.recipientName,
		Amount:                 m.amount,
		Kind:                   m.kind,
		Status:                 StatusCompleted,
		Reference:              ref,
		Description:            m.description,
		CreatedAt:              now,
	}
	if err := tx.InsertTransfer(ctx, &tr); err != nil {
		return TransferResult{}, err
	}
	out := Transaction{
		TransactionID: ref + ids.SuffixSender,
		OwnerID:       from.OwnerID,
		AccountID:     from.ID,
		Kind:          KindTransfer,
		Amount:        m.amount,
		Description:   m.description,
		TransferID:    tr.ID,
		OccurredAt:    now,
	}
	if err := s.record(ctx, tx, &out); err != nil {
		return TransferResult{}, err
	}
	in := Transaction{
		TransactionID: ref + ids.SuffixReceiver,
		OwnerID:       to.OwnerID,
		AccountID:     to.ID,
		Kind:          KindTransferReceived,
		Amount:        m.amount,
		Description:   m.description,
		TransferID:    tr.ID,
		OccurredAt:    now,
	}
	if err := s.record(ctx, tx, &in); err != nil {
		return TransferResult{}, err
	}

	res := TransferResult{Transfer: tr, SenderAccount: *from}
	if to.OwnerID == p.ownerID {
		res.Transactions = []Transaction{out, in}
		recv := *to
		res.RecipientAccount = &recv
	} else {
		res.Transactions = []Transaction{out}
	}
	emit(Event{Type: EventTransfer, Reference: ref, OwnerID: from.OwnerID, AccountID: from.ID,
		Amount: m.amount, Balance: balancePtr(from.Balance)})
	emit(Event{Type: EventTransferReceived, Reference: ref, OwnerID: to.OwnerID, AccountID: to.ID,
		Amount: m.amount, Balance: balancePtr(to.Balance)})
	return res, nil
}

func validAccountNumber(n string) bool {
	return len(n) == ids.AccountNumberLength && isDigits(n)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func defaultString(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
