package bank

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"

	"pitaka.app/internal/ids"
)

// RegisterRequest carries an already hashed password; hashing is the caller's concern.
type RegisterRequest struct {
	Email        string
	FullName     string
	PasswordHash string
}

// RegisterUser creates the user and their MAIN account in one unit.
func (s *Service) RegisterUser(ctx context.Context, req RegisterRequest) (User, Account, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, Account{}, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return User{}, Account{}, fmt.Errorf("%w: full name is required", ErrValidation)
	}
	if req.PasswordHash == "" {
		return User{}, Account{}, fmt.Errorf("%w: password is required", ErrValidation)
	}

	var (
		user User
		acct Account
	)
	err := s.unit(ctx, "register", func(tx Tx, _ func(Event)) error {
		now := s.now()
		user = User{ID: ids.New(), Email: email, FullName: name, PasswordHash: req.PasswordHash, CreatedAt: now}
		if err := tx.CreateUser(ctx, &user); err != nil {
			return err
		}
		var err error
		acct, err = s.newAccount(ctx, tx, user.ID, AccountMain, "Main Account")
		return err
	})
	if err != nil {
		return User{}, Account{}, err
	}
	return user, acct, nil
}

// UserByEmail is used by login to fetch the stored hash.
func (s *Service) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.read(ctx, func(tx Tx) error {
		var err error
		u, err = tx.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
		return err
	})
	return u, err
}

func (s *Service) User(ctx context.Context, p Principal) (User, error) {
	var u User
	err := s.read(ctx, func(tx Tx) error {
		var err error
		u, err = tx.UserByID(ctx, p.ownerID)
		return err
	})
	return u, err
}

type OpenAccountRequest struct {
	Kind        AccountKind `json:"kind"`
	DisplayName string      `json:"display_name"`
}

// OpenAccount opens an additional SAVINGS or INVESTMENT account. MAIN accounts
// only come from registration.
func (s *Service) OpenAccount(ctx context.Context, p Principal, req OpenAccountRequest) (Account, error) {
	if !req.Kind.Valid() {
		return Account{}, fmt.Errorf("%w: unknown account kind %q", ErrValidation, req.Kind)
	}
	if req.Kind == AccountMain {
		return Account{}, fmt.Errorf("%w: main account is created on registration", ErrValidation)
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = strings.ToUpper(string(req.Kind[:1])) + strings.ToLower(string(req.Kind[1:])) + " Account"
	}
	var acct Account
	err := s.unit(ctx, "open_account", func(tx Tx, _ func(Event)) error {
		if _, err := tx.UserByID(ctx, p.ownerID); err != nil {
			return err
		}
		var err error
		acct, err = s.newAccount(ctx, tx, p.ownerID, req.Kind, name)
		return err
	})
	return acct, err
}

func (s *Service) ListAccounts(ctx context.Context, p Principal) ([]Account, error) {
	var out []Account
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListAccounts(ctx, p.ownerID)
		return err
	})
	return out, err
}

func (s *Service) GetAccount(ctx context.Context, p Principal, accountID string) (Account, error) {
	if err := requireID("account id", accountID); err != nil {
		return Account{}, err
	}
	var acct Account
	err := s.read(ctx, func(tx Tx) error {
		var err error
		acct, err = findOwned(ctx, tx, p.ownerID, accountID)
		return err
	})
	return acct, err
}

func (s *Service) newAccount(ctx context.Context, tx Tx, ownerID string, kind AccountKind, name string) (Account, error) {
	number, err := s.generateAccountNumber(ctx, tx)
	if err != nil {
		return Account{}, err
	}
	now := s.now()
	acct := Account{
		ID:            ids.New(),
		OwnerID:       ownerID,
		AccountNumber: number,
		Kind:          kind,
		DisplayName:   name,
		CurrencyLabel: s.currency,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.CreateAccount(ctx, &acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

func (s *Service) generateAccountNumber(ctx context.Context, tx Tx) (string, error) {
	for range maxNumberAttempts {
		n := s.numbers()
		taken, err := tx.AccountNumberTaken(ctx, n)
		if err != nil {
			return "", err
		}
		if !taken {
			return n, nil
		}
	}
	return "", ErrGenerationExhausted
}

// findOwned resolves an account and hides accounts of other owners behind ErrNotFound.
func findOwned(ctx context.Context, tx Tx, ownerID, accountID string) (Account, error) {
	a, err := tx.AccountByID(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	if a.OwnerID != ownerID {
		return Account{}, fmt.Errorf("%w: account", ErrNotFound)
	}
	return a, nil
}

func requireActive(a Account) error {
	if !a.Active {
		return fmt.Errorf("%w: account %s is closed", ErrInvalidState, a.AccountNumber)
	}
	return nil
}

// debit removes amount from a and persists the new balance.
func (s *Service) debit(ctx context.Context, tx Tx, a *Account, amount Amount) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit of %s", ErrInvalidAmount, amount)
	}
	if a.Balance < amount {
		return ErrInsufficientFunds
	}
	a.Balance -= amount
	a.UpdatedAt = s.now()
	return tx.SetBalance(ctx, a.ID, a.Balance)
}

func (s *Service) credit(ctx context.Context, tx Tx, a *Account, amount Amount) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit of %s", ErrInvalidAmount, amount)
	}
	if a.Balance > math.MaxInt64-amount {
		return fmt.Errorf("%w: balance would overflow", ErrInvalidAmount)
	}
	a.Balance += amount
	a.UpdatedAt = s.now()
	return tx.SetBalance(ctx, a.ID, a.Balance)
}

// record stamps and inserts a completed ledger row.
func (s *Service) record(ctx context.Context, tx Tx, t *Transaction) error {
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: transaction kind %q", ErrValidation, t.Kind)
	}
	if t.Status == "" {
		t.Status = StatusCompleted
	}
	if t.OccurredAt.IsZero() {
		t.OccurredAt = s.now()
	}
	return tx.InsertTransaction(ctx, t)
}

// IsNotFound is a convenience for callers that branch on missing entities.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
