package bank

import "context"

// Store provides the atomic unit every money movement runs in.
type Store interface {
	// Atomically runs fn inside one atomic unit. When fn returns an error, or the
	// commit fails, none of fn's writes persist.
	Atomically(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx is the set of reads and writes available inside an atomic unit.
type Tx interface {
	UserRepo
	AccountRepo
	LedgerRepo
	TransferRepo
	PaymentRepo
	LoanRepo
	SavingsRepo
	InvestmentRepo
	CardRepo
}

type UserRepo interface {
	CreateUser(ctx context.Context, u *User) error
	UserByID(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
}

type AccountRepo interface {
	CreateAccount(ctx context.Context, a *Account) error
	// LockAccounts takes row locks on the given accounts for the rest of the unit.
	LockAccounts(ctx context.Context, ids ...string) error
	AccountByID(ctx context.Context, id string) (Account, error)
	AccountByNumber(ctx context.Context, number string) (Account, error)
	AccountNumberTaken(ctx context.Context, number string) (bool, error)
	ListAccounts(ctx context.Context, ownerID string) ([]Account, error)
	SetBalance(ctx context.Context, accountID string, balance Amount) error
}

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	OwnerID   string
	AccountID string
	Kind      TransactionKind
	Limit     int
	Offset    int
}

type LedgerRepo interface {
	InsertTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, ownerID, transactionID string) (Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)
}

type TransferRepo interface {
	InsertTransfer(ctx context.Context, t *Transfer) error
	GetTransfer(ctx context.Context, ownerID, id string) (Transfer, error)
	ListTransfers(ctx context.Context, ownerID string, limit int) ([]Transfer, error)

	FindRecipient(ctx context.Context, ownerID, accountNumber, bankCode string) (Recipient, error)
	InsertRecipient(ctx context.Context, r *Recipient) error
	GetRecipient(ctx context.Context, ownerID, id string) (Recipient, error)
	UpdateRecipient(ctx context.Context, r *Recipient) error
	DeleteRecipient(ctx context.Context, ownerID, id string) error
	ListRecipients(ctx context.Context, ownerID string) ([]Recipient, error)
}

type PaymentRepo interface {
	UpsertBiller(ctx context.Context, b *Biller) error
	GetBiller(ctx context.Context, id string) (Biller, error)
	ListBillers(ctx context.Context) ([]Biller, error)

	InsertPayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, ownerID, id string) (Payment, error)
	ListPayments(ctx context.Context, ownerID string) ([]Payment, error)
}

type LoanRepo interface {
	UpsertLoanProduct(ctx context.Context, p *LoanProduct) error
	GetLoanProduct(ctx context.Context, id string) (LoanProduct, error)
	ListLoanProducts(ctx context.Context) ([]LoanProduct, error)

	InsertLoan(ctx context.Context, l *Loan) error
	// GetLoan scopes by owner; an empty ownerID matches any owner.
	GetLoan(ctx context.Context, ownerID, id string) (Loan, error)
	UpdateLoan(ctx context.Context, l *Loan) error
	ListLoans(ctx context.Context, ownerID string) ([]Loan, error)

	InsertLoanPayment(ctx context.Context, p *LoanPayment) error
	ListLoanPayments(ctx context.Context, loanID string) ([]LoanPayment, error)
}

type SavingsRepo interface {
	InsertSavingsGoal(ctx context.Context, g *SavingsGoal) error
	GetSavingsGoal(ctx context.Context, ownerID, id string) (SavingsGoal, error)
	// UpdateSavingsGoal persists scalar fields; entries are written with AppendSavingsEntry.
	UpdateSavingsGoal(ctx context.Context, g *SavingsGoal) error
	AppendSavingsEntry(ctx context.Context, goalID string, e SavingsEntry) error
	ListSavingsGoals(ctx context.Context, ownerID string) ([]SavingsGoal, error)
}

type InvestmentRepo interface {
	UpsertCompany(ctx context.Context, c *Company) error
	GetCompany(ctx context.Context, id string) (Company, error)
	ListCompanies(ctx context.Context) ([]Company, error)
	SetCompanyPrice(ctx context.Context, id string, price, previousClose Amount) error

	// OpenPosition returns the active position for (owner, company) or ErrNotFound.
	OpenPosition(ctx context.Context, ownerID, companyID string) (Investment, error)
	GetInvestment(ctx context.Context, ownerID, id string) (Investment, error)
	InsertInvestment(ctx context.Context, inv *Investment) error
	UpdateInvestment(ctx context.Context, inv *Investment) error
	ListInvestments(ctx context.Context, ownerID string, activeOnly bool) ([]Investment, error)
}

type CardRepo interface {
	InsertCard(ctx context.Context, c *Card) error
	GetCard(ctx context.Context, ownerID, id string) (Card, error)
	CardByFingerprint(ctx context.Context, ownerID, fingerprint string) (Card, error)
	ListCards(ctx context.Context, ownerID string) ([]Card, error)
	// ClearDefaultCards unsets IsDefault on every card of the owner.
	ClearDefaultCards(ctx context.Context, ownerID string) error
	SetCardDefault(ctx context.Context, ownerID, id string) error
	DeleteCard(ctx context.Context, ownerID, id string) error
}
