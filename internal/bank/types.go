package bank

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountKind string

const (
	AccountMain       AccountKind = "MAIN"
	AccountSavings    AccountKind = "SAVINGS"
	AccountInvestment AccountKind = "INVESTMENT"
)

func (k AccountKind) Valid() bool {
	switch k {
	case AccountMain, AccountSavings, AccountInvestment:
		return true
	}
	return false
}

// User is a registered customer. Every user owns exactly one MAIN account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account holds the only mutable money state: its balance.
type Account struct {
	ID            string      `json:"id"`
	OwnerID       string      `json:"owner_id"`
	AccountNumber string      `json:"account_number"`
	Kind          AccountKind `json:"kind"`
	DisplayName   string      `json:"display_name"`
	Balance       Amount      `json:"balance"`
	CurrencyLabel string      `json:"currency_label"`
	Active        bool        `json:"active"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type TransactionKind string

const (
	KindDeposit            TransactionKind = "DEPOSIT"
	KindWithdrawal         TransactionKind = "WITHDRAWAL"
	KindTransfer           TransactionKind = "TRANSFER"
	KindTransferReceived   TransactionKind = "TRANSFER_RECEIVED"
	KindPayment            TransactionKind = "PAYMENT"
	KindLoanPayment        TransactionKind = "LOAN_PAYMENT"
	KindLoanDisbursement   TransactionKind = "LOAN_DISBURSEMENT"
	KindInvestment         TransactionKind = "INVESTMENT"
	KindInvestmentProceeds TransactionKind = "INVESTMENT_PROCEEDS"
)

// Credit reports whether the kind adds money to the account. All other kinds
// remove Amount+Fee.
func (k TransactionKind) Credit() bool {
	switch k {
	case KindDeposit, KindTransferReceived, KindLoanDisbursement, KindInvestmentProceeds:
		return true
	}
	return false
}

func (k TransactionKind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindTransfer, KindTransferReceived, KindPayment,
		KindLoanPayment, KindLoanDisbursement, KindInvestment, KindInvestmentProceeds:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Transaction is an immutable ledger row. Amount is always the unsigned magnitude;
// the direction comes from Kind.
type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	OwnerID       string          `json:"owner_id"`
	AccountID     string          `json:"account_id"`
	Kind          TransactionKind `json:"kind"`
	Amount        Amount          `json:"amount"`
	Fee           Amount          `json:"fee"`
	Description   string          `json:"description,omitempty"`
	Method        string          `json:"method,omitempty"`
	Status        Status          `json:"status"`
	OccurredAt    time.Time       `json:"occurred_at"`
	TransferID    string          `json:"transfer_id,omitempty"`
	LoanID        string          `json:"loan_id,omitempty"`
	SavingsID     string          `json:"savings_id,omitempty"`
	PaymentID     string          `json:"payment_id,omitempty"`
	InvestmentID  string          `json:"investment_id,omitempty"`
}

// Signed returns the balance effect of the row.
func (t Transaction) Signed() Amount {
	if t.Kind.Credit() {
		return t.Amount
	}
	return -(t.Amount + t.Fee)
}

type TransferKind string

const (
	TransferInternal  TransferKind = "INTERNAL"
	TransferExternal  TransferKind = "EXTERNAL"
	TransferInterbank TransferKind = "INTERBANK"
)

type Transfer struct {
	ID                     string       `json:"id"`
	OwnerID                string       `json:"owner_id"`
	SenderID               string       `json:"sender_id"`
	SenderAccountID        string       `json:"sender_account_id"`
	RecipientID            string       `json:"recipient_id,omitempty"`
	RecipientAccountID     string       `json:"recipient_account_id,omitempty"`
	RecipientAccountNumber string       `json:"recipient_account_number"`
	RecipientName          string       `json:"recipient_name,omitempty"`
	Amount                 Amount       `json:"amount"`
	Fee                    Amount       `json:"fee"`
	Kind                   TransferKind `json:"kind"`
	Status                 Status       `json:"status"`
	Reference              string       `json:"reference"`
	BankName               string       `json:"bank_name,omitempty"`
	BankCode               string       `json:"bank_code,omitempty"`
	Description            string       `json:"description,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
}

// Recipient is an address-book entry created on the first external or interbank transfer.
type Recipient struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Name          string    `json:"name"`
	AccountNumber string    `json:"account_number"`
	BankName      string    `json:"bank_name,omitempty"`
	BankCode      string    `json:"bank_code,omitempty"`
	Favorite      bool      `json:"favorite"`
	CreatedAt     time.Time `json:"created_at"`
}

type Biller struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	MinimumAmount  Amount `json:"minimum_amount"`
	MaximumAmount  Amount `json:"maximum_amount"`
	ConvenienceFee Amount `json:"convenience_fee"`
	Active         bool   `json:"active"`
}

type Payment struct {
	ID                 string    `json:"id"`
	OwnerID            string    `json:"owner_id"`
	AccountID          string    `json:"account_id"`
	BillerID           string    `json:"biller_id"`
	BillerName         string    `json:"biller_name"`
	PayeeAccountNumber string    `json:"payee_account_number"`
	Amount             Amount    `json:"amount"`
	Fee                Amount    `json:"fee"`
	ReferenceNumber    string    `json:"reference_number"`
	Status             Status    `json:"status"`
	TransactionID      string    `json:"transaction_id"`
	Description        string    `json:"description,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type LoanStatus string

const (
	LoanPending   LoanStatus = "PENDING"
	LoanApproved  LoanStatus = "APPROVED"
	LoanActive    LoanStatus = "ACTIVE"
	LoanCompleted LoanStatus = "COMPLETED"
	LoanRejected  LoanStatus = "REJECTED"
	LoanCancelled LoanStatus = "CANCELLED"
)

type LoanProduct struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	MinAmount     Amount          `json:"min_amount"`
	MaxAmount     Amount          `json:"max_amount"`
	AnnualRate    decimal.Decimal `json:"annual_rate"` // fraction, e.g. 0.12
	MinTermMonths int             `json:"min_term_months"`
	MaxTermMonths int             `json:"max_term_months"`
}

type Loan struct {
	ID                string          `json:"id"`
	OwnerID           string          `json:"owner_id"`
	LoanProductID     string          `json:"loan_product_id"`
	AccountID         string          `json:"account_id"`
	Principal         Amount          `json:"principal"`
	Paid              Amount          `json:"paid"`
	Remaining         Amount          `json:"remaining"`
	NextPaymentAmount Amount          `json:"next_payment_amount"`
	TermMonths        int             `json:"term_months"`
	AnnualRate        decimal.Decimal `json:"annual_rate"`
	Purpose           string          `json:"purpose,omitempty"`
	DueDate           time.Time       `json:"due_date"`
	ProgressPercent   float64         `json:"progress_percent"`
	Status            LoanStatus      `json:"status"`
	PaymentIDs        []string        `json:"payment_ids"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type LoanPayment struct {
	ID            string    `json:"id"`
	LoanID        string    `json:"loan_id"`
	OwnerID       string    `json:"owner_id"`
	AccountID     string    `json:"account_id"`
	Amount        Amount    `json:"amount"`
	Reference     string    `json:"reference"`
	TransactionID string    `json:"transaction_id"`
	PaidAt        time.Time `json:"paid_at"`
}

type SavingsEntryKind string

const (
	SavingsDeposit    SavingsEntryKind = "DEPOSIT"
	SavingsWithdrawal SavingsEntryKind = "WITHDRAWAL"
	SavingsInterest   SavingsEntryKind = "INTEREST"
)

type SavingsEntry struct {
	Date      time.Time        `json:"date"`
	Amount    Amount           `json:"amount"`
	Kind      SavingsEntryKind `json:"kind"`
	Reference string           `json:"reference"`
}

type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

type AutoTransfer struct {
	Enabled   bool      `json:"enabled"`
	Amount    Amount    `json:"amount"`
	Frequency Frequency `json:"frequency,omitempty"`
}

type SavingsGoal struct {
	ID              string         `json:"id"`
	OwnerID         string         `json:"owner_id"`
	LinkedAccountID string         `json:"linked_account_id"`
	Name            string         `json:"name"`
	TargetAmount    Amount         `json:"target_amount"`
	CurrentAmount   Amount         `json:"current_amount"`
	Progress        float64        `json:"progress"`
	EndDate         time.Time      `json:"end_date"`
	Entries         []SavingsEntry `json:"transactions"`
	AutoTransfer    AutoTransfer   `json:"auto_transfer"`
	Active          bool           `json:"active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type Company struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Sector        string    `json:"sector,omitempty"`
	CurrentPrice  Amount    `json:"current_price"`
	PreviousClose Amount    `json:"previous_close"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Investment is a share position. CurrentValue, Profit and ProfitPercent are derived
// from the company price on every read and are never authoritative.
type Investment struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	CompanyID     string    `json:"company_id"`
	Symbol        string    `json:"symbol"`
	Shares        int64     `json:"shares"`
	CostBasis     Amount    `json:"cost_basis"`
	PurchasePrice Amount    `json:"purchase_price"`
	CurrentValue  Amount    `json:"current_value"`
	Profit        Amount    `json:"profit"`
	ProfitPercent float64   `json:"profit_percent"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Card struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	CardholderName string    `json:"cardholder_name"`
	Network        string    `json:"network"`
	MaskedNumber   string    `json:"masked_number"`
	Last4          string    `json:"last4"`
	Fingerprint    string    `json:"-"`
	ExpiryMonth    int       `json:"expiry_month"`
	ExpiryYear     int       `json:"expiry_year"`
	Nickname       string    `json:"nickname,omitempty"`
	IsDefault      bool      `json:"is_default"`
	CreatedAt      time.Time `json:"created_at"`
}
