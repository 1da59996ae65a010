package bank

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pitaka.app/internal/ids"
)

var (
	one     = decimal.NewFromInt(1)
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// Amortize returns the fixed monthly installment P·r(1+r)^n / ((1+r)^n − 1) with
// r the monthly rate. A zero rate splits the principal evenly.
func Amortize(principal Amount, annualRate decimal.Decimal, months int) Amount {
	if months <= 0 {
		return principal
	}
	p := principal.Decimal()
	n := decimal.NewFromInt(int64(months))
	r := annualRate.Div(twelve)
	if r.Sign() <= 0 {
		return Amount(p.Div(n).Shift(2).Round(0).IntPart())
	}
	growth := one.Add(r).Pow(n)
	payment := p.Mul(r).Mul(growth).Div(growth.Sub(one))
	return Amount(payment.Shift(2).Round(0).IntPart())
}

// percentOf returns part/whole*100 rounded to 2 places, capped at 100.
func percentOf(part, whole Amount) float64 {
	if whole <= 0 {
		return 0
	}
	pct := part.Decimal().Div(whole.Decimal()).Mul(hundred).Round(2)
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	return pct.InexactFloat64()
}

// installment is the scheduled monthly amount for the loan's terms.
func (l *Loan) installment() Amount {
	inst := Amortize(l.Principal, l.AnnualRate, l.TermMonths)
	if inst <= 0 {
		return maxOf(l.Principal, 1)
	}
	return inst
}

// applyPayment folds a payment into the loan. The due date moves one month for
// each installment the cumulative payments newly cover, so partial payments in
// the same month leave it alone. The loan completes the first time remaining
// reaches zero.
func (l *Loan) applyPayment(amount Amount, now time.Time) {
	inst := l.installment()
	covered := (l.Paid+amount)/inst - l.Paid/inst
	l.Paid += amount
	l.Remaining = maxOf(l.Principal-l.Paid, 0)
	l.ProgressPercent = percentOf(l.Paid, l.Principal)
	l.UpdatedAt = now
	if l.Remaining == 0 {
		l.Status = LoanCompleted
		l.NextPaymentAmount = 0
		return
	}
	l.NextPaymentAmount = minAmount(inst-l.Paid%inst, l.Remaining)
	if covered > 0 {
		l.DueDate = l.DueDate.AddDate(0, int(covered), 0)
	}
}

type LoanApplication struct {
	ProductID  string `json:"loan_product_id"`
	AccountID  string `json:"account_id"`
	Amount     Amount `json:"amount"`
	TermMonths int    `json:"term_months"`
	Purpose    string `json:"purpose"`
}

type LoanPaymentRequest struct {
	AccountID string `json:"account_id"`
	Amount    Amount `json:"amount"`
}

type LoanPaymentResult struct {
	Loan        Loan        `json:"loan"`
	Payment     LoanPayment `json:"payment"`
	Transaction Transaction `json:"transaction"`
	Account     Account     `json:"account"`
}

// LoanDetail is a loan with its payment history.
type LoanDetail struct {
	Loan
	Payments []LoanPayment `json:"payments"`
}

func (s *Service) ListLoanProducts(ctx context.Context) ([]LoanProduct, error) {
	var out []LoanProduct
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListLoanProducts(ctx)
		return err
	})
	return out, err
}

// ApplyLoan validates the request against the product and files a PENDING loan.
// No money moves until approval.
func (s *Service) ApplyLoan(ctx context.Context, p Principal, req LoanApplication) (Loan, error) {
	if err := requireID("loan product id", req.ProductID); err != nil {
		return Loan{}, err
	}
	if err := requireID("account id", req.AccountID); err != nil {
		return Loan{}, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return Loan{}, err
	}
	var loan Loan
	err := s.unit(ctx, "apply_loan", func(tx Tx, _ func(Event)) error {
		prod, err := tx.GetLoanProduct(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if req.Amount < prod.MinAmount || req.Amount > prod.MaxAmount {
			return fmt.Errorf("%w: %s lends %s to %s", ErrInvalidAmount, prod.Name, prod.MinAmount, prod.MaxAmount)
		}
		if req.TermMonths < prod.MinTermMonths || req.TermMonths > prod.MaxTermMonths {
			return fmt.Errorf("%w: term must be %d to %d months", ErrValidation, prod.MinTermMonths, prod.MaxTermMonths)
		}
		acct, err := findOwned(ctx, tx, p.ownerID, req.AccountID)
		if err != nil {
			return err
		}
		if err := requireActive(acct); err != nil {
			return err
		}
		now := s.now()
		loan = Loan{
			ID:                ids.New(),
			OwnerID:           p.ownerID,
			LoanProductID:     prod.ID,
			AccountID:         acct.ID,
			Principal:         req.Amount,
			Remaining:         req.Amount,
			NextPaymentAmount: Amortize(req.Amount, prod.AnnualRate, req.TermMonths),
			TermMonths:        req.TermMonths,
			AnnualRate:        prod.AnnualRate,
			Purpose:           strings.TrimSpace(req.Purpose),
			DueDate:           now.AddDate(0, 1, 0),
			Status:            LoanPending,
			PaymentIDs:        []string{},
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		return tx.InsertLoan(ctx, &loan)
	})
	return loan, err
}

func (s *Service) ListLoans(ctx context.Context, p Principal) ([]Loan, error) {
	var out []Loan
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListLoans(ctx, p.ownerID)
		return err
	})
	return out, err
}

func (s *Service) GetLoan(ctx context.Context, p Principal, id string) (LoanDetail, error) {
	if err := requireID("loan id", id); err != nil {
		return LoanDetail{}, err
	}
	var d LoanDetail
	err := s.read(ctx, func(tx Tx) error {
		l, err := tx.GetLoan(ctx, p.ownerID, id)
		if err != nil {
			return err
		}
		pays, err := tx.ListLoanPayments(ctx, l.ID)
		if err != nil {
			return err
		}
		d = LoanDetail{Loan: l, Payments: pays}
		return nil
	})
	return d, err
}

// ApproveLoan activates a pending loan and disburses the principal into the
// loan's account. Admin only.
func (s *Service) ApproveLoan(ctx context.Context, p Principal, id string) (Loan, error) {
	if !p.admin {
		return Loan{}, fmt.Errorf("%w: loan approval requires the admin role", ErrForbidden)
	}
	if err := requireID("loan id", id); err != nil {
		return Loan{}, err
	}
	var loan Loan
	err := s.unit(ctx, "approve_loan", func(tx Tx, emit func(Event)) error {
		var err error
		loan, err = tx.GetLoan(ctx, "", id)
		if err != nil {
			return err
		}
		if loan.Status != LoanPending {
			return fmt.Errorf("%w: loan is %s", ErrInvalidState, loan.Status)
		}
		if err := tx.LockAccounts(ctx, loan.AccountID); err != nil {
			return err
		}
		acct, err := findOwned(ctx, tx, loan.OwnerID, loan.AccountID)
		if err != nil {
			return err
		}
		if err := requireActive(acct); err != nil {
			return err
		}
		if err := s.credit(ctx, tx, &acct, loan.Principal); err != nil {
			return err
		}
		now := s.now()
		ref := ids.Reference(ids.PrefixLoan)
		txn := Transaction{
			TransactionID: ref + ids.SuffixReceiver,
			OwnerID:       loan.OwnerID,
			AccountID:     acct.ID,
			Kind:          KindLoanDisbursement,
			Amount:        loan.Principal,
			Description:   "Loan disbursement",
			LoanID:        loan.ID,
			OccurredAt:    now,
		}
		if err := s.record(ctx, tx, &txn); err != nil {
			return err
		}
		loan.Status = LoanActive
		loan.DueDate = now.AddDate(0, 1, 0)
		loan.UpdatedAt = now
		if err := tx.UpdateLoan(ctx, &loan); err != nil {
			return err
		}
		emit(Event{Type: EventLoanDisbursed, Reference: ref, OwnerID: loan.OwnerID, AccountID: acct.ID,
			Amount: loan.Principal, Balance: balancePtr(acct.Balance)})
		return nil
	})
	return loan, err
}

// RejectLoan closes a pending application. Admin only.
func (s *Service) RejectLoan(ctx context.Context, p Principal, id string) (Loan, error) {
	if !p.admin {
		return Loan{}, fmt.Errorf("%w: loan rejection requires the admin role", ErrForbidden)
	}
	return s.closePending(ctx, "reject_loan", "", id, LoanRejected)
}

// CancelLoan withdraws the caller's own pending application.
func (s *Service) CancelLoan(ctx context.Context, p Principal, id string) (Loan, error) {
	return s.closePending(ctx, "cancel_loan", p.ownerID, id, LoanCancelled)
}

func (s *Service) closePending(ctx context.Context, op, ownerID, id string, to LoanStatus) (Loan, error) {
	if err := requireID("loan id", id); err != nil {
		return Loan{}, err
	}
	var loan Loan
	err := s.unit(ctx, op, func(tx Tx, _ func(Event)) error {
		var err error
		loan, err = tx.GetLoan(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if loan.Status != LoanPending {
			return fmt.Errorf("%w: loan is %s", ErrInvalidState, loan.Status)
		}
		loan.Status = to
		loan.UpdatedAt = s.now()
		return tx.UpdateLoan(ctx, &loan)
	})
	return loan, err
}

// PayLoan debits the paying account and applies the payment to an ACTIVE loan.
// Paying more than the remaining balance is rejected.
func (s *Service) PayLoan(ctx context.Context, p Principal, loanID string, req LoanPaymentRequest) (LoanPaymentResult, error) {
	if err := requireID("loan id", loanID); err != nil {
		return LoanPaymentResult{}, err
	}
	if err := requireID("account id", req.AccountID); err != nil {
		return LoanPaymentResult{}, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return LoanPaymentResult{}, err
	}
	var res LoanPaymentResult
	err := s.unit(ctx, "pay_loan", func(tx Tx, emit func(Event)) error {
		loan, err := tx.GetLoan(ctx, p.ownerID, loanID)
		if err != nil {
			return err
		}
		if loan.Status != LoanActive {
			return fmt.Errorf("%w: loan is %s", ErrInvalidState, loan.Status)
		}
		if req.Amount > loan.Remaining {
			return fmt.Errorf("%w: payment exceeds remaining balance %s", ErrInvalidAmount, loan.Remaining)
		}
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
		now := s.now()
		ref := ids.Reference(ids.PrefixLoanPayment)
		pay := LoanPayment{
			ID:            ids.New(),
			LoanID:        loan.ID,
			OwnerID:       p.ownerID,
			AccountID:     acct.ID,
			Amount:        req.Amount,
			Reference:     ref,
			TransactionID: ref + ids.SuffixSender,
			PaidAt:        now,
		}
		if err := tx.InsertLoanPayment(ctx, &pay); err != nil {
			return err
		}
		txn := Transaction{
			TransactionID: pay.TransactionID,
			OwnerID:       p.ownerID,
			AccountID:     acct.ID,
			Kind:          KindLoanPayment,
			Amount:        req.Amount,
			Description:   "Loan payment",
			LoanID:        loan.ID,
			OccurredAt:    now,
		}
		if err := s.record(ctx, tx, &txn); err != nil {
			return err
		}
		loan.applyPayment(req.Amount, now)
		loan.PaymentIDs = append(loan.PaymentIDs, pay.ID)
		if err := tx.UpdateLoan(ctx, &loan); err != nil {
			return err
		}
		res = LoanPaymentResult{Loan: loan, Payment: pay, Transaction: txn, Account: acct}
		emit(Event{Type: EventLoanPayment, Reference: ref, OwnerID: p.ownerID, AccountID: acct.ID,
			Amount: req.Amount, Balance: balancePtr(acct.Balance)})
		return nil
	})
	return res, err
}
