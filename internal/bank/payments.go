package bank

import (
	"context"
	"fmt"
	"strings"

	"pitaka.app/internal/ids"
)

type BillPaymentRequest struct {
	AccountID          string `json:"account_id"`
	BillerID           string `json:"biller_id"`
	PayeeAccountNumber string `json:"payee_account_number"`
	Amount             Amount `json:"amount"`
	Description        string `json:"description"`
}

type PaymentResult struct {
	Payment     Payment     `json:"payment"`
	Transaction Transaction `json:"transaction"`
	Account     Account     `json:"account"`
}

func (s *Service) ListBillers(ctx context.Context) ([]Biller, error) {
	var out []Biller
	err := s.read(ctx, func(tx Tx) error {
		all, err := tx.ListBillers(ctx)
		if err != nil {
			return err
		}
		for _, b := range all {
			if b.Active {
				out = append(out, b)
			}
		}
		return nil
	})
	return out, err
}

// PayBill debits amount plus the biller's convenience fee.
func (s *Service) PayBill(ctx context.Context, p Principal, req BillPaymentRequest) (PaymentResult, error) {
	if err := requireID("account id", req.AccountID); err != nil {
		return PaymentResult{}, err
	}
	if err := requireID("biller id", req.BillerID); err != nil {
		return PaymentResult{}, err
	}
	payee := strings.TrimSpace(req.PayeeAccountNumber)
	if payee == "" {
		return PaymentResult{}, fmt.Errorf("%w: payee account number is required", ErrValidation)
	}
	if err := requirePositive(req.Amount); err != nil {
		return PaymentResult{}, err
	}

	var res PaymentResult
	err := s.unit(ctx, "pay_bill", func(tx Tx, emit func(Event)) error {
		biller, err := tx.GetBiller(ctx, req.BillerID)
		if err != nil {
			return err
		}
		if !biller.Active {
			return fmt.Errorf("%w: biller %s is not accepting payments", ErrInvalidState, biller.Name)
		}
		if req.Amount < biller.MinimumAmount || (biller.MaximumAmount > 0 && req.Amount > biller.MaximumAmount) {
			return fmt.Errorf("%w: %s accepts %s to %s", ErrInvalidAmount, biller.Name, biller.MinimumAmount, biller.MaximumAmount)
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
		fee := biller.ConvenienceFee
		if err := s.debit(ctx, tx, &acct, req.Amount+fee); err != nil {
			return err
		}

		ref := ids.Reference(ids.PrefixPayment)
		now := s.now()
		desc := defaultString(req.Description, "Bill payment to "+biller.Name)
		pay := Payment{
			ID:                 ids.New(),
			OwnerID:            p.ownerID,
			AccountID:          acct.ID,
			BillerID:           biller.ID,
			BillerName:         biller.Name,
			PayeeAccountNumber: payee,
			Amount:             req.Amount,
			Fee:                fee,
			ReferenceNumber:    ref,
			Status:             StatusCompleted,
			TransactionID:      ref + ids.SuffixSender,
			Description:        desc,
			CreatedAt:          now,
		}
		if err := tx.InsertPayment(ctx, &pay); err != nil {
			return err
		}
		txn := Transaction{
			TransactionID: pay.TransactionID,
			OwnerID:       p.ownerID,
			AccountID:     acct.ID,
			Kind:          KindPayment,
			Amount:        req.Amount,
			Fee:           fee,
			Description:   desc,
			PaymentID:     pay.ID,
			OccurredAt:    now,
		}
		if err := s.record(ctx, tx, &txn); err != nil {
			return err
		}
		res = PaymentResult{Payment: pay, Transaction: txn, Account: acct}
		emit(Event{Type: EventBillPayment, Reference: ref, OwnerID: p.ownerID, AccountID: acct.ID,
			Amount: req.Amount, Fee: fee, Balance: balancePtr(acct.Balance)})
		return nil
	})
	return res, err
}

func (s *Service) ListPayments(ctx context.Context, p Principal) ([]Payment, error) {
	var out []Payment
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListPayments(ctx, p.ownerID)
		return err
	})
	return out, err
}

func (s *Service) GetPayment(ctx context.Context, p Principal, id string) (Payment, error) {
	if err := requireID("payment id", id); err != nil {
		return Payment{}, err
	}
	var pay Payment
	err := s.read(ctx, func(tx Tx) error {
		var err error
		pay, err = tx.GetPayment(ctx, p.ownerID, id)
		return err
	})
	return pay, err
}
