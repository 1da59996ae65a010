package bank

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingPublisher) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func testCatalog() Catalog {
	c := DefaultCatalog()
	c.Companies = append(c.Companies, Company{ID: "acme", Symbol: "ACME", Name: "Acme", CurrentPrice: Pesos(100), PreviousClose: Pesos(100)})
	c.LoanProducts = append(c.LoanProducts, LoanProduct{ID: "flat", Name: "Zero Rate", MinAmount: Pesos(1000), MaxAmount: Pesos(50000), MinTermMonths: 1, MaxTermMonths: 24})
	return c
}

func newTestService(t *testing.T, store Store, opts ...Option) (*Service, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithPublisher(pub),
		WithPriceWalk(FixedPrice),
	}
	svc, err := NewService(store, append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, svc.Bootstrap(context.Background(), testCatalog()))
	return svc, pub
}

func registerUser(t *testing.T, svc *Service, email string) (Principal, Account) {
	t.Helper()
	u, acct, err := svc.RegisterUser(context.Background(), RegisterRequest{Email: email, FullName: "Test " + email, PasswordHash: "hash"})
	require.NoError(t, err)
	p, err := PrincipalFor(u.ID, false)
	require.NoError(t, err)
	return p, acct
}

func fund(t *testing.T, svc *Service, p Principal, accountID string, amount Amount) {
	t.Helper()
	_, err := svc.Deposit(context.Background(), p, DepositRequest{AccountID: accountID, Amount: amount})
	require.NoError(t, err)
}

func balanceOf(t *testing.T, svc *Service, p Principal, accountID string) Amount {
	t.Helper()
	a, err := svc.GetAccount(context.Background(), p, accountID)
	require.NoError(t, err)
	return a.Balance
}

func assertReconciles(t *testing.T, svc *Service, p Principal, accountID string) {
	t.Helper()
	rec, err := svc.Reconcile(context.Background(), p, accountID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent, "ledger %s != balance %s", rec.LedgerBalance, rec.Balance)
}

func TestRegisterCreatesMainAccount(t *testing.T) {
	svc, _ := newTestService(t, NewInMemory())
	p, acct := registerUser(t, svc, "ana@example.com")

	assert.Equal(t, AccountMain, acct.Kind)
	assert.Len(t, acct.AccountNumber, 10)
	assert.Equal(t, Amount(0), acct.Balance)
	assert.Equal(t, p.OwnerID(), acct.OwnerID)

	_, _, err := svc.RegisterUser(context.Background(), RegisterRequest{Email: "ANA@example.com", FullName: "Other", PasswordHash: "x"})
	require.ErrorIs(t, err, ErrConflict)

	_, _, err = svc.RegisterUser(context.Background(), RegisterRequest{Email: "not-an-email", FullName: "X", PasswordHash: "x"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestOpenAccount(t *testing.T) {
	svc, _ := newTestService(t, NewInMemory())
	p, _ := registerUser(t, svc, "ben@example.com")

	sav, err := svc.OpenAccount(context.Background(), p, OpenAccountRequest{Kind: AccountSavings})
	require.NoError(t, err)
	assert.Equal(t, "Savings Account", sav.DisplayName)

	_, err = svc.OpenAccount(context.Background(), p, OpenAccountRequest{Kind: AccountMain})
	require.ErrorIs(t, err, ErrValidation)

	accts, err := svc.ListAccounts(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, accts, 2)
}

func TestAccountNumberGenerationIsBounded(t *testing.T) {
	calls := 0
	svc, _ := newTestService(t, NewInMemory(), WithAccountNumbers(func() string {
		calls++
		return "1234567890"
	}))
	registerUser(t, svc, "first@example.com")

	calls = 0
	_, _, err := svc.RegisterUser(context.Background(), RegisterRequest{Email: "second@example.com", FullName: "S", PasswordHash: "h"})
	require.ErrorIs(t, err, ErrGenerationExhausted)
	assert.Equal(t, maxNumberAttempts, calls)

	_, err = svc.UserByEmail(context.Background(), "second@example.com")
	require.ErrorIs(t, err, ErrNotFound, "user insert must roll back with the account")
}

func TestDeposit(t *testing.T) {
	svc, pub := newTestService(t, NewInMemory())
	p, acct := registerUser(t, svc, "dee@example.com")
	fund(t, svc, p, acct.ID, Pesos(1000))

	res, err := svc.Deposit(context.Background(), p, DepositRequest{AccountID: acct.ID, Amount: Pesos(500)})
	require.NoError(t, err)
	assert.Equal(t, Pesos(1500), res.Account.Balance)
	assert.Equal(t, KindDeposit, res.Transaction.Kind)
	assert.Equal(t, Pesos(500), res.Transaction.Amount)
	assert.Equal(t, StatusCompleted, res.Transaction.Status)
	assert.Regexp(t, `^TXN\d{13}\d{4}$`, res.Transaction.TransactionID)

	txns, err := svc.ListTransactions(context.Background(), p, TransactionQuery{AccountID: acct.ID})
	require.NoError(t, err)
	assert.Len(t, txns, 2)
	assert.Equal(t, []EventType{EventDeposit, EventDeposit}, pub.types())
	assertReconciles(t, svc, p, acct.ID)
}

func TestRejectsNonPositiveAmounts(t *testing.T) {
	svc, _ := newTestService(t, NewInMemory())
	p, acct := registerUser(t, svc, "zero@example.com")
	for _, amt := range []Amount{0, -100} {
		_, err := svc.Deposit(context.Background(), p, DepositRequest{AccountID: acct.ID, Amount: amt})
		require.ErrorIs(t, err, ErrInvalidAmount)
		_, err = svc.Withdraw(context.Background(), p, WithdrawRequest{AccountID: acct.ID, Amount: amt})
		require.ErrorIs(t, err, ErrInvalidAmount)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	svc, _ := newTestService(t, NewInMemory())
	p, acct := registerUser(t, svc, "wes@example.com")
	fund(t, svc, p, acct.ID, Pesos(100))

	_, err := svc.Withdraw(context.Background(), p, WithdrawRequest{AccountID: acct.ID, Amount: Pesos(500)})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, Pesos(100), balanceOf(t, svc, p, acct.ID))

	txns, err := svc.ListTransactions(context.Background(), p, TransactionQuery{Kind: KindWithdrawal})
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestOtherOwnersAccountIsNotFound(t *testing.T) {
	svc, _ := newTestService(t, NewInMemory())
	_, acctA := registerUser(t, svc, "a@example.com")
	pB, _ := registerUser(t, svc, "b@example.com")

	_, err := svc.Deposit(context.Background(), pB, DepositRequest{AccountID: acctA.ID, Amount: Pesos(1)})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetAccount(context.Background(), pB, acctA.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInternalTransfer(t *testing.T) {
	svc, _ := newTestService(t, NewInMemory())
	p, a := registerUser(t, svc, "ivy@example.com")
	b, err := svc.OpenAccount(context.Background(), p, OpenAccountRequest{Kind: AccountSavings})
	require.NoError(t, err)
	fund(t, svc, p, a.ID, Pesos(1000))
	fund(t, svc, p, b.ID, Pesos(200))

	res, err := svc.TransferInternal(context.Background(), p, InternalTransferRequest{FromAccountID: a.ID, ToAccountID: b.ID, Amount: Pesos(300)})
	require.NoError(t, err)
	assert.Equal(t, Pesos(700), balanceOf(t, svc, p, a.ID))
	assert.Equal(t, Pesos(500), balanceOf(t, svc, p, b.ID))
	assert.Equal(t, TransferInternal, res.Transfer.Kind)
	assert.Equal(t, Pesos(300), res.Transfer.Amount)
	assert.Equal(t, Amount(0), res.Transfer.Fee)
	assert.Equal(t, StatusCompleted, res.Transfer.Status)

	require.Len(t, res.Transactions, 2)
	out, in := res.Transactions[0], res.Transactions[1]
	assert.Equal(t, KindTransfer, out.Kind)
	assert.Equal(t, KindTransferReceived, in.Kind)
	assert.Equal(t, res.Transfer.Reference+"S", out.TransactionID)
	assert.Equal(t, res.Transfer.Reference+"R", in.TransactionID)
	assert.Equal(t, res.Transfer.ID, out.TransferID)
	assert.Equal(t, res.Transfer.ID, in.TransferID)
	assert.Equal(t, Amount(0), out.Signed()+in.Signed())

	_, err = svc.TransferInternal(context.Background(), p, InternalTransferRequest{FromAccountID: a.ID, ToAccountID: a.ID, Amount: Pesos(1)})
	require.ErrorIs(t, err, ErrValidation)

	assertReconciles(t, svc, p, a.ID)
	assertReconciles(t, svc, p, b.ID)
}

func TestExternalTransfer(t *testing.T) {
	svc, pub := newTestService(t, NewInMemory())
	pA, a := registerUser(t, svc, "ext-a@example.com")
	pB, b := registerUser(t, svc, "ext-b@example.com")
	fund(t, svc, pA, a.ID, Pesos(1000))

	res, err := svc.TransferExternal(context.Background(), pA, ExternalTransferRequest{
		FromAccountID: a.ID, RecipientAccountNumber: b.AccountNumber, Amount: Pesos(250),
	})
	require.NoError(t, err)
	assert.Equal(t, TransferExternal, res.Transfer.Kind)
	assert.Nil(t, res.RecipientAccount)
	require.Len(t, res.Transactions, 1)
	require.NotNil(t, res.Recipient)
	assert.Equal(t, "Test ext-b@example.com", res.Recipient.Name)

	assert.Equal(t, Pesos(750), balanceOf(t, svc, pA, a.ID))
	assert.Equal(t, Pesos(250), balanceOf(t, svc, pB, b.ID))

	// the second transfer reuses the saved recipient
	_, err = svc.TransferExternal(context.Background(), pA, ExternalTransferRequest{
		FromAccountID: a.ID, RecipientAccountNumber: b.AccountNumber, Amount: Pesos(50),
	})
	require.NoError(t, err)
	rcpts, err := svc.ListRecipients(context.Background(), pA)
	require.NoError(t, err)
	assert.Len(t, rcpts, 1)

	recv, err := svc.ListTransactions(context.Background(), pB, TransactionQuery{Kind: KindTransferReceived})
	require.NoError(t, err)
	assert.Len(t, recv, 2)

	own, err := svc.OpenAccount(context.Background(), pA, OpenAccountRequest{Kind: AccountSavings})
	require.NoError(t, err)
	_, err = svc.TransferExternal(context.Background(), pA, ExternalTransferRequest{
		FromAccountID: a.ID, RecipientAccountNumber: own.AccountNumber, Amount: Pesos(1),
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.TransferExternal(context.Background(), pA, ExternalTransferRequest{
		FromAccountID: a.ID, RecipientAccountNumber: "0000000000", Amount: Pesos(1),
	})
	require.ErrorIs(t, err, ErrNotFound)

	assert.Contains(t, pub.types(), EventTransferReceived)
	assertReconciles(t, svc, pA, a.ID)
	assertReconciles(t, svc, pB, b.ID)
}

func TestTransferRoutesByOwnership(t *testing.T) {
	svc, _ := newTestService(t, NewInMemory())
	pA, a := registerUser(t, svc, "route-a@example.com")
	_, b := registerUser(t, svc, "route-b@example.com")
	sav, err := svc.OpenAccount(context.Background(), pA, OpenAccountRequest{Kind: AccountSavings})
	require.NoError(t, err)
	fund(t, svc, pA, a.ID, Pesos(100))

	res, err := svc.Transfer(context.Background(), pA, TransferRequest{FromAccountID: a.ID, ToAccountNumber: sav.AccountNumber, Amount: Pesos(10)})
	require.NoError(t, err)
	assert.Equal(t, TransferInternal, res.Transfer.Kind)

	res, err = svc.Transfer(context.Background(), pA, TransferRequest{FromAccountID: a.ID, ToAccountNumber: b.AccountNumber, Amount: Pesos(10)})
	require.NoError(t, err)
	assert.Equal(t, TransferExternal, res.Transfer.Kind)
}

func TestInterbankTransferFlatFee(t *testing.T) {
	svc, _ := newTestService(t, NewInMemory())
	p, a := registerUser(t, svc, "ib@example.com")
	fund(t, svc, p, a.ID, Pesos(1000))

	req := InterbankTransferRequest{
		FromAccountID: a.ID, BankCode: "bpi", BankName: "BPI",
		RecipientAccountNumber: "009988776655", RecipientName: "Lito", Amount: Pesos(300),
	}
	res, err := svc.TransferInterbank(context.Background(), p, req)
	require.NoError(t, err)
	assert.Equal(t, Pesos(675), balanceOf(t, svc, p, a.ID))
	assert.Equal(t, Pesos(25), res.Transfer.Fee)
	assert.Equal(t, "BPI", res.Transfer.BankCode)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, -Pesos(325), res.Transactions[0].Signed())
	assertReconciles(t, svc, p, a.ID)

	p2, a2 := registerUser(t, svc, "ib2@example.com")
	fund(t, svc, p2, a2.ID, Pesos(320))
	req.FromAccountID = a2.ID
	_, err = svc.TransferInterbank(context.Background(), p2, req)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, Pesos(320), balanceOf(t, svc, p2, a2.ID))
	rcpts, err := svc.ListRecipients(context.Background(), p2)
	require.NoError(t, err)
	assert.Empty(t, rcpts, "recipient upsert must roll back with the failed transfer")
}

func TestInterbankTransferPercentFee(t *testing.T) {
	svc, _ := newTestService(t, NewInMemory(), WithFeePolicy(DefaultPercentFee))
	p, a := registerUser(t, svc, "pct@example.com")
	fund(t, svc, p, a.ID, Pesos(20000))

	res, err := svc.TransferInterbank(context.Background(), p, InterbankTransferRequest{
		FromAccountID: a.ID, BankCode: "BDO", BankName: "BDO", RecipientAccountNumber: "1", RecipientName: "X", Amount: Pesos(4000),
	})
	require.NoError(t, err)
	assert.Equal(t, Pesos(20), res.Transfer.Fee)
}

func TestBillPayment(t *testing.T) {
	svc, pub := newTestService(t, NewInMemory())
	p, a := registerUser(t, svc, "bill@example.com")
	fund(t, svc, p, a.ID, Pesos(2000))

	res, err := svc.PayBill(context.Background(), p, BillPaymentRequest{AccountID: a.ID, BillerID: "meralco", PayeeAccountNumber: "123-456", Amount: Pesos(1500)})
	require.NoError(t, err)
	assert.Equal(t, Pesos(490), res.Account.Balance)
	assert.Equal(t, Pesos(10), res.Payment.Fee)
	assert.Equal(t, res.Payment.TransactionID, res.Transaction.TransactionID)
	assert.Equal(t, res.Payment.ID, res.Transaction.PaymentID)
	assert.Contains(t, pub.types(), EventBillPayment)

	_, err = svc.PayBill(context.Background(), p, BillPaymentRequest{AccountID: a.ID, BillerID: "meralco", PayeeAccountNumber: "123-456", Amount: Pesos(50)})
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.PayBill(context.Background(), p, BillPaymentRequest{AccountID: a.ID, BillerID: "meralco", PayeeAccountNumber: "123-456", Amount: Pesos(485)})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	_, err = svc.PayBill(context.Background(), p, BillPaymentRequest{AccountID: a.ID, BillerID: "nope", PayeeAccountNumber: "1", Amount: Pesos(100)})
	require.ErrorIs(t, err, ErrNotFound)

	assertReconciles(t, svc, p, a.ID)
}

func TestRecipientAddressBook(t *testing.T) {
	svc, _ := newTestService(t, NewInMemory())
	p, _ := registerUser(t, svc, "book@example.com")
	ctx := context.Background()

	r, err := svc.AddRecipient(ctx, p, RecipientRequest{Name: "Mila", AccountNumber: "1234567890"})
	require.NoError(t, err)
	_, err = svc.AddRecipient(ctx, p, RecipientRequest{Name: "Mila again", AccountNumber: "1234567890"})
	require.ErrorIs(t, err, ErrConflict)

	fav := true
	r, err = svc.UpdateRecipient(ctx, p, r.ID, RecipientUpdate{Favorite: &fav})
	require.NoError(t, err)
	assert.True(t, r.Favorite)

	require.NoError(t, svc.DeleteRecipient(ctx, p, r.ID))
	require.ErrorIs(t, svc.DeleteRecipient(ctx, p, r.ID), ErrNotFound)
}

// faultyStore fails the n-th ledger insert of every atomic unit.
type faultyStore struct {
	*InMemory
	failAt int
}

func (f *faultyStore) Atomically(ctx context.Context, fn func(tx Tx) error) error {
	return f.InMemory.Atomically(ctx, func(tx Tx) error {
		return fn(&faultyTx{Tx: tx, failAt: f.failAt})
	})
}

type faultyTx struct {
	Tx
	inserts int
	failAt  int
}

var errStoreFault = errors.New("store fault")

func (t *faultyTx) InsertTransaction(ctx context.Context, tr *Transaction) error {
	t.inserts++
	if t.inserts == t.failAt {
		return errStoreFault
	}
	return t.Tx.InsertTransaction(ctx, tr)
}

func TestTransferRollsBackOnStoreFault(t *testing.T) {
	store := &faultyStore{InMemory: NewInMemory(), failAt: 2}
	svc, pub := newTestService(t, store)
	p, a := registerUser(t, svc, "fault@example.com")
	b, err := svc.OpenAccount(context.Background(), p, OpenAccountRequest{Kind: AccountSavings})
	require.NoError(t, err)
	fund(t, svc, p, a.ID, Pesos(1000))
	before := len(pub.types())

	_, err = svc.TransferInternal(context.Background(), p, InternalTransferRequest{FromAccountID: a.ID, ToAccountID: b.ID, Amount: Pesos(300)})
	require.ErrorIs(t, err, errStoreFault)

	assert.Equal(t, Pesos(1000), balanceOf(t, svc, p, a.ID))
	assert.Equal(t, Amount(0), balanceOf(t, svc, p, b.ID))
	transfers, err := svc.ListTransfers(context.Background(), p, 0)
	require.NoError(t, err)
	assert.Empty(t, transfers)
	txns, err := svc.ListTransactions(context.Background(), p, TransactionQuery{})
	require.NoError(t, err)
	assert.Len(t, txns, 1, "only the funding deposit survives")
	assert.Len(t, pub.types(), before, "no events for a rolled back unit")
}

func TestCancelledContextRollsBack(t *testing.T) {
	svc, _ := newTestService(t, NewInMemory())
	p, a := registerUser(t, svc, "ctx@example.com")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Deposit(ctx, p, DepositRequest{AccountID: a.ID, Amount: Pesos(10)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Amount(0), balanceOf(t, svc, p, a.ID))
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	svc, _ := newTestService(t, NewInMemory())
	p, a := registerUser(t, svc, "race@example.com")
	fund(t, svc, p, a.ID, Pesos(1000))

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Withdraw(context.Background(), p, WithdrawRequest{AccountID: a.ID, Amount: Pesos(100)}); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, ok)
	assert.Equal(t, Amount(0), balanceOf(t, svc, p, a.ID))
	assertReconciles(t, svc, p, a.ID)
}

func TestPrincipalRequiresOwner(t *testing.T) {
	_, err := PrincipalFor("  ", false)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestBalanceGuards(t *testing.T) {
	svc, _ := newTestService(t, NewInMemory())
	ctx := context.Background()
	acct := &Account{ID: "acct", Balance: Amount(math.MaxInt64 - 10)}

	require.ErrorIs(t, svc.credit(ctx, nil, acct, 11), ErrInvalidAmount)
	require.ErrorIs(t, svc.credit(ctx, nil, acct, 0), ErrInvalidAmount)
	require.ErrorIs(t, svc.credit(ctx, nil, acct, -5), ErrInvalidAmount)
	require.ErrorIs(t, svc.debit(ctx, nil, acct, 0), ErrInvalidAmount)
	require.ErrorIs(t, svc.debit(ctx, nil, acct, -5), ErrInvalidAmount)
	assert.Equal(t, Amount(math.MaxInt64-10), acct.Balance)
}
