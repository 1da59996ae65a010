package bank

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
)

// InMemory implements Store with in-process state. Atomic units are serialized
// behind one mutex and rolled back by restoring a snapshot taken on entry.
type InMemory struct {
	mu    sync.Mutex
	state memState
}

var _ Store = (*InMemory)(nil)

type memState struct {
	users        map[string]User
	accounts     map[string]Account
	txns         []Transaction
	txnIDs       map[string]struct{}
	transfers    map[string]Transfer
	references   map[string]struct{}
	recipients   map[string]Recipient
	billers      map[string]Biller
	payments     map[string]Payment
	products     map[string]LoanProduct
	loans        map[string]Loan
	loanPayments map[string]LoanPayment
	goals        map[string]SavingsGoal
	companies    map[string]Company
	investments  map[string]Investment
	cards        map[string]Card
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{state: memState{
		users:        map[string]User{},
		accounts:     map[string]Account{},
		txnIDs:       map[string]struct{}{},
		transfers:    map[string]Transfer{},
		references:   map[string]struct{}{},
		recipients:   map[string]Recipient{},
		billers:      map[string]Biller{},
		payments:     map[string]Payment{},
		products:     map[string]LoanProduct{},
		loans:        map[string]Loan{},
		loanPayments: map[string]LoanPayment{},
		goals:        map[string]SavingsGoal{},
		companies:    map[string]Company{},
		investments:  map[string]Investment{},
		cards:        map[string]Card{},
	}}
}

// snapshot copies every map. Slices inside values are never mutated in place, so a
// shallow copy is enough to restore.
func (s memState) snapshot() memState {
	return memState{
		users:        maps.Clone(s.users),
		accounts:     maps.Clone(s.accounts),
		txns:         s.txns[:len(s.txns):len(s.txns)],
		txnIDs:       maps.Clone(s.txnIDs),
		transfers:    maps.Clone(s.transfers),
		references:   maps.Clone(s.references),
		recipients:   maps.Clone(s.recipients),
		billers:      maps.Clone(s.billers),
		payments:     maps.Clone(s.payments),
		products:     maps.Clone(s.products),
		loans:        maps.Clone(s.loans),
		loanPayments: maps.Clone(s.loanPayments),
		goals:        maps.Clone(s.goals),
		companies:    maps.Clone(s.companies),
		investments:  maps.Clone(s.investments),
		cards:        maps.Clone(s.cards),
	}
}

func (m *InMemory) Atomically(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.state.snapshot()
	if err := fn(&memTx{s: &m.state}); err != nil {
		m.state = saved
		return err
	}
	if err := ctx.Err(); err != nil {
		m.state = saved
		return err
	}
	return nil
}

func (m *InMemory) Ping(ctx context.Context) error { return nil }

type memTx struct {
	s *memState
}

func notFound(what string) error { return fmt.Errorf("%w: %s", ErrNotFound, what) }

func conflict(what string) error { return fmt.Errorf("%w: %s", ErrConflict, what) }

// --- users ---

func (t *memTx) CreateUser(ctx context.Context, u *User) error {
	for _, existing := range t.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return conflict("email already registered")
		}
	}
	t.s.users[u.ID] = *u
	return nil
}

func (t *memTx) UserByID(ctx context.Context, id string) (User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return User{}, notFound("user")
	}
	return u, nil
}

func (t *memTx) UserByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range t.s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, notFound("user")
}

// --- accounts ---

func (t *memTx) CreateAccount(ctx context.Context, a *Account) error {
	if _, ok := t.s.accounts[a.ID]; ok {
		return conflict("account id")
	}
	for _, existing := range t.s.accounts {
		if existing.AccountNumber == a.AccountNumber {
			return conflict("account number")
		}
	}
	t.s.accounts[a.ID] = *a
	return nil
}

func (t *memTx) LockAccounts(ctx context.Context, ids ...string) error { return nil }

func (t *memTx) AccountByID(ctx context.Context, id string) (Account, error) {
	a, ok := t.s.accounts[id]
	if !ok {
		return Account{}, notFound("account")
	}
	return a, nil
}

func (t *memTx) AccountByNumber(ctx context.Context, number string) (Account, error) {
	for _, a := range t.s.accounts {
		if a.AccountNumber == number {
			return a, nil
		}
	}
	return Account{}, notFound("account")
}

func (t *memTx) AccountNumberTaken(ctx context.Context, number string) (bool, error) {
	_, err := t.AccountByNumber(ctx, number)
	return err == nil, nil
}

func (t *memTx) ListAccounts(ctx context.Context, ownerID string) ([]Account, error) {
	var out []Account
	for _, a := range t.s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) SetBalance(ctx context.Context, accountID string, balance Amount) error {
	a, ok := t.s.accounts[accountID]
	if !ok {
		return notFound("account")
	}
	if balance < 0 {
		return fmt.Errorf("%w: negative balance", ErrInsufficientFunds)
	}
	a.Balance = balance
	t.s.accounts[accountID] = a
	return nil
}

// --- ledger ---

func (t *memTx) InsertTransaction(ctx context.Context, tr *Transaction) error {
	if _, ok := t.s.txnIDs[tr.TransactionID]; ok {
		return conflict("transaction id")
	}
	t.s.txnIDs[tr.TransactionID] = struct{}{}
	t.s.txns = append(t.s.txns, *tr)
	return nil
}

func (t *memTx) GetTransaction(ctx context.Context, ownerID, transactionID string) (Transaction, error) {
	for _, tr := range t.s.txns {
		if tr.TransactionID == transactionID && tr.OwnerID == ownerID {
			return tr, nil
		}
	}
	return Transaction{}, notFound("transaction")
}

// ListTransactions returns newest first.
func (t *memTx) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	var out []Transaction
	for i := len(t.s.txns) - 1; i >= 0; i-- {
		tr := t.s.txns[i]
		if f.OwnerID != "" && tr.OwnerID != f.OwnerID {
			continue
		}
		if f.AccountID != "" && tr.AccountID != f.AccountID {
			continue
		}
		if f.Kind != "" && tr.Kind != f.Kind {
			continue
		}
		out = append(out, tr)
	}
	return page(out, f.Offset, f.Limit), nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// --- transfers & recipients ---

func (t *memTx) InsertTransfer(ctx context.Context, tr *Transfer) error {
	if _, ok := t.s.transfers[tr.ID]; ok {
		return conflict("transfer id")
	}
	if _, ok := t.s.references[tr.Reference]; ok {
		return conflict("transfer reference")
	}
	t.s.references[tr.Reference] = struct{}{}
	t.s.transfers[tr.ID] = *tr
	return nil
}

func (t *memTx) GetTransfer(ctx context.Context, ownerID, id string) (Transfer, error) {
	tr, ok := t.s.transfers[id]
	if !ok || tr.OwnerID != ownerID {
		return Transfer{}, notFound("transfer")
	}
	return tr, nil
}

func (t *memTx) ListTransfers(ctx context.Context, ownerID string, limit int) ([]Transfer, error) {
	var out []Transfer
	for _, tr := range t.s.transfers {
		if tr.OwnerID == ownerID {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, 0, limit), nil
}

func (t *memTx) FindRecipient(ctx context.Context, ownerID, accountNumber, bankCode string) (Recipient, error) {
	for _, r := range t.s.recipients {
		if r.OwnerID == ownerID && r.AccountNumber == accountNumber && r.BankCode == bankCode {
			return r, nil
		}
	}
	return Recipient{}, notFound("recipient")
}

func (t *memTx) InsertRecipient(ctx context.Context, r *Recipient) error {
	if _, err := t.FindRecipient(ctx, r.OwnerID, r.AccountNumber, r.BankCode); err == nil {
		return conflict("recipient already saved")
	}
	t.s.recipients[r.ID] = *r
	return nil
}

func (t *memTx) GetRecipient(ctx context.Context, ownerID, id string) (Recipient, error) {
	r, ok := t.s.recipients[id]
	if !ok || r.OwnerID != ownerID {
		return Recipient{}, notFound("recipient")
	}
	return r, nil
}

func (t *memTx) UpdateRecipient(ctx context.Context, r *Recipient) error {
	if _, err := t.GetRecipient(ctx, r.OwnerID, r.ID); err != nil {
		return err
	}
	t.s.recipients[r.ID] = *r
	return nil
}

func (t *memTx) DeleteRecipient(ctx context.Context, ownerID, id string) error {
	if _, err := t.GetRecipient(ctx, ownerID, id); err != nil {
		return err
	}
	delete(t.s.recipients, id)
	return nil
}

func (t *memTx) ListRecipients(ctx context.Context, ownerID string) ([]Recipient, error) {
	var out []Recipient
	for _, r := range t.s.recipients {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Favorite != out[j].Favorite {
			return out[i].Favorite
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// --- billers & payments ---

func (t *memTx) UpsertBiller(ctx context.Context, b *Biller) error {
	t.s.billers[b.ID] = *b
	return nil
}

func (t *memTx) GetBiller(ctx context.Context, id string) (Biller, error) {
	b, ok := t.s.billers[id]
	if !ok {
		return Biller{}, notFound("biller")
	}
	return b, nil
}

func (t *memTx) ListBillers(ctx context.Context) ([]Biller, error) {
	out := slices.Collect(maps.Values(t.s.billers))
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memTx) InsertPayment(ctx context.Context, p *Payment) error {
	if _, ok := t.s.references[p.ReferenceNumber]; ok {
		return conflict("payment reference")
	}
	t.s.references[p.ReferenceNumber] = struct{}{}
	t.s.payments[p.ID] = *p
	return nil
}

func (t *memTx) GetPayment(ctx context.Context, ownerID, id string) (Payment, error) {
	p, ok := t.s.payments[id]
	if !ok || p.OwnerID != ownerID {
		return Payment{}, notFound("payment")
	}
	return p, nil
}

func (t *memTx) ListPayments(ctx context.Context, ownerID string) ([]Payment, error) {
	var out []Payment
	for _, p := range t.s.payments {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// --- loans ---

func (t *memTx) UpsertLoanProduct(ctx context.Context, p *LoanProduct) error {
	t.s.products[p.ID] = *p
	return nil
}

func (t *memTx) GetLoanProduct(ctx context.Context, id string) (LoanProduct, error) {
	p, ok := t.s.products[id]
	if !ok {
		return LoanProduct{}, notFound("loan product")
	}
	return p, nil
}

func (t *memTx) ListLoanProducts(ctx context.Context) ([]LoanProduct, error) {
	out := slices.Collect(maps.Values(t.s.products))
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memTx) InsertLoan(ctx context.Context, l *Loan) error {
	if _, ok := t.s.loans[l.ID]; ok {
		return conflict("loan id")
	}
	cp := *l
	cp.PaymentIDs = slices.Clone(l.PaymentIDs)
	t.s.loans[l.ID] = cp
	return nil
}

func (t *memTx) GetLoan(ctx context.Context, ownerID, id string) (Loan, error) {
	l, ok := t.s.loans[id]
	if !ok || (ownerID != "" && l.OwnerID != ownerID) {
		return Loan{}, notFound("loan")
	}
	l.PaymentIDs = slices.Clone(l.PaymentIDs)
	return l, nil
}

func (t *memTx) UpdateLoan(ctx context.Context, l *Loan) error {
	if _, ok := t.s.loans[l.ID]; !ok {
		return notFound("loan")
	}
	cp := *l
	cp.PaymentIDs = slices.Clone(l.PaymentIDs)
	t.s.loans[l.ID] = cp
	return nil
}

func (t *memTx) ListLoans(ctx context.Context, ownerID string) ([]Loan, error) {
	var out []Loan
	for _, l := range t.s.loans {
		if l.OwnerID == ownerID {
			l.PaymentIDs = slices.Clone(l.PaymentIDs)
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (t *memTx) InsertLoanPayment(ctx context.Context, p *LoanPayment) error {
	if _, ok := t.s.references[p.Reference]; ok {
		return conflict("loan payment reference")
	}
	t.s.references[p.Reference] = struct{}{}
	t.s.loanPayments[p.ID] = *p
	return nil
}

func (t *memTx) ListLoanPayments(ctx context.Context, loanID string) ([]LoanPayment, error) {
	var out []LoanPayment
	for _, p := range t.s.loanPayments {
		if p.LoanID == loanID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- savings ---

func (t *memTx) InsertSavingsGoal(ctx context.Context, g *SavingsGoal) error {
	if _, ok := t.s.goals[g.ID]; ok {
		return conflict("savings goal id")
	}
	cp := *g
	cp.Entries = slices.Clone(g.Entries)
	t.s.goals[g.ID] = cp
	return nil
}

func (t *memTx) GetSavingsGoal(ctx context.Context, ownerID, id string) (SavingsGoal, error) {
	g, ok := t.s.goals[id]
	if !ok || g.OwnerID != ownerID {
		return SavingsGoal{}, notFound("savings goal")
	}
	g.Entries = slices.Clone(g.Entries)
	return g, nil
}

func (t *memTx) UpdateSavingsGoal(ctx context.Context, g *SavingsGoal) error {
	existing, ok := t.s.goals[g.ID]
	if !ok {
		return notFound("savings goal")
	}
	cp := *g
	cp.Entries = existing.Entries
	t.s.goals[g.ID] = cp
	return nil
}

func (t *memTx) AppendSavingsEntry(ctx context.Context, goalID string, e SavingsEntry) error {
	g, ok := t.s.goals[goalID]
	if !ok {
		return notFound("savings goal")
	}
	if _, ok := t.s.references[e.Reference]; ok {
		return conflict("savings reference")
	}
	t.s.references[e.Reference] = struct{}{}
	g.Entries = append(slices.Clone(g.Entries), e)
	t.s.goals[goalID] = g
	return nil
}

func (t *memTx) ListSavingsGoals(ctx context.Context, ownerID string) ([]SavingsGoal, error) {
	var out []SavingsGoal
	for _, g := range t.s.goals {
		if g.OwnerID == ownerID {
			g.Entries = slices.Clone(g.Entries)
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- companies & investments ---

func (t *memTx) UpsertCompany(ctx context.Context, c *Company) error {
	t.s.companies[c.ID] = *c
	return nil
}

func (t *memTx) GetCompany(ctx context.Context, id string) (Company, error) {
	c, ok := t.s.companies[id]
	if !ok {
		return Company{}, notFound("company")
	}
	return c, nil
}

func (t *memTx) ListCompanies(ctx context.Context) ([]Company, error) {
	out := slices.Collect(maps.Values(t.s.companies))
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (t *memTx) SetCompanyPrice(ctx context.Context, id string, price, previousClose Amount) error {
	c, ok := t.s.companies[id]
	if !ok {
		return notFound("company")
	}
	c.CurrentPrice = price
	c.PreviousClose = previousClose
	t.s.companies[id] = c
	return nil
}

func (t *memTx) OpenPosition(ctx context.Context, ownerID, companyID string) (Investment, error) {
	for _, inv := range t.s.investments {
		if inv.OwnerID == ownerID && inv.CompanyID == companyID && inv.Active {
			return inv, nil
		}
	}
	return Investment{}, notFound("investment")
}

func (t *memTx) GetInvestment(ctx context.Context, ownerID, id string) (Investment, error) {
	inv, ok := t.s.investments[id]
	if !ok || inv.OwnerID != ownerID {
		return Investment{}, notFound("investment")
	}
	return inv, nil
}

func (t *memTx) InsertInvestment(ctx context.Context, inv *Investment) error {
	if _, err := t.OpenPosition(ctx, inv.OwnerID, inv.CompanyID); err == nil && inv.Active {
		return conflict("open position exists")
	}
	t.s.investments[inv.ID] = *inv
	return nil
}

func (t *memTx) UpdateInvestment(ctx context.Context, inv *Investment) error {
	if _, ok := t.s.investments[inv.ID]; !ok {
		return notFound("investment")
	}
	t.s.investments[inv.ID] = *inv
	return nil
}

func (t *memTx) ListInvestments(ctx context.Context, ownerID string, activeOnly bool) ([]Investment, error) {
	var out []Investment
	for _, inv := range t.s.investments {
		if inv.OwnerID != ownerID || (activeOnly && !inv.Active) {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- cards ---

func (t *memTx) InsertCard(ctx context.Context, c *Card) error {
	if _, err := t.CardByFingerprint(ctx, c.OwnerID, c.Fingerprint); err == nil {
		return conflict("card already added")
	}
	t.s.cards[c.ID] = *c
	return nil
}

func (t *memTx) GetCard(ctx context.Context, ownerID, id string) (Card, error) {
	c, ok := t.s.cards[id]
	if !ok || c.OwnerID != ownerID {
		return Card{}, notFound("card")
	}
	return c, nil
}

func (t *memTx) CardByFingerprint(ctx context.Context, ownerID, fingerprint string) (Card, error) {
	for _, c := range t.s.cards {
		if c.OwnerID == ownerID && c.Fingerprint == fingerprint {
			return c, nil
		}
	}
	return Card{}, notFound("card")
}

func (t *memTx) ListCards(ctx context.Context, ownerID string) ([]Card, error) {
	var out []Card
	for _, c := range t.s.cards {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) ClearDefaultCards(ctx context.Context, ownerID string) error {
	for id, c := range t.s.cards {
		if c.OwnerID == ownerID && c.IsDefault {
			c.IsDefault = false
			t.s.cards[id] = c
		}
	}
	return nil
}

func (t *memTx) SetCardDefault(ctx context.Context, ownerID, id string) error {
	c, err := t.GetCard(ctx, ownerID, id)
	if err != nil {
		return err
	}
	c.IsDefault = true
	t.s.cards[id] = c
	return nil
}

func (t *memTx) DeleteCard(ctx context.Context, ownerID, id string) error {
	if _, err := t.GetCard(ctx, ownerID, id); err != nil {
		return err
	}
	delete(t.s.cards, id)
	return nil
}
