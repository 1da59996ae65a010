package bank

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"

	"pitaka.app/internal/ids"
)

// PriceWalk produces the next simulated price from the current one.
type PriceWalk func(current Amount) Amount

// maxStep bounds one random-walk move to ±2%.
var maxStep = decimal.RequireFromString("0.02")

// NewRandomWalk moves prices by a uniform step in [-2%, +2%], never below one centavo.
func NewRandomWalk(seed int64) PriceWalk {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(seed))
	return func(current Amount) Amount {
		mu.Lock()
		f := rng.Float64()*2 - 1
		mu.Unlock()
		step := maxStep.Mul(decimal.NewFromFloat(f))
		next := current.MulRate(one.Add(step))
		if next < 1 {
			next = 1
		}
		return next
	}
}

// FixedPrice leaves prices untouched.
func FixedPrice(current Amount) Amount { return current }

// maxShares bounds a single trade and a whole position.
const maxShares = 1_000_000

// updateValues derives the position's value fields from price.
func updateValues(inv *Investment, price Amount) error {
	value, err := price.Times(inv.Shares)
	if err != nil {
		return err
	}
	inv.CurrentValue = value
	inv.Profit = inv.CurrentValue - inv.CostBasis
	inv.ProfitPercent = 0
	if inv.CostBasis > 0 {
		inv.ProfitPercent = inv.Profit.Decimal().Div(inv.CostBasis.Decimal()).Mul(hundred).Round(2).InexactFloat64()
	}
	return nil
}

// buyInto merges a purchase into a position at the weighted-average price.
func buyInto(inv *Investment, shares int64, cost Amount) error {
	if inv.Shares+shares > maxShares {
		return fmt.Errorf("%w: a position holds at most %d shares", ErrValidation, maxShares)
	}
	basis, err := AmountFromDecimal(inv.CostBasis.Decimal().Add(cost.Decimal()))
	if err != nil {
		return err
	}
	inv.Shares += shares
	inv.CostBasis = basis
	inv.PurchasePrice = Amount(inv.CostBasis.Decimal().Div(decimal.NewFromInt(inv.Shares)).Shift(2).Round(0).IntPart())
	return nil
}

// sellFrom removes shares from a position. Partial sales reduce the cost basis
// proportionally; selling everything deactivates the position.
func sellFrom(inv *Investment, shares int64) error {
	if shares > inv.Shares {
		return ErrInsufficientShares
	}
	if shares == inv.Shares {
		inv.Shares = 0
		inv.CostBasis = 0
		inv.Active = false
		return nil
	}
	remaining := inv.Shares - shares
	basis := inv.CostBasis.Decimal().Mul(decimal.NewFromInt(remaining)).Div(decimal.NewFromInt(inv.Shares))
	inv.CostBasis = Amount(basis.Shift(2).Round(0).IntPart())
	inv.Shares = remaining
	return nil
}

type TradeRequest struct {
	CompanyID string `json:"company_id"`
	Shares    int64  `json:"shares"`
	// AccountID settles the trade in cash when set.
	AccountID string `json:"account_id,omitempty"`
}

type TradeResult struct {
	Investment  Investment   `json:"investment"`
	Company     Company      `json:"company"`
	Shares      int64        `json:"shares"`
	Price       Amount       `json:"price"`
	Total       Amount       `json:"total"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Account     *Account     `json:"account,omitempty"`
}

type Portfolio struct {
	Positions     []Investment `json:"positions"`
	TotalValue    Amount       `json:"total_value"`
	TotalCost     Amount       `json:"total_cost"`
	TotalProfit   Amount       `json:"total_profit"`
	ProfitPercent float64      `json:"profit_percent"`
}

// quote advances the company price one step and persists it.
func (s *Service) quote(ctx context.Context, tx Tx, c Company) (Company, error) {
	next := s.walk(c.CurrentPrice)
	if err := tx.SetCompanyPrice(ctx, c.ID, next, c.CurrentPrice); err != nil {
		return Company{}, err
	}
	c.PreviousClose = c.CurrentPrice
	c.CurrentPrice = next
	c.UpdatedAt = s.now()
	return c, nil
}

// ListCompanies refreshes every simulated quote.
func (s *Service) ListCompanies(ctx context.Context) ([]Company, error) {
	var out []Company
	err := s.unit(ctx, "list_companies", func(tx Tx, _ func(Event)) error {
		cs, err := tx.ListCompanies(ctx)
		if err != nil {
			return err
		}
		out = make([]Company, 0, len(cs))
		for _, c := range cs {
			q, err := s.quote(ctx, tx, c)
			if err != nil {
				return err
			}
			out = append(out, q)
		}
		return nil
	})
	return out, err
}

func (s *Service) GetCompany(ctx context.Context, id string) (Company, error) {
	if err := requireID("company id", id); err != nil {
		return Company{}, err
	}
	var c Company
	err := s.unit(ctx, "get_company", func(tx Tx, _ func(Event)) error {
		cur, err := tx.GetCompany(ctx, id)
		if err != nil {
			return err
		}
		c, err = s.quote(ctx, tx, cur)
		return err
	})
	return c, err
}

func validateTrade(req TradeRequest) error {
	if err := requireID("company id", req.CompanyID); err != nil {
		return err
	}
	if req.Shares <= 0 {
		return fmt.Errorf("%w: shares must be greater than zero", ErrValidation)
	}
	if req.Shares > maxShares {
		return fmt.Errorf("%w: at most %d shares per trade", ErrValidation, maxShares)
	}
	return nil
}

// BuyShares buys at the freshly quoted price, merging into an open position.
func (s *Service) BuyShares(ctx context.Context, p Principal, req TradeRequest) (TradeResult, error) {
	if err := validateTrade(req); err != nil {
		return TradeResult{}, err
	}
	var res TradeResult
	err := s.unit(ctx, "buy_shares", func(tx Tx, emit func(Event)) error {
		cur, err := tx.GetCompany(ctx, req.CompanyID)
		if err != nil {
			return err
		}
		c, err := s.quote(ctx, tx, cur)
		if err != nil {
			return err
		}
		total, err := c.CurrentPrice.Times(req.Shares)
		if err != nil {
			return err
		}
		now := s.now()

		inv, err := tx.OpenPosition(ctx, p.ownerID, c.ID)
		fresh := IsNotFound(err)
		if err != nil && !fresh {
			return err
		}
		if fresh {
			inv = Investment{ID: ids.New(), OwnerID: p.ownerID, CompanyID: c.ID, Symbol: c.Symbol, Active: true, CreatedAt: now}
		}
		if err := buyInto(&inv, req.Shares, total); err != nil {
			return err
		}
		inv.UpdatedAt = now
		if err := updateValues(&inv, c.CurrentPrice); err != nil {
			return err
		}
		if fresh {
			err = tx.InsertInvestment(ctx, &inv)
		} else {
			err = tx.UpdateInvestment(ctx, &inv)
		}
		if err != nil {
			return err
		}

		ref := ids.Reference(ids.PrefixInvestment)
		res = TradeResult{Investment: inv, Company: c, Shares: req.Shares, Price: c.CurrentPrice, Total: total}
		if req.AccountID != "" {
			txn, acct, err := s.settle(ctx, tx, p, req.AccountID, inv.ID, ref+ids.SuffixSender, KindInvestment, total,
				fmt.Sprintf("Bought %d %s", req.Shares, c.Symbol))
			if err != nil {
				return err
			}
			res.Transaction, res.Account = &txn, &acct
		}
		emit(Event{Type: EventSharesBought, Reference: ref, OwnerID: p.ownerID, AccountID: req.AccountID, Amount: total})
		return nil
	})
	return res, err
}

// SellShares sells from the open position at the freshly quoted price.
func (s *Service) SellShares(ctx context.Context, p Principal, req TradeRequest) (TradeResult, error) {
	if err := validateTrade(req); err != nil {
		return TradeResult{}, err
	}
	var res TradeResult
	err := s.unit(ctx, "sell_shares", func(tx Tx, emit func(Event)) error {
		inv, err := tx.OpenPosition(ctx, p.ownerID, req.CompanyID)
		if err != nil {
			if IsNotFound(err) {
				return ErrInsufficientShares
			}
			return err
		}
		if req.Shares > inv.Shares {
			return ErrInsufficientShares
		}
		cur, err := tx.GetCompany(ctx, req.CompanyID)
		if err != nil {
			return err
		}
		c, err := s.quote(ctx, tx, cur)
		if err != nil {
			return err
		}
		proceeds, err := c.CurrentPrice.Times(req.Shares)
		if err != nil {
			return err
		}
		if err := sellFrom(&inv, req.Shares); err != nil {
			return err
		}
		inv.UpdatedAt = s.now()
		if err := updateValues(&inv, c.CurrentPrice); err != nil {
			return err
		}
		if err := tx.UpdateInvestment(ctx, &inv); err != nil {
			return err
		}

		ref := ids.Reference(ids.PrefixInvestment)
		res = TradeResult{Investment: inv, Company: c, Shares: req.Shares, Price: c.CurrentPrice, Total: proceeds}
		if req.AccountID != "" {
			txn, acct, err := s.settle(ctx, tx, p, req.AccountID, inv.ID, ref+ids.SuffixReceiver, KindInvestmentProceeds, proceeds,
				fmt.Sprintf("Sold %d %s", req.Shares, c.Symbol))
			if err != nil {
				return err
			}
			res.Transaction, res.Account = &txn, &acct
		}
		emit(Event{Type: EventSharesSold, Reference: ref, OwnerID: p.ownerID, AccountID: req.AccountID, Amount: proceeds})
		return nil
	})
	return res, err
}

// settle moves the trade's cash through an owned account.
func (s *Service) settle(ctx context.Context, tx Tx, p Principal, accountID, investmentID, txnID string, kind TransactionKind, amount Amount, desc string) (Transaction, Account, error) {
	if err := tx.LockAccounts(ctx, accountID); err != nil {
		return Transaction{}, Account{}, err
	}
	acct, err := findOwned(ctx, tx, p.ownerID, accountID)
	if err != nil {
		return Transaction{}, Account{}, err
	}
	if err := requireActive(acct); err != nil {
		return Transaction{}, Account{}, err
	}
	if kind.Credit() {
		err = s.credit(ctx, tx, &acct, amount)
	} else {
		err = s.debit(ctx, tx, &acct, amount)
	}
	if err != nil {
		return Transaction{}, Account{}, err
	}
	txn := Transaction{
		TransactionID: txnID,
		OwnerID:       p.ownerID,
		AccountID:     acct.ID,
		Kind:          kind,
		Amount:        amount,
		Description:   desc,
		InvestmentID:  investmentID,
	}
	if err := s.record(ctx, tx, &txn); err != nil {
		return Transaction{}, Account{}, err
	}
	return txn, acct, nil
}

// Portfolio returns the caller's open positions valued at current prices.
func (s *Service) Portfolio(ctx context.Context, p Principal) (Portfolio, error) {
	var pf Portfolio
	err := s.read(ctx, func(tx Tx) error {
		invs, err := tx.ListInvestments(ctx, p.ownerID, true)
		if err != nil {
			return err
		}
		prices := map[string]Amount{}
		pf.Positions = make([]Investment, 0, len(invs))
		for _, inv := range invs {
			price, ok := prices[inv.CompanyID]
			if !ok {
				c, err := tx.GetCompany(ctx, inv.CompanyID)
				if err != nil {
					return err
				}
				price = c.CurrentPrice
				prices[inv.CompanyID] = price
			}
			if err := updateValues(&inv, price); err != nil {
				return err
			}
			pf.Positions = append(pf.Positions, inv)
			pf.TotalValue += inv.CurrentValue
			pf.TotalCost += inv.CostBasis
		}
		pf.TotalProfit = pf.TotalValue - pf.TotalCost
		if pf.TotalCost > 0 {
			pf.ProfitPercent = pf.TotalProfit.Decimal().Div(pf.TotalCost.Decimal()).Mul(hundred).Round(2).InexactFloat64()
		}
		return nil
	})
	return pf, err
}

func (s *Service) GetInvestment(ctx context.Context, p Principal, id string) (Investment, error) {
	if err := requireID("investment id", id); err != nil {
		return Investment{}, err
	}
	var inv Investment
	err := s.read(ctx, func(tx Tx) error {
		var err error
		inv, err = tx.GetInvestment(ctx, p.ownerID, id)
		if err != nil {
			return err
		}
		c, err := tx.GetCompany(ctx, inv.CompanyID)
		if err != nil {
			return err
		}
		return updateValues(&inv, c.CurrentPrice)
	})
	return inv, err
}
