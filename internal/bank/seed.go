package bank

import (
	"context"

	"github.com/shopspring/decimal"
)

// Catalog is the reference data every deployment starts with.
type Catalog struct {
	Billers      []Biller
	LoanProducts []LoanProduct
	Companies    []Company
}

// DefaultCatalog returns the stock billers, loan products and listed companies.
func DefaultCatalog() Catalog {
	rate := decimal.RequireFromString
	return Catalog{
		Billers: []Biller{
			{ID: "meralco", Name: "Meralco", Category: "ELECTRICITY", MinimumAmount: Pesos(100), MaximumAmount: Pesos(100000), ConvenienceFee: Pesos(10), Active: true},
			{ID: "manila-water", Name: "Manila Water", Category: "WATER", MinimumAmount: Pesos(50), MaximumAmount: Pesos(50000), ConvenienceFee: Pesos(10), Active: true},
			{ID: "maynilad", Name: "Maynilad", Category: "WATER", MinimumAmount: Pesos(50), MaximumAmount: Pesos(50000), ConvenienceFee: Pesos(10), Active: true},
			{ID: "pldt", Name: "PLDT", Category: "TELECOM", MinimumAmount: Pesos(100), MaximumAmount: Pesos(50000), ConvenienceFee: Pesos(15), Active: true},
			{ID: "globe", Name: "Globe Telecom", Category: "TELECOM", MinimumAmount: Pesos(50), MaximumAmount: Pesos(20000), ConvenienceFee: 0, Active: true},
			{ID: "sss", Name: "Social Security System", Category: "GOVERNMENT", MinimumAmount: Pesos(100), MaximumAmount: Pesos(200000), ConvenienceFee: Pesos(20), Active: true},
		},
		LoanProducts: []LoanProduct{
			{ID: "personal", Name: "Personal Loan", Description: "Unsecured cash loan", MinAmount: Pesos(5000), MaxAmount: Pesos(500000), AnnualRate: rate("0.12"), MinTermMonths: 6, MaxTermMonths: 36},
			{ID: "salary", Name: "Salary Loan", Description: "Short term loan against payroll", MinAmount: Pesos(1000), MaxAmount: Pesos(100000), AnnualRate: rate("0.08"), MinTermMonths: 1, MaxTermMonths: 12},
			{ID: "business", Name: "Business Loan", Description: "Working capital for small businesses", MinAmount: Pesos(50000), MaxAmount: Pesos(2000000), AnnualRate: rate("0.15"), MinTermMonths: 12, MaxTermMonths: 60},
		},
		Companies: []Company{
			{ID: "jfc", Symbol: "JFC", Name: "Jollibee Foods Corporation", Sector: "Consumer", CurrentPrice: MustAmount("245.00"), PreviousClose: MustAmount("245.00")},
			{ID: "sm", Symbol: "SM", Name: "SM Investments Corporation", Sector: "Holding", CurrentPrice: MustAmount("890.00"), PreviousClose: MustAmount("890.00")},
			{ID: "ali", Symbol: "ALI", Name: "Ayala Land", Sector: "Property", CurrentPrice: MustAmount("31.50"), PreviousClose: MustAmount("31.50")},
			{ID: "bdo", Symbol: "BDO", Name: "BDO Unibank", Sector: "Financials", CurrentPrice: MustAmount("142.00"), PreviousClose: MustAmount("142.00")},
			{ID: "tel", Symbol: "TEL", Name: "PLDT Inc.", Sector: "Services", CurrentPrice: MustAmount("1320.00"), PreviousClose: MustAmount("1320.00")},
			{ID: "ac", Symbol: "AC", Name: "Ayala Corporation", Sector: "Holding", CurrentPrice: MustAmount("640.00"), PreviousClose: MustAmount("640.00")},
		},
	}
}

// Bootstrap writes the catalog once. Rows that already exist are left alone so
// running it on every start is safe.
func (s *Service) Bootstrap(ctx context.Context, c Catalog) error {
	return s.unit(ctx, "bootstrap", func(tx Tx, _ func(Event)) error {
		for i := range c.Billers {
			if _, err := tx.GetBiller(ctx, c.Billers[i].ID); err == nil {
				continue
			} else if !IsNotFound(err) {
				return err
			}
			if err := tx.UpsertBiller(ctx, &c.Billers[i]); err != nil {
				return err
			}
		}
		for i := range c.LoanProducts {
			if _, err := tx.GetLoanProduct(ctx, c.LoanProducts[i].ID); err == nil {
				continue
			} else if !IsNotFound(err) {
				return err
			}
			if err := tx.UpsertLoanProduct(ctx, &c.LoanProducts[i]); err != nil {
				return err
			}
		}
		now := s.now()
		for i := range c.Companies {
			if _, err := tx.GetCompany(ctx, c.Companies[i].ID); err == nil {
				continue
			} else if !IsNotFound(err) {
				return err
			}
			c.Companies[i].UpdatedAt = now
			if err := tx.UpsertCompany(ctx, &c.Companies[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
