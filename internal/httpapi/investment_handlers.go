package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pitaka.app/internal/bank"
)

func (a *API) listCompanies(w http.ResponseWriter, r *http.Request) {
	out, err := a.bank.ListCompanies(r.Context())
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(out))
}

func (a *API) getCompany(w http.ResponseWriter, r *http.Request) {
	c, err := a.bank.GetCompany(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (a *API) portfolio(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	pf, err := a.bank.Portfolio(r.Context(), p)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	pf.Positions = nonNil(pf.Positions)
	writeData(w, http.StatusOK, pf)
}

func (a *API) getInvestment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	inv, err := a.bank.GetInvestment(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, inv)
}

func (a *API) buyShares(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.TradeRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.bank.BuyShares(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (a *API) sellShares(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.TradeRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.bank.SellShares(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}
