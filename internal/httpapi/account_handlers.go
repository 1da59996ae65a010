package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pitaka.app/internal/bank"
)

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	accts, err := a.bank.ListAccounts(r.Context(), p)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(accts))
}

func (a *API) openAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.OpenAccountRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	acct, err := a.bank.OpenAccount(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, acct)
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	acct, err := a.bank.GetAccount(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, acct)
}

func (a *API) accountTransactions(w http.ResponseWriter, r *http.Request) {
	a.transactions(w, r, chi.URLParam(r, "id"))
}

func (a *API) reconcileAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	rec, err := a.bank.Reconcile(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.DepositRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.bank.Deposit(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.WithdrawRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.bank.Withdraw(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (a *API) transfer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.TransferRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.bank.Transfer(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	a.transactions(w, r, r.URL.Query().Get("account_id"))
}

func (a *API) transactions(w http.ResponseWriter, r *http.Request, accountID string) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, err := parseIntParam(q.Get("limit"), "limit", 0, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parseIntParam(q.Get("offset"), "offset", 0, 0, 1_000_000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	txns, err := a.bank.ListTransactions(r.Context(), p, bank.TransactionQuery{
		AccountID: accountID,
		Kind:      bank.TransactionKind(q.Get("kind")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(txns))
}

func (a *API) getTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	txn, err := a.bank.GetTransaction(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, txn)
}

// nonNil keeps empty listings as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
