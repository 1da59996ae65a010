package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pitaka.app/internal/bank"
)

func (a *API) listBillers(w http.ResponseWriter, r *http.Request) {
	out, err := a.bank.ListBillers(r.Context())
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(out))
}

func (a *API) payBill(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.BillPaymentRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.bank.PayBill(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (a *API) listPayments(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	out, err := a.bank.ListPayments(r.Context(), p)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(out))
}

func (a *API) getPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	pay, err := a.bank.GetPayment(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, pay)
}
