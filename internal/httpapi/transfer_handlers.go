package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pitaka.app/internal/bank"
)

func (a *API) transferInternal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.InternalTransferRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.bank.TransferInternal(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (a *API) transferExternal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.ExternalTransferRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.bank.TransferExternal(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (a *API) transferInterbank(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.InterbankTransferRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.bank.TransferInterbank(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (a *API) listTransfers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit, err := parseIntParam(r.URL.Query().Get("limit"), "limit", 0, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.bank.ListTransfers(r.Context(), p, limit)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(out))
}

func (a *API) getTransfer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	t, err := a.bank.GetTransfer(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, t)
}

// interbankFee quotes the fee for ?amount= under the configured policy.
func (a *API) interbankFee(w http.ResponseWriter, r *http.Request) {
	amount, err := bank.ParseAmount(r.URL.Query().Get("amount"))
	if err != nil || !amount.IsPositive() {
		writeError(w, r, http.StatusBadRequest, "amount must be a positive number")
		return
	}
	policy := a.bank.FeePolicy()
	fee := policy.Fee(amount)
	writeData(w, http.StatusOK, map[string]any{
		"policy": policy.Name(),
		"amount": amount,
		"fee":    fee,
		"total":  amount + fee,
	})
}

func (a *API) listRecipients(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	out, err := a.bank.ListRecipients(r.Context(), p)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(out))
}

func (a *API) addRecipient(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.RecipientRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	rec, err := a.bank.AddRecipient(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}

func (a *API) updateRecipient(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var upd bank.RecipientUpdate
	if !decodeOrFail(w, r, &upd) {
		return
	}
	rec, err := a.bank.UpdateRecipient(r.Context(), p, chi.URLParam(r, "id"), upd)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (a *API) deleteRecipient(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := a.bank.DeleteRecipient(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		handleBankError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
