package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pitaka.app/internal/bank"
)

func (a *API) createSavingsGoal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.SavingsGoalRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	g, err := a.bank.CreateSavingsGoal(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, g)
}

func (a *API) listSavingsGoals(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	out, err := a.bank.ListSavingsGoals(r.Context(), p)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(out))
}

func (a *API) getSavingsGoal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	g, err := a.bank.GetSavingsGoal(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, g)
}

func (a *API) updateSavingsGoal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var upd bank.SavingsGoalUpdate
	if !decodeOrFail(w, r, &upd) {
		return
	}
	g, err := a.bank.UpdateSavingsGoal(r.Context(), p, chi.URLParam(r, "id"), upd)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, g)
}

func (a *API) closeSavingsGoal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := a.bank.CloseSavingsGoal(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (a *API) depositToGoal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.SavingsMoveRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.bank.DepositToGoal(r.Context(), p, chi.URLParam(r, "id"), req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (a *API) withdrawFromGoal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.SavingsMoveRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.bank.WithdrawFromGoal(r.Context(), p, chi.URLParam(r, "id"), req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}
