package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pitaka.app/internal/audit"
	"pitaka.app/internal/bank"
)

func (a *API) listLoanProducts(w http.ResponseWriter, r *http.Request) {
	out, err := a.bank.ListLoanProducts(r.Context())
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(out))
}

func (a *API) applyLoan(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.LoanApplication
	if !decodeOrFail(w, r, &req) {
		return
	}
	loan, err := a.bank.ApplyLoan(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, loan)
}

func (a *API) listLoans(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	out, err := a.bank.ListLoans(r.Context(), p)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(out))
}

func (a *API) getLoan(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	d, err := a.bank.GetLoan(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	d.Payments = nonNil(d.Payments)
	writeData(w, http.StatusOK, d)
}

func (a *API) payLoan(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.LoanPaymentRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.bank.PayLoan(r.Context(), p, chi.URLParam(r, "id"), req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (a *API) cancelLoan(w http.ResponseWriter, r *http.Request) {
	a.loanDecision(w, r, "loan.cancelled", a.bank.CancelLoan)
}

func (a *API) approveLoan(w http.ResponseWriter, r *http.Request) {
	a.loanDecision(w, r, "loan.approved", a.bank.ApproveLoan)
}

func (a *API) rejectLoan(w http.ResponseWriter, r *http.Request) {
	a.loanDecision(w, r, "loan.rejected", a.bank.RejectLoan)
}

type loanTransition func(ctx context.Context, p bank.Principal, id string) (bank.Loan, error)

func (a *API) loanDecision(w http.ResponseWriter, r *http.Request, event string, fn loanTransition) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	loan, err := fn(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"loan_id":  loan.ID,
		"owner_id": loan.OwnerID,
		"status":   loan.Status,
	})
	writeData(w, http.StatusOK, loan)
}
