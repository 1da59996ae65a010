package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pitaka.app/internal/audit"
	"pitaka.app/internal/bank"
)

func (a *API) listCards(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	out, err := a.bank.ListCards(r.Context(), p)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(out))
}

func (a *API) addCard(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bank.CardRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	c, err := a.bank.AddCard(r.Context(), p, req)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "card.added", map[string]any{
		"card_id": c.ID,
		"last4":   c.Last4,
	})
	writeData(w, http.StatusCreated, c)
}

func (a *API) setDefaultCard(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	c, err := a.bank.SetDefaultCard(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (a *API) deleteCard(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.bank.DeleteCard(r.Context(), p, id); err != nil {
		handleBankError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "card.deleted", map[string]any{"card_id": id})
	w.WriteHeader(http.StatusNoContent)
}
