package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"pitaka.app/internal/audit"
	"pitaka.app/internal/auth"
	"pitaka.app/internal/bank"
)

type registerRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User      bank.User     `json:"user"`
	Account   *bank.Account `json:"account,omitempty"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Roles     []string      `json:"roles"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, acct, err := a.bank.RegisterUser(r.Context(), bank.RegisterRequest{
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, bank.ErrConflict) {
			writeError(w, r, http.StatusConflict, "email already registered")
			return
		}
		handleBankError(w, r, err)
		return
	}
	roles := a.rolesFor(user.Email)
	token, expires, err := a.issuer.Issue(user.ID, user.Email, roles)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	_ = audit.LogEvent(auth.ContextWithUser(r.Context(), user.ID, roles), "auth.registered", map[string]any{
		"account_id": acct.ID,
	})
	writeData(w, http.StatusCreated, sessionResponse{
		User: user, Account: &acct, Token: token, ExpiresAt: expires, Roles: roles,
	})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}
	user, err := a.bank.UserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, bank.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		handleBankError(w, r, err)
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{"email": user.Email})
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	roles := a.rolesFor(user.Email)
	token, expires, err := a.issuer.Issue(user.ID, user.Email, roles)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	_ = audit.LogEvent(auth.ContextWithUser(r.Context(), user.ID, roles), "auth.login", map[string]any{
		"roles":      roles,
		"expires_at": expires.Format(time.RFC3339),
	})
	writeData(w, http.StatusOK, sessionResponse{User: user, Token: token, ExpiresAt: expires, Roles: roles})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	user, err := a.bank.User(r.Context(), p)
	if err != nil {
		handleBankError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"user":  user,
		"roles": auth.RolesFromContext(r.Context()),
	})
}

func (a *API) rolesFor(email string) []string {
	roles := []string{auth.RoleUser}
	if a.isAdmin(email) {
		roles = append(roles, auth.RoleAdmin)
	}
	return roles
}
