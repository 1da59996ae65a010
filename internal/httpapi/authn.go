package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"pitaka.app/internal/auth"
	"pitaka.app/internal/bank"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth requires a valid bearer token and stores the identity in the context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			// Browsers cannot set headers on EventSource or WebSocket handshakes.
			token = strings.TrimSpace(r.URL.Query().Get("access_token"))
			if token == "" || !isStreamPath(r.URL.Path) {
				writeError(w, r, http.StatusUnauthorized, err.Error())
				return
			}
		}
		claims, err := a.issuer.Parse(token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}
		ctx := auth.ContextWithUser(r.Context(), claims.Subject, claims.Roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers without role with 403.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.HasRole(r.Context(), role) {
				writeError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// principal resolves the caller for the bank service. It answers 401 itself and
// returns false when the request carries no identity.
func principal(w http.ResponseWriter, r *http.Request) (bank.Principal, bool) {
	userID, _ := auth.UserIDFromContext(r.Context())
	p, err := bank.PrincipalFor(userID, auth.HasRole(r.Context(), auth.RoleAdmin))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return bank.Principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isStreamPath(path string) bool {
	return path == "/v1/stream" || path == "/v1/stream/ws"
}
