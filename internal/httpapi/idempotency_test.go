package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"

	"pitaka.app/internal/auth"
	"pitaka.app/internal/idem"
)

func TestIdempotencyKeyReleasedAfterPanic(t *testing.T) {
	keys := idem.NewMemory()
	a := New(nil, nil, WithIdempotency(keys))

	panics := true
	h := middleware.Recoverer(a.idempotent(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if panics {
			panic("handler blew up")
		}
		writeData(w, http.StatusCreated, map[string]string{"ok": "yes"})
	})))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/transactions/deposit", strings.NewReader(`{"amount":"5"}`))
		req = req.WithContext(auth.ContextWithUser(req.Context(), "user-1", nil))
		req.Header.Set(idempotencyHeader, "retry-me")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	if rr := send(); rr.Code != http.StatusInternalServerError {
		t.Fatalf("panicking handler: got %d", rr.Code)
	}
	if _, ok, _ := keys.Get(context.Background(), idem.Key("user-1", "retry-me")); ok {
		t.Fatalf("key still held after panic")
	}

	panics = false
	rr := send()
	if rr.Code != http.StatusCreated {
		t.Fatalf("retry after panic: got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get(replayedHeader) != "" {
		t.Fatalf("retry must run the handler, not replay")
	}
}
