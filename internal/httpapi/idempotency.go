package httpapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"pitaka.app/internal/auth"
	"pitaka.app/internal/idem"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 255
)

// idempotent replays the stored response for a repeated POST carrying the same
// Idempotency-Key. Keys are scoped to the caller. Responses with a 5xx status are
// not stored so the client may retry.
func (a *API) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if r.Method != http.MethodPost || header == "" || a.idem == nil {
			next.ServeHTTP(w, r)
			return
		}
		if len(header) > maxIdempotencyKey {
			writeError(w, r, http.StatusBadRequest, "Idempotency-Key is too long")
			return
		}
		userID, _ := auth.UserIDFromContext(r.Context())
		key := idem.Key(userID, header)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		fp := idem.Fingerprint(r.Method, r.URL.Path, body)
		ctx := r.Context()

		if rec, ok, err := a.idem.Get(ctx, key); err != nil {
			a.log.Error("idempotency lookup failed", zap.Error(err))
			writeError(w, r, http.StatusServiceUnavailable, "idempotency store unavailable")
			return
		} else if ok {
			replay(w, r, rec, fp)
			return
		}

		if err := a.idem.Reserve(ctx, key, fp, idem.DefaultTTL); err != nil {
			if errors.Is(err, idem.ErrInFlight) {
				// Lost the race with a concurrent request; replay whatever it stored.
				if rec, ok, gerr := a.idem.Get(ctx, key); gerr == nil && ok {
					replay(w, r, rec, fp)
					return
				}
				writeError(w, r, http.StatusConflict, "request with this Idempotency-Key is in progress")
				return
			}
			a.log.Error("idempotency reserve failed", zap.Error(err))
			writeError(w, r, http.StatusServiceUnavailable, "idempotency store unavailable")
			return
		}

		// A panicking handler must not leave the key pending; the panic still
		// propagates to the recoverer.
		finished := false
		defer func() {
			if finished {
				return
			}
			if err := a.idem.Release(ctx, key); err != nil {
				a.log.Warn("idempotency release failed", zap.Error(err))
			}
		}()
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		finished = true

		if rec.status >= http.StatusInternalServerError {
			if err := a.idem.Release(ctx, key); err != nil {
				a.log.Warn("idempotency release failed", zap.Error(err))
			}
			return
		}
		err = a.idem.Complete(ctx, key, idem.Record{
			Fingerprint: fp,
			Status:      rec.status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		}, idem.DefaultTTL)
		if err != nil {
			a.log.Warn("idempotency complete failed", zap.Error(err))
		}
	})
}

func replay(w http.ResponseWriter, r *http.Request, rec idem.Record, fingerprint string) {
	if rec.Fingerprint != fingerprint {
		writeError(w, r, http.StatusUnprocessableEntity, "Idempotency-Key reused with a different request")
		return
	}
	if rec.Pending {
		writeError(w, r, http.StatusConflict, "request with this Idempotency-Key is in progress")
		return
	}
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

// recorder tees the response so it can be stored.
type recorder struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (r *recorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
