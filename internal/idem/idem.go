// Package idem remembers responses to money-moving requests by Idempotency-Key so
// a retried request replays the first outcome instead of moving money twice.
package idem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// DefaultTTL is how long a key is remembered.
const DefaultTTL = 24 * time.Hour

// ErrInFlight is returned by Reserve when another request holds the key.
var ErrInFlight = errors.New("idempotent request already in progress")

// Record is a stored response. Pending records mark a key whose first request has
// not finished yet.
type Record struct {
	Pending     bool   `json:"pending"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Store persists records. Keys are already scoped to an owner.
type Store interface {
	// Get returns the record for key; ok is false when none exists.
	Get(ctx context.Context, key string) (rec Record, ok bool, err error)
	// Reserve atomically creates a pending record, or fails with ErrInFlight
	// when any record already exists.
	Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) error
	// Complete replaces the pending record with the final response.
	Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error
	// Release drops a reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}

// Key scopes an Idempotency-Key header value to its owner.
func Key(ownerID, headerValue string) string {
	return ownerID + ":" + headerValue
}

// Fingerprint identifies a request so a key reused for a different request is detected.
func Fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
