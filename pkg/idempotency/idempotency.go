// Package idempotency stores the outcome of requests carrying an
// Idempotency-Key so retries replay the first response instead of repeating
// a ledger mutation.
package idempotency

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrInProgress means another request holding the same key has not finished.
	ErrInProgress = errors.New("idempotent request still in progress")
	// ErrKeyReused means the key was first used for a different request.
	ErrKeyReused = errors.New("idempotency key reused with a different request")
)

// Record is a completed response kept for replay.
type Record struct {
	Fingerprint string      `json:"fingerprint"`
	Status      int         `json:"status"`
	Header      http.Header `json:"header,omitempty"`
	Body        []byte      `json:"body"`
	Completed   bool        `json:"completed"`
}

// Store reserves keys and keeps completed records. Implementations must be
// safe for concurrent use.
type Store interface {
	// Begin reserves key for a request with the given fingerprint. It
	// returns (nil, nil) when the caller now owns the key, the stored
	// record when the key already completed, ErrInProgress while another
	// holder is running and ErrKeyReused on a fingerprint mismatch.
	Begin(ctx context.Context, key, fingerprint string, ttl time.Duration) (*Record, error)
	// Complete stores the final response for a reserved key.
	Complete(ctx context.Context, key string, rec *Record, ttl time.Duration) error
	// Release drops a reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}

func resolve(existing *Record, fingerprint string) (*Record, error) {
	if existing.Fingerprint != fingerprint {
		return nil, ErrKeyReused
	}
	if !existing.Completed {
		return nil, ErrInProgress
	}
	return existing, nil
}
