package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/utafrali/pointledger/pkg/errors"
	"github.com/utafrali/pointledger/pkg/httputil"
	"github.com/utafrali/pointledger/pkg/idempotency"
)

// Idempotency headers.
const (
	IdempotencyHeader      = "Idempotency-Key"
	IdempotentReplayHeader = "Idempotent-Replayed"
	maxIdempotencyKeyLen   = 255
)

type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for POST requests that repeat an
// Idempotency-Key. Keys are scoped to the authenticated caller. 5xx replies
// are not stored so the request can be retried. When the store is
// unavailable the request is processed without deduplication.
func Idempotency(store idempotency.Store, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "INVALID_IDEMPOTENCY_KEY", Message: "idempotency key is too long"},
				})
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				httputil.WriteError(w, r, apperrors.InvalidInput("unreadable request body"), logger)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			scoped := CallerFromContext(r.Context()) + ":" + key
			fingerprint := requestFingerprint(r, body)

			rec, err := store.Begin(r.Context(), scoped, fingerprint, ttl)
			switch {
			case errors.Is(err, idempotency.ErrInProgress):
				httputil.WriteJSON(w, http.StatusConflict, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "IDEMPOTENCY_IN_PROGRESS", Message: "a request with this idempotency key is in progress"},
				})
				return
			case errors.Is(err, idempotency.ErrKeyReused):
				httputil.WriteJSON(w, http.StatusUnprocessableEntity, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "IDEMPOTENCY_KEY_REUSED", Message: "idempotency key was used for a different request"},
				})
				return
			case err != nil:
				logger.WarnContext(r.Context(), "idempotency store unavailable, processing anyway",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			case rec != nil:
				replay(w, rec)
				return
			}

			// Detach from the request context so a disconnecting client
			// does not leave the key reserved.
			ctx := context.WithoutCancel(r.Context())
			release := func() {
				if err := store.Release(ctx, scoped); err != nil {
					logger.WarnContext(ctx, "release idempotency key", slog.String("error", err.Error()))
				}
			}
			defer func() {
				if p := recover(); p != nil {
					release()
					panic(p)
				}
			}()

			rw := &recordingWriter{ResponseWriter: w}
			next.ServeHTTP(rw, r)

			if rw.status >= http.StatusInternalServerError || rw.status == 0 {
				release()
				return
			}
			if err := store.Complete(ctx, scoped, &idempotency.Record{
				Fingerprint: fingerprint,
				Status:      rw.status,
				Header:      http.Header{"Content-Type": {rw.Header().Get("Content-Type")}},
				Body:        rw.body.Bytes(),
			}, ttl); err != nil {
				logger.WarnContext(ctx, "store idempotency record", slog.String("error", err.Error()))
			}
		})
	}
}

func requestFingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	io.WriteString(h, r.Method)
	io.WriteString(h, " ")
	io.WriteString(h, r.URL.Path)
	io.WriteString(h, "\n")
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func replay(w http.ResponseWriter, rec *idempotency.Record) {
	for k, vs := range rec.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set(IdempotentReplayHeader, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}
