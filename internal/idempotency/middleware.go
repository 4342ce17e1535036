package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// HeaderKey is the request header carrying the client's key
const HeaderKey = "Idempotency-Key"

// HeaderReplayed marks responses served from the cache
const HeaderReplayed = "Idempotent-Replayed"

const maxKeyLength = 255

// responseRecorder captures response status and body for caching.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Middleware caches POST responses by Idempotency-Key. scope namespaces
// keys per caller so two clients never share a key. Server errors are not
// cached, leaving the request retryable.
func Middleware(store Store, ttl time.Duration, scope func(*http.Request) string, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get(HeaderKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLength {
				writeError(w, http.StatusBadRequest, "Idempotency-Key is too long")
				return
			}

			scoped := scope(r) + "|" + r.URL.Path + "|" + key
			cached, err := store.Begin(r.Context(), scoped, ttl)
			switch {
			case errors.Is(err, ErrInFlight):
				writeError(w, http.StatusConflict, err.Error())
				return
			case err != nil:
				// A broken cache must not block pledges.
				logger.WithError(err).Warn("Idempotency store unavailable")
				next.ServeHTTP(w, r)
				return
			case cached != nil:
				w.Header().Set("Content-Type", cached.ContentType)
				w.Header().Set(HeaderReplayed, "true")
				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			}

			release := func() {
				// The request context may already be cancelled here.
				if err := store.Release(context.WithoutCancel(r.Context()), scoped); err != nil {
					logger.WithError(err).Warn("Failed to release idempotency key")
				}
			}

			// A panicking handler must not leave the key in flight until it
			// expires; the panic is passed on to the recoverer.
			finished := false
			defer func() {
				if !finished {
					release()
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)
			finished = true

			if rec.statusCode >= http.StatusInternalServerError {
				release()
				return
			}
			resp := Response{
				Status:      rec.statusCode,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}
			if err := store.Complete(r.Context(), scoped, resp, ttl); err != nil {
				logger.WithError(err).Warn("Failed to store idempotent response")
			}
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
