package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	apikey "github.com/tendant/chi-demo/middleware"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

const (
	APIKeyHeader = "X-API-Key"
	APIKeyQuery  = "api_key"
)

// RequestIDMiddleware adds a unique request ID to each request. The ID is
// stored under chi's request id key so request logging picks it up.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(middleware.RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, requestID)
		w.Header().Set(middleware.RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RecoveryMiddleware recovers from panics and returns a 500 envelope
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic",
						"request_id", middleware.GetReqID(r.Context()),
						"panic", fmt.Sprint(rec),
					)
					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, Response{Success: false, Message: "internal server error"})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// APIKeyMiddleware requires the shared secret in the X-API-Key header or
// the api_key query parameter. Verification is done by chi-demo's key
// middleware against the SHA-256 digest of apiKey. An empty configured key
// rejects every request.
func APIKeyMiddleware(apiKey string, logger *slog.Logger) (Middleware, error) {
	sum := sha256.Sum256([]byte(apiKey))
	verify, err := apikey.ApiKeyMiddleware(apikey.ApiKeyConfig{
		APIKeys: map[string]string{
			"simple-media": hex.EncodeToString(sum[:]),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize API key middleware: %w", err)
	}
	return KeyAuthAdapter(apiKey != "", verify, logger), nil
}

// KeyAuthAdapter presents the key from the X-API-Key header or the api_key
// query parameter to verify, both as X-API-Key and as a bearer token.
// Requests verify does not pass on get the unauthorized envelope.
func KeyAuthAdapter(enabled bool, verify func(http.Handler) http.Handler, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				key = r.URL.Query().Get(APIKeyQuery)
			}
			if !enabled || key == "" {
				respondError(w, r, logger, simplemedia.ErrUnauthorized)
				return
			}

			passed := false
			inner := verify(http.HandlerFunc(func(_ http.ResponseWriter, vr *http.Request) {
				passed = true
				next.ServeHTTP(w, vr)
			}))

			vr := r.Clone(r.Context())
			vr.Header.Set(APIKeyHeader, key)
			vr.Header.Set("Authorization", "Bearer "+key)
			inner.ServeHTTP(discardWriter{header: http.Header{}}, vr)

			if !passed {
				respondError(w, r, logger, simplemedia.ErrUnauthorized)
			}
		})
	}
}

// discardWriter swallows the verifier's own rejection response
type discardWriter struct {
	header http.Header
}

func (d discardWriter) Header() http.Header         { return d.header }
func (d discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (d discardWriter) WriteHeader(int)             {}

// RequestSizeLimitMiddleware limits the size of request bodies
func RequestSizeLimitMiddleware(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware sets headers that stop browsers from
// reinterpreting responses
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
