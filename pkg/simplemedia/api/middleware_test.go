package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetReqID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("oversized replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.RequestIDHeader, strings.Repeat("x", 200))
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Len(t, seen, 36)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "internal server error", resp.Message)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		header string
		query  string
		want   int
	}{
		{"header", "secret", "secret", "", http.StatusOK},
		{"query", "secret", "", "secret", http.StatusOK},
		{"header wins", "secret", "secret", "wrong", http.StatusOK},
		{"missing", "secret", "", "", http.StatusUnauthorized},
		{"wrong", "secret", "secreT", "", http.StatusUnauthorized},
		{"prefix", "secret", "secre", "", http.StatusUnauthorized},
		{"unconfigured", "", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, err := APIKeyMiddleware(tt.key, discardLogger())
			require.NoError(t, err)
			h := mw(http.HandlerFunc(okHandler))

			target := "/stats"
			if tt.query != "" {
				target += "?" + APIKeyQuery + "=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "unauthorized", decode(t, rec).Message)
			}
		})
	}
}

func TestKeyAuthAdapter(t *testing.T) {
	t.Run("verifier rejects", func(t *testing.T) {
		reject := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "forbidden", http.StatusForbidden)
			})
		}
		h := KeyAuthAdapter(true, reject, discardLogger())(http.HandlerFunc(okHandler))

		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		req.Header.Set(APIKeyHeader, "secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", decode(t, rec).Message)
		assert.NotContains(t, rec.Body.String(), "forbidden")
	})

	t.Run("query key presented to verifier", func(t *testing.T) {
		var bearer, header string
		pass := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				bearer = r.Header.Get("Authorization")
				header = r.Header.Get(APIKeyHeader)
				next.ServeHTTP(w, r)
			})
		}
		h := KeyAuthAdapter(true, pass, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats?"+APIKeyQuery+"=secret", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "Bearer secret", bearer)
		assert.Equal(t, "secret", header)
	})

	t.Run("disabled skips verifier", func(t *testing.T) {
		called := false
		pass := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				next.ServeHTTP(w, r)
			})
		}
		h := KeyAuthAdapter(false, pass, discardLogger())(http.HandlerFunc(okHandler))

		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		req.Header.Set(APIKeyHeader, "secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	var readErr error
	h := RequestSizeLimitMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("12345678")))
	assert.NoError(t, readErr)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("123456789")))
	var maxErr *http.MaxBytesError
	assert.ErrorAs(t, readErr, &maxErr)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeadersMiddleware(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &simplemedia.ValidationError{Field: "file", Err: simplemedia.ErrUnsupportedType}, http.StatusBadRequest},
		{"path security", &simplemedia.PathSecurityError{Reference: "../x", Err: simplemedia.ErrInvalidPath}, http.StatusBadRequest},
		{"undecodable", &simplemedia.TranscodeError{Mode: "normalize", Err: simplemedia.ErrUndecodable}, http.StatusBadRequest},
		{"auth", simplemedia.ErrUnauthorized, http.StatusUnauthorized},
		{"storage", &simplemedia.StorageError{Backend: "local", Key: "news/a.jpg", Op: "put", Err: errors.New("disk full")}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestRespondError(t *testing.T) {
	t.Run("internal detail hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := &simplemedia.StorageError{Backend: "local", Key: "news/a.jpg", Op: "put", Err: errors.New("/srv/secret: disk full")}
		respondError(rec, httptest.NewRequest(http.MethodPost, "/upload", nil), discardLogger(), err)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", decode(t, rec).Message)
		assert.NotContains(t, rec.Body.String(), "/srv/secret")
	})

	t.Run("client message kept", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := &simplemedia.ValidationError{Field: "folder", Err: simplemedia.ErrInvalidFolder}
		respondError(rec, httptest.NewRequest(http.MethodPost, "/upload", nil), discardLogger(), err)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, err.Error(), decode(t, rec).Message)
	})

	t.Run("body limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := fmt.Errorf("read form: %w", &http.MaxBytesError{Limit: 10})
		respondError(rec, httptest.NewRequest(http.MethodPost, "/upload", nil), discardLogger(), err)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, simplemedia.ErrPayloadTooLarge.Error(), decode(t, rec).Message)
	})
}
