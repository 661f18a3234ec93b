package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Response is the envelope of every API response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatusFor maps an error to an HTTP status
func StatusFor(err error) int {
	switch simplemedia.KindOf(err) {
	case simplemedia.KindValidation, simplemedia.KindPathSecurity, simplemedia.KindTranscodeContent:
		return http.StatusBadRequest
	case simplemedia.KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func respondOK(w http.ResponseWriter, r *http.Request, data any) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Response{Success: true, Data: data})
}

// respondError writes the failure envelope. Environment faults are logged
// and reported without detail.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusFor(err)
	message := err.Error()
	switch {
	case status == http.StatusUnauthorized:
		message = "unauthorized"
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal server error"
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status = http.StatusBadRequest
		message = simplemedia.ErrPayloadTooLarge.Error()
	}

	render.Status(r, status)
	render.JSON(w, r, Response{Success: false, Message: message})
}
