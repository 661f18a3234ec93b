package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// multipart parts above this size spill to temporary files
const maxFormMemory = 32 << 20

// MediaHandler handles upload, delete and stats endpoints
type MediaHandler struct {
	service simplemedia.Service
	logger  *slog.Logger
}

func NewMediaHandler(service simplemedia.Service, logger *slog.Logger) *MediaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaHandler{
		service: service,
		logger:  logger,
	}
}

// Limits bounds request bodies per endpoint. Zero values leave bodies
// unbounded.
type Limits struct {
	MaxUploadBytes int64 // per file
	MaxBatchFiles  int
}

// multipart framing allowance on top of the payload ceiling
const formOverhead = 1 << 20

func (l Limits) single() []func(http.Handler) http.Handler {
	if l.MaxUploadBytes <= 0 {
		return nil
	}
	return []func(http.Handler) http.Handler{RequestSizeLimitMiddleware(l.MaxUploadBytes + formOverhead)}
}

func (l Limits) batch() []func(http.Handler) http.Handler {
	if l.MaxUploadBytes <= 0 {
		return nil
	}
	n := l.MaxBatchFiles
	if n <= 0 {
		n = simplemedia.DefaultMaxBatch
	}
	return []func(http.Handler) http.Handler{RequestSizeLimitMiddleware(l.MaxUploadBytes*int64(n) + formOverhead)}
}

// Routes returns a router for the authenticated endpoints
func (h *MediaHandler) Routes(limits Limits) chi.Router {
	r := chi.NewRouter()
	h.Register(r, limits)
	return r
}

// Register adds the authenticated endpoints to r. Single uploads are held
// to one file's ceiling and batches to the batch ceiling.
func (h *MediaHandler) Register(r chi.Router, limits Limits) {
	r.With(limits.single()...).Post("/upload", h.Upload)
	r.With(limits.batch()...).Post("/upload/multiple", h.UploadMultiple)
	r.With(RequestSizeLimitMiddleware(formOverhead)).Delete("/delete", h.Delete)
	r.Get("/stats", h.Stats)
}

// DeleteRequest carries the public reference of the object to delete.
// Either field may be used.
type DeleteRequest struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// Upload stores the file in the "file" field
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(r); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		respondError(w, r, h.logger, &simplemedia.ValidationError{Field: "file", Err: simplemedia.ErrMissingFile})
		return
	}
	if len(headers) > 1 {
		respondError(w, r, h.logger, &simplemedia.ValidationError{
			Field: "file",
			Err:   fmt.Errorf("%w: %d parts, send one or use /upload/multiple", simplemedia.ErrTooManyFiles, len(headers)),
		})
		return
	}

	reqs, closeAll, err := uploadRequests(r.FormValue("folder"), headers)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	defer closeAll()

	obj, err := h.service.Upload(r.Context(), reqs[0])
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, obj)
}

// UploadMultiple stores every file in the "files" field, or none
func (h *MediaHandler) UploadMultiple(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(r); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondError(w, r, h.logger, &simplemedia.ValidationError{Field: "files", Err: simplemedia.ErrMissingFile})
		return
	}

	reqs, closeAll, err := uploadRequests(r.FormValue("folder"), headers)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	defer closeAll()

	objs, err := h.service.UploadBatch(r.Context(), reqs)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, objs)
}

// Delete removes the object named by the JSON body
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondError(w, r, h.logger, &simplemedia.ValidationError{Field: "body", Err: errors.New("malformed JSON")})
		return
	}

	reference := req.URL
	if strings.TrimSpace(reference) == "" {
		reference = req.Path
	}
	if err := h.service.Delete(r.Context(), reference); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, nil)
}

// Stats returns per-folder totals
func (h *MediaHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Stats(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, snap)
}

// Health reports storage availability. It is served without auth.
func (h *MediaHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Health(r.Context()))
}

func (h *MediaHandler) parseForm(r *http.Request) error {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &simplemedia.ValidationError{Field: "file", Err: simplemedia.ErrPayloadTooLarge}
		}
		return &simplemedia.ValidationError{Field: "body", Err: simplemedia.ErrMissingFile}
	}
	return nil
}

// uploadRequests opens every part. The returned func closes them.
func uploadRequests(folder string, headers []*multipart.FileHeader) ([]simplemedia.UploadRequest, func(), error) {
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	reqs := make([]simplemedia.UploadRequest, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, f)
		reqs = append(reqs, simplemedia.UploadRequest{
			Folder:      folder,
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return reqs, closeAll, nil
}
