package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-media/pkg/simplemedia/pathresolver"
)

// ImmutableCacheControl is sent with stored objects, which never change
// once written
const ImmutableCacheControl = "public, max-age=31536000, immutable"

// StaticHandler serves stored objects from the storage root. Only files
// directly inside taxonomy folders are served; there are no listings.
type StaticHandler struct {
	resolver *pathresolver.Resolver
}

func NewStaticHandler(resolver *pathresolver.Resolver) *StaticHandler {
	return &StaticHandler{resolver: resolver}
}

// Routes returns the router mounted at the public prefix
func (h *StaticHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{folder}/{file}", h.Serve)
	r.Head("/{folder}/{file}", h.Serve)
	return r
}

// Serve streams one object. Reads go through the same confinement as
// deletes.
func (h *StaticHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "folder") + "/" + chi.URLParam(r, "file")
	loc, err := h.resolver.ResolveForDelete(key)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(loc.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", ImmutableCacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, loc.Name, info.ModTime(), f)
}
