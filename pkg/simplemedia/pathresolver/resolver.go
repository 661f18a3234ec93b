// Package pathresolver maps object references onto the storage root and
// guarantees that anything derived from a caller-supplied reference stays
// inside it.
package pathresolver

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia/objectkey"
	"github.com/tendant/simple-media/pkg/simplemedia/taxonomy"
)

// ErrInvalidPath indicates a reference that is empty, malformed or escapes
// the storage root
var ErrInvalidPath = errors.New("invalid path")

// Location identifies one stored object
type Location struct {
	Folder string // taxonomy folder
	Name   string // "<id>.<ext>"
	Key    string // "<folder>/<name>", slash separated
	Path   string // absolute filesystem path under the root
}

// Resolver joins references onto a canonical storage root
type Resolver struct {
	root     string
	mount    string
	basePath string
	tax      *taxonomy.Taxonomy
}

// Option configures a Resolver
type Option func(*Resolver) error

// WithPublicBaseURL accepts references carrying the path of the absolute
// base URL clients are given, e.g. "https://cdn.example.com/media".
func WithPublicBaseURL(base string) Option {
	return func(r *Resolver) error {
		base = strings.TrimSpace(base)
		if base == "" {
			return nil
		}
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("invalid public base URL: %w", err)
		}
		r.basePath = strings.TrimSuffix(u.Path, "/")
		return nil
	}
}

// New canonicalizes root and returns a Resolver. mount is the public prefix
// objects are served under, e.g. "/uploads", and must not be empty.
func New(root, mount string, tax *taxonomy.Taxonomy, opts ...Option) (*Resolver, error) {
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	if tax == nil {
		return nil, errors.New("taxonomy is required")
	}
	if NormalizeMount(mount) == "" {
		return nil, errors.New("public mount is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	canonical, err := canonicalize(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize storage root: %w", err)
	}

	r := &Resolver{
		root:  canonical,
		mount: NormalizeMount(mount),
		tax:   tax,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NormalizeMount renders a mount prefix as "/name" with no trailing slash
func NormalizeMount(mount string) string {
	mount = strings.Trim(mount, "/")
	if mount == "" {
		return ""
	}
	return "/" + mount
}

// Root returns the canonical storage root
func (r *Resolver) Root() string {
	return r.root
}

// Mount returns the normalized public prefix
func (r *Resolver) Mount() string {
	return r.mount
}

// ResolveForWrite builds the destination of a new object. The folder must be
// a taxonomy member and the identifier must come from the generator, so the
// result cannot leave the root.
func (r *Resolver) ResolveForWrite(folder, id, ext string) (Location, error) {
	if !r.tax.IsValid(folder) {
		return Location{}, fmt.Errorf("%w: %q", taxonomy.ErrInvalidFolder, folder)
	}
	if !objectkey.IsValidID(id) {
		return Location{}, fmt.Errorf("%w: malformed identifier", ErrInvalidPath)
	}
	name := objectkey.FileName(id, ext)
	if strings.ContainsAny(name, `/\`) {
		return Location{}, fmt.Errorf("%w: malformed extension", ErrInvalidPath)
	}

	return Location{
		Folder: folder,
		Name:   name,
		Key:    path.Join(folder, name),
		Path:   filepath.Join(r.root, folder, name),
	}, nil
}

// PublicPath returns "<mount>/<folder>/<name>" for a location
func (r *Resolver) PublicPath(loc Location) string {
	return r.mount + "/" + loc.Key
}

// ResolveForDelete maps a caller-supplied reference (a public path, a full
// URL, or a "<folder>/<name>" key) to a location inside the root. The
// reference is checked lexically first and then again after symlinks are
// resolved; both the root and the candidate go through the same
// canonicalization.
func (r *Resolver) ResolveForDelete(reference string) (Location, error) {
	rel, err := r.stripReference(reference)
	if err != nil {
		return Location{}, err
	}

	joined := filepath.Join(r.root, filepath.FromSlash(rel))
	if !within(r.root, joined) {
		return Location{}, fmt.Errorf("%w: reference escapes storage root", ErrInvalidPath)
	}

	canonical, err := canonicalize(joined)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if !within(r.root, canonical) {
		return Location{}, fmt.Errorf("%w: reference resolves outside storage root", ErrInvalidPath)
	}

	relCanonical, err := filepath.Rel(r.root, canonical)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	parts := strings.Split(filepath.ToSlash(relCanonical), "/")
	if len(parts) != 2 {
		return Location{}, fmt.Errorf("%w: reference must name a file inside a folder", ErrInvalidPath)
	}
	folder, name := parts[0], parts[1]
	if !r.tax.IsValid(folder) {
		return Location{}, fmt.Errorf("%w: unknown folder %q", ErrInvalidPath, folder)
	}
	if name == "" || strings.HasPrefix(name, ".") {
		return Location{}, fmt.Errorf("%w: invalid file name", ErrInvalidPath)
	}

	return Location{
		Folder: folder,
		Name:   name,
		Key:    folder + "/" + name,
		Path:   canonical,
	}, nil
}

// stripReference reduces a reference to a root-relative slash path
func (r *Resolver) stripReference(reference string) (string, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return "", fmt.Errorf("%w: empty reference", ErrInvalidPath)
	}
	if strings.ContainsRune(ref, 0) {
		return "", fmt.Errorf("%w: reference contains NUL", ErrInvalidPath)
	}

	p, err := referencePath(ref)
	if err != nil {
		return "", err
	}

	if r.basePath != "" && strings.HasPrefix(p, r.basePath+r.mount+"/") {
		p = strings.TrimPrefix(p, r.basePath)
	}

	switch {
	case strings.HasPrefix(p, r.mount+"/"):
		p = strings.TrimPrefix(p, r.mount+"/")
	case strings.HasPrefix(p, strings.TrimPrefix(r.mount, "/")+"/"):
		p = strings.TrimPrefix(p, strings.TrimPrefix(r.mount, "/")+"/")
	}

	if p == "" {
		return "", fmt.Errorf("%w: empty reference", ErrInvalidPath)
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return "", fmt.Errorf("%w: absolute path outside the public mount", ErrInvalidPath)
	}
	return p, nil
}

// referencePath extracts the path portion of a reference
func referencePath(ref string) (string, error) {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("%w: malformed URL", ErrInvalidPath)
		}
		return u.Path, nil
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return ref, nil
}

// within reports whether p equals root or lies beneath it. A bare string
// prefix is not enough: "/data/uploads-evil" must not match "/data/uploads".
func within(root, p string) bool {
	if p == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}

// canonicalize resolves symlinks along the longest existing prefix of p and
// re-appends the missing tail, so references to absent files still resolve.
func canonicalize(p string) (string, error) {
	p = filepath.Clean(p)
	var tail []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}
