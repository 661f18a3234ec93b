// Package taxonomy holds the fixed set of folders an object may be filed
// under. The set is built once at startup and never grows from request input.
package taxonomy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// ErrInvalidFolder indicates a folder name outside the taxonomy
var ErrInvalidFolder = errors.New("invalid folder")

// DefaultFolders is the folder set used by image-only deployments
var DefaultFolders = []string{"avatars", "news", "store", "sliders", "general"}

// VideoFolder is added to the taxonomy in image+video deployments
const VideoFolder = "videos"

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Taxonomy is an immutable set of permitted folders
type Taxonomy struct {
	names []string
	set   map[string]struct{}
	def   string
}

// New validates names and the default folder and returns a Taxonomy.
// Folder names must be simple lowercase path segments.
func New(names []string, defaultFolder string) (*Taxonomy, error) {
	if len(names) == 0 {
		return nil, errors.New("taxonomy requires at least one folder")
	}

	t := &Taxonomy{set: make(map[string]struct{}, len(names))}
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if !namePattern.MatchString(name) {
			return nil, fmt.Errorf("folder name %q is not a simple lowercase segment", raw)
		}
		if _, dup := t.set[name]; dup {
			continue
		}
		t.set[name] = struct{}{}
		t.names = append(t.names, name)
	}

	if defaultFolder == "" {
		defaultFolder = t.names[0]
	}
	if _, ok := t.set[defaultFolder]; !ok {
		return nil, fmt.Errorf("default folder %q is not in the taxonomy", defaultFolder)
	}
	t.def = defaultFolder

	return t, nil
}

// IsValid reports whether name is a member of the taxonomy
func (t *Taxonomy) IsValid(name string) bool {
	_, ok := t.set[name]
	return ok
}

// Default returns the folder used when the caller omits one
func (t *Taxonomy) Default() string {
	return t.def
}

// Names returns the folders in configuration order
func (t *Taxonomy) Names() []string {
	return slices.Clone(t.names)
}

// Resolve maps an optional requested folder to a taxonomy member.
// An empty request falls back to the default folder.
func (t *Taxonomy) Resolve(requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return t.def, nil
	}
	if !t.IsValid(requested) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFolder, requested)
	}
	return requested, nil
}

// Provision creates one directory per folder under root. It is called once
// at startup; request handling never creates directories.
func (t *Taxonomy) Provision(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("failed to create storage root: %w", err)
	}
	for _, name := range t.names {
		if err := os.MkdirAll(filepath.Join(root, name), 0755); err != nil {
			return fmt.Errorf("failed to create folder %s: %w", name, err)
		}
	}
	return nil
}
