// Package validate applies the upload policy (folder, size ceiling, type
// allow-list) before any byte reaches durable storage or a decoder.
package validate

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tendant/simple-media/pkg/simplemedia/taxonomy"
)

var (
	// ErrUnsupportedType indicates a declared or sniffed type outside the allow-list
	ErrUnsupportedType = errors.New("unsupported media type")

	// ErrPayloadTooLarge indicates a payload above the configured ceiling
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrEmptyPayload indicates a zero-length file
	ErrEmptyPayload = errors.New("empty payload")

	// ErrMissingFile indicates a request that carried no file at all
	ErrMissingFile = errors.New("no file provided")
)

const (
	MiB = 1 << 20

	// ImageMaxBytes is the default ceiling for image-only deployments
	ImageMaxBytes int64 = 10 * MiB

	// MediaMaxBytes is the default ceiling for image+video deployments
	MediaMaxBytes int64 = 50 * MiB
)

// ImageTypes is the default allow-list for image-only deployments
var ImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

// VideoTypes is added to ImageTypes in image+video deployments
var VideoTypes = []string{
	"video/mp4",
	"video/webm",
	"video/quicktime",
}

// declared types some clients send instead of the registered name
var aliases = map[string]string{
	"image/jpg":         "image/jpeg",
	"image/pjpeg":       "image/jpeg",
	"image/x-png":       "image/png",
	"image/x-ms-bmp":    "image/bmp",
	"video/x-m4v":       "video/mp4",
	"video/x-quicktime": "video/quicktime",
}

// Policy configures a Validator
type Policy struct {
	AllowedTypes []string
	MaxBytes     int64
}

// Validator checks uploads against a Policy and a taxonomy
type Validator struct {
	allowed  []string
	set      map[string]struct{}
	maxBytes int64
	tax      *taxonomy.Taxonomy
}

// Input describes one upload. Content holds the buffered payload, read with
// a limit of MaxBytes+1 so oversize bodies are detectable.
type Input struct {
	Folder       string
	DeclaredType string
	DeclaredSize int64
	Content      []byte
}

// Result is the outcome of a successful validation
type Result struct {
	Folder      string
	ContentType string // canonical allow-list entry matched by sniffing
	Extension   string // extension suggested by the sniffed type, without dot
}

// New builds a Validator. An empty allow-list or non-positive ceiling is a
// configuration error.
func New(policy Policy, tax *taxonomy.Taxonomy) (*Validator, error) {
	if tax == nil {
		return nil, errors.New("taxonomy is required")
	}
	if policy.MaxBytes <= 0 {
		return nil, errors.New("max bytes must be positive")
	}
	if len(policy.AllowedTypes) == 0 {
		return nil, errors.New("at least one allowed type is required")
	}

	v := &Validator{
		set:      make(map[string]struct{}, len(policy.AllowedTypes)),
		maxBytes: policy.MaxBytes,
		tax:      tax,
	}
	for _, t := range policy.AllowedTypes {
		t = canonicalType(t)
		if t == "" {
			continue
		}
		if _, dup := v.set[t]; dup {
			continue
		}
		v.set[t] = struct{}{}
		v.allowed = append(v.allowed, t)
	}
	if len(v.allowed) == 0 {
		return nil, errors.New("at least one allowed type is required")
	}
	return v, nil
}

// MaxBytes returns the size ceiling
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// AllowedTypes returns the canonical allow-list
func (v *Validator) AllowedTypes() []string {
	return append([]string(nil), v.allowed...)
}

// CheckFolder resolves the requested folder, falling back to the default
func (v *Validator) CheckFolder(folder string) (string, error) {
	return v.tax.Resolve(folder)
}

// CheckSize rejects sizes above the ceiling. Negative sizes mean unknown.
func (v *Validator) CheckSize(size int64) error {
	if size > v.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrPayloadTooLarge, size, v.maxBytes)
	}
	return nil
}

// CheckDeclaredType rejects a client-declared type outside the allow-list.
// Empty and generic declarations are left to sniffing.
func (v *Validator) CheckDeclaredType(declared string) error {
	t := canonicalType(declared)
	if t == "" || t == "application/octet-stream" {
		return nil
	}
	if _, ok := v.set[t]; !ok {
		return fmt.Errorf("%w: declared %s", ErrUnsupportedType, t)
	}
	return nil
}

// Sniff detects the type of content and matches it against the allow-list
func (v *Validator) Sniff(content []byte) (string, string, error) {
	detected := mimetype.Detect(content)
	for _, t := range v.allowed {
		if detected.Is(t) {
			return t, strings.TrimPrefix(detected.Extension(), "."), nil
		}
	}
	return "", "", fmt.Errorf("%w: detected %s", ErrUnsupportedType, detected.String())
}

// Validate runs every check in order: folder, size, declared type, sniffed
// type. The first failure is returned.
func (v *Validator) Validate(in Input) (Result, error) {
	folder, err := v.CheckFolder(in.Folder)
	if err != nil {
		return Result{}, err
	}
	if err := v.CheckSize(in.DeclaredSize); err != nil {
		return Result{}, err
	}
	if len(in.Content) == 0 {
		return Result{}, ErrEmptyPayload
	}
	if err := v.CheckSize(int64(len(in.Content))); err != nil {
		return Result{}, err
	}
	if err := v.CheckDeclaredType(in.DeclaredType); err != nil {
		return Result{}, err
	}
	contentType, ext, err := v.Sniff(in.Content)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Folder:      folder,
		ContentType: contentType,
		Extension:   ext,
	}, nil
}

// canonicalType strips parameters, lowercases and resolves aliases
func canonicalType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	t, _, err := mime.ParseMediaType(raw)
	if err != nil {
		t, _, _ = strings.Cut(raw, ";")
	}
	t = strings.ToLower(strings.TrimSpace(t))
	if alias, ok := aliases[t]; ok {
		return alias
	}
	return t
}
