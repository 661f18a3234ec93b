// Package transcode turns validated uploads into the bytes that get stored.
// The mode is fixed by deployment configuration, never chosen per request.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrUndecodable indicates corrupt or unsupported media data
	ErrUndecodable = errors.New("media could not be decoded")

	// ErrEncode indicates the encoder failed on decoded input
	ErrEncode = errors.New("media could not be encoded")
)

// Mode selects the transcoding strategy of a deployment
type Mode string

const (
	// ModeNormalize decodes images and re-encodes them into one format
	ModeNormalize Mode = "normalize"
	// ModePassthrough stores bytes unchanged
	ModePassthrough Mode = "passthrough"
)

// ParseMode validates a configured mode string
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeNormalize:
		return ModeNormalize, nil
	case ModePassthrough:
		return ModePassthrough, nil
	default:
		return "", fmt.Errorf("unknown media mode %q (use %q or %q)", s, ModeNormalize, ModePassthrough)
	}
}

// Source is a validated upload
type Source struct {
	Content     []byte
	ContentType string // type matched by the validator
	FileName    string // client-supplied name, used only for its extension
	SniffedExt  string // extension suggested by content sniffing
}

// Output is what gets persisted
type Output struct {
	Content     []byte
	ContentType string
	Extension   string // without leading dot
	Width       int    // zero when not decoded
	Height      int
}

// Transcoder converts a Source into an Output
type Transcoder interface {
	Mode() Mode
	Transcode(ctx context.Context, src Source) (*Output, error)
}

// DefaultExtension is used by passthrough when no safe extension is known
const DefaultExtension = "jpg"

// media extensions passthrough accepts from a client file name
var safeExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {}, "bmp": {},
	"tif": {}, "tiff": {}, "mp4": {}, "m4v": {}, "webm": {}, "mov": {},
}

var extPattern = regexp.MustCompile(`^[a-z0-9]{1,10}$`)

// Passthrough stores uploads unchanged
type Passthrough struct {
	DefaultExt string
}

func NewPassthrough() *Passthrough {
	return &Passthrough{DefaultExt: DefaultExtension}
}

func (p *Passthrough) Mode() Mode { return ModePassthrough }

func (p *Passthrough) Transcode(ctx context.Context, src Source) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Output{
		Content:     src.Content,
		ContentType: src.ContentType,
		Extension:   p.extension(src),
	}, nil
}

// extension prefers the client's extension when it is a known media
// extension, then the sniffed one, then the default.
func (p *Passthrough) extension(src Source) string {
	if ext := cleanExt(filepath.Ext(src.FileName)); ext != "" {
		if _, ok := safeExtensions[ext]; ok {
			return ext
		}
	}
	if ext := cleanExt(src.SniffedExt); ext != "" {
		return ext
	}
	if p.DefaultExt != "" {
		return p.DefaultExt
	}
	return DefaultExtension
}

func cleanExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}
