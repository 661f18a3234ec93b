package objectkey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
)

// IDBytes is the number of random bytes behind every identifier (128 bits).
const IDBytes = 16

// ErrEntropy indicates the random source could not supply an identifier.
var ErrEntropy = errors.New("entropy source unavailable")

var idPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Generator defines the interface for identifier generation strategies
type Generator interface {
	// Generate returns a new filesystem-safe identifier
	Generate() (string, error)
}

// RandomGenerator produces 128-bit identifiers rendered as 32 lowercase hex
// characters. Identifiers never depend on request input.
type RandomGenerator struct {
	// Source defaults to crypto/rand.Reader
	Source io.Reader
}

func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{Source: rand.Reader}
}

func (g *RandomGenerator) Generate() (string, error) {
	src := g.Source
	if src == nil {
		src = rand.Reader
	}
	buf := make([]byte, IDBytes)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	return hex.EncodeToString(buf), nil
}

// IsValidID reports whether id has the shape produced by RandomGenerator.
func IsValidID(id string) bool {
	return idPattern.MatchString(id)
}

// FileName builds "<id>.<ext>". ext is expected without a leading dot.
func FileName(id, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return id
	}
	return id + "." + ext
}

// Key returns the slash-separated storage key "<folder>/<id>.<ext>", shared by
// the local volume layout, replica stores and public URLs.
func Key(folder, id, ext string) string {
	return path.Join(folder, FileName(id, ext))
}
