package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxFilenameLength caps sanitized names
const MaxFilenameLength = 255

// SanitizeFilename reduces a client-supplied file name to a printable ASCII
// base name. Directory components are dropped, Latin diacritics are folded
// to their base letter and any other non-ASCII rune becomes '-'.
func SanitizeFilename(filename string) string {
	name := filename
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, name); err == nil {
		name = folded
	}

	var result strings.Builder
	result.Grow(len(name))
	for _, r := range name {
		switch {
		case r < utf8.RuneSelf && unicode.IsPrint(r):
			result.WriteRune(r)
		case unicode.IsControl(r):
			// dropped
		default:
			result.WriteByte('-')
		}
	}

	out := strings.TrimSpace(result.String())
	if len(out) > MaxFilenameLength {
		out = out[:MaxFilenameLength]
	}
	if out == "." || out == ".." {
		return ""
	}
	return out
}
