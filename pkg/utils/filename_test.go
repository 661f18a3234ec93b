package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"ascii only", "simple-file-name.jpg", "simple-file-name.jpg"},
		{"with spaces", "holiday photo.png", "holiday photo.png"},
		{"latin accents", "résumé.pdf", "resume.pdf"},
		{"latin accents uppercase", "RÉSUMÉ.PDF", "RESUME.PDF"},
		{"mixed latin", "Café Ñandú.jpg", "Cafe Nandu.jpg"},
		{"emoji", "photo📷.jpg", "photo-.jpg"},
		{"unix directories", "../../etc/passwd", "passwd"},
		{"windows directories", `C:\Users\me\avatar.png`, "avatar.png"},
		{"control characters", "a\x00b\tc\n.jpg", "abc.jpg"},
		{"dot dot", "..", ""},
		{"trailing slash", "photos/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilename_Length(t *testing.T) {
	long := strings.Repeat("é", 300) + ".jpg"
	out := SanitizeFilename(long)
	assert.Len(t, out, MaxFilenameLength)
	assert.True(t, strings.HasPrefix(out, "eee"))
}
