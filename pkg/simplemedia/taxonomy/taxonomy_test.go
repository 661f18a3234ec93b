package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tax, err := New(DefaultFolders, "general")
	require.NoError(t, err)
	assert.Equal(t, "general", tax.Default())
	assert.Equal(t, DefaultFolders, tax.Names())

	for _, name := range DefaultFolders {
		assert.True(t, tax.IsValid(name))
	}
	assert.False(t, tax.IsValid("videos"))
	assert.False(t, tax.IsValid(""))
}

func TestNew_Rejects(t *testing.T) {
	cases := map[string][]string{
		"empty":     {},
		"traversal": {"../etc"},
		"nested":    {"a/b"},
		"upper":     {"General"},
		"dot":       {"."},
	}
	for name, folders := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(folders, "")
			assert.Error(t, err)
		})
	}

	_, err := New(DefaultFolders, "videos")
	assert.Error(t, err, "default must be a member")
}

func TestNew_DefaultsToFirst(t *testing.T) {
	tax, err := New([]string{"news", "general", "news"}, "")
	require.NoError(t, err)
	assert.Equal(t, "news", tax.Default())
	assert.Equal(t, []string{"news", "general"}, tax.Names())
}

func TestResolve(t *testing.T) {
	tax, err := New(DefaultFolders, "general")
	require.NoError(t, err)

	got, err := tax.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "general", got)

	got, err = tax.Resolve(" news ")
	require.NoError(t, err)
	assert.Equal(t, "news", got)

	_, err = tax.Resolve("../../tmp")
	assert.ErrorIs(t, err, ErrInvalidFolder)
}

func TestProvision(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	tax, err := New(append(DefaultFolders, VideoFolder), "general")
	require.NoError(t, err)

	require.NoError(t, tax.Provision(root))
	for _, name := range tax.Names() {
		info, err := os.Stat(filepath.Join(root, name))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// idempotent
	require.NoError(t, tax.Provision(root))
}
