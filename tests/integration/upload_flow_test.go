package integration

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia/config"
	"github.com/tendant/simple-media/pkg/simplemedia/transcode"
	"github.com/tendant/simple-media/tests/testutil"
)

// TestUploadServeDeleteFlow drives one large photo through the whole
// surface: upload, static read, stats and delete.
func TestUploadServeDeleteFlow(t *testing.T) {
	srv := testutil.SetupTestServer(t)

	obj := testutil.Upload(t, srv.URL, "general", testutil.File{Name: "holiday.jpg", Data: testutil.JPEG(t, 3000, 2000)})
	assert.Equal(t, "general", obj.Folder)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, 1920, obj.Width)
	assert.Equal(t, 1280, obj.Height)

	resp, err := http.Get(srv.URL + obj.URL)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1920, cfg.Width)
	assert.Equal(t, 1280, cfg.Height)

	snap := testutil.Stats(t, srv.URL)
	assert.EqualValues(t, 1, snap.Folders["general"].Files)
	assert.EqualValues(t, len(data), snap.Folders["general"].Bytes)

	resp, env := testutil.Delete(t, srv.URL, srv.URL+obj.URL)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	snap = testutil.Stats(t, srv.URL)
	assert.Zero(t, snap.Total.Files)
	assert.NoFileExists(t, filepath.Join(srv.Root(), "general", obj.FileName))
}

// TestPassthroughFlow stores a PDF unchanged in an image+video deployment
func TestPassthroughFlow(t *testing.T) {
	srv := testutil.SetupTestServer(t,
		config.WithMediaMode(transcode.ModePassthrough),
		config.WithAllowedTypes("image/jpeg", "image/png", "application/pdf", "video/mp4"),
	)

	pdf := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
	obj := testutil.Upload(t, srv.URL, "general", testutil.File{Name: "report.pdf", Data: pdf})
	assert.Equal(t, "application/pdf", obj.ContentType)

	stored, err := os.ReadFile(filepath.Join(srv.Root(), "general", obj.FileName))
	require.NoError(t, err)
	assert.Equal(t, pdf, stored)

	assert.DirExists(t, filepath.Join(srv.Root(), "videos"))
}

// TestEscapeAttemptsLeaveSiblingsIntact plants files next to the storage
// root and checks no delete reference reaches them.
func TestEscapeAttemptsLeaveSiblingsIntact(t *testing.T) {
	srv := testutil.SetupTestServer(t)

	sibling := srv.Root() + "-evil"
	require.NoError(t, os.MkdirAll(filepath.Join(sibling, "news"), 0o755))
	victim := filepath.Join(sibling, "news", "keep.jpg")
	require.NoError(t, os.WriteFile(victim, []byte("keep"), 0o644))

	link := filepath.Join(srv.Root(), "news", "link.jpg")
	require.NoError(t, os.Symlink(victim, link))

	for _, ref := range []string{
		"/uploads/../" + filepath.Base(sibling) + "/news/keep.jpg",
		"/uploads/news/link.jpg",
		victim,
		"file://" + victim,
	} {
		resp, _ := testutil.Delete(t, srv.URL, ref)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, ref)
	}
	assert.FileExists(t, victim)
}
