package testutil

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// APIKey is the shared secret of servers built by SetupTestServer
const APIKey = "test-api-key"

// JPEG encodes a w×h test image
func JPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// PNG encodes a w×h test image with a transparent corner
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := gradient(w, h)
	img.Set(0, 0, color.RGBA{})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

// File is one multipart file part
type File struct {
	Name string
	Data []byte
}

// Multipart builds a multipart body with every file under field and an
// optional folder field
func Multipart(t *testing.T, field, folder string, files ...File) (io.Reader, string) {
	t.Helper()
	parts := make([]Part, len(files))
	for i, f := range files {
		parts[i] = Part{Field: field, File: f}
	}
	return Form(t, folder, parts...)
}

// Part is a file part under an explicit field
type Part struct {
	Field string
	File
}

// Form builds a multipart body from parts in order, with an optional
// folder field
func Form(t *testing.T, folder string, parts ...Part) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if folder != "" {
		require.NoError(t, mw.WriteField("folder", folder))
	}
	for _, p := range parts {
		w, err := mw.CreateFormFile(p.Field, p.Name)
		require.NoError(t, err)
		_, err = w.Write(p.Data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

// Envelope is the API response envelope
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Do sends a request with the API key (when non-empty) and decodes the
// envelope. The response body is consumed.
func Do(t *testing.T, method, url string, body io.Reader, contentType, apiKey string) (*http.Response, Envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env Envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

// Upload posts one file and requires success
func Upload(t *testing.T, serverURL, folder string, f File) simplemedia.StoredObject {
	t.Helper()
	body, ct := Multipart(t, "file", folder, f)
	resp, env := Do(t, http.MethodPost, serverURL+"/upload", body, ct, APIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	require.True(t, env.Success)

	var obj simplemedia.StoredObject
	require.NoError(t, json.Unmarshal(env.Data, &obj))
	return obj
}

// Delete sends a delete for reference
func Delete(t *testing.T, serverURL, reference string) (*http.Response, Envelope) {
	t.Helper()
	body, err := json.Marshal(map[string]string{"url": reference})
	require.NoError(t, err)
	return Do(t, http.MethodDelete, serverURL+"/delete", bytes.NewReader(body), "application/json", APIKey)
}

// Stats fetches and decodes the storage summary
func Stats(t *testing.T, serverURL string) simplemedia.Snapshot {
	t.Helper()
	resp, env := Do(t, http.MethodGet, serverURL+"/stats", nil, "", APIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	var snap simplemedia.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	return snap
}
