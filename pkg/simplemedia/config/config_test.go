package config

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/taxonomy"
	"github.com/tendant/simple-media/pkg/simplemedia/transcode"
	"github.com/tendant/simple-media/pkg/simplemedia/validate"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, transcode.ModeNormalize, cfg.Mode())
	assert.Equal(t, int64(validate.ImageMaxBytes), cfg.MaxUploadBytes)
	assert.Equal(t, validate.ImageTypes, cfg.AllowedTypes)
	assert.Equal(t, taxonomy.DefaultFolders, cfg.Folders)
	assert.Equal(t, "general", cfg.DefaultFolder)
	assert.Equal(t, 1920, cfg.MaxWidth)
	assert.Equal(t, 85, cfg.JPEGQuality)
	assert.Equal(t, 10, cfg.MaxBatchFiles)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_PassthroughDefaults(t *testing.T) {
	cfg, err := Load(WithMediaMode(transcode.ModePassthrough))
	require.NoError(t, err)

	assert.Equal(t, int64(validate.MediaMaxBytes), cfg.MaxUploadBytes)
	assert.Contains(t, cfg.AllowedTypes, "video/mp4")
	assert.Contains(t, cfg.Folders, taxonomy.VideoFolder)
}

func TestWithEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("API_KEY", "secret")
	t.Setenv("STORAGE_ROOT", root)
	t.Setenv("MEDIA_MODE", "passthrough")
	t.Setenv("ALLOWED_TYPES", "image/png, video/mp4")
	t.Setenv("FOLDERS", "a,b , c")
	t.Setenv("DEFAULT_FOLDER", "b")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("REPLICA_URL", "memory://")

	cfg, err := Load(WithEnv())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, root, cfg.StorageRoot)
	assert.Equal(t, transcode.ModePassthrough, cfg.Mode())
	assert.Equal(t, []string{"image/png", "video/mp4"}, cfg.AllowedTypes)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Folders)
	assert.Equal(t, "b", cfg.DefaultFolder)
	assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
	assert.Equal(t, "memory://", cfg.ReplicaURL)
}

func TestWithEnv_ProgrammaticOverride(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg, err := Load(WithEnv(), WithPort("7070"))
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"svg allowed", []Option{WithAllowedTypes("image/png", "image/svg+xml")}},
		{"video in normalize mode", []Option{WithAllowedTypes("video/mp4")}},
		{"default folder outside taxonomy", []Option{WithFolders("missing", "a", "b")}},
		{"quality out of range", []Option{WithNormalize(1920, 101)}},
		{"zero width", []Option{WithNormalize(0, 85)}},
		{"zero batch", []Option{WithMaxBatchFiles(0)}},
		{"bad replica", []Option{WithReplicaURL("ftp://host")}},
		{"bad mode", []Option{func(c *ServerConfig) error { c.MediaMode = "webp"; return nil }}},
		{"negative ceiling", []Option{WithMaxUploadBytes(-1)}},
		{"empty port", []Option{WithPort("")}},
		{"empty mount", []Option{WithPublicMount("")}},
		{"root mount", []Option{WithPublicMount("/")}},
		{"mount shadows api", []Option{WithPublicMount("/stats/")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opts...)
			assert.Error(t, err)
		})
	}
}

func TestBuildService(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	cfg, err := Load(WithStorageRoot(root), WithReplicaURL("memory://"))
	require.NoError(t, err)

	comps, err := cfg.BuildService(nil, nil)
	require.NoError(t, err)

	for _, folder := range taxonomy.DefaultFolders {
		info, err := os.Stat(filepath.Join(root, folder))
		require.NoError(t, err, folder)
		assert.True(t, info.IsDir())
	}
	assert.Equal(t, "/uploads", comps.Resolver.Mount())
	assert.Equal(t, "general", comps.Taxonomy.Default())

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 4))))
	obj, err := comps.Service.Upload(context.Background(), simplemedia.UploadRequest{
		FileName: "a.png",
		Size:     int64(buf.Len()),
		Body:     &buf,
	})
	require.NoError(t, err)
	assert.Equal(t, "general", obj.Folder)
	assert.Equal(t, "jpg", obj.Extension)
	assert.Equal(t, obj.Path, obj.URL)

	health := comps.Service.Health(context.Background())
	assert.Equal(t, simplemedia.HealthOK, health.Status)
}

func TestBuildService_CDNURLs(t *testing.T) {
	cfg, err := Load(
		WithStorageRoot(t.TempDir()),
		WithPublicBaseURL("https://cdn.example.com"),
		WithMediaMode(transcode.ModePassthrough),
	)
	require.NoError(t, err)

	comps, err := cfg.BuildService(nil, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	obj, err := comps.Service.Upload(context.Background(), simplemedia.UploadRequest{
		Folder:   "videos",
		FileName: "clip.png",
		Size:     -1,
		Body:     &buf,
	})
	require.NoError(t, err)
	assert.Equal(t, "png", obj.Extension)
	assert.Equal(t, "https://cdn.example.com"+obj.Path, obj.URL)
}

func TestBuildService_DeleteByReturnedURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		wantURL string
	}{
		{"relative", "", "/uploads/general/"},
		{"cdn host", "https://cdn.example.com", "https://cdn.example.com/uploads/general/"},
		{"cdn with path", "https://cdn.example.com/media/", "https://cdn.example.com/media/uploads/general/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(WithStorageRoot(t.TempDir()), WithPublicBaseURL(tt.base))
			require.NoError(t, err)
			comps, err := cfg.BuildService(nil, nil)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
			obj, err := comps.Service.Upload(context.Background(), simplemedia.UploadRequest{
				FileName: "a.png",
				Size:     -1,
				Body:     &buf,
			})
			require.NoError(t, err)
			assert.Contains(t, obj.URL, tt.wantURL)

			stored := filepath.Join(comps.Resolver.Root(), "general", obj.FileName)
			require.FileExists(t, stored)

			require.NoError(t, comps.Service.Delete(context.Background(), obj.URL))
			assert.NoFileExists(t, stored)
			require.NoError(t, comps.Service.Delete(context.Background(), obj.Path))
		})
	}
}

func TestUsage(t *testing.T) {
	assert.Contains(t, Usage(), "STORAGE_ROOT")
}
