package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia/pathresolver"
	"github.com/tendant/simple-media/pkg/simplemedia/taxonomy"
	"github.com/tendant/simple-media/pkg/simplemedia/transcode"
	"github.com/tendant/simple-media/pkg/simplemedia/validate"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults, then fills mode-dependent defaults and validates.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyModeDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:          "8080",
		Environment:   "development",
		StorageRoot:   "./data/uploads",
		PublicMount:   "/uploads",
		MediaMode:     string(transcode.ModeNormalize),
		DefaultFolder: "general",
		MaxWidth:      transcode.DefaultMaxWidth,
		JPEGQuality:   transcode.DefaultQuality,
		MaxBatchFiles: 10,
	}
}

// ServerConfig represents server configuration for the simple-media service.
// Fields left empty by options and env receive defaults for the media mode.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	APIKey      string `env:"API_KEY"`

	// Storage configuration
	StorageRoot   string `env:"STORAGE_ROOT" env-default:"./data/uploads"`
	PublicMount   string `env:"PUBLIC_MOUNT" env-default:"/uploads"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	// Media policy
	MediaMode      string   `env:"MEDIA_MODE" env-default:"normalize"`
	MaxUploadBytes int64    `env:"MAX_UPLOAD_BYTES"`
	AllowedTypes   []string `env:"ALLOWED_TYPES" env-separator:","`
	Folders        []string `env:"FOLDERS" env-separator:","`
	DefaultFolder  string   `env:"DEFAULT_FOLDER" env-default:"general"`
	MaxWidth       int      `env:"MAX_WIDTH" env-default:"1920"`
	JPEGQuality    int      `env:"JPEG_QUALITY" env-default:"85"`
	MaxBatchFiles  int      `env:"MAX_BATCH_FILES" env-default:"10"`

	// Replica
	ReplicaURL         string `env:"REPLICA_URL"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
}

// Mode returns the parsed media mode
func (c *ServerConfig) Mode() transcode.Mode {
	mode, _ := transcode.ParseMode(c.MediaMode)
	return mode
}

// IsDevelopment reports whether the server runs in development
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *ServerConfig) applyModeDefaults() error {
	mode, err := transcode.ParseMode(c.MediaMode)
	if err != nil {
		return err
	}
	c.MediaMode = string(mode)

	c.AllowedTypes = cleanList(c.AllowedTypes, strings.ToLower)
	c.Folders = cleanList(c.Folders, strings.ToLower)

	switch mode {
	case transcode.ModeNormalize:
		if c.MaxUploadBytes == 0 {
			c.MaxUploadBytes = validate.ImageMaxBytes
		}
		if len(c.AllowedTypes) == 0 {
			c.AllowedTypes = slices.Clone(validate.ImageTypes)
		}
		if len(c.Folders) == 0 {
			c.Folders = slices.Clone(taxonomy.DefaultFolders)
		}
	case transcode.ModePassthrough:
		if c.MaxUploadBytes == 0 {
			c.MaxUploadBytes = validate.MediaMaxBytes
		}
		if len(c.AllowedTypes) == 0 {
			c.AllowedTypes = slices.Concat(validate.ImageTypes, validate.VideoTypes)
		}
		if len(c.Folders) == 0 {
			c.Folders = append(slices.Clone(taxonomy.DefaultFolders), taxonomy.VideoFolder)
		}
	}
	return nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.StorageRoot == "" {
		return errors.New("storage_root is required")
	}
	mount := pathresolver.NormalizeMount(c.PublicMount)
	if mount == "" {
		return errors.New("public_mount is required")
	}
	if slices.Contains(reservedMounts, mount) {
		return fmt.Errorf("public_mount %s collides with an API route", mount)
	}

	mode, err := transcode.ParseMode(c.MediaMode)
	if err != nil {
		return err
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	if len(c.AllowedTypes) == 0 {
		return errors.New("allowed_types must not be empty")
	}
	for _, t := range c.AllowedTypes {
		if strings.Contains(t, "svg") {
			return fmt.Errorf("allowed type %s is not permitted", t)
		}
		if mode == transcode.ModeNormalize && !strings.HasPrefix(t, "image/") {
			return fmt.Errorf("allowed type %s cannot be normalized; use passthrough mode", t)
		}
	}

	if len(c.Folders) == 0 {
		return errors.New("folders must not be empty")
	}
	if c.DefaultFolder != "" && !slices.Contains(c.Folders, c.DefaultFolder) {
		return fmt.Errorf("default folder '%s' not found in configured folders", c.DefaultFolder)
	}

	if c.MaxWidth <= 0 {
		return errors.New("max_width must be positive")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.New("jpeg_quality must be between 1 and 100")
	}
	if c.MaxBatchFiles <= 0 {
		return errors.New("max_batch_files must be positive")
	}

	if c.ReplicaURL != "" {
		scheme, _, _ := strings.Cut(c.ReplicaURL, "://")
		if scheme != "s3" && scheme != "memory" {
			return fmt.Errorf("unsupported REPLICA_URL format: %s (use 'memory://' or 's3://...')", c.ReplicaURL)
		}
	}

	return nil
}

// reservedMounts are API routes a public mount cannot shadow
var reservedMounts = []string{"/upload", "/delete", "/stats", "/health", "/metrics"}

// cleanList trims entries, drops empties and applies fn
func cleanList(in []string, fn func(string) string) []string {
	var out []string
	for _, s := range in {
		s = fn(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
