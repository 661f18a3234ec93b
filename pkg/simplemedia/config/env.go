package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv applies environment variables using the struct tags on
// ServerConfig. Variables that are unset keep their env-default, or the
// current value when the field has no default, so programmatic options
// that must win over the environment go after WithEnv.
//
//	PORT, ENVIRONMENT, API_KEY
//	STORAGE_ROOT, PUBLIC_MOUNT, PUBLIC_BASE_URL
//	MEDIA_MODE           normalize | passthrough
//	MAX_UPLOAD_BYTES     defaults to 10 MiB (normalize) or 50 MiB (passthrough)
//	ALLOWED_TYPES        comma separated MIME types
//	FOLDERS              comma separated folder names
//	DEFAULT_FOLDER, MAX_WIDTH, JPEG_QUALITY, MAX_BATCH_FILES
//	REPLICA_URL          memory:// or s3://bucket/prefix?region=..&endpoint=..
//	AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// Usage returns a description of the recognized environment variables
func Usage() string {
	var cfg ServerConfig
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
