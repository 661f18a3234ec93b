package config

import (
	"fmt"

	"github.com/tendant/simple-media/pkg/simplemedia/transcode"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithAPIKey sets the shared secret
func WithAPIKey(key string) Option {
	return func(c *ServerConfig) error {
		c.APIKey = key
		return nil
	}
}

// WithStorageRoot sets the storage root directory
func WithStorageRoot(root string) Option {
	return func(c *ServerConfig) error {
		if root == "" {
			return fmt.Errorf("storage root cannot be empty")
		}
		c.StorageRoot = root
		return nil
	}
}

// WithPublicMount sets the public prefix stored objects are served under
func WithPublicMount(mount string) Option {
	return func(c *ServerConfig) error {
		c.PublicMount = mount
		return nil
	}
}

// WithPublicBaseURL makes returned URLs absolute
func WithPublicBaseURL(base string) Option {
	return func(c *ServerConfig) error {
		c.PublicBaseURL = base
		return nil
	}
}

// WithMediaMode sets normalize or passthrough mode
func WithMediaMode(mode transcode.Mode) Option {
	return func(c *ServerConfig) error {
		if _, err := transcode.ParseMode(string(mode)); err != nil {
			return err
		}
		c.MediaMode = string(mode)
		return nil
	}
}

// WithMaxUploadBytes sets the size ceiling
func WithMaxUploadBytes(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max upload bytes must be positive, got: %d", n)
		}
		c.MaxUploadBytes = n
		return nil
	}
}

// WithAllowedTypes replaces the allow-list
func WithAllowedTypes(types ...string) Option {
	return func(c *ServerConfig) error {
		c.AllowedTypes = append([]string(nil), types...)
		return nil
	}
}

// WithFolders replaces the taxonomy
func WithFolders(defaultFolder string, folders ...string) Option {
	return func(c *ServerConfig) error {
		if len(folders) == 0 {
			return fmt.Errorf("at least one folder is required")
		}
		c.Folders = append([]string(nil), folders...)
		c.DefaultFolder = defaultFolder
		return nil
	}
}

// WithNormalize sets the normalize threshold and quality
func WithNormalize(maxWidth, quality int) Option {
	return func(c *ServerConfig) error {
		c.MaxWidth = maxWidth
		c.JPEGQuality = quality
		return nil
	}
}

// WithMaxBatchFiles sets the batch upload limit
func WithMaxBatchFiles(n int) Option {
	return func(c *ServerConfig) error {
		c.MaxBatchFiles = n
		return nil
	}
}

// WithReplicaURL configures the replica store
func WithReplicaURL(raw string) Option {
	return func(c *ServerConfig) error {
		c.ReplicaURL = raw
		return nil
	}
}
