package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/metrics"
	"github.com/tendant/simple-media/pkg/simplemedia/pathresolver"
	fsstorage "github.com/tendant/simple-media/pkg/simplemedia/storage/fs"
	memorystorage "github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
	s3storage "github.com/tendant/simple-media/pkg/simplemedia/storage/s3"
	"github.com/tendant/simple-media/pkg/simplemedia/taxonomy"
	"github.com/tendant/simple-media/pkg/simplemedia/transcode"
	"github.com/tendant/simple-media/pkg/simplemedia/urlstrategy"
	"github.com/tendant/simple-media/pkg/simplemedia/validate"
)

// Components are the collaborators wired from a ServerConfig
type Components struct {
	Service  simplemedia.Service
	Taxonomy *taxonomy.Taxonomy
	Resolver *pathresolver.Resolver
}

// BuildService provisions the storage root and wires a Service. m may be nil.
func (c *ServerConfig) BuildService(logger *slog.Logger, m *metrics.Metrics) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tax, err := taxonomy.New(c.Folders, c.DefaultFolder)
	if err != nil {
		return nil, fmt.Errorf("failed to build taxonomy: %w", err)
	}
	if err := tax.Provision(c.StorageRoot); err != nil {
		return nil, fmt.Errorf("failed to provision storage root: %w", err)
	}

	resolver, err := pathresolver.New(c.StorageRoot, c.PublicMount, tax,
		pathresolver.WithPublicBaseURL(c.PublicBaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build path resolver: %w", err)
	}

	validator, err := validate.New(validate.Policy{
		AllowedTypes: c.AllowedTypes,
		MaxBytes:     c.MaxUploadBytes,
	}, tax)
	if err != nil {
		return nil, fmt.Errorf("failed to build validator: %w", err)
	}

	store, err := fsstorage.New(fsstorage.Config{BaseDir: resolver.Root()})
	if err != nil {
		return nil, fmt.Errorf("failed to build storage backend: %w", err)
	}

	urls, err := urlstrategy.New(c.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to build url strategy: %w", err)
	}

	options := []simplemedia.Option{
		simplemedia.WithTaxonomy(tax),
		simplemedia.WithResolver(resolver),
		simplemedia.WithValidator(validator),
		simplemedia.WithTranscoder(c.buildTranscoder()),
		simplemedia.WithBlobStore(store),
		simplemedia.WithURLStrategy(urls),
		simplemedia.WithMaxBatch(c.MaxBatchFiles),
		simplemedia.WithMetrics(m),
		simplemedia.WithLogger(logger),
	}

	replicaName, replica, err := c.buildReplica()
	if err != nil {
		return nil, fmt.Errorf("failed to build replica: %w", err)
	}
	if replica != nil {
		options = append(options, simplemedia.WithReplica(replicaName, replica))
		logger.Info("replica enabled", "replica", replicaName)
	}

	svc, err := simplemedia.New(options...)
	if err != nil {
		return nil, err
	}

	return &Components{
		Service:  svc,
		Taxonomy: tax,
		Resolver: resolver,
	}, nil
}

func (c *ServerConfig) buildTranscoder() transcode.Transcoder {
	if c.Mode() == transcode.ModePassthrough {
		return transcode.NewPassthrough()
	}
	return transcode.NewNormalizer(c.MaxWidth, c.JPEGQuality)
}

// buildReplica creates the replica store named by ReplicaURL, if any
func (c *ServerConfig) buildReplica() (string, simplemedia.BlobStore, error) {
	switch {
	case c.ReplicaURL == "":
		return "", nil, nil
	case strings.HasPrefix(c.ReplicaURL, "memory://"):
		return "memory", memorystorage.New(), nil
	case strings.HasPrefix(c.ReplicaURL, "s3://"):
		s3cfg, err := s3storage.ConfigFromURL(c.ReplicaURL)
		if err != nil {
			return "", nil, err
		}
		s3cfg.AccessKeyID = c.AWSAccessKeyID
		s3cfg.SecretAccessKey = c.AWSSecretAccessKey
		store, err := s3storage.New(s3cfg)
		if err != nil {
			return "", nil, err
		}
		return "s3:" + s3cfg.Bucket, store, nil
	default:
		return "", nil, fmt.Errorf("unsupported REPLICA_URL format: %s", c.ReplicaURL)
	}
}
