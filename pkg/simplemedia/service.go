package simplemedia

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia/metrics"
	"github.com/tendant/simple-media/pkg/simplemedia/objectkey"
	"github.com/tendant/simple-media/pkg/simplemedia/pathresolver"
	"github.com/tendant/simple-media/pkg/simplemedia/stats"
	"github.com/tendant/simple-media/pkg/simplemedia/taxonomy"
	"github.com/tendant/simple-media/pkg/simplemedia/transcode"
	"github.com/tendant/simple-media/pkg/simplemedia/urlstrategy"
	"github.com/tendant/simple-media/pkg/simplemedia/validate"
)

// DefaultMaxBatch is the number of files accepted by UploadBatch
const DefaultMaxBatch = 10

// Service defines the main interface for the simple-media library
type Service interface {
	// Upload validates, transcodes and persists one file
	Upload(ctx context.Context, req UploadRequest) (*StoredObject, error)

	// UploadBatch persists every file or none of them
	UploadBatch(ctx context.Context, reqs []UploadRequest) ([]*StoredObject, error)

	// Delete removes the object a public reference points at. Deleting an
	// absent object succeeds.
	Delete(ctx context.Context, reference string) error

	// Stats returns per-folder file counts and byte totals
	Stats(ctx context.Context) (*Snapshot, error)

	// Health reports whether the storage root is available
	Health(ctx context.Context) Health
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithTaxonomy sets the folder taxonomy
func WithTaxonomy(tax *taxonomy.Taxonomy) Option {
	return func(s *service) {
		s.taxonomy = tax
	}
}

// WithResolver sets the path resolver
func WithResolver(r *pathresolver.Resolver) Option {
	return func(s *service) {
		s.resolver = r
	}
}

// WithValidator sets the upload validator
func WithValidator(v *validate.Validator) Option {
	return func(s *service) {
		s.validator = v
	}
}

// WithTranscoder sets the transcode pipeline
func WithTranscoder(t transcode.Transcoder) Option {
	return func(s *service) {
		s.transcoder = t
	}
}

// WithGenerator overrides the identifier generator
func WithGenerator(g objectkey.Generator) Option {
	return func(s *service) {
		s.generator = g
	}
}

// WithBlobStore sets the authoritative store
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithReplica sets a store that receives best-effort copies of writes and
// deletes. name is used in logs and errors.
func WithReplica(name string, store BlobStore) Option {
	return func(s *service) {
		s.replicaName = name
		s.replica = store
	}
}

// WithStats overrides the statistics source
func WithStats(src StatsSource) Option {
	return func(s *service) {
		s.stats = src
	}
}

// WithURLStrategy sets how public paths become URLs
func WithURLStrategy(u urlstrategy.URLStrategy) Option {
	return func(s *service) {
		s.urls = u
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithMaxBatch sets the UploadBatch limit
func WithMaxBatch(n int) Option {
	return func(s *service) {
		s.maxBatch = n
	}
}

// New creates a new service instance with the provided options
func New(options ...Option) (Service, error) {
	s := &service{
		generator: objectkey.NewRandomGenerator(),
		urls:      urlstrategy.NewPathStrategy(),
		maxBatch:  DefaultMaxBatch,
		now:       time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.taxonomy == nil {
		return nil, errors.New("taxonomy is required")
	}
	if s.resolver == nil {
		return nil, errors.New("path resolver is required")
	}
	if s.validator == nil {
		return nil, errors.New("validator is required")
	}
	if s.transcoder == nil {
		return nil, errors.New("transcoder is required")
	}
	if s.store == nil {
		return nil, errors.New("blob store is required")
	}
	if s.maxBatch <= 0 {
		return nil, errors.New("max batch must be positive")
	}
	if s.stats == nil {
		s.stats = stats.New(s.resolver.Root(), s.taxonomy)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.startedAt = s.now()

	return s, nil
}
