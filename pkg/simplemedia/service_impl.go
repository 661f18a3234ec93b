package simplemedia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-media/pkg/simplemedia/metrics"
	"github.com/tendant/simple-media/pkg/simplemedia/objectkey"
	"github.com/tendant/simple-media/pkg/simplemedia/pathresolver"
	"github.com/tendant/simple-media/pkg/simplemedia/taxonomy"
	"github.com/tendant/simple-media/pkg/simplemedia/transcode"
	"github.com/tendant/simple-media/pkg/simplemedia/urlstrategy"
	"github.com/tendant/simple-media/pkg/simplemedia/validate"
	"github.com/tendant/simple-media/pkg/utils"
)

const localBackend = "local"

// maxParallelPrepare bounds concurrent decodes within one batch; each decode
// may hold a full bitmap
const maxParallelPrepare = 2

// upload outcomes
const (
	outcomeStored   = "stored"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// delete outcomes
const (
	outcomeDeleted = "deleted"
	outcomeAbsent  = "absent"
)

// service implements the Service interface
type service struct {
	taxonomy    *taxonomy.Taxonomy
	resolver    *pathresolver.Resolver
	validator   *validate.Validator
	transcoder  transcode.Transcoder
	generator   objectkey.Generator
	store       BlobStore
	replica     BlobStore
	replicaName string
	stats       StatsSource
	urls        urlstrategy.URLStrategy
	metrics     *metrics.Metrics
	logger      *slog.Logger
	maxBatch    int
	now         func() time.Time
	startedAt   time.Time
}

// prepared is an upload that passed validation and transcoding and has a
// destination, but has not been written yet.
type prepared struct {
	req    UploadRequest
	folder string
	id     string
	out    *transcode.Output
	loc    pathresolver.Location
}

func (s *service) Upload(ctx context.Context, req UploadRequest) (*StoredObject, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		s.observeFailure(req.Folder, err)
		return nil, err
	}

	obj, err := s.commit(ctx, p)
	if err != nil {
		s.observeFailure(p.folder, err)
		return nil, err
	}

	s.metrics.ObserveUpload(obj.Folder, outcomeStored, obj.Size)
	return obj, nil
}

func (s *service) UploadBatch(ctx context.Context, reqs []UploadRequest) ([]*StoredObject, error) {
	if len(reqs) == 0 {
		return nil, &ValidationError{Field: "files", Err: ErrMissingFile}
	}
	if len(reqs) > s.maxBatch {
		return nil, &ValidationError{
			Field: "files",
			Err:   fmt.Errorf("%w: %d exceeds limit of %d", ErrTooManyFiles, len(reqs), s.maxBatch),
		}
	}

	// Every file is validated and transcoded before anything is written.
	pending := make([]*prepared, len(reqs))
	errs := make([]error, len(reqs))
	var g errgroup.Group
	g.SetLimit(min(runtime.GOMAXPROCS(0), maxParallelPrepare))
	for i := range reqs {
		g.Go(func() error {
			pending[i], errs[i] = s.prepare(ctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			s.observeFailure(reqs[i].Folder, err)
			return nil, fmt.Errorf("file %d: %w", i+1, err)
		}
	}

	stored := make([]*StoredObject, 0, len(pending))
	for _, p := range pending {
		obj, err := s.commit(ctx, p)
		if err != nil {
			s.rollback(ctx, stored)
			s.observeFailure(p.folder, err)
			return nil, err
		}
		stored = append(stored, obj)
	}

	for _, obj := range stored {
		s.metrics.ObserveUpload(obj.Folder, outcomeStored, obj.Size)
	}
	return stored, nil
}

// prepare runs validation, transcoding and destination resolution. Nothing
// touches the storage root.
func (s *service) prepare(ctx context.Context, req UploadRequest) (*prepared, error) {
	folder, err := s.validator.CheckFolder(req.Folder)
	if err != nil {
		return nil, &ValidationError{Field: "folder", Err: err}
	}
	if req.Body == nil {
		return nil, &ValidationError{Field: "file", Err: ErrMissingFile}
	}
	if err := s.validator.CheckSize(req.Size); err != nil {
		return nil, &ValidationError{Field: "file", Err: err}
	}
	if err := s.validator.CheckDeclaredType(req.ContentType); err != nil {
		return nil, &ValidationError{Field: "type", Err: err}
	}

	// One byte past the ceiling is enough to detect an oversize body.
	content, err := io.ReadAll(io.LimitReader(req.Body, s.validator.MaxBytes()+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	result, err := s.validator.Validate(validate.Input{
		Folder:       folder,
		DeclaredType: req.ContentType,
		DeclaredSize: req.Size,
		Content:      content,
	})
	if err != nil {
		return nil, &ValidationError{Field: validationField(err), Err: err}
	}

	mode := string(s.transcoder.Mode())
	start := time.Now()
	out, err := s.transcoder.Transcode(ctx, transcode.Source{
		Content:     content,
		ContentType: result.ContentType,
		FileName:    req.FileName,
		SniffedExt:  result.Extension,
	})
	s.metrics.ObserveTranscode(mode, time.Since(start))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TranscodeError{Mode: mode, Err: err}
	}

	id, err := s.generator.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identifier: %w", err)
	}

	loc, err := s.resolver.ResolveForWrite(result.Folder, id, out.Extension)
	if err != nil {
		// A write destination built from trusted parts never fails to
		// resolve; treat it as an internal fault, not a client error.
		return nil, fmt.Errorf("failed to resolve destination: %v", err)
	}

	return &prepared{
		req:    req,
		folder: result.Folder,
		id:     id,
		out:    out,
		loc:    loc,
	}, nil
}

// commit writes a prepared upload and mirrors it to the replica
func (s *service) commit(ctx context.Context, p *prepared) (*StoredObject, error) {
	size, err := s.store.Put(ctx, p.loc.Key, p.out.ContentType, bytes.NewReader(p.out.Content))
	if err != nil {
		return nil, &StorageError{Backend: localBackend, Key: p.loc.Key, Op: "put", Err: err}
	}

	s.mirrorPut(ctx, p.loc.Key, p.out.ContentType, p.out.Content)

	publicPath := s.resolver.PublicPath(p.loc)
	obj := &StoredObject{
		ID:           p.id,
		Folder:       p.folder,
		FileName:     p.loc.Name,
		Extension:    p.out.Extension,
		Key:          p.loc.Key,
		Path:         publicPath,
		URL:          s.urls.URL(publicPath),
		Size:         size,
		ContentType:  p.out.ContentType,
		OriginalName: utils.SanitizeFilename(p.req.FileName),
		Width:        p.out.Width,
		Height:       p.out.Height,
	}

	s.logger.Info("object stored",
		"folder", obj.Folder,
		"key", obj.Key,
		"size", obj.Size,
		"type", obj.ContentType,
	)
	return obj, nil
}

// rollback removes objects written by a batch that failed part way
func (s *service) rollback(ctx context.Context, stored []*StoredObject) {
	ctx = context.WithoutCancel(ctx)
	for _, obj := range stored {
		if err := s.store.Delete(ctx, obj.Key); err != nil && !errors.Is(err, ErrObjectNotFound) {
			s.logger.Error("batch rollback failed", "key", obj.Key, "error", err)
		}
		s.mirrorDelete(ctx, obj.Key)
	}
	if len(stored) > 0 {
		s.logger.Warn("batch rolled back", "objects", len(stored))
	}
}

func (s *service) Delete(ctx context.Context, reference string) error {
	if strings.TrimSpace(reference) == "" {
		s.metrics.ObserveDelete(outcomeRejected)
		return &ValidationError{Field: "reference", Err: ErrMissingReference}
	}

	loc, err := s.resolver.ResolveForDelete(reference)
	if err != nil {
		s.metrics.ObservePathRejection()
		s.metrics.ObserveDelete(outcomeRejected)
		s.logger.Warn("delete reference rejected",
			"audit", "path_escape",
			"reference", reference,
			"error", err,
		)
		return &PathSecurityError{Reference: reference, Err: err}
	}

	outcome := outcomeDeleted
	if err := s.store.Delete(ctx, loc.Key); err != nil {
		if !errors.Is(err, ErrObjectNotFound) {
			s.metrics.ObserveDelete(outcomeFailed)
			return &StorageError{Backend: localBackend, Key: loc.Key, Op: "delete", Err: err}
		}
		outcome = outcomeAbsent
	}
	s.mirrorDelete(ctx, loc.Key)

	s.metrics.ObserveDelete(outcome)
	s.logger.Info("object deleted", "key", loc.Key, "outcome", outcome)
	return nil
}

func (s *service) Stats(ctx context.Context) (*Snapshot, error) {
	snap, err := s.stats.Aggregate(ctx)
	if err != nil {
		return nil, &StorageError{Backend: localBackend, Op: "stats", Err: err}
	}
	return snap, nil
}

func (s *service) Health(ctx context.Context) Health {
	info, err := os.Stat(s.resolver.Root())
	mounted := err == nil && info.IsDir()

	status := HealthOK
	if !mounted {
		status = HealthDegraded
	}
	return Health{
		Status:         status,
		StorageMounted: mounted,
		UptimeSeconds:  int64(s.now().Sub(s.startedAt).Seconds()),
	}
}

func (s *service) mirrorPut(ctx context.Context, key, contentType string, content []byte) {
	if s.replica == nil {
		return
	}
	if _, err := s.replica.Put(ctx, key, contentType, bytes.NewReader(content)); err != nil {
		s.metrics.ObserveReplicaFailure("put")
		s.logger.Warn("replica put failed", "replica", s.replicaName, "key", key, "error", err)
	}
}

func (s *service) mirrorDelete(ctx context.Context, key string) {
	if s.replica == nil {
		return
	}
	if err := s.replica.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		s.metrics.ObserveReplicaFailure("delete")
		s.logger.Warn("replica delete failed", "replica", s.replicaName, "key", key, "error", err)
	}
}

// observeFailure records a failed upload. Folder labels are limited to
// taxonomy members.
func (s *service) observeFailure(folder string, err error) {
	label := folder
	if label == "" {
		label = s.taxonomy.Default()
	} else if !s.taxonomy.IsValid(label) {
		label = "invalid"
	}

	if KindOf(err).IsClientFault() {
		s.metrics.ObserveUpload(label, outcomeRejected, 0)
		s.logger.Info("upload rejected", "folder", label, "error", err)
		return
	}
	s.metrics.ObserveUpload(label, outcomeFailed, 0)
	s.logger.Error("upload failed", "folder", label, "error", err)
}

func validationField(err error) string {
	switch {
	case errors.Is(err, ErrInvalidFolder):
		return "folder"
	case errors.Is(err, ErrUnsupportedType):
		return "type"
	default:
		return "file"
	}
}
