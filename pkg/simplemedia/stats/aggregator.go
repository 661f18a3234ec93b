// Package stats computes per-folder file counts and byte totals by listing
// the storage root. Results are a best-effort snapshot: writes and deletes
// that race with a listing may or may not be counted.
package stats

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-media/pkg/simplemedia/taxonomy"
)

// FolderStats holds the totals of one folder
type FolderStats struct {
	Files int64 `json:"files"`
	Bytes int64 `json:"bytes"`
}

// Snapshot is the aggregate over every taxonomy folder
type Snapshot struct {
	Folders map[string]FolderStats `json:"folders"`
	Total   FolderStats            `json:"total"`
	TakenAt time.Time              `json:"takenAt"`
}

// Aggregator lists taxonomy folders under a storage root
type Aggregator struct {
	root        string
	folders     []string
	concurrency int
}

// New returns an Aggregator over the folders of tax
func New(root string, tax *taxonomy.Taxonomy) *Aggregator {
	return &Aggregator{
		root:        root,
		folders:     tax.Names(),
		concurrency: 4,
	}
}

// Aggregate lists every folder and sums the results. A folder that does
// not exist counts as empty.
func (a *Aggregator) Aggregate(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Folders: make(map[string]FolderStats, len(a.folders)),
		TakenAt: time.Now().UTC(),
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, name := range a.folders {
		g.Go(func() error {
			fstats, err := a.Folder(ctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			snap.Folders[name] = fstats
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, name := range a.folders {
		f := snap.Folders[name]
		snap.Total.Files += f.Files
		snap.Total.Bytes += f.Bytes
	}
	return snap, nil
}

// Folder lists one folder non-recursively. Subdirectories, dot files
// (in-flight temporary writes) and non-regular files are skipped.
func (a *Aggregator) Folder(ctx context.Context, name string) (FolderStats, error) {
	var out FolderStats
	if err := ctx.Err(); err != nil {
		return out, err
	}

	entries, err := os.ReadDir(filepath.Join(a.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("failed to list folder %s: %w", name, err)
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") || !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			// removed since the listing
			continue
		}
		if err != nil {
			return out, fmt.Errorf("failed to stat %s/%s: %w", name, entry.Name(), err)
		}
		out.Files++
		out.Bytes += info.Size()
	}
	return out, nil
}
