package simplemedia

import (
	"io"

	"github.com/tendant/simple-media/pkg/simplemedia/stats"
)

// StoredObject describes a persisted object. It is reconstructed from the
// write, never loaded from a record.
type StoredObject struct {
	ID           string `json:"id"`
	Folder       string `json:"folder"`
	FileName     string `json:"filename"`
	Extension    string `json:"-"`
	Key          string `json:"-"`
	Path         string `json:"path"`
	URL          string `json:"url"`
	Size         int64  `json:"size"`
	ContentType  string `json:"type"`
	OriginalName string `json:"originalName"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}

// UploadRequest is one incoming file
type UploadRequest struct {
	Folder      string    // empty selects the default folder
	FileName    string    // client-supplied name, never used for the stored name
	ContentType string    // client-declared type
	Size        int64     // client-declared size, negative when unknown
	Body        io.Reader // payload
}

// Health describes the service state
type Health struct {
	Status         string `json:"status"`
	StorageMounted bool   `json:"storageMounted"`
	UptimeSeconds  int64  `json:"uptimeSeconds"`
}

const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// Snapshot is a point-in-time storage summary
type Snapshot = stats.Snapshot

// FolderStats holds the totals of one folder
type FolderStats = stats.FolderStats
