package ingest

import (
	"context"
	"time"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath string
	PhotoID    int64
	ObjectKey  string
	SourceURL  string
	HashHex    string
	FileExt    string
	UploadedAt time.Time
	Err        string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// Ingestor stores original photos and creates their records.
type Ingestor interface {
	// IngestBytes stores an uploaded original.
	IngestBytes(ctx context.Context, filename string, content []byte, contentType string) (IngestionResult, error)
	// IngestPath ingests a single local file.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
