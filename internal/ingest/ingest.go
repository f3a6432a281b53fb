package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string    `json:"source_path"`
	UploadID     uuid.UUID `json:"upload_id"`
	Deduplicated bool      `json:"deduplicated"`
	HashHex      string    `json:"hash"`
	FileExt      string    `json:"file_ext"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Err          string    `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
}

// Ingestor registers source documents as uploads.
type Ingestor interface {
	// IngestPath registers a single file.
	IngestPath(ctx context.Context, ownerID uuid.UUID, path string) (IngestionResult, error)
	// IngestDirectory registers every supported file under root.
	IngestDirectory(ctx context.Context, ownerID uuid.UUID, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
