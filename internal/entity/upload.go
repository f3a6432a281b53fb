package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Upload is a source document registered for an owner, with its extraction artifacts.
type Upload struct {
	ID            uuid.UUID       `json:"id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	SourcePath    string          `json:"source_path"`
	Filename      string          `json:"filename"`
	FileExt       string          `json:"file_ext"`
	FileSize      int64           `json:"file_size"`
	ContentHash   string          `json:"content_hash"`
	UploadedAt    time.Time       `json:"uploaded_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Status        string          `json:"status"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	ExtractedText *string         `json:"extracted_text,omitempty"`
	ExtractedData json.RawMessage `json:"extracted_data,omitempty"`
}

// HasText reports whether a non-empty text artifact is stored.
func (u *Upload) HasText() bool {
	return u.ExtractedText != nil && *u.ExtractedText != ""
}
