package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types published by the extraction pipeline.
const (
	TypeExtractionCompleted = "extraction.completed"
	TypeExtractionFailed    = "extraction.failed"
)

// Event is the payload published for each finished extraction.
type Event struct {
	Type      string    `json:"type"`
	UploadID  uuid.UUID `json:"upload_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Mode      string    `json:"mode,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events. Delivery failures never fail the operation that emitted them.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events, logging them at debug level.
type Nop struct {
	Logger *slog.Logger
}

func (n Nop) Publish(_ context.Context, ev Event) error {
	if n.Logger != nil {
		n.Logger.Debug("events.nop", "type", ev.Type, "upload_id", ev.UploadID)
	}
	return nil
}
