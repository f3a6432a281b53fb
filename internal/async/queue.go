package async

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/studysift/internal/pipeline"
)

// Job asks for one upload to be processed end to end.
type Job struct {
	OwnerID     uuid.UUID
	UploadID    uuid.UUID
	Options     pipeline.Options
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// UploadProcessor is the work a queue worker performs for a job.
type UploadProcessor interface {
	ProcessUploadWith(ctx context.Context, ownerID, uploadID uuid.UUID, opts pipeline.Options) (*pipeline.Result, error)
}
