package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Processor coordinates text extraction then structured extraction for one upload.
type Processor struct {
	Logger  *slog.Logger
	Text    *TextStage
	Extract *Orchestrator
	Options Options
}

func NewProcessor(logger *slog.Logger, text *TextStage, extract *Orchestrator, opts Options) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Text: text, Extract: extract, Options: opts}
}

// ProcessUpload runs both stages with the processor's default options.
func (p *Processor) ProcessUpload(ctx context.Context, ownerID, uploadID uuid.UUID) (*Result, error) {
	return p.ProcessUploadWith(ctx, ownerID, uploadID, p.Options)
}

// ProcessUploadWith stores fresh text for the upload, then extracts and persists its
// structured data.
func (p *Processor) ProcessUploadWith(ctx context.Context, ownerID, uploadID uuid.UUID, opts Options) (*Result, error) {
	txt, err := p.Text.Run(ctx, ownerID, uploadID)
	if err != nil {
		p.Logger.Error("processor.text.failed", "upload_id", uploadID, "err", err)
		return nil, err
	}
	p.Logger.Info("processor.text.ok",
		"upload_id", uploadID,
		"method", txt.Method,
		"pages", txt.Pages,
	)

	res, err := p.Extract.Extract(ctx, ownerID, uploadID, opts)
	if err != nil {
		p.Logger.Error("processor.extract.failed", "upload_id", uploadID, "err", err)
		return nil, err
	}
	p.Logger.Info("processor.extract.ok", "upload_id", uploadID, "mode", res.Mode)
	return res, nil
}
