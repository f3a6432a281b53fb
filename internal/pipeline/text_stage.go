package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/studysift/constants"
	"github.com/joseph-ayodele/studysift/internal/extract"
	"github.com/joseph-ayodele/studysift/internal/repository"
)

// TextStage runs raw text extraction for a registered upload and stores the text.
type TextStage struct {
	Uploads       repository.UploadRepository
	TextExtractor extract.TextExtractor
	Logger        *slog.Logger
}

func NewTextStage(uploads repository.UploadRepository, tx extract.TextExtractor, logger *slog.Logger) *TextStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextStage{Uploads: uploads, TextExtractor: tx, Logger: logger}
}

// Run extracts the upload's text and marks it TEXT_OK. Extraction failures mark the upload
// FAILED and are returned unchanged; previously stored text is kept.
func (s *TextStage) Run(ctx context.Context, ownerID, uploadID uuid.UUID) (extract.TextExtractionResult, error) {
	row, err := s.Uploads.GetByID(ctx, ownerID, uploadID)
	if err != nil {
		return extract.TextExtractionResult{}, err
	}
	if err := s.Uploads.SetStatus(ctx, row.ID, constants.StatusRunning); err != nil {
		return extract.TextExtractionResult{}, err
	}

	res, err := s.TextExtractor.Extract(ctx, row.SourcePath)
	if err != nil {
		s.Logger.Error("text_stage.failed", "upload_id", row.ID, "path", row.SourcePath, "error", err)
		if ferr := s.Uploads.MarkFailed(ctx, row.ID, err.Error()); ferr != nil {
			s.Logger.Warn("text_stage.mark_failed_error", "upload_id", row.ID, "error", ferr)
		}
		return res, err
	}

	if err := s.Uploads.SaveText(ctx, row.ID, res.Text); err != nil {
		return res, err
	}
	s.Logger.Info("text_stage.ok",
		"upload_id", row.ID,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
	)
	return res, nil
}
