package calendar

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/studysift/internal/entity"
)

// DateSource loads an owner's exam date.
type DateSource interface {
	GetExamDate(ctx context.Context, ownerID, id uuid.UUID) (*entity.DueDate, error)
}

// Exporter pushes stored exam dates to a Sink.
type Exporter struct {
	dates  DateSource
	sink   Sink
	logger *slog.Logger
}

func NewExporter(dates DateSource, sink Sink, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{dates: dates, sink: sink, logger: logger}
}

func (e *Exporter) ExportDate(ctx context.Context, ownerID, dateID uuid.UUID) (ExportResult, error) {
	dd, err := e.dates.GetExamDate(ctx, ownerID, dateID)
	if err != nil {
		return ExportResult{}, err
	}
	res, err := e.sink.Export(ctx, EventFor(*dd))
	if err != nil {
		e.logger.Error("calendar.export.failed", "date_id", dateID, "error", err)
		return ExportResult{}, err
	}
	return res, nil
}
