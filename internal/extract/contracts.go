package extract

import (
	"context"
	"time"
)

// TextExtractor is stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int    // pages for PDF, slides for PPTX
	SourceType string // constants.PDF | constants.PPTX
	Method     string // "pdf-text" | "pptx-xml"
	Duration   time.Duration
	Warnings   []string
}
