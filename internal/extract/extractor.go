package extract

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/studysift/constants"
	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/ocr"
)

type Config struct {
	MaxPages int // 0 = no limit
	// Scanned, when set, reads PDFs that carry no text layer.
	Scanned ScannedPDFReader
}

// ScannedPDFReader recovers text from image-only PDFs.
type ScannedPDFReader interface {
	ReadPDF(ctx context.Context, path string) (ocr.Result, error)
}

// Extractor turns PDF and PPTX documents into plain text.
type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	kind, ok := constants.KindForExt(ext)
	if !ok {
		e.logger.Warn("extract.unsupported", "path", path, "ext", ext)
		return TextExtractionResult{}, common.UnsupportedFileType(ext)
	}

	var (
		res TextExtractionResult
		err error
	)
	switch kind {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
		if err == nil && strings.TrimSpace(res.Text) == "" && e.cfg.Scanned != nil {
			res, err = e.extractScanned(ctx, path, res)
		}
	case constants.PPTX:
		res, err = e.extractPPTX(ctx, path)
	}
	res.SourceType = string(kind)
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("extract.failed", "path", path, "kind", kind, "error", err)
		return res, common.ExtractionBackendError(string(kind), err)
	}
	if strings.TrimSpace(res.Text) == "" {
		e.logger.Warn("extract.empty", "path", path, "kind", kind, "pages", res.Pages)
		return res, common.NoTextExtracted(filepath.Base(path))
	}

	e.logger.Info("extract.ok",
		"path", path,
		"kind", kind,
		"pages", res.Pages,
		"chars", len(res.Text),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extractScanned(ctx context.Context, path string, textLayer TextExtractionResult) (TextExtractionResult, error) {
	e.logger.Info("extract.pdf.no_text_layer", "path", path, "pages", textLayer.Pages)
	scanned, err := e.cfg.Scanned.ReadPDF(ctx, path)
	if err != nil {
		return textLayer, err
	}
	return TextExtractionResult{
		Text:     scanned.Text,
		Pages:    scanned.Pages,
		Method:   "pdf-ocr",
		Warnings: append(textLayer.Warnings, scanned.Warnings...),
	}, nil
}
