// Package ocr reads scanned PDFs by rasterizing pages with pdftoppm and running tesseract.
package ocr

import (
	"context"
	"log/slog"
	"time"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Lang        string // tesseract language, default "spa"
	DPI         int    // rasterization DPI, default 300
	MaxPages    int    // 0 = no limit
	TessdataDir string

	PSM int // page segmentation mode; 0 leaves tesseract's default
}

// Result is the text recovered from a scanned document.
type Result struct {
	Text       string
	Pages      int
	Warnings   []string
	Confidence float32 // mean word confidence in 0..1, 0 when unknown
	Duration   time.Duration
}

type Reader struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewReader(cfg Config, logger *slog.Logger) *Reader {
	return newReader(cfg, execRunner{}, logger)
}

func newReader(cfg Config, runner Runner, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "spa"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Reader{cfg: cfg, runner: runner, logger: logger}
}

// ReadPDF OCRs every rendered page of the PDF at path, in page order.
func (r *Reader) ReadPDF(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	res, err := r.pdfToOCR(ctx, path)
	res.Duration = time.Since(start)
	if err != nil {
		r.logger.Error("ocr.pdf.failed", "path", path, "error", err)
		return res, err
	}
	r.logger.Info("ocr.pdf.ok",
		"path", path,
		"pages", res.Pages,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
