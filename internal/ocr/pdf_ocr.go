package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	reBoxNoise  = regexp.MustCompile(`[|│┃]+`)
	rePageIndex = regexp.MustCompile(`-(\d+)\.png$`)
)

func (r *Reader) pdfToOCR(ctx context.Context, path string) (Result, error) {
	var res Result
	tmpDir, err := os.MkdirTemp("", "studysift-ocr-*")
	if err != nil {
		return res, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.logger.Warn("ocr.tmp.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	args := []string{"-r", strconv.Itoa(r.cfg.DPI), "-png"}
	if r.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(r.cfg.MaxPages))
	}
	args = append(args, path, prefix)
	if _, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, args...); err != nil {
		return res, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	pages, _ := filepath.Glob(prefix + "-*.png")
	sortPages(pages)
	if len(pages) == 0 {
		return res, fmt.Errorf("pdftoppm rendered no pages")
	}

	var (
		parts   []string
		confSum float32
		confN   int
	)
	for _, img := range pages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		txt, err := r.tesseract(ctx, img)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}
		if strings.TrimSpace(txt) != "" {
			parts = append(parts, strings.TrimSpace(txt))
		}
		if c, ok := r.confidence(ctx, img); ok {
			confSum += c
			confN++
		}
	}
	res.Pages = len(pages)
	res.Text = strings.Join(parts, "\n")
	if confN > 0 {
		res.Confidence = confSum / float32(confN)
	}
	return res, nil
}

// sortPages orders pdftoppm outputs numerically; names are zero-padded only per document.
func sortPages(pages []string) {
	index := func(p string) int {
		m := rePageIndex.FindStringSubmatch(p)
		if m == nil {
			return 0
		}
		n, _ := strconv.Atoi(m[1])
		return n
	}
	sort.SliceStable(pages, func(i, j int) bool { return index(pages[i]) < index(pages[j]) })
}

func (r *Reader) tesseractArgs(img string, extra ...string) []string {
	args := []string{img, "stdout", "-l", r.cfg.Lang}
	if r.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(r.cfg.PSM))
	}
	if r.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", r.cfg.TessdataDir)
	}
	return append(args, extra...)
}

func (r *Reader) tesseract(ctx context.Context, img string) (string, error) {
	out, errb, err := r.runner.Run(ctx, r.cfg.Tesseract, r.tesseractArgs(img)...)
	if err != nil {
		return "", fmt.Errorf("tesseract %s: %w: %s", filepath.Base(img), err, truncate(string(errb), 512))
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}

// confidence runs tesseract in TSV mode and returns the mean word confidence in 0..1.
func (r *Reader) confidence(ctx context.Context, img string) (float32, bool) {
	out, _, err := r.runner.Run(ctx, r.cfg.Tesseract, r.tesseractArgs(img, "tsv")...)
	if err != nil {
		return 0, false
	}
	return meanConfidence(string(out))
}

func meanConfidence(tsv string) (float32, bool) {
	var sum, n float64
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		conf := cols[10]
		if conf == "" || conf == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(conf, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float32(sum / n / 100), true
}
