package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/ocr"
)

const (
	pNS = "http://schemas.openxmlformats.org/presentationml/2006/main"
	aNS = drawingMLNS
)

// shape renders a p:sp with one a:p per paragraph.
func shape(paragraphs ...string) string {
	var b strings.Builder
	b.WriteString(`<p:sp><p:txBody>`)
	for _, p := range paragraphs {
		fmt.Fprintf(&b, `<a:p><a:r><a:t>%s</a:t></a:r></a:p>`, p)
	}
	b.WriteString(`</p:txBody></p:sp>`)
	return b.String()
}

func slideXML(shapes ...string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><p:sld xmlns:p="%s" xmlns:a="%s"><p:cSld><p:spTree>%s</p:spTree></p:cSld></p:sld>`,
		pNS, aNS, strings.Join(shapes, ""))
}

func writePPTX(t *testing.T, slides map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, _ = w.Write([]byte(`<Types/>`))
	for name, body := range slides {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	path := filepath.Join(t.TempDir(), "deck.pptx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

// writePDF builds a small uncompressed PDF with one page per entry; empty entries get an
// empty content stream.
func writePDF(t *testing.T, pages ...string) string {
	t.Helper()
	var objs []string
	n := len(pages)
	// 1: catalog, 2: pages, 3: font, then page/content pairs.
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		}
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestExtractPPTXJoinsShapesAcrossSlides(t *testing.T) {
	path := writePPTX(t, map[string]string{
		"ppt/slides/slide2.xml":  slideXML(shape("Examen final", "18 de marzo")),
		"ppt/slides/slide1.xml":  slideXML(shape("Redes de Computadores"), shape(""), shape("Grupo T1")),
		"ppt/slides/slide10.xml": slideXML(shape("Tutorías")),
	})

	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Redes de Computadores\n\nGrupo T1\n\nExamen final\n18 de marzo\n\nTutorías", res.Text)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, "PPTX", res.SourceType)
}

func TestExtractPPTXFollowsPresentationOrder(t *testing.T) {
	path := writePPTX(t, map[string]string{
		"ppt/slides/slide1.xml": slideXML(shape("Portada")),
		"ppt/slides/slide2.xml": slideXML(shape("Calendario")),
		"ppt/slides/slide3.xml": slideXML(shape("Profesorado")),
		"ppt/presentation.xml": fmt.Sprintf(`<p:presentation xmlns:p="%s" xmlns:r="%s"><p:sldIdLst>`+
			`<p:sldId id="256" r:id="rId4"/><p:sldId id="257" r:id="rId2"/><p:sldId id="258" r:id="rId3"/>`+
			`</p:sldIdLst></p:presentation>`, pNS, relationshipsNS),
		"ppt/_rels/presentation.xml.rels": `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId2" Target="slides/slide1.xml"/>` +
			`<Relationship Id="rId3" Target="slides/slide2.xml"/>` +
			`<Relationship Id="rId4" Target="/ppt/slides/slide3.xml"/>` +
			`</Relationships>`,
	})

	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Profesorado\n\nPortada\n\nCalendario", res.Text)
	assert.Equal(t, 3, res.Pages)
}

func TestExtractPPTXUnresolvedListFallsBackToNumbers(t *testing.T) {
	path := writePPTX(t, map[string]string{
		"ppt/slides/slide2.xml": slideXML(shape("dos")),
		"ppt/slides/slide1.xml": slideXML(shape("uno")),
		"ppt/presentation.xml": fmt.Sprintf(`<p:presentation xmlns:p="%s" xmlns:r="%s"><p:sldIdLst>`+
			`<p:sldId id="256" r:id="rId9"/></p:sldIdLst></p:presentation>`, pNS, relationshipsNS),
		"ppt/_rels/presentation.xml.rels": `<Relationships/>`,
	})

	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "uno\n\ndos", res.Text)
}

func TestExtractEmptyDocumentsFailWithNoText(t *testing.T) {
	pptx := writePPTX(t, map[string]string{"ppt/slides/slide1.xml": slideXML(shape("   "))})
	noSlides := writePPTX(t, map[string]string{"ppt/presentation.xml": "<p:presentation/>"})
	pdf := writePDF(t, "")

	for _, path := range []string{pptx, noSlides, pdf} {
		_, err := NewExtractor(Config{}, nil).Extract(context.Background(), path)
		require.Error(t, err, path)
		assert.Equal(t, common.KindNoTextExtracted, common.KindOf(err), path)
	}
}

func TestExtractPDFSkipsEmptyPages(t *testing.T) {
	path := writePDF(t, "Calendario de examenes", "", "Aula A1.2")

	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pages)
	assert.Contains(t, res.Text, "Calendario de examenes")
	assert.Contains(t, res.Text, "Aula A1.2")
	assert.Less(t, strings.Index(res.Text, "Calendario"), strings.Index(res.Text, "Aula"))
}

func TestExtractUnsupportedExtension(t *testing.T) {
	_, err := NewExtractor(Config{}, nil).Extract(context.Background(), "/tmp/photo.jpg")
	require.Error(t, err)
	assert.Equal(t, common.KindUnsupportedFileType, common.KindOf(err))
	assert.Contains(t, err.Error(), "'.jpg'")
}

func TestExtractCorruptFilesAreBackendErrors(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"broken.pdf", "broken.pptx"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("definitely not a document"), 0o600))

		_, err := NewExtractor(Config{}, nil).Extract(context.Background(), path)
		require.Error(t, err, name)
		assert.Equal(t, common.KindExtractionBackendError, common.KindOf(err), name)
	}
}

func TestExtractPPTXMaxPages(t *testing.T) {
	path := writePPTX(t, map[string]string{
		"ppt/slides/slide1.xml": slideXML(shape("uno")),
		"ppt/slides/slide2.xml": slideXML(shape("dos")),
	})
	res, err := NewExtractor(Config{MaxPages: 1}, nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "uno", res.Text)
	assert.Len(t, res.Warnings, 1)
}

type stubScanned struct {
	res   ocr.Result
	err   error
	calls int
}

func (s *stubScanned) ReadPDF(context.Context, string) (ocr.Result, error) {
	s.calls++
	return s.res, s.err
}

func TestExtractScannedPDFFallsBackToOCR(t *testing.T) {
	scanned := &stubScanned{res: ocr.Result{Text: "Examen final 2025-06-10", Pages: 1}}
	res, err := NewExtractor(Config{Scanned: scanned}, nil).Extract(context.Background(), writePDF(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, "Examen final 2025-06-10", res.Text)

	withText := &stubScanned{}
	res, err = NewExtractor(Config{Scanned: withText}, nil).Extract(context.Background(), writePDF(t, "Temario"))
	require.NoError(t, err)
	assert.Equal(t, "pdf-text", res.Method)
	assert.Zero(t, withText.calls)
}

func TestExtractScannedPDFStillEmpty(t *testing.T) {
	_, err := NewExtractor(Config{Scanned: &stubScanned{}}, nil).Extract(context.Background(), writePDF(t, ""))
	assert.Equal(t, common.KindNoTextExtracted, common.KindOf(err))

	_, err = NewExtractor(Config{Scanned: &stubScanned{err: fmt.Errorf("tesseract missing")}}, nil).
		Extract(context.Background(), writePDF(t, ""))
	assert.Equal(t, common.KindExtractionBackendError, common.KindOf(err))
}
