package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	drawingMLNS     = "http://schemas.openxmlformats.org/drawingml/2006/main"
	relationshipsNS = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

var slidePath = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// extractPPTX collects the text of every text-bearing shape on every slide, in slide
// order, joining shapes with a blank line.
func (e *Extractor) extractPPTX(ctx context.Context, path string) (TextExtractionResult, error) {
	res := TextExtractionResult{Method: "pptx-xml"}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return res, fmt.Errorf("open pptx: %w", err)
	}
	defer func() {
		if cerr := zr.Close(); cerr != nil {
			e.logger.Warn("extract.pptx.close_error", "path", path, "error", cerr)
		}
	}()

	slides := findSlides(zr.File)
	if len(slides) == 0 {
		// An empty deck is a document without text, not a parser failure.
		return res, nil
	}
	if e.cfg.MaxPages > 0 && len(slides) > e.cfg.MaxPages {
		res.Warnings = append(res.Warnings, fmt.Sprintf("truncated to %d of %d slides", e.cfg.MaxPages, len(slides)))
		slides = slides[:e.cfg.MaxPages]
	}
	res.Pages = len(slides)

	var shapes []string
	for _, f := range slides {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rc, err := f.Open()
		if err != nil {
			return res, fmt.Errorf("%s: %w", f.Name, err)
		}
		texts, err := slideShapeTexts(rc)
		_ = rc.Close()
		if err != nil {
			return res, fmt.Errorf("%s: %w", f.Name, err)
		}
		shapes = append(shapes, texts...)
	}
	res.Text = strings.Join(shapes, "\n\n")
	return res, nil
}

// findSlides returns the slide parts in presentation order: the sldIdLst of
// ppt/presentation.xml when it resolves, otherwise the number in each part name.
func findSlides(files []*zip.File) []*zip.File {
	byName := make(map[string]*zip.File, len(files))
	for _, f := range files {
		byName[f.Name] = f
	}
	if ordered := listedSlides(byName); len(ordered) > 0 {
		return ordered
	}

	type numbered struct {
		n int
		f *zip.File
	}
	var found []numbered
	for _, f := range files {
		m := slidePath.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		found = append(found, numbered{n: n, f: f})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	out := make([]*zip.File, len(found))
	for i, s := range found {
		out[i] = s.f
	}
	return out
}

// listedSlides resolves the sldIdLst relationship ids to slide parts. It returns nil when
// the presentation part is missing, unreadable or names a slide that is not in the archive.
func listedSlides(byName map[string]*zip.File) []*zip.File {
	pres, rels := byName["ppt/presentation.xml"], byName["ppt/_rels/presentation.xml.rels"]
	if pres == nil || rels == nil {
		return nil
	}
	var ids []string
	err := walkXML(pres, func(t xml.StartElement) {
		if t.Name.Local != "sldId" {
			return
		}
		for _, a := range t.Attr {
			if a.Name.Local == "id" && a.Name.Space == relationshipsNS {
				ids = append(ids, a.Value)
			}
		}
	})
	if err != nil || len(ids) == 0 {
		return nil
	}
	targets := map[string]string{}
	err = walkXML(rels, func(t xml.StartElement) {
		if t.Name.Local != "Relationship" {
			return
		}
		var id, target string
		for _, a := range t.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		targets[id] = target
	})
	if err != nil {
		return nil
	}
	out := make([]*zip.File, 0, len(ids))
	for _, id := range ids {
		target, ok := targets[id]
		if !ok {
			return nil
		}
		name := strings.TrimPrefix(target, "/")
		if !strings.HasPrefix(name, "ppt/") {
			name = path.Join("ppt", name)
		}
		f := byName[name]
		if f == nil {
			return nil
		}
		out = append(out, f)
	}
	return out
}

func walkXML(f *zip.File, visit func(xml.StartElement)) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if t, ok := tok.(xml.StartElement); ok {
			visit(t)
		}
	}
}

// slideShapeTexts returns one string per shape that carries text. Paragraphs inside a shape
// are separated by a newline.
func slideShapeTexts(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		out        []string
		depth      int // nesting of shape elements
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case isShape(t.Name):
				if depth == 0 {
					paragraphs = paragraphs[:0]
					current.Reset()
				}
				depth++
			case depth > 0 && t.Name.Space == drawingMLNS && t.Name.Local == "t":
				inText = true
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			switch {
			case depth > 0 && t.Name.Space == drawingMLNS && t.Name.Local == "t":
				inText = false
			case depth > 0 && t.Name.Space == drawingMLNS && t.Name.Local == "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			case isShape(t.Name):
				depth--
				if depth == 0 {
					if current.Len() > 0 {
						paragraphs = append(paragraphs, current.String())
						current.Reset()
					}
					text := strings.Join(paragraphs, "\n")
					if strings.TrimSpace(text) != "" {
						out = append(out, text)
					}
				}
			}
		}
	}
	return out, nil
}

func isShape(n xml.Name) bool {
	return n.Local == "sp" || n.Local == "graphicFrame"
}
