package llm

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/studysift/internal/common"
)

// Repairer turns raw model output into candidate JSON text.
type Repairer interface {
	Repair(raw string) string
}

// LenientRepairer applies regex-level fixes for the defects models commonly produce.
// Single-quote conversion is lossy for text containing apostrophes.
type LenientRepairer struct{}

var (
	reThink         = regexp.MustCompile(`(?s)<think>.*?</think>`)
	reFenced        = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")
	reFenceOpen     = regexp.MustCompile("^```[a-zA-Z]*\\s*")
	reFenceClose    = regexp.MustCompile("\\s*```$")
	reTrailingComma = regexp.MustCompile(`,\s*([\]}])`)
	reSingleQuoted  = regexp.MustCompile(`'((?:[^'\\\n]|\\.)*)'`)
)

func (LenientRepairer) Repair(raw string) string {
	s := strings.TrimSpace(raw)

	// 1) reasoning blocks and code fences
	s = strings.TrimSpace(reThink.ReplaceAllString(s, ""))
	if m := reFenced.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = reFenceOpen.ReplaceAllString(s, "")
	s = reFenceClose.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	// 2) and 3) only touch text that is not already valid JSON
	if !json.Valid([]byte(s)) {
		s = reTrailingComma.ReplaceAllString(s, "$1")
	}
	if !json.Valid([]byte(s)) {
		s = reSingleQuoted.ReplaceAllStringFunc(s, func(m string) string {
			inner := m[1 : len(m)-1]
			inner = strings.ReplaceAll(inner, `\'`, `'`)
			inner = strings.ReplaceAll(inner, `"`, `\"`)
			return `"` + inner + `"`
		})
	}

	// 4) valid UTF-8
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return s
}

// ParseDocument repairs raw with r and decodes it. Failure is MalformedGenerationOutput
// carrying the repaired text.
func ParseDocument(r Repairer, raw string) (json.RawMessage, error) {
	if r == nil {
		r = LenientRepairer{}
	}
	repaired := r.Repair(raw)
	var v any
	dec := json.NewDecoder(strings.NewReader(repaired))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, common.MalformedGenerationOutput(repaired, err)
	}
	if dec.More() {
		return nil, common.MalformedGenerationOutput(repaired, errTrailingData)
	}
	switch v.(type) {
	case map[string]any, []any:
	default:
		return nil, common.MalformedGenerationOutput(repaired, errNotObject)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(repaired)); err != nil {
		return nil, common.MalformedGenerationOutput(repaired, err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

var (
	errTrailingData = jsonError("unexpected data after JSON value")
	errNotObject    = jsonError("expected a JSON object or array")
)

type jsonError string

func (e jsonError) Error() string { return string(e) }
