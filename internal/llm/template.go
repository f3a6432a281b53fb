package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/joseph-ayodele/studysift/db/schema"
)

// TemplateSource provides the extraction template, the JSON document whose keys every
// result must reproduce.
type TemplateSource interface {
	Template(ctx context.Context) ([]byte, error)
}

// FileTemplate reads the template from disk on every call so edits apply without a restart.
// An empty Path falls back to the built-in template.
type FileTemplate struct {
	Path string
}

func (f FileTemplate) Template(_ context.Context) ([]byte, error) {
	if f.Path == "" {
		return compactTemplate(schema.ExtractionTemplate)
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", f.Path, err)
	}
	return compactTemplate(b)
}

// StaticTemplate serves fixed bytes.
type StaticTemplate []byte

func (s StaticTemplate) Template(_ context.Context) ([]byte, error) {
	return compactTemplate(s)
}

func compactTemplate(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return nil, fmt.Errorf("template is not valid JSON: %w", err)
	}
	return buf.Bytes(), nil
}

var reISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// DeriveSchema builds a JSON Schema from a template: every key is required, value types
// follow the template, nested objects may be null, and strings shaped like YYYY-MM-DD must
// keep that shape. The result accepts one document or an array of them.
func DeriveSchema(template []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(template, &v); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	root := deriveNode(v, true)
	return map[string]any{
		"anyOf": []any{
			root,
			map[string]any{"type": "array", "items": root},
		},
	}, nil
}

func deriveNode(v any, root bool) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		props := make(map[string]any, len(t))
		for k, child := range t {
			keys = append(keys, k)
			props[k] = deriveNode(child, false)
		}
		sort.Strings(keys)
		node := map[string]any{"type": "object", "required": keys, "properties": props}
		if !root {
			node["type"] = []any{"object", "null"}
		}
		return node
	case []any:
		node := map[string]any{"type": "array"}
		if len(t) > 0 {
			item := deriveNode(t[0], false)
			if item["type"] != nil {
				// array items are never null
				if types, ok := item["type"].([]any); ok && len(types) == 2 {
					item["type"] = types[0]
				}
			}
			node["items"] = item
		}
		return node
	case string:
		if reISODate.MatchString(t) {
			return map[string]any{"type": "string", "pattern": reISODate.String()}
		}
		return map[string]any{"type": "string"}
	case float64:
		return map[string]any{"type": "number"}
	case bool:
		return map[string]any{"type": "boolean"}
	}
	return map[string]any{}
}
