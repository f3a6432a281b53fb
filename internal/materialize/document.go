package materialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// field decodes any scalar as a string; null and missing values decode to "".
type field string

func (f *field) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = field(s)
	case '{', '[':
		return fmt.Errorf("expected a scalar, got %s", b[:1])
	default:
		// numbers and booleans keep their literal text
		if _, err := strconv.ParseFloat(string(b), 64); err != nil && string(b) != "true" && string(b) != "false" {
			return fmt.Errorf("invalid scalar %s", b)
		}
		*f = field(b)
	}
	return nil
}

type courseDoc struct {
	Nombre              field `json:"nombre"`
	Grado               field `json:"grado"`
	Departamento        field `json:"departamento"`
	Universidad         field `json:"universidad"`
	CondicionesAprobado field `json:"condiciones_aprobado"`
}

type sessionDoc struct {
	Grupo field `json:"grupo"`
	Tipo  field `json:"tipo"`
	Hora  field `json:"hora"`
	Aula  field `json:"aula"`
	Dia   field `json:"dia"`
}

type dateDoc struct {
	Titulo field `json:"titulo"`
	Fecha  field `json:"fecha"`
}

type instructorDoc struct {
	Nombre   field `json:"nombre"`
	Despacho field `json:"despacho"`
	Enlace   field `json:"enlace"`
	// Horario stays raw so an explicit null can be told apart from a missing key.
	Horario json.RawMessage `json:"horario"`
}

type entryDoc struct {
	Asignatura courseDoc       `json:"asignatura"`
	Horarios   []sessionDoc    `json:"horarios"`
	Fechas     []dateDoc       `json:"fechas"`
	Profesores []instructorDoc `json:"profesores"`
}

// decodeEntries accepts one document or an array of documents.
func decodeEntries(doc []byte) ([]entryDoc, error) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 || bytes.Equal(doc, []byte("null")) {
		return nil, nil
	}
	switch doc[0] {
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(doc, &raws); err != nil {
			return nil, err
		}
		out := make([]entryDoc, 0, len(raws))
		for i, raw := range raws {
			var e entryDoc
			if err := decodeEntry(raw, &e); err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			out = append(out, e)
		}
		return out, nil
	case '{':
		var e entryDoc
		if err := decodeEntry(doc, &e); err != nil {
			return nil, err
		}
		return []entryDoc{e}, nil
	}
	return nil, fmt.Errorf("expected a JSON object or array")
}

func decodeEntry(raw json.RawMessage, e *entryDoc) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return fmt.Errorf("expected a JSON object")
	}
	return json.Unmarshal(raw, e)
}

// horarioState classifies an instructor's embedded session value.
type horarioState int

const (
	horarioAbsent horarioState = iota
	horarioNull
	horarioPresent
)

func (d instructorDoc) horario() (horarioState, *sessionDoc, error) {
	raw := bytes.TrimSpace(d.Horario)
	if len(raw) == 0 {
		return horarioAbsent, nil, nil
	}
	if bytes.Equal(raw, []byte("null")) {
		return horarioNull, nil, nil
	}
	if raw[0] != '{' {
		return horarioAbsent, nil, fmt.Errorf("horario must be an object or null")
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return horarioAbsent, nil, err
	}
	if len(m) == 0 {
		return horarioAbsent, nil, nil
	}
	var s sessionDoc
	if err := json.Unmarshal(raw, &s); err != nil {
		return horarioAbsent, nil, err
	}
	return horarioPresent, &s, nil
}
