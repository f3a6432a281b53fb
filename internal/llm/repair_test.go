package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/studysift/internal/common"
)

const validDoc = `{"asignatura":{"nombre":"Redes","grado":"GII"},"fechas":[{"titulo":"Examen","fecha":"2025-03-18"}],"profesores":[]}`

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestRepairFencedJSONRoundTrips(t *testing.T) {
	for _, raw := range []string{
		"```json\n" + validDoc + "\n```",
		"```\n" + validDoc + "\n```",
		"  " + validDoc + "  ",
		"Aquí tienes el JSON:\n```json\n" + validDoc + "\n```\nEspero que sirva.",
		"<think>razonando sobre el texto</think>\n" + validDoc,
	} {
		doc, err := ParseDocument(LenientRepairer{}, raw)
		require.NoError(t, err, raw)
		assert.Equal(t, decode(t, validDoc), decode(t, string(doc)), raw)
	}
}

func TestRepairFenceAndTrailingCommas(t *testing.T) {
	raw := "```json\n{\"asignatura\":{\"nombre\":\"Redes\",\"grado\":\"GII\",},\"fechas\":[{\"titulo\":\"Examen\",\"fecha\":\"2025-03-18\"},],\"profesores\":[],}\n```"
	doc, err := ParseDocument(LenientRepairer{}, raw)
	require.NoError(t, err)
	assert.Equal(t, decode(t, validDoc), decode(t, string(doc)))
}

func TestRepairSingleQuotes(t *testing.T) {
	raw := `{'asignatura': {'nombre': 'Redes', 'grado': 'GII'}, 'fechas': [{'titulo': 'Examen', 'fecha': '2025-03-18'}], 'profesores': []}`
	doc, err := ParseDocument(LenientRepairer{}, raw)
	require.NoError(t, err)
	assert.Equal(t, decode(t, validDoc), decode(t, string(doc)))
}

func TestRepairLeavesApostrophesInValidJSON(t *testing.T) {
	raw := `{"asignatura":{"nombre":"L'Aquila studies"}}`
	assert.Equal(t, raw, LenientRepairer{}.Repair(raw))
}

func TestRepairLeavesCommaBracketsInValidJSON(t *testing.T) {
	raw := `{"asignatura":{"condiciones_aprobado":"Nota >= 5 en [teoria, ]"}}`
	assert.Equal(t, raw, LenientRepairer{}.Repair(raw))

	doc, err := ParseDocument(LenientRepairer{}, "```json\n"+raw+"\n```")
	require.NoError(t, err)
	assert.Equal(t, decode(t, raw), decode(t, string(doc)))
}

func TestIsFailureText(t *testing.T) {
	assert.True(t, IsFailureText("Error: 500 - model crashed"))
	assert.True(t, IsFailureText("  Error al conectar con Ollama: refused"))
	assert.False(t, IsFailureText("Errores frecuentes: ninguno"))
	assert.False(t, IsFailureText("Resumen de la asignatura"))
}

func TestRepairFixesInvalidUTF8(t *testing.T) {
	raw := "{\"nombre\":\"caf\xe9\"}"
	doc, err := ParseDocument(nil, raw)
	require.NoError(t, err)
	assert.True(t, json.Valid(doc))
}

func TestParseDocumentAcceptsSequences(t *testing.T) {
	doc, err := ParseDocument(nil, "[{\"asignatura\":{\"nombre\":\"A\"}},{\"asignatura\":{\"nombre\":\"B\"}},]")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"asignatura":{"nombre":"A"}},{"asignatura":{"nombre":"B"}}]`, string(doc))
}

func TestParseDocumentMalformed(t *testing.T) {
	for _, raw := range []string{
		"Lo siento, no puedo ayudar con eso.",
		`{"asignatura": {"nombre": "X"`,
		`"just a string"`,
		`{"a":1} {"b":2}`,
	} {
		_, err := ParseDocument(LenientRepairer{}, raw)
		require.Error(t, err, raw)
		assert.Equal(t, common.KindMalformedGenerationOutput, common.KindOf(err), raw)
	}
}

func TestMalformedOutputCarriesRepairedText(t *testing.T) {
	_, err := ParseDocument(LenientRepairer{}, "```json\n{\"a\": [1,2,}\n```")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `{"a": [1,2}`)
}
