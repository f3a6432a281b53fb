package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testTemplate = []byte(`{"asignatura":{"nombre":"X"},"fechas":[{"titulo":"T","fecha":"2025-01-01"}]}`)

func TestSummaryPromptCarriesTextAndRetentionRules(t *testing.T) {
	p := BuildSummaryPrompt("  Guía docente de Redes  ")
	assert.Contains(t, p, "Guía docente de Redes")
	for _, frag := range []string{"asignatura", "grado", "departamento", "universidad", "aprobar", "fechas", "horarios", "profesor", "Descarta"} {
		assert.Contains(t, p, frag)
	}
}

func TestStructurePromptCarriesSchemaRulesAndInput(t *testing.T) {
	p := BuildStructurePrompt("Examen el 18 de marzo de 2025", testTemplate, false)
	assert.Contains(t, p, string(testTemplate))
	assert.Contains(t, p, "Examen el 18 de marzo de 2025")
	assert.Contains(t, p, "YYYY-MM-DD")
	assert.Contains(t, p, "sin bloques de código")
	assert.Contains(t, p, "Conserva todas las claves")
	assert.NotContains(t, p, "Texto resumido")

	summarized := BuildStructurePrompt("resumen", testTemplate, true)
	assert.Contains(t, summarized, "Texto resumido:\nresumen")
}

func TestDirectPromptsSplitSchemaAndText(t *testing.T) {
	sys := BuildDirectSystemInstruction(testTemplate)
	assert.Contains(t, sys, string(testTemplate))
	assert.Contains(t, sys, "YYYY-MM-DD")

	p := BuildDirectPrompt("texto de la guía")
	assert.Contains(t, p, "texto de la guía")
	assert.NotContains(t, p, string(testTemplate))
}

func TestTemplatesAreDeterministic(t *testing.T) {
	var b PromptBuilder = Templates{}
	assert.Equal(t, b.Structure("a", testTemplate, true), b.Structure("a", testTemplate, true))
	assert.Equal(t, b.Summary("a"), BuildSummaryPrompt("a"))
	assert.Equal(t, b.DirectSystem(testTemplate), BuildDirectSystemInstruction(testTemplate))
	assert.Equal(t, b.Direct("a"), BuildDirectPrompt("a"))
}
