package llm

import (
	"strings"
)

// Stage identifies which prompt template produced a prompt.
type Stage string

const (
	StageSummarize Stage = "summarize"
	StageStructure Stage = "structure"
	StageDirect    Stage = "direct"
)

// PromptBuilder renders the prompts used by each stage. Implementations must be pure.
type PromptBuilder interface {
	Summary(text string) string
	Structure(text string, template []byte, summarized bool) string
	DirectSystem(template []byte) string
	Direct(text string) string
}

// Templates is the default PromptBuilder.
type Templates struct{}

func (Templates) Summary(text string) string { return BuildSummaryPrompt(text) }

func (Templates) Structure(text string, template []byte, summarized bool) string {
	return BuildStructurePrompt(text, template, summarized)
}

func (Templates) DirectSystem(template []byte) string { return BuildDirectSystemInstruction(template) }

func (Templates) Direct(text string) string { return BuildDirectPrompt(text) }

var jsonRules = []string{
	"Las fechas deben ir en formato ISO YYYY-MM-DD; convierte expresiones como \"18 de marzo de 2025\" a 2025-03-18.",
	"Conserva todas las claves de la estructura aunque falte información; si un dato no aparece, rellénalo con el valor más probable según el contexto.",
	"El campo tipo de cada horario solo puede ser teoria, practica o tutoria.",
	"Usa comillas dobles y no dejes comas finales.",
	"Devuelve únicamente el objeto JSON, sin texto adicional, sin explicaciones y sin bloques de código.",
}

// BuildSummaryPrompt asks for a plain-text digest keeping only schedule-relevant facts.
func BuildSummaryPrompt(text string) string {
	parts := []string{
		"Resume el siguiente texto sobre una asignatura universitaria en texto plano.",
		"Conserva únicamente: el nombre de la asignatura, el grado, el departamento, la universidad, las condiciones para aprobar,",
		"las fechas señaladas junto con su finalidad (exámenes, entregas, prácticas), los horarios de las sesiones (grupo, tipo, día, hora y aula)",
		"y los datos de contacto y tutorías de cada profesor (nombre, despacho, enlace y horario).",
		"Descarta cualquier otra información.",
	}
	var b strings.Builder
	b.WriteString(strings.Join(parts, " "))
	b.WriteString("\n\nTexto:\n")
	b.WriteString(strings.TrimSpace(text))
	return b.String()
}

// BuildStructurePrompt asks for the template filled from text. When summarized is true the
// input is labelled as the stage-one summary.
func BuildStructurePrompt(text string, template []byte, summarized bool) string {
	label := "Texto"
	if summarized {
		label = "Texto resumido"
	}
	var b strings.Builder
	b.WriteString("Convierte el siguiente texto en un objeto JSON con exactamente esta estructura, ")
	b.WriteString("sustituyendo los valores de ejemplo por los datos del texto:\n")
	b.Write(template)
	b.WriteString("\n\nReglas:\n- ")
	b.WriteString(strings.Join(jsonRules, "\n- "))
	b.WriteString("\n\n")
	b.WriteString(label)
	b.WriteString(":\n")
	b.WriteString(strings.TrimSpace(text))
	return b.String()
}

// BuildDirectSystemInstruction carries the template for backends that accept a system
// instruction and constrain the output to JSON themselves.
func BuildDirectSystemInstruction(template []byte) string {
	var b strings.Builder
	b.WriteString("Eres un extractor de información académica. Responde con un JSON que siga exactamente esta estructura:\n")
	b.Write(template)
	b.WriteString("\n\nReglas:\n- ")
	b.WriteString(strings.Join(jsonRules[:3], "\n- "))
	return b.String()
}

func BuildDirectPrompt(text string) string {
	return "Extrae la información de la asignatura del siguiente texto:\n" + strings.TrimSpace(text)
}
