package llm

import (
	"context"
	"strings"
	"time"
)

// Backend names a generation service.
type Backend string

const (
	BackendOllama Backend = "ollama"
	BackendGemini Backend = "gemini"
)

// FailureMarker prefixes the text of a failed local generation. Clients emit it as
// "Error: <detail>" or "Error al conectar ...".
const FailureMarker = "Error"

// IsFailureText reports whether text is a failure report rather than model output.
// A summary that merely starts with a word like "Errores" is not one.
func IsFailureText(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasPrefix(t, FailureMarker+":") || strings.HasPrefix(t, FailureMarker+" al ")
}

// GenerateRequest is one prompt sent to one model.
type GenerateRequest struct {
	Model  string
	Prompt string

	// SystemInstruction and JSONOutput are honored by backends that support them.
	SystemInstruction string
	JSONOutput        bool
}

// RawResponse is the unprocessed text returned by a backend.
type RawResponse struct {
	Text    string
	Backend Backend
	Model   string
	Latency time.Duration
	Success bool
}

// Generator sends a prompt and blocks until the full response text is available.
// Implementations never retry.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (RawResponse, error)
	Backend() Backend
}
