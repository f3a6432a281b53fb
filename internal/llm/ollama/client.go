package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/llm"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	generatePath   = "/api/generate"
)

// Config holds client settings for a local Ollama server.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements llm.Generator against the non-streaming generate endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (c *Client) Backend() llm.Backend { return llm.BackendOllama }

// Generate sends req.Prompt to req.Model. SystemInstruction and JSONOutput are ignored; the
// prompt itself carries the schema on this path.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (llm.RawResponse, error) {
	start := time.Now()
	out := llm.RawResponse{Backend: llm.BackendOllama, Model: req.Model}

	body := generateRequest{Model: req.Model, Prompt: req.Prompt, Stream: false}
	raw, status, err := llm.SendJSON(ctx, c.http, c.cfg.BaseURL+generatePath, body, nil, c.logger)
	out.Latency = time.Since(start)
	if err != nil {
		c.logger.Error("ollama.generate.failed",
			"model", req.Model,
			"status", status,
			"error", err,
			"elapsed_ms", out.Latency.Milliseconds(),
		)
		out.Text = failureText(status, err)
		return out, common.GenerationBackendError(string(llm.BackendOllama), err)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.logger.Error("ollama.generate.decode_error", "model", req.Model, "error", err)
		out.Text = failureText(status, err)
		return out, common.GenerationBackendError(string(llm.BackendOllama), fmt.Errorf("decode response: %w", err))
	}

	out.Text = gr.Response
	out.Success = true
	c.logger.Info("ollama.generate.ok",
		"model", req.Model,
		"chars", len(gr.Response),
		"elapsed_ms", out.Latency.Milliseconds(),
	)
	return out, nil
}

// failureText renders the marker-prefixed text a failed local call reports.
func failureText(status int, err error) string {
	if status == 0 {
		return fmt.Sprintf("%s al conectar con Ollama: %v", llm.FailureMarker, err)
	}
	return fmt.Sprintf("%s: %d - %v", llm.FailureMarker, status, err)
}
