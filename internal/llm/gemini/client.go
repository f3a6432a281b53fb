package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/llm"
)

const DefaultModel = "gemini-1.5-flash"

// Config holds the hosted API settings.
type Config struct {
	APIKey            string
	Model             string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// chunkSource yields streamed responses until iterator.Done.
type chunkSource interface {
	Next() (*genai.GenerateContentResponse, error)
}

type streamFunc func(ctx context.Context, req llm.GenerateRequest) chunkSource

// Client implements llm.Generator with the streaming content endpoint.
type Client struct {
	cfg     Config
	genai   *genai.Client
	stream  streamFunc
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient authenticates with cfg.APIKey. Close releases the underlying connection.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "gemini api key is required", common.ErrInvalidInput)
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, common.GenerationBackendError(string(llm.BackendGemini), fmt.Errorf("create client: %w", err))
	}
	c := newClient(cfg, logger)
	c.genai = gc
	c.stream = func(ctx context.Context, req llm.GenerateRequest) chunkSource {
		return configureModel(gc.GenerativeModel(req.Model), req).GenerateContentStream(ctx, genai.Text(req.Prompt))
	}
	return c, nil
}

func newClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{cfg: cfg, limiter: rate.NewLimiter(limit, 1), logger: logger}
}

func configureModel(m *genai.GenerativeModel, req llm.GenerateRequest) *genai.GenerativeModel {
	if req.SystemInstruction != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemInstruction)}}
	}
	if req.JSONOutput {
		m.ResponseMIMEType = "application/json"
	}
	return m
}

func (c *Client) Close() error {
	if c.genai == nil {
		return nil
	}
	return c.genai.Close()
}

func (c *Client) Backend() llm.Backend { return llm.BackendGemini }

// Generate streams the response and concatenates every text part. An empty req.Model uses
// the configured default.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (llm.RawResponse, error) {
	if req.Model == "" {
		req.Model = c.cfg.Model
	}
	out := llm.RawResponse{Backend: llm.BackendGemini, Model: req.Model}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return out, common.GenerationBackendError(string(llm.BackendGemini), fmt.Errorf("rate limit: %w", err))
	}

	start := time.Now()
	c.logger.Info("gemini.generate.request", "model", req.Model, "prompt_chars", len(req.Prompt), "json", req.JSONOutput)

	text, chunks, err := collect(c.stream(ctx, req))
	out.Latency = time.Since(start)
	if err != nil {
		c.logger.Error("gemini.generate.failed",
			"model", req.Model,
			"chunks", chunks,
			"error", err,
			"elapsed_ms", out.Latency.Milliseconds(),
		)
		out.Text = fmt.Sprintf("%s: %v", llm.FailureMarker, err)
		return out, common.GenerationBackendError(string(llm.BackendGemini), err)
	}

	out.Text = text
	out.Success = true
	c.logger.Info("gemini.generate.ok",
		"model", req.Model,
		"chunks", chunks,
		"chars", len(text),
		"elapsed_ms", out.Latency.Milliseconds(),
	)
	return out, nil
}

// collect drains src, joining the text parts of every candidate in arrival order.
func collect(src chunkSource) (string, int, error) {
	var b strings.Builder
	chunks := 0
	for {
		resp, err := src.Next()
		if errors.Is(err, iterator.Done) {
			return b.String(), chunks, nil
		}
		if err != nil {
			return b.String(), chunks, err
		}
		chunks++
		if resp == nil {
			continue
		}
		for _, cand := range resp.Candidates {
			if cand == nil || cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					b.WriteString(string(t))
				}
			}
		}
	}
}
