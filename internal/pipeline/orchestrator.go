package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/studysift/constants"
	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/entity"
	"github.com/joseph-ayodele/studysift/internal/events"
	"github.com/joseph-ayodele/studysift/internal/llm"
	"github.com/joseph-ayodele/studysift/internal/repository"
)

// State names the step an extraction attempt is in.
type State string

const (
	StateReadingSource     State = "reading_source"
	StateSummarizing       State = "summarizing"
	StateStructuring       State = "structuring"
	StateDirectStructuring State = "direct_structuring"
	StateValidating        State = "validating"
	StatePersisted         State = "persisted"
	StateFailed            State = "failed"
)

// Config holds the orchestrator defaults and policies.
type Config struct {
	AllowedModels []string
	SummaryModel  string
	JSONModel     string
	APIModel      string
	// StrictSchema turns a template mismatch into MalformedGenerationOutput instead of a warning.
	StrictSchema bool
	Retry        RetryPolicy
}

// Options are the per-request choices. Empty models use the configured defaults.
type Options struct {
	Mode         constants.ModelMode
	SummaryModel string
	JSONModel    string
}

// Result describes a persisted extraction.
type Result struct {
	UploadID      uuid.UUID       `json:"upload_id"`
	Mode          string          `json:"mode"`
	Data          json.RawMessage `json:"data"`
	SchemaWarning string          `json:"schema_warning,omitempty"`
	Elapsed       time.Duration   `json:"-"`
}

// Orchestrator runs the structured-data extraction for uploads whose text is stored.
type Orchestrator struct {
	cfg       Config
	uploads   repository.UploadRepository
	local     llm.Generator
	api       llm.Generator
	prompts   llm.PromptBuilder
	repairer  llm.Repairer
	templates llm.TemplateSource
	events    events.Publisher
	logger    *slog.Logger
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

func WithPromptBuilder(b llm.PromptBuilder) OrchestratorOption {
	return func(o *Orchestrator) { o.prompts = b }
}

func WithRepairer(r llm.Repairer) OrchestratorOption {
	return func(o *Orchestrator) { o.repairer = r }
}

func WithTemplateSource(s llm.TemplateSource) OrchestratorOption {
	return func(o *Orchestrator) { o.templates = s }
}

func WithPublisher(p events.Publisher) OrchestratorOption {
	return func(o *Orchestrator) { o.events = p }
}

// NewOrchestrator wires the generators. api may be nil when no cloud backend is configured;
// api-mode requests then fail with GenerationBackendError.
func NewOrchestrator(cfg Config, uploads repository.UploadRepository, local, api llm.Generator, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.AllowedModels) == 0 {
		cfg.AllowedModels = []string{"gemma2:9b", "deepseek-r1:7b", "llama3.1:8b"}
	}
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = cfg.AllowedModels[0]
	}
	if cfg.JSONModel == "" {
		cfg.JSONModel = cfg.AllowedModels[0]
	}
	o := &Orchestrator{
		cfg:       cfg,
		uploads:   uploads,
		local:     local,
		api:       api,
		prompts:   llm.Templates{},
		repairer:  llm.LenientRepairer{},
		templates: llm.FileTemplate{},
		events:    events.Nop{Logger: logger},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Extract loads the owner's upload and runs the extraction for it.
func (o *Orchestrator) Extract(ctx context.Context, ownerID, uploadID uuid.UUID, opts Options) (*Result, error) {
	o.state(uploadID, StateReadingSource)
	up, err := o.uploads.GetByID(ctx, ownerID, uploadID)
	if err != nil {
		return nil, err
	}
	return o.ExtractUpload(ctx, up, opts)
}

// ExtractUpload runs the configured path over up's stored text and overwrites its extracted
// data on success. A failed attempt leaves previously stored data untouched.
func (o *Orchestrator) ExtractUpload(ctx context.Context, up *entity.Upload, opts Options) (*Result, error) {
	start := time.Now()
	if !up.HasText() {
		return nil, common.NoExtractedText(up.ID.String())
	}
	mode := opts.Mode
	if mode == "" {
		mode = constants.ModeLocal
	}
	summaryModel := firstNonEmpty(opts.SummaryModel, o.cfg.SummaryModel)
	jsonModel := firstNonEmpty(opts.JSONModel, o.cfg.JSONModel)

	switch mode {
	case constants.ModeLocal:
		allow := llm.ModelAllowList(o.cfg.AllowedModels)
		if err := allow.Check(summaryModel); err != nil {
			return nil, err
		}
		if err := allow.Check(jsonModel); err != nil {
			return nil, err
		}
	case constants.ModeAPI:
	default:
		return nil, common.InvalidInput(fmt.Sprintf("unknown mode %q", mode))
	}

	template, err := o.templates.Template(ctx)
	if err != nil {
		return nil, common.NewAppError("TEMPLATE_ERROR", "load extraction template", err)
	}

	if err := o.uploads.SetStatus(ctx, up.ID, constants.StatusRunning); err != nil {
		return nil, err
	}

	var raw string
	if mode == constants.ModeLocal {
		raw, err = o.runLocal(ctx, up.ID, *up.ExtractedText, template, summaryModel, jsonModel)
	} else {
		raw, err = o.runAPI(ctx, up.ID, *up.ExtractedText, template)
	}
	if err != nil {
		return nil, o.fail(ctx, up, mode, err)
	}

	o.state(up.ID, StateValidating)
	doc, err := llm.ParseDocument(o.repairer, raw)
	if err != nil {
		return nil, o.fail(ctx, up, mode, err)
	}
	res := &Result{UploadID: up.ID, Mode: string(mode), Data: doc}
	if verr := llm.ValidateAgainstTemplate(template, doc); verr != nil {
		if o.cfg.StrictSchema {
			return nil, o.fail(ctx, up, mode, common.MalformedGenerationOutput(string(doc), verr))
		}
		res.SchemaWarning = verr.Error()
		o.logger.Warn("orchestrator.schema.mismatch", "upload_id", up.ID, "error", verr)
	}

	if err := o.uploads.SaveExtractedData(ctx, up.ID, doc); err != nil {
		return nil, o.fail(ctx, up, mode, err)
	}
	res.Elapsed = time.Since(start)
	o.state(up.ID, StatePersisted)
	o.logger.Info("orchestrator.ok",
		"upload_id", up.ID,
		"mode", mode,
		"bytes", len(doc),
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	o.publish(ctx, events.Event{Type: events.TypeExtractionCompleted, UploadID: up.ID, OwnerID: up.OwnerID, Mode: string(mode)})
	return res, nil
}

// runLocal summarizes then structures. A failed summary stops the run before the second
// prompt is built.
func (o *Orchestrator) runLocal(ctx context.Context, id uuid.UUID, text string, template []byte, summaryModel, jsonModel string) (string, error) {
	o.state(id, StateSummarizing)
	summary, err := o.generate(ctx, o.local, llm.GenerateRequest{
		Model:  summaryModel,
		Prompt: o.prompts.Summary(text),
	})
	if err != nil {
		o.logger.Error("orchestrator.stage.failed", "upload_id", id, "stage", llm.StageSummarize, "error", err)
		return "", err
	}

	o.state(id, StateStructuring)
	out, err := o.generate(ctx, o.local, llm.GenerateRequest{
		Model:      jsonModel,
		Prompt:     o.prompts.Structure(summary, template, true),
		JSONOutput: true,
	})
	if err != nil {
		o.logger.Error("orchestrator.stage.failed", "upload_id", id, "stage", llm.StageStructure, "error", err)
		return "", err
	}
	return out, nil
}

func (o *Orchestrator) runAPI(ctx context.Context, id uuid.UUID, text string, template []byte) (string, error) {
	o.state(id, StateDirectStructuring)
	if o.api == nil {
		return "", common.GenerationBackendError(string(llm.BackendGemini), errors.New("cloud backend is not configured"))
	}
	out, err := o.generate(ctx, o.api, llm.GenerateRequest{
		Model:             o.cfg.APIModel,
		Prompt:            o.prompts.Direct(text),
		SystemInstruction: o.prompts.DirectSystem(template),
		JSONOutput:        true,
	})
	if err != nil {
		o.logger.Error("orchestrator.stage.failed", "upload_id", id, "stage", llm.StageDirect, "error", err)
		return "", err
	}
	return out, nil
}

// generate calls g under the retry policy. Responses that report failure or carry the
// failure marker count as a backend error.
func (o *Orchestrator) generate(ctx context.Context, g llm.Generator, req llm.GenerateRequest) (string, error) {
	return retry(ctx, o.cfg.Retry, func() (string, error) {
		resp, err := g.Generate(ctx, req)
		if err != nil {
			if common.KindOf(err) == common.KindInternal {
				err = common.GenerationBackendError(string(g.Backend()), err)
			}
			return "", err
		}
		if !resp.Success || llm.IsFailureText(resp.Text) {
			return "", common.GenerationBackendError(string(g.Backend()), fmt.Errorf("model %s reported: %s", req.Model, common.Truncate(resp.Text, 300)))
		}
		return resp.Text, nil
	})
}

func (o *Orchestrator) fail(ctx context.Context, up *entity.Upload, mode constants.ModelMode, err error) error {
	o.state(up.ID, StateFailed)
	if merr := o.uploads.MarkFailed(ctx, up.ID, err.Error()); merr != nil {
		o.logger.Warn("orchestrator.mark_failed_error", "upload_id", up.ID, "error", merr)
	}
	o.publish(ctx, events.Event{
		Type:      events.TypeExtractionFailed,
		UploadID:  up.ID,
		OwnerID:   up.OwnerID,
		Mode:      string(mode),
		ErrorKind: string(common.KindOf(err)),
		Error:     err.Error(),
	})
	return err
}

func (o *Orchestrator) publish(ctx context.Context, ev events.Event) {
	ev.At = time.Now().UTC()
	if err := o.events.Publish(ctx, ev); err != nil {
		o.logger.Warn("orchestrator.publish_failed", "type", ev.Type, "upload_id", ev.UploadID, "error", err)
	}
}

func (o *Orchestrator) state(id uuid.UUID, s State) {
	o.logger.Debug("orchestrator.state", "upload_id", id, "state", s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
