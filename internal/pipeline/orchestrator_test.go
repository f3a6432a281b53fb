package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/studysift/constants"
	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/entity"
	"github.com/joseph-ayodele/studysift/internal/events"
	"github.com/joseph-ayodele/studysift/internal/llm"
	"github.com/joseph-ayodele/studysift/internal/materialize"
	"github.com/joseph-ayodele/studysift/internal/repository"
)

type fakeGenerator struct {
	mu        sync.Mutex
	backend   llm.Backend
	responses []llm.RawResponse
	errs      []error
	requests  []llm.GenerateRequest
}

func (f *fakeGenerator) Backend() llm.Backend { return f.backend }

func (f *fakeGenerator) Generate(_ context.Context, req llm.GenerateRequest) (llm.RawResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], err
	}
	return llm.RawResponse{}, err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func ok(text string) llm.RawResponse { return llm.RawResponse{Text: text, Success: true} }

type countingPrompts struct {
	llm.Templates
	structureCalls int
	summarized     []bool
}

func (c *countingPrompts) Structure(text string, template []byte, summarized bool) string {
	c.structureCalls++
	c.summarized = append(c.summarized, summarized)
	return c.Templates.Structure(text, template, summarized)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	db      *repository.DB
	uploads repository.UploadRepository
	owner   uuid.UUID
	upload  *entity.Upload
}

func newFixture(t *testing.T, text string) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenSQLite(repository.InMemoryDSN(uuid.NewString()), nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	uploads := repository.NewUploadRepository(db, nil)
	owner := uuid.New()
	up, _, err := uploads.UpsertByHash(ctx, repository.NewUpload{
		OwnerID: owner, SourcePath: "/tmp/guia.pdf", Filename: "guia.pdf", FileExt: "pdf", ContentHash: uuid.NewString(),
	})
	require.NoError(t, err)
	if text != "" {
		require.NoError(t, uploads.SaveText(ctx, up.ID, text))
	}
	return &fixture{db: db, uploads: uploads, owner: owner, upload: up}
}

const scenarioText = "Examen el 18 de marzo de 2025, aula A1.2, grupo T1"

const scenarioJSON = `{"asignatura":{"nombre":"X","grado":"G","departamento":"D","universidad":"U","condiciones_aprobado":"5"},` +
	`"horarios":[{"grupo":"T1","tipo":"teoria","hora":"","aula":"A1.2","dia":""}],` +
	`"fechas":[{"titulo":"Examen","fecha":"2025-03-18"}],` +
	`"profesores":[]}`

func testConfig() Config {
	return Config{
		AllowedModels: []string{"gemma2:9b", "deepseek-r1:7b", "llama3.1:8b"},
		APIModel:      "gemini-1.5-flash",
	}
}

func TestLocalPathSummarizesThenStructures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scenarioText)
	gen := &fakeGenerator{backend: llm.BackendOllama, responses: []llm.RawResponse{
		ok("Examen: 18 de marzo de 2025. Grupo T1 en A1.2."),
		ok("```json\n" + scenarioJSON + "\n```"),
	}}
	prompts := &countingPrompts{}
	rec := &recorder{}
	o := NewOrchestrator(testConfig(), f.uploads, gen, nil, nil, WithPromptBuilder(prompts), WithPublisher(rec))

	res, err := o.Extract(ctx, f.owner, f.upload.ID, Options{Mode: constants.ModeLocal, SummaryModel: "deepseek-r1:7b", JSONModel: "llama3.1:8b"})
	require.NoError(t, err)
	assert.JSONEq(t, scenarioJSON, string(res.Data))
	assert.Empty(t, res.SchemaWarning)

	require.Equal(t, 2, gen.calls())
	assert.Equal(t, "deepseek-r1:7b", gen.requests[0].Model)
	assert.Contains(t, gen.requests[0].Prompt, scenarioText)
	assert.Equal(t, "llama3.1:8b", gen.requests[1].Model)
	assert.Contains(t, gen.requests[1].Prompt, "Grupo T1 en A1.2")
	assert.Equal(t, []bool{true}, prompts.summarized)

	stored, err := f.uploads.Get(ctx, f.upload.ID)
	require.NoError(t, err)
	assert.JSONEq(t, scenarioJSON, string(stored.ExtractedData))
	assert.Equal(t, string(constants.StatusLLMOK), stored.Status)

	require.Len(t, rec.events, 1)
	assert.Equal(t, events.TypeExtractionCompleted, rec.events[0].Type)
	assert.Equal(t, f.owner, rec.events[0].OwnerID)
}

func TestInvalidModelFailsBeforeAnyCall(t *testing.T) {
	f := newFixture(t, scenarioText)
	gen := &fakeGenerator{backend: llm.BackendOllama}
	o := NewOrchestrator(testConfig(), f.uploads, gen, nil, nil)

	for _, opts := range []Options{
		{Mode: constants.ModeLocal, SummaryModel: "gpt-4"},
		{Mode: constants.ModeLocal, JSONModel: "mistral"},
	} {
		_, err := o.Extract(context.Background(), f.owner, f.upload.ID, opts)
		require.Error(t, err)
		assert.Equal(t, common.KindInvalidModelSelection, common.KindOf(err))
		assert.Equal(t, 400, common.HTTPStatus(err))
	}
	assert.Zero(t, gen.calls())

	stored, err := f.uploads.Get(context.Background(), f.upload.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.StatusTextOK), stored.Status)
}

func TestMissingTextFails(t *testing.T) {
	f := newFixture(t, "")
	gen := &fakeGenerator{backend: llm.BackendOllama}
	_, err := NewOrchestrator(testConfig(), f.uploads, gen, nil, nil).Extract(context.Background(), f.owner, f.upload.ID, Options{})
	require.Error(t, err)
	assert.Equal(t, common.KindNoExtractedText, common.KindOf(err))
	assert.Zero(t, gen.calls())
}

func TestOtherOwnerCannotExtract(t *testing.T) {
	f := newFixture(t, scenarioText)
	_, err := NewOrchestrator(testConfig(), f.uploads, &fakeGenerator{}, nil, nil).
		Extract(context.Background(), uuid.New(), f.upload.ID, Options{})
	require.Error(t, err)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestStageOneFailureMarkerSkipsStageTwo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scenarioText)
	require.NoError(t, f.uploads.SaveExtractedData(ctx, f.upload.ID, []byte(`{"previous":true}`)))

	gen := &fakeGenerator{backend: llm.BackendOllama, responses: []llm.RawResponse{
		{Text: "Error: 500 - model crashed", Success: true},
	}}
	prompts := &countingPrompts{}
	rec := &recorder{}
	o := NewOrchestrator(testConfig(), f.uploads, gen, nil, nil, WithPromptBuilder(prompts), WithPublisher(rec))

	_, err := o.Extract(ctx, f.owner, f.upload.ID, Options{})
	require.Error(t, err)
	assert.Equal(t, common.KindGenerationBackendError, common.KindOf(err))
	assert.Contains(t, err.Error(), "model crashed")
	assert.Equal(t, 1, gen.calls())
	assert.Zero(t, prompts.structureCalls)

	stored, err := f.uploads.Get(ctx, f.upload.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"previous":true}`, string(stored.ExtractedData))
	assert.Equal(t, string(constants.StatusFailed), stored.Status)

	require.Len(t, rec.events, 1)
	assert.Equal(t, events.TypeExtractionFailed, rec.events[0].Type)
	assert.Equal(t, string(common.KindGenerationBackendError), rec.events[0].ErrorKind)
}

func TestSummaryStartingWithErroresIsNotAFailure(t *testing.T) {
	f := newFixture(t, scenarioText)
	gen := &fakeGenerator{backend: llm.BackendOllama, responses: []llm.RawResponse{
		ok("Errores frecuentes en el examen: ninguno. Examen: 18 de marzo de 2025."),
		ok(scenarioJSON),
	}}
	res, err := NewOrchestrator(testConfig(), f.uploads, gen, nil, nil).
		Extract(context.Background(), f.owner, f.upload.ID, Options{})
	require.NoError(t, err)
	assert.JSONEq(t, scenarioJSON, string(res.Data))
	assert.Equal(t, 2, gen.calls())
}

func TestFailureDetailStaysValidUTF8(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scenarioText)
	// "ó" straddles the cut point of the reported detail.
	detail := "Error: " + strings.Repeat("a", 300-len("Error: ")-1) + "ó" + strings.Repeat("b", 50)
	gen := &fakeGenerator{backend: llm.BackendOllama, responses: []llm.RawResponse{{Text: detail, Success: true}}}

	_, err := NewOrchestrator(testConfig(), f.uploads, gen, nil, nil).Extract(ctx, f.owner, f.upload.ID, Options{})
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))

	stored, err := f.uploads.Get(ctx, f.upload.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.StatusFailed), stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.True(t, utf8.ValidString(*stored.ErrorMessage))
}

func TestStageOneBackendErrorSkipsStageTwo(t *testing.T) {
	f := newFixture(t, scenarioText)
	gen := &fakeGenerator{backend: llm.BackendOllama, errs: []error{
		common.GenerationBackendError("ollama", errors.New("connection refused")),
	}}
	prompts := &countingPrompts{}
	_, err := NewOrchestrator(testConfig(), f.uploads, gen, nil, nil, WithPromptBuilder(prompts)).
		Extract(context.Background(), f.owner, f.upload.ID, Options{})
	require.Error(t, err)
	assert.Equal(t, 500, common.HTTPStatus(err))
	assert.Equal(t, 1, gen.calls())
	assert.Zero(t, prompts.structureCalls)
}

func TestMalformedOutputKeepsPreviousData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scenarioText)
	require.NoError(t, f.uploads.SaveExtractedData(ctx, f.upload.ID, []byte(`{"previous":true}`)))

	gen := &fakeGenerator{backend: llm.BackendOllama, responses: []llm.RawResponse{
		ok("resumen"), ok("No he podido generar el JSON."),
	}}
	_, err := NewOrchestrator(testConfig(), f.uploads, gen, nil, nil).Extract(ctx, f.owner, f.upload.ID, Options{})
	require.Error(t, err)
	assert.Equal(t, common.KindMalformedGenerationOutput, common.KindOf(err))

	stored, err := f.uploads.Get(ctx, f.upload.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"previous":true}`, string(stored.ExtractedData))
}

func TestSuccessOverwritesPreviousData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scenarioText)
	require.NoError(t, f.uploads.SaveExtractedData(ctx, f.upload.ID, []byte(`{"previous":true}`)))

	gen := &fakeGenerator{backend: llm.BackendOllama, responses: []llm.RawResponse{ok("resumen"), ok(scenarioJSON)}}
	_, err := NewOrchestrator(testConfig(), f.uploads, gen, nil, nil).Extract(ctx, f.owner, f.upload.ID, Options{})
	require.NoError(t, err)

	stored, err := f.uploads.Get(ctx, f.upload.ID)
	require.NoError(t, err)
	assert.JSONEq(t, scenarioJSON, string(stored.ExtractedData))
}

func TestAPIPathSingleStage(t *testing.T) {
	f := newFixture(t, scenarioText)
	local := &fakeGenerator{backend: llm.BackendOllama}
	api := &fakeGenerator{backend: llm.BackendGemini, responses: []llm.RawResponse{ok(scenarioJSON)}}
	prompts := &countingPrompts{}

	res, err := NewOrchestrator(testConfig(), f.uploads, local, api, nil, WithPromptBuilder(prompts)).
		Extract(context.Background(), f.owner, f.upload.ID, Options{Mode: constants.ModeAPI, SummaryModel: "not-checked"})
	require.NoError(t, err)
	assert.Equal(t, "api", res.Mode)

	assert.Zero(t, local.calls())
	require.Equal(t, 1, api.calls())
	req := api.requests[0]
	assert.Equal(t, "gemini-1.5-flash", req.Model)
	assert.True(t, req.JSONOutput)
	assert.Contains(t, req.SystemInstruction, `"asignatura"`)
	assert.Contains(t, req.Prompt, scenarioText)
	assert.Zero(t, prompts.structureCalls)
}

func TestAPIPathWithoutBackend(t *testing.T) {
	f := newFixture(t, scenarioText)
	_, err := NewOrchestrator(testConfig(), f.uploads, &fakeGenerator{}, nil, nil).
		Extract(context.Background(), f.owner, f.upload.ID, Options{Mode: constants.ModeAPI})
	require.Error(t, err)
	assert.Equal(t, common.KindGenerationBackendError, common.KindOf(err))
}

func TestSchemaMismatchWarnsOrFails(t *testing.T) {
	partial := `{"asignatura":{"nombre":"X"}}`

	f := newFixture(t, scenarioText)
	gen := &fakeGenerator{backend: llm.BackendOllama, responses: []llm.RawResponse{ok("r"), ok(partial)}}
	res, err := NewOrchestrator(testConfig(), f.uploads, gen, nil, nil).Extract(context.Background(), f.owner, f.upload.ID, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SchemaWarning)

	strict := testConfig()
	strict.StrictSchema = true
	f2 := newFixture(t, scenarioText)
	gen2 := &fakeGenerator{backend: llm.BackendOllama, responses: []llm.RawResponse{ok("r"), ok(partial)}}
	_, err = NewOrchestrator(strict, f2.uploads, gen2, nil, nil).Extract(context.Background(), f2.owner, f2.upload.ID, Options{})
	require.Error(t, err)
	assert.Equal(t, common.KindMalformedGenerationOutput, common.KindOf(err))
}

func TestRetryPolicyRetriesBackendErrors(t *testing.T) {
	f := newFixture(t, scenarioText)
	cfg := testConfig()
	cfg.Retry = RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	gen := &fakeGenerator{
		backend:   llm.BackendOllama,
		errs:      []error{common.GenerationBackendError("ollama", errors.New("503")), nil, nil},
		responses: []llm.RawResponse{{}, ok("resumen"), ok(scenarioJSON)},
	}
	_, err := NewOrchestrator(cfg, f.uploads, gen, nil, nil).Extract(context.Background(), f.owner, f.upload.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, gen.calls())
}

func TestRetryPolicyGivesUp(t *testing.T) {
	f := newFixture(t, scenarioText)
	cfg := testConfig()
	cfg.Retry = RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond}
	boom := common.GenerationBackendError("ollama", errors.New("down"))
	gen := &fakeGenerator{backend: llm.BackendOllama, errs: []error{boom, boom, boom}}
	_, err := NewOrchestrator(cfg, f.uploads, gen, nil, nil).Extract(context.Background(), f.owner, f.upload.ID, Options{})
	require.Error(t, err)
	assert.Equal(t, 2, gen.calls())
}

func TestScenarioThroughMaterializer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scenarioText)
	api := &fakeGenerator{backend: llm.BackendGemini, responses: []llm.RawResponse{ok(scenarioJSON)}}
	res, err := NewOrchestrator(testConfig(), f.uploads, nil, api, nil).
		Extract(ctx, f.owner, f.upload.ID, Options{Mode: constants.ModeAPI})
	require.NoError(t, err)

	courses := repository.NewCourseRepository(f.db, nil)
	_, err = materialize.New(courses, nil).Materialize(ctx, f.owner, res.Data)
	require.NoError(t, err)

	cal, err := courses.ListCalendar(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, cal, 1)
	require.Len(t, cal[0].Dates, 1)
	d, err := time.Parse(time.DateOnly, cal[0].Dates[0].Date)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 18, 0, 0, 0, 0, time.UTC), d)
	assert.True(t, strings.EqualFold("Examen", cal[0].Dates[0].Title))
}
