// Package app wires the repositories, pipeline and integrations from a Config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/joseph-ayodele/studysift/constants"
	"github.com/joseph-ayodele/studysift/internal/calendar"
	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/events"
	"github.com/joseph-ayodele/studysift/internal/export"
	"github.com/joseph-ayodele/studysift/internal/extract"
	"github.com/joseph-ayodele/studysift/internal/ingest"
	"github.com/joseph-ayodele/studysift/internal/llm"
	"github.com/joseph-ayodele/studysift/internal/llm/gemini"
	"github.com/joseph-ayodele/studysift/internal/llm/ollama"
	"github.com/joseph-ayodele/studysift/internal/materialize"
	"github.com/joseph-ayodele/studysift/internal/ocr"
	"github.com/joseph-ayodele/studysift/internal/pipeline"
	"github.com/joseph-ayodele/studysift/internal/reminders"
	"github.com/joseph-ayodele/studysift/internal/repository"
)

// App holds every long-lived component. Optional integrations are nil when unconfigured.
type App struct {
	Config *common.Config
	Logger *slog.Logger

	DB      *repository.DB
	Uploads repository.UploadRepository
	Courses repository.CourseRepository

	Text         *pipeline.TextStage
	Orchestrator *pipeline.Orchestrator
	Processor    *pipeline.Processor
	Ingestor     *ingest.FSIngestor
	Materializer *materialize.Materializer
	Export       *export.Service

	Publisher events.Publisher
	NATS      *nats.Conn
	Calendar  *calendar.Exporter

	gemini *gemini.Client
}

// New opens the database, runs migrations and builds the pipeline.
// inmem swaps the configured database for a private in-memory SQLite one.
func New(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	dbCfg := repository.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}
	if inmem {
		dbCfg.Driver = "sqlite"
		dbCfg.DSN = repository.InMemoryDSN(fmt.Sprintf("studysift-%d", time.Now().UnixNano()))
	}
	db, err := repository.Open(ctx, dbCfg, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	a.Uploads = repository.NewUploadRepository(db, logger)
	a.Courses = repository.NewCourseRepository(db, logger)

	a.Publisher = events.Nop{Logger: logger}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, cfg.NATS.Token, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.NATS = nc
		a.Publisher = events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix, logger)
	}

	local := ollama.NewClient(ollama.Config{BaseURL: cfg.Ollama.BaseURL, Timeout: cfg.Ollama.Timeout}, logger)
	var api llm.Generator
	if cfg.Gemini.APIKey != "" {
		gc, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:            cfg.Gemini.APIKey,
			Model:             cfg.Gemini.Model,
			RequestsPerSecond: cfg.Gemini.RequestsPerSecond,
			Timeout:           cfg.Gemini.Timeout,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.gemini = gc
		api = gc
	} else {
		logger.Warn("gemini api key not configured, api mode disabled")
	}

	extractCfg := extract.Config{}
	if cfg.Extraction.OCR {
		extractCfg.Scanned = ocr.NewReader(ocr.Config{Lang: cfg.Extraction.OCRLang, TessdataDir: os.Getenv("TESSDATA_PREFIX")}, logger)
	}
	a.Text = pipeline.NewTextStage(a.Uploads, extract.NewExtractor(extractCfg, logger), logger)
	a.Orchestrator = pipeline.NewOrchestrator(pipeline.Config{
		AllowedModels: cfg.Ollama.AllowedModels,
		SummaryModel:  cfg.Ollama.SummaryModel,
		JSONModel:     cfg.Ollama.JSONModel,
		APIModel:      cfg.Gemini.Model,
		StrictSchema:  cfg.Extraction.StrictSchema,
		Retry: pipeline.RetryPolicy{
			MaxAttempts:    cfg.Extraction.MaxAttempts,
			InitialBackoff: cfg.Extraction.InitialBackoff,
		},
	}, a.Uploads, local, api, logger,
		pipeline.WithTemplateSource(llm.FileTemplate{Path: cfg.Extraction.TemplatePath}),
		pipeline.WithPublisher(a.Publisher),
	)
	a.Processor = pipeline.NewProcessor(logger, a.Text, a.Orchestrator, pipeline.Options{Mode: constants.ModeLocal})
	a.Ingestor = ingest.NewFSIngestor(a.Uploads, logger)
	a.Materializer = materialize.New(a.Courses, logger)
	a.Export = export.NewService(a.Courses, logger)

	if cfg.Calendar.CredentialsFile != "" {
		sink, err := calendar.NewGoogleSink(ctx, cfg.Calendar.CredentialsFile, cfg.Calendar.CalendarID, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Calendar = calendar.NewExporter(a.Courses, sink, logger)
	}
	return a, nil
}

// NewReminders builds the reminder service from the configured recipients file.
// Without NATS, messages are only logged.
func (a *App) NewReminders() (*reminders.Service, error) {
	dir := reminders.StaticDirectory{}
	if path := a.Config.Reminders.RecipientsFile; path != "" {
		loaded, err := reminders.LoadDirectory(path)
		if err != nil {
			return nil, err
		}
		dir = loaded
	}
	var mailer reminders.Mailer = reminders.LogMailer{Logger: a.Logger}
	if pub, ok := a.Publisher.(*events.NATSPublisher); ok {
		mailer = reminders.NewNATSMailer(pub)
	}
	return reminders.NewService(a.Courses, dir, mailer, a.Config.Reminders.FromAddress, a.Logger), nil
}

func (a *App) Close() {
	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			a.Logger.Warn("gemini.close.failed", "error", err)
		}
	}
	if a.NATS != nil {
		if err := a.NATS.Drain(); err != nil {
			a.Logger.Warn("nats.drain.failed", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
