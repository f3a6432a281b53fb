package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	NATS       NATSConfig       `yaml:"nats"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Reminders  RemindersConfig  `yaml:"reminders"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // postgres or sqlite
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// ExtractionConfig tunes the extraction pipeline.
type ExtractionConfig struct {
	TemplatePath   string        `yaml:"template_path"` // empty uses the built-in template
	StrictSchema   bool          `yaml:"strict_schema"`
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
	// OCR reads PDFs without a text layer through pdftoppm and tesseract.
	OCR     bool   `yaml:"ocr"`
	OCRLang string `yaml:"ocr_lang"`
}

// IngestConfig configures the directory watcher. No directories disables it.
type IngestConfig struct {
	WatchDirs   []string      `yaml:"watch_dirs"`
	WatchOwner  string        `yaml:"watch_owner"`
	InitialScan bool          `yaml:"initial_scan"`
	Debounce    time.Duration `yaml:"debounce"`
}

// OllamaConfig configures the local generation server.
type OllamaConfig struct {
	BaseURL       string        `yaml:"base_url"`
	AllowedModels []string      `yaml:"allowed_models"`
	SummaryModel  string        `yaml:"summary_model"`
	JSONModel     string        `yaml:"json_model"`
	Timeout       time.Duration `yaml:"timeout"`
}

// GeminiConfig configures the cloud generation API.
type GeminiConfig struct {
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

// NATSConfig configures event publishing. An empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// CalendarConfig configures export to Google Calendar.
type CalendarConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	CalendarID      string `yaml:"calendar_id"`
}

type RemindersConfig struct {
	FromAddress string `yaml:"from_address"`
	// RecipientsFile maps owner ids to {username, email} in YAML.
	RecipientsFile string `yaml:"recipients_file"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr: ":8000",
			GRPCAddr: ":8080",
		},
		Extraction: ExtractionConfig{
			MaxAttempts:    1,
			InitialBackoff: 2 * time.Second,
			Workers:        4,
			QueueSize:      256,
			ProcessTimeout: 5 * time.Minute,
			OCRLang:        "spa",
		},
		Ingest: IngestConfig{
			InitialScan: true,
			Debounce:    time.Second,
		},
		Ollama: OllamaConfig{
			BaseURL:       "http://localhost:11434",
			AllowedModels: []string{"gemma2:9b", "deepseek-r1:7b", "llama3.1:8b"},
			SummaryModel:  "gemma2:9b",
			JSONModel:     "gemma2:9b",
			Timeout:       3 * time.Minute,
		},
		Gemini: GeminiConfig{
			Model:             "gemini-1.5-flash",
			RequestsPerSecond: 1,
			Timeout:           2 * time.Minute,
		},
		NATS: NATSConfig{
			SubjectPrefix: "studysift",
		},
		Calendar: CalendarConfig{
			CalendarID: "primary",
		},
		Reminders: RemindersConfig{
			FromAddress: "no-reply@studysift.local",
		},
	}
}

// LoadConfig loads configuration from the optional YAML file named by STUDYSIFT_CONFIG,
// then applies environment variables on top.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(os.Getenv("STUDYSIFT_CONFIG"))
}

// LoadConfigFile is LoadConfig with an explicit file path. An empty path skips the file.
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read config file %s", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse config file %s", path), err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)

	c.Extraction.TemplatePath = getEnv("EXTRACTION_TEMPLATE", c.Extraction.TemplatePath)
	c.Extraction.StrictSchema = getEnvAsBool("EXTRACTION_STRICT_SCHEMA", c.Extraction.StrictSchema)
	c.Extraction.MaxAttempts = getEnvAsInt("EXTRACTION_MAX_ATTEMPTS", c.Extraction.MaxAttempts)
	c.Extraction.InitialBackoff = getEnvAsDuration("EXTRACTION_INITIAL_BACKOFF", c.Extraction.InitialBackoff)
	c.Extraction.Workers = getEnvAsInt("EXTRACTION_WORKERS", c.Extraction.Workers)
	c.Extraction.QueueSize = getEnvAsInt("EXTRACTION_QUEUE_SIZE", c.Extraction.QueueSize)
	c.Extraction.ProcessTimeout = getEnvAsDuration("EXTRACTION_PROCESS_TIMEOUT", c.Extraction.ProcessTimeout)
	c.Extraction.OCR = getEnvAsBool("EXTRACTION_OCR", c.Extraction.OCR)
	c.Extraction.OCRLang = getEnv("TESSERACT_LANG", c.Extraction.OCRLang)

	c.Ingest.WatchDirs = getEnvAsList("WATCH_DIRS", c.Ingest.WatchDirs)
	c.Ingest.WatchOwner = getEnv("WATCH_OWNER_ID", c.Ingest.WatchOwner)
	c.Ingest.InitialScan = getEnvAsBool("WATCH_INITIAL_SCAN", c.Ingest.InitialScan)
	c.Ingest.Debounce = getEnvAsDuration("WATCH_DEBOUNCE", c.Ingest.Debounce)

	c.Ollama.BaseURL = getEnv("OLLAMA_BASE_URL", c.Ollama.BaseURL)
	c.Ollama.AllowedModels = getEnvAsList("OLLAMA_ALLOWED_MODELS", c.Ollama.AllowedModels)
	c.Ollama.SummaryModel = getEnv("OLLAMA_SUMMARY_MODEL", c.Ollama.SummaryModel)
	c.Ollama.JSONModel = getEnv("OLLAMA_JSON_MODEL", c.Ollama.JSONModel)
	c.Ollama.Timeout = getEnvAsDuration("OLLAMA_TIMEOUT", c.Ollama.Timeout)

	c.Gemini.APIKey = getEnv("GEMINI_API_KEY", c.Gemini.APIKey)
	c.Gemini.Model = getEnv("GEMINI_MODEL", c.Gemini.Model)
	c.Gemini.RequestsPerSecond = getEnvAsFloat("GEMINI_RPS", c.Gemini.RequestsPerSecond)
	c.Gemini.Timeout = getEnvAsDuration("GEMINI_TIMEOUT", c.Gemini.Timeout)

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Token = getEnv("NATS_TOKEN", c.NATS.Token)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)

	c.Calendar.CredentialsFile = getEnv("GOOGLE_CALENDAR_CREDENTIALS", c.Calendar.CredentialsFile)
	c.Calendar.CalendarID = getEnv("GOOGLE_CALENDAR_ID", c.Calendar.CalendarID)

	c.Reminders.FromAddress = getEnv("REMINDERS_FROM", c.Reminders.FromAddress)
	c.Reminders.RecipientsFile = getEnv("REMINDERS_RECIPIENTS", c.Reminders.RecipientsFile)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the settings every entrypoint needs.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if len(c.Ollama.AllowedModels) == 0 {
		return NewAppError("CONFIG_ERROR", "OLLAMA_ALLOWED_MODELS must not be empty", ErrInvalidInput)
	}
	if len(c.Ingest.WatchDirs) > 0 {
		if _, err := uuid.Parse(c.Ingest.WatchOwner); err != nil {
			return NewAppError("CONFIG_ERROR", "WATCH_OWNER_ID must be a UUID when WATCH_DIRS is set", ErrInvalidInput)
		}
	}
	if c.Extraction.MaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "EXTRACTION_MAX_ATTEMPTS must be at least 1", ErrInvalidInput)
	}
	return nil
}
