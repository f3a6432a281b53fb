package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/studysift/internal/app"
	"github.com/joseph-ayodele/studysift/internal/common"
)

// localOwner is used when no --owner is given, so single-user runs share one owner.
var localOwner = uuid.NewSHA1(uuid.NameSpaceOID, []byte("studysift-local"))

type globalFlags struct {
	configPath string
	inmem      bool
	jsonLogs   bool
	verbose    bool
	owner      string
}

var flags globalFlags

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "studysift",
		Short:         "Extract course schedules, dates and instructors from syllabi and slides",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", os.Getenv("STUDYSIFT_CONFIG"), "path to a YAML config file")
	pf.BoolVar(&flags.inmem, "inmem", false, "use a throwaway in-memory SQLite database")
	pf.BoolVar(&flags.jsonLogs, "json-logs", false, "log as JSON to stderr")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level")
	pf.StringVar(&flags.owner, "owner", os.Getenv("STUDYSIFT_OWNER_ID"), "owner id (UUID) the documents belong to")

	root.AddCommand(
		newServeCmd(),
		newTextCmd(),
		newExtractCmd(),
		newBatchCmd(),
		newRemindCmd(),
		newExportCmd(),
		newDBHealthCmd(),
	)
	return root
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var logger *slog.Logger
	if flags.jsonLogs {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	slog.SetDefault(logger)
	return logger
}

// setup loads configuration and wires the application for one command run.
func setup(ctx context.Context) (*app.App, error) {
	logger := newLogger()
	cfg, err := common.LoadConfigFile(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = "inmem"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, flags.inmem, logger)
}

func ownerID() (uuid.UUID, error) {
	if flags.owner == "" {
		return localOwner, nil
	}
	id, err := uuid.Parse(flags.owner)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--owner must be a UUID: %w", err)
	}
	return id, nil
}
