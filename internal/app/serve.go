package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/studysift/constants"
	"github.com/joseph-ayodele/studysift/internal/async"
	"github.com/joseph-ayodele/studysift/internal/ingest"
	"github.com/joseph-ayodele/studysift/internal/pipeline"
	"github.com/joseph-ayodele/studysift/internal/server"
)

// Serve runs the HTTP API, the gRPC health endpoint, the processing queue and,
// when directories are configured, the watcher. It returns when ctx is done.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config
	queue := async.NewProcessorQueue(a.Processor, a.Logger,
		async.WithWorkers(cfg.Extraction.Workers),
		async.WithQueueSize(cfg.Extraction.QueueSize),
		async.WithProcessTimeout(cfg.Extraction.ProcessTimeout),
	)
	defer queue.Shutdown(context.Background())

	srv := server.NewServer(server.Deps{
		Uploads:      a.Uploads,
		Courses:      a.Courses,
		Ingestor:     a.Ingestor,
		Text:         a.Text,
		Orchestrator: a.Orchestrator,
		Materializer: a.Materializer,
		Queue:        queue,
		Export:       a.Export,
		Calendar:     a.Calendar,
		Logger:       a.Logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Server.HTTPAddr)
	})
	if cfg.Server.GRPCAddr != "" {
		g.Go(func() error {
			return server.ServeGRPC(gctx, cfg.Server.GRPCAddr, func(ctx context.Context) error {
				return a.DB.HealthCheck(ctx, 3*time.Second)
			}, a.Logger)
		})
	}
	if len(cfg.Ingest.WatchDirs) > 0 {
		owner, err := uuid.Parse(cfg.Ingest.WatchOwner)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return a.Watch(gctx, owner, queue)
		})
	}
	return g.Wait()
}

// Watch registers documents appearing under the configured directories and queues new ones.
func (a *App) Watch(ctx context.Context, owner uuid.UUID, queue async.Queue) error {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       a.Config.Ingest.WatchDirs,
		InitialScan: a.Config.Ingest.InitialScan,
		Debounce:    a.Config.Ingest.Debounce,
		Logger:      a.Logger,
	})
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			a.Logger.Warn("watch.error", "error", err)
		case path, ok := <-paths:
			if !ok {
				return nil
			}
			res, err := a.Ingestor.IngestPath(ctx, owner, path)
			if err != nil {
				a.Logger.Error("watch.ingest.failed", "path", path, "error", err)
				continue
			}
			if res.Deduplicated {
				continue
			}
			if err := a.Uploads.SetStatus(ctx, res.UploadID, constants.StatusQueued); err != nil {
				a.Logger.Error("watch.status.failed", "upload_id", res.UploadID, "error", err)
				continue
			}
			err = queue.Enqueue(ctx, async.Job{
				OwnerID:     owner,
				UploadID:    res.UploadID,
				Options:     pipeline.Options{Mode: constants.ModeLocal},
				SubmittedAt: time.Now(),
				TraceID:     uuid.NewString(),
			})
			if err != nil {
				a.Logger.Error("watch.enqueue.failed", "upload_id", res.UploadID, "error", err)
			}
		}
	}
}
