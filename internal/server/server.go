package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/studysift/internal/async"
	"github.com/joseph-ayodele/studysift/internal/calendar"
	"github.com/joseph-ayodele/studysift/internal/export"
	"github.com/joseph-ayodele/studysift/internal/ingest"
	"github.com/joseph-ayodele/studysift/internal/materialize"
	"github.com/joseph-ayodele/studysift/internal/pipeline"
	"github.com/joseph-ayodele/studysift/internal/repository"
)

// Deps are the services the HTTP API exposes. Queue and Calendar may be nil.
type Deps struct {
	Uploads      repository.UploadRepository
	Courses      repository.CourseRepository
	Ingestor     ingest.Ingestor
	Text         *pipeline.TextStage
	Orchestrator *pipeline.Orchestrator
	Materializer *materialize.Materializer
	Queue        async.Queue
	Export       *export.Service
	Calendar     *calendar.Exporter
	Logger       *slog.Logger
}

type Server struct {
	Deps
	router *chi.Mux
	now    func() time.Time
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{Deps: deps, router: chi.NewRouter(), now: time.Now}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Get("/health", s.health)
	s.router.Group(func(r chi.Router) {
		r.Use(requireOwner)

		r.Route("/uploads", func(r chi.Router) {
			r.Post("/", s.registerUpload)
			r.Get("/", s.listUploads)
			r.Post("/batch", s.registerDirectory)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getUpload)
				r.Post("/text", s.extractText)
				r.Post("/extract", s.extractData)
				r.Put("/data", s.replaceData)
				r.Post("/materialize", s.materialize)
				r.Post("/enqueue", s.enqueue)
			})
		})

		r.Get("/courses", s.listCourses)
		r.Delete("/courses/{id}", s.deleteCourse)
		r.Get("/export.xlsx", s.exportXLSX)
		r.Get("/calendar.ics", s.exportICS)
		r.Post("/dates/{id}/calendar", s.exportDate)
	})
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http.serving", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Logger.Info("http.shutdown")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
