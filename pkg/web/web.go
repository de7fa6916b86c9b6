// Package web serves the content generator as a single-page web app. Runs
// execute in the background; the page follows a run over a websocket and
// fetches the article once it is done.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/germanamz/contentcrew/pkg/agentctx"
	"github.com/germanamz/contentcrew/pkg/content"
	"github.com/germanamz/contentcrew/pkg/engine"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// DefaultMaxRuns is how many runs are kept in memory unless configured.
const DefaultMaxRuns = 100

// eventBuffer is the per-run subscription buffer.
const eventBuffer = 256

//go:embed templates/index.html
var templates embed.FS

var pageTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

// Generator runs generations and reports their progress. *engine.Engine
// implements it.
type Generator interface {
	Generate(ctx context.Context, params content.Params) (engine.Result, error)
	Events() *engine.EventBus
}

// Options configures a Server.
type Options struct {
	Logger         *slog.Logger
	MissingSecrets []string // Env names of unset API keys, shown as warnings.
	MaxRuns        int      // 0 = DefaultMaxRuns.
}

// Server is the web frontend.
type Server struct {
	gen    Generator
	log    *slog.Logger
	opts   Options
	runs   *runStore
	router chi.Router

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now   func() time.Time
	newID func() string
}

// New creates a Server. Call Close to cancel and wait for background runs.
func New(gen Generator, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxRuns <= 0 {
		opts.MaxRuns = DefaultMaxRuns
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		gen:    gen,
		log:    opts.Logger,
		opts:   opts,
		runs:   newRunStore(opts.MaxRuns),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/", s.index)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/runs", func(r chi.Router) {
		r.Post("/", s.createRun)
		r.Get("/{id}", s.getRun)
		r.Get("/{id}/events", s.streamEvents)
		r.Get("/{id}/download", s.download)
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close cancels running generations and waits for them to return.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and closes the Server.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("web server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return fmt.Errorf("web: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}

// start registers a run and generates it in the background. Engine events
// for the run are recorded until Generate returns, and the run is only
// marked finished after the last of them.
func (s *Server) start(params content.Params) *run {
	id := s.newID()
	rn := newRun(id, params, s.now())
	s.runs.add(rn)

	bus := s.gen.Events()
	sub := bus.Subscribe(eventBuffer)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for e := range sub.C {
			if e.RunID == id {
				rn.appendEvent(e)
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		res, err := s.gen.Generate(agentctx.WithRunID(s.ctx, id), params)
		bus.Unsubscribe(sub)
		<-forwarded

		if err != nil {
			s.log.Warn("web run failed", "run_id", id, "error", err)
		}
		rn.finish(res, err)
	}()

	return rn
}
