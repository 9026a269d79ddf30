package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator"
	"github.com/siherrmann/archivist/model"
)

// Service is the read API the server exposes.
type Service interface {
	Component(ctx context.Context, componentType model.ComponentType, id string) (*model.Component, []*model.Reference, error)
	Exists(ctx context.Context, componentType model.ComponentType, id string) error
	List(ctx context.Context, query model.QueryConfig) (*model.Page[*model.Component], error)
	Search(ctx context.Context, query model.QueryConfig) (*model.Page[*model.GroupHit], error)
	Facets(ctx context.Context, query model.QueryConfig) (*model.Facets, error)
	Ancestors(ctx context.Context, id string, query string) (model.AncestorChain, error)
	Children(ctx context.Context, id string, limit int, offset int, query string) (*model.Page[*model.ReferenceNode], error)
	Suggest(ctx context.Context, prefix string, limit int) ([]*model.Suggestion, error)
	CheckIndex(ctx context.Context) error
}

// Config holds the HTTP server configuration
type Config struct {
	Addr            string
	MaxLimit        int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxLimit:        model.MaxLimit,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server serves the archival records API over HTTP.
type Server struct {
	service  Service
	config   Config
	validate *validator.Validate
	logger   *slog.Logger
	router   chi.Router
}

func New(service Service, config Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = model.MaxLimit
	}

	validate := validator.New()
	if err := validate.RegisterValidation("partialdate", partialDate); err != nil {
		panic(err)
	}

	s := &Server{
		service:  service,
		config:   config,
		validate: validate,
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.health)

	r.Group(func(r chi.Router) {
		r.Use(s.requireIndex)

		for _, t := range model.ComponentTypes {
			r.Get("/"+t.Plural(), s.list(t))
			r.Get("/"+t.Plural()+"/{id}", s.detail(t))
		}
		r.Get("/collections/{id}/ancestors", s.ancestors(model.ComponentTypeCollection))
		r.Get("/objects/{id}/ancestors", s.ancestors(model.ComponentTypeObject))
		r.Get("/collections/{id}/children", s.children)
		r.Get("/search", s.search)
		r.Get("/search/suggest", s.suggest)
		r.Get("/facets", s.facets)
	})

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done and then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", slog.String("addr", s.config.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shutdown server", slog.Any("err", err))
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info(
			"Request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// requireIndex rejects requests before any lookup when the index is unavailable.
func (s *Server) requireIndex(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.service.CheckIndex(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
