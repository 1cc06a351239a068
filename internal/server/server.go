package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/schoollms/apiserver/config"
	"github.com/schoollms/apiserver/internal/handlers"
	"github.com/schoollms/apiserver/internal/mq"
	"github.com/schoollms/apiserver/internal/storage"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	logger     *zap.Logger
}

// New opens the configured store, broker and object storage, seeds demo
// data into the memory store when enabled and builds the router.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	repos, dbConn, err := OpenRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}
	srv := &Server{db: dbConn, logger: logger}

	var opts Options
	broker, err := mq.Open(ctx, cfg)
	if err != nil {
		srv.close()
		return nil, fmt.Errorf("open message broker: %w", err)
	}
	if broker != nil {
		srv.mq = broker
		opts.Events = broker
		logger.Info("lesson events enabled", zap.String("backend", cfg.MQBackend))
	}

	objects, err := storage.Open(ctx, cfg)
	if err != nil {
		srv.close()
		return nil, fmt.Errorf("open object storage: %w", err)
	}
	if objects != nil {
		opts.Objects = objects
		logger.Info("timetable exports enabled",
			zap.String("backend", cfg.StorageBackend), zap.String("bucket", objects.Bucket()))
	}

	app := NewApp(cfg, repos, opts, logger)
	if cfg.SeedDemoData && cfg.StoreDriver == config.StoreDriverMemory {
		if _, err := app.Seed(ctx, cfg, logger); err != nil {
			srv.close()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	router, err := NewRouter(app, logger)
	if err != nil {
		srv.close()
		return nil, err
	}
	srv.router = router

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

// NewRouter mounts every route over app.
func NewRouter(app *App, logger *zap.Logger) (*chi.Mux, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer, err := handlers.NewRenderer(logger.Named("pages"))
	if err != nil {
		return nil, err
	}

	auth := handlers.NewAuthHandler(app.Auth, logger.Named("http"))
	pages := handlers.NewPageHandler(app.Auth, renderer, logger.Named("http"))
	lessons := handlers.NewLessonHandler(app.Lessons, renderer, logger.Named("http"))
	timetables := handlers.NewTimetableHandler(app.Timetables, renderer, logger.Named("http"))
	admin := handlers.NewAdminHandler(app.Users, app.Auth, app.Exports, logger.Named("http"))

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		handlers.RequestLogger(logger.Named("access")),
		middleware.Timeout(60*time.Second),
		auth.Authenticate,
	)

	router.Get("/healthz", handlers.Healthz)
	router.Post("/token", auth.Token)
	router.With(auth.RequireUser).Get("/protected", auth.Protected)
	router.With(auth.RequireUser).Get("/users/me", auth.Me)
	handlers.PageRouter(router, pages, auth.RequirePageUser)

	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, auth)
	})
	router.Route("/lessons", func(r chi.Router) {
		handlers.LessonRouter(r, lessons, auth)
	})
	router.With(auth.RequirePageUser).Get("/timetable/", timetables.View)
	router.Route("/timetables", func(r chi.Router) {
		r.Use(auth.RequireUser)
		handlers.TimetableRouter(r, timetables)
	})
	router.Route("/admin", func(r chi.Router) {
		r.With(auth.RequirePageUser).Get("/timetables", timetables.AdminList)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			handlers.AdminRouter(r, admin)
		})
	})
	return router, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run starts the server and shuts it down gracefully when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests and releases the store and broker.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			s.logger.Warn("failed to close message broker", zap.Error(err))
		}
		s.mq = nil
	}
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}
