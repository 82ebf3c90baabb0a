package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/config"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/db"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/events"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/handlers"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/media"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/mq"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/services"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/session"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/storage"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/store"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/tokens"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *zap.Logger
	db         *sql.DB
	storage    *storage.Storage
	mq         *mq.MQ
	events     *events.AsyncPublisher
}

// New constructs a Server with its dependencies wired from cfg.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{log: log}

	userRepo, err := s.openUserRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Media)
	if err != nil {
		s.closeDeps()
		return nil, fmt.Errorf("open media storage: %w", err)
	}
	s.storage = objects
	if err := objects.EnsureBucket(ctx); err != nil {
		s.closeDeps()
		return nil, fmt.Errorf("ensure media bucket: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.closeDeps()
		return nil, fmt.Errorf("open message queue: %w", err)
	}
	s.mq = broker

	var publisher services.EventPublisher
	if broker != nil {
		eventLog := log.Named("events")
		s.events = events.NewAsyncPublisher(events.NewPublisher(broker, cfg.MQ.Channel, eventLog), events.DefaultBuffer, eventLog)
		publisher = s.events
	}

	issuer := tokens.NewService(cfg.Auth)
	uploader := media.NewUploader(objects, cfg.Media.KeyPrefix, log.Named("media"))
	authService := services.NewAuthService(userRepo, uploader, issuer, publisher, log.Named("auth"))
	userService := services.NewUserService(userRepo)

	transport := session.NewCookieTransport(cfg.Cookie)
	authHandler := handlers.NewAuthHandler(authService, transport, cfg.Media.TempDir, log.Named("http"))
	requireAuth := handlers.RequireAuth(issuer, userService, transport, log.Named("http"))

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api/v1/users", func(r chi.Router) {
		handlers.UserRouter(r, authHandler, requireAuth)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8000
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server configured",
		zap.Int("port", port),
		zap.String("store", cfg.StoreBackend),
		zap.String("media", cfg.Media.Backend),
		zap.String("mq", cfg.MQ.Backend),
	)
	return s, nil
}

func (s *Server) openUserRepository(ctx context.Context, cfg config.Config) (services.UserRepository, error) {
	if cfg.StoreBackend == "memory" {
		s.log.Warn("using in-memory user store; accounts are lost on restart")
		return store.NewMemoryUserRepository(), nil
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.db = dbConn
	return store.NewUserRepository(dbConn), nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.Info("listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones. Queued
// events are flushed before the backing connections are released.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.events != nil {
		if flushErr := s.events.Close(ctx); flushErr != nil {
			s.log.Warn("failed to flush queued events", zap.Error(flushErr))
		}
	}
	s.closeDeps()
	return err
}

func (s *Server) closeDeps() {
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			s.log.Warn("failed to close message queue", zap.Error(err))
		}
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			s.log.Warn("failed to close media storage", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("failed to close database", zap.Error(err))
		}
	}
}
