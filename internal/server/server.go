package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/classroll/apiserver/config"
	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/handlers"
	"github.com/classroll/apiserver/internal/logger"
	"github.com/classroll/apiserver/internal/services"
	"github.com/classroll/apiserver/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

const (
	requestTimeout = 60 * time.Second

	authRequestsPerMinute    = 10
	contactRequestsPerMinute = 5
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	app        *App
	log        *zap.Logger
}

// New constructs a Server with its middleware and routes.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	app, err := NewApp(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		if err := app.EnsureAdmin(ctx, cfg.Auth.AdminEmail, "", cfg.Auth.AdminPassword); err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("open video storage: %w", err)
	}
	videos := services.NewVideoService(objects, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logger.Middleware(log),
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Range", "X-Requested-With"},
			ExposedHeaders:   []string{"Accept-Ranges", "Content-Length", "Content-Range", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	authenticate := handlers.Authenticate(app.Authenticator, log)
	guard := handlers.NewGuard(auth.DefaultPolicy(), log)
	videoHandler := handlers.NewVideoHandler(videos, log)

	// Streaming is exempt from the request timeout.
	router.With(authenticate).Route("/videos/play-video", func(r chi.Router) {
		handlers.VideoPlayRouter(r, videoHandler, guard)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/healthz", handlers.Healthz(app.DB, log))

		authLimit := httprate.LimitByIP(authRequestsPerMinute, time.Minute)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, handlers.NewAuthHandler(app.Users, app.Tokens, cfg.Auth.CookieSecure, log), authenticate, authLimit)
		})

		contacts := handlers.NewContactHandler(app.Contacts, log)
		r.With(httprate.LimitByIP(contactRequestsPerMinute, time.Minute)).Post("/contact-admin", contacts.Submit)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Route("/tokens", func(r chi.Router) {
				handlers.TokenRouter(r, handlers.NewTokenHandler(app.Tokens, log), guard)
			})
			r.Route("/pending-users", func(r chi.Router) {
				handlers.UserRouter(r, handlers.NewUserHandler(app.Users, log), guard)
			})
			r.Route("/admin-contacts", func(r chi.Router) {
				handlers.AdminContactRouter(r, contacts, guard)
			})
			r.Route("/videos", func(r chi.Router) {
				handlers.VideoRouter(r, videoHandler, guard)
			})
			handlers.RecordsRouter(r, app.Records, guard, log)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      requestTimeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		app:        app,
		log:        log,
	}, nil
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.app.Close())
}
