package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/snapsell/ebay-auth/internal/authflow"
	"github.com/snapsell/ebay-auth/internal/tokens"
)

const sessionCookie = "sid"

type server struct {
	cfg    Config
	router *chi.Mux
	flow   *authflow.Flow
	tokens *tokens.Manager
}

func newServer(cfg Config, flow *authflow.Flow, manager *tokens.Manager) *server {
	srv := &server{
		cfg:    cfg,
		router: chi.NewRouter(),
		flow:   flow,
		tokens: manager,
	}

	// Set up middleware
	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(middleware.Timeout(30 * time.Second))

	// Register routes
	srv.routes()

	return srv
}

func (s *server) routes() {
	s.router.Get("/health", s.handleHealth())

	s.router.Get("/auth/login", s.handleLogin())
	s.router.Get("/auth/callback", s.handleCallback())
	s.router.Get("/auth/token", s.handleToken())
	s.router.Post("/auth/logout", s.handleLogout())
}

// Helper methods

func (s *server) checkHealth(ctx context.Context) error {
	return s.flow.CheckHealth(ctx)
}

// sessionKey returns the caller's session identifier, issuing a cookie on
// first contact
func (s *server) sessionKey(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

// callerKey returns the rate-limit key for the request. RealIP middleware
// has already resolved proxy headers into RemoteAddr.
func callerKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
