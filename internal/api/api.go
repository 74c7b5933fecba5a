// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/good-yellow-bee/clipforge/internal/api/auth"
	"github.com/good-yellow-bee/clipforge/internal/api/health"
	"github.com/good-yellow-bee/clipforge/internal/api/middleware"
	"github.com/good-yellow-bee/clipforge/internal/editor"
	"github.com/good-yellow-bee/clipforge/internal/quota"
	"github.com/good-yellow-bee/clipforge/internal/storage"
	"github.com/good-yellow-bee/clipforge/internal/timeline"
	"github.com/good-yellow-bee/clipforge/pkg/config"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address          string
	JWTSecret        []byte
	HTTPTLSEnabled   bool   // Enable HTTPS for API server
	HTTPTLSCertFile  string // HTTPS certificate file
	HTTPTLSKeyFile   string // HTTPS private key file
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	RateLimitPerIP   int
	RateLimitPerUser int
	LockoutThreshold int
	LockoutDuration  time.Duration
	CleanupInterval  time.Duration // Expired token and limiter pruning
	Verbose          bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = 7 * 24 * time.Hour // 7 days
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 10
	}
	if c.RateLimitPerUser == 0 {
		c.RateLimitPerUser = 300 // editing sends a request per keystroke burst
	}
	if c.LockoutThreshold == 0 {
		c.LockoutThreshold = 5 // 5 failed attempts
	}
	if c.LockoutDuration == 0 {
		c.LockoutDuration = 30 * time.Minute
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = time.Hour
	}
}

// Deps are the domain services the API serves.
type Deps struct {
	Storage  storage.Storage
	Tracker  *quota.Tracker
	Sessions *editor.Manager
	Resolver *timeline.Resolver
}

// Server is the HTTP API server.
type Server struct {
	config *Config
	deps   Deps

	jwt         *auth.JWTService
	tokens      *auth.TokenService
	lockout     *auth.LockoutTracker
	ipLimiter   *middleware.RateLimiter
	userLimiter *middleware.RateLimiter

	server        *http.Server
	healthHandler *health.Handler
}

// New creates a new API server.
func New(cfg *Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if deps.Tracker == nil || deps.Sessions == nil {
		return nil, fmt.Errorf("quota tracker and session manager are required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT secret is required")
	}
	if deps.Resolver == nil {
		deps.Resolver = timeline.NewResolver(0)
	}

	cfg.SetDefaults()

	s := &Server{
		config:        cfg,
		deps:          deps,
		jwt:           auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL),
		tokens:        auth.NewTokenService(deps.Storage.Tokens(), deps.Storage.Users(), cfg.RefreshTokenTTL),
		lockout:       auth.NewLockoutTracker(cfg.LockoutThreshold, cfg.LockoutDuration),
		ipLimiter:     middleware.NewRateLimiter(cfg.RateLimitPerIP),
		userLimiter:   middleware.NewRateLimiter(cfg.RateLimitPerUser),
		healthHandler: health.NewHandler(config.ShortVersionString()),
	}
	s.healthHandler.RegisterChecker(health.NewFuncChecker("quota_limits", func(context.Context) error {
		return deps.Tracker.Limits().Validate()
	}))
	s.healthHandler.RegisterChecker(health.NewAutosaveChecker(deps.Sessions))
	s.healthHandler.SetSessions(deps.Sessions)

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.setupRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.HTTPTLSEnabled {
		s.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run starts the HTTP server and blocks until context is canceled. Editing
// sessions are closed on shutdown, waiting for saves already in flight.
func (s *Server) Run(ctx context.Context) error {
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	go s.ipLimiter.Run(bgCtx)
	go s.userLimiter.Run(bgCtx)
	go s.lockout.Run(bgCtx, time.Minute)
	go s.cleanupTokens(bgCtx)

	errChan := make(chan error, 1)

	go func() {
		log.Printf("HTTP API listening on %s", s.config.Address)
		var err error
		if s.config.HTTPTLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.HTTPTLSCertFile, s.config.HTTPTLSKeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down HTTP API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.server.Shutdown(shutdownCtx)
		s.deps.Sessions.CloseAll()
		return err
	case err := <-errChan:
		s.deps.Sessions.CloseAll()
		return err
	}
}

func (s *Server) cleanupTokens(ctx context.Context) {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.tokens.Cleanup(ctx)
			if err != nil {
				log.Printf("token cleanup error: %v", err)
				continue
			}
			if n > 0 && s.config.Verbose {
				log.Printf("token cleanup: removed %d expired refresh tokens", n)
			}
		}
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	if s.healthHandler != nil {
		s.healthHandler.RegisterChecker(c)
	}
}
