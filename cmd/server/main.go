package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/clipforge/internal/api"
	"github.com/good-yellow-bee/clipforge/internal/api/health"
	"github.com/good-yellow-bee/clipforge/internal/editor"
	"github.com/good-yellow-bee/clipforge/internal/metrics"
	"github.com/good-yellow-bee/clipforge/internal/quota"
	"github.com/good-yellow-bee/clipforge/internal/storage"
	"github.com/good-yellow-bee/clipforge/internal/timeline"
	"github.com/good-yellow-bee/clipforge/pkg/config"
)

// minJWTSecretLen is the shortest accepted HMAC secret.
const minJWTSecretLen = 32

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "clipforge-server",
	Short: "ClipForge Server - video editing backend",
	Long: `ClipForge Server hosts editing sessions, autosaves projects,
resolves timelines into render instructions and meters AI generations
and media storage per account.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("clipforge-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
		cfg.Server.AllowInsecure = true
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.HTTPAddress = httpAddr
	}
	cfg.Verbose = verbose

	jwtSecret := os.Getenv("CLIPFORGE_JWT_SECRET")
	if len(jwtSecret) < minJWTSecretLen {
		return fmt.Errorf("CLIPFORGE_JWT_SECRET environment variable must be at least %d bytes", minJWTSecretLen)
	}

	// Auto-create data directory
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// Create default admin user on first run
	if err := store.EnsureAdminUser(); err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Database.Path)

	tracker := quota.NewTracker(store.Profiles(), store.Usage(), store.Objects(), cfg.Quota)
	sessions := editor.NewManager(store.Projects(), cfg.AutosaveSettings(), cfg.Verbose)

	access, refresh, lockout := cfg.authDurations()
	apiCfg := &api.Config{
		Address:          cfg.Server.HTTPAddress,
		JWTSecret:        []byte(jwtSecret),
		HTTPTLSEnabled:   cfg.Server.TLS.Enabled,
		HTTPTLSCertFile:  cfg.Server.TLS.CertFile,
		HTTPTLSKeyFile:   cfg.Server.TLS.KeyFile,
		AccessTokenTTL:   access,
		RefreshTokenTTL:  refresh,
		RateLimitPerIP:   cfg.Auth.RateLimitPerIP,
		RateLimitPerUser: cfg.Auth.RateLimitPerUser,
		LockoutThreshold: cfg.Auth.LockoutThreshold,
		LockoutDuration:  lockout,
		Verbose:          cfg.Verbose,
	}
	srv, err := api.New(apiCfg, api.Deps{
		Storage:  store,
		Tracker:  tracker,
		Sessions: sessions,
		Resolver: timeline.NewResolver(cfg.Render.SafeFrames),
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	srv.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))

	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("starting clipforge-server %s", config.Version)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Run(gCtx); err != nil {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	})
	if cfg.Server.MetricsAddress != "" {
		ms := metrics.NewServer(cfg.Server.MetricsAddress)
		g.Go(func() error { return ms.Run(gCtx) })
	}
	if configFile != "" {
		g.Go(func() error { return watchLimits(gCtx, configFile, tracker) })
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Printf("server stopped")
	return nil
}
