package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bioguard/internal/adapter/gemini"
	adapthttp "bioguard/internal/adapter/http"
	"bioguard/internal/adapter/memory"
	"bioguard/internal/adapter/postgres"
	"bioguard/internal/app"
	"bioguard/internal/config"
	"bioguard/internal/domain"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	sessionPurgeInterval = time.Hour
	shutdownTimeout      = 10 * time.Second
)

// stores are the repositories the services run on.
type stores struct {
	athletes domain.AthleteRepository
	users    domain.UserRepository
	sessions domain.SessionRepository
	close    func() error
}

func openStores(cfg *config.Config) (*stores, error) {
	if cfg.Database.URL == "" {
		db := memory.New()
		return &stores{athletes: db, users: db, sessions: db.NewSessionRepo(), close: func() error { return nil }}, nil
	}
	db, err := postgres.Open(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	return &stores{athletes: db, users: db, sessions: postgres.NewSessionRepo(db), close: db.Close}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addrFlag != "" {
		cfg.Server.Addr = addrFlag
	}

	logger, err = newLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	authSvc := app.NewAuthService(st.users, st.sessions)
	if cfg.Admin.Username != "" {
		err := authSvc.CreateInitialUser(ctx, cfg.Admin.Username, cfg.Admin.Password)
		switch {
		case errors.Is(err, app.ErrUsersExist):
		case err != nil:
			return fmt.Errorf("create admin: %w", err)
		default:
			logger.Info("admin account created", zap.String("username", cfg.Admin.Username))
		}
	}

	var analyzer domain.VideoAnalyzer
	if cfg.Analysis.APIKey != "" {
		client, err := gemini.New(ctx, gemini.Config{APIKey: cfg.Analysis.APIKey, Model: cfg.Analysis.Model}, logger.Named("gemini"))
		if err != nil {
			return err
		}
		analyzer = client
	} else {
		logger.Warn("GEMINI_API_KEY not set, video analysis disabled")
	}

	// Validated by config.Load.
	timeout, _ := cfg.AnalysisTimeout()
	cooldown, _ := cfg.AnalysisCooldown()

	proxies, _ := cfg.TrustedProxies()
	if len(proxies) > 0 {
		logger.Info("forward auth enabled", zap.Int("trusted_proxies", len(proxies)))
	}

	athletes := st.athletes
	if cfg.Server.SeedDemo {
		athletes = app.WithDemoSeed(athletes)
	}

	roadmap := app.NewRoadmapService(athletes)
	srv := adapthttp.New(adapthttp.Services{
		Registry: app.NewRegistryService(athletes),
		Roadmap:  roadmap,
		Analysis: app.NewAnalysisService(analyzer, athletes, roadmap,
			app.AnalysisConfig{Timeout: timeout, Cooldown: cooldown}, logger.Named("analysis")),
		BodyMap: app.NewBodyMapService(athletes, cfg.Server.BodyMapImage),
		Auth:    authSvc,
	}, cfg.Server.WebDir).
		WithLogger(logger.Named("http")).
		WithMaxUpload(cfg.MaxUploadBytes()).
		WithForwardAuth(proxies)

	if cfg.SSOEnabled() {
		provider, err := oidc.NewProvider(ctx, cfg.OIDC.Issuer)
		if err != nil {
			return fmt.Errorf("oidc provider: %w", err)
		}
		srv = srv.WithOIDC(adapthttp.OIDCConfig{
			Enabled:  true,
			Provider: provider,
			OAuth2Config: oauth2.Config{
				ClientID:     cfg.OIDC.ClientID,
				ClientSecret: cfg.OIDC.ClientSecret,
				RedirectURL:  cfg.OIDC.RedirectURL,
				Endpoint:     provider.Endpoint(),
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
		})
	}

	go purgeSessions(ctx, authSvc)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("version", version))
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func purgeSessions(ctx context.Context, auth *app.AuthService) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := auth.PurgeExpiredSessions(ctx); err != nil {
				logger.Warn("session purge failed", zap.Error(err))
			}
		}
	}
}
