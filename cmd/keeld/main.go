// Command keeld runs the recommendation governance service: it fronts the
// advisor, validates every recommendation against the active rule pack,
// and applies approved changes to the planning store.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/compasshq/keel/pkg/advisor"
	"github.com/compasshq/keel/pkg/alignment"
	"github.com/compasshq/keel/pkg/api"
	"github.com/compasshq/keel/pkg/config"
	"github.com/compasshq/keel/pkg/database"
	"github.com/compasshq/keel/pkg/executor"
	"github.com/compasshq/keel/pkg/governance"
	"github.com/compasshq/keel/pkg/ledger"
	"github.com/compasshq/keel/pkg/observability"
	"github.com/compasshq/keel/pkg/planning"
	"github.com/compasshq/keel/pkg/rulepack"
	"github.com/compasshq/keel/pkg/session"
	"github.com/compasshq/keel/pkg/transcript"
)

const serviceVersion = "0.3.0"

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("keeld exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	logger.Info("database connected", "dsn_scheme", dsnScheme(cfg.DatabaseURL))

	planStore := planning.NewSQLStore(db)
	if err := planStore.Init(ctx); err != nil {
		return err
	}
	scriptStore := transcript.NewSQLStore(db)
	if err := scriptStore.Init(ctx); err != nil {
		return err
	}

	keyring, err := newKeyring(cfg, logger)
	if err != nil {
		return err
	}
	led := ledger.NewSQLLedger(db, keyring)
	if err := led.Init(ctx); err != nil {
		return err
	}

	// Rule pack: a failed load at boot is fatal; a failed refresh later
	// keeps the previous snapshot.
	source, err := rulepack.NewSource(ctx, cfg.RulePackURL)
	if err != nil {
		return err
	}
	engines := governance.NewProvider(governance.DefaultMatchers())
	if err := loadRulePack(ctx, source, engines); err != nil {
		return err
	}
	snap := engines.Current().Snapshot
	logger.Info("rule pack loaded",
		"version", snap.Version, "non_negotiables", len(snap.NonNegotiables))

	var cache alignment.Cache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		defer client.Close()
		cache = alignment.NewRedisCache(client)
		logger.Info("redis connected", "addr", cfg.RedisAddr)
	}

	agg := alignment.New(led, func() *rulepack.Snapshot { return engines.Current().Snapshot }, cache, logger)

	registry := executor.NewRegistry()
	if err := executor.RegisterBuiltins(registry); err != nil {
		return err
	}
	exec := executor.New(planStore, registry, agg.Invalidate, logger)

	adv := advisor.NewOpenAIAdvisor(advisor.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	}, logger)

	var obs *observability.Provider
	if cfg.OTelEnabled {
		obs, err = observability.NewProvider(ctx, observability.Config{
			ServiceName:    "keeld",
			ServiceVersion: serviceVersion,
			OTLPEndpoint:   cfg.OTLPEndpoint,
			Enabled:        true,
		}, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = obs.Shutdown(shutdownCtx)
		}()
	}

	orch := session.NewOrchestrator(adv, engines, led, exec, scriptStore, agg, session.Options{
		Observability:  obs,
		Logger:         logger,
		AdvisorTimeout: cfg.AdvisorTimeout,
	})

	// Periodic rule-pack refresh. A bad pack is logged and skipped; every
	// in-flight turn keeps the snapshot it started with either way.
	go refreshLoop(ctx, source, engines, cfg.RefreshInterval, logger)

	limiter := api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           limiter.Middleware(api.NewServer(orch, scriptStore, logger).Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadRulePack(ctx context.Context, source rulepack.Source, engines *governance.Provider) error {
	raw, err := source.Fetch(ctx)
	if err != nil {
		return err
	}
	snap, err := rulepack.Parse(raw)
	if err != nil {
		return err
	}
	return engines.Swap(snap)
}

func refreshLoop(ctx context.Context, source rulepack.Source, engines *governance.Provider, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := loadRulePack(ctx, source, engines); err != nil {
				logger.Warn("rule pack refresh failed, keeping previous snapshot", "error", err)
				continue
			}
			logger.Info("rule pack refreshed", "version", engines.Current().Snapshot.Version)
		}
	}
}

func newKeyring(cfg *config.Config, logger *slog.Logger) (*ledger.Keyring, error) {
	if cfg.MasterSecret == "" {
		logger.Warn("KEEL_MASTER_SECRET not set, using an ephemeral signing key")
		return ledger.NewEphemeralKeyring()
	}
	return ledger.NewKeyring([]byte(cfg.MasterSecret))
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func dsnScheme(dsn string) string {
	if i := strings.Index(dsn, "://"); i > 0 {
		return dsn[:i]
	}
	return dsn
}
