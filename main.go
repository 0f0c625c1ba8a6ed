package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"execution-core/internal/api"
	"execution-core/internal/engine"
	"execution-core/internal/events"
	"execution-core/internal/gateway"
	"execution-core/internal/monitor"
	"execution-core/pkg/config"
	"execution-core/pkg/crypto"
	"execution-core/pkg/i18n"
	"execution-core/pkg/ident"
)

const version = "1.0.0"

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	sugar := log.Sugar()

	i18n.SetLanguage(i18n.Language(cfg.Language))
	sugar.Info(i18n.M().Starting)
	sugar.Infof(i18n.M().ConfigLoaded, cfg.Port)

	var vault *crypto.Vault
	if cfg.CredentialKey != "" {
		vault, err = crypto.NewVault(cfg.CredentialKey)
		if err != nil {
			sugar.Fatalf("credential key rejected: %v", err)
		}
	}

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		sugar.Fatalf(i18n.M().ConfigLoadFailed, err)
	}
	sugar.Infof(i18n.M().ProfileLoaded, len(profile.Venues))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	metrics := monitor.NewExecutionMetrics()

	watcher := monitor.Watcher{Bus: bus, Sink: monitor.LogSink{Log: log}, Log: log}
	watcher.Start(ctx)

	registry, err := gateway.NewRegistry(profile, gateway.Deps{
		Vault:   vault,
		Log:     log,
		Bus:     bus,
		Metrics: metrics,
	})
	if err != nil {
		sugar.Fatalf("build venue registry: %v", err)
	}

	async := engine.NewAsyncExecutor(registry, cfg.Workers, log)

	if err := api.ConfigureAdmin(cfg.AdminUser, cfg.AdminPassword); err != nil {
		sugar.Fatalf("configure admin account: %v", err)
	}
	if cfg.AdminPassword == "" {
		log.Warn("ADMIN_PASSWORD not set, API login is disabled")
	}

	server := api.NewServer(registry, async, bus, metrics, ident.New("exec"), log,
		cfg.JWTSecret, api.SystemMeta{Version: version, Language: cfg.Language})
	go server.CollectResults()

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router,
	}

	go func() {
		sugar.Infof(i18n.M().ServerListening, cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf(i18n.M().APIServerError, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info(i18n.M().ShuttingDown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	// Let in-flight executions finish before the process exits.
	async.Close()
}
