// Command taskmeshd is the taskmesh server daemon. It wires the task store,
// routing policy, executor registry, ledger, and HTTP server from the YAML
// config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/taskmesh/taskmesh/config"
	"github.com/taskmesh/taskmesh/dispatch"
	"github.com/taskmesh/taskmesh/executor"
	"github.com/taskmesh/taskmesh/internal/version"
	"github.com/taskmesh/taskmesh/ledger"
	"github.com/taskmesh/taskmesh/routing"
	"github.com/taskmesh/taskmesh/server"
	"github.com/taskmesh/taskmesh/task"
)

var configPath = flag.String("config", "taskmesh.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	logger.Info("starting taskmeshd",
		"version", version.Version,
		"commit", version.Commit,
	)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir %s: %v", cfg.DataDir, err)
	}

	store, err := task.NewSQLiteStore(filepath.Join(cfg.DataDir, "tasks.db"))
	if err != nil {
		log.Fatalf("Failed to open task store: %v", err)
	}
	defer store.Close() //nolint:errcheck

	led, err := ledger.NewSQLiteLedger(filepath.Join(cfg.DataDir, "ledger.db"), ledger.Params{
		BaseReward:         cfg.Reward.BaseReward,
		WorkloadMultiplier: cfg.Reward.WorkloadMultiplier,
	})
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer led.Close() //nolint:errcheck

	registry, err := buildExecutors(cfg.Executors, logger)
	if err != nil {
		log.Fatalf("Failed to build executors: %v", err)
	}

	svc, err := dispatch.New(dispatch.Config{
		Registry:  store,
		Policy:    routing.NewPolicy(thresholds(cfg.Routing), nil),
		Executors: registry,
		Ledger:    led,
		Retry: executor.RetryPolicy{
			MaxAttempts:   cfg.Retry.MaxAttempts,
			BaseDelay:     time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
			BackoffFactor: cfg.Retry.BackoffFactor,
		},
		QualityScore: cfg.Reward.QualityScore,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("Failed to build dispatch service: %v", err)
	}

	srv := server.New(*cfg, svc, version.Version, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Printf("taskmesh server running on %s\n", cfg.Server.Addr)
	fmt.Printf("Version: %s (%s)\n", version.Version, version.Commit)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case <-sigCh:
	}

	fmt.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	fmt.Println("Shutdown complete")
}

// loadConfig reads the config file, falling back to defaults when the default
// path does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func thresholds(rc config.RoutingConfig) routing.Thresholds {
	t := routing.DefaultThresholds()
	if rc.ShortMaxLen > 0 {
		t.ShortMaxLen = rc.ShortMaxLen
	}
	if rc.LongMinLen > 0 {
		t.LongMinLen = rc.LongMinLen
	}
	if len(rc.ComplexKeywords) > 0 {
		t.ComplexKeywords = rc.ComplexKeywords
	}
	return t
}

// buildExecutors constructs and registers one executor per configured entry.
func buildExecutors(configs []config.ExecutorConfig, logger *slog.Logger) (*executor.Registry, error) {
	registry := executor.NewRegistry()
	for _, ec := range configs {
		var e executor.Executor
		switch routing.Class(ec.Class) {
		case routing.ClassLocal:
			e = executor.NewLocal(ec.ID, nil)
		case routing.ClassCloud:
			e = executor.NewCloud(executor.CloudConfig{
				ID:       ec.ID,
				Endpoint: ec.Endpoint,
				APIKey:   ec.APIKey,
				Timeout:  time.Duration(ec.TimeoutSeconds) * time.Second,
			})
		case routing.ClassExternal:
			// Integrations register at runtime; until then the class
			// reports unavailable.
			e = executor.NewExternal(ec.ID, nil)
		default:
			return nil, fmt.Errorf("unknown executor class %q", ec.Class)
		}
		if err := registry.Register(e); err != nil {
			return nil, err
		}
		logger.Info("executor registered", "id", e.ID(), "class", string(e.Class()))
	}
	return registry, nil
}
