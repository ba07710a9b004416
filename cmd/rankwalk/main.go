// Command rankwalk runs search-ranking cycles: query a search engine
// for each configured keyword, locate the target URL in the paginated
// results, click through and linger like a reader, and record ranking
// statistics along the way.
//
// Usage:
//
//	rankwalk -config rankwalk.yaml                   # one sequential cycle
//	rankwalk -config rankwalk.yaml -iterations 50    # 50 randomized iterations
//	rankwalk -config rankwalk.yaml -stats stats.json # export the snapshot
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/rankwalk"
)

func main() {
	configPath := flag.String("config", "", "path to rankwalk.yaml config file")
	iterations := flag.Int("iterations", 0, "run this many randomized iterations (0 = one sequential cycle)")
	provider := flag.String("provider", "", "session provider override: rod or http")
	statsPath := flag.String("stats", "", "write the statistics snapshot to this file (\"-\" for stdout)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *provider, *statsPath, *iterations); err != nil {
		logger.Error("rankwalk: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, provider, statsPath string, iterations int) error {
	if configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: rankwalk -config <file> [-iterations n] [-provider rod|http] [-stats <file>]")
		os.Exit(1)
		return nil
	}

	cfg, err := rankwalk.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if provider != "" {
		cfg.Browser.Provider = provider
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if iterations > 0 {
		cfg.General.RandomExecution.Enabled = true
		cfg.General.RandomExecution.TotalIterations = iterations
	}

	svc, err := rankwalk.FromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("assemble: %w", err)
	}
	defer svc.Close()

	outcomes, err := svc.RunCycle(ctx)
	if err != nil {
		var acquire *rankwalk.AcquireError
		if errors.As(err, &acquire) {
			return fmt.Errorf("acquire browser: %w", err)
		}
		// An interrupted cycle still produced outcomes; report and move on.
		logger.Warn("rankwalk: cycle ended early", "outcomes", len(outcomes), "error", err)
	}

	logger.Info("rankwalk: cycle complete",
		"outcomes", len(outcomes),
		"success_rate", svc.Stats().OverallSuccessRate())

	if statsPath != "" {
		if err := writeSnapshot(svc, statsPath); err != nil {
			return fmt.Errorf("write stats: %w", err)
		}
	}
	return nil
}

func writeSnapshot(svc *rankwalk.Service, path string) error {
	data, err := json.MarshalIndent(svc.Snapshot(24*time.Hour), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
