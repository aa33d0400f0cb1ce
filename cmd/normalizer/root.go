package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/Siacelp-NTT/Crawler-database/internal/ai"
	"github.com/Siacelp-NTT/Crawler-database/internal/config"
	"github.com/Siacelp-NTT/Crawler-database/internal/model"
	"github.com/Siacelp-NTT/Crawler-database/internal/store"
)

var (
	cfgDir string
	dbPath string
	debug  bool
)

var rootCmd = &cobra.Command{
	Use:   "normalizer",
	Short: "Job-posting normalization engine",
	Long:  "Normalizer transforms scraped job postings into the normalized store using per-source configuration rules.",
	// Default to `run` so invoking the binary directly performs one cycle.
	RunE: runOnce,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgDir, "config", "c", "", "path to config directory (default: NORMALIZER_CONFIG env var or ./config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "jobs.db", "SQLite database path (ignored when DATABASE_URL is set)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config directory and parses it.
// Priority: --config flag > NORMALIZER_CONFIG env var > "./config"
func loadConfig(dir string) (*config.Config, error) {
	if dir == "" {
		if env := os.Getenv("NORMALIZER_CONFIG"); env != "" {
			dir = env
		} else {
			dir = "config"
		}
	}
	return config.Load(dir)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// openStore picks Postgres when DATABASE_URL is set, SQLite otherwise.
func openStore(ctx context.Context, logger *slog.Logger) (model.Store, error) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		logger.Info("using postgres store")
		return store.NewPostgresStore(ctx, url)
	}
	logger.Info("using sqlite store", "path", dbPath)
	return store.NewSQLiteStore(dbPath)
}

// setupAI wires the fallback client and its daily budget. With ai.enabled
// false the nop provider makes every fallback a quiet miss.
func setupAI(cfg *config.Config, logger *slog.Logger) (*ai.Client, *ai.Budget) {
	budget := ai.NewBudget(cfg.Global.AI.DailyBudget)

	var provider ai.Provider
	if cfg.Global.AI.Enabled {
		httpClient := &http.Client{Timeout: cfg.Global.AI.Timeout}
		provider = ai.NewOpenAIProvider(cfg.Global.AI.BaseURL, cfg.Global.AI.APIKey, cfg.Global.AI.Model, httpClient)
		logger.Info("ai fallback enabled", "model", cfg.Global.AI.Model, "daily_budget", cfg.Global.AI.DailyBudget)
	} else {
		provider = ai.NewNopProvider()
	}

	return ai.NewClient(provider, budget, cfg.Global.AI.Timeout, logger), budget
}
