package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Siacelp-NTT/Crawler-database/internal/orchestrator"
	"github.com/Siacelp-NTT/Crawler-database/internal/scheduler"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the processing daemon",
	Long:  "Start the cycle scheduler; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgDir)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"sources", len(cfg.Sources),
		"batch_size", cfg.Global.BatchSize,
		"cycle_interval", cfg.Global.CycleInterval.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	client, budget := setupAI(cfg, logger)
	orch := orchestrator.New(cfg, st, client, logger)

	sched := scheduler.New(orch, budget, cfg.Global.CycleInterval, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
