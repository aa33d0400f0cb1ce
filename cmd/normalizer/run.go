package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Siacelp-NTT/Crawler-database/internal/orchestrator"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one processing cycle and exit",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgDir)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	client, _ := setupAI(cfg, logger)
	orch := orchestrator.New(cfg, st, client, logger)

	stats, err := orch.RunCycle(ctx)
	if err != nil {
		logger.Error("cycle failed", "error", err)
		os.Exit(1)
	}

	printSummary(stats, orch.Stats())
	return nil
}

const timeRounding = time.Millisecond

var (
	summaryTitle = lipgloss.NewStyle().Bold(true)
	summaryOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	summaryBad   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	summaryDim   = lipgloss.NewStyle().Faint(true)
)

func printSummary(cycle orchestrator.CycleStats, perSource map[string]orchestrator.SourceStats) {
	fmt.Println(summaryTitle.Render("cycle summary"))
	fmt.Printf("  processed %d   %s   %s   %s   in %s\n",
		cycle.Processed,
		summaryOK.Render(fmt.Sprintf("succeeded %d", cycle.Succeeded)),
		summaryBad.Render(fmt.Sprintf("failed %d", cycle.Failed)),
		summaryDim.Render(fmt.Sprintf("skipped %d", cycle.Skipped)),
		cycle.Duration.Round(timeRounding),
	)

	names := make([]string, 0, len(perSource))
	for name := range perSource {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := perSource[name]
		if s.Processed == 0 {
			continue
		}
		fmt.Printf("  %-14s processed %-4d succeeded %-4d failed %-4d skipped %-4d\n",
			name, s.Processed, s.Succeeded, s.Failed, s.Skipped)
		for _, e := range s.LastErrors {
			fmt.Println(summaryDim.Render("    " + e))
		}
	}
}
