package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and exit",
	Long:  "Load the global and per-source configuration, compile every pattern, and report the first error found.",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration invalid: %v\n", err)
		os.Exit(1)
	}

	enabled := cfg.EnabledByPriority()
	fmt.Printf("configuration ok: %d sources declared, %d enabled\n", len(cfg.Sources), len(enabled))
	for _, sc := range enabled {
		fmt.Printf("  %-14s priority %-3d salary patterns %-3d city mappings %-3d\n",
			sc.Name, sc.Priority, len(sc.Salary.Patterns), len(sc.Location.CityMappings))
	}
	return nil
}
