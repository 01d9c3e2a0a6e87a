package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func executeCLI() error {
	root := buildRootCommand()
	return root.Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool
	var configPath string

	root := &cobra.Command{
		Use:   "healthtwin",
		Short: "Budget-aware health coach: compresses health logs into bounded memory and recommends from it",
		Long: strings.TrimSpace(`healthtwin is a small agentic pipeline.

It compresses a raw health log into a bounded, explainable summary, persists
that summary as single-slot memory, and produces budget-tiered recommendations
from the summary alone - never from raw history.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.healthtwin/config.json)")

	root.AddCommand(newRunCommand(&configPath))
	root.AddCommand(newShowCommand(&configPath))
	root.AddCommand(newClearCommand(&configPath))
	root.AddCommand(newScheduleCommand(&configPath))
	root.AddCommand(newShellCommand(&configPath))
	root.AddCommand(newVersionCommand())

	return root
}

func newRunCommand(configPath *string) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one compress-store-recommend cycle over a health log",
		Long:  "Aggregate the raw health log, compress it into the single memory slot, and print budget-tiered recommendations.",
		Example: strings.Join([]string{
			"  healthtwin run --data data/health_records.json",
			"  healthtwin run --budget HIGH",
			"  healthtwin run --fallback",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = *configPath
			return runPipeline(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.dataPath, "data", "d", "", "Path to the raw health records JSON file")
	cmd.Flags().StringVarP(&opts.budget, "budget", "b", "", "Budget mode override: LOW, BALANCED, or HIGH")
	cmd.Flags().BoolVar(&opts.fallback, "fallback", false, "Force deterministic recommendations, skip the external call")
	cmd.Flags().IntVar(&opts.windowDays, "window-days", 0, "Override the retention window (default derived from budget mode)")

	return cmd
}

func newShowCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "show",
		Short:   "Print the persisted compressed memory and store stats",
		Example: "  healthtwin show",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showMemory(cmd.Context(), *configPath, cmd.OutOrStdout())
		},
	}
}

func newClearCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "clear",
		Short:   "Reset the memory slot",
		Example: "  healthtwin clear",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearMemory(cmd.Context(), *configPath, cmd.OutOrStdout())
		},
	}
}

func newScheduleCommand(configPath *string) *cobra.Command {
	var opts runOptions
	var cronExpr string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on a cron schedule",
		Long:  "Validate the cron expression and run one pipeline cycle whenever it is due, until interrupted.",
		Example: strings.Join([]string{
			"  healthtwin schedule --cron \"0 7 * * *\"",
			"  healthtwin schedule --cron \"*/30 * * * *\" --budget LOW",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = *configPath
			return runSchedule(cmd.Context(), opts, cronExpr, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression controlling when runs fire (required)")
	cmd.Flags().StringVarP(&opts.dataPath, "data", "d", "", "Path to the raw health records JSON file")
	cmd.Flags().StringVarP(&opts.budget, "budget", "b", "", "Budget mode override: LOW, BALANCED, or HIGH")
	cmd.Flags().BoolVar(&opts.fallback, "fallback", false, "Force deterministic recommendations")
	_ = cmd.MarkFlagRequired("cron")

	return cmd
}

func newShellCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "shell",
		Short:   "Interactive console: run, show, clear, and switch budget modes",
		Example: "  healthtwin shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), *configPath, cmd.OutOrStdout())
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show build/version metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func getConfigPath(override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".healthtwin", "config.json")
	}
	return filepath.Join(home, ".healthtwin", "config.json")
}
