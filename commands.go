package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/testacc-art/invest/internal/config"
	"github.com/testacc-art/invest/internal/logging"
	"github.com/testacc-art/invest/internal/model"
	"github.com/testacc-art/invest/internal/version"
)

// rootOptions carries the logging flags shared by every subcommand.
type rootOptions struct {
	logLevel string
	logJSON  bool
}

func (o *rootOptions) logger() zerolog.Logger {
	return logging.New(os.Stderr, o.logLevel, !o.logJSON)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "invest-awy",
		Short: "Annual water yield and hydropower valuation model",
		Long: `invest-awy computes annual water yield per land-cover cell from
precipitation, reference evapotranspiration, soil depth and plant-available
water content, aggregates it over watersheds and subwatersheds, and
optionally nets out consumptive demand and values the remainder as
hydropower production.`,
		Example: `  # Check a run configuration without executing
  invest-awy validate -c run.yaml

  # Execute a run with four parallel workers
  invest-awy run -c run.yaml --workers 4`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "emit JSON log lines instead of console output")
	cmd.AddCommand(newRunCmd(opts), newValidateCmd(), newVersionCmd())
	return cmd
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		configPath string
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate a run configuration and execute the model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				cfg.NWorkers = &workers
			}
			if issues := cfg.Validate(); len(issues) > 0 {
				printIssues(cmd, issues)
				return fmt.Errorf("configuration has %d problem(s)", len(issues))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := opts.logger()
			return model.Execute(logging.WithContext(ctx, log), log, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "run.yaml", "run configuration YAML")
	cmd.Flags().IntVar(&workers, "workers", 0, "override n_workers from the config")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a run configuration without executing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if issues := cfg.Validate(); len(issues) > 0 {
				printIssues(cmd, issues)
				return fmt.Errorf("configuration has %d problem(s)", len(issues))
			}
			cmd.Println("configuration is valid")
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "run.yaml", "run configuration YAML")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build metadata",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version.String())
		},
	}
}

// printIssues lists every validation problem, one per line.
func printIssues(cmd *cobra.Command, issues []config.Issue) {
	for _, issue := range issues {
		cmd.PrintErrln(issue.String())
	}
}
