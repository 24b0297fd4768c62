package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/airup-project/airup/internal/airupd"
	"github.com/airup-project/airup/internal/bootfail"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:               "airupd",
	Short:             "Airup's PID-1 service supervisor and milestone orchestration engine",
	Version:           Version,
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

// Execute builds the flag surface and runs the root command. airupd takes
// no subcommands — it is a single long-running process, per spec.md §6.
func Execute() error {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/airup.conf", "path to the main TOML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "bypass the PID==1 requirement and run services directly, without airup_su")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_, err := rootCmd.ExecuteContextC(ctx)

	return err
}

func run(ctx context.Context) error {
	log := buildLogger(debug)
	defer func() { _ = log.Sync() }()

	defer func() {
		if r := recover(); r != nil {
			bootfail.Rescue(log, fmt.Errorf("panic: %v", r))
		}
	}()

	d, err := airupd.New(configPath, debug, log)
	if err != nil {
		bootfail.Rescue(log, err)

		return nil
	}

	defer d.Shutdown()

	if err := d.Run(ctx); err != nil {
		bootfail.Rescue(log, err)

		return nil
	}

	return nil
}

func buildLogger(debug bool) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)

	if debug {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}

	if err != nil {
		log = zap.NewNop()
	}

	return log
}
