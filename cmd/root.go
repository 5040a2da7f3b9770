package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"car-price-estimator/config"
	"car-price-estimator/utils"
)

var (
	cfgFile string
	debug   bool

	cfg    *config.Config
	logger *utils.Logger
)

var rootCmd = &cobra.Command{
	Use:   "car-price-estimator",
	Short: "Estimate used-car prices from listing data",
	Long: `car-price-estimator downloads a used-car listings dataset, cleans it, derives
features, trains a random-forest price model and serves estimates through a
CLI, an HTML form and a JSON API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if debug {
			c.LogLevel = "debug"
		}
		cfg = c
		logger = utils.NewLoggerWithLevel(cfg.LogLevel)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (env and .env still apply)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}
