package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"car-price-estimator/scraper/gdrive"
)

var fetchURL string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the listings dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := cfg.DatasetURL
		if fetchURL != "" {
			url = fetchURL
		}
		n, err := gdrive.New(cfg, logger).Fetch(cmd.Context(), url, cfg.DatasetPath)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Dataset saved: %s (%d bytes)\n", cfg.DatasetPath, n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVar(&fetchURL, "url", "", "dataset URL (overrides DATASET_URL)")
}
