package cmd

import (
	"github.com/spf13/cobra"

	"car-price-estimator/models"
	"car-price-estimator/services"
	"car-price-estimator/storage"
)

var reportFromDB bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print dataset statistics",
	Long: `report profiles the raw dataset columns, cleans the listings and prints price
and category statistics. With --from-db the listings stored in PostgreSQL by
the last training run are reported instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		insights := services.NewInsightService(logger)

		if reportFromDB {
			pw, err := storage.NewPostgresWriter(cfg.DSN())
			if err != nil {
				return err
			}
			defer pw.Close()
			listings, err := fetchListings(pw)
			if err != nil {
				return err
			}
			insights.Print(insights.Generate(listings))
			return nil
		}

		if err := ensureDataset(cmd); err != nil {
			return err
		}
		raw, err := storage.ReadRawCSV(cfg.DatasetPath, logger)
		if err != nil {
			return err
		}
		listings, _ := services.NewCleaner(logger).Clean(raw)
		services.NewFeatureDeriver(trainConfig(cfg).Features, logger).Derive(listings)

		report := insights.Generate(listings)
		report.Columns = insights.Profile(raw)
		insights.Print(report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().BoolVar(&reportFromDB, "from-db", false, "report the listings stored in PostgreSQL")
}

func fetchListings(src storage.ListingSource) ([]*models.Listing, error) {
	listings, err := src.FetchAll()
	if err != nil {
		return nil, err
	}
	logger.Info("Fetched %d listings from the database", len(listings))
	return listings, nil
}
