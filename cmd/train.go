package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"car-price-estimator/config"
	"car-price-estimator/models"
	"car-price-estimator/regressor"
	"car-price-estimator/scraper/gdrive"
	"car-price-estimator/services"
	"car-price-estimator/storage"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Clean the dataset, fit the preprocessor and the price model",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureDataset(cmd); err != nil {
			return err
		}

		raw, err := storage.ReadRawCSV(cfg.DatasetPath, logger)
		if err != nil {
			return err
		}

		res, err := services.NewTrainer(trainConfig(cfg), logger).Train(raw)
		if err != nil {
			return err
		}

		pre := &storage.PreprocessorArtifact{Transform: res.Transform, Features: res.Features, Stats: *res.Stats}
		if err := storage.SavePreprocessor(cfg.PreprocessorPath, pre); err != nil {
			return err
		}
		if err := storage.SaveModel(cfg.ModelPath, res.Model); err != nil {
			return err
		}
		manifest := storage.NewManifest(res, cfg.DatasetPath, cfg.PreprocessorPath, cfg.ModelPath)
		if err := storage.WriteManifest(cfg.ManifestPath, manifest); err != nil {
			return err
		}

		if err := exportListings(res.Listings); err != nil {
			logger.Error("Export of cleaned listings failed: %v", err)
		}

		fmt.Printf("✓ Model %s trained on %d of %d rows in %s\n",
			manifest.ModelID, res.TrainRows, res.RawRows, res.Duration.Round(time.Millisecond))
		if res.Metrics != nil {
			fmt.Printf("  Holdout (%d rows): RMSE %.2f | MAE %.2f | R² %.4f\n",
				res.Metrics.N, res.Metrics.RMSE, res.Metrics.MAE, res.Metrics.R2)
		}
		fmt.Printf("  Preprocessor → %s\n  Model        → %s\n  Manifest     → %s\n",
			cfg.PreprocessorPath, cfg.ModelPath, cfg.ManifestPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

// trainConfig maps the application configuration onto training settings.
func trainConfig(c *config.Config) services.TrainConfig {
	forest := regressor.NewRandomForest()
	forest.NEstimators = c.NEstimators
	forest.MaxDepth = c.MaxDepth
	forest.MinSamplesSplit = c.MinSamplesSplit
	forest.MinSamplesLeaf = c.MinSamplesLeaf
	forest.MaxFeatures = c.MaxFeatures
	forest.Bootstrap = c.Bootstrap
	forest.RandomState = c.RandomState
	forest.Workers = c.MaxConcurrency

	return services.TrainConfig{
		Features: services.FeatureConfig{
			ReferenceYear:     c.ReferenceYear,
			PowerLowThreshold: c.PowerLowThreshold,
		},
		Forest:    *forest,
		EvalRatio: c.EvalRatio,
	}
}

// ensureDataset downloads the dataset when it is not on disk yet.
func ensureDataset(cmd *cobra.Command) error {
	_, err := os.Stat(cfg.DatasetPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if cfg.DatasetURL == "" {
		return fmt.Errorf("dataset %s not found and DATASET_URL is empty", cfg.DatasetPath)
	}

	logger.Info("Dataset %s not found, downloading", cfg.DatasetPath)
	_, err = gdrive.New(cfg, logger).Fetch(cmd.Context(), cfg.DatasetURL, cfg.DatasetPath)
	return err
}

// exportListings writes the cleaned listings to CSV and, when enabled, to
// PostgreSQL.
func exportListings(listings []*models.Listing) error {
	writers := []storage.ListingWriter{}

	csvWriter, err := storage.NewCSVWriter(cfg.CleanCSVPath)
	if err != nil {
		return err
	}
	writers = append(writers, csvWriter)

	if cfg.PostgresEnabled {
		pgWriter, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
		} else {
			writers = append(writers, pgWriter)
		}
	}

	var errs []error
	for _, w := range writers {
		if err := w.Write(listings); err != nil {
			errs = append(errs, err)
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		logger.Info("Cleaned listings saved to %s", cfg.CleanCSVPath)
	}
	return errors.Join(errs...)
}
