package services

import (
	"errors"
	"fmt"
	"time"

	"car-price-estimator/models"
	"car-price-estimator/preprocess"
	"car-price-estimator/regressor"
	"car-price-estimator/utils"
)

// ErrNoListings is returned when cleaning leaves nothing to train on.
var ErrNoListings = errors.New("services: no listings left after cleaning")

// TrainConfig parameterises one training run.
type TrainConfig struct {
	Features FeatureConfig
	// Forest carries the regressor hyperparameters; its fitted state is
	// ignored.
	Forest regressor.RandomForest
	// EvalRatio is the share of rows held out for evaluation. Zero trains
	// on every row.
	EvalRatio float64
}

// TrainResult is everything a training run produces.
type TrainResult struct {
	Transform *preprocess.ColumnTransform
	Model     *regressor.RandomForest
	Features  FeatureConfig
	Stats     *models.FittedStats
	Listings  []*models.Listing
	// Metrics is nil when no rows were held out.
	Metrics   *regressor.Metrics
	RawRows   int
	TrainRows int
	TestRows  int
	Duration  time.Duration
}

// Trainer runs clean → derive → fit transform → fit regressor.
type Trainer struct {
	cfg     TrainConfig
	cleaner *Cleaner
	deriver *FeatureDeriver
	logger  *utils.Logger
}

// NewTrainer creates a Trainer for cfg.
func NewTrainer(cfg TrainConfig, logger *utils.Logger) *Trainer {
	return &Trainer{
		cfg:     cfg,
		cleaner: NewCleaner(logger),
		deriver: NewFeatureDeriver(cfg.Features, logger),
		logger:  logger,
	}
}

// Train fits the column transform and the regressor on raw dataset rows.
func (t *Trainer) Train(raw []*models.RawListing) (*TrainResult, error) {
	start := time.Now()

	listings, stats := t.cleaner.Clean(raw)
	if len(listings) == 0 {
		return nil, ErrNoListings
	}
	t.deriver.Derive(listings)

	rows := make([]preprocess.Row, len(listings))
	y := make([]float64, len(listings))
	for i, l := range listings {
		rows[i] = FeatureRow(l)
		y[i] = l.Price
	}

	ct := preprocess.New(ColumnLayout())
	X, err := ct.FitTransform(rows)
	if err != nil {
		return nil, fmt.Errorf("services: fit column transform: %w", err)
	}
	t.logger.Info("[trainer] Column transform fitted: %d listings → %d features", len(rows), ct.Width())

	trainIdx, testIdx, err := regressor.TrainTestSplit(len(rows), t.cfg.EvalRatio, t.cfg.Forest.RandomState)
	if err != nil {
		return nil, fmt.Errorf("services: split: %w", err)
	}

	model := t.cfg.Forest
	model.Trees, model.NFeatures = nil, 0

	result := &TrainResult{
		Transform: ct,
		Model:     &model,
		Features:  t.cfg.Features,
		Stats:     stats,
		Listings:  listings,
		RawRows:   len(raw),
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
	}

	t.logger.Info("[trainer] Fitting %d trees on %d listings (%d workers)",
		model.NEstimators, len(trainIdx), max(model.Workers, 1))
	if len(testIdx) == 0 {
		if err := model.Fit(X, y); err != nil {
			return nil, fmt.Errorf("services: fit regressor: %w", err)
		}
	} else {
		Xtr, ytr := regressor.SelectRows(X, y, trainIdx)
		if err := model.Fit(Xtr, ytr); err != nil {
			return nil, fmt.Errorf("services: fit regressor: %w", err)
		}
		Xte, yte := regressor.SelectRows(X, y, testIdx)
		pred, err := model.Predict(Xte)
		if err != nil {
			return nil, fmt.Errorf("services: evaluate: %w", err)
		}
		m := regressor.Evaluate(yte, pred)
		result.Metrics = &m
		t.logger.Info("[trainer] Holdout (%d listings): RMSE %.2f, MAE %.2f, R² %.4f",
			m.N, m.RMSE, m.MAE, m.R2)
	}

	result.Duration = time.Since(start)
	t.logger.Info("[trainer] Training finished in %s", result.Duration.Round(time.Millisecond))
	return result, nil
}
