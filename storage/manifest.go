package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"car-price-estimator/models"
	"car-price-estimator/regressor"
	"car-price-estimator/services"
)

// Hyperparameters records how the forest was grown.
type Hyperparameters struct {
	NEstimators     int   `yaml:"n_estimators"`
	MaxDepth        int   `yaml:"max_depth"`
	MinSamplesSplit int   `yaml:"min_samples_split"`
	MinSamplesLeaf  int   `yaml:"min_samples_leaf"`
	MaxFeatures     int   `yaml:"max_features"`
	Bootstrap       bool  `yaml:"bootstrap"`
	RandomState     int64 `yaml:"random_state"`
}

// Manifest is the human-readable record of a training run, written next to
// the binary artifacts.
type Manifest struct {
	ModelID         string                 `yaml:"model_id"`
	CreatedAt       time.Time              `yaml:"created_at"`
	Dataset         string                 `yaml:"dataset"`
	RawRows         int                    `yaml:"raw_rows"`
	TrainRows       int                    `yaml:"train_rows"`
	TestRows        int                    `yaml:"test_rows"`
	Features        int                    `yaml:"features"`
	FeatureConfig   services.FeatureConfig `yaml:"feature_config"`
	FittedStats     models.FittedStats     `yaml:"fitted_stats"`
	Hyperparameters Hyperparameters        `yaml:"hyperparameters"`
	Metrics         *regressor.Metrics     `yaml:"metrics,omitempty"`
	Preprocessor    string                 `yaml:"preprocessor"`
	Model           string                 `yaml:"model"`
	TrainingSeconds float64                `yaml:"training_seconds"`
}

// NewManifest describes res under a fresh model id.
func NewManifest(res *services.TrainResult, dataset, preprocessorPath, modelPath string) *Manifest {
	m := &Manifest{
		ModelID:       uuid.NewString(),
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
		Dataset:       dataset,
		RawRows:       res.RawRows,
		TrainRows:     res.TrainRows,
		TestRows:      res.TestRows,
		FeatureConfig: res.Features,
		Metrics:       res.Metrics,
		Preprocessor:  preprocessorPath,
		Model:         modelPath,

		TrainingSeconds: res.Duration.Seconds(),
	}
	if res.Transform != nil {
		m.Features = res.Transform.Width()
	}
	if res.Stats != nil {
		m.FittedStats = *res.Stats
	}
	if f := res.Model; f != nil {
		m.Hyperparameters = Hyperparameters{
			NEstimators:     f.NEstimators,
			MaxDepth:        f.MaxDepth,
			MinSamplesSplit: f.MinSamplesSplit,
			MinSamplesLeaf:  f.MinSamplesLeaf,
			MaxFeatures:     f.MaxFeatures,
			Bootstrap:       f.Bootstrap,
			RandomState:     f.RandomState,
		}
	}
	return m
}

// WriteManifest saves m as YAML, creating parent directories.
func WriteManifest(path string, m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("manifest: create dir: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	return &m, nil
}
