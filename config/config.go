package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultDatasetURL is the published listings dataset.
const DefaultDatasetURL = "https://drive.google.com/uc?id=1NtUt42nZ766HduQfyAxls1pX6deqtVh2"

// Config holds all application configuration loaded from the environment,
// an optional .env file and an optional YAML config file.
type Config struct {
	DatasetURL   string
	DatasetPath  string
	CleanCSVPath string

	ArtifactDir      string
	PreprocessorPath string
	ModelPath        string
	ManifestPath     string

	ReferenceYear     int
	PowerLowThreshold float64

	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	RandomState     int64
	EvalRatio       float64

	MaxConcurrency  int
	MaxRetries      int
	FetchTimeoutSec int
	ChromeBin       string

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	HTTPAddr string
	LogLevel string
}

// Load reads the .env file (if any), the environment and cfgFile (if not
// empty) and returns a populated Config. Precedence: env > config file > defaults.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", cfgFile, err)
		}
	}

	c := &Config{
		DatasetURL:   v.GetString("dataset_url"),
		DatasetPath:  v.GetString("dataset_path"),
		CleanCSVPath: v.GetString("clean_csv_path"),

		ArtifactDir:      v.GetString("artifact_dir"),
		PreprocessorPath: v.GetString("preprocessor_path"),
		ModelPath:        v.GetString("model_path"),
		ManifestPath:     v.GetString("manifest_path"),

		ReferenceYear:     v.GetInt("reference_year"),
		PowerLowThreshold: v.GetFloat64("power_low_threshold"),

		NEstimators:     v.GetInt("n_estimators"),
		MaxDepth:        v.GetInt("max_depth"),
		MinSamplesSplit: v.GetInt("min_samples_split"),
		MinSamplesLeaf:  v.GetInt("min_samples_leaf"),
		MaxFeatures:     v.GetInt("max_features"),
		Bootstrap:       v.GetBool("bootstrap"),
		RandomState:     v.GetInt64("random_state"),
		EvalRatio:       v.GetFloat64("eval_ratio"),

		MaxConcurrency:  v.GetInt("max_concurrency"),
		MaxRetries:      v.GetInt("max_retries"),
		FetchTimeoutSec: v.GetInt("fetch_timeout_sec"),
		ChromeBin:       v.GetString("chrome_bin"),

		PostgresEnabled:  v.GetBool("postgres_enabled"),
		PostgresHost:     v.GetString("postgres_host"),
		PostgresPort:     v.GetString("postgres_port"),
		PostgresUser:     v.GetString("postgres_user"),
		PostgresPassword: v.GetString("postgres_password"),
		PostgresDB:       v.GetString("postgres_db"),
		PostgresSSLMode:  v.GetString("postgres_sslmode"),

		HTTPAddr: v.GetString("http_addr"),
		LogLevel: v.GetString("log_level"),
	}

	if c.PreprocessorPath == "" {
		c.PreprocessorPath = filepath.Join(c.ArtifactDir, "preprocessor.gob.gz")
	}
	if c.ModelPath == "" {
		c.ModelPath = filepath.Join(c.ArtifactDir, "car_price_model.gob.gz")
	}
	if c.ManifestPath == "" {
		c.ManifestPath = filepath.Join(c.ArtifactDir, "manifest.yaml")
	}
	if c.EvalRatio < 0 || c.EvalRatio >= 1 {
		return nil, fmt.Errorf("config: eval_ratio must be in [0, 1), got %v", c.EvalRatio)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dataset_url", DefaultDatasetURL)
	v.SetDefault("dataset_path", "./data/data.csv")
	v.SetDefault("clean_csv_path", "./output/clean_listings.csv")

	v.SetDefault("artifact_dir", "./artifacts")
	v.SetDefault("preprocessor_path", "")
	v.SetDefault("model_path", "")
	v.SetDefault("manifest_path", "")

	v.SetDefault("reference_year", 2024)
	v.SetDefault("power_low_threshold", 100.0)

	v.SetDefault("n_estimators", 200)
	v.SetDefault("max_depth", 0)
	v.SetDefault("min_samples_split", 2)
	v.SetDefault("min_samples_leaf", 1)
	v.SetDefault("max_features", 0)
	v.SetDefault("bootstrap", false)
	v.SetDefault("random_state", 42)
	v.SetDefault("eval_ratio", 0.0)

	v.SetDefault("max_concurrency", 4)
	v.SetDefault("max_retries", 3)
	v.SetDefault("fetch_timeout_sec", 120)
	v.SetDefault("chrome_bin", "")

	v.SetDefault("postgres_enabled", false)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", "5432")
	v.SetDefault("postgres_user", "cars")
	v.SetDefault("postgres_password", "cars123")
	v.SetDefault("postgres_db", "car_prices")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
