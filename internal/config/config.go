// Package config loads the training pipeline configuration from TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

// ErrValidation wraps config validation failures, as opposed to TOML
// syntax or filesystem errors. Callers can use errors.Is.
var ErrValidation = errors.New("config validation failed")

// Config is the full pipeline configuration.
type Config struct {
	Dataset  DatasetConfig  `toml:"dataset"`
	Training TrainingConfig `toml:"training"`
	Model    ModelConfig    `toml:"model"`
}

// DatasetConfig controls download, extraction, and batch loading.
type DatasetConfig struct {
	URL           string `toml:"url"`
	DownloadDir   string `toml:"download-dir"`
	ArchiveName   string `toml:"archive-name"`
	Dir           string `toml:"dir"`
	TrainDir      string `toml:"train-dir"`
	TestDir       string `toml:"test-dir"`
	ValidationDir string `toml:"validation-dir"`
	BatchSize     int    `toml:"batch-size"`
	ImageWidth    int    `toml:"image-width"`
	ImageHeight   int    `toml:"image-height"`
	Seed          int64  `toml:"seed"`
	InsecureTLS   bool   `toml:"insecure-tls"`
}

// TrainingConfig controls the optimization run.
type TrainingConfig struct {
	LearningRate float64 `toml:"learning-rate"`
	Epochs       int     `toml:"epochs"`
}

// ModelConfig controls where trained weights are written.
type ModelConfig struct {
	CheckpointPath string `toml:"checkpoint-path"`
	FinalPath      string `toml:"final-path"`
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	return Config{
		Dataset: DatasetConfig{
			URL:           "https://storage.googleapis.com/kaggle-data-sets/1909705/3134515/bundle/archive.zip",
			DownloadDir:   "./data",
			ArchiveName:   "dataset.zip",
			Dir:           "./data/Dataset",
			TrainDir:      "Train",
			TestDir:       "Test",
			ValidationDir: "Validation",
			BatchSize:     64,
			ImageWidth:    128,
			ImageHeight:   128,
			Seed:          42,
			InsecureTLS:   false,
		},
		Training: TrainingConfig{
			LearningRate: 0.0001,
			Epochs:       50,
		},
		Model: ModelConfig{
			CheckpointPath: "deepfake_detector_model_best.json",
			FinalPath:      "deepfake_detector_model.json",
		},
	}
}

// Load reads and validates a TOML config file. Values absent from the file
// keep their defaults. Paths support a leading ~.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses and validates TOML config data. source is used in error
// messages.
func Parse(data []byte, source string) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: invalid TOML in %s: %w", source, err)
	}
	if err := decodeStrict(data); err != nil {
		return nil, fmt.Errorf("%w: unrecognized keys in %s: %v", ErrValidation, source, err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return &cfg, nil
}

// decodeStrict re-decodes the TOML data with strict unknown-field
// rejection, catching keys toml.Unmarshal silently ignores.
func decodeStrict(data []byte) error {
	var cfg Config
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	return decoder.Decode(&cfg)
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.Dataset.DownloadDir,
		&c.Dataset.Dir,
		&c.Model.CheckpointPath,
		&c.Model.FinalPath,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("config: expand path %s: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if c.Dataset.URL == "" {
		return errors.New("dataset.url must not be empty")
	}
	if c.Dataset.DownloadDir == "" {
		return errors.New("dataset.download-dir must not be empty")
	}
	if c.Dataset.ArchiveName == "" {
		return errors.New("dataset.archive-name must not be empty")
	}
	if c.Dataset.Dir == "" {
		return errors.New("dataset.dir must not be empty")
	}
	if c.Dataset.TrainDir == "" || c.Dataset.TestDir == "" || c.Dataset.ValidationDir == "" {
		return errors.New("dataset split directories must not be empty")
	}
	if c.Dataset.BatchSize <= 0 {
		return fmt.Errorf("dataset.batch-size must be > 0, got %d", c.Dataset.BatchSize)
	}
	if c.Dataset.ImageWidth <= 0 || c.Dataset.ImageHeight <= 0 {
		return errors.New("dataset image dimensions must be > 0")
	}
	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("training.learning-rate must be > 0, got %g", c.Training.LearningRate)
	}
	if c.Training.Epochs <= 0 {
		return fmt.Errorf("training.epochs must be > 0, got %d", c.Training.Epochs)
	}
	if c.Model.CheckpointPath == "" {
		return errors.New("model.checkpoint-path must not be empty")
	}
	if c.Model.FinalPath == "" {
		return errors.New("model.final-path must not be empty")
	}
	return nil
}
