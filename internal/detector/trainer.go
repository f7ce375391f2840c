package detector

import (
	"context"
	"fmt"

	"deepdetect/internal/config"
	"deepdetect/internal/dataset"
	"deepdetect/nn"
)

// Trainer runs the full pipeline: fetch the dataset, train the model, and
// persist the weights.
type Trainer struct {
	cfg config.Config
}

func NewTrainer(cfg config.Config) *Trainer {
	return &Trainer{cfg: cfg}
}

func datasetConfig(cfg config.Config) dataset.Config {
	return dataset.Config{
		URL:           cfg.Dataset.URL,
		DownloadDir:   cfg.Dataset.DownloadDir,
		ArchiveName:   cfg.Dataset.ArchiveName,
		Dir:           cfg.Dataset.Dir,
		TrainDir:      cfg.Dataset.TrainDir,
		TestDir:       cfg.Dataset.TestDir,
		ValidationDir: cfg.Dataset.ValidationDir,
		BatchSize:     cfg.Dataset.BatchSize,
		ImageWidth:    cfg.Dataset.ImageWidth,
		ImageHeight:   cfg.Dataset.ImageHeight,
		Seed:          cfg.Dataset.Seed,
		InsecureTLS:   cfg.Dataset.InsecureTLS,
	}
}

// Run executes download, extraction, training, evaluation, and save. It
// returns the training history and the test-set metrics.
func (t *Trainer) Run(ctx context.Context) (*nn.TrainResult, map[string]float64, error) {
	handler, err := dataset.NewHandler(datasetConfig(t.cfg))
	if err != nil {
		return nil, nil, err
	}

	if err := handler.EnsureArchive(ctx); err != nil {
		return nil, nil, fmt.Errorf("detector: fetch dataset: %w", err)
	}
	if err := handler.EnsureExtracted(); err != nil {
		return nil, nil, fmt.Errorf("detector: extract dataset: %w", err)
	}

	train, test, validation, err := handler.LoadAllSplits()
	if err != nil {
		return nil, nil, fmt.Errorf("detector: load dataset: %w", err)
	}

	net, err := BuildModel(t.cfg.Dataset.ImageHeight, t.cfg.Dataset.ImageWidth, t.cfg.Dataset.Seed)
	if err != nil {
		return nil, nil, fmt.Errorf("detector: build model: %w", err)
	}
	if err := Compile(net, t.cfg.Training.LearningRate); err != nil {
		return nil, nil, fmt.Errorf("detector: compile model: %w", err)
	}

	callbacks := []nn.Callback{
		nn.EarlyStopping(nn.EarlyStoppingConfig{
			Monitor:     "val_loss",
			Patience:    10,
			Mode:        "min",
			RestoreBest: true,
		}),
		nn.ReduceLROnPlateau(nn.ReduceLROnPlateauConfig{
			Monitor:  "val_loss",
			Factor:   0.1,
			Patience: 5,
			MinLR:    1e-7,
		}),
		nn.ModelCheckpoint(nn.ModelCheckpointConfig{
			Path:    t.cfg.Model.CheckpointPath,
			Monitor: "val_loss",
			Mode:    "min",
		}),
		nn.PrintProgress(nn.PrintProgressConfig{PrintEvery: 1}),
	}

	result, err := net.Fit(train, validation, nn.FitConfig{Epochs: t.cfg.Training.Epochs}, callbacks)
	if err != nil {
		return nil, nil, fmt.Errorf("detector: train: %w", err)
	}

	metrics, err := net.Evaluate(test)
	if err != nil {
		return nil, nil, fmt.Errorf("detector: evaluate: %w", err)
	}

	if err := net.Save(t.cfg.Model.FinalPath); err != nil {
		return nil, nil, fmt.Errorf("detector: save model: %w", err)
	}

	return result, metrics, nil
}
