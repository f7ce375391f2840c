package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"deepdetect/internal/detector"
)

func newPredictCmd() *cobra.Command {
	var configPath string
	var modelPath string

	cmd := &cobra.Command{
		Use:   "predict <image>",
		Short: "Classify a single image as Real or Fake using a saved model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if modelPath == "" {
				modelPath = cfg.Model.FinalPath
			}

			net, err := detector.LoadModel(
				modelPath,
				cfg.Dataset.ImageHeight,
				cfg.Dataset.ImageWidth,
				cfg.Dataset.Seed,
				cfg.Training.LearningRate,
			)
			if err != nil {
				return err
			}

			label, score, err := detector.Classify(net, args[0], cfg.Dataset.ImageWidth, cfg.Dataset.ImageHeight)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if label == detector.LabelFake {
				color.New(color.FgRed).Fprintf(out, "Fake (%.1f%%)\n", score*100)
			} else {
				color.New(color.FgGreen).Fprintf(out, "Real (%.1f%%)\n", score*100)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a TOML config file")
	cmd.Flags().StringVar(&modelPath, "model", "", "path to the saved model weights (defaults to the configured final model path)")

	return cmd
}
