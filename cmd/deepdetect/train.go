package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"deepdetect/internal/detector"
)

type trainOptions struct {
	configPath   string
	learningRate float64
	epochs       int
	insecureTLS  bool
}

func newTrainCmd() *cobra.Command {
	opts := trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run the full pipeline: download, extract, train, evaluate, save",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to a TOML config file")
	cmd.Flags().Float64Var(&opts.learningRate, "learning-rate", 0, "override the learning rate")
	cmd.Flags().IntVar(&opts.epochs, "epochs", 0, "override the number of training epochs")
	cmd.Flags().BoolVar(&opts.insecureTLS, "insecure-tls", false, "skip TLS certificate verification for the dataset download")

	return cmd
}

func runTrain(cmd *cobra.Command, opts trainOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	if opts.learningRate > 0 {
		cfg.Training.LearningRate = opts.learningRate
	}
	if opts.epochs > 0 {
		cfg.Training.Epochs = opts.epochs
	}
	if opts.insecureTLS {
		cfg.Dataset.InsecureTLS = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	color.New(color.FgCyan).Fprintln(cmd.OutOrStdout(), "Starting deepfake detector training")

	trainer := detector.NewTrainer(cfg)
	result, metrics, err := trainer.Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	color.New(color.FgGreen).Fprintf(out, "Training finished after %d epochs\n", result.Epochs)

	fmt.Fprintln(out, "Test set evaluation:")
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s: %.4f\n", name, metrics[name])
	}

	fmt.Fprintf(out, "Best checkpoint: %s\n", cfg.Model.CheckpointPath)
	fmt.Fprintf(out, "Final model: %s\n", cfg.Model.FinalPath)
	return nil
}
