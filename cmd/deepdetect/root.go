package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"deepdetect/internal/config"
)

// defaultConfigPath is used when no --config flag is given and the file
// exists in the working directory.
const defaultConfigPath = "deepdetect.toml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deepdetect",
		Short: "Train and run a deepfake face image detector",
		Long: "deepdetect downloads a labeled face image dataset, trains a " +
			"convolutional binary classifier to tell real faces from " +
			"synthetic ones, and saves the trained model.\n\n" +
			"Run without arguments to execute the full training pipeline.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bare invocation runs the full training cycle.
			return runTrain(cmd, trainOptions{})
		},
	}

	cmd.AddCommand(newTrainCmd())
	cmd.AddCommand(newPredictCmd())

	return cmd
}

// loadConfig resolves the pipeline config: an explicit --config path, the
// default config file if present, or built-in defaults.
func loadConfig(path string) (config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		return *cfg, nil
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		cfg, err := config.Load(defaultConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		fmt.Printf("Using config file %s\n", defaultConfigPath)
		return *cfg, nil
	}
	return config.Default(), nil
}
