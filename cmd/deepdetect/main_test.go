package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestRootRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	require.True(t, names["train"])
	require.True(t, names["predict"])
}

func TestPredictRequiresImageArgument(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"predict"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}

func TestPredictFailsWithoutSavedModel(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"predict", "--model", filepath.Join(dir, "missing.json"), "image.png"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}

func TestTrainRejectsMissingConfigFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"train", "--config", filepath.Join(t.TempDir(), "nope.toml")})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}

func TestLoadConfigExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[training]\nepochs = 7\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Training.Epochs)
}

func TestLoadConfigFindsDefaultFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, defaultConfigPath), []byte("[training]\nepochs = 9\n"), 0o644))

	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, 9, cfg.Training.Epochs)
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, 50, cfg.Training.Epochs)
	require.Equal(t, 0.0001, cfg.Training.LearningRate)
}

func TestRunMainReportsErrors(t *testing.T) {
	chdir(t, t.TempDir())

	var stderr bytes.Buffer
	exitCode := -1
	runMain(
		[]string{"deepdetect", "predict"},
		&bytes.Buffer{},
		&stderr,
		func(code int) { exitCode = code },
	)
	require.Equal(t, 1, exitCode)
	require.NotEmpty(t, stderr.String())
}
