package detector

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"deepdetect/internal/config"
)

// testSource serves a single in-memory batch.
type testSource struct {
	inputs  [][]float64
	targets [][]float64
}

func (s *testSource) Batches() int { return 1 }

func (s *testSource) Batch(i int) ([][]float64, [][]float64, error) {
	return s.inputs, s.targets, nil
}

func randomImages(n, height, width int) [][]float64 {
	inputs := make([][]float64, n)
	for i := range inputs {
		inputs[i] = make([]float64, height*width*3)
		for j := range inputs[i] {
			inputs[i][j] = float64((i*31 + j*7) % 256)
		}
	}
	return inputs
}

func TestBuildModelOutputsSingleProbability(t *testing.T) {
	net, err := BuildModel(16, 16, 42)
	require.NoError(t, err)
	require.NoError(t, Compile(net, 0.001))

	preds, err := net.Predict(randomImages(3, 16, 16))
	require.NoError(t, err)
	require.Len(t, preds, 3)
	for _, row := range preds {
		require.Len(t, row, 1)
		require.GreaterOrEqual(t, row[0], 0.0)
		require.LessOrEqual(t, row[0], 1.0)
	}
}

func TestFullBatchProducesUnitOutputs(t *testing.T) {
	net, err := BuildModel(16, 16, 42)
	require.NoError(t, err)
	require.NoError(t, Compile(net, 0.001))

	preds, err := net.Predict(randomImages(64, 16, 16))
	require.NoError(t, err)
	require.Len(t, preds, 64)
	for _, row := range preds {
		require.Len(t, row, 1)
		require.GreaterOrEqual(t, row[0], 0.0)
		require.LessOrEqual(t, row[0], 1.0)
	}
}

func TestFullResolutionForward(t *testing.T) {
	if testing.Short() {
		t.Skip("128x128 forward pass")
	}

	net, err := BuildModel(128, 128, 42)
	require.NoError(t, err)
	require.NoError(t, Compile(net, 0.001))

	preds, err := net.Predict(randomImages(2, 128, 128))
	require.NoError(t, err)
	require.Len(t, preds, 2)
	for _, row := range preds {
		require.Len(t, row, 1)
		require.GreaterOrEqual(t, row[0], 0.0)
		require.LessOrEqual(t, row[0], 1.0)
	}
}

func TestCompileAttachesAllMetrics(t *testing.T) {
	net, err := BuildModel(16, 16, 42)
	require.NoError(t, err)
	require.NoError(t, Compile(net, 0.001))

	src := &testSource{
		inputs:  randomImages(4, 16, 16),
		targets: [][]float64{{0}, {1}, {0}, {1}},
	}
	metrics, err := net.Evaluate(src)
	require.NoError(t, err)
	require.Contains(t, metrics, "loss")
	require.Contains(t, metrics, "accuracy")
	require.Contains(t, metrics, "precision")
	require.Contains(t, metrics, "recall")
}

func encodePNG(t *testing.T, c color.RGBA, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func datasetZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	classes := map[string]color.RGBA{
		"Fake": {R: 255, A: 255},
		"Real": {G: 255, A: 255},
	}
	perClass := map[string]int{"Train": 4, "Test": 2, "Validation": 2}
	for split, count := range perClass {
		for class, c := range classes {
			for i := 0; i < count; i++ {
				name := fmt.Sprintf("Dataset/%s/%s/img%d.png", split, class, i)
				w, err := zw.Create(name)
				require.NoError(t, err)
				_, err = w.Write(encodePNG(t, c, 16))
				require.NoError(t, err)
			}
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testPipelineConfig(t *testing.T, url string) config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Dataset.URL = url
	cfg.Dataset.DownloadDir = filepath.Join(root, "data")
	cfg.Dataset.Dir = filepath.Join(root, "data", "Dataset")
	cfg.Dataset.BatchSize = 2
	cfg.Dataset.ImageWidth = 16
	cfg.Dataset.ImageHeight = 16
	cfg.Training.LearningRate = 0.01
	cfg.Training.Epochs = 2
	cfg.Model.CheckpointPath = filepath.Join(root, "best.json")
	cfg.Model.FinalPath = filepath.Join(root, "final.json")
	return cfg
}

func TestTrainerRunEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline run")
	}

	archive := datasetZip(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	cfg := testPipelineConfig(t, srv.URL)
	trainer := NewTrainer(cfg)

	result, metrics, err := trainer.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, result.Epochs)
	require.Len(t, result.History["loss"], 2)
	require.Len(t, result.History["val_loss"], 2)
	require.Contains(t, metrics, "loss")
	require.Contains(t, metrics, "accuracy")

	// Both the best checkpoint and the final artifact land on disk.
	_, err = os.Stat(cfg.Model.CheckpointPath)
	require.NoError(t, err)
	_, err = os.Stat(cfg.Model.FinalPath)
	require.NoError(t, err)
}

func TestLoadModelAndClassify(t *testing.T) {
	net, err := BuildModel(16, 16, 42)
	require.NoError(t, err)
	require.NoError(t, Compile(net, 0.001))

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	require.NoError(t, net.Save(modelPath))

	loaded, err := LoadModel(modelPath, 16, 16, 42, 0.001)
	require.NoError(t, err)

	imgPath := filepath.Join(dir, "face.png")
	require.NoError(t, os.WriteFile(imgPath, encodePNG(t, color.RGBA{R: 100, G: 100, B: 100, A: 255}, 32), 0o644))

	label, score, err := Classify(loaded, imgPath, 16, 16)
	require.NoError(t, err)
	require.Contains(t, []string{LabelReal, LabelFake}, label)
	require.GreaterOrEqual(t, score, 0.0)
	require.LessOrEqual(t, score, 1.0)

	// The loaded network classifies identically to the saved one.
	wantLabel, wantScore, err := Classify(net, imgPath, 16, 16)
	require.NoError(t, err)
	require.Equal(t, wantLabel, label)
	require.InDelta(t, wantScore, score, 1e-12)
}

func TestClassifyMissingImage(t *testing.T) {
	net, err := BuildModel(16, 16, 1)
	require.NoError(t, err)
	require.NoError(t, Compile(net, 0.001))

	_, _, err = Classify(net, filepath.Join(t.TempDir(), "missing.png"), 16, 16)
	require.Error(t, err)
}
