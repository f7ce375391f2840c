package dataset

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	root := t.TempDir()
	return Config{
		URL:           "http://example.invalid/dataset.zip",
		DownloadDir:   filepath.Join(root, "data"),
		ArchiveName:   "dataset.zip",
		Dir:           filepath.Join(root, "data", "Dataset"),
		TrainDir:      "Train",
		TestDir:       "Test",
		ValidationDir: "Validation",
		BatchSize:     2,
		ImageWidth:    4,
		ImageHeight:   4,
		Seed:          42,
	}
}

func writePNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestNewHandlerValidatesConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 0
	_, err := NewHandler(cfg)
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.URL = ""
	_, err = NewHandler(cfg)
	require.Error(t, err)
}

func TestEnsureArchiveDownloadsOnce(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("zip-bytes"))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.URL = srv.URL
	h, err := NewHandler(cfg)
	require.NoError(t, err)

	require.NoError(t, h.EnsureArchive(context.Background()))
	require.NoError(t, h.EnsureArchive(context.Background()))
	require.Equal(t, 1, requests)

	data, err := os.ReadFile(h.ArchivePath())
	require.NoError(t, err)
	require.Equal(t, "zip-bytes", string(data))
}

func TestEnsureArchiveRejectsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.URL = srv.URL
	h, err := NewHandler(cfg)
	require.NoError(t, err)

	require.Error(t, h.EnsureArchive(context.Background()))

	// A failed download must not leave an archive behind.
	_, err = os.Stat(h.ArchivePath())
	require.True(t, os.IsNotExist(err))
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestEnsureExtractedUnzipsAndSkipsWhenPresent(t *testing.T) {
	cfg := testConfig(t)
	h, err := NewHandler(cfg)
	require.NoError(t, err)

	writeZip(t, h.ArchivePath(), map[string]string{
		"Dataset/Train/Fake/a.txt": "fake",
		"Dataset/Train/Real/b.txt": "real",
	})

	require.NoError(t, h.EnsureExtracted())

	data, err := os.ReadFile(filepath.Join(cfg.Dir, "Train", "Fake", "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "fake", string(data))

	// Second run is a no-op because the dataset dir exists.
	require.NoError(t, os.Remove(h.ArchivePath()))
	require.NoError(t, h.EnsureExtracted())
}

func TestEnsureExtractedRequiresArchive(t *testing.T) {
	cfg := testConfig(t)
	h, err := NewHandler(cfg)
	require.NoError(t, err)
	require.Error(t, h.EnsureExtracted())
}

func TestEnsureExtractedRejectsEscapingEntries(t *testing.T) {
	cfg := testConfig(t)
	h, err := NewHandler(cfg)
	require.NoError(t, err)

	writeZip(t, h.ArchivePath(), map[string]string{
		"../evil.txt": "nope",
	})
	require.Error(t, h.EnsureExtracted())
}

func writeSplit(t *testing.T, h *Handler, split string, fakes, reals int) {
	t.Helper()
	dir := filepath.Join(h.cfg.Dir, split)
	for i := 0; i < fakes; i++ {
		writePNG(t, filepath.Join(dir, "Fake", "f"+string(rune('a'+i))+".png"), color.RGBA{R: 255, A: 255})
	}
	for i := 0; i < reals; i++ {
		writePNG(t, filepath.Join(dir, "Real", "r"+string(rune('a'+i))+".png"), color.RGBA{G: 255, A: 255})
	}
}

func TestLoadSplitLabelsSortedClasses(t *testing.T) {
	cfg := testConfig(t)
	h, err := NewHandler(cfg)
	require.NoError(t, err)
	writeSplit(t, h, "Train", 3, 2)

	col, err := h.LoadSplit("Train")
	require.NoError(t, err)
	require.Equal(t, 5, col.Len())
	require.Equal(t, []string{"Fake", "Real"}, col.ClassNames())

	// Fake pixels are red, Real pixels are green. Every sample labeled 0
	// must decode red and every sample labeled 1 green.
	for b := 0; b < col.Batches(); b++ {
		inputs, targets, err := col.Batch(b)
		require.NoError(t, err)
		for i := range inputs {
			if targets[i][0] == 0 {
				require.InDelta(t, 255, inputs[i][0], 1) // R
				require.InDelta(t, 0, inputs[i][1], 1)   // G
			} else {
				require.InDelta(t, 0, inputs[i][0], 1)
				require.InDelta(t, 255, inputs[i][1], 1)
			}
		}
	}
}

func TestLoadSplitDeterministicOrder(t *testing.T) {
	cfg := testConfig(t)
	h, err := NewHandler(cfg)
	require.NoError(t, err)
	writeSplit(t, h, "Train", 4, 4)

	first, err := h.LoadSplit("Train")
	require.NoError(t, err)
	second, err := h.LoadSplit("Train")
	require.NoError(t, err)

	for i := range first.samples {
		require.Equal(t, first.samples[i].path, second.samples[i].path)
	}
}

func TestLoadSplitRequiresExactlyTwoClasses(t *testing.T) {
	cfg := testConfig(t)
	h, err := NewHandler(cfg)
	require.NoError(t, err)

	writePNG(t, filepath.Join(cfg.Dir, "Train", "Fake", "a.png"), color.RGBA{R: 255, A: 255})
	_, err = h.LoadSplit("Train")
	require.Error(t, err)

	writePNG(t, filepath.Join(cfg.Dir, "Train", "Real", "b.png"), color.RGBA{G: 255, A: 255})
	writePNG(t, filepath.Join(cfg.Dir, "Train", "Other", "c.png"), color.RGBA{B: 255, A: 255})
	_, err = h.LoadSplit("Train")
	require.Error(t, err)
}

func TestBatchesCountsPartialFinalBatch(t *testing.T) {
	cfg := testConfig(t)
	h, err := NewHandler(cfg)
	require.NoError(t, err)
	writeSplit(t, h, "Train", 3, 2)

	col, err := h.LoadSplit("Train")
	require.NoError(t, err)
	require.Equal(t, 3, col.Batches())

	inputs, targets, err := col.Batch(2)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Len(t, targets, 1)

	_, _, err = col.Batch(3)
	require.Error(t, err)
}

func TestLoadAllSplits(t *testing.T) {
	cfg := testConfig(t)
	h, err := NewHandler(cfg)
	require.NoError(t, err)
	writeSplit(t, h, "Train", 2, 2)
	writeSplit(t, h, "Test", 1, 1)
	writeSplit(t, h, "Validation", 1, 1)

	train, test, val, err := h.LoadAllSplits()
	require.NoError(t, err)
	require.Equal(t, 4, train.Len())
	require.Equal(t, 2, test.Len())
	require.Equal(t, 2, val.Len())
}

func TestLoadImageResizesAndScales(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.png")
	writePNG(t, path, color.RGBA{R: 200, G: 10, B: 30, A: 255})

	pixels, err := LoadImage(path, 2, 2)
	require.NoError(t, err)
	require.Len(t, pixels, 2*2*3)
	for i := 0; i < len(pixels); i += 3 {
		require.InDelta(t, 200, pixels[i], 1)
		require.InDelta(t, 10, pixels[i+1], 1)
		require.InDelta(t, 30, pixels[i+2], 1)
	}
}
