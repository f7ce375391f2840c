// Package dataset downloads, extracts, and loads the image dataset used to
// train the detector. Splits are directories whose subdirectories name the
// classes; every image file under a class directory is one labeled sample.
package dataset

import (
	"archive/zip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// downloadChunkSize is the copy buffer used while streaming the archive.
const downloadChunkSize = 32 * 1024

// Config describes where the dataset lives and how to batch it.
// ALL fields are required.
type Config struct {
	URL           string
	DownloadDir   string
	ArchiveName   string
	Dir           string
	TrainDir      string
	TestDir       string
	ValidationDir string
	BatchSize     int
	ImageWidth    int
	ImageHeight   int
	Seed          int64
	InsecureTLS   bool
}

func validateConfig(cfg Config) error {
	if cfg.URL == "" {
		return fmt.Errorf("dataset: URL is required")
	}
	if cfg.DownloadDir == "" {
		return fmt.Errorf("dataset: DownloadDir is required")
	}
	if cfg.ArchiveName == "" {
		return fmt.Errorf("dataset: ArchiveName is required")
	}
	if cfg.Dir == "" {
		return fmt.Errorf("dataset: Dir is required")
	}
	if cfg.TrainDir == "" || cfg.TestDir == "" || cfg.ValidationDir == "" {
		return fmt.Errorf("dataset: TrainDir, TestDir, and ValidationDir are required")
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("dataset: BatchSize must be > 0, got %d", cfg.BatchSize)
	}
	if cfg.ImageWidth <= 0 || cfg.ImageHeight <= 0 {
		return fmt.Errorf("dataset: image dimensions must be > 0")
	}
	return nil
}

// Handler manages the dataset lifecycle from download to batch loading.
type Handler struct {
	cfg    Config
	client *http.Client
}

func NewHandler(cfg Config) (*Handler, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	client := &http.Client{}
	if cfg.InsecureTLS {
		// Opt-in only. Some dataset mirrors sit behind certificates the
		// local trust store rejects.
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Handler{cfg: cfg, client: client}, nil
}

// ArchivePath is where the downloaded zip lands.
func (h *Handler) ArchivePath() string {
	return filepath.Join(h.cfg.DownloadDir, h.cfg.ArchiveName)
}

// EnsureArchive downloads the dataset archive unless it is already present.
func (h *Handler) EnsureArchive(ctx context.Context) error {
	if err := os.MkdirAll(h.cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("dataset: create download dir: %w", err)
	}

	path := h.ArchivePath()
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Archive already exists at %s, skipping download\n", path)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dataset: build request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("dataset: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dataset: download: unexpected status %s", resp.Status)
	}

	// Stream into a temp file first so an interrupted download never
	// satisfies the presence check on the next run.
	tmp, err := os.CreateTemp(h.cfg.DownloadDir, h.cfg.ArchiveName+".part-*")
	if err != nil {
		return fmt.Errorf("dataset: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := copyWithProgress(tmp, resp.Body, resp.ContentLength); err != nil {
		tmp.Close()
		return fmt.Errorf("dataset: download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("dataset: close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("dataset: move archive into place: %w", err)
	}

	fmt.Printf("Downloaded %s\n", path)
	return nil
}

// copyWithProgress streams src to dst in fixed-size chunks, printing a
// progress line when the total size is known.
func copyWithProgress(dst io.Writer, src io.Reader, total int64) error {
	buf := make([]byte, downloadChunkSize)
	var written int64
	lastPercent := -1

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)
			if total > 0 {
				percent := int(written * 100 / total)
				if percent != lastPercent {
					fmt.Printf("\rdownloading: %d%% (%d/%d bytes)", percent, written, total)
					lastPercent = percent
				}
			}
		}
		if err == io.EOF {
			if total > 0 {
				fmt.Println()
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// EnsureExtracted unzips the archive into the dataset directory unless the
// directory already exists.
func (h *Handler) EnsureExtracted() error {
	if _, err := os.Stat(h.cfg.Dir); err == nil {
		fmt.Printf("Dataset already extracted at %s, skipping extraction\n", h.cfg.Dir)
		return nil
	}

	archive := h.ArchivePath()
	if _, err := os.Stat(archive); err != nil {
		return fmt.Errorf("dataset: archive not found at %s, run the download step first", archive)
	}

	reader, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("dataset: open archive: %w", err)
	}
	defer reader.Close()

	dest := filepath.Dir(h.cfg.Dir)
	for _, f := range reader.File {
		if err := extractFile(f, dest); err != nil {
			return err
		}
	}

	fmt.Printf("Extracted dataset to %s\n", h.cfg.Dir)
	return nil
}

func extractFile(f *zip.File, dest string) error {
	// Reject entries that would escape the destination directory.
	path := filepath.Join(dest, f.Name)
	if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) {
		return fmt.Errorf("dataset: archive entry %q escapes destination", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(path, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("dataset: create dir for %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("dataset: open archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create %s: %w", path, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("dataset: extract %s: %w", f.Name, err)
	}
	return nil
}
