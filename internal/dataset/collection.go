package dataset

import (
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// sample is one labeled image file, decoded only when its batch is served.
type sample struct {
	path  string
	label float64
}

// Collection serves fixed-size batches of labeled images from a split
// directory. It implements nn.BatchSource.
type Collection struct {
	samples    []sample
	classNames []string
	batchSize  int
	width      int
	height     int
}

// LoadSplit scans one split directory. Each subdirectory is a class; the
// sorted subdirectory order assigns the labels, so the first class maps to
// 0.0 and the second to 1.0. Exactly two classes are required.
func (h *Handler) LoadSplit(name string) (*Collection, error) {
	dir := filepath.Join(h.cfg.Dir, name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: read split %s: %w", name, err)
	}

	var classNames []string
	for _, e := range entries {
		if e.IsDir() {
			classNames = append(classNames, e.Name())
		}
	}
	sort.Strings(classNames)

	if len(classNames) != 2 {
		return nil, fmt.Errorf("dataset: split %s has %d classes, binary classification requires exactly 2", name, len(classNames))
	}

	var samples []sample
	for label, class := range classNames {
		classDir := filepath.Join(dir, class)
		files, err := os.ReadDir(classDir)
		if err != nil {
			return nil, fmt.Errorf("dataset: read class %s: %w", class, err)
		}
		for _, f := range files {
			if f.IsDir() || !isImageFile(f.Name()) {
				continue
			}
			samples = append(samples, sample{
				path:  filepath.Join(classDir, f.Name()),
				label: float64(label),
			})
		}
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("dataset: split %s contains no images", name)
	}

	// Shuffle once with the fixed seed so repeated loads and repeated
	// epochs see the same order.
	rng := rand.New(rand.NewSource(h.cfg.Seed))
	rng.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})

	fmt.Printf("Loaded %d images across %d classes from %s\n", len(samples), len(classNames), dir)

	return &Collection{
		samples:    samples,
		classNames: classNames,
		batchSize:  h.cfg.BatchSize,
		width:      h.cfg.ImageWidth,
		height:     h.cfg.ImageHeight,
	}, nil
}

// LoadAllSplits loads the train, test, and validation splits.
func (h *Handler) LoadAllSplits() (train, test, validation *Collection, err error) {
	train, err = h.LoadSplit(h.cfg.TrainDir)
	if err != nil {
		return nil, nil, nil, err
	}
	test, err = h.LoadSplit(h.cfg.TestDir)
	if err != nil {
		return nil, nil, nil, err
	}
	validation, err = h.LoadSplit(h.cfg.ValidationDir)
	if err != nil {
		return nil, nil, nil, err
	}
	return train, test, validation, nil
}

func isImageFile(name string) bool {
	switch filepath.Ext(name) {
	case ".jpg", ".jpeg", ".png", ".JPG", ".JPEG", ".PNG":
		return true
	}
	return false
}

// Len is the total number of samples.
func (c *Collection) Len() int { return len(c.samples) }

// ClassNames returns the sorted class names, index matching the label.
func (c *Collection) ClassNames() []string { return c.classNames }

// Batches is the number of batches, counting a partial final batch.
func (c *Collection) Batches() int {
	return (len(c.samples) + c.batchSize - 1) / c.batchSize
}

// Batch decodes and returns batch i. The final batch may hold fewer than
// BatchSize samples.
func (c *Collection) Batch(i int) ([][]float64, [][]float64, error) {
	start := i * c.batchSize
	if start < 0 || start >= len(c.samples) {
		return nil, nil, fmt.Errorf("dataset: batch index %d out of range", i)
	}
	end := start + c.batchSize
	if end > len(c.samples) {
		end = len(c.samples)
	}

	inputs := make([][]float64, 0, end-start)
	targets := make([][]float64, 0, end-start)
	for _, s := range c.samples[start:end] {
		pixels, err := LoadImage(s.path, c.width, c.height)
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, pixels)
		targets = append(targets, []float64{s.label})
	}
	return inputs, targets, nil
}

// LoadImage decodes an image file, resizes it to width x height, and
// returns the RGB pixels row-major with interleaved channels, each value
// in [0, 255].
func LoadImage(path string, width, height int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: decode %s: %w", path, err)
	}

	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	pixels := make([]float64, 0, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			// RGBA returns 16-bit channels.
			pixels = append(pixels, float64(r>>8), float64(g>>8), float64(b>>8))
		}
	}
	return pixels, nil
}
