package detector

import (
	"fmt"

	"deepdetect/internal/dataset"
	"deepdetect/nn"
)

// LoadModel rebuilds the classifier for the given input size and restores
// saved weights. The learning rate only matters if the caller goes on to
// train; inference ignores it.
func LoadModel(path string, height, width int, seed int64, learningRate float64) (*nn.Network, error) {
	net, err := BuildModel(height, width, seed)
	if err != nil {
		return nil, err
	}
	if err := Compile(net, learningRate); err != nil {
		return nil, err
	}
	if err := net.Load(path); err != nil {
		return nil, fmt.Errorf("detector: load weights from %s: %w", path, err)
	}
	return net, nil
}

// Classify runs a single image through the network. A score at or above
// 0.5 classifies the image as Fake. The returned score is the raw sigmoid
// output in [0, 1].
func Classify(net *nn.Network, imagePath string, width, height int) (string, float64, error) {
	pixels, err := dataset.LoadImage(imagePath, width, height)
	if err != nil {
		return "", 0, err
	}

	preds, err := net.Predict([][]float64{pixels})
	if err != nil {
		return "", 0, err
	}

	score := preds[0][0]
	label := LabelReal
	if score >= 0.5 {
		label = LabelFake
	}
	return label, score, nil
}
