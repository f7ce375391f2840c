// Package detector wires the dataset pipeline and the network engine into
// the deepfake image classifier: model construction, the training run, and
// single-image inference.
package detector

import (
	"deepdetect/nn"
)

// Class labels follow the sorted dataset directory order: Fake maps to 0
// and Real to 1.
const (
	LabelFake = "Fake"
	LabelReal = "Real"
)

// BuildModel constructs the classifier network for inputs of
// height x width x 3 pixels in [0, 255].
//
// Four convolution blocks double the filter count while pooling halves the
// spatial dimensions, then three dense layers funnel into a single sigmoid
// output.
func BuildModel(height, width int, seed int64) (*nn.Network, error) {
	builder := nn.NewNetwork(nn.NetworkConfig{Seed: seed}).
		AddLayer(nn.Rescaling(1.0 / 127).Build())

	for _, filters := range []int{32, 64, 128, 256} {
		builder = builder.
			AddLayer(nn.Conv2D(filters, [2]int{3, 3}).
				WithPadding("same").
				WithActivation(nn.ReLU()).
				WithInitializer(nn.HeNormal(1.0)).
				WithBiasInitializer(nn.Zeros()).
				WithBias(true).
				Build()).
			AddLayer(nn.BatchNorm(1e-3, 0.99).Build()).
			AddLayer(nn.MaxPool2D([2]int{2, 2}).WithStride(2, 2).Build())
	}

	builder = builder.
		AddLayer(nn.Flatten().Build()).
		AddLayer(nn.Dense(512).
			WithActivation(nn.ReLU()).
			WithInitializer(nn.HeNormal(1.0)).
			WithBiasInitializer(nn.Zeros()).
			WithBias(true).
			Build()).
		AddLayer(nn.Dropout(0.5).Build()).
		AddLayer(nn.Dense(256).
			WithActivation(nn.ReLU()).
			WithInitializer(nn.HeNormal(1.0)).
			WithBiasInitializer(nn.Zeros()).
			WithBias(true).
			Build()).
		AddLayer(nn.Dropout(0.5).Build()).
		AddLayer(nn.Dense(128).
			WithActivation(nn.ReLU()).
			WithInitializer(nn.HeNormal(1.0)).
			WithBiasInitializer(nn.Zeros()).
			WithBias(true).
			Build()).
		AddLayer(nn.Dense(1).
			WithActivation(nn.Sigmoid()).
			WithInitializer(nn.XavierNormal(1.0)).
			WithBiasInitializer(nn.Zeros()).
			WithBias(true).
			Build())

	return builder.Build([]int{height, width, 3})
}

// Compile attaches the Adam optimizer, binary cross-entropy loss, and the
// accuracy, precision, and recall metrics.
func Compile(net *nn.Network, learningRate float64) error {
	return net.Compile(nn.CompileConfig{
		Optimizer: nn.Adam(nn.AdamConfig{
			LR:      learningRate,
			Beta1:   0.9,
			Beta2:   0.999,
			Epsilon: 1e-8,
		}),
		Loss: nn.BinaryCrossEntropy(nn.BinaryCrossEntropyConfig{Reduction: "mean"}),
		Metrics: []nn.Metric{
			nn.Accuracy(),
			nn.Precision(nn.PrecisionConfig{Threshold: 0.5}),
			nn.Recall(nn.RecallConfig{Threshold: 0.5}),
		},
	})
}
