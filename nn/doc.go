// Package nn is a small neural network engine for image classification.
//
// It provides a power-user focused API with explicit configuration and no
// hidden defaults. Every hyperparameter must be specified.
//
// Basic usage:
//
//	net, err := nn.NewNetwork(nn.NetworkConfig{Seed: 42}).
//		AddLayer(nn.Dense(128).
//			WithActivation(nn.ReLU()).
//			WithInitializer(nn.HeNormal(1.0)).
//			WithBiasInitializer(nn.Zeros()).
//			WithBias(true).
//			Build()).
//		AddLayer(nn.Dense(1).
//			WithActivation(nn.Sigmoid()).
//			WithInitializer(nn.XavierNormal(1.0)).
//			WithBiasInitializer(nn.Zeros()).
//			WithBias(true).
//			Build()).
//		Build([]int{64})
//
//	err = net.Compile(nn.CompileConfig{
//		Optimizer: nn.Adam(nn.AdamConfig{
//			LR:      0.001,
//			Beta1:   0.9,
//			Beta2:   0.999,
//			Epsilon: 1e-8,
//		}),
//		Loss:    nn.BinaryCrossEntropy(nn.BinaryCrossEntropyConfig{Reduction: "mean"}),
//		Metrics: []nn.Metric{nn.Accuracy()},
//	})
//
//	result, err := net.Fit(trainBatches, valBatches, nn.FitConfig{
//		Epochs: 100,
//	}, []nn.Callback{
//		nn.PrintProgress(nn.PrintProgressConfig{PrintEvery: 10}),
//	})
//
// Training data is served through the BatchSource interface, which lets
// callers stream batches from disk instead of holding the whole dataset
// in memory.
package nn

// Version of the nn engine
const Version = "1.0.0"
