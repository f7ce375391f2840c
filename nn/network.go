package nn

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// Network is the main neural network container
type Network struct {
	layers     []Layer
	optimizer  Optimizer
	loss       Loss
	metrics    []Metric
	compiled   bool
	built      bool
	rng        *rand.Rand
	inputShape []int
}

// NetworkBuilder for fluent API
type NetworkBuilder struct {
	network *Network
	err     error
}

// NewNetwork creates a new network builder
func NewNetwork(config NetworkConfig) *NetworkBuilder {
	return &NetworkBuilder{
		network: &Network{
			layers: make([]Layer, 0),
			rng:    rand.New(rand.NewSource(config.Seed)),
		},
	}
}

// AddLayer adds a layer to the network
func (n *NetworkBuilder) AddLayer(layer Layer) *NetworkBuilder {
	if n.err != nil {
		return n
	}
	n.network.layers = append(n.network.layers, layer)
	return n
}

// Build finalizes the network structure
func (n *NetworkBuilder) Build(inputShape []int) (*Network, error) {
	if n.err != nil {
		return nil, n.err
	}
	if len(n.network.layers) == 0 {
		return nil, errors.New("nn: network must have at least one layer")
	}
	if len(inputShape) == 0 {
		return nil, errors.New("nn: inputShape must be specified")
	}

	n.network.inputShape = inputShape

	// Build each layer
	currentShape := inputShape
	for i, layer := range n.network.layers {
		err := layer.build(currentShape, n.network.rng)
		if err != nil {
			return nil, errorf("layer %d (%s): %v", i, layer.name(), err)
		}
		outShape := layer.outputShape()
		if outShape != nil {
			currentShape = outShape
		}
	}

	n.network.built = true
	return n.network, nil
}

// Compile configures optimizer, loss, and metrics
func (n *Network) Compile(config CompileConfig) error {
	if !n.built {
		return errors.New("nn: network must be built before compiling")
	}
	if err := ValidateCompileConfig(config); err != nil {
		return err
	}

	n.optimizer = config.Optimizer
	n.loss = config.Loss
	n.metrics = config.Metrics
	n.compiled = true

	return nil
}

// BatchSource yields fixed-size batches of samples. Implementations may
// decode data lazily; Batch must be restartable so that every epoch can
// iterate the full sequence again.
type BatchSource interface {
	Batches() int
	Batch(i int) (inputs [][]float64, targets [][]float64, err error)
}

// TrainResult holds training output
type TrainResult struct {
	History      map[string][]float64
	Epochs       int
	FinalLoss    float64
	FinalMetrics map[string]float64
}

// Fit trains the network on train, measuring val after every epoch.
// Callbacks observe the epoch logs and may stop training early.
func (n *Network) Fit(train, val BatchSource, config FitConfig, callbacks []Callback) (*TrainResult, error) {
	if !n.compiled {
		return nil, errors.New("nn: network must be compiled before training")
	}
	if err := ValidateFitConfig(config); err != nil {
		return nil, err
	}
	if train == nil || train.Batches() == 0 {
		return nil, errors.New("nn: no training data provided")
	}

	for _, cb := range callbacks {
		if aware, ok := cb.(networkAware); ok {
			aware.setNetwork(n)
		}
	}

	result := &TrainResult{
		History:      make(map[string][]float64),
		FinalMetrics: make(map[string]float64),
	}

	logs := make(map[string]float64)

	// Training callbacks
	for _, cb := range callbacks {
		cb.onTrainBegin(logs)
	}

	// Get all parameters
	var params []*tensor
	var grads []*tensor
	for _, layer := range n.layers {
		params = append(params, layer.parameters()...)
		grads = append(grads, layer.gradients()...)
	}

	for epoch := 0; epoch < config.Epochs; epoch++ {
		for _, cb := range callbacks {
			cb.onEpochBegin(epoch, logs)
		}

		epochLoss := 0.0
		for _, m := range n.metrics {
			m.reset()
		}

		numBatches := train.Batches()
		for batch := 0; batch < numBatches; batch++ {
			for _, cb := range callbacks {
				cb.onBatchBegin(batch, logs)
			}

			inputs, targets, err := train.Batch(batch)
			if err != nil {
				return nil, errorf("train batch %d: %v", batch, err)
			}
			batchX, err := n.tensorFromRows(inputs)
			if err != nil {
				return nil, err
			}
			batchY, err := targetTensor(targets)
			if err != nil {
				return nil, err
			}

			// Forward pass
			output, err := n.forwardAll(batchX, true)
			if err != nil {
				return nil, err
			}

			// Compute loss
			batchLoss := n.loss.compute(output, batchY)
			epochLoss += batchLoss

			// Update metrics
			for _, m := range n.metrics {
				m.update(output, batchY)
			}

			// Backward pass
			gradOutput := newTensor(output.shape...)
			n.loss.gradient(output, batchY, gradOutput)

			for i := len(n.layers) - 1; i >= 0; i-- {
				gradOutput, err = n.layers[i].backward(gradOutput)
				if err != nil {
					return nil, err
				}
			}

			// Optimizer step
			n.optimizer.step(params, grads)

			for _, cb := range callbacks {
				cb.onBatchEnd(batch, logs)
			}
		}

		// Epoch logs
		logs["loss"] = epochLoss / float64(numBatches)
		for _, m := range n.metrics {
			logs[m.name()] = m.result()
		}
		logs["lr"] = n.optimizer.learningRate()

		// Validation
		if val != nil {
			valLoss, valMetrics, err := n.evaluateSource(val)
			if err != nil {
				return nil, err
			}
			logs["val_loss"] = valLoss
			for k, v := range valMetrics {
				logs["val_"+k] = v
			}
		}

		// Save to history
		for k, v := range logs {
			result.History[k] = append(result.History[k], v)
		}
		result.Epochs++

		// Epoch end callbacks
		stopTraining := false
		for _, cb := range callbacks {
			if cb.onEpochEnd(epoch, logs) {
				stopTraining = true
			}
		}

		if stopTraining {
			break
		}
	}

	for _, cb := range callbacks {
		cb.onTrainEnd(logs)
	}

	result.FinalLoss = logs["loss"]
	for _, m := range n.metrics {
		result.FinalMetrics[m.name()] = logs[m.name()]
	}

	return result, nil
}

// Evaluate runs one forward pass over data, returning loss and metrics
func (n *Network) Evaluate(data BatchSource) (map[string]float64, error) {
	if !n.compiled {
		return nil, errors.New("nn: network must be compiled before evaluation")
	}
	if data == nil || data.Batches() == 0 {
		return nil, errors.New("nn: no evaluation data provided")
	}

	loss, metricVals, err := n.evaluateSource(data)
	if err != nil {
		return nil, err
	}

	results := make(map[string]float64, len(metricVals)+1)
	results["loss"] = loss
	for k, v := range metricVals {
		results[k] = v
	}
	return results, nil
}

// evaluateSource computes sample-weighted loss and metric values over all
// batches of data without touching parameters.
func (n *Network) evaluateSource(data BatchSource) (float64, map[string]float64, error) {
	for _, m := range n.metrics {
		m.reset()
	}

	lossSum := 0.0
	sampleCount := 0

	for batch := 0; batch < data.Batches(); batch++ {
		inputs, targets, err := data.Batch(batch)
		if err != nil {
			return 0, nil, errorf("eval batch %d: %v", batch, err)
		}
		batchX, err := n.tensorFromRows(inputs)
		if err != nil {
			return 0, nil, err
		}
		batchY, err := targetTensor(targets)
		if err != nil {
			return 0, nil, err
		}

		output, err := n.forwardAll(batchX, false)
		if err != nil {
			return 0, nil, err
		}

		lossSum += n.loss.compute(output, batchY) * float64(len(inputs))
		sampleCount += len(inputs)

		for _, m := range n.metrics {
			m.update(output, batchY)
		}
	}

	if sampleCount == 0 {
		return 0, nil, errors.New("nn: evaluation data is empty")
	}

	metricVals := make(map[string]float64, len(n.metrics))
	for _, m := range n.metrics {
		metricVals[m.name()] = m.result()
	}
	return lossSum / float64(sampleCount), metricVals, nil
}

// Predict runs inference on inputs
func (n *Network) Predict(inputs [][]float64) ([][]float64, error) {
	if !n.compiled {
		return nil, errors.New("nn: network must be compiled before prediction")
	}
	if len(inputs) == 0 {
		return nil, errors.New("nn: no inputs provided")
	}

	inputTensor, err := n.tensorFromRows(inputs)
	if err != nil {
		return nil, err
	}

	output, err := n.forwardAll(inputTensor, false)
	if err != nil {
		return nil, err
	}

	// Convert back to [][]float64
	numSamples := len(inputs)
	outputDim := output.shape[1]
	result := make([][]float64, numSamples)
	for i := 0; i < numSamples; i++ {
		result[i] = make([]float64, outputDim)
		for j := 0; j < outputDim; j++ {
			result[i][j] = output.data[i*outputDim+j]
		}
	}

	return result, nil
}

// forwardAll pushes a batch tensor through every layer
func (n *Network) forwardAll(input *tensor, training bool) (*tensor, error) {
	output := input
	var err error
	for _, layer := range n.layers {
		output, err = layer.forward(output, training)
		if err != nil {
			return nil, err
		}
	}
	return output, nil
}

// tensorFromRows reshapes flat per-sample rows into [batch, inputShape...]
func (n *Network) tensorFromRows(rows [][]float64) (*tensor, error) {
	want := 1
	for _, s := range n.inputShape {
		want *= s
	}

	shape := append([]int{len(rows)}, n.inputShape...)
	t := newTensor(shape...)
	for i, row := range rows {
		if len(row) != want {
			return nil, errorf("sample %d has %d values, expected %d", i, len(row), want)
		}
		copy(t.data[i*want:(i+1)*want], row)
	}
	return t, nil
}

func targetTensor(targets [][]float64) (*tensor, error) {
	if len(targets) == 0 {
		return nil, errors.New("nn: no targets provided")
	}
	dim := len(targets[0])
	t := newTensor(len(targets), dim)
	for i, row := range targets {
		if len(row) != dim {
			return nil, errorf("target %d has %d values, expected %d", i, len(row), dim)
		}
		copy(t.data[i*dim:(i+1)*dim], row)
	}
	return t, nil
}

// modelState for serialization
type modelState struct {
	Weights [][]float64 `json:"weights"`
	Shapes  [][]int     `json:"shapes"`
}

// Save saves model weights to file, overwriting any existing file
func (n *Network) Save(path string) error {
	if !n.built {
		return errors.New("nn: network must be built before saving")
	}

	state := modelState{
		Weights: make([][]float64, 0),
		Shapes:  make([][]int, 0),
	}

	for _, layer := range n.layers {
		for _, p := range layer.parameters() {
			data := make([]float64, len(p.data))
			copy(data, p.data)
			state.Weights = append(state.Weights, data)
			state.Shapes = append(state.Shapes, p.shape)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	return encoder.Encode(state)
}

// Load loads model weights from file
func (n *Network) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var state modelState
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&state); err != nil {
		return err
	}

	idx := 0
	for _, layer := range n.layers {
		for _, p := range layer.parameters() {
			if idx >= len(state.Weights) {
				return errors.New("nn: weight count mismatch")
			}
			if len(state.Weights[idx]) != len(p.data) {
				return errorf("weight %d has %d values, expected %d", idx, len(state.Weights[idx]), len(p.data))
			}
			copy(p.data, state.Weights[idx])
			idx++
		}
	}
	if idx != len(state.Weights) {
		return errors.New("nn: weight count mismatch")
	}

	return nil
}

// Summary prints network architecture
func (n *Network) Summary() string {
	var b strings.Builder
	b.WriteString("Network Summary\n")
	b.WriteString("====================\n")

	totalParams := 0
	for i, layer := range n.layers {
		layerParams := 0
		for _, p := range layer.parameters() {
			layerParams += p.size()
		}
		totalParams += layerParams
		fmt.Fprintf(&b, "Layer %d: %s - %d params\n", i+1, layer.name(), layerParams)
	}
	b.WriteString("====================\n")
	fmt.Fprintf(&b, "Total parameters: %d\n", totalParams)

	return b.String()
}
