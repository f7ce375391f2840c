package nn

import (
	"fmt"
	"math"
	"sort"
)

// Callback is called during training at various points
type Callback interface {
	onTrainBegin(logs map[string]float64)
	onTrainEnd(logs map[string]float64)
	onEpochBegin(epoch int, logs map[string]float64)
	onEpochEnd(epoch int, logs map[string]float64) bool // return true to stop training
	onBatchBegin(batch int, logs map[string]float64)
	onBatchEnd(batch int, logs map[string]float64)
	name() string
}

// networkAware callbacks receive the network they observe before training
// starts. Checkpointing, weight restoration and learning-rate mutation all
// need it.
type networkAware interface {
	setNetwork(n *Network)
}

// EarlyStoppingCallback stops training when metric stops improving
type EarlyStoppingCallback struct {
	Monitor      string
	MinDelta     float64
	Patience     int
	Mode         string // "min" or "max"
	RestoreBest  bool
	net          *Network
	bestValue    float64
	bestWeights  []*tensor
	wait         int
	stoppedEpoch int
}

type EarlyStoppingConfig struct {
	Monitor     string
	MinDelta    float64
	Patience    int
	Mode        string
	RestoreBest bool
}

func EarlyStopping(config EarlyStoppingConfig) Callback {
	best := math.Inf(1)
	if config.Mode == "max" {
		best = math.Inf(-1)
	}
	return &EarlyStoppingCallback{
		Monitor:     config.Monitor,
		MinDelta:    config.MinDelta,
		Patience:    config.Patience,
		Mode:        config.Mode,
		RestoreBest: config.RestoreBest,
		bestValue:   best,
		wait:        0,
	}
}

func (e *EarlyStoppingCallback) setNetwork(n *Network) { e.net = n }

func (e *EarlyStoppingCallback) onTrainBegin(logs map[string]float64) {
	e.wait = 0
	e.bestWeights = nil
	if e.Mode == "max" {
		e.bestValue = math.Inf(-1)
	} else {
		e.bestValue = math.Inf(1)
	}
}

func (e *EarlyStoppingCallback) onTrainEnd(logs map[string]float64) {}

func (e *EarlyStoppingCallback) onEpochBegin(epoch int, logs map[string]float64) {}

func (e *EarlyStoppingCallback) onEpochEnd(epoch int, logs map[string]float64) bool {
	current, ok := logs[e.Monitor]
	if !ok {
		return false
	}

	improved := false
	if e.Mode == "max" {
		improved = current > e.bestValue+e.MinDelta
	} else {
		improved = current < e.bestValue-e.MinDelta
	}

	if improved {
		e.bestValue = current
		e.wait = 0
		if e.RestoreBest && e.net != nil {
			e.bestWeights = snapshotParams(e.net)
		}
	} else {
		e.wait++
		if e.wait >= e.Patience {
			e.stoppedEpoch = epoch
			if e.RestoreBest && e.net != nil && e.bestWeights != nil {
				restoreParams(e.net, e.bestWeights)
			}
			fmt.Printf("Epoch %d: early stopping (best %s=%.6f)\n", epoch+1, e.Monitor, e.bestValue)
			return true // stop training
		}
	}
	return false
}

func (e *EarlyStoppingCallback) onBatchBegin(batch int, logs map[string]float64) {}
func (e *EarlyStoppingCallback) onBatchEnd(batch int, logs map[string]float64)   {}
func (e *EarlyStoppingCallback) name() string                                    { return "early_stopping" }

func snapshotParams(n *Network) []*tensor {
	var snap []*tensor
	for _, layer := range n.layers {
		for _, p := range layer.parameters() {
			snap = append(snap, p.clone())
		}
	}
	return snap
}

func restoreParams(n *Network, snap []*tensor) {
	idx := 0
	for _, layer := range n.layers {
		for _, p := range layer.parameters() {
			if idx < len(snap) {
				copy(p.data, snap[idx].data)
			}
			idx++
		}
	}
}

// ReduceLROnPlateauCallback multiplies the optimizer learning rate by
// Factor after Patience epochs without improvement, never below MinLR.
type ReduceLROnPlateauCallback struct {
	Monitor   string
	Factor    float64
	Patience  int
	MinLR     float64
	MinDelta  float64
	net       *Network
	bestValue float64
	wait      int
}

type ReduceLROnPlateauConfig struct {
	Monitor  string
	Factor   float64
	Patience int
	MinLR    float64
	MinDelta float64
}

func ReduceLROnPlateau(config ReduceLROnPlateauConfig) Callback {
	return &ReduceLROnPlateauCallback{
		Monitor:   config.Monitor,
		Factor:    config.Factor,
		Patience:  config.Patience,
		MinLR:     config.MinLR,
		MinDelta:  config.MinDelta,
		bestValue: math.Inf(1),
	}
}

func (r *ReduceLROnPlateauCallback) setNetwork(n *Network) { r.net = n }

func (r *ReduceLROnPlateauCallback) onTrainBegin(logs map[string]float64) {
	r.wait = 0
	r.bestValue = math.Inf(1)
}

func (r *ReduceLROnPlateauCallback) onTrainEnd(logs map[string]float64) {}

func (r *ReduceLROnPlateauCallback) onEpochBegin(epoch int, logs map[string]float64) {}

func (r *ReduceLROnPlateauCallback) onEpochEnd(epoch int, logs map[string]float64) bool {
	current, ok := logs[r.Monitor]
	if !ok {
		return false
	}

	if current < r.bestValue-r.MinDelta {
		r.bestValue = current
		r.wait = 0
		return false
	}

	r.wait++
	if r.wait >= r.Patience && r.net != nil {
		old := r.net.optimizer.learningRate()
		if old > r.MinLR {
			lr := math.Max(old*r.Factor, r.MinLR)
			r.net.optimizer.setLearningRate(lr)
			fmt.Printf("Epoch %d: reducing learning rate to %g\n", epoch+1, lr)
		}
		r.wait = 0
	}
	return false
}

func (r *ReduceLROnPlateauCallback) onBatchBegin(batch int, logs map[string]float64) {}
func (r *ReduceLROnPlateauCallback) onBatchEnd(batch int, logs map[string]float64)   {}
func (r *ReduceLROnPlateauCallback) name() string                                    { return "reduce_lr_on_plateau" }

// ModelCheckpointCallback persists the model whenever the monitored metric
// improves over all prior epochs, overwriting the previous checkpoint.
type ModelCheckpointCallback struct {
	Path      string
	Monitor   string
	Mode      string // "min" or "max"
	net       *Network
	bestValue float64
	saves     int
}

type ModelCheckpointConfig struct {
	Path    string
	Monitor string
	Mode    string
}

func ModelCheckpoint(config ModelCheckpointConfig) Callback {
	best := math.Inf(1)
	if config.Mode == "max" {
		best = math.Inf(-1)
	}
	return &ModelCheckpointCallback{
		Path:      config.Path,
		Monitor:   config.Monitor,
		Mode:      config.Mode,
		bestValue: best,
	}
}

func (m *ModelCheckpointCallback) setNetwork(n *Network) { m.net = n }

func (m *ModelCheckpointCallback) onTrainBegin(logs map[string]float64) {
	m.saves = 0
	if m.Mode == "max" {
		m.bestValue = math.Inf(-1)
	} else {
		m.bestValue = math.Inf(1)
	}
}

func (m *ModelCheckpointCallback) onTrainEnd(logs map[string]float64) {}

func (m *ModelCheckpointCallback) onEpochBegin(epoch int, logs map[string]float64) {}

func (m *ModelCheckpointCallback) onEpochEnd(epoch int, logs map[string]float64) bool {
	current, ok := logs[m.Monitor]
	if !ok || m.net == nil {
		return false
	}

	improved := false
	if m.Mode == "max" {
		improved = current > m.bestValue
	} else {
		improved = current < m.bestValue
	}
	if !improved {
		return false
	}

	m.bestValue = current
	if err := m.net.Save(m.Path); err != nil {
		fmt.Printf("Epoch %d: checkpoint save failed: %v\n", epoch+1, err)
		return false
	}
	m.saves++
	fmt.Printf("Epoch %d: %s improved to %.6f, saving model to %s\n", epoch+1, m.Monitor, current, m.Path)
	return false
}

func (m *ModelCheckpointCallback) onBatchBegin(batch int, logs map[string]float64) {}
func (m *ModelCheckpointCallback) onBatchEnd(batch int, logs map[string]float64)   {}
func (m *ModelCheckpointCallback) name() string                                    { return "model_checkpoint" }

// PrintProgressCallback prints training progress
type PrintProgressCallback struct {
	PrintEvery int
}

type PrintProgressConfig struct {
	PrintEvery int
}

func PrintProgress(config PrintProgressConfig) Callback {
	return &PrintProgressCallback{PrintEvery: config.PrintEvery}
}

func (p *PrintProgressCallback) onTrainBegin(logs map[string]float64) {
	fmt.Println("Training started...")
}

func (p *PrintProgressCallback) onTrainEnd(logs map[string]float64) {
	fmt.Println("Training complete.")
}

func (p *PrintProgressCallback) onEpochBegin(epoch int, logs map[string]float64) {}

func (p *PrintProgressCallback) onEpochEnd(epoch int, logs map[string]float64) bool {
	if (epoch+1)%p.PrintEvery == 0 {
		keys := make([]string, 0, len(logs))
		for k := range logs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Printf("Epoch %d:", epoch+1)
		for _, k := range keys {
			fmt.Printf(" %s=%.4f", k, logs[k])
		}
		fmt.Println()
	}
	return false
}

func (p *PrintProgressCallback) onBatchBegin(batch int, logs map[string]float64) {}
func (p *PrintProgressCallback) onBatchEnd(batch int, logs map[string]float64)   {}
func (p *PrintProgressCallback) name() string                                    { return "print_progress" }
