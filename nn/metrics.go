package nn

// Metric computes evaluation metrics
type Metric interface {
	reset()
	update(pred, target *tensor)
	result() float64
	name() string
}

// AccuracyMetric - binary classification accuracy at a 0.5 threshold.
// Predictions and targets have one value per sample.
type AccuracyMetric struct {
	correct int
	total   int
}

func Accuracy() Metric {
	return &AccuracyMetric{}
}

func (a *AccuracyMetric) reset() {
	a.correct = 0
	a.total = 0
}

func (a *AccuracyMetric) update(pred, target *tensor) {
	for i := range pred.data {
		predClass := 0
		if pred.data[i] >= 0.5 {
			predClass = 1
		}
		targetClass := 0
		if target.data[i] >= 0.5 {
			targetClass = 1
		}
		if predClass == targetClass {
			a.correct++
		}
		a.total++
	}
}

func (a *AccuracyMetric) result() float64 {
	if a.total == 0 {
		return 0
	}
	return float64(a.correct) / float64(a.total)
}

func (a *AccuracyMetric) name() string { return "accuracy" }

// PrecisionMetric - precision for binary classification
type PrecisionMetric struct {
	truePositives  int
	falsePositives int
	Threshold      float64
}

type PrecisionConfig struct {
	Threshold float64
}

func Precision(config PrecisionConfig) Metric {
	return &PrecisionMetric{Threshold: config.Threshold}
}

func (p *PrecisionMetric) reset() {
	p.truePositives = 0
	p.falsePositives = 0
}

func (p *PrecisionMetric) update(pred, target *tensor) {
	for i := range pred.data {
		predPos := pred.data[i] >= p.Threshold
		actualPos := target.data[i] >= 0.5
		if predPos {
			if actualPos {
				p.truePositives++
			} else {
				p.falsePositives++
			}
		}
	}
}

func (p *PrecisionMetric) result() float64 {
	denom := p.truePositives + p.falsePositives
	if denom == 0 {
		return 0
	}
	return float64(p.truePositives) / float64(denom)
}

func (p *PrecisionMetric) name() string { return "precision" }

// RecallMetric - recall for binary classification
type RecallMetric struct {
	truePositives  int
	falseNegatives int
	Threshold      float64
}

type RecallConfig struct {
	Threshold float64
}

func Recall(config RecallConfig) Metric {
	return &RecallMetric{Threshold: config.Threshold}
}

func (r *RecallMetric) reset() {
	r.truePositives = 0
	r.falseNegatives = 0
}

func (r *RecallMetric) update(pred, target *tensor) {
	for i := range pred.data {
		predPos := pred.data[i] >= r.Threshold
		actualPos := target.data[i] >= 0.5
		if actualPos {
			if predPos {
				r.truePositives++
			} else {
				r.falseNegatives++
			}
		}
	}
}

func (r *RecallMetric) result() float64 {
	denom := r.truePositives + r.falseNegatives
	if denom == 0 {
		return 0
	}
	return float64(r.truePositives) / float64(denom)
}

func (r *RecallMetric) name() string { return "recall" }
