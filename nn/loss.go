package nn

import "math"

// Loss computes loss and gradients
type Loss interface {
	compute(pred, target *tensor) float64
	gradient(pred, target *tensor, gradOut *tensor)
	name() string
}

// BinaryCrossEntropyLoss - for binary classification
type BinaryCrossEntropyLoss struct {
	Reduction string // "mean" or "sum"
}

type BinaryCrossEntropyConfig struct {
	Reduction string
}

func BinaryCrossEntropy(config BinaryCrossEntropyConfig) Loss {
	return &BinaryCrossEntropyLoss{Reduction: config.Reduction}
}

func (b *BinaryCrossEntropyLoss) compute(pred, target *tensor) float64 {
	eps := 1e-15
	sum := 0.0
	for i := range pred.data {
		p := math.Max(math.Min(pred.data[i], 1-eps), eps)
		t := target.data[i]
		sum -= t*math.Log(p) + (1-t)*math.Log(1-p)
	}
	if b.Reduction == "mean" {
		return sum / float64(len(pred.data))
	}
	return sum
}

func (b *BinaryCrossEntropyLoss) gradient(pred, target *tensor, gradOut *tensor) {
	eps := 1e-7 // Larger epsilon for gradient stability
	scale := 1.0
	if b.Reduction == "mean" {
		scale = 1.0 / float64(len(pred.data))
	}
	for i := range pred.data {
		p := math.Max(math.Min(pred.data[i], 1-eps), eps)
		t := target.data[i]
		// Numerically stable gradient: (p - t) / (p * (1 - p))
		// Clamp denominator to avoid division by near-zero
		denom := math.Max(p*(1-p), eps)
		gradOut.data[i] = scale * (p - t) / denom
	}
}

func (b *BinaryCrossEntropyLoss) name() string { return "binary_cross_entropy" }
