package nn

import "math"

// Activation represents an activation function
type Activation interface {
	forward(x *tensor, out *tensor)
	backward(x *tensor, gradOut *tensor, gradIn *tensor)
	name() string
}

// ReLUActivation - Rectified Linear Unit
type ReLUActivation struct{}

func ReLU() Activation { return &ReLUActivation{} }

func (r *ReLUActivation) forward(x *tensor, out *tensor) {
	for i, v := range x.data {
		if v > 0 {
			out.data[i] = v
		} else {
			out.data[i] = 0
		}
	}
}

func (r *ReLUActivation) backward(x *tensor, gradOut *tensor, gradIn *tensor) {
	for i, v := range x.data {
		if v > 0 {
			gradIn.data[i] = gradOut.data[i]
		} else {
			gradIn.data[i] = 0
		}
	}
}

func (r *ReLUActivation) name() string { return "relu" }

// SigmoidActivation
type SigmoidActivation struct{}

func Sigmoid() Activation { return &SigmoidActivation{} }

func (s *SigmoidActivation) forward(x *tensor, out *tensor) {
	for i, v := range x.data {
		// Clamp input to prevent overflow: exp(-v) overflows for v < -709
		if v >= 0 {
			out.data[i] = 1.0 / (1.0 + math.Exp(-v))
		} else {
			// Use numerically stable form for negative values
			expV := math.Exp(v)
			out.data[i] = expV / (1.0 + expV)
		}
	}
}

func (s *SigmoidActivation) backward(x *tensor, gradOut *tensor, gradIn *tensor) {
	for i, v := range x.data {
		sig := 1.0 / (1.0 + math.Exp(-v))
		gradIn.data[i] = gradOut.data[i] * sig * (1 - sig)
	}
}

func (s *SigmoidActivation) name() string { return "sigmoid" }
