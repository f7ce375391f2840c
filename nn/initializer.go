package nn

import (
	"math"
	"math/rand"
)

// Initializer sets up initial weights for layers
type Initializer interface {
	initialize(t *tensor, fanIn, fanOut int, rng *rand.Rand)
	name() string
}

// HeNormalInit - He/Kaiming normal initialization
type HeNormalInit struct {
	Gain float64
}

func HeNormal(gain float64) Initializer {
	return &HeNormalInit{Gain: gain}
}

func (h *HeNormalInit) initialize(t *tensor, fanIn, fanOut int, rng *rand.Rand) {
	std := h.Gain * math.Sqrt(2.0/float64(fanIn))
	t.fillRandNorm(0, std, rng)
}

func (h *HeNormalInit) name() string { return "he_normal" }

// XavierNormalInit - Glorot normal initialization
type XavierNormalInit struct {
	Gain float64
}

func XavierNormal(gain float64) Initializer {
	return &XavierNormalInit{Gain: gain}
}

func (x *XavierNormalInit) initialize(t *tensor, fanIn, fanOut int, rng *rand.Rand) {
	std := x.Gain * math.Sqrt(2.0/float64(fanIn+fanOut))
	t.fillRandNorm(0, std, rng)
}

func (x *XavierNormalInit) name() string { return "xavier_normal" }

// ZerosInit - all zeros, typically for biases
type ZerosInit struct{}

func Zeros() Initializer { return &ZerosInit{} }

func (z *ZerosInit) initialize(t *tensor, fanIn, fanOut int, rng *rand.Rand) {
	t.fill(0)
}

func (z *ZerosInit) name() string { return "zeros" }
