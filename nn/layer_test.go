package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRescalingScalesForwardAndBackward(t *testing.T) {
	layer := Rescaling(1.0 / 127).Build()
	require.NoError(t, layer.build([]int{4}, rand.New(rand.NewSource(1))))

	input := newTensor(1, 4)
	copy(input.data, []float64{0, 127, 254, 63.5})

	out, err := layer.forward(input, true)
	require.NoError(t, err)
	require.InDelta(t, 0.0, out.data[0], 1e-12)
	require.InDelta(t, 1.0, out.data[1], 1e-12)
	require.InDelta(t, 2.0, out.data[2], 1e-12)
	require.InDelta(t, 0.5, out.data[3], 1e-12)

	grad := newTensor(1, 4)
	grad.fill(127)
	gradIn, err := layer.backward(grad)
	require.NoError(t, err)
	require.InDelta(t, 1.0, gradIn.data[0], 1e-12)
}

func TestRescalingRejectsZeroFactor(t *testing.T) {
	layer := Rescaling(0).Build()
	err := layer.build([]int{4}, rand.New(rand.NewSource(1)))
	require.Error(t, err)
}

func TestConv2DSamePaddingPreservesSpatialDims(t *testing.T) {
	layer := Conv2D(4, [2]int{3, 3}).
		WithPadding("same").
		WithActivation(ReLU()).
		WithInitializer(HeNormal(1.0)).
		WithBiasInitializer(Zeros()).
		WithBias(true).
		Build()
	require.NoError(t, layer.build([]int{8, 8, 3}, rand.New(rand.NewSource(42))))
	require.Equal(t, []int{8, 8, 4}, layer.outputShape())

	input := newTensor(2, 8, 8, 3)
	input.fillRandNorm(0, 1, rand.New(rand.NewSource(7)))

	out, err := layer.forward(input, true)
	require.NoError(t, err)
	require.Equal(t, []int{2, 8, 8, 4}, out.shape)
}

func TestConv2DBackwardShapesMatchInput(t *testing.T) {
	layer := Conv2D(2, [2]int{3, 3}).
		WithPadding("same").
		WithActivation(ReLU()).
		WithInitializer(HeNormal(1.0)).
		WithBiasInitializer(Zeros()).
		WithBias(true).
		Build()
	require.NoError(t, layer.build([]int{4, 4, 3}, rand.New(rand.NewSource(42))))

	input := newTensor(2, 4, 4, 3)
	input.fillRandNorm(0, 1, rand.New(rand.NewSource(7)))
	out, err := layer.forward(input, true)
	require.NoError(t, err)

	grad := newTensor(out.shape...)
	grad.fill(1)
	gradIn, err := layer.backward(grad)
	require.NoError(t, err)
	require.Equal(t, input.shape, gradIn.shape)
}

func TestMaxPool2DPicksMaximum(t *testing.T) {
	layer := MaxPool2D([2]int{2, 2}).WithStride(2, 2).Build()
	require.NoError(t, layer.build([]int{4, 4, 1}, rand.New(rand.NewSource(1))))
	require.Equal(t, []int{2, 2, 1}, layer.outputShape())

	input := newTensor(1, 4, 4, 1)
	copy(input.data, []float64{
		1, 2, 5, 6,
		3, 4, 7, 8,
		9, 10, 13, 14,
		11, 12, 15, 16,
	})

	out, err := layer.forward(input, true)
	require.NoError(t, err)
	require.Equal(t, []float64{4, 8, 12, 16}, out.data)
}

func TestMaxPool2DBackwardRoutesToMax(t *testing.T) {
	layer := MaxPool2D([2]int{2, 2}).WithStride(2, 2).Build()
	require.NoError(t, layer.build([]int{2, 2, 1}, rand.New(rand.NewSource(1))))

	input := newTensor(1, 2, 2, 1)
	copy(input.data, []float64{1, 9, 2, 3})
	_, err := layer.forward(input, true)
	require.NoError(t, err)

	grad := newTensor(1, 1, 1, 1)
	grad.fill(5)
	gradIn, err := layer.backward(grad)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 5, 0, 0}, gradIn.data)
}

func TestFlattenCollapsesTrailingDims(t *testing.T) {
	layer := Flatten().Build()
	require.NoError(t, layer.build([]int{2, 2, 3}, rand.New(rand.NewSource(1))))
	require.Equal(t, []int{12}, layer.outputShape())

	input := newTensor(4, 2, 2, 3)
	input.fillRandNorm(0, 1, rand.New(rand.NewSource(2)))
	out, err := layer.forward(input, true)
	require.NoError(t, err)
	require.Equal(t, []int{4, 12}, out.shape)
	require.Equal(t, input.data, out.data)
}

func TestBatchNormNormalizesTrailingAxis(t *testing.T) {
	layer := BatchNorm(1e-3, 0.99).Build()
	require.NoError(t, layer.build([]int{2}, rand.New(rand.NewSource(1))))

	input := newTensor(4, 2)
	copy(input.data, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})

	out, err := layer.forward(input, true)
	require.NoError(t, err)

	// With gamma=1 and beta=0 each feature column should come out with
	// near-zero mean and near-unit variance.
	for j := 0; j < 2; j++ {
		mean := 0.0
		for i := 0; i < 4; i++ {
			mean += out.at(i, j)
		}
		mean /= 4
		require.InDelta(t, 0.0, mean, 1e-9)

		variance := 0.0
		for i := 0; i < 4; i++ {
			diff := out.at(i, j) - mean
			variance += diff * diff
		}
		variance /= 4
		require.InDelta(t, 1.0, variance, 1e-2)
	}
}

func TestBatchNormInferenceUsesRunningStats(t *testing.T) {
	layer := BatchNorm(1e-3, 0.0).Build()
	require.NoError(t, layer.build([]int{1}, rand.New(rand.NewSource(1))))

	train := newTensor(2, 1)
	copy(train.data, []float64{0, 2})
	_, err := layer.forward(train, true)
	require.NoError(t, err)

	// Momentum 0 makes the running stats equal the last batch stats
	// (mean 1, variance 1), so inference on the same data reproduces
	// the training normalization.
	out, err := layer.forward(train, false)
	require.NoError(t, err)
	require.InDelta(t, -1.0, out.data[0], 1e-2)
	require.InDelta(t, 1.0, out.data[1], 1e-2)
}

func TestDropoutIdentityAtInference(t *testing.T) {
	layer := Dropout(0.5).Build()
	require.NoError(t, layer.build([]int{4}, rand.New(rand.NewSource(1))))

	input := newTensor(1, 4)
	copy(input.data, []float64{1, 2, 3, 4})
	out, err := layer.forward(input, false)
	require.NoError(t, err)
	require.Equal(t, input.data, out.data)
}

func TestDropoutZeroesSomeUnitsDuringTraining(t *testing.T) {
	layer := Dropout(0.5).Build()
	require.NoError(t, layer.build([]int{1000}, rand.New(rand.NewSource(3))))

	input := newTensor(1, 1000)
	input.fill(1)
	out, err := layer.forward(input, true)
	require.NoError(t, err)

	zeros := 0
	for _, v := range out.data {
		if v == 0 {
			zeros++
		}
	}
	require.Greater(t, zeros, 300)
	require.Less(t, zeros, 700)
}

func TestDenseForwardKnownWeights(t *testing.T) {
	layer := Dense(1).
		WithActivation(Sigmoid()).
		WithInitializer(Zeros()).
		WithBiasInitializer(Zeros()).
		WithBias(true).
		Build()
	require.NoError(t, layer.build([]int{2}, rand.New(rand.NewSource(1))))

	// Zero weights and bias drive the sigmoid to exactly 0.5.
	input := newTensor(3, 2)
	input.fillRandNorm(0, 1, rand.New(rand.NewSource(5)))
	out, err := layer.forward(input, false)
	require.NoError(t, err)
	require.Equal(t, []int{3, 1}, out.shape)
	for _, v := range out.data {
		require.InDelta(t, 0.5, v, 1e-12)
	}
}

func TestSigmoidBounded(t *testing.T) {
	act := Sigmoid()
	x := newTensor(3)
	copy(x.data, []float64{-1000, 0, 1000})
	out := newTensor(3)
	act.forward(x, out)
	for _, v := range out.data {
		require.False(t, math.IsNaN(v))
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
	}
	require.InDelta(t, 0.5, out.data[1], 1e-12)
}
