package regressor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// stepData is y = 10 when x0 <= 5 else 20, with a noise column x1.
func stepData() (*mat.Dense, []float64) {
	var data, y []float64
	for i := 0; i < 20; i++ {
		x0 := float64(i % 10)
		data = append(data, x0, float64((i*7)%5))
		if x0 <= 5 {
			y = append(y, 10)
		} else {
			y = append(y, 20)
		}
	}
	return mat.NewDense(20, 2, data), y
}

func smallForest() *RandomForest {
	rf := NewRandomForest()
	rf.NEstimators = 10
	rf.MaxFeatures = 2
	return rf
}

func TestForestFitsStepFunction(t *testing.T) {
	X, y := stepData()
	rf := smallForest()
	require.NoError(t, rf.Fit(X, y))

	pred, err := rf.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y, pred, 1e-9)

	q := mat.NewDense(2, 2, []float64{2, 0, 8.5, 0})
	pred, err = rf.Predict(q)
	require.NoError(t, err)
	assert.InDelta(t, 10, pred[0], 1e-9)
	assert.InDelta(t, 20, pred[1], 1e-9)
}

func TestForestIsDeterministic(t *testing.T) {
	X, y := stepData()
	y[3] = 13
	y[17] = 11

	a := smallForest()
	a.MaxFeatures = 1
	a.Workers = 1
	require.NoError(t, a.Fit(X, y))

	b := smallForest()
	b.MaxFeatures = 1
	b.Workers = 8
	require.NoError(t, b.Fit(X, y))

	assert.Equal(t, a.Trees, b.Trees)
}

func TestForestPredictionsWithinTargetRange(t *testing.T) {
	X, y := stepData()
	rf := smallForest()
	rf.Bootstrap = true
	rf.MaxDepth = 2
	require.NoError(t, rf.Fit(X, y))

	pred, err := rf.Predict(mat.NewDense(3, 2, []float64{-100, 3, 4, 1, 1e9, 2}))
	require.NoError(t, err)
	for _, p := range pred {
		assert.GreaterOrEqual(t, p, 10.0)
		assert.LessOrEqual(t, p, 20.0)
	}
	for _, tree := range rf.Trees {
		assert.LessOrEqual(t, tree.Depth(), 2)
	}
}

func TestForestErrors(t *testing.T) {
	X, y := stepData()

	_, err := smallForest().Predict(X)
	assert.ErrorIs(t, err, ErrNotFitted)

	rf := smallForest()
	assert.Error(t, rf.Fit(X, y[:5]))

	require.NoError(t, rf.Fit(X, y))
	_, err = rf.Predict(mat.NewDense(1, 3, []float64{1, 2, 3}))
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestForestBinaryRoundTrip(t *testing.T) {
	X, y := stepData()
	rf := smallForest()
	require.NoError(t, rf.Fit(X, y))

	data, err := rf.MarshalBinary()
	require.NoError(t, err)

	var loaded RandomForest
	require.NoError(t, loaded.UnmarshalBinary(data))

	want, err := rf.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, rf.NEstimators, loaded.NEstimators)
}

func TestFeaturesPerSplit(t *testing.T) {
	rf := &RandomForest{}
	assert.Equal(t, 10, rf.featuresPerSplit(100))
	assert.Equal(t, 1, rf.featuresPerSplit(2))

	rf.MaxFeatures = 50
	assert.Equal(t, 7, rf.featuresPerSplit(7))
}

func TestTreeMissingValuesGoLow(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{math.NaN(), 1, 2, 3})
	y := []float64{5, 5, 50, 50}
	rf := &RandomForest{NEstimators: 1, MinSamplesSplit: 2, MinSamplesLeaf: 1, MaxFeatures: 1}
	require.NoError(t, rf.Fit(X, y))

	pred, err := rf.Predict(mat.NewDense(1, 1, []float64{math.NaN()}))
	require.NoError(t, err)
	assert.Equal(t, 5.0, pred[0])
}

func TestTreeInfiniteValues(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, math.Inf(1)})
	y := []float64{1, 1, 1, 9}
	rf := &RandomForest{NEstimators: 1, MinSamplesSplit: 2, MinSamplesLeaf: 1, MaxFeatures: 1}
	require.NoError(t, rf.Fit(X, y))

	pred, err := rf.Predict(mat.NewDense(2, 1, []float64{3, math.Inf(1)}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 9}, pred)
}

func TestMidpoint(t *testing.T) {
	assert.Equal(t, 1.5, midpoint(1, 2))
	assert.Equal(t, 3.0, midpoint(3, math.Inf(1)))
	assert.True(t, math.IsInf(midpoint(math.Inf(-1), 0), -1))
	next := math.Nextafter(1, 2)
	assert.Equal(t, 1.0, midpoint(1, next))
}
