// Package regressor implements the price model: a random forest of CART
// regression trees grown with the squared-error criterion.
package regressor

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"car-price-estimator/utils"
)

var (
	ErrNotFitted       = errors.New("regressor: model is not fitted")
	ErrFeatureMismatch = errors.New("regressor: feature count does not match the fitted model")
	ErrEmptyInput      = errors.New("regressor: no training rows")
)

// RandomForest averages the predictions of independently grown trees. The
// exported fields are both the hyperparameters and the persisted state.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int // 0 => unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 => sqrt(number of features)
	Bootstrap       bool
	RandomState     int64
	// Workers bounds the trees grown concurrently. It does not affect the
	// fitted model.
	Workers int

	NFeatures int
	Trees     []*DecisionTree
}

// NewRandomForest returns a forest with the deployed hyperparameters: 200
// fully grown trees on sqrt(p) features per split, without bootstrap.
func NewRandomForest() *RandomForest {
	return &RandomForest{
		NEstimators:     200,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     42,
		Workers:         4,
	}
}

// Fit grows NEstimators trees on X (n x p) and targets y. Per-tree seeds are
// drawn from RandomState up front, so the result does not depend on Workers.
func (rf *RandomForest) Fit(X mat.Matrix, y []float64) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return ErrEmptyInput
	}
	if len(y) != rows {
		return fmt.Errorf("regressor: X has %d rows but y has %d", rows, len(y))
	}
	if rf.NEstimators < 1 {
		return fmt.Errorf("regressor: n_estimators must be positive, got %d", rf.NEstimators)
	}

	raw := denseOf(X).RawMatrix()
	params := treeParams{
		maxDepth:    rf.MaxDepth,
		minSplit:    max(rf.MinSamplesSplit, 2),
		minLeaf:     max(rf.MinSamplesLeaf, 1),
		maxFeatures: rf.featuresPerSplit(cols),
	}

	master := rand.New(rand.NewSource(rf.RandomState))
	seeds := make([]int64, rf.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*DecisionTree, rf.NEstimators)
	pool := utils.NewWorkerPool(rf.Workers)
	for i := range trees {
		pool.Submit(func() {
			idx := rf.sampleRows(rows, seeds[i])
			trees[i] = fitTree(raw.Data, raw.Stride, cols, y, idx, params, seeds[i])
		})
	}
	pool.Wait()

	rf.NFeatures = cols
	rf.Trees = trees
	return nil
}

// Predict returns one estimate per row of X.
func (rf *RandomForest) Predict(X mat.Matrix) ([]float64, error) {
	if !rf.Fitted() {
		return nil, ErrNotFitted
	}
	rows, cols := X.Dims()
	if cols != rf.NFeatures {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, cols, rf.NFeatures)
	}

	out := make([]float64, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		var sum float64
		for _, t := range rf.Trees {
			sum += t.PredictRow(row)
		}
		out[i] = sum / float64(len(rf.Trees))
	}
	return out, nil
}

// Fitted reports whether the forest holds trees.
func (rf *RandomForest) Fitted() bool {
	return len(rf.Trees) > 0 && rf.NFeatures > 0
}

// featuresPerSplit resolves MaxFeatures against p columns.
func (rf *RandomForest) featuresPerSplit(p int) int {
	k := rf.MaxFeatures
	if k <= 0 {
		k = int(math.Sqrt(float64(p)))
	}
	return min(max(k, 1), p)
}

func (rf *RandomForest) sampleRows(n int, seed int64) []int {
	idx := make([]int, n)
	if !rf.Bootstrap {
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	// Offset so the bootstrap draw is independent of the tree's split draws.
	rng := rand.New(rand.NewSource(seed ^ 0x5deece66d))
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}

func denseOf(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(X)
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (rf *RandomForest) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	type forest RandomForest
	if err := gob.NewEncoder(&buf).Encode((*forest)(rf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (rf *RandomForest) UnmarshalBinary(data []byte) error {
	type forest RandomForest
	var f forest
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		return err
	}
	*rf = RandomForest(f)
	return nil
}
