package regressor

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// TrainTestSplit shuffles n row indices with seed and holds out
// round(ratio*n) of them for testing. ratio must be in [0, 1).
func TrainTestSplit(n int, ratio float64, seed int64) (train, test []int, err error) {
	if ratio < 0 || ratio >= 1 {
		return nil, nil, fmt.Errorf("regressor: test ratio %v out of range [0, 1)", ratio)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Round(ratio * float64(n)))
	if nTest >= n && n > 0 {
		nTest = n - 1
	}
	return perm[nTest:], perm[:nTest], nil
}

// SelectRows copies the given rows of X and y into a new matrix and slice.
func SelectRows(X mat.Matrix, y []float64, rows []int) (*mat.Dense, []float64) {
	_, cols := X.Dims()
	data := make([]float64, len(rows)*cols)
	out := make([]float64, len(rows))
	for i, r := range rows {
		mat.Row(data[i*cols:(i+1)*cols], r, X)
		out[i] = y[r]
	}
	if len(rows) == 0 {
		return nil, out
	}
	return mat.NewDense(len(rows), cols, data), out
}
