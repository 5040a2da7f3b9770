package regressor

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics summarises holdout accuracy.
type Metrics struct {
	RMSE float64 `yaml:"rmse"`
	MAE  float64 `yaml:"mae"`
	R2   float64 `yaml:"r2"`
	N    int     `yaml:"n"`
}

// Evaluate computes RMSE, MAE and R² of pred against truth.
func Evaluate(truth, pred []float64) Metrics {
	return Metrics{
		RMSE: RMSE(truth, pred),
		MAE:  MAE(truth, pred),
		R2:   R2(truth, pred),
		N:    len(truth),
	}
}

func RMSE(truth, pred []float64) float64 {
	if len(truth) == 0 {
		return 0
	}
	var sum float64
	for i := range truth {
		d := truth[i] - pred[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(truth)))
}

func MAE(truth, pred []float64) float64 {
	if len(truth) == 0 {
		return 0
	}
	var sum float64
	for i := range truth {
		sum += math.Abs(truth[i] - pred[i])
	}
	return sum / float64(len(truth))
}

// R2 is the coefficient of determination. It is not finite when truth is
// empty or constant.
func R2(truth, pred []float64) float64 {
	if len(truth) == 0 {
		return math.NaN()
	}
	return stat.RSquaredFrom(pred, truth, nil)
}
