// Package inference turns one user-supplied car description into a price
// using the fitted column transform and regressor produced by training.
package inference

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/mat"

	"car-price-estimator/models"
	"car-price-estimator/preprocess"
	"car-price-estimator/services"
	"car-price-estimator/storage"
)

// Predictor is the fitted regressor as seen by the estimator.
type Predictor interface {
	Predict(X mat.Matrix) ([]float64, error)
}

// Estimator holds the read-only artifacts loaded at startup. It is safe for
// concurrent use.
type Estimator struct {
	transform *preprocess.ColumnTransform
	model     Predictor
	features  services.FeatureConfig
}

// NewEstimator wires a fitted transform and model. features must be the
// configuration the transform was fitted with.
func NewEstimator(transform *preprocess.ColumnTransform, model Predictor, features services.FeatureConfig) (*Estimator, error) {
	if transform == nil || !transform.Fitted() {
		return nil, fmt.Errorf("inference: %w", preprocess.ErrNotFitted)
	}
	if model == nil {
		return nil, errors.New("inference: nil model")
	}
	return &Estimator{transform: transform, model: model, features: features}, nil
}

// Load reads both artifacts from disk.
func Load(preprocessorPath, modelPath string) (*Estimator, error) {
	pre, err := storage.LoadPreprocessor(preprocessorPath)
	if err != nil {
		return nil, err
	}
	model, err := storage.LoadModel(modelPath)
	if err != nil {
		return nil, err
	}
	if w := pre.Transform.Width(); w != model.NFeatures {
		return nil, fmt.Errorf("inference: preprocessor emits %d features but model expects %d: %w",
			w, model.NFeatures, preprocess.ErrSchemaMismatch)
	}
	return NewEstimator(pre.Transform, model, pre.Features)
}

// Features returns the derivation settings in use.
func (e *Estimator) Features() services.FeatureConfig {
	return e.features
}

// Width is the number of model input columns.
func (e *Estimator) Width() int {
	return e.transform.Width()
}

// Assemble normalises the user input and derives power_cat and kms_years.
// The emission label is taken as supplied.
func (e *Estimator) Assemble(in models.Listing) *models.Listing {
	l := in
	l.Make = services.NormaliseName(in.Make)
	l.Model = services.NormaliseName(in.Model)
	l.PowerCat = e.features.PowerCategory(in.Power)
	l.KmsYears = e.features.KmsPerYear(in.Kms, in.Year)
	return &l
}

// Estimate predicts the price of one listing. A schema error means the
// artifacts and this code disagree on the column layout.
func (e *Estimator) Estimate(in models.Listing) (float64, error) {
	row := services.FeatureRow(e.Assemble(in))

	X, err := e.transform.Transform([]preprocess.Row{row})
	if err != nil {
		return 0, fmt.Errorf("inference: transform: %w", err)
	}
	pred, err := e.model.Predict(X)
	if err != nil {
		return 0, fmt.Errorf("inference: predict: %w", err)
	}
	if len(pred) != 1 {
		return 0, fmt.Errorf("inference: model returned %d values for one row", len(pred))
	}
	return pred[0], nil
}

// FormatPrice renders a price with thousands separators and two decimals,
// e.g. "12,345.68 €". Exact halves round to even. Non-finite values render
// as "nan €" or "inf €".
func FormatPrice(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan €"
	case math.IsInf(v, 1):
		return "inf €"
	case math.IsInf(v, -1):
		return "-inf €"
	}

	s := decimal.NewFromFloat(v).RoundBank(2).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + b.String() + "." + frac + " €"
}
