package inference

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"car-price-estimator/models"
	"car-price-estimator/preprocess"
	"car-price-estimator/regressor"
	"car-price-estimator/services"
	"car-price-estimator/storage"
	"car-price-estimator/utils"
)

func trainingSet() []*models.RawListing {
	cars := []struct{ make, model, version, fuel string }{
		{"Toyota", "Corolla", "1.6 VVT-i 132CV", models.FuelGasoline},
		{"Toyota", "Yaris", "1.0 VVT-i 72CV", models.FuelGasoline},
		{"SEAT", "Leon", "2.0 TDI 150CV", models.FuelDiesel},
		{"Renault", "Zoe", "R110", models.FuelElectric},
		{"Kia", "Niro", "1.6 GDi HEV", models.FuelOther},
	}
	var raw []*models.RawListing
	for i := 0; i < 100; i++ {
		c := cars[i%len(cars)]
		year := 2004 + i%19
		kms := 5000 + (i*104729)%250000
		raw = append(raw, &models.RawListing{
			Make: c.make, Model: c.model, Version: c.version, Fuel: c.fuel,
			Price:         fmt.Sprint(3000 + (year-2004)*1200 - kms/100 + (i%7)*300),
			Year:          fmt.Sprint(year),
			Kms:           fmt.Sprint(kms),
			Shift:         []string{models.ShiftManual, models.ShiftAutomatic}[i%2],
			DealerZipCode: fmt.Sprint(28000 + (i%9)*1000),
		})
	}
	return raw
}

func trainedEstimator(t *testing.T) (*Estimator, *services.TrainResult) {
	t.Helper()
	forest := regressor.NewRandomForest()
	forest.NEstimators = 10
	cfg := services.TrainConfig{Features: services.DefaultFeatureConfig(), Forest: *forest}

	res, err := services.NewTrainer(cfg, utils.NewNopLogger()).Train(trainingSet())
	require.NoError(t, err)

	est, err := NewEstimator(res.Transform, res.Model, res.Features)
	require.NoError(t, err)
	return est, res
}

func corolla() models.Listing {
	return models.Listing{
		Make: "Toyota", Model: "Corolla", Year: 2012, Fuel: models.FuelGasoline,
		Shift: models.ShiftManual, Power: 110, CylindersCapacity: 1.6,
		EmissionLabel: models.LabelC, Kms: 100000, DealerZipCode: 28800,
	}
}

func TestEstimateCorolla(t *testing.T) {
	est, res := trainedEstimator(t)

	price, err := est.Estimate(corolla())
	require.NoError(t, err)
	assert.False(t, math.IsNaN(price) || math.IsInf(price, 0))
	assert.GreaterOrEqual(t, price, 0.0)

	var minPrice, maxPrice = math.Inf(1), math.Inf(-1)
	for _, l := range res.Listings {
		minPrice = math.Min(minPrice, l.Price)
		maxPrice = math.Max(maxPrice, l.Price)
	}
	assert.GreaterOrEqual(t, price, minPrice)
	assert.LessOrEqual(t, price, maxPrice)
}

func TestEstimateIsDeterministic(t *testing.T) {
	est, _ := trainedEstimator(t)

	first, err := est.Estimate(corolla())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := est.Estimate(corolla())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEstimateUnseenCategories(t *testing.T) {
	est, _ := trainedEstimator(t)

	in := corolla()
	in.Make, in.Model = "Lada", "Niva"
	price, err := est.Estimate(in)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(price))
}

func TestEstimateReferenceYearVehicle(t *testing.T) {
	est, _ := trainedEstimator(t)

	in := corolla()
	in.Year = est.Features().ReferenceYear
	_, err := est.Estimate(in)
	assert.NoError(t, err)
}

func TestAssemble(t *testing.T) {
	est, _ := trainedEstimator(t)

	l := est.Assemble(corolla())
	assert.Equal(t, "toyota", l.Make)
	assert.Equal(t, "corolla", l.Model)
	assert.Equal(t, models.PowerMedium, l.PowerCat)
	assert.InDelta(t, 8333.33, l.KmsYears, 0.01)
	assert.Equal(t, models.LabelC, l.EmissionLabel)
}

func TestEstimateSchemaMismatch(t *testing.T) {
	ct := preprocess.New(preprocess.Layout{Categorical: []string{"make"}})
	require.NoError(t, ct.Fit([]preprocess.Row{{Categorical: map[string]string{"make": "seat"}}}))

	est, err := NewEstimator(ct, stubModel{}, services.DefaultFeatureConfig())
	require.NoError(t, err)

	_, err = est.Estimate(corolla())
	assert.ErrorIs(t, err, preprocess.ErrSchemaMismatch)
}

func TestNewEstimatorRequiresFittedTransform(t *testing.T) {
	_, err := NewEstimator(preprocess.New(services.ColumnLayout()), stubModel{}, services.DefaultFeatureConfig())
	assert.ErrorIs(t, err, preprocess.ErrNotFitted)
}

func TestLoadFromArtifacts(t *testing.T) {
	est, res := trainedEstimator(t)
	dir := t.TempDir()
	prePath := filepath.Join(dir, "preprocessor.gob.gz")
	modelPath := filepath.Join(dir, "model.gob.gz")

	require.NoError(t, storage.SavePreprocessor(prePath, &storage.PreprocessorArtifact{
		Transform: res.Transform, Features: res.Features, Stats: *res.Stats,
	}))
	require.NoError(t, storage.SaveModel(modelPath, res.Model))

	loaded, err := Load(prePath, modelPath)
	require.NoError(t, err)

	want, err := est.Estimate(corolla())
	require.NoError(t, err)
	got, err := loaded.Estimate(corolla())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{12345.678, "12,345.68 €"},
		{999.5, "999.50 €"},
		{1000, "1,000.00 €"},
		{1234567.891, "1,234,567.89 €"},
		{0, "0.00 €"},
		{0.125, "0.12 €"},
		{0.375, "0.38 €"},
		{-2500.4, "-2,500.40 €"},
		{math.NaN(), "nan €"},
		{math.Inf(1), "inf €"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPrice(tt.in), "FormatPrice(%v)", tt.in)
	}
}

type stubModel struct{}

func (stubModel) Predict(X mat.Matrix) ([]float64, error) {
	r, _ := X.Dims()
	return make([]float64, r), nil
}
