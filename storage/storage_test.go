package storage

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"car-price-estimator/models"
	"car-price-estimator/preprocess"
	"car-price-estimator/regressor"
	"car-price-estimator/services"
	"car-price-estimator/utils"
)

const datasetCSV = "\ufeffmake,model,version,price,fuel,year,kms,power,doors,shift,color,photos,cylinders_capacity,dealer_zip_code\n" +
	"SEAT,Ibiza,\"1.0 TSI, 70kW\",9000,Gasolina,2018,30000,,5,Manual,Rojo,3,,28800\n" +
	"Audi,A4,Avant,30000,Diésel,2019,NaN,150,5,Automatic,Negro,7,2.0,\n"

func TestReadRawProjectsColumns(t *testing.T) {
	listings, err := ReadRaw(strings.NewReader(datasetCSV), utils.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, models.RawListing{
		Make: "SEAT", Model: "Ibiza", Version: "1.0 TSI, 70kW", Price: "9000", Year: "2018",
		Kms: "30000", Fuel: "Gasolina", Shift: "Manual", Power: "", CylindersCapacity: "",
		DealerZipCode: "28800",
	}, *listings[0])
	assert.Equal(t, "NaN", listings[1].Kms)
	assert.Equal(t, "2.0", listings[1].CylindersCapacity)
	assert.True(t, models.IsMissing(listings[1].DealerZipCode))
}

func TestReadRawRequiresPriceAndYear(t *testing.T) {
	_, err := ReadRaw(strings.NewReader("make,model,year\nSEAT,Ibiza,2018\n"), utils.NewNopLogger())
	assert.ErrorContains(t, err, `"price"`)

	_, err = ReadRaw(strings.NewReader(""), utils.NewNopLogger())
	assert.Error(t, err)
}

func TestReadRawCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(datasetCSV), 0644))

	listings, err := ReadRawCSV(path, utils.NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, listings, 2)

	_, err = ReadRawCSV(filepath.Join(t.TempDir(), "missing.csv"), utils.NewNopLogger())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCSVWriterWritesCleanListings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "clean.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Write([]*models.Listing{{
		Make: "toyota", Model: "corolla", Version: "1.6", Price: 12000, Year: 2012, Kms: 100000,
		Fuel: models.FuelGasoline, Shift: models.ShiftManual, Power: 110, CylindersCapacity: 1.6,
		DealerZipCode: 28800, EmissionLabel: models.LabelC, PowerCat: models.PowerMedium,
		KmsYears: 100000.0 / 12,
	}}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, cleanHeader, records[0])
	assert.Equal(t, "toyota", records[1][0])
	assert.Equal(t, "12000", records[1][3])
	assert.Equal(t, "1.6", records[1][9])
	assert.Equal(t, "Media", records[1][12])
}

func fittedArtifacts(t *testing.T) (*PreprocessorArtifact, *regressor.RandomForest) {
	t.Helper()
	ct := preprocess.New(preprocess.Layout{Categorical: []string{"make"}, Log: []string{"kms"}})
	X, err := ct.FitTransform([]preprocess.Row{
		{Categorical: map[string]string{"make": "seat"}, Numeric: map[string]float64{"kms": 1000}},
		{Categorical: map[string]string{"make": "audi"}, Numeric: map[string]float64{"kms": 90000}},
	})
	require.NoError(t, err)

	rf := regressor.NewRandomForest()
	rf.NEstimators = 3
	require.NoError(t, rf.Fit(X, []float64{9000, 30000}))

	return &PreprocessorArtifact{
		Transform: ct,
		Features:  services.DefaultFeatureConfig(),
		Stats:     models.FittedStats{KmsMean: 55000, ShiftMode: models.ShiftManual, PowerMean: 120},
	}, rf
}

func TestArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pre, rf := fittedArtifacts(t)

	prePath := filepath.Join(dir, "artifacts", "preprocessor.gob.gz")
	modelPath := filepath.Join(dir, "artifacts", "model.gob.gz")
	require.NoError(t, SavePreprocessor(prePath, pre))
	require.NoError(t, SaveModel(modelPath, rf))

	loadedPre, err := LoadPreprocessor(prePath)
	require.NoError(t, err)
	loadedModel, err := LoadModel(modelPath)
	require.NoError(t, err)

	assert.Equal(t, pre.Features, loadedPre.Features)
	assert.Equal(t, pre.Stats, loadedPre.Stats)
	assert.Equal(t, pre.Transform.FeatureNames(), loadedPre.Transform.FeatureNames())

	X := mat.NewDense(1, 3, []float64{0, 1, math.Log1p(1000)})
	want, err := rf.Predict(X)
	require.NoError(t, err)
	got, err := loadedModel.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestArtifactKindMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob.gz")
	_, rf := fittedArtifacts(t)
	require.NoError(t, SaveModel(path, rf))

	_, err := LoadPreprocessor(path)
	assert.ErrorIs(t, err, ErrArtifactKind)
}

func TestArtifactRejectsUnfitted(t *testing.T) {
	dir := t.TempDir()
	err := SaveModel(filepath.Join(dir, "m"), regressor.NewRandomForest())
	assert.ErrorIs(t, err, regressor.ErrNotFitted)

	err = SavePreprocessor(filepath.Join(dir, "p"), &PreprocessorArtifact{Transform: preprocess.New(preprocess.Layout{})})
	assert.ErrorIs(t, err, preprocess.ErrNotFitted)

	_, err = LoadModel(filepath.Join(dir, "absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestManifestRoundTrip(t *testing.T) {
	pre, rf := fittedArtifacts(t)
	res := &services.TrainResult{
		Transform: pre.Transform,
		Model:     rf,
		Features:  pre.Features,
		Stats:     &pre.Stats,
		Metrics:   &regressor.Metrics{RMSE: 1500, MAE: 900, R2: 0.91, N: 20},
		RawRows:   100,
		TrainRows: 80,
		TestRows:  20,
		Duration:  1500 * time.Millisecond,
	}

	m := NewManifest(res, "data/data.csv", "artifacts/p.gob.gz", "artifacts/m.gob.gz")
	assert.Len(t, m.ModelID, 36)
	assert.Equal(t, 3, m.Features)
	assert.Equal(t, 3, m.Hyperparameters.NEstimators)

	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, WriteManifest(path, m))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "power_low_threshold: 100")
	assert.Contains(t, string(data), "kms_mean: 55000")

	loaded, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m.ModelID, loaded.ModelID)
	assert.True(t, m.CreatedAt.Equal(loaded.CreatedAt))
	assert.Equal(t, m.FittedStats, loaded.FittedStats)
	assert.Equal(t, *m.Metrics, *loaded.Metrics)
	assert.InDelta(t, 1.5, loaded.TrainingSeconds, 1e-9)
}

func TestInsertBatchQuery(t *testing.T) {
	batch := []*models.Listing{
		{Make: "seat", KmsYears: 5000},
		{Make: "audi", KmsYears: math.Inf(1)},
	}

	query, args := insertBatchQuery(batch)
	n := len(listingColumns)
	assert.Len(t, args, 2*n)
	assert.Contains(t, query, "INSERT INTO car_listings (make, model,")
	assert.Contains(t, query, "($1,$2,")
	assert.Contains(t, query, "$28)")
	assert.Equal(t, "seat", args[0])
	assert.Equal(t, "audi", args[n])
}

func TestNullableFloat(t *testing.T) {
	assert.True(t, nullableFloat(1.5).Valid)
	assert.False(t, nullableFloat(math.Inf(1)).Valid)
	assert.False(t, nullableFloat(math.NaN()).Valid)
}

func TestPostgresWriterIntegration(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	pw, err := NewPostgresWriter(dsn)
	require.NoError(t, err)
	defer pw.Close()

	listings := []*models.Listing{
		{Make: "toyota", Model: "corolla", Year: 2012, Kms: 100000, Fuel: models.FuelGasoline,
			Shift: models.ShiftManual, Power: 110, DealerZipCode: 28800, EmissionLabel: models.LabelC,
			PowerCat: models.PowerMedium, KmsYears: 8333.33, Price: 12000},
		{Make: "tesla", Model: "model 3", Year: 2024, Kms: 100, Fuel: models.FuelElectric,
			Shift: models.ShiftAutomatic, Power: 283, DealerZipCode: 8001, EmissionLabel: models.LabelZero,
			PowerCat: models.PowerVeryHigh, KmsYears: math.Inf(1), Price: 41000},
	}
	require.NoError(t, pw.Write(listings))

	got, err := pw.FetchAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "toyota", got[0].Make)
	assert.Equal(t, 12000.0, got[0].Price)
	assert.True(t, math.IsNaN(got[1].KmsYears))
}
