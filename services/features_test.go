package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"car-price-estimator/models"
)

func TestPowerCategoryBands(t *testing.T) {
	fc := DefaultFeatureConfig()

	tests := []struct {
		power float64
		want  string
	}{
		{0, models.PowerLow},
		{99.9, models.PowerLow},
		{100, models.PowerMedium},
		{149, models.PowerMedium},
		{150, models.PowerHigh},
		{199.99, models.PowerHigh},
		{200, models.PowerVeryHigh},
		{1000, models.PowerVeryHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, fc.PowerCategory(tt.power), "power %v", tt.power)
	}
}

func TestPowerCategoryThresholdIsConfigurable(t *testing.T) {
	fc := FeatureConfig{ReferenceYear: 2024, PowerLowThreshold: 90}
	assert.Equal(t, models.PowerMedium, fc.PowerCategory(95))
	assert.Equal(t, models.PowerLow, DefaultFeatureConfig().PowerCategory(95))
}

func TestKmsPerYear(t *testing.T) {
	fc := DefaultFeatureConfig()

	assert.InDelta(t, 8333.33, fc.KmsPerYear(100000, 2012), 0.01)
	assert.True(t, math.IsInf(fc.KmsPerYear(5000, 2024), 1))
	assert.True(t, math.IsNaN(fc.KmsPerYear(0, 2024)))
}

func TestEmissionLabel(t *testing.T) {
	tests := []struct {
		fuel string
		year int
		want string
		ok   bool
	}{
		{models.FuelGasoline, 2000, models.LabelA, true},
		{models.FuelGasoline, 2001, models.LabelB, true},
		{models.FuelGasoline, 2006, models.LabelC, true},
		{models.FuelDiesel, 2005, models.LabelA, true},
		{models.FuelDiesel, 2006, models.LabelB, true},
		{models.FuelDiesel, 2015, models.LabelC, true},
		{models.FuelOther, 2015, "", false},
		{"Híbrido", 2015, "", false},
	}

	for _, tt := range tests {
		got, ok := EmissionLabel(tt.fuel, tt.year)
		assert.Equal(t, tt.want, got, "%s %d", tt.fuel, tt.year)
		assert.Equal(t, tt.ok, ok)
	}
}

func TestElectricIsAlwaysZero(t *testing.T) {
	for year := 1960; year <= 2025; year++ {
		got, ok := EmissionLabel(models.FuelElectric, year)
		require.True(t, ok)
		require.Equal(t, models.LabelZero, got)
	}
}

func TestDeriveFillsFeatures(t *testing.T) {
	d := NewFeatureDeriver(DefaultFeatureConfig(), newTestLogger())
	listings := []*models.Listing{
		{Fuel: models.FuelGasoline, Year: 2012, Kms: 100000, Power: 110},
		{Fuel: models.FuelDiesel, Year: 2010, Kms: 140000, Power: 90},
		{Fuel: models.FuelDiesel, Year: 2012, Kms: 50000, Power: 210},
		{Fuel: models.FuelOther, Year: 2020, Kms: 10000, Power: 160},
		{Fuel: models.FuelElectric, Year: 2022, Kms: 4000, Power: 150},
	}

	d.Derive(listings)

	assert.Equal(t, models.PowerMedium, listings[0].PowerCat)
	assert.InDelta(t, 8333.33, listings[0].KmsYears, 0.01)
	assert.Equal(t, models.LabelC, listings[0].EmissionLabel)

	assert.Equal(t, models.PowerLow, listings[1].PowerCat)
	assert.Equal(t, models.LabelB, listings[1].EmissionLabel)

	assert.Equal(t, models.PowerVeryHigh, listings[2].PowerCat)
	assert.Equal(t, models.LabelB, listings[2].EmissionLabel)

	assert.Equal(t, models.PowerHigh, listings[3].PowerCat)
	assert.Equal(t, models.LabelB, listings[3].EmissionLabel, "Otros takes the modal label")

	assert.Equal(t, models.LabelZero, listings[4].EmissionLabel)
	assert.Equal(t, 2000.0, listings[4].KmsYears)
}

func TestDeriveWithoutLabeledListings(t *testing.T) {
	d := NewFeatureDeriver(DefaultFeatureConfig(), newTestLogger())
	listings := []*models.Listing{{Fuel: models.FuelOther, Year: 2020, Kms: 1, Power: 100}}

	d.Derive(listings)
	assert.Empty(t, listings[0].EmissionLabel)
}

func TestFeatureRowMatchesColumnLayout(t *testing.T) {
	layout := ColumnLayout()
	row := FeatureRow(&models.Listing{Make: "toyota", Year: 2012, DealerZipCode: 28800})

	assert.Len(t, row.Categorical, len(layout.Categorical))
	assert.Len(t, row.Numeric, len(layout.Log)+len(layout.Passthrough))
	for _, col := range layout.Categorical {
		assert.Contains(t, row.Categorical, col)
	}
	assert.Equal(t, 28800.0, row.Numeric[models.ColDealerZipCode])
	assert.Equal(t, 2012.0, row.Numeric[models.ColYear])
}
