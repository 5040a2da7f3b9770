package services

import (
	"sort"
	"strings"

	"car-price-estimator/models"
	"car-price-estimator/preprocess"
	"car-price-estimator/utils"
)

// FeatureConfig holds the constants feature derivation depends on. It is
// persisted with the preprocessor so serving derives features exactly as
// training did.
type FeatureConfig struct {
	// ReferenceYear is the dataset collection year used by kms_years.
	ReferenceYear int `yaml:"reference_year"`
	// PowerLowThreshold is the upper bound (exclusive) of the "Baja" band.
	PowerLowThreshold float64 `yaml:"power_low_threshold"`
}

// DefaultFeatureConfig returns the configuration of the deployed model.
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{ReferenceYear: 2024, PowerLowThreshold: 100}
}

// PowerCategory buckets engine power (CV) into four contiguous bands.
func (fc FeatureConfig) PowerCategory(power float64) string {
	switch {
	case power < fc.PowerLowThreshold:
		return models.PowerLow
	case power < 150:
		return models.PowerMedium
	case power < 200:
		return models.PowerHigh
	default:
		return models.PowerVeryHigh
	}
}

// KmsPerYear is mileage divided by vehicle age at the reference year. A
// vehicle registered in the reference year yields ±Inf or NaN; the value is
// passed on unchanged.
func (fc FeatureConfig) KmsPerYear(kms float64, year int) float64 {
	return kms / float64(fc.ReferenceYear-year)
}

// emissionRules maps a fuel type to its year-bracket rule.
var emissionRules = map[string]func(year int) string{
	models.FuelElectric: func(int) string { return models.LabelZero },
	models.FuelGasoline: func(year int) string {
		switch {
		case year < 2001:
			return models.LabelA
		case year < 2006:
			return models.LabelB
		default:
			return models.LabelC
		}
	},
	models.FuelDiesel: func(year int) string {
		switch {
		case year < 2006:
			return models.LabelA
		case year < 2015:
			return models.LabelB
		default:
			return models.LabelC
		}
	},
}

// EmissionLabel applies the regulatory-era rule for fuel. ok is false for
// fuels without a rule ("Otros" and anything unrecognised).
func EmissionLabel(fuel string, year int) (label string, ok bool) {
	rule, ok := emissionRules[fuel]
	if !ok {
		return "", false
	}
	return rule(year), true
}

// NormaliseName lowercases and trims make and model names.
func NormaliseName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FeatureDeriver computes power_cat, kms_years and emission_label.
type FeatureDeriver struct {
	cfg    FeatureConfig
	logger *utils.Logger
}

// NewFeatureDeriver creates a FeatureDeriver for the given configuration.
func NewFeatureDeriver(cfg FeatureConfig, logger *utils.Logger) *FeatureDeriver {
	return &FeatureDeriver{cfg: cfg, logger: logger}
}

// Derive fills the derived features of every listing in place.
func (d *FeatureDeriver) Derive(listings []*models.Listing) {
	for _, l := range listings {
		l.PowerCat = d.cfg.PowerCategory(l.Power)
		l.KmsYears = d.cfg.KmsPerYear(l.Kms, l.Year)
	}
	d.labelEmissions(listings)
}

// labelEmissions assigns rule-based labels first; listings whose fuel has
// no rule then take the modal label of the labeled ones.
func (d *FeatureDeriver) labelEmissions(listings []*models.Listing) {
	var labeled []string
	var pending []*models.Listing
	for _, l := range listings {
		if label, ok := EmissionLabel(l.Fuel, l.Year); ok {
			l.EmissionLabel = label
			labeled = append(labeled, label)
			continue
		}
		pending = append(pending, l)
	}
	if len(pending) == 0 {
		return
	}

	mode, ok := stringMode(labeled)
	if !ok {
		d.logger.Warn("[features] No labeled listings to infer emission label for %d listings", len(pending))
		return
	}
	for _, l := range pending {
		l.EmissionLabel = mode
	}
	d.logger.Debug("[features] Assigned modal emission label %q to %d listings", mode, len(pending))
}

// ColumnLayout is the column layout of the price model: six one-hot encoded
// categoricals, five log1p numerics and year passed through.
func ColumnLayout() preprocess.Layout {
	return preprocess.Layout{
		Categorical: []string{
			models.ColFuel, models.ColShift, models.ColMake,
			models.ColModel, models.ColPowerCat, models.ColEmissionLabel,
		},
		Log: []string{
			models.ColKms, models.ColPower, models.ColDealerZipCode,
			models.ColCylindersCapacity, models.ColKmsYears,
		},
		Passthrough: []string{models.ColYear},
	}
}

// FeatureRow assembles the model input columns of a listing.
func FeatureRow(l *models.Listing) preprocess.Row {
	return preprocess.Row{
		Categorical: map[string]string{
			models.ColFuel:          l.Fuel,
			models.ColShift:         l.Shift,
			models.ColMake:          l.Make,
			models.ColModel:         l.Model,
			models.ColPowerCat:      l.PowerCat,
			models.ColEmissionLabel: l.EmissionLabel,
		},
		Numeric: map[string]float64{
			models.ColKms:               l.Kms,
			models.ColPower:             l.Power,
			models.ColDealerZipCode:     float64(l.DealerZipCode),
			models.ColCylindersCapacity: l.CylindersCapacity,
			models.ColKmsYears:          l.KmsYears,
			models.ColYear:              float64(l.Year),
		},
	}
}

// stringMode returns the most frequent value; ties resolve to the smallest.
func stringMode(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	counts := make(map[string]int, 8)
	for _, v := range values {
		counts[v]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, true
}
