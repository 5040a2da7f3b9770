package services

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"car-price-estimator/models"
	"car-price-estimator/utils"
)

const (
	// PriceFloor is the lowest credible asking price; cheaper ads are parts
	// or fake listings.
	PriceFloor = 2000.0
	// PowerCeiling is the highest plausible engine power in CV.
	PowerCeiling = 1020.0
)

// optFloat is a parsed numeric cell; ok is false when the cell is missing.
type optFloat struct {
	v  float64
	ok bool
}

// record is a parsed dataset row. It is comparable so it can key the
// duplicate index directly. An empty string is a missing text cell.
type record struct {
	make, model, version string
	fuel, shift          string
	price, year, kms     optFloat
	power, cylinders     optFloat
	zip                  optFloat
}

// Cleaner turns raw dataset rows into complete, imputed Listings.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean runs the full cleaning chain and returns the surviving listings
// together with the statistics used to impute them. The statistics are taken
// from the raw rows before anything is dropped.
func (c *Cleaner) Clean(raw []*models.RawListing) ([]*models.Listing, *models.FittedStats) {
	records := make([]record, 0, len(raw))
	for _, r := range raw {
		records = append(records, parseRecord(r))
	}
	stats := fitStats(records)

	kept := c.dropInvalidPrice(records)
	kept = dropDuplicates(kept)
	c.logger.Debug("[cleaner] %d listings after removing duplicates", len(kept))
	kept = c.dropPowerOutliers(kept)

	for i := range kept {
		imputeBasics(&kept[i], stats)
	}

	infos := make([]VersionInfo, len(kept))
	for i := range kept {
		r := &kept[i]
		infos[i] = ExtractVersionInfo(r.version)
		// Displacement always comes from the version text, in litres.
		r.cylinders = optFloat{v: infos[i].CylindersCapacity, ok: true}
		r.make = NormaliseName(r.make)
		r.model = NormaliseName(r.model)
	}

	stats.PowerMean = c.backfillPower(kept, infos)

	for i := range kept {
		if kept[i].fuel == "" {
			kept[i].fuel = stats.FuelMode
		}
	}

	now := time.Now()
	result := make([]*models.Listing, 0, len(kept))
	for _, r := range kept {
		result = append(result, r.listing(now))
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result, stats
}

// dropInvalidPrice removes rows priced below PriceFloor and rows without a
// usable price or year.
func (c *Cleaner) dropInvalidPrice(records []record) []record {
	out := records[:0:0]
	for _, r := range records {
		if !r.price.ok || r.price.v < PriceFloor || !r.year.ok {
			continue
		}
		out = append(out, r)
	}
	c.logger.Debug("[cleaner] Dropped %d listings below price floor or without price/year",
		len(records)-len(out))
	return out
}

// dropDuplicates removes exact duplicate rows, keeping the last occurrence
// and the original order of the survivors.
func dropDuplicates(records []record) []record {
	last := make(map[record]int, len(records))
	for i, r := range records {
		last[r] = i
	}
	out := make([]record, 0, len(last))
	for i, r := range records {
		if last[r] == i {
			out = append(out, r)
		}
	}
	return out
}

// dropPowerOutliers removes rows whose power exceeds PowerCeiling. Missing
// power is kept for backfilling.
func (c *Cleaner) dropPowerOutliers(records []record) []record {
	out := records[:0:0]
	for _, r := range records {
		if r.power.ok && r.power.v > PowerCeiling {
			continue
		}
		out = append(out, r)
	}
	c.logger.Debug("[cleaner] Dropped %d listings above power ceiling", len(records)-len(out))
	return out
}

func imputeBasics(r *record, stats *models.FittedStats) {
	if !r.kms.ok {
		r.kms = optFloat{v: stats.KmsMean, ok: true}
	}
	if r.shift == "" {
		r.shift = stats.ShiftMode
	}
	if !r.zip.ok {
		r.zip = optFloat{v: float64(stats.DealerZipCodeMode), ok: true}
	}
}

// backfillPower resolves power from the version text: missing power takes
// the CV figure, zero power then takes the kW figure, and whatever is still
// zero takes the rounded mean. The mean is returned for the fitted stats.
func (c *Cleaner) backfillPower(records []record, infos []VersionInfo) float64 {
	for i := range records {
		r := &records[i]
		if !r.power.ok {
			r.power = optFloat{v: infos[i].CV, ok: true}
		}
		if r.power.v == 0 {
			r.power.v = infos[i].KW
		}
	}

	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.power.v
	}
	var mean float64
	if len(values) > 0 {
		mean = math.RoundToEven(stat.Mean(values, nil))
	}

	filled := 0
	for i := range records {
		if records[i].power.v == 0 {
			records[i].power.v = mean
			filled++
		}
	}
	if filled > 0 {
		c.logger.Debug("[cleaner] Filled power of %d listings with mean %.0f", filled, mean)
	}
	return mean
}

// fitStats captures the imputation constants from the full raw table.
func fitStats(records []record) *models.FittedStats {
	var kms, zips []float64
	var shifts, fuels []string
	for _, r := range records {
		if r.kms.ok {
			kms = append(kms, r.kms.v)
		}
		if r.zip.ok {
			zips = append(zips, r.zip.v)
		}
		if r.shift != "" {
			shifts = append(shifts, r.shift)
		}
		if r.fuel != "" {
			fuels = append(fuels, r.fuel)
		}
	}

	stats := &models.FittedStats{}
	if len(kms) > 0 {
		stats.KmsMean = math.RoundToEven(stat.Mean(kms, nil))
	}
	if zip, ok := floatMode(zips); ok {
		stats.DealerZipCodeMode = int(zip)
	}
	stats.ShiftMode, _ = stringMode(shifts)
	stats.FuelMode, _ = stringMode(fuels)
	return stats
}

// floatMode returns the most frequent value; ties resolve to the smallest.
func floatMode(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	_, maxCount := stat.Mode(values, nil)

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	run := 0
	for i, v := range sorted {
		if i > 0 && v == sorted[i-1] {
			run++
		} else {
			run = 1
		}
		if float64(run) == maxCount {
			return v, true
		}
	}
	return sorted[0], true
}

func parseRecord(r *models.RawListing) record {
	return record{
		make:      text(r.Make),
		model:     text(r.Model),
		version:   text(r.Version),
		fuel:      text(r.Fuel),
		shift:     text(r.Shift),
		price:     number(r.Price),
		year:      number(r.Year),
		kms:       number(r.Kms),
		power:     number(r.Power),
		cylinders: number(r.CylindersCapacity),
		zip:       number(r.DealerZipCode),
	}
}

func text(s string) string {
	if models.IsMissing(s) {
		return ""
	}
	return strings.TrimSpace(s)
}

// number parses a numeric cell; unparseable text counts as missing.
func number(s string) optFloat {
	if models.IsMissing(s) {
		return optFloat{}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return optFloat{}
	}
	return optFloat{v: v, ok: true}
}

func (r record) listing(now time.Time) *models.Listing {
	return &models.Listing{
		Make:              r.make,
		Model:             r.model,
		Version:           r.version,
		Year:              int(math.Round(r.year.v)),
		Kms:               r.kms.v,
		Fuel:              r.fuel,
		Shift:             r.shift,
		Power:             r.power.v,
		CylindersCapacity: r.cylinders.v,
		DealerZipCode:     int(math.Round(r.zip.v)),
		Price:             r.price.v,
		CreatedAt:         now,
	}
}
