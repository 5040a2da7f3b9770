package models

import "time"

// RawListing holds one unprocessed row of the listings dataset as read from
// CSV. Every field keeps its source text; an empty string means missing.
type RawListing struct {
	Make              string
	Model             string
	Version           string
	Price             string
	Year              string
	Kms               string
	Fuel              string
	Shift             string
	Power             string
	CylindersCapacity string
	DealerZipCode     string
}

// Listing is the cleaned, validated record used for training and inference.
// PowerCat, KmsYears and EmissionLabel are derived features.
type Listing struct {
	ID                int64
	Make              string
	Model             string
	Version           string
	Year              int
	Kms               float64
	Fuel              string
	Shift             string
	Power             float64
	CylindersCapacity float64
	DealerZipCode     int
	EmissionLabel     string
	PowerCat          string
	KmsYears          float64
	Price             float64
	CreatedAt         time.Time
}

// FittedStats are the imputation constants captured once from the training
// distribution and frozen with the deployed model.
type FittedStats struct {
	KmsMean           float64 `yaml:"kms_mean"`
	ShiftMode         string  `yaml:"shift_mode"`
	DealerZipCodeMode int     `yaml:"dealer_zip_code_mode"`
	FuelMode          string  `yaml:"fuel_mode"`
	PowerMean         float64 `yaml:"power_mean"`
}

// DatasetReport holds the computed analytics over the cleaned dataset.
type DatasetReport struct {
	TotalListings  int
	AveragePrice   float64
	MinPrice       float64
	MaxPrice       float64
	MostExpensive  *Listing
	TopMakes       []CategoryCount
	ListingsByFuel map[string]int
	Columns        []ColumnProfile
}

// CategoryCount is a value with its number of occurrences.
type CategoryCount struct {
	Value string
	Count int
}

// ColumnProfile summarises one raw column: completeness and cardinality.
type ColumnProfile struct {
	Name           string
	NonNull        int
	MissingPct     float64
	Unique         int
	CardinalityPct float64
}
