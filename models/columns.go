package models

import "strings"

// Dataset and feature column names.
const (
	ColMake              = "make"
	ColModel             = "model"
	ColVersion           = "version"
	ColPrice             = "price"
	ColYear              = "year"
	ColKms               = "kms"
	ColFuel              = "fuel"
	ColShift             = "shift"
	ColPower             = "power"
	ColCylindersCapacity = "cylinders_capacity"
	ColDealerZipCode     = "dealer_zip_code"
	ColEmissionLabel     = "emission_label"
	ColPowerCat          = "power_cat"
	ColKmsYears          = "kms_years"
)

// Fuel types.
const (
	FuelGasoline = "Gasolina"
	FuelDiesel   = "Diésel"
	FuelOther    = "Otros"
	FuelElectric = "Eléctrico"
)

// Transmission types.
const (
	ShiftManual    = "Manual"
	ShiftAutomatic = "Automatic"
)

// Emission labels.
const (
	LabelA    = "A"
	LabelB    = "B"
	LabelC    = "C"
	LabelZero = "ZERO"
)

// Power categories.
const (
	PowerLow      = "Baja"
	PowerMedium   = "Media"
	PowerHigh     = "Alta"
	PowerVeryHigh = "Muy Alta"
)

// RawColumns lists the dataset columns kept by the cleaner, in file order.
var RawColumns = []string{
	ColMake, ColModel, ColVersion, ColPrice, ColYear, ColKms, ColFuel,
	ColShift, ColPower, ColCylindersCapacity, ColDealerZipCode,
}

// IrrelevantColumns are dataset columns dropped before cleaning: free text,
// identifiers, geolocation and dealer metadata.
var IrrelevantColumns = []string{
	"doors", "color", "description", "vehicle_type", "currency", "dealer_name",
	"dealer_description", "dealer_address", "dealer_city", "dealer_country_code",
	"dealer_is_professional", "dealer_website", "dealer_registered_at", "date",
	"publish_date", "update_date", "location", "photos",
}

// Field returns the raw text of the named column, or "" for unknown names.
func (r *RawListing) Field(col string) string {
	switch col {
	case ColMake:
		return r.Make
	case ColModel:
		return r.Model
	case ColVersion:
		return r.Version
	case ColPrice:
		return r.Price
	case ColYear:
		return r.Year
	case ColKms:
		return r.Kms
	case ColFuel:
		return r.Fuel
	case ColShift:
		return r.Shift
	case ColPower:
		return r.Power
	case ColCylindersCapacity:
		return r.CylindersCapacity
	case ColDealerZipCode:
		return r.DealerZipCode
	}
	return ""
}

// SetField assigns the raw text of the named column. Unknown names are ignored.
func (r *RawListing) SetField(col, val string) {
	switch col {
	case ColMake:
		r.Make = val
	case ColModel:
		r.Model = val
	case ColVersion:
		r.Version = val
	case ColPrice:
		r.Price = val
	case ColYear:
		r.Year = val
	case ColKms:
		r.Kms = val
	case ColFuel:
		r.Fuel = val
	case ColShift:
		r.Shift = val
	case ColPower:
		r.Power = val
	case ColCylindersCapacity:
		r.CylindersCapacity = val
	case ColDealerZipCode:
		r.DealerZipCode = val
	}
}

// missingTokens are the spellings of a missing value in the dataset.
var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "NaN": {}, "nan": {}, "null": {}, "None": {},
}

// IsMissing reports whether raw text denotes a missing value.
func IsMissing(s string) bool {
	_, ok := missingTokens[strings.TrimSpace(s)]
	return ok
}
