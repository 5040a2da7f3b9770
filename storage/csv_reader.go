package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"car-price-estimator/models"
	"car-price-estimator/utils"
)

// requiredColumns must be present in the dataset header.
var requiredColumns = []string{models.ColPrice, models.ColYear}

// ReadRawCSV reads the listings dataset at path. Columns are matched by
// header name; only the modelled columns are kept.
func ReadRawCSV(path string, logger *utils.Logger) ([]*models.RawListing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	listings, err := ReadRaw(f, logger)
	if err != nil {
		return nil, fmt.Errorf("csv: %s: %w", path, err)
	}
	logger.Info("[csv] Read %d listings from %s", len(listings), path)
	return listings, nil
}

// ReadRaw parses a listings CSV stream with a header row.
func ReadRaw(r io.Reader, logger *utils.Logger) ([]*models.RawListing, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	positions := make(map[string]int, len(models.RawColumns))
	var dropped []string
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if slices.Contains(models.RawColumns, name) {
			positions[name] = i
			continue
		}
		if name != "" {
			dropped = append(dropped, name)
		}
	}
	for _, col := range requiredColumns {
		if _, ok := positions[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}
	for _, col := range models.RawColumns {
		if _, ok := positions[col]; !ok {
			logger.Warn("[csv] Column %q not found; treating it as missing", col)
		}
	}
	if len(dropped) > 0 {
		logger.Debug("[csv] Dropping %d columns: %s", len(dropped), strings.Join(dropped, ", "))
	}

	var listings []*models.RawListing
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		l := &models.RawListing{}
		for col, i := range positions {
			if i < len(record) {
				l.SetField(col, record[i])
			}
		}
		listings = append(listings, l)
	}
	return listings, nil
}
