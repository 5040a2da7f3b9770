package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"car-price-estimator/models"
)

// cleanHeader is the column order of the cleaned dataset export.
var cleanHeader = []string{
	models.ColMake, models.ColModel, models.ColVersion, models.ColPrice, models.ColYear,
	models.ColKms, models.ColFuel, models.ColShift, models.ColPower, models.ColCylindersCapacity,
	models.ColDealerZipCode, models.ColEmissionLabel, models.ColPowerCat, models.ColKmsYears,
}

// CSVWriter writes cleaned listings with their derived features to a CSV
// file. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(cleanHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// Write appends listings to the file.
func (c *CSVWriter) Write(listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		row := []string{
			l.Make,
			l.Model,
			l.Version,
			formatFloat(l.Price),
			strconv.Itoa(l.Year),
			formatFloat(l.Kms),
			l.Fuel,
			l.Shift,
			formatFloat(l.Power),
			formatFloat(l.CylindersCapacity),
			strconv.Itoa(l.DealerZipCode),
			l.EmissionLabel,
			l.PowerCat,
			formatFloat(l.KmsYears),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
