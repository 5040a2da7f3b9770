package storage

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"car-price-estimator/models"
)

// PostgresWriter persists cleaned listings to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS car_listings (
			id                 SERIAL PRIMARY KEY,
			make               TEXT             NOT NULL,
			model              TEXT             NOT NULL,
			version            TEXT             NOT NULL DEFAULT '',
			year               INTEGER          NOT NULL,
			kms                DOUBLE PRECISION NOT NULL,
			fuel               TEXT             NOT NULL,
			shift              TEXT             NOT NULL,
			power              DOUBLE PRECISION NOT NULL,
			cylinders_capacity DOUBLE PRECISION NOT NULL DEFAULT 0,
			dealer_zip_code    INTEGER          NOT NULL,
			emission_label     VARCHAR(8)       NOT NULL,
			power_cat          VARCHAR(16)      NOT NULL,
			kms_years          DOUBLE PRECISION,
			price              NUMERIC(12,2)    NOT NULL,
			created_at         TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_car_listings_price      ON car_listings(price);
		CREATE INDEX IF NOT EXISTS idx_car_listings_make_model ON car_listings(make, model);
		CREATE INDEX IF NOT EXISTS idx_car_listings_year       ON car_listings(year);
	`)
	return err
}

// Write replaces the stored dataset with listings in one transaction.
func (pw *PostgresWriter) Write(listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec("DELETE FROM car_listings"); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}

	const batchSize = 200
	for i := 0; i < len(listings); i += batchSize {
		end := min(i+batchSize, len(listings))
		query, args := insertBatchQuery(listings[i:end])
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("postgres: insert batch at %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// listingColumns is the insert column order.
var listingColumns = []string{
	"make", "model", "version", "year", "kms", "fuel", "shift", "power",
	"cylinders_capacity", "dealer_zip_code", "emission_label", "power_cat",
	"kms_years", "price",
}

func insertBatchQuery(batch []*models.Listing) (string, []any) {
	n := len(listingColumns)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*n)

	for idx, l := range batch {
		placeholders := make([]string, n)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", idx*n+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			l.Make, l.Model, l.Version, l.Year, l.Kms, l.Fuel, l.Shift, l.Power,
			l.CylindersCapacity, l.DealerZipCode, l.EmissionLabel, l.PowerCat,
			nullableFloat(l.KmsYears), l.Price)
	}

	query := fmt.Sprintf("INSERT INTO car_listings (%s) VALUES %s",
		strings.Join(listingColumns, ", "), strings.Join(valueStrings, ","))
	return query, valueArgs
}

// nullableFloat stores non-finite kms_years as NULL; they read back as NaN.
func nullableFloat(f float64) sql.NullFloat64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchAll retrieves all stored listings, used by the dataset report.
func (pw *PostgresWriter) FetchAll() ([]*models.Listing, error) {
	rows, err := pw.db.Query(`
		SELECT id, make, model, version, year, kms, fuel, shift, power,
		       cylinders_capacity, dealer_zip_code, emission_label, power_cat,
		       kms_years, price, created_at
		FROM car_listings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		var kmsYears sql.NullFloat64
		if err := rows.Scan(
			&l.ID, &l.Make, &l.Model, &l.Version, &l.Year, &l.Kms, &l.Fuel, &l.Shift,
			&l.Power, &l.CylindersCapacity, &l.DealerZipCode, &l.EmissionLabel,
			&l.PowerCat, &kmsYears, &l.Price, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		l.KmsYears = math.NaN()
		if kmsYears.Valid {
			l.KmsYears = kmsYears.Float64
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
