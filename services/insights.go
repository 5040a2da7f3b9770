package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"car-price-estimator/models"
	"car-price-estimator/utils"
)

// topMakesLimit bounds the make ranking in the report.
const topMakesLimit = 10

// InsightService computes and prints dataset statistics.
type InsightService struct {
	logger *utils.Logger
}

// NewInsightService creates an InsightService.
func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises cleaned listings: price statistics, the most expensive
// listing and counts per make and fuel.
func (s *InsightService) Generate(listings []*models.Listing) *models.DatasetReport {
	report := &models.DatasetReport{
		ListingsByFuel: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	prices := make([]float64, 0, len(listings))
	makes := make(map[string]int)
	report.MinPrice = listings[0].Price
	for _, l := range listings {
		prices = append(prices, l.Price)
		if l.Price < report.MinPrice {
			report.MinPrice = l.Price
		}
		if report.MostExpensive == nil || l.Price > report.MostExpensive.Price {
			report.MostExpensive = l
		}
		if l.Make != "" {
			makes[l.Make]++
		}
		if l.Fuel != "" {
			report.ListingsByFuel[l.Fuel]++
		}
	}

	report.AveragePrice = round2(stat.Mean(prices, nil))
	report.MinPrice = round2(report.MinPrice)
	report.MaxPrice = round2(report.MostExpensive.Price)
	report.TopMakes = rankCounts(makes, topMakesLimit)

	s.logger.Debug("[insights] Report over %d listings, %d makes", report.TotalListings, len(makes))
	return report
}

// Profile describes every raw column: how many cells are present, the share
// missing, and the number and share of distinct values among present cells.
func (s *InsightService) Profile(raw []*models.RawListing) []models.ColumnProfile {
	profiles := make([]models.ColumnProfile, 0, len(models.RawColumns))
	for _, col := range models.RawColumns {
		p := models.ColumnProfile{Name: col}
		distinct := make(map[string]struct{})
		for _, r := range raw {
			v := r.Field(col)
			if models.IsMissing(v) {
				continue
			}
			p.NonNull++
			distinct[strings.TrimSpace(v)] = struct{}{}
		}
		p.Unique = len(distinct)
		if n := len(raw); n > 0 {
			p.MissingPct = round2(100 * float64(n-p.NonNull) / float64(n))
			p.CardinalityPct = round2(100 * float64(p.Unique) / float64(n))
		}
		profiles = append(profiles, p)
	}
	return profiles
}

func (s *InsightService) Print(r *models.DatasetReport) {
	s.Fprint(os.Stdout, r)
}

// Fprint writes the report as a console table to w.
func (s *InsightService) Fprint(w io.Writer, r *models.DatasetReport) {
	sep := strings.Repeat("═", 60)
	thin := strings.Repeat("─", 60)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🚗 USED CAR DATASET REPORT\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.TotalListings > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m%.2f €\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m%.2f €\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m%.2f €\033[0m\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if l := r.MostExpensive; l != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(strings.TrimSpace(l.Make+" "+l.Model+" "+l.Version), 56))
		fmt.Fprintf(w, "  Year  : %d   Kms : %.0f\n", l.Year, l.Kms)
		fmt.Fprintf(w, "  Price : \033[1;31m%.2f €\033[0m\n", l.Price)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Top Makes\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopMakes) == 0 {
		fmt.Fprintf(w, "  No make data\n")
	}
	for i, mc := range r.TopMakes {
		fmt.Fprintf(w, "  \033[1m%2d.\033[0m %-30s %d\n", i+1, truncate(mc.Value, 28), mc.Count)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings by Fuel\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, fc := range rankCounts(r.ListingsByFuel, 0) {
		fmt.Fprintf(w, "  %-30s %d\n", fc.Value, fc.Count)
	}

	if len(r.Columns) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "\033[1;33m  Column Profile\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %-20s %9s %9s %9s %9s\n", "column", "non-null", "missing%", "unique", "card%")
		for _, p := range r.Columns {
			fmt.Fprintf(w, "  %-20s %9d %9.2f %9d %9.2f\n",
				p.Name, p.NonNull, p.MissingPct, p.Unique, p.CardinalityPct)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// rankCounts orders counts descending, ties by value. limit <= 0 keeps all.
func rankCounts(counts map[string]int, limit int) []models.CategoryCount {
	ranked := make([]models.CategoryCount, 0, len(counts))
	for v, n := range counts {
		ranked = append(ranked, models.CategoryCount{Value: v, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Value < ranked[j].Value
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
