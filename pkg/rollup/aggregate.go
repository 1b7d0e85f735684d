package rollup

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/fitglue/ledger/pkg/domain/activity"
	"github.com/fitglue/ledger/pkg/domain/category"
)

// Mode selects the summary columns and the order of rows within a year.
type Mode string

const (
	// ModeFull sums distance, calories and elevation and averages weight.
	// Rows within a year are ordered by family label.
	ModeFull Mode = "full"
	// ModeDistance sums distance and elevation only. Rows within a year are
	// ordered by total distance, largest first.
	ModeDistance Mode = "distance"
)

// ParseMode validates a configured summary mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFull, ModeDistance:
		return m, nil
	default:
		return "", fmt.Errorf("unknown summary mode %q", s)
	}
}

// YearCategorySummary is one summary row.
type YearCategorySummary struct {
	Year       int
	Category   string
	DistanceKm float64
	Elevation  float64
	Calories   float64 // full mode only
	AvgWeight  float64 // full mode only; mean of positive samples, 0 if none
}

// ColumnHeaders returns the summary table header for mode.
func ColumnHeaders(mode Mode) []interface{} {
	if mode == ModeDistance {
		return []interface{}{"Year", "Category", "Total km", "Elevation (m)"}
	}
	return []interface{}{"Year", "Category", "Total km", "Total kcal", "Elevation (m)", "Avg Weight (kg)"}
}

// Cells renders the row in the column order of mode.
func (s YearCategorySummary) Cells(mode Mode) []interface{} {
	if mode == ModeDistance {
		return []interface{}{s.Year, s.Category, s.DistanceKm, s.Elevation}
	}
	return []interface{}{s.Year, s.Category, s.DistanceKm, s.Calories, s.Elevation, s.AvgWeight}
}

// Stats counts the input rows of an aggregation.
type Stats struct {
	SourceRows  int
	DroppedRows int
}

type columns struct {
	date, kind, distance, elevation, calories, weight int
}

func locateColumns(header []interface{}) columns {
	index := make(map[string]int, len(header))
	for i, cell := range header {
		if s, ok := cell.(string); ok {
			if _, dup := index[s]; !dup {
				index[s] = i
			}
		}
	}
	find := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		return activity.ColumnIndex(name)
	}
	return columns{
		date:      find(activity.ColumnDate),
		kind:      find(activity.ColumnType),
		distance:  find(activity.ColumnDistance),
		elevation: find(activity.ColumnElevationGain),
		calories:  find(activity.ColumnCalories),
		weight:    find(activity.ColumnWeight),
	}
}

func cell(row []interface{}, idx int) interface{} {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

// number coerces a cell to a float, treating anything unparseable as 0.
func number(v interface{}) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// Aggregate groups the activity table rows (header first) by year and family
// and reduces them according to mode. Rows whose date cannot be parsed are
// dropped. The result is sorted by year descending, then per mode.
func Aggregate(rows [][]interface{}, mapping *category.Mapping, mode Mode) ([]YearCategorySummary, Stats) {
	var stats Stats
	if len(rows) < 2 {
		return nil, stats
	}
	cols := locateColumns(rows[0])

	type groupKey struct {
		year     int
		category string
	}
	type accumulator struct {
		YearCategorySummary
		weightSum   float64
		weightCount int
	}
	groups := make(map[groupKey]*accumulator)

	for _, row := range rows[1:] {
		stats.SourceRows++
		date, err := activity.ParseCellDate(cell(row, cols.date))
		if err != nil {
			stats.DroppedRows++
			continue
		}

		key := groupKey{year: date.Year(), category: mapping.Categorize(text(cell(row, cols.kind)))}
		g, ok := groups[key]
		if !ok {
			g = &accumulator{YearCategorySummary: YearCategorySummary{Year: key.year, Category: key.category}}
			groups[key] = g
		}

		g.DistanceKm += number(cell(row, cols.distance))
		g.Elevation += number(cell(row, cols.elevation))
		if mode == ModeFull {
			g.Calories += number(cell(row, cols.calories))
			if w := number(cell(row, cols.weight)); w > 0 {
				g.weightSum += w
				g.weightCount++
			}
		}
	}

	out := make([]YearCategorySummary, 0, len(groups))
	for _, g := range groups {
		g.DistanceKm = activity.Round(g.DistanceKm, 2)
		g.Elevation = activity.Round(g.Elevation, 2)
		g.Calories = activity.Round(g.Calories, 2)
		if g.weightCount > 0 {
			g.AvgWeight = activity.Round(g.weightSum/float64(g.weightCount), 2)
		}
		out = append(out, g.YearCategorySummary)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if mode == ModeDistance && a.DistanceKm != b.DistanceKm {
			return a.DistanceKm > b.DistanceKm
		}
		return a.Category < b.Category
	})
	return out, stats
}
