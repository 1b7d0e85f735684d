// Package activity holds the workout record types persisted by the ledger and
// the derived-metric arithmetic shared by the ingestion engine.
package activity

import "strconv"

// RawActivity is one workout as fetched from the activity source.
type RawActivity struct {
	StartTimeLocal string
	Name           string
	Kind           string  // source category key, e.g. "trail_running"
	Distance       float64 // meters
	Duration       float64 // seconds
	AvgHR          float64
	MaxHR          float64
	Calories       float64
	ElevationGain  float64 // meters

	// Weight is a body-composition reading attached to the activity itself,
	// in grams or kilograms. Nil when the source did not attach one.
	Weight *float64

	// DecodeError is set when the source record could not be decoded. Extract
	// rejects such activities.
	DecodeError string
}

// DisplayName returns the activity name, or DefaultName when the source sent none.
func (r RawActivity) DisplayName() string {
	if r.Name == "" {
		return DefaultName
	}
	return r.Name
}

// Key returns the dedup key of the activity.
func (r RawActivity) Key() string {
	return Key(r.StartTimeLocal, r.DisplayName())
}

// Key builds the dedup key from the stored start timestamp and name columns.
// Plain concatenation: two distinct pairs can produce the same key.
func Key(startTime, name string) string {
	return startTime + name
}

// Column headers of the activity table, in storage order.
const (
	ColumnDate          = "Date"
	ColumnName          = "Name"
	ColumnType          = "Type"
	ColumnDistance      = "Distance (km)"
	ColumnDuration      = "Duration (min)"
	ColumnPace          = "Pace (min/km)"
	ColumnSpeed         = "Speed (km/h)"
	ColumnAvgHR         = "Avg HR"
	ColumnMaxHR         = "Max HR"
	ColumnCalories      = "Calories"
	ColumnElevationGain = "Elevation Gain (m)"
	ColumnWeight        = "Weight (kg)"
	ColumnRestingHR     = "Resting HR"
	ColumnHRV           = "HRV"
	ColumnSleep         = "Sleep (h)"
)

// Columns is the header row of the activity table.
var Columns = []string{
	ColumnDate,
	ColumnName,
	ColumnType,
	ColumnDistance,
	ColumnDuration,
	ColumnPace,
	ColumnSpeed,
	ColumnAvgHR,
	ColumnMaxHR,
	ColumnCalories,
	ColumnElevationGain,
	ColumnWeight,
	ColumnRestingHR,
	ColumnHRV,
	ColumnSleep,
}

// ColumnIndex returns the default position of a column, or -1.
func ColumnIndex(name string) int {
	for i, c := range Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HeaderCells returns the header row as store cells.
func HeaderCells() []interface{} {
	cells := make([]interface{}, len(Columns))
	for i, c := range Columns {
		cells[i] = c
	}
	return cells
}

// NotAvailable is written to the HRV column when no reading exists. It is
// distinct from a genuine zero reading.
const NotAvailable = "n/a"

// HRV is a heart-rate variability reading that may be absent.
type HRV struct {
	Value     float64
	Available bool
}

// Cell renders the reading for the store.
func (h HRV) Cell() interface{} {
	if !h.Available {
		return NotAvailable
	}
	return h.Value
}

func (h HRV) String() string {
	if !h.Available {
		return NotAvailable
	}
	return strconv.FormatFloat(h.Value, 'f', -1, 64)
}

// Row is one persisted, enriched activity.
type Row struct {
	StartTime       string
	Name            string
	Kind            string
	DistanceKm      float64
	DurationMinutes float64
	Pace            string
	SpeedKmh        float64
	AvgHR           float64
	MaxHR           float64
	Calories        float64
	ElevationGain   float64
	WeightKg        float64
	RestingHR       float64
	HRV             HRV
	SleepHours      float64
}

// Key returns the dedup key of the row.
func (r Row) Key() string {
	return Key(r.StartTime, r.Name)
}

// Cells renders the row in Columns order.
func (r Row) Cells() []interface{} {
	return []interface{}{
		r.StartTime,
		r.Name,
		r.Kind,
		r.DistanceKm,
		r.DurationMinutes,
		r.Pace,
		r.SpeedKmh,
		r.AvgHR,
		r.MaxHR,
		r.Calories,
		r.ElevationGain,
		r.WeightKg,
		r.RestingHR,
		r.HRV.Cell(),
		r.SleepHours,
	}
}
