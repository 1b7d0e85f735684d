package activity

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Values used when the source leaves an activity's name or kind empty.
const (
	DefaultName = "Activity" // also part of the dedup key
	DefaultKind = "n/a"
)

// timestampLayouts are accepted for the start timestamp, most specific first.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
}

// sheetsEpoch is day zero of spreadsheet serial dates.
var sheetsEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseTimestamp parses a stored or fetched start timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseCellDate parses a date cell read back from the store. Besides the
// timestamp layouts it accepts spreadsheet serial day numbers, which appear
// when a date cell was edited by hand.
func ParseCellDate(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("empty date cell")
	case time.Time:
		return t, nil
	case float64:
		return serialDate(t)
	case int:
		return serialDate(float64(t))
	case int64:
		return serialDate(float64(t))
	case string:
		if ts, err := ParseTimestamp(t); err == nil {
			return ts, nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return serialDate(f)
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q", t)
	default:
		return time.Time{}, fmt.Errorf("unsupported date cell type %T", v)
	}
}

func serialDate(days float64) (time.Time, error) {
	if math.IsNaN(days) || math.IsInf(days, 0) || days <= 0 {
		return time.Time{}, fmt.Errorf("invalid serial date %v", days)
	}
	whole := math.Floor(days)
	secs := math.Round((days - whole) * 86400)
	return sheetsEpoch.AddDate(0, 0, int(whole)).Add(time.Duration(secs) * time.Second), nil
}

// ExtractError reports an activity whose required fields could not be read.
type ExtractError struct {
	Field  string
	Reason string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Fields are the base row values derived from a RawActivity, before any
// same-day attachments are added.
type Fields struct {
	Row  Row
	Date time.Time // calendar date of the activity start
}

// Extract validates the raw activity and computes its derived metrics.
func Extract(raw RawActivity) (*Fields, error) {
	if raw.DecodeError != "" {
		return nil, &ExtractError{Field: "record", Reason: raw.DecodeError}
	}
	start, err := ParseTimestamp(raw.StartTimeLocal)
	if err != nil {
		return nil, &ExtractError{Field: "start time", Reason: err.Error()}
	}

	numeric := []struct {
		name  string
		value float64
	}{
		{"distance", raw.Distance},
		{"duration", raw.Duration},
		{"average heart rate", raw.AvgHR},
		{"max heart rate", raw.MaxHR},
		{"calories", raw.Calories},
		{"elevation gain", raw.ElevationGain},
	}
	for _, n := range numeric {
		if math.IsNaN(n.value) || math.IsInf(n.value, 0) {
			return nil, &ExtractError{Field: n.name, Reason: "not a number"}
		}
		if n.value < 0 {
			return nil, &ExtractError{Field: n.name, Reason: fmt.Sprintf("negative value %v", n.value)}
		}
	}

	kind := raw.Kind
	if kind == "" {
		kind = DefaultKind
	}

	pace, speed := PaceAndSpeed(raw.Distance, raw.Duration)

	return &Fields{
		Row: Row{
			StartTime:       raw.StartTimeLocal,
			Name:            raw.DisplayName(),
			Kind:            kind,
			DistanceKm:      DistanceKm(raw.Distance),
			DurationMinutes: DurationMinutes(raw.Duration),
			Pace:            pace,
			SpeedKmh:        speed,
			AvgHR:           raw.AvgHR,
			MaxHR:           raw.MaxHR,
			Calories:        raw.Calories,
			ElevationGain:   Round(raw.ElevationGain, 1),
		},
		Date: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
	}, nil
}
