package garmin

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// flexFloat decodes a JSON number, a numeric string or null. Anything else
// decodes to NaN so the record is rejected during extraction instead of
// failing the whole response.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			*f = flexFloat(math.NaN())
			return nil
		}
		s = strings.TrimSpace(unquoted)
		if s == "" {
			*f = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = flexFloat(math.NaN())
		return nil
	}
	*f = flexFloat(v)
	return nil
}

type activityDTO struct {
	StartTimeLocal string `json:"startTimeLocal"`
	ActivityName   string `json:"activityName"`
	ActivityType   struct {
		TypeKey string `json:"typeKey"`
	} `json:"activityType"`
	Distance      flexFloat  `json:"distance"`
	Duration      flexFloat  `json:"duration"`
	AverageHR     flexFloat  `json:"averageHR"`
	MaxHR         flexFloat  `json:"maxHR"`
	Calories      flexFloat  `json:"calories"`
	ElevationGain flexFloat  `json:"elevationGain"`
	Weight        *flexFloat `json:"weight"`
}

// activityHeader salvages the identifying fields of a record that failed to
// decode.
type activityHeader struct {
	StartTimeLocal interface{} `json:"startTimeLocal"`
	ActivityName   interface{} `json:"activityName"`
}

type dailySummaryDTO struct {
	RestingHeartRate *flexFloat `json:"restingHeartRate"`
}

type weightRangeDTO struct {
	DateWeightList []struct {
		Date         *int64     `json:"date"`
		CalendarDate string     `json:"calendarDate"`
		Weight       *flexFloat `json:"weight"`
	} `json:"dateWeightList"`
}

type hrvDTO struct {
	HRVSummary *struct {
		LastNightAvg *flexFloat `json:"lastNightAvg"`
	} `json:"hrvSummary"`
}

type sleepDTO struct {
	DailySleepDTO *struct {
		SleepTimeSeconds *flexFloat `json:"sleepTimeSeconds"`
	} `json:"dailySleepDTO"`
}

type socialProfileDTO struct {
	DisplayName string `json:"displayName"`
}

func floatPtr(f *flexFloat) *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
