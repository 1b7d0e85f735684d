package activity

import (
	"fmt"
	"math"
)

// ZeroPace is the pace written when distance or duration is missing.
const ZeroPace = "0:00"

// GramsThreshold separates gram readings from kilogram readings. Values above
// it are treated as grams. The boundary is ambiguous for a reading of exactly
// 1000 and is kept as the source scripts behaved.
const GramsThreshold = 1000

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// DistanceKm converts meters to kilometers rounded to 2 decimals.
func DistanceKm(meters float64) float64 {
	return Round(meters/1000, 2)
}

// DurationMinutes converts seconds to minutes rounded to 2 decimals.
func DurationMinutes(seconds float64) float64 {
	if seconds == 0 {
		return 0
	}
	return Round(seconds/60, 2)
}

// PaceAndSpeed returns pace as "M:SS" per kilometer and speed in km/h.
// Either input being zero yields ("0:00", 0).
func PaceAndSpeed(distanceMeters, durationSeconds float64) (string, float64) {
	if distanceMeters <= 0 || durationSeconds <= 0 {
		return ZeroPace, 0
	}

	distanceKm := distanceMeters / 1000
	speed := Round(distanceKm/(durationSeconds/3600), 2)

	paceDecimal := (durationSeconds / 60) / distanceKm
	paceMin := int(paceDecimal)
	paceSec := int((paceDecimal - float64(paceMin)) * 60)

	return fmt.Sprintf("%d:%02d", paceMin, paceSec), speed
}

// NormalizeWeight converts a raw body-weight reading to kilograms.
func NormalizeWeight(raw float64) float64 {
	if raw > GramsThreshold {
		return Round(raw/1000, 2)
	}
	return Round(raw, 2)
}
