// Package category maps source activity kinds onto a small, fixed set of
// activity families used by the yearly rollup.
package category

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
	"golang.org/x/text/cases"
)

const (
	Cycling       = "Cycling"
	Running       = "Running"
	Swimming      = "Swimming"
	HikingWalking = "Hiking/Walking"
	FitnessIndoor = "Fitness/Indoor"
	Skiing        = "Skiing"
	Other         = "Other"
)

var defaultFamilies = map[string][]string{
	Cycling: {
		"cycling", "road_biking", "mountain_biking", "gravel_cycling", "indoor_cycling",
		"virtual_ride", "cyclocross", "track_cycling", "recumbent_cycling", "bmx",
		"e_bike_fitness", "e_bike_mountain",
	},
	Running: {
		"running", "trail_running", "treadmill_running", "track_running", "street_running",
		"indoor_running", "virtual_run", "ultra_run", "obstacle_run",
	},
	Swimming: {
		"swimming", "lap_swimming", "open_water_swimming",
	},
	HikingWalking: {
		"hiking", "walking", "casual_walking", "speed_walking", "mountaineering",
	},
	FitnessIndoor: {
		"strength_training", "indoor_cardio", "fitness_equipment", "elliptical",
		"stair_climbing", "indoor_rowing", "yoga", "pilates", "hiit", "breathwork",
		"floor_climbing",
	},
	Skiing: {
		"resort_skiing_snowboarding_ws", "resort_skiing", "resort_snowboarding",
		"backcountry_skiing", "cross_country_skiing_ws", "skate_skiing_ws", "skiing",
		"snowboarding",
	},
}

// Mapping assigns every kind string exactly one family label. It is safe for
// concurrent use and never changes after construction.
type Mapping struct {
	byKind   map[string]string
	families []string
}

// NewMapping builds a mapping from family label to the kinds it contains.
// A kind listed under two families is an error.
func NewMapping(families map[string][]string) (*Mapping, error) {
	m := &Mapping{byKind: make(map[string]string)}
	for family, kinds := range families {
		if strings.TrimSpace(family) == "" {
			return nil, fmt.Errorf("empty family label")
		}
		m.families = append(m.families, family)
		for _, kind := range kinds {
			key := normalize(kind)
			if key == "" {
				continue
			}
			if existing, ok := m.byKind[key]; ok && existing != family {
				return nil, fmt.Errorf("kind %q mapped to both %q and %q", kind, existing, family)
			}
			m.byKind[key] = family
		}
	}
	sort.Strings(m.families)
	return m, nil
}

// Default returns the built-in mapping.
func Default() *Mapping {
	m, err := NewMapping(defaultFamilies)
	if err != nil {
		panic(err)
	}
	return m
}

// LoadFile reads a YAML document of the form `family: [kind, ...]`.
func LoadFile(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category mapping: %w", err)
	}
	var families map[string][]string
	if err := yaml.Unmarshal(data, &families); err != nil {
		return nil, fmt.Errorf("parse category mapping %s: %w", path, err)
	}
	if len(families) == 0 {
		return nil, fmt.Errorf("category mapping %s is empty", path)
	}
	return NewMapping(families)
}

// Categorize returns the family label for kind, or Other when unmapped.
func (m *Mapping) Categorize(kind string) string {
	if family, ok := m.byKind[normalize(kind)]; ok {
		return family
	}
	return Other
}

// Families returns the configured family labels in alphabetical order,
// excluding the Other fallback.
func (m *Mapping) Families() []string {
	out := make([]string, len(m.families))
	copy(out, m.families)
	return out
}

func normalize(kind string) string {
	return cases.Fold().String(strings.TrimSpace(kind))
}
