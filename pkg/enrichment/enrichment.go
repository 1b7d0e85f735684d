// Package enrichment attaches same-day physiological readings to an activity.
// Each channel is looked up independently; a failing channel falls back to its
// default without affecting the others.
package enrichment

import (
	"context"
	"fmt"
	"sync"
	"time"

	shared "github.com/fitglue/ledger/pkg"
	"github.com/fitglue/ledger/pkg/domain/activity"
)

// Field names used in reports and metrics.
const (
	FieldWeight    = "weight"
	FieldRestingHR = "resting_hr"
	FieldHRV       = "hrv"
	FieldSleep     = "sleep"
)

// Options selects the channels to query.
type Options struct {
	Weight         bool
	RestingHR      bool
	HRV            bool
	Sleep          bool
	WeightLookback int // days, including the activity date
}

// Attachments are the same-day readings for one activity.
type Attachments struct {
	WeightKg  Outcome[float64]
	RestingHR Outcome[float64]
	HRV       Outcome[activity.HRV]
	Sleep     Outcome[float64]
}

// Defaulted returns the field name and reason of every defaulted channel.
func (a Attachments) Defaulted() map[string]string {
	out := make(map[string]string)
	if a.WeightKg.Defaulted {
		out[FieldWeight] = a.WeightKg.Reason
	}
	if a.RestingHR.Defaulted {
		out[FieldRestingHR] = a.RestingHR.Reason
	}
	if a.HRV.Defaulted {
		out[FieldHRV] = a.HRV.Reason
	}
	if a.Sleep.Defaulted {
		out[FieldSleep] = a.Sleep.Reason
	}
	return out
}

// Apply copies the readings onto row.
func (a Attachments) Apply(row *activity.Row) {
	row.WeightKg = a.WeightKg.Value
	row.RestingHR = a.RestingHR.Value
	row.HRV = a.HRV.Value
	row.SleepHours = a.Sleep.Value
}

// Enricher queries the side channels of an activity source. Lookups for the
// same day are shared between activities for the lifetime of the Enricher, so
// one Enricher should be created per run.
type Enricher struct {
	source shared.ActivitySource
	opts   Options

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	once sync.Once
	val  interface{}
	err  error
}

// NewEnricher creates an Enricher. A lookback below one day is treated as one.
func NewEnricher(source shared.ActivitySource, opts Options) *Enricher {
	if opts.WeightLookback < 1 {
		opts.WeightLookback = 1
	}
	return &Enricher{
		source: source,
		opts:   opts,
		cache:  make(map[string]*cacheEntry),
	}
}

// Enrich looks up every enabled channel for the activity date.
func (e *Enricher) Enrich(ctx context.Context, raw activity.RawActivity, date time.Time) Attachments {
	return Attachments{
		WeightKg:  e.weight(ctx, raw, date),
		RestingHR: e.restingHR(ctx, date),
		HRV:       e.hrv(ctx, date),
		Sleep:     e.sleep(ctx, date),
	}
}

func (e *Enricher) weight(ctx context.Context, raw activity.RawActivity, date time.Time) Outcome[float64] {
	if !e.opts.Weight {
		return Default(0.0, ReasonDisabled)
	}
	if raw.Weight != nil && *raw.Weight > 0 {
		return Found(activity.NormalizeWeight(*raw.Weight))
	}

	start := date.AddDate(0, 0, -(e.opts.WeightLookback - 1))
	samples, err := cached(e, "weight:"+dayKey(date), func() ([]shared.WeightSample, error) {
		return e.source.FetchBodyComposition(ctx, start, date)
	})
	if err != nil {
		return Default(0.0, fmt.Sprintf("body composition lookup failed: %v", err))
	}

	latest, ok := latestSample(samples, date.AddDate(0, 0, 1))
	if !ok {
		return Default(0.0, ReasonNoSample)
	}
	return Found(activity.NormalizeWeight(latest.Value))
}

// latestSample returns the most recent positive sample strictly before cutoff.
func latestSample(samples []shared.WeightSample, cutoff time.Time) (shared.WeightSample, bool) {
	var best shared.WeightSample
	found := false
	for _, s := range samples {
		if s.Value <= 0 || !s.Date.Before(cutoff) {
			continue
		}
		if !found || s.Date.After(best.Date) {
			best = s
			found = true
		}
	}
	return best, found
}

func (e *Enricher) restingHR(ctx context.Context, date time.Time) Outcome[float64] {
	if !e.opts.RestingHR {
		return Default(0.0, ReasonDisabled)
	}
	stats, err := cached(e, "stats:"+dayKey(date), func() (*shared.DailyStats, error) {
		return e.source.FetchDailyStats(ctx, date)
	})
	if err != nil {
		return Default(0.0, fmt.Sprintf("daily stats lookup failed: %v", err))
	}
	if stats == nil || stats.RestingHeartRate == nil {
		return Default(0.0, ReasonAbsent)
	}
	return Found(*stats.RestingHeartRate)
}

func (e *Enricher) hrv(ctx context.Context, date time.Time) Outcome[activity.HRV] {
	if !e.opts.HRV {
		return Default(activity.HRV{}, ReasonDisabled)
	}
	summary, err := cached(e, "hrv:"+dayKey(date), func() (*shared.HRVSummary, error) {
		return e.source.FetchHRV(ctx, date)
	})
	if err != nil {
		return Default(activity.HRV{}, fmt.Sprintf("hrv lookup failed: %v", err))
	}
	if summary == nil || summary.LastNightAvg == nil {
		return Default(activity.HRV{}, ReasonAbsent)
	}
	return Found(activity.HRV{Value: *summary.LastNightAvg, Available: true})
}

func (e *Enricher) sleep(ctx context.Context, date time.Time) Outcome[float64] {
	if !e.opts.Sleep {
		return Default(0.0, ReasonDisabled)
	}
	summary, err := cached(e, "sleep:"+dayKey(date), func() (*shared.SleepSummary, error) {
		return e.source.FetchSleep(ctx, date)
	})
	if err != nil {
		return Default(0.0, fmt.Sprintf("sleep lookup failed: %v", err))
	}
	if summary == nil || summary.TotalSleepSeconds == nil {
		return Default(0.0, ReasonAbsent)
	}
	return Found(activity.Round(*summary.TotalSleepSeconds/3600, 2))
}

func cached[T any](e *Enricher, key string, fetch func() (T, error)) (T, error) {
	e.mu.Lock()
	entry, ok := e.cache[key]
	if !ok {
		entry = &cacheEntry{}
		e.cache[key] = entry
	}
	e.mu.Unlock()

	entry.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				entry.val, entry.err = nil, fmt.Errorf("lookup panicked: %v", r)
			}
		}()
		entry.val, entry.err = fetch()
	})
	if entry.err != nil {
		var zero T
		return zero, entry.err
	}
	return entry.val.(T), nil
}

func dayKey(date time.Time) string {
	return date.Format("2006-01-02")
}
