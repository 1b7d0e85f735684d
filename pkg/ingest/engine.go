// Package ingest appends newly fetched, enriched activities to the activity
// table. Runs are idempotent: an activity whose key is already stored is
// skipped.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	shared "github.com/fitglue/ledger/pkg"
	"github.com/fitglue/ledger/pkg/domain/activity"
	"github.com/fitglue/ledger/pkg/enrichment"
	"github.com/fitglue/ledger/pkg/observability"
)

// ErrInvalidWindow is returned when Sync is asked for a non-positive window.
var ErrInvalidWindow = errors.New("fetch window size must be positive")

// Config parameterises a run.
type Config struct {
	ActivitySheet string
	Concurrency   int
	Enrichment    enrichment.Options
}

// Engine is the ingestion and enrichment engine. It holds no state between
// runs.
type Engine struct {
	source shared.ActivitySource
	store  shared.TableStore
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates an Engine. Zero values in cfg fall back to the defaults.
func NewEngine(source shared.ActivitySource, store shared.TableStore, cfg Config, logger *slog.Logger) *Engine {
	if cfg.ActivitySheet == "" {
		cfg.ActivitySheet = shared.DefaultActivitySheet
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = shared.DefaultEnrichConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		source: source,
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "ingest"),
	}
}

type result struct {
	row         activity.Row
	attachments enrichment.Attachments
	err         error
}

// Sync fetches the most recent windowSize activities and appends those not yet
// in the table, in fetch order.
//
// A SourceError is returned when the fetch fails; nothing is written. A
// StoreError is returned together with the partial report when the table
// cannot be read or appended to. Per-activity failures never abort the run;
// they are listed in the report.
func (e *Engine) Sync(ctx context.Context, windowSize int) (*SyncReport, error) {
	if windowSize <= 0 {
		return nil, ErrInvalidWindow
	}
	report := newReport()

	raws, err := e.source.FetchRecentActivities(ctx, 0, windowSize)
	if err != nil {
		return report, &SourceError{Op: "fetch recent activities", Err: err}
	}
	e.logger.Info("Fetched activities", "count", len(raws), "window", windowSize)

	existing, err := e.store.ReadAllRows(ctx, e.cfg.ActivitySheet)
	if err != nil {
		return report, &StoreError{Op: "read rows", Err: err}
	}
	if len(existing) == 0 {
		if err := e.store.AppendRow(ctx, e.cfg.ActivitySheet, activity.HeaderCells()); err != nil {
			return report, &StoreError{Op: "write header", Err: err}
		}
		e.logger.Info("Wrote header row", "sheet", e.cfg.ActivitySheet)
	}
	seen := ExistingKeys(existing)

	var pending []activity.RawActivity
	for _, raw := range raws {
		key := raw.Key()
		if _, ok := seen[key]; ok {
			report.Skipped++
			observability.RecordIngestRow(observability.ResultSkipped)
			e.logger.Debug("Skipping duplicate", "start_time", raw.StartTimeLocal, "name", raw.Name)
			continue
		}
		seen[key] = struct{}{}
		pending = append(pending, raw)
	}

	results := e.process(ctx, pending)

	for i, raw := range pending {
		res := results[i]
		if res.err != nil {
			report.Errors = append(report.Errors, ActivityError{
				StartTime: raw.StartTimeLocal,
				Name:      raw.DisplayName(),
				Message:   res.err.Error(),
			})
			observability.RecordIngestRow(observability.ResultError)
			e.logger.Warn("Activity failed", "start_time", raw.StartTimeLocal, "name", raw.Name, "error", res.err)
			continue
		}

		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := e.store.AppendRow(ctx, e.cfg.ActivitySheet, res.row.Cells()); err != nil {
			return report, &StoreError{Op: "append row", Err: err}
		}
		report.Added++
		observability.RecordIngestRow(observability.ResultAdded)

		for field, reason := range res.attachments.Defaulted() {
			report.Defaults[field]++
			observability.RecordEnrichmentDefault(field)
			if reason != enrichment.ReasonDisabled {
				e.logger.Debug("Enrichment defaulted", "start_time", raw.StartTimeLocal, "field", field, "reason", reason)
			}
		}
		e.logger.Info("Appended activity", "start_time", res.row.StartTime, "name", res.row.Name, "type", res.row.Kind)
	}

	observability.RecordRun("ingest", time.Now())
	e.logger.Info("Sync finished", "added", report.Added, "skipped", report.Skipped, "errors", len(report.Errors))
	return report, nil
}

// process builds rows for pending with bounded concurrency. Results are indexed
// like pending.
func (e *Engine) process(ctx context.Context, pending []activity.RawActivity) []result {
	results := make([]result, len(pending))
	enricher := enrichment.NewEnricher(e.source, e.cfg.Enrichment)

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, raw := range pending {
		g.Go(func() error {
			results[i] = buildRow(ctx, enricher, raw)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func buildRow(ctx context.Context, enricher *enrichment.Enricher, raw activity.RawActivity) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{err: fmt.Errorf("panic while processing activity: %v", r)}
		}
	}()

	fields, err := activity.Extract(raw)
	if err != nil {
		return result{err: err}
	}
	att := enricher.Enrich(ctx, raw, fields.Date)
	row := fields.Row
	att.Apply(&row)
	return result{row: row, attachments: att}
}

// ExistingKeys indexes the dedup keys of the stored rows. The date and name
// columns are located by header name, falling back to the default layout.
func ExistingKeys(rows [][]interface{}) map[string]struct{} {
	keys := make(map[string]struct{}, len(rows))
	if len(rows) < 2 {
		return keys
	}

	dateCol := headerIndex(rows[0], activity.ColumnDate)
	nameCol := headerIndex(rows[0], activity.ColumnName)
	for _, row := range rows[1:] {
		keys[activity.Key(cellString(row, dateCol), cellString(row, nameCol))] = struct{}{}
	}
	return keys
}

func headerIndex(header []interface{}, name string) int {
	for i, cell := range header {
		if s, ok := cell.(string); ok && s == name {
			return i
		}
	}
	return activity.ColumnIndex(name)
}

func cellString(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	if s, ok := row[idx].(string); ok {
		return s
	}
	return fmt.Sprint(row[idx])
}
