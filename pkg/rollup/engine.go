// Package rollup rebuilds the per-year, per-family summary view from the
// activity table.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	shared "github.com/fitglue/ledger/pkg"
	"github.com/fitglue/ledger/pkg/domain/category"
	"github.com/fitglue/ledger/pkg/observability"
)

// Title is the first row of the summary view.
const Title = "WORKOUT LEDGER YEARLY SUMMARY (updated automatically)"

// Size of a newly created summary sheet.
const (
	DashboardRows = 100
	DashboardCols = 10
)

// ErrPartialWrite is returned when the summary view was cleared but the new
// content could not be written.
var ErrPartialWrite = errors.New("summary view cleared but not rewritten")

// Warnings reported when the view is left untouched.
const (
	WarnEmptyTable  = "activity table has no data rows; summary view left unchanged"
	WarnNoValidRows = "no activity row has a parseable date; summary view left unchanged"
)

// StoreError wraps a failed read or write against the table store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("summary store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// SummaryReport describes one rebuild.
type SummaryReport struct {
	RowsWritten int    `json:"rows_written"`
	SourceRows  int    `json:"source_rows"`
	DroppedRows int    `json:"dropped_rows"`
	Warning     string `json:"warning,omitempty"`
}

// Outputs renders the report as execution outputs. A rebuild that left the
// view untouched is reported as skipped.
func (r *SummaryReport) Outputs() map[string]interface{} {
	status := "SUCCESS"
	if r.Warning != "" {
		status = "SKIPPED"
	}
	return map[string]interface{}{
		"status":       status,
		"rows_written": r.RowsWritten,
		"source_rows":  r.SourceRows,
		"dropped_rows": r.DroppedRows,
		"warning":      r.Warning,
	}
}

// Config names the sheets the engine reads and writes.
type Config struct {
	ActivitySheet  string
	DashboardSheet string
}

// Engine is the rollup aggregation engine. The category mapping is fixed for
// the lifetime of the engine.
type Engine struct {
	store   shared.TableStore
	mapping *category.Mapping
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine creates an Engine. A nil mapping uses category.Default.
func NewEngine(store shared.TableStore, mapping *category.Mapping, cfg Config, logger *slog.Logger) *Engine {
	if mapping == nil {
		mapping = category.Default()
	}
	if cfg.ActivitySheet == "" {
		cfg.ActivitySheet = shared.DefaultActivitySheet
	}
	if cfg.DashboardSheet == "" {
		cfg.DashboardSheet = shared.DefaultDashboardSheet
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		mapping: mapping,
		cfg:     cfg,
		logger:  logger.With("component", "rollup"),
		now:     time.Now,
	}
}

// RebuildSummary replaces the summary view with a fresh aggregation of the
// activity table.
//
// An empty table, or one without any dated row, leaves the view untouched and
// returns a report with a warning. If the view is cleared but the write fails
// the returned error wraps ErrPartialWrite.
func (e *Engine) RebuildSummary(ctx context.Context, mode Mode) (*SummaryReport, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	report := &SummaryReport{}

	rows, err := e.store.ReadAllRows(ctx, e.cfg.ActivitySheet)
	if err != nil {
		return report, &StoreError{Op: "read activity table", Err: err}
	}
	if len(rows) < 2 {
		report.Warning = WarnEmptyTable
		e.logger.Warn("Activity table is empty, skipping rebuild", "sheet", e.cfg.ActivitySheet)
		return report, nil
	}

	summaries, stats := Aggregate(rows, e.mapping, mode)
	report.SourceRows = stats.SourceRows
	report.DroppedRows = stats.DroppedRows
	if stats.DroppedRows > 0 {
		e.logger.Warn("Dropped rows with unparseable dates", "dropped", stats.DroppedRows)
	}
	if len(summaries) == 0 {
		report.Warning = WarnNoValidRows
		e.logger.Warn("No aggregatable rows, skipping rebuild", "source_rows", stats.SourceRows)
		return report, nil
	}

	values := e.render(summaries, mode)

	if err := e.store.GetOrCreateSheet(ctx, e.cfg.DashboardSheet, DashboardRows, DashboardCols); err != nil {
		return report, &StoreError{Op: "get or create summary sheet", Err: err}
	}
	if err := e.store.ClearSheet(ctx, e.cfg.DashboardSheet); err != nil {
		return report, &StoreError{Op: "clear summary sheet", Err: err}
	}
	if err := e.store.WriteRange(ctx, e.cfg.DashboardSheet, "A1", values); err != nil {
		return report, fmt.Errorf("%w: %w", ErrPartialWrite, &StoreError{Op: "write summary sheet", Err: err})
	}

	report.RowsWritten = len(summaries)
	observability.RecordRollupRows(report.RowsWritten)
	observability.RecordRun("rollup", e.now())
	e.logger.Info("Summary rebuilt", "rows_written", report.RowsWritten, "mode", string(mode), "source_rows", stats.SourceRows)
	return report, nil
}

func (e *Engine) render(summaries []YearCategorySummary, mode Mode) [][]interface{} {
	values := [][]interface{}{
		{Title},
		{"Updated:", e.now().Format("2006-01-02 15:04")},
		{},
		ColumnHeaders(mode),
	}
	for _, s := range summaries {
		values = append(values, s.Cells(mode))
	}
	return values
}
