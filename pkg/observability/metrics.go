package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ledger"

// Ingest row results.
const (
	ResultAdded   = "added"
	ResultSkipped = "skipped"
	ResultError   = "error"
)

var (
	ingestRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "rows_total",
		Help:      "Fetched activities by ingestion result.",
	}, []string{"result"})

	enrichmentDefaults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enrichment",
		Name:      "defaults_total",
		Help:      "Side-channel fields that fell back to their default value.",
	}, []string{"field"})

	rollupRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rollup",
		Name:      "rows_written",
		Help:      "Summary rows written by the most recent rollup.",
	})

	lastRun = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful run per engine.",
	}, []string{"engine"})
)

func init() {
	prometheus.MustRegister(ingestRows, enrichmentDefaults, rollupRows, lastRun)
}

// RecordIngestRow counts one fetched activity under result.
func RecordIngestRow(result string) {
	ingestRows.WithLabelValues(result).Inc()
}

// RecordEnrichmentDefault counts a defaulted side-channel field.
func RecordEnrichmentDefault(field string) {
	enrichmentDefaults.WithLabelValues(field).Inc()
}

// RecordRollupRows sets the number of summary rows last written.
func RecordRollupRows(n int) {
	rollupRows.Set(float64(n))
}

// RecordRun updates the run watermark for engine.
func RecordRun(engine string, ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastRun.WithLabelValues(engine).Set(float64(ts.Unix()))
}
