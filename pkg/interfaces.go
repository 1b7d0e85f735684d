package shared

import (
	"context"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/fitglue/ledger/pkg/domain/activity"
)

// --- Source Interfaces ---

// DailyStats is the subset of a day's aggregate statistics the ledger uses.
type DailyStats struct {
	RestingHeartRate *float64
}

// WeightSample is one body-composition reading. Value is in the unit the
// source reports (grams or kilograms); callers normalize it.
type WeightSample struct {
	Date  time.Time
	Value float64
}

// HRVSummary is the nightly heart-rate variability summary for a day.
type HRVSummary struct {
	LastNightAvg *float64
}

// SleepSummary is the sleep summary for a day.
type SleepSummary struct {
	TotalSleepSeconds *float64
}

// ActivitySource is the remote fitness-tracking account. Every call may fail
// independently.
type ActivitySource interface {
	FetchRecentActivities(ctx context.Context, offset, limit int) ([]activity.RawActivity, error)
	FetchDailyStats(ctx context.Context, date time.Time) (*DailyStats, error)
	FetchBodyComposition(ctx context.Context, start, end time.Time) ([]WeightSample, error)
	FetchHRV(ctx context.Context, date time.Time) (*HRVSummary, error)
	FetchSleep(ctx context.Context, date time.Time) (*SleepSummary, error)
}

// --- Tabular Store Interfaces ---

// TableStore is the durable row-oriented store. Rows are returned in sheet
// order; the first row is the header.
type TableStore interface {
	ReadAllRows(ctx context.Context, sheet string) ([][]interface{}, error)
	AppendRow(ctx context.Context, sheet string, cells []interface{}) error
	ClearSheet(ctx context.Context, sheet string) error
	WriteRange(ctx context.Context, sheet, startCell string, rows [][]interface{}) error
	GetOrCreateSheet(ctx context.Context, name string, rows, cols int) error
}

// --- Persistence Interfaces ---

type Database interface {
	SetExecution(ctx context.Context, record *ExecutionRecord) error
	UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error
}

// ExecutionRecord tracks a single engine invocation.
type ExecutionRecord struct {
	ExecutionID string
	Service     string
	TriggerType string
	Status      string
	StartTime   time.Time
	EndTime     time.Time
	Error       string
	Outputs     string
}

// --- Messaging Interfaces ---

type Publisher interface {
	PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error)
}

// --- Storage Interfaces ---

// BlobStore archives run reports.
type BlobStore interface {
	Write(ctx context.Context, bucket, object string, data []byte) error
}
