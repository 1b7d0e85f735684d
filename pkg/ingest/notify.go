package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	shared "github.com/fitglue/ledger/pkg"
	infrapubsub "github.com/fitglue/ledger/pkg/infrastructure/pubsub"
)

// SyncedEvent is the payload of the ledger-synced CloudEvent.
type SyncedEvent struct {
	ExecutionID string `json:"execution_id"`
	Added       int    `json:"added"`
	Skipped     int    `json:"skipped"`
	Errors      int    `json:"errors"`
}

// PublishSynced announces a run that appended rows so the summary can be
// rebuilt. Runs that added nothing publish nothing; the returned id is empty.
func PublishSynced(ctx context.Context, pub shared.Publisher, executionID string, report *SyncReport) (string, error) {
	if report == nil || report.Added == 0 {
		return "", nil
	}
	e, err := infrapubsub.NewCloudEvent(shared.EventSourceIngest, shared.EventTypeLedgerSynced, SyncedEvent{
		ExecutionID: executionID,
		Added:       report.Added,
		Skipped:     report.Skipped,
		Errors:      len(report.Errors),
	})
	if err != nil {
		return "", fmt.Errorf("build synced event: %w", err)
	}
	id, err := pub.PublishCloudEvent(ctx, shared.TopicLedgerSynced, e)
	if err != nil {
		return "", fmt.Errorf("publish synced event: %w", err)
	}
	return id, nil
}

// ArchiveReport writes the report as JSON to bucket. An empty bucket disables
// archiving.
func ArchiveReport(ctx context.Context, store shared.BlobStore, bucket, executionID string, report *SyncReport) error {
	if bucket == "" || report == nil {
		return nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	object := path.Join(shared.ReportPrefixSync, executionID+".json")
	if err := store.Write(ctx, bucket, object, data); err != nil {
		return fmt.Errorf("archive report to gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}
