package rollup

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	shared "github.com/fitglue/ledger/pkg"
)

// ArchiveReport writes the report as JSON under reports/rollup. An empty
// bucket disables archiving.
func ArchiveReport(ctx context.Context, store shared.BlobStore, bucket, executionID string, report *SummaryReport) error {
	if bucket == "" || report == nil {
		return nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	object := path.Join(shared.ReportPrefixRollup, executionID+".json")
	if err := store.Write(ctx, bucket, object, data); err != nil {
		return fmt.Errorf("archive report to gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}
