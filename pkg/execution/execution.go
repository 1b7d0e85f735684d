// Package execution records the lifecycle of each engine run.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	shared "github.com/fitglue/ledger/pkg"
)

// Execution statuses.
const (
	StatusStarted = "STATUS_STARTED"
	StatusSuccess = "STATUS_SUCCESS"
	StatusPartial = "STATUS_PARTIAL"
	StatusSkipped = "STATUS_SKIPPED"
	StatusFailed  = "STATUS_FAILED"
	StatusUnknown = "STATUS_UNKNOWN"
)

var knownStatuses = map[string]bool{
	StatusStarted: true,
	StatusSuccess: true,
	StatusPartial: true,
	StatusSkipped: true,
	StatusFailed:  true,
}

// ExecutionOptions describe how a run was triggered.
type ExecutionOptions struct {
	TriggerType string
}

// ParseStatus maps a handler-provided status such as "partial" or
// "STATUS_PARTIAL" to a known status. ok is false for unknown values.
func ParseStatus(s string) (status string, ok bool) {
	if knownStatuses[s] {
		return s, true
	}
	candidate := "STATUS_" + strings.ToUpper(s)
	if knownStatuses[candidate] {
		return candidate, true
	}
	return StatusUnknown, false
}

// LogStart creates an execution record and returns its id. The id is valid
// even when the record could not be written.
func LogStart(ctx context.Context, db shared.Database, service string, opts ExecutionOptions) (string, error) {
	id := uuid.NewString()
	err := db.SetExecution(ctx, &shared.ExecutionRecord{
		ExecutionID: id,
		Service:     service,
		TriggerType: opts.TriggerType,
		Status:      StatusStarted,
		StartTime:   time.Now().UTC(),
	})
	if err != nil {
		return id, fmt.Errorf("set execution: %w", err)
	}
	return id, nil
}

// LogSuccess marks the run successful.
func LogSuccess(ctx context.Context, db shared.Database, id string, outputs interface{}) error {
	return LogExecutionStatus(ctx, db, id, StatusSuccess, outputs)
}

// LogExecutionStatus marks the run finished with status.
func LogExecutionStatus(ctx context.Context, db shared.Database, id, status string, outputs interface{}) error {
	return db.UpdateExecution(ctx, id, map[string]interface{}{
		"status":   status,
		"end_time": time.Now().UTC(),
		"outputs":  encodeOutputs(outputs),
	})
}

// LogFailure marks the run failed.
func LogFailure(ctx context.Context, db shared.Database, id string, runErr error, outputs interface{}) error {
	data := map[string]interface{}{
		"status":   StatusFailed,
		"end_time": time.Now().UTC(),
		"outputs":  encodeOutputs(outputs),
	}
	if runErr != nil {
		data["error"] = runErr.Error()
	}
	return db.UpdateExecution(ctx, id, data)
}

func encodeOutputs(outputs interface{}) string {
	if outputs == nil {
		return ""
	}
	b, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Sprintf("%v", outputs)
	}
	return string(b)
}
