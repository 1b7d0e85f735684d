package database

import (
	"context"
	"log/slog"

	"cloud.google.com/go/firestore"

	shared "github.com/fitglue/ledger/pkg"
)

// FirestoreAdapter stores execution records in Firestore
type FirestoreAdapter struct {
	Client *firestore.Client
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{Client: client}
}

func (a *FirestoreAdapter) executions() *firestore.CollectionRef {
	return a.Client.Collection(shared.CollectionExecutions)
}

func (a *FirestoreAdapter) SetExecution(ctx context.Context, record *shared.ExecutionRecord) error {
	_, err := a.executions().Doc(record.ExecutionID).Set(ctx, map[string]interface{}{
		"execution_id": record.ExecutionID,
		"service":      record.Service,
		"trigger_type": record.TriggerType,
		"status":       record.Status,
		"start_time":   record.StartTime,
	})
	return err
}

func (a *FirestoreAdapter) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	_, err := a.executions().Doc(id).Set(ctx, data, firestore.MergeAll)
	return err
}

// LogDatabase writes execution records to the log only. It is used when the
// execution log is disabled.
type LogDatabase struct {
	Logger *slog.Logger
}

func (d *LogDatabase) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *LogDatabase) SetExecution(ctx context.Context, record *shared.ExecutionRecord) error {
	d.logger().Debug("Execution recorded", "execution_id", record.ExecutionID, "service", record.Service, "status", record.Status)
	return nil
}

func (d *LogDatabase) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	d.logger().Debug("Execution updated", "execution_id", id, "status", data["status"])
	return nil
}
