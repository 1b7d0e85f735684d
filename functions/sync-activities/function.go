package syncactivities

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/getsentry/sentry-go"

	"github.com/fitglue/ledger/pkg/bootstrap"
	"github.com/fitglue/ledger/pkg/enrichment"
	"github.com/fitglue/ledger/pkg/framework"
	infrasentry "github.com/fitglue/ledger/pkg/infrastructure/sentry"
	"github.com/fitglue/ledger/pkg/ingest"
)

// ServiceName identifies this function in execution records and logs.
const ServiceName = "sync-activities"

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("SyncActivities", SyncActivities)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	if svc != nil {
		return svc, nil
	}
	svcOnce.Do(func() {
		cfg, err := bootstrap.LoadConfig()
		if err != nil {
			svcErr = err
			return
		}
		if err := Validate(cfg); err != nil {
			svcErr = err
			return
		}
		if err := infrasentry.Init(cfg.Sentry, nil); err != nil {
			svcErr = err
			return
		}
		baseSvc, err := bootstrap.NewService(ctx, cfg)
		if err != nil {
			svcErr = err
			return
		}
		svc = baseSvc
	})
	return svc, svcErr
}

// SyncActivities is the Cloud Function entry point
func SyncActivities(ctx context.Context, e event.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent(ServiceName, svc, Handler)(ctx, e)
}

// Validate checks the settings a sync needs. It must pass before any client
// is created or an execution is recorded.
func Validate(cfg *bootstrap.Config) error {
	return cfg.ValidateForSync()
}

// Handler runs one ingestion pass over the configured fetch window, then
// announces and archives the report.
func Handler(ctx context.Context, e event.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
	svc := fwCtx.Service
	cfg := svc.Config
	if svc.Source == nil || svc.Table == nil {
		return nil, errors.New("activity source or table store not initialized")
	}

	engine := ingest.NewEngine(svc.Source, svc.Table, ingest.Config{
		ActivitySheet: cfg.Store.ActivitySheet,
		Concurrency:   cfg.Pipeline.Concurrency,
		Enrichment: enrichment.Options{
			Weight:         cfg.Pipeline.EnrichWeight,
			RestingHR:      cfg.Pipeline.EnrichRestingHR,
			HRV:            cfg.Pipeline.EnrichHRV,
			Sleep:          cfg.Pipeline.EnrichSleep,
			WeightLookback: cfg.Pipeline.WeightLookbackDays,
		},
	}, fwCtx.Logger)

	fwCtx.Logger.Info("Starting sync", "window", cfg.Pipeline.FetchWindowSize, "sheet", cfg.Store.ActivitySheet)
	report, err := engine.Sync(ctx, cfg.Pipeline.FetchWindowSize)
	if err != nil {
		if report != nil {
			return report.Outputs(), err
		}
		return nil, err
	}

	if len(report.Errors) > 0 {
		infrasentry.CaptureMessage(
			fmt.Sprintf("%d activities could not be synced", len(report.Errors)),
			sentry.LevelWarning,
			map[string]interface{}{"execution_id": fwCtx.ExecutionID, "errors": report.Errors},
			fwCtx.Logger,
		)
	}

	outputs := report.Outputs()

	msgID, err := ingest.PublishSynced(ctx, svc.Pub, fwCtx.ExecutionID, report)
	if err != nil {
		fwCtx.Logger.Warn("Failed to publish synced event", "error", err)
	} else if msgID != "" {
		outputs["published_message_id"] = msgID
	}

	if svc.Store != nil {
		if err := ingest.ArchiveReport(ctx, svc.Store, cfg.ReportBucket, fwCtx.ExecutionID, report); err != nil {
			fwCtx.Logger.Warn("Failed to archive sync report", "error", err)
		}
	}

	fwCtx.Logger.Info("Sync complete", "added", report.Added, "skipped", report.Skipped, "errors", len(report.Errors))
	return outputs, nil
}
