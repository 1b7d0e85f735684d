package rebuilddashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"

	shared "github.com/fitglue/ledger/pkg"
	"github.com/fitglue/ledger/pkg/bootstrap"
	"github.com/fitglue/ledger/pkg/framework"
	"github.com/fitglue/ledger/pkg/infrastructure/pubsub"
	infrasentry "github.com/fitglue/ledger/pkg/infrastructure/sentry"
	"github.com/fitglue/ledger/pkg/ingest"
	"github.com/fitglue/ledger/pkg/rollup"
)

// ServiceName identifies this function in execution records and logs.
const ServiceName = "rebuild-dashboard"

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("RebuildDashboard", RebuildDashboard)
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

// RebuildDashboard is the Cloud Function entry point. It runs on a schedule
// or on the ledger-synced event.
func RebuildDashboard(ctx context.Context, e event.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent(ServiceName, svc, Handler)(ctx, e)
}

// Validate checks the settings a rebuild needs. It must pass before any client
// is created or an execution is recorded.
func Validate(cfg *bootstrap.Config) error {
	if err := cfg.ValidateForRollup(); err != nil {
		return err
	}
	_, err := rollup.ParseMode(cfg.Pipeline.SummaryMode)
	return err
}

// Handler rebuilds the summary view in the configured mode.
func Handler(ctx context.Context, e event.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
	svc := fwCtx.Service
	cfg := svc.Config
	if svc.Table == nil {
		return nil, errors.New("table store not initialized")
	}
	mode, err := rollup.ParseMode(cfg.Pipeline.SummaryMode)
	if err != nil {
		return nil, err
	}

	if e.Type() == pubsub.EventTypeMessagePublished {
		logTrigger(e, fwCtx)
	}

	engine := rollup.NewEngine(svc.Table, svc.Categories, rollup.Config{
		ActivitySheet:  cfg.Store.ActivitySheet,
		DashboardSheet: cfg.Store.DashboardSheet,
	}, fwCtx.Logger)

	report, err := engine.RebuildSummary(ctx, mode)
	if err != nil {
		return nil, err
	}

	if svc.Store != nil {
		if err := rollup.ArchiveReport(ctx, svc.Store, cfg.ReportBucket, fwCtx.ExecutionID, report); err != nil {
			fwCtx.Logger.Warn("Failed to archive summary report", "error", err)
		}
	}
	return report.Outputs(), nil
}

func logTrigger(e event.Event, fwCtx *framework.FrameworkContext) {
	inner, err := pubsub.UnwrapMessage(e)
	if err != nil {
		fwCtx.Logger.Warn("Could not decode trigger message", "error", err)
		return
	}
	if inner.Type() != shared.EventTypeLedgerSynced {
		fwCtx.Logger.Info("Triggered by unexpected event", "type", inner.Type())
		return
	}
	var synced ingest.SyncedEvent
	if err := inner.DataAs(&synced); err != nil {
		fwCtx.Logger.Warn("Could not decode synced event", "error", err)
		return
	}
	fwCtx.Logger.Info("Triggered by sync", "sync_execution_id", synced.ExecutionID, "added", synced.Added)
}
