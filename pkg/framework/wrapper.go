package framework

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/fitglue/ledger/pkg/bootstrap"
	"github.com/fitglue/ledger/pkg/execution"
	"github.com/fitglue/ledger/pkg/infrastructure/sentry"
)

// Trigger types recorded on executions.
const (
	TriggerHTTP   = "http"
	TriggerPubSub = "pubsub"
	TriggerCLI    = "cli"
)

// EventTypeManual marks events synthesised for CLI and HTTP-server runs.
const EventTypeManual = "com.fitglue.ledger.manual"

// FrameworkContext contains dependencies injected by the framework
type FrameworkContext struct {
	Service     *bootstrap.Service
	Logger      *slog.Logger
	ExecutionID string
}

// HandlerFunc is the signature for an engine handler. A map output may carry
// a "status" that overrides the recorded execution status.
type HandlerFunc func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error)

// WrapCloudEvent adapts handler to the functions framework.
// Handles both HTTP and Pub/Sub triggers.
func WrapCloudEvent(serviceName string, svc *bootstrap.Service, handler HandlerFunc) func(context.Context, event.Event) error {
	return func(ctx context.Context, e event.Event) error {
		triggerType := TriggerPubSub
		if e.Type() == "google.cloud.functions.http" {
			triggerType = TriggerHTTP
		}
		_, err := Run(ctx, serviceName, triggerType, svc, e, handler)
		return err
	}
}

// ManualEvent returns the event passed to handlers on CLI runs.
func ManualEvent(source string) event.Event {
	e := event.New()
	e.SetType(EventTypeManual)
	e.SetSource(source)
	e.SetTime(time.Now())
	return e
}

// Run executes handler with execution logging and error capture. Panics in
// the handler are recovered and returned as errors.
func Run(ctx context.Context, serviceName, triggerType string, svc *bootstrap.Service, e event.Event, handler HandlerFunc) (outputs interface{}, err error) {
	logger := newLogger(serviceName, svc)

	execID, logErr := execution.LogStart(ctx, svc.DB, serviceName, execution.ExecutionOptions{
		TriggerType: triggerType,
	})
	if logErr != nil {
		// Continue anyway - don't fail the run just because logging failed
		logger.Error("Failed to log execution start", "error", logErr)
	}

	logger = logger.With("execution_id", execID)
	logger.Info("Function started", "trigger", triggerType)

	fwCtx := &FrameworkContext{
		Service:     svc,
		Logger:      logger,
		ExecutionID: execID,
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", serviceName, r)
			outputs = nil
			fail(ctx, fwCtx, serviceName, err, nil)
		}
	}()

	outputs, err = handler(ctx, e, fwCtx)
	if err != nil {
		fail(ctx, fwCtx, serviceName, err, outputs)
		return outputs, err
	}

	logger.Info("Function completed successfully")

	customStatus := ""
	if outputsMap, ok := outputs.(map[string]interface{}); ok {
		if s, ok := outputsMap["status"].(string); ok {
			customStatus = s
		}
	}

	if customStatus != "" {
		status, known := execution.ParseStatus(customStatus)
		if !known {
			logger.Warn("Unknown custom status returned", "status", customStatus)
		}
		if logErr := execution.LogExecutionStatus(ctx, svc.DB, execID, status, outputs); logErr != nil {
			logger.Warn("Failed to log execution status", "error", logErr)
		}
	} else if logErr := execution.LogSuccess(ctx, svc.DB, execID, outputs); logErr != nil {
		logger.Warn("Failed to log execution success", "error", logErr)
	}

	return outputs, nil
}

func fail(ctx context.Context, fwCtx *FrameworkContext, serviceName string, err error, outputs interface{}) {
	fwCtx.Logger.Error("Function failed", "error", err)
	sentry.CaptureException(err, map[string]interface{}{
		"service":      serviceName,
		"execution_id": fwCtx.ExecutionID,
	}, fwCtx.Logger)
	if logErr := execution.LogFailure(ctx, fwCtx.Service.DB, fwCtx.ExecutionID, err, outputs); logErr != nil {
		fwCtx.Logger.Warn("Failed to log execution failure", "error", logErr)
	}
}

func newLogger(serviceName string, svc *bootstrap.Service) *slog.Logger {
	if svc.Logger != nil {
		return svc.Logger.With("service", serviceName)
	}
	level := slog.LevelInfo
	if svc.Config != nil {
		level = bootstrap.ParseLevel(svc.Config.LogLevel)
	}
	return bootstrap.NewLogger(serviceName, level)
}
