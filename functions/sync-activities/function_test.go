package syncactivities

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitglue/ledger/pkg/bootstrap"
	"github.com/fitglue/ledger/pkg/domain/activity"
	"github.com/fitglue/ledger/pkg/domain/category"
	"github.com/fitglue/ledger/pkg/execution"
	"github.com/fitglue/ledger/pkg/framework"
	"github.com/fitglue/ledger/pkg/ingest"
	"github.com/fitglue/ledger/pkg/testing/mocks"
)

type fixture struct {
	svc    *bootstrap.Service
	db     *mocks.MockDatabase
	pub    *mocks.MockPublisher
	blobs  *mocks.MockBlobStore
	table  *mocks.MockTableStore
	source *mocks.MockActivitySource
	logs   *bytes.Buffer
}

func newFixture(acts ...activity.RawActivity) *fixture {
	f := &fixture{
		db:     &mocks.MockDatabase{},
		pub:    &mocks.MockPublisher{},
		blobs:  &mocks.MockBlobStore{},
		table:  mocks.NewMockTableStore(),
		source: &mocks.MockActivitySource{Activities: acts},
		logs:   &bytes.Buffer{},
	}
	f.svc = &bootstrap.Service{
		DB:         f.db,
		Pub:        f.pub,
		Store:      f.blobs,
		Table:      f.table,
		Source:     f.source,
		Categories: category.Default(),
		Logger:     bootstrap.NewLoggerWithWriter(f.logs, "test", slog.LevelDebug),
		Config: &bootstrap.Config{
			ReportBucket: "ledger-reports",
			Garmin:       bootstrap.GarminConfig{ClientID: "client", RefreshToken: "refresh"},
			Store: bootstrap.StoreConfig{
				Backend:           bootstrap.BackendSheets,
				GoogleCredentials: "{}",
				SheetID:           "sheet-id",
				ActivitySheet:     "Sheet1",
				DashboardSheet:    "Dashboard",
			},
			Pipeline: bootstrap.PipelineConfig{
				EnrichWeight:       true,
				EnrichHRV:          true,
				EnrichSleep:        true,
				EnrichRestingHR:    true,
				SummaryMode:        bootstrap.SummaryModeFull,
				FetchWindowSize:    20,
				WeightLookbackDays: 7,
				Concurrency:        2,
			},
		},
	}
	return f
}

func (f *fixture) run(t *testing.T) (map[string]interface{}, string, error) {
	t.Helper()
	var execID string
	out, err := framework.Run(context.Background(), ServiceName, framework.TriggerCLI, f.svc, framework.ManualEvent("test"),
		func(ctx context.Context, e event.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
			execID = fwCtx.ExecutionID
			return Handler(ctx, e, fwCtx)
		})
	outputs, _ := out.(map[string]interface{})
	return outputs, execID, err
}

func walk(start string) activity.RawActivity {
	return activity.RawActivity{StartTimeLocal: start, Name: "Walk", Kind: "walking", Distance: 3000, Duration: 1800}
}

func TestHandler_SyncPublishesAndArchives(t *testing.T) {
	f := newFixture(walk("2024-05-01 07:00:00"), walk("2024-05-02 07:00:00"))

	outputs, execID, err := f.run(t)
	require.NoError(t, err)

	assert.Equal(t, "SUCCESS", outputs["status"])
	assert.Equal(t, 2, outputs["added"])
	assert.Equal(t, "msg-id", outputs["published_message_id"])
	assert.Len(t, f.table.Rows("Sheet1"), 3)
	require.Len(t, f.pub.Published, 1)
	assert.Contains(t, f.blobs.Objects, "ledger-reports/reports/sync/"+execID+".json")

	updates := f.db.Updates[execID]
	require.Len(t, updates, 1)
	assert.Equal(t, execution.StatusSuccess, updates[0]["status"])
}

func TestHandler_NothingNewPublishesNothing(t *testing.T) {
	f := newFixture(walk("2024-05-01 07:00:00"))
	_, _, err := f.run(t)
	require.NoError(t, err)

	outputs, _, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 0, outputs["added"])
	assert.Equal(t, 1, outputs["skipped"])
	assert.NotContains(t, outputs, "published_message_id")
	assert.Len(t, f.pub.Published, 1)
}

func TestHandler_PartialRun(t *testing.T) {
	f := newFixture(walk("2024-05-01 07:00:00"), walk("not a date"))

	outputs, execID, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, "PARTIAL", outputs["status"])
	assert.Len(t, outputs["errors"], 1)
	assert.Equal(t, execution.StatusPartial, f.db.Updates[execID][0]["status"])
}

func TestValidate_MissingCredentials(t *testing.T) {
	f := newFixture()
	f.svc.Config.Garmin = bootstrap.GarminConfig{}

	err := Validate(f.svc.Config)
	var cerr *bootstrap.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"GARMIN_CLIENT_ID", "GARMIN_REFRESH_TOKEN"}, cerr.Missing)
}

func TestValidate_Complete(t *testing.T) {
	assert.NoError(t, Validate(newFixture().svc.Config))
}

func TestHandler_MissingSource(t *testing.T) {
	f := newFixture()
	f.svc.Source = nil

	_, execID, err := f.run(t)
	require.Error(t, err)
	assert.Equal(t, execution.StatusFailed, f.db.Updates[execID][0]["status"])
	assert.Empty(t, f.table.Calls)
}

func TestHandler_SourceFailure(t *testing.T) {
	f := newFixture()
	f.source.FetchRecentActivitiesFunc = func(ctx context.Context, offset, limit int) ([]activity.RawActivity, error) {
		return nil, errors.New("503")
	}

	_, _, err := f.run(t)
	var serr *ingest.SourceError
	require.ErrorAs(t, err, &serr)
	assert.False(t, f.table.Called("AppendRow"))
	assert.Empty(t, f.pub.Published)
}

func TestHandler_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(walk("2024-05-01 07:00:00"))
	f.svc.Pub = &mocks.MockPublisher{
		PublishCloudEventFunc: func(ctx context.Context, topic string, e event.Event) (string, error) {
			return "", errors.New("pubsub down")
		},
	}

	outputs, _, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 1, outputs["added"])
	assert.Contains(t, f.logs.String(), "Failed to publish synced event")
}
