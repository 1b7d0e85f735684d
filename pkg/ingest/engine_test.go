package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/fitglue/ledger/pkg"
	"github.com/fitglue/ledger/pkg/domain/activity"
	"github.com/fitglue/ledger/pkg/enrichment"
	"github.com/fitglue/ledger/pkg/testing/mocks"
)

const sheet = "Sheet1"

func ptr(v float64) *float64 { return &v }

func ride(start, name string) activity.RawActivity {
	return activity.RawActivity{
		StartTimeLocal: start,
		Name:           name,
		Kind:           "road_biking",
		Distance:       20000,
		Duration:       3600,
		AvgHR:          135,
		MaxHR:          170,
		Calories:       600,
		ElevationGain:  123.45,
	}
}

func healthySource(acts ...activity.RawActivity) *mocks.MockActivitySource {
	return &mocks.MockActivitySource{
		Activities: acts,
		FetchDailyStatsFunc: func(ctx context.Context, date time.Time) (*shared.DailyStats, error) {
			return &shared.DailyStats{RestingHeartRate: ptr(50)}, nil
		},
		FetchBodyCompositionFunc: func(ctx context.Context, start, end time.Time) ([]shared.WeightSample, error) {
			return []shared.WeightSample{{Date: end, Value: 72500}}, nil
		},
		FetchHRVFunc: func(ctx context.Context, date time.Time) (*shared.HRVSummary, error) {
			return &shared.HRVSummary{LastNightAvg: ptr(60)}, nil
		},
		FetchSleepFunc: func(ctx context.Context, date time.Time) (*shared.SleepSummary, error) {
			return &shared.SleepSummary{TotalSleepSeconds: ptr(28800)}, nil
		},
	}
}

var allChannels = enrichment.Options{Weight: true, RestingHR: true, HRV: true, Sleep: true, WeightLookback: 7}

func newTestEngine(source shared.ActivitySource, store shared.TableStore) *Engine {
	return NewEngine(source, store, Config{ActivitySheet: sheet, Concurrency: 3, Enrichment: allChannels}, nil)
}

func TestSync_AppendsEnrichedRowsInFetchOrder(t *testing.T) {
	source := healthySource(
		ride("2024-05-03 07:00:00", "Third"),
		ride("2024-05-02 07:00:00", "Second"),
		ride("2024-05-01 07:00:00", "First"),
	)
	store := mocks.NewMockTableStore()

	report, err := newTestEngine(source, store).Sync(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Added)
	assert.Equal(t, 0, report.Skipped)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Defaults)

	rows := store.Rows(sheet)
	require.Len(t, rows, 4)
	assert.Equal(t, activity.HeaderCells(), rows[0])
	assert.Equal(t, "Third", rows[1][1])
	assert.Equal(t, "Second", rows[2][1])
	assert.Equal(t, "First", rows[3][1])

	assert.Equal(t, []interface{}{
		"2024-05-03 07:00:00", "Third", "road_biking",
		20.0, 60.0, "3:00", 20.0,
		135.0, 170.0, 600.0, 123.5,
		72.5, 50.0, 60.0, 8.0,
	}, rows[1])
}

func TestSync_Idempotent(t *testing.T) {
	source := healthySource(ride("2024-05-02 07:00:00", "Ride"), ride("2024-05-01 07:00:00", "Ride"))
	store := mocks.NewMockTableStore()
	engine := newTestEngine(source, store)

	first, err := engine.Sync(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)

	second, err := engine.Sync(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 2, second.Skipped)
	assert.Len(t, store.Rows(sheet), 3)
}

func TestSync_SkipsDuplicatesWithinBatch(t *testing.T) {
	source := healthySource(ride("2024-05-01 07:00:00", "Ride"), ride("2024-05-01 07:00:00", "Ride"))
	store := mocks.NewMockTableStore()

	report, err := newTestEngine(source, store).Sync(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Skipped)
}

func TestSync_UsesStoredHeaderLayout(t *testing.T) {
	store := mocks.NewMockTableStore()
	store.Sheets[sheet] = [][]interface{}{
		{"Name", "Date"},
		{"Ride", "2024-05-01 07:00:00"},
	}
	source := healthySource(ride("2024-05-01 07:00:00", "Ride"), ride("2024-05-02 07:00:00", "Ride"))

	report, err := newTestEngine(source, store).Sync(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Skipped)
	rows := store.Rows(sheet)
	require.Len(t, rows, 3)
	assert.Equal(t, []interface{}{"Name", "Date"}, rows[0])
}

func TestSync_PartialFailureIsolation(t *testing.T) {
	bad := ride("yesterday", "Broken")
	source := healthySource(
		ride("2024-05-03 07:00:00", "A"),
		bad,
		ride("2024-05-01 07:00:00", "C"),
	)
	store := mocks.NewMockTableStore()

	report, err := newTestEngine(source, store).Sync(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "yesterday", report.Errors[0].StartTime)
	assert.Equal(t, "Broken", report.Errors[0].Name)
	assert.Contains(t, report.Errors[0].Message, "start time")
	assert.Len(t, store.Rows(sheet), 3)
}

func TestSync_DefaultsFailedChannels(t *testing.T) {
	source := healthySource(ride("2024-05-01 07:00:00", "Ride"))
	source.FetchHRVFunc = func(ctx context.Context, date time.Time) (*shared.HRVSummary, error) {
		return nil, errors.New("hrv service down")
	}
	source.FetchSleepFunc = func(ctx context.Context, date time.Time) (*shared.SleepSummary, error) {
		return nil, errors.New("timeout")
	}
	store := mocks.NewMockTableStore()

	report, err := newTestEngine(source, store).Sync(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, map[string]int{enrichment.FieldHRV: 1, enrichment.FieldSleep: 1}, report.Defaults)

	row := store.Rows(sheet)[1]
	assert.Equal(t, activity.NotAvailable, row[activity.ColumnIndex(activity.ColumnHRV)])
	assert.Equal(t, 0.0, row[activity.ColumnIndex(activity.ColumnSleep)])
	assert.Equal(t, 50.0, row[activity.ColumnIndex(activity.ColumnRestingHR)])
}

func TestSync_ZeroDistanceIsSafe(t *testing.T) {
	act := ride("2024-05-01 07:00:00", "Yoga")
	act.Kind = "yoga"
	act.Distance = 0
	act.Duration = 600
	source := healthySource(act)
	store := mocks.NewMockTableStore()

	_, err := newTestEngine(source, store).Sync(context.Background(), 1)
	require.NoError(t, err)

	row := store.Rows(sheet)[1]
	assert.Equal(t, activity.ZeroPace, row[activity.ColumnIndex(activity.ColumnPace)])
	assert.Equal(t, 0.0, row[activity.ColumnIndex(activity.ColumnSpeed)])
	assert.Equal(t, 10.0, row[activity.ColumnIndex(activity.ColumnDuration)])
}

func TestSync_SourceFailureWritesNothing(t *testing.T) {
	source := &mocks.MockActivitySource{
		FetchRecentActivitiesFunc: func(ctx context.Context, offset, limit int) ([]activity.RawActivity, error) {
			return nil, errors.New("401 unauthorized")
		},
	}
	store := mocks.NewMockTableStore()

	_, err := newTestEngine(source, store).Sync(context.Background(), 5)
	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Empty(t, store.Calls)
}

func TestSync_StoreReadFailure(t *testing.T) {
	store := mocks.NewMockTableStore()
	store.ReadAllRowsFunc = func(ctx context.Context, sheet string) ([][]interface{}, error) {
		return nil, errors.New("sheet not found")
	}

	_, err := newTestEngine(healthySource(ride("2024-05-01 07:00:00", "Ride")), store).Sync(context.Background(), 5)
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.False(t, store.Called("AppendRow"))
}

func TestSync_AppendFailureStopsRun(t *testing.T) {
	store := mocks.NewMockTableStore()
	store.Sheets[sheet] = [][]interface{}{activity.HeaderCells()}
	appends := 0
	store.AppendRowFunc = func(ctx context.Context, sheet string, cells []interface{}) error {
		appends++
		if appends == 2 {
			return errors.New("rate limited")
		}
		return nil
	}
	source := healthySource(
		ride("2024-05-03 07:00:00", "A"),
		ride("2024-05-02 07:00:00", "B"),
		ride("2024-05-01 07:00:00", "C"),
	)

	report, err := newTestEngine(source, store).Sync(context.Background(), 3)
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 2, appends)
}

func TestSync_InvalidWindow(t *testing.T) {
	_, err := newTestEngine(healthySource(), mocks.NewMockTableStore()).Sync(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestSync_RespectsWindow(t *testing.T) {
	var acts []activity.RawActivity
	for i := 0; i < 10; i++ {
		acts = append(acts, ride(fmt.Sprintf("2024-05-%02d 07:00:00", 20-i), "Ride"))
	}
	store := mocks.NewMockTableStore()

	report, err := newTestEngine(healthySource(acts...), store).Sync(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Added)
}

func TestSync_PanickingLookupDefaultsChannel(t *testing.T) {
	source := healthySource(ride("2024-05-02 07:00:00", "A"), ride("2024-05-02 18:00:00", "B"))
	source.FetchDailyStatsFunc = func(ctx context.Context, date time.Time) (*shared.DailyStats, error) {
		panic("nil map")
	}
	store := mocks.NewMockTableStore()
	engine := NewEngine(source, store, Config{ActivitySheet: sheet, Concurrency: 1, Enrichment: allChannels}, nil)

	report, err := engine.Sync(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, report.Defaults[enrichment.FieldRestingHR])
	assert.Equal(t, 1, source.CallCount("FetchDailyStats"))

	rows := store.Rows(sheet)
	require.Len(t, rows, 3)
	restingHR := activity.ColumnIndex(activity.ColumnRestingHR)
	assert.Equal(t, 0.0, rows[1][restingHR])
	assert.Equal(t, 0.0, rows[2][restingHR])
}

func TestSync_ErrorNamesNamelessActivity(t *testing.T) {
	source := healthySource(activity.RawActivity{StartTimeLocal: "soon"})
	store := mocks.NewMockTableStore()

	report, err := newTestEngine(source, store).Sync(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, activity.DefaultName, report.Errors[0].Name)
}

func TestExistingKeys(t *testing.T) {
	keys := ExistingKeys([][]interface{}{
		activity.HeaderCells(),
		{"2024-05-01 07:00:00", "Ride"},
		{45413.0, "Serial"},
		{"2024-05-02 07:00:00"},
	})

	assert.Contains(t, keys, "2024-05-01 07:00:00Ride")
	assert.Contains(t, keys, "45413Serial")
	assert.Contains(t, keys, "2024-05-02 07:00:00")
}
