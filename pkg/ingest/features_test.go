package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/cucumber/godog"

	shared "github.com/fitglue/ledger/pkg"
	"github.com/fitglue/ledger/pkg/domain/activity"
	"github.com/fitglue/ledger/pkg/testing/mocks"
)

type syncFeature struct {
	source *mocks.MockActivitySource
	store  *mocks.MockTableStore
	report *SyncReport
}

func (f *syncFeature) reset(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
	f.source = healthySource()
	f.store = mocks.NewMockTableStore()
	f.report = nil
	return ctx, nil
}

func (f *syncFeature) sourceHasActivities(table *godog.Table) error {
	for _, row := range table.Rows[1:] {
		distance, err := strconv.ParseFloat(row.Cells[3].Value, 64)
		if err != nil {
			return err
		}
		duration, err := strconv.ParseFloat(row.Cells[4].Value, 64)
		if err != nil {
			return err
		}
		f.source.Activities = append(f.source.Activities, activity.RawActivity{
			StartTimeLocal: row.Cells[0].Value,
			Name:           row.Cells[1].Value,
			Kind:           row.Cells[2].Value,
			Distance:       distance,
			Duration:       duration,
		})
	}
	return nil
}

func (f *syncFeature) sourceAlsoHas(name, start string) error {
	f.source.Activities = append(f.source.Activities, activity.RawActivity{StartTimeLocal: start, Name: name})
	return nil
}

func (f *syncFeature) tableIsEmpty() error {
	f.store.Sheets[sheet] = nil
	return nil
}

func (f *syncFeature) tableContains(start, name string) error {
	f.store.Sheets[sheet] = [][]interface{}{
		activity.HeaderCells(),
		{start, name},
	}
	return nil
}

func (f *syncFeature) hrvUnavailable() error {
	f.source.FetchHRVFunc = func(ctx context.Context, date time.Time) (*shared.HRVSummary, error) {
		return nil, errors.New("service unavailable")
	}
	return nil
}

func (f *syncFeature) iSync(ctx context.Context, window int) error {
	report, err := newTestEngine(f.source, f.store).Sync(ctx, window)
	if err != nil {
		return err
	}
	f.report = report
	return nil
}

func (f *syncFeature) rowsAdded(n int) error {
	if f.report.Added != n {
		return fmt.Errorf("expected %d rows added, got %d", n, f.report.Added)
	}
	return nil
}

func (f *syncFeature) activitiesSkipped(n int) error {
	if f.report.Skipped != n {
		return fmt.Errorf("expected %d skipped, got %d", n, f.report.Skipped)
	}
	return nil
}

func (f *syncFeature) dataRows(n int) error {
	if got := len(f.store.Rows(sheet)) - 1; got != n {
		return fmt.Errorf("expected %d data rows, got %d", n, got)
	}
	return nil
}

func (f *syncFeature) firstDataRow(name string) error {
	rows := f.store.Rows(sheet)
	if len(rows) < 2 {
		return fmt.Errorf("activity table has no data rows")
	}
	if got := rows[1][activity.ColumnIndex(activity.ColumnName)]; got != name {
		return fmt.Errorf("expected first row %q, got %v", name, got)
	}
	return nil
}

func (f *syncFeature) errorFor(n int, name string) error {
	if len(f.report.Errors) != n {
		return fmt.Errorf("expected %d errors, got %d", n, len(f.report.Errors))
	}
	for _, e := range f.report.Errors {
		if e.Name != name {
			return fmt.Errorf("unexpected error for %q: %s", e.Name, e.Message)
		}
	}
	return nil
}

func (f *syncFeature) cellOf(column string) func(name, want string) error {
	return func(name, want string) error {
		for _, row := range f.store.Rows(sheet)[1:] {
			if row[activity.ColumnIndex(activity.ColumnName)] != name {
				continue
			}
			got := fmt.Sprint(row[activity.ColumnIndex(column)])
			if got != want {
				return fmt.Errorf("expected %s of %q to be %q, got %q", column, name, want, got)
			}
			return nil
		}
		return fmt.Errorf("no row named %q", name)
	}
}

func initializeSyncScenario(sc *godog.ScenarioContext) {
	f := &syncFeature{}
	sc.Before(f.reset)

	sc.Step(`^the source has the following activities:$`, f.sourceHasActivities)
	sc.Step(`^the source also has an activity "([^"]*)" starting "([^"]*)"$`, f.sourceAlsoHas)
	sc.Step(`^the activity table is empty$`, f.tableIsEmpty)
	sc.Step(`^the activity table already contains "([^"]*)" named "([^"]*)"$`, f.tableContains)
	sc.Step(`^the HRV service is unavailable$`, f.hrvUnavailable)
	sc.Step(`^I sync with a window of (\d+)$`, f.iSync)
	sc.Step(`^(\d+) rows? should be added$`, f.rowsAdded)
	sc.Step(`^(\d+) activit(?:y|ies) should be skipped$`, f.activitiesSkipped)
	sc.Step(`^the activity table should contain (\d+) data rows$`, f.dataRows)
	sc.Step(`^the first data row should be "([^"]*)"$`, f.firstDataRow)
	sc.Step(`^the report should list (\d+) errors? for "([^"]*)"$`, f.errorFor)
	sc.Step(`^the HRV of "([^"]*)" should be "([^"]*)"$`, f.cellOf(activity.ColumnHRV))
	sc.Step(`^the speed of "([^"]*)" should be "([^"]*)"$`, f.cellOf(activity.ColumnSpeed))
	sc.Step(`^the pace of "([^"]*)" should be "([^"]*)"$`, f.cellOf(activity.ColumnPace))
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "ingest",
		ScenarioInitializer: initializeSyncScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
