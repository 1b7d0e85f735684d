package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"

	shared "github.com/fitglue/ledger/pkg"
	"github.com/fitglue/ledger/pkg/domain/activity"
)

// --- Mock Activity Source ---
type MockActivitySource struct {
	Activities []activity.RawActivity

	FetchRecentActivitiesFunc func(ctx context.Context, offset, limit int) ([]activity.RawActivity, error)
	FetchDailyStatsFunc       func(ctx context.Context, date time.Time) (*shared.DailyStats, error)
	FetchBodyCompositionFunc  func(ctx context.Context, start, end time.Time) ([]shared.WeightSample, error)
	FetchHRVFunc              func(ctx context.Context, date time.Time) (*shared.HRVSummary, error)
	FetchSleepFunc            func(ctx context.Context, date time.Time) (*shared.SleepSummary, error)

	mu    sync.Mutex
	Calls map[string]int
}

func (m *MockActivitySource) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[name]++
}

// CallCount returns how many times the named method was called.
func (m *MockActivitySource) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[name]
}

func (m *MockActivitySource) FetchRecentActivities(ctx context.Context, offset, limit int) ([]activity.RawActivity, error) {
	m.record("FetchRecentActivities")
	if m.FetchRecentActivitiesFunc != nil {
		return m.FetchRecentActivitiesFunc(ctx, offset, limit)
	}
	if offset >= len(m.Activities) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.Activities) {
		end = len(m.Activities)
	}
	return append([]activity.RawActivity(nil), m.Activities[offset:end]...), nil
}

func (m *MockActivitySource) FetchDailyStats(ctx context.Context, date time.Time) (*shared.DailyStats, error) {
	m.record("FetchDailyStats")
	if m.FetchDailyStatsFunc != nil {
		return m.FetchDailyStatsFunc(ctx, date)
	}
	return nil, fmt.Errorf("daily stats not available")
}

func (m *MockActivitySource) FetchBodyComposition(ctx context.Context, start, end time.Time) ([]shared.WeightSample, error) {
	m.record("FetchBodyComposition")
	if m.FetchBodyCompositionFunc != nil {
		return m.FetchBodyCompositionFunc(ctx, start, end)
	}
	return nil, nil
}

func (m *MockActivitySource) FetchHRV(ctx context.Context, date time.Time) (*shared.HRVSummary, error) {
	m.record("FetchHRV")
	if m.FetchHRVFunc != nil {
		return m.FetchHRVFunc(ctx, date)
	}
	return nil, fmt.Errorf("hrv not available")
}

func (m *MockActivitySource) FetchSleep(ctx context.Context, date time.Time) (*shared.SleepSummary, error) {
	m.record("FetchSleep")
	if m.FetchSleepFunc != nil {
		return m.FetchSleepFunc(ctx, date)
	}
	return nil, fmt.Errorf("sleep not available")
}

// --- Mock Table Store ---

// MockTableStore keeps sheets in memory. The *Func fields override the
// in-memory behaviour for failure injection.
type MockTableStore struct {
	Sheets map[string][][]interface{}

	ReadAllRowsFunc      func(ctx context.Context, sheet string) ([][]interface{}, error)
	AppendRowFunc        func(ctx context.Context, sheet string, cells []interface{}) error
	ClearSheetFunc       func(ctx context.Context, sheet string) error
	WriteRangeFunc       func(ctx context.Context, sheet, startCell string, rows [][]interface{}) error
	GetOrCreateSheetFunc func(ctx context.Context, name string, rows, cols int) error

	mu    sync.Mutex
	Calls []string
}

func NewMockTableStore() *MockTableStore {
	return &MockTableStore{Sheets: make(map[string][][]interface{})}
}

func (m *MockTableStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, name)
}

// Called reports whether the named method was invoked.
func (m *MockTableStore) Called(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Calls {
		if c == name {
			return true
		}
	}
	return false
}

// Rows returns a copy of the rows stored in sheet.
func (m *MockTableStore) Rows(sheet string) [][]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]interface{}(nil), m.Sheets[sheet]...)
}

func (m *MockTableStore) ReadAllRows(ctx context.Context, sheet string) ([][]interface{}, error) {
	m.record("ReadAllRows")
	if m.ReadAllRowsFunc != nil {
		return m.ReadAllRowsFunc(ctx, sheet)
	}
	return m.Rows(sheet), nil
}

func (m *MockTableStore) AppendRow(ctx context.Context, sheet string, cells []interface{}) error {
	m.record("AppendRow")
	if m.AppendRowFunc != nil {
		if err := m.AppendRowFunc(ctx, sheet, cells); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sheets[sheet] = append(m.Sheets[sheet], append([]interface{}(nil), cells...))
	return nil
}

func (m *MockTableStore) ClearSheet(ctx context.Context, sheet string) error {
	m.record("ClearSheet")
	if m.ClearSheetFunc != nil {
		if err := m.ClearSheetFunc(ctx, sheet); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sheets[sheet] = nil
	return nil
}

func (m *MockTableStore) WriteRange(ctx context.Context, sheet, startCell string, rows [][]interface{}) error {
	m.record("WriteRange")
	if m.WriteRangeFunc != nil {
		if err := m.WriteRangeFunc(ctx, sheet, startCell, rows); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sheets[sheet] = append([][]interface{}(nil), rows...)
	return nil
}

func (m *MockTableStore) GetOrCreateSheet(ctx context.Context, name string, rows, cols int) error {
	m.record("GetOrCreateSheet")
	if m.GetOrCreateSheetFunc != nil {
		return m.GetOrCreateSheetFunc(ctx, name, rows, cols)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Sheets[name]; !ok {
		m.Sheets[name] = nil
	}
	return nil
}

// --- Mock Database ---
type MockDatabase struct {
	SetExecutionFunc    func(ctx context.Context, record *shared.ExecutionRecord) error
	UpdateExecutionFunc func(ctx context.Context, id string, data map[string]interface{}) error

	mu      sync.Mutex
	Records map[string]*shared.ExecutionRecord
	Updates map[string][]map[string]interface{}
}

func (m *MockDatabase) SetExecution(ctx context.Context, record *shared.ExecutionRecord) error {
	if m.SetExecutionFunc != nil {
		return m.SetExecutionFunc(ctx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Records == nil {
		m.Records = make(map[string]*shared.ExecutionRecord)
	}
	m.Records[record.ExecutionID] = record
	return nil
}

func (m *MockDatabase) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	if m.UpdateExecutionFunc != nil {
		return m.UpdateExecutionFunc(ctx, id, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Updates == nil {
		m.Updates = make(map[string][]map[string]interface{})
	}
	m.Updates[id] = append(m.Updates[id], data)
	return nil
}

// --- Mock Publisher ---
type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topic string, e event.Event) (string, error)

	mu        sync.Mutex
	Published []event.Event
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error) {
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topic, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, e)
	return "msg-id", nil
}

// --- Mock Storage ---
type MockBlobStore struct {
	WriteFunc func(ctx context.Context, bucket, object string, data []byte) error

	mu      sync.Mutex
	Objects map[string][]byte
}

func (m *MockBlobStore) Write(ctx context.Context, bucket, object string, data []byte) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, bucket, object, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
	}
	m.Objects[bucket+"/"+object] = data
	return nil
}
