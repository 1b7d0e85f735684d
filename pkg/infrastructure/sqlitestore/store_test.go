package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndRead(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rows, err := store.ReadAllRows(ctx, "Sheet1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, store.AppendRow(ctx, "Sheet1", []interface{}{"Date", "Name", "Distance (km)"}))
	require.NoError(t, store.AppendRow(ctx, "Sheet1", []interface{}{"2024-05-01 07:00:00", "Ride", 25.5}))
	require.NoError(t, store.AppendRow(ctx, "Other", []interface{}{"x"}))

	rows, err = store.ReadAllRows(ctx, "Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []interface{}{"2024-05-01 07:00:00", "Ride", 25.5}, rows[1])
}

func TestClearThenWrite(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteRange(ctx, "Dashboard", "A1", [][]interface{}{{"old"}, {"stale"}, {"rows"}}))
	require.NoError(t, store.ClearSheet(ctx, "Dashboard"))
	require.NoError(t, store.WriteRange(ctx, "Dashboard", "A1", [][]interface{}{{"Year", "Category"}, {2024.0, "Cycling"}}))

	rows, err := store.ReadAllRows(ctx, "Dashboard")
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"Year", "Category"}, {2024.0, "Cycling"}}, rows)
}

func TestWriteRangeOffset(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteRange(ctx, "S", "A1", [][]interface{}{{"a"}, {"b"}}))
	require.NoError(t, store.WriteRange(ctx, "S", "A2", [][]interface{}{{"B"}, {"c"}}))

	rows, err := store.ReadAllRows(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"a"}, {"B"}, {"c"}}, rows)

	assert.Error(t, store.WriteRange(ctx, "S", "B1", nil))
}

func TestGetOrCreateSheet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.GetOrCreateSheet(ctx, "Dashboard", 100, 10))
	require.NoError(t, store.GetOrCreateSheet(ctx, "Dashboard", 100, 10))

	names, err := store.Sheets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dashboard"}, names)
}
