// Package sqlitestore keeps the activity table and summary view in a local
// SQLite file, for running the ledger without a spreadsheet.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	_ "modernc.org/sqlite"

	shared "github.com/fitglue/ledger/pkg"
)

const schema = `
	CREATE TABLE IF NOT EXISTS sheets (
		name TEXT PRIMARY KEY,
		row_count INTEGER NOT NULL,
		col_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cells (
		sheet TEXT NOT NULL,
		row_idx INTEGER NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (sheet, row_idx)
	);
`

// Default grid size of sheets created implicitly by a write.
const (
	defaultRows = 1000
	defaultCols = 26
)

var startCellPattern = regexp.MustCompile(`^A([1-9][0-9]*)$`)

// Store is a shared.TableStore on SQLite. Each row is stored as a JSON array
// so numbers read back as float64, like unformatted spreadsheet values.
type Store struct {
	db *sql.DB
}

var _ shared.TableStore = (*Store)(nil)

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ReadAllRows(ctx context.Context, sheet string) ([][]interface{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM cells
		WHERE sheet = ?
		ORDER BY row_idx ASC
	`, sheet)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", sheet, err)
	}
	defer rows.Close()

	var out [][]interface{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var cells []interface{}
		if err := json.Unmarshal([]byte(payload), &cells); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

func ensureSheet(ctx context.Context, tx *sql.Tx, name string, rowCount, colCount int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sheets (name, row_count, col_count) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, rowCount, colCount)
	return err
}

func (s *Store) AppendRow(ctx context.Context, sheet string, cells []interface{}) error {
	payload, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureSheet(ctx, tx, sheet, defaultRows, defaultCols); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cells (sheet, row_idx, payload)
			VALUES (?, (SELECT COALESCE(MAX(row_idx) + 1, 0) FROM cells WHERE sheet = ?), ?)
		`, sheet, sheet, string(payload))
		return err
	})
}

func (s *Store) ClearSheet(ctx context.Context, sheet string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cells WHERE sheet = ?`, sheet); err != nil {
		return fmt.Errorf("clear %s: %w", sheet, err)
	}
	return nil
}

// WriteRange writes rows starting at column A of the given row. Other start
// columns are not supported.
func (s *Store) WriteRange(ctx context.Context, sheet, startCell string, rows [][]interface{}) error {
	m := startCellPattern.FindStringSubmatch(startCell)
	if m == nil {
		return fmt.Errorf("unsupported start cell %q", startCell)
	}
	first, err := strconv.Atoi(m[1])
	if err != nil {
		return fmt.Errorf("start cell %q: %w", startCell, err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureSheet(ctx, tx, sheet, defaultRows, defaultCols); err != nil {
			return err
		}
		for i, row := range rows {
			payload, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("encode row %d: %w", i, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cells (sheet, row_idx, payload) VALUES (?, ?, ?)
				ON CONFLICT(sheet, row_idx) DO UPDATE SET payload = excluded.payload
			`, sheet, first-1+i, string(payload)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetOrCreateSheet(ctx context.Context, name string, rowCount, colCount int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return ensureSheet(ctx, tx, name, rowCount, colCount)
	})
}

// Sheets lists the known sheet names.
func (s *Store) Sheets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sheets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query sheets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
