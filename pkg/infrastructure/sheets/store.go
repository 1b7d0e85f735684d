// Package sheets implements the activity table on Google Sheets.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	shared "github.com/fitglue/ledger/pkg"
)

// Store is a shared.TableStore backed by one spreadsheet. Cells are written
// with RAW input so values are stored exactly as given.
type Store struct {
	svc           *sheets.Service
	spreadsheetID string
	timeout       time.Duration
}

var _ shared.TableStore = (*Store)(nil)

// New creates a Store authenticated with a service-account JSON key.
func New(ctx context.Context, credentialsJSON []byte, spreadsheetID string, timeout time.Duration) (*Store, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials: %w", err)
	}
	return NewWithOptions(ctx, spreadsheetID, timeout, option.WithCredentials(creds))
}

// NewWithOptions creates a Store from explicit client options.
func NewWithOptions(ctx context.Context, spreadsheetID string, timeout time.Duration, opts ...option.ClientOption) (*Store, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Store{svc: svc, spreadsheetID: spreadsheetID, timeout: timeout}, nil
}

func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// quote returns sheet as an A1 sheet reference.
func quote(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

func (s *Store) ReadAllRows(ctx context.Context, sheet string) ([][]interface{}, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quote(sheet)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	return resp.Values, nil
}

func (s *Store) AppendRow(ctx context.Context, sheet string, cells []interface{}) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, quote(sheet)+"!A1", &sheets.ValueRange{
		Values: [][]interface{}{cells},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	return nil
}

func (s *Store) ClearSheet(ctx context.Context, sheet string) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, quote(sheet), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", sheet, err)
	}
	return nil
}

func (s *Store) WriteRange(ctx context.Context, sheet, startCell string, rows [][]interface{}) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, quote(sheet)+"!"+startCell, &sheets.ValueRange{
		Values: rows,
	}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, startCell, err)
	}
	return nil
}

func (s *Store) GetOrCreateSheet(ctx context.Context, name string, rows, cols int) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == name {
			return nil
		}
	}

	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: name,
					GridProperties: &sheets.GridProperties{
						RowCount:    int64(rows),
						ColumnCount: int64(cols),
					},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	return nil
}
