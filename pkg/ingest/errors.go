package ingest

import "fmt"

// SourceError means the activity source could not be reached or refused the
// request. Nothing is written to the store when it is returned.
type SourceError struct {
	Op  string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("activity source: %s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// StoreError means a read or write against the activity table failed. Rows
// appended before the failure stay in the table.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("activity table: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
