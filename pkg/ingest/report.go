package ingest

// ActivityError describes one activity that could not be appended.
type ActivityError struct {
	StartTime string `json:"start_time"`
	Name      string `json:"name"`
	Message   string `json:"message"`
}

// SyncReport summarises one ingestion run.
type SyncReport struct {
	Added   int             `json:"added"`
	Skipped int             `json:"skipped"`
	Errors  []ActivityError `json:"errors"`
	// Defaults counts appended rows per side-channel field that fell back to
	// its default value.
	Defaults map[string]int `json:"defaults,omitempty"`
}

func newReport() *SyncReport {
	return &SyncReport{
		Errors:   []ActivityError{},
		Defaults: make(map[string]int),
	}
}

// Outputs renders the report as execution outputs. A run with per-activity
// errors is reported as partial.
func (r *SyncReport) Outputs() map[string]interface{} {
	status := "SUCCESS"
	if len(r.Errors) > 0 {
		status = "PARTIAL"
	}
	return map[string]interface{}{
		"status":   status,
		"added":    r.Added,
		"skipped":  r.Skipped,
		"errors":   r.Errors,
		"defaults": r.Defaults,
	}
}
