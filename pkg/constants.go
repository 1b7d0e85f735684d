package shared

const (
	ProjectID = "fitglue-project" // Can be overridden by GOOGLE_CLOUD_PROJECT

	TopicLedgerSynced = "topic-ledger-synced"

	EventTypeLedgerSynced    = "com.fitglue.ledger.synced"
	EventSourceIngest        = "/ledger/ingest"
	CollectionExecutions     = "executions"
	ReportPrefixSync         = "reports/sync"
	ReportPrefixRollup       = "reports/rollup"
	DefaultActivitySheet     = "Sheet1"
	DefaultDashboardSheet    = "Dashboard"
	DefaultFetchWindowSize   = 20
	DefaultWeightLookback    = 7
	DefaultEnrichConcurrency = 4
)
