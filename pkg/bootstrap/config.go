package bootstrap

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	shared "github.com/fitglue/ledger/pkg"
	"github.com/fitglue/ledger/pkg/infrastructure/sentry"
)

// Store backends.
const (
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

// Summary modes.
const (
	SummaryModeFull     = "full"
	SummaryModeDistance = "distance"
)

// MinWeightLookbackDays is the shortest body-composition window accepted.
const MinWeightLookbackDays = 7

// Config holds standard configuration for all services
type Config struct {
	ProjectID          string
	EnablePublish      bool
	EnableExecutionLog bool
	ReportBucket       string
	LogLevel           string
	Port               int
	RequestTimeout     time.Duration

	CategoryMappingFile string

	Garmin   GarminConfig
	Store    StoreConfig
	Pipeline PipelineConfig
	Sentry   sentry.Config
}

// GarminConfig holds the activity source credentials.
type GarminConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
	APIURL       string
	TokenURL     string
	DisplayName  string
}

// Configured reports whether enough credentials are present to build a client.
func (g GarminConfig) Configured() bool {
	return g.ClientID != "" && g.RefreshToken != ""
}

// StoreConfig locates the activity table.
type StoreConfig struct {
	Backend           string
	GoogleCredentials string
	SheetID           string
	SQLitePath        string
	ActivitySheet     string
	DashboardSheet    string
}

// PipelineConfig holds the options shared by the ingestion and rollup
// engines.
type PipelineConfig struct {
	EnrichWeight       bool
	EnrichHRV          bool
	EnrichSleep        bool
	EnrichRestingHR    bool
	SummaryMode        string
	FetchWindowSize    int
	WeightLookbackDays int
	Concurrency        int
}

// ConfigError lists every missing or invalid setting.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required configuration: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid configuration: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

func (e *ConfigError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

func (e *ConfigError) orNil() error {
	if e.empty() {
		return nil
	}
	return e
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("google_cloud_project", shared.ProjectID)
	v.SetDefault("enable_publish", false)
	v.SetDefault("enable_execution_log", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("port", "8080")
	v.SetDefault("request_timeout", "30s")

	v.SetDefault("garmin_api_url", "https://connectapi.garmin.com")
	v.SetDefault("garmin_token_url", "https://connectapi.garmin.com/di-oauth2-service/oauth/token")

	v.SetDefault("store_backend", BackendSheets)
	v.SetDefault("sqlite_path", "ledger.db")
	v.SetDefault("activity_sheet", shared.DefaultActivitySheet)
	v.SetDefault("dashboard_sheet", shared.DefaultDashboardSheet)

	v.SetDefault("fetch_window_size", strconv.Itoa(shared.DefaultFetchWindowSize))
	v.SetDefault("summary_mode", SummaryModeFull)
	v.SetDefault("enrich_weight", true)
	v.SetDefault("enrich_hrv", true)
	v.SetDefault("enrich_sleep", true)
	v.SetDefault("enrich_resting_hr", true)
	v.SetDefault("weight_lookback_days", strconv.Itoa(shared.DefaultWeightLookback))
	v.SetDefault("enrich_concurrency", strconv.Itoa(shared.DefaultEnrichConcurrency))
}

// LoadConfig reads configuration from environment variables. Values that are
// present but malformed are reported as a ConfigError; missing credentials are
// only reported by ValidateForSync and ValidateForRollup.
func LoadConfig() (*Config, error) {
	return loadConfig(viper.New())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	cerr := &ConfigError{}
	intSetting := func(key string) int {
		raw := strings.TrimSpace(v.GetString(key))
		n, err := strconv.Atoi(raw)
		if err != nil {
			cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("%s=%q", strings.ToUpper(key), raw))
		}
		return n
	}
	boolSetting := func(key string) bool {
		raw := strings.TrimSpace(v.GetString(key))
		b, err := strconv.ParseBool(raw)
		if err != nil {
			cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("%s=%q", strings.ToUpper(key), raw))
		}
		return b
	}

	timeout, err := time.ParseDuration(v.GetString("request_timeout"))
	if err != nil || timeout <= 0 {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("REQUEST_TIMEOUT=%q", v.GetString("request_timeout")))
	}

	cfg := &Config{
		ProjectID:           v.GetString("google_cloud_project"),
		EnablePublish:       boolSetting("enable_publish"),
		EnableExecutionLog:  boolSetting("enable_execution_log"),
		ReportBucket:        v.GetString("report_bucket"),
		LogLevel:            strings.ToLower(v.GetString("log_level")),
		Port:                intSetting("port"),
		RequestTimeout:      timeout,
		CategoryMappingFile: v.GetString("category_mapping_file"),
		Garmin: GarminConfig{
			ClientID:     v.GetString("garmin_client_id"),
			ClientSecret: v.GetString("garmin_client_secret"),
			RefreshToken: v.GetString("garmin_refresh_token"),
			AccessToken:  v.GetString("garmin_access_token"),
			APIURL:       strings.TrimRight(v.GetString("garmin_api_url"), "/"),
			TokenURL:     v.GetString("garmin_token_url"),
			DisplayName:  v.GetString("garmin_display_name"),
		},
		Store: StoreConfig{
			Backend:           strings.ToLower(v.GetString("store_backend")),
			GoogleCredentials: v.GetString("google_credentials"),
			SheetID:           v.GetString("sheet_id"),
			SQLitePath:        v.GetString("sqlite_path"),
			ActivitySheet:     v.GetString("activity_sheet"),
			DashboardSheet:    v.GetString("dashboard_sheet"),
		},
		Pipeline: PipelineConfig{
			EnrichWeight:       boolSetting("enrich_weight"),
			EnrichHRV:          boolSetting("enrich_hrv"),
			EnrichSleep:        boolSetting("enrich_sleep"),
			EnrichRestingHR:    boolSetting("enrich_resting_hr"),
			SummaryMode:        strings.ToLower(v.GetString("summary_mode")),
			FetchWindowSize:    intSetting("fetch_window_size"),
			WeightLookbackDays: intSetting("weight_lookback_days"),
			Concurrency:        intSetting("enrich_concurrency"),
		},
		Sentry: sentry.Config{
			DSN:         v.GetString("sentry_dsn"),
			Environment: v.GetString("environment"),
			Release:     v.GetString("release"),
			ServerName:  v.GetString("k_service"),
		},
	}

	cfg.validateCommon(cerr)
	if err := cerr.orNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validateCommon(cerr *ConfigError) {
	switch c.Store.Backend {
	case BackendSheets, BackendSQLite:
	default:
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("STORE_BACKEND=%q (want sheets or sqlite)", c.Store.Backend))
	}
	switch c.Pipeline.SummaryMode {
	case SummaryModeFull, SummaryModeDistance:
	default:
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("SUMMARY_MODE=%q (want full or distance)", c.Pipeline.SummaryMode))
	}
	if c.Pipeline.FetchWindowSize <= 0 {
		cerr.Invalid = append(cerr.Invalid, "FETCH_WINDOW_SIZE must be positive")
	}
	if c.Pipeline.WeightLookbackDays < MinWeightLookbackDays {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("WEIGHT_LOOKBACK_DAYS must be at least %d", MinWeightLookbackDays))
	}
	if c.Pipeline.Concurrency < 1 {
		cerr.Invalid = append(cerr.Invalid, "ENRICH_CONCURRENCY must be at least 1")
	}
	if c.ActivityAndDashboardClash() {
		cerr.Invalid = append(cerr.Invalid, "ACTIVITY_SHEET and DASHBOARD_SHEET must differ")
	}
}

// ActivityAndDashboardClash reports whether the summary view would overwrite
// the activity table.
func (c *Config) ActivityAndDashboardClash() bool {
	return strings.EqualFold(c.Store.ActivitySheet, c.Store.DashboardSheet)
}

func (c *Config) storeMissing() []string {
	switch c.Store.Backend {
	case BackendSheets:
		var missing []string
		if c.Store.GoogleCredentials == "" {
			missing = append(missing, "GOOGLE_CREDENTIALS")
		}
		if c.Store.SheetID == "" {
			missing = append(missing, "SHEET_ID")
		}
		return missing
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return []string{"SQLITE_PATH"}
		}
	}
	return nil
}

// ValidateForSync checks the settings the ingestion engine needs.
func (c *Config) ValidateForSync() error {
	cerr := &ConfigError{}
	if c.Garmin.ClientID == "" {
		cerr.Missing = append(cerr.Missing, "GARMIN_CLIENT_ID")
	}
	if c.Garmin.RefreshToken == "" {
		cerr.Missing = append(cerr.Missing, "GARMIN_REFRESH_TOKEN")
	}
	cerr.Missing = append(cerr.Missing, c.storeMissing()...)
	return cerr.orNil()
}

// ValidateForRollup checks the settings the rollup engine needs.
func (c *Config) ValidateForRollup() error {
	cerr := &ConfigError{Missing: c.storeMissing()}
	return cerr.orNil()
}
