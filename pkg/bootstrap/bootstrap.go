package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"

	shared "github.com/fitglue/ledger/pkg"
	"github.com/fitglue/ledger/pkg/domain/category"
	"github.com/fitglue/ledger/pkg/infrastructure/database"
	"github.com/fitglue/ledger/pkg/infrastructure/oauth"
	infrapubsub "github.com/fitglue/ledger/pkg/infrastructure/pubsub"
	"github.com/fitglue/ledger/pkg/infrastructure/sheets"
	"github.com/fitglue/ledger/pkg/infrastructure/sqlitestore"
	infrastorage "github.com/fitglue/ledger/pkg/infrastructure/storage"
	"github.com/fitglue/ledger/pkg/integrations/garmin"
)

// Service holds initialized dependencies
type Service struct {
	DB         shared.Database
	Store      shared.BlobStore
	Pub        shared.Publisher
	Table      shared.TableStore
	Source     shared.ActivitySource // nil without source credentials
	Categories *category.Mapping
	Config     *Config
	Logger     *slog.Logger // base logger; nil means a JSON logger on stdout

	closers []func() error
}

// Close releases the clients opened by NewService.
func (s *Service) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// NewService initializes all standard dependencies. Cloud clients are only
// created when the corresponding feature is enabled.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	InitLogger(ParseLevel(cfg.LogLevel))
	slog.Info("Initializing service", "project_id", cfg.ProjectID, "store_backend", cfg.Store.Backend)

	svc := &Service{Config: cfg}
	if err := svc.init(ctx); err != nil {
		svc.Close()
		return nil, err
	}
	return svc, nil
}

func (s *Service) init(ctx context.Context) error {
	cfg := s.Config

	// Execution log
	if cfg.EnableExecutionLog {
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			slog.Error("Firestore init failed", "error", err)
			return fmt.Errorf("firestore init: %w", err)
		}
		s.closers = append(s.closers, fsClient.Close)
		s.DB = database.NewFirestoreAdapter(fsClient)
		slog.Info("Execution log: Firestore")
	} else {
		s.DB = &database.LogDatabase{}
		slog.Info("Execution log: MOCK (LogDatabase)")
	}

	// Pub/Sub
	if cfg.EnablePublish {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			slog.Error("PubSub init failed", "error", err)
			return fmt.Errorf("pubsub init: %w", err)
		}
		s.closers = append(s.closers, psClient.Close)
		s.Pub = &infrapubsub.PubSubAdapter{Client: psClient}
		slog.Info("Pub/Sub: REAL (ENABLE_PUBLISH=true)")
	} else {
		s.Pub = &infrapubsub.LogPublisher{}
		slog.Info("Pub/Sub: MOCK (LogPublisher)")
	}

	// Report archive
	if cfg.ReportBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			slog.Error("Storage init failed", "error", err)
			return fmt.Errorf("storage init: %w", err)
		}
		s.closers = append(s.closers, gcsClient.Close)
		s.Store = &infrastorage.StorageAdapter{Client: gcsClient}
	}

	// Activity table
	switch cfg.Store.Backend {
	case BackendSQLite:
		store, err := sqlitestore.Open(cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite store: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		s.Table = store
	default:
		if cfg.Store.GoogleCredentials != "" && cfg.Store.SheetID != "" {
			store, err := sheets.New(ctx, []byte(cfg.Store.GoogleCredentials), cfg.Store.SheetID, cfg.RequestTimeout)
			if err != nil {
				return fmt.Errorf("sheets store: %w", err)
			}
			s.Table = store
		}
	}

	// Category mapping
	s.Categories = category.Default()
	if cfg.CategoryMappingFile != "" {
		mapping, err := category.LoadFile(cfg.CategoryMappingFile)
		if err != nil {
			return fmt.Errorf("category mapping: %w", err)
		}
		s.Categories = mapping
	}

	// Activity source
	if cfg.Garmin.Configured() {
		s.Source = NewGarminClient(cfg.Garmin, cfg.RequestTimeout)
	}
	return nil
}

// NewGarminClient builds the activity source client with bearer
// authentication and refresh-token renewal.
func NewGarminClient(g GarminConfig, timeout time.Duration) *garmin.Client {
	oauthCfg := &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: g.TokenURL},
	}
	source := oauth.NewRefreshTokenSource(oauthCfg, g.AccessToken, g.RefreshToken)
	httpClient := &http.Client{
		Transport: &oauth.Transport{Source: source},
		Timeout:   timeout,
	}
	return garmin.NewClient(g.APIURL, httpClient, g.DisplayName)
}
