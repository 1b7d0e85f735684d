package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rebuilddashboard "github.com/fitglue/ledger/functions/rebuild-dashboard"
	syncactivities "github.com/fitglue/ledger/functions/sync-activities"
	"github.com/fitglue/ledger/pkg/bootstrap"
	"github.com/fitglue/ledger/pkg/framework"
)

const serveSource = "/ledger/serve"

type server struct {
	svc    *bootstrap.Service
	logger *slog.Logger

	syncMu   sync.Mutex
	rollupMu sync.Mutex
}

func newRouter(svc *bootstrap.Service, logger *slog.Logger) http.Handler {
	s := &server{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/sync", s.trigger(&s.syncMu, syncactivities.ServiceName, syncactivities.Validate, syncactivities.Handler))
	r.Post("/rollup", s.trigger(&s.rollupMu, rebuilddashboard.ServiceName, rebuilddashboard.Validate, rebuilddashboard.Handler))
	return r
}

// trigger runs handler once per request. Overlapping runs of the same engine
// are rejected with 409; a configuration the engine cannot run with is
// rejected with 503 before an execution is recorded.
func (s *server) trigger(mu *sync.Mutex, service string, validate func(*bootstrap.Config) error, handler framework.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := validate(s.svc.Config); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		if !mu.TryLock() {
			writeJSON(w, http.StatusConflict, map[string]string{"error": service + " already running"})
			return
		}
		defer mu.Unlock()

		// A run must finish its appends even if the caller goes away.
		ctx := context.WithoutCancel(r.Context())
		outputs, err := framework.Run(ctx, service, framework.TriggerHTTP, s.svc, framework.ManualEvent(serveSource), handler)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error(), "outputs": outputs})
			return
		}
		writeJSON(w, http.StatusOK, outputs)
	}
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func serve(ctx context.Context, svc *bootstrap.Service, port int, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newRouter(svc, logger),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
