// Package app implements the ingestion server: readings POSTed by the bridge
// are stored in BoltDB, pushed to websocket clients and served back through
// a small JSON and CSV API, next to a dataset forecast and dashboard accounts.
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"SolarFeed/internal/metrics"
	"SolarFeed/internal/model"
)

// App is the ingestion server.
type App struct {
	cfg     model.IngestConfig
	store   *Store
	hub     *Hub
	logger  *slog.Logger
	metrics *metrics.Metrics
	mux     *http.ServeMux
	dataset *datasetCache
	now     func() time.Time

	secret     []byte
	bcryptCost int
}

// New opens the reading store and registers the routes. m may be nil, in
// which case /metrics is not served.
func New(cfg model.IngestConfig, logger *slog.Logger, m *metrics.Metrics) (*App, error) {
	store, err := OpenStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	secret := []byte(cfg.AuthSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("session secret: %w", err)
		}
		logger.Warn("no auth_secret configured, sessions end when the server restarts")
	}
	a := &App{
		cfg:        cfg,
		store:      store,
		hub:        NewHub(logger, m),
		logger:     logger,
		metrics:    m,
		mux:        http.NewServeMux(),
		dataset:    &datasetCache{path: cfg.ForecastDataset},
		now:        time.Now,
		secret:     secret,
		bcryptCost: bcrypt.DefaultCost,
	}
	a.registerRoutes()
	return a, nil
}

// Handler returns the root handler with request logging applied.
func (a *App) Handler() http.Handler {
	return logRequests(a.logger, a.mux)
}

// Run serves HTTP on cfg.Addr until ctx is done, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("ingest server listening", "addr", a.cfg.Addr, "db", a.cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		a.logger.Info("ingest server stopped")
		return nil
	})
	return g.Wait()
}

// Close disconnects websocket clients and closes the store.
func (a *App) Close() error {
	a.hub.Close()
	return a.store.Close()
}
