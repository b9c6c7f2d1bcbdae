package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// CatalogLoader reloads the in-memory catalog from the remote store.
type CatalogLoader interface {
	LoadAll(ctx context.Context) error
}

// CatalogRefreshWorker periodically reloads the catalog so writes made by
// other admins or directly in the store become visible.
type CatalogRefreshWorker struct {
	catalog  CatalogLoader
	interval time.Duration
}

// NewCatalogRefreshWorker constructs a CatalogRefreshWorker.
func NewCatalogRefreshWorker(catalog CatalogLoader, interval time.Duration) *CatalogRefreshWorker {
	return &CatalogRefreshWorker{
		catalog:  catalog,
		interval: interval,
	}
}

// Start begins the periodic refresh loop and listens for context cancellation.
// The first load is done by the caller at boot, so the loop waits one
// interval before its first run.
func (w *CatalogRefreshWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		log.Info().Msg("Catalog refresh worker disabled")
		return
	}
	log.Info().Dur("interval", w.interval).Msg("Starting catalog refresh worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Catalog refresh worker stopped")
			return
		}
	}
}

func (w *CatalogRefreshWorker) run(ctx context.Context) {
	start := time.Now()
	if err := w.catalog.LoadAll(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to refresh catalog")
		return
	}

	log.Debug().Dur("duration", time.Since(start)).Msg("Catalog refresh completed")
}
