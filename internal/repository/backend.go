package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/config"
	"github.com/GTDGit/catalog_api/internal/database"
	"github.com/GTDGit/catalog_api/pkg/postgrest"
)

// Backend is the store selected by STORE_DRIVER.
type Backend struct {
	Gateway     Gateway
	AdminConfig AdminConfigStore

	// DB is set for the postgres driver only.
	DB *sqlx.DB
}

// Open connects the configured store. For postgres it also applies pending
// migrations.
func Open(cfg *config.Config) (*Backend, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := database.Connect(&cfg.DB)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db.DB, cfg.DB.MigrationsPath); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info().Str("driver", cfg.Store.Driver).Msg("Database connected and migrations applied")
		return &Backend{
			Gateway:     NewPostgresGateway(db),
			AdminConfig: NewAdminConfigRepository(db),
			DB:          db,
		}, nil

	case config.StoreREST:
		client := postgrest.NewClient(postgrest.Config{
			BaseURL: cfg.REST.URL,
			APIKey:  cfg.REST.APIKey,
			Timeout: cfg.REST.Timeout,
			Debug:   cfg.Env != "production",
		})
		gw := NewRestGateway(client)
		log.Info().Str("driver", cfg.Store.Driver).Str("url", cfg.REST.URL).Msg("Using hosted table API")
		return &Backend{Gateway: gw, AdminConfig: gw}, nil

	case config.StoreMemory:
		gw := NewMemoryGateway()
		log.Warn().Msg("Using in-memory store; catalog data is lost on restart")
		return &Backend{Gateway: gw, AdminConfig: gw}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Close releases the underlying connection, if any.
func (b *Backend) Close() error {
	if b.DB != nil {
		return b.DB.Close()
	}
	return nil
}
