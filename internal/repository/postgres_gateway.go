package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/catalog_api/internal/utils"
)

// PostgresGateway is the Gateway over PostgreSQL. Atomic runs inside a
// database transaction.
type PostgresGateway struct {
	db         *sqlx.DB
	products   *ProductRepository
	categories *CategoryRepository
}

// NewPostgresGateway creates a gateway over db.
func NewPostgresGateway(db *sqlx.DB) *PostgresGateway {
	return &PostgresGateway{
		db:         db,
		products:   NewProductRepository(db),
		categories: NewCategoryRepository(db),
	}
}

// Products implements Gateway.
func (g *PostgresGateway) Products() ProductStore { return g.products }

// Categories implements Gateway.
func (g *PostgresGateway) Categories() CategoryStore { return g.categories }

// Atomic implements Gateway. fn's writes are committed only if it returns nil.
func (g *PostgresGateway) Atomic(ctx context.Context, fn func(tx Gateway) error) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return utils.NewRemoteError("tx.begin", err)
	}

	if err := fn(&txGateway{
		products:   NewProductRepository(tx),
		categories: NewCategoryRepository(tx),
	}); err != nil {
		_ = tx.Rollback()
		return err
	}

	return utils.NewRemoteError("tx.commit", tx.Commit())
}

// Ping implements Gateway.
func (g *PostgresGateway) Ping(ctx context.Context) error {
	return utils.NewRemoteError("ping", g.db.PingContext(ctx))
}

// txGateway is the view of a PostgresGateway inside a transaction.
type txGateway struct {
	products   *ProductRepository
	categories *CategoryRepository
}

func (g *txGateway) Products() ProductStore { return g.products }
func (g *txGateway) Categories() CategoryStore { return g.categories }

// Atomic on an open transaction joins it.
func (g *txGateway) Atomic(_ context.Context, fn func(tx Gateway) error) error {
	return fn(g)
}

func (g *txGateway) Ping(context.Context) error { return nil }
