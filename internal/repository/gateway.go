package repository

import (
	"context"

	"github.com/GTDGit/catalog_api/internal/models"
)

// ProductFilter narrows ProductStore.List. Zero values disable a filter.
type ProductFilter struct {
	CategoryCode string
	IsActive     *bool
}

// CategoryFilter narrows CategoryStore.List.
type CategoryFilter struct {
	IsActive *bool
}

// ProductStore is the remote products table. Every call is one remote
// statement; failures are returned as *utils.RemoteError and never retried.
type ProductStore interface {
	List(ctx context.Context, filter *ProductFilter) ([]models.Product, error)
	Insert(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, code string, patch *models.ProductPatch) error
	Delete(ctx context.Context, code string) error
	// Reassign points every product of category from at category to.
	Reassign(ctx context.Context, from, to string) error
	// SetActiveByCategory forces is_active on every product of category.
	SetActiveByCategory(ctx context.Context, category string, active bool) error
}

// CategoryStore is the remote categories table, keyed by slug.
type CategoryStore interface {
	List(ctx context.Context, filter *CategoryFilter) ([]models.Category, error)
	Insert(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, slug string, patch *models.CategoryPatch) error
	Delete(ctx context.Context, slug string) error
}

// Gateway is the boundary between the in-memory catalog and the remote store.
type Gateway interface {
	Products() ProductStore
	Categories() CategoryStore
	// Atomic runs fn against a gateway whose writes commit together when the
	// backend supports transactions. Backends without transactions run fn
	// directly; callers must be prepared to compensate on partial failure.
	Atomic(ctx context.Context, fn func(tx Gateway) error) error
	Ping(ctx context.Context) error
}

// AdminConfigStore exposes the stored admin password hash. An empty hash
// means none is configured.
type AdminConfigStore interface {
	PasswordHash(ctx context.Context) (string, error)
}

// StaticPasswordHash is an AdminConfigStore backed by a fixed value.
type StaticPasswordHash string

// PasswordHash implements AdminConfigStore.
func (s StaticPasswordHash) PasswordHash(context.Context) (string, error) {
	return string(s), nil
}

// adminPasswordKey is the admin_config row holding the password hash.
const adminPasswordKey = "admin_password"
