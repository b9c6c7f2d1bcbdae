package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/utils"
)

const categoryColumns = `code, slug, name, image_url, is_active, created_at, updated_at`

// PostgreSQL error codes the repositories translate.
const (
	pqForeignKeyViolation = "23503"
	pqUndefinedTable      = "42P01"
)

// categoryRow is the storage shape of a category.
type categoryRow struct {
	Code      string    `db:"code"`
	Slug      string    `db:"slug"`
	Name      string    `db:"name"`
	ImageURL  string    `db:"image_url"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *categoryRow) toModel() models.Category {
	return models.Category{
		Code:     r.Code,
		Slug:     r.Slug,
		Name:     r.Name,
		ImageURL: r.ImageURL,
		IsActive: r.IsActive,
	}
}

// CategoryRepository handles data access for categories on PostgreSQL.
type CategoryRepository struct {
	db sqlx.ExtContext
}

// NewCategoryRepository creates a new CategoryRepository over a DB or a transaction.
func NewCategoryRepository(db sqlx.ExtContext) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context, filter *CategoryFilter) ([]models.Category, error) {
	q := `SELECT ` + categoryColumns + ` FROM categories`
	args := []interface{}{}
	if filter != nil && filter.IsActive != nil {
		q += ` WHERE is_active = $1`
		args = append(args, *filter.IsActive)
	}
	q += ` ORDER BY name`

	var rows []categoryRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, q, args...); err != nil {
		return nil, utils.NewRemoteError("categories.list", err)
	}

	categories := make([]models.Category, 0, len(rows))
	for i := range rows {
		categories = append(categories, rows[i].toModel())
	}
	return categories, nil
}

// Insert creates a category row.
func (r *CategoryRepository) Insert(ctx context.Context, c *models.Category) error {
	const q = `
        INSERT INTO categories (code, slug, name, image_url, is_active)
        VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, q, c.Code, c.Slug, c.Name, c.ImageURL, c.IsActive)
	return utils.NewRemoteError("categories.insert", err)
}

// Update applies a partial update to the category identified by slug.
func (r *CategoryRepository) Update(ctx context.Context, slug string, patch *models.CategoryPatch) error {
	if patch == nil || patch.IsEmpty() {
		return nil
	}

	sets := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Code != nil {
		add("code", *patch.Code)
	}
	if patch.Slug != nil {
		add("slug", *patch.Slug)
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.ImageURL != nil {
		add("image_url", *patch.ImageURL)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}

	args = append(args, slug)
	q := fmt.Sprintf(`UPDATE categories SET %s, updated_at = NOW() WHERE slug = $%d`, strings.Join(sets, ", "), len(args))
	_, err := r.db.ExecContext(ctx, q, args...)
	return utils.NewRemoteError("categories.update", err)
}

// Delete deletes a category by slug. The products foreign key rejects the
// delete while the category is referenced.
func (r *CategoryRepository) Delete(ctx context.Context, slug string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE slug = $1`, slug)
	if pqCode(err) == pqForeignKeyViolation {
		return fmt.Errorf("%w: category %q is referenced by products", utils.ErrCategoryInUse, slug)
	}
	return utils.NewRemoteError("categories.delete", err)
}

// AdminConfigRepository reads the admin password hash from admin_config.
type AdminConfigRepository struct {
	db sqlx.QueryerContext
}

// NewAdminConfigRepository creates a new AdminConfigRepository.
func NewAdminConfigRepository(db sqlx.QueryerContext) *AdminConfigRepository {
	return &AdminConfigRepository{db: db}
}

// PasswordHash returns the stored hash, or "" when the row or table is missing.
func (r *AdminConfigRepository) PasswordHash(ctx context.Context) (string, error) {
	var hash string
	err := sqlx.GetContext(ctx, r.db, &hash, `SELECT password_hash FROM admin_config WHERE key = $1 LIMIT 1`, adminPasswordKey)
	switch {
	case err == nil:
		return hash, nil
	case isNoRows(err), pqCode(err) == pqUndefinedTable:
		return "", nil
	default:
		return "", utils.NewRemoteError("admin_config.get", err)
	}
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
