package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/utils"
)

const productColumns = `code, slug, name, category_code, image_url, description, price, images, is_active, created_at, updated_at`

// imageList stores product images as a JSONB array.
type imageList []string

// Value implements driver.Valuer.
func (l imageList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Scan implements sql.Scanner.
func (l *imageList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = imageList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported images type %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode images: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// productRow is the storage shape of a product.
type productRow struct {
	Code         string              `db:"code"`
	Slug         string              `db:"slug"`
	Name         string              `db:"name"`
	CategoryCode string              `db:"category_code"`
	ImageURL     string              `db:"image_url"`
	Description  sql.NullString      `db:"description"`
	Price        decimal.NullDecimal `db:"price"`
	Images       imageList           `db:"images"`
	IsActive     bool                `db:"is_active"`
	CreatedAt    time.Time           `db:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at"`
}

func (r *productRow) toModel() models.Product {
	p := models.Product{
		Code:        r.Code,
		Slug:        r.Slug,
		Name:        r.Name,
		Description: r.Description.String,
		Category:    r.CategoryCode,
		Images:      []string(r.Images),
		IsActive:    r.IsActive,
	}
	if len(p.Images) == 0 && r.ImageURL != "" {
		p.Images = []string{r.ImageURL}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if r.Price.Valid {
		price := r.Price.Decimal
		p.Price = &price
	}
	return p
}

func nullablePrice(p *decimal.Decimal) decimal.NullDecimal {
	if p == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *p, Valid: true}
}

// ProductRepository handles data access for products on PostgreSQL.
type ProductRepository struct {
	db sqlx.ExtContext
}

// NewProductRepository creates a new ProductRepository over a DB or a transaction.
func NewProductRepository(db sqlx.ExtContext) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns products ordered by name.
func (r *ProductRepository) List(ctx context.Context, filter *ProductFilter) ([]models.Product, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter != nil {
		if filter.CategoryCode != "" {
			where += fmt.Sprintf(" AND category_code = $%d", argIdx)
			args = append(args, filter.CategoryCode)
			argIdx++
		}
		if filter.IsActive != nil {
			where += fmt.Sprintf(" AND is_active = $%d", argIdx)
			args = append(args, *filter.IsActive)
		}
	}

	q := `SELECT ` + productColumns + ` FROM products ` + where + ` ORDER BY name`
	var rows []productRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, q, args...); err != nil {
		return nil, utils.NewRemoteError("products.list", err)
	}

	products := make([]models.Product, 0, len(rows))
	for i := range rows {
		products = append(products, rows[i].toModel())
	}
	return products, nil
}

// Insert creates a product row.
func (r *ProductRepository) Insert(ctx context.Context, p *models.Product) error {
	const q = `
        INSERT INTO products (code, slug, name, category_code, image_url, description, price, images, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, q,
		p.Code,
		p.Slug,
		p.Name,
		p.Category,
		p.PrimaryImage(),
		p.Description,
		nullablePrice(p.Price),
		imageList(p.Images),
		p.IsActive,
	)
	return utils.NewRemoteError("products.insert", err)
}

// Update applies a partial update to the product identified by code.
// Updating a code that does not exist affects no rows and is not an error.
func (r *ProductRepository) Update(ctx context.Context, code string, patch *models.ProductPatch) error {
	if patch == nil || patch.IsEmpty() {
		return nil
	}

	sets := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Slug != nil {
		add("slug", *patch.Slug)
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Category != nil {
		add("category_code", *patch.Category)
	}
	if patch.Images != nil {
		add("images", imageList(*patch.Images))
		primary := ""
		if len(*patch.Images) > 0 {
			primary = (*patch.Images)[0]
		}
		add("image_url", primary)
	}
	if patch.ClearPrice {
		add("price", nil)
	} else if patch.Price != nil {
		add("price", nullablePrice(patch.Price))
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, code)
	q := fmt.Sprintf(`UPDATE products SET %s, updated_at = NOW() WHERE code = $%d`, strings.Join(sets, ", "), len(args))
	_, err := r.db.ExecContext(ctx, q, args...)
	return utils.NewRemoteError("products.update", err)
}

// Delete deletes a product by code. Deleting a missing code is a no-op.
func (r *ProductRepository) Delete(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE code = $1`, code)
	return utils.NewRemoteError("products.delete", err)
}

// Reassign repoints every product of category from to category to.
func (r *ProductRepository) Reassign(ctx context.Context, from, to string) error {
	const q = `UPDATE products SET category_code = $2, updated_at = NOW() WHERE category_code = $1`
	_, err := r.db.ExecContext(ctx, q, from, to)
	return utils.NewRemoteError("products.reassign", err)
}

// SetActiveByCategory sets is_active on every product of category.
func (r *ProductRepository) SetActiveByCategory(ctx context.Context, category string, active bool) error {
	const q = `UPDATE products SET is_active = $2, updated_at = NOW() WHERE category_code = $1`
	_, err := r.db.ExecContext(ctx, q, category, active)
	return utils.NewRemoteError("products.set_active", err)
}

// isNoRows reports whether err is the "no rows" sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
