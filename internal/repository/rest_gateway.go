package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/utils"
	"github.com/GTDGit/catalog_api/pkg/postgrest"
)

const (
	productsTable    = "products"
	categoriesTable  = "categories"
	adminConfigTable = "admin_config"
)

// restProductRow is the JSON shape of a products row on the table API.
type restProductRow struct {
	Code         string              `json:"code"`
	Slug         string              `json:"slug"`
	Name         string              `json:"name"`
	CategoryCode string              `json:"category_code"`
	ImageURL     string              `json:"image_url"`
	Description  *string             `json:"description"`
	Price        decimal.NullDecimal `json:"price"`
	Images       []string            `json:"images"`
	IsActive     bool                `json:"is_active"`
}

func (r *restProductRow) toModel() models.Product {
	row := productRow{
		Code:         r.Code,
		Slug:         r.Slug,
		Name:         r.Name,
		CategoryCode: r.CategoryCode,
		ImageURL:     r.ImageURL,
		Price:        r.Price,
		Images:       imageList(r.Images),
		IsActive:     r.IsActive,
	}
	if r.Description != nil {
		row.Description.String, row.Description.Valid = *r.Description, true
	}
	return row.toModel()
}

func restProductFromModel(p *models.Product) restProductRow {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	desc := p.Description
	return restProductRow{
		Code:         p.Code,
		Slug:         p.Slug,
		Name:         p.Name,
		CategoryCode: p.Category,
		ImageURL:     p.PrimaryImage(),
		Description:  &desc,
		Price:        nullablePrice(p.Price),
		Images:       images,
		IsActive:     p.IsActive,
	}
}

// restCategoryRow is the JSON shape of a categories row on the table API.
type restCategoryRow struct {
	Code     string `json:"code"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	IsActive bool   `json:"is_active"`
}

// RestGateway is the Gateway over a hosted PostgREST table API. The API has
// no multi-statement transactions, so Atomic runs fn directly.
type RestGateway struct {
	products   *RestProductStore
	categories *RestCategoryStore
	client     *postgrest.Client
}

// NewRestGateway creates a gateway over client.
func NewRestGateway(client *postgrest.Client) *RestGateway {
	return &RestGateway{
		products:   &RestProductStore{client: client},
		categories: &RestCategoryStore{client: client},
		client:     client,
	}
}

// Products implements Gateway.
func (g *RestGateway) Products() ProductStore { return g.products }

// Categories implements Gateway.
func (g *RestGateway) Categories() CategoryStore { return g.categories }

// Atomic implements Gateway without transactional guarantees.
func (g *RestGateway) Atomic(_ context.Context, fn func(tx Gateway) error) error {
	return fn(g)
}

// Ping implements Gateway with a one-row read of categories.
func (g *RestGateway) Ping(ctx context.Context) error {
	return utils.NewRemoteError("ping", g.client.Probe(ctx, categoriesTable))
}

// PasswordHash implements AdminConfigStore.
func (g *RestGateway) PasswordHash(ctx context.Context) (string, error) {
	var rows []struct {
		PasswordHash string `json:"password_hash"`
	}
	err := g.client.Select(ctx, adminConfigTable, "password_hash", "", &rows, postgrest.Eq("key", adminPasswordKey))
	if err != nil {
		if postgrest.IsMissingRelation(err) {
			return "", nil
		}
		return "", utils.NewRemoteError("admin_config.get", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].PasswordHash, nil
}

// RestProductStore is the products table on the table API.
type RestProductStore struct {
	client *postgrest.Client
}

// List implements ProductStore.
func (s *RestProductStore) List(ctx context.Context, filter *ProductFilter) ([]models.Product, error) {
	var filters []postgrest.Filter
	if filter != nil {
		if filter.CategoryCode != "" {
			filters = append(filters, postgrest.Eq("category_code", filter.CategoryCode))
		}
		if filter.IsActive != nil {
			filters = append(filters, postgrest.Eq("is_active", *filter.IsActive))
		}
	}

	var rows []restProductRow
	if err := s.client.Select(ctx, productsTable, "*", "name.asc", &rows, filters...); err != nil {
		return nil, utils.NewRemoteError("products.list", err)
	}
	products := make([]models.Product, 0, len(rows))
	for i := range rows {
		products = append(products, rows[i].toModel())
	}
	return products, nil
}

// Insert implements ProductStore.
func (s *RestProductStore) Insert(ctx context.Context, p *models.Product) error {
	row := restProductFromModel(p)
	return utils.NewRemoteError("products.insert", s.client.Insert(ctx, productsTable, []restProductRow{row}))
}

// Update implements ProductStore.
func (s *RestProductStore) Update(ctx context.Context, code string, patch *models.ProductPatch) error {
	if patch == nil || patch.IsEmpty() {
		return nil
	}
	body := map[string]interface{}{}
	if patch.Slug != nil {
		body["slug"] = *patch.Slug
	}
	if patch.Name != nil {
		body["name"] = *patch.Name
	}
	if patch.Description != nil {
		body["description"] = *patch.Description
	}
	if patch.Category != nil {
		body["category_code"] = *patch.Category
	}
	if patch.Images != nil {
		images := *patch.Images
		if images == nil {
			images = []string{}
		}
		body["images"] = images
		body["image_url"] = ""
		if len(images) > 0 {
			body["image_url"] = images[0]
		}
	}
	if patch.ClearPrice {
		body["price"] = nil
	} else if patch.Price != nil {
		body["price"] = patch.Price
	}
	if patch.IsActive != nil {
		body["is_active"] = *patch.IsActive
	}
	if len(body) == 0 {
		return nil
	}
	err := s.client.Update(ctx, productsTable, body, postgrest.Eq("code", code))
	return utils.NewRemoteError("products.update", err)
}

// Delete implements ProductStore.
func (s *RestProductStore) Delete(ctx context.Context, code string) error {
	return utils.NewRemoteError("products.delete", s.client.Delete(ctx, productsTable, postgrest.Eq("code", code)))
}

// Reassign implements ProductStore.
func (s *RestProductStore) Reassign(ctx context.Context, from, to string) error {
	body := map[string]interface{}{"category_code": to}
	err := s.client.Update(ctx, productsTable, body, postgrest.Eq("category_code", from))
	return utils.NewRemoteError("products.reassign", err)
}

// SetActiveByCategory implements ProductStore.
func (s *RestProductStore) SetActiveByCategory(ctx context.Context, category string, active bool) error {
	body := map[string]interface{}{"is_active": active}
	err := s.client.Update(ctx, productsTable, body, postgrest.Eq("category_code", category))
	return utils.NewRemoteError("products.set_active", err)
}

// RestCategoryStore is the categories table on the table API.
type RestCategoryStore struct {
	client *postgrest.Client
}

// List implements CategoryStore.
func (s *RestCategoryStore) List(ctx context.Context, filter *CategoryFilter) ([]models.Category, error) {
	var filters []postgrest.Filter
	if filter != nil && filter.IsActive != nil {
		filters = append(filters, postgrest.Eq("is_active", *filter.IsActive))
	}

	var rows []restCategoryRow
	if err := s.client.Select(ctx, categoriesTable, "code,slug,name,image_url,is_active", "name.asc", &rows, filters...); err != nil {
		return nil, utils.NewRemoteError("categories.list", err)
	}
	categories := make([]models.Category, 0, len(rows))
	for _, r := range rows {
		categories = append(categories, models.Category{
			Code:     r.Code,
			Slug:     r.Slug,
			Name:     r.Name,
			ImageURL: r.ImageURL,
			IsActive: r.IsActive,
		})
	}
	return categories, nil
}

// Insert implements CategoryStore.
func (s *RestCategoryStore) Insert(ctx context.Context, c *models.Category) error {
	row := restCategoryRow{Code: c.Code, Slug: c.Slug, Name: c.Name, ImageURL: c.ImageURL, IsActive: c.IsActive}
	return utils.NewRemoteError("categories.insert", s.client.Insert(ctx, categoriesTable, []restCategoryRow{row}))
}

// Update implements CategoryStore.
func (s *RestCategoryStore) Update(ctx context.Context, slug string, patch *models.CategoryPatch) error {
	if patch == nil || patch.IsEmpty() {
		return nil
	}
	body := map[string]interface{}{}
	if patch.Code != nil {
		body["code"] = *patch.Code
	}
	if patch.Slug != nil {
		body["slug"] = *patch.Slug
	}
	if patch.Name != nil {
		body["name"] = *patch.Name
	}
	if patch.ImageURL != nil {
		body["image_url"] = *patch.ImageURL
	}
	if patch.IsActive != nil {
		body["is_active"] = *patch.IsActive
	}
	err := s.client.Update(ctx, categoriesTable, body, postgrest.Eq("slug", slug))
	return utils.NewRemoteError("categories.update", err)
}

// Delete implements CategoryStore.
func (s *RestCategoryStore) Delete(ctx context.Context, slug string) error {
	return utils.NewRemoteError("categories.delete", s.client.Delete(ctx, categoriesTable, postgrest.Eq("slug", slug)))
}
