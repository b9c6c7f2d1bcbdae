package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/service"
	"github.com/GTDGit/catalog_api/internal/utils"
)

// CatalogHandler serves the public storefront. Only active categories and
// visible products are reachable.
type CatalogHandler struct {
	catalog      *service.CatalogService
	contactPhone string
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService, contactPhone string) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, contactPhone: contactPhone}
}

// PublicProduct is a storefront product with its contact link.
type PublicProduct struct {
	models.Product
	ContactURL string `json:"contactUrl"`
}

// PublicCategory is a storefront category with its visible product count.
type PublicCategory struct {
	models.Category
	ProductCount int `json:"productCount"`
}

func (h *CatalogHandler) present(p models.Product) PublicProduct {
	images := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, utils.NormalizeImageURL(img))
	}
	p.Images = images
	return PublicProduct{
		Product:    p,
		ContactURL: utils.ContactURL(h.contactPhone, p.Name, p.Code),
	}
}

// ListCategories handles GET /v1/catalog/categories
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories := h.catalog.ActiveCategories()
	out := make([]PublicCategory, 0, len(categories))
	for _, cat := range categories {
		slug := cat.Slug
		cat.ImageURL = utils.NormalizeImageURL(cat.ImageURL)
		out = append(out, PublicCategory{
			Category:     cat,
			ProductCount: len(h.catalog.VisibleProducts(service.ProductQuery{CategorySlug: &slug})),
		})
	}
	utils.SuccessList(c, http.StatusOK, "Categories retrieved", out, len(out))
}

// GetCategory handles GET /v1/catalog/categories/:slug
func (h *CatalogHandler) GetCategory(c *gin.Context) {
	cat, err := h.catalog.ActiveCategory(c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	slug := cat.Slug
	products := h.catalog.VisibleProducts(service.ProductQuery{CategorySlug: &slug})
	out := make([]PublicProduct, 0, len(products))
	for _, p := range products {
		out = append(out, h.present(p))
	}
	cat.ImageURL = utils.NormalizeImageURL(cat.ImageURL)

	utils.Success(c, http.StatusOK, "Category retrieved", gin.H{
		"category": cat,
		"products": out,
	})
}

// ListProducts handles GET /v1/catalog/products?search=&category=
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	q := service.ProductQuery{SearchTerm: c.Query("search")}
	if category := strings.TrimSpace(c.Query("category")); category != "" && category != "all" {
		q.CategorySlug = &category
	}

	products := h.catalog.VisibleProducts(q)
	out := make([]PublicProduct, 0, len(products))
	for _, p := range products {
		out = append(out, h.present(p))
	}
	utils.SuccessList(c, http.StatusOK, "Products retrieved", out, len(out))
}

// GetProduct handles GET /v1/catalog/products/:code
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	p, err := h.catalog.VisibleProduct(c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Product retrieved", h.present(*p))
}
