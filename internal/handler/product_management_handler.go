package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/service"
	"github.com/GTDGit/catalog_api/internal/utils"
)

// ProductManagementHandler handles back-office product and category CRUD.
type ProductManagementHandler struct {
	catalog *service.CatalogService
}

// NewProductManagementHandler constructs a ProductManagementHandler.
func NewProductManagementHandler(catalog *service.CatalogService) *ProductManagementHandler {
	return &ProductManagementHandler{catalog: catalog}
}

// ListProducts handles GET /v1/admin/products?search=&category=&isActive=
func (h *ProductManagementHandler) ListProducts(c *gin.Context) {
	q := service.ProductQuery{SearchTerm: c.Query("search")}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		q.CategorySlug = &category
	}
	products := service.FilterProducts(h.catalog.AllProducts(), q)

	if isActive := c.Query("isActive"); isActive != "" {
		active := isActive == "true"
		filtered := products[:0]
		for _, p := range products {
			if p.IsActive == active {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}

	utils.SuccessList(c, 200, "Products retrieved", products, len(products))
}

// GetProduct handles GET /v1/admin/products/:code
func (h *ProductManagementHandler) GetProduct(c *gin.Context) {
	p, err := h.catalog.ProductByCode(c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Product retrieved", p)
}

// CreateProduct handles POST /v1/admin/products
func (h *ProductManagementHandler) CreateProduct(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	p, err := h.catalog.AddProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 201, "Product created", p)
}

// UpdateProduct handles PUT /v1/admin/products/:code
func (h *ProductManagementHandler) UpdateProduct(c *gin.Context) {
	var req models.ProductPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	p, err := h.catalog.UpdateProduct(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Product updated", p)
}

// DeleteProduct handles DELETE /v1/admin/products/:code?confirm=true
func (h *ProductManagementHandler) DeleteProduct(c *gin.Context) {
	if !requireConfirmation(c) {
		return
	}
	code := c.Param("code")
	if err := h.catalog.DeleteProduct(c.Request.Context(), code); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Product deleted", gin.H{"code": code})
}

// ListCategories handles GET /v1/admin/categories
func (h *ProductManagementHandler) ListCategories(c *gin.Context) {
	categories := h.catalog.AllCategories()
	utils.SuccessList(c, 200, "Categories retrieved", categories, len(categories))
}

// GetCategory handles GET /v1/admin/categories/:slug
func (h *ProductManagementHandler) GetCategory(c *gin.Context) {
	cat, err := h.catalog.CategoryBySlug(c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	products := h.catalog.ProductsByCategory(cat.Slug)
	if products == nil {
		products = []models.Product{}
	}
	utils.Success(c, 200, "Category retrieved", gin.H{
		"category": cat,
		"products": products,
	})
}

// CreateCategory handles POST /v1/admin/categories
func (h *ProductManagementHandler) CreateCategory(c *gin.Context) {
	var req service.CategoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	cat, err := h.catalog.AddCategory(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 201, "Category created", cat)
}

// UpdateCategory handles PUT /v1/admin/categories/:slug
func (h *ProductManagementHandler) UpdateCategory(c *gin.Context) {
	var req service.CategoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	cat, err := h.catalog.UpdateCategory(c.Request.Context(), c.Param("slug"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Category updated", cat)
}

// ToggleCategory handles POST /v1/admin/categories/:slug/toggle
func (h *ProductManagementHandler) ToggleCategory(c *gin.Context) {
	cat, err := h.catalog.ToggleCategoryActive(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	msg := "Category deactivated"
	if cat.IsActive {
		msg = "Category activated"
	}
	utils.Success(c, 200, msg, cat)
}

// DeleteCategory handles DELETE /v1/admin/categories/:slug?confirm=true
func (h *ProductManagementHandler) DeleteCategory(c *gin.Context) {
	if !requireConfirmation(c) {
		return
	}
	slug := c.Param("slug")
	if err := h.catalog.DeleteCategory(c.Request.Context(), slug); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Category deleted", gin.H{"slug": slug})
}
