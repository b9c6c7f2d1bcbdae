package models

import "github.com/shopspring/decimal"

// Product is a catalog item. Code is assigned at creation and never changes.
// Category holds the slug of the category the product belongs to.
type Product struct {
	Code        string           `json:"code"`
	Slug        string           `json:"slug,omitempty"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Images      []string         `json:"images"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	IsActive    bool             `json:"isActive"`
}

// PrimaryImage returns the thumbnail image, or "" when the product has none.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductPatch is a partial product update. Nil fields are left unchanged.
// Code is only accepted when it equals the product's current code.
// ClearPrice removes the price; it cannot be combined with Price.
type ProductPatch struct {
	Code        *string          `json:"code,omitempty"`
	Slug        *string          `json:"-"`
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Images      *[]string        `json:"images,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	IsActive    *bool            `json:"isActive,omitempty"`
	ClearPrice  bool             `json:"clearPrice,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *ProductPatch) IsEmpty() bool {
	return p.Code == nil && p.Slug == nil && p.Name == nil && p.Description == nil &&
		p.Category == nil && p.Images == nil && p.Price == nil && p.IsActive == nil && !p.ClearPrice
}
