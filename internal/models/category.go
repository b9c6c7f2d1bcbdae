package models

// Category groups products. Slug is derived from Name and is what products
// reference; Code mirrors Slug for stores that key categories by code.
type Category struct {
	Code     string `json:"code"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
	IsActive bool   `json:"isActive"`
}

// CategoryPatch is a partial category update. Nil fields are left unchanged.
type CategoryPatch struct {
	Code     *string
	Slug     *string
	Name     *string
	ImageURL *string
	IsActive *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p *CategoryPatch) IsEmpty() bool {
	return p.Code == nil && p.Slug == nil && p.Name == nil && p.ImageURL == nil && p.IsActive == nil
}
