package service

import (
	"strings"

	"github.com/GTDGit/catalog_api/internal/models"
)

// ProductQuery narrows the storefront product list. A nil CategorySlug means
// all categories; an empty SearchTerm matches everything.
type ProductQuery struct {
	SearchTerm   string
	CategorySlug *string
}

// FilterProducts keeps the products matching both the category and the
// search term. The term is matched case-insensitively as a substring of the
// name, description or code.
func FilterProducts(products []models.Product, q ProductQuery) []models.Product {
	term := strings.ToLower(strings.TrimSpace(q.SearchTerm))

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if q.CategorySlug != nil && p.Category != *q.CategorySlug {
			continue
		}
		if term != "" && !matchesTerm(&p, term) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchesTerm(p *models.Product, term string) bool {
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Description), term) ||
		strings.Contains(strings.ToLower(p.Code), term)
}
