package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/utils"
)

// MemoryGateway keeps the catalog in process memory. It backs local
// development and tests. Atomic snapshots both tables and restores them
// when fn fails.
type MemoryGateway struct {
	mu         sync.RWMutex
	txMu       sync.Mutex
	products   map[string]models.Product
	categories map[string]models.Category

	// failOps makes the named operation fail, for exercising error paths.
	failOps map[string]error
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		products:   make(map[string]models.Product),
		categories: make(map[string]models.Category),
		failOps:    make(map[string]error),
	}
}

// FailOn makes every call of op (for example "products.reassign") return
// err wrapped as a remote error. A nil err clears the injection.
func (g *MemoryGateway) FailOn(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failOps, op)
		return
	}
	g.failOps[op] = err
}

func (g *MemoryGateway) injected(op string) error {
	if err, ok := g.failOps[op]; ok {
		return utils.NewRemoteError(op, err)
	}
	return nil
}

// Products implements Gateway.
func (g *MemoryGateway) Products() ProductStore { return memoryProducts{g} }

// Categories implements Gateway.
func (g *MemoryGateway) Categories() CategoryStore { return memoryCategories{g} }

// Atomic implements Gateway.
func (g *MemoryGateway) Atomic(_ context.Context, fn func(tx Gateway) error) error {
	g.txMu.Lock()
	defer g.txMu.Unlock()

	g.mu.RLock()
	products := make(map[string]models.Product, len(g.products))
	for k, v := range g.products {
		products[k] = v
	}
	categories := make(map[string]models.Category, len(g.categories))
	for k, v := range g.categories {
		categories[k] = v
	}
	g.mu.RUnlock()

	if err := fn(g); err != nil {
		g.mu.Lock()
		g.products = products
		g.categories = categories
		g.mu.Unlock()
		return err
	}
	return nil
}

// Ping implements Gateway.
func (g *MemoryGateway) Ping(context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.injected("ping")
}

// PasswordHash implements AdminConfigStore; the memory store never holds one.
func (g *MemoryGateway) PasswordHash(context.Context) (string, error) {
	return "", nil
}

type memoryProducts struct{ g *MemoryGateway }

func (s memoryProducts) List(_ context.Context, filter *ProductFilter) ([]models.Product, error) {
	s.g.mu.RLock()
	defer s.g.mu.RUnlock()
	if err := s.g.injected("products.list"); err != nil {
		return nil, err
	}

	out := make([]models.Product, 0, len(s.g.products))
	for _, p := range s.g.products {
		if filter != nil {
			if filter.CategoryCode != "" && p.Category != filter.CategoryCode {
				continue
			}
			if filter.IsActive != nil && p.IsActive != *filter.IsActive {
				continue
			}
		}
		out = append(out, cloneProduct(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].Code < out[j].Code
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s memoryProducts) Insert(_ context.Context, p *models.Product) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if err := s.g.injected("products.insert"); err != nil {
		return err
	}
	if _, ok := s.g.products[p.Code]; ok {
		return utils.NewRemoteError("products.insert", fmt.Errorf("duplicate key code=%s", p.Code))
	}
	if _, ok := s.g.categories[p.Category]; !ok {
		return utils.NewRemoteError("products.insert", fmt.Errorf("category %s does not exist", p.Category))
	}
	s.g.products[p.Code] = cloneProduct(*p)
	return nil
}

func (s memoryProducts) Update(_ context.Context, code string, patch *models.ProductPatch) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if err := s.g.injected("products.update"); err != nil {
		return err
	}
	p, ok := s.g.products[code]
	if !ok || patch == nil {
		return nil
	}
	if patch.Slug != nil {
		p.Slug = *patch.Slug
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Images != nil {
		p.Images = append([]string{}, (*patch.Images)...)
	}
	if patch.ClearPrice {
		p.Price = nil
	} else if patch.Price != nil {
		price := *patch.Price
		p.Price = &price
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	s.g.products[code] = p
	return nil
}

func (s memoryProducts) Delete(_ context.Context, code string) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if err := s.g.injected("products.delete"); err != nil {
		return err
	}
	delete(s.g.products, code)
	return nil
}

func (s memoryProducts) Reassign(_ context.Context, from, to string) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if err := s.g.injected("products.reassign"); err != nil {
		return err
	}
	for code, p := range s.g.products {
		if p.Category == from {
			p.Category = to
			s.g.products[code] = p
		}
	}
	return nil
}

func (s memoryProducts) SetActiveByCategory(_ context.Context, category string, active bool) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if err := s.g.injected("products.set_active"); err != nil {
		return err
	}
	for code, p := range s.g.products {
		if p.Category == category {
			p.IsActive = active
			s.g.products[code] = p
		}
	}
	return nil
}

type memoryCategories struct{ g *MemoryGateway }

func (s memoryCategories) List(_ context.Context, filter *CategoryFilter) ([]models.Category, error) {
	s.g.mu.RLock()
	defer s.g.mu.RUnlock()
	if err := s.g.injected("categories.list"); err != nil {
		return nil, err
	}

	out := make([]models.Category, 0, len(s.g.categories))
	for _, c := range s.g.categories {
		if filter != nil && filter.IsActive != nil && c.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].Slug < out[j].Slug
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s memoryCategories) Insert(_ context.Context, c *models.Category) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if err := s.g.injected("categories.insert"); err != nil {
		return err
	}
	if _, ok := s.g.categories[c.Slug]; ok {
		return utils.NewRemoteError("categories.insert", fmt.Errorf("duplicate key slug=%s", c.Slug))
	}
	s.g.categories[c.Slug] = *c
	return nil
}

func (s memoryCategories) Update(_ context.Context, slug string, patch *models.CategoryPatch) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if err := s.g.injected("categories.update"); err != nil {
		return err
	}
	c, ok := s.g.categories[slug]
	if !ok || patch == nil {
		return nil
	}
	if patch.Code != nil {
		c.Code = *patch.Code
	}
	if patch.Slug != nil {
		c.Slug = *patch.Slug
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.ImageURL != nil {
		c.ImageURL = *patch.ImageURL
	}
	if patch.IsActive != nil {
		c.IsActive = *patch.IsActive
	}
	if c.Slug != slug {
		if _, taken := s.g.categories[c.Slug]; taken {
			return utils.NewRemoteError("categories.update", fmt.Errorf("duplicate key slug=%s", c.Slug))
		}
		delete(s.g.categories, slug)
	}
	s.g.categories[c.Slug] = c
	return nil
}

func (s memoryCategories) Delete(_ context.Context, slug string) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if err := s.g.injected("categories.delete"); err != nil {
		return err
	}
	for _, p := range s.g.products {
		if p.Category == slug {
			return fmt.Errorf("%w: category %q is referenced by products", utils.ErrCategoryInUse, slug)
		}
	}
	delete(s.g.categories, slug)
	return nil
}

func cloneProduct(p models.Product) models.Product {
	images := make([]string, len(p.Images))
	copy(images, p.Images)
	p.Images = images
	if p.Price != nil {
		price := *p.Price
		p.Price = &price
	}
	return p
}
