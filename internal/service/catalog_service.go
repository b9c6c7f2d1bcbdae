package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/repository"
	"github.com/GTDGit/catalog_api/internal/utils"
)

// CatalogNotifier is the interface the catalog uses to emit change events.
type CatalogNotifier interface {
	NotifyCatalogChanged(reason string, products, categories int)
	NotifyCatalogError(reason string, err error)
}

type nopNotifier struct{}

func (nopNotifier) NotifyCatalogChanged(string, int, int) {}
func (nopNotifier) NotifyCatalogError(string, error) {}

// ProductInput is the admin form for creating a product.
type ProductInput struct {
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Images      []string         `json:"images"`
	Price       *decimal.Decimal `json:"price"`
	IsActive    *bool            `json:"isActive"`
}

// CategoryInput is the admin form for creating or renaming a category. On
// rename an empty ImageURL leaves the image unchanged.
type CategoryInput struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

// CatalogState is a read-only view of the manager's status.
type CatalogState struct {
	Products      int       `json:"products"`
	Categories    int       `json:"categories"`
	Loading       bool      `json:"loading"`
	ProductError  string    `json:"productError,omitempty"`
	CategoryError string    `json:"categoryError,omitempty"`
	LoadedAt      time.Time `json:"loadedAt"`
}

// CatalogService is the in-memory source of truth for the storefront and the
// back office. Every mutation writes through the gateway and then replaces
// the in-memory collections with a fresh read of the remote store.
type CatalogService struct {
	gateway  repository.Gateway
	notifier CatalogNotifier
	now      func() time.Time

	// mutateMu serializes mutations so validation against the in-memory
	// state and the following write are not interleaved.
	mutateMu sync.Mutex

	mu          sync.RWMutex
	products    []models.Product
	categories  []models.Category
	productErr  error
	categoryErr error
	loadedAt    time.Time
	applied     uint64
	inflight    int

	seq atomic.Uint64
}

// NewCatalogService constructs a CatalogService. notifier may be nil.
func NewCatalogService(gateway repository.Gateway, notifier CatalogNotifier) *CatalogService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &CatalogService{
		gateway:  gateway,
		notifier: notifier,
		now:      time.Now,
	}
}

// Gateway returns the store the catalog reads from and writes to.
func (s *CatalogService) Gateway() repository.Gateway {
	return s.gateway
}

// LoadAll fetches both collections and replaces the in-memory state. On
// failure the previous data is kept and the error is recorded on the slice
// that failed. Loads are sequenced: a response is dropped when a load that
// started later has already been applied.
func (s *CatalogService) LoadAll(ctx context.Context) error {
	return s.reload(ctx, "load")
}

func (s *CatalogService) reload(ctx context.Context, reason string) error {
	ticket := s.seq.Add(1)

	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	categories, err := s.gateway.Categories().List(ctx, nil)
	if err != nil {
		s.recordLoadError(ticket, utils.StageCategory, err)
		return err
	}
	products, err := s.gateway.Products().List(ctx, nil)
	if err != nil {
		s.recordLoadError(ticket, utils.StageProducts, err)
		return err
	}

	s.mu.Lock()
	if ticket <= s.applied {
		s.mu.Unlock()
		log.Debug().Uint64("ticket", ticket).Str("reason", reason).Msg("Dropping stale catalog load")
		return nil
	}
	s.applied = ticket
	s.products = products
	s.categories = categories
	s.productErr = nil
	s.categoryErr = nil
	s.loadedAt = s.now()
	s.mu.Unlock()

	log.Debug().
		Str("reason", reason).
		Int("products", len(products)).
		Int("categories", len(categories)).
		Msg("Catalog loaded")
	s.notifier.NotifyCatalogChanged(reason, len(products), len(categories))
	return nil
}

func (s *CatalogService) recordLoadError(ticket uint64, stage string, err error) {
	s.mu.Lock()
	stale := ticket <= s.applied
	if !stale {
		s.setError(stage, err)
	}
	s.mu.Unlock()

	log.Error().Err(err).Str("stage", stage).Bool("stale", stale).Msg("Catalog load failed")
	if !stale {
		s.notifier.NotifyCatalogError("load", err)
	}
}

// setError must be called with mu held.
func (s *CatalogService) setError(stage string, err error) {
	if stage == utils.StageCategory {
		s.categoryErr = err
	} else {
		s.productErr = err
	}
}

// fail records remote and cascade failures of a mutation on the slice it
// belongs to. Validation-type errors are returned without being recorded.
func (s *CatalogService) fail(stage, reason string, err error) error {
	var remote *utils.RemoteError
	var cascade *utils.CascadeError
	if errors.As(err, &cascade) || errors.As(err, &remote) {
		s.mu.Lock()
		s.setError(stage, err)
		s.mu.Unlock()
		log.Error().Err(err).Str("op", reason).Msg("Catalog mutation failed")
		s.notifier.NotifyCatalogError(reason, err)
	}
	return err
}

// afterWrite reloads after a successful write. A failed reload does not undo
// the write; it is recorded like any other load failure.
func (s *CatalogService) afterWrite(ctx context.Context, reason string) {
	if err := s.reload(ctx, reason); err != nil {
		log.Warn().Err(err).Str("op", reason).Msg("Reload after write failed; catalog may be stale")
	}
}

// RunExclusive runs fn while no other mutation can start, then reloads.
func (s *CatalogService) RunExclusive(ctx context.Context, reason string, fn func(gw repository.Gateway) error) error {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	if err := fn(s.gateway); err != nil {
		return s.fail(utils.StageProducts, reason, err)
	}
	s.afterWrite(ctx, reason)
	return nil
}

// AddProduct creates a product. IsActive defaults to true.
func (s *CatalogService) AddProduct(ctx context.Context, in *ProductInput) (*models.Product, error) {
	p := models.Product{
		Code:        strings.TrimSpace(in.Code),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Images:      cleanImages(in.Images),
		Price:       in.Price,
		IsActive:    true,
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	switch {
	case p.Code == "":
		return nil, fmt.Errorf("%w: code is required", utils.ErrValidation)
	case p.Name == "":
		return nil, fmt.Errorf("%w: name is required", utils.ErrValidation)
	case p.Category == "":
		return nil, fmt.Errorf("%w: category is required", utils.ErrValidation)
	}
	if err := validatePrice(p.Price); err != nil {
		return nil, err
	}
	p.Slug = utils.GenerateSlug(p.Name)

	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	if _, ok := s.findProduct(p.Code); ok {
		return nil, fmt.Errorf("%w: %s", utils.ErrDuplicateCode, p.Code)
	}
	if _, ok := s.findCategory(p.Category); !ok {
		return nil, fmt.Errorf("%w: category %q", utils.ErrNotFound, p.Category)
	}

	if err := s.gateway.Products().Insert(ctx, &p); err != nil {
		return nil, s.fail(utils.StageProducts, "product.add", err)
	}
	log.Info().Str("code", p.Code).Str("category", p.Category).Msg("Product created")

	s.afterWrite(ctx, "product.add")
	if stored, ok := s.findProduct(p.Code); ok {
		return &stored, nil
	}
	return &p, nil
}

// UpdateProduct applies patch to the product with code. The code itself
// cannot change.
func (s *CatalogService) UpdateProduct(ctx context.Context, code string, patch *models.ProductPatch) (*models.Product, error) {
	if patch == nil {
		patch = &models.ProductPatch{}
	}
	if patch.Code != nil && strings.TrimSpace(*patch.Code) != code {
		return nil, fmt.Errorf("%w: product code is immutable", utils.ErrValidation)
	}
	patch.Code = nil

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", utils.ErrValidation)
		}
		slug := utils.GenerateSlug(name)
		patch.Name, patch.Slug = &name, &slug
	}
	if patch.Category != nil {
		category := strings.TrimSpace(*patch.Category)
		if category == "" {
			return nil, fmt.Errorf("%w: category is required", utils.ErrValidation)
		}
		patch.Category = &category
	}
	if patch.Images != nil {
		images := cleanImages(*patch.Images)
		patch.Images = &images
	}
	if patch.ClearPrice && patch.Price != nil {
		return nil, fmt.Errorf("%w: price and clearPrice are mutually exclusive", utils.ErrValidation)
	}
	if err := validatePrice(patch.Price); err != nil {
		return nil, err
	}

	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	current, ok := s.findProduct(code)
	if !ok {
		return nil, fmt.Errorf("%w: product %q", utils.ErrNotFound, code)
	}
	if patch.Category != nil {
		if _, ok := s.findCategory(*patch.Category); !ok {
			return nil, fmt.Errorf("%w: category %q", utils.ErrNotFound, *patch.Category)
		}
	}
	if patch.IsEmpty() {
		return &current, nil
	}

	if err := s.gateway.Products().Update(ctx, code, patch); err != nil {
		return nil, s.fail(utils.StageProducts, "product.update", err)
	}
	log.Info().Str("code", code).Msg("Product updated")

	s.afterWrite(ctx, "product.update")
	if stored, ok := s.findProduct(code); ok {
		return &stored, nil
	}
	return &current, nil
}

// DeleteProduct removes the product with code. Deleting a missing product
// succeeds.
func (s *CatalogService) DeleteProduct(ctx context.Context, code string) error {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	if err := s.gateway.Products().Delete(ctx, code); err != nil {
		return s.fail(utils.StageProducts, "product.delete", err)
	}
	log.Info().Str("code", code).Msg("Product deleted")

	s.afterWrite(ctx, "product.delete")
	return nil
}

// AddCategory creates an active category whose slug derives from its name.
func (s *CatalogService) AddCategory(ctx context.Context, in *CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	slug := utils.GenerateSlug(name)
	if slug == "" {
		return nil, fmt.Errorf("%w: name must contain letters or digits", utils.ErrValidation)
	}
	c := models.Category{
		Code:     slug,
		Slug:     slug,
		Name:     name,
		ImageURL: strings.TrimSpace(in.ImageURL),
		IsActive: true,
	}

	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	if _, ok := s.findCategory(slug); ok {
		return nil, fmt.Errorf("%w: %s", utils.ErrDuplicateSlug, slug)
	}
	if err := s.gateway.Categories().Insert(ctx, &c); err != nil {
		return nil, s.fail(utils.StageCategory, "category.add", err)
	}
	log.Info().Str("slug", slug).Msg("Category created")

	s.afterWrite(ctx, "category.add")
	if stored, ok := s.findCategory(slug); ok {
		return &stored, nil
	}
	return &c, nil
}

// UpdateCategory renames a category and replaces its image; an empty image
// URL keeps the current one. When the new name yields a different slug,
// every product of the category is repointed in the same logical update; a
// failure reports the stage that failed.
func (s *CatalogService) UpdateCategory(ctx context.Context, slug string, in *CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	newSlug := utils.GenerateSlug(name)
	if newSlug == "" {
		return nil, fmt.Errorf("%w: name must contain letters or digits", utils.ErrValidation)
	}
	imageURL := strings.TrimSpace(in.ImageURL)

	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	current, ok := s.findCategory(slug)
	if !ok {
		return nil, fmt.Errorf("%w: category %q", utils.ErrNotFound, slug)
	}
	if imageURL == "" {
		imageURL = current.ImageURL
	}
	patch := &models.CategoryPatch{Name: &name, ImageURL: &imageURL}

	if newSlug == slug {
		if err := s.gateway.Categories().Update(ctx, slug, patch); err != nil {
			return nil, s.fail(utils.StageCategory, "category.update", err)
		}
	} else {
		if _, taken := s.findCategory(newSlug); taken {
			return nil, fmt.Errorf("%w: %s", utils.ErrDuplicateSlug, newSlug)
		}
		patch.Code, patch.Slug = &newSlug, &newSlug

		err := s.gateway.Atomic(ctx, func(tx repository.Gateway) error {
			if err := tx.Categories().Update(ctx, slug, patch); err != nil {
				return &utils.CascadeError{Stage: utils.StageCategory, Err: err}
			}
			if err := tx.Products().Reassign(ctx, slug, newSlug); err != nil {
				return &utils.CascadeError{Stage: utils.StageProducts, Err: err}
			}
			return nil
		})
		if err != nil {
			err = asCascade(err)
			s.compensateRename(ctx, err, current, newSlug)
			return nil, s.fail(cascadeStage(err), "category.update", err)
		}
		log.Info().Str("slug", slug).Str("new_slug", newSlug).Msg("Category renamed, products repointed")
	}

	s.afterWrite(ctx, "category.update")
	if stored, ok := s.findCategory(newSlug); ok {
		return &stored, nil
	}
	current.Name, current.ImageURL, current.Slug, current.Code = name, imageURL, newSlug, newSlug
	return &current, nil
}

// compensateRename restores the category row after the products half of a
// rename failed. On transactional stores the rollback already did so and the
// restore matches no row.
func (s *CatalogService) compensateRename(ctx context.Context, err error, old models.Category, newSlug string) {
	if cascadeStage(err) != utils.StageProducts {
		return
	}
	revert := &models.CategoryPatch{Code: &old.Code, Slug: &old.Slug, Name: &old.Name, ImageURL: &old.ImageURL}
	if rerr := s.gateway.Categories().Update(ctx, newSlug, revert); rerr != nil {
		log.Error().Err(rerr).Str("slug", old.Slug).Str("new_slug", newSlug).Msg("Failed to revert category after rename cascade failure")
	}
}

// DeleteCategory removes a category that no product references. Deleting a
// missing category succeeds.
func (s *CatalogService) DeleteCategory(ctx context.Context, slug string) error {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	if n := len(s.productsOf(slug)); n > 0 {
		return fmt.Errorf("%w: %d product(s) reference %q", utils.ErrCategoryInUse, n, slug)
	}
	if err := s.gateway.Categories().Delete(ctx, slug); err != nil {
		return s.fail(utils.StageCategory, "category.delete", err)
	}
	log.Info().Str("slug", slug).Msg("Category deleted")

	s.afterWrite(ctx, "category.delete")
	return nil
}

// ToggleCategoryActive flips the category's active flag and forces every
// member product to the same value. Individual product state is not
// preserved across toggles.
func (s *CatalogService) ToggleCategoryActive(ctx context.Context, slug string) (*models.Category, error) {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	current, ok := s.findCategory(slug)
	if !ok {
		return nil, fmt.Errorf("%w: category %q", utils.ErrNotFound, slug)
	}
	active := !current.IsActive

	err := s.gateway.Atomic(ctx, func(tx repository.Gateway) error {
		if err := tx.Categories().Update(ctx, slug, &models.CategoryPatch{IsActive: &active}); err != nil {
			return &utils.CascadeError{Stage: utils.StageCategory, Err: err}
		}
		if err := tx.Products().SetActiveByCategory(ctx, slug, active); err != nil {
			return &utils.CascadeError{Stage: utils.StageProducts, Err: err}
		}
		return nil
	})
	if err != nil {
		err = asCascade(err)
		if cascadeStage(err) == utils.StageProducts {
			prev := current.IsActive
			if rerr := s.gateway.Categories().Update(ctx, slug, &models.CategoryPatch{IsActive: &prev}); rerr != nil {
				log.Error().Err(rerr).Str("slug", slug).Msg("Failed to revert category after toggle cascade failure")
			}
		}
		return nil, s.fail(cascadeStage(err), "category.toggle", err)
	}
	log.Info().Str("slug", slug).Bool("is_active", active).Msg("Category toggled")

	s.afterWrite(ctx, "category.toggle")
	if stored, ok := s.findCategory(slug); ok {
		return &stored, nil
	}
	current.IsActive = active
	return &current, nil
}

// asCascade attributes errors raised outside fn (such as a failed commit) to
// the products stage, the last half to be applied.
func asCascade(err error) error {
	var cascade *utils.CascadeError
	if errors.As(err, &cascade) {
		return err
	}
	return &utils.CascadeError{Stage: utils.StageProducts, Err: err}
}

func cascadeStage(err error) string {
	var cascade *utils.CascadeError
	if errors.As(err, &cascade) {
		return cascade.Stage
	}
	return utils.StageProducts
}

// ---- views ----

// ActiveCategories returns the categories shown on the storefront.
func (s *CatalogService) ActiveCategories() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out
}

// VisibleProducts returns active products of active categories that match q.
func (s *CatalogService) VisibleProducts(q ProductQuery) []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FilterProducts(s.visibleLocked(), q)
}

func (s *CatalogService) visibleLocked() []models.Product {
	active := make(map[string]bool, len(s.categories))
	for _, c := range s.categories {
		if c.IsActive {
			active[c.Slug] = true
		}
	}
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.IsActive && active[p.Category] {
			out = append(out, p)
		}
	}
	return out
}

// AllProducts returns every product, for the back office.
func (s *CatalogService) AllProducts() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Product(nil), s.products...)
}

// AllCategories returns every category, for the back office.
func (s *CatalogService) AllCategories() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Category(nil), s.categories...)
}

// ProductByCode returns a product regardless of visibility.
func (s *CatalogService) ProductByCode(code string) (*models.Product, error) {
	p, ok := s.findProduct(code)
	if !ok {
		return nil, fmt.Errorf("%w: product %q", utils.ErrNotFound, code)
	}
	return &p, nil
}

// VisibleProduct returns a product only when the storefront may show it.
func (s *CatalogService) VisibleProduct(code string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.visibleLocked() {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: product %q", utils.ErrNotFound, code)
}

// CategoryBySlug returns a category regardless of its active flag.
func (s *CatalogService) CategoryBySlug(slug string) (*models.Category, error) {
	c, ok := s.findCategory(slug)
	if !ok {
		return nil, fmt.Errorf("%w: category %q", utils.ErrNotFound, slug)
	}
	return &c, nil
}

// ActiveCategory returns a category only when it is active.
func (s *CatalogService) ActiveCategory(slug string) (*models.Category, error) {
	c, ok := s.findCategory(slug)
	if !ok || !c.IsActive {
		return nil, fmt.Errorf("%w: category %q", utils.ErrNotFound, slug)
	}
	return &c, nil
}

// ProductsByCategory returns every product that references slug.
func (s *CatalogService) ProductsByCategory(slug string) []models.Product {
	return s.productsOf(slug)
}

// ProductError is the last failure recorded on the products slice.
func (s *CatalogService) ProductError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productErr
}

// CategoryError is the last failure recorded on the categories slice.
func (s *CatalogService) CategoryError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categoryErr
}

// LastError returns the recorded error of either slice, categories first.
func (s *CatalogService) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.categoryErr != nil {
		return s.categoryErr
	}
	return s.productErr
}

// State returns counters and recorded errors.
func (s *CatalogService) State() CatalogState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := CatalogState{
		Products:   len(s.products),
		Categories: len(s.categories),
		Loading:    s.inflight > 0,
		LoadedAt:   s.loadedAt,
	}
	if s.productErr != nil {
		st.ProductError = s.productErr.Error()
	}
	if s.categoryErr != nil {
		st.CategoryError = s.categoryErr.Error()
	}
	return st
}

func (s *CatalogService) findProduct(code string) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.Code == code {
			return p, true
		}
	}
	return models.Product{}, false
}

func (s *CatalogService) findCategory(slug string) (models.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.Slug == slug {
			return c, true
		}
	}
	return models.Category{}, false
}

func (s *CatalogService) productsOf(slug string) []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Product
	for _, p := range s.products {
		if p.Category == slug {
			out = append(out, p)
		}
	}
	return out
}

func validatePrice(p *decimal.Decimal) error {
	if p != nil && p.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", utils.ErrValidation)
	}
	return nil
}

func cleanImages(images []string) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			out = append(out, img)
		}
	}
	return out
}
