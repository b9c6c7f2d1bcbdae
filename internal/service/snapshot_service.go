package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/repository"
	"github.com/GTDGit/catalog_api/internal/utils"
)

// SnapshotVersion is written into every exported document.
const SnapshotVersion = "1.0.0"

// Keys of the deprecated local storage file.
const (
	legacyProductsKey   = "imperio_pescado_products"
	legacyCategoriesKey = "imperio_pescado_categories"
)

// SnapshotArchiver stores a copy of exported documents.
type SnapshotArchiver interface {
	Archive(ctx context.Context, name string, data []byte) (string, error)
}

// ImportResult counts what an import wrote.
type ImportResult struct {
	Products   int `json:"products"`
	Categories int `json:"categories"`
}

// MigrationResult reports a legacy migration.
type MigrationResult struct {
	Found              bool `json:"found"`
	CategoriesImported int  `json:"categoriesImported"`
	ProductsImported   int  `json:"productsImported"`
	Skipped            int  `json:"skipped"`
	Cleared            bool `json:"cleared"`
}

// SnapshotService moves the whole catalog in and out of the remote store.
type SnapshotService struct {
	catalog    *CatalogService
	archiver   SnapshotArchiver
	legacyPath string
	now        func() time.Time
}

// NewSnapshotService constructs a SnapshotService. archiver may be nil.
func NewSnapshotService(catalog *CatalogService, archiver SnapshotArchiver, legacyPath string) *SnapshotService {
	return &SnapshotService{
		catalog:    catalog,
		archiver:   archiver,
		legacyPath: legacyPath,
		now:        time.Now,
	}
}

// SnapshotFileName is the download name of a snapshot exported at t.
func SnapshotFileName(t time.Time) string {
	return fmt.Sprintf("catalogo-imperio-pescado-%s.json", t.UTC().Format("2006-01-02"))
}

// Export reads both remote collections. A failed read is logged and yields
// an empty snapshot; callers check IsEmpty rather than an error.
func (s *SnapshotService) Export(ctx context.Context) *models.Snapshot {
	now := s.now()
	snap := &models.Snapshot{
		Products:   []models.Product{},
		Categories: []models.Category{},
		ExportDate: now.UTC().Format(time.RFC3339),
		Version:    SnapshotVersion,
	}

	gw := s.catalog.Gateway()
	categories, err := gw.Categories().List(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("Snapshot export failed reading categories")
		return snap
	}
	products, err := gw.Products().List(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("Snapshot export failed reading products")
		return snap
	}
	snap.Categories = categories
	snap.Products = products

	if s.archiver != nil && !snap.IsEmpty() {
		s.archive(ctx, snap, now)
	}
	return snap
}

func (s *SnapshotService) archive(ctx context.Context, snap *models.Snapshot, at time.Time) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot for archive")
		return
	}
	if _, err := s.archiver.Archive(ctx, SnapshotFileName(at), data); err != nil {
		log.Warn().Err(err).Msg("Snapshot archive failed")
	}
}

// ValidateSnapshot checks doc and returns a normalized copy: category code
// and slug are unified (slug wins) and product categories that name a
// category by code are rewritten to its slug. The first invalid record is
// reported by index.
func ValidateSnapshot(doc *models.Snapshot) (*models.Snapshot, error) {
	return validateSnapshot(doc, nil)
}

// validateSnapshot is ValidateSnapshot where products may also reference the
// category slugs in existing.
func validateSnapshot(doc *models.Snapshot, existing map[string]bool) (*models.Snapshot, error) {
	if doc == nil || doc.Products == nil || doc.Categories == nil {
		return nil, fmt.Errorf("%w: products or categories missing", utils.ErrValidation)
	}

	out := &models.Snapshot{
		Products:   make([]models.Product, 0, len(doc.Products)),
		Categories: make([]models.Category, 0, len(doc.Categories)),
		ExportDate: doc.ExportDate,
		Version:    doc.Version,
	}

	bySlug := make(map[string]bool, len(doc.Categories))
	codeToSlug := make(map[string]string, len(doc.Categories))
	for i, c := range doc.Categories {
		c.Slug = strings.TrimSpace(c.Slug)
		c.Code = strings.TrimSpace(c.Code)
		c.Name = strings.TrimSpace(c.Name)
		if c.Slug == "" {
			c.Slug = c.Code
		}
		if c.Slug == "" || c.Name == "" {
			return nil, fmt.Errorf("%w: category at index %d is missing slug/code or name", utils.ErrValidation, i)
		}
		if !utils.IsValidSlug(c.Slug) {
			log.Warn().Int("index", i).Str("slug", c.Slug).Msg("Snapshot category slug is not canonical")
		}
		if bySlug[c.Slug] {
			return nil, fmt.Errorf("%w: category at index %d duplicates slug %q", utils.ErrValidation, i, c.Slug)
		}
		bySlug[c.Slug] = true
		if c.Code != "" && c.Code != c.Slug {
			codeToSlug[c.Code] = c.Slug
		}
		c.Code = c.Slug
		out.Categories = append(out.Categories, c)
	}

	seen := make(map[string]bool, len(doc.Products))
	for i, p := range doc.Products {
		p.Code = strings.TrimSpace(p.Code)
		p.Name = strings.TrimSpace(p.Name)
		p.Category = strings.TrimSpace(p.Category)
		if p.Code == "" || p.Name == "" || p.Category == "" {
			return nil, fmt.Errorf("%w: product at index %d is missing code, name or category", utils.ErrValidation, i)
		}
		if seen[p.Code] {
			return nil, fmt.Errorf("%w: product at index %d duplicates code %q", utils.ErrValidation, i, p.Code)
		}
		seen[p.Code] = true
		if slug, ok := codeToSlug[p.Category]; ok && !bySlug[p.Category] {
			p.Category = slug
		}
		if !bySlug[p.Category] && !existing[p.Category] {
			return nil, fmt.Errorf("%w: product at index %d references unknown category %q", utils.ErrValidation, i, p.Category)
		}
		if err := validatePrice(p.Price); err != nil {
			return nil, fmt.Errorf("product at index %d: %w", i, err)
		}
		if p.Slug == "" {
			p.Slug = utils.GenerateSlug(p.Name)
		}
		if p.Images == nil {
			p.Images = []string{}
		}
		out.Products = append(out.Products, p)
	}
	return out, nil
}

// Import replaces the remote catalog with doc. Nothing is written unless the
// whole document validates. Categories are inserted before products.
func (s *SnapshotService) Import(ctx context.Context, doc *models.Snapshot) (*ImportResult, error) {
	snap, err := ValidateSnapshot(doc)
	if err != nil {
		return nil, err
	}

	err = s.catalog.RunExclusive(ctx, "import", func(gw repository.Gateway) error {
		return gw.Atomic(ctx, func(tx repository.Gateway) error {
			if err := clearAll(ctx, tx); err != nil {
				return err
			}
			for i := range snap.Categories {
				if err := tx.Categories().Insert(ctx, &snap.Categories[i]); err != nil {
					return err
				}
			}
			for i := range snap.Products {
				if err := tx.Products().Insert(ctx, &snap.Products[i]); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("products", len(snap.Products)).
		Int("categories", len(snap.Categories)).
		Str("version", snap.Version).
		Msg("Catalog snapshot imported")
	return &ImportResult{Products: len(snap.Products), Categories: len(snap.Categories)}, nil
}

// ClearAll deletes every product and category from the remote store.
func (s *SnapshotService) ClearAll(ctx context.Context) error {
	err := s.catalog.RunExclusive(ctx, "clear", func(gw repository.Gateway) error {
		return gw.Atomic(ctx, func(tx repository.Gateway) error {
			return clearAll(ctx, tx)
		})
	})
	if err != nil {
		return err
	}
	log.Warn().Msg("Catalog cleared")
	return nil
}

func clearAll(ctx context.Context, gw repository.Gateway) error {
	products, err := gw.Products().List(ctx, nil)
	if err != nil {
		return err
	}
	for _, p := range products {
		if err := gw.Products().Delete(ctx, p.Code); err != nil {
			return err
		}
	}
	categories, err := gw.Categories().List(ctx, nil)
	if err != nil {
		return err
	}
	for _, c := range categories {
		if err := gw.Categories().Delete(ctx, c.Slug); err != nil {
			return err
		}
	}
	return nil
}

// HasLegacyData reports whether the deprecated local storage file exists.
func (s *SnapshotService) HasLegacyData() bool {
	if s.legacyPath == "" {
		return false
	}
	_, err := os.Stat(s.legacyPath)
	return err == nil
}

// MigrateLegacy copies the deprecated local storage file into the remote
// store and removes the file once every insert succeeded. Records already
// present remotely (same product code or category slug) are skipped.
func (s *SnapshotService) MigrateLegacy(ctx context.Context) (*MigrationResult, error) {
	doc, found, err := s.readLegacy()
	if err != nil {
		return nil, err
	}
	if !found {
		return &MigrationResult{Found: false}, nil
	}

	result := &MigrationResult{Found: true}
	err = s.catalog.RunExclusive(ctx, "migrate", func(gw repository.Gateway) error {
		return gw.Atomic(ctx, func(tx repository.Gateway) error {
			existingCats, err := tx.Categories().List(ctx, nil)
			if err != nil {
				return err
			}
			haveCat := make(map[string]bool, len(existingCats))
			for _, c := range existingCats {
				haveCat[c.Slug] = true
			}
			// Legacy products may point at categories that only exist remotely.
			snap, err := validateSnapshot(doc, haveCat)
			if err != nil {
				return err
			}
			existingProducts, err := tx.Products().List(ctx, nil)
			if err != nil {
				return err
			}
			haveProduct := make(map[string]bool, len(existingProducts))
			for _, p := range existingProducts {
				haveProduct[p.Code] = true
			}

			for i := range snap.Categories {
				if haveCat[snap.Categories[i].Slug] {
					result.Skipped++
					continue
				}
				if err := tx.Categories().Insert(ctx, &snap.Categories[i]); err != nil {
					return err
				}
				result.CategoriesImported++
			}
			for i := range snap.Products {
				if haveProduct[snap.Products[i].Code] {
					result.Skipped++
					continue
				}
				if err := tx.Products().Insert(ctx, &snap.Products[i]); err != nil {
					return err
				}
				result.ProductsImported++
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if err := os.Remove(s.legacyPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error().Err(err).Str("path", s.legacyPath).Msg("Legacy data migrated but file could not be removed")
		return result, nil
	}
	result.Cleared = true

	log.Info().
		Int("categories", result.CategoriesImported).
		Int("products", result.ProductsImported).
		Int("skipped", result.Skipped).
		Msg("Legacy data migrated")
	return result, nil
}

// readLegacy decodes the legacy file. Each key holds either a JSON array or
// a string containing one, as the old client stored them.
func (s *SnapshotService) readLegacy() (*models.Snapshot, bool, error) {
	if s.legacyPath == "" {
		return nil, false, nil
	}
	raw, err := os.ReadFile(s.legacyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read legacy data: %w", err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, true, fmt.Errorf("%w: legacy data is not a JSON object", utils.ErrValidation)
	}

	doc := &models.Snapshot{Products: []models.Product{}, Categories: []models.Category{}}
	if err := decodeLegacyEntry(entries[legacyProductsKey], &doc.Products); err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", utils.ErrValidation, legacyProductsKey, err)
	}
	if err := decodeLegacyEntry(entries[legacyCategoriesKey], &doc.Categories); err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", utils.ErrValidation, legacyCategoriesKey, err)
	}

	// Records written before isActive existed are active.
	var flags []struct {
		IsActive *bool `json:"isActive"`
	}
	if decodeLegacyEntry(entries[legacyProductsKey], &flags) == nil {
		for i := range flags {
			if i < len(doc.Products) && flags[i].IsActive == nil {
				doc.Products[i].IsActive = true
			}
		}
	}
	flags = nil
	if decodeLegacyEntry(entries[legacyCategoriesKey], &flags) == nil {
		for i := range flags {
			if i < len(doc.Categories) && flags[i].IsActive == nil {
				doc.Categories[i].IsActive = true
			}
		}
	}
	return doc, true, nil
}

func decodeLegacyEntry(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if encoded == "" {
			return nil
		}
		raw = json.RawMessage(encoded)
	}
	return json.Unmarshal(raw, out)
}
