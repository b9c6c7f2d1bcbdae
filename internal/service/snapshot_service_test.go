package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/repository"
	"github.com/GTDGit/catalog_api/internal/utils"
)

type fakeArchiver struct {
	names []string
	data  [][]byte
	err   error
}

func (a *fakeArchiver) Archive(_ context.Context, name string, data []byte) (string, error) {
	a.names = append(a.names, name)
	a.data = append(a.data, data)
	if a.err != nil {
		return "", a.err
	}
	return "s3://bucket/" + name, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
}

func TestSnapshotFileName(t *testing.T) {
	assert.Equal(t, "catalogo-imperio-pescado-2026-03-14.json", SnapshotFileName(fixedNow()))
}

func TestExport(t *testing.T) {
	svc, _, _ := newLoadedCatalog(t)
	archiver := &fakeArchiver{}
	snapshots := NewSnapshotService(svc, archiver, "")
	snapshots.now = fixedNow

	snap := snapshots.Export(context.Background())
	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Equal(t, "2026-03-14T18:30:00Z", snap.ExportDate)
	assert.Len(t, snap.Products, 5)
	assert.Len(t, snap.Categories, 3)

	require.Len(t, archiver.names, 1)
	assert.Equal(t, "catalogo-imperio-pescado-2026-03-14.json", archiver.names[0])
	var archived models.Snapshot
	require.NoError(t, json.Unmarshal(archiver.data[0], &archived))
	assert.Len(t, archived.Products, 5)
}

func TestExportFailureIsEmpty(t *testing.T) {
	svc, gw, _ := newLoadedCatalog(t)
	archiver := &fakeArchiver{}
	snapshots := NewSnapshotService(svc, archiver, "")
	gw.FailOn("products.list", errors.New("offline"))

	snap := snapshots.Export(context.Background())
	assert.True(t, snap.IsEmpty())
	assert.NotNil(t, snap.Products)
	assert.NotNil(t, snap.Categories)
	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Empty(t, archiver.names)
}

func TestExportArchiveFailureIsIgnored(t *testing.T) {
	svc, _, _ := newLoadedCatalog(t)
	snapshots := NewSnapshotService(svc, &fakeArchiver{err: errors.New("access denied")}, "")

	snap := snapshots.Export(context.Background())
	assert.Len(t, snap.Products, 5)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	source, _, _ := newLoadedCatalog(t)
	snap := NewSnapshotService(source, nil, "").Export(ctx)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	var doc models.Snapshot
	require.NoError(t, json.Unmarshal(raw, &doc))

	target := NewCatalogService(repository.NewMemoryGateway(), nil)
	require.NoError(t, target.LoadAll(ctx))
	result, err := NewSnapshotService(target, nil, "").Import(ctx, &doc)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Products: 5, Categories: 3}, result)

	assert.Equal(t, source.AllCategories(), target.AllCategories())
	require.Len(t, target.AllProducts(), 5)
	for i, p := range source.AllProducts() {
		got := target.AllProducts()[i]
		assert.Equal(t, p.Code, got.Code)
		assert.Equal(t, p.Category, got.Category)
		assert.Equal(t, p.IsActive, got.IsActive)
		if p.Price != nil {
			require.NotNil(t, got.Price)
			assert.True(t, p.Price.Equal(*got.Price))
		}
	}
}

func TestExportImportRoundTripKeepsStoredSlugs(t *testing.T) {
	ctx := context.Background()
	gw := repository.NewMemoryGateway()
	// Slugs written by the old storefront kept accents.
	require.NoError(t, gw.Categories().Insert(ctx, &models.Category{Code: "crustáceos", Slug: "crustáceos", Name: "Crustáceos", IsActive: true}))
	require.NoError(t, gw.Products().Insert(ctx, &models.Product{Code: "CAM001", Slug: "camarão", Name: "Camarão", Category: "crustáceos", Images: []string{}, IsActive: true}))
	svc := NewCatalogService(gw, nil)
	require.NoError(t, svc.LoadAll(ctx))
	snapshots := NewSnapshotService(svc, nil, "")

	result, err := snapshots.Import(ctx, snapshots.Export(ctx))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Categories)
	assert.Equal(t, 1, result.Products)

	cat, err := svc.CategoryBySlug("crustáceos")
	require.NoError(t, err)
	assert.Equal(t, "Crustáceos", cat.Name)
	p, err := svc.ProductByCode("CAM001")
	require.NoError(t, err)
	assert.Equal(t, "crustáceos", p.Category)
	assert.Equal(t, "camarão", p.Slug)
}

func TestImportReplacesCatalog(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLoadedCatalog(t)
	doc := &models.Snapshot{
		Categories: []models.Category{{Code: "moluscos", Name: "Moluscos", IsActive: true}},
		Products:   []models.Product{{Code: "MOL001", Name: "Mexilhão", Category: "moluscos", IsActive: true}},
		Version:    SnapshotVersion,
	}

	_, err := NewSnapshotService(svc, nil, "").Import(ctx, doc)
	require.NoError(t, err)

	require.Len(t, svc.AllCategories(), 1)
	assert.Equal(t, "moluscos", svc.AllCategories()[0].Slug)
	require.Len(t, svc.AllProducts(), 1)
	assert.Equal(t, "mexilhao", svc.AllProducts()[0].Slug)
	assert.NotNil(t, svc.AllProducts()[0].Images)
}

func TestImportFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	svc, gw, _ := newLoadedCatalog(t)
	gw.FailOn("products.insert", errors.New("quota exceeded"))

	doc := &models.Snapshot{
		Categories: []models.Category{{Slug: "moluscos", Name: "Moluscos"}},
		Products:   []models.Product{{Code: "MOL001", Name: "Mexilhão", Category: "moluscos"}},
	}
	_, err := NewSnapshotService(svc, nil, "").Import(ctx, doc)
	require.Error(t, err)

	gw.FailOn("products.insert", nil)
	require.NoError(t, svc.LoadAll(ctx))
	assert.Len(t, svc.AllProducts(), 5)
	assert.Len(t, svc.AllCategories(), 3)
}

func TestValidateSnapshot(t *testing.T) {
	cat := func(slug string) models.Category { return models.Category{Slug: slug, Name: slug} }

	tests := []struct {
		name    string
		doc     *models.Snapshot
		wantErr string
	}{
		{name: "nil", doc: nil, wantErr: "missing"},
		{name: "no products key", doc: &models.Snapshot{Categories: []models.Category{}}, wantErr: "missing"},
		{name: "no categories key", doc: &models.Snapshot{Products: []models.Product{}}, wantErr: "missing"},
		{
			name:    "category without name",
			doc:     &models.Snapshot{Products: []models.Product{}, Categories: []models.Category{cat("peixes"), {Slug: "x"}}},
			wantErr: "category at index 1",
		},
		{
			name:    "duplicate category",
			doc:     &models.Snapshot{Products: []models.Product{}, Categories: []models.Category{cat("peixes"), cat("peixes")}},
			wantErr: "category at index 1 duplicates",
		},
		{
			name: "product missing name",
			doc: &models.Snapshot{Categories: []models.Category{cat("peixes")}, Products: []models.Product{
				{Code: "A", Name: "A", Category: "peixes"},
				{Code: "B", Category: "peixes"},
			}},
			wantErr: "product at index 1",
		},
		{
			name: "duplicate product code",
			doc: &models.Snapshot{Categories: []models.Category{cat("peixes")}, Products: []models.Product{
				{Code: "A", Name: "A", Category: "peixes"},
				{Code: "A", Name: "B", Category: "peixes"},
			}},
			wantErr: "product at index 1 duplicates",
		},
		{
			name: "unknown category",
			doc: &models.Snapshot{Categories: []models.Category{cat("peixes")}, Products: []models.Product{
				{Code: "A", Name: "A", Category: "moluscos"},
			}},
			wantErr: "product at index 0 references unknown category",
		},
		{
			name: "negative price",
			doc: &models.Snapshot{Categories: []models.Category{cat("peixes")}, Products: []models.Product{
				{Code: "A", Name: "A", Category: "peixes", Price: price("-2")},
			}},
			wantErr: "product at index 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateSnapshot(tt.doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSnapshotNormalizes(t *testing.T) {
	doc := &models.Snapshot{
		Categories: []models.Category{{Code: "PX", Slug: "peixes", Name: " Peixes "}},
		Products:   []models.Product{{Code: " PEI001 ", Name: "Salmão", Category: "PX"}},
	}
	out, err := ValidateSnapshot(doc)
	require.NoError(t, err)
	assert.Equal(t, "peixes", out.Categories[0].Code)
	assert.Equal(t, "Peixes", out.Categories[0].Name)
	assert.Equal(t, "PEI001", out.Products[0].Code)
	assert.Equal(t, "peixes", out.Products[0].Category)
	assert.Equal(t, "salmao", out.Products[0].Slug)
	assert.Equal(t, []string{}, out.Products[0].Images)
}

func TestImportValidationWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, gw, _ := newLoadedCatalog(t)
	gw.FailOn("products.delete", errors.New("must not be called"))

	_, err := NewSnapshotService(svc, nil, "").Import(ctx, &models.Snapshot{Products: []models.Product{}})
	assert.ErrorIs(t, err, utils.ErrValidation)
	assert.NoError(t, svc.LastError())
	assert.Len(t, svc.AllProducts(), 5)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLoadedCatalog(t)

	require.NoError(t, NewSnapshotService(svc, nil, "").ClearAll(ctx))
	assert.Empty(t, svc.AllProducts())
	assert.Empty(t, svc.AllCategories())
}

func writeLegacy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy_storage.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestMigrateLegacy(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLoadedCatalog(t)

	products, err := json.Marshal(`[
		{"code":"PEI001","name":"Salmão Fresco","category":"peixes"},
		{"code":"MOL001","name":"Mexilhão","category":"moluscos","images":["https://cdn.example.com/m.jpg"]},
		{"code":"MOL002","name":"Ostra","category":"moluscos","isActive":false}
	]`)
	require.NoError(t, err)
	path := writeLegacy(t, `{
		"imperio_pescado_products": `+string(products)+`,
		"imperio_pescado_categories": [
			{"code":"peixes","slug":"peixes","name":"Peixes"},
			{"code":"moluscos","slug":"moluscos","name":"Moluscos"}
		]
	}`)
	snapshots := NewSnapshotService(svc, nil, path)
	require.True(t, snapshots.HasLegacyData())

	result, err := snapshots.MigrateLegacy(ctx)
	require.NoError(t, err)
	assert.Equal(t, &MigrationResult{
		Found:              true,
		CategoriesImported: 1,
		ProductsImported:   2,
		Skipped:            2,
		Cleared:            true,
	}, result)
	assert.False(t, snapshots.HasLegacyData())

	cat, err := svc.CategoryBySlug("moluscos")
	require.NoError(t, err)
	assert.True(t, cat.IsActive)
	mol1, err := svc.ProductByCode("MOL001")
	require.NoError(t, err)
	assert.True(t, mol1.IsActive)
	mol2, err := svc.ProductByCode("MOL002")
	require.NoError(t, err)
	assert.False(t, mol2.IsActive)
}

func TestMigrateLegacyProductsOnly(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLoadedCatalog(t)
	path := writeLegacy(t, `{
		"imperio_pescado_products": [{"code":"PEI009","name":"Pescada Amarela","category":"peixes"}]
	}`)
	snapshots := NewSnapshotService(svc, nil, path)

	result, err := snapshots.MigrateLegacy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProductsImported)
	assert.Zero(t, result.CategoriesImported)
	assert.True(t, result.Cleared)

	p, err := svc.ProductByCode("PEI009")
	require.NoError(t, err)
	assert.Equal(t, "peixes", p.Category)
	assert.True(t, p.IsActive)
}

func TestMigrateLegacyUnknownCategory(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLoadedCatalog(t)
	path := writeLegacy(t, `{
		"imperio_pescado_products": [{"code":"MOL001","name":"Mexilhão","category":"moluscos"}]
	}`)
	snapshots := NewSnapshotService(svc, nil, path)

	_, err := snapshots.MigrateLegacy(ctx)
	assert.ErrorIs(t, err, utils.ErrValidation)
	assert.Contains(t, err.Error(), `unknown category "moluscos"`)
	assert.True(t, snapshots.HasLegacyData())
	_, err = svc.ProductByCode("MOL001")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestMigrateLegacyMissingFile(t *testing.T) {
	svc, _, _ := newLoadedCatalog(t)
	snapshots := NewSnapshotService(svc, nil, filepath.Join(t.TempDir(), "absent.json"))

	assert.False(t, snapshots.HasLegacyData())
	result, err := snapshots.MigrateLegacy(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestMigrateLegacyFailureKeepsFile(t *testing.T) {
	ctx := context.Background()
	svc, gw, _ := newLoadedCatalog(t)
	gw.FailOn("products.insert", errors.New("offline"))
	path := writeLegacy(t, `{
		"imperio_pescado_products": [{"code":"MOL001","name":"Mexilhão","category":"moluscos"}],
		"imperio_pescado_categories": [{"slug":"moluscos","name":"Moluscos"}]
	}`)
	snapshots := NewSnapshotService(svc, nil, path)

	_, err := snapshots.MigrateLegacy(ctx)
	require.Error(t, err)
	assert.True(t, snapshots.HasLegacyData())

	gw.FailOn("products.insert", nil)
	require.NoError(t, svc.LoadAll(ctx))
	_, err = svc.CategoryBySlug("moluscos")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestMigrateLegacyInvalidDocument(t *testing.T) {
	svc, _, _ := newLoadedCatalog(t)
	path := writeLegacy(t, `["not", "an", "object"]`)

	_, err := NewSnapshotService(svc, nil, path).MigrateLegacy(context.Background())
	assert.ErrorIs(t, err, utils.ErrValidation)
}
