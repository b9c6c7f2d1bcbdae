package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/utils"
	"github.com/GTDGit/catalog_api/pkg/postgrest"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Body   map[string]interface{}
	Rows   []map[string]interface{}
}

func newRestGateway(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*RestGateway, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			if raw[0] == '[' {
				_ = json.Unmarshal(raw, &rec.Rows)
			} else {
				_ = json.Unmarshal(raw, &rec.Body)
			}
		}
		requests = append(requests, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := postgrest.NewClient(postgrest.Config{BaseURL: srv.URL, APIKey: "anon-key"})
	return NewRestGateway(client), &requests
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestRestProductsList(t *testing.T) {
	gw, requests := newRestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"code":"PEI001","slug":"salmao","name":"Salmão","category_code":"peixes","image_url":"a.jpg","description":"Filé","price":"89.90","images":["a.jpg"],"is_active":true},
			{"code":"PEI002","slug":"tilapia","name":"Tilápia","category_code":"peixes","image_url":"old.jpg","description":null,"price":null,"images":null,"is_active":true}
		]`)
	})

	active := true
	products, err := gw.Products().List(context.Background(), &ProductFilter{CategoryCode: "peixes", IsActive: &active})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Filé", products[0].Description)
	require.NotNil(t, products[0].Price)
	assert.Equal(t, "89.9", products[0].Price.String())
	assert.Equal(t, []string{"old.jpg"}, products[1].Images)
	assert.Nil(t, products[1].Price)

	req := (*requests)[0]
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/rest/v1/products", req.Path)
	assert.Equal(t, []string{"eq.peixes"}, req.Query["category_code"])
	assert.Equal(t, []string{"eq.true"}, req.Query["is_active"])
	assert.Equal(t, []string{"name.asc"}, req.Query["order"])
}

func TestRestProductsWrites(t *testing.T) {
	gw, requests := newRestGateway(t, noContent)
	ctx := context.Background()

	require.NoError(t, gw.Products().Insert(ctx, &models.Product{Code: "PEI003", Name: "Pescada", Category: "peixes", Images: []string{"p.jpg"}, IsActive: true}))
	images := []string{"x.jpg", "y.jpg"}
	require.NoError(t, gw.Products().Update(ctx, "PEI003", &models.ProductPatch{Images: &images}))
	require.NoError(t, gw.Products().Reassign(ctx, "peixes", "peixes-frescos"))
	require.NoError(t, gw.Products().SetActiveByCategory(ctx, "peixes-frescos", false))
	require.NoError(t, gw.Products().Delete(ctx, "PEI003"))
	require.Len(t, *requests, 5)

	insert := (*requests)[0]
	assert.Equal(t, http.MethodPost, insert.Method)
	require.Len(t, insert.Rows, 1)
	assert.Equal(t, "peixes", insert.Rows[0]["category_code"])
	assert.Equal(t, "p.jpg", insert.Rows[0]["image_url"])

	update := (*requests)[1]
	assert.Equal(t, http.MethodPatch, update.Method)
	assert.Equal(t, []string{"eq.PEI003"}, update.Query["code"])
	assert.Equal(t, "x.jpg", update.Body["image_url"])

	reassign := (*requests)[2]
	assert.Equal(t, []string{"eq.peixes"}, reassign.Query["category_code"])
	assert.Equal(t, "peixes-frescos", reassign.Body["category_code"])

	setActive := (*requests)[3]
	assert.Equal(t, false, setActive.Body["is_active"])

	del := (*requests)[4]
	assert.Equal(t, http.MethodDelete, del.Method)
	assert.Equal(t, []string{"eq.PEI003"}, del.Query["code"])
}

func TestRestProductClearPrice(t *testing.T) {
	gw, requests := newRestGateway(t, noContent)

	require.NoError(t, gw.Products().Update(context.Background(), "PEI001", &models.ProductPatch{ClearPrice: true}))
	require.Len(t, *requests, 1)
	body := (*requests)[0].Body
	require.Contains(t, body, "price")
	assert.Nil(t, body["price"])
}

func TestRestCategories(t *testing.T) {
	gw, requests := newRestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, `[{"code":"peixes","slug":"peixes","name":"Peixes","image_url":"","is_active":true}]`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	list, err := gw.Categories().List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []models.Category{{Code: "peixes", Slug: "peixes", Name: "Peixes", IsActive: true}}, list)

	slug := "peixes-frescos"
	require.NoError(t, gw.Categories().Update(ctx, "peixes", &models.CategoryPatch{Code: &slug, Slug: &slug}))
	require.NoError(t, gw.Categories().Delete(ctx, "peixes-frescos"))

	update := (*requests)[1]
	assert.Equal(t, []string{"eq.peixes"}, update.Query["slug"])
	assert.Equal(t, "peixes-frescos", update.Body["slug"])
	assert.Equal(t, "peixes-frescos", update.Body["code"])
}

func TestRestErrorsAreRemote(t *testing.T) {
	gw, _ := newRestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"code":"23505","message":"duplicate key value violates unique constraint"}`)
	})

	err := gw.Categories().Insert(context.Background(), &models.Category{Code: "peixes", Slug: "peixes", Name: "Peixes"})
	var remote *utils.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "categories.insert", remote.Op)
	var apiErr *postgrest.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "23505", apiErr.Code)
}

func TestRestPasswordHash(t *testing.T) {
	t.Run("stored", func(t *testing.T) {
		gw, requests := newRestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `[{"password_hash":"$2a$10$hash"}]`)
		})
		hash, err := gw.PasswordHash(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "$2a$10$hash", hash)
		assert.Equal(t, []string{"eq.admin_password"}, (*requests)[0].Query["key"])
	})

	t.Run("missing table", func(t *testing.T) {
		gw, _ := newRestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"code":"PGRST205","message":"Could not find the table"}`)
		})
		hash, err := gw.PasswordHash(context.Background())
		require.NoError(t, err)
		assert.Empty(t, hash)
	})
}

func TestRestPing(t *testing.T) {
	gw, requests := newRestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	require.NoError(t, gw.Ping(context.Background()))
	assert.Equal(t, "/rest/v1/categories", (*requests)[0].Path)
	assert.Equal(t, []string{"1"}, (*requests)[0].Query["limit"])
}
