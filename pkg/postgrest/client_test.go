package postgrest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSelect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/rest/v1/categories", r.URL.Path)
		assert.Equal(t, "slug,name", r.URL.Query().Get("select"))
		assert.Equal(t, "name.asc", r.URL.Query().Get("order"))
		assert.Equal(t, "eq.true", r.URL.Query().Get("is_active"))
		assert.Empty(t, r.Header.Get("Prefer"))
		_, _ = io.WriteString(w, `[{"slug":"peixes","name":"Peixes"}]`)
	}))
	defer srv.Close()

	var rows []struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	}
	c := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "anon-key"})
	require.NoError(t, c.Select(context.Background(), "categories", "slug,name", "name.asc", &rows, Eq("is_active", true)))
	require.Len(t, rows, 1)
	assert.Equal(t, "peixes", rows[0].Slug)
}

func TestClientWritesPreferMinimal(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, "products", []map[string]string{{"code": "A"}}))
	require.NoError(t, c.Update(ctx, "products", map[string]string{"name": "B"}, Eq("code", "A")))
	require.NoError(t, c.Delete(ctx, "products", Eq("code", "A")))
	assert.Equal(t, []string{http.MethodPost, http.MethodPatch, http.MethodDelete}, methods)
}

func TestClientRefusesUnfilteredWrites(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", APIKey: "k"})
	assert.Error(t, c.Update(context.Background(), "products", map[string]string{"name": "x"}))
	assert.Error(t, c.Delete(context.Background(), "products"))
}

func TestClientAPIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
		missing     bool
	}{
		{name: "json error", status: 400, body: `{"code":"23503","message":"fk violation"}`, wantCode: "23503", wantMessage: "fk violation"},
		{name: "missing table", status: 404, body: `{"code":"PGRST205","message":"no table"}`, wantCode: "PGRST205", wantMessage: "no table", missing: true},
		{name: "plain text", status: 502, body: "bad gateway\n", wantMessage: "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := NewClient(Config{BaseURL: srv.URL}).Probe(context.Background(), "products")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.missing, IsMissingRelation(err))
		})
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClient(Config{BaseURL: url}).Probe(context.Background(), "products")
	require.Error(t, err)
	assert.False(t, IsMissingRelation(err))
}
