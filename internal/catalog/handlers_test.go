package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Prjsupa/vivero-api/internal/catalog"
	"github.com/Prjsupa/vivero-api/internal/store"
)

type fakeQueries struct {
	products map[uuid.UUID]store.Product
	services map[uuid.UUID]store.Service
	prodCats map[uuid.UUID]store.RefEntry
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{
		products: map[uuid.UUID]store.Product{},
		services: map[uuid.UUID]store.Service{},
		prodCats: map[uuid.UUID]store.RefEntry{},
	}
}

func pgID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func (f *fakeQueries) ListProducts(_ context.Context, limit, offset int32) ([]store.Product, error) {
	out := make([]store.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeQueries) CountProducts(context.Context) (int64, error) {
	return int64(len(f.products)), nil
}

func (f *fakeQueries) GetProduct(_ context.Context, id pgtype.UUID) (store.Product, error) {
	p, ok := f.products[uuid.UUID(id.Bytes)]
	if !ok {
		return store.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeQueries) CreateProduct(_ context.Context, arg store.CreateProductParams) (store.Product, error) {
	id := uuid.New()
	p := store.Product{
		ID:            pgID(id),
		SKU:           arg.SKU,
		Name:          arg.Name,
		CategoryID:    arg.CategoryID,
		SubcategoryID: arg.SubcategoryID,
		UnitID:        arg.UnitID,
		Price:         arg.Price,
		Stock:         arg.Stock,
		Active:        arg.Active,
	}
	f.products[id] = p
	return p, nil
}

func (f *fakeQueries) UpdateProduct(_ context.Context, arg store.UpdateProductParams) (store.Product, error) {
	id := uuid.UUID(arg.ID.Bytes)
	if _, ok := f.products[id]; !ok {
		return store.Product{}, pgx.ErrNoRows
	}
	p := store.Product{
		ID:            arg.ID,
		SKU:           arg.SKU,
		Name:          arg.Name,
		CategoryID:    arg.CategoryID,
		SubcategoryID: arg.SubcategoryID,
		UnitID:        arg.UnitID,
		Price:         arg.Price,
		Stock:         arg.Stock,
		Active:        arg.Active,
	}
	f.products[id] = p
	return p, nil
}

func (f *fakeQueries) DeleteProduct(_ context.Context, id pgtype.UUID) error {
	delete(f.products, uuid.UUID(id.Bytes))
	return nil
}

func (f *fakeQueries) ListServices(_ context.Context, limit, offset int32) ([]store.Service, error) {
	out := make([]store.Service, 0, len(f.services))
	for _, s := range f.services {
		out = append(out, s)
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeQueries) CountServices(context.Context) (int64, error) {
	return int64(len(f.services)), nil
}

func (f *fakeQueries) GetService(_ context.Context, id pgtype.UUID) (store.Service, error) {
	s, ok := f.services[uuid.UUID(id.Bytes)]
	if !ok {
		return store.Service{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeQueries) CreateService(_ context.Context, arg store.CreateServiceParams) (store.Service, error) {
	id := uuid.New()
	s := store.Service{
		ID:         pgID(id),
		Name:       arg.Name,
		CategoryID: arg.CategoryID,
		Price:      arg.Price,
		Active:     arg.Active,
	}
	f.services[id] = s
	return s, nil
}

func (f *fakeQueries) UpdateService(_ context.Context, arg store.UpdateServiceParams) (store.Service, error) {
	id := uuid.UUID(arg.ID.Bytes)
	if _, ok := f.services[id]; !ok {
		return store.Service{}, pgx.ErrNoRows
	}
	s := store.Service{
		ID:         arg.ID,
		Name:       arg.Name,
		CategoryID: arg.CategoryID,
		Price:      arg.Price,
		Active:     arg.Active,
	}
	f.services[id] = s
	return s, nil
}

func (f *fakeQueries) DeleteService(_ context.Context, id pgtype.UUID) error {
	delete(f.services, uuid.UUID(id.Bytes))
	return nil
}

func (f *fakeQueries) ListProductCategories(context.Context) ([]store.RefEntry, error) {
	out := make([]store.RefEntry, 0, len(f.prodCats))
	for _, e := range f.prodCats {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeQueries) CreateProductCategory(_ context.Context, name string) (store.RefEntry, error) {
	id := uuid.New()
	e := store.RefEntry{ID: pgID(id), Name: name}
	f.prodCats[id] = e
	return e, nil
}

func (f *fakeQueries) DeleteProductCategory(_ context.Context, id pgtype.UUID) error {
	delete(f.prodCats, uuid.UUID(id.Bytes))
	return nil
}

func (f *fakeQueries) ListProductSubcategories(context.Context) ([]store.RefEntry, error) {
	return nil, nil
}

func (f *fakeQueries) CreateProductSubcategory(_ context.Context, categoryID pgtype.UUID, name string) (store.RefEntry, error) {
	return store.RefEntry{ID: pgID(uuid.New()), ParentID: categoryID, Name: name}, nil
}

func (f *fakeQueries) DeleteProductSubcategory(context.Context, pgtype.UUID) error { return nil }

func (f *fakeQueries) ListServiceCategories(context.Context) ([]store.RefEntry, error) {
	return nil, nil
}

func (f *fakeQueries) CreateServiceCategory(_ context.Context, name string) (store.RefEntry, error) {
	return store.RefEntry{ID: pgID(uuid.New()), Name: name}, nil
}

func (f *fakeQueries) DeleteServiceCategory(context.Context, pgtype.UUID) error { return nil }

func (f *fakeQueries) ListUnits(context.Context) ([]store.RefEntry, error) { return nil, nil }

func (f *fakeQueries) CreateUnit(_ context.Context, name string, abbrev pgtype.Text) (store.RefEntry, error) {
	return store.RefEntry{ID: pgID(uuid.New()), Name: name, Code: abbrev}, nil
}

func (f *fakeQueries) DeleteUnit(context.Context, pgtype.UUID) error { return nil }

func newTestRouter(t *testing.T, queries *fakeQueries) *chi.Mux {
	t.Helper()
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      queries,
		DefaultLimit: 20,
		MaxLimit:     100,
	})
	require.NoError(t, err)
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	r := chi.NewRouter()
	r.Get("/api/v1/products", handler.Products)
	r.Post("/api/v1/products", handler.CreateProduct)
	r.Get("/api/v1/products/{id}", handler.ProductDetail)
	r.Put("/api/v1/products/{id}", handler.UpdateProduct)
	r.Delete("/api/v1/products/{id}", handler.DeleteProduct)
	r.Get("/api/v1/services", handler.Services)
	r.Post("/api/v1/services", handler.CreateService)
	r.Get("/api/v1/refs/{table}", handler.ListRef)
	r.Post("/api/v1/refs/{table}", handler.CreateRef)
	return r
}

func TestProductCRUD(t *testing.T) {
	queries := newFakeQueries()
	router := newTestRouter(t, queries)

	body := `{"sku":"ROSA-01","name":"Rosal trepador","price":"1500","stock":10}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data catalog.ProductDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "ROSA-01", created.Data.SKU)
	require.True(t, created.Data.Active)
	require.True(t, created.Data.Price.Equal(decimal.NewFromInt(1500)))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/"+created.Data.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+created.Data.ID, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/"+created.Data.ID, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductValidation(t *testing.T) {
	router := newTestRouter(t, newFakeQueries())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"sin sku"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "VALIDATION", resp.Error.Code)
}

func TestProductListPagination(t *testing.T) {
	queries := newFakeQueries()
	for i := 0; i < 3; i++ {
		_, err := queries.CreateProduct(context.Background(), store.CreateProductParams{
			SKU:    "SKU-" + uuid.NewString()[:8],
			Name:   "Planta",
			Price:  decimal.NewFromInt(100),
			Active: true,
		})
		require.NoError(t, err)
	}
	router := newTestRouter(t, queries)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-Total-Count"))

	var resp struct {
		Data       []catalog.ProductDTO `json:"data"`
		Pagination struct {
			Page       int `json:"page"`
			PerPage    int `json:"per_page"`
			TotalItems int `json:"total_items"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.Equal(t, 3, resp.Pagination.TotalItems)
}

func TestRefTables(t *testing.T) {
	router := newTestRouter(t, newFakeQueries())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/refs/product_categories", strings.NewReader(`{"name":"Plantas de interior"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/refs/product_categories", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []catalog.RefDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Plantas de interior", resp.Data[0].Name)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/refs/nope", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
