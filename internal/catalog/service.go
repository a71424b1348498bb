package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/Prjsupa/vivero-api/internal/common"
	"github.com/Prjsupa/vivero-api/internal/store"
)

// Querier is the subset of store queries the catalog needs.
type Querier interface {
	ListProducts(ctx context.Context, limit, offset int32) ([]store.Product, error)
	CountProducts(ctx context.Context) (int64, error)
	GetProduct(ctx context.Context, id pgtype.UUID) (store.Product, error)
	CreateProduct(ctx context.Context, arg store.CreateProductParams) (store.Product, error)
	UpdateProduct(ctx context.Context, arg store.UpdateProductParams) (store.Product, error)
	DeleteProduct(ctx context.Context, id pgtype.UUID) error
	ListServices(ctx context.Context, limit, offset int32) ([]store.Service, error)
	CountServices(ctx context.Context) (int64, error)
	GetService(ctx context.Context, id pgtype.UUID) (store.Service, error)
	CreateService(ctx context.Context, arg store.CreateServiceParams) (store.Service, error)
	UpdateService(ctx context.Context, arg store.UpdateServiceParams) (store.Service, error)
	DeleteService(ctx context.Context, id pgtype.UUID) error
	ListProductCategories(ctx context.Context) ([]store.RefEntry, error)
	CreateProductCategory(ctx context.Context, name string) (store.RefEntry, error)
	DeleteProductCategory(ctx context.Context, id pgtype.UUID) error
	ListProductSubcategories(ctx context.Context) ([]store.RefEntry, error)
	CreateProductSubcategory(ctx context.Context, categoryID pgtype.UUID, name string) (store.RefEntry, error)
	DeleteProductSubcategory(ctx context.Context, id pgtype.UUID) error
	ListServiceCategories(ctx context.Context) ([]store.RefEntry, error)
	CreateServiceCategory(ctx context.Context, name string) (store.RefEntry, error)
	DeleteServiceCategory(ctx context.Context, id pgtype.UUID) error
	ListUnits(ctx context.Context) ([]store.RefEntry, error)
	CreateUnit(ctx context.Context, name string, abbrev pgtype.Text) (store.RefEntry, error)
	DeleteUnit(ctx context.Context, id pgtype.UUID) error
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	queries      Querier
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      Querier
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ListParams captures pagination for catalog listings.
type ListParams struct {
	Page  int
	Limit int
}

// ParseListParams normalises raw query values into pagination parameters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = limit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	return params, nil
}

// ProductDTO is the public product payload.
type ProductDTO struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	CategoryID    *string         `json:"categoryId,omitempty"`
	SubcategoryID *string         `json:"subcategoryId,omitempty"`
	UnitID        *string         `json:"unitId,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	Active        bool            `json:"active"`
}

// ServiceDTO is the public service payload.
type ServiceDTO struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	CategoryID *string         `json:"categoryId,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Active     bool            `json:"active"`
}

// RefDTO is a reference-table entry payload.
type RefDTO struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parentId,omitempty"`
	Name     string  `json:"name"`
	Code     *string `json:"code,omitempty"`
}

// ListResult carries a page of items and the total count.
type ListResult[T any] struct {
	Items []T
	Total int64
	Page  int
	Limit int
}

// ProductInput is the admin create/update payload for products.
type ProductInput struct {
	SKU           string          `json:"sku" validate:"required"`
	Name          string          `json:"name" validate:"required"`
	CategoryID    *string         `json:"categoryId" validate:"omitempty,uuid"`
	SubcategoryID *string         `json:"subcategoryId" validate:"omitempty,uuid"`
	UnitID        *string         `json:"unitId" validate:"omitempty,uuid"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock" validate:"gte=0"`
	Active        *bool           `json:"active"`
}

// ServiceInput is the admin create/update payload for services.
type ServiceInput struct {
	Name       string          `json:"name" validate:"required"`
	CategoryID *string         `json:"categoryId" validate:"omitempty,uuid"`
	Price      decimal.Decimal `json:"price"`
	Active     *bool           `json:"active"`
}

// ListProducts returns a page of products. The first page with default
// limits is served from cache when available.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ListResult[ProductDTO], error) {
	key, cacheable := s.listCacheKey("products", params)
	if cacheable {
		var cached cachedPage[ProductDTO]
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return ListResult[ProductDTO]{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}
	total, err := s.queries.CountProducts(ctx)
	if err != nil {
		return ListResult[ProductDTO]{}, fmt.Errorf("count products: %w", err)
	}
	rows, err := s.queries.ListProducts(ctx, int32(params.Limit), offsetFor(params))
	if err != nil {
		return ListResult[ProductDTO]{}, fmt.Errorf("list products: %w", err)
	}
	items := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, productDTO(row))
	}
	if cacheable {
		_ = s.cache.SetJSON(ctx, key, cachedPage[ProductDTO]{Items: items, Total: total})
	}
	return ListResult[ProductDTO]{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetProduct returns a single product by id.
func (s *Service) GetProduct(ctx context.Context, id string) (ProductDTO, error) {
	pgID, err := parseID(id)
	if err != nil {
		return ProductDTO{}, err
	}
	row, err := s.queries.GetProduct(ctx, pgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductDTO{}, notFound("product not found", err)
		}
		return ProductDTO{}, fmt.Errorf("get product: %w", err)
	}
	return productDTO(row), nil
}

// CreateProduct inserts a product from an admin payload.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (ProductDTO, error) {
	row, err := s.queries.CreateProduct(ctx, store.CreateProductParams{
		SKU:           strings.TrimSpace(in.SKU),
		Name:          strings.TrimSpace(in.Name),
		CategoryID:    optionalID(in.CategoryID),
		SubcategoryID: optionalID(in.SubcategoryID),
		UnitID:        optionalID(in.UnitID),
		Price:         in.Price,
		Stock:         int32(in.Stock),
		Active:        boolOrTrue(in.Active),
	})
	if err != nil {
		return ProductDTO{}, fmt.Errorf("create product: %w", err)
	}
	s.invalidateList(ctx, "products")
	return productDTO(row), nil
}

// UpdateProduct overwrites a product from an admin payload.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (ProductDTO, error) {
	pgID, err := parseID(id)
	if err != nil {
		return ProductDTO{}, err
	}
	row, err := s.queries.UpdateProduct(ctx, store.UpdateProductParams{
		ID:            pgID,
		SKU:           strings.TrimSpace(in.SKU),
		Name:          strings.TrimSpace(in.Name),
		CategoryID:    optionalID(in.CategoryID),
		SubcategoryID: optionalID(in.SubcategoryID),
		UnitID:        optionalID(in.UnitID),
		Price:         in.Price,
		Stock:         int32(in.Stock),
		Active:        boolOrTrue(in.Active),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductDTO{}, notFound("product not found", err)
		}
		return ProductDTO{}, fmt.Errorf("update product: %w", err)
	}
	s.invalidateList(ctx, "products")
	return productDTO(row), nil
}

// DeleteProduct removes a product by id.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	pgID, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.queries.DeleteProduct(ctx, pgID); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidateList(ctx, "products")
	return nil
}

// ListServices returns a page of services.
func (s *Service) ListServices(ctx context.Context, params ListParams) (ListResult[ServiceDTO], error) {
	key, cacheable := s.listCacheKey("services", params)
	if cacheable {
		var cached cachedPage[ServiceDTO]
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return ListResult[ServiceDTO]{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}
	total, err := s.queries.CountServices(ctx)
	if err != nil {
		return ListResult[ServiceDTO]{}, fmt.Errorf("count services: %w", err)
	}
	rows, err := s.queries.ListServices(ctx, int32(params.Limit), offsetFor(params))
	if err != nil {
		return ListResult[ServiceDTO]{}, fmt.Errorf("list services: %w", err)
	}
	items := make([]ServiceDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, serviceDTO(row))
	}
	if cacheable {
		_ = s.cache.SetJSON(ctx, key, cachedPage[ServiceDTO]{Items: items, Total: total})
	}
	return ListResult[ServiceDTO]{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetService returns a single service by id.
func (s *Service) GetService(ctx context.Context, id string) (ServiceDTO, error) {
	pgID, err := parseID(id)
	if err != nil {
		return ServiceDTO{}, err
	}
	row, err := s.queries.GetService(ctx, pgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ServiceDTO{}, notFound("service not found", err)
		}
		return ServiceDTO{}, fmt.Errorf("get service: %w", err)
	}
	return serviceDTO(row), nil
}

// CreateService inserts a service from an admin payload.
func (s *Service) CreateService(ctx context.Context, in ServiceInput) (ServiceDTO, error) {
	row, err := s.queries.CreateService(ctx, store.CreateServiceParams{
		Name:       strings.TrimSpace(in.Name),
		CategoryID: optionalID(in.CategoryID),
		Price:      in.Price,
		Active:     boolOrTrue(in.Active),
	})
	if err != nil {
		return ServiceDTO{}, fmt.Errorf("create service: %w", err)
	}
	s.invalidateList(ctx, "services")
	return serviceDTO(row), nil
}

// UpdateService overwrites a service from an admin payload.
func (s *Service) UpdateService(ctx context.Context, id string, in ServiceInput) (ServiceDTO, error) {
	pgID, err := parseID(id)
	if err != nil {
		return ServiceDTO{}, err
	}
	row, err := s.queries.UpdateService(ctx, store.UpdateServiceParams{
		ID:         pgID,
		Name:       strings.TrimSpace(in.Name),
		CategoryID: optionalID(in.CategoryID),
		Price:      in.Price,
		Active:     boolOrTrue(in.Active),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ServiceDTO{}, notFound("service not found", err)
		}
		return ServiceDTO{}, fmt.Errorf("update service: %w", err)
	}
	s.invalidateList(ctx, "services")
	return serviceDTO(row), nil
}

// DeleteService removes a service by id.
func (s *Service) DeleteService(ctx context.Context, id string) error {
	pgID, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.queries.DeleteService(ctx, pgID); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	s.invalidateList(ctx, "services")
	return nil
}

// RefTable identifies one of the catalog reference tables.
type RefTable string

// Reference tables exposed through the admin API.
const (
	RefProductCategories    RefTable = "product_categories"
	RefProductSubcategories RefTable = "product_subcategories"
	RefServiceCategories    RefTable = "service_categories"
	RefUnits                RefTable = "units"
)

// ListRef returns every entry of a reference table.
func (s *Service) ListRef(ctx context.Context, table RefTable) ([]RefDTO, error) {
	var (
		rows []store.RefEntry
		err  error
	)
	switch table {
	case RefProductCategories:
		rows, err = s.queries.ListProductCategories(ctx)
	case RefProductSubcategories:
		rows, err = s.queries.ListProductSubcategories(ctx)
	case RefServiceCategories:
		rows, err = s.queries.ListServiceCategories(ctx)
	case RefUnits:
		rows, err = s.queries.ListUnits(ctx)
	default:
		return nil, badRequest("table", "unknown reference table", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	result := make([]RefDTO, 0, len(rows))
	for _, row := range rows {
		result = append(result, refDTO(row))
	}
	return result, nil
}

// RefInput is the admin payload for reference-table entries.
type RefInput struct {
	Name     string  `json:"name" validate:"required"`
	ParentID *string `json:"parentId" validate:"omitempty,uuid"`
	Code     *string `json:"code"`
}

// CreateRef inserts a reference-table entry.
func (s *Service) CreateRef(ctx context.Context, table RefTable, in RefInput) (RefDTO, error) {
	name := strings.TrimSpace(in.Name)
	var (
		row store.RefEntry
		err error
	)
	switch table {
	case RefProductCategories:
		row, err = s.queries.CreateProductCategory(ctx, name)
	case RefProductSubcategories:
		if in.ParentID == nil {
			return RefDTO{}, badRequest("parentId", "parentId is required for subcategories", nil)
		}
		parent, perr := parseID(*in.ParentID)
		if perr != nil {
			return RefDTO{}, perr
		}
		row, err = s.queries.CreateProductSubcategory(ctx, parent, name)
	case RefServiceCategories:
		row, err = s.queries.CreateServiceCategory(ctx, name)
	case RefUnits:
		abbrev := pgtype.Text{}
		if in.Code != nil && strings.TrimSpace(*in.Code) != "" {
			abbrev = pgtype.Text{String: strings.TrimSpace(*in.Code), Valid: true}
		}
		row, err = s.queries.CreateUnit(ctx, name, abbrev)
	default:
		return RefDTO{}, badRequest("table", "unknown reference table", nil)
	}
	if err != nil {
		return RefDTO{}, fmt.Errorf("create %s: %w", table, err)
	}
	return refDTO(row), nil
}

// DeleteRef removes a reference-table entry.
func (s *Service) DeleteRef(ctx context.Context, table RefTable, id string) error {
	pgID, err := parseID(id)
	if err != nil {
		return err
	}
	switch table {
	case RefProductCategories:
		err = s.queries.DeleteProductCategory(ctx, pgID)
	case RefProductSubcategories:
		err = s.queries.DeleteProductSubcategory(ctx, pgID)
	case RefServiceCategories:
		err = s.queries.DeleteServiceCategory(ctx, pgID)
	case RefUnits:
		err = s.queries.DeleteUnit(ctx, pgID)
	default:
		return badRequest("table", "unknown reference table", nil)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

type cachedPage[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

func (s *Service) listCacheKey(kind string, params ListParams) (string, bool) {
	if s.cache == nil || params.Page != 1 || params.Limit != s.defaultLimit {
		return "", false
	}
	return "catalog:" + kind + ":list:first", true
}

func (s *Service) invalidateList(ctx context.Context, kind string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, "catalog:"+kind+":list:first")
}

func offsetFor(params ListParams) int32 {
	offset := (params.Page - 1) * params.Limit
	if offset < 0 {
		offset = 0
	}
	return int32(offset)
}

func productDTO(row store.Product) ProductDTO {
	return ProductDTO{
		ID:            uuidString(row.ID),
		SKU:           row.SKU,
		Name:          row.Name,
		CategoryID:    optionalString(row.CategoryID),
		SubcategoryID: optionalString(row.SubcategoryID),
		UnitID:        optionalString(row.UnitID),
		Price:         row.Price,
		Stock:         int(row.Stock),
		Active:        row.Active,
	}
}

func serviceDTO(row store.Service) ServiceDTO {
	return ServiceDTO{
		ID:         uuidString(row.ID),
		Name:       row.Name,
		CategoryID: optionalString(row.CategoryID),
		Price:      row.Price,
		Active:     row.Active,
	}
}

func refDTO(row store.RefEntry) RefDTO {
	dto := RefDTO{ID: uuidString(row.ID), Name: row.Name}
	if row.ParentID.Valid {
		parent := uuidString(row.ParentID)
		dto.ParentID = &parent
	}
	if row.Code.Valid {
		code := row.Code.String
		dto.Code = &code
	}
	return dto
}

func optionalString(id pgtype.UUID) *string {
	if !id.Valid {
		return nil
	}
	s := uuidString(id)
	return &s
}

func optionalID(raw *string) pgtype.UUID {
	if raw == nil {
		return pgtype.UUID{}
	}
	u, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: u, Valid: true}
}

func parseID(raw string) (pgtype.UUID, error) {
	u, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return pgtype.UUID{}, badRequest("id", "id must be a valid UUID", err)
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}

func boolOrTrue(ptr *bool) bool {
	if ptr == nil {
		return true
	}
	return *ptr
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

func notFound(message string, err error) *common.AppError {
	return &common.AppError{Code: common.CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound, Err: err}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       common.CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
