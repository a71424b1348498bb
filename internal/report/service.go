package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Prjsupa/vivero-api/internal/store"
)

// Querier defines the database access required for report operations.
type Querier interface {
	GetSalesDailyRange(ctx context.Context, from, to time.Time) ([]store.SalesDay, error)
	ListTopItems(ctx context.Context, from, to time.Time, limit int32) ([]store.TopItem, error)
}

// Service provides cached access to sales aggregates.
type Service struct {
	Q            Querier
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SalesDayDTO is one day of invoicing activity.
type SalesDayDTO struct {
	Day       string          `json:"day"`
	Invoices  int64           `json:"invoices"`
	Revenue   decimal.Decimal `json:"revenue"`
	Discounts decimal.Decimal `json:"discounts"`
}

// TopItemDTO is one best-selling catalog item.
type TopItemDTO struct {
	ItemID   string          `json:"itemId"`
	ItemKind string          `json:"itemKind"`
	Name     string          `json:"name"`
	Qty      int64           `json:"qty"`
	Revenue  decimal.Decimal `json:"revenue"`
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// SalesRange returns per-day sales between the bounds, inclusive of from and
// exclusive of to.
func (s *Service) SalesRange(ctx context.Context, from, to time.Time) ([]SalesDayDTO, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("report service not configured")
	}
	key := cacheKey("rp", "sales", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []SalesDayDTO
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.Q.GetSalesDailyRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]SalesDayDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, SalesDayDTO{
			Day:       row.Day.Format("2006-01-02"),
			Invoices:  row.Invoices,
			Revenue:   row.Revenue,
			Discounts: row.Discounts,
		})
	}
	s.store(ctx, key, out)
	return out, nil
}

// TopItems returns the best-selling items by quantity within the bounds.
func (s *Service) TopItems(ctx context.Context, from, to time.Time, limit int) ([]TopItemDTO, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("report service not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	key := cacheKey("rp", "top", from.Format("2006-01-02"), to.Format("2006-01-02"), limit)
	var cached []TopItemDTO
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.Q.ListTopItems(ctx, from, to, int32(limit))
	if err != nil {
		return nil, err
	}
	out := make([]TopItemDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, TopItemDTO{
			ItemID:   uuid.UUID(row.ItemID.Bytes).String(),
			ItemKind: row.ItemKind,
			Name:     row.Name,
			Qty:      row.Qty,
			Revenue:  row.Revenue,
		})
	}
	s.store(ctx, key, out)
	return out, nil
}

func (s *Service) fromCache(ctx context.Context, key string, dst any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
