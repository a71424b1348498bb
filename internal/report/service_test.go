package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Prjsupa/vivero-api/internal/report"
	"github.com/Prjsupa/vivero-api/internal/store"
)

type stubQueries struct {
	salesCalls int
	topCalls   int
}

func (s *stubQueries) GetSalesDailyRange(_ context.Context, from, _ time.Time) ([]store.SalesDay, error) {
	s.salesCalls++
	return []store.SalesDay{{
		Day:       from,
		Invoices:  3,
		Revenue:   decimal.NewFromInt(4500),
		Discounts: decimal.NewFromInt(300),
	}}, nil
}

func (s *stubQueries) ListTopItems(_ context.Context, _, _ time.Time, limit int32) ([]store.TopItem, error) {
	s.topCalls++
	return []store.TopItem{{
		ItemID:   pgtype.UUID{Bytes: [16]byte{1}, Valid: true},
		ItemKind: "product",
		Name:     "Rosal trepador",
		Qty:      12,
		Revenue:  decimal.NewFromInt(1800),
	}}, nil
}

func newTestService(t *testing.T) (*report.Service, *stubQueries) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	queries := &stubQueries{}
	return &report.Service{Q: queries, R: rdb, TTL: time.Minute, DefaultRange: 30}, queries
}

func TestSalesRangeCached(t *testing.T) {
	svc, queries := newTestService(t)
	from := time.Now().AddDate(0, 0, -7).Truncate(24 * time.Hour)
	to := time.Now().Truncate(24 * time.Hour)

	rows, err := svc.SalesRange(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 3, rows[0].Invoices)
	require.True(t, rows[0].Revenue.Equal(decimal.NewFromInt(4500)))

	_, err = svc.SalesRange(context.Background(), from, to)
	require.NoError(t, err)
	require.Equal(t, 1, queries.salesCalls)
}

func TestTopItemsCached(t *testing.T) {
	svc, queries := newTestService(t)
	from := time.Now().AddDate(0, 0, -30)
	to := time.Now()

	rows, err := svc.TopItems(context.Background(), from, to, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Rosal trepador", rows[0].Name)
	require.EqualValues(t, 12, rows[0].Qty)

	_, err = svc.TopItems(context.Background(), from, to, 5)
	require.NoError(t, err)
	require.Equal(t, 1, queries.topCalls)

	// a different limit misses the cache
	_, err = svc.TopItems(context.Background(), from, to, 3)
	require.NoError(t, err)
	require.Equal(t, 2, queries.topCalls)
}

func TestServiceWithoutRedisSkipsCache(t *testing.T) {
	queries := &stubQueries{}
	svc := &report.Service{Q: queries, DefaultRange: 30}
	from := time.Now().AddDate(0, 0, -1)
	to := time.Now()

	_, err := svc.SalesRange(context.Background(), from, to)
	require.NoError(t, err)
	_, err = svc.SalesRange(context.Background(), from, to)
	require.NoError(t, err)
	require.Equal(t, 2, queries.salesCalls)
}
