package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts cart pricing computations by outcome.
	QuoteTotal *prometheus.CounterVec
	// InvoiceIssuedTotal counts issued invoices by type.
	InvoiceIssuedTotal *prometheus.CounterVec
	// PromotionAppliedTotal counts promotion applications by mechanism.
	PromotionAppliedTotal *prometheus.CounterVec
	// StockConflictTotal counts invoice attempts rejected on stock.
	StockConflictTotal prometheus.Counter
	// QuoteDuration records pricing computation latency in milliseconds.
	QuoteDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_total",
			Help:      "Count of cart pricing computations by outcome.",
		}, []string{"result"})
		InvoiceIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_issued_total",
			Help:      "Count of issued invoices by invoice type.",
		}, []string{"type"})
		PromotionAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_applied_total",
			Help:      "Count of promotion applications by mechanism.",
		}, []string{"mechanism"})
		StockConflictTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_conflict_total",
			Help:      "Number of invoice attempts rejected due to insufficient stock.",
		})
		QuoteDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_ms",
			Help:      "Latency for cart pricing computations in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		})

		QuoteTotal = registerOrReuse(reg, QuoteTotal)
		InvoiceIssuedTotal = registerOrReuse(reg, InvoiceIssuedTotal)
		PromotionAppliedTotal = registerOrReuse(reg, PromotionAppliedTotal)
		StockConflictTotal = registerOrReuse(reg, StockConflictTotal)
		QuoteDuration = registerOrReuse(reg, QuoteDuration)
	})
}
