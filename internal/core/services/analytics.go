// internal/core/services/analytics.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

const (
	// AnalyticsCachePrefix namespaces cached analytics documents
	AnalyticsCachePrefix = "analytics:"

	topProductsLimit  = 10
	dailyBucketLayout = "2006-01-02"
)

// Analytics computes dashboard figures from the ledger. It never writes to
// the ledger; results are optionally cached.
type Analytics struct {
	ledger            ports.LedgerService
	cache             ports.CacheRepository
	cacheTTL          time.Duration
	lowStockThreshold int
	now               func() time.Time
	logger            *slog.Logger
}

var _ ports.AnalyticsService = (*Analytics)(nil)

// AnalyticsOption configures Analytics
type AnalyticsOption func(*Analytics)

// WithAnalyticsCache caches computed figures for ttl
func WithAnalyticsCache(cache ports.CacheRepository, ttl time.Duration) AnalyticsOption {
	return func(a *Analytics) {
		a.cache = cache
		a.cacheTTL = ttl
	}
}

// InvalidateAnalytics returns a ledger change hook that drops every cached
// analytics document. Failures are logged; the cache TTL still bounds them.
func InvalidateAnalytics(cache ports.CacheRepository, logger *slog.Logger) func(ctx context.Context) {
	return func(ctx context.Context) {
		if err := cache.DeletePattern(ctx, AnalyticsCachePrefix+"*"); err != nil {
			logger.WarnContext(ctx, "failed to invalidate analytics cache",
				slog.String("error", err.Error()))
		}
	}
}

// WithLowStockThreshold overrides the dashboard low-stock cut-off
func WithLowStockThreshold(threshold int) AnalyticsOption {
	return func(a *Analytics) {
		if threshold > 0 {
			a.lowStockThreshold = threshold
		}
	}
}

// WithAnalyticsClock replaces the wall clock
func WithAnalyticsClock(now func() time.Time) AnalyticsOption {
	return func(a *Analytics) {
		a.now = now
	}
}

// NewAnalytics creates an analytics service over ledger
func NewAnalytics(ledger ports.LedgerService, logger *slog.Logger, opts ...AnalyticsOption) *Analytics {
	a := &Analytics{
		ledger:            ledger,
		lowStockThreshold: domain.LowStockThreshold,
		now:               time.Now,
		logger:            logger.With(slog.String("service", "analytics")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Dashboard summarises the catalog and every recorded sale, pending included.
func (a *Analytics) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	err := a.cached(ctx, AnalyticsCachePrefix+"dashboard", &stats, func() (interface{}, error) {
		return a.dashboard(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (a *Analytics) dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	products, err := a.ledger.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	sales, pending, err := a.sales(ctx)
	if err != nil {
		return nil, err
	}

	now := a.now()
	stats := &domain.DashboardStats{
		TotalProducts:    len(products),
		PendingSales:     len(pending),
		TodayRevenue:     decimal.Zero,
		TotalRevenue:     decimal.Zero,
		TotalProfit:      decimal.Zero,
		InventoryValue:   decimal.Zero,
		PotentialRevenue: decimal.Zero,
		GeneratedAt:      now,
	}

	for i := range products {
		p := &products[i]
		if p.Stock < a.lowStockThreshold {
			stats.LowStockCount++
		}
		if p.Stock <= 0 {
			stats.OutOfStockCount++
		}
		stats.InventoryValue = stats.InventoryValue.Add(p.StockValue())
		stats.PotentialRevenue = stats.PotentialRevenue.Add(p.PotentialRevenue())
	}

	today := startOfDay(now)
	all := allSales(sales, pending)
	stats.TotalSales = len(all)
	for i := range all {
		s := &all[i]
		stats.TotalRevenue = stats.TotalRevenue.Add(s.Total)
		stats.TotalProfit = stats.TotalProfit.Add(s.TotalProfit)
		if sameDay(s.CreatedAt.In(now.Location()), today) {
			stats.TodaySales++
			stats.TodayRevenue = stats.TodayRevenue.Add(s.Total)
		}
	}

	return stats, nil
}

// Monthly aggregates the sales of one calendar month
func (a *Analytics) Monthly(ctx context.Context, year, month int) (*domain.MonthlyStats, error) {
	if month < 1 || month > 12 {
		return nil, domain.NewValidationError("month", "must be between 1 and 12")
	}
	if year < 1 {
		return nil, domain.NewValidationError("year", "must be positive")
	}

	var stats domain.MonthlyStats
	key := fmt.Sprintf("%smonthly:%04d-%02d", AnalyticsCachePrefix, year, month)
	err := a.cached(ctx, key, &stats, func() (interface{}, error) {
		return a.monthly(ctx, year, month)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (a *Analytics) monthly(ctx context.Context, year, month int) (*domain.MonthlyStats, error) {
	sales, pending, err := a.sales(ctx)
	if err != nil {
		return nil, err
	}

	loc := a.now().Location()
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, 0)

	stats := &domain.MonthlyStats{
		Year:               year,
		Month:              month,
		TotalSales:         decimal.Zero,
		Profit:             decimal.Zero,
		AverageTransaction: decimal.Zero,
	}
	for _, s := range allSales(sales, pending) {
		if !within(s.CreatedAt, from, to) {
			continue
		}
		stats.Transactions++
		stats.TotalSales = stats.TotalSales.Add(s.Total)
		stats.Profit = stats.Profit.Add(s.TotalProfit)
	}
	stats.AverageTransaction = average(stats.TotalSales, stats.Transactions)

	return stats, nil
}

// Sales describes the window ending today together with growth over the
// preceding window of the same length.
func (a *Analytics) Sales(ctx context.Context, r domain.TimeRange) (*domain.SalesAnalytics, error) {
	r = domain.ParseTimeRange(string(r))

	var result domain.SalesAnalytics
	err := a.cached(ctx, AnalyticsCachePrefix+"sales:"+string(r), &result, func() (interface{}, error) {
		return a.salesAnalytics(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *Analytics) salesAnalytics(ctx context.Context, r domain.TimeRange) (*domain.SalesAnalytics, error) {
	sales, pending, err := a.sales(ctx)
	if err != nil {
		return nil, err
	}

	now := a.now()
	days := r.Days()
	from := startOfDay(now).AddDate(0, 0, -(days - 1))
	to := startOfDay(now).AddDate(0, 0, 1)
	prevFrom := from.AddDate(0, 0, -days)

	result := &domain.SalesAnalytics{
		Range:         r,
		From:          from,
		To:            to,
		Revenue:       decimal.Zero,
		Profit:        decimal.Zero,
		AverageSale:   decimal.Zero,
		GrowthPercent: decimal.Zero,
	}

	buckets := make([]domain.DailyRevenue, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i).Format(dailyBucketLayout)
		buckets[i] = domain.DailyRevenue{Date: date, Revenue: decimal.Zero, Profit: decimal.Zero}
		index[date] = i
	}

	performance := make(map[int64]*domain.ProductPerformance)
	previous := decimal.Zero
	previousCount := 0

	for _, s := range allSales(sales, pending) {
		switch {
		case within(s.CreatedAt, from, to):
			result.Transactions++
			result.Revenue = result.Revenue.Add(s.Total)
			result.Profit = result.Profit.Add(s.TotalProfit)

			if i, ok := index[s.CreatedAt.In(now.Location()).Format(dailyBucketLayout)]; ok {
				buckets[i].Revenue = buckets[i].Revenue.Add(s.Total)
				buckets[i].Profit = buckets[i].Profit.Add(s.TotalProfit)
				buckets[i].Sales++
			}

			for _, li := range s.Items {
				pp, ok := performance[li.ProductID]
				if !ok {
					pp = &domain.ProductPerformance{
						ProductID: li.ProductID,
						Name:      li.Name,
						Revenue:   decimal.Zero,
						Profit:    decimal.Zero,
					}
					performance[li.ProductID] = pp
				}
				pp.Quantity += li.Quantity
				pp.Revenue = pp.Revenue.Add(li.LineTotal)
				pp.Profit = pp.Profit.Add(li.Profit())
			}
		case within(s.CreatedAt, prevFrom, from):
			previousCount++
			previous = previous.Add(s.Total)
		}
	}

	result.AverageSale = average(result.Revenue, result.Transactions)
	if previousCount > 0 && !previous.IsZero() {
		result.GrowthPercent = result.Revenue.Sub(previous).Div(previous).Mul(hundredPercent).Round(2)
	}
	result.Daily = buckets
	result.TopProducts = topProducts(performance, topProductsLimit)

	return result, nil
}

func (a *Analytics) sales(ctx context.Context) ([]domain.Sale, []domain.Sale, error) {
	sales, err := a.ledger.ListSales(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list sales: %w", err)
	}
	pending, err := a.ledger.ListPendingOfflineSales(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list pending sales: %w", err)
	}
	return sales, pending, nil
}

// cached loads key through the cache when one is configured. Cache failures
// fall back to computing the value directly.
func (a *Analytics) cached(ctx context.Context, key string, dest interface{}, fetch func() (interface{}, error)) error {
	if a.cache != nil {
		fetched := false
		err := a.cache.GetOrSet(ctx, key, dest, func() (interface{}, error) {
			fetched = true
			return fetch()
		}, a.cacheTTL)
		if err == nil || fetched {
			return err
		}
		a.logger.WarnContext(ctx, "analytics cache unavailable",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}

	v, err := fetch()
	if err != nil {
		return err
	}
	return assign(dest, v)
}

// assign copies v into dest through JSON, the same path a cache hit takes.
func assign(dest, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode analytics: %w", err)
	}
	return json.Unmarshal(data, dest)
}

var hundredPercent = decimal.NewFromInt(100)

func topProducts(performance map[int64]*domain.ProductPerformance, limit int) []domain.ProductPerformance {
	ranked := make([]domain.ProductPerformance, 0, len(performance))
	for _, pp := range performance {
		ranked = append(ranked, *pp)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].Revenue.Equal(ranked[j].Revenue) {
			return ranked[i].Revenue.GreaterThan(ranked[j].Revenue)
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func average(total decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n))).Round(2)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(t, day time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// within reports whether t falls in [from, to).
func within(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
