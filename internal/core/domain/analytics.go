// internal/core/domain/analytics.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeRange selects an analytics window ending now
type TimeRange string

// Supported analytics windows
const (
	RangeToday  TimeRange = "today"
	Range7Days  TimeRange = "7days"
	Range30Days TimeRange = "30days"
	Range90Days TimeRange = "90days"
)

// Days returns the window length in days
func (r TimeRange) Days() int {
	switch r {
	case RangeToday:
		return 1
	case Range30Days:
		return 30
	case Range90Days:
		return 90
	default:
		return 7
	}
}

// ParseTimeRange maps an input string to a range, defaulting to 7 days
func ParseTimeRange(s string) TimeRange {
	switch TimeRange(s) {
	case RangeToday, Range7Days, Range30Days, Range90Days:
		return TimeRange(s)
	}
	return Range7Days
}

// DashboardStats summarises the catalog and sales for the owner dashboard
type DashboardStats struct {
	TotalProducts    int             `json:"total_products"`
	LowStockCount    int             `json:"low_stock_count"`
	OutOfStockCount  int             `json:"out_of_stock_count"`
	TotalSales       int             `json:"total_sales"`
	PendingSales     int             `json:"pending_sales"`
	TodaySales       int             `json:"today_sales"`
	TodayRevenue     decimal.Decimal `json:"today_revenue"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	InventoryValue   decimal.Decimal `json:"inventory_value"`
	PotentialRevenue decimal.Decimal `json:"potential_revenue"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// MonthlyStats aggregates one calendar month
type MonthlyStats struct {
	Year               int             `json:"year"`
	Month              int             `json:"month"`
	TotalSales         decimal.Decimal `json:"total_sales"`
	Transactions       int             `json:"transactions"`
	Profit             decimal.Decimal `json:"profit"`
	AverageTransaction decimal.Decimal `json:"average_transaction"`
}

// DailyRevenue is one day's bucket
type DailyRevenue struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Profit  decimal.Decimal `json:"profit"`
	Sales   int             `json:"sales"`
}

// ProductPerformance ranks a product within a window
type ProductPerformance struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
	Profit    decimal.Decimal `json:"profit"`
}

// SalesAnalytics describes sales over a time range
type SalesAnalytics struct {
	Range         TimeRange            `json:"range"`
	From          time.Time            `json:"from"`
	To            time.Time            `json:"to"`
	Revenue       decimal.Decimal      `json:"revenue"`
	Profit        decimal.Decimal      `json:"profit"`
	Transactions  int                  `json:"transactions"`
	AverageSale   decimal.Decimal      `json:"average_sale"`
	GrowthPercent decimal.Decimal      `json:"growth_percent"`
	Daily         []DailyRevenue       `json:"daily"`
	TopProducts   []ProductPerformance `json:"top_products"`
}
