// internal/core/services/collections.go
package services

import (
	"sort"
	"strings"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

func indexOfProduct(products []domain.Product, id int64) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfSale(sales []domain.Sale, id int64) int {
	for i := range sales {
		if sales[i].ID == id {
			return i
		}
	}
	return -1
}

func maxProductID(products []domain.Product) int64 {
	var m int64
	for i := range products {
		if products[i].ID > m {
			m = products[i].ID
		}
	}
	return m
}

func maxSaleID(sales []domain.Sale) int64 {
	var m int64
	for i := range sales {
		if sales[i].ID > m {
			m = sales[i].ID
		}
	}
	return m
}

// sortProducts orders products in place. An empty column keeps store order.
func sortProducts(products []domain.Product, by domain.ProductSort, order string) {
	var less func(a, b *domain.Product) bool
	switch by {
	case domain.SortByName:
		less = func(a, b *domain.Product) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case domain.SortByStock:
		less = func(a, b *domain.Product) bool { return a.Stock < b.Stock }
	case domain.SortByMargin:
		less = func(a, b *domain.Product) bool {
			return a.ProfitMargin().LessThan(b.ProfitMargin())
		}
	case domain.SortByPrice:
		less = func(a, b *domain.Product) bool {
			return a.SellingPrice.LessThan(b.SellingPrice)
		}
	default:
		return
	}

	desc := strings.EqualFold(order, "desc")
	sort.SliceStable(products, func(i, j int) bool {
		if desc {
			return less(&products[j], &products[i])
		}
		return less(&products[i], &products[j])
	})
}

// allSales is the main log followed by the pending queue.
func allSales(sales, pending []domain.Sale) []domain.Sale {
	out := make([]domain.Sale, 0, len(sales)+len(pending))
	out = append(out, sales...)
	return append(out, pending...)
}
