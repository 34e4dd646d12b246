// internal/core/services/ledger.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// Ledger owns the product catalog, the sale log and the offline sale queue.
// Every public method holds the ledger lock for its whole read-modify-write.
type Ledger struct {
	store         ports.KeyValueStore
	locker        ports.Locker
	now           func() time.Time
	ids           *idGenerator
	confirmations *confirmationRegistry
	catalog       []domain.NewProduct
	onChange      func(ctx context.Context)
	logger        *slog.Logger
}

// Statically assert that *Ledger implements the LedgerService interface.
var _ ports.LedgerService = (*Ledger)(nil)

// NewLedger creates a ledger over store
func NewLedger(store ports.KeyValueStore, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:         store,
		locker:        &LocalLocker{},
		now:           time.Now,
		confirmations: newConfirmationRegistry(DefaultConfirmationTTL),
		catalog:       domain.DefaultCatalog(),
		logger:        logger.With(slog.String("service", "ledger")),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.ids = &idGenerator{now: l.now}
	return l
}

func (l *Ledger) lock(ctx context.Context) (func(), error) {
	unlock, err := l.locker.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire ledger lock: %w", err)
	}
	return unlock, nil
}

// ListProducts returns the catalog, seeding the default catalog into an
// uninitialized store. Store failures are treated as an empty catalog.
func (l *Ledger) ListProducts(ctx context.Context) ([]domain.Product, error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.listProducts(ctx), nil
}

func (l *Ledger) listProducts(ctx context.Context) []domain.Product {
	var products []domain.Product
	found, err := l.read(ctx, ports.KeyProducts, &products)
	switch {
	case err != nil:
		// Return the defaults without persisting them so a transient
		// failure never overwrites a real catalog.
		l.logger.WarnContext(ctx, "failed to read products, serving default catalog",
			slog.String("error", err.Error()))
		return l.seedProducts()
	case !found:
		products = l.seedProducts()
		if err := l.persist(ctx, mustEntry(ports.KeyProducts, products)); err != nil {
			l.logger.WarnContext(ctx, "failed to persist default catalog",
				slog.String("error", err.Error()))
		} else {
			l.logger.InfoContext(ctx, "seeded default catalog",
				slog.Int("count", len(products)))
		}
	}
	return products
}

// SearchProducts filters and sorts the catalog
func (l *Ledger) SearchProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	products, err := l.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]domain.Product, 0, len(products))
	for i := range products {
		if filter.Matches(&products[i]) {
			matched = append(matched, products[i])
		}
	}
	sortProducts(matched, filter.SortBy, filter.SortOrder)
	return matched, nil
}

// GetProduct returns a single product
func (l *Ledger) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	products, err := l.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOfProduct(products, id)
	if idx < 0 {
		return nil, &domain.NotFoundError{Resource: "product", ID: id}
	}
	return &products[idx], nil
}

// AddProduct validates and appends a new product
func (l *Ledger) AddProduct(ctx context.Context, np domain.NewProduct) (*domain.Product, error) {
	np.Name = strings.TrimSpace(np.Name)
	np.Category = strings.TrimSpace(np.Category)
	if err := np.Validate(); err != nil {
		return nil, err
	}

	unlock, err := l.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	products, err := l.loadProducts(ctx)
	if err != nil {
		return nil, err
	}

	now := l.now()
	product := domain.Product{
		ID:           l.ids.next(maxProductID(products)),
		Name:         np.Name,
		Category:     np.Category,
		BuyingPrice:  np.BuyingPrice,
		SellingPrice: np.SellingPrice,
		Stock:        np.Stock,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	products = append(products, product)

	if err := l.persist(ctx, mustEntry(ports.KeyProducts, products)); err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "added product",
		slog.Int64("product_id", product.ID),
		slog.String("name", product.Name),
		slog.Int("stock", product.Stock))

	return &product, nil
}

// UpdateProduct merges a partial update into an existing product
func (l *Ledger) UpdateProduct(ctx context.Context, id int64, update domain.ProductUpdate) (*domain.Product, error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	products, err := l.loadProducts(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexOfProduct(products, id)
	if idx < 0 {
		return nil, &domain.NotFoundError{Resource: "product", ID: id}
	}

	updated := products[idx].Apply(update)
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return &updated, nil
	}
	updated.UpdatedAt = l.now()
	products[idx] = updated

	if err := l.persist(ctx, mustEntry(ports.KeyProducts, products)); err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "updated product",
		slog.Int64("product_id", id))

	return &updated, nil
}

// DeleteProduct removes a product; it reports false when id is unknown.
func (l *Ledger) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	return l.deleteProduct(ctx, id)
}

func (l *Ledger) deleteProduct(ctx context.Context, id int64) (bool, error) {
	products, err := l.loadProducts(ctx)
	if err != nil {
		return false, err
	}

	idx := indexOfProduct(products, id)
	if idx < 0 {
		return false, nil
	}
	products = append(products[:idx], products[idx+1:]...)

	if err := l.persist(ctx, mustEntry(ports.KeyProducts, products)); err != nil {
		return false, err
	}

	l.logger.InfoContext(ctx, "deleted product", slog.Int64("product_id", id))
	return true, nil
}

// RestockProduct adds quantity units to a product's stock
func (l *Ledger) RestockProduct(ctx context.Context, id int64, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity", "must be positive")
	}

	unlock, err := l.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.restock(ctx, id, quantity)
}

func (l *Ledger) restock(ctx context.Context, id int64, quantity int) (*domain.Product, error) {
	products, err := l.loadProducts(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexOfProduct(products, id)
	if idx < 0 {
		return nil, &domain.NotFoundError{Resource: "product", ID: id}
	}
	products[idx].Stock += quantity
	products[idx].UpdatedAt = l.now()

	if err := l.persist(ctx, mustEntry(ports.KeyProducts, products)); err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "restocked product",
		slog.Int64("product_id", id),
		slog.Int("added", quantity),
		slog.Int("stock", products[idx].Stock))

	restocked := products[idx]
	return &restocked, nil
}

// RecordSale validates the cart against current stock and payment, then
// decrements stock and appends the sale to the log, or to the offline queue
// when req.Online is false.
func (l *Ledger) RecordSale(ctx context.Context, req domain.SaleRequest) (*domain.Sale, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentCash
	}

	unlock, err := l.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	products, err := l.loadProducts(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := l.loadSales(ctx, ports.KeySales)
	if err != nil {
		return nil, err
	}
	pending, err := l.loadSales(ctx, ports.KeyOfflineSales)
	if err != nil {
		return nil, err
	}

	prior := make([]domain.Product, len(products))
	copy(prior, products)

	requested := make(map[int64]int, len(req.Items))
	items := make([]domain.LineItem, 0, len(req.Items))
	for _, ci := range req.Items {
		idx := indexOfProduct(products, ci.ProductID)
		if idx < 0 {
			return nil, &domain.NotFoundError{Resource: "product", ID: ci.ProductID}
		}
		p := &products[idx]
		requested[p.ID] += ci.Quantity
		if requested[p.ID] > p.Stock {
			return nil, &domain.InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   requested[p.ID],
				Available:   p.Stock,
			}
		}
		items = append(items, domain.NewLineItem(p, ci.Quantity))
	}

	total, profit := domain.CalculateTotals(items)
	paid, change := total, decimal.Zero
	if method.RequiresTender() {
		if req.AmountPaid.LessThan(total) {
			return nil, &domain.InsufficientPaymentError{Total: total, Paid: req.AmountPaid}
		}
		paid = req.AmountPaid
		change = paid.Sub(total)
	}

	now := l.now()
	sale := domain.Sale{
		ID:            l.ids.next(max(maxSaleID(sales), maxSaleID(pending))),
		Items:         items,
		Total:         total,
		TotalProfit:   profit,
		PaymentMethod: method,
		AmountPaid:    paid,
		Change:        change,
		Employee:      req.Employee,
		IsOffline:     !req.Online,
		CreatedAt:     now,
	}

	for id, qty := range requested {
		idx := indexOfProduct(products, id)
		products[idx].Stock -= qty
		products[idx].UpdatedAt = now
	}

	var saleEntry ports.Entry
	if sale.IsOffline {
		saleEntry = mustEntry(ports.KeyOfflineSales, append(pending, sale))
	} else {
		saleEntry = mustEntry(ports.KeySales, append(sales, sale))
	}

	if err := l.persistSale(ctx, prior, mustEntry(ports.KeyProducts, products), saleEntry); err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "recorded sale",
		slog.Int64("sale_id", sale.ID),
		slog.String("employee", sale.Employee),
		slog.String("total", sale.Total.StringFixed(2)),
		slog.Int("items", len(sale.Items)),
		slog.Bool("offline", sale.IsOffline))

	return &sale, nil
}

// persistSale writes the decremented catalog and the sale document. Without
// an atomic store, a failed sale write restores the prior catalog.
func (l *Ledger) persistSale(ctx context.Context, prior []domain.Product, productsEntry, saleEntry ports.Entry) error {
	if _, ok := l.store.(ports.AtomicWriter); ok {
		return l.persist(ctx, productsEntry, saleEntry)
	}

	if err := l.persist(ctx, productsEntry); err != nil {
		return err
	}
	if err := l.persist(ctx, saleEntry); err != nil {
		if restoreErr := l.persist(ctx, mustEntry(ports.KeyProducts, prior)); restoreErr != nil {
			l.logger.ErrorContext(ctx, "failed to restore products after sale write failure",
				slog.String("error", restoreErr.Error()))
		}
		return err
	}
	return nil
}

// ListSales returns the main sale log
func (l *Ledger) ListSales(ctx context.Context) ([]domain.Sale, error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.loadSales(ctx, ports.KeySales)
}

// ListPendingOfflineSales returns the offline queue
func (l *Ledger) ListPendingOfflineSales(ctx context.Context) ([]domain.Sale, error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.loadSales(ctx, ports.KeyOfflineSales)
}

// SyncPendingOfflineSales moves every queued sale into the main log and
// returns how many were moved. The merged log is written before the queue is
// cleared; if the process dies between the two writes the next sync merges
// the same records again.
func (l *Ledger) SyncPendingOfflineSales(ctx context.Context) (int, error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	pending, err := l.loadSales(ctx, ports.KeyOfflineSales)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	sales, err := l.loadSales(ctx, ports.KeySales)
	if err != nil {
		return 0, err
	}
	for _, s := range pending {
		s.IsOffline = false
		sales = append(sales, s)
	}

	if err := l.persist(ctx,
		mustEntry(ports.KeySales, sales),
		mustEntry(ports.KeyOfflineSales, []domain.Sale{}),
	); err != nil {
		return 0, err
	}

	l.logger.InfoContext(ctx, "synced offline sales",
		slog.Int("count", len(pending)),
		slog.Int("log_size", len(sales)))

	return len(pending), nil
}

// DeleteSale removes a sale from the main log. Stock is not restored.
func (l *Ledger) DeleteSale(ctx context.Context, id int64) (bool, error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	return l.deleteSale(ctx, id)
}

func (l *Ledger) deleteSale(ctx context.Context, id int64) (bool, error) {
	sales, err := l.loadSales(ctx, ports.KeySales)
	if err != nil {
		return false, err
	}

	idx := indexOfSale(sales, id)
	if idx < 0 {
		return false, nil
	}
	sales = append(sales[:idx], sales[idx+1:]...)

	if err := l.persist(ctx, mustEntry(ports.KeySales, sales)); err != nil {
		return false, err
	}

	l.logger.InfoContext(ctx, "deleted sale", slog.Int64("sale_id", id))
	return true, nil
}

// RequestProductDeletion issues a token that deletes the product on Confirm
func (l *Ledger) RequestProductDeletion(ctx context.Context, id int64) (*domain.Confirmation, error) {
	p, err := l.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	c := l.confirmations.issue(l.now(), domain.ActionDeleteProduct, id, 0,
		fmt.Sprintf("delete product %q", p.Name))
	return &c, nil
}

// RequestSaleDeletion issues a token that deletes the sale on Confirm
func (l *Ledger) RequestSaleDeletion(ctx context.Context, id int64) (*domain.Confirmation, error) {
	sales, err := l.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOfSale(sales, id)
	if idx < 0 {
		return nil, &domain.NotFoundError{Resource: "sale", ID: id}
	}
	c := l.confirmations.issue(l.now(), domain.ActionDeleteSale, id, 0,
		fmt.Sprintf("delete sale %d totalling %s", id, sales[idx].Total.StringFixed(2)))
	return &c, nil
}

// RequestRestock issues a token that restocks the product on Confirm
func (l *Ledger) RequestRestock(ctx context.Context, id int64, quantity int) (*domain.Confirmation, error) {
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity", "must be positive")
	}
	p, err := l.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	c := l.confirmations.issue(l.now(), domain.ActionRestock, id, quantity,
		fmt.Sprintf("add %d units to %q", quantity, p.Name))
	return &c, nil
}

// Confirm executes the action behind a confirmation token exactly once
func (l *Ledger) Confirm(ctx context.Context, token string) (*domain.ConfirmationResult, error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := l.confirmations.take(l.now(), token)
	if err != nil {
		return nil, err
	}

	result := &domain.ConfirmationResult{Action: c.Action, TargetID: c.TargetID}
	switch c.Action {
	case domain.ActionDeleteProduct:
		result.Deleted, err = l.deleteProduct(ctx, c.TargetID)
	case domain.ActionDeleteSale:
		result.Deleted, err = l.deleteSale(ctx, c.TargetID)
	case domain.ActionRestock:
		result.Product, err = l.restock(ctx, c.TargetID, c.Quantity)
	default:
		err = fmt.Errorf("%w: unsupported action %s", domain.ErrInvalidConfirmation, c.Action)
	}
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "confirmed action",
		slog.String("action", string(c.Action)),
		slog.Int64("target_id", c.TargetID))

	return result, nil
}

// Store access helpers

// read decodes key into dest. found is false when the key was never written.
func (l *Ledger) read(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := l.store.Get(ctx, key)
	if errors.Is(err, ports.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &domain.PersistenceError{Op: "read", Key: key, Err: err}
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, &domain.PersistenceError{Op: "decode", Key: key, Err: err}
	}
	return true, nil
}

// loadProducts reads the catalog for a mutation; an uninitialized store
// yields the default catalog, which the mutation then persists.
func (l *Ledger) loadProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	found, err := l.read(ctx, ports.KeyProducts, &products)
	if err != nil {
		return nil, err
	}
	if !found {
		return l.seedProducts(), nil
	}
	return products, nil
}

func (l *Ledger) loadSales(ctx context.Context, key string) ([]domain.Sale, error) {
	var sales []domain.Sale
	if _, err := l.read(ctx, key, &sales); err != nil {
		return nil, err
	}
	if sales == nil {
		sales = []domain.Sale{}
	}
	return sales, nil
}

func (l *Ledger) seedProducts() []domain.Product {
	now := l.now()
	products := make([]domain.Product, 0, len(l.catalog))
	var last int64
	for _, np := range l.catalog {
		p := domain.Product{
			ID:           l.ids.next(last),
			Name:         np.Name,
			Category:     np.Category,
			BuyingPrice:  np.BuyingPrice,
			SellingPrice: np.SellingPrice,
			Stock:        np.Stock,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		last = p.ID
		products = append(products, p)
	}
	return products
}

// persist writes entries in order, in one transaction when the store allows.
func (l *Ledger) persist(ctx context.Context, entries ...ports.Entry) error {
	if aw, ok := l.store.(ports.AtomicWriter); ok && len(entries) > 1 {
		if err := aw.SetMany(ctx, entries); err != nil {
			return &domain.PersistenceError{Op: "write", Key: joinKeys(entries), Err: err}
		}
		l.changed(ctx)
		return nil
	}

	for _, e := range entries {
		if err := l.store.Set(ctx, e.Key, e.Value); err != nil {
			return &domain.PersistenceError{Op: "write", Key: e.Key, Err: err}
		}
	}
	l.changed(ctx)
	return nil
}

func (l *Ledger) changed(ctx context.Context) {
	if l.onChange != nil {
		l.onChange(ctx)
	}
}

// mustEntry encodes a ledger collection. The collections only hold plain
// structs and decimals, which always marshal.
func mustEntry(key string, v interface{}) ports.Entry {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("encode %s: %v", key, err))
	}
	return ports.Entry{Key: key, Value: data}
}

func joinKeys(entries []ports.Entry) string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return strings.Join(keys, ",")
}
