package pos

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"qahwa-pos/internal/database/models"
)

// StockDecrement is one conditional stock mutation inside a sale unit of
// work. The storage layer must refuse it when the product's stock would go
// negative or the product is unavailable.
type StockDecrement struct {
	ProductID string
	Quantity  int
}

// ShiftSummary aggregates the sales recorded against one shift.
type ShiftSummary struct {
	SalesCount  int             `json:"sales_count"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	VatAmount   decimal.Decimal `json:"vat_amount"`
	FeeAmount   decimal.Decimal `json:"fee_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// DailySummary aggregates all sales of one calendar day.
type DailySummary struct {
	Date       string          `json:"date"`
	SaleCount  int             `json:"sale_count"`
	TotalSales decimal.Decimal `json:"total_sales"`
	TotalVat   decimal.Decimal `json:"total_vat"`
	TotalFees  decimal.Decimal `json:"total_fees"`
}

// SalesSummary aggregates all sales inside a half-open [from, to) window.
// A nil bound leaves that side of the window open.
type SalesSummary struct {
	SalesCount  int             `json:"sales_count"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	VatAmount   decimal.Decimal `json:"vat_amount"`
	FeeAmount   decimal.Decimal `json:"fee_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// TopProduct ranks a product name by total units sold.
type TopProduct struct {
	ProductName   string `json:"product_name"`
	TotalQuantity int    `json:"total_quantity"`
}

// Storage is the persistence boundary of the POS core. CreateSale and
// CreateShift carry the atomicity obligations: a sale commits with its items
// and stock decrements all-or-nothing, and two concurrent shift opens for one
// seller cannot both succeed.
type Storage interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]models.Product, error)
	SaveProduct(ctx context.Context, product *models.Product) error

	GetShift(ctx context.Context, id string) (*models.Shift, error)
	FindOpenShift(ctx context.Context, sellerID string) (*models.Shift, error)
	CreateShift(ctx context.Context, shift *models.Shift) error
	UpdateShift(ctx context.Context, shift *models.Shift) error

	CreateSale(ctx context.Context, sale *models.Sale, decrements []StockDecrement) error
	GetSale(ctx context.Context, id string) (*models.Sale, error)
	ListSales(ctx context.Context) ([]models.Sale, error)

	ShiftSummary(ctx context.Context, shiftID string) (ShiftSummary, error)
	DailySummary(ctx context.Context, day time.Time) (DailySummary, error)
	SalesSummary(ctx context.Context, from, to *time.Time) (SalesSummary, error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
}

// MemoryStorage is an in-memory Storage. The mutex plays the role the
// database transaction plays in the gorm implementation: checks and writes
// of a unit of work happen under one lock, so concurrent sales serialize.
type MemoryStorage struct {
	mu       sync.Mutex
	products map[string]models.Product
	shifts   map[string]models.Shift
	sales    map[string]models.Sale
	order    []string // sale ids, insertion order
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		products: map[string]models.Product{},
		shifts:   map[string]models.Shift{},
		sales:    map[string]models.Sale{},
	}
}

func (m *MemoryStorage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (m *MemoryStorage) GetProductsByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := make(map[string]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (m *MemoryStorage) SaveProduct(ctx context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.products[product.ID] = *product
	return nil
}

func (m *MemoryStorage) GetShift(ctx context.Context, id string) (*models.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shifts[id]
	if !ok {
		return nil, ErrShiftNotFound
	}
	return &s, nil
}

func (m *MemoryStorage) FindOpenShift(ctx context.Context, sellerID string) (*models.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.openShiftLocked(sellerID); ok {
		return &s, nil
	}
	return nil, ErrShiftNotFound
}

func (m *MemoryStorage) CreateShift(ctx context.Context, shift *models.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.openShiftLocked(shift.SellerID); ok {
		return &OpenShiftError{ShiftID: existing.ID}
	}
	m.shifts[shift.ID] = *shift
	return nil
}

func (m *MemoryStorage) UpdateShift(ctx context.Context, shift *models.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shifts[shift.ID]; !ok {
		return ErrShiftNotFound
	}
	m.shifts[shift.ID] = *shift
	return nil
}

func (m *MemoryStorage) openShiftLocked(sellerID string) (models.Shift, bool) {
	for _, s := range m.shifts {
		if s.SellerID == sellerID && s.EndTime == nil {
			return s, true
		}
	}
	return models.Shift{}, false
}

// CreateSale validates every decrement before applying any of them, so a
// failing line leaves both the sale log and every stock counter untouched.
func (m *MemoryStorage) CreateSale(ctx context.Context, sale *models.Sale, decrements []StockDecrement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[string]models.Product, len(decrements))
	for _, d := range decrements {
		p, ok := staged[d.ProductID]
		if !ok {
			p, ok = m.products[d.ProductID]
			if !ok {
				return ErrProductNotFound
			}
		}
		if !p.IsAvailable {
			return ErrProductUnavailable
		}
		if p.Stock < d.Quantity {
			return ErrInsufficientStock
		}
		p.Stock -= d.Quantity
		staged[d.ProductID] = p
	}

	for id, p := range staged {
		m.products[id] = p
	}
	m.sales[sale.ID] = *sale
	m.order = append(m.order, sale.ID)
	return nil
}

func (m *MemoryStorage) GetSale(ctx context.Context, id string) (*models.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sales[id]
	if !ok {
		return nil, ErrSaleNotFound
	}
	return &s, nil
}

// ListSales returns sales newest first.
func (m *MemoryStorage) ListSales(ctx context.Context) ([]models.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Sale, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.sales[m.order[i]])
	}
	return out, nil
}

func (m *MemoryStorage) ShiftSummary(ctx context.Context, shiftID string) (ShiftSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := zeroShiftSummary()
	for _, s := range m.sales {
		if s.ShiftID != shiftID {
			continue
		}
		sum.SalesCount++
		sum.Subtotal = sum.Subtotal.Add(s.Subtotal)
		sum.VatAmount = sum.VatAmount.Add(s.VatAmount)
		sum.FeeAmount = sum.FeeAmount.Add(s.FeeAmount)
		sum.TotalAmount = sum.TotalAmount.Add(s.TotalAmount)
	}
	return sum, nil
}

func (m *MemoryStorage) DailySummary(ctx context.Context, day time.Time) (DailySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	sum := zeroDailySummary(start)
	for _, s := range m.sales {
		if s.SaleTime.Before(start) || !s.SaleTime.Before(end) {
			continue
		}
		sum.SaleCount++
		sum.TotalSales = sum.TotalSales.Add(s.TotalAmount)
		sum.TotalVat = sum.TotalVat.Add(s.VatAmount)
		sum.TotalFees = sum.TotalFees.Add(s.FeeAmount)
	}
	return sum, nil
}

func (m *MemoryStorage) SalesSummary(ctx context.Context, from, to *time.Time) (SalesSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := zeroSalesSummary()
	for _, s := range m.sales {
		if from != nil && s.SaleTime.Before(*from) {
			continue
		}
		if to != nil && !s.SaleTime.Before(*to) {
			continue
		}
		sum.SalesCount++
		sum.Subtotal = sum.Subtotal.Add(s.Subtotal)
		sum.VatAmount = sum.VatAmount.Add(s.VatAmount)
		sum.FeeAmount = sum.FeeAmount.Add(s.FeeAmount)
		sum.TotalAmount = sum.TotalAmount.Add(s.TotalAmount)
	}
	return sum, nil
}

func (m *MemoryStorage) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byName := map[string]int{}
	for _, s := range m.sales {
		for _, item := range s.Items {
			byName[item.ProductName] += item.Quantity
		}
	}

	ranked := make([]TopProduct, 0, len(byName))
	for name, qty := range byName {
		ranked = append(ranked, TopProduct{ProductName: name, TotalQuantity: qty})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalQuantity != ranked[j].TotalQuantity {
			return ranked[i].TotalQuantity > ranked[j].TotalQuantity
		}
		return ranked[i].ProductName < ranked[j].ProductName
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func zeroShiftSummary() ShiftSummary {
	return ShiftSummary{
		Subtotal:    decimal.Zero,
		VatAmount:   decimal.Zero,
		FeeAmount:   decimal.Zero,
		TotalAmount: decimal.Zero,
	}
}

func zeroSalesSummary() SalesSummary {
	return SalesSummary{
		Subtotal:    decimal.Zero,
		VatAmount:   decimal.Zero,
		FeeAmount:   decimal.Zero,
		TotalAmount: decimal.Zero,
	}
}

func zeroDailySummary(day time.Time) DailySummary {
	return DailySummary{
		Date:       day.Format("2006-01-02"),
		TotalSales: decimal.Zero,
		TotalVat:   decimal.Zero,
		TotalFees:  decimal.Zero,
	}
}
