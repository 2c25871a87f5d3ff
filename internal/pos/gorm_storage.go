package pos

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"qahwa-pos/internal/database/models"
)

// GormStorage is the postgres-backed Storage. The atomic units run inside a
// single database transaction so concurrent sales against the same product
// serialize at the storage layer, not in application memory.
type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

func (g *GormStorage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (g *GormStorage) GetProductsByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	var products []models.Product
	if err := g.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}

	found := make(map[string]models.Product, len(products))
	for _, p := range products {
		found[p.ID] = p
	}
	return found, nil
}

func (g *GormStorage) SaveProduct(ctx context.Context, product *models.Product) error {
	return g.db.WithContext(ctx).Save(product).Error
}

func (g *GormStorage) GetShift(ctx context.Context, id string) (*models.Shift, error) {
	var shift models.Shift
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&shift).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrShiftNotFound
		}
		return nil, err
	}
	return &shift, nil
}

func (g *GormStorage) FindOpenShift(ctx context.Context, sellerID string) (*models.Shift, error) {
	var shift models.Shift
	err := g.db.WithContext(ctx).
		Where("seller_id = ? AND end_time IS NULL", sellerID).
		Order("start_time desc").
		First(&shift).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrShiftNotFound
		}
		return nil, err
	}
	return &shift, nil
}

// CreateShift re-checks the single-open-shift invariant inside the insert
// transaction; the partial unique index on (seller_id) WHERE end_time IS NULL
// backstops the race between two concurrent opens.
func (g *GormStorage) CreateShift(ctx context.Context, shift *models.Shift) error {
	tx := g.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return &TransactionError{Err: tx.Error}
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var existing models.Shift
	err := tx.Where("seller_id = ? AND end_time IS NULL", shift.SellerID).First(&existing).Error
	if err == nil {
		tx.Rollback()
		return &OpenShiftError{ShiftID: existing.ID}
	}
	if err != gorm.ErrRecordNotFound {
		tx.Rollback()
		return &TransactionError{Err: err}
	}

	if err := tx.Create(shift).Error; err != nil {
		tx.Rollback()
		return &TransactionError{Err: err}
	}

	if err := tx.Commit().Error; err != nil {
		return &TransactionError{Err: err}
	}
	return nil
}

func (g *GormStorage) UpdateShift(ctx context.Context, shift *models.Shift) error {
	res := g.db.WithContext(ctx).Model(&models.Shift{}).Where("id = ?", shift.ID).Updates(map[string]interface{}{
		"end_time":    shift.EndTime,
		"ending_cash": shift.EndingCash,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrShiftNotFound
	}
	return nil
}

// CreateSale persists the sale row, its items and every stock decrement as
// one transaction. Each decrement is a conditional UPDATE guarded by the
// stock floor and availability, never a read-then-write pair, so oversell
// cannot slip through between check and write.
func (g *GormStorage) CreateSale(ctx context.Context, sale *models.Sale, decrements []StockDecrement) error {
	tx := g.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return &TransactionError{Err: tx.Error}
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(sale).Error; err != nil {
		tx.Rollback()
		return &TransactionError{Err: err}
	}

	for _, d := range decrements {
		res := tx.Model(&models.Product{}).
			Where("id = ? AND is_available = ? AND stock >= ?", d.ProductID, true, d.Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", d.Quantity))
		if res.Error != nil {
			tx.Rollback()
			return &TransactionError{Err: res.Error}
		}
		if res.RowsAffected == 0 {
			tx.Rollback()
			return ErrInsufficientStock
		}
	}

	if err := tx.Commit().Error; err != nil {
		return &TransactionError{Err: err}
	}
	return nil
}

func (g *GormStorage) GetSale(ctx context.Context, id string) (*models.Sale, error) {
	var sale models.Sale
	err := g.db.WithContext(ctx).
		Where("id = ?", id).
		Preload("Items").
		First(&sale).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	return &sale, nil
}

func (g *GormStorage) ListSales(ctx context.Context) ([]models.Sale, error) {
	var sales []models.Sale
	err := g.db.WithContext(ctx).
		Preload("Items").
		Order("sale_time desc").
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

func (g *GormStorage) ShiftSummary(ctx context.Context, shiftID string) (ShiftSummary, error) {
	var row struct {
		SalesCount  int
		Subtotal    string
		VatAmount   string
		FeeAmount   string
		TotalAmount string
	}
	err := g.db.WithContext(ctx).Model(&models.Sale{}).
		Select("COUNT(id) as sales_count, COALESCE(SUM(subtotal), 0) as subtotal, COALESCE(SUM(vat_amount), 0) as vat_amount, COALESCE(SUM(fee_amount), 0) as fee_amount, COALESCE(SUM(total_amount), 0) as total_amount").
		Where("shift_id = ?", shiftID).
		Scan(&row).Error
	if err != nil {
		return zeroShiftSummary(), err
	}

	sum := ShiftSummary{SalesCount: row.SalesCount}
	if sum.Subtotal, err = parseAmount(row.Subtotal); err != nil {
		return zeroShiftSummary(), err
	}
	if sum.VatAmount, err = parseAmount(row.VatAmount); err != nil {
		return zeroShiftSummary(), err
	}
	if sum.FeeAmount, err = parseAmount(row.FeeAmount); err != nil {
		return zeroShiftSummary(), err
	}
	if sum.TotalAmount, err = parseAmount(row.TotalAmount); err != nil {
		return zeroShiftSummary(), err
	}
	return sum, nil
}

func (g *GormStorage) DailySummary(ctx context.Context, day time.Time) (DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var row struct {
		SaleCount  int
		TotalSales string
		TotalVat   string
		TotalFees  string
	}
	err := g.db.WithContext(ctx).Model(&models.Sale{}).
		Select("COUNT(id) as sale_count, COALESCE(SUM(total_amount), 0) as total_sales, COALESCE(SUM(vat_amount), 0) as total_vat, COALESCE(SUM(fee_amount), 0) as total_fees").
		Where("sale_time >= ? AND sale_time < ?", start, end).
		Scan(&row).Error
	if err != nil {
		return zeroDailySummary(start), err
	}

	sum := zeroDailySummary(start)
	sum.SaleCount = row.SaleCount
	if sum.TotalSales, err = parseAmount(row.TotalSales); err != nil {
		return zeroDailySummary(start), err
	}
	if sum.TotalVat, err = parseAmount(row.TotalVat); err != nil {
		return zeroDailySummary(start), err
	}
	if sum.TotalFees, err = parseAmount(row.TotalFees); err != nil {
		return zeroDailySummary(start), err
	}
	return sum, nil
}

func (g *GormStorage) SalesSummary(ctx context.Context, from, to *time.Time) (SalesSummary, error) {
	q := g.db.WithContext(ctx).Model(&models.Sale{}).
		Select("COUNT(id) as sales_count, COALESCE(SUM(subtotal), 0) as subtotal, COALESCE(SUM(vat_amount), 0) as vat_amount, COALESCE(SUM(fee_amount), 0) as fee_amount, COALESCE(SUM(total_amount), 0) as total_amount")
	if from != nil {
		q = q.Where("sale_time >= ?", *from)
	}
	if to != nil {
		q = q.Where("sale_time < ?", *to)
	}

	var row struct {
		SalesCount  int
		Subtotal    string
		VatAmount   string
		FeeAmount   string
		TotalAmount string
	}
	if err := q.Scan(&row).Error; err != nil {
		return zeroSalesSummary(), err
	}

	sum := SalesSummary{SalesCount: row.SalesCount}
	var err error
	if sum.Subtotal, err = parseAmount(row.Subtotal); err != nil {
		return zeroSalesSummary(), err
	}
	if sum.VatAmount, err = parseAmount(row.VatAmount); err != nil {
		return zeroSalesSummary(), err
	}
	if sum.FeeAmount, err = parseAmount(row.FeeAmount); err != nil {
		return zeroSalesSummary(), err
	}
	if sum.TotalAmount, err = parseAmount(row.TotalAmount); err != nil {
		return zeroSalesSummary(), err
	}
	return sum, nil
}

func (g *GormStorage) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	var rows []TopProduct
	err := g.db.WithContext(ctx).Model(&models.SaleItem{}).
		Select("product_name, SUM(quantity) as total_quantity").
		Group("product_name").
		Order("total_quantity desc").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
