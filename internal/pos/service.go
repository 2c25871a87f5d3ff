// Package pos implements the shift lifecycle and the sale transaction
// engine over a pluggable Storage.
package pos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"qahwa-pos/internal/database/models"
	"qahwa-pos/internal/pricing"
)

type Service struct {
	storage Storage
	logger  *zap.Logger
}

func NewService(storage Storage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// SaleItemInput is one requested (product, quantity) pair. Prices never come
// from the client.
type SaleItemInput struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// OpenShift starts a new shift for the seller. A seller with an open shift
// gets an OpenShiftError carrying that shift's id.
func (s *Service) OpenShift(ctx context.Context, sellerID string, shiftType models.ShiftType, startingCash decimal.Decimal) (*models.Shift, error) {
	if !shiftType.Valid() {
		return nil, validationf("invalid shift type %q, must be one of: %s, %s", shiftType, models.ShiftMorning, models.ShiftEvening)
	}
	if startingCash.IsNegative() {
		return nil, validationf("starting cash must be a non-negative amount")
	}

	shift := &models.Shift{
		ID:           uuid.NewString(),
		SellerID:     sellerID,
		ShiftType:    shiftType,
		StartTime:    time.Now(),
		StartingCash: startingCash,
	}

	if err := s.storage.CreateShift(ctx, shift); err != nil {
		var conflict *OpenShiftError
		if errors.As(err, &conflict) {
			s.logger.Warn("shift open rejected, one already open",
				zap.String("seller_id", sellerID),
				zap.String("active_shift_id", conflict.ShiftID))
		} else {
			s.logger.Error("failed to create shift", zap.String("seller_id", sellerID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("shift opened",
		zap.String("shift_id", shift.ID),
		zap.String("seller_id", sellerID),
		zap.String("shift_type", string(shiftType)))
	return shift, nil
}

// CloseShift stamps endTime and endingCash on the seller's open shift. A
// shift that does not exist, is already closed, or belongs to another seller
// is reported as not found.
func (s *Service) CloseShift(ctx context.Context, shiftID, sellerID string, endingCash decimal.Decimal) (*models.Shift, error) {
	if endingCash.IsNegative() {
		return nil, validationf("ending cash must be a non-negative amount")
	}

	shift, err := s.storage.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.SellerID != sellerID || !shift.Open() {
		return nil, ErrShiftNotFound
	}

	now := time.Now()
	shift.EndTime = &now
	shift.EndingCash = &endingCash

	if err := s.storage.UpdateShift(ctx, shift); err != nil {
		s.logger.Error("failed to close shift", zap.String("shift_id", shiftID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("shift closed", zap.String("shift_id", shiftID), zap.String("seller_id", sellerID))
	return shift, nil
}

// ActiveShift returns the seller's open shift, or ErrShiftNotFound.
func (s *Service) ActiveShift(ctx context.Context, sellerID string) (*models.Shift, error) {
	return s.storage.FindOpenShift(ctx, sellerID)
}

// CreateSale validates the request, re-prices it from authoritative product
// rows and persists the sale with its items and stock decrements atomically.
// All validation happens before any write; only the final persistence step
// can yield a TransactionError, and that guarantees a full rollback.
func (s *Service) CreateSale(ctx context.Context, sellerID, shiftID string, items []SaleItemInput, method models.PaymentMethod) (*models.Sale, error) {
	if len(items) == 0 {
		return nil, validationf("sale items are required")
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, validationf("quantity must be at least 1 for product %s", item.ProductID)
		}
	}
	if !method.Valid() {
		return nil, validationf("invalid or missing payment method %q", method)
	}

	shift, err := s.storage.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.SellerID != sellerID {
		return nil, ErrShiftNotOwned
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.storage.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var missing []string
	requested := map[string]int{}
	for _, item := range items {
		if _, ok := products[item.ProductID]; !ok {
			missing = append(missing, item.ProductID)
			continue
		}
		requested[item.ProductID] += item.Quantity
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, strings.Join(missing, ", "))
	}

	// Pre-validated here so nothing is written on the failure path; the
	// storage layer re-enforces both conditions inside the transaction.
	for id, qty := range requested {
		p := products[id]
		if !p.IsAvailable {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, p.Name)
		}
		if p.Stock < qty {
			return nil, fmt.Errorf("%w: %s has %d left, %d requested", ErrInsufficientStock, p.Name, p.Stock, qty)
		}
	}

	now := time.Now()
	saleID := uuid.NewString()
	lines := make([]pricing.Line, 0, len(items))
	saleItems := make([]models.SaleItem, 0, len(items))
	decrements := make([]StockDecrement, 0, len(items))

	for _, item := range items {
		product := products[item.ProductID]
		line := pricing.SplitLine(product.Price, item.Quantity)
		lines = append(lines, line)

		saleItems = append(saleItems, models.SaleItem{
			ID:          uuid.NewString(),
			SaleID:      saleID,
			ProductID:   product.ID,
			ProductName: product.Name,
			PriceAtSale: product.Price,
			Quantity:    item.Quantity,
			Subtotal:    line.Base,
			CreatedAt:   now,
		})
		decrements = append(decrements, StockDecrement{
			ProductID: product.ID,
			Quantity:  item.Quantity,
		})
	}

	totals := pricing.Accumulate(lines)
	sale := &models.Sale{
		ID:            saleID,
		SellerID:      sellerID,
		ShiftID:       shiftID,
		Subtotal:      totals.Subtotal,
		VatAmount:     totals.VAT,
		FeeAmount:     pricing.Fee(totals.Subtotal, method),
		TotalAmount:   totals.Total,
		PaymentMethod: method,
		SaleTime:      now,
		Items:         saleItems,
	}

	if err := s.storage.CreateSale(ctx, sale, decrements); err != nil {
		s.logger.Error("sale persistence failed",
			zap.String("sale_id", saleID),
			zap.String("shift_id", shiftID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("sale created",
		zap.String("sale_id", saleID),
		zap.String("shift_id", shiftID),
		zap.String("payment_method", string(method)),
		zap.String("total_amount", sale.TotalAmount.StringFixed(2)))
	return sale, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (*models.Sale, error) {
	return s.storage.GetSale(ctx, id)
}

func (s *Service) ListSales(ctx context.Context) ([]models.Sale, error) {
	return s.storage.ListSales(ctx)
}

func (s *Service) ShiftSummary(ctx context.Context, shiftID string) (ShiftSummary, error) {
	return s.storage.ShiftSummary(ctx, shiftID)
}

func (s *Service) DailySummary(ctx context.Context, day time.Time) (DailySummary, error) {
	return s.storage.DailySummary(ctx, day)
}

func (s *Service) SalesSummary(ctx context.Context, from, to *time.Time) (SalesSummary, error) {
	return s.storage.SalesSummary(ctx, from, to)
}

func (s *Service) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	return s.storage.TopProducts(ctx, limit)
}
