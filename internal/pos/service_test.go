package pos

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"qahwa-pos/internal/database/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(t *testing.T) (*Service, *MemoryStorage) {
	storage := NewMemoryStorage()
	return NewService(storage, zaptest.NewLogger(t)), storage
}

func seedProduct(t *testing.T, storage *MemoryStorage, name, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Price:       dec(price),
		Stock:       stock,
		IsAvailable: true,
	}
	require.NoError(t, storage.SaveProduct(context.Background(), &p))
	return p
}

func openShift(t *testing.T, svc *Service, sellerID string) *models.Shift {
	t.Helper()
	shift, err := svc.OpenShift(context.Background(), sellerID, models.ShiftMorning, dec("100.00"))
	require.NoError(t, err)
	return shift
}

// --- Shift lifecycle ---

func TestOpenShiftRejectsSecondOpen(t *testing.T) {
	svc, _ := newTestService(t)
	sellerID := uuid.NewString()

	first := openShift(t, svc, sellerID)

	_, err := svc.OpenShift(context.Background(), sellerID, models.ShiftEvening, dec("50.00"))
	var conflict *OpenShiftError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ID, conflict.ShiftID)

	// another seller is unaffected
	_, err = svc.OpenShift(context.Background(), uuid.NewString(), models.ShiftEvening, dec("50.00"))
	assert.NoError(t, err)
}

func TestOpenShiftValidation(t *testing.T) {
	svc, _ := newTestService(t)

	var vErr *ValidationError
	_, err := svc.OpenShift(context.Background(), uuid.NewString(), models.ShiftType("night"), dec("10.00"))
	assert.ErrorAs(t, err, &vErr)

	_, err = svc.OpenShift(context.Background(), uuid.NewString(), models.ShiftMorning, dec("-1.00"))
	assert.ErrorAs(t, err, &vErr)
}

func TestCloseShift(t *testing.T) {
	svc, _ := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)

	closed, err := svc.CloseShift(context.Background(), shift.ID, sellerID, dec("250.00"))
	require.NoError(t, err)
	require.NotNil(t, closed.EndTime)
	assert.True(t, dec("250.00").Equal(*closed.EndingCash))

	// closing again reports not found, the shift is no longer open
	_, err = svc.CloseShift(context.Background(), shift.ID, sellerID, dec("250.00"))
	assert.ErrorIs(t, err, ErrShiftNotFound)

	// the seller can open a fresh shift afterwards
	_, err = svc.OpenShift(context.Background(), sellerID, models.ShiftEvening, dec("250.00"))
	assert.NoError(t, err)
}

func TestCloseShiftWrongSeller(t *testing.T) {
	svc, _ := newTestService(t)
	shift := openShift(t, svc, uuid.NewString())

	_, err := svc.CloseShift(context.Background(), shift.ID, uuid.NewString(), dec("10.00"))
	assert.ErrorIs(t, err, ErrShiftNotFound)
}

func TestConcurrentOpenShift(t *testing.T) {
	svc, _ := newTestService(t)
	sellerID := uuid.NewString()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.OpenShift(context.Background(), sellerID, models.ShiftMorning, dec("100.00"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var conflict *OpenShiftError
		assert.ErrorAs(t, err, &conflict)
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent open may win")
}

// --- Sale engine ---

func TestCreateSaleHappyPath(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	latte := seedProduct(t, storage, "Latte", "11.50", 10)
	croissant := seedProduct(t, storage, "Croissant", "5.75", 10)

	sale, err := svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: latte.ID, Quantity: 1},
		{ProductID: croissant.ID, Quantity: 2},
	}, models.PaymentCash)
	require.NoError(t, err)

	assert.True(t, dec("20.00").Equal(sale.Subtotal), "subtotal: got %s", sale.Subtotal)
	assert.True(t, dec("3.00").Equal(sale.VatAmount), "vat: got %s", sale.VatAmount)
	assert.True(t, dec("23.00").Equal(sale.TotalAmount), "total: got %s", sale.TotalAmount)
	assert.True(t, sale.FeeAmount.IsZero(), "cash fee: got %s", sale.FeeAmount)
	assert.True(t, sale.Subtotal.Add(sale.VatAmount).Equal(sale.TotalAmount))

	require.Len(t, sale.Items, 2)
	assert.Equal(t, "Latte", sale.Items[0].ProductName)
	assert.True(t, dec("11.50").Equal(sale.Items[0].PriceAtSale))
	assert.True(t, dec("10.00").Equal(sale.Items[0].Subtotal))

	// stock decremented
	p, err := storage.GetProduct(context.Background(), croissant.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Stock)
}

func TestCreateSaleCardFeeNotCharged(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	latte := seedProduct(t, storage, "Latte", "11.50", 10)
	croissant := seedProduct(t, storage, "Croissant", "5.75", 10)

	sale, err := svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: latte.ID, Quantity: 1},
		{ProductID: croissant.ID, Quantity: 2},
	}, models.PaymentVisaMaster)
	require.NoError(t, err)

	assert.True(t, dec("0.45").Equal(sale.FeeAmount), "fee: got %s", sale.FeeAmount)
	// fee is merchant cost, never added to what the customer pays
	assert.True(t, dec("23.00").Equal(sale.TotalAmount))
}

func TestCreateSaleSnapshotImmuneToCatalogEdits(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	latte := seedProduct(t, storage, "Latte", "11.50", 10)

	sale, err := svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: latte.ID, Quantity: 1},
	}, models.PaymentCash)
	require.NoError(t, err)

	// rename and reprice after the fact
	latte.Name = "Grande Latte"
	latte.Price = dec("15.00")
	require.NoError(t, storage.SaveProduct(context.Background(), &latte))

	persisted, err := svc.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "Latte", persisted.Items[0].ProductName)
	assert.True(t, dec("11.50").Equal(persisted.Items[0].PriceAtSale))
}

func TestCreateSaleValidation(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	latte := seedProduct(t, storage, "Latte", "11.50", 10)

	var vErr *ValidationError

	_, err := svc.CreateSale(context.Background(), sellerID, shift.ID, nil, models.PaymentCash)
	assert.ErrorAs(t, err, &vErr)

	_, err = svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: latte.ID, Quantity: 0},
	}, models.PaymentCash)
	assert.ErrorAs(t, err, &vErr)

	_, err = svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: latte.ID, Quantity: 1},
	}, models.PaymentMethod("cheque"))
	assert.ErrorAs(t, err, &vErr)
}

func TestCreateSaleShiftChecks(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	latte := seedProduct(t, storage, "Latte", "11.50", 10)
	items := []SaleItemInput{{ProductID: latte.ID, Quantity: 1}}

	_, err := svc.CreateSale(context.Background(), sellerID, uuid.NewString(), items, models.PaymentCash)
	assert.ErrorIs(t, err, ErrShiftNotFound)

	// existing shift, different seller: ownership failure, not a 404
	_, err = svc.CreateSale(context.Background(), uuid.NewString(), shift.ID, items, models.PaymentCash)
	assert.ErrorIs(t, err, ErrShiftNotOwned)
}

func TestCreateSaleMissingProductRejectedWholesale(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	latte := seedProduct(t, storage, "Latte", "11.50", 10)

	_, err := svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: latte.ID, Quantity: 1},
		{ProductID: "ghost-product", Quantity: 1},
	}, models.PaymentCash)
	require.ErrorIs(t, err, ErrProductNotFound)
	assert.Contains(t, err.Error(), "ghost-product")

	// no partial sale: stock untouched, nothing recorded
	p, _ := storage.GetProduct(context.Background(), latte.ID)
	assert.Equal(t, 10, p.Stock)
	sales, _ := svc.ListSales(context.Background())
	assert.Empty(t, sales)
}

func TestCreateSaleOversellRejectedBeforeWrite(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	latte := seedProduct(t, storage, "Latte", "11.50", 1)

	_, err := svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: latte.ID, Quantity: 2},
	}, models.PaymentCash)
	require.ErrorIs(t, err, ErrInsufficientStock)

	p, _ := storage.GetProduct(context.Background(), latte.ID)
	assert.Equal(t, 1, p.Stock)
}

func TestCreateSaleCumulativeQuantityAcrossLines(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	latte := seedProduct(t, storage, "Latte", "11.50", 3)

	// two lines for the same product totalling more than stock
	_, err := svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: latte.ID, Quantity: 2},
		{ProductID: latte.ID, Quantity: 2},
	}, models.PaymentCash)
	require.ErrorIs(t, err, ErrInsufficientStock)

	p, _ := storage.GetProduct(context.Background(), latte.ID)
	assert.Equal(t, 3, p.Stock)
}

func TestCreateSaleUnavailableProduct(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)

	p := seedProduct(t, storage, "Seasonal Drink", "9.20", 10)
	p.IsAvailable = false
	require.NoError(t, storage.SaveProduct(context.Background(), &p))

	_, err := svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: p.ID, Quantity: 1},
	}, models.PaymentCash)
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

// Two simultaneous sales both requesting the last unit: exactly one commits,
// stock ends at zero, never below.
func TestConcurrentSalesNeverOversell(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	latte := seedProduct(t, storage, "Latte", "11.50", 1)
	items := []SaleItemInput{{ProductID: latte.ID, Quantity: 1}}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateSale(context.Background(), sellerID, shift.ID, items, models.PaymentCash)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded)

	p, _ := storage.GetProduct(context.Background(), latte.ID)
	assert.Equal(t, 0, p.Stock)
}

// Many concurrent sales against stock N: at most N units are ever sold.
func TestConcurrentSalesBoundedByStock(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	const stock = 5
	latte := seedProduct(t, storage, "Latte", "11.50", stock)

	const callers = 12
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateSale(context.Background(), sellerID, shift.ID,
				[]SaleItemInput{{ProductID: latte.ID, Quantity: 1}}, models.PaymentCash)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, stock, succeeded)

	p, _ := storage.GetProduct(context.Background(), latte.ID)
	assert.Equal(t, 0, p.Stock)
}

// A failure inside the atomic persistence step must leave no partial state.
func TestCreateSaleAtomicOnStorageFailure(t *testing.T) {
	storage := NewMemoryStorage()
	failing := &failingStorage{Storage: storage}
	svc := NewService(failing, zaptest.NewLogger(t))
	sellerID := uuid.NewString()

	shift, err := svc.OpenShift(context.Background(), sellerID, models.ShiftMorning, dec("100.00"))
	require.NoError(t, err)
	latte := seedProduct(t, storage, "Latte", "11.50", 10)

	failing.failCreateSale = true
	_, err = svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: latte.ID, Quantity: 2},
	}, models.PaymentCash)

	var txErr *TransactionError
	require.ErrorAs(t, err, &txErr)

	p, _ := storage.GetProduct(context.Background(), latte.ID)
	assert.Equal(t, 10, p.Stock, "no decrement may survive a failed transaction")
	sales, _ := storage.ListSales(context.Background())
	assert.Empty(t, sales)
}

// failingStorage delegates to the wrapped Storage but can simulate an
// infrastructure failure of the atomic step.
type failingStorage struct {
	Storage
	failCreateSale bool
}

func (f *failingStorage) CreateSale(ctx context.Context, sale *models.Sale, decrements []StockDecrement) error {
	if f.failCreateSale {
		return &TransactionError{Err: errors.New("connection reset")}
	}
	return f.Storage.CreateSale(ctx, sale, decrements)
}

// --- Reads and summaries ---

func TestListSalesNewestFirst(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	latte := seedProduct(t, storage, "Latte", "11.50", 10)

	first, err := svc.CreateSale(context.Background(), sellerID, shift.ID,
		[]SaleItemInput{{ProductID: latte.ID, Quantity: 1}}, models.PaymentCash)
	require.NoError(t, err)
	second, err := svc.CreateSale(context.Background(), sellerID, shift.ID,
		[]SaleItemInput{{ProductID: latte.ID, Quantity: 1}}, models.PaymentCash)
	require.NoError(t, err)

	sales, err := svc.ListSales(context.Background())
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, second.ID, sales[0].ID)
	assert.Equal(t, first.ID, sales[1].ID)
}

func TestShiftSummary(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	latte := seedProduct(t, storage, "Latte", "11.50", 10)
	croissant := seedProduct(t, storage, "Croissant", "5.75", 10)

	_, err := svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: latte.ID, Quantity: 1},
		{ProductID: croissant.ID, Quantity: 2},
	}, models.PaymentVisaMaster)
	require.NoError(t, err)
	_, err = svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: latte.ID, Quantity: 2},
	}, models.PaymentCash)
	require.NoError(t, err)

	sum, err := svc.ShiftSummary(context.Background(), shift.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.SalesCount)
	assert.True(t, dec("40.00").Equal(sum.Subtotal), "subtotal: got %s", sum.Subtotal)
	assert.True(t, dec("6.00").Equal(sum.VatAmount), "vat: got %s", sum.VatAmount)
	assert.True(t, dec("46.00").Equal(sum.TotalAmount), "total: got %s", sum.TotalAmount)
	assert.True(t, dec("0.45").Equal(sum.FeeAmount), "fees: got %s", sum.FeeAmount)
}

func TestSalesSummaryWindows(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	latte := seedProduct(t, storage, "Latte", "11.50", 50)

	_, err := svc.CreateSale(context.Background(), sellerID, shift.ID,
		[]SaleItemInput{{ProductID: latte.ID, Quantity: 2}}, models.PaymentVisaMaster)
	require.NoError(t, err)
	_, err = svc.CreateSale(context.Background(), sellerID, shift.ID,
		[]SaleItemInput{{ProductID: latte.ID, Quantity: 1}}, models.PaymentCash)
	require.NoError(t, err)

	// open window covers everything
	sum, err := svc.SalesSummary(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.SalesCount)
	assert.True(t, dec("34.50").Equal(sum.TotalAmount), "total: got %s", sum.TotalAmount)
	assert.True(t, dec("30.00").Equal(sum.Subtotal), "subtotal: got %s", sum.Subtotal)

	// window starting after the sales is empty
	future := time.Now().Add(time.Hour)
	sum, err = svc.SalesSummary(context.Background(), &future, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.SalesCount)
	assert.True(t, sum.TotalAmount.IsZero())

	// window ending before the sales is empty; the end bound is exclusive
	past := time.Now().Add(-time.Hour)
	sum, err = svc.SalesSummary(context.Background(), nil, &past)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.SalesCount)

	// bracketing window sees both sales
	sum, err = svc.SalesSummary(context.Background(), &past, &future)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.SalesCount)
}

func TestDailySummaryAndTopProducts(t *testing.T) {
	svc, storage := newTestService(t)
	sellerID := uuid.NewString()
	shift := openShift(t, svc, sellerID)
	latte := seedProduct(t, storage, "Latte", "11.50", 50)
	croissant := seedProduct(t, storage, "Croissant", "5.75", 50)
	mocha := seedProduct(t, storage, "Mocha", "13.80", 50)

	_, err := svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: latte.ID, Quantity: 3},
		{ProductID: croissant.ID, Quantity: 5},
	}, models.PaymentCash)
	require.NoError(t, err)
	_, err = svc.CreateSale(context.Background(), sellerID, shift.ID, []SaleItemInput{
		{ProductID: mocha.ID, Quantity: 1},
	}, models.PaymentMada)
	require.NoError(t, err)

	daily, err := svc.DailySummary(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, daily.SaleCount)
	// 11.50*3 + 5.75*5 + 13.80 = 34.50 + 28.75 + 13.80 = 77.05
	assert.True(t, dec("77.05").Equal(daily.TotalSales), "total sales: got %s", daily.TotalSales)

	top, err := svc.TopProducts(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, TopProduct{ProductName: "Croissant", TotalQuantity: 5}, top[0])
	assert.Equal(t, TopProduct{ProductName: "Latte", TotalQuantity: 3}, top[1])
	assert.Equal(t, TopProduct{ProductName: "Mocha", TotalQuantity: 1}, top[2])
}
