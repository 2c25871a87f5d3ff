package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShiftType string

const (
	ShiftMorning ShiftType = "morning"
	ShiftEvening ShiftType = "evening"
)

func (t ShiftType) Valid() bool {
	return t == ShiftMorning || t == ShiftEvening
}

type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentMada       PaymentMethod = "mada"
	PaymentVisaMaster PaymentMethod = "visa_master"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentMada || m == PaymentVisaMaster
}

type User struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	Email     string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Role      string    `gorm:"type:varchar(16);not null;default:'seller'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Category struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Products []Product `gorm:"foreignKey:CategoryID" json:"products,omitempty"`
}

// Product.Price is the tax-inclusive retail price; tax-exclusive amounts are
// derived from it at pricing time. Stock is mutated only by the sale engine
// (conditional decrement) and by catalog administration (direct set).
type Product struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"name"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	IsAvailable bool            `gorm:"not null;default:true" json:"is_available"`
	CategoryID  string          `gorm:"type:uuid;index" json:"category_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Shift invariant: for a given seller at most one row with end_time IS NULL.
type Shift struct {
	ID           string           `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID     string           `gorm:"type:uuid;not null;index;uniqueIndex:udx_open_shift,where:end_time IS NULL" json:"seller_id"`
	ShiftType    ShiftType        `gorm:"type:varchar(16);not null" json:"shift_type"`
	StartTime    time.Time        `gorm:"not null" json:"start_time"`
	EndTime      *time.Time       `json:"end_time"`
	StartingCash decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"starting_cash"`
	EndingCash   *decimal.Decimal `gorm:"type:decimal(12,2)" json:"ending_cash"`

	Seller *User `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

// Open reports whether the shift has not been closed yet.
func (s *Shift) Open() bool { return s.EndTime == nil }

// Sale is immutable once created. TotalAmount = Subtotal + VatAmount exactly;
// FeeAmount is the merchant-borne payment fee and is never part of TotalAmount.
type Sale struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID      string          `gorm:"type:uuid;not null;index" json:"seller_id"`
	ShiftID       string          `gorm:"type:uuid;not null;index" json:"shift_id"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	VatAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"vat_amount"`
	FeeAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"fee_amount"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(16);not null" json:"payment_method"`
	SaleTime      time.Time       `gorm:"not null;index" json:"sale_time"`

	Items  []SaleItem `gorm:"foreignKey:SaleID" json:"items"`
	Seller *User      `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

// SaleItem freezes ProductName and PriceAtSale at sale time; later catalog
// edits never touch it. Subtotal is the tax-exclusive line amount.
type SaleItem struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	SaleID      string          `gorm:"type:uuid;not null;index" json:"sale_id"`
	ProductID   string          `gorm:"type:uuid;not null" json:"product_id"`
	ProductName string          `gorm:"type:varchar(128);not null" json:"product_name"`
	PriceAtSale decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price_at_sale"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
}
