package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	OrderNumber         string          `gorm:"uniqueIndex;size:255;not null" json:"order_number"`
	CustomerId          int             `gorm:"index;not null" json:"customer_id" binding:"required"`
	DeliveryAddressId   int             `gorm:"not null" json:"delivery_address_id" binding:"required"`
	Subtotal            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	DeliveryFee         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"delivery_fee"`
	Discount            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	TotalAmount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CurrentStatus       OrderStatus     `gorm:"size:30;index;not null" json:"current_status"`
	IsoWeek             int             `gorm:"not null" json:"iso_week"`
	BuyingCycleDate     time.Time       `gorm:"index;not null" json:"buying_cycle_date"`
	IsSubscriptionOrder *bool           `gorm:"not null;default:false" json:"is_subscription_order"`
	SubscriptionId      *int            `gorm:"index;default:null" json:"subscription_id"`
	CustomerNotes       string          `gorm:"type:text" json:"customer_notes"`
	ConfirmedAt         *time.Time      `json:"confirmed_at"`
	PaidAt              *time.Time      `json:"paid_at"`
	PackedAt            *time.Time      `json:"packed_at"`
	DeliveredAt         *time.Time      `json:"delivered_at"`
	CompletedAt         *time.Time      `json:"completed_at"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Items               []OrderItem     `gorm:"foreignKey:OrderId" json:"items"`
}

type OrderItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	OrderId     int             `gorm:"index;not null" json:"order_id"`
	ProductId   int             `gorm:"index;not null" json:"product_id" binding:"required"`
	ProductName string          `gorm:"size:100" json:"product_name"`
	Qty         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty" binding:"required"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price" binding:"required"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	IsSourced   *bool           `gorm:"not null;default:false" json:"is_sourced"`
	SourcedQty  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sourced_qty"`
	Unavailable *bool           `gorm:"not null;default:false" json:"unavailable"`
}

// NewOrder is the create-order input.
type NewOrder struct {
	CustomerId        int            `json:"customer_id" binding:"required"`
	DeliveryAddressId int            `json:"delivery_address_id" binding:"required"`
	DeliveryFee       decimal.Decimal `json:"delivery_fee"`
	Discount          decimal.Decimal `json:"discount"`
	CustomerNotes     string         `json:"customer_notes"`
	SubscriptionId    *int           `json:"subscription_id"`
	Items             []NewOrderItem `json:"items"`
}

type NewOrderItem struct {
	ProductId   int             `json:"product_id" binding:"required"`
	ProductName string          `json:"product_name"`
	Qty         decimal.Decimal `json:"qty" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required"`
}

func (obj Order) GetId() int {
	return obj.ID
}

func (o Order) GetCursor() string {
	return o.CreatedAt.String()
}

// ComputeTotals recomputes line totals, the order subtotal and the grand total.
// Invariant: TotalAmount = Subtotal + DeliveryFee - Discount.
func (o *Order) ComputeTotals() {
	var subtotal decimal.Decimal
	for i := range o.Items {
		item := &o.Items[i]
		item.TotalPrice = item.Qty.Mul(item.UnitPrice)
		subtotal = subtotal.Add(item.TotalPrice)
	}
	o.Subtotal = subtotal
	o.TotalAmount = subtotal.Add(o.DeliveryFee).Sub(o.Discount)
}

// AllItemsSourced reports whether every line has been confirmed by procurement.
func (o Order) AllItemsSourced() bool {
	for _, item := range o.Items {
		if item.IsSourced == nil || !*item.IsSourced {
			return false
		}
	}
	return len(o.Items) > 0
}

// AnyItemUnavailable reports whether procurement flagged any line as unavailable.
func (o Order) AnyItemUnavailable() bool {
	for _, item := range o.Items {
		if item.Unavailable != nil && *item.Unavailable {
			return true
		}
	}
	return false
}
