package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VendorCommission is derived once per order item whose product carries a vendor and
// a commission rate, at the moment the order reaches COMPLETED.
type VendorCommission struct {
	ID          int             `gorm:"primary_key" json:"id"`
	OrderId     int             `gorm:"index;not null" json:"order_id"`
	OrderItemId int             `gorm:"index;not null" json:"order_item_id"`
	VendorId    int             `gorm:"index;not null" json:"vendor_id"`
	ProductId   int             `gorm:"index;not null" json:"product_id"`
	Rate        decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"rate"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (obj VendorCommission) GetId() int {
	return obj.ID
}
