package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Name           string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Description    string          `gorm:"type:text" json:"description"`
	Sku            string          `gorm:"size:100" json:"sku"`
	Unit           string          `gorm:"size:30" json:"unit"`
	SalesPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_price"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	VendorId       int             `gorm:"index;default:0" json:"vendor_id"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"commission_rate"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Product) GetId() int {
	return obj.ID
}

// HasVendorCommission reports whether completing an order line for this product
// should produce a VendorCommission record.
func (p Product) HasVendorCommission() bool {
	return p.VendorId > 0 && p.CommissionRate.GreaterThan(decimal.Zero)
}
