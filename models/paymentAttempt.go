package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentAttempt records a payment collection handed to the external provider.
// The provider later reports success/failure by TransactionRef.
type PaymentAttempt struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrderId        int             `gorm:"index;not null" json:"order_id"`
	TransactionRef string          `gorm:"uniqueIndex;size:100;not null" json:"transaction_ref"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CurrentStatus  PaymentStatus   `gorm:"size:20;not null" json:"current_status"`
	ReportedAt     *time.Time      `json:"reported_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj PaymentAttempt) GetId() int {
	return obj.ID
}
