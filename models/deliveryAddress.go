package models

import "time"

type DeliveryAddress struct {
	ID         int       `gorm:"primary_key" json:"id"`
	CustomerId int       `gorm:"index;not null" json:"customer_id" binding:"required"`
	Label      string    `gorm:"size:50" json:"label"`
	Line1      string    `gorm:"size:255;not null" json:"line1" binding:"required"`
	Line2      string    `gorm:"size:255" json:"line2"`
	Township   string    `gorm:"size:100" json:"township"`
	City       string    `gorm:"size:100" json:"city"`
	IsDefault  *bool     `gorm:"not null;default:false" json:"is_default"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj DeliveryAddress) GetId() int {
	return obj.ID
}
