package models

import "time"

// Delivery is the durable record of a dispatch request handed to the external
// delivery system when an order reaches PACKED.
type Delivery struct {
	ID                int            `gorm:"primary_key" json:"id"`
	OrderId           int            `gorm:"index;not null" json:"order_id"`
	OrderNumber       string         `gorm:"size:255" json:"order_number"`
	DeliveryAddressId int            `gorm:"not null" json:"delivery_address_id"`
	ScheduledDate     time.Time      `gorm:"not null" json:"scheduled_date"`
	CurrentStatus     DeliveryStatus `gorm:"size:20;not null" json:"current_status"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Delivery) GetId() int {
	return obj.ID
}
