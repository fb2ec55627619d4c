package models

import "time"

type Customer struct {
	ID         int       `gorm:"primary_key" json:"id"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email      string    `gorm:"size:100" json:"email"`
	Phone      string    `gorm:"size:30" json:"phone"`
	IsPostpaid *bool     `gorm:"not null;default:false" json:"is_postpaid"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Customer) GetId() int {
	return obj.ID
}
