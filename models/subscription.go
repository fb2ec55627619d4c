package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Subscription struct {
	ID                   int                    `gorm:"primary_key" json:"id"`
	CustomerId           int                    `gorm:"index;not null" json:"customer_id" binding:"required"`
	Name                 string                 `gorm:"size:100;not null" json:"name" binding:"required"`
	Frequency            SubscriptionFrequency  `gorm:"size:20;not null" json:"frequency" binding:"required"`
	BasePrice            decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"base_price"`
	DeliveryFee          decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"delivery_fee"`
	CurrentStatus        SubscriptionStatus     `gorm:"size:20;index;not null" json:"current_status"`
	StartDate            time.Time              `gorm:"not null" json:"start_date" binding:"required"`
	EndDate              *time.Time             `gorm:"default:null" json:"end_date"`
	NextOrderDate        time.Time              `gorm:"index;not null" json:"next_order_date"`
	DeliveryAddressId    int                    `gorm:"default:0" json:"delivery_address_id"`
	PreferredDeliveryDay string                 `gorm:"size:20" json:"preferred_delivery_day"`
	AllowEdits           *bool                  `gorm:"not null;default:true" json:"allow_edits"`
	AllowSkip            *bool                  `gorm:"not null;default:true" json:"allow_skip"`
	ResumeOn             *time.Time             `gorm:"default:null" json:"resume_on"`
	Items                []SubscriptionItem     `gorm:"foreignKey:SubscriptionId" json:"items"`
	SkipDates            []SubscriptionSkipDate `gorm:"foreignKey:SubscriptionId" json:"skip_dates"`
	CreatedAt            time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

type SubscriptionItem struct {
	ID                int             `gorm:"primary_key" json:"id"`
	SubscriptionId    int             `gorm:"index;not null" json:"subscription_id"`
	ProductId         int             `gorm:"index;not null" json:"product_id" binding:"required"`
	Qty               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty" binding:"required"`
	AllowSubstitution *bool           `gorm:"not null;default:false" json:"allow_substitution"`
}

type SubscriptionSkipDate struct {
	ID             int       `gorm:"primary_key" json:"id"`
	SubscriptionId int       `gorm:"index;not null" json:"subscription_id"`
	SkipDate       time.Time `gorm:"not null" json:"skip_date"`
}

// NewSubscription is the create-subscription input.
type NewSubscription struct {
	CustomerId           int                   `json:"customer_id" binding:"required"`
	Name                 string                `json:"name" binding:"required"`
	Frequency            SubscriptionFrequency `json:"frequency" binding:"required"`
	DeliveryFee          decimal.Decimal       `json:"delivery_fee"`
	StartDate            time.Time             `json:"start_date" binding:"required"`
	EndDate              *time.Time            `json:"end_date"`
	DeliveryAddressId    int                   `json:"delivery_address_id"`
	PreferredDeliveryDay string                `json:"preferred_delivery_day"`
	AllowEdits           *bool                 `json:"allow_edits"`
	AllowSkip            *bool                 `json:"allow_skip"`
	Items                []NewSubscriptionItem `json:"items"`
}

type NewSubscriptionItem struct {
	ProductId         int             `json:"product_id" binding:"required"`
	Qty               decimal.Decimal `json:"qty" binding:"required"`
	AllowSubstitution *bool           `json:"allow_substitution"`
}

func (obj Subscription) GetId() int {
	return obj.ID
}

func (s Subscription) GetCursor() string {
	return s.CreatedAt.String()
}

// HasSkipDate reports whether day (compared by calendar date in loc) is one of the
// subscription's explicit skip dates.
func (s Subscription) HasSkipDate(day time.Time, loc *time.Location) bool {
	y, m, d := day.In(loc).Date()
	for _, sd := range s.SkipDates {
		sy, sm, sdd := sd.SkipDate.In(loc).Date()
		if y == sy && m == sm && d == sdd {
			return true
		}
	}
	return false
}
