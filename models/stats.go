package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatusCount struct {
	CurrentStatus OrderStatus     `json:"current_status"`
	Count         int64           `json:"count"`
	Revenue       decimal.Decimal `json:"revenue"`
}

type SubscriptionStatusCount struct {
	CurrentStatus SubscriptionStatus    `json:"current_status"`
	Frequency     SubscriptionFrequency `json:"frequency"`
	Count         int64                 `json:"count"`
}

// OrderStatistics returns per-status order counts and revenue for orders created
// in [from, to].
func OrderStatistics(ctx context.Context, db *gorm.DB, from, to time.Time) ([]OrderStatusCount, error) {
	var results []OrderStatusCount
	err := db.WithContext(ctx).Model(&Order{}).
		Select("current_status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS revenue").
		Where("created_at BETWEEN ? AND ?", from, to).
		Group("current_status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SubscriptionStatistics returns subscription counts grouped by status and frequency.
func SubscriptionStatistics(ctx context.Context, db *gorm.DB) ([]SubscriptionStatusCount, error) {
	var results []SubscriptionStatusCount
	err := db.WithContext(ctx).Model(&Subscription{}).
		Select("current_status, frequency, COUNT(*) AS count").
		Group("current_status, frequency").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
