package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/grocery_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSubscriptionStore is the MySQL-backed subscription store.
type GormSubscriptionStore struct {
	DB *gorm.DB
}

func (s *GormSubscriptionStore) Create(ctx context.Context, subscription *Subscription) error {
	return s.DB.WithContext(ctx).Create(subscription).Error
}

func (s *GormSubscriptionStore) Get(ctx context.Context, id int) (*Subscription, error) {
	var subscription Subscription
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Preload("SkipDates").
		First(&subscription, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// Update applies mutate inside one transaction with a row lock. Item replacement
// done inside mutate is persisted as part of the same unit.
func (s *GormSubscriptionStore) Update(ctx context.Context, id int, mutate func(*Subscription) error) (*Subscription, error) {
	var subscription Subscription
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			Preload("SkipDates").
			First(&subscription, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		if err != nil {
			return err
		}

		oldItemIds := make([]int, 0, len(subscription.Items))
		for _, item := range subscription.Items {
			oldItemIds = append(oldItemIds, item.ID)
		}

		if err := mutate(&subscription); err != nil {
			return err
		}

		// mutate may have replaced the item set wholesale; drop rows that are no
		// longer referenced before saving the new set.
		kept := make(map[int]bool, len(subscription.Items))
		for _, item := range subscription.Items {
			if item.ID > 0 {
				kept[item.ID] = true
			}
		}
		for _, oldId := range oldItemIds {
			if !kept[oldId] {
				if err := tx.Where("id = ? AND subscription_id = ?", oldId, id).
					Delete(&SubscriptionItem{}).Error; err != nil {
					return err
				}
			}
		}

		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(&subscription).Error
	})
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// DueBetween returns every ACTIVE subscription whose next order date falls in
// [from, to], skip dates preloaded for the tick.
func (s *GormSubscriptionStore) DueBetween(ctx context.Context, from, to time.Time) ([]*Subscription, error) {
	var results []*Subscription
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Preload("SkipDates").
		Where("current_status = ? AND next_order_date BETWEEN ? AND ?", SubscriptionStatusActive, from, to).
		Order("id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// PausedDueToResume returns PAUSED subscriptions whose auto-resume date has passed.
func (s *GormSubscriptionStore) PausedDueToResume(ctx context.Context, now time.Time) ([]*Subscription, error) {
	var results []*Subscription
	err := s.DB.WithContext(ctx).
		Where("current_status = ? AND resume_on IS NOT NULL AND resume_on <= ?", SubscriptionStatusPaused, now).
		Order("id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetSubscriptions lists subscriptions for the admin surface with optional filters.
func GetSubscriptions(ctx context.Context, db *gorm.DB, customerId *int, status *SubscriptionStatus) ([]*Subscription, error) {
	dbCtx := db.WithContext(ctx).Preload("Items").Preload("SkipDates")

	if customerId != nil && *customerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", *customerId)
	}
	if status != nil {
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}

	var results []*Subscription
	err := dbCtx.Order("id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
