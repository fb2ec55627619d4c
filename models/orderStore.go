package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/grocery_backend/config"
	"bitbucket.org/mmdatafocus/grocery_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IsDuplicateKeyErr reports a MySQL unique-constraint violation (error 1062).
func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// GormOrderStore is the MySQL-backed order record store. Per-order mutation runs
// read-validate-write inside a single transaction with a row lock, so two
// concurrent transition requests on the same order cannot both succeed from the
// same source state.
type GormOrderStore struct {
	DB *gorm.DB
}

func (s *GormOrderStore) Create(ctx context.Context, order *Order) error {
	return s.DB.WithContext(ctx).Create(order).Error
}

func (s *GormOrderStore) Get(ctx context.Context, id int) (*Order, error) {
	var order Order
	err := s.DB.WithContext(ctx).Preload("Items").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *GormOrderStore) Update(ctx context.Context, id int, mutate func(*Order) error) (*Order, error) {
	var order Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			First(&order, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		if err != nil {
			return err
		}
		if err := mutate(&order); err != nil {
			return err
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(&order).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// NextDailySequence allocates the next order sequence for the given calendar day
// from a redis counter, reconciling against the orders table when the counter is
// fresh (or redis is unavailable).
func (s *GormOrderStore) NextDailySequence(ctx context.Context, prefix string, day time.Time) (int64, error) {
	key := "order_seq:" + day.Format("060102")
	seq, err := config.GetRedisCounter(ctx, key)
	if err != nil {
		return 0, err
	}
	if seq <= 1 {
		var count int64
		err := s.DB.WithContext(ctx).Model(&Order{}).
			Where("order_number LIKE ?", prefix+day.Format("060102")+"%").
			Count(&count).Error
		if err != nil {
			return 0, err
		}
		if count+1 > seq {
			seq = count + 1
			if err := config.SetRedisObject(key, &seq, 48*time.Hour); err != nil {
				return 0, err
			}
		}
	}
	// per-day counters must not accumulate forever
	_ = config.ExpireRedisKey(ctx, key, 48*time.Hour)
	return seq, nil
}

// SubscriptionOrderExists reports whether an order was already generated for the
// subscription in the given buying cycle. This is what makes the daily tick
// idempotent.
func (s *GormOrderStore) SubscriptionOrderExists(ctx context.Context, subscriptionId int, cycleDate time.Time) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&Order{}).
		Where("subscription_id = ? AND buying_cycle_date = ?", subscriptionId, cycleDate).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormOrderStore) ForBuyingCycle(ctx context.Context, cycleDate time.Time, statuses []OrderStatus) ([]*Order, error) {
	var results []*Order
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Where("buying_cycle_date = ? AND current_status IN ?", cycleDate, statuses).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CreateVendorCommissions persists commissions for an order exactly once; a second
// completion attempt for the same order is a no-op.
func (s *GormOrderStore) CreateVendorCommissions(ctx context.Context, orderId int, commissions []VendorCommission) error {
	if len(commissions) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&VendorCommission{}).Where("order_id = ?", orderId).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.Create(&commissions).Error
	})
}

func (s *GormOrderStore) CreateDelivery(ctx context.Context, delivery *Delivery) error {
	return s.DB.WithContext(ctx).Create(delivery).Error
}

func (s *GormOrderStore) CreatePaymentAttempt(ctx context.Context, attempt *PaymentAttempt) error {
	return s.DB.WithContext(ctx).Create(attempt).Error
}

// ResolvePaymentAttempt marks the attempt identified by transactionRef with the
// provider-reported outcome and returns it.
func (s *GormOrderStore) ResolvePaymentAttempt(ctx context.Context, transactionRef string, status PaymentStatus, reportedAt time.Time) (*PaymentAttempt, error) {
	var attempt PaymentAttempt
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("transaction_ref = ?", transactionRef).
			First(&attempt).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		if err != nil {
			return err
		}
		attempt.CurrentStatus = status
		attempt.ReportedAt = &reportedAt
		return tx.Save(&attempt).Error
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// GetOrders lists orders for the admin surface with optional filters.
func GetOrders(ctx context.Context, db *gorm.DB, customerId *int, status *OrderStatus, cycleDate *time.Time) ([]*Order, error) {
	dbCtx := db.WithContext(ctx).Preload("Items")

	if customerId != nil && *customerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", *customerId)
	}
	if status != nil {
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}
	if cycleDate != nil {
		dbCtx = dbCtx.Where("buying_cycle_date = ?", *cycleDate)
	}

	var results []*Order
	err := dbCtx.Order("id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
