package models

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/grocery_backend/utils"
	"gorm.io/gorm"
)

// GormCatalog serves current product price/active state to the engines.
type GormCatalog struct {
	DB *gorm.DB
}

func (c *GormCatalog) GetProduct(ctx context.Context, id int) (*Product, error) {
	var product Product
	err := c.DB.WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GormCustomerDirectory serves customer flags and delivery addresses.
type GormCustomerDirectory struct {
	DB *gorm.DB
}

func (d *GormCustomerDirectory) GetCustomer(ctx context.Context, id int) (*Customer, error) {
	var customer Customer
	err := d.DB.WithContext(ctx).First(&customer, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (d *GormCustomerDirectory) GetAddress(ctx context.Context, id int) (*DeliveryAddress, error) {
	var address DeliveryAddress
	err := d.DB.WithContext(ctx).First(&address, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// DefaultAddress returns the customer's default delivery address, or the most
// recently added one when no explicit default is set.
func (d *GormCustomerDirectory) DefaultAddress(ctx context.Context, customerId int) (*DeliveryAddress, error) {
	var address DeliveryAddress
	err := d.DB.WithContext(ctx).
		Where("customer_id = ?", customerId).
		Order("is_default DESC, id DESC").
		First(&address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &address, nil
}
