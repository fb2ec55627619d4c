package models

import (
	"log"

	"bitbucket.org/mmdatafocus/grocery_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Customer{}, &DeliveryAddress{},
		&Product{},
		&Order{}, &OrderItem{},
		&Subscription{}, &SubscriptionItem{}, &SubscriptionSkipDate{},
		&Delivery{}, &PaymentAttempt{},
		&VendorCommission{},
		&AuditLog{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
