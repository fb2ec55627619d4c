// seed-dev populates a local database with a small grocery catalog, a couple of
// customers with addresses, and one weekly subscription, so the API has data to
// work against out of the box.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/grocery_backend/config"
	"bitbucket.org/mmdatafocus/grocery_backend/engine"
	"bitbucket.org/mmdatafocus/grocery_backend/models"
	"bitbucket.org/mmdatafocus/grocery_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	products := []models.Product{
		{Name: "Jasmine Rice 5kg", Sku: "RICE-5KG", Unit: "bag", SalesPrice: decimal.NewFromInt(18500), IsActive: utils.NewTrue()},
		{Name: "Free Range Eggs (12)", Sku: "EGG-12", Unit: "tray", SalesPrice: decimal.NewFromInt(4200), IsActive: utils.NewTrue()},
		{Name: "Fresh Milk 1L", Sku: "MILK-1L", Unit: "bottle", SalesPrice: decimal.NewFromInt(3800), IsActive: utils.NewTrue(),
			VendorId: 1, CommissionRate: decimal.NewFromFloat(0.05)},
		{Name: "Tomatoes 1kg", Sku: "TOM-1KG", Unit: "kg", SalesPrice: decimal.NewFromInt(2500), IsActive: utils.NewTrue()},
		{Name: "Peanut Oil 1L", Sku: "OIL-1L", Unit: "bottle", SalesPrice: decimal.NewFromInt(9800), IsActive: utils.NewTrue(),
			VendorId: 2, CommissionRate: decimal.NewFromFloat(0.03)},
	}
	for i := range products {
		if err := upsertProduct(ctx, db, &products[i]); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed product %s: %v\n", products[i].Sku, err)
			os.Exit(1)
		}
	}

	customers := []models.Customer{
		{Name: "Daw Khin Myo", Phone: "09540001111", IsPostpaid: utils.NewFalse()},
		{Name: "Golden Valley Cafe", Phone: "09540002222", IsPostpaid: utils.NewTrue()},
	}
	for i := range customers {
		if err := upsertCustomer(ctx, db, &customers[i]); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed customer %s: %v\n", customers[i].Name, err)
			os.Exit(1)
		}
		address := models.DeliveryAddress{
			CustomerId: customers[i].ID,
			Label:      "Home",
			Line1:      fmt.Sprintf("No. %d, Inya Road", 10+i),
			Township:   "Kamayut",
			City:       "Yangon",
			IsDefault:  utils.NewTrue(),
		}
		if err := upsertAddress(ctx, db, &address); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed address for %s: %v\n", customers[i].Name, err)
			os.Exit(1)
		}
	}

	// One weekly subscription for the first customer, seeded through the engine so
	// pricing and scheduling match production behavior.
	var existing int64
	if err := db.WithContext(ctx).Model(&models.Subscription{}).
		Where("customer_id = ?", customers[0].ID).
		Count(&existing).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to check subscriptions: %v\n", err)
		os.Exit(1)
	}
	if existing == 0 {
		loc := utils.OperatorTimezone()
		subscriptionStore := &models.GormSubscriptionStore{DB: db}
		catalog := &models.GormCatalog{DB: db}
		directory := &models.GormCustomerDirectory{DB: db}
		audit := &models.GormAuditLog{DB: db}
		subscriptions := engine.NewSubscriptionEngine(subscriptionStore, nil, catalog, directory,
			engine.CalendarFromEnv(loc), engine.SystemClock(), audit, config.GetLogger())

		subscription, err := subscriptions.Create(ctx, &models.NewSubscription{
			CustomerId: customers[0].ID,
			Name:       "Weekly staples",
			Frequency:  models.FrequencyWeekly,
			StartDate:  time.Now().In(loc),
			Items: []models.NewSubscriptionItem{
				{ProductId: products[0].ID, Qty: decimal.NewFromInt(1)},
				{ProductId: products[1].ID, Qty: decimal.NewFromInt(2)},
				{ProductId: products[2].ID, Qty: decimal.NewFromInt(3), AllowSubstitution: utils.NewTrue()},
			},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed subscription: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("seeded subscription %d (next order %s)\n",
			subscription.ID, subscription.NextOrderDate.Format("2006-01-02"))
	}

	fmt.Println("seed complete")
}

func upsertProduct(ctx context.Context, db *gorm.DB, product *models.Product) error {
	var found models.Product
	err := db.WithContext(ctx).Where("sku = ?", product.Sku).First(&found).Error
	if err == nil {
		product.ID = found.ID
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return db.WithContext(ctx).Create(product).Error
}

func upsertCustomer(ctx context.Context, db *gorm.DB, customer *models.Customer) error {
	var found models.Customer
	err := db.WithContext(ctx).Where("phone = ?", customer.Phone).First(&found).Error
	if err == nil {
		customer.ID = found.ID
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return db.WithContext(ctx).Create(customer).Error
}

func upsertAddress(ctx context.Context, db *gorm.DB, address *models.DeliveryAddress) error {
	var found models.DeliveryAddress
	err := db.WithContext(ctx).Where("customer_id = ?", address.CustomerId).First(&found).Error
	if err == nil {
		address.ID = found.ID
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return db.WithContext(ctx).Create(address).Error
}
