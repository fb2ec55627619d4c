// generate-orders runs the daily subscription tick once and exits. It is the
// Cloud Scheduler job target for deployments that prefer a job over the HTTP
// endpoint.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... REDIS_ADDRESS=... go run ./cmd/generate-orders
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/grocery_backend/config"
	"bitbucket.org/mmdatafocus/grocery_backend/engine"
	"bitbucket.org/mmdatafocus/grocery_backend/models"
	"bitbucket.org/mmdatafocus/grocery_backend/utils"
)

func main() {
	ctx := context.Background()
	logger := config.GetLogger()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	loc := utils.OperatorTimezone()
	calendar := engine.CalendarFromEnv(loc)
	clock := engine.SystemClock()

	orderStore := &models.GormOrderStore{DB: db}
	subscriptionStore := &models.GormSubscriptionStore{DB: db}
	catalog := &models.GormCatalog{DB: db}
	customers := &models.GormCustomerDirectory{DB: db}
	audit := &models.GormAuditLog{DB: db}
	dispatcher := &engine.PubSubDispatcher{
		Topic:  config.DeliveryDispatchTopic(),
		Logger: logger,
	}

	orders := engine.NewOrderEngine(orderStore, catalog, customers, dispatcher, audit, calendar, clock, logger)
	subscriptions := engine.NewSubscriptionEngine(subscriptionStore, orders, catalog, customers, calendar, clock, audit, logger)

	var summary *engine.GenerationSummary
	err := engine.WithTickLock(ctx, func(ctx context.Context) error {
		var tickErr error
		summary, tickErr = subscriptions.GenerateUpcomingOrders(ctx)
		return tickErr
	})
	if err == engine.ErrTickAlreadyRunning {
		fmt.Println("another instance is running the tick; nothing to do")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "order generation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("generated %d orders, skipped %d, %d failures\n",
		summary.Created, summary.Skipped, len(summary.Failures))
	for _, failure := range summary.Failures {
		fmt.Fprintf(os.Stderr, "subscription %d: %s\n", failure.SubscriptionId, failure.Error)
	}
	if len(summary.Failures) > 0 {
		os.Exit(2)
	}
}
