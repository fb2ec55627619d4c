package engine

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/grocery_backend/config"
	"bitbucket.org/mmdatafocus/grocery_backend/models"
	"bitbucket.org/mmdatafocus/grocery_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SubscriptionStore is the subscription record store the scheduler runs against.
type SubscriptionStore interface {
	Create(ctx context.Context, subscription *models.Subscription) error
	Get(ctx context.Context, id int) (*models.Subscription, error)
	Update(ctx context.Context, id int, mutate func(*models.Subscription) error) (*models.Subscription, error)
	DueBetween(ctx context.Context, from, to time.Time) ([]*models.Subscription, error)
	PausedDueToResume(ctx context.Context, now time.Time) ([]*models.Subscription, error)
}

// OrderService is the slice of the order engine the scheduler needs.
type OrderService interface {
	CreateOrder(ctx context.Context, input *models.NewOrder) (*models.Order, error)
	Confirm(ctx context.Context, id int) (*models.Order, error)
	SubscriptionOrderExists(ctx context.Context, subscriptionId int, cycleDate time.Time) (bool, error)
}

// GenerationFailure records one candidate the daily tick could not materialize.
type GenerationFailure struct {
	SubscriptionId int    `json:"subscription_id"`
	Error          string `json:"error"`
}

// GenerationSummary is the result of one daily tick run.
type GenerationSummary struct {
	Created  int                 `json:"created"`
	Skipped  int                 `json:"skipped"`
	Failures []GenerationFailure `json:"failures"`
}

// SubscriptionEngine materializes subscriptions into orders ahead of each buying
// cycle and manages the subscription lifecycle.
type SubscriptionEngine struct {
	Store     SubscriptionStore
	Orders    OrderService
	Catalog   ProductCatalog
	Customers CustomerDirectory
	Calendar  *BuyingCycleCalendar
	Clock     Clock
	Audit     AuditLogger
	Logger    *logrus.Logger
}

func NewSubscriptionEngine(store SubscriptionStore, orders OrderService, catalog ProductCatalog,
	customers CustomerDirectory, calendar *BuyingCycleCalendar, clock Clock,
	audit AuditLogger, logger *logrus.Logger) *SubscriptionEngine {
	return &SubscriptionEngine{
		Store:     store,
		Orders:    orders,
		Catalog:   catalog,
		Customers: customers,
		Calendar:  calendar,
		Clock:     clock,
		Audit:     audit,
		Logger:    logger,
	}
}

// Create validates the input, prices it off the current catalog and seeds the
// first order date from the buying cycle calendar.
func (e *SubscriptionEngine) Create(ctx context.Context, input *models.NewSubscription) (*models.Subscription, error) {
	if len(input.Items) == 0 {
		return nil, utils.NewValidationError("subscription must have at least one item")
	}
	for _, item := range input.Items {
		if !item.Qty.GreaterThan(decimal.Zero) {
			return nil, utils.NewValidationError("item qty must be positive (product %d)", item.ProductId)
		}
	}
	if input.EndDate != nil && !input.EndDate.After(input.StartDate) {
		return nil, utils.NewValidationError("end date must be after start date")
	}
	if _, err := e.Customers.GetCustomer(ctx, input.CustomerId); err != nil {
		return nil, &utils.DependencyError{Resource: "customer", Id: input.CustomerId, Reason: err.Error()}
	}

	subscription := models.Subscription{
		CustomerId:           input.CustomerId,
		Name:                 input.Name,
		Frequency:            input.Frequency,
		DeliveryFee:          input.DeliveryFee,
		CurrentStatus:        models.SubscriptionStatusActive,
		StartDate:            input.StartDate,
		EndDate:              input.EndDate,
		DeliveryAddressId:    input.DeliveryAddressId,
		PreferredDeliveryDay: input.PreferredDeliveryDay,
		AllowEdits:           utils.NewTrue(),
		AllowSkip:            utils.NewTrue(),
	}
	if input.AllowEdits != nil {
		subscription.AllowEdits = input.AllowEdits
	}
	if input.AllowSkip != nil {
		subscription.AllowSkip = input.AllowSkip
	}

	basePrice := decimal.Zero
	for _, item := range input.Items {
		product, err := e.activeProduct(ctx, item.ProductId)
		if err != nil {
			return nil, err
		}
		allowSub := utils.NewFalse()
		if item.AllowSubstitution != nil {
			allowSub = item.AllowSubstitution
		}
		subscription.Items = append(subscription.Items, models.SubscriptionItem{
			ProductId:         item.ProductId,
			Qty:               item.Qty,
			AllowSubstitution: allowSub,
		})
		basePrice = basePrice.Add(product.SalesPrice.Mul(item.Qty))
	}
	subscription.BasePrice = basePrice

	// A subscription starting in the past still only schedules forward.
	seed := input.StartDate
	now := e.Clock.Now()
	if seed.Before(now) {
		seed = now
	}
	subscription.NextOrderDate = e.Calendar.FirstOrderDate(seed)

	if err := e.Store.Create(ctx, &subscription); err != nil {
		return nil, err
	}
	e.audit(ctx, "subscription.created", subscription.ID, map[string]any{
		"customer_id":     subscription.CustomerId,
		"frequency":       subscription.Frequency,
		"next_order_date": subscription.NextOrderDate,
	})
	return &subscription, nil
}

// GenerateUpcomingOrders is the daily tick. It first applies due auto-resumes,
// then materializes one order per due subscription for the upcoming buying cycle.
// A failing candidate never blocks the rest of the batch.
func (e *SubscriptionEngine) GenerateUpcomingOrders(ctx context.Context) (*GenerationSummary, error) {
	now := e.Clock.Now()
	summary := &GenerationSummary{}

	e.applyDueResumes(ctx, now)

	from := utils.DateOnly(now, e.Calendar.Location)
	to := e.Calendar.OrderGenerationCutoff(now)
	due, err := e.Store.DueBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	cycleDay := e.Calendar.CycleDay(now)
	for _, subscription := range due {
		created, err := e.generateOne(ctx, subscription, now, cycleDay)
		if err != nil {
			config.LogError(e.Logger, "engine", "GenerateUpcomingOrders", "generateOne", subscription.ID, err)
			summary.Failures = append(summary.Failures, GenerationFailure{
				SubscriptionId: subscription.ID,
				Error:          err.Error(),
			})
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Skipped++
		}
	}

	e.audit(ctx, "subscription.tick_completed", 0, map[string]any{
		"due":      len(due),
		"created":  summary.Created,
		"skipped":  summary.Skipped,
		"failures": len(summary.Failures),
	})
	return summary, nil
}

// generateOne handles a single due subscription. It returns true when an order was
// created, false when the cycle was legitimately skipped.
func (e *SubscriptionEngine) generateOne(ctx context.Context, subscription *models.Subscription, now, cycleDay time.Time) (bool, error) {
	// An ended subscription is cancelled instead of generating.
	if subscription.EndDate != nil && subscription.EndDate.Before(now) {
		_, err := e.Cancel(ctx, subscription.ID)
		return false, err
	}

	// Skip date: no order this cycle, but the schedule still advances.
	if subscription.HasSkipDate(subscription.NextOrderDate, e.Calendar.Location) {
		if err := e.advance(ctx, subscription.ID); err != nil {
			return false, err
		}
		e.audit(ctx, "subscription.cycle_skipped", subscription.ID, map[string]any{
			"skip_date": subscription.NextOrderDate,
		})
		return false, nil
	}

	// Idempotency: an order already exists for this cycle when a previous run
	// crashed between creating it and advancing the schedule. Repair by advancing.
	exists, err := e.Orders.SubscriptionOrderExists(ctx, subscription.ID, cycleDay)
	if err != nil {
		return false, err
	}
	if exists {
		if err := e.advance(ctx, subscription.ID); err != nil {
			return false, err
		}
		return false, nil
	}

	input, err := e.buildOrderInput(ctx, subscription)
	if err != nil {
		return false, err
	}
	order, err := e.Orders.CreateOrder(ctx, input)
	if err != nil {
		return false, err
	}
	if err := e.advance(ctx, subscription.ID); err != nil {
		return false, err
	}
	if config.AutoConfirmSubscriptionOrders() {
		// the order exists and the schedule has advanced; a confirm failure is
		// recoverable by the operator, not a generation failure
		if _, err := e.Orders.Confirm(ctx, order.ID); err != nil {
			config.LogError(e.Logger, "engine", "generateOne", "Confirm", order.ID, err)
		}
	}
	return true, nil
}

// buildOrderInput reprices the subscription's items against the current catalog
// and resolves the delivery address.
func (e *SubscriptionEngine) buildOrderInput(ctx context.Context, subscription *models.Subscription) (*models.NewOrder, error) {
	addressId := subscription.DeliveryAddressId
	if addressId <= 0 {
		address, err := e.Customers.DefaultAddress(ctx, subscription.CustomerId)
		if err != nil {
			return nil, &utils.DependencyError{Resource: "delivery address", Reason: "no resolvable address for customer"}
		}
		addressId = address.ID
	}

	subscriptionId := subscription.ID
	input := &models.NewOrder{
		CustomerId:        subscription.CustomerId,
		DeliveryAddressId: addressId,
		DeliveryFee:       subscription.DeliveryFee,
		SubscriptionId:    &subscriptionId,
	}
	for _, item := range subscription.Items {
		product, err := e.activeProduct(ctx, item.ProductId)
		if err != nil {
			return nil, err
		}
		input.Items = append(input.Items, models.NewOrderItem{
			ProductId:   product.ID,
			ProductName: product.Name,
			Qty:         item.Qty,
			UnitPrice:   product.SalesPrice,
		})
	}
	return input, nil
}

func (e *SubscriptionEngine) activeProduct(ctx context.Context, productId int) (*models.Product, error) {
	product, err := e.Catalog.GetProduct(ctx, productId)
	if err != nil {
		return nil, &utils.DependencyError{Resource: "product", Id: productId, Reason: err.Error()}
	}
	if product.IsActive == nil || !*product.IsActive {
		return nil, &utils.DependencyError{Resource: "product", Id: productId, Reason: "inactive"}
	}
	return product, nil
}

// applyDueResumes flips PAUSED subscriptions whose resume date has passed back to
// ACTIVE before the due query runs.
func (e *SubscriptionEngine) applyDueResumes(ctx context.Context, now time.Time) {
	paused, err := e.Store.PausedDueToResume(ctx, now)
	if err != nil {
		config.LogError(e.Logger, "engine", "applyDueResumes", "PausedDueToResume", nil, err)
		return
	}
	for _, subscription := range paused {
		if _, err := e.Resume(ctx, subscription.ID); err != nil {
			config.LogError(e.Logger, "engine", "applyDueResumes", "Resume", subscription.ID, err)
		}
	}
}

// advance moves the subscription's next order date one frequency period forward,
// snapped to the calendar.
func (e *SubscriptionEngine) advance(ctx context.Context, id int) error {
	_, err := e.Store.Update(ctx, id, func(s *models.Subscription) error {
		s.NextOrderDate = e.Calendar.CalculateNextOrderDate(s.NextOrderDate, s.Frequency)
		return nil
	})
	return err
}

// Pause stops order generation; resumeOn (optional) schedules an automatic resume.
func (e *SubscriptionEngine) Pause(ctx context.Context, id int, resumeOn *time.Time) (*models.Subscription, error) {
	subscription, err := e.Store.Update(ctx, id, func(s *models.Subscription) error {
		if s.CurrentStatus != models.SubscriptionStatusActive {
			return utils.NewValidationError("subscription %d is not active (status %s)", id, s.CurrentStatus)
		}
		s.CurrentStatus = models.SubscriptionStatusPaused
		s.ResumeOn = resumeOn
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.audit(ctx, "subscription.paused", id, map[string]any{"resume_on": resumeOn})
	return subscription, nil
}

// Resume reactivates a paused subscription. The schedule is reseeded from now
// rather than replayed, so missed cycles while paused are never backfilled.
func (e *SubscriptionEngine) Resume(ctx context.Context, id int) (*models.Subscription, error) {
	now := e.Clock.Now()
	subscription, err := e.Store.Update(ctx, id, func(s *models.Subscription) error {
		if s.CurrentStatus != models.SubscriptionStatusPaused {
			return utils.NewValidationError("subscription %d is not paused (status %s)", id, s.CurrentStatus)
		}
		s.CurrentStatus = models.SubscriptionStatusActive
		s.ResumeOn = nil
		s.NextOrderDate = e.Calendar.FirstOrderDate(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.audit(ctx, "subscription.resumed", id, map[string]any{
		"next_order_date": subscription.NextOrderDate,
	})
	return subscription, nil
}

// Cancel is terminal for the subscription; existing orders are untouched.
func (e *SubscriptionEngine) Cancel(ctx context.Context, id int) (*models.Subscription, error) {
	subscription, err := e.Store.Update(ctx, id, func(s *models.Subscription) error {
		if s.CurrentStatus == models.SubscriptionStatusCancelled {
			return utils.NewValidationError("subscription %d is already cancelled", id)
		}
		s.CurrentStatus = models.SubscriptionStatusCancelled
		s.ResumeOn = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.audit(ctx, "subscription.cancelled", id, nil)
	return subscription, nil
}

// UpdateItems replaces the item set atomically and reprices the subscription.
func (e *SubscriptionEngine) UpdateItems(ctx context.Context, id int, items []models.NewSubscriptionItem) (*models.Subscription, error) {
	if len(items) == 0 {
		return nil, utils.NewValidationError("subscription must have at least one item")
	}

	// Reprice outside the row lock; the catalog read does not need it.
	basePrice := decimal.Zero
	replacement := make([]models.SubscriptionItem, 0, len(items))
	for _, item := range items {
		if !item.Qty.GreaterThan(decimal.Zero) {
			return nil, utils.NewValidationError("item qty must be positive (product %d)", item.ProductId)
		}
		product, err := e.activeProduct(ctx, item.ProductId)
		if err != nil {
			return nil, err
		}
		allowSub := utils.NewFalse()
		if item.AllowSubstitution != nil {
			allowSub = item.AllowSubstitution
		}
		replacement = append(replacement, models.SubscriptionItem{
			SubscriptionId:    id,
			ProductId:         item.ProductId,
			Qty:               item.Qty,
			AllowSubstitution: allowSub,
		})
		basePrice = basePrice.Add(product.SalesPrice.Mul(item.Qty))
	}

	subscription, err := e.Store.Update(ctx, id, func(s *models.Subscription) error {
		if s.AllowEdits == nil || !*s.AllowEdits {
			return utils.ErrEditsNotAllowed
		}
		if s.CurrentStatus == models.SubscriptionStatusCancelled {
			return utils.NewValidationError("subscription %d is cancelled", id)
		}
		s.Items = replacement
		s.BasePrice = basePrice
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.audit(ctx, "subscription.items_updated", id, map[string]any{
		"items":      len(items),
		"base_price": basePrice,
	})
	return subscription, nil
}

// AddSkipDate marks one upcoming cycle to be skipped.
func (e *SubscriptionEngine) AddSkipDate(ctx context.Context, id int, skipDate time.Time) (*models.Subscription, error) {
	now := e.Clock.Now()
	subscription, err := e.Store.Update(ctx, id, func(s *models.Subscription) error {
		if s.AllowSkip == nil || !*s.AllowSkip {
			return utils.ErrEditsNotAllowed
		}
		if s.CurrentStatus != models.SubscriptionStatusActive {
			return utils.NewValidationError("subscription %d is not active (status %s)", id, s.CurrentStatus)
		}
		if skipDate.Before(utils.DateOnly(now, e.Calendar.Location)) {
			return utils.NewValidationError("skip date %s is in the past", skipDate.Format("2006-01-02"))
		}
		if s.HasSkipDate(skipDate, e.Calendar.Location) {
			return nil
		}
		s.SkipDates = append(s.SkipDates, models.SubscriptionSkipDate{
			SubscriptionId: id,
			SkipDate:       utils.DateOnly(skipDate, e.Calendar.Location),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.audit(ctx, "subscription.skip_date_added", id, map[string]any{
		"skip_date": skipDate.Format("2006-01-02"),
	})
	return subscription, nil
}

func (e *SubscriptionEngine) audit(ctx context.Context, action string, entityId int, metadata map[string]any) {
	if e.Audit == nil {
		return
	}
	if err := e.Audit.Append(ctx, action, "Subscription", entityId, metadata); err != nil {
		config.LogError(e.Logger, "engine", "audit", action, entityId, err)
	}
}
