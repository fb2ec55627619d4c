package engine

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/grocery_backend/config"
	"bitbucket.org/mmdatafocus/grocery_backend/models"
	"bitbucket.org/mmdatafocus/grocery_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderStore is the order record store the lifecycle engine runs against.
// Update must apply its mutate callback atomically (read, validate, write as one
// unit) so concurrent transitions on the same order cannot both succeed.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id int) (*models.Order, error)
	Update(ctx context.Context, id int, mutate func(*models.Order) error) (*models.Order, error)
	NextDailySequence(ctx context.Context, prefix string, day time.Time) (int64, error)
	SubscriptionOrderExists(ctx context.Context, subscriptionId int, cycleDate time.Time) (bool, error)
	ForBuyingCycle(ctx context.Context, cycleDate time.Time, statuses []models.OrderStatus) ([]*models.Order, error)
	CreateVendorCommissions(ctx context.Context, orderId int, commissions []models.VendorCommission) error
	CreateDelivery(ctx context.Context, delivery *models.Delivery) error
	CreatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
	ResolvePaymentAttempt(ctx context.Context, transactionRef string, status models.PaymentStatus, reportedAt time.Time) (*models.PaymentAttempt, error)
}

type ProductCatalog interface {
	GetProduct(ctx context.Context, id int) (*models.Product, error)
}

type CustomerDirectory interface {
	GetCustomer(ctx context.Context, id int) (*models.Customer, error)
	GetAddress(ctx context.Context, id int) (*models.DeliveryAddress, error)
	DefaultAddress(ctx context.Context, customerId int) (*models.DeliveryAddress, error)
}

// DeliveryDispatcher hands a packed order to the external delivery system.
type DeliveryDispatcher interface {
	Dispatch(ctx context.Context, delivery *models.Delivery) error
}

type AuditLogger interface {
	Append(ctx context.Context, action string, entityType string, entityId int, metadata map[string]any) error
}

// orderTransitions is the full adjacency table of the order state machine.
// Anything not listed here is rejected.
var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusReceived:             {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed:            {models.OrderStatusAwaitingPayment, models.OrderStatusPaid, models.OrderStatusCancelled},
	models.OrderStatusAwaitingPayment:      {models.OrderStatusPaid, models.OrderStatusFailed, models.OrderStatusCancelled},
	models.OrderStatusPaid:                 {models.OrderStatusInSourcing, models.OrderStatusRefunded, models.OrderStatusCancelled},
	models.OrderStatusInSourcing:           {models.OrderStatusSubstitutionRequired, models.OrderStatusReadyForPacking, models.OrderStatusFailed},
	models.OrderStatusSubstitutionRequired: {models.OrderStatusInSourcing, models.OrderStatusReadyForPacking, models.OrderStatusCancelled},
	models.OrderStatusReadyForPacking:      {models.OrderStatusPacked, models.OrderStatusFailed},
	models.OrderStatusPacked:               {models.OrderStatusOutForDelivery, models.OrderStatusFailed},
	models.OrderStatusOutForDelivery:       {models.OrderStatusDelivered, models.OrderStatusFailed},
	models.OrderStatusDelivered:            {models.OrderStatusCompleted},
	models.OrderStatusFailed:               {models.OrderStatusRefunded},
}

// autoAdvance rules are applied in a loop after each persisted transition instead
// of recursive calls, so every hop shares the same validation and audit path and
// the depth is explicitly bounded.
var autoAdvance = map[models.OrderStatus]models.OrderStatus{
	models.OrderStatusPaid:      models.OrderStatusInSourcing,
	models.OrderStatusPacked:    models.OrderStatusOutForDelivery,
	models.OrderStatusDelivered: models.OrderStatusCompleted,
}

const maxAutoAdvance = 4

func TransitionAllowed(from, to models.OrderStatus) bool {
	for _, target := range orderTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

func IsTerminalStatus(status models.OrderStatus) bool {
	switch status {
	case models.OrderStatusCompleted, models.OrderStatusCancelled, models.OrderStatusRefunded:
		return true
	}
	return false
}

// OrderEngine owns the order state machine. It is stateless; all collaborators are
// injected.
type OrderEngine struct {
	Store       OrderStore
	Catalog     ProductCatalog
	Customers   CustomerDirectory
	Dispatcher  DeliveryDispatcher
	Audit       AuditLogger
	Calendar    *BuyingCycleCalendar
	Clock       Clock
	Logger      *logrus.Logger
	OrderPrefix string
}

func NewOrderEngine(store OrderStore, catalog ProductCatalog, customers CustomerDirectory,
	dispatcher DeliveryDispatcher, audit AuditLogger, calendar *BuyingCycleCalendar,
	clock Clock, logger *logrus.Logger) *OrderEngine {
	return &OrderEngine{
		Store:       store,
		Catalog:     catalog,
		Customers:   customers,
		Dispatcher:  dispatcher,
		Audit:       audit,
		Calendar:    calendar,
		Clock:       clock,
		Logger:      logger,
		OrderPrefix: "GRO",
	}
}

// CreateOrder validates the input, computes totals, allocates a daily-sequence
// order number and persists the order in RECEIVED.
func (e *OrderEngine) CreateOrder(ctx context.Context, input *models.NewOrder) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, utils.NewValidationError("order must have at least one item")
	}
	for _, item := range input.Items {
		if !item.Qty.GreaterThan(decimal.Zero) {
			return nil, utils.NewValidationError("item qty must be positive (product %d)", item.ProductId)
		}
		if !item.UnitPrice.GreaterThan(decimal.Zero) {
			return nil, utils.NewValidationError("item unit price must be positive (product %d)", item.ProductId)
		}
	}
	if input.CustomerId <= 0 {
		return nil, utils.NewValidationError("customer id is required")
	}
	if input.DeliveryAddressId <= 0 {
		return nil, utils.NewValidationError("delivery address id is required")
	}

	now := e.Clock.Now()
	cycleDay := e.Calendar.CycleDay(now)

	order := models.Order{
		CustomerId:          input.CustomerId,
		DeliveryAddressId:   input.DeliveryAddressId,
		DeliveryFee:         input.DeliveryFee,
		Discount:            input.Discount,
		CustomerNotes:       input.CustomerNotes,
		CurrentStatus:       models.OrderStatusReceived,
		IsoWeek:             ISOWeek(cycleDay),
		BuyingCycleDate:     cycleDay,
		IsSubscriptionOrder: utils.NewFalse(),
	}
	if input.SubscriptionId != nil && *input.SubscriptionId > 0 {
		order.IsSubscriptionOrder = utils.NewTrue()
		order.SubscriptionId = input.SubscriptionId
	}
	for _, item := range input.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductId:   item.ProductId,
			ProductName: item.ProductName,
			Qty:         item.Qty,
			UnitPrice:   item.UnitPrice,
			IsSourced:   utils.NewFalse(),
			Unavailable: utils.NewFalse(),
		})
	}
	order.ComputeTotals()

	// The order number is unique within the calendar day. Retry on a duplicate in
	// case two instances raced the same sequence value.
	day := utils.DateOnly(now, e.Calendar.Location)
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		var seq int64
		seq, err = e.Store.NextDailySequence(ctx, e.OrderPrefix, day)
		if err != nil {
			return nil, err
		}
		order.OrderNumber = utils.FormatOrderNumber(e.OrderPrefix, day, seq)
		err = e.Store.Create(ctx, &order)
		if err == nil {
			break
		}
		if !models.IsDuplicateKeyErr(err) {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	e.audit(ctx, "order.created", "Order", order.ID, map[string]any{
		"order_number":      order.OrderNumber,
		"customer_id":       order.CustomerId,
		"total_amount":      order.TotalAmount,
		"buying_cycle_date": order.BuyingCycleDate,
		"subscription_id":   order.SubscriptionId,
	})
	return &order, nil
}

// Transition moves an order to target, then keeps applying the auto-advance rules
// until the order settles.
func (e *OrderEngine) Transition(ctx context.Context, id int, target models.OrderStatus, metadata map[string]any) (*models.Order, error) {
	order, err := e.transitionOnce(ctx, id, target, metadata)
	if err != nil {
		return nil, err
	}
	for depth := 0; depth < maxAutoAdvance; depth++ {
		next, ok := autoAdvance[order.CurrentStatus]
		if !ok {
			break
		}
		order, err = e.transitionOnce(ctx, id, next, map[string]any{"auto": true})
		if err != nil {
			return order, err
		}
	}
	return order, nil
}

// transitionOnce is the single validated hop: lock the row, check the table, stamp
// the status timestamp, persist, audit, then run the target's side effects.
func (e *OrderEngine) transitionOnce(ctx context.Context, id int, target models.OrderStatus, metadata map[string]any) (*models.Order, error) {
	now := e.Clock.Now()
	var from models.OrderStatus

	order, err := e.Store.Update(ctx, id, func(o *models.Order) error {
		from = o.CurrentStatus
		if !TransitionAllowed(from, target) {
			return &utils.InvalidTransitionError{From: string(from), To: string(target)}
		}
		o.CurrentStatus = target
		stampStatusTime(o, target, now)
		return nil
	})
	if err != nil {
		if utils.IsInvalidTransition(err) {
			e.audit(ctx, "order.transition_rejected", "Order", id, map[string]any{
				"from": from, "to": target,
			})
		}
		return nil, err
	}

	auditMeta := map[string]any{"from": from, "to": target}
	for k, v := range metadata {
		auditMeta[k] = v
	}
	e.audit(ctx, "order.status_changed", "Order", id, auditMeta)

	if err := e.runSideEffects(ctx, order, now); err != nil {
		return order, err
	}
	return order, nil
}

func (e *OrderEngine) runSideEffects(ctx context.Context, order *models.Order, now time.Time) error {
	switch order.CurrentStatus {
	case models.OrderStatusAwaitingPayment:
		attempt := models.PaymentAttempt{
			OrderId:        order.ID,
			TransactionRef: uuid.NewString(),
			Amount:         order.TotalAmount,
			CurrentStatus:  models.PaymentStatusPending,
		}
		if err := e.Store.CreatePaymentAttempt(ctx, &attempt); err != nil {
			return err
		}
		e.audit(ctx, "payment.requested", "Order", order.ID, map[string]any{
			"transaction_ref": attempt.TransactionRef,
			"amount":          attempt.Amount,
		})

	case models.OrderStatusPacked:
		delivery := models.Delivery{
			OrderId:           order.ID,
			OrderNumber:       order.OrderNumber,
			DeliveryAddressId: order.DeliveryAddressId,
			ScheduledDate:     utils.DateOnly(now.AddDate(0, 0, 1), e.Calendar.Location),
			CurrentStatus:     models.DeliveryStatusScheduled,
		}
		if err := e.Store.CreateDelivery(ctx, &delivery); err != nil {
			return err
		}
		if e.Dispatcher != nil {
			// Publishing is best-effort: the delivery row is the durable record and
			// ops can re-drive dispatch from it.
			if err := e.Dispatcher.Dispatch(ctx, &delivery); err != nil {
				config.LogError(e.Logger, "engine", "runSideEffects", "Dispatch", order.ID, err)
			}
		}
		e.audit(ctx, "delivery.created", "Order", order.ID, map[string]any{
			"delivery_id":    delivery.ID,
			"scheduled_date": delivery.ScheduledDate,
		})

	case models.OrderStatusCompleted:
		if err := e.createVendorCommissions(ctx, order); err != nil {
			return err
		}
	}
	return nil
}

func (e *OrderEngine) createVendorCommissions(ctx context.Context, order *models.Order) error {
	var commissions []models.VendorCommission
	for _, item := range order.Items {
		product, err := e.Catalog.GetProduct(ctx, item.ProductId)
		if err != nil {
			// product removed after ordering; nothing to pay out on this line
			config.LogError(e.Logger, "engine", "createVendorCommissions", "GetProduct", item.ProductId, err)
			continue
		}
		if !product.HasVendorCommission() {
			continue
		}
		commissions = append(commissions, models.VendorCommission{
			OrderId:     order.ID,
			OrderItemId: item.ID,
			VendorId:    product.VendorId,
			ProductId:   product.ID,
			Rate:        product.CommissionRate,
			Amount:      item.TotalPrice.Mul(product.CommissionRate),
		})
	}
	if len(commissions) == 0 {
		return nil
	}
	if err := e.Store.CreateVendorCommissions(ctx, order.ID, commissions); err != nil {
		return err
	}
	e.audit(ctx, "commission.created", "Order", order.ID, map[string]any{
		"count": len(commissions),
	})
	return nil
}

// Confirm transitions to CONFIRMED, then branches on the customer's billing mode:
// postpaid customers skip payment collection and go straight to PAID.
func (e *OrderEngine) Confirm(ctx context.Context, id int) (*models.Order, error) {
	order, err := e.Transition(ctx, id, models.OrderStatusConfirmed, nil)
	if err != nil {
		return nil, err
	}

	customer, err := e.Customers.GetCustomer(ctx, order.CustomerId)
	if err != nil {
		return order, &utils.DependencyError{Resource: "customer", Id: order.CustomerId, Reason: err.Error()}
	}
	if customer.IsPostpaid != nil && *customer.IsPostpaid {
		return e.Transition(ctx, id, models.OrderStatusPaid, map[string]any{"postpaid": true})
	}
	return e.Transition(ctx, id, models.OrderStatusAwaitingPayment, nil)
}

// RecordPaymentResult applies the external provider's verdict for a transaction
// reference created when the order entered AWAITING_PAYMENT.
func (e *OrderEngine) RecordPaymentResult(ctx context.Context, transactionRef string, success bool) (*models.Order, error) {
	status := models.PaymentStatusFailed
	if success {
		status = models.PaymentStatusSucceeded
	}
	attempt, err := e.Store.ResolvePaymentAttempt(ctx, transactionRef, status, e.Clock.Now())
	if err != nil {
		return nil, err
	}
	if success {
		return e.Transition(ctx, attempt.OrderId, models.OrderStatusPaid, map[string]any{"transaction_ref": transactionRef})
	}
	return e.Transition(ctx, attempt.OrderId, models.OrderStatusFailed, map[string]any{"transaction_ref": transactionRef})
}

// SourcingUpdate is one procurement result line.
type SourcingUpdate struct {
	OrderItemId int             `json:"order_item_id" binding:"required"`
	IsSourced   bool            `json:"is_sourced"`
	SourcedQty  decimal.Decimal `json:"sourced_qty"`
	Unavailable bool            `json:"unavailable"`
}

// UpdateSourcingStatus applies procurement results as one atomic batch, then
// evaluates the order as a whole: any unavailable line forces
// SUBSTITUTION_REQUIRED; a fully sourced order moves to READY_FOR_PACKING;
// otherwise it stays put awaiting more results.
func (e *OrderEngine) UpdateSourcingStatus(ctx context.Context, id int, updates []SourcingUpdate) (*models.Order, error) {
	if len(updates) == 0 {
		return nil, utils.NewValidationError("no sourcing updates supplied")
	}

	order, err := e.Store.Update(ctx, id, func(o *models.Order) error {
		if o.CurrentStatus != models.OrderStatusInSourcing && o.CurrentStatus != models.OrderStatusSubstitutionRequired {
			return utils.NewValidationError("order %d is not in sourcing (status %s)", id, o.CurrentStatus)
		}
		byId := make(map[int]*models.OrderItem, len(o.Items))
		for i := range o.Items {
			byId[o.Items[i].ID] = &o.Items[i]
		}
		for _, update := range updates {
			item, ok := byId[update.OrderItemId]
			if !ok {
				return utils.NewValidationError("order item %d not found on order %d", update.OrderItemId, id)
			}
			isSourced := update.IsSourced
			unavailable := update.Unavailable
			item.IsSourced = &isSourced
			item.Unavailable = &unavailable
			item.SourcedQty = update.SourcedQty
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.audit(ctx, "order.sourcing_updated", "Order", id, map[string]any{
		"updates": len(updates),
	})

	if order.AnyItemUnavailable() {
		if order.CurrentStatus != models.OrderStatusSubstitutionRequired {
			return e.Transition(ctx, id, models.OrderStatusSubstitutionRequired, nil)
		}
		return order, nil
	}
	if order.AllItemsSourced() {
		return e.Transition(ctx, id, models.OrderStatusReadyForPacking, nil)
	}
	return order, nil
}

// Cancel is the operator/customer-facing cancellation; legality is decided by the
// transition table.
func (e *OrderEngine) Cancel(ctx context.Context, id int, reason string) (*models.Order, error) {
	metadata := map[string]any{}
	if reason != "" {
		metadata["reason"] = reason
	}
	return e.Transition(ctx, id, models.OrderStatusCancelled, metadata)
}

// SubscriptionOrderExists exposes the idempotency lookup to the subscription engine.
func (e *OrderEngine) SubscriptionOrderExists(ctx context.Context, subscriptionId int, cycleDate time.Time) (bool, error) {
	return e.Store.SubscriptionOrderExists(ctx, subscriptionId, cycleDate)
}

func stampStatusTime(o *models.Order, status models.OrderStatus, now time.Time) {
	// each timestamp is written at most once, in lifecycle order
	switch status {
	case models.OrderStatusConfirmed:
		if o.ConfirmedAt == nil {
			o.ConfirmedAt = &now
		}
	case models.OrderStatusPaid:
		if o.PaidAt == nil {
			o.PaidAt = &now
		}
	case models.OrderStatusPacked:
		if o.PackedAt == nil {
			o.PackedAt = &now
		}
	case models.OrderStatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
	case models.OrderStatusCompleted:
		if o.CompletedAt == nil {
			o.CompletedAt = &now
		}
	}
}

func (e *OrderEngine) audit(ctx context.Context, action string, entityType string, entityId int, metadata map[string]any) {
	if e.Audit == nil {
		return
	}
	if err := e.Audit.Append(ctx, action, entityType, entityId, metadata); err != nil {
		config.LogError(e.Logger, "engine", "audit", action, entityId, err)
	}
}
