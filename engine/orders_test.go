package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/grocery_backend/models"
	"bitbucket.org/mmdatafocus/grocery_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type orderTestEnv struct {
	engine     *OrderEngine
	store      *fakeOrderStore
	catalog    *fakeCatalog
	directory  *fakeDirectory
	dispatcher *fakeDispatcher
	audit      *fakeAudit
	clock      *fakeClock
}

func newOrderTestEnv(t *testing.T) *orderTestEnv {
	t.Helper()
	store := newFakeOrderStore()
	catalog := &fakeCatalog{products: map[int]*models.Product{
		1: {ID: 1, Name: "Rice 5kg", SalesPrice: decimal.NewFromInt(10), IsActive: utils.NewTrue()},
		2: {ID: 2, Name: "Milk 1L", SalesPrice: decimal.NewFromInt(5), IsActive: utils.NewTrue(),
			VendorId: 7, CommissionRate: decimal.NewFromFloat(0.1)},
	}}
	directory := &fakeDirectory{
		customers: map[int]*models.Customer{
			1: {ID: 1, Name: "Prepaid Customer", IsPostpaid: utils.NewFalse()},
			2: {ID: 2, Name: "Postpaid Cafe", IsPostpaid: utils.NewTrue()},
		},
		addresses: map[int]*models.DeliveryAddress{
			10: {ID: 10, CustomerId: 1},
		},
		defaults: map[int]*models.DeliveryAddress{},
	}
	dispatcher := &fakeDispatcher{}
	audit := &fakeAudit{}
	// Tuesday 2026-09-01 10:00, two days ahead of the Thursday cycle.
	clock := &fakeClock{now: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)}

	logger := logrus.New()
	e := NewOrderEngine(store, catalog, directory, dispatcher, audit,
		DefaultCalendar(time.UTC), clock, logger)
	return &orderTestEnv{
		engine:     e,
		store:      store,
		catalog:    catalog,
		directory:  directory,
		dispatcher: dispatcher,
		audit:      audit,
		clock:      clock,
	}
}

func (env *orderTestEnv) createOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := env.engine.CreateOrder(context.Background(), &models.NewOrder{
		CustomerId:        1,
		DeliveryAddressId: 10,
		DeliveryFee:       decimal.NewFromInt(5),
		Items: []models.NewOrderItem{
			{ProductId: 1, ProductName: "Rice 5kg", Qty: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return order
}

// forceStatus puts a stored order into the given state directly, bypassing the
// state machine, so tests can start mid-lifecycle.
func (env *orderTestEnv) forceStatus(t *testing.T, id int, status models.OrderStatus) {
	t.Helper()
	order, ok := env.store.orders[id]
	if !ok {
		t.Fatalf("order %d not found", id)
	}
	order.CurrentStatus = status
}

func TestCreateOrder_TotalsAndCycle(t *testing.T) {
	env := newOrderTestEnv(t)
	order := env.createOrder(t)

	if order.CurrentStatus != models.OrderStatusReceived {
		t.Fatalf("expected RECEIVED, got %s", order.CurrentStatus)
	}
	// 3 x 10 + 5 fee - 0 discount
	if !order.TotalAmount.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("expected total 35, got %s", order.TotalAmount)
	}
	if !order.Subtotal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected subtotal 30, got %s", order.Subtotal)
	}
	// Created Tuesday Sep 1; the upcoming cycle is Thursday Sep 3.
	wantCycle := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	if !order.BuyingCycleDate.Equal(wantCycle) {
		t.Fatalf("expected cycle date %v, got %v", wantCycle, order.BuyingCycleDate)
	}
	if !strings.HasPrefix(order.OrderNumber, "GRO260901") {
		t.Fatalf("unexpected order number %s", order.OrderNumber)
	}
	if order.IsSubscriptionOrder == nil || *order.IsSubscriptionOrder {
		t.Fatalf("manual order must not be flagged as subscription order")
	}
}

func TestCreateOrder_RejectsEmptyAndNonPositive(t *testing.T) {
	env := newOrderTestEnv(t)

	_, err := env.engine.CreateOrder(context.Background(), &models.NewOrder{
		CustomerId:        1,
		DeliveryAddressId: 10,
	})
	if !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for empty items, got %v", err)
	}

	_, err = env.engine.CreateOrder(context.Background(), &models.NewOrder{
		CustomerId:        1,
		DeliveryAddressId: 10,
		Items: []models.NewOrderItem{
			{ProductId: 1, Qty: decimal.Zero, UnitPrice: decimal.NewFromInt(10)},
		},
	})
	if !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for zero qty, got %v", err)
	}
	if len(env.store.orders) != 0 {
		t.Fatalf("nothing should be persisted on validation failure")
	}
}

func TestTransition_RejectsIllegalMoves(t *testing.T) {
	env := newOrderTestEnv(t)
	order := env.createOrder(t)

	illegal := []models.OrderStatus{
		models.OrderStatusPaid,
		models.OrderStatusPacked,
		models.OrderStatusDelivered,
		models.OrderStatusCompleted,
		models.OrderStatusRefunded,
	}
	for _, target := range illegal {
		_, err := env.engine.Transition(context.Background(), order.ID, target, nil)
		if !utils.IsInvalidTransition(err) {
			t.Fatalf("RECEIVED -> %s: expected invalid transition, got %v", target, err)
		}
		stored, _ := env.store.Get(context.Background(), order.ID)
		if stored.CurrentStatus != models.OrderStatusReceived {
			t.Fatalf("RECEIVED -> %s: status must be unchanged, got %s", target, stored.CurrentStatus)
		}
	}
	if env.audit.countAction("order.transition_rejected") != len(illegal) {
		t.Fatalf("every rejection must be audited")
	}
}

func TestTerminalStatusesAreImmutable(t *testing.T) {
	env := newOrderTestEnv(t)
	order := env.createOrder(t)

	for _, terminal := range []models.OrderStatus{
		models.OrderStatusCompleted,
		models.OrderStatusCancelled,
		models.OrderStatusRefunded,
	} {
		env.forceStatus(t, order.ID, terminal)
		for target := range orderTransitions {
			_, err := env.engine.Transition(context.Background(), order.ID, target, nil)
			if !utils.IsInvalidTransition(err) {
				t.Fatalf("%s -> %s: expected invalid transition, got %v", terminal, target, err)
			}
		}
	}
}

func TestConfirm_PrepaidGoesToAwaitingPayment(t *testing.T) {
	env := newOrderTestEnv(t)
	order := env.createOrder(t)

	confirmed, err := env.engine.Confirm(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.CurrentStatus != models.OrderStatusAwaitingPayment {
		t.Fatalf("expected AWAITING_PAYMENT, got %s", confirmed.CurrentStatus)
	}
	if confirmed.ConfirmedAt == nil {
		t.Fatalf("ConfirmedAt must be stamped")
	}
	if len(env.store.attempts) != 1 {
		t.Fatalf("expected one payment attempt, got %d", len(env.store.attempts))
	}
	for _, attempt := range env.store.attempts {
		if !attempt.Amount.Equal(confirmed.TotalAmount) {
			t.Fatalf("payment attempt amount %s does not match order total %s", attempt.Amount, confirmed.TotalAmount)
		}
	}
}

func TestConfirm_PostpaidSkipsPaymentCollection(t *testing.T) {
	env := newOrderTestEnv(t)
	order, err := env.engine.CreateOrder(context.Background(), &models.NewOrder{
		CustomerId:        2,
		DeliveryAddressId: 10,
		Items: []models.NewOrderItem{
			{ProductId: 1, Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	confirmed, err := env.engine.Confirm(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	// PAID auto-advances into sourcing.
	if confirmed.CurrentStatus != models.OrderStatusInSourcing {
		t.Fatalf("expected IN_SOURCING, got %s", confirmed.CurrentStatus)
	}
	if confirmed.PaidAt == nil {
		t.Fatalf("PaidAt must be stamped for postpaid orders")
	}
	if len(env.store.attempts) != 0 {
		t.Fatalf("postpaid orders must not create payment attempts")
	}
}

func TestRecordPaymentResult(t *testing.T) {
	env := newOrderTestEnv(t)
	order := env.createOrder(t)
	if _, err := env.engine.Confirm(context.Background(), order.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	var ref string
	for r := range env.store.attempts {
		ref = r
	}

	updated, err := env.engine.RecordPaymentResult(context.Background(), ref, true)
	if err != nil {
		t.Fatalf("RecordPaymentResult: %v", err)
	}
	if updated.CurrentStatus != models.OrderStatusInSourcing {
		t.Fatalf("expected IN_SOURCING after successful payment, got %s", updated.CurrentStatus)
	}
	if env.store.attempts[ref].CurrentStatus != models.PaymentStatusSucceeded {
		t.Fatalf("payment attempt must be marked Succeeded")
	}

	_, err = env.engine.RecordPaymentResult(context.Background(), "no-such-ref", true)
	if err == nil {
		t.Fatalf("unknown transaction ref must fail")
	}
}

func TestRecordPaymentResult_FailureMovesToFailed(t *testing.T) {
	env := newOrderTestEnv(t)
	order := env.createOrder(t)
	if _, err := env.engine.Confirm(context.Background(), order.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	var ref string
	for r := range env.store.attempts {
		ref = r
	}

	updated, err := env.engine.RecordPaymentResult(context.Background(), ref, false)
	if err != nil {
		t.Fatalf("RecordPaymentResult: %v", err)
	}
	if updated.CurrentStatus != models.OrderStatusFailed {
		t.Fatalf("expected FAILED, got %s", updated.CurrentStatus)
	}
}

func TestUpdateSourcingStatus_UnavailableForcesSubstitution(t *testing.T) {
	env := newOrderTestEnv(t)
	order := env.createOrder(t)
	env.forceStatus(t, order.ID, models.OrderStatusInSourcing)

	itemId := env.store.orders[order.ID].Items[0].ID
	updated, err := env.engine.UpdateSourcingStatus(context.Background(), order.ID, []SourcingUpdate{
		{OrderItemId: itemId, Unavailable: true},
	})
	if err != nil {
		t.Fatalf("UpdateSourcingStatus: %v", err)
	}
	if updated.CurrentStatus != models.OrderStatusSubstitutionRequired {
		t.Fatalf("expected SUBSTITUTION_REQUIRED, got %s", updated.CurrentStatus)
	}
}

func TestUpdateSourcingStatus_AllSourcedReadyForPacking(t *testing.T) {
	env := newOrderTestEnv(t)
	order := env.createOrder(t)
	env.forceStatus(t, order.ID, models.OrderStatusInSourcing)

	itemId := env.store.orders[order.ID].Items[0].ID
	updated, err := env.engine.UpdateSourcingStatus(context.Background(), order.ID, []SourcingUpdate{
		{OrderItemId: itemId, IsSourced: true, SourcedQty: decimal.NewFromInt(3)},
	})
	if err != nil {
		t.Fatalf("UpdateSourcingStatus: %v", err)
	}
	if updated.CurrentStatus != models.OrderStatusReadyForPacking {
		t.Fatalf("expected READY_FOR_PACKING, got %s", updated.CurrentStatus)
	}
	if !updated.Items[0].SourcedQty.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("sourced qty not persisted")
	}
}

func TestUpdateSourcingStatus_RejectsWrongStateAndUnknownItem(t *testing.T) {
	env := newOrderTestEnv(t)
	order := env.createOrder(t)

	_, err := env.engine.UpdateSourcingStatus(context.Background(), order.ID, []SourcingUpdate{
		{OrderItemId: 1, IsSourced: true},
	})
	if !utils.IsValidationError(err) {
		t.Fatalf("sourcing updates on RECEIVED order must fail, got %v", err)
	}

	env.forceStatus(t, order.ID, models.OrderStatusInSourcing)
	_, err = env.engine.UpdateSourcingStatus(context.Background(), order.ID, []SourcingUpdate{
		{OrderItemId: 99999, IsSourced: true},
	})
	if !utils.IsValidationError(err) {
		t.Fatalf("unknown item id must fail, got %v", err)
	}
	stored, _ := env.store.Get(context.Background(), order.ID)
	if stored.Items[0].IsSourced != nil && *stored.Items[0].IsSourced {
		t.Fatalf("failed batch must not partially apply")
	}
}

func TestPacked_CreatesDeliveryAndDispatchesOnce(t *testing.T) {
	env := newOrderTestEnv(t)
	order := env.createOrder(t)
	env.forceStatus(t, order.ID, models.OrderStatusReadyForPacking)

	updated, err := env.engine.Transition(context.Background(), order.ID, models.OrderStatusPacked, nil)
	if err != nil {
		t.Fatalf("Transition to PACKED: %v", err)
	}
	// PACKED auto-advances to OUT_FOR_DELIVERY.
	if updated.CurrentStatus != models.OrderStatusOutForDelivery {
		t.Fatalf("expected OUT_FOR_DELIVERY, got %s", updated.CurrentStatus)
	}
	if updated.PackedAt == nil {
		t.Fatalf("PackedAt must be stamped")
	}
	if len(env.store.deliveries) != 1 {
		t.Fatalf("expected one delivery record, got %d", len(env.store.deliveries))
	}
	if len(env.dispatcher.dispatched) != 1 {
		t.Fatalf("expected exactly one dispatch call, got %d", len(env.dispatcher.dispatched))
	}
	if env.dispatcher.dispatched[0].OrderNumber != order.OrderNumber {
		t.Fatalf("dispatched wrong order")
	}
}

func TestDelivered_AutoCompletesAndPaysCommissionsOnce(t *testing.T) {
	env := newOrderTestEnv(t)
	order, err := env.engine.CreateOrder(context.Background(), &models.NewOrder{
		CustomerId:        1,
		DeliveryAddressId: 10,
		Items: []models.NewOrderItem{
			{ProductId: 1, Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10)},
			{ProductId: 2, Qty: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	env.forceStatus(t, order.ID, models.OrderStatusOutForDelivery)

	updated, err := env.engine.Transition(context.Background(), order.ID, models.OrderStatusDelivered, nil)
	if err != nil {
		t.Fatalf("Transition to DELIVERED: %v", err)
	}
	if updated.CurrentStatus != models.OrderStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", updated.CurrentStatus)
	}
	if updated.DeliveredAt == nil || updated.CompletedAt == nil {
		t.Fatalf("DeliveredAt and CompletedAt must be stamped")
	}

	// Only product 2 carries a vendor commission: 4 x 5 x 0.1 = 2.
	commissions := env.store.commissions[order.ID]
	if len(commissions) != 1 {
		t.Fatalf("expected one commission, got %d", len(commissions))
	}
	if commissions[0].VendorId != 7 || !commissions[0].Amount.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected commission %+v", commissions[0])
	}
}

func TestCancel_AuditsReason(t *testing.T) {
	env := newOrderTestEnv(t)
	order := env.createOrder(t)

	cancelled, err := env.engine.Cancel(context.Background(), order.ID, "customer changed mind")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.CurrentStatus != models.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.CurrentStatus)
	}
	if env.audit.countAction("order.status_changed") == 0 {
		t.Fatalf("cancellation must be audited")
	}
}

func TestOrderNumbers_UniquePerDay(t *testing.T) {
	env := newOrderTestEnv(t)
	first := env.createOrder(t)
	second := env.createOrder(t)

	if first.OrderNumber == second.OrderNumber {
		t.Fatalf("order numbers must be unique, both got %s", first.OrderNumber)
	}
	if !strings.HasSuffix(first.OrderNumber, "0001") || !strings.HasSuffix(second.OrderNumber, "0002") {
		t.Fatalf("expected sequential suffixes, got %s and %s", first.OrderNumber, second.OrderNumber)
	}
}
