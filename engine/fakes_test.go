package engine

// NOTE: These tests are intentionally DB-free. They validate the engine semantics
// against in-memory stores that mimic the transactional behavior of the MySQL
// implementations: mutations apply to a copy and commit only when the mutate
// callback succeeds.
//
// Full DB integration tests should be added in an environment that can run MySQL + Redis.

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/grocery_backend/models"
	"bitbucket.org/mmdatafocus/grocery_backend/utils"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeOrderStore struct {
	orders      map[int]*models.Order
	nextId      int
	nextItemId  int
	seq         map[string]int64
	commissions map[int][]models.VendorCommission
	deliveries  []*models.Delivery
	attempts    map[string]*models.PaymentAttempt
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:      map[int]*models.Order{},
		seq:         map[string]int64{},
		commissions: map[int][]models.VendorCommission{},
		attempts:    map[string]*models.PaymentAttempt{},
	}
}

func cloneOrder(o *models.Order) *models.Order {
	dup := *o
	dup.Items = make([]models.OrderItem, len(o.Items))
	copy(dup.Items, o.Items)
	return &dup
}

func (s *fakeOrderStore) Create(ctx context.Context, order *models.Order) error {
	for _, existing := range s.orders {
		if existing.OrderNumber == order.OrderNumber {
			return fmt.Errorf("duplicate order number %s", order.OrderNumber)
		}
	}
	s.nextId++
	order.ID = s.nextId
	for i := range order.Items {
		s.nextItemId++
		order.Items[i].ID = s.nextItemId
		order.Items[i].OrderId = order.ID
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *fakeOrderStore) Get(ctx context.Context, id int) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return cloneOrder(order), nil
}

func (s *fakeOrderStore) Update(ctx context.Context, id int, mutate func(*models.Order) error) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	working := cloneOrder(order)
	if err := mutate(working); err != nil {
		return nil, err
	}
	s.orders[id] = working
	return cloneOrder(working), nil
}

func (s *fakeOrderStore) NextDailySequence(ctx context.Context, prefix string, day time.Time) (int64, error) {
	key := prefix + day.Format("060102")
	s.seq[key]++
	return s.seq[key], nil
}

func (s *fakeOrderStore) SubscriptionOrderExists(ctx context.Context, subscriptionId int, cycleDate time.Time) (bool, error) {
	for _, order := range s.orders {
		if order.SubscriptionId != nil && *order.SubscriptionId == subscriptionId &&
			order.BuyingCycleDate.Equal(cycleDate) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeOrderStore) ForBuyingCycle(ctx context.Context, cycleDate time.Time, statuses []models.OrderStatus) ([]*models.Order, error) {
	var results []*models.Order
	for id := 1; id <= s.nextId; id++ {
		order, ok := s.orders[id]
		if !ok || !order.BuyingCycleDate.Equal(cycleDate) {
			continue
		}
		for _, status := range statuses {
			if order.CurrentStatus == status {
				results = append(results, cloneOrder(order))
				break
			}
		}
	}
	return results, nil
}

func (s *fakeOrderStore) CreateVendorCommissions(ctx context.Context, orderId int, commissions []models.VendorCommission) error {
	if len(s.commissions[orderId]) > 0 {
		return nil
	}
	s.commissions[orderId] = append(s.commissions[orderId], commissions...)
	return nil
}

func (s *fakeOrderStore) CreateDelivery(ctx context.Context, delivery *models.Delivery) error {
	delivery.ID = len(s.deliveries) + 1
	s.deliveries = append(s.deliveries, delivery)
	return nil
}

func (s *fakeOrderStore) CreatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	s.attempts[attempt.TransactionRef] = attempt
	return nil
}

func (s *fakeOrderStore) ResolvePaymentAttempt(ctx context.Context, transactionRef string, status models.PaymentStatus, reportedAt time.Time) (*models.PaymentAttempt, error) {
	attempt, ok := s.attempts[transactionRef]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	attempt.CurrentStatus = status
	attempt.ReportedAt = &reportedAt
	return attempt, nil
}

type fakeSubscriptionStore struct {
	subscriptions map[int]*models.Subscription
	nextId        int
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{subscriptions: map[int]*models.Subscription{}}
}

func cloneSubscription(s *models.Subscription) *models.Subscription {
	dup := *s
	dup.Items = make([]models.SubscriptionItem, len(s.Items))
	copy(dup.Items, s.Items)
	dup.SkipDates = make([]models.SubscriptionSkipDate, len(s.SkipDates))
	copy(dup.SkipDates, s.SkipDates)
	return &dup
}

func (s *fakeSubscriptionStore) Create(ctx context.Context, subscription *models.Subscription) error {
	s.nextId++
	subscription.ID = s.nextId
	for i := range subscription.Items {
		subscription.Items[i].SubscriptionId = subscription.ID
	}
	s.subscriptions[subscription.ID] = cloneSubscription(subscription)
	return nil
}

func (s *fakeSubscriptionStore) Get(ctx context.Context, id int) (*models.Subscription, error) {
	subscription, ok := s.subscriptions[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return cloneSubscription(subscription), nil
}

func (s *fakeSubscriptionStore) Update(ctx context.Context, id int, mutate func(*models.Subscription) error) (*models.Subscription, error) {
	subscription, ok := s.subscriptions[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	working := cloneSubscription(subscription)
	if err := mutate(working); err != nil {
		return nil, err
	}
	s.subscriptions[id] = working
	return cloneSubscription(working), nil
}

func (s *fakeSubscriptionStore) DueBetween(ctx context.Context, from, to time.Time) ([]*models.Subscription, error) {
	var results []*models.Subscription
	for id := 1; id <= s.nextId; id++ {
		subscription, ok := s.subscriptions[id]
		if !ok || subscription.CurrentStatus != models.SubscriptionStatusActive {
			continue
		}
		if subscription.NextOrderDate.Before(from) || subscription.NextOrderDate.After(to) {
			continue
		}
		results = append(results, cloneSubscription(subscription))
	}
	return results, nil
}

func (s *fakeSubscriptionStore) PausedDueToResume(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	var results []*models.Subscription
	for id := 1; id <= s.nextId; id++ {
		subscription, ok := s.subscriptions[id]
		if !ok || subscription.CurrentStatus != models.SubscriptionStatusPaused {
			continue
		}
		if subscription.ResumeOn != nil && !subscription.ResumeOn.After(now) {
			results = append(results, cloneSubscription(subscription))
		}
	}
	return results, nil
}

type fakeCatalog struct {
	products map[int]*models.Product
}

func (c *fakeCatalog) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	product, ok := c.products[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	dup := *product
	return &dup, nil
}

type fakeDirectory struct {
	customers map[int]*models.Customer
	addresses map[int]*models.DeliveryAddress
	defaults  map[int]*models.DeliveryAddress
}

func (d *fakeDirectory) GetCustomer(ctx context.Context, id int) (*models.Customer, error) {
	customer, ok := d.customers[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return customer, nil
}

func (d *fakeDirectory) GetAddress(ctx context.Context, id int) (*models.DeliveryAddress, error) {
	address, ok := d.addresses[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return address, nil
}

func (d *fakeDirectory) DefaultAddress(ctx context.Context, customerId int) (*models.DeliveryAddress, error) {
	address, ok := d.defaults[customerId]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return address, nil
}

type fakeDispatcher struct {
	dispatched []*models.Delivery
	err        error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, delivery *models.Delivery) error {
	if d.err != nil {
		return d.err
	}
	d.dispatched = append(d.dispatched, delivery)
	return nil
}

type auditEntry struct {
	action     string
	entityType string
	entityId   int
}

type fakeAudit struct {
	entries []auditEntry
}

func (a *fakeAudit) Append(ctx context.Context, action string, entityType string, entityId int, metadata map[string]any) error {
	a.entries = append(a.entries, auditEntry{action: action, entityType: entityType, entityId: entityId})
	return nil
}

func (a *fakeAudit) countAction(action string) int {
	n := 0
	for _, entry := range a.entries {
		if entry.action == action {
			n++
		}
	}
	return n
}
