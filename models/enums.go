package models

import "fmt"

type OrderStatus string

const (
	OrderStatusReceived             OrderStatus = "RECEIVED"
	OrderStatusConfirmed            OrderStatus = "CONFIRMED"
	OrderStatusAwaitingPayment      OrderStatus = "AWAITING_PAYMENT"
	OrderStatusPaid                 OrderStatus = "PAID"
	OrderStatusInSourcing           OrderStatus = "IN_SOURCING"
	OrderStatusSubstitutionRequired OrderStatus = "SUBSTITUTION_REQUIRED"
	OrderStatusReadyForPacking      OrderStatus = "READY_FOR_PACKING"
	OrderStatusPacked               OrderStatus = "PACKED"
	OrderStatusOutForDelivery       OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered            OrderStatus = "DELIVERED"
	OrderStatusCompleted            OrderStatus = "COMPLETED"
	OrderStatusCancelled            OrderStatus = "CANCELLED"
	OrderStatusFailed               OrderStatus = "FAILED"
	OrderStatusRefunded             OrderStatus = "REFUNDED"
)

var orderStatuses = map[string]OrderStatus{
	"RECEIVED":              OrderStatusReceived,
	"CONFIRMED":             OrderStatusConfirmed,
	"AWAITING_PAYMENT":      OrderStatusAwaitingPayment,
	"PAID":                  OrderStatusPaid,
	"IN_SOURCING":           OrderStatusInSourcing,
	"SUBSTITUTION_REQUIRED": OrderStatusSubstitutionRequired,
	"READY_FOR_PACKING":     OrderStatusReadyForPacking,
	"PACKED":                OrderStatusPacked,
	"OUT_FOR_DELIVERY":      OrderStatusOutForDelivery,
	"DELIVERED":             OrderStatusDelivered,
	"COMPLETED":             OrderStatusCompleted,
	"CANCELLED":             OrderStatusCancelled,
	"FAILED":                OrderStatusFailed,
	"REFUNDED":              OrderStatusRefunded,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status, ok := orderStatuses[s]
	if !ok {
		return "", fmt.Errorf("invalid order status %q", s)
	}
	return status, nil
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPaused    SubscriptionStatus = "PAUSED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
)

type SubscriptionFrequency string

const (
	FrequencyDaily    SubscriptionFrequency = "DAILY"
	FrequencyWeekly   SubscriptionFrequency = "WEEKLY"
	FrequencyBiWeekly SubscriptionFrequency = "BIWEEKLY"
	FrequencyMonthly  SubscriptionFrequency = "MONTHLY"
)

func ParseSubscriptionFrequency(s string) (SubscriptionFrequency, error) {
	switch s {
	case "DAILY":
		return FrequencyDaily, nil
	case "WEEKLY":
		return FrequencyWeekly, nil
	case "BIWEEKLY":
		return FrequencyBiWeekly, nil
	case "MONTHLY":
		return FrequencyMonthly, nil
	default:
		return "", fmt.Errorf("invalid subscription frequency %q", s)
	}
}

type DeliveryStatus string

const (
	DeliveryStatusScheduled DeliveryStatus = "Scheduled"
	DeliveryStatusDelivered DeliveryStatus = "Delivered"
	DeliveryStatusFailed    DeliveryStatus = "Failed"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusSucceeded PaymentStatus = "Succeeded"
	PaymentStatusFailed    PaymentStatus = "Failed"
)
