package engine

import (
	"context"

	"bitbucket.org/mmdatafocus/grocery_backend/config"
	"bitbucket.org/mmdatafocus/grocery_backend/models"
	"github.com/sirupsen/logrus"
)

// DeliveryDispatchMessage is the payload published when an order is packed.
type DeliveryDispatchMessage struct {
	DeliveryId        int    `json:"delivery_id"`
	OrderId           int    `json:"order_id"`
	OrderNumber       string `json:"order_number"`
	DeliveryAddressId int    `json:"delivery_address_id"`
	ScheduledDate     string `json:"scheduled_date"`
}

// PubSubDispatcher publishes packed deliveries to a Pub/Sub topic for the
// downstream delivery system. An empty topic disables publishing.
type PubSubDispatcher struct {
	Topic  string
	Logger *logrus.Logger
}

func (d *PubSubDispatcher) Dispatch(ctx context.Context, delivery *models.Delivery) error {
	if d.Topic == "" {
		return nil
	}
	msg := DeliveryDispatchMessage{
		DeliveryId:        delivery.ID,
		OrderId:           delivery.OrderId,
		OrderNumber:       delivery.OrderNumber,
		DeliveryAddressId: delivery.DeliveryAddressId,
		ScheduledDate:     delivery.ScheduledDate.Format("2006-01-02"),
	}
	msgId, err := config.PublishJSON(ctx, d.Topic, msg)
	if err != nil {
		return err
	}
	d.Logger.WithFields(logrus.Fields{
		"module":       "engine",
		"topic":        d.Topic,
		"message_id":   msgId,
		"order_number": delivery.OrderNumber,
	}).Info("delivery dispatched")
	return nil
}
