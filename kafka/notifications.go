package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Djalves424/ProjetoDSCommerce/middleware"
	"github.com/Djalves424/ProjetoDSCommerce/models"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// StartNotificationConsumer watches payment outcomes and emits the customer
// notification. There is no delivery backend; the notification is logged.
func StartNotificationConsumer(consumer sarama.Consumer, logger *zap.Logger) error {
	partitionConsumer, err := consumer.ConsumePartition(ordersTopic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer partitionConsumer.Close()

	logger.Info("Notification consumer started", zap.String("topic", ordersTopic))

	for {
		select {
		case message := <-partitionConsumer.Messages():
			if err := handleNotification(message, logger); err != nil {
				logger.Error("Failed to handle notification", zap.Error(err))
			}
		case err := <-partitionConsumer.Errors():
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}
}

func handleNotification(message *sarama.ConsumerMessage, logger *zap.Logger) error {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(context.Background(), consumerHeaderCarrier(message.Headers))

	_, span := otel.Tracer("notification-consumer").Start(ctx, "SendNotification")
	defer span.End()

	var event models.OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	var text string
	switch event.EventType {
	case "order_paid":
		text = fmt.Sprintf("Your order #%d was paid successfully (total %.2f)", event.OrderID, event.Total)
	case "payment_failed":
		text = fmt.Sprintf("Payment for order #%d was declined", event.OrderID)
	default:
		return nil
	}

	span.SetAttributes(
		attribute.Int("order.id", event.OrderID),
		attribute.String("notification.type", event.EventType),
	)

	logger.Info("Notification sent",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("client_id", event.ClientID),
		zap.String("message", text),
	)
	return nil
}
