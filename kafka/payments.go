package kafka

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Djalves424/ProjetoDSCommerce/middleware"
	"github.com/Djalves424/ProjetoDSCommerce/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func InitConsumer(logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	brokers := []string{getEnv("KAFKA_BROKER", "localhost:9092")}

	consumer, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized")
	return consumer, nil
}

// StartPaymentWorker consumes order_created events and settles them: on a
// successful charge the order flips to PAID and gains its payment record in
// one transaction; on a declined charge the order is canceled.
func StartPaymentWorker(consumer sarama.Consumer, db *sql.DB, producer sarama.SyncProducer, logger *zap.Logger) error {
	partitionConsumer, err := consumer.ConsumePartition(ordersTopic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer partitionConsumer.Close()

	logger.Info("Payment worker started", zap.String("topic", ordersTopic))

	for {
		select {
		case message := <-partitionConsumer.Messages():
			if err := handleOrderMessage(message, db, producer, logger); err != nil {
				logger.Error("Failed to handle order event", zap.Error(err))
			}
		case err := <-partitionConsumer.Errors():
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}
}

func handleOrderMessage(message *sarama.ConsumerMessage, db *sql.DB, producer sarama.SyncProducer, logger *zap.Logger) error {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(context.Background(), consumerHeaderCarrier(message.Headers))

	ctx, span := otel.Tracer("payment-worker").Start(ctx, "ProcessPayment")
	defer span.End()

	var event models.OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.EventType != "order_created" {
		return nil
	}

	span.SetAttributes(attribute.Int("order.id", event.OrderID))
	traceID := middleware.GetTraceID(ctx)

	// Simulated gateway: one in five charges is declined.
	if event.OrderID%5 == 0 {
		if _, err := db.Exec(
			"UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
			models.OrderStatusCanceled, event.OrderID,
		); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to cancel order: %w", err)
		}

		middleware.RecordPaymentProcessed("failed")
		logger.Warn("Payment declined",
			zap.String("trace_id", traceID),
			zap.Int("order_id", event.OrderID),
		)

		return PublishEvent(ctx, producer, models.OrderEvent{
			OrderID:   event.OrderID,
			ClientID:  event.ClientID,
			Status:    models.OrderStatusCanceled,
			Total:     event.Total,
			EventType: "payment_failed",
		}, logger)
	}

	tx, err := db.Begin()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var paymentID int
	err = tx.QueryRow(
		"INSERT INTO payments (order_id, amount, status, transaction_id) VALUES ($1, $2, $3, $4) RETURNING id",
		event.OrderID, event.Total, models.PaymentStatusSuccess, uuid.NewString(),
	).Scan(&paymentID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	if _, err := tx.Exec(
		"UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		models.OrderStatusPaid, event.OrderID,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark order paid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit payment: %w", err)
	}

	middleware.RecordPaymentProcessed("success")
	logger.Info("Payment settled",
		zap.String("trace_id", traceID),
		zap.Int("order_id", event.OrderID),
		zap.Int("payment_id", paymentID),
	)

	return PublishEvent(ctx, producer, models.OrderEvent{
		OrderID:   event.OrderID,
		ClientID:  event.ClientID,
		Status:    models.OrderStatusPaid,
		Total:     event.Total,
		EventType: "order_paid",
	}, logger)
}

// consumerHeaderCarrier implements the TextMapCarrier interface for Kafka
// message headers on the consumer side.
type consumerHeaderCarrier []*sarama.RecordHeader

func (c consumerHeaderCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c consumerHeaderCarrier) Set(key, value string) {}

func (c consumerHeaderCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
