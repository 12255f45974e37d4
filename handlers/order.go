package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/Djalves424/ProjetoDSCommerce/authz"
	"github.com/Djalves424/ProjetoDSCommerce/kafka"
	"github.com/Djalves424/ProjetoDSCommerce/middleware"
	"github.com/Djalves424/ProjetoDSCommerce/models"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderHandler struct {
	db       *sql.DB
	producer sarama.SyncProducer
	logger   *zap.Logger
}

func NewOrderHandler(db *sql.DB, producer sarama.SyncProducer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		db:       db,
		producer: producer,
		logger:   logger,
	}
}

// CreateOrder assembles an order from (product id, quantity) pairs. Products
// are resolved and their current price snapshotted inside one transaction;
// either the order and all its items commit together or nothing does.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("commerce-api").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
		return
	}

	var req models.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	span.SetAttributes(
		attribute.Int("client.id", principal.ID),
		attribute.Int("items.count", len(req.Items)),
	)

	// Collapse duplicate product ids so the (order, product) key stays unique.
	quantities := make(map[int]int, len(req.Items))
	productIDs := make([]int, 0, len(req.Items))
	for _, item := range req.Items {
		if _, seen := quantities[item.ProductID]; !seen {
			productIDs = append(productIDs, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer tx.Rollback()

	var order models.Order
	order.Client = models.ClientSummary{ID: principal.ID}
	order.Status = models.OrderStatusWaitingPayment

	err = tx.QueryRowContext(ctx,
		"INSERT INTO orders (client_id, status) VALUES ($1, $2) RETURNING id, created_at, updated_at",
		principal.ID, models.OrderStatusWaitingPayment,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to insert order", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	order.Items = make([]models.OrderItem, 0, len(productIDs))
	for _, productID := range productIDs {
		quantity := quantities[productID]

		var item models.OrderItem
		item.OrderID = order.ID
		item.ProductID = productID
		item.Quantity = quantity

		err := tx.QueryRowContext(ctx,
			"SELECT name, price, COALESCE(image_url, '') FROM products WHERE id = $1",
			productID,
		).Scan(&item.Name, &item.UnitPrice, &item.ImageURL)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				writeError(c, http.StatusNotFound, "Product not found: "+strconv.Itoa(productID))
				return
			}
			span.RecordError(err)
			h.logger.Error("Failed to resolve product", zap.Error(err))
			writeError(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4)",
			order.ID, productID, quantity, item.UnitPrice,
		); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to insert order item", zap.Error(err))
			writeError(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		item.SubTotal = item.UnitPrice * float64(quantity)
		order.Items = append(order.Items, item)
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit order", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	order.Total = models.OrderTotal(order.Items)
	order.Client.Name = principal.Email

	span.SetAttributes(attribute.Int("order.id", order.ID))
	middleware.RecordOrderCreated()

	if h.producer != nil {
		event := models.OrderEvent{
			OrderID:   order.ID,
			ClientID:  principal.ID,
			Status:    order.Status,
			Total:     order.Total,
			EventType: "order_created",
		}
		if err := kafka.PublishEvent(ctx, h.producer, event, h.logger); err != nil {
			// The order is committed; losing the event must not fail the request.
			h.logger.Error("Failed to publish order_created event", zap.Error(err))
		}
	}

	h.logger.Info("Order created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("order_id", order.ID),
		zap.Int("client_id", principal.ID),
	)
	c.JSON(http.StatusCreated, order)
}

// GetOrder returns the full aggregate: items with snapshot prices, the
// derived total, and the payment when one exists. Clients see only their own
// orders; admins see everything.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("commerce-api").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
		return
	}

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid order ID")
		return
	}

	span.SetAttributes(attribute.Int("order.id", orderID))

	// client.name carries the login email, matching what the create path
	// returns for the same aggregate.
	var order models.Order
	err = h.db.QueryRowContext(ctx,
		"SELECT o.id, o.client_id, u.email, o.status, o.created_at, o.updated_at FROM orders o JOIN users u ON u.id = o.client_id WHERE o.id = $1",
		orderID,
	).Scan(&order.ID, &order.Client.ID, &order.Client.Name, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(c, http.StatusNotFound, "Order not found")
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if !authz.CanAccessOrder(principal, order.Client.ID) {
		writeError(c, http.StatusForbidden, "Access denied")
		return
	}

	order.Items, err = h.loadItems(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load order items", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	order.Total = models.OrderTotal(order.Items)

	order.Payment, err = h.loadPayment(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load payment", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, order)
}

// DeleteOrder removes the aggregate: payment, items and the order row go in
// one transaction.
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	ctx, span := otel.Tracer("commerce-api").Start(c.Request.Context(), "DeleteOrder")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid order ID")
		return
	}

	span.SetAttributes(attribute.Int("order.id", orderID))

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE order_id = $1", orderID); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete payment", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete order items", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete order", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		writeError(c, http.StatusNotFound, "Order not found")
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit delete", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("Order deleted", zap.Int("order_id", orderID))
	c.Status(http.StatusNoContent)
}

func (h *OrderHandler) loadItems(ctx context.Context, orderID int) ([]models.OrderItem, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT oi.product_id, p.name, COALESCE(p.image_url, ''), oi.unit_price, oi.quantity FROM order_items oi JOIN products p ON p.id = oi.product_id WHERE oi.order_id = $1 ORDER BY oi.product_id",
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		item.OrderID = orderID
		if err := rows.Scan(&item.ProductID, &item.Name, &item.ImageURL, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		item.SubTotal = item.UnitPrice * float64(item.Quantity)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (h *OrderHandler) loadPayment(ctx context.Context, orderID int) (*models.Payment, error) {
	var payment models.Payment
	err := h.db.QueryRowContext(ctx,
		"SELECT id, order_id, amount, status, COALESCE(transaction_id, ''), created_at FROM payments WHERE order_id = $1",
		orderID,
	).Scan(&payment.ID, &payment.OrderID, &payment.Amount, &payment.Status, &payment.TransactionID, &payment.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
