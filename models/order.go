package models

import "time"

type OrderStatus string

const (
	OrderStatusWaitingPayment OrderStatus = "WAITING_PAYMENT"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusShipped        OrderStatus = "SHIPPED"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCanceled       OrderStatus = "CANCELED"
)

type Order struct {
	ID        int           `json:"id"`
	Client    ClientSummary `json:"client"`
	Status    OrderStatus   `json:"status"`
	Items     []OrderItem   `json:"items"`
	Payment   *Payment      `json:"payment,omitempty"`
	Total     float64       `json:"total"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// OrderItem keeps the unit price snapshotted at order time; later product
// price changes never affect persisted orders.
type OrderItem struct {
	OrderID   int     `json:"-"`
	ProductID int     `json:"product_id"`
	Name      string  `json:"name"`
	ImageURL  string  `json:"image_url"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	SubTotal  float64 `json:"sub_total"`
}

type OrderItemRequest struct {
	ProductID int `json:"product_id" binding:"required"`
	Quantity  int `json:"quantity" binding:"required,gt=0"`
}

type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type OrderEvent struct {
	OrderID   int         `json:"order_id"`
	ClientID  int         `json:"client_id"`
	Status    OrderStatus `json:"status"`
	Total     float64     `json:"total"`
	EventType string      `json:"event_type"` // order_created, order_paid, payment_failed
}

// OrderTotal derives the order total from its items. The total is never
// stored; it is recomputed from the snapshots on every read.
func OrderTotal(items []OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}
