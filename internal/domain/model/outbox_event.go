package model

import (
	"encoding/json"
	"time"
)

const EventTypeOrderPlaced = "OrderPlaced"

// 注文確定と同じTxで書き、リレーがKafkaへ流す
type OutboxEvent struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	AggregateID string          `gorm:"type:varchar(64);not null;index" json:"aggregate_id"`
	EventType   string          `gorm:"type:varchar(64);not null" json:"event_type"`
	Payload     json.RawMessage `gorm:"type:jsonb;not null" json:"payload"`
	CreatedAt   time.Time       `gorm:"not null;index" json:"created_at"`
	PublishedAt *time.Time      `gorm:"index" json:"published_at"`
}

// OrderPlacedPayload はOrderPlacedイベントの中身
type OrderPlacedPayload struct {
	OrderID     int64             `json:"order_id"`
	UserID      int64             `json:"user_id"`
	CartID      int64             `json:"cart_id"`
	TotalAmount int64             `json:"total_amount"`
	OrderDate   time.Time         `json:"order_date"`
	Items       []OrderPlacedItem `json:"items"`
}

type OrderPlacedItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int64  `json:"quantity"`
	Subtotal    int64  `json:"subtotal"`
}

func NewOrderPlacedPayload(o Order, items []OrderItem) OrderPlacedPayload {
	out := OrderPlacedPayload{
		OrderID:     o.ID,
		UserID:      o.UserID,
		CartID:      o.CartID,
		TotalAmount: o.TotalAmount,
		OrderDate:   o.OrderDate,
		Items:       make([]OrderPlacedItem, 0, len(items)),
	}
	for _, it := range items {
		out.Items = append(out.Items, OrderPlacedItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductNameSnapshot,
			UnitPrice:   it.UnitPriceSnapshot,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
		})
	}
	return out
}
