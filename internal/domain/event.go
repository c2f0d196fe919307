package domain

import "time"

// EventType определяет тип события заказа.
type EventType string

const (
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderCompleted EventType = "order.completed"
	EventTypeSessionCleared EventType = "session.cleared"
)

// OrderEvent описывает событие, которое уходит наружу после изменения состояния сессии.
type OrderEvent struct {
	ID          string      `json:"event_id"`
	Type        EventType   `json:"event_type"`
	SessionID   string      `json:"session_id"`
	OrderNumber int         `json:"order_number,omitempty"`
	Description string      `json:"description,omitempty"`
	Status      OrderStatus `json:"status,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}
