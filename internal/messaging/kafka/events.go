package kafka

// TopicOrderEvents — топик событий жизненного цикла заказов.
const TopicOrderEvents = "mealorders.order.events"

// Заголовки сообщений с событиями.
const (
	HeaderEventType = "x-event-type"
	HeaderEventID   = "x-event-id"
)
