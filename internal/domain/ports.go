package domain

import "context"

// KeyValue хранит строки в пределах одной сессии.
// Отсутствие ключа не считается ошибкой: Get возвращает ok=false.
type KeyValue interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// SessionStorage выдаёт изолированное key/value пространство для каждой сессии.
type SessionStorage interface {
	// Session возвращает хранилище сессии id; оно создаётся лениво при первой записи.
	Session(id string) KeyValue
	// Ping проверяет доступность хранилища для health checks.
	Ping(ctx context.Context) error
}

// MealLookup описывает внешний сервис поиска блюд по ингредиенту.
type MealLookup interface {
	// FetchByIngredient возвращает кандидатов или пустой срез, если совпадений нет.
	FetchByIngredient(ctx context.Context, rawIngredient string) ([]Meal, error)
}

// Selector выбирает индекс кандидата из n вариантов.
type Selector interface {
	Pick(n int) int
}

// EventPublisher публикует события жизненного цикла заказов.
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}
