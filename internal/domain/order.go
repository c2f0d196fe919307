package domain

// OrderStatus описывает жизненный цикл заказа в рамках сессии.
type OrderStatus string

const (
	// OrderStatusIncomplete — заказ создан и ещё не выдан.
	OrderStatusIncomplete OrderStatus = "incomplete"
	// OrderStatusCompleted — заказ отмечен пользователем как выполненный.
	OrderStatusCompleted OrderStatus = "completed"
)

// Order — единственная сущность сессии: номер, название блюда и статус.
// JSON-теги совпадают с форматом, который хранится в session storage.
type Order struct {
	Number      int         `json:"orderNumber"`
	Description string      `json:"description"`
	Status      OrderStatus `json:"status"`
}

// IsCompleted сообщает, переведён ли заказ в финальный статус.
func (o Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

// Complete переводит заказ в completed. Обратный переход не предусмотрен.
func (o *Order) Complete() {
	o.Status = OrderStatusCompleted
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.Number <= 0 {
		errs = append(errs, ErrOrderNumberInvalid)
	}
	if o.Status != OrderStatusIncomplete && o.Status != OrderStatusCompleted {
		errs = append(errs, ErrOrderStatusInvalid)
	}

	return errs
}

// Meal — запись о блюде, которую возвращает сервис рецептов.
type Meal struct {
	ID        string `json:"idMeal"`
	Name      string `json:"strMeal"`
	Thumbnail string `json:"strMealThumb"`
}

// CompletionOutcome различает успешные исходы завершения заказа.
type CompletionOutcome string

const (
	// CompletionCompleted — статус заказа изменён на completed.
	CompletionCompleted CompletionOutcome = "completed"
	// CompletionAlreadyCompleted — заказ уже был завершён, хранилище не менялось.
	CompletionAlreadyCompleted CompletionOutcome = "already_completed"
	// CompletionNothing — пользователь ввёл 0 и сознательно ничего не завершил.
	CompletionNothing CompletionOutcome = "nothing"
)

// Completion описывает результат операции завершения заказа.
type Completion struct {
	Outcome CompletionOutcome
	Order   Order
}

// MaxOrderNumber возвращает наибольший номер заказа в коллекции (0 для пустой).
func MaxOrderNumber(orders []Order) int {
	maxNumber := 0
	for _, o := range orders {
		if o.Number > maxNumber {
			maxNumber = o.Number
		}
	}
	return maxNumber
}

// FilterByStatus возвращает заказы с заданным статусом, сохраняя порядок вставки.
func FilterByStatus(orders []Order, status OrderStatus) []Order {
	result := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == status {
			result = append(result, o)
		}
	}
	return result
}
