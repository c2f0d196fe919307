package domain

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrValidation — некорректный или пустой пользовательский ввод.
	ErrValidation = errors.New("invalid input")
	// ErrNoMatch — сервис рецептов не нашёл блюд по ингредиенту. Это не сбой.
	ErrNoMatch = errors.New("no meals found")
	// ErrRemote — транспортная ошибка или неуспешный статус сервиса рецептов.
	ErrRemote = errors.New("meal lookup failed")
	// ErrOrderNotFound возвращается, если заказа с таким номером нет в сессии.
	ErrOrderNotFound = errors.New("order not found")
	// ErrLookupInFlight — в этой сессии уже выполняется создание заказа.
	ErrLookupInFlight = errors.New("lookup already in progress")
	// ErrSessionRequired — не передан идентификатор сессии.
	ErrSessionRequired = errors.New("session id is required")
	// Ошибка неположительного номера заказа.
	ErrOrderNumberInvalid = errors.New("order number must be positive")
	// Ошибка неизвестного статуса заказа.
	ErrOrderStatusInvalid = errors.New("order status is unknown")
)

// IsUserError сообщает, вызвана ли ошибка вводом пользователя, а не инфраструктурой.
func IsUserError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNoMatch) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrLookupInFlight)
}

// OrderNotFoundError уточняет ErrOrderNotFound номером, который искали.
// Number хранится как введённое число: "-3" и "1.5" тоже не находятся.
type OrderNotFoundError struct {
	Number float64
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order #%s: %s", FormatOrderNumber(e.Number), ErrOrderNotFound)
}

func (e *OrderNotFoundError) Unwrap() error {
	return ErrOrderNotFound
}

// FormatOrderNumber печатает номер без экспоненты и лишних нулей: 7, -3, 1.5.
func FormatOrderNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
