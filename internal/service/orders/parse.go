package orders

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
)

// ParseOrderNumber разбирает номер заказа из формы. Пустая строка означает 0.
// domain.ErrValidation возвращается только для текста, который не является
// конечным числом; отрицательные и дробные значения разбираются и дальше
// просто не находят заказ.
func ParseOrderNumber(raw string) (float64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("order number %q is not a valid number: %w", raw, domain.ErrValidation)
	}
	return f, nil
}

// orderNumber приводит разобранное значение к номеру заказа. false означает,
// что такого номера в сессии быть не может.
func orderNumber(f float64) (int, bool) {
	if f < 1 || f > math.MaxInt32 || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
