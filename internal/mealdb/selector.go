package mealdb

import (
	"math/rand/v2"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
)

// RandomSelector выбирает кандидата равновероятно из всего списка.
type RandomSelector struct{}

// Pick возвращает индекс в [0, n). Для n <= 0 возвращает 0.
func (RandomSelector) Pick(n int) int {
	if n <= 0 {
		return 0
	}
	return rand.IntN(n)
}

// FixedSelector всегда возвращает один и тот же индекс (с обрезкой по n).
type FixedSelector int

// Pick возвращает зафиксированный индекс.
func (s FixedSelector) Pick(n int) int {
	if n <= 0 {
		return 0
	}
	idx := int(s)
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

var (
	_ domain.Selector = RandomSelector{}
	_ domain.Selector = FixedSelector(0)
)
