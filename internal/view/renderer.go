// Package view проецирует заказы сессии в два списка для отображения:
// незавершённые и завершённые.
package view

import (
	"context"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
)

const (
	badgeIncomplete = "text-bg-warning"
	badgeCompleted  = "text-bg-success"
)

// OrderReader — источник текущего состояния заказов.
type OrderReader interface {
	ReadAll(ctx context.Context) ([]domain.Order, error)
}

// Row описывает строку списка: номер, описание и бейдж статуса.
type Row struct {
	Number      int                `json:"orderNumber"`
	Description string             `json:"description"`
	Status      domain.OrderStatus `json:"status"`
	Badge       string             `json:"badge"`
}

// List — отображаемый список. Empty=true означает, что вместо строк
// показывается заглушка EmptyText.
type List struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Rows      []Row  `json:"rows"`
	Empty     bool   `json:"empty"`
	EmptyText string `json:"emptyText"`
}

// Board содержит обе проекции, посчитанные из одного состояния хранилища.
type Board struct {
	Incomplete List `json:"incomplete"`
	Completed  List `json:"completed"`
}

// Renderer всегда пересчитывает списки целиком из хранилища.
type Renderer struct {
	reader OrderReader
}

// NewRenderer создаёт renderer поверх источника заказов.
func NewRenderer(reader OrderReader) *Renderer {
	return &Renderer{reader: reader}
}

// RenderIncomplete возвращает список незавершённых заказов в порядке вставки.
func (r *Renderer) RenderIncomplete(ctx context.Context) (List, error) {
	orders, err := r.reader.ReadAll(ctx)
	if err != nil {
		return List{}, err
	}
	return incompleteList(orders), nil
}

// RenderCompleted возвращает список завершённых заказов в порядке вставки.
func (r *Renderer) RenderCompleted(ctx context.Context) (List, error) {
	orders, err := r.reader.ReadAll(ctx)
	if err != nil {
		return List{}, err
	}
	return completedList(orders), nil
}

// RenderAll пересчитывает оба списка из последнего состояния хранилища.
func (r *Renderer) RenderAll(ctx context.Context) (Board, error) {
	orders, err := r.reader.ReadAll(ctx)
	if err != nil {
		return Board{}, err
	}
	return Board{
		Incomplete: incompleteList(orders),
		Completed:  completedList(orders),
	}, nil
}

func incompleteList(orders []domain.Order) List {
	return project(orders, domain.OrderStatusIncomplete, List{
		ID:        "ordersList",
		Title:     "Incomplete orders",
		EmptyText: "No incomplete orders yet.",
	})
}

func completedList(orders []domain.Order) List {
	return project(orders, domain.OrderStatusCompleted, List{
		ID:        "completedList",
		Title:     "Completed orders",
		EmptyText: "No completed orders yet.",
	})
}

func project(orders []domain.Order, status domain.OrderStatus, list List) List {
	filtered := domain.FilterByStatus(orders, status)
	list.Rows = make([]Row, 0, len(filtered))
	for _, o := range filtered {
		list.Rows = append(list.Rows, Row{
			Number:      o.Number,
			Description: o.Description,
			Status:      o.Status,
			Badge:       badgeFor(o.Status),
		})
	}
	list.Empty = len(list.Rows) == 0
	return list
}

func badgeFor(status domain.OrderStatus) string {
	if status == domain.OrderStatusCompleted {
		return badgeCompleted
	}
	return badgeIncomplete
}
