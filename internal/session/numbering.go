package session

import "context"

// NextOrderNumber выдаёт следующий номер заказа и сохраняет его как high-water mark.
//
// Кандидат равен максимуму из len(orders)+1 и mark+1: метка защищает от повторной
// выдачи номеров, а счётчик по длине защищает от устаревшей или заниженной метки.
func (s *Store) NextOrderNumber(ctx context.Context) (int, error) {
	orders, err := s.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	mark, err := s.HighWaterMark(ctx)
	if err != nil {
		return 0, err
	}

	next := max(len(orders)+1, mark+1)
	if err := s.setHighWaterMark(ctx, next); err != nil {
		return 0, err
	}
	return next, nil
}
