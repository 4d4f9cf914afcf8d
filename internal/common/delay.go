package common

import (
	"context"
	"math/rand"
	"time"
)

// Range — диапазон значений в секундах (минимум-максимум).
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Pick возвращает случайное значение из диапазона.
func (r Range) Pick() int {
	if r.Max <= r.Min {
		return r.Min
	}
	return rand.Intn(r.Max-r.Min+1) + r.Min
}

// WaitWithCancellation выполняет ожидание в случайном диапазоне и
// регулярно проверяет контекст на отмену, чтобы не блокировать долгие задержки.
// Используем шаг в пять секунд, чтобы можно было вовремя завершить работу по требованию.
func WaitWithCancellation(ctx context.Context, r Range) error {
	for remaining := r.Pick(); remaining > 0; {
		step := 5
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			// Возвращаем ошибку контекста, чтобы вызвать обработку прерывания выше по стеку.
			return ctx.Err()
		case <-time.After(time.Duration(step) * time.Second):
		}
		remaining -= step
	}
	return nil
}
