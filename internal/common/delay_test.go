package common

import (
	"context"
	"errors"
	"testing"
)

// TestRangePick проверяет, что значение всегда в границах диапазона.
func TestRangePick(t *testing.T) {
	r := Range{Min: 3, Max: 7}
	for i := 0; i < 100; i++ {
		v := r.Pick()
		if v < 3 || v > 7 {
			t.Fatalf("значение %d вне диапазона [3,7]", v)
		}
	}
}

// TestRangePick_Degenerate убеждается, что вырожденный диапазон возвращает
// минимум и не паникует.
func TestRangePick_Degenerate(t *testing.T) {
	if v := (Range{Min: 5, Max: 5}).Pick(); v != 5 {
		t.Fatalf("ожидалось 5, получено %d", v)
	}
	if v := (Range{Min: 5, Max: 2}).Pick(); v != 5 {
		t.Fatalf("перевёрнутый диапазон: ожидалось 5, получено %d", v)
	}
	if v := (Range{}).Pick(); v != 0 {
		t.Fatalf("нулевой диапазон: ожидалось 0, получено %d", v)
	}
}

// TestWaitWithCancellation_Cancelled проверяет, что отменённый контекст
// прерывает ожидание сразу.
func TestWaitWithCancellation_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitWithCancellation(ctx, Range{Min: 60, Max: 60})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидалась отмена, получено %v", err)
	}
}

// TestWaitWithCancellation_ZeroRange убеждается, что нулевой диапазон не ждёт.
func TestWaitWithCancellation_ZeroRange(t *testing.T) {
	if err := WaitWithCancellation(context.Background(), Range{}); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
}
