package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"
)

// TestWithFloodWait_SleepsAndRetries проверяет, что при FLOOD_WAIT вызов
// спит ровно запрошенное время и повторяется.
func TestWithFloodWait_SleepsAndRetries(t *testing.T) {
	orig := floodSleep
	defer func() { floodSleep = orig }()

	var slept []time.Duration
	floodSleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	calls := 0
	err := WithFloodWait(context.Background(), func() error {
		calls++
		if calls == 1 {
			return tgerr.New(420, "FLOOD_WAIT_7")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if calls != 2 {
		t.Fatalf("ожидалось 2 вызова, получено %d", calls)
	}
	if len(slept) != 1 || slept[0] != 7*time.Second {
		t.Fatalf("ожидался один сон на 7s, получено %v", slept)
	}
}

// TestWithFloodWait_OtherErrorPassesThrough убеждается, что прочие ошибки
// не повторяются и возвращаются как есть.
func TestWithFloodWait_OtherErrorPassesThrough(t *testing.T) {
	want := errors.New("boom")
	calls := 0
	err := WithFloodWait(context.Background(), func() error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("ожидалась исходная ошибка, получено %v", err)
	}
	if calls != 1 {
		t.Fatalf("повторов быть не должно, вызовов: %d", calls)
	}
}

// TestWithFloodWait_CancelDuringSleep проверяет, что отмена контекста во
// время ожидания прерывает повтор.
func TestWithFloodWait_CancelDuringSleep(t *testing.T) {
	orig := floodSleep
	defer func() { floodSleep = orig }()
	floodSleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	calls := 0
	err := WithFloodWait(context.Background(), func() error {
		calls++
		return tgerr.New(420, "FLOOD_WAIT_30")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидалась отмена, получено %v", err)
	}
	if calls != 1 {
		t.Fatalf("после отмены повторов быть не должно, вызовов: %d", calls)
	}
}

// TestIsUnauthorized проверяет распознавание ответов о потере авторизации.
func TestIsUnauthorized(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{tgerr.New(401, "AUTH_KEY_UNREGISTERED"), true},
		{tgerr.New(401, "SESSION_REVOKED"), true},
		{tgerr.New(401, "USER_DEACTIVATED"), true},
		{tgerr.New(420, "FLOOD_WAIT_5"), false},
		{errors.New("обычная ошибка"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsUnauthorized(tc.err); got != tc.want {
			t.Errorf("IsUnauthorized(%v) = %v, ожидалось %v", tc.err, got, tc.want)
		}
	}
}
