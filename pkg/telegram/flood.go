package telegram

import (
	"context"
	"log"
	"time"

	"github.com/gotd/td/tgerr"
)

// floodSleep вынесен в переменную, чтобы тесты не ждали по-настоящему.
var floodSleep = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// WithFloodWait выполняет fn и при ответе FLOOD_WAIT спит ровно столько,
// сколько потребовал сервер, после чего повторяет тот же вызов. Сигнал
// замедления никогда не считается ошибкой и не просачивается наружу.
func WithFloodWait(ctx context.Context, fn func() error) error {
	for {
		err := fn()
		d, ok := tgerr.AsFloodWait(err)
		if !ok {
			return err
		}
		log.Printf("[FLOOD] сервер просит подождать %s", d)
		if serr := floodSleep(ctx, d); serr != nil {
			return serr
		}
	}
}

// IsUnauthorized распознаёт ответы, означающие потерю авторизации.
// Такой аккаунт исключается до конца запуска: интерактивный вход
// автоматически не решается.
func IsUnauthorized(err error) bool {
	return tgerr.Is(err,
		"AUTH_KEY_UNREGISTERED",
		"AUTH_KEY_INVALID",
		"SESSION_REVOKED",
		"SESSION_EXPIRED",
		"USER_DEACTIVATED",
	)
}
