package favorite

import (
	"context"
	"errors"
	"fmt"
	"log"

	"promo_go/internal/session"
	"promo_go/pkg/storage"
	tgclient "promo_go/pkg/telegram"
)

// Executor пересылает свежие посты каналов в Избранное аккаунта целиком
// (текст + медиа). Политика та же, что у реакций: один пост — один раз.
type Executor struct {
	Sessions *session.Manager
	Ledger   *storage.Ledger
}

// Run обрабатывает все каналы одним аккаунтом.
func (e *Executor) Run(ctx context.Context, m *session.Managed, channels []string) error {
	if err := e.Sessions.EnsureConnected(ctx, m); err != nil {
		return err
	}
	for _, channel := range channels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.processChannel(ctx, m, channel); err != nil {
			log.Printf("[FAVORITE] ❌ [%s] канал %s: %v", m.Account.Phone, channel, err)
		}
	}
	return nil
}

func (e *Executor) processChannel(ctx context.Context, m *session.Managed, channel string) error {
	api := m.API()
	phone := m.Account.Phone

	ch, err := tgclient.ResolveChannel(ctx, api, channel)
	if err != nil {
		return err
	}
	post, err := tgclient.LatestPost(ctx, api, ch)
	if errors.Is(err, tgclient.ErrEmptyHistory) {
		log.Printf("[FAVORITE] 📭 нет сообщений в канале %s", channel)
		return nil
	}
	if err != nil {
		return err
	}

	key := storage.Key{Phone: phone, Channel: channel}
	if e.Ledger.HasActed(key, post.ID) {
		log.Printf("[FAVORITE] ⭐ [%s] пост %d из %s уже в избранном — пропускаем", phone, post.ID, channel)
		return nil
	}

	err = tgclient.WithFloodWait(ctx, func() error {
		return tgclient.ForwardToSelf(ctx, api, ch, post.ID)
	})
	if err != nil {
		return fmt.Errorf("сохранение в избранное: %w", err)
	}
	log.Printf("[FAVORITE] ✅ [%s] пост %d из %s сохранён в избранное", phone, post.ID, channel)

	if err := e.Ledger.RecordAction(key, post.ID, 1); err != nil {
		log.Printf("[FAVORITE] ошибка записи реестра: %v", err)
	}
	if err := e.Sessions.PersistCredentials(m, false); err != nil {
		log.Printf("[FAVORITE] %v", err)
	}
	return nil
}
