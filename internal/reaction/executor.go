package reaction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"promo_go/internal/session"
	"promo_go/pkg/storage"
	tgclient "promo_go/pkg/telegram"
)

// Executor ставит по одной реакции на свежий пост каждого канала.
// Одна реакция на пост на аккаунт, навсегда: ключ реестра — (аккаунт, канал).
type Executor struct {
	Sessions *session.Manager
	Ledger   *storage.Ledger
}

// Run обрабатывает все каналы одним аккаунтом; channels — канал → эмодзи.
func (e *Executor) Run(ctx context.Context, m *session.Managed, channels map[string][]string) error {
	if err := e.Sessions.EnsureConnected(ctx, m); err != nil {
		return err
	}
	for channel, emojis := range channels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.processChannel(ctx, m, channel, emojis); err != nil {
			log.Printf("[REACTION] ❌ [%s] канал %s: %v", m.Account.Phone, channel, err)
		}
	}
	return nil
}

func (e *Executor) processChannel(ctx context.Context, m *session.Managed, channel string, emojis []string) error {
	if len(emojis) == 0 {
		return fmt.Errorf("для канала не настроены эмодзи")
	}
	api := m.API()
	phone := m.Account.Phone

	ch, err := tgclient.ResolveChannel(ctx, api, channel)
	if err != nil {
		return err
	}
	post, err := tgclient.LatestPost(ctx, api, ch)
	if errors.Is(err, tgclient.ErrEmptyHistory) {
		log.Printf("[REACTION] 📭 нет сообщений в канале %s", channel)
		return nil
	}
	if err != nil {
		return err
	}

	key := storage.Key{Phone: phone, Channel: channel}
	if e.Ledger.HasActed(key, post.ID) {
		log.Printf("[REACTION] 😊 [%s] уже поставил реакцию на пост %d в %s — пропускаем", phone, post.ID, channel)
		return nil
	}

	emoji := emojis[rand.Intn(len(emojis))]
	log.Printf("[REACTION] 🎲 [%s] выбран эмодзи %s для поста %d в %s", phone, emoji, post.ID, channel)

	err = tgclient.WithFloodWait(ctx, func() error {
		return tgclient.SendReaction(ctx, api, ch, post.ID, emoji)
	})
	if err != nil {
		return fmt.Errorf("отправка реакции: %w", err)
	}
	log.Printf("[REACTION] ✅ [%s] реакция %s поставлена на пост %d в %s", phone, emoji, post.ID, channel)

	if err := e.Ledger.RecordAction(key, post.ID, 1); err != nil {
		log.Printf("[REACTION] ошибка записи реестра: %v", err)
	}
	if err := e.Sessions.PersistCredentials(m, false); err != nil {
		log.Printf("[REACTION] %v", err)
	}
	return nil
}
