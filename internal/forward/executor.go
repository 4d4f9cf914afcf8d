package forward

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"promo_go/internal/botapi"
	"promo_go/internal/common"
	"promo_go/internal/config"
	"promo_go/internal/session"
	"promo_go/pkg/storage"
	tgclient "promo_go/pkg/telegram"

	"github.com/gotd/td/tg"
)

// sourceDelay — пауза между каналами-источниками.
var sourceDelay = common.Range{Min: 2, Max: 5}

// destination — один из двух независимых каналов назначения.
type destination struct {
	Slot string // слот дедуп-ключа
	Ref  string
}

// Executor пересылает свежие посты каналов-источников в каналы назначения.
// Два режима: напрямую транспортом аккаунта или через Bot API, когда аккаунты
// нужны только для чтения поста (цепочка резервирования, первый успех
// побеждает). Проверка и запись реестра выполняются под монопольной
// блокировкой: реестр делят основной и быстрый циклы.
type Executor struct {
	Sessions *session.Manager
	Ledger   *storage.Ledger
	Bot      *botapi.Client // нужен только режиму "bot"
	Cfg      config.Forward
}

func (e *Executor) destinations() []destination {
	var dests []destination
	if e.Cfg.ToChannel != "" {
		dests = append(dests, destination{Slot: storage.SlotPrimary, Ref: e.Cfg.ToChannel})
	}
	if e.Cfg.ToChannel2 != "" {
		dests = append(dests, destination{Slot: storage.SlotSecondary, Ref: e.Cfg.ToChannel2})
	}
	return dests
}

// RunDirect пересылает посты транспортом самого аккаунта.
func (e *Executor) RunDirect(ctx context.Context, m *session.Managed) error {
	dests := e.destinations()
	if len(e.Cfg.FromChannels) == 0 || len(dests) == 0 {
		log.Printf("[FORWARD] ⚠️ не настроены источники или каналы назначения")
		return nil
	}
	if err := e.Sessions.EnsureConnected(ctx, m); err != nil {
		return err
	}
	api := m.API()
	phone := m.Account.Phone

	// Каналы назначения разрешаются один раз на запуск
	resolved := make(map[string]*tg.Channel, len(dests))
	for _, d := range dests {
		ch, err := tgclient.ResolveChannel(ctx, api, d.Ref)
		if err != nil {
			log.Printf("[FORWARD] ❌ канал назначения (%s) %s: %v", d.Slot, d.Ref, err)
			continue
		}
		resolved[d.Slot] = ch
	}
	if len(resolved) == 0 {
		return fmt.Errorf("не удалось получить ни одного канала назначения")
	}

	for i, from := range e.Cfg.FromChannels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.forwardDirect(ctx, m, from, dests, resolved); err != nil {
			log.Printf("[FORWARD] ❌ [%s] канал %s: %v", phone, from, err)
		}
		if i < len(e.Cfg.FromChannels)-1 {
			if err := common.WaitWithCancellation(ctx, sourceDelay); err != nil {
				return err
			}
		}
	}
	return e.Sessions.PersistCredentials(m, false)
}

func (e *Executor) forwardDirect(ctx context.Context, m *session.Managed, from string, dests []destination, resolved map[string]*tg.Channel) error {
	api := m.API()
	phone := m.Account.Phone

	src, err := tgclient.ResolveChannel(ctx, api, from)
	if err != nil {
		return err
	}
	post, err := tgclient.LatestPost(ctx, api, src)
	if errors.Is(err, tgclient.ErrEmptyHistory) {
		log.Printf("[FORWARD] 📭 нет сообщений в канале %s", from)
		return nil
	}
	if err != nil {
		return err
	}

	for _, d := range dests {
		dest, ok := resolved[d.Slot]
		if !ok {
			continue
		}
		key := storage.Key{Phone: phone, Channel: from, Slot: d.Slot}
		err := e.Ledger.Exclusive(func(tx *storage.Tx) error {
			if tx.HasActed(key, post.ID) {
				log.Printf("[FORWARD] 🔄 [%s] пост %d из %s уже переслан в %s канал — пропускаем", phone, post.ID, from, d.Slot)
				return nil
			}
			if err := tgclient.WithFloodWait(ctx, func() error {
				return tgclient.Forward(ctx, api, src, post.ID, tgclient.InputPeer(dest))
			}); err != nil {
				return err
			}
			log.Printf("[FORWARD] ✅ [%s] пост %d из %s переслан в %s канал", phone, post.ID, from, d.Slot)
			return tx.RecordAction(key, post.ID, 1)
		})
		if err != nil {
			log.Printf("[FORWARD] ❌ пересылка поста %d в %s канал: %v", post.ID, d.Slot, err)
		}
	}
	return nil
}

// RunViaBot пересылает через Bot API: аккаунты из цепочки резервирования
// только читают пост и числовой ID чата, пересылает бот. Аккаунты пробуются
// по порядку до первого успеха; остальные не трогаются.
func (e *Executor) RunViaBot(ctx context.Context, chain []*session.Managed) error {
	dests := e.destinations()
	if len(e.Cfg.FromChannels) == 0 || len(dests) == 0 {
		log.Printf("[FORWARD] ⚠️ не настроены источники или каналы назначения")
		return nil
	}
	if e.Bot == nil {
		return fmt.Errorf("не задан BOT_TOKEN для пересылки через бота")
	}
	log.Printf("[FORWARD] 🤖 пересылка через Bot API (резервирование: %d аккаунтов)", len(chain))

	for i, from := range e.Cfg.FromChannels {
		if err := ctx.Err(); err != nil {
			return err
		}
		postID, chatID, ok := e.readSource(ctx, chain, from)
		if !ok {
			log.Printf("[FORWARD] ❌ ни один аккаунт не смог получить данные из %s (проверено: %d)", from, len(chain))
			continue
		}

		for _, d := range dests {
			key := storage.Key{Phone: e.Bot.LedgerPhone(), Channel: from, Slot: d.Slot}
			err := e.Ledger.Exclusive(func(tx *storage.Tx) error {
				if tx.HasActed(key, postID) {
					log.Printf("[FORWARD] 🔄 бот уже переслал пост %d из %s в %s канал — пропускаем", postID, from, d.Slot)
					return nil
				}
				newID, err := e.Bot.ForwardMessage(ctx, botDestRef(d.Ref), chatID, postID)
				if err != nil {
					return err
				}
				log.Printf("[FORWARD] ✅ бот переслал пост %d → %d (%s канал)", postID, newID, d.Slot)
				return tx.RecordAction(key, postID, 1)
			})
			if err != nil {
				log.Printf("[FORWARD] ❌ пересылка в %s канал: %v", d.Slot, err)
			}
		}

		if i < len(e.Cfg.FromChannels)-1 {
			if err := common.WaitWithCancellation(ctx, sourceDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// readSource читает ID свежего поста и ID чата источника, перебирая аккаунты
// цепочки до первого успеха.
func (e *Executor) readSource(ctx context.Context, chain []*session.Managed, from string) (postID int, chatID string, ok bool) {
	for n, m := range chain {
		phone := m.Account.Phone
		if err := e.Sessions.EnsureConnected(ctx, m); err != nil {
			log.Printf("[FORWARD] ⚠️ аккаунт %s недоступен, пробуем следующий: %v", phone, err)
			continue
		}
		api := m.API()
		log.Printf("[FORWARD] 🔍 попытка %d/%d: читаем пост из %s через %s", n+1, len(chain), from, phone)

		ch, err := tgclient.ResolveChannel(ctx, api, from)
		if err != nil {
			log.Printf("[FORWARD] ❌ аккаунт %s: %v", phone, err)
			continue
		}
		// Подписка нужна, чтобы канал был виден; "уже участник" не ошибка
		_ = tgclient.JoinChannel(ctx, api, ch)

		post, err := tgclient.LatestPost(ctx, api, ch)
		if err != nil {
			log.Printf("[FORWARD] ❌ аккаунт %s: %v", phone, err)
			continue
		}
		if err := e.Sessions.PersistCredentials(m, false); err != nil {
			log.Printf("[FORWARD] %v", err)
		}
		log.Printf("[FORWARD] 🎯 пост %d получен через %s", post.ID, phone)
		return post.ID, tgclient.BotChatID(ch), true
	}
	return 0, "", false
}

// botDestRef приводит ссылку канала назначения к виду, понятному Bot API.
func botDestRef(ref string) string {
	if strings.HasPrefix(ref, "-") {
		return ref
	}
	return "@" + tgclient.ExtractUsername(ref)
}
