package comment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"promo_go/internal/audit"
	"promo_go/internal/common"
	"promo_go/internal/generator"
	"promo_go/internal/session"
	"promo_go/models"
	"promo_go/pkg/storage"
	tgclient "promo_go/pkg/telegram"

	"github.com/gotd/td/tg"
)

// maxGenerateAttempts — сколько раз переспрашиваем генератор, если он вернул
// строку-ошибку вместо комментария.
const maxGenerateAttempts = 5

// errorCommentsToCheck — сколько последних ответов в обсуждении проверяем
// на собственные комментарии-ошибки перед отправкой нового.
const errorCommentsToCheck = 50

// Executor оставляет комментарии под свежими постами каналов.
// Квота на запуск выбирается из диапазона, остаток по конкретному посту
// выводится из реестра: target - уже_оставлено_под_этим_постом.
type Executor struct {
	Sessions *session.Manager
	Ledger   *storage.Ledger
	Gen      generator.TextGenerator
	Audit    *audit.Log

	CommentDelay  common.Range
	CommentsCount common.Range
	ReplyProb     int
	StickerProb   int
	Personality   string
	StickerPacks  []string
}

// Run обрабатывает все каналы одним аккаунтом. Ошибка одного канала не
// прерывает остальные.
func (e *Executor) Run(ctx context.Context, m *session.Managed, channels []string) error {
	if err := e.Sessions.EnsureConnected(ctx, m); err != nil {
		return err
	}
	phone := m.Account.Phone

	target := e.CommentsCount.Pick()
	log.Printf("[COMMENT] [%s] будет оставлено до %d комментариев", phone, target)

	stickers := e.loadStickers(ctx, m)

	for _, channel := range channels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.processChannel(ctx, m, channel, target, stickers); err != nil {
			log.Printf("[COMMENT] ❌ [%s] канал %s: %v", phone, channel, err)
		}
	}
	return nil
}

// loadStickers один раз за запуск собирает пул стикеров из настроенных паков.
func (e *Executor) loadStickers(ctx context.Context, m *session.Managed) []*tg.Document {
	var pool []*tg.Document
	for _, packURL := range e.StickerPacks {
		docs, err := tgclient.GetStickersFromPack(ctx, m.API(), packURL)
		if err != nil {
			log.Printf("[COMMENT] стикерпак %s недоступен: %v", packURL, err)
			continue
		}
		pool = append(pool, docs...)
	}
	return pool
}

func (e *Executor) processChannel(ctx context.Context, m *session.Managed, channel string, target int, stickers []*tg.Document) error {
	api := m.API()
	phone := m.Account.Phone

	ch, err := tgclient.ResolveChannel(ctx, api, channel)
	if err != nil {
		return err
	}
	post, err := tgclient.LatestPost(ctx, api, ch)
	if errors.Is(err, tgclient.ErrEmptyHistory) {
		log.Printf("[COMMENT] 📭 нет сообщений в канале %s", channel)
		return nil
	}
	if err != nil {
		return err
	}

	key := storage.Key{Phone: phone, Channel: channel}
	rec, ok := e.Ledger.Get(key)
	owed := commentsOwed(rec, ok, post.ID, target)
	if owed <= 0 {
		log.Printf("[COMMENT] ⏩ [%s] уже оставил %d комментариев под постом %d в %s, пропускаем", phone, rec.Count, post.ID, channel)
		return nil
	}

	for i := 0; i < owed; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		sent, err := e.sendOne(ctx, m, ch, channel, post, stickers)
		if err != nil {
			return err
		}
		if !sent {
			continue
		}
		if err := e.Ledger.RecordAction(key, post.ID, 1); err != nil {
			log.Printf("[COMMENT] ошибка записи реестра: %v", err)
		}
		if err := e.Sessions.PersistCredentials(m, false); err != nil {
			log.Printf("[COMMENT] %v", err)
		}
		if i < owed-1 {
			if err := common.WaitWithCancellation(ctx, e.CommentDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// sendOne отправляет один комментарий (текст или стикер). Возвращает false,
// если комментарий пропущен без ошибки (например, генератор не справился).
func (e *Executor) sendOne(ctx context.Context, m *session.Managed, ch *tg.Channel, channel string, post *tg.Message, stickers []*tg.Document) (bool, error) {
	api := m.API()
	phone := m.Account.Phone

	if len(stickers) > 0 && rand.Intn(100) < e.StickerProb {
		sticker := stickers[rand.Intn(len(stickers))]
		err := tgclient.WithFloodWait(ctx, func() error {
			return tgclient.SendStickerComment(ctx, api, ch, post.ID, sticker)
		})
		if err != nil {
			return false, fmt.Errorf("отправка стикера: %w", err)
		}
		log.Printf("[COMMENT] ✅ [%s] отправлен стикер в %s (пост %d)", phone, channel, post.ID)
		e.Audit.Comment(channel, "[sticker]")
		return true, nil
	}

	text, ok := e.generate(ctx, post.Message)
	if !ok {
		log.Printf("[COMMENT] ⚠️ [%s] генератор не дал пригодный комментарий после %d попыток, пропускаем", phone, maxGenerateAttempts)
		return false, nil
	}

	// Перед отправкой подчищаем собственные старые комментарии-ошибки
	if err := e.deleteErrorComments(ctx, m, ch, post.ID); err != nil {
		log.Printf("[COMMENT] не удалось проверить старые комментарии: %v", err)
	}

	err := tgclient.WithFloodWait(ctx, func() error {
		return tgclient.SendComment(ctx, api, ch, post.ID, text)
	})
	if err != nil {
		return false, fmt.Errorf("отправка комментария: %w", err)
	}
	log.Printf("[COMMENT] ✅ [%s] оставлен комментарий в %s (пост %d): %s", phone, channel, post.ID, text)
	e.Audit.Comment(channel, text)
	return true, nil
}

// generate запрашивает текст с ограниченным числом повторов: генератор может
// вернуть строку-ошибку вместо error, её распознаём по ключевым словам.
func (e *Executor) generate(ctx context.Context, postText string) (string, bool) {
	opts := generator.Options{GeneralReplyProb: e.ReplyProb, PersonalityMode: e.Personality}
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		text, err := e.Gen.Generate(ctx, postText, opts)
		if err != nil {
			log.Printf("[COMMENT] ⚠️ ошибка генерации (попытка %d/%d): %v", attempt, maxGenerateAttempts, err)
		} else if !generator.IsErrorText(text) {
			return text, true
		} else {
			log.Printf("[COMMENT] ⚠️ сгенерирован комментарий с ошибкой (попытка %d/%d): %s", attempt, maxGenerateAttempts, text)
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(500 * time.Millisecond):
		}
	}
	return "", false
}

// deleteErrorComments удаляет из обсуждения поста собственные комментарии,
// похожие на сообщения об ошибках. Чужие сообщения не трогаются никогда.
func (e *Executor) deleteErrorComments(ctx context.Context, m *session.Managed, ch *tg.Channel, postID int) error {
	api := m.API()

	self, err := m.Self(ctx)
	if err != nil {
		return err
	}

	discussion, err := tgclient.GetPostDiscussion(ctx, api, ch, postID)
	if err != nil {
		return err
	}
	replies, err := tgclient.GetDiscussionReplies(ctx, api, discussion.Chat, discussion.PostMessage.ID, errorCommentsToCheck)
	if err != nil {
		return err
	}

	selfRef := models.PeerRef{Kind: models.PeerUser, ID: self.ID}
	var toDelete []int
	for _, msg := range replies {
		if msg.Message == "" || !generator.IsErrorText(msg.Message) {
			continue
		}
		sender, ok := tgclient.Sender(msg)
		if !ok || !models.SamePeer(sender, selfRef) {
			continue
		}
		toDelete = append(toDelete, msg.ID)
	}
	if len(toDelete) == 0 {
		return nil
	}
	if err := tgclient.DeleteMessages(ctx, api, discussion.Chat, toDelete); err != nil {
		return err
	}
	log.Printf("[COMMENT] 🗑️ удалено %d комментариев с ошибками", len(toDelete))
	return nil
}

// commentsOwed возвращает, сколько комментариев ещё причитается под постом.
// Смена поста обнуляет накопленный счётчик: квота действует на каждый пост.
func commentsOwed(rec storage.Record, ok bool, postID, target int) int {
	if !ok || rec.PostID != postID {
		return target
	}
	return target - rec.Count
}
