package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gotd/td/tg"
)

// ErrEmptyHistory означает, что в канале нет ни одного поста.
// Канал в этом случае пропускается, это не ошибка.
var ErrEmptyHistory = errors.New("в канале нет сообщений")

// ExtractUsername извлекает username из ссылки вида https://t.me/name,
// @name или просто name.
func ExtractUsername(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "https://t.me/")
	ref = strings.TrimPrefix(ref, "t.me/")
	if i := strings.Index(ref, "/"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimPrefix(ref, "@")
	return strings.TrimPrefix(ref, "+")
}

// ResolveChannel находит канал по ссылке, username или числовому ID -100....
// Числовые ID ищутся по диалогам аккаунта, так как для них нужен access hash.
func ResolveChannel(ctx context.Context, api *tg.Client, ref string) (*tg.Channel, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "-100") {
		id, err := strconv.ParseInt(strings.TrimPrefix(ref, "-100"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("некорректный ID канала %q: %w", ref, err)
		}
		return findChannelInDialogs(ctx, api, id)
	}

	username := ExtractUsername(ref)
	if username == "" {
		return nil, fmt.Errorf("пустая ссылка на канал: %q", ref)
	}
	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return nil, fmt.Errorf("канал %s: %w", username, err)
	}
	return FindChannel(resolved.GetChats())
}

// FindChannel находит вещательный канал в списке чатов.
func FindChannel(chats []tg.ChatClass) (*tg.Channel, error) {
	for _, peer := range chats {
		if ch, ok := peer.(*tg.Channel); ok {
			// Мегагруппы (обсуждения) пропускаем
			if ch.Megagroup {
				continue
			}
			if ch.Broadcast {
				return ch, nil
			}
		}
	}
	return nil, fmt.Errorf("broadcast channel not found")
}

func findChannelInDialogs(ctx context.Context, api *tg.Client, id int64) (*tg.Channel, error) {
	dialogs, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      100,
	})
	if err != nil {
		return nil, fmt.Errorf("чтение диалогов: %w", err)
	}

	var chats []tg.ChatClass
	switch d := dialogs.(type) {
	case *tg.MessagesDialogs:
		chats = d.Chats
	case *tg.MessagesDialogsSlice:
		chats = d.Chats
	default:
		return nil, fmt.Errorf("unexpected dialogs type %T", dialogs)
	}

	for _, raw := range chats {
		if ch, ok := raw.(*tg.Channel); ok && ch.ID == id {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("канал %d не найден в диалогах аккаунта", id)
}

// InputPeer возвращает peer канала для запросов.
func InputPeer(ch *tg.Channel) *tg.InputPeerChannel {
	return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
}

// BotChatID возвращает ID чата в формате Bot API (-100 + channel_id).
func BotChatID(ch *tg.Channel) string {
	return fmt.Sprintf("-100%d", ch.ID)
}

// JoinChannel подписывает аккаунт на канал. Ошибка "уже участник" не важна.
func JoinChannel(ctx context.Context, api *tg.Client, ch *tg.Channel) error {
	_, err := api.ChannelsJoinChannel(ctx, &tg.InputChannel{
		ChannelID:  ch.ID,
		AccessHash: ch.AccessHash,
	})
	return err
}

// LatestPost возвращает ровно один самый свежий пост канала.
func LatestPost(ctx context.Context, api *tg.Client, ch *tg.Channel) (*tg.Message, error) {
	history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  InputPeer(ch),
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	messages, ok := history.(*tg.MessagesChannelMessages)
	if !ok {
		return nil, fmt.Errorf("unexpected messages type")
	}
	for _, raw := range messages.Messages {
		if m, ok := raw.(*tg.Message); ok {
			return m, nil
		}
	}
	return nil, ErrEmptyHistory
}

// Discussion содержит чат обсуждения и корневое сообщение поста в нём.
type Discussion struct {
	Chat        *tg.Channel
	PostMessage *tg.Message
}

// GetPostDiscussion получает обсуждение для указанного поста канала.
func GetPostDiscussion(ctx context.Context, api *tg.Client, ch *tg.Channel, msgID int) (*Discussion, error) {
	discussMsg, err := api.MessagesGetDiscussionMessage(ctx, &tg.MessagesGetDiscussionMessageRequest{
		Peer:  InputPeer(ch),
		MsgID: msgID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get discussion: %w", err)
	}

	// Чат обсуждения — канал из ответа, отличный от основного
	var linkedChat *tg.Channel
	for _, raw := range discussMsg.GetChats() {
		if c, ok := raw.(*tg.Channel); ok && c.ID != ch.ID {
			linkedChat = c
			break
		}
	}
	if linkedChat == nil {
		return nil, fmt.Errorf("discussion chat not found")
	}

	// Корневое сообщение обсуждения — сообщение из связанного чата без ReplyTo
	for _, raw := range discussMsg.GetMessages() {
		m, ok := raw.(*tg.Message)
		if !ok {
			continue
		}
		peer, ok := m.PeerID.(*tg.PeerChannel)
		if !ok || peer.ChannelID != linkedChat.ID {
			continue
		}
		if m.ReplyTo == nil {
			return &Discussion{Chat: linkedChat, PostMessage: m}, nil
		}
	}
	return nil, fmt.Errorf("discussion post message not found")
}

// GetDiscussionReplies возвращает последние сообщения в обсуждении поста.
func GetDiscussionReplies(ctx context.Context, api *tg.Client, chat *tg.Channel, msgID, limit int) ([]*tg.Message, error) {
	res, err := api.MessagesGetReplies(ctx, &tg.MessagesGetRepliesRequest{
		Peer:  InputPeer(chat),
		MsgID: msgID,
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}

	msgs, ok := res.(*tg.MessagesChannelMessages)
	if !ok {
		return nil, fmt.Errorf("unexpected messages type")
	}

	var valid []*tg.Message
	for _, m := range msgs.Messages {
		if msg, ok := m.(*tg.Message); ok {
			valid = append(valid, msg)
		}
	}
	return valid, nil
}
