package telegram

import (
	"context"
	"math/rand"

	"promo_go/models"

	"github.com/gotd/td/tg"
)

// SendComment отправляет текстовый комментарий под пост канала: находит чат
// обсуждения и отвечает на корневое сообщение поста в нём.
func SendComment(ctx context.Context, api *tg.Client, ch *tg.Channel, postID int, text string) error {
	discussion, err := GetPostDiscussion(ctx, api, ch, postID)
	if err != nil {
		return err
	}
	req := &tg.MessagesSendMessageRequest{
		Peer:     InputPeer(discussion.Chat),
		Message:  text,
		RandomID: rand.Int63(),
	}
	req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: discussion.PostMessage.ID})
	_, err = api.MessagesSendMessage(ctx, req)
	return err
}

// SendStickerComment отправляет стикер под пост канала.
func SendStickerComment(ctx context.Context, api *tg.Client, ch *tg.Channel, postID int, doc *tg.Document) error {
	discussion, err := GetPostDiscussion(ctx, api, ch, postID)
	if err != nil {
		return err
	}
	req := &tg.MessagesSendMediaRequest{
		Peer: InputPeer(discussion.Chat),
		Media: &tg.InputMediaDocument{
			ID: &tg.InputDocument{
				ID:            doc.ID,
				AccessHash:    doc.AccessHash,
				FileReference: doc.FileReference,
			},
		},
		RandomID: rand.Int63(),
	}
	req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: discussion.PostMessage.ID})
	_, err = api.MessagesSendMedia(ctx, req)
	return err
}

// SendReaction ставит реакцию на пост канала.
func SendReaction(ctx context.Context, api *tg.Client, ch *tg.Channel, msgID int, emoticon string) error {
	_, err := api.MessagesSendReaction(ctx, &tg.MessagesSendReactionRequest{
		Peer:        InputPeer(ch),
		MsgID:       msgID,
		Reaction:    []tg.ReactionClass{&tg.ReactionEmoji{Emoticon: emoticon}},
		AddToRecent: true,
	})
	return err
}

// Forward пересылает пост из канала-источника в указанный peer.
func Forward(ctx context.Context, api *tg.Client, from *tg.Channel, postID int, to tg.InputPeerClass) error {
	_, err := api.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		FromPeer: InputPeer(from),
		ID:       []int{postID},
		ToPeer:   to,
		RandomID: []int64{rand.Int63()},
	})
	return err
}

// ForwardToSelf пересылает пост целиком (текст + медиа) в Избранное аккаунта.
func ForwardToSelf(ctx context.Context, api *tg.Client, from *tg.Channel, postID int) error {
	return Forward(ctx, api, from, postID, &tg.InputPeerSelf{})
}

// DeleteMessages удаляет сообщения в чате обсуждения.
func DeleteMessages(ctx context.Context, api *tg.Client, chat *tg.Channel, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
		Channel: &tg.InputChannel{ChannelID: chat.ID, AccessHash: chat.AccessHash},
		ID:      ids,
	})
	return err
}

// Sender возвращает отправителя сообщения как сравниваемую по значению ссылку.
func Sender(m *tg.Message) (models.PeerRef, bool) {
	switch peer := m.FromID.(type) {
	case *tg.PeerUser:
		return models.PeerRef{Kind: models.PeerUser, ID: peer.UserID}, true
	case *tg.PeerChannel:
		return models.PeerRef{Kind: models.PeerChannel, ID: peer.ChannelID}, true
	case *tg.PeerChat:
		return models.PeerRef{Kind: models.PeerChat, ID: peer.ChatID}, true
	}
	return models.PeerRef{}, false
}
