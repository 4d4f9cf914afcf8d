package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
)

// TestExtractUsername проверяет разбор всех принимаемых видов ссылок.
func TestExtractUsername(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://t.me/mychannel", "mychannel"},
		{"t.me/mychannel", "mychannel"},
		{"@mychannel", "mychannel"},
		{"mychannel", "mychannel"},
		{"https://t.me/mychannel/123", "mychannel"},
		{" https://t.me/+invitehash ", "invitehash"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ExtractUsername(tc.in); got != tc.want {
			t.Errorf("ExtractUsername(%q) = %q, ожидалось %q", tc.in, got, tc.want)
		}
	}
}

// TestFindChannel_SkipsMegagroup убеждается, что мегагруппа обсуждения
// пропускается и возвращается вещательный канал.
func TestFindChannel_SkipsMegagroup(t *testing.T) {
	chats := []tg.ChatClass{
		&tg.Channel{ID: 1, Megagroup: true},
		&tg.Channel{ID: 2, Broadcast: true},
	}
	ch, err := FindChannel(chats)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if ch.ID != 2 {
		t.Fatalf("ожидался канал 2, получен %d", ch.ID)
	}
}

// TestFindChannel_NoBroadcast проверяет ошибку, когда вещательного канала нет.
func TestFindChannel_NoBroadcast(t *testing.T) {
	chats := []tg.ChatClass{
		&tg.Channel{ID: 1, Megagroup: true},
		&tg.Chat{ID: 2},
	}
	if _, err := FindChannel(chats); err == nil {
		t.Fatalf("ожидалась ошибка, но её нет")
	}
}

// TestBotChatID проверяет формат ID чата для Bot API.
func TestBotChatID(t *testing.T) {
	ch := &tg.Channel{ID: 123456}
	if got := BotChatID(ch); got != "-100123456" {
		t.Fatalf("ожидалось -100123456, получено %s", got)
	}
}

// TestInputPeer убеждается, что peer несёт ID и access hash канала.
func TestInputPeer(t *testing.T) {
	ch := &tg.Channel{ID: 7, AccessHash: 99}
	peer := InputPeer(ch)
	if peer.ChannelID != 7 || peer.AccessHash != 99 {
		t.Fatalf("peer собран неверно: %+v", peer)
	}
}
