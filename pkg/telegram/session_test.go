package telegram

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/gotd/td/session"
)

// blobWithTail собирает блоб сессии заданного префикса и хвоста так, чтобы
// префикс base64-представления был длиннее значимой границы.
func blobWithTail(prefix byte, tail byte) []byte {
	raw := bytes.Repeat([]byte{prefix}, 90)
	return append(raw, bytes.Repeat([]byte{tail}, 30)...)
}

// TestSessionBuffer_EmptyLoad проверяет, что пустой буфер отдаёт ErrNotFound
// и клиент начинает с чистой сессии.
func TestSessionBuffer_EmptyLoad(t *testing.T) {
	b := NewSessionBuffer("")
	if _, err := b.LoadSession(context.Background()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("ожидался session.ErrNotFound, получено %v", err)
	}
}

// TestSessionBuffer_RoundTrip убеждается, что сохранённый блоб возвращается
// при следующей загрузке.
func TestSessionBuffer_RoundTrip(t *testing.T) {
	b := NewSessionBuffer("")
	data := []byte("данные сессии")
	if err := b.StoreSession(context.Background(), data); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	got, err := b.LoadSession(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("блоб изменился: %q != %q", got, data)
	}
}

// TestSessionBuffer_DirtyTailOnly проверяет эвристику значимости: изменение
// только хвоста блоба (счётчики, server salt) диск не трогает.
func TestSessionBuffer_DirtyTailOnly(t *testing.T) {
	original := blobWithTail('a', 'x')
	b := NewSessionBuffer(base64.StdEncoding.EncodeToString(original))

	// Меняется только хвост, префикс совпадает
	if err := b.StoreSession(context.Background(), blobWithTail('a', 'y')); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if _, dirty := b.Dirty(false); dirty {
		t.Fatalf("дрейф хвоста не должен считаться значимым изменением")
	}

	// force пропускает эвристику
	if _, dirty := b.Dirty(true); !dirty {
		t.Fatalf("force должен отдавать блоб даже при изменении хвоста")
	}
}

// TestSessionBuffer_DirtyPrefixChange проверяет, что изменение в значимом
// префиксе (смена датацентра или ключа) требует записи на диск.
func TestSessionBuffer_DirtyPrefixChange(t *testing.T) {
	b := NewSessionBuffer(base64.StdEncoding.EncodeToString(blobWithTail('a', 'x')))

	if err := b.StoreSession(context.Background(), blobWithTail('b', 'x')); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	blob, dirty := b.Dirty(false)
	if !dirty {
		t.Fatalf("изменение префикса должно быть значимым")
	}
	if blob == "" {
		t.Fatalf("блоб для записи пуст")
	}

	// После фиксации записи буфер чист
	b.MarkStored(blob)
	if _, dirty := b.Dirty(false); dirty {
		t.Fatalf("после MarkStored буфер должен быть чистым")
	}
}

// TestSessionBuffer_DirtyUnchanged убеждается, что без изменений блоб не
// пишется даже с force.
func TestSessionBuffer_DirtyUnchanged(t *testing.T) {
	raw := blobWithTail('a', 'x')
	b := NewSessionBuffer(base64.StdEncoding.EncodeToString(raw))
	if err := b.StoreSession(context.Background(), raw); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if _, dirty := b.Dirty(true); dirty {
		t.Fatalf("идентичный блоб не должен считаться грязным")
	}
}

// TestSessionBuffer_ShortBlob проверяет работу эвристики на блобах короче
// значимой границы: сравнивается весь блоб.
func TestSessionBuffer_ShortBlob(t *testing.T) {
	b := NewSessionBuffer(base64.StdEncoding.EncodeToString([]byte("short")))
	if err := b.StoreSession(context.Background(), []byte("другой")); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	blob, dirty := b.Dirty(false)
	if !dirty {
		t.Fatalf("изменение короткого блоба должно быть значимым")
	}
	if decoded, _ := base64.StdEncoding.DecodeString(blob); !strings.Contains(string(decoded), "другой") {
		t.Fatalf("в блоб попали не те данные: %q", decoded)
	}
}
