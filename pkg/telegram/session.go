package telegram

import (
	"context"
	"encoding/base64"
	"sync"

	"github.com/gotd/td/session"
)

// SignificantPrefixLen — длина префикса сериализованной сессии, изменение
// которого считается значимым: префикс покрывает датацентр и авторизационный
// ключ. Дрейф счётчиков и server salt в хвосте блоба на диск не пишется.
const SignificantPrefixLen = 100

// SessionBuffer реализует session.Storage поверх строки из accounts.csv.
// Загрузка отдаёт последний известный блоб, сохранение обновляет только
// память: на диск блоб уходит через Dirty/MarkStored по решению менеджера
// сессий, чтобы не переписывать CSV на каждый сдвиг счётчиков.
type SessionBuffer struct {
	mu      sync.Mutex
	current []byte // то, что знает клиент
	stored  string // то, что лежит в accounts.csv (base64)
}

// NewSessionBuffer создаёт буфер из строки сессии, прочитанной из файла.
func NewSessionBuffer(encoded string) *SessionBuffer {
	b := &SessionBuffer{stored: encoded}
	if encoded != "" {
		if raw, err := base64.StdEncoding.DecodeString(encoded); err == nil {
			b.current = raw
		}
	}
	return b
}

// LoadSession отдаёт клиенту последний известный блоб.
func (b *SessionBuffer) LoadSession(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.current) == 0 {
		return nil, session.ErrNotFound
	}
	out := make([]byte, len(b.current))
	copy(out, b.current)
	return out, nil
}

// StoreSession принимает свежий блоб от клиента. Только память, без диска.
func (b *SessionBuffer) StoreSession(ctx context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = make([]byte, len(data))
	copy(b.current, data)
	return nil
}

// Dirty возвращает блоб для записи на диск, если изменение значимо.
// force пропускает эвристику: после переподключения мог смениться датацентр.
func (b *SessionBuffer) Dirty(force bool) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.current) == 0 {
		return "", false
	}
	encoded := base64.StdEncoding.EncodeToString(b.current)
	if encoded == b.stored {
		return "", false
	}
	if force {
		return encoded, true
	}
	if prefix(encoded) == prefix(b.stored) {
		// Изменился только хвост блоба — сохранять незачем
		return "", false
	}
	return encoded, true
}

// MarkStored фиксирует, что блоб записан на диск.
func (b *SessionBuffer) MarkStored(encoded string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stored = encoded
}

func prefix(s string) string {
	if len(s) > SignificantPrefixLen {
		return s[:SignificantPrefixLen]
	}
	return s
}
