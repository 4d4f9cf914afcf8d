package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Слоты назначения для реестра пересылок. Один и тот же пост может быть
// переслан в два независимых канала, у каждого свой дедуп-ключ.
const (
	SlotPrimary   = "основной"
	SlotSecondary = "второй"
)

// Kind определяет формат строки файла реестра.
type Kind int

const (
	KindCommented Kind = iota // phone channel post_id count
	KindReacted               // phone channel post_id
	KindFavorited             // phone channel post_id
	KindForwarded             // phone channel slot post_id
)

// Key — ключ дедупликации. Slot заполняется только для пересылок.
type Key struct {
	Phone   string
	Channel string
	Slot    string
}

// Record — последнее зафиксированное действие по ключу.
// Count используется только реестром комментариев.
type Record struct {
	PostID int
	Count  int
}

// Ledger — durable-реестр "кто что уже сделал" поверх плоского файла.
// Единственный примитив записи — полная перезапись файла, поэтому после
// каждого RecordAction состояние на диске соответствует памяти.
// Все операции сериализуются мьютексом: быстрый цикл пересылки и основной
// цикл могут работать с одним реестром одновременно.
type Ledger struct {
	path string
	kind Kind

	mu   sync.Mutex
	data map[Key]Record
}

func NewLedger(path string, kind Kind) *Ledger {
	return &Ledger{path: path, kind: kind, data: make(map[Key]Record)}
}

// Load читает файл реестра. Отсутствующий или пустой файл — пустой реестр.
// Некорректные строки пропускаются с предупреждением и не прерывают загрузку.
func (l *Ledger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.data = make(map[Key]Record)

	raw, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("чтение реестра %s: %w", l.path, err)
	}

	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, rec, err := l.parseLine(line)
		if err != nil {
			log.Printf("[LEDGER] пропускаем некорректную строку в %s: %q (%v)", l.path, line, err)
			continue
		}
		l.data[key] = rec
	}
	return nil
}

// parseLine разбирает одну строку с учётом устаревших коротких форматов.
func (l *Ledger) parseLine(line string) (Key, Record, error) {
	parts := strings.Fields(line)
	switch l.kind {
	case KindCommented:
		switch len(parts) {
		case 4:
			postID, err := strconv.Atoi(parts[2])
			if err != nil {
				return Key{}, Record{}, err
			}
			count, err := strconv.Atoi(parts[3])
			if err != nil {
				return Key{}, Record{}, err
			}
			return Key{Phone: parts[0], Channel: parts[1]}, Record{PostID: postID, Count: count}, nil
		case 3:
			// Старый формат без счётчика — считаем один комментарий
			postID, err := strconv.Atoi(parts[2])
			if err != nil {
				return Key{}, Record{}, err
			}
			return Key{Phone: parts[0], Channel: parts[1]}, Record{PostID: postID, Count: 1}, nil
		}
	case KindReacted, KindFavorited:
		if len(parts) == 3 {
			postID, err := strconv.Atoi(parts[2])
			if err != nil {
				return Key{}, Record{}, err
			}
			return Key{Phone: parts[0], Channel: parts[1]}, Record{PostID: postID}, nil
		}
	case KindForwarded:
		switch {
		case len(parts) >= 4:
			postID, err := strconv.Atoi(parts[3])
			if err != nil {
				return Key{}, Record{}, err
			}
			return Key{Phone: parts[0], Channel: parts[1], Slot: parts[2]}, Record{PostID: postID}, nil
		case len(parts) == 3:
			// Старый формат без слота — мигрируем в основной канал назначения
			postID, err := strconv.Atoi(parts[2])
			if err != nil {
				return Key{}, Record{}, err
			}
			return Key{Phone: parts[0], Channel: parts[1], Slot: SlotPrimary}, Record{PostID: postID}, nil
		}
	}
	return Key{}, Record{}, fmt.Errorf("неожиданное число полей: %d", len(strings.Fields(line)))
}

func (l *Ledger) formatLine(key Key, rec Record) string {
	switch l.kind {
	case KindCommented:
		return fmt.Sprintf("%s %s %d %d", key.Phone, key.Channel, rec.PostID, rec.Count)
	case KindForwarded:
		return fmt.Sprintf("%s %s %s %d", key.Phone, key.Channel, key.Slot, rec.PostID)
	default:
		return fmt.Sprintf("%s %s %d", key.Phone, key.Channel, rec.PostID)
	}
}

func (l *Ledger) header() string {
	switch l.kind {
	case KindFavorited:
		return "# Файл для отслеживания последних добавлений в избранное\n# Формат: phone channel post_id\n\n"
	case KindForwarded:
		return "# Файл для отслеживания последних пересылок\n# Формат: phone channel slot post_id\n\n"
	}
	return ""
}

// save переписывает файл целиком через временный файл и rename,
// чтобы при сбое записи прежний файл остался нетронутым.
func (l *Ledger) save() error {
	keys := make([]Key, 0, len(l.data))
	for k := range l.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Phone != b.Phone {
			return a.Phone < b.Phone
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return a.Slot < b.Slot
	})

	var sb strings.Builder
	sb.WriteString(l.header())
	for _, k := range keys {
		sb.WriteString(l.formatLine(k, l.data[k]))
		sb.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("временный файл реестра: %w", err)
	}
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("запись реестра: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("закрытие реестра: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("замена файла реестра: %w", err)
	}
	return nil
}

// Save принудительно сбрасывает текущее состояние на диск.
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save()
}

// Get возвращает запись по ключу; второе значение — есть ли запись вообще.
func (l *Ledger) Get(key Key) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.data[key]
	return rec, ok
}

// HasActed сообщает, было ли действие уже выполнено для данного поста.
// Сравнение строго по равенству: "последний пост" может откатиться.
func (l *Ledger) HasActed(key Key, postID int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasActed(key, postID)
}

func (l *Ledger) hasActed(key Key, postID int) bool {
	rec, ok := l.data[key]
	return ok && rec.PostID == postID
}

// RecordAction фиксирует действие и сразу сохраняет файл. Если пост сменился,
// счётчик сбрасывается перед прибавлением delta: новая публикация открывает
// квоту заново.
func (l *Ledger) RecordAction(key Key, postID, delta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recordAction(key, postID, delta)
}

func (l *Ledger) recordAction(key Key, postID, delta int) error {
	rec := l.data[key]
	if rec.PostID != postID {
		rec.PostID = postID
		rec.Count = 0
	}
	rec.Count += delta
	l.data[key] = rec
	return l.save()
}

// Tx даёт доступ к реестру внутри Exclusive без повторного захвата мьютекса.
type Tx struct{ l *Ledger }

func (tx *Tx) Get(key Key) (Record, bool)             { rec, ok := tx.l.data[key]; return rec, ok }
func (tx *Tx) HasActed(key Key, postID int) bool      { return tx.l.hasActed(key, postID) }
func (tx *Tx) RecordAction(key Key, postID, delta int) error {
	return tx.l.recordAction(key, postID, delta)
}

// Exclusive выполняет fn под монопольной блокировкой реестра. Используется,
// когда между проверкой и записью стоит удалённый вызов: два конкурирующих
// цикла не должны оба "выиграть" проверку дубликата для одного ключа.
func (l *Ledger) Exclusive(fn func(tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(&Tx{l: l})
}

// Len возвращает число записей (для логов и мониторинга).
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.data)
}
