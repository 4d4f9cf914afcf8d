package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"promo_go/models"
	"promo_go/pkg/storage"
	tgclient "promo_go/pkg/telegram"

	"github.com/gotd/td/session"
	"github.com/gotd/td/tg"
)

// ErrUnauthorized означает, что аккаунту нужен интерактивный вход.
// Такой аккаунт исключается до конца запуска и повторно не пробуется.
var ErrUnauthorized = errors.New("аккаунт не авторизован")

// ErrSkipped означает, что аккаунт уже помечен как исключённый.
var ErrSkipped = errors.New("аккаунт исключён до конца запуска")

// State — состояние соединения аккаунта.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Unauthorized
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Unauthorized:
		return "unauthorized"
	default:
		return "disconnected"
	}
}

// Managed — аккаунт под управлением менеджера: клиент, соединение и буфер
// сессии. Соединение принадлежит только этому аккаунту и между аккаунтами
// не разделяется.
type Managed struct {
	Account *models.Account

	buf   *tgclient.SessionBuffer // nil в режиме хранения сессий в БД
	store session.Storage
	conn  *tgclient.Conn

	mu      sync.Mutex
	state   State
	skipped bool
}

// State возвращает текущее состояние соединения.
func (m *Managed) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skipped {
		return Unauthorized
	}
	if m.conn.Alive() {
		return m.state
	}
	return Disconnected
}

// API возвращает клиента запросов текущего соединения. Указатель на
// соединение читается под мьютексом: dial может заменить его параллельно.
func (m *Managed) API() *tg.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn.API
}

// Self возвращает собственного пользователя аккаунта.
func (m *Managed) Self(ctx context.Context) (*tg.User, error) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	return conn.Client.Self(ctx)
}

// Manager владеет соединениями всех аккаунтов: подключение с таймаутом,
// идемпотентное восстановление и политика сохранения учётных данных.
type Manager struct {
	accounts *storage.AccountFile
	db       *storage.DB // nil, если сессии живут в accounts.csv
	timeout  time.Duration

	mu      sync.Mutex
	managed map[string]*Managed
}

func NewManager(accounts *storage.AccountFile, db *storage.DB, timeout time.Duration) *Manager {
	return &Manager{
		accounts: accounts,
		db:       db,
		timeout:  timeout,
		managed:  make(map[string]*Managed),
	}
}

// Managed возвращает (создавая при первом обращении) управляемую запись
// аккаунта с выбранным хранилищем сессии.
func (mgr *Manager) Managed(acc *models.Account) *Managed {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if m, ok := mgr.managed[acc.Phone]; ok {
		return m
	}
	m := &Managed{Account: acc}
	if mgr.db != nil {
		m.store = &storage.DBSessionStorage{DB: mgr.db.Conn, Phone: acc.Phone}
	} else {
		m.buf = tgclient.NewSessionBuffer(acc.Session)
		m.store = m.buf
	}
	mgr.managed[acc.Phone] = m
	return m
}

// States возвращает снимок состояний всех аккаунтов (для мониторинга).
func (mgr *Manager) States() map[string]string {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	out := make(map[string]string, len(mgr.managed))
	for phone, m := range mgr.managed {
		out[phone] = m.State().String()
	}
	return out
}

// Connect подключает аккаунт с ограниченным таймаутом и проверяет
// авторизацию. Живое соединение не пересоздаётся: им может прямо сейчас
// пользоваться быстрый цикл пересылки. Неавторизованный аккаунт помечается
// исключённым: решать интерактивный вход автоматически запрещено намеренно.
func (mgr *Manager) Connect(ctx context.Context, m *Managed) error {
	m.mu.Lock()
	if m.skipped {
		m.mu.Unlock()
		return ErrSkipped
	}
	if m.conn.Alive() {
		m.mu.Unlock()
		return nil
	}
	m.state = Connecting
	m.mu.Unlock()

	if err := mgr.dial(ctx, m); err != nil {
		m.mu.Lock()
		m.state = Disconnected
		m.mu.Unlock()
		return err
	}

	// Сохраняем сессию после успешного подключения (без принуждения)
	if err := mgr.PersistCredentials(m, false); err != nil {
		log.Printf("[SESSION] %s: не удалось сохранить сессию: %v", m.Account.Phone, err)
	}
	return nil
}

// dial поднимает соединение и валидирует авторизацию.
func (mgr *Manager) dial(ctx context.Context, m *Managed) error {
	client, err := tgclient.NewClient(m.Account, m.store)
	if err != nil {
		return err
	}
	conn, err := tgclient.Connect(client, mgr.timeout)
	if err != nil {
		return fmt.Errorf("аккаунт %s: %w", m.Account.Phone, err)
	}

	authorized, err := conn.Authorized(ctx)
	if err != nil {
		conn.Close()
		return fmt.Errorf("проверка авторизации %s: %w", m.Account.Phone, err)
	}
	if !authorized {
		conn.Close()
		m.mu.Lock()
		m.skipped = true
		m.state = Unauthorized
		m.mu.Unlock()
		log.Printf("[SESSION] ⚠️ аккаунт %s требует интерактивный вход — исключаем до конца запуска", m.Account.Phone)
		return ErrUnauthorized
	}

	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.conn = conn
	m.state = Connected
	m.mu.Unlock()
	return nil
}

// EnsureConnected идемпотентно гарантирует рабочее соединение: живое
// соединение не трогается, мёртвое переподключается, при неудаче делается
// один проход отключение/пауза/подключение. После любого переподключения
// сессия сохраняется принудительно — мог смениться датацентр.
func (mgr *Manager) EnsureConnected(ctx context.Context, m *Managed) error {
	m.mu.Lock()
	if m.skipped {
		m.mu.Unlock()
		return ErrSkipped
	}
	alive := m.conn.Alive()
	m.mu.Unlock()
	if alive {
		return nil
	}

	log.Printf("[SESSION] ⚠️ соединение %s потеряно, переподключаемся", m.Account.Phone)
	if err := mgr.dial(ctx, m); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		// Один восстановительный проход: отключиться, подождать, подключиться
		m.mu.Lock()
		if m.conn != nil {
			m.conn.Close()
		}
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
		if err := mgr.dial(ctx, m); err != nil {
			return fmt.Errorf("восстановление соединения %s: %w", m.Account.Phone, err)
		}
	}

	if err := mgr.PersistCredentials(m, true); err != nil {
		log.Printf("[SESSION] %s: не удалось сохранить сессию после переподключения: %v", m.Account.Phone, err)
	}
	return nil
}

// PersistCredentials переносит блоб сессии на диск. Без force пишется только
// значимое изменение (смена датацентра или ключа); дрейф счётчиков в хвосте
// блоба диск не трогает. В режиме БД блоб сохраняет само хранилище gotd.
func (mgr *Manager) PersistCredentials(m *Managed, force bool) error {
	if m.buf == nil {
		return nil
	}
	blob, ok := m.buf.Dirty(force)
	if !ok {
		return nil
	}
	if err := mgr.accounts.UpdateSession(m.Account.Phone, blob); err != nil {
		return err
	}
	m.buf.MarkStored(blob)
	log.Printf("[SESSION] 💾 сессия %s сохранена", m.Account.Phone)
	return nil
}

// Disconnect закрывает соединение аккаунта.
func (mgr *Manager) Disconnect(m *Managed) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.state = Disconnected
}

// DisconnectAll закрывает все соединения при завершении работы.
func (mgr *Manager) DisconnectAll() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for _, m := range mgr.managed {
		m.mu.Lock()
		if m.conn != nil {
			m.conn.Close()
		}
		m.state = Disconnected
		m.mu.Unlock()
	}
}
