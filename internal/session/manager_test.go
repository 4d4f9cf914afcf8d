package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"promo_go/models"
	"promo_go/pkg/storage"
	tgclient "promo_go/pkg/telegram"
)

func newTestManager(t *testing.T, session string) (*Manager, *models.Account, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.csv")
	csv := "phone,api_id,api_hash,password,session,proxy\n+7900,111,hash,pass," + session + ",\n"
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatalf("не удалось подготовить accounts.csv: %v", err)
	}
	accounts := storage.NewAccountFile(path)
	return NewManager(accounts, nil, 5*time.Second), &models.Account{Phone: "+7900", Session: session}, path
}

// TestManaged_Reuse убеждается, что для одного номера всегда возвращается
// одна и та же управляемая запись.
func TestManaged_Reuse(t *testing.T) {
	mgr, acc, _ := newTestManager(t, "")
	m1 := mgr.Managed(acc)
	m2 := mgr.Managed(acc)
	if m1 != m2 {
		t.Fatalf("повторный запрос должен возвращать ту же запись")
	}
}

// TestPersistCredentials_SignificantChange проверяет, что значимое изменение
// сессии доезжает до accounts.csv.
func TestPersistCredentials_SignificantChange(t *testing.T) {
	original := bytes.Repeat([]byte{'a'}, 120)
	mgr, acc, path := newTestManager(t, base64.StdEncoding.EncodeToString(original))
	acc.Session = base64.StdEncoding.EncodeToString(original)
	m := mgr.Managed(acc)

	// Клиент получил новый авторизационный ключ
	changed := bytes.Repeat([]byte{'b'}, 120)
	if err := m.buf.StoreSession(context.Background(), changed); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if err := mgr.PersistCredentials(m, false); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("accounts.csv не читается: %v", err)
	}
	if !strings.Contains(string(raw), base64.StdEncoding.EncodeToString(changed)) {
		t.Fatalf("новая сессия не записана в accounts.csv")
	}

	// Повторный вызов ничего не пишет: буфер уже чист
	if err := mgr.PersistCredentials(m, false); err != nil {
		t.Fatalf("неожиданная ошибка повторного сохранения: %v", err)
	}
}

// TestPersistCredentials_TailDrift проверяет, что дрейф хвоста блоба
// (счётчики, server salt) диск не трогает без force.
func TestPersistCredentials_TailDrift(t *testing.T) {
	original := append(bytes.Repeat([]byte{'a'}, 90), bytes.Repeat([]byte{'x'}, 30)...)
	encoded := base64.StdEncoding.EncodeToString(original)
	mgr, acc, path := newTestManager(t, encoded)
	acc.Session = encoded
	m := mgr.Managed(acc)

	drifted := append(bytes.Repeat([]byte{'a'}, 90), bytes.Repeat([]byte{'y'}, 30)...)
	if err := m.buf.StoreSession(context.Background(), drifted); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	before, _ := os.ReadFile(path)
	if err := mgr.PersistCredentials(m, false); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Fatalf("дрейф хвоста не должен переписывать accounts.csv")
	}

	// force записывает даже дрейф хвоста
	if err := mgr.PersistCredentials(m, true); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	after, _ = os.ReadFile(path)
	if !strings.Contains(string(after), base64.StdEncoding.EncodeToString(drifted)) {
		t.Fatalf("force должен записать блоб на диск")
	}
}

// TestPersistCredentials_DBMode убеждается, что в режиме хранения сессий в БД
// метод не трогает accounts.csv.
func TestPersistCredentials_DBMode(t *testing.T) {
	mgr, _, _ := newTestManager(t, "")
	m := &Managed{Account: &models.Account{Phone: "+7900"}}
	if err := mgr.PersistCredentials(m, true); err != nil {
		t.Fatalf("в режиме БД сохранение должно быть no-op: %v", err)
	}
}

// TestConnect_AliveConnectionKept проверяет, что Connect не пересоздаёт
// живое соединение: им может пользоваться параллельный цикл пересылки.
func TestConnect_AliveConnectionKept(t *testing.T) {
	mgr, acc, _ := newTestManager(t, "")
	m := mgr.Managed(acc)

	// Соединение без закрытого канала остановки считается живым
	conn := &tgclient.Conn{}
	m.conn = conn

	if err := mgr.Connect(context.Background(), m); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if m.conn != conn {
		t.Fatalf("живое соединение было заменено")
	}
}

// TestConnect_SkippedAccount убеждается, что исключённый аккаунт не
// переподключается и возвращает распознаваемую ошибку.
func TestConnect_SkippedAccount(t *testing.T) {
	mgr, acc, _ := newTestManager(t, "")
	m := mgr.Managed(acc)
	m.skipped = true

	if err := mgr.Connect(context.Background(), m); !errors.Is(err, ErrSkipped) {
		t.Fatalf("ожидался ErrSkipped, получено %v", err)
	}
}

// TestManagedAPI_ConcurrentSwap гоняет чтение соединения параллельно с его
// заменой: доступ к указателю обязан идти под мьютексом (ловится -race).
func TestManagedAPI_ConcurrentSwap(t *testing.T) {
	mgr, acc, _ := newTestManager(t, "")
	m := mgr.Managed(acc)
	m.conn = &tgclient.Conn{}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = m.API()
		}
	}()
	for i := 0; i < 1000; i++ {
		m.mu.Lock()
		m.conn = &tgclient.Conn{}
		m.mu.Unlock()
	}
	wg.Wait()
}

// TestManagedState_Skipped проверяет, что исключённый аккаунт отображается
// как unauthorized.
func TestManagedState_Skipped(t *testing.T) {
	m := &Managed{Account: &models.Account{Phone: "+7900"}, skipped: true}
	if got := m.State(); got != Unauthorized {
		t.Fatalf("ожидалось unauthorized, получено %s", got)
	}
}

// TestStateString проверяет имена состояний для мониторинга.
func TestStateString(t *testing.T) {
	cases := map[State]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
		Unauthorized: "unauthorized",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, ожидалось %q", state, got, want)
		}
	}
}
