package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const accountsCSV = `phone,api_id,api_hash,password,session,proxy
+7900,111,hash1,pass1,sess1,1.2.3.4:1080:user:secret
+7901,не_число,hash2,pass2,sess2,
+7902,333,hash3,,sess3,
`

func newTestAccountFile(t *testing.T, content string) *AccountFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("не удалось подготовить accounts.csv: %v", err)
	}
	return NewAccountFile(path)
}

// TestAccountFileLoad проверяет, что корректные строки загружаются, а строка
// с нечисловым api_id пропускается, не прерывая загрузку.
func TestAccountFileLoad(t *testing.T) {
	f := newTestAccountFile(t, accountsCSV)
	accounts, err := f.Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("ожидалось 2 аккаунта, получено %d", len(accounts))
	}

	first := accounts[0]
	if first.Phone != "+7900" || first.ApiID != 111 || first.Session != "sess1" {
		t.Fatalf("первый аккаунт разобран неверно: %+v", first)
	}
	if first.Proxy == nil || first.Proxy.IP != "1.2.3.4" || first.Proxy.Port != 1080 {
		t.Fatalf("прокси первого аккаунта разобран неверно: %+v", first.Proxy)
	}
	if accounts[1].Proxy != nil {
		t.Fatalf("пустая колонка proxy должна давать nil, получено %+v", accounts[1].Proxy)
	}
}

// TestAccountFileLoad_MissingColumn убеждается, что отсутствие обязательной
// колонки — ошибка загрузки целиком.
func TestAccountFileLoad_MissingColumn(t *testing.T) {
	f := newTestAccountFile(t, "phone,api_id,api_hash,password,session\n+7900,111,h,p,s\n")
	if _, err := f.Load(); err == nil {
		t.Fatalf("ожидалась ошибка про отсутствующую колонку, но её нет")
	}
}

// TestAccountFileUpdateSession проверяет, что переписывается только колонка
// session нужного аккаунта, остальные данные не трогаются.
func TestAccountFileUpdateSession(t *testing.T) {
	f := newTestAccountFile(t, accountsCSV)
	if err := f.UpdateSession("+7902", "новая_сессия"); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	accounts, err := f.Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка повторной загрузки: %v", err)
	}
	var updated bool
	for _, acc := range accounts {
		switch acc.Phone {
		case "+7902":
			if acc.Session != "новая_сессия" {
				t.Fatalf("сессия не обновилась: %q", acc.Session)
			}
			updated = true
		case "+7900":
			if acc.Session != "sess1" {
				t.Fatalf("чужая сессия изменилась: %q", acc.Session)
			}
		}
	}
	if !updated {
		t.Fatalf("аккаунт +7902 пропал после перезаписи")
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatalf("файл не читается: %v", err)
	}
	if !strings.Contains(string(raw), "1.2.3.4:1080:user:secret") {
		t.Fatalf("колонка proxy потерялась при перезаписи")
	}
}

// TestAccountFileUpdateSession_UnknownPhone проверяет ошибку для неизвестного
// номера: файл при этом не меняется.
func TestAccountFileUpdateSession_UnknownPhone(t *testing.T) {
	f := newTestAccountFile(t, accountsCSV)
	if err := f.UpdateSession("+7999", "x"); err == nil {
		t.Fatalf("ожидалась ошибка про неизвестный номер, но её нет")
	}
}
