package storage

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"promo_go/models"
)

// AccountFile — accounts.csv: одна строка на аккаунт, обратно переписывается
// только колонка session. Записи сериализуются мьютексом, так как сохранять
// сессию могут несколько исполнителей.
type AccountFile struct {
	path string
	mu   sync.Mutex
}

func NewAccountFile(path string) *AccountFile {
	return &AccountFile{path: path}
}

var accountColumns = []string{"phone", "api_id", "api_hash", "password", "session", "proxy"}

// Load читает все аккаунты. Строка с ошибкой пропускается, а не валит загрузку.
func (f *AccountFile) Load() ([]*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows, header, err := f.readAll()
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, col := range accountColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("в %s отсутствует колонка %q", f.path, col)
		}
	}

	var accounts []*models.Account
	for n, row := range rows {
		apiID, err := strconv.Atoi(strings.TrimSpace(row[idx["api_id"]]))
		if err != nil {
			log.Printf("[ACCOUNTS] строка %d: некорректный api_id: %v", n+2, err)
			continue
		}
		proxy, err := models.ParseProxy(row[idx["proxy"]])
		if err != nil {
			log.Printf("[ACCOUNTS] строка %d: %v, аккаунт загружен без прокси", n+2, err)
		}
		accounts = append(accounts, &models.Account{
			Phone:    strings.TrimSpace(row[idx["phone"]]),
			ApiID:    apiID,
			ApiHash:  strings.TrimSpace(row[idx["api_hash"]]),
			Password: strings.TrimSpace(row[idx["password"]]),
			Session:  strings.TrimSpace(row[idx["session"]]),
			Proxy:    proxy,
		})
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("в %s не загружено ни одного аккаунта", f.path)
	}
	return accounts, nil
}

// UpdateSession переписывает колонку session для аккаунта с указанным номером.
func (f *AccountFile) UpdateSession(phone, session string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows, header, err := f.readAll()
	if err != nil {
		return err
	}
	sessionIdx, phoneIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "session":
			sessionIdx = i
		case "phone":
			phoneIdx = i
		}
	}
	if sessionIdx < 0 || phoneIdx < 0 {
		return fmt.Errorf("в %s нет колонок phone/session", f.path)
	}

	found := false
	for _, row := range rows {
		if strings.TrimSpace(row[phoneIdx]) == phone {
			row[sessionIdx] = session
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("аккаунт %s не найден в %s", phone, f.path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp*")
	if err != nil {
		return err
	}
	w := csv.NewWriter(tmp)
	if err := w.Write(header); err == nil {
		err = w.WriteAll(rows)
	}
	w.Flush()
	if err == nil {
		err = w.Error()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("запись %s: %w", f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (f *AccountFile) readAll() (rows [][]string, header []string, err error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, nil, fmt.Errorf("открытие %s: %w", f.path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("чтение %s: %w", f.path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%s пуст", f.path)
	}
	return all[1:], all[0], nil
}
