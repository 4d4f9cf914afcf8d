package storage

import (
	"context"
	"database/sql"
	"log"

	"github.com/gotd/td/session"
)

// DBSessionStorage хранит и загружает сессии Telegram из таблицы account_session.
// Ключ — номер телефона аккаунта; на аккаунт существует не более одной записи.
type DBSessionStorage struct {
	DB    *sql.DB
	Phone string
}

// LoadSession загружает текст сессии из БД.
func (s *DBSessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	if s == nil || s.DB == nil {
		return nil, session.ErrNotFound
	}

	var data string
	err := s.DB.QueryRowContext(ctx, "SELECT data_json FROM account_session WHERE phone = $1", s.Phone).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, session.ErrNotFound
	}
	if err != nil {
		log.Printf("[DBSessionStorage] ошибка чтения сессии: %v", err)
		return nil, err
	}
	return []byte(data), nil
}

// StoreSession сохраняет текст сессии в БД.
func (s *DBSessionStorage) StoreSession(ctx context.Context, data []byte) error {
	if s == nil || s.DB == nil {
		return session.ErrNotFound
	}
	// Обновляем существующую запись сессии, чтобы не создавать дубликаты
	_, err := s.DB.ExecContext(
		ctx,
		"INSERT INTO account_session (phone, data_json) VALUES ($1, $2) "+
			"ON CONFLICT (phone) DO UPDATE SET data_json = EXCLUDED.data_json, date_time = NOW()",
		s.Phone,
		string(data),
	)
	if err != nil {
		log.Printf("[DBSessionStorage] ошибка сохранения сессии: %v", err)
		return err
	}
	return nil
}
