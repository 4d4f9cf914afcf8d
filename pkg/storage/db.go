package storage

import "database/sql"

// DB оборачивает подключение к Postgres. Используется как необязательное
// хранилище сессий аккаунтов, когда задан DATABASE_URL.
type DB struct {
	Conn *sql.DB
}

func NewDB(conn *sql.DB) *DB {
	return &DB{Conn: conn}
}
