package audit

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log — человекочитаемый след действий (какой комментарий в какой канал
// ушёл). Пишется в logs/ с ротацией, чтобы файл не рос бесконечно.
type Log struct {
	mu sync.Mutex
	w  *lumberjack.Logger
}

func New(dir, name string) *Log {
	return &Log{
		w: &lumberjack.Logger{
			Filename:   filepath.Join(dir, name),
			MaxSize:    10, // мегабайт
			MaxBackups: 3,
		},
	}
}

// Comment фиксирует отправленный комментарий.
func (l *Log) Comment(channel, comment string) {
	l.write(fmt.Sprintf("Channel: %s\nComment: %s\n---\n", channel, comment))
}

func (l *Log) write(line string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write([]byte(line)); err != nil {
		log.Printf("[AUDIT] ошибка записи: %v", err)
	}
}

// Close закрывает файл журнала.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.w.Close()
}
