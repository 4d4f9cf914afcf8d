package config

import (
	"context"
	"log"
	"time"

	"github.com/radovskyb/watcher"
)

// Watch следит за файлом конфигурации и шлёт сигнал в канал при изменении.
// Оркестратор перечитывает конфигурацию на границе цикла, не в середине.
func Watch(ctx context.Context, path string) <-chan struct{} {
	changed := make(chan struct{}, 1)

	w := watcher.New()
	w.SetMaxEvents(1)
	if err := w.Add(path); err != nil {
		log.Printf("[CONFIG] наблюдение за %s недоступно: %v", path, err)
		return changed
	}

	go func() {
		for {
			select {
			case <-w.Event:
				select {
				case changed <- struct{}{}:
				default:
				}
			case err := <-w.Error:
				log.Printf("[CONFIG] ошибка наблюдателя: %v", err)
			case <-ctx.Done():
				w.Close()
				return
			case <-w.Closed:
				return
			}
		}
	}()

	go func() {
		if err := w.Start(time.Second); err != nil {
			log.Printf("[CONFIG] наблюдатель не запустился: %v", err)
		}
	}()

	return changed
}
