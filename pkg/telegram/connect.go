package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
)

// ErrConnectTimeout возвращается, когда транспорт не поднялся за отведённое время.
var ErrConnectTimeout = errors.New("таймаут подключения к Telegram")

// Conn — работающее соединение аккаунта. Клиент gotd живёт, пока выполняется
// Run, поэтому Run запускается в отдельной горутине, а Conn держит отмену.
type Conn struct {
	Client *telegram.Client
	API    *tg.Client

	cancel  context.CancelFunc
	stopped chan struct{}
	runErr  error
}

// Connect поднимает соединение и ждёт инициализации не дольше timeout.
func Connect(client *telegram.Client, timeout time.Duration) (*Conn, error) {
	ctx, cancel := context.WithCancel(context.Background())
	initDone := make(chan struct{})
	stopped := make(chan struct{})

	c := &Conn{
		Client:  client,
		API:     tg.NewClient(client),
		cancel:  cancel,
		stopped: stopped,
	}

	go func() {
		defer close(stopped)
		c.runErr = client.Run(ctx, func(ctx context.Context) error {
			close(initDone)
			// Держим соединение открытым до отмены
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-initDone:
		return c, nil
	case <-stopped:
		cancel()
		if c.runErr != nil {
			return nil, fmt.Errorf("подключение: %w", c.runErr)
		}
		return nil, errors.New("клиент завершился до инициализации")
	case <-time.After(timeout):
		cancel()
		<-stopped
		return nil, ErrConnectTimeout
	}
}

// Alive сообщает, живо ли ещё соединение.
func (c *Conn) Alive() bool {
	if c == nil {
		return false
	}
	select {
	case <-c.stopped:
		return false
	default:
		return true
	}
}

// Close разрывает соединение и дожидается остановки клиента.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	c.cancel()
	<-c.stopped
	if c.runErr != nil && !errors.Is(c.runErr, context.Canceled) {
		return c.runErr
	}
	return nil
}

// Authorized проверяет, авторизован ли аккаунт. Интерактивный вход здесь
// не выполняется никогда.
func (c *Conn) Authorized(ctx context.Context) (bool, error) {
	status, err := c.Client.Auth().Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Authorized, nil
}
