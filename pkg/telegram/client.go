package telegram

import (
	"fmt"
	"log"

	"promo_go/models"

	"golang.org/x/net/proxy"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
)

// NewClient создаёт клиента Telegram для аккаунта. Сессия живёт в переданном
// хранилище, исходящие соединения при настроенном прокси идут через SOCKS5.
func NewClient(acc *models.Account, storage session.Storage) (*telegram.Client, error) {
	opts := telegram.Options{SessionStorage: storage}
	if p := acc.Proxy; p != nil {
		addr := fmt.Sprintf("%s:%d", p.IP, p.Port)
		var auth *proxy.Auth
		if p.Login != "" || p.Password != "" {
			auth = &proxy.Auth{User: p.Login, Password: p.Password}
		}
		d, err := proxy.SOCKS5("tcp", addr, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("proxy dialer: %w", err)
		}
		dc, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("proxy dialer missing context")
		}
		opts.Resolver = dcs.Plain(dcs.PlainOptions{Dial: dc.DialContext})
		log.Printf("[PROXY] %s via %s", acc.Phone, addr)
	}
	return telegram.NewClient(acc.ApiID, acc.ApiHash, opts), nil
}
