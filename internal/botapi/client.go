package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
)

// Client — клиент Bot API для пересылки постов. Бот должен быть
// администратором канала назначения.
type Client struct {
	token   string
	baseURL string
	http    *retryablehttp.Client
}

func NewClient(token string) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.Logger = nil
	return &Client{
		token:   token,
		baseURL: "https://api.telegram.org",
		http:    c,
	}
}

// Token возвращает токен бота (нужен для дедуп-ключа пересылок).
func (c *Client) Token() string { return c.token }

// LedgerPhone возвращает идентификатор бота для ключа реестра пересылок.
func (c *Client) LedgerPhone() string {
	t := c.token
	if len(t) > 10 {
		t = t[:10]
	}
	return "bot_" + t
}

// ForwardMessage пересылает сообщение через Bot API и возвращает ID нового
// сообщения в канале назначения.
func (c *Client) ForwardMessage(ctx context.Context, destChat, sourceChat string, messageID int) (int, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":      destChat,
		"from_chat_id": sourceChat,
		"message_id":   messageID,
	})
	if err != nil {
		return 0, err
	}

	url := fmt.Sprintf("%s/bot%s/forwardMessage", c.baseURL, c.token)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("bot api: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
		Result      struct {
			MessageID int `json:"message_id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("ответ bot api: %w", err)
	}
	if !out.OK {
		return 0, fmt.Errorf("bot api: %s", out.Description)
	}
	return out.Result.MessageID, nil
}
