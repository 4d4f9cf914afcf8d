package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// TextGenerator порождает текст комментария по тексту поста.
// Реализация может вернуть строку-ошибку вместо error — вызывающий обязан
// проверять результат через IsErrorText.
type TextGenerator interface {
	Generate(ctx context.Context, postText string, opts Options) (string, error)
}

// Options — параметры генерации.
type Options struct {
	GeneralReplyProb int    `json:"general_reply_prob"`
	PersonalityMode  string `json:"personality_mode"`
}

// Ключевые слова, по которым распознаётся строка-ошибка генератора.
var errorKeywords = []string{
	"ошибка",
	"error",
	"не удалось",
	"failed",
	"нет доступных",
	"ошибка генерации",
	"ошибка: не удалось",
}

// IsErrorText сообщает, является ли результат генерации сообщением об ошибке.
// Пустая строка тоже считается ошибкой.
func IsErrorText(comment string) bool {
	if comment == "" {
		return true
	}
	lower := strings.ToLower(comment)
	for _, kw := range errorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// HTTPGenerator вызывает внешний сервис генерации комментариев.
type HTTPGenerator struct {
	URL    string
	client *retryablehttp.Client
}

func NewHTTPGenerator(url string) *HTTPGenerator {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.Logger = nil
	return &HTTPGenerator{URL: url, client: c}
}

// Generate запрашивает комментарий у внешнего сервиса.
func (g *HTTPGenerator) Generate(ctx context.Context, postText string, opts Options) (string, error) {
	payload, err := json.Marshal(struct {
		PostText string `json:"post_text"`
		Options
	}{PostText: postText, Options: opts})
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("сервис генерации: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ответ сервиса генерации: %w", err)
	}
	return out.Comment, nil
}
