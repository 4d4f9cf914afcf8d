package config

import (
	"encoding/json"
	"fmt"
	"os"

	"promo_go/internal/common"

	"github.com/ghodss/yaml"
)

// Config — настройки запуска из config.yml. Файлы аккаунтов, каналов и
// реестров задаются путями; всё остальное управляет циклом действий.
type Config struct {
	AccountsFile string `json:"accounts_file"`
	ChannelsFile string `json:"channels_file"`
	StickersFile string `json:"stickers_file"`
	LedgerDir    string `json:"ledger_dir"`
	LogsDir      string `json:"logs_dir"`

	SaveLogs        bool `json:"save_logs"`
	RunInfiniteLoop bool `json:"run_infinite_loop"`

	CycleIntervalMinutes  int `json:"cycle_interval_minutes"`
	MaxCycles             int `json:"max_cycles"`
	ConnectTimeoutSeconds int `json:"connect_timeout_seconds"`

	// Выбор каналов и аккаунтов для фазы комментирования; номера с единицы,
	// пустой список означает "все".
	SelectedChannels []int `json:"selected_channels"`
	SelectedAccounts []int `json:"selected_accounts"`

	CommentDelay  common.Range `json:"comment_delay"`
	AccountDelay  common.Range `json:"account_delay"`
	CommentsCount common.Range `json:"comments_count"`
	// Вероятности — указатели: явный ноль в конфигурации отключает
	// поведение и не должен затираться значением по умолчанию.
	GeneralReplyProbability *int   `json:"general_reply_probability"`
	StickerProbability      *int   `json:"sticker_probability"`
	PersonalityMode         string `json:"personality_mode"`
	CheckSpamStatus         bool   `json:"check_spam_status"`
	GeneratorURL            string `json:"generator_url"`

	EnableComments   bool `json:"enable_comments"`
	EnableReactions  bool `json:"enable_reactions"`
	EnableFavorites  bool `json:"enable_favorites"`
	EnableForwarding bool `json:"enable_forwarding"`

	// Реакции: канал → список допустимых эмодзи.
	Reactions                 map[string][]string `json:"reactions"`
	ReactionsSelectedAccounts []int               `json:"reactions_selected_accounts"`
	ReactionsAccountDelay     common.Range        `json:"reactions_account_delay"`

	Favorites                 []string     `json:"favorites"`
	FavoritesSelectedAccounts []int        `json:"favorites_selected_accounts"`
	FavoritesAccountDelay     common.Range `json:"favorites_account_delay"`

	Forward Forward `json:"forward"`
}

// Forward — настройки пересылки: источники, два независимых канала
// назначения и выбор исполнителя ("0" — первый аккаунт, номер или "bot").
type Forward struct {
	FromChannels []string `json:"from_channels"`
	ToChannel    string   `json:"to_channel"`
	ToChannel2   string   `json:"to_channel_2"`

	Account              string `json:"account"`
	CheckIntervalMinutes int    `json:"check_interval_minutes"`
}

// Load читает config.yml. YAML конвертируется в JSON и распаковывается в
// типизированную структуру; незаполненные поля получают значения по умолчанию.
func Load(path string) (*Config, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение %s: %w", path, err)
	}
	jsonData, err := yaml.YAMLToJSON(yamlData)
	if err != nil {
		return nil, fmt.Errorf("разбор %s: %w", path, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(jsonData, cfg); err != nil {
		return nil, fmt.Errorf("структура %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AccountsFile == "" {
		c.AccountsFile = "accounts.csv"
	}
	if c.ChannelsFile == "" {
		c.ChannelsFile = "channels.txt"
	}
	if c.StickersFile == "" {
		c.StickersFile = "stickers.txt"
	}
	if c.LedgerDir == "" {
		c.LedgerDir = "."
	}
	if c.LogsDir == "" {
		c.LogsDir = "logs"
	}
	if c.CycleIntervalMinutes == 0 {
		c.CycleIntervalMinutes = 60
	}
	if c.ConnectTimeoutSeconds == 0 {
		c.ConnectTimeoutSeconds = 30
	}
	if c.CommentDelay == (common.Range{}) {
		c.CommentDelay = common.Range{Min: 15, Max: 30}
	}
	if c.AccountDelay == (common.Range{}) {
		c.AccountDelay = common.Range{Min: 60, Max: 120}
	}
	if c.CommentsCount == (common.Range{}) {
		c.CommentsCount = common.Range{Min: 1, Max: 5}
	}
	if c.GeneralReplyProbability == nil {
		v := 50
		c.GeneralReplyProbability = &v
	}
	if c.StickerProbability == nil {
		v := 10
		c.StickerProbability = &v
	}
	if c.PersonalityMode == "" {
		c.PersonalityMode = "auto"
	}
	if c.ReactionsAccountDelay == (common.Range{}) {
		c.ReactionsAccountDelay = common.Range{Min: 2, Max: 5}
	}
	if c.FavoritesAccountDelay == (common.Range{}) {
		c.FavoritesAccountDelay = common.Range{Min: 2, Max: 5}
	}
	if c.Forward.Account == "" {
		c.Forward.Account = "0"
	}
	if c.Forward.CheckIntervalMinutes == 0 {
		c.Forward.CheckIntervalMinutes = 1
	}
}
