package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"promo_go/internal/audit"
	"promo_go/internal/botapi"
	"promo_go/internal/config"
	"promo_go/internal/generator"
	"promo_go/internal/monitoring"
	"promo_go/internal/orchestrator"
	"promo_go/internal/session"
	"promo_go/pkg/storage"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// .env необязателен: переменные окружения могут прийти и снаружи
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config.yml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	setupLogging(cfg)

	// Опциональное хранение сессий в PostgreSQL вместо accounts.csv
	var db *storage.DB
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		dbConn, err := sql.Open("postgres", dsn)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer dbConn.Close()
		if err := dbConn.Ping(); err != nil {
			log.Fatalf("Database ping failed: %v", err)
		}
		db = storage.NewDB(dbConn)
		log.Printf("[MAIN] сессии хранятся в PostgreSQL")
	}

	ledgers := orchestrator.Ledgers{
		Commented: storage.NewLedger(filepath.Join(cfg.LedgerDir, "last_commented.txt"), storage.KindCommented),
		Reacted:   storage.NewLedger(filepath.Join(cfg.LedgerDir, "last_reacted.txt"), storage.KindReacted),
		Favorited: storage.NewLedger(filepath.Join(cfg.LedgerDir, "last_favorited.txt"), storage.KindFavorited),
		Forwarded: storage.NewLedger(filepath.Join(cfg.LedgerDir, "last_forwarded.txt"), storage.KindForwarded),
	}
	for name, l := range ledgerMap(ledgers) {
		if err := l.Load(); err != nil {
			log.Fatalf("Failed to load ledger %s: %v", name, err)
		}
	}

	accounts := storage.NewAccountFile(cfg.AccountsFile)
	sessions := session.NewManager(accounts, db, time.Duration(cfg.ConnectTimeoutSeconds)*time.Second)

	var bot *botapi.Client
	if token := os.Getenv("BOT_TOKEN"); token != "" {
		bot = botapi.NewClient(token)
	}

	auditLog := audit.New(cfg.LogsDir, "comments_audit.txt")
	defer auditLog.Close()

	status := monitoring.NewStatus(sessions.States, ledgerMap(ledgers))
	monitoring.StartServer(":"+getPort(), status)

	orch := orchestrator.New(cfgPath, cfg)
	orch.Sessions = sessions
	orch.Accounts = accounts
	orch.Ledgers = ledgers
	orch.Gen = generator.NewHTTPGenerator(cfg.GeneratorURL)
	orch.Bot = bot
	orch.Audit = auditLog
	orch.Status = status
	if cfg.CheckSpamStatus {
		orch.OperatorPrompt = promptSpamWait
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orch.Run(ctx); err != nil {
		log.Fatalf("Orchestrator failed: %v", err)
	}
	log.Printf("[MAIN] работа завершена")
}

// setupLogging дублирует журнал в файл с ротацией, если это включено.
func setupLogging(cfg *config.Config) {
	if !cfg.SaveLogs {
		return
	}
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogsDir, "promo.log"),
		MaxSize:    10, // мегабайт
		MaxBackups: 5,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotated))
}

func ledgerMap(l orchestrator.Ledgers) map[string]*storage.Ledger {
	return map[string]*storage.Ledger{
		"commented": l.Commented,
		"reacted":   l.Reacted,
		"favorited": l.Favorited,
		"forwarded": l.Forwarded,
	}
}

// promptSpamWait спрашивает оператора, сколько минут подождать перед
// комментированием с аккаунта (0 — не ждать). Некорректный ввод — не ждать.
func promptSpamWait(phone string) time.Duration {
	fmt.Printf("Аккаунт %s: проверьте спам-статус (@SpamBot). Сколько минут подождать? [0]: ", phone)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}

// Функция получения порта из переменных окружения
func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8080"
}
