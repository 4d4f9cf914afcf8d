package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"promo_go/internal/audit"
	"promo_go/internal/botapi"
	"promo_go/internal/comment"
	"promo_go/internal/common"
	"promo_go/internal/config"
	"promo_go/internal/favorite"
	"promo_go/internal/forward"
	"promo_go/internal/generator"
	"promo_go/internal/monitoring"
	"promo_go/internal/reaction"
	"promo_go/internal/session"
	"promo_go/pkg/storage"
)

// Ledgers — четыре реестра дедупликации, по одному на вид действия.
type Ledgers struct {
	Commented *storage.Ledger
	Reacted   *storage.Ledger
	Favorited *storage.Ledger
	Forwarded *storage.Ledger
}

// Orchestrator — верхний цикл: подключает аккаунты, гоняет фазы действий по
// матрице аккаунт×канал с рандомизированными паузами и повторяет по таймеру.
// Быстрый цикл пересылки работает параллельно основному и делит с ним реестр
// пересылок (сериализация — внутри реестра).
type Orchestrator struct {
	CfgPath  string
	Sessions *session.Manager
	Accounts *storage.AccountFile
	Ledgers  Ledgers
	Gen      generator.TextGenerator
	Bot      *botapi.Client // nil, если пересылка через бота не настроена
	Audit    *audit.Log
	Status   *monitoring.Status

	// OperatorPrompt спрашивает оператора, сколько ждать по спам-статусу
	// аккаунта. Нулевое значение — не ждать. Никогда не блокирующий
	// терминальный ввод внутри логики.
	OperatorPrompt func(phone string) time.Duration

	cfgMu  sync.Mutex
	cfg    *config.Config
	reload <-chan struct{}
}

func New(cfgPath string, cfg *config.Config) *Orchestrator {
	return &Orchestrator{CfgPath: cfgPath, cfg: cfg}
}

func (o *Orchestrator) config() *config.Config {
	o.cfgMu.Lock()
	defer o.cfgMu.Unlock()
	return o.cfg
}

// maybeReload перечитывает конфигурацию, если файл менялся. Вызывается
// только на границе цикла.
func (o *Orchestrator) maybeReload() {
	select {
	case <-o.reload:
	default:
		return
	}
	cfg, err := config.Load(o.CfgPath)
	if err != nil {
		log.Printf("[CONFIG] ❌ перечитать %s не удалось, работаем со старой: %v", o.CfgPath, err)
		return
	}
	o.cfgMu.Lock()
	o.cfg = cfg
	o.cfgMu.Unlock()
	log.Printf("[CONFIG] ✅ конфигурация перечитана")
}

// Run крутит основной цикл до отмены контекста или исчерпания лимита циклов.
// Ошибка одного цикла логируется, следующий цикл идёт по расписанию.
// Внутренний контекст гасит быстрый цикл пересылки на любом пути завершения,
// включая лимит циклов и одноразовый запуск.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.reload = config.Watch(ctx, o.CfgPath)

	var wg sync.WaitGroup
	if o.config().EnableForwarding {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.fastForwardLoop(ctx)
		}()
		log.Printf("⚡ быстрый цикл пересылки запущен параллельно")
	}

	cycle := 0
loop:
	for {
		cycle++
		cfg := o.config()
		log.Printf("=== ЦИКЛ #%d ===", cycle)
		o.Status.CycleStarted(cycle)

		if err := o.runCycle(ctx, cfg); err != nil {
			if errors.Is(err, context.Canceled) {
				break loop
			}
			log.Printf("❌ цикл #%d завершился с ошибкой: %v", cycle, err)
		}

		if !cfg.RunInfiniteLoop {
			break loop
		}
		if cfg.MaxCycles > 0 && cycle >= cfg.MaxCycles {
			log.Printf("✅ достигнут лимит циклов (%d), завершение", cfg.MaxCycles)
			break loop
		}

		o.maybeReload()
		log.Printf("⏳ ожидание %d минут перед следующим циклом", cfg.CycleIntervalMinutes)
		select {
		case <-ctx.Done():
			break loop
		case <-time.After(time.Duration(cfg.CycleIntervalMinutes) * time.Minute):
		}
	}

	cancel()
	wg.Wait()
	o.Sessions.DisconnectAll()
	return nil
}

// runCycle выполняет один полный проход: подключение аккаунтов и фазы в
// фиксированном порядке пересылка → реакции → избранное → комментарии.
func (o *Orchestrator) runCycle(ctx context.Context, cfg *config.Config) error {
	accounts, err := o.Accounts.Load()
	if err != nil {
		return err
	}
	log.Printf("📱 загружено %d аккаунтов", len(accounts))

	var connected []*session.Managed
	for _, acc := range accounts {
		m := o.Sessions.Managed(acc)
		if err := o.Sessions.Connect(ctx, m); err != nil {
			// Исключённый аккаунт уже был доложен один раз, дальше молчим
			if connectFailureWorthLogging(err) {
				log.Printf("⚠️ аккаунт %s не подключён: %v", acc.Phone, err)
			}
			continue
		}
		log.Printf("✅ аккаунт %s подключён", acc.Phone)
		connected = append(connected, m)
	}
	if len(connected) == 0 {
		return fmt.Errorf("не удалось подключить ни одного аккаунта")
	}
	log.Printf("✅ подключено %d из %d аккаунтов", len(connected), len(accounts))

	channels, err := o.selectedChannels(cfg)
	if err != nil {
		return err
	}

	o.runForwardPhase(ctx, cfg, connected)
	o.runReactionPhase(ctx, cfg, connected)
	o.runFavoritePhase(ctx, cfg, connected)
	o.runCommentPhase(ctx, cfg, connected, channels)

	o.Status.SetPhase("sleeping")
	return ctx.Err()
}

func (o *Orchestrator) selectedChannels(cfg *config.Config) ([]string, error) {
	all, err := storage.LoadLines(cfg.ChannelsFile)
	if err != nil {
		return nil, err
	}
	if len(cfg.SelectedChannels) == 0 {
		return all, nil
	}
	var selected []string
	for _, n := range cfg.SelectedChannels {
		if n < 1 || n > len(all) {
			return nil, fmt.Errorf("номер канала %d вне диапазона 1..%d", n, len(all))
		}
		selected = append(selected, all[n-1])
	}
	return selected, nil
}

// connectFailureWorthLogging отсекает повторные доклады об исключённых
// аккаунтах: о них оператор уже был уведомлён при первой попытке.
func connectFailureWorthLogging(err error) bool {
	return !errors.Is(err, session.ErrSkipped)
}

// pickAccounts выбирает подмножество аккаунтов по номерам с единицы;
// пустой список означает все подключённые.
func pickAccounts(connected []*session.Managed, indices []int) []*session.Managed {
	if len(indices) == 0 {
		return connected
	}
	var picked []*session.Managed
	for _, n := range indices {
		if n < 1 || n > len(connected) {
			log.Printf("⚠️ аккаунт с номером %d не найден среди подключённых", n)
			continue
		}
		picked = append(picked, connected[n-1])
	}
	return picked
}

func (o *Orchestrator) runForwardPhase(ctx context.Context, cfg *config.Config, connected []*session.Managed) {
	if !cfg.EnableForwarding {
		return
	}
	o.Status.SetPhase("forward")
	log.Printf("=== Фаза: пересылка постов ===")

	exec := &forward.Executor{Sessions: o.Sessions, Ledger: o.Ledgers.Forwarded, Bot: o.Bot, Cfg: cfg.Forward}

	if cfg.Forward.Account == "bot" {
		if err := exec.RunViaBot(ctx, connected); err != nil {
			log.Printf("[FORWARD] ❌ %v", err)
		}
		return
	}

	m, ok := pickForwardAccount(connected, cfg.Forward.Account)
	if !ok {
		log.Printf("[FORWARD] ⚠️ нет доступного аккаунта для пересылки")
		return
	}
	if err := exec.RunDirect(ctx, m); err != nil {
		log.Printf("[FORWARD] ❌ [%s] %v", m.Account.Phone, err)
	}
}

// pickForwardAccount выбирает исполнителя пересылки: "0" — первый
// подключённый, иначе номер с единицы.
func pickForwardAccount(connected []*session.Managed, sel string) (*session.Managed, bool) {
	if len(connected) == 0 {
		return nil, false
	}
	if sel == "" || sel == "0" {
		return connected[0], true
	}
	n, err := strconv.Atoi(sel)
	if err != nil || n < 1 || n > len(connected) {
		log.Printf("[FORWARD] ⚠️ некорректный номер аккаунта для пересылки: %q", sel)
		return nil, false
	}
	return connected[n-1], true
}

func (o *Orchestrator) runReactionPhase(ctx context.Context, cfg *config.Config, connected []*session.Managed) {
	if !cfg.EnableReactions || len(cfg.Reactions) == 0 {
		return
	}
	o.Status.SetPhase("react")
	log.Printf("=== Фаза: проставление реакций ===")

	exec := &reaction.Executor{Sessions: o.Sessions, Ledger: o.Ledgers.Reacted}
	accounts := pickAccounts(connected, cfg.ReactionsSelectedAccounts)
	for i, m := range accounts {
		if ctx.Err() != nil {
			return
		}
		log.Printf("😊 реакции с аккаунта %s", m.Account.Phone)
		if err := exec.Run(ctx, m, cfg.Reactions); err != nil {
			log.Printf("[REACTION] ❌ [%s] %v", m.Account.Phone, err)
		}
		if i < len(accounts)-1 {
			if err := common.WaitWithCancellation(ctx, cfg.ReactionsAccountDelay); err != nil {
				return
			}
		}
	}
}

func (o *Orchestrator) runFavoritePhase(ctx context.Context, cfg *config.Config, connected []*session.Managed) {
	if !cfg.EnableFavorites || len(cfg.Favorites) == 0 {
		return
	}
	o.Status.SetPhase("favorite")
	log.Printf("=== Фаза: добавление в избранное ===")

	exec := &favorite.Executor{Sessions: o.Sessions, Ledger: o.Ledgers.Favorited}
	accounts := pickAccounts(connected, cfg.FavoritesSelectedAccounts)
	for i, m := range accounts {
		if ctx.Err() != nil {
			return
		}
		log.Printf("⭐ избранное с аккаунта %s", m.Account.Phone)
		if err := exec.Run(ctx, m, cfg.Favorites); err != nil {
			log.Printf("[FAVORITE] ❌ [%s] %v", m.Account.Phone, err)
		}
		if i < len(accounts)-1 {
			if err := common.WaitWithCancellation(ctx, cfg.FavoritesAccountDelay); err != nil {
				return
			}
		}
	}
}

func (o *Orchestrator) runCommentPhase(ctx context.Context, cfg *config.Config, connected []*session.Managed, channels []string) {
	if !cfg.EnableComments {
		return
	}
	o.Status.SetPhase("comment")
	log.Printf("=== Фаза: комментирование постов ===")

	stickerPacks, err := storage.LoadLines(cfg.StickersFile)
	if err != nil {
		log.Printf("[COMMENT] стикеры недоступны: %v", err)
	}

	exec := &comment.Executor{
		Sessions:      o.Sessions,
		Ledger:        o.Ledgers.Commented,
		Gen:           o.Gen,
		Audit:         o.Audit,
		CommentDelay:  cfg.CommentDelay,
		CommentsCount: cfg.CommentsCount,
		ReplyProb:     *cfg.GeneralReplyProbability,
		StickerProb:   *cfg.StickerProbability,
		Personality:   cfg.PersonalityMode,
		StickerPacks:  stickerPacks,
	}

	accounts := pickAccounts(connected, cfg.SelectedAccounts)
	for i, m := range accounts {
		if ctx.Err() != nil {
			return
		}
		if cfg.CheckSpamStatus && o.OperatorPrompt != nil {
			if wait := o.OperatorPrompt(m.Account.Phone); wait > 0 {
				log.Printf("⏳ аккаунт %s ограничен, ждём %s по решению оператора", m.Account.Phone, wait)
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}
		log.Printf("💬 [%s] заходим и комментируем", m.Account.Phone)
		if err := exec.Run(ctx, m, channels); err != nil {
			log.Printf("[COMMENT] ❌ [%s] %v", m.Account.Phone, err)
		}
		if i < len(accounts)-1 {
			if err := common.WaitWithCancellation(ctx, cfg.AccountDelay); err != nil {
				return
			}
		}
	}
}

// fastForwardLoop — независимый быстрый цикл пересылки со своим интервалом.
// Делит реестр пересылок с основным циклом; гонка двух проверок дубликата
// исключается монопольной блокировкой реестра.
func (o *Orchestrator) fastForwardLoop(ctx context.Context) {
	accounts, err := o.Accounts.Load()
	if err != nil {
		log.Printf("[FAST-FORWARD] ❌ нет аккаунтов: %v", err)
		return
	}
	var managed []*session.Managed
	for _, acc := range accounts {
		managed = append(managed, o.Sessions.Managed(acc))
	}

	for {
		cfg := o.config()
		if cfg.EnableForwarding {
			exec := &forward.Executor{Sessions: o.Sessions, Ledger: o.Ledgers.Forwarded, Bot: o.Bot, Cfg: cfg.Forward}
			if cfg.Forward.Account == "bot" {
				if err := exec.RunViaBot(ctx, managed); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("[FAST-FORWARD] ❌ %v", err)
				}
			} else if m, ok := pickForwardAccount(managed, cfg.Forward.Account); ok {
				if err := exec.RunDirect(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("[FAST-FORWARD] ❌ [%s] %v", m.Account.Phone, err)
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(cfg.Forward.CheckIntervalMinutes) * time.Minute):
		}
	}
}
