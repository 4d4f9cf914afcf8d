package monitoring

import (
	"log"
	"sync"
	"time"

	"promo_go/pkg/storage"

	"github.com/gin-gonic/gin"
)

// Status — наблюдаемое состояние оркестратора для HTTP-мониторинга.
type Status struct {
	mu        sync.Mutex
	startedAt time.Time
	cycle     int
	phase     string

	accountStates func() map[string]string
	ledgers       map[string]*storage.Ledger
}

func NewStatus(accountStates func() map[string]string, ledgers map[string]*storage.Ledger) *Status {
	return &Status{
		startedAt:     time.Now(),
		accountStates: accountStates,
		ledgers:       ledgers,
	}
}

// CycleStarted фиксирует начало очередного цикла.
func (s *Status) CycleStarted(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycle = n
}

// SetPhase фиксирует текущую фазу цикла.
func (s *Status) SetPhase(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
}

func (s *Status) snapshot() gin.H {
	s.mu.Lock()
	cycle, phase := s.cycle, s.phase
	s.mu.Unlock()

	ledgers := make(gin.H, len(s.ledgers))
	for name, l := range s.ledgers {
		ledgers[name] = l.Len()
	}
	return gin.H{
		"started_at": s.startedAt.Format(time.RFC3339),
		"cycle":      cycle,
		"phase":      phase,
		"accounts":   s.accountStates(),
		"ledgers":    ledgers,
	}
}

// StartServer поднимает HTTP-мониторинг в отдельной горутине.
func StartServer(addr string, st *Status) {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(200, st.snapshot())
	})

	log.Printf("[MONITORING] HTTP-статус на %s", addr)
	go func() {
		if err := r.Run(addr); err != nil {
			log.Printf("[MONITORING] сервер остановлен: %v", err)
		}
	}()
}
