package comment

import (
	"path/filepath"
	"testing"

	"promo_go/pkg/storage"
)

// TestCommentsOwed проверяет расчёт остатка квоты по записи реестра.
func TestCommentsOwed(t *testing.T) {
	cases := []struct {
		name   string
		rec    storage.Record
		ok     bool
		postID int
		target int
		want   int
	}{
		{"записи нет", storage.Record{}, false, 100, 3, 3},
		{"тот же пост, квота не выбрана", storage.Record{PostID: 100, Count: 1}, true, 100, 3, 2},
		{"тот же пост, квота выбрана", storage.Record{PostID: 100, Count: 3}, true, 100, 3, 0},
		{"тот же пост, квота уменьшилась", storage.Record{PostID: 100, Count: 5}, true, 100, 2, -3},
		{"новый пост открывает квоту", storage.Record{PostID: 100, Count: 5}, true, 101, 3, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := commentsOwed(tc.rec, tc.ok, tc.postID, tc.target); got != tc.want {
				t.Fatalf("ожидалось %d, получено %d", tc.want, got)
			}
		})
	}
}

// TestQuotaScenario прогоняет сценарий квоты через реальный реестр: пост 100
// комментируется один раз, повторный проход ничего не должен, новый пост 101
// открывает квоту заново.
func TestQuotaScenario(t *testing.T) {
	l := storage.NewLedger(filepath.Join(t.TempDir(), "last_commented.txt"), storage.KindCommented)
	if err := l.Load(); err != nil {
		t.Fatalf("неожиданная ошибка загрузки: %v", err)
	}
	key := storage.Key{Phone: "+7900", Channel: "@ch"}
	const target = 1

	// Первый проход: запись отсутствует, причитается target
	rec, ok := l.Get(key)
	if owed := commentsOwed(rec, ok, 100, target); owed != 1 {
		t.Fatalf("первый проход: ожидался 1, получено %d", owed)
	}
	if err := l.RecordAction(key, 100, 1); err != nil {
		t.Fatalf("неожиданная ошибка записи: %v", err)
	}

	// Повторный проход по тому же посту — ничего не причитается
	rec, ok = l.Get(key)
	if owed := commentsOwed(rec, ok, 100, target); owed != 0 {
		t.Fatalf("повторный проход: ожидался 0, получено %d", owed)
	}

	// Новый пост — квота открыта заново
	rec, ok = l.Get(key)
	if owed := commentsOwed(rec, ok, 101, target); owed != 1 {
		t.Fatalf("новый пост: ожидался 1, получено %d", owed)
	}
}
