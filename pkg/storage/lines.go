package storage

import (
	"fmt"
	"os"
	"strings"
)

// LoadLines читает список ссылок из файла: одна запись на строку,
// пустые строки и строки с `#` пропускаются. Так хранятся channels.txt
// и stickers.txt.
func LoadLines(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение %s: %w", path, err)
	}
	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}
