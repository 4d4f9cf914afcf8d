package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Proxy описывает исходящий SOCKS5-прокси аккаунта.
type Proxy struct {
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

// ParseProxy разбирает дескриптор прокси вида host:port:login:password.
// Пустая строка означает работу без прокси.
func ParseProxy(s string) (*Proxy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return nil, fmt.Errorf("некорректный формат прокси: %q", s)
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("порт прокси должен быть числом: %q", parts[1])
	}
	return &Proxy{IP: parts[0], Port: port, Login: parts[2], Password: parts[3]}, nil
}

// String возвращает дескриптор в формате accounts.csv.
func (p *Proxy) String() string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%s:%s", p.IP, p.Port, p.Login, p.Password)
}
