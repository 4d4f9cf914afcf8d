package models

// PeerKind задаёт тип пира Telegram.
type PeerKind int

const (
	PeerUser PeerKind = iota
	PeerChannel
	PeerChat
)

// PeerRef — ссылка на пира, сравниваемая по значению.
// Заменяет динамические сравнения "тот же ли это пир" по атрибутам.
type PeerRef struct {
	Kind PeerKind
	ID   int64
}

// SamePeer сообщает, указывают ли две ссылки на одного пира.
func SamePeer(a, b PeerRef) bool { return a.Kind == b.Kind && a.ID == b.ID }
