// Package sfu — граница с media-движком. Ядро сигналинга не трогает
// пакеты: оно только создаёт/закрывает комнаты и пиров и получает
// события о закрытии пира со стороны движка.
package sfu

type Engine interface {
	CreateRoom(roomID string) error
	AddPeer(roomID, peerID string) error
	RemovePeer(roomID, peerID string) error
	CloseRoom(roomID string) error

	// HandleOffer принимает SDP offer пира и возвращает answer движка
	HandleOffer(roomID, peerID, offer string) (string, error)

	// OnPeerClosed регистрирует обработчик закрытия пира со стороны движка
	OnPeerClosed(fn func(roomID, peerID string))
}

// NoopEngine используется в тестах и при отключённом SFU
type NoopEngine struct{}

func (NoopEngine) CreateRoom(roomID string) error          { return nil }
func (NoopEngine) AddPeer(roomID, peerID string) error     { return nil }
func (NoopEngine) RemovePeer(roomID, peerID string) error  { return nil }
func (NoopEngine) CloseRoom(roomID string) error           { return nil }
func (NoopEngine) OnPeerClosed(func(roomID, peerID string)) {}

func (NoopEngine) HandleOffer(roomID, peerID, offer string) (string, error) {
	return "", nil
}
