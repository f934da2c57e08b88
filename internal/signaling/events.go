package signaling

import (
	"sync"

	"github.com/google/uuid"
)

type EventType string

const (
	EventPeerJoined       EventType = "peerJoined"
	EventPeerLeft         EventType = "peerLeft"
	EventConferenceClosed EventType = "conferenceClosed"
)

// Event — событие жизненного цикла конференции.
// Members — снимок получателей на момент события.
type Event struct {
	Type          EventType
	ConferenceID  uuid.UUID
	ExternalID    string
	ParticipantID uuid.UUID
	Participant   *ParticipantInfo
	Members       []uuid.UUID
	Reason        string
}

// EventBus — типизированный fan-out; слушатели вызываются по снимку,
// удаление слушателя во время рассылки безопасно.
type EventBus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(Event)
}

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[int]func(Event))}
}

// Subscribe возвращает функцию отписки
func (b *EventBus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

func (b *EventBus) Fire(ev Event) {
	b.mu.Lock()
	snapshot := make([]func(Event), 0, len(b.handlers))
	for _, fn := range b.handlers {
		snapshot = append(snapshot, fn)
	}
	b.mu.Unlock()

	for _, fn := range snapshot {
		fn(ev)
	}
}
