package roomlog

import (
	"sync"
	"time"
)

// Entry — запись аудита жизненного цикла комнаты
type Entry struct {
	RoomID    string    `json:"roomId"`
	Event     string    `json:"event"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Adapter — подключаемое хранилище журнала комнат
type Adapter interface {
	Save(entry *Entry) error
	Get(roomID string) ([]Entry, error)
}

// Memory — адаптер по умолчанию, живёт в памяти процесса
type Memory struct {
	mu     sync.Mutex
	byRoom map[string][]Entry
}

func NewMemory() *Memory {
	return &Memory{byRoom: make(map[string][]Entry)}
}

func (m *Memory) Save(entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.byRoom[entry.RoomID] = append(m.byRoom[entry.RoomID], *entry)
	return nil
}

func (m *Memory) Get(roomID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logs := m.byRoom[roomID]
	out := make([]Entry, len(logs))
	copy(out, logs)
	return out, nil
}
