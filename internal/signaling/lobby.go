package signaling

import (
	"sync"

	"github.com/google/uuid"
)

// RoomLobby держит участников, ожидающих допуска в конференцию.
// Порядок внутри корзины — порядок прихода.
type RoomLobby struct {
	mu      sync.Mutex
	buckets map[string][]uuid.UUID // externalID -> FIFO
}

func NewRoomLobby() *RoomLobby {
	return &RoomLobby{buckets: make(map[string][]uuid.UUID)}
}

// AddParticipant добавляет участника в очередь; дубликат — no-op
func (l *RoomLobby) AddParticipant(conferenceExternalID string, participantID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range l.buckets[conferenceExternalID] {
		if id == participantID {
			return
		}
	}
	l.buckets[conferenceExternalID] = append(l.buckets[conferenceExternalID], participantID)
}

// RemoveParticipant убирает участника; отсутствие — no-op
func (l *RoomLobby) RemoveParticipant(conferenceExternalID string, participantID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removeLocked(conferenceExternalID, participantID)
}

// RemoveEverywhere убирает участника из всех очередей
func (l *RoomLobby) RemoveEverywhere(participantID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ext := range l.buckets {
		l.removeLocked(ext, participantID)
	}
}

func (l *RoomLobby) removeLocked(conferenceExternalID string, participantID uuid.UUID) {
	bucket, ok := l.buckets[conferenceExternalID]
	if !ok {
		return
	}
	for i, id := range bucket {
		if id == participantID {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		// Пустые корзины не храним
		delete(l.buckets, conferenceExternalID)
	} else {
		l.buckets[conferenceExternalID] = bucket
	}
}

func (l *RoomLobby) CountWaiting(conferenceExternalID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.buckets[conferenceExternalID])
}

// Waiting возвращает снимок очереди в порядке прихода
func (l *RoomLobby) Waiting(conferenceExternalID string) []uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket := l.buckets[conferenceExternalID]
	out := make([]uuid.UUID, len(bucket))
	copy(out, bucket)
	return out
}
