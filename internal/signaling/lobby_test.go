package signaling

import (
	"testing"

	"github.com/google/uuid"
)

func TestLobbyFIFO(t *testing.T) {
	l := NewRoomLobby()
	first, second, third := uuid.New(), uuid.New(), uuid.New()

	l.AddParticipant("meet-1", first)
	l.AddParticipant("meet-1", second)
	l.AddParticipant("meet-1", third)

	waiting := l.Waiting("meet-1")
	if len(waiting) != 3 || waiting[0] != first || waiting[1] != second || waiting[2] != third {
		t.Fatalf("waiting = %v, want arrival order", waiting)
	}
}

func TestLobbyDuplicateAddIsNoop(t *testing.T) {
	l := NewRoomLobby()
	p := uuid.New()

	l.AddParticipant("meet-1", p)
	l.AddParticipant("meet-1", p)

	if l.CountWaiting("meet-1") != 1 {
		t.Fatalf("duplicate add changed queue size")
	}
}

// Опустевшая корзина удаляется целиком
func TestLobbyEmptyBucketRemoved(t *testing.T) {
	l := NewRoomLobby()
	p := uuid.New()

	l.AddParticipant("meet-1", p)
	l.RemoveParticipant("meet-1", p)

	if l.CountWaiting("meet-1") != 0 {
		t.Fatalf("queue not empty after removal")
	}
	if _, ok := l.buckets["meet-1"]; ok {
		t.Fatalf("empty bucket kept in map")
	}
}

func TestLobbyRemoveAbsentIsNoop(t *testing.T) {
	l := NewRoomLobby()
	p := uuid.New()
	l.AddParticipant("meet-1", p)

	l.RemoveParticipant("meet-1", uuid.New())
	l.RemoveParticipant("meet-2", p)

	if l.CountWaiting("meet-1") != 1 {
		t.Fatalf("unrelated removal changed queue")
	}
}

func TestLobbyRemoveEverywhere(t *testing.T) {
	l := NewRoomLobby()
	p, other := uuid.New(), uuid.New()

	l.AddParticipant("meet-1", p)
	l.AddParticipant("meet-2", p)
	l.AddParticipant("meet-2", other)

	l.RemoveEverywhere(p)

	if l.CountWaiting("meet-1") != 0 {
		t.Fatalf("participant still waiting in meet-1")
	}
	if waiting := l.Waiting("meet-2"); len(waiting) != 1 || waiting[0] != other {
		t.Fatalf("meet-2 queue = %v, want only other", waiting)
	}
}
