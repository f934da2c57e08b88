package signaling

import (
	"testing"

	"github.com/google/uuid"
)

func TestPresenceListInsertionOrder(t *testing.T) {
	d := NewPresenceDirectory()

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
		d.AddOrUpdate(&Participant{ID: ids[i], Status: StatusOnline})
	}

	list := d.List(uuid.Nil)
	if len(list) != len(ids) {
		t.Fatalf("list size = %d, want %d", len(list), len(ids))
	}
	for i, info := range list {
		if info.ID != ids[i] {
			t.Fatalf("position %d: %s, want %s", i, info.ID, ids[i])
		}
	}
}

func TestPresenceListExcluding(t *testing.T) {
	d := NewPresenceDirectory()
	a, b := uuid.New(), uuid.New()
	d.AddOrUpdate(&Participant{ID: a, Status: StatusOnline})
	d.AddOrUpdate(&Participant{ID: b, Status: StatusOnline})

	list := d.List(a)
	if len(list) != 1 || list[0].ID != b {
		t.Fatalf("list = %v, want only %s", list, b)
	}
}

// Повторный AddOrUpdate обновляет данные, не меняя позицию
func TestPresenceUpdateKeepsOrder(t *testing.T) {
	d := NewPresenceDirectory()
	a, b := uuid.New(), uuid.New()
	d.AddOrUpdate(&Participant{ID: a, DisplayName: "old", Status: StatusOnline})
	d.AddOrUpdate(&Participant{ID: b, Status: StatusOnline})

	d.AddOrUpdate(&Participant{ID: a, DisplayName: "new", Status: StatusOnline})

	list := d.List(uuid.Nil)
	if list[0].ID != a || list[0].DisplayName != "new" {
		t.Fatalf("list[0] = %+v, want updated a first", list[0])
	}
}

func TestPresenceRemove(t *testing.T) {
	d := NewPresenceDirectory()
	a := uuid.New()
	d.AddOrUpdate(&Participant{ID: a, Status: StatusOnline})

	d.Remove(a)
	d.Remove(a) // повторно — no-op

	if _, ok := d.Get(a); ok {
		t.Fatalf("removed participant still present")
	}
	if len(d.List(uuid.Nil)) != 0 {
		t.Fatalf("removed participant still listed")
	}
}

func TestPresenceInfoIsCopy(t *testing.T) {
	d := NewPresenceDirectory()
	a := uuid.New()
	d.AddOrUpdate(&Participant{ID: a, Status: StatusOnline})

	info, _ := d.Info(a)
	info.Status = StatusBusy

	if p, _ := d.Get(a); p.Status != StatusOnline {
		t.Fatalf("mutating Info copy leaked into directory")
	}
}

func TestPresenceConferenceOf(t *testing.T) {
	d := NewPresenceDirectory()
	a := uuid.New()
	confID := uuid.New()
	d.AddOrUpdate(&Participant{ID: a, Status: StatusOnline})

	if got, ok := d.ConferenceOf(a); !ok || got != uuid.Nil {
		t.Fatalf("fresh participant has conference %s", got)
	}

	d.SetConference(a, confID)
	if got, _ := d.ConferenceOf(a); got != confID {
		t.Fatalf("conference = %s, want %s", got, confID)
	}

	if _, ok := d.ConferenceOf(uuid.New()); ok {
		t.Fatalf("unknown participant reported as present")
	}
}
