package signaling

import (
	"sync"

	"github.com/google/uuid"
)

// PresenceDirectory — список участников, доступных для приглашений.
// Порядок выдачи — порядок появления.
type PresenceDirectory struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*Participant
	order []uuid.UUID
}

func NewPresenceDirectory() *PresenceDirectory {
	return &PresenceDirectory{
		byID: make(map[uuid.UUID]*Participant),
	}
}

func (d *PresenceDirectory) AddOrUpdate(p *Participant) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byID[p.ID]; !ok {
		d.order = append(d.order, p.ID)
	}
	d.byID[p.ID] = p
}

func (d *PresenceDirectory) Remove(participantID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byID[participantID]; !ok {
		return
	}
	delete(d.byID, participantID)
	for i, id := range d.order {
		if id == participantID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *PresenceDirectory) Get(participantID uuid.UUID) (*Participant, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.byID[participantID]
	return p, ok
}

// List возвращает участников в порядке появления, опционально исключая одного
func (d *PresenceDirectory) List(excluding uuid.UUID) []ParticipantInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	infos := make([]ParticipantInfo, 0, len(d.order))
	for _, id := range d.order {
		if id == excluding {
			continue
		}
		if p, ok := d.byID[id]; ok {
			infos = append(infos, p.Info())
		}
	}
	return infos
}

// SetStatus меняет статус; busy ставит и снимает только реестр конференций
func (d *PresenceDirectory) SetStatus(participantID uuid.UUID, status Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.byID[participantID]; ok {
		p.Status = status
	}
}

func (d *PresenceDirectory) SetRole(participantID uuid.UUID, role Role) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.byID[participantID]; ok {
		p.Role = role
	}
}

func (d *PresenceDirectory) SetConference(participantID, conferenceID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.byID[participantID]; ok {
		p.ConferenceID = conferenceID
	}
}

// ConferenceOf возвращает конференцию участника, uuid.Nil — если нет
func (d *PresenceDirectory) ConferenceOf(participantID uuid.UUID) (uuid.UUID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.byID[participantID]
	if !ok {
		return uuid.Nil, false
	}
	return p.ConferenceID, true
}

// Info возвращает копию данных участника
func (d *PresenceDirectory) Info(participantID uuid.UUID) (ParticipantInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.byID[participantID]
	if !ok {
		return ParticipantInfo{}, false
	}
	return p.Info(), true
}
