package signaling

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleMonitor Role = "monitor"
	RoleUser    Role = "user"
	RoleGuest   Role = "guest"
)

type Status string

const (
	StatusOnline       Status = "online"
	StatusOffline      Status = "offline"
	StatusReconnecting Status = "reconnecting"
	StatusBusy         Status = "busy"
)

// Participant — зарегистрированная идентичность, переживающая соединение.
// Участник состоит максимум в одной конференции.
type Participant struct {
	ID           uuid.UUID
	DisplayName  string
	Role         Role
	Status       Status
	TrackingID   string
	ConferenceID uuid.UUID // uuid.Nil вне конференции
}

type ParticipantInfo struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	Status      Status    `json:"status"`
}

func (p *Participant) Info() ParticipantInfo {
	return ParticipantInfo{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		Status:      p.Status,
	}
}
