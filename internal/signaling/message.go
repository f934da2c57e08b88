package signaling

import (
	"encoding/json"

	"github.com/google/uuid"
)

// MessageType определяет типы сигнальных сообщений
type MessageType string

const (
	// Входящие типы
	TypeRegister    MessageType = "register"
	TypeGetContacts MessageType = "getContacts"
	TypeInvite      MessageType = "invite"
	TypeReject      MessageType = "reject"
	TypeJoin        MessageType = "join"
	TypeAccept      MessageType = "accept"
	TypeLeave       MessageType = "leave"
	TypeReconnect   MessageType = "reconnect"

	// Ретрансляция WebRTC (состояние не меняют)
	TypeNeedOffer MessageType = "needOffer"
	TypeRTCOffer  MessageType = "rtc_offer"
	TypeRTCAnswer MessageType = "rtc_answer"
	TypeRTCIce    MessageType = "rtc_ice"

	// Ответы и рассылки
	TypeRegisterResult         MessageType = "registerResult"
	TypeContactsResult         MessageType = "contactsResult"
	TypeInviteResult           MessageType = "inviteResult"
	TypeRejectResult           MessageType = "rejectResult"
	TypeRejectReceived         MessageType = "rejectReceived"
	TypeJoinResult             MessageType = "joinResult"
	TypeLeaveResult            MessageType = "leaveResult"
	TypeReconnectResult        MessageType = "reconnectResult"
	TypeNewParticipant         MessageType = "newParticipant"
	TypeParticipantLeft        MessageType = "participantLeft"
	TypeParticipantReconnected MessageType = "participantReconnected"
	TypeConferenceClosed       MessageType = "conferenceClosed"
)

// Message — транспортный конверт {type, data}
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode собирает конверт с сериализованным payload
func Encode(msgType MessageType, data interface{}) ([]byte, error) {
	msg := Message{Type: msgType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

type RegisterPayload struct {
	Token       string `json:"token"`
	DisplayName string `json:"displayName,omitempty"`
}

type RegisterResult struct {
	ParticipantID string `json:"participantId,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	Role          string `json:"role,omitempty"`
	Error         string `json:"error,omitempty"`
}

type ContactsResult struct {
	Contacts []ParticipantInfo `json:"contacts"`
	Error    string            `json:"error,omitempty"`
}

type InvitePayload struct {
	To     uuid.UUID         `json:"to"`
	Config *ConferenceConfig `json:"config,omitempty"`
}

type InviteResult struct {
	To    string `json:"to,omitempty"`
	Error string `json:"error,omitempty"`
}

// InviteNotice доставляется приглашаемому
type InviteNotice struct {
	From        uuid.UUID `json:"from"`
	DisplayName string    `json:"displayName,omitempty"`
}

type RejectPayload struct {
	From uuid.UUID `json:"from"` // исходный приглашавший
}

type RejectResult struct {
	Error string `json:"error,omitempty"`
}

type RejectReceived struct {
	By uuid.UUID `json:"by"`
}

type AcceptPayload struct {
	From uuid.UUID `json:"from"` // исходный приглашавший
}

type JoinPayload struct {
	ConferenceID uuid.UUID `json:"conferenceId,omitempty"`
	ExternalID   string    `json:"externalId,omitempty"`
	RoomToken    string    `json:"roomToken,omitempty"`
	AccessCode   string    `json:"accessCode,omitempty"`
}

type JoinResult struct {
	ConferenceID string            `json:"conferenceId,omitempty"`
	RoomToken    string            `json:"roomToken,omitempty"`
	Participants []ParticipantInfo `json:"participants,omitempty"`
	Error        string            `json:"error,omitempty"`
}

type LeavePayload struct {
	ConferenceID uuid.UUID `json:"conferenceId"`
}

type LeaveResult struct {
	Error string `json:"error,omitempty"`
}

type ReconnectPayload struct {
	ParticipantID uuid.UUID `json:"participantId"`
	Token         string    `json:"token"`
}

type ReconnectResult struct {
	ParticipantID string `json:"participantId,omitempty"`
	ConferenceID  string `json:"conferenceId,omitempty"`
	Error         string `json:"error,omitempty"`
}

type NewParticipantNotice struct {
	ConferenceID uuid.UUID       `json:"conferenceId"`
	Participant  ParticipantInfo `json:"participant"`
}

type ParticipantLeftNotice struct {
	ConferenceID  uuid.UUID `json:"conferenceId"`
	ParticipantID uuid.UUID `json:"participantId"`
}

type ParticipantReconnectedNotice struct {
	ParticipantID uuid.UUID `json:"participantId"`
}

type ConferenceClosedNotice struct {
	ConferenceID uuid.UUID `json:"conferenceId"`
}

// RelayPayload — адресная ретрансляция; содержимое не интерпретируется
type RelayPayload struct {
	To uuid.UUID `json:"to"`
}
