package signaling

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/thereayou/conferio/internal/sfu"
)

type inviteKey struct {
	from uuid.UUID
	to   uuid.UUID
}

// pendingInvite — эфемерное приглашение; не переживает рестарт
type pendingInvite struct {
	From   uuid.UUID
	To     uuid.UUID
	Config ConferenceConfig
}

// Router — единая точка диспетчеризации входящих сообщений:
// проверка состояния отправителя, вызов реестра, ответ и рассылки.
type Router struct {
	conns       *ConnectionRegistry
	presence    *PresenceDirectory
	conferences *ConferenceRegistry
	lobby       *RoomLobby
	engine      sfu.Engine

	invitesMu sync.Mutex
	invites   map[inviteKey]*pendingInvite

	unsubscribe func()
}

func NewRouter(conns *ConnectionRegistry, presence *PresenceDirectory, conferences *ConferenceRegistry, lobby *RoomLobby, engine sfu.Engine) *Router {
	r := &Router{
		conns:       conns,
		presence:    presence,
		conferences: conferences,
		lobby:       lobby,
		engine:      engine,
		invites:     make(map[inviteKey]*pendingInvite),
	}

	conns.SetTerminateFunc(r.terminateParticipant)
	r.unsubscribe = conferences.Events().Subscribe(r.onConferenceEvent)
	engine.OnPeerClosed(func(roomID, peerID string) {
		confID, err1 := uuid.Parse(roomID)
		pid, err2 := uuid.Parse(peerID)
		if err1 != nil || err2 != nil {
			return
		}
		r.conferences.Leave(confID, pid, "engineClosedPeer")
	})

	return r
}

// Stop отписывает роутер от событий конференций
func (r *Router) Stop() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// HandleRaw — вход диспетчера. Конверт без type считается протокольной
// ошибкой: логируем и молча отбрасываем. Семантические ошибки уходят
// ответом с заполненным error, соединение остаётся открытым.
func (r *Router) HandleRaw(c *Connection, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		log.Printf("Malformed message from connection %s: dropped", c.ID)
		return
	}

	r.conns.Touch(c)

	if msg.Type == TypeRegister {
		r.handleRegister(c, msg.Data)
		return
	}

	// До регистрации принимается только register
	if c.ParticipantID() == uuid.Nil {
		log.Printf("Message %q before registration from connection %s: dropped", msg.Type, c.ID)
		return
	}

	switch msg.Type {
	case TypeGetContacts:
		r.handleGetContacts(c)
	case TypeInvite:
		r.handleInvite(c, msg.Data)
	case TypeReject:
		r.handleReject(c, msg.Data)
	case TypeAccept:
		r.handleAccept(c, msg.Data)
	case TypeJoin:
		r.handleJoin(c, msg.Data)
	case TypeLeave:
		r.handleLeave(c, msg.Data)
	case TypeReconnect:
		r.handleReconnect(c, msg.Data)
	case TypeNeedOffer, TypeRTCOffer, TypeRTCAnswer, TypeRTCIce:
		r.handleRelay(c, msg.Type, raw, msg.Data)
	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// ConnectionClosed вызывается транспортом после выхода из ReadPump
func (r *Router) ConnectionClosed(c *Connection) {
	r.conns.OnClose(c)
}

func (r *Router) handleRegister(c *Connection, data json.RawMessage) {
	var payload RegisterPayload
	if data != nil {
		if err := json.Unmarshal(data, &payload); err != nil {
			c.SendMessage(TypeRegisterResult, RegisterResult{Error: ErrMalformedMessage.Error()})
			return
		}
	}

	participant, err := r.conns.OnRegister(c, payload.Token, payload.DisplayName)
	if err != nil {
		result := RegisterResult{Error: err.Error()}
		if pid := c.ParticipantID(); pid != uuid.Nil {
			// Исходный participantId не меняется
			result.ParticipantID = pid.String()
		}
		c.SendMessage(TypeRegisterResult, result)
		return
	}

	c.SendMessage(TypeRegisterResult, RegisterResult{
		ParticipantID: participant.ID.String(),
		DisplayName:   participant.DisplayName,
		Role:          string(participant.Role),
	})
}

func (r *Router) handleGetContacts(c *Connection) {
	c.SendMessage(TypeContactsResult, ContactsResult{
		Contacts: r.presence.List(c.ParticipantID()),
	})
}

func (r *Router) handleInvite(c *Connection, data json.RawMessage) {
	var payload InvitePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.SendMessage(TypeInviteResult, InviteResult{Error: ErrMalformedMessage.Error()})
		return
	}

	from := c.ParticipantID()
	target, ok := r.presence.Get(payload.To)
	if !ok {
		c.SendMessage(TypeInviteResult, InviteResult{Error: ErrParticipantNotFound.Error()})
		return
	}

	// Занятый или переподключающийся участник недостижим для приглашений
	if info, _ := r.presence.Info(payload.To); info.Status != StatusOnline {
		c.SendMessage(TypeInviteResult, InviteResult{Error: ErrParticipantNotFound.Error()})
		return
	}

	key := inviteKey{from: from, to: payload.To}
	r.invitesMu.Lock()
	if _, exists := r.invites[key]; exists {
		r.invitesMu.Unlock()
		c.SendMessage(TypeInviteResult, InviteResult{Error: ErrInviteAlreadyPending.Error()})
		return
	}
	invite := &pendingInvite{From: from, To: payload.To}
	if payload.Config != nil {
		invite.Config = *payload.Config
	}
	r.invites[key] = invite
	r.invitesMu.Unlock()

	fromInfo, _ := r.presence.Info(from)
	notice, err := Encode(TypeInvite, InviteNotice{From: from, DisplayName: fromInfo.DisplayName})
	if err == nil && r.conns.SendToParticipant(target.ID, notice) {
		c.SendMessage(TypeInviteResult, InviteResult{To: payload.To.String()})
		return
	}

	// Доставить не удалось — приглашение не висит
	r.invitesMu.Lock()
	delete(r.invites, key)
	r.invitesMu.Unlock()
	c.SendMessage(TypeInviteResult, InviteResult{Error: ErrParticipantNotFound.Error()})
}

func (r *Router) handleReject(c *Connection, data json.RawMessage) {
	var payload RejectPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.SendMessage(TypeRejectResult, RejectResult{Error: ErrMalformedMessage.Error()})
		return
	}

	me := c.ParticipantID()
	key := inviteKey{from: payload.From, to: me}

	r.invitesMu.Lock()
	_, exists := r.invites[key]
	if exists {
		delete(r.invites, key)
	}
	r.invitesMu.Unlock()

	if !exists {
		c.SendMessage(TypeRejectResult, RejectResult{Error: ErrInviteNotFound.Error()})
		return
	}

	c.SendMessage(TypeRejectResult, RejectResult{})
	if notice, err := Encode(TypeRejectReceived, RejectReceived{By: me}); err == nil {
		r.conns.SendToParticipant(payload.From, notice)
	}
}

// handleAccept создаёт конференцию из приглашения и вводит обе стороны;
// приглашавший входит первым
func (r *Router) handleAccept(c *Connection, data json.RawMessage) {
	var payload AcceptPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.SendMessage(TypeJoinResult, JoinResult{Error: ErrMalformedMessage.Error()})
		return
	}

	me := c.ParticipantID()
	key := inviteKey{from: payload.From, to: me}

	r.invitesMu.Lock()
	invite, exists := r.invites[key]
	if exists {
		delete(r.invites, key)
	}
	r.invitesMu.Unlock()

	if !exists {
		c.SendMessage(TypeJoinResult, JoinResult{Error: ErrInviteNotFound.Error()})
		return
	}

	conf, err := r.conferences.Create("", invite.Config)
	if err != nil {
		c.SendMessage(TypeJoinResult, JoinResult{Error: err.Error()})
		return
	}
	if err := r.engine.CreateRoom(conf.ID.String()); err != nil {
		log.Printf("Engine createRoom failed for %s: %v", conf.ID, err)
	}

	if err := r.conferences.Join(conf.ID, invite.From, conf.RoomToken, ""); err != nil {
		r.conferences.Close(conf.ID, ReasonClosedByAdmin)
		c.SendMessage(TypeJoinResult, JoinResult{Error: err.Error()})
		return
	}
	if err := r.conferences.Join(conf.ID, me, conf.RoomToken, ""); err != nil {
		r.conferences.Close(conf.ID, ReasonClosedByAdmin)
		c.SendMessage(TypeJoinResult, JoinResult{Error: err.Error()})
		return
	}

	result := JoinResult{
		ConferenceID: conf.ID.String(),
		RoomToken:    conf.RoomToken,
		Participants: r.conferences.GetParticipants(conf.ID),
	}
	c.SendMessage(TypeJoinResult, result)
	if raw, err := Encode(TypeJoinResult, result); err == nil {
		r.conns.SendToParticipant(invite.From, raw)
	}
}

func (r *Router) handleJoin(c *Connection, data json.RawMessage) {
	var payload JoinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.SendMessage(TypeJoinResult, JoinResult{Error: ErrMalformedMessage.Error()})
		return
	}

	me := c.ParticipantID()

	var conf *Conference
	var ok bool
	if payload.ConferenceID != uuid.Nil {
		conf, ok = r.conferences.Get(payload.ConferenceID)
	} else if payload.ExternalID != "" {
		conf, ok = r.conferences.GetByExternal(payload.ExternalID)
	}
	if !ok {
		c.SendMessage(TypeJoinResult, JoinResult{Error: ErrConferenceNotFound.Error()})
		return
	}

	err := r.conferences.Join(conf.ID, me, payload.RoomToken, payload.AccessCode)
	if err != nil {
		// Гость без валидного допуска встаёт в очередь ожидания
		if (err == ErrTokenMismatch || err == ErrUnauthorized) && conf.ExternalID != "" {
			if info, found := r.presence.Info(me); found && info.Role == RoleGuest {
				r.lobby.AddParticipant(conf.ExternalID, me)
			}
		}
		c.SendMessage(TypeJoinResult, JoinResult{Error: err.Error()})
		return
	}

	if conf.ExternalID != "" {
		r.lobby.RemoveParticipant(conf.ExternalID, me)
	}

	c.SendMessage(TypeJoinResult, JoinResult{
		ConferenceID: conf.ID.String(),
		RoomToken:    conf.RoomToken,
		Participants: r.conferences.GetParticipants(conf.ID),
	})
}

func (r *Router) handleLeave(c *Connection, data json.RawMessage) {
	var payload LeavePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.SendMessage(TypeLeaveResult, LeaveResult{Error: ErrMalformedMessage.Error()})
		return
	}

	if err := r.conferences.Leave(payload.ConferenceID, c.ParticipantID(), "leftByRequest"); err != nil {
		c.SendMessage(TypeLeaveResult, LeaveResult{Error: err.Error()})
		return
	}
	c.SendMessage(TypeLeaveResult, LeaveResult{})
}

func (r *Router) handleReconnect(c *Connection, data json.RawMessage) {
	var payload ReconnectPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.SendMessage(TypeReconnectResult, ReconnectResult{Error: ErrMalformedMessage.Error()})
		return
	}

	participant, err := r.conns.Reconnect(c, payload.ParticipantID, payload.Token)
	if err != nil {
		c.SendMessage(TypeReconnectResult, ReconnectResult{Error: err.Error()})
		return
	}

	result := ReconnectResult{ParticipantID: participant.ID.String()}
	if confID, _ := r.presence.ConferenceOf(participant.ID); confID != uuid.Nil {
		result.ConferenceID = confID.String()
	}
	c.SendMessage(TypeReconnectResult, result)

	if notice, err := Encode(TypeParticipantReconnected, ParticipantReconnectedNotice{ParticipantID: participant.ID}); err == nil {
		r.conns.BroadcastAll(notice, participant.ID)
	}
}

// handleRelay пересылает сообщение названному пиру без изменения
// состояния; адресат uuid.Nil у rtc_offer означает offer самому SFU
func (r *Router) handleRelay(c *Connection, msgType MessageType, raw []byte, data json.RawMessage) {
	var payload struct {
		To  uuid.UUID `json:"to"`
		SDP string    `json:"sdp,omitempty"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("Malformed relay payload from %s: dropped", c.ID)
		return
	}

	me := c.ParticipantID()
	myConf, _ := r.presence.ConferenceOf(me)

	if payload.To == uuid.Nil && msgType == TypeRTCOffer {
		if myConf == uuid.Nil {
			log.Printf("SFU offer outside a conference from %s: dropped", me)
			return
		}
		answer, err := r.engine.HandleOffer(myConf.String(), me.String(), payload.SDP)
		if err != nil {
			log.Printf("Engine offer handling failed for %s: %v", me, err)
			return
		}
		c.SendMessage(TypeRTCAnswer, map[string]string{"sdp": answer})
		return
	}

	theirConf, ok := r.presence.ConferenceOf(payload.To)
	if !ok || myConf == uuid.Nil || myConf != theirConf {
		log.Printf("Relay %q from %s to %s: peers not co-located, dropped", msgType, me, payload.To)
		return
	}

	r.conns.SendToParticipant(payload.To, raw)
}

// terminateParticipant выполняется ровно один раз на потерю участника
func (r *Router) terminateParticipant(participantID uuid.UUID, reason string) {
	r.conferences.LeaveAll(participantID, reason)
	r.lobby.RemoveEverywhere(participantID)

	r.invitesMu.Lock()
	for key := range r.invites {
		if key.from == participantID || key.to == participantID {
			delete(r.invites, key)
		}
	}
	r.invitesMu.Unlock()
}

// onConferenceEvent переводит события реестра в сигнальные рассылки
func (r *Router) onConferenceEvent(ev Event) {
	switch ev.Type {
	case EventPeerJoined:
		r.engine.AddPeer(ev.ConferenceID.String(), ev.ParticipantID.String())
		if ev.Participant == nil {
			return
		}
		notice, err := Encode(TypeNewParticipant, NewParticipantNotice{
			ConferenceID: ev.ConferenceID,
			Participant:  *ev.Participant,
		})
		if err != nil {
			return
		}
		for _, id := range ev.Members {
			r.conns.SendToParticipant(id, notice)
		}

	case EventPeerLeft:
		r.engine.RemovePeer(ev.ConferenceID.String(), ev.ParticipantID.String())
		notice, err := Encode(TypeParticipantLeft, ParticipantLeftNotice{
			ConferenceID:  ev.ConferenceID,
			ParticipantID: ev.ParticipantID,
		})
		if err != nil {
			return
		}
		for _, id := range ev.Members {
			r.conns.SendToParticipant(id, notice)
		}

	case EventConferenceClosed:
		r.engine.CloseRoom(ev.ConferenceID.String())
		notice, err := Encode(TypeConferenceClosed, ConferenceClosedNotice{ConferenceID: ev.ConferenceID})
		if err != nil {
			return
		}
		for _, id := range ev.Members {
			r.conns.SendToParticipant(id, notice)
		}
	}
}
