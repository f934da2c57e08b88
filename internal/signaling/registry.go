package signaling

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thereayou/conferio/pkg/auth"
)

// TerminateFunc вызывается ровно один раз при потере зарегистрированного
// участника (обрыв или таймаут)
type TerminateFunc func(participantID uuid.UUID, reason string)

// ConnectionRegistry владеет живыми соединениями и привязкой
// соединение — участник. Незарегистрировавшееся вовремя соединение
// закрывается; после регистрации тот же дедлайн работает как idle-таймер.
type ConnectionRegistry struct {
	mu            sync.Mutex
	conns         map[uuid.UUID]*Connection
	byParticipant map[uuid.UUID]*Connection
	deadlines     map[uuid.UUID]Timer  // connID -> registration/idle таймер
	deadlineGen   map[uuid.UUID]uint64 // connID -> поколение дедлайна
	grace         map[uuid.UUID]Timer  // participantID -> окно на reconnect

	clock           Clock
	tokens          *auth.TokenManager
	presence        *PresenceDirectory
	registerTimeout time.Duration
	departureGrace  time.Duration
	onTerminate     TerminateFunc
}

func NewConnectionRegistry(clock Clock, tokens *auth.TokenManager, presence *PresenceDirectory, registerTimeout, departureGrace time.Duration) *ConnectionRegistry {
	if registerTimeout <= 0 {
		registerTimeout = 30 * time.Second
	}
	if departureGrace <= 0 {
		departureGrace = registerTimeout
	}
	return &ConnectionRegistry{
		conns:           make(map[uuid.UUID]*Connection),
		byParticipant:   make(map[uuid.UUID]*Connection),
		deadlines:       make(map[uuid.UUID]Timer),
		deadlineGen:     make(map[uuid.UUID]uint64),
		grace:           make(map[uuid.UUID]Timer),
		clock:           clock,
		tokens:          tokens,
		presence:        presence,
		registerTimeout: registerTimeout,
		departureGrace:  departureGrace,
	}
}

func (r *ConnectionRegistry) SetTerminateFunc(fn TerminateFunc) {
	r.onTerminate = fn
}

// OnConnectionOpened запускает дедлайн регистрации
func (r *ConnectionRegistry) OnConnectionOpened(c *Connection) {
	r.mu.Lock()
	r.conns[c.ID] = c
	r.resetDeadlineLocked(c)
	r.mu.Unlock()

	log.Printf("Connection opened: %s", c.ID)
}

// OnRegister привязывает соединение к участнику по токену.
// Старое соединение того же участника вытесняется.
func (r *ConnectionRegistry) OnRegister(c *Connection, token, displayName string) (*Participant, error) {
	if c.ParticipantID() != uuid.Nil {
		return nil, ErrAlreadyRegistered
	}

	claims, err := r.tokens.Verify(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	participantID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrUnauthorized
	}

	name := claims.DisplayName
	if name == "" {
		name = displayName
	}
	role := Role(claims.Role)
	if role == "" {
		role = RoleUser
	}

	r.mu.Lock()
	if _, ok := r.conns[c.ID]; !ok {
		// Соединение уже утилизировано таймаутом
		r.mu.Unlock()
		return nil, ErrNotRegistered
	}

	if old, ok := r.byParticipant[participantID]; ok && old != c {
		r.disposeLocked(old)
	}
	r.cancelGraceLocked(participantID)

	c.setParticipant(participantID)
	r.byParticipant[participantID] = c
	r.resetDeadlineLocked(c)
	r.mu.Unlock()

	participant, ok := r.presence.Get(participantID)
	if !ok {
		participant = &Participant{
			ID:          participantID,
			DisplayName: name,
			Role:        role,
			Status:      StatusOnline,
			TrackingID:  claims.TrackingID,
		}
	} else {
		participant.DisplayName = name
	}
	r.presence.AddOrUpdate(participant)
	if confID, _ := r.presence.ConferenceOf(participantID); confID != uuid.Nil {
		r.presence.SetStatus(participantID, StatusBusy)
	} else {
		r.presence.SetStatus(participantID, StatusOnline)
	}

	log.Printf("Connection %s registered as participant %s (%s)", c.ID, participantID, name)
	return participant, nil
}

// Reconnect привязывает новое соединение к известному участнику и
// отменяет окно его удаления
func (r *ConnectionRegistry) Reconnect(c *Connection, participantID uuid.UUID, token string) (*Participant, error) {
	if c.ParticipantID() != uuid.Nil {
		return nil, ErrAlreadyRegistered
	}

	claims, err := r.tokens.Verify(token)
	if err != nil || claims.Subject != participantID.String() {
		return nil, ErrUnauthorized
	}

	participant, ok := r.presence.Get(participantID)
	if !ok {
		return nil, ErrParticipantNotFound
	}

	r.mu.Lock()
	if _, ok := r.conns[c.ID]; !ok {
		r.mu.Unlock()
		return nil, ErrNotRegistered
	}

	r.cancelGraceLocked(participantID)
	if old, ok := r.byParticipant[participantID]; ok && old != c {
		// Сначала отцепляем старое соединение
		r.disposeLocked(old)
	}
	c.setParticipant(participantID)
	r.byParticipant[participantID] = c
	r.resetDeadlineLocked(c)
	r.mu.Unlock()

	if confID, _ := r.presence.ConferenceOf(participantID); confID != uuid.Nil {
		r.presence.SetStatus(participantID, StatusBusy)
	} else {
		r.presence.SetStatus(participantID, StatusOnline)
	}

	log.Printf("Participant %s reconnected on connection %s", participantID, c.ID)
	return participant, nil
}

// Touch продлевает idle-дедлайн; вызывается на каждое принятое сообщение
func (r *ConnectionRegistry) Touch(c *Connection) {
	c.touch(r.clock.Now())

	r.mu.Lock()
	if _, ok := r.conns[c.ID]; ok {
		r.resetDeadlineLocked(c)
	}
	r.mu.Unlock()
}

// OnTimeout — ни регистрации, ни трафика в отведённое время
func (r *ConnectionRegistry) OnTimeout(c *Connection) {
	r.teardown(c, "timeout")
}

// OnClose — закрытие со стороны транспорта
func (r *ConnectionRegistry) OnClose(c *Connection) {
	r.teardown(c, "socketClosed")
}

// teardown утилизирует соединение; для зарегистрированного участника
// запускает terminate и окно на reconnect. Повторный вызов — no-op.
func (r *ConnectionRegistry) teardown(c *Connection, reason string) {
	r.mu.Lock()
	if _, ok := r.conns[c.ID]; !ok {
		r.mu.Unlock()
		return
	}
	participantID := c.ParticipantID()
	r.disposeLocked(c)
	r.mu.Unlock()

	log.Printf("Connection closed: %s (reason: %s)", c.ID, reason)

	if participantID == uuid.Nil {
		return
	}

	if r.onTerminate != nil {
		r.onTerminate(participantID, reason)
	}

	r.mu.Lock()
	// Участник мог успеть перепривязаться, пока terminate работал;
	// такому не трогаем ни статус, ни окно удаления
	if _, rebound := r.byParticipant[participantID]; !rebound {
		r.presence.SetStatus(participantID, StatusReconnecting)
		r.cancelGraceLocked(participantID)
		r.grace[participantID] = r.clock.AfterFunc(r.departureGrace, func() {
			r.onDepartureExpired(participantID)
		})
	}
	r.mu.Unlock()
}

func (r *ConnectionRegistry) onDepartureExpired(participantID uuid.UUID) {
	r.mu.Lock()
	delete(r.grace, participantID)
	if _, rebound := r.byParticipant[participantID]; rebound {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.presence.SetStatus(participantID, StatusOffline)
	r.presence.Remove(participantID)
	log.Printf("Participant %s removed: reconnect window expired", participantID)
}

// disposeLocked снимает таймер и закрывает соединение; идемпотентен
func (r *ConnectionRegistry) disposeLocked(c *Connection) {
	if t, ok := r.deadlines[c.ID]; ok {
		t.Stop()
		delete(r.deadlines, c.ID)
	}
	delete(r.deadlineGen, c.ID)
	delete(r.conns, c.ID)

	if pid := c.ParticipantID(); pid != uuid.Nil && r.byParticipant[pid] == c {
		delete(r.byParticipant, pid)
	}
	c.dispose()
}

// resetDeadlineLocked перезаряжает дедлайн. Stop мог опоздать — колбэк
// старого таймера уже стартовал; поколение отсекает такие срабатывания.
func (r *ConnectionRegistry) resetDeadlineLocked(c *Connection) {
	if t, ok := r.deadlines[c.ID]; ok {
		t.Stop()
	}
	r.deadlineGen[c.ID]++
	gen := r.deadlineGen[c.ID]
	r.deadlines[c.ID] = r.clock.AfterFunc(r.registerTimeout, func() {
		r.onDeadlineExpired(c, gen)
	})
}

func (r *ConnectionRegistry) onDeadlineExpired(c *Connection, gen uint64) {
	r.mu.Lock()
	if r.deadlineGen[c.ID] != gen {
		// Дедлайн успели продлить или соединение утилизировано
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.teardown(c, "timeout")
}

func (r *ConnectionRegistry) cancelGraceLocked(participantID uuid.UUID) {
	if t, ok := r.grace[participantID]; ok {
		t.Stop()
		delete(r.grace, participantID)
	}
}

// SendToParticipant отправляет сообщение живому соединению участника
func (r *ConnectionRegistry) SendToParticipant(participantID uuid.UUID, data []byte) bool {
	r.mu.Lock()
	c, ok := r.byParticipant[participantID]
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := c.SendRaw(data); err != nil {
		log.Printf("Failed to send to client %s: %v", c.ID, err)
		return false
	}
	return true
}

// BroadcastAll рассылает всем зарегистрированным, кроме exclude
func (r *ConnectionRegistry) BroadcastAll(data []byte, exclude uuid.UUID) {
	r.mu.Lock()
	targets := make([]*Connection, 0, len(r.byParticipant))
	for pid, c := range r.byParticipant {
		if pid != exclude {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	for _, c := range targets {
		if err := c.SendRaw(data); err != nil {
			log.Printf("Failed to send to client %s: %v", c.ID, err)
		}
	}
}

// ConnectionOf возвращает живое соединение участника
func (r *ConnectionRegistry) ConnectionOf(participantID uuid.UUID) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byParticipant[participantID]
	return c, ok
}

// Shutdown закрывает все соединения
func (r *ConnectionRegistry) Shutdown() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		r.mu.Lock()
		r.disposeLocked(c)
		r.mu.Unlock()
	}
}
