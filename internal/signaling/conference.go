package signaling

import (
	"log"
	"time"

	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/thereayou/conferio/internal/roomlog"
)

// Причины закрытия; попадают в журнал комнаты, но не в рассылку —
// получатель не отличает закрытие по таймеру от явного.
const (
	ReasonNoParticipants = "timerIdNoParticipantsSecs"
	ReasonMaxDuration    = "timerIdMaxDuration"
	ReasonLeaderExit     = "leaderExit"
	ReasonClosedByAdmin  = "closedByRequest"
	ReasonServerShutdown = "serverShutdown"
)

// ConferenceConfig приходит с запросом на создание; нулевые поля
// заменяются значениями по умолчанию реестра.
type ConferenceConfig struct {
	UsersMax                  int    `json:"usersMax,omitempty"`
	GuestsMax                 int    `json:"guestsMax,omitempty"`
	AccessCode                string `json:"accessCode,omitempty"`
	MaxDurationMinutes        int    `json:"maxDurationMinutes,omitempty"`
	NoParticipantsTimeoutSecs int    `json:"noParticipantsTimeoutSecs,omitempty"`
	CloseOnLeaderExit         bool   `json:"closeOnLeaderExit,omitempty"`
	AdminTrackingID           string `json:"adminTrackingId,omitempty"`
	Layout                    string `json:"layout,omitempty"`
}

// confMember помнит пул, под который участник был допущен: роль может
// поменяться после входа, пул — нет.
type confMember struct {
	id    uuid.UUID
	guest bool
}

// Conference хранит идентификаторы участников и пул допуска; данные
// участника живут в PresenceDirectory.
type Conference struct {
	ID          uuid.UUID
	ExternalID  string
	Config      ConferenceConfig
	RoomToken   string
	PresenterID uuid.UUID
	CreatedAt   time.Time

	members    []confMember
	users      int
	guests     int
	accessHash []byte

	// generation инвалидирует уже поставленные в очередь срабатывания
	// grace-таймера
	generation    uint64
	closed        bool
	graceTimer    Timer
	durationTimer Timer
}

// Defaults — таймауты уровня сервера для конференций без явного конфига
type Defaults struct {
	NoParticipantsTimeoutSecs int
	MaxDurationMinutes        int
}

// ConferenceRegistry владеет множеством живых конференций и их таймерами
type ConferenceRegistry struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]*Conference
	byExternal map[string]*Conference

	presence *PresenceDirectory
	clock    Clock
	events   *EventBus
	logs     roomlog.Adapter
	defaults Defaults
}

func NewConferenceRegistry(clock Clock, presence *PresenceDirectory, logs roomlog.Adapter, defaults Defaults) *ConferenceRegistry {
	if defaults.NoParticipantsTimeoutSecs <= 0 {
		defaults.NoParticipantsTimeoutSecs = 60
	}
	return &ConferenceRegistry{
		byID:       make(map[uuid.UUID]*Conference),
		byExternal: make(map[string]*Conference),
		presence:   presence,
		clock:      clock,
		events:     NewEventBus(),
		logs:       logs,
		defaults:   defaults,
	}
}

func (r *ConferenceRegistry) Events() *EventBus { return r.events }

// Create регистрирует конференцию и запускает её таймеры. Пустой
// конференции сразу даётся grace-окно — создатель должен успеть войти.
func (r *ConferenceRegistry) Create(externalID string, cfg ConferenceConfig) (*Conference, error) {
	if cfg.UsersMax <= 0 {
		cfg.UsersMax = 20
	}
	if cfg.NoParticipantsTimeoutSecs <= 0 {
		cfg.NoParticipantsTimeoutSecs = r.defaults.NoParticipantsTimeoutSecs
	}
	if cfg.MaxDurationMinutes <= 0 {
		cfg.MaxDurationMinutes = r.defaults.MaxDurationMinutes
	}

	conf := &Conference{
		ID:         uuid.New(),
		ExternalID: externalID,
		RoomToken:  uuid.NewString(),
		CreatedAt:  r.clock.Now(),
	}

	if cfg.AccessCode != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AccessCode), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		conf.accessHash = hash
		cfg.AccessCode = ""
	}
	conf.Config = cfg

	r.mu.Lock()
	r.byID[conf.ID] = conf
	if externalID != "" {
		r.byExternal[externalID] = conf
	}
	r.startGraceLocked(conf)
	if cfg.MaxDurationMinutes > 0 {
		confID := conf.ID
		conf.durationTimer = r.clock.AfterFunc(time.Duration(cfg.MaxDurationMinutes)*time.Minute, func() {
			r.onDurationExpired(confID)
		})
	}
	r.mu.Unlock()

	log.Printf("Conference created: %s (external: %q)", conf.ID, externalID)
	r.saveLog(conf.ID, "created", "")
	return conf, nil
}

func (r *ConferenceRegistry) Get(conferenceID uuid.UUID) (*Conference, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conf, ok := r.byID[conferenceID]
	return conf, ok
}

func (r *ConferenceRegistry) GetByExternal(externalID string) (*Conference, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conf, ok := r.byExternal[externalID]
	return conf, ok
}

// Join добавляет участника. Гости и пользователи считаются раздельными
// пулами ёмкости. Повторный join того же участника — no-op.
func (r *ConferenceRegistry) Join(conferenceID, participantID uuid.UUID, roomToken, accessCode string) error {
	r.mu.Lock()

	conf, ok := r.byID[conferenceID]
	if !ok || conf.closed {
		r.mu.Unlock()
		return ErrConferenceNotFound
	}

	if conf.RoomToken != "" && roomToken != conf.RoomToken {
		r.mu.Unlock()
		return ErrTokenMismatch
	}

	if len(conf.accessHash) > 0 {
		if bcrypt.CompareHashAndPassword(conf.accessHash, []byte(accessCode)) != nil {
			r.mu.Unlock()
			return ErrUnauthorized
		}
	}

	info, ok := r.presence.Info(participantID)
	if !ok {
		r.mu.Unlock()
		return ErrParticipantNotFound
	}

	for _, m := range conf.members {
		if m.id == participantID {
			r.mu.Unlock()
			return nil
		}
	}

	var events []Event

	// Участник состоит максимум в одной конференции
	if prevID, _ := r.presence.ConferenceOf(participantID); prevID != uuid.Nil && prevID != conf.ID {
		if prev, ok := r.byID[prevID]; ok {
			events = append(events, r.leaveLocked(prev, participantID, "joinedOther")...)
		}
	}

	isGuest := info.Role == RoleGuest
	if isGuest {
		if conf.guests >= conf.Config.GuestsMax {
			r.mu.Unlock()
			r.dispatch(events)
			return ErrCapacityExceeded
		}
	} else {
		if conf.users >= conf.Config.UsersMax {
			r.mu.Unlock()
			r.dispatch(events)
			return ErrCapacityExceeded
		}
	}

	conf.members = append(conf.members, confMember{id: participantID, guest: isGuest})
	if isGuest {
		conf.guests++
	} else {
		conf.users++
	}

	// Отменяем grace-таймер и инвалидируем уже запланированное срабатывание
	conf.generation++
	if conf.graceTimer != nil {
		conf.graceTimer.Stop()
		conf.graceTimer = nil
	}

	if conf.PresenterID == uuid.Nil && conf.Config.AdminTrackingID != "" {
		if p, ok := r.presence.Get(participantID); ok && p.TrackingID == conf.Config.AdminTrackingID {
			conf.PresenterID = participantID
			r.presence.SetRole(participantID, RoleAdmin)
			info.Role = RoleAdmin
		}
	}

	r.presence.SetStatus(participantID, StatusBusy)
	r.presence.SetConference(participantID, conf.ID)
	info.Status = StatusBusy

	others := make([]uuid.UUID, 0, len(conf.members)-1)
	for _, m := range conf.members {
		if m.id != participantID {
			others = append(others, m.id)
		}
	}
	events = append(events, Event{
		Type:          EventPeerJoined,
		ConferenceID:  conf.ID,
		ExternalID:    conf.ExternalID,
		ParticipantID: participantID,
		Participant:   &info,
		Members:       others,
	})

	r.mu.Unlock()
	r.dispatch(events)
	return nil
}

// Leave убирает участника; не-участник получает ParticipantNotFound
func (r *ConferenceRegistry) Leave(conferenceID, participantID uuid.UUID, reason string) error {
	r.mu.Lock()

	conf, ok := r.byID[conferenceID]
	if !ok || conf.closed {
		r.mu.Unlock()
		return ErrConferenceNotFound
	}

	events := r.leaveLocked(conf, participantID, reason)
	r.mu.Unlock()

	if events == nil {
		return ErrParticipantNotFound
	}
	r.dispatch(events)
	return nil
}

// LeaveAll выводит участника из его конференции (если есть). Используется
// при обрыве соединения; гонка с явным leave разрешается проверкой
// членства — второй вызов ничего не делает.
func (r *ConferenceRegistry) LeaveAll(participantID uuid.UUID, reason string) {
	confID, ok := r.presence.ConferenceOf(participantID)
	if !ok || confID == uuid.Nil {
		return
	}
	r.Leave(confID, participantID, reason)
}

// leaveLocked возвращает nil, если участник не был членом
func (r *ConferenceRegistry) leaveLocked(conf *Conference, participantID uuid.UUID, reason string) []Event {
	idx := -1
	for i, m := range conf.members {
		if m.id == participantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	// Слот возвращается в пул допуска, а не в пул текущей роли
	member := conf.members[idx]
	conf.members = append(conf.members[:idx], conf.members[idx+1:]...)
	if member.guest {
		conf.guests--
	} else {
		conf.users--
	}

	r.presence.SetStatus(participantID, StatusOnline)
	r.presence.SetConference(participantID, uuid.Nil)

	remaining := make([]uuid.UUID, len(conf.members))
	for i, m := range conf.members {
		remaining[i] = m.id
	}

	events := []Event{{
		Type:          EventPeerLeft,
		ConferenceID:  conf.ID,
		ExternalID:    conf.ExternalID,
		ParticipantID: participantID,
		Members:       remaining,
		Reason:        reason,
	}}

	if conf.PresenterID == participantID && conf.Config.CloseOnLeaderExit {
		events = append(events, r.closeLocked(conf, ReasonLeaderExit)...)
	} else if len(conf.members) == 0 {
		r.startGraceLocked(conf)
	}

	return events
}

// Close закрывает конференцию; повторный или по неизвестному id — no-op
func (r *ConferenceRegistry) Close(conferenceID uuid.UUID, reason string) {
	r.mu.Lock()
	conf, ok := r.byID[conferenceID]
	if !ok {
		r.mu.Unlock()
		return
	}
	events := r.closeLocked(conf, reason)
	r.mu.Unlock()

	r.dispatch(events)
}

// CloseAll закрывает все конференции (остановка сервера)
func (r *ConferenceRegistry) CloseAll(reason string) {
	r.mu.Lock()
	var events []Event
	for _, conf := range r.byID {
		events = append(events, r.closeLocked(conf, reason)...)
	}
	r.mu.Unlock()

	r.dispatch(events)
}

func (r *ConferenceRegistry) closeLocked(conf *Conference, reason string) []Event {
	if conf.closed {
		return nil
	}
	conf.closed = true
	conf.generation++

	if conf.graceTimer != nil {
		conf.graceTimer.Stop()
		conf.graceTimer = nil
	}
	if conf.durationTimer != nil {
		conf.durationTimer.Stop()
		conf.durationTimer = nil
	}

	members := make([]uuid.UUID, len(conf.members))
	for i, m := range conf.members {
		members[i] = m.id
	}

	// Снимается только busy; offline ставит лишь обрыв соединения
	for _, id := range members {
		r.presence.SetStatus(id, StatusOnline)
		r.presence.SetConference(id, uuid.Nil)
	}
	conf.members = nil
	conf.users = 0
	conf.guests = 0

	delete(r.byID, conf.ID)
	if conf.ExternalID != "" {
		delete(r.byExternal, conf.ExternalID)
	}

	return []Event{{
		Type:         EventConferenceClosed,
		ConferenceID: conf.ID,
		ExternalID:   conf.ExternalID,
		Members:      members,
		Reason:       reason,
	}}
}

// GetParticipants возвращает участников в порядке входа; для
// неизвестного id — пустой срез, не ошибка
func (r *ConferenceRegistry) GetParticipants(conferenceID uuid.UUID) []ParticipantInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	conf, ok := r.byID[conferenceID]
	if !ok {
		return []ParticipantInfo{}
	}

	infos := make([]ParticipantInfo, 0, len(conf.members))
	for _, m := range conf.members {
		if info, ok := r.presence.Info(m.id); ok {
			infos = append(infos, info)
		}
	}
	return infos
}

func (r *ConferenceRegistry) startGraceLocked(conf *Conference) {
	d := time.Duration(conf.Config.NoParticipantsTimeoutSecs) * time.Second
	confID := conf.ID
	gen := conf.generation
	conf.graceTimer = r.clock.AfterFunc(d, func() {
		r.onGraceExpired(confID, gen)
	})
}

func (r *ConferenceRegistry) onGraceExpired(conferenceID uuid.UUID, gen uint64) {
	r.mu.Lock()
	conf, ok := r.byID[conferenceID]
	if !ok || conf.closed || conf.generation != gen || len(conf.members) > 0 {
		// Таймер сработал против уже изменившегося состояния
		r.mu.Unlock()
		return
	}
	events := r.closeLocked(conf, ReasonNoParticipants)
	r.mu.Unlock()

	r.dispatch(events)
}

func (r *ConferenceRegistry) onDurationExpired(conferenceID uuid.UUID) {
	r.mu.Lock()
	conf, ok := r.byID[conferenceID]
	if !ok || conf.closed {
		r.mu.Unlock()
		return
	}
	events := r.closeLocked(conf, ReasonMaxDuration)
	r.mu.Unlock()

	r.dispatch(events)
}

// dispatch пишет журнал и рассылает события; вызывается без мьютекса
func (r *ConferenceRegistry) dispatch(events []Event) {
	for _, ev := range events {
		switch ev.Type {
		case EventPeerJoined:
			log.Printf("Participant %s joined conference %s", ev.ParticipantID, ev.ConferenceID)
			r.saveLog(ev.ConferenceID, "peerJoined", "")
		case EventPeerLeft:
			log.Printf("Participant %s left conference %s (reason: %s)", ev.ParticipantID, ev.ConferenceID, ev.Reason)
			r.saveLog(ev.ConferenceID, "peerLeft", ev.Reason)
		case EventConferenceClosed:
			log.Printf("Conference closed: %s (reason: %s)", ev.ConferenceID, ev.Reason)
			r.saveLog(ev.ConferenceID, "closed", ev.Reason)
		}
		r.events.Fire(ev)
	}
}

func (r *ConferenceRegistry) saveLog(conferenceID uuid.UUID, event, reason string) {
	if r.logs == nil {
		return
	}
	entry := &roomlog.Entry{
		RoomID:    conferenceID.String(),
		Event:     event,
		Reason:    reason,
		CreatedAt: r.clock.Now(),
	}
	if err := r.logs.Save(entry); err != nil {
		log.Printf("Failed to save room log: %v", err)
	}
}
