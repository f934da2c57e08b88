package signaling

import (
	"testing"

	"github.com/google/uuid"
)

// Полный путь приглашения: invite → accept → обе стороны в конференции,
// приглашавший первым
func TestInviteAcceptFlow(t *testing.T) {
	env := newTestEnv(t)
	ca, alice := env.register(t, "alice", RoleUser)
	cb, bob := env.register(t, "bob", RoleUser)

	env.send(t, ca, TypeInvite, InvitePayload{To: bob})

	var inviteResult InviteResult
	recv(t, ca, TypeInviteResult, &inviteResult)
	if inviteResult.Error != "" {
		t.Fatalf("invite failed: %s", inviteResult.Error)
	}

	var notice InviteNotice
	recv(t, cb, TypeInvite, &notice)
	if notice.From != alice || notice.DisplayName != "alice" {
		t.Fatalf("invite notice = %+v", notice)
	}

	env.send(t, cb, TypeAccept, AcceptPayload{From: alice})

	var bobResult JoinResult
	recv(t, cb, TypeJoinResult, &bobResult)
	if bobResult.Error != "" {
		t.Fatalf("accept failed: %s", bobResult.Error)
	}
	if len(bobResult.Participants) != 2 ||
		bobResult.Participants[0].ID != alice ||
		bobResult.Participants[1].ID != bob {
		t.Fatalf("participants = %v, want [alice bob]", bobResult.Participants)
	}

	// Приглашавший получает такой же joinResult
	var aliceResult JoinResult
	recv(t, ca, TypeJoinResult, &aliceResult)
	if aliceResult.ConferenceID != bobResult.ConferenceID {
		t.Fatalf("conference ids differ: %s vs %s", aliceResult.ConferenceID, bobResult.ConferenceID)
	}

	confID, _ := uuid.Parse(bobResult.ConferenceID)
	if got := env.conferences.GetParticipants(confID); len(got) != 2 {
		t.Fatalf("conference has %d members, want 2", len(got))
	}
}

func TestSecondInviteToSamePeerPending(t *testing.T) {
	env := newTestEnv(t)
	ca, _ := env.register(t, "alice", RoleUser)
	cb, bob := env.register(t, "bob", RoleUser)

	env.send(t, ca, TypeInvite, InvitePayload{To: bob})
	drain(ca)
	drain(cb)

	env.send(t, ca, TypeInvite, InvitePayload{To: bob})

	var result InviteResult
	recv(t, ca, TypeInviteResult, &result)
	if result.Error != ErrInviteAlreadyPending.Error() {
		t.Fatalf("error = %q, want %q", result.Error, ErrInviteAlreadyPending)
	}
	// Повторного уведомления приглашаемый не получает
	expectNone(t, cb, TypeInvite)
}

// Занятый участник недостижим для приглашений
func TestInviteBusyParticipant(t *testing.T) {
	env := newTestEnv(t)
	ca, _ := env.register(t, "alice", RoleUser)
	cb, bob := env.register(t, "bob", RoleUser)

	conf, _ := env.conferences.Create("", ConferenceConfig{UsersMax: 2})
	env.send(t, cb, TypeJoin, JoinPayload{ConferenceID: conf.ID, RoomToken: conf.RoomToken})
	drain(cb)

	env.send(t, ca, TypeInvite, InvitePayload{To: bob})

	var result InviteResult
	recv(t, ca, TypeInviteResult, &result)
	if result.Error != ErrParticipantNotFound.Error() {
		t.Fatalf("error = %q, want %q", result.Error, ErrParticipantNotFound)
	}
}

func TestInviteUnknownParticipant(t *testing.T) {
	env := newTestEnv(t)
	ca, _ := env.register(t, "alice", RoleUser)

	env.send(t, ca, TypeInvite, InvitePayload{To: uuid.New()})

	var result InviteResult
	recv(t, ca, TypeInviteResult, &result)
	if result.Error != ErrParticipantNotFound.Error() {
		t.Fatalf("error = %q, want %q", result.Error, ErrParticipantNotFound)
	}
}

func TestRejectInvite(t *testing.T) {
	env := newTestEnv(t)
	ca, alice := env.register(t, "alice", RoleUser)
	cb, bob := env.register(t, "bob", RoleUser)

	env.send(t, ca, TypeInvite, InvitePayload{To: bob})
	drain(ca)
	drain(cb)

	env.send(t, cb, TypeReject, RejectPayload{From: alice})

	var result RejectResult
	recv(t, cb, TypeRejectResult, &result)
	if result.Error != "" {
		t.Fatalf("reject failed: %s", result.Error)
	}

	var received RejectReceived
	recv(t, ca, TypeRejectReceived, &received)
	if received.By != bob {
		t.Fatalf("rejectReceived.by = %s, want %s", received.By, bob)
	}

	// Отклонённое приглашение нельзя принять
	env.send(t, cb, TypeAccept, AcceptPayload{From: alice})
	var joinResult JoinResult
	recv(t, cb, TypeJoinResult, &joinResult)
	if joinResult.Error != ErrInviteNotFound.Error() {
		t.Fatalf("error = %q, want %q", joinResult.Error, ErrInviteNotFound)
	}
}

func TestGetContactsExcludesSelf(t *testing.T) {
	env := newTestEnv(t)
	ca, alice := env.register(t, "alice", RoleUser)
	_, bob := env.register(t, "bob", RoleUser)

	env.send(t, ca, TypeGetContacts, nil)

	var result ContactsResult
	recv(t, ca, TypeContactsResult, &result)
	if len(result.Contacts) != 1 || result.Contacts[0].ID != bob {
		t.Fatalf("contacts = %v, want only bob", result.Contacts)
	}
	for _, contact := range result.Contacts {
		if contact.ID == alice {
			t.Fatalf("contact list includes requester")
		}
	}
}

func TestLeaveMessage(t *testing.T) {
	env := newTestEnv(t)
	ca, _ := env.register(t, "alice", RoleUser)

	conf, _ := env.conferences.Create("", ConferenceConfig{UsersMax: 2})
	env.send(t, ca, TypeJoin, JoinPayload{ConferenceID: conf.ID, RoomToken: conf.RoomToken})
	drain(ca)

	env.send(t, ca, TypeLeave, LeavePayload{ConferenceID: conf.ID})
	var result LeaveResult
	recv(t, ca, TypeLeaveResult, &result)
	if result.Error != "" {
		t.Fatalf("leave failed: %s", result.Error)
	}

	// Повторный leave — уже не участник
	env.send(t, ca, TypeLeave, LeavePayload{ConferenceID: conf.ID})
	recv(t, ca, TypeLeaveResult, &result)
	if result.Error != ErrParticipantNotFound.Error() {
		t.Fatalf("error = %q, want %q", result.Error, ErrParticipantNotFound)
	}
}

// Обрыв сокета выводит участника из конференции; остальные узнают
func TestSocketCloseLeavesConference(t *testing.T) {
	env := newTestEnv(t)
	ca, alice := env.register(t, "alice", RoleUser)
	cb, _ := env.register(t, "bob", RoleUser)

	conf, _ := env.conferences.Create("", ConferenceConfig{UsersMax: 2})
	env.send(t, ca, TypeJoin, JoinPayload{ConferenceID: conf.ID, RoomToken: conf.RoomToken})
	env.send(t, cb, TypeJoin, JoinPayload{ConferenceID: conf.ID, RoomToken: conf.RoomToken})
	drain(ca)
	drain(cb)

	env.router.ConnectionClosed(ca)

	var left ParticipantLeftNotice
	recv(t, cb, TypeParticipantLeft, &left)
	if left.ParticipantID != alice {
		t.Fatalf("participantLeft.participantId = %s, want %s", left.ParticipantID, alice)
	}

	if got := env.conferences.GetParticipants(conf.ID); len(got) != 1 {
		t.Fatalf("conference has %d members, want 1", len(got))
	}
	if p, ok := env.presence.Get(alice); !ok || p.Status != StatusReconnecting {
		t.Fatalf("departed participant not in reconnecting state")
	}
}

func TestJoinByExternalID(t *testing.T) {
	env := newTestEnv(t)
	ca, _ := env.register(t, "alice", RoleUser)

	conf, _ := env.conferences.Create("meet-42", ConferenceConfig{UsersMax: 2})
	env.send(t, ca, TypeJoin, JoinPayload{ExternalID: "meet-42", RoomToken: conf.RoomToken})

	var result JoinResult
	recv(t, ca, TypeJoinResult, &result)
	if result.Error != "" {
		t.Fatalf("join by external id failed: %s", result.Error)
	}
	if result.ConferenceID != conf.ID.String() {
		t.Fatalf("conferenceId = %s, want %s", result.ConferenceID, conf.ID)
	}
}

// Гость без валидного допуска попадает в очередь ожидания комнаты
// и покидает её после успешного входа
func TestGuestWithoutAccessQueuesInLobby(t *testing.T) {
	env := newTestEnv(t)
	cg, guest := env.register(t, "visitor", RoleGuest)

	conf, _ := env.conferences.Create("meet-42", ConferenceConfig{UsersMax: 2, GuestsMax: 2})

	env.send(t, cg, TypeJoin, JoinPayload{ExternalID: "meet-42", RoomToken: "wrong"})
	var result JoinResult
	recv(t, cg, TypeJoinResult, &result)
	if result.Error != ErrTokenMismatch.Error() {
		t.Fatalf("error = %q, want %q", result.Error, ErrTokenMismatch)
	}
	if env.lobby.CountWaiting("meet-42") != 1 {
		t.Fatalf("guest not queued in lobby")
	}
	if waiting := env.lobby.Waiting("meet-42"); waiting[0] != guest {
		t.Fatalf("lobby holds %v, want guest", waiting)
	}

	env.send(t, cg, TypeJoin, JoinPayload{ExternalID: "meet-42", RoomToken: conf.RoomToken})
	result = JoinResult{}
	recv(t, cg, TypeJoinResult, &result)
	if result.Error != "" {
		t.Fatalf("join failed: %s", result.Error)
	}
	if env.lobby.CountWaiting("meet-42") != 0 {
		t.Fatalf("guest still in lobby after join")
	}
}

// Ретрансляция доставляет конверт только названному пиру той же конференции
func TestRelayToCoLocatedPeer(t *testing.T) {
	env := newTestEnv(t)
	ca, _ := env.register(t, "alice", RoleUser)
	cb, bob := env.register(t, "bob", RoleUser)
	cc, carol := env.register(t, "carol", RoleUser)

	conf, _ := env.conferences.Create("", ConferenceConfig{UsersMax: 3})
	env.send(t, ca, TypeJoin, JoinPayload{ConferenceID: conf.ID, RoomToken: conf.RoomToken})
	env.send(t, cb, TypeJoin, JoinPayload{ConferenceID: conf.ID, RoomToken: conf.RoomToken})
	drain(ca)
	drain(cb)
	drain(cc)

	env.send(t, ca, TypeRTCIce, map[string]interface{}{"to": bob, "candidate": "cand-1"})

	var relayed struct {
		To        uuid.UUID `json:"to"`
		Candidate string    `json:"candidate"`
	}
	recv(t, cb, TypeRTCIce, &relayed)
	if relayed.Candidate != "cand-1" {
		t.Fatalf("relay payload altered: %+v", relayed)
	}

	// Пир вне конференции ничего не получает
	env.send(t, ca, TypeRTCIce, map[string]interface{}{"to": carol, "candidate": "cand-2"})
	expectNone(t, cc, TypeRTCIce)
}

func TestRelayOutsideConferenceDropped(t *testing.T) {
	env := newTestEnv(t)
	ca, _ := env.register(t, "alice", RoleUser)
	cb, bob := env.register(t, "bob", RoleUser)

	// Никто не в конференции
	env.send(t, ca, TypeRTCOffer, map[string]interface{}{"to": bob, "sdp": "v=0"})
	expectNone(t, cb, TypeRTCOffer)
}

func TestMalformedEnvelopeDropped(t *testing.T) {
	env := newTestEnv(t)
	c, _ := env.register(t, "alice", RoleUser)

	env.router.HandleRaw(c, []byte("{not json"))
	env.router.HandleRaw(c, []byte(`{"data":{"x":1}}`))

	if c.Disposed() {
		t.Fatalf("connection dropped on malformed message")
	}
	expectNone(t, c, TypeRegisterResult)
}

// Обрыв соединения чистит висящие приглашения в обе стороны
func TestDisconnectClearsPendingInvites(t *testing.T) {
	env := newTestEnv(t)
	ca, alice := env.register(t, "alice", RoleUser)
	cb, _ := env.register(t, "bob", RoleUser)

	env.send(t, ca, TypeInvite, InvitePayload{To: cb.ParticipantID()})
	drain(ca)
	drain(cb)

	env.router.ConnectionClosed(ca)

	env.send(t, cb, TypeAccept, AcceptPayload{From: alice})
	var result JoinResult
	recv(t, cb, TypeJoinResult, &result)
	if result.Error != ErrInviteNotFound.Error() {
		t.Fatalf("error = %q, want %q", result.Error, ErrInviteNotFound)
	}
}
