package signaling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/thereayou/conferio/internal/roomlog"
	"github.com/thereayou/conferio/internal/sfu"
	"github.com/thereayou/conferio/pkg/auth"
)

const testSecret = "test-secret"

type testEnv struct {
	clock       *fakeClock
	tokens      *auth.TokenManager
	presence    *PresenceDirectory
	lobby       *RoomLobby
	logs        *roomlog.Memory
	conns       *ConnectionRegistry
	conferences *ConferenceRegistry
	router      *Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newFakeClock()
	tokens := auth.NewTokenManager(testSecret, time.Hour)
	presence := NewPresenceDirectory()
	lobby := NewRoomLobby()
	logs := roomlog.NewMemory()

	conferences := NewConferenceRegistry(clock, presence, logs, Defaults{
		NoParticipantsTimeoutSecs: 60,
	})
	conns := NewConnectionRegistry(clock, tokens, presence, 30*time.Second, 30*time.Second)
	router := NewRouter(conns, presence, conferences, lobby, sfu.NoopEngine{})

	return &testEnv{
		clock:       clock,
		tokens:      tokens,
		presence:    presence,
		lobby:       lobby,
		logs:        logs,
		conns:       conns,
		conferences: conferences,
		router:      router,
	}
}

func (e *testEnv) openConnection() *Connection {
	c := NewConnection(nil)
	e.conns.OnConnectionOpened(c)
	return c
}

func (e *testEnv) send(t *testing.T, c *Connection, msgType MessageType, data interface{}) {
	t.Helper()

	raw, err := Encode(msgType, data)
	if err != nil {
		t.Fatalf("encode %s: %v", msgType, err)
	}
	e.router.HandleRaw(c, raw)
}

// register открывает соединение и регистрирует участника заданной роли
func (e *testEnv) register(t *testing.T, name string, role Role) (*Connection, uuid.UUID) {
	t.Helper()

	c := e.openConnection()
	pid := uuid.New()
	token, err := e.tokens.Generate(pid.String(), name, string(role), "")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	e.send(t, c, TypeRegister, RegisterPayload{Token: token})

	var result RegisterResult
	recv(t, c, TypeRegisterResult, &result)
	if result.Error != "" {
		t.Fatalf("register %s failed: %s", name, result.Error)
	}
	if result.ParticipantID != pid.String() {
		t.Fatalf("register %s: participantId = %s, want %s", name, result.ParticipantID, pid)
	}
	return c, pid
}

// recv вычитывает очередь соединения до сообщения нужного типа
func recv(t *testing.T, c *Connection, want MessageType, dest interface{}) {
	t.Helper()

	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				t.Fatalf("connection closed while waiting for %s", want)
			}
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("bad envelope: %v", err)
			}
			if msg.Type != want {
				continue
			}
			if dest != nil && msg.Data != nil {
				if err := json.Unmarshal(msg.Data, dest); err != nil {
					t.Fatalf("bad %s payload: %v", want, err)
				}
			}
			return
		default:
			t.Fatalf("no %s message in queue", want)
		}
	}
}

// expectNone проверяет, что сообщений заданного типа в очереди нет
func expectNone(t *testing.T, c *Connection, unwanted MessageType) {
	t.Helper()

	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("bad envelope: %v", err)
			}
			if msg.Type == unwanted {
				t.Fatalf("unexpected %s message", unwanted)
			}
		default:
			return
		}
	}
}

func drain(c *Connection) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}
