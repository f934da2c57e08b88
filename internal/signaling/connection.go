package signaling

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения
	maxMessageSize = 512 * 1024 // 512KB
)

// MessageSink принимает сырые сообщения и события закрытия соединения
type MessageSink interface {
	HandleRaw(c *Connection, raw []byte)
	ConnectionClosed(c *Connection)
}

// Connection — живая транспортная сессия. Привязана максимум к одному
// участнику; до регистрации participantID пуст.
type Connection struct {
	ID          uuid.UUID
	Conn        *websocket.Conn // nil в тестах
	Send        chan []byte
	DateCreated time.Time

	mu                sync.Mutex
	participantID     uuid.UUID
	dateOfLastMessage time.Time
	disposed          bool
}

func NewConnection(conn *websocket.Conn) *Connection {
	now := time.Now()
	return &Connection{
		ID:                uuid.New(),
		Conn:              conn,
		Send:              make(chan []byte, 256),
		DateCreated:       now,
		dateOfLastMessage: now,
	}
}

func (c *Connection) ParticipantID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participantID
}

func (c *Connection) setParticipant(id uuid.UUID) {
	c.mu.Lock()
	c.participantID = id
	c.mu.Unlock()
}

func (c *Connection) touch(now time.Time) {
	c.mu.Lock()
	c.dateOfLastMessage = now
	c.mu.Unlock()
}

func (c *Connection) LastMessageAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dateOfLastMessage
}

// dispose закрывает транспорт и канал отправки; повторный вызов — no-op.
// Канал закрывается под мьютексом: SendRaw держит тот же мьютекс на
// время отправки, поэтому send в закрытый канал невозможен.
func (c *Connection) dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	close(c.Send)
	c.mu.Unlock()

	if c.Conn != nil {
		c.Conn.Close()
	}
}

func (c *Connection) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// SendRaw кладёт сообщение в очередь без блокировки. Проверка disposed
// и отправка атомарны относительно dispose.
func (c *Connection) SendRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return ErrConnectionDisposed
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrClientQueueFull
	}
}

func (c *Connection) SendMessage(msgType MessageType, data interface{}) error {
	raw, err := Encode(msgType, data)
	if err != nil {
		return err
	}
	return c.SendRaw(raw)
}

// ReadPump читает сообщения и передаёт их в sink
func (c *Connection) ReadPump(sink MessageSink) {
	defer func() {
		sink.ConnectionClosed(c)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		sink.HandleRaw(c, raw)
	}
}

// WritePump отправляет сообщения клиенту
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Реестр закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.Conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
