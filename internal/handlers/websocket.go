package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/thereayou/conferio/internal/signaling"
)

// WebSocketHandler принимает транспортные соединения.
// HTTP-аутентификации нет: идентичность устанавливает сообщение register,
// а до него соединение живёт под дедлайном регистрации.
type WebSocketHandler struct {
	registry *signaling.ConnectionRegistry
	router   *signaling.Router
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(registry *signaling.ConnectionRegistry, router *signaling.Router) *WebSocketHandler {
	return &WebSocketHandler{
		registry: registry,
		router:   router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Проверить origin в prod
				return true
			},
		},
	}
}

// HandleWebSocket обрабатывает WebSocket соединения
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := signaling.NewConnection(ws)
	h.registry.OnConnectionOpened(conn)

	go conn.WritePump()
	go conn.ReadPump(h.router)
}
