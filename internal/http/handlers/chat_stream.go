package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dailydrop/server/internal/chat"
	"github.com/dailydrop/server/internal/http/response"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
)

// ChatStreamHandler streams newly sent chat messages over a WebSocket
type ChatStreamHandler struct {
	broadcaster *chat.Broadcaster
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

func NewChatStreamHandler(broadcaster *chat.Broadcaster, allowedOrigins []string, logger *slog.Logger) *ChatStreamHandler {
	return &ChatStreamHandler{
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleListen handles GET /chat.listenToMessage?chatId=. Without chatId the
// socket receives messages of every chat.
func (h *ChatStreamHandler) HandleListen(w http.ResponseWriter, r *http.Request) {
	chatID, err := optionalUUID(r, "chatId")
	if err != nil {
		response.Error(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.DebugContext(r.Context(), "websocket upgrade failed", slog.Any("error", err))
		return
	}

	sub := h.broadcaster.Subscribe(chatID)
	go readPump(conn, sub)
	h.writePump(conn, sub)
}

// readPump discards inbound frames and closes the subscription once the
// peer goes away.
func readPump(conn *websocket.Conn, sub *chat.Subscription) {
	defer sub.Close()
	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ChatStreamHandler) writePump(conn *websocket.Conn, sub *chat.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("websocket write failed", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
