// Package ws exposes the realtime channel. Each accepted connection is
// registered in the connection registry under the identity verified by
// its JWT; the client never declares who it is.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"linkup/auth"
	"linkup/domain"
	"linkup/domain/event"
	"linkup/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// envelope is the outbound JSON frame for every realtime event.
type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type presencePayload struct {
	Online []string `json:"online"`
}

type wireAttachment struct {
	StorageID string `json:"storageId"`
	URL       string `json:"url"`
}

type wireMessage struct {
	ID         string          `json:"id"`
	SenderID   string          `json:"senderId"`
	ReceiverID string          `json:"receiverId"`
	Text       string          `json:"text,omitempty"`
	Attachment *wireAttachment `json:"attachment,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Handler struct {
	log        *slog.Logger
	chat       services.IChatService
	upgrader   websocket.Upgrader
	bufferSize int
}

func NewHandler(log *slog.Logger, chat services.IChatService, bufferSize int) *Handler {
	return &Handler{
		log:        log,
		chat:       chat,
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		bufferSize: bufferSize,
	}
}

// ServeHTTP upgrades the connection after validating the same JWT used
// for REST calls. A missing or invalid token never reaches the
// registry. The method blocks until the client disconnects; deferred
// unregistration keeps the registry leak-free even on abrupt closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ValidateToken(handshakeToken(r))
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}
	userID := claims.UserID

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	connID := uuid.NewString()
	sink := NewSink(h.bufferSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.chat.Connect(userID, connID, sink)
	defer h.chat.Disconnect(connID)

	go h.writePump(ctx, conn, sink)

	// The inbound direction only signals liveness: sends go through
	// REST, so the first read error means the client is gone
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	_ = conn.Close()
	h.log.Debug("Client disconnected", "user_id", userID, "conn_id", connID)
}

func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, sink *Sink) {
	defer conn.Close()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case evt := <-sink.Events():
			if err := conn.WriteJSON(toEnvelope(evt)); err != nil {
				h.log.Debug("Write to connection failed", "error", err)
				return
			}
		}
	}
}

func toEnvelope(evt event.DomainEvent) envelope {
	switch e := evt.(type) {
	case event.PresenceChanged:
		return envelope{Event: e.EventName(), Payload: presencePayload{Online: e.Online}}
	case event.NewMessage:
		return envelope{Event: e.EventName(), Payload: toWireMessage(e.Message)}
	default:
		return envelope{Event: evt.EventName()}
	}
}

func toWireMessage(m domain.Message) wireMessage {
	wire := wireMessage{
		ID:         m.ID.String(),
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		CreatedAt:  m.CreatedAt,
	}
	if m.Attachment != nil {
		wire.Attachment = &wireAttachment{StorageID: m.Attachment.StorageID, URL: m.Attachment.URL}
	}
	return wire
}

// handshakeToken accepts the JWT from the Authorization header, the
// session cookie, or a token query parameter (browser WebSocket clients
// cannot set headers).
func handshakeToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("jwt"); err == nil {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}
