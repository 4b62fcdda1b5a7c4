package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"linkup/auth"
	"linkup/domain"
	"linkup/domain/event"
	"linkup/repositories"
	"linkup/runtime"
	"linkup/runtime/workers"
	"linkup/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type stack struct {
	pipeline *runtime.Pipeline
	registry *runtime.ConnectionRegistry
	server   *httptest.Server
	cancel   context.CancelFunc
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	registry := runtime.NewConnectionRegistry()
	messages := repositories.NewMessageRepository(db, log, nil)
	pipeline := runtime.NewPipeline(log, registry, messages, nil, nil, 8, time.Second)
	chat := services.NewChatService(pipeline, repositories.NewUserRepository(db))

	ctx, cancel := context.WithCancel(context.Background())
	fanout := workers.NewPresenceFanout(log, registry, pipeline.PresenceChanges(), time.Second)
	go func() { _ = fanout.Run(ctx) }()

	server := httptest.NewServer(NewHandler(log, chat, 8))
	t.Cleanup(server.Close)
	t.Cleanup(cancel)

	return &stack{pipeline: pipeline, registry: registry, server: server, cancel: cancel}
}

func (s *stack) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := auth.GenerateToken(userID, []string{"user"}, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame.Event, frame.Payload
}

func TestHandler_Rejects_Handshake_Without_Token(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	_, resp, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(s.server.URL, "http"), nil)

	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	req.Empty(s.registry.Snapshot())
}

func TestHandler_Registers_Identity_From_Token(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	conn := s.dial(t, "user-1")

	// The connect itself triggers a presence frame
	name, payload := readEnvelope(t, conn)
	req.Equal(event.PresenceChanged{}.EventName(), name)

	var presence presencePayload
	req.NoError(json.Unmarshal(payload, &presence))
	req.Equal([]string{"user-1"}, presence.Online)
	req.Equal([]string{"user-1"}, s.registry.Snapshot())
}

func TestHandler_Delivers_NewMessage_To_Receiver_Connection(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	sender := s.dial(t, "user-1")
	receiver := s.dial(t, "user-2")

	// Wait until both clients observed the full online set; how many
	// presence frames each one gets depends on fan-out timing
	waitForPresence := func(conn *websocket.Conn, want []string) {
		for {
			name, payload := readEnvelope(t, conn)
			if name != "presenceChanged" {
				continue
			}
			var presence presencePayload
			req.NoError(json.Unmarshal(payload, &presence))
			if len(presence.Online) == len(want) {
				req.Equal(want, presence.Online)
				return
			}
		}
	}
	waitForPresence(sender, []string{"user-1", "user-2"})
	waitForPresence(receiver, []string{"user-1", "user-2"})

	sent, err := s.pipeline.SendMessage(context.Background(),
		domain.SendMessageCommand{SenderID: "user-1", ReceiverID: "user-2", Text: "hi"})
	req.NoError(err)

	name, payload := readEnvelope(t, receiver)
	req.Equal("newMessage", name)

	var wire wireMessage
	req.NoError(json.Unmarshal(payload, &wire))
	req.Equal(sent.ID.String(), wire.ID)
	req.Equal("user-1", wire.SenderID)
	req.Equal("user-2", wire.ReceiverID)
	req.Equal("hi", wire.Text)
}
