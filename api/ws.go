package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"emolab/contract"
	"emolab/domain/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping period must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// eventEnvelope is the wire form of a domain event. It carries identifiers
// only; viewers re-fetch state on receipt.
type eventEnvelope struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Payload        any       `json:"payload"`
}

// wsSession is one viewer connection, registered as the participant's sink
// for a single conversation.
type wsSession struct {
	log  *slog.Logger
	conn *websocket.Conn
	send chan eventEnvelope
	done chan struct{}
}

var _ contract.EventSink = (*wsSession)(nil)

// Consume is called from the fanout worker. It never blocks it: a viewer
// that cannot keep up loses events, which is acceptable for invalidation
// hints.
func (s *wsSession) Consume(ctx context.Context, e event.DomainEvent) error {
	envelope := eventEnvelope{
		Type:           kindOf(e),
		ConversationID: e.Conversation(),
		Payload:        e,
	}
	select {
	case s.send <- envelope:
		return nil
	case <-s.done:
		return fmt.Errorf("session closed")
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("viewer send buffer full")
	}
}

func kindOf(e event.DomainEvent) string {
	switch e.(type) {
	case event.TurnChanged:
		return "turn_changed"
	case event.VersionCreated:
		return "version_created"
	case event.MessagePublished:
		return "message_published"
	case event.WhisperCreated:
		return "whisper_created"
	case event.WhisperRevealed:
		return "whisper_revealed"
	default:
		return "unknown"
	}
}

// events upgrades the connection and subscribes the caller to one
// conversation's event stream. Membership is checked before the upgrade.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	conversationID, err := uuid.Parse(r.URL.Query().Get("conversation"))
	if err != nil {
		http.Error(w, "invalid conversation identifier", http.StatusBadRequest)
		return
	}
	if _, err := s.conversations.Get(r.Context(), conversationID, caller); err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	session := &wsSession{
		log:  s.log,
		conn: conn,
		send: make(chan eventEnvelope, sendBuffer),
		done: make(chan struct{}),
	}
	s.orchestrator.RegisterViewer(caller, conversationID, session)
	s.log.Info("viewer connected",
		slog.String("participant", caller),
		slog.String("conversation", conversationID.String()))

	go session.writeLoop()
	go func() {
		session.readLoop()
		s.orchestrator.UnregisterViewer(caller, conversationID)
		close(session.done)
		s.log.Info("viewer disconnected", slog.String("participant", caller))
	}()
}

// readLoop only services pongs and detects the close. Clients never send
// data frames; all mutations go through REST.
func (s *wsSession) readLoop() {
	defer s.conn.Close()
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read error", slog.Any("error", err))
			}
			return
		}
	}
}

func (s *wsSession) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case envelope := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(envelope); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
