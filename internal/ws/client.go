package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"group-chat-service/internal/auth"
	"group-chat-service/internal/engine"
	"group-chat-service/internal/observability"
	"group-chat-service/internal/repositories"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Client is one live connection bound to exactly one authenticated identity.
// A connection that stops answering pings within pongWait is torn down by the
// read deadline, so stale presence entries cannot leak.
type Client struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn
	hub      *Hub
	engine   *engine.Engine
	send     chan *ServerEvent
	limiter  *rate.Limiter
	log      *zap.Logger
}

// NewClient wraps an upgraded, authenticated connection.
func NewClient(id string, identity auth.Identity, conn *websocket.Conn, hub *Hub, eng *engine.Engine, limit rate.Limit, burst int, log *zap.Logger) *Client {
	return &Client{
		id:       id,
		identity: identity,
		conn:     conn,
		hub:      hub,
		engine:   eng,
		send:     make(chan *ServerEvent, sendBufferSize),
		limiter:  rate.NewLimiter(limit, burst),
		log:      log,
	}
}

// queueEvent enqueues an outbound event without blocking. Safe from any
// goroutine; the channel is never closed.
func (c *Client) queueEvent(ev *ServerEvent) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// sendError reports a failure back to the originating connection only; it is
// never broadcast to the room.
func (c *Client) sendError(msg string) {
	c.queueEvent(&ServerEvent{Type: EventError, Error: msg})
	observability.IncWSEvent(observability.EventWSError)
	_ = observability.PublishEvent(context.Background(), "ws_events.groups", observability.ConnEnvelope(observability.EventWSError, observability.ConnEvent{
		ConnID: c.id,
		UserID: c.identity.UserID,
		Error:  msg,
	}), nil)
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				c.log.Error("serialize event", zap.Error(err))
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump consumes inbound frames until the connection dies, then reconciles
// presence before any other cleanup.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("ws read", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.sendError("invalid event")
			continue
		}

		if !c.limiter.Allow() {
			c.sendError("rate limit exceeded")
			continue
		}

		c.dispatch(&ev)
	}
}

func (c *Client) dispatch(ev *ClientEvent) {
	observability.IncWSEvent(ev.Type)

	switch ev.Type {
	case EventJoinGroup:
		c.handleJoin(ev.GroupID)
	case EventLeaveGroup:
		c.hub.Leave(c, ev.GroupID)
	case EventSendMessage:
		c.handleSend(ev)
	case EventLikeMessage:
		c.handleLike(ev)
	case EventTypingStart:
		c.hub.Typing(c, ev.GroupID, true)
	case EventTypingStop:
		c.hub.Typing(c, ev.GroupID, false)
	default:
		c.sendError("unknown event type")
	}
}

func (c *Client) handleJoin(groupID int) {
	member, err := c.engine.IsMember(context.Background(), groupID, c.identity.UserID)
	if err != nil {
		c.sendError("membership check failed")
		return
	}
	if !member {
		c.sendError("not a member of this group")
		return
	}

	online := c.hub.Join(c, groupID)
	c.queueEvent(&ServerEvent{
		Type:     EventGroupJoined,
		GroupID:  groupID,
		Snapshot: &SnapshotPayload{GroupID: groupID, OnlineMembers: online},
	})
}

func (c *Client) handleSend(ev *ClientEvent) {
	if ev.Content == "" {
		c.sendError("message content required")
		return
	}

	_, err := c.engine.SendMessage(context.Background(), ev.GroupID, c.identity, ev.Content, ev.Kind, nil, ev.DedupToken)
	if err != nil {
		c.log.Warn("send message failed",
			zap.Int("group_id", ev.GroupID),
			zap.Int("user_id", c.identity.UserID),
			zap.Error(err))
		c.sendError(sendErrorMessage(err))
	}
}

func (c *Client) handleLike(ev *ClientEvent) {
	if _, err := c.engine.ToggleLike(context.Background(), ev.MessageID, c.identity.UserID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.sendError("message not found")
			return
		}
		c.sendError("failed to like message")
	}
}

func sendErrorMessage(err error) string {
	switch {
	case errors.Is(err, repositories.ErrNotMember):
		return "not a member of this group"
	case errors.Is(err, repositories.ErrGroupNotFound):
		return "group not found"
	case errors.Is(err, engine.ErrDuplicateInFlight):
		return "duplicate send in flight"
	case errors.Is(err, engine.ErrInvalidKind):
		return "invalid message kind"
	default:
		return "failed to send message"
	}
}
