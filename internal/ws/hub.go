package ws

import (
	"go.uber.org/zap"

	"group-chat-service/internal/models"
	"group-chat-service/internal/observability"
)

type joinRequest struct {
	client  *Client
	groupID int
	reply   chan []models.User
}

type leaveRequest struct {
	client  *Client
	groupID int
}

type typingRelay struct {
	origin   *Client
	groupID  int
	isTyping bool
}

type eviction struct {
	groupID int
	userID  int
}

type onlineQuery struct {
	groupID int
	reply   chan []models.User
}

type messageBroadcast struct {
	msg    models.GroupMessage
	author models.User
}

type userEntry struct {
	user  models.User
	conns int
}

// Hub is the room broadcaster: it maps each live connection to the groups it
// has joined and fans events out to exactly the connections subscribed to a
// group. All room and presence state is owned by the single Run loop;
// exported methods only exchange messages with it, so the state is never
// touched from outside an event handler.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	joins      chan joinRequest
	leaves     chan leaveRequest
	typings    chan typingRelay
	evictions  chan eviction
	messages   chan messageBroadcast
	likes      chan models.LikeState
	deletions  chan int
	onlineQs   chan onlineQuery
	stop       chan struct{}

	rooms    map[int]map[*Client]struct{}
	joined   map[*Client]map[int]struct{}
	presence *presenceTracker
	users    map[int]*userEntry

	log *zap.Logger
}

// NewHub creates an empty hub. Call Run in its own goroutine before use.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		joins:      make(chan joinRequest),
		leaves:     make(chan leaveRequest),
		typings:    make(chan typingRelay, 64),
		evictions:  make(chan eviction, 64),
		messages:   make(chan messageBroadcast, 256),
		likes:      make(chan models.LikeState, 256),
		deletions:  make(chan int, 16),
		onlineQs:   make(chan onlineQuery),
		stop:       make(chan struct{}),
		rooms:      make(map[int]map[*Client]struct{}),
		joined:     make(map[*Client]map[int]struct{}),
		presence:   newPresenceTracker(),
		users:      make(map[int]*userEntry),
		log:        log,
	}
}

// Run processes all connection and broadcast events on a single goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)
		case c := <-h.unregister:
			h.handleDisconnect(c)
		case req := <-h.joins:
			req.reply <- h.handleJoin(req.client, req.groupID)
		case req := <-h.leaves:
			h.handleLeave(req.client, req.groupID)
		case t := <-h.typings:
			h.handleTyping(t)
		case e := <-h.evictions:
			h.handleEviction(e.groupID, e.userID)
		case b := <-h.messages:
			h.handleMessage(b.msg, b.author)
		case state := <-h.likes:
			h.handleLike(state)
		case groupID := <-h.deletions:
			h.handleGroupDeleted(groupID)
		case q := <-h.onlineQs:
			q.reply <- h.onlineUsers(q.groupID)
		case <-h.stop:
			return
		}
	}
}

// Stop terminates the event loop.
func (h *Hub) Stop() {
	close(h.stop)
}

// Register adds an authenticated connection to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a connection; presence is reconciled before anything
// else so a dead socket never leaves stale online entries.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Join subscribes the connection to a group room and returns the online
// snapshot. Membership must already be verified by the caller.
func (h *Hub) Join(c *Client, groupID int) []models.User {
	req := joinRequest{client: c, groupID: groupID, reply: make(chan []models.User, 1)}
	h.joins <- req
	return <-req.reply
}

// Leave unsubscribes the connection from a group room. Always succeeds, even
// if the group was deleted while the leave was in flight.
func (h *Hub) Leave(c *Client, groupID int) {
	h.leaves <- leaveRequest{client: c, groupID: groupID}
}

// Typing relays a typing signal to the rest of the room. No persistence.
func (h *Hub) Typing(c *Client, groupID int, isTyping bool) {
	h.typings <- typingRelay{origin: c, groupID: groupID, isTyping: isTyping}
}

// BroadcastMessage fans a persisted message out to every connection joined to
// its group, including the author's own other connections.
func (h *Hub) BroadcastMessage(msg models.GroupMessage, author models.User) {
	h.messages <- messageBroadcast{msg: msg, author: author}
}

// BroadcastLike fans a like-state change out to the room. The per-viewer
// is_liked flag is derived from the liker set for each recipient.
func (h *Hub) BroadcastLike(state models.LikeState) {
	h.likes <- state
}

// BroadcastGroupDeleted notifies the room and tears it down.
func (h *Hub) BroadcastGroupDeleted(groupID int) {
	h.deletions <- groupID
}

// EvictFromGroup removes a user's connections from a room after a membership
// removal, keeping online(G) ⊆ members(G).
func (h *Hub) EvictFromGroup(groupID, userID int) {
	h.evictions <- eviction{groupID: groupID, userID: userID}
}

// Online returns the current online snapshot for a group.
func (h *Hub) Online(groupID int) []models.User {
	q := onlineQuery{groupID: groupID, reply: make(chan []models.User, 1)}
	h.onlineQs <- q
	return <-q.reply
}

func (h *Hub) handleRegister(c *Client) {
	h.joined[c] = make(map[int]struct{})
	entry, ok := h.users[c.identity.UserID]
	if !ok {
		entry = &userEntry{user: c.identity.User()}
		h.users[c.identity.UserID] = entry
	}
	entry.conns++
	observability.IncWSActive()
}

func (h *Hub) handleDisconnect(c *Client) {
	groups, ok := h.joined[c]
	if !ok {
		return
	}
	for groupID := range groups {
		h.removeFromRoom(c, groupID)
		if h.presence.markOffline(groupID, c.identity.UserID, c.id) {
			h.broadcastPresence(EventUserLeft, groupID, c.identity.User(), nil)
		}
	}
	delete(h.joined, c)

	if entry, ok := h.users[c.identity.UserID]; ok {
		entry.conns--
		if entry.conns <= 0 {
			delete(h.users, c.identity.UserID)
		}
	}
	observability.DecWSActive()
}

func (h *Hub) handleJoin(c *Client, groupID int) []models.User {
	if _, ok := h.joined[c]; !ok {
		// disconnect raced the join
		return nil
	}

	room, ok := h.rooms[groupID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[groupID] = room
	}
	room[c] = struct{}{}
	h.joined[c][groupID] = struct{}{}

	if h.presence.markOnline(groupID, c.identity.UserID, c.id) {
		h.broadcastPresence(EventUserJoined, groupID, c.identity.User(), c)
	}
	observability.IncWSEvent(EventJoinGroup)
	return h.onlineUsers(groupID)
}

func (h *Hub) handleLeave(c *Client, groupID int) {
	if _, ok := h.joined[c][groupID]; !ok {
		return
	}
	h.removeFromRoom(c, groupID)
	delete(h.joined[c], groupID)
	if h.presence.markOffline(groupID, c.identity.UserID, c.id) {
		h.broadcastPresence(EventUserLeft, groupID, c.identity.User(), nil)
	}
	observability.IncWSEvent(EventLeaveGroup)
}

func (h *Hub) handleTyping(t typingRelay) {
	if _, ok := h.joined[t.origin][t.groupID]; !ok {
		return
	}
	ev := &ServerEvent{
		Type: EventUserTyping,
		Typing: &TypingPayload{
			GroupID:  t.groupID,
			UserID:   t.origin.identity.UserID,
			Username: t.origin.identity.Username,
			IsTyping: t.isTyping,
		},
	}
	for c := range h.rooms[t.groupID] {
		if c == t.origin {
			continue
		}
		h.deliver(c, ev)
	}
}

func (h *Hub) handleEviction(groupID, userID int) {
	for c := range h.rooms[groupID] {
		if c.identity.UserID != userID {
			continue
		}
		h.removeFromRoom(c, groupID)
		delete(h.joined[c], groupID)
	}
	if h.presence.removeUser(groupID, userID) {
		user := models.User{ID: userID}
		if entry, ok := h.users[userID]; ok {
			user = entry.user
		}
		h.broadcastPresence(EventUserLeft, groupID, user, nil)
	}
}

func (h *Hub) handleMessage(msg models.GroupMessage, author models.User) {
	ev := &ServerEvent{
		Type:    EventReceiveMessage,
		GroupID: msg.GroupID,
		Message: &MessagePayload{GroupMessage: msg, AvatarURL: author.AvatarURL},
	}
	fanout := 0
	for c := range h.rooms[msg.GroupID] {
		h.deliver(c, ev)
		fanout++
	}
	observability.ObserveBroadcastFanout(EventReceiveMessage, fanout)
}

func (h *Hub) handleLike(state models.LikeState) {
	fanout := 0
	for c := range h.rooms[state.GroupID] {
		h.deliver(c, &ServerEvent{
			Type:    EventMessageLiked,
			GroupID: state.GroupID,
			Like: &LikePayload{
				MessageID: state.MessageID,
				GroupID:   state.GroupID,
				Likes:     state.Count,
				IsLiked:   state.Likes(c.identity.UserID),
			},
		})
		fanout++
	}
	observability.ObserveBroadcastFanout(EventMessageLiked, fanout)
}

func (h *Hub) handleGroupDeleted(groupID int) {
	ev := &ServerEvent{Type: EventGroupDeleted, GroupID: groupID}
	for c := range h.rooms[groupID] {
		h.deliver(c, ev)
		delete(h.joined[c], groupID)
	}
	delete(h.rooms, groupID)
	h.presence.dropGroup(groupID)
}

func (h *Hub) broadcastPresence(eventType string, groupID int, user models.User, skip *Client) {
	ev := &ServerEvent{
		Type:     eventType,
		GroupID:  groupID,
		Presence: &PresencePayload{GroupID: groupID, User: user},
	}
	for c := range h.rooms[groupID] {
		if c == skip {
			continue
		}
		h.deliver(c, ev)
	}
	observability.IncWSEvent(eventType)
}

func (h *Hub) removeFromRoom(c *Client, groupID int) {
	if room, ok := h.rooms[groupID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, groupID)
		}
	}
}

func (h *Hub) onlineUsers(groupID int) []models.User {
	ids := h.presence.online(groupID)
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if entry, ok := h.users[id]; ok {
			users = append(users, entry.user)
		} else {
			users = append(users, models.User{ID: id})
		}
	}
	return users
}

func (h *Hub) deliver(c *Client, ev *ServerEvent) {
	if !c.queueEvent(ev) {
		h.log.Warn("dropping event, client send buffer full",
			zap.String("conn_id", c.id),
			zap.Int("user_id", c.identity.UserID),
			zap.String("event", ev.Type))
		observability.IncWSEvent("send_buffer_full")
	}
}
