package ws

import "group-chat-service/internal/models"

// Inbound event types.
const (
	EventJoinGroup   = "join_group"
	EventLeaveGroup  = "leave_group"
	EventSendMessage = "send_group_message"
	EventLikeMessage = "like_group_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
)

// Outbound event types.
const (
	EventGroupJoined    = "group_joined"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventReceiveMessage = "receive_group_message"
	EventMessageLiked   = "message_liked"
	EventUserTyping     = "user_typing"
	EventGroupDeleted   = "group_deleted"
	EventError          = "error"
)

// ClientEvent is a single frame sent by a connected client.
type ClientEvent struct {
	Type       string `json:"type"`
	GroupID    int    `json:"group_id,omitempty"`
	MessageID  int    `json:"message_id,omitempty"`
	Content    string `json:"content,omitempty"`
	Kind       string `json:"kind,omitempty"`
	DedupToken string `json:"dedup_token,omitempty"`
}

// MessagePayload carries a message plus the denormalized author avatar so
// receiving clients never need a follow-up lookup.
type MessagePayload struct {
	models.GroupMessage
	AvatarURL string `json:"profile_picture,omitempty"`
}

// PresencePayload announces a presence transition in a group.
type PresencePayload struct {
	GroupID int         `json:"group_id"`
	User    models.User `json:"user"`
}

// SnapshotPayload is delivered to a client right after it joins a room.
type SnapshotPayload struct {
	GroupID       int           `json:"group_id"`
	OnlineMembers []models.User `json:"online_members"`
}

// LikePayload carries the shared like count; IsLiked is computed per
// recipient at delivery time.
type LikePayload struct {
	MessageID int  `json:"message_id"`
	GroupID   int  `json:"group_id"`
	Likes     int  `json:"likes"`
	IsLiked   bool `json:"is_liked"`
}

// TypingPayload is a pure relay, never persisted.
type TypingPayload struct {
	GroupID  int    `json:"group_id"`
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

// ServerEvent is a single frame delivered to a connected client.
type ServerEvent struct {
	Type     string           `json:"type"`
	GroupID  int              `json:"group_id,omitempty"`
	Message  *MessagePayload  `json:"message,omitempty"`
	Presence *PresencePayload `json:"presence,omitempty"`
	Snapshot *SnapshotPayload `json:"snapshot,omitempty"`
	Like     *LikePayload     `json:"like,omitempty"`
	Typing   *TypingPayload   `json:"typing,omitempty"`
	Error    string           `json:"error,omitempty"`
}
