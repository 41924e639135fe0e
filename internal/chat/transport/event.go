package transport

import (
	"time"

	"github.com/louisbranch/polyglot.chat/internal/chat/domain"
)

// Client→server wire event names.
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
	EventUserTyping  = "user_typing"
	EventStopTyping  = "stop_typing"
)

// Server→client wire event names.
const (
	eventReceiveMessage = "receive_message"
	eventUserJoined     = "user_joined"
	eventUserLeft       = "user_left"
	eventTyping         = "typing"
	eventStopTyping     = "stop_typing"
	eventOnlineUsers    = "online_users"
)

// Kind discriminates normalized inbound events.
type Kind int

// Normalized event kinds delivered on the manager's events channel.
const (
	KindConnected Kind = iota + 1
	KindDisconnected
	KindConnectionLost
	KindMessage
	KindUserJoined
	KindUserLeft
	KindTyping
	KindStopTyping
	KindOnlineCount
)

func (k Kind) String() string {
	switch k {
	case KindConnected:
		return "connected"
	case KindDisconnected:
		return "disconnected"
	case KindConnectionLost:
		return "connection_lost"
	case KindMessage:
		return "message"
	case KindUserJoined:
		return "user_joined"
	case KindUserLeft:
		return "user_left"
	case KindTyping:
		return "typing"
	case KindStopTyping:
		return "stop_typing"
	case KindOnlineCount:
		return "online_count"
	default:
		return "unknown"
	}
}

// Event is one normalized inbound transport event. Only the fields relevant
// to the kind are populated.
type Event struct {
	Kind        Kind
	Message     domain.Message
	Username    string
	OnlineCount int
}

// JoinRoomPayload announces room membership for this session.
type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// LeaveRoomPayload withdraws room membership. Fire-and-forget: the server
// does not acknowledge it.
type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// SendMessagePayload carries one outgoing chat message. Delivery is
// unacknowledged; a dropped send is invisible to the sender.
type SendMessagePayload struct {
	Text      string    `json:"text"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Language  string    `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingPayload signals composing state for a room.
type TypingPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type presencePayload struct {
	Username    string `json:"username"`
	OnlineCount int    `json:"onlineCount"`
}

type typingEventPayload struct {
	Username string `json:"username"`
}

type onlineUsersPayload struct {
	Count int `json:"count"`
}
