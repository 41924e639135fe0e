package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/louisbranch/polyglot.chat/internal/chat/domain"
	"github.com/louisbranch/polyglot.chat/internal/chat/history"
	"github.com/louisbranch/polyglot.chat/internal/chat/notify"
	"github.com/louisbranch/polyglot.chat/internal/chat/presence"
	"github.com/louisbranch/polyglot.chat/internal/chat/timeline"
	"github.com/louisbranch/polyglot.chat/internal/chat/transport"
	"github.com/louisbranch/polyglot.chat/internal/platform/timeouts"
)

// Sender writes client frames to the chat server.
type Sender interface {
	Send(event string, payload any) error
}

// HistoryFetcher loads recent messages for a room.
type HistoryFetcher interface {
	MessageHistory(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
}

// Phase describes room membership state.
type Phase int

// Membership phases. Join announcements and leave notices are
// fire-and-forget, so Joining only covers the history load.
const (
	PhaseIdle Phase = iota
	PhaseJoining
	PhaseJoined
)

func (p Phase) String() string {
	switch p {
	case PhaseJoining:
		return "joining"
	case PhaseJoined:
		return "joined"
	default:
		return "idle"
	}
}

// ControllerConfig defines the inputs for the room controller.
type ControllerConfig struct {
	Session  domain.Session
	Sender   Sender
	Fetcher  HistoryFetcher
	Timeline *timeline.Timeline
	Presence *presence.Aggregator
	Notices  *notify.Queue
	// HistoryLimit bounds the history page loaded on room entry.
	HistoryLimit int
}

// Controller owns room membership for one session: which room the user is in,
// the join/leave announcements, and the merge of loaded history with live
// messages that arrive while the load is in flight.
type Controller struct {
	mu       sync.Mutex
	phase    Phase
	room     domain.Room
	loading  bool
	buffered []domain.Message

	session  domain.Session
	sender   Sender
	fetcher  HistoryFetcher
	timeline *timeline.Timeline
	presence *presence.Aggregator
	notices  *notify.Queue
	limit    int
}

// NewController builds a room controller in the idle phase.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if !cfg.Session.Valid() {
		return nil, errors.New("session identity is required")
	}
	if cfg.Sender == nil {
		return nil, errors.New("sender is required")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("history fetcher is required")
	}
	if cfg.Timeline == nil {
		return nil, errors.New("timeline is required")
	}
	if cfg.Presence == nil {
		return nil, errors.New("presence aggregator is required")
	}
	if cfg.Notices == nil {
		return nil, errors.New("notice queue is required")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = history.DefaultLimit
	}
	return &Controller{
		session:  cfg.Session,
		sender:   cfg.Sender,
		fetcher:  cfg.Fetcher,
		timeline: cfg.Timeline,
		presence: cfg.Presence,
		notices:  cfg.Notices,
		limit:    cfg.HistoryLimit,
	}, nil
}

// Room returns the current room. The zero Room means no membership.
func (c *Controller) Room() domain.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// CurrentPhase reports the membership phase.
func (c *Controller) CurrentPhase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Loading reports whether a history load is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// SwitchRoom leaves the current room (if any) and enters the target room.
// Switching to the room the user is already in is a no-op.
func (c *Controller) SwitchRoom(ctx context.Context, roomID string) error {
	room, ok := domain.RoomByID(roomID)
	if !ok {
		return fmt.Errorf("switch room %q: %w", roomID, domain.ErrUnknownRoom)
	}

	c.mu.Lock()
	if c.phase != PhaseIdle && c.room.ID == room.ID {
		c.mu.Unlock()
		return nil
	}
	c.enter(room, true)
	c.mu.Unlock()

	go c.loadHistory(ctx, room.ID)
	return nil
}

// Rejoin re-announces membership after the transport (re)connects. The server
// forgets memberships on a drop, so the current room is re-entered and its
// history reloaded; a session with no room yet enters the default room.
func (c *Controller) Rejoin(ctx context.Context) {
	c.mu.Lock()
	room := c.room
	if c.phase == PhaseIdle {
		room = domain.DefaultRoom()
	}
	c.enter(room, false)
	c.mu.Unlock()

	go c.loadHistory(ctx, room.ID)
}

// LeaveCurrent withdraws membership without entering another room. Used on
// logout.
func (c *Controller) LeaveCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseIdle {
		return
	}
	c.announceLeave(c.room)
	c.room = domain.Room{}
	c.phase = PhaseIdle
	c.loading = false
	c.buffered = nil
	c.timeline.Clear()
}

// HandleMessage routes one live inbound message. While a history load is in
// flight the message is buffered and merged after the load resolves; the
// timeline's id dedupe absorbs any overlap between the two sources.
func (c *Controller) HandleMessage(msg domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseIdle {
		return
	}
	if c.loading {
		c.buffered = append(c.buffered, msg)
		return
	}
	c.timeline.Append(msg)
}

// enter performs the membership transition. Callers hold c.mu.
func (c *Controller) enter(room domain.Room, leaveCurrent bool) {
	if leaveCurrent && c.phase != PhaseIdle {
		c.announceLeave(c.room)
	}

	c.room = room
	c.phase = PhaseJoining
	c.loading = true
	c.buffered = nil
	c.timeline.Clear()

	err := c.sender.Send(transport.EventJoinRoom, transport.JoinRoomPayload{
		RoomID:   room.ID,
		UserID:   c.session.UserID,
		Username: c.session.Username,
	})
	if err != nil {
		log.Printf("session: announce join %s: %v", room.ID, err)
	}
}

// announceLeave emits the leave frame and drops room-scoped presence state.
// The leave is fire-and-forget; a lost frame means the server works it out
// from the connection close instead. Callers hold c.mu.
func (c *Controller) announceLeave(room domain.Room) {
	err := c.sender.Send(transport.EventLeaveRoom, transport.LeaveRoomPayload{
		RoomID: room.ID,
		UserID: c.session.UserID,
	})
	if err != nil {
		log.Printf("session: announce leave %s: %v", room.ID, err)
	}
	c.presence.ClearRoom(room.ID)
}

// loadHistory resolves the async history fetch for one room entry. The room
// id acts as the fence: a load that resolves after the user already switched
// away is discarded instead of polluting the new room's timeline.
func (c *Controller) loadHistory(ctx context.Context, roomID string) {
	msgs, err := c.fetcher.MessageHistory(ctx, roomID, c.limit)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room.ID != roomID || !c.loading {
		return
	}
	c.loading = false
	c.phase = PhaseJoined

	if err != nil {
		log.Printf("session: load history %s: %v", roomID, err)
		c.buffered = nil
		c.notices.Push("failed to load messages for "+c.room.Name, notify.KindError, timeouts.NoticeExpiry)
		return
	}

	for _, msg := range msgs {
		c.timeline.Append(msg)
	}
	for _, msg := range c.buffered {
		c.timeline.Append(msg)
	}
	c.buffered = nil
}
