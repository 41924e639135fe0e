package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/polyglot.chat/internal/chat/domain"
	"github.com/louisbranch/polyglot.chat/internal/chat/notify"
	"github.com/louisbranch/polyglot.chat/internal/chat/presence"
	"github.com/louisbranch/polyglot.chat/internal/chat/storage"
	"github.com/louisbranch/polyglot.chat/internal/chat/timeline"
	"github.com/louisbranch/polyglot.chat/internal/chat/transport"
	"github.com/louisbranch/polyglot.chat/internal/platform/i18n"
	"github.com/louisbranch/polyglot.chat/internal/platform/timeouts"
)

// Transport is the connection surface the facade drives.
type Transport interface {
	Sender
	Connect(ctx context.Context, userID, username string) error
	Disconnect()
	Events() <-chan transport.Event
}

// Reporter flags a message for moderator review.
type Reporter interface {
	Report(ctx context.Context, messageID, reason string) error
}

// ErrNoRoom indicates an operation that needs room membership was attempted
// without one.
var ErrNoRoom = errors.New("no room joined")

// Config defines the inputs for the session facade.
type Config struct {
	Session   domain.Session
	Transport Transport
	History   HistoryFetcher
	Reporter  Reporter
	// Store persists the session identity across restarts. Optional.
	Store storage.Store
	// HistoryLimit bounds the history page loaded on room entry.
	HistoryLimit int
}

// Facade is the single entry point for everything the user can do in a chat
// session. It owns the event routing loop and composes the timeline, presence
// and notification state behind read-only snapshots.
type Facade struct {
	mu          sync.Mutex
	session     domain.Session
	onlineCount int

	transport Transport
	reporter  Reporter
	store     storage.Store

	timeline *timeline.Timeline
	presence *presence.Aggregator
	notices  *notify.Queue
	rooms    *Controller

	done chan struct{}
}

// New builds a session facade for one signed-in user.
func New(cfg Config) (*Facade, error) {
	if !cfg.Session.Valid() {
		return nil, errors.New("session identity is required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if cfg.History == nil {
		return nil, errors.New("history fetcher is required")
	}

	tl := timeline.New()
	agg := presence.New(timeouts.TypingExpiry)
	queue := notify.New()

	rooms, err := NewController(ControllerConfig{
		Session:      cfg.Session,
		Sender:       cfg.Transport,
		Fetcher:      cfg.History,
		Timeline:     tl,
		Presence:     agg,
		Notices:      queue,
		HistoryLimit: cfg.HistoryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("build room controller: %w", err)
	}

	return &Facade{
		session:   cfg.Session,
		transport: cfg.Transport,
		reporter:  cfg.Reporter,
		store:     cfg.Store,
		timeline:  tl,
		presence:  agg,
		notices:   queue,
		rooms:     rooms,
		done:      make(chan struct{}),
	}, nil
}

// Start connects the transport and begins routing inbound events. The event
// loop runs until ctx is cancelled or the transport event channel closes.
func (f *Facade) Start(ctx context.Context) error {
	if err := f.transport.Connect(ctx, f.session.UserID, f.session.Username); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	go f.loop(ctx)
	return nil
}

// Done is closed when the event routing loop exits.
func (f *Facade) Done() <-chan struct{} {
	return f.done
}

func (f *Facade) loop(ctx context.Context) {
	defer close(f.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-f.transport.Events():
			if !ok {
				return
			}
			f.handle(ctx, ev)
		}
	}
}

// handle routes one inbound transport event. Events arrive in order; a
// message is never handled before the connect that carried it.
func (f *Facade) handle(ctx context.Context, ev transport.Event) {
	switch ev.Kind {
	case transport.KindConnected:
		f.notices.Push("connected to chat server", notify.KindSuccess, timeouts.NoticeExpiry)
		f.rooms.Rejoin(ctx)
	case transport.KindDisconnected:
		f.notices.Push("connection lost, reconnecting", notify.KindWarning, timeouts.NoticeExpiry)
	case transport.KindConnectionLost:
		// Terminal: the bounded redial gave up. The notice stays until the
		// user acts on it.
		f.notices.Push("connection lost, restart the client to reconnect", notify.KindError, 0)
	case transport.KindMessage:
		f.rooms.HandleMessage(ev.Message)
	case transport.KindUserJoined:
		if ev.Username != "" && ev.Username != f.username() {
			f.notices.Push(ev.Username+" joined the room", notify.KindInfo, timeouts.PresenceNoticeExpiry)
		}
		f.setOnlineCount(ev.OnlineCount)
	case transport.KindUserLeft:
		if ev.Username != "" && ev.Username != f.username() {
			f.notices.Push(ev.Username+" left the room", notify.KindInfo, timeouts.PresenceNoticeExpiry)
		}
		f.presence.Stop(f.rooms.Room().ID, ev.Username)
		f.setOnlineCount(ev.OnlineCount)
	case transport.KindTyping:
		if ev.Username != f.username() {
			f.presence.Signal(f.rooms.Room().ID, ev.Username)
		}
	case transport.KindStopTyping:
		f.presence.Stop(f.rooms.Room().ID, ev.Username)
	case transport.KindOnlineCount:
		f.setOnlineCount(ev.OnlineCount)
	default:
		log.Printf("session: unhandled transport event %s", ev.Kind)
	}
}

// SendMessage validates a draft and emits it to the current room. Rejected
// drafts fail silently by contract: the error names the reason but no notice
// is queued and nothing reaches the network. There is no local echo; the
// message appears when the server broadcasts it back with moderation and
// translation applied.
func (f *Facade) SendMessage(text string) error {
	trimmed, err := domain.ValidateOutgoing(text)
	if err != nil {
		return err
	}
	room := f.rooms.Room()
	if room.ID == "" {
		return ErrNoRoom
	}

	f.mu.Lock()
	session := f.session
	f.mu.Unlock()

	sendErr := f.transport.Send(transport.EventSendMessage, transport.SendMessagePayload{
		Text:      trimmed,
		RoomID:    room.ID,
		UserID:    session.UserID,
		Username:  session.Username,
		Language:  session.PreferredLanguage,
		Timestamp: time.Now().UTC(),
	})
	if sendErr != nil {
		return fmt.Errorf("send message: %w", sendErr)
	}
	return nil
}

// SetTyping signals or withdraws the user's composing state for the current
// room.
func (f *Facade) SetTyping(active bool) error {
	room := f.rooms.Room()
	if room.ID == "" {
		return ErrNoRoom
	}
	event := transport.EventStopTyping
	if active {
		event = transport.EventUserTyping
	}
	err := f.transport.Send(event, transport.TypingPayload{
		RoomID:   room.ID,
		Username: f.username(),
	})
	if err != nil {
		return fmt.Errorf("signal typing: %w", err)
	}
	return nil
}

// SwitchRoom moves the session to another room.
func (f *Facade) SwitchRoom(ctx context.Context, roomID string) error {
	return f.rooms.SwitchRoom(ctx, roomID)
}

// ChangeLanguage updates the preferred language, persists it when a store is
// configured, and queues a short confirmation notice.
func (f *Facade) ChangeLanguage(ctx context.Context, code string) error {
	code = strings.ToLower(strings.TrimSpace(code))
	if !i18n.IsSupported(code) {
		return fmt.Errorf("language %q: %w", code, domain.ErrLanguageUnsupported)
	}

	f.mu.Lock()
	f.session.PreferredLanguage = code
	session := f.session
	f.mu.Unlock()

	if f.store != nil {
		err := f.store.PutSession(ctx, storage.SessionRecord{
			UserID:   session.UserID,
			Username: session.Username,
			Language: code,
		})
		if err != nil {
			log.Printf("session: persist language: %v", err)
		}
	}

	f.notices.Push("language set to "+i18n.DisplayName(code), notify.KindInfo, timeouts.PresenceNoticeExpiry)
	return nil
}

// ReportMessage flags a message for moderator review.
func (f *Facade) ReportMessage(ctx context.Context, messageID, reason string) error {
	if f.reporter == nil {
		return errors.New("reporting is not configured")
	}
	if err := f.reporter.Report(ctx, messageID, reason); err != nil {
		return err
	}
	f.notices.Push("message reported", notify.KindSuccess, timeouts.NoticeExpiry)
	return nil
}

// ShowTranslation toggles the translated rendering of one message for the
// current viewer language.
func (f *Facade) ShowTranslation(messageID string, show bool) bool {
	return f.timeline.SetShowTranslation(messageID, show, f.language())
}

// RevealMessage unhides a moderation-flagged message. The reveal holds for
// the rest of the session.
func (f *Facade) RevealMessage(messageID string) bool {
	return f.timeline.RevealToxic(messageID)
}

// DismissNotice removes one notice before its expiry.
func (f *Facade) DismissNotice(id int64) {
	f.notices.Dismiss(id)
}

// Logout leaves the current room, closes the transport, and clears all
// session-scoped state including the persisted identity.
func (f *Facade) Logout(ctx context.Context) {
	f.rooms.LeaveCurrent()
	f.transport.Disconnect()
	f.presence.Reset()
	f.notices.Reset()

	if f.store != nil {
		if err := f.store.ClearSession(ctx); err != nil {
			log.Printf("session: clear stored session: %v", err)
		}
	}
}

// Session returns the current identity, including any language change made
// since login.
func (f *Facade) Session() domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

// Room returns the current room. The zero Room means no membership.
func (f *Facade) Room() domain.Room {
	return f.rooms.Room()
}

// Loading reports whether the current room's history is still loading.
func (f *Facade) Loading() bool {
	return f.rooms.Loading()
}

// OnlineCount returns the last reported online user count.
func (f *Facade) OnlineCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onlineCount
}

// Messages returns the current room's timeline projections in arrival order.
func (f *Facade) Messages() []timeline.View {
	return f.timeline.Views()
}

// DisplayText resolves the rendered text for one timeline view.
func (f *Facade) DisplayText(view timeline.View) string {
	return view.DisplayText(f.language())
}

// TypingUsers returns who else is typing in the current room.
func (f *Facade) TypingUsers() []string {
	return f.presence.Snapshot(f.rooms.Room().ID, f.username())
}

// Notices returns the pending notices in creation order.
func (f *Facade) Notices() []notify.Notice {
	return f.notices.Snapshot()
}

func (f *Facade) username() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session.Username
}

func (f *Facade) language() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session.PreferredLanguage
}

func (f *Facade) setOnlineCount(count int) {
	if count <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onlineCount = count
}
