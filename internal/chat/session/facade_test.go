package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/louisbranch/polyglot.chat/internal/chat/domain"
	"github.com/louisbranch/polyglot.chat/internal/chat/notify"
	"github.com/louisbranch/polyglot.chat/internal/chat/storage"
	"github.com/louisbranch/polyglot.chat/internal/chat/transport"
)

type fakeTransport struct {
	fakeSender
	events      chan transport.Event
	mu          sync.Mutex
	connects    int
	disconnects int
	connectErr  error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan transport.Event, 16)}
}

func (tr *fakeTransport) Connect(ctx context.Context, userID, username string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.connectErr != nil {
		return tr.connectErr
	}
	tr.connects++
	// Mirrors the real transport: a successful connect surfaces as an event.
	tr.events <- transport.Event{Kind: transport.KindConnected}
	return nil
}

func (tr *fakeTransport) Disconnect() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.disconnects++
}

func (tr *fakeTransport) disconnectCount() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.disconnects
}

func (tr *fakeTransport) Events() <-chan transport.Event {
	return tr.events
}

type fakeReporter struct {
	mu      sync.Mutex
	ids     []string
	reasons []string
	err     error
}

func (r *fakeReporter) Report(ctx context.Context, messageID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.ids = append(r.ids, messageID)
	r.reasons = append(r.reasons, reason)
	return nil
}

type memoryStore struct {
	mu     sync.Mutex
	record storage.SessionRecord
	saved  bool
}

func (m *memoryStore) PutSession(ctx context.Context, record storage.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = record
	m.saved = true
	return nil
}

func (m *memoryStore) GetSession(ctx context.Context) (storage.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return m.record, nil
}

func (m *memoryStore) ClearSession(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = storage.SessionRecord{}
	m.saved = false
	return nil
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) stored() (storage.SessionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record, m.saved
}

type facadeFixture struct {
	facade    *Facade
	transport *fakeTransport
	fetcher   *fakeFetcher
	reporter  *fakeReporter
	store     *memoryStore
}

func newFacadeFixture(t *testing.T) *facadeFixture {
	t.Helper()
	tr := newFakeTransport()
	fetcher := newFakeFetcher()
	reporter := &fakeReporter{}
	store := &memoryStore{}

	facade, err := New(Config{
		Session:   testSession,
		Transport: tr,
		History:   fetcher,
		Reporter:  reporter,
		Store:     store,
	})
	if err != nil {
		t.Fatalf("build facade: %v", err)
	}
	return &facadeFixture{
		facade:    facade,
		transport: tr,
		fetcher:   fetcher,
		reporter:  reporter,
		store:     store,
	}
}

// startJoined starts the facade and waits until the default room is entered
// and its history load resolved.
func (fix *facadeFixture) startJoined(t *testing.T, ctx context.Context) {
	t.Helper()
	if err := fix.facade.Start(ctx); err != nil {
		t.Fatalf("start facade: %v", err)
	}
	waitFor(t, "default room join", func() bool {
		return fix.facade.Room().ID == domain.DefaultRoom().ID && !fix.facade.Loading()
	})
}

func hasNotice(notices []notify.Notice, kind notify.Kind, fragment string) bool {
	for _, notice := range notices {
		if notice.Kind == kind && strings.Contains(notice.Message, fragment) {
			return true
		}
	}
	return false
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
	if _, err := New(Config{Session: testSession, Transport: newFakeTransport()}); err == nil {
		t.Fatal("expected error for missing history fetcher")
	}
}

func TestStartJoinsDefaultRoom(t *testing.T) {
	fix := newFacadeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fix.startJoined(t, ctx)

	events := fix.transport.sentEvents()
	if len(events) == 0 || events[0] != transport.EventJoinRoom {
		t.Fatalf("expected join frame after connect, got %v", events)
	}
	if !hasNotice(fix.facade.Notices(), notify.KindSuccess, "connected") {
		t.Fatalf("expected connected notice, got %+v", fix.facade.Notices())
	}
}

func TestSendMessageEmitsFrameWithoutLocalEcho(t *testing.T) {
	fix := newFacadeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fix.startJoined(t, ctx)

	if err := fix.facade.SendMessage("  hola a todos  "); err != nil {
		t.Fatalf("send message: %v", err)
	}

	frames := fix.transport.sent()
	last := frames[len(frames)-1]
	if last.event != transport.EventSendMessage {
		t.Fatalf("expected send frame, got %s", last.event)
	}
	payload, ok := last.payload.(transport.SendMessagePayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", last.payload)
	}
	if payload.Text != "hola a todos" {
		t.Fatalf("expected trimmed text, got %q", payload.Text)
	}
	if payload.RoomID != domain.DefaultRoom().ID || payload.UserID != "user-1" || payload.Language != "en" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	if got := len(fix.facade.Messages()); got != 0 {
		t.Fatalf("expected no local echo, got %d timeline entries", got)
	}
}

func TestSendMessageRejectsInvalidDraftsSilently(t *testing.T) {
	fix := newFacadeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fix.startJoined(t, ctx)
	baseline := len(fix.transport.sent())
	baselineNotices := len(fix.facade.Notices())

	if err := fix.facade.SendMessage("   "); !errors.Is(err, domain.ErrMessageEmpty) {
		t.Fatalf("expected ErrMessageEmpty, got %v", err)
	}
	long := strings.Repeat("x", domain.MaxMessageRunes+1)
	if err := fix.facade.SendMessage(long); !errors.Is(err, domain.ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}

	if got := len(fix.transport.sent()); got != baseline {
		t.Fatalf("expected no frames for rejected drafts, got %d new", got-baseline)
	}
	if got := len(fix.facade.Notices()); got != baselineNotices {
		t.Fatalf("expected silent rejection, got %d new notices", got-baselineNotices)
	}
}

func TestSendMessageRequiresRoom(t *testing.T) {
	fix := newFacadeFixture(t)

	if err := fix.facade.SendMessage("hello"); !errors.Is(err, ErrNoRoom) {
		t.Fatalf("expected ErrNoRoom, got %v", err)
	}
}

func TestInboundMessageAppendsToTimeline(t *testing.T) {
	fix := newFacadeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fix.startJoined(t, ctx)

	fix.transport.events <- transport.Event{Kind: transport.KindMessage, Message: msg("m1", "hi there")}
	waitFor(t, "timeline append", func() bool { return len(fix.facade.Messages()) == 1 })

	view := fix.facade.Messages()[0]
	if view.Message.ID != "m1" {
		t.Fatalf("unexpected message: %+v", view.Message)
	}
	if got := fix.facade.DisplayText(view); got != "hi there" {
		t.Fatalf("unexpected display text %q", got)
	}
}

func TestTypingEventsDrivePresence(t *testing.T) {
	fix := newFacadeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fix.startJoined(t, ctx)

	fix.transport.events <- transport.Event{Kind: transport.KindTyping, Username: "carol"}
	// The session's own echoes never show up as typing indicators.
	fix.transport.events <- transport.Event{Kind: transport.KindTyping, Username: "alice"}
	waitFor(t, "typing indicator", func() bool {
		users := fix.facade.TypingUsers()
		return len(users) == 1 && users[0] == "carol"
	})

	fix.transport.events <- transport.Event{Kind: transport.KindStopTyping, Username: "carol"}
	waitFor(t, "typing cleared", func() bool { return len(fix.facade.TypingUsers()) == 0 })
}

func TestSetTypingEmitsFrames(t *testing.T) {
	fix := newFacadeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fix.startJoined(t, ctx)

	if err := fix.facade.SetTyping(true); err != nil {
		t.Fatalf("set typing: %v", err)
	}
	if err := fix.facade.SetTyping(false); err != nil {
		t.Fatalf("stop typing: %v", err)
	}

	events := fix.transport.sentEvents()
	if events[len(events)-2] != transport.EventUserTyping || events[len(events)-1] != transport.EventStopTyping {
		t.Fatalf("unexpected typing frames: %v", events)
	}
}

func TestPresenceEventsQueueNoticesAndCount(t *testing.T) {
	fix := newFacadeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fix.startJoined(t, ctx)

	fix.transport.events <- transport.Event{Kind: transport.KindUserJoined, Username: "dave", OnlineCount: 3}
	fix.transport.events <- transport.Event{Kind: transport.KindUserLeft, Username: "erin", OnlineCount: 2}
	// The session's own join echo carries no notice.
	fix.transport.events <- transport.Event{Kind: transport.KindUserJoined, Username: "alice", OnlineCount: 3}
	fix.transport.events <- transport.Event{Kind: transport.KindOnlineCount, OnlineCount: 7}

	waitFor(t, "online count", func() bool { return fix.facade.OnlineCount() == 7 })

	notices := fix.facade.Notices()
	if !hasNotice(notices, notify.KindInfo, "dave joined") {
		t.Fatalf("expected join notice, got %+v", notices)
	}
	if !hasNotice(notices, notify.KindInfo, "erin left") {
		t.Fatalf("expected leave notice, got %+v", notices)
	}
	if hasNotice(notices, notify.KindInfo, "alice joined") {
		t.Fatalf("own join echo must not queue a notice: %+v", notices)
	}
}

func TestConnectionLostNoticePersists(t *testing.T) {
	fix := newFacadeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fix.startJoined(t, ctx)

	fix.transport.events <- transport.Event{Kind: transport.KindConnectionLost}
	waitFor(t, "terminal notice", func() bool {
		return hasNotice(fix.facade.Notices(), notify.KindError, "restart the client")
	})

	for _, notice := range fix.facade.Notices() {
		if notice.Kind == notify.KindError && notice.TTL != 0 {
			t.Fatalf("terminal notice must not expire, got ttl %s", notice.TTL)
		}
	}
}

func TestChangeLanguagePersistsAndNotifies(t *testing.T) {
	fix := newFacadeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fix.startJoined(t, ctx)

	if err := fix.facade.ChangeLanguage(ctx, "FR"); err != nil {
		t.Fatalf("change language: %v", err)
	}
	if got := fix.facade.Session().PreferredLanguage; got != "fr" {
		t.Fatalf("expected fr, got %q", got)
	}

	record, saved := fix.store.stored()
	if !saved || record.Language != "fr" || record.UserID != "user-1" {
		t.Fatalf("expected persisted language, got %+v saved=%v", record, saved)
	}
	if !hasNotice(fix.facade.Notices(), notify.KindInfo, "French") {
		t.Fatalf("expected language notice, got %+v", fix.facade.Notices())
	}

	if err := fix.facade.ChangeLanguage(ctx, "xx"); !errors.Is(err, domain.ErrLanguageUnsupported) {
		t.Fatalf("expected ErrLanguageUnsupported, got %v", err)
	}
}

func TestReportMessage(t *testing.T) {
	fix := newFacadeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fix.startJoined(t, ctx)

	if err := fix.facade.ReportMessage(ctx, "m1", "spam"); err != nil {
		t.Fatalf("report message: %v", err)
	}
	if len(fix.reporter.ids) != 1 || fix.reporter.ids[0] != "m1" {
		t.Fatalf("expected reporter call, got %v", fix.reporter.ids)
	}
	if !hasNotice(fix.facade.Notices(), notify.KindSuccess, "reported") {
		t.Fatalf("expected report notice, got %+v", fix.facade.Notices())
	}

	fix.reporter.err = errors.New("backend down")
	if err := fix.facade.ReportMessage(ctx, "m2", "spam"); err == nil {
		t.Fatal("expected report failure to propagate")
	}
}

func TestTranslationToggleAndToxicReveal(t *testing.T) {
	fix := newFacadeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fix.startJoined(t, ctx)

	translated := msg("m1", "hola")
	translated.OriginalLanguage = "es"
	translated.TranslatedText = "hello"
	toxic := msg("m2", "something vile")
	toxic.IsToxic = true

	fix.transport.events <- transport.Event{Kind: transport.KindMessage, Message: translated}
	fix.transport.events <- transport.Event{Kind: transport.KindMessage, Message: toxic}
	waitFor(t, "messages", func() bool { return len(fix.facade.Messages()) == 2 })

	if !fix.facade.ShowTranslation("m1", true) {
		t.Fatal("expected translation toggle to apply")
	}
	views := fix.facade.Messages()
	if got := fix.facade.DisplayText(views[0]); got != "hello" {
		t.Fatalf("expected translated text, got %q", got)
	}

	if !views[1].Hidden() {
		t.Fatal("expected toxic message hidden by default")
	}
	if got := fix.facade.DisplayText(views[1]); got != "" {
		t.Fatalf("hidden message leaked text %q", got)
	}

	if !fix.facade.RevealMessage("m2") {
		t.Fatal("expected reveal to apply")
	}
	views = fix.facade.Messages()
	if views[1].Hidden() {
		t.Fatal("expected toxic message revealed")
	}
	if got := fix.facade.DisplayText(views[1]); got != "something vile" {
		t.Fatalf("expected revealed text, got %q", got)
	}
}

func TestLogoutTearsDownSession(t *testing.T) {
	fix := newFacadeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fix.startJoined(t, ctx)

	if err := fix.facade.ChangeLanguage(ctx, "de"); err != nil {
		t.Fatalf("change language: %v", err)
	}
	if _, saved := fix.store.stored(); !saved {
		t.Fatal("expected stored session before logout")
	}

	fix.facade.Logout(ctx)

	events := fix.transport.sentEvents()
	if events[len(events)-1] != transport.EventLeaveRoom {
		t.Fatalf("expected trailing leave frame, got %v", events)
	}
	if got := fix.transport.disconnectCount(); got != 1 {
		t.Fatalf("expected one disconnect, got %d", got)
	}
	if _, saved := fix.store.stored(); saved {
		t.Fatal("expected stored session cleared on logout")
	}
	if got := len(fix.facade.Notices()); got != 0 {
		t.Fatalf("expected notices cleared, got %d", got)
	}
}
