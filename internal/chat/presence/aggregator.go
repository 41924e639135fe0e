// Package presence deduplicates and time-expires typing signals per room.
package presence

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/polyglot.chat/internal/platform/timeouts"
)

type key struct {
	room     string
	username string
}

type entry struct {
	username  string
	expiresAt time.Time
	timer     *time.Timer
	seq       uint64
}

// Aggregator tracks who is typing in each room. At most one live entry exists
// per (room, username) pair: a new signal replaces the existing entry and
// cancels its expiry timer instead of stacking another one.
type Aggregator struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[key]*entry
	nextSeq uint64
}

// New builds an aggregator. A non-positive ttl falls back to the shared
// typing expiry.
func New(ttl time.Duration) *Aggregator {
	if ttl <= 0 {
		ttl = timeouts.TypingExpiry
	}
	return &Aggregator{
		ttl:     ttl,
		entries: make(map[key]*entry),
	}
}

// Signal records that username is typing in room, refreshing any existing
// entry and rescheduling its expiry from now.
func (a *Aggregator) Signal(room, username string) {
	room = strings.TrimSpace(room)
	username = strings.TrimSpace(username)
	if room == "" || username == "" {
		return
	}
	k := key{room: room, username: username}

	a.mu.Lock()
	defer a.mu.Unlock()

	seq := a.nextSeq
	if existing, ok := a.entries[k]; ok {
		existing.timer.Stop()
		seq = existing.seq
	} else {
		a.nextSeq++
	}

	e := &entry{
		username:  username,
		expiresAt: time.Now().Add(a.ttl),
		seq:       seq,
	}
	e.timer = time.AfterFunc(a.ttl, func() {
		a.expire(k, e)
	})
	a.entries[k] = e
}

// Stop removes username's typing entry for room immediately.
func (a *Aggregator) Stop(room, username string) {
	k := key{room: strings.TrimSpace(room), username: strings.TrimSpace(username)}

	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.entries[k]; ok {
		existing.timer.Stop()
		delete(a.entries, k)
	}
}

// ClearRoom cancels every pending expiry for a vacated room.
func (a *Aggregator) ClearRoom(room string) {
	room = strings.TrimSpace(room)

	a.mu.Lock()
	defer a.mu.Unlock()
	for k, e := range a.entries {
		if k.room == room {
			e.timer.Stop()
			delete(a.entries, k)
		}
	}
}

// Reset cancels all pending expiries across all rooms.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, e := range a.entries {
		e.timer.Stop()
		delete(a.entries, k)
	}
}

// Snapshot returns the non-expired typing usernames for a room in insertion
// order, excluding the viewer's own username.
func (a *Aggregator) Snapshot(room, self string) []string {
	room = strings.TrimSpace(room)
	now := time.Now()

	a.mu.Lock()
	live := make([]*entry, 0, len(a.entries))
	for k, e := range a.entries {
		if k.room != room || e.username == self {
			continue
		}
		if !e.expiresAt.After(now) {
			continue
		}
		live = append(live, e)
	}
	a.mu.Unlock()

	sort.Slice(live, func(i, j int) bool { return live[i].seq < live[j].seq })
	usernames := make([]string, 0, len(live))
	for _, e := range live {
		usernames = append(usernames, e.username)
	}
	return usernames
}

// expire removes an entry when its timer fires, unless a newer signal already
// replaced it.
func (a *Aggregator) expire(k key, e *entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if current, ok := a.entries[k]; ok && current == e {
		delete(a.entries, k)
	}
}
