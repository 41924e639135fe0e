// Package notify queues ephemeral user-visible notices with TTL semantics.
package notify

import (
	"strings"
	"sync"
	"time"
)

// Kind classifies a notice for presentation.
type Kind string

// Notice kinds.
const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notice is one queued user-visible message.
type Notice struct {
	ID        int64
	Message   string
	Kind      Kind
	CreatedAt time.Time
	TTL       time.Duration
}

// Queue holds notices in creation order. Entries self-remove after their TTL
// unless the TTL is non-positive, which marks them persistent until an
// explicit dismiss. Duplicate messages are not coalesced; every push is an
// independent entry.
type Queue struct {
	mu sync.Mutex
	// nextID is a monotonic counter rather than a wall-clock stamp so two
	// pushes in the same tick can never collide.
	nextID int64
	order  []int64
	byID   map[int64]Notice
	timers map[int64]*time.Timer
}

// New builds an empty queue.
func New() *Queue {
	return &Queue{
		byID:   make(map[int64]Notice),
		timers: make(map[int64]*time.Timer),
	}
}

// Push appends a notice and returns its id. A non-positive ttl keeps the
// notice until Dismiss is called.
func (q *Queue) Push(message string, kind Kind, ttl time.Duration) int64 {
	if kind == "" {
		kind = KindInfo
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	id := q.nextID
	q.byID[id] = Notice{
		ID:        id,
		Message:   strings.TrimSpace(message),
		Kind:      kind,
		CreatedAt: time.Now(),
		TTL:       ttl,
	}
	q.order = append(q.order, id)

	if ttl > 0 {
		q.timers[id] = time.AfterFunc(ttl, func() {
			q.Dismiss(id)
		})
	}
	return id
}

// Dismiss removes a notice. It is idempotent: dismissing an unknown or
// already-expired id is a no-op.
func (q *Queue) Dismiss(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.byID[id]; !ok {
		return
	}
	delete(q.byID, id)
	if timer, ok := q.timers[id]; ok {
		timer.Stop()
		delete(q.timers, id)
	}
	for i, queued := range q.order {
		if queued == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Reset dismisses everything, cancelling pending expiry timers.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	q.byID = make(map[int64]Notice)
	q.order = nil
}

// Snapshot returns the live notices in creation order.
func (q *Queue) Snapshot() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	notices := make([]Notice, 0, len(q.order))
	for _, id := range q.order {
		notices = append(notices, q.byID[id])
	}
	return notices
}
