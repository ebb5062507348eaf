// Package ledger deduplicates install requests and holds the pending add and
// remove queues that feed the orchestrator.
//
// Two sets back the dedup rules. Seen holds every non-forced link requested
// during the session and only grows. Queued holds the links currently waiting
// in the add queue; a link leaves it as soon as it is dequeued for dispatch.
// Both sets compare links case-insensitively through Key.
package ledger

import (
	"strings"

	"golang.org/x/text/cases"
)

// Key returns the normalized form used to compare links.
func Key(link string) string {
	return cases.Fold().String(link)
}

// Ledger tracks seen and queued links.
type Ledger struct {
	seen   map[string]struct{}
	queued map[string]struct{}
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		seen:   make(map[string]struct{}),
		queued: make(map[string]struct{}),
	}
}

// Seen reports whether link was requested without force this session.
func (l *Ledger) Seen(link string) bool {
	_, ok := l.seen[Key(link)]
	return ok
}

// Queued reports whether link is waiting in the add queue.
func (l *Ledger) Queued(link string) bool {
	_, ok := l.queued[Key(link)]
	return ok
}

// SeenCount returns the number of distinct links seen this session.
func (l *Ledger) SeenCount() int {
	return len(l.seen)
}

// markSeen adds link to the seen set and reports whether it was new.
func (l *Ledger) markSeen(link string) bool {
	k := Key(link)
	if _, ok := l.seen[k]; ok {
		return false
	}
	l.seen[k] = struct{}{}
	return true
}

// markQueued adds link to the queued set and reports whether it was new.
func (l *Ledger) markQueued(link string) bool {
	k := Key(link)
	if _, ok := l.queued[k]; ok {
		return false
	}
	l.queued[k] = struct{}{}
	return true
}

func (l *Ledger) release(link string) {
	delete(l.queued, Key(link))
}

// Queue holds the pending adds and removes in arrival order.
// It is not safe for concurrent use.
type Queue struct {
	ledger  *Ledger
	adds    []string
	removes []string
}

// NewQueue returns an empty Queue with a fresh Ledger.
func NewQueue() *Queue {
	return &Queue{ledger: NewLedger()}
}

// Ledger exposes the dedup sets.
func (q *Queue) Ledger() *Ledger {
	return q.ledger
}

// EnqueueAdd queues link for installation and reports whether it was queued.
//
// A non-forced link that was already seen this session is ignored. A link
// that is already waiting in the queue is ignored even when forced.
func (q *Queue) EnqueueAdd(link string, force bool) bool {
	link = strings.TrimSpace(link)
	if link == "" {
		return false
	}

	if !force && !q.ledger.markSeen(link) {
		return false
	}

	if !q.ledger.markQueued(link) {
		return false
	}

	q.adds = append(q.adds, link)
	return true
}

// EnqueueRemove queues idOrName for removal. Removal is not deduplicated.
func (q *Queue) EnqueueRemove(idOrName string) bool {
	idOrName = strings.TrimSpace(idOrName)
	if idOrName == "" {
		return false
	}

	q.removes = append(q.removes, idOrName)
	return true
}

// NextAdd dequeues the oldest pending add and frees it in the queued set so a
// later forced request for the same link can be queued again.
func (q *Queue) NextAdd() (string, bool) {
	if len(q.adds) == 0 {
		return "", false
	}

	link := q.adds[0]
	q.adds[0] = ""
	q.adds = q.adds[1:]
	q.ledger.release(link)
	return link, true
}

// NextRemove dequeues the oldest pending remove.
func (q *Queue) NextRemove() (string, bool) {
	if len(q.removes) == 0 {
		return "", false
	}

	id := q.removes[0]
	q.removes = q.removes[1:]
	return id, true
}

// PendingAdds returns the number of queued adds.
func (q *Queue) PendingAdds() int {
	return len(q.adds)
}

// PendingRemoves returns the number of queued removes.
func (q *Queue) PendingRemoves() int {
	return len(q.removes)
}

// Empty reports whether both queues are drained.
func (q *Queue) Empty() bool {
	return len(q.adds) == 0 && len(q.removes) == 0
}
