package reminder

import (
	"context"
	"strings"
	"sync"
	"time"

	"coursebell/internal/task"
	logx "coursebell/pkg/logx"
)

// Mark records that a reminder for Key at Lead was handed to delivery.
type Mark struct {
	Key  task.Key
	Lead LeadTime
}

const markSep = "\x1f"

// ID is the stable string form used by persistent stores.
func (m Mark) ID() string {
	return strings.Join([]string{m.Key.Kind.String(), m.Key.CourseName, m.Key.RawDeadline, m.Lead.String()}, markSep)
}

// MarkStore persists marks across restarts. Implemented by internal/storage.
type MarkStore interface {
	PutMark(ctx context.Context, id string, at time.Time) error
	LoadMarks(ctx context.Context) ([]string, error)
}

// Ledger is the session's set of already scheduled (task, lead time) pairs.
//
// It only grows: there is no path from scheduled back to unseen. The app owns a
// single Ledger for the whole process; screens, commands and passes share it.
// Changing the lead time never clears marks recorded under another lead time.
//
// It is safe for concurrent use.
type Ledger struct {
	mu    sync.RWMutex
	marks map[string]struct{}

	store MarkStore
	log   logx.Logger
}

// NewLedger returns an empty ledger. store may be nil (in-memory only).
func NewLedger(store MarkStore, log logx.Logger) *Ledger {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Ledger{marks: map[string]struct{}{}, store: store, log: log}
}

// Load merges persisted marks into the ledger. Without a store it is a no-op.
func (l *Ledger) Load(ctx context.Context) (int, error) {
	if l.store == nil {
		return 0, nil
	}
	ids, err := l.store.LoadMarks(ctx)
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	for _, id := range ids {
		l.marks[id] = struct{}{}
	}
	l.mu.Unlock()
	return len(ids), nil
}

// Has reports whether m was already scheduled.
func (l *Ledger) Has(m Mark) bool {
	l.mu.RLock()
	_, ok := l.marks[m.ID()]
	l.mu.RUnlock()
	return ok
}

// Add records m. It reports false if m was already present.
// Store write failures are logged; the in-memory mark stands regardless.
func (l *Ledger) Add(ctx context.Context, m Mark) bool {
	id := m.ID()
	l.mu.Lock()
	if _, ok := l.marks[id]; ok {
		l.mu.Unlock()
		return false
	}
	l.marks[id] = struct{}{}
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.PutMark(ctx, id, time.Now()); err != nil {
			l.log.Warn("mark persist failed", logx.String("mark", id), logx.Err(err))
		}
	}
	return true
}

// Len returns the number of marks.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.marks)
}
