// Package session implements the durable, cached, append-only conversation
// log: entries are buffered client-side during a turn, flushed grouped by
// role, and read back through a short-TTL cache.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTTL bounds how long a read result is served from cache; long
	// enough to absorb bursts of reads within one turn, short enough that
	// cross-turn reads see fresh data even without an intervening persist.
	DefaultTTL = 10 * time.Second
)

var ErrInvalidSession = errors.New("session id is empty")

// Entry is one logged message.
type Entry struct {
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RoleMessages is one persisted row: all messages for (session, role) in
// insertion order, collapsed into a single ordered field.
type RoleMessages struct {
	Role     string
	Messages []string
}

// Backend is the durable store capability the history needs. LoadRole
// returns (nil, nil) when no row exists yet. LoadAll returns the rows
// oldest-first by creation.
type Backend interface {
	LoadRole(ctx context.Context, sessionID, role string) ([]string, error)
	SaveRole(ctx context.Context, sessionID, role string, messages []string) error
	LoadAll(ctx context.Context, sessionID string) ([]RoleMessages, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type cacheEntry struct {
	at      time.Time
	entries []Entry
}

// History is the per-session message log. Persist serializes with itself
// (write lock) because the underlying store keeps one row per (session,
// role) and the flush is a read-modify-write; the read cache has its own
// lock so reads are not blocked by an in-flight flush.
type History struct {
	sessionID string
	backend   Backend
	ttl       time.Duration
	now       func() time.Time

	writeMu sync.Mutex
	pending []Entry

	cacheMu sync.Mutex
	cache   map[int]cacheEntry
}

type HistoryOption func(*History)

func WithTTL(ttl time.Duration) HistoryOption {
	return func(h *History) {
		if ttl > 0 {
			h.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) HistoryOption {
	return func(h *History) {
		if now != nil {
			h.now = now
		}
	}
}

func NewHistory(sessionID string, backend Backend, opts ...HistoryOption) (*History, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}
	if backend == nil {
		return nil, errors.New("history backend is required")
	}

	h := &History{
		sessionID: sessionID,
		backend:   backend,
		ttl:       DefaultTTL,
		now:       time.Now,
		cache:     make(map[int]cacheEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

func (h *History) SessionID() string {
	return h.sessionID
}

// Collect appends entries to the in-memory pending buffer. No I/O; safe to
// call many times per turn.
func (h *History) Collect(items []Entry) {
	if len(items) == 0 {
		return
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	h.pending = append(h.pending, items...)
}

// Persist flushes the pending buffer grouped by role: for each role the
// existing persisted list is fetched, the new messages appended, and the
// combined list written back. The buffer is cleared only after every role
// write succeeds, so a failed flush leaves the items queued for retry. A
// Persist with an empty buffer is a no-op.
func (h *History) Persist(ctx context.Context) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if len(h.pending) == 0 {
		return nil
	}

	order, grouped := groupByRole(h.pending)
	for _, role := range order {
		existing, err := h.backend.LoadRole(ctx, h.sessionID, role)
		if err != nil {
			return err
		}
		combined := append(append([]string(nil), existing...), grouped[role]...)
		if err := h.backend.SaveRole(ctx, h.sessionID, role, combined); err != nil {
			return err
		}
	}

	h.pending = nil
	h.invalidate()
	return nil
}

// Get returns the session's messages oldest-first, truncated to the most
// recent limit when limit > 0. A short-TTL cache keyed by limit is consulted
// first; Persist invalidates it.
func (h *History) Get(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 0 {
		limit = 0
	}
	if cached, ok := h.cached(limit); ok {
		return cached, nil
	}

	rows, err := h.backend.LoadAll(ctx, h.sessionID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0)
	for _, row := range rows {
		for _, msg := range row.Messages {
			entries = append(entries, Entry{Role: row.Role, Message: msg})
		}
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	h.setCached(limit, entries)
	return entries, nil
}

// Clear deletes all durably stored entries for the session, drops the
// pending buffer, and invalidates the cache.
func (h *History) Clear(ctx context.Context) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if err := h.backend.DeleteSession(ctx, h.sessionID); err != nil {
		return err
	}
	h.pending = nil
	h.invalidate()
	return nil
}

// PendingCount reports how many entries await the next flush.
func (h *History) PendingCount() int {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return len(h.pending)
}

func (h *History) cached(limit int) ([]Entry, bool) {
	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()

	entry, ok := h.cache[limit]
	if !ok {
		return nil, false
	}
	if h.now().Sub(entry.at) >= h.ttl {
		delete(h.cache, limit)
		return nil, false
	}
	return entry.entries, true
}

func (h *History) setCached(limit int, entries []Entry) {
	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()
	h.cache[limit] = cacheEntry{at: h.now(), entries: entries}
}

func (h *History) invalidate() {
	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()
	h.cache = make(map[int]cacheEntry)
}

// groupByRole splits entries into per-role message lists, preserving
// insertion order within each role and the order roles first appear.
func groupByRole(entries []Entry) ([]string, map[string][]string) {
	order := make([]string, 0, 2)
	grouped := make(map[string][]string, 2)
	for _, e := range entries {
		role := strings.TrimSpace(e.Role)
		msg := strings.TrimSpace(e.Message)
		if role == "" || msg == "" {
			continue
		}
		if _, ok := grouped[role]; !ok {
			order = append(order, role)
		}
		grouped[role] = append(grouped[role], msg)
	}
	return order, grouped
}
