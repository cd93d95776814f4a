// Package history keeps the in-memory, size-bounded per-user chat log.
// Nothing here is durable; the log resets on process restart.
package history

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxEntriesPerUser caps each user's log; the oldest entries are evicted
// first.
const MaxEntriesPerUser = 100

// Entry records one completed chat turn.
type Entry struct {
	TurnID            string    `json:"turn_id"`
	Timestamp         time.Time `json:"timestamp"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	Provider          string    `json:"provider"`
	ToolsUsed         []string  `json:"tools_used"`
}

// Log is shared by all concurrent turns; appends are serialized so the size
// cap holds under concurrency.
type Log struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

func NewLog() *Log {
	return &Log{entries: make(map[string][]Entry)}
}

// Append records a turn for the user, assigning a turn id if absent, and
// evicts the oldest entries beyond the cap.
func (l *Log) Append(userID string, entry Entry) {
	if entry.TurnID == "" {
		entry.TurnID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := append(l.entries[userID], entry)
	if len(entries) > MaxEntriesPerUser {
		entries = entries[len(entries)-MaxEntriesPerUser:]
	}
	l.entries[userID] = entries
}

// Tail returns up to limit most recent entries in original order
// (most-recent-last). limit <= 0 returns the whole log.
func (l *Log) Tail(userID string, limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.entries[userID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return slices.Clone(entries)
}
