package nl2sql

import (
	"sync"
	"time"
)

const DefaultHistorySize = 20

type HistoryEntry struct {
	Question  string    `json:"question"`
	SQL       string    `json:"sql"`
	CreatedAt time.Time `json:"created_at"`
}

// History holds recent successful translations used as few-shot examples.
type History interface {
	Add(entry HistoryEntry)
	// Recent returns up to n of the newest entries, oldest first.
	Recent(n int) []HistoryEntry
	Entries() []HistoryEntry
	Len() int
}

// RingHistory is a bounded FIFO. Once full, each Add evicts the oldest entry.
type RingHistory struct {
	mu       sync.Mutex
	capacity int
	entries  []HistoryEntry
}

func NewRingHistory(capacity int) *RingHistory {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &RingHistory{
		capacity: capacity,
		entries:  make([]HistoryEntry, 0, capacity),
	}
}

func (h *RingHistory) Add(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == h.capacity {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, entry)
}

func (h *RingHistory) Recent(n int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 {
		return nil
	}
	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]HistoryEntry, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}

func (h *RingHistory) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *RingHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *RingHistory) Capacity() int {
	return h.capacity
}
