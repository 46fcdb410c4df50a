package models

import (
	"sort"
	"sync"
	"time"
)

// GuildSettingChange records one mutation of a guild setting
type GuildSettingChange struct {
	Timestamp time.Time
	Setting   string
	Before    SettingValue
	After     SettingValue
	ActorID   string // Discord user that made the change, empty for system changes
}

// Changed reports whether the change actually altered the value
func (c *GuildSettingChange) Changed() bool {
	return c.Before != c.After
}

// GuildSettingsHistory is the append-only change log of one guild
type GuildSettingsHistory struct {
	mu      sync.RWMutex
	entries []*GuildSettingChange
	now     func() time.Time
}

// NewGuildSettingsHistory creates an empty history using the wall clock
func NewGuildSettingsHistory() *GuildSettingsHistory {
	return &GuildSettingsHistory{now: time.Now}
}

// SetClock replaces the clock used to timestamp new entries
func (h *GuildSettingsHistory) SetClock(now func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = now
}

// Mark builds a change record and appends it when before and after differ.
// The record is returned either way.
func (h *GuildSettingsHistory) Mark(setting string, before, after SettingValue, actorID string) *GuildSettingChange {
	h.mu.Lock()
	defer h.mu.Unlock()

	change := &GuildSettingChange{
		Timestamp: h.now(),
		Setting:   setting,
		Before:    before,
		After:     after,
		ActorID:   actorID,
	}
	if change.Changed() {
		h.entries = append(h.entries, change)
	}
	return change
}

// Entries returns every record in mark order
func (h *GuildSettingsHistory) Entries() []*GuildSettingChange {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*GuildSettingChange, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of recorded changes
func (h *GuildSettingsHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// For returns the records of one setting sorted by timestamp, oldest first
func (h *GuildSettingsHistory) For(setting string) []*GuildSettingChange {
	h.mu.RLock()
	var out []*GuildSettingChange
	for _, e := range h.entries {
		if e.Setting == setting {
			out = append(out, e)
		}
	}
	h.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// restore appends a persisted record without the before/after check
func (h *GuildSettingsHistory) restore(change *GuildSettingChange) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, change)
}
