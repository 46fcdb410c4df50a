package service

import (
	"context"
	"sync"
	"time"

	"swagclan/events"
)

// guildLocks serializes mutations and saves per guild
type guildLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newGuildLocks() *guildLocks {
	return &guildLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the lock of a guild and returns its release function
func (l *guildLocks) lock(guildID string) func() {
	l.mu.Lock()
	m, ok := l.locks[guildID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[guildID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Option configures the settings and storage services
type Option func(*options)

type options struct {
	clock func() time.Time
	quota int64
}

func defaultOptions() options {
	return options{clock: time.Now}
}

// WithClock overrides the clock used for history and item timestamps
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithStorageQuota caps the serialized size of a guild's storage. Zero disables the cap.
func WithStorageQuota(bytes int64) Option {
	return func(o *options) {
		if bytes >= 0 {
			o.quota = bytes
		}
	}
}

type nopPublisher struct{}

func (nopPublisher) Emit(context.Context, events.Event) {}

func publisherOrNop(p events.Publisher) events.Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
