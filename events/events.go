package events

import (
	"context"
	"sync"

	"swagclan/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeSettingsLoaded           EventType = "settings_loaded"
	EventTypeSettingsLoadFailed       EventType = "settings_load_failed"
	EventTypeSettingChanged           EventType = "setting_changed"
	EventTypeStorageLoaded            EventType = "storage_loaded"
	EventTypeStorageLoadFailed        EventType = "storage_load_failed"
	EventTypeStorageItemChanged       EventType = "storage_item_changed"
	EventTypeStorageCollectionChanged EventType = "storage_collection_changed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// Publisher receives events. Bus is the production implementation.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// ChangeAction describes what happened to a storage record
type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionDeleted ChangeAction = "deleted"
)

// SettingsLoadedEvent is emitted when a guild's settings were read from its store,
// or created with defaults when no document existed
type SettingsLoadedEvent struct {
	GuildID string
	Created bool
}

func (e SettingsLoadedEvent) Type() EventType {
	return EventTypeSettingsLoaded
}

// SettingsLoadFailedEvent is emitted when a guild's settings document exists but
// could not be read; defaults are served without being saved
type SettingsLoadFailedEvent struct {
	GuildID string
	Err     error
}

func (e SettingsLoadFailedEvent) Type() EventType {
	return EventTypeSettingsLoadFailed
}

// SettingChangedEvent is emitted after a changed setting was saved
type SettingChangedEvent struct {
	GuildID    string
	Change     models.GuildSettingChange
	Definition *models.SettingDefinition
}

func (e SettingChangedEvent) Type() EventType {
	return EventTypeSettingChanged
}

// StorageLoadedEvent is emitted when a guild's storage was read from its store
// or created empty
type StorageLoadedEvent struct {
	GuildID string
	Created bool
}

func (e StorageLoadedEvent) Type() EventType {
	return EventTypeStorageLoaded
}

// StorageLoadFailedEvent mirrors SettingsLoadFailedEvent for storage
type StorageLoadFailedEvent struct {
	GuildID string
	Err     error
}

func (e StorageLoadFailedEvent) Type() EventType {
	return EventTypeStorageLoadFailed
}

// StorageItemEvent is emitted after an item change was saved
type StorageItemEvent struct {
	GuildID    string
	Collection string
	Item       models.CollectionItem
	Action     ChangeAction
}

func (e StorageItemEvent) Type() EventType {
	return EventTypeStorageItemChanged
}

// CollectionEvent is emitted after a collection was created or deleted
type CollectionEvent struct {
	GuildID    string
	Collection string
	Action     ChangeAction
}

func (e CollectionEvent) Type() EventType {
	return EventTypeStorageCollectionChanged
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised during a mutation until the mutation
// has been persisted. Flush forwards them, Discard drops them.
type TransactionalBus struct {
	real    Publisher
	pending []Event
}

func NewTransactionalBus(real Publisher) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Pending returns the number of stashed events
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// called after a successful save
func (b *TransactionalBus) Flush(ctx context.Context) {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events")

	// Handlers outlive the request that triggered the save
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
}

// called after a failed save
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
