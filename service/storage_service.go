package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"swagclan/events"
	"swagclan/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// storageService implements the StorageService interface. A GuildStorage is
// only read or changed while its guild lock is held.
type storageService struct {
	store     DocumentStore
	publisher events.Publisher
	clock     func() time.Time
	quota     int64

	mu     sync.RWMutex
	guilds map[string]*models.GuildStorage

	loads singleflight.Group
	locks *guildLocks
}

// NewStorageService creates a storage service backed by store
func NewStorageService(store DocumentStore, publisher events.Publisher, opts ...Option) StorageService {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &storageService{
		store:     store,
		publisher: publisherOrNop(publisher),
		clock:     o.clock,
		quota:     o.quota,
		guilds:    make(map[string]*models.GuildStorage),
		locks:     newGuildLocks(),
	}
}

func (s *storageService) cached(guildID string) (*models.GuildStorage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gs, ok := s.guilds[guildID]
	return gs, ok
}

// remember caches gs unless the guild is already cached, and returns the cached
// aggregate. A cached aggregate may hold writes that are not in the store yet.
func (s *storageService) remember(gs *models.GuildStorage) (*models.GuildStorage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.guilds[gs.GuildID]; ok {
		return existing, false
	}
	s.guilds[gs.GuildID] = gs
	return gs, true
}

// GetStorage returns the cached storage of a guild, with the same load rules as GetSettings
func (s *storageService) GetStorage(ctx context.Context, guildID string) (*models.GuildStorage, error) {
	if gs, ok := s.cached(guildID); ok {
		return gs, nil
	}

	v, err, _ := s.loads.Do(guildID, func() (any, error) {
		if gs, ok := s.cached(guildID); ok {
			return gs, nil
		}

		gs, err := s.LoadStorage(ctx, guildID)
		switch {
		case err == nil:
			return gs, nil
		case errors.Is(err, ErrDocumentNotFound):
			return s.createDefaults(ctx, guildID)
		case errors.Is(err, ErrCorruptDocument):
			return gs, nil
		default:
			return nil, err
		}
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.GuildStorage), nil
}

func (s *storageService) createDefaults(ctx context.Context, guildID string) (*models.GuildStorage, error) {
	gs := models.NewGuildStorage(guildID, nil)

	if err := s.Save(ctx, gs); err != nil {
		return nil, fmt.Errorf("failed to persist default storage for guild %s: %w", guildID, err)
	}
	gs, _ = s.remember(gs)

	log.WithField("guild_id", guildID).Info("Created default guild storage")
	s.publisher.Emit(ctx, events.StorageLoadedEvent{GuildID: guildID, Created: true})

	return gs, nil
}

// LoadStorage reads and caches the storage of a guild
func (s *storageService) LoadStorage(ctx context.Context, guildID string) (*models.GuildStorage, error) {
	data, err := s.store.Load(ctx, guildID)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, err
	}
	if err != nil && ctx.Err() != nil {
		return nil, err
	}

	var doc *models.GuildStorageDocument
	if err == nil {
		doc, err = models.DecodeGuildStorageDocument(data)
	}
	if err != nil {
		loadErr := fmt.Errorf("%w: storage of guild %s: %w", ErrCorruptDocument, guildID, err)

		gs := models.NewGuildStorage(guildID, nil)
		gs.MarkTransient()

		s.publisher.Emit(ctx, events.StorageLoadFailedEvent{GuildID: guildID, Err: loadErr})
		return gs, loadErr
	}

	gs, stored := s.remember(models.NewGuildStorage(guildID, doc))
	if !stored {
		log.WithField("guild_id", guildID).Debug("Guild storage already cached, keeping the cached copy")
	}

	s.publisher.Emit(ctx, events.StorageLoadedEvent{GuildID: guildID})
	return gs, nil
}

// LoadAll loads every stored guild. Unreadable documents are skipped and
// reported in the joined error. Documents deleted while loading are skipped.
func (s *storageService) LoadAll(ctx context.Context) ([]*models.GuildStorage, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list guild storage: %w", err)
	}

	loaded := make([]*models.GuildStorage, 0, len(ids))
	var errs []error
	for _, id := range ids {
		gs, err := s.LoadStorage(ctx, id)
		if errors.Is(err, ErrDocumentNotFound) {
			// removed between List and Load
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, gs)
	}

	log.WithFields(log.Fields{
		"loaded": len(loaded),
		"failed": len(errs),
	}).Info("Loaded guild storage")

	return loaded, errors.Join(errs...)
}

// writable returns the storage of a guild with its lock held
func (s *storageService) writable(ctx context.Context, guildID string) (*models.GuildStorage, func(), error) {
	gs, err := s.GetStorage(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}
	if gs.Transient() {
		return nil, nil, fmt.Errorf("storage of guild %s is read-only until its document can be read: %w", guildID, ErrCorruptDocument)
	}
	return gs, s.locks.lock(guildID), nil
}

// GetItem returns a copy of one item
func (s *storageService) GetItem(ctx context.Context, guildID, collection, name string) (*models.CollectionItem, error) {
	gs, err := s.GetStorage(ctx, guildID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(guildID)
	defer unlock()

	c, ok := gs.Collection(collection)
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", collection, models.ErrCollectionNotFound)
	}
	item, ok := c.Get(name)
	if !ok {
		return nil, fmt.Errorf("item %q in %s: %w", name, collection, models.ErrItemNotFound)
	}
	copied := *item
	return &copied, nil
}

// SetItem creates or updates an item. Writes that would push the guild past
// its quota are rejected before anything changes.
func (s *storageService) SetItem(ctx context.Context, guildID, collection, name, value string) (*models.CollectionItem, error) {
	if !models.ValidItemName(name) {
		return nil, fmt.Errorf("item %q: %w", name, models.ErrInvalidStorageKey)
	}

	gs, unlock, err := s.writable(ctx, guildID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, ok := gs.Collection(collection)
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", collection, models.ErrCollectionNotFound)
	}

	now := s.clock()
	if s.quota > 0 {
		candidate := models.CollectionItem{Name: name, Value: value, Created: now, Modified: now}
		var previous int64
		if existing, ok := c.Get(name); ok {
			candidate.Created = existing.Created
			previous = existing.Size()
		}
		current := gs.Size()
		next := current - previous + candidate.Size()
		if next > s.quota && next > current {
			return nil, fmt.Errorf("guild %s would use %d of %d bytes: %w", guildID, next, s.quota, ErrStorageQuotaExceeded)
		}
	}

	item, created := c.Set(name, value, now)
	action := events.ActionUpdated
	if created {
		action = events.ActionCreated
	}

	bus := events.NewTransactionalBus(s.publisher)
	bus.Publish(events.StorageItemEvent{
		GuildID:    guildID,
		Collection: collection,
		Item:       *item,
		Action:     action,
	})

	if err := s.save(ctx, gs); err != nil {
		bus.Discard()
		return nil, err
	}
	bus.Flush(ctx)

	copied := *item
	return &copied, nil
}

// DeleteItem removes an item
func (s *storageService) DeleteItem(ctx context.Context, guildID, collection, name string) error {
	gs, unlock, err := s.writable(ctx, guildID)
	if err != nil {
		return err
	}
	defer unlock()

	c, ok := gs.Collection(collection)
	if !ok {
		return fmt.Errorf("collection %q: %w", collection, models.ErrCollectionNotFound)
	}
	item, ok := c.Delete(name)
	if !ok {
		return fmt.Errorf("item %q in %s: %w", name, collection, models.ErrItemNotFound)
	}

	bus := events.NewTransactionalBus(s.publisher)
	bus.Publish(events.StorageItemEvent{
		GuildID:    guildID,
		Collection: collection,
		Item:       *item,
		Action:     events.ActionDeleted,
	})

	if err := s.save(ctx, gs); err != nil {
		bus.Discard()
		return err
	}
	bus.Flush(ctx)
	return nil
}

// CreateCollection adds an empty collection
func (s *storageService) CreateCollection(ctx context.Context, guildID, collection string) error {
	gs, unlock, err := s.writable(ctx, guildID)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := gs.CreateCollection(collection); err != nil {
		return err
	}

	bus := events.NewTransactionalBus(s.publisher)
	bus.Publish(events.CollectionEvent{GuildID: guildID, Collection: collection, Action: events.ActionCreated})

	if err := s.save(ctx, gs); err != nil {
		bus.Discard()
		return err
	}
	bus.Flush(ctx)
	return nil
}

// DeleteCollection removes a collection and all of its items
func (s *storageService) DeleteCollection(ctx context.Context, guildID, collection string) error {
	gs, unlock, err := s.writable(ctx, guildID)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := gs.DeleteCollection(collection); err != nil {
		return err
	}

	bus := events.NewTransactionalBus(s.publisher)
	bus.Publish(events.CollectionEvent{GuildID: guildID, Collection: collection, Action: events.ActionDeleted})

	if err := s.save(ctx, gs); err != nil {
		bus.Discard()
		return err
	}
	bus.Flush(ctx)
	return nil
}

// Usage reports the size of every collection
func (s *storageService) Usage(ctx context.Context, guildID string) (*StorageUsage, error) {
	gs, err := s.GetStorage(ctx, guildID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(guildID)
	defer unlock()

	usage := &StorageUsage{GuildID: guildID, Quota: s.quota}
	for _, c := range gs.Collections() {
		size := c.Size()
		usage.Collections = append(usage.Collections, CollectionUsage{
			Name:  c.Name,
			Items: c.Len(),
			Size:  size,
		})
		usage.Size += size
	}
	return usage, nil
}

// Save persists one guild. Transient aggregates are skipped.
func (s *storageService) Save(ctx context.Context, gs *models.GuildStorage) error {
	unlock := s.locks.lock(gs.GuildID)
	defer unlock()
	return s.save(ctx, gs)
}

// save expects the guild lock to be held
func (s *storageService) save(ctx context.Context, gs *models.GuildStorage) error {
	if gs.Transient() {
		log.WithField("guild_id", gs.GuildID).Debug("Skipping save of transient guild storage")
		return nil
	}

	data, err := gs.Encode()
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, gs.GuildID, data); err != nil {
		return fmt.Errorf("failed to save storage of guild %s: %w", gs.GuildID, err)
	}
	return nil
}

// SaveAll persists every cached guild, one after another
func (s *storageService) SaveAll(ctx context.Context) error {
	s.mu.RLock()
	all := make([]*models.GuildStorage, 0, len(s.guilds))
	for _, gs := range s.guilds {
		all = append(all, gs)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].GuildID < all[j].GuildID })

	var errs []error
	for _, gs := range all {
		if err := s.Save(ctx, gs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
