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

// settingsService implements the SettingsService interface
type settingsService struct {
	store     DocumentStore
	registry  *models.SettingRegistry
	resolver  models.GuildResolver
	publisher events.Publisher
	clock     func() time.Time

	mu     sync.RWMutex
	guilds map[string]*models.GuildSettings

	loads singleflight.Group
	locks *guildLocks
}

// NewSettingsService creates a settings service backed by store
func NewSettingsService(store DocumentStore, registry *models.SettingRegistry, resolver models.GuildResolver, publisher events.Publisher, opts ...Option) SettingsService {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &settingsService{
		store:     store,
		registry:  registry,
		resolver:  resolver,
		publisher: publisherOrNop(publisher),
		clock:     o.clock,
		guilds:    make(map[string]*models.GuildSettings),
		locks:     newGuildLocks(),
	}
}

func (s *settingsService) cached(guildID string) (*models.GuildSettings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gs, ok := s.guilds[guildID]
	return gs, ok
}

// remember caches gs unless the guild is already cached, and returns the cached
// aggregate. A cached aggregate may hold writes that are not in the store yet.
func (s *settingsService) remember(gs *models.GuildSettings) (*models.GuildSettings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.guilds[gs.GuildID]; ok {
		return existing, false
	}
	s.guilds[gs.GuildID] = gs
	return gs, true
}

func (s *settingsService) newSettings(guildID string, doc *models.GuildSettingsDocument) *models.GuildSettings {
	gs := models.NewGuildSettings(guildID, s.registry, doc, s.resolver)
	gs.History.SetClock(s.clock)
	return gs
}

// GetSettings returns the cached settings of a guild. Concurrent calls for the
// same unloaded guild share a single load. When the stored document cannot be
// read, transient defaults are returned and nothing is cached, so the next call
// tries the store again.
func (s *settingsService) GetSettings(ctx context.Context, guildID string) (*models.GuildSettings, error) {
	if gs, ok := s.cached(guildID); ok {
		return gs, nil
	}

	v, err, _ := s.loads.Do(guildID, func() (any, error) {
		if gs, ok := s.cached(guildID); ok {
			return gs, nil
		}

		gs, err := s.LoadSettings(ctx, guildID)
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
	return v.(*models.GuildSettings), nil
}

func (s *settingsService) createDefaults(ctx context.Context, guildID string) (*models.GuildSettings, error) {
	gs := s.newSettings(guildID, nil)

	if err := s.Save(ctx, gs); err != nil {
		return nil, fmt.Errorf("failed to persist default settings for guild %s: %w", guildID, err)
	}
	gs, _ = s.remember(gs)

	log.WithField("guild_id", guildID).Info("Created default guild settings")
	s.publisher.Emit(ctx, events.SettingsLoadedEvent{GuildID: guildID, Created: true})

	return gs, nil
}

// LoadSettings reads and caches the settings of a guild
func (s *settingsService) LoadSettings(ctx context.Context, guildID string) (*models.GuildSettings, error) {
	data, err := s.store.Load(ctx, guildID)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, err
	}
	if err != nil && ctx.Err() != nil {
		return nil, err
	}

	var doc *models.GuildSettingsDocument
	if err == nil {
		doc, err = models.DecodeGuildSettingsDocument(data)
	}
	if err != nil {
		loadErr := fmt.Errorf("%w: settings of guild %s: %w", ErrCorruptDocument, guildID, err)

		gs := s.newSettings(guildID, nil)
		gs.MarkTransient()

		s.publisher.Emit(ctx, events.SettingsLoadFailedEvent{GuildID: guildID, Err: loadErr})
		return gs, loadErr
	}

	gs, stored := s.remember(s.newSettings(guildID, doc))
	if !stored {
		log.WithField("guild_id", guildID).Debug("Guild settings already cached, keeping the cached copy")
	}

	s.publisher.Emit(ctx, events.SettingsLoadedEvent{GuildID: guildID})
	return gs, nil
}

// LoadAll loads every stored guild. Unreadable documents are skipped and
// reported in the joined error. Documents deleted while loading are skipped.
func (s *settingsService) LoadAll(ctx context.Context) ([]*models.GuildSettings, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list guild settings: %w", err)
	}

	loaded := make([]*models.GuildSettings, 0, len(ids))
	var errs []error
	for _, id := range ids {
		gs, err := s.LoadSettings(ctx, id)
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
	}).Info("Loaded guild settings")

	return loaded, errors.Join(errs...)
}

// Set applies a raw value to a setting and saves the guild. The change event is
// published only after the save succeeded.
func (s *settingsService) Set(ctx context.Context, guildID, name, raw, actorID string) (*models.GuildSettingChange, error) {
	gs, err := s.GetSettings(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if gs.Transient() {
		return nil, fmt.Errorf("settings of guild %s are read-only until their document can be read: %w", guildID, ErrCorruptDocument)
	}

	setting, ok := gs.Get(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, models.ErrUnknownSetting)
	}

	unlock := s.locks.lock(guildID)
	defer unlock()

	change, err := setting.Set(ctx, raw, actorID)
	if err != nil {
		return nil, err
	}
	if !change.Changed() {
		return change, nil
	}

	bus := events.NewTransactionalBus(s.publisher)
	bus.Publish(events.SettingChangedEvent{
		GuildID:    guildID,
		Change:     *change,
		Definition: setting.Definition,
	})

	if err := s.save(ctx, gs); err != nil {
		bus.Discard()
		return nil, err
	}
	bus.Flush(ctx)

	log.WithFields(log.Fields{
		"guild_id": guildID,
		"setting":  setting.Name,
		"actor_id": actorID,
	}).Info("Guild setting changed")

	return change, nil
}

// History returns the recorded changes of one setting, oldest first
func (s *settingsService) History(ctx context.Context, guildID, name string) ([]*models.GuildSettingChange, error) {
	def, ok := s.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, models.ErrUnknownSetting)
	}

	gs, err := s.GetSettings(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return gs.History.For(def.Name), nil
}

// Save persists one guild. Transient aggregates are skipped.
func (s *settingsService) Save(ctx context.Context, gs *models.GuildSettings) error {
	unlock := s.locks.lock(gs.GuildID)
	defer unlock()
	return s.save(ctx, gs)
}

// save expects the guild lock to be held
func (s *settingsService) save(ctx context.Context, gs *models.GuildSettings) error {
	if gs.Transient() {
		log.WithField("guild_id", gs.GuildID).Debug("Skipping save of transient guild settings")
		return nil
	}

	data, err := gs.Encode()
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, gs.GuildID, data); err != nil {
		return fmt.Errorf("failed to save settings of guild %s: %w", gs.GuildID, err)
	}
	return nil
}

// SaveAll persists every cached guild, one after another
func (s *settingsService) SaveAll(ctx context.Context) error {
	s.mu.RLock()
	all := make([]*models.GuildSettings, 0, len(s.guilds))
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

// Definitions returns the registered setting definitions
func (s *settingsService) Definitions() []*models.SettingDefinition {
	return s.registry.Definitions()
}
