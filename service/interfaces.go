package service

import (
	"context"
	"errors"

	"swagclan/models"
)

var (
	// ErrDocumentNotFound is returned by a DocumentStore when a guild has no document yet
	ErrDocumentNotFound = errors.New("document not found")

	// ErrCorruptDocument wraps any failure to read an existing document
	ErrCorruptDocument = errors.New("document could not be read")

	// ErrStorageQuotaExceeded is returned when a write would grow a guild's storage past its quota
	ErrStorageQuotaExceeded = errors.New("storage quota exceeded")
)

// DocumentStore persists one JSON document per guild
type DocumentStore interface {
	// Load returns the raw document of a guild, or ErrDocumentNotFound
	Load(ctx context.Context, guildID string) ([]byte, error)

	// Save replaces the document of a guild
	Save(ctx context.Context, guildID string, data []byte) error

	// List returns the IDs of every guild with a document
	List(ctx context.Context) ([]string, error)
}

// SettingsService manages typed guild settings and their change history
type SettingsService interface {
	// GetSettings returns the cached settings of a guild, loading or creating them on first use
	GetSettings(ctx context.Context, guildID string) (*models.GuildSettings, error)

	// LoadSettings reads a guild's settings from the store. A missing document yields
	// ErrDocumentNotFound; an unreadable one yields transient defaults and ErrCorruptDocument.
	// A guild that is already cached keeps its cached settings.
	LoadSettings(ctx context.Context, guildID string) (*models.GuildSettings, error)

	// LoadAll loads every guild that has a stored document
	LoadAll(ctx context.Context) ([]*models.GuildSettings, error)

	// Set validates and applies a raw value, then saves the guild
	Set(ctx context.Context, guildID, name, raw, actorID string) (*models.GuildSettingChange, error)

	// History returns the changes of one setting, oldest first
	History(ctx context.Context, guildID, name string) ([]*models.GuildSettingChange, error)

	// Save persists one guild unless it is transient
	Save(ctx context.Context, settings *models.GuildSettings) error

	// SaveAll persists every cached guild
	SaveAll(ctx context.Context) error

	// Definitions returns the registered setting definitions
	Definitions() []*models.SettingDefinition
}

// StorageService manages per-guild key/value collections
type StorageService interface {
	// GetStorage returns the cached storage of a guild, loading or creating it on first use
	GetStorage(ctx context.Context, guildID string) (*models.GuildStorage, error)

	// LoadStorage reads a guild's storage from the store, with the same outcomes as LoadSettings
	LoadStorage(ctx context.Context, guildID string) (*models.GuildStorage, error)

	// LoadAll loads every guild that has a stored document
	LoadAll(ctx context.Context) ([]*models.GuildStorage, error)

	// GetItem returns one item of a collection
	GetItem(ctx context.Context, guildID, collection, name string) (*models.CollectionItem, error)

	// SetItem creates or updates an item and saves the guild
	SetItem(ctx context.Context, guildID, collection, name, value string) (*models.CollectionItem, error)

	// DeleteItem removes an item and saves the guild
	DeleteItem(ctx context.Context, guildID, collection, name string) error

	// CreateCollection adds an empty collection and saves the guild
	CreateCollection(ctx context.Context, guildID, collection string) error

	// DeleteCollection removes a collection and saves the guild
	DeleteCollection(ctx context.Context, guildID, collection string) error

	// Usage reports item counts and byte sizes per collection
	Usage(ctx context.Context, guildID string) (*StorageUsage, error)

	// Save persists one guild unless it is transient
	Save(ctx context.Context, storage *models.GuildStorage) error

	// SaveAll persists every cached guild
	SaveAll(ctx context.Context) error
}

// StorageUsage summarizes the size of one guild's storage
type StorageUsage struct {
	GuildID     string
	Collections []CollectionUsage
	Size        int64
	Quota       int64 // zero when uncapped
}

// CollectionUsage summarizes one collection
type CollectionUsage struct {
	Name  string
	Items int
	Size  int64
}
