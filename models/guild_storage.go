package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"
	"unicode/utf8"
)

var (
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrItemNotFound       = errors.New("item not found")
	ErrInvalidStorageKey  = errors.New("invalid storage key")
)

// Default collections every guild storage starts with
const (
	CollectionUsers = "users"
	CollectionGuild = "guild"
)

// MaxItemNameLength bounds item keys
const MaxItemNameLength = 100

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// ValidCollectionName reports whether name can be used as a collection name
func ValidCollectionName(name string) bool {
	return collectionNamePattern.MatchString(name)
}

// ValidItemName reports whether name can be used as an item key
func ValidItemName(name string) bool {
	return name != "" && utf8.RuneCountInString(name) <= MaxItemNameLength
}

// GuildStorageDocument is the persisted shape of a guild's storage
type GuildStorageDocument struct {
	Collections map[string]CollectionDocument `json:"collections"`
	Size        int64                         `json:"size"`
}

// CollectionDocument is the persisted shape of one collection
type CollectionDocument struct {
	Items map[string]ItemDocument `json:"items"`
	Size  int64                   `json:"size"`
}

// ItemDocument is the persisted shape of one item. Times are Unix milliseconds.
type ItemDocument struct {
	Value    string `json:"value"`
	Created  int64  `json:"created"`
	Modified int64  `json:"modified"`
	Size     int64  `json:"size"`
}

// DecodeGuildStorageDocument parses a persisted storage document
func DecodeGuildStorageDocument(data []byte) (*GuildStorageDocument, error) {
	var doc GuildStorageDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode guild storage: %w", err)
	}
	return &doc, nil
}

// CollectionItem is one key/value entry of a collection
type CollectionItem struct {
	Name     string
	Value    string
	Created  time.Time
	Modified time.Time
}

// Size is the serialized byte length of the item's value and timestamps
func (i *CollectionItem) Size() int64 {
	data, err := json.Marshal(struct {
		Value    string `json:"value"`
		Created  int64  `json:"created"`
		Modified int64  `json:"modified"`
	}{i.Value, i.Created.UnixMilli(), i.Modified.UnixMilli()})
	if err != nil {
		return int64(len(i.Value))
	}
	return int64(len(data))
}

// StorageCollection is a named bucket of items
type StorageCollection struct {
	Name  string
	items map[string]*CollectionItem
}

// NewStorageCollection creates an empty collection
func NewStorageCollection(name string) *StorageCollection {
	return &StorageCollection{
		Name:  name,
		items: make(map[string]*CollectionItem),
	}
}

// Get returns an item by name
func (c *StorageCollection) Get(name string) (*CollectionItem, bool) {
	item, ok := c.items[name]
	return item, ok
}

// Set creates or updates an item. created is true when the item is new.
func (c *StorageCollection) Set(name, value string, now time.Time) (item *CollectionItem, created bool) {
	if existing, ok := c.items[name]; ok {
		existing.Value = value
		existing.Modified = now
		return existing, false
	}
	item = &CollectionItem{
		Name:     name,
		Value:    value,
		Created:  now,
		Modified: now,
	}
	c.items[name] = item
	return item, true
}

// Delete removes an item and returns it
func (c *StorageCollection) Delete(name string) (*CollectionItem, bool) {
	item, ok := c.items[name]
	if ok {
		delete(c.items, name)
	}
	return item, ok
}

// Items returns the items sorted by name
func (c *StorageCollection) Items() []*CollectionItem {
	out := make([]*CollectionItem, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of items
func (c *StorageCollection) Len() int {
	return len(c.items)
}

// Size sums the size of every item
func (c *StorageCollection) Size() int64 {
	var total int64
	for _, item := range c.items {
		total += item.Size()
	}
	return total
}

// GuildStorage holds the collections of one guild
type GuildStorage struct {
	GuildID     string
	collections map[string]*StorageCollection

	// transient is set when the backing document could not be read
	transient bool
}

// NewGuildStorage builds the aggregate for a guild from doc, which may be nil.
// The default collections always exist.
func NewGuildStorage(guildID string, doc *GuildStorageDocument) *GuildStorage {
	gs := &GuildStorage{
		GuildID:     guildID,
		collections: make(map[string]*StorageCollection),
	}

	if doc != nil {
		for name, cdoc := range doc.Collections {
			c := NewStorageCollection(name)
			for itemName, idoc := range cdoc.Items {
				modified := idoc.Modified
				if modified == 0 {
					modified = idoc.Created
				}
				c.items[itemName] = &CollectionItem{
					Name:     itemName,
					Value:    idoc.Value,
					Created:  time.UnixMilli(idoc.Created),
					Modified: time.UnixMilli(modified),
				}
			}
			gs.collections[name] = c
		}
	}

	for _, name := range []string{CollectionUsers, CollectionGuild} {
		if _, ok := gs.collections[name]; !ok {
			gs.collections[name] = NewStorageCollection(name)
		}
	}

	return gs
}

// Collection returns a collection by name
func (g *GuildStorage) Collection(name string) (*StorageCollection, bool) {
	c, ok := g.collections[name]
	return c, ok
}

// CreateCollection adds an empty collection
func (g *GuildStorage) CreateCollection(name string) (*StorageCollection, error) {
	if !ValidCollectionName(name) {
		return nil, fmt.Errorf("collection %q: %w", name, ErrInvalidStorageKey)
	}
	if _, ok := g.collections[name]; ok {
		return nil, fmt.Errorf("collection %q: %w", name, ErrCollectionExists)
	}
	c := NewStorageCollection(name)
	g.collections[name] = c
	return c, nil
}

// DeleteCollection removes a collection with all its items
func (g *GuildStorage) DeleteCollection(name string) (*StorageCollection, error) {
	c, ok := g.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, ErrCollectionNotFound)
	}
	delete(g.collections, name)
	return c, nil
}

// Collections returns the collections sorted by name
func (g *GuildStorage) Collections() []*StorageCollection {
	out := make([]*StorageCollection, 0, len(g.collections))
	for _, c := range g.collections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Size sums the size of every collection
func (g *GuildStorage) Size() int64 {
	var total int64
	for _, c := range g.collections {
		total += c.Size()
	}
	return total
}

// Transient reports whether saving is suppressed
func (g *GuildStorage) Transient() bool {
	return g.transient
}

// MarkTransient suppresses saving for this aggregate
func (g *GuildStorage) MarkTransient() {
	g.transient = true
}

// Document converts the aggregate into its persisted shape
func (g *GuildStorage) Document() *GuildStorageDocument {
	doc := &GuildStorageDocument{
		Collections: make(map[string]CollectionDocument, len(g.collections)),
	}
	for name, c := range g.collections {
		cdoc := CollectionDocument{Items: make(map[string]ItemDocument, len(c.items))}
		for itemName, item := range c.items {
			size := item.Size()
			cdoc.Items[itemName] = ItemDocument{
				Value:    item.Value,
				Created:  item.Created.UnixMilli(),
				Modified: item.Modified.UnixMilli(),
				Size:     size,
			}
			cdoc.Size += size
		}
		doc.Collections[name] = cdoc
		doc.Size += cdoc.Size
	}
	return doc
}

// Encode serializes the aggregate as JSON
func (g *GuildStorage) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(g.Document(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode guild storage: %w", err)
	}
	return data, nil
}
