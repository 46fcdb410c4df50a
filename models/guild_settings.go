package models

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// GuildSettingsDocument is the persisted shape of a guild's settings
type GuildSettingsDocument struct {
	Settings map[string]json.RawMessage `json:"settings"`
	History  []SettingChangeDocument    `json:"history"`
}

// SettingChangeDocument is the persisted shape of one history entry
type SettingChangeDocument struct {
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
	Setting   string          `json:"setting"`
	Before    json.RawMessage `json:"before"`
	After     json.RawMessage `json:"after"`
	Actor     string          `json:"actor,omitempty"`
}

// DecodeGuildSettingsDocument parses a persisted settings document
func DecodeGuildSettingsDocument(data []byte) (*GuildSettingsDocument, error) {
	var doc GuildSettingsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode guild settings: %w", err)
	}
	return &doc, nil
}

// GuildSetting is the live value of one setting in one guild
type GuildSetting struct {
	Name       string
	Definition *SettingDefinition
	value      SettingValue
	owner      *GuildSettings
}

// Value returns the current typed value
func (s *GuildSetting) Value() SettingValue {
	s.owner.mu.RLock()
	defer s.owner.mu.RUnlock()
	return s.value
}

// Display renders the current value for chat output
func (s *GuildSetting) Display() string {
	return s.Definition.Format(s.Value())
}

// IsDefault reports whether the setting still holds its default
func (s *GuildSetting) IsDefault() bool {
	return s.Value() == s.Definition.Default
}

// Set validates raw against the owning guild, stores the parsed value and
// marks the change in the guild history. Persisting is up to the caller.
func (s *GuildSetting) Set(ctx context.Context, raw string, actorID string) (*GuildSettingChange, error) {
	if s.owner.resolver == nil {
		return nil, fmt.Errorf("guild %s: %w", s.owner.GuildID, ErrGuildUnresolved)
	}
	guild, err := s.owner.resolver.ResolveGuild(ctx, s.owner.GuildID)
	if err != nil || guild == nil {
		return nil, fmt.Errorf("guild %s: %w", s.owner.GuildID, ErrGuildUnresolved)
	}

	parsed, ok := s.Definition.Parse(guild, raw)
	if !ok {
		return nil, fmt.Errorf("%q for %s: %w", raw, s.Name, ErrInvalidSettingValue)
	}

	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()

	before := s.value
	s.value = parsed
	return s.owner.History.Mark(s.Name, before, parsed, actorID), nil
}

// GuildSettings holds every setting of one guild together with its history
type GuildSettings struct {
	mu       sync.RWMutex
	GuildID  string
	History  *GuildSettingsHistory
	registry *SettingRegistry
	settings map[string]*GuildSetting
	resolver GuildResolver

	// transient is set when the backing document could not be read, so saving
	// must not overwrite it with defaults
	transient bool
}

// NewGuildSettings builds the aggregate for a guild. Every registered definition
// gets a setting, taken from doc when present and decodable, else the default.
// Stored settings and history entries without a definition are dropped.
func NewGuildSettings(guildID string, registry *SettingRegistry, doc *GuildSettingsDocument, resolver GuildResolver) *GuildSettings {
	gs := &GuildSettings{
		GuildID:  guildID,
		History:  NewGuildSettingsHistory(),
		registry: registry,
		settings: make(map[string]*GuildSetting),
		resolver: resolver,
	}

	stored := make(map[string]json.RawMessage)
	if doc != nil {
		for name, raw := range doc.Settings {
			if def, ok := registry.Lookup(name); ok {
				stored[def.Name] = raw
			}
		}
	}

	for _, def := range registry.Definitions() {
		value := def.Default
		if raw, ok := stored[def.Name]; ok {
			if decoded, err := def.Kind.Decode(raw); err == nil {
				value = decoded
			}
		}
		gs.settings[def.Name] = &GuildSetting{
			Name:       def.Name,
			Definition: def,
			value:      value,
			owner:      gs,
		}
	}

	if doc != nil {
		for _, entry := range doc.History {
			def, ok := registry.Lookup(entry.Setting)
			if !ok {
				continue
			}
			before, err := def.Kind.Decode(entry.Before)
			if err != nil {
				continue
			}
			after, err := def.Kind.Decode(entry.After)
			if err != nil {
				continue
			}
			gs.History.restore(&GuildSettingChange{
				Timestamp: time.UnixMilli(entry.Timestamp),
				Setting:   def.Name,
				Before:    before,
				After:     after,
				ActorID:   entry.Actor,
			})
		}
	}

	return gs
}

// Get returns the setting with the given name, ignoring case
func (g *GuildSettings) Get(name string) (*GuildSetting, bool) {
	def, ok := g.registry.Lookup(name)
	if !ok {
		return nil, false
	}
	s, ok := g.settings[def.Name]
	return s, ok
}

// Value returns the current value of a setting, or the zero value if unknown
func (g *GuildSettings) Value(name string) SettingValue {
	if s, ok := g.Get(name); ok {
		return s.Value()
	}
	return SettingValue{}
}

// Settings returns all settings in definition order
func (g *GuildSettings) Settings() []*GuildSetting {
	defs := g.registry.Definitions()
	out := make([]*GuildSetting, 0, len(defs))
	for _, def := range defs {
		if s, ok := g.settings[def.Name]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of settings held
func (g *GuildSettings) Len() int {
	return len(g.settings)
}

// Transient reports whether saving is suppressed
func (g *GuildSettings) Transient() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.transient
}

// MarkTransient suppresses saving for this aggregate
func (g *GuildSettings) MarkTransient() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transient = true
}

// Document converts the aggregate into its persisted shape
func (g *GuildSettings) Document() (*GuildSettingsDocument, error) {
	// Holding the aggregate lock keeps values and history consistent with each other
	g.mu.RLock()
	defer g.mu.RUnlock()

	doc := &GuildSettingsDocument{
		Settings: make(map[string]json.RawMessage, len(g.settings)),
		History:  make([]SettingChangeDocument, 0, g.History.Len()),
	}

	for name, s := range g.settings {
		raw, err := json.Marshal(s.value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode setting %s: %w", name, err)
		}
		doc.Settings[name] = raw
	}

	for _, e := range g.History.Entries() {
		before, err := json.Marshal(e.Before)
		if err != nil {
			return nil, fmt.Errorf("failed to encode history of %s: %w", e.Setting, err)
		}
		after, err := json.Marshal(e.After)
		if err != nil {
			return nil, fmt.Errorf("failed to encode history of %s: %w", e.Setting, err)
		}
		doc.History = append(doc.History, SettingChangeDocument{
			Timestamp: e.Timestamp.UnixMilli(),
			Setting:   e.Setting,
			Before:    before,
			After:     after,
			Actor:     e.ActorID,
		})
	}

	return doc, nil
}

// Encode serializes the aggregate as JSON
func (g *GuildSettings) Encode() ([]byte, error) {
	doc, err := g.Document()
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode guild settings: %w", err)
	}
	return data, nil
}
