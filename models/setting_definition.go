package models

import (
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// ErrUnknownSetting is returned when a setting name has no definition
var ErrUnknownSetting = errors.New("unknown setting")

// Setting names
const (
	SettingPrefix            = "Prefix"
	SettingLogChannel        = "LogChannel"
	SettingWelcomeMessage    = "WelcomeMessage"
	SettingCustomCommands    = "CustomCommands"
	SettingDeleteInvocations = "DeleteInvocations"
)

// SettingDefinition describes one configurable guild setting
type SettingDefinition struct {
	Name        string
	Description string
	Emoji       string
	Kind        SettingKind
	Permission  int64 // Discord permission bits required to change the setting
	Default     SettingValue
}

// Format renders a value of this setting for chat output
func (d *SettingDefinition) Format(v SettingValue) string {
	return d.Kind.Display(v)
}

// Validate reports whether raw is acceptable for this setting in the given guild
func (d *SettingDefinition) Validate(guild Guild, raw string) bool {
	return d.Kind.Validate(guild, raw)
}

// Parse converts raw into a typed value, failing if validation fails
func (d *SettingDefinition) Parse(guild Guild, raw string) (SettingValue, bool) {
	return d.Kind.Parse(guild, raw)
}

// SettingRegistry is the fixed set of definitions known to the process
type SettingRegistry struct {
	definitions []*SettingDefinition
	byName      map[string]*SettingDefinition
}

// NewSettingRegistry builds a registry, keeping declaration order
func NewSettingRegistry(definitions ...*SettingDefinition) *SettingRegistry {
	r := &SettingRegistry{
		definitions: make([]*SettingDefinition, 0, len(definitions)),
		byName:      make(map[string]*SettingDefinition, len(definitions)),
	}
	for _, d := range definitions {
		key := strings.ToLower(d.Name)
		if _, exists := r.byName[key]; exists {
			continue
		}
		r.definitions = append(r.definitions, d)
		r.byName[key] = d
	}
	return r
}

// Definitions returns every definition in declaration order
func (r *SettingRegistry) Definitions() []*SettingDefinition {
	out := make([]*SettingDefinition, len(r.definitions))
	copy(out, r.definitions)
	return out
}

// Lookup finds a definition by name, ignoring case
func (r *SettingRegistry) Lookup(name string) (*SettingDefinition, bool) {
	d, ok := r.byName[strings.ToLower(name)]
	return d, ok
}

// DefaultSettingDefinitions returns the settings every guild carries
func DefaultSettingDefinitions(defaultPrefix string) *SettingRegistry {
	if !ValidPrefix(defaultPrefix) {
		defaultPrefix = "."
	}

	return NewSettingRegistry(
		&SettingDefinition{
			Name:        SettingPrefix,
			Description: "Prefix for message commands",
			Emoji:       "❗",
			Kind:        KindPrefix,
			Permission:  discordgo.PermissionManageServer,
			Default:     PrefixValue(defaultPrefix),
		},
		&SettingDefinition{
			Name:        SettingLogChannel,
			Description: "Channel that receives setting changes and welcome messages",
			Emoji:       "📜",
			Kind:        KindChannel,
			Permission:  discordgo.PermissionManageServer,
			Default:     ChannelValue(""),
		},
		&SettingDefinition{
			Name:        SettingWelcomeMessage,
			Description: "Message posted when a member joins ({user} is replaced with a mention)",
			Emoji:       "👋",
			Kind:        KindText,
			Permission:  discordgo.PermissionManageServer,
			Default:     TextValue(""),
		},
		&SettingDefinition{
			Name:        SettingCustomCommands,
			Description: "Whether message commands are answered",
			Emoji:       "⌨️",
			Kind:        KindBoolean,
			Permission:  discordgo.PermissionManageServer,
			Default:     BoolValue(true),
		},
		&SettingDefinition{
			Name:        SettingDeleteInvocations,
			Description: "Delete the invoking message after a message command runs",
			Emoji:       "🧹",
			Kind:        KindBoolean,
			Permission:  discordgo.PermissionManageMessages,
			Default:     BoolValue(false),
		},
	)
}
