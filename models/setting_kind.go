package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalidSettingValue is returned when a raw value is rejected by a setting's kind
var ErrInvalidSettingValue = errors.New("invalid setting value")

// SettingKind is the closed set of value types a guild setting can hold
type SettingKind string

const (
	KindPrefix  SettingKind = "prefix"
	KindBoolean SettingKind = "boolean"
	KindChannel SettingKind = "channel"
	KindText    SettingKind = "text"
)

// MaxTextSettingLength bounds free-form text settings
const MaxTextSettingLength = 1000

var (
	prefixPattern    = regexp.MustCompile(`^\S{1,5}$`)
	channelPattern   = regexp.MustCompile(`^(?:<#(\d{1,20})>|(\d{1,20}))$`)
	snowflakePattern = regexp.MustCompile(`^\d{1,20}$`)
)

var booleanWords = map[string]bool{
	"true":     true,
	"yes":      true,
	"on":       true,
	"enable":   true,
	"enabled":  true,
	"1":        true,
	"false":    false,
	"no":       false,
	"off":      false,
	"disable":  false,
	"disabled": false,
	"0":        false,
}

// clearWords reset an optional setting to its unset value
var clearWords = map[string]struct{}{
	"none":  {},
	"off":   {},
	"clear": {},
}

// SettingValue is a typed setting value. Str carries prefix, channel and text values;
// Flag carries boolean values.
type SettingValue struct {
	Kind SettingKind
	Str  string
	Flag bool
}

// PrefixValue builds a prefix value
func PrefixValue(prefix string) SettingValue {
	return SettingValue{Kind: KindPrefix, Str: prefix}
}

// BoolValue builds a boolean value
func BoolValue(flag bool) SettingValue {
	return SettingValue{Kind: KindBoolean, Flag: flag}
}

// ChannelValue builds a channel value; an empty ID means no channel
func ChannelValue(channelID string) SettingValue {
	return SettingValue{Kind: KindChannel, Str: channelID}
}

// TextValue builds a text value; an empty string means unset
func TextValue(text string) SettingValue {
	return SettingValue{Kind: KindText, Str: text}
}

// IsSet reports whether an optional value holds something
func (v SettingValue) IsSet() bool {
	if v.Kind == KindBoolean {
		return v.Flag
	}
	return v.Str != ""
}

// String renders the value in its persisted form
func (v SettingValue) String() string {
	if v.Kind == KindBoolean {
		if v.Flag {
			return "true"
		}
		return "false"
	}
	return v.Str
}

// MarshalJSON writes booleans as JSON booleans and everything else as strings
func (v SettingValue) MarshalJSON() ([]byte, error) {
	if v.Kind == KindBoolean {
		return json.Marshal(v.Flag)
	}
	return json.Marshal(v.Str)
}

// Valid reports whether k is one of the known kinds
func (k SettingKind) Valid() bool {
	switch k {
	case KindPrefix, KindBoolean, KindChannel, KindText:
		return true
	}
	return false
}

// Validate reports whether raw is acceptable for this kind in the given guild
func (k SettingKind) Validate(guild Guild, raw string) bool {
	_, ok := k.Parse(guild, raw)
	return ok
}

// Parse converts a raw user string into a typed value.
// Channel values need the guild to confirm the channel exists.
func (k SettingKind) Parse(guild Guild, raw string) (SettingValue, bool) {
	raw = strings.TrimSpace(raw)

	switch k {
	case KindPrefix:
		if !prefixPattern.MatchString(raw) {
			return SettingValue{}, false
		}
		return PrefixValue(raw), true

	case KindBoolean:
		flag, ok := booleanWords[strings.ToLower(raw)]
		if !ok {
			return SettingValue{}, false
		}
		return BoolValue(flag), true

	case KindChannel:
		if _, ok := clearWords[strings.ToLower(raw)]; ok {
			return ChannelValue(""), true
		}
		m := channelPattern.FindStringSubmatch(raw)
		if m == nil || guild == nil {
			return SettingValue{}, false
		}
		channelID := m[1]
		if channelID == "" {
			channelID = m[2]
		}
		if !guild.HasTextChannel(channelID) {
			return SettingValue{}, false
		}
		return ChannelValue(channelID), true

	case KindText:
		if _, ok := clearWords[strings.ToLower(raw)]; ok {
			return TextValue(""), true
		}
		if raw == "" || utf8.RuneCountInString(raw) > MaxTextSettingLength {
			return SettingValue{}, false
		}
		return TextValue(raw), true
	}

	return SettingValue{}, false
}

// ValidPrefix reports whether s can be used as a command prefix
func ValidPrefix(s string) bool {
	return prefixPattern.MatchString(s)
}

// Display renders a value for chat output
func (k SettingKind) Display(v SettingValue) string {
	switch k {
	case KindPrefix:
		return "`" + v.Str + "`"
	case KindBoolean:
		if v.Flag {
			return "Enabled"
		}
		return "Disabled"
	case KindChannel:
		if v.Str == "" {
			return "None"
		}
		return "<#" + v.Str + ">"
	case KindText:
		if v.Str == "" {
			return "None"
		}
		return v.Str
	}
	return v.String()
}

// Decode reads a persisted JSON value of this kind
func (k SettingKind) Decode(raw json.RawMessage) (SettingValue, error) {
	switch k {
	case KindBoolean:
		var flag bool
		if err := json.Unmarshal(raw, &flag); err != nil {
			return SettingValue{}, fmt.Errorf("failed to decode %s value: %w", k, err)
		}
		return BoolValue(flag), nil

	case KindPrefix, KindChannel, KindText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return SettingValue{}, fmt.Errorf("failed to decode %s value: %w", k, err)
		}
		if k == KindPrefix && !prefixPattern.MatchString(s) {
			return SettingValue{}, fmt.Errorf("stored prefix %q: %w", s, ErrInvalidSettingValue)
		}
		// an empty channel is the unset value
		if k == KindChannel && s != "" && !snowflakePattern.MatchString(s) {
			return SettingValue{}, fmt.Errorf("stored channel %q: %w", s, ErrInvalidSettingValue)
		}
		return SettingValue{Kind: k, Str: s}, nil
	}

	return SettingValue{}, fmt.Errorf("unknown setting kind %q", k)
}
