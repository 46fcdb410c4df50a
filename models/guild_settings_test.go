package models

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prefixOnlyRegistry() *SettingRegistry {
	return NewSettingRegistry(&SettingDefinition{
		Name:    SettingPrefix,
		Kind:    KindPrefix,
		Default: PrefixValue("."),
	})
}

func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func TestGuildSettingsHistory_Mark(t *testing.T) {
	t.Parallel()

	h := NewGuildSettingsHistory()

	same := h.Mark(SettingPrefix, PrefixValue("."), PrefixValue("."), "")
	require.NotNil(t, same)
	assert.False(t, same.Changed())
	assert.Equal(t, 0, h.Len())

	changed := h.Mark(SettingPrefix, PrefixValue("."), PrefixValue("!"), "7")
	assert.True(t, changed.Changed())
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, "7", h.Entries()[0].ActorID)
}

func TestGuildSettingsHistory_ForSortsByTimestamp(t *testing.T) {
	t.Parallel()

	h := NewGuildSettingsHistory()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h.restore(&GuildSettingChange{Timestamp: base.Add(3 * time.Minute), Setting: SettingPrefix, Before: PrefixValue("b"), After: PrefixValue("c")})
	h.restore(&GuildSettingChange{Timestamp: base.Add(1 * time.Minute), Setting: SettingPrefix, Before: PrefixValue("."), After: PrefixValue("a")})
	h.restore(&GuildSettingChange{Timestamp: base.Add(2 * time.Minute), Setting: SettingLogChannel, Before: ChannelValue(""), After: ChannelValue("1")})
	h.restore(&GuildSettingChange{Timestamp: base.Add(2 * time.Minute), Setting: SettingPrefix, Before: PrefixValue("a"), After: PrefixValue("b")})

	got := h.For(SettingPrefix)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.Before(got[i-1].Timestamp))
	}
	assert.Equal(t, "a", got[0].After.Str)
	assert.Equal(t, "c", got[2].After.Str)

	// Mark order is untouched
	assert.Equal(t, "c", h.Entries()[0].After.Str)
}

func TestGuildSetting_Set(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	resolver := &stubResolver{guilds: map[string]*stubGuild{"42": newStubGuild("42")}}
	gs := NewGuildSettings("42", prefixOnlyRegistry(), nil, resolver)
	gs.History.SetClock(fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	prefix, ok := gs.Get(SettingPrefix)
	require.True(t, ok)
	assert.Equal(t, ".", prefix.Value().Str)
	assert.True(t, prefix.IsDefault())

	change, err := prefix.Set(ctx, "!", "")
	require.NoError(t, err)
	assert.Equal(t, SettingPrefix, change.Setting)
	assert.Equal(t, PrefixValue("."), change.Before)
	assert.Equal(t, PrefixValue("!"), change.After)
	assert.Equal(t, 1, gs.History.Len())

	_, err = prefix.Set(ctx, ".", "")
	require.NoError(t, err)
	_, err = prefix.Set(ctx, "!", "")
	require.NoError(t, err)

	entries := gs.History.For(SettingPrefix)
	require.Len(t, entries, 3)
	assert.Equal(t, "!", entries[2].After.Str)
	assert.NotSame(t, entries[0], entries[2])

	// Setting the current value returns a record but appends nothing
	noop, err := prefix.Set(ctx, "!", "")
	require.NoError(t, err)
	assert.False(t, noop.Changed())
	assert.Equal(t, 3, gs.History.Len())
}

func TestGuildSetting_SetFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	unresolved := NewGuildSettings("404", prefixOnlyRegistry(), nil, &stubResolver{})
	prefix, _ := unresolved.Get(SettingPrefix)
	_, err := prefix.Set(ctx, "!", "")
	assert.ErrorIs(t, err, ErrGuildUnresolved)

	noResolver := NewGuildSettings("42", prefixOnlyRegistry(), nil, nil)
	prefix, _ = noResolver.Get(SettingPrefix)
	_, err = prefix.Set(ctx, "!", "")
	assert.ErrorIs(t, err, ErrGuildUnresolved)

	resolver := &stubResolver{guilds: map[string]*stubGuild{"42": newStubGuild("42")}}
	gs := NewGuildSettings("42", prefixOnlyRegistry(), nil, resolver)
	prefix, _ = gs.Get(SettingPrefix)
	_, err = prefix.Set(ctx, "too long", "")
	assert.ErrorIs(t, err, ErrInvalidSettingValue)
	assert.Equal(t, ".", prefix.Value().Str)
	assert.Equal(t, 0, gs.History.Len())
}

func TestNewGuildSettings_DropsUnknownKeys(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"settings": {"Prefix": "!", "Sweeper": true},
		"history": [
			{"timestamp": 1000, "setting": "Prefix", "before": ".", "after": "!"},
			{"timestamp": 2000, "setting": "Sweeper", "before": false, "after": true}
		]
	}`)
	doc, err := DecodeGuildSettingsDocument(data)
	require.NoError(t, err)

	gs := NewGuildSettings("42", prefixOnlyRegistry(), doc, nil)
	assert.Equal(t, 1, gs.Len())
	assert.Equal(t, PrefixValue("!"), gs.Value(SettingPrefix))
	_, ok := gs.Get("Sweeper")
	assert.False(t, ok)
	require.Equal(t, 1, gs.History.Len())
	assert.Equal(t, int64(1000), gs.History.Entries()[0].Timestamp.UnixMilli())

	out, err := gs.Document()
	require.NoError(t, err)
	assert.NotContains(t, out.Settings, "Sweeper")
}

func TestNewGuildSettings_UndecodableValueFallsBackToDefault(t *testing.T) {
	t.Parallel()

	doc, err := DecodeGuildSettingsDocument([]byte(`{"settings": {"Prefix": 12}, "history": []}`))
	require.NoError(t, err)

	gs := NewGuildSettings("42", prefixOnlyRegistry(), doc, nil)
	assert.Equal(t, PrefixValue("."), gs.Value(SettingPrefix))
}

func TestGuildSettings_Encode(t *testing.T) {
	t.Parallel()

	gs := NewGuildSettings("42", prefixOnlyRegistry(), nil, nil)
	data, err := gs.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"settings":{"Prefix":"."},"history":[]}`, string(data))

	gs.History.Mark(SettingPrefix, PrefixValue("."), PrefixValue("!"), "")
	data, err = gs.Encode()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	decoded, err := DecodeGuildSettingsDocument(data)
	require.NoError(t, err)
	require.Len(t, decoded.History, 1)
	assert.Equal(t, "Prefix", decoded.History[0].Setting)
	assert.JSONEq(t, `"."`, string(decoded.History[0].Before))
	assert.JSONEq(t, `"!"`, string(decoded.History[0].After))
}

func TestGuildSettings_DefaultsMatchDefinitions(t *testing.T) {
	t.Parallel()

	registry := DefaultSettingDefinitions(".")
	gs := NewGuildSettings("42", registry, nil, nil)
	require.Equal(t, len(registry.Definitions()), gs.Len())
	for _, s := range gs.Settings() {
		assert.True(t, s.IsDefault(), s.Name)
	}
	assert.False(t, gs.Transient())
	gs.MarkTransient()
	assert.True(t, gs.Transient())
}
