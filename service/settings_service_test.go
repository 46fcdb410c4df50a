package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"swagclan/events"
	"swagclan/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func prefixRegistry() *models.SettingRegistry {
	return models.NewSettingRegistry(&models.SettingDefinition{
		Name:    models.SettingPrefix,
		Kind:    models.KindPrefix,
		Default: models.PrefixValue("."),
	})
}

func tickingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func notFound(guildID string) error {
	return fmt.Errorf("guild %s: %w", guildID, ErrDocumentNotFound)
}

func emitted[T events.Event](p *MockPublisher) []T {
	var out []T
	for _, call := range p.Calls {
		if call.Method != "Emit" {
			continue
		}
		if e, ok := call.Arguments.Get(1).(T); ok {
			out = append(out, e)
		}
	}
	return out
}

func resolverFor(guildIDs ...string) *MockGuildResolver {
	resolver := new(MockGuildResolver)
	for _, id := range guildIDs {
		guild := new(MockGuild)
		guild.On("ID").Return(id).Maybe()
		guild.On("HasTextChannel", mock.Anything).Return(true).Maybe()
		resolver.On("ResolveGuild", mock.Anything, id).Return(guild, nil).Maybe()
	}
	return resolver
}

func TestSettingsService_GetSettings_CreatesDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := new(MockDocumentStore)
	publisher := new(MockPublisher)

	var saved []byte
	store.On("Load", mock.Anything, "42").Return(nil, notFound("42")).Once()
	store.On("Save", mock.Anything, "42", mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(2).([]byte)
	}).Return(nil).Once()
	publisher.On("Emit", mock.Anything, events.SettingsLoadedEvent{GuildID: "42", Created: true}).Once()

	svc := NewSettingsService(store, prefixRegistry(), nil, publisher)

	gs, err := svc.GetSettings(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, ".", gs.Value(models.SettingPrefix).Str)
	for _, s := range gs.Settings() {
		assert.True(t, s.IsDefault(), s.Name)
	}
	assert.JSONEq(t, `{"settings":{"Prefix":"."},"history":[]}`, string(saved))

	again, err := svc.GetSettings(ctx, "42")
	require.NoError(t, err)
	assert.Same(t, gs, again)

	store.AssertNumberOfCalls(t, "Load", 1)
	store.AssertNumberOfCalls(t, "Save", 1)
	publisher.AssertExpectations(t)
}

func TestSettingsService_GetSettings_DefaultSaveFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := new(MockDocumentStore)
	store.On("Load", mock.Anything, "42").Return(nil, notFound("42"))
	store.On("Save", mock.Anything, "42", mock.Anything).Return(errors.New("disk full")).Once()
	store.On("Save", mock.Anything, "42", mock.Anything).Return(nil).Once()

	svc := NewSettingsService(store, prefixRegistry(), nil, nil)

	_, err := svc.GetSettings(ctx, "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	// Nothing was cached, so the next call retries
	gs, err := svc.GetSettings(ctx, "42")
	require.NoError(t, err)
	assert.NotNil(t, gs)
	store.AssertNumberOfCalls(t, "Load", 2)
}

func TestSettingsService_GetSettings_CorruptDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{name: "invalid json", data: []byte(`{"settings": {`)},
		{name: "read failure", err: errors.New("permission denied")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			store := new(MockDocumentStore)
			publisher := new(MockPublisher)
			if tt.err != nil {
				store.On("Load", mock.Anything, "42").Return(nil, tt.err)
			} else {
				store.On("Load", mock.Anything, "42").Return(tt.data, nil)
			}
			publisher.On("Emit", mock.Anything, mock.Anything)

			svc := NewSettingsService(store, prefixRegistry(), nil, publisher)

			gs, err := svc.GetSettings(ctx, "42")
			require.NoError(t, err)
			assert.True(t, gs.Transient())
			assert.Equal(t, ".", gs.Value(models.SettingPrefix).Str)

			failures := emitted[events.SettingsLoadFailedEvent](publisher)
			require.Len(t, failures, 1)
			assert.Equal(t, "42", failures[0].GuildID)
			assert.ErrorIs(t, failures[0].Err, ErrCorruptDocument)

			// Not cached: the store is read again
			second, err := svc.GetSettings(ctx, "42")
			require.NoError(t, err)
			assert.NotSame(t, gs, second)
			store.AssertNumberOfCalls(t, "Load", 2)

			loaded, err := svc.LoadSettings(ctx, "42")
			assert.ErrorIs(t, err, ErrCorruptDocument)
			require.NotNil(t, loaded)
			assert.True(t, loaded.Transient())

			require.NoError(t, svc.Save(ctx, gs))
			require.NoError(t, svc.SaveAll(ctx))
			store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, emitted[events.SettingsLoadedEvent](publisher))
		})
	}
}

func TestSettingsService_GetSettings_SingleFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := new(MockDocumentStore)
	release := make(chan struct{})
	store.On("Load", mock.Anything, "42").Run(func(mock.Arguments) {
		<-release
	}).Return(nil, notFound("42"))
	store.On("Save", mock.Anything, "42", mock.Anything).Return(nil)

	svc := NewSettingsService(store, prefixRegistry(), nil, nil)

	const callers = 16
	results := make([]*models.GuildSettings, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			gs, err := svc.GetSettings(ctx, "42")
			assert.NoError(t, err)
			results[i] = gs
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, gs := range results {
		assert.Same(t, results[0], gs)
	}
	store.AssertNumberOfCalls(t, "Load", 1)
	store.AssertNumberOfCalls(t, "Save", 1)
}

func TestSettingsService_Set(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := new(MockDocumentStore)
	publisher := new(MockPublisher)
	store.On("Load", mock.Anything, "42").Return([]byte(`{"settings":{"Prefix":"."},"history":[]}`), nil)
	store.On("Save", mock.Anything, "42", mock.Anything).Return(nil)
	publisher.On("Emit", mock.Anything, mock.Anything)

	svc := NewSettingsService(store, prefixRegistry(), resolverFor("42"), publisher, WithClock(tickingClock()))

	change, err := svc.Set(ctx, "42", "prefix", "!", "7")
	require.NoError(t, err)
	assert.Equal(t, models.SettingPrefix, change.Setting)
	assert.Equal(t, ".", change.Before.Str)
	assert.Equal(t, "!", change.After.Str)
	assert.Equal(t, "7", change.ActorID)

	_, err = svc.Set(ctx, "42", models.SettingPrefix, ".", "7")
	require.NoError(t, err)
	_, err = svc.Set(ctx, "42", models.SettingPrefix, "!", "7")
	require.NoError(t, err)

	// Same value again: no history, no save, no event
	noop, err := svc.Set(ctx, "42", models.SettingPrefix, "!", "7")
	require.NoError(t, err)
	assert.False(t, noop.Changed())

	history, err := svc.History(ctx, "42", models.SettingPrefix)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []string{"!", ".", "!"}, []string{history[0].After.Str, history[1].After.Str, history[2].After.Str})
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].Timestamp.After(history[i-1].Timestamp))
	}

	store.AssertNumberOfCalls(t, "Save", 3)
	changes := emitted[events.SettingChangedEvent](publisher)
	require.Len(t, changes, 3)
	assert.Equal(t, "42", changes[0].GuildID)
	assert.Equal(t, models.SettingPrefix, changes[0].Definition.Name)
}

func TestSettingsService_SetFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := new(MockDocumentStore)
	store.On("Load", mock.Anything, "42").Return([]byte(`{"settings":{},"history":[]}`), nil)
	store.On("Load", mock.Anything, "404").Return([]byte(`{"settings":{},"history":[]}`), nil)

	resolver := resolverFor("42")
	resolver.On("ResolveGuild", mock.Anything, "404").Return(nil, errors.New("unknown guild"))

	svc := NewSettingsService(store, prefixRegistry(), resolver, nil)

	_, err := svc.Set(ctx, "42", "Sweeper", "on", "")
	assert.ErrorIs(t, err, models.ErrUnknownSetting)

	_, err = svc.Set(ctx, "42", models.SettingPrefix, "waytoolong", "")
	assert.ErrorIs(t, err, models.ErrInvalidSettingValue)

	_, err = svc.Set(ctx, "404", models.SettingPrefix, "!", "")
	assert.ErrorIs(t, err, models.ErrGuildUnresolved)

	_, err = svc.History(ctx, "42", "Sweeper")
	assert.ErrorIs(t, err, models.ErrUnknownSetting)

	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettingsService_SetSaveFailureDropsEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := new(MockDocumentStore)
	publisher := new(MockPublisher)
	store.On("Load", mock.Anything, "42").Return([]byte(`{"settings":{},"history":[]}`), nil)
	store.On("Save", mock.Anything, "42", mock.Anything).Return(errors.New("disk full"))
	publisher.On("Emit", mock.Anything, mock.Anything)

	svc := NewSettingsService(store, prefixRegistry(), resolverFor("42"), publisher)

	_, err := svc.Set(ctx, "42", models.SettingPrefix, "!", "")
	require.Error(t, err)
	assert.Empty(t, emitted[events.SettingChangedEvent](publisher))
}

func TestSettingsService_SetOnTransientSettings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := new(MockDocumentStore)
	store.On("Load", mock.Anything, "42").Return([]byte(`garbage`), nil)

	svc := NewSettingsService(store, prefixRegistry(), resolverFor("42"), nil)

	_, err := svc.Set(ctx, "42", models.SettingPrefix, "!", "")
	assert.ErrorIs(t, err, ErrCorruptDocument)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettingsService_LoadAllAndSaveAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := new(MockDocumentStore)
	publisher := new(MockPublisher)
	store.On("List", mock.Anything).Return([]string{"1", "2", "3"}, nil)
	store.On("Load", mock.Anything, "1").Return([]byte(`{"settings":{"Prefix":"!"},"history":[]}`), nil).Once()
	store.On("Load", mock.Anything, "2").Return([]byte(`{"settings":{"Prefix":"$"},"history":[]}`), nil).Once()
	store.On("Load", mock.Anything, "3").Return([]byte(`{`), nil).Once()
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	publisher.On("Emit", mock.Anything, mock.Anything)

	svc := NewSettingsService(store, prefixRegistry(), nil, publisher)

	loaded, err := svc.LoadAll(ctx)
	assert.ErrorIs(t, err, ErrCorruptDocument)
	require.Len(t, loaded, 2)
	assert.Len(t, emitted[events.SettingsLoadedEvent](publisher), 2)
	assert.Len(t, emitted[events.SettingsLoadFailedEvent](publisher), 1)

	// Loaded guilds are cached
	gs, err := svc.GetSettings(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "$", gs.Value(models.SettingPrefix).Str)

	require.NoError(t, svc.SaveAll(ctx))
	store.AssertNumberOfCalls(t, "Save", 2)
	store.AssertCalled(t, "Save", mock.Anything, "1", mock.Anything)
	store.AssertCalled(t, "Save", mock.Anything, "2", mock.Anything)
}

func TestSettingsService_LoadSettingsKeepsCachedCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := new(MockDocumentStore)
	store.On("Load", mock.Anything, "42").Return([]byte(`{"settings":{"Prefix":"."},"history":[]}`), nil)
	store.On("Save", mock.Anything, "42", mock.Anything).Return(errors.New("disk full"))

	svc := NewSettingsService(store, prefixRegistry(), resolverFor("42"), nil)

	gs, err := svc.GetSettings(ctx, "42")
	require.NoError(t, err)

	// The write stays in memory after the failed save
	_, err = svc.Set(ctx, "42", models.SettingPrefix, "!", "7")
	require.Error(t, err)
	assert.Equal(t, "!", gs.Value(models.SettingPrefix).Str)

	reloaded, err := svc.LoadSettings(ctx, "42")
	require.NoError(t, err)
	assert.Same(t, gs, reloaded)
	assert.Equal(t, "!", reloaded.Value(models.SettingPrefix).Str)

	cached, err := svc.GetSettings(ctx, "42")
	require.NoError(t, err)
	assert.Same(t, gs, cached)
}

func TestSettingsService_LoadAllSkipsVanishedDocument(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := new(MockDocumentStore)
	store.On("List", mock.Anything).Return([]string{"1", "2"}, nil)
	store.On("Load", mock.Anything, "1").Return([]byte(`{"settings":{"Prefix":"!"},"history":[]}`), nil)
	store.On("Load", mock.Anything, "2").Return(nil, notFound("2"))

	svc := NewSettingsService(store, prefixRegistry(), nil, nil)

	loaded, err := svc.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "1", loaded[0].GuildID)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettingsService_LoadAllListFailure(t *testing.T) {
	t.Parallel()

	store := new(MockDocumentStore)
	store.On("List", mock.Anything).Return(nil, errors.New("no such directory"))

	svc := NewSettingsService(store, prefixRegistry(), nil, nil)
	_, err := svc.LoadAll(context.Background())
	assert.Error(t, err)
}

func TestSettingsService_Definitions(t *testing.T) {
	t.Parallel()

	registry := models.DefaultSettingDefinitions("!")
	svc := NewSettingsService(new(MockDocumentStore), registry, nil, nil)
	defs := svc.Definitions()
	require.Len(t, defs, len(registry.Definitions()))
	assert.Equal(t, models.SettingPrefix, defs[0].Name)
	assert.Equal(t, "!", defs[0].Default.Str)
}
