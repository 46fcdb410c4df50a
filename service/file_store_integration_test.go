package service_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"swagclan/events"
	"swagclan/models"
	"swagclan/repository"
	"swagclan/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prefixRegistry() *models.SettingRegistry {
	return models.NewSettingRegistry(&models.SettingDefinition{
		Name:    models.SettingPrefix,
		Kind:    models.KindPrefix,
		Default: models.PrefixValue("."),
	})
}

func TestSettingsWithFileStore_CreatesDocument(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	store, err := repository.NewFileStore(dir)
	require.NoError(t, err)

	svc := service.NewSettingsService(store, prefixRegistry(), nil, events.NewBus())

	gs, err := svc.GetSettings(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, ".", gs.Value(models.SettingPrefix).Str)

	data, err := os.ReadFile(filepath.Join(dir, "42.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"settings":{"Prefix":"."},"history":[]}`, string(data))
}

func TestSettingsWithFileStore_CorruptFileIsKept(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "42.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"settings": {"Prefix": `), 0644))

	store, err := repository.NewFileStore(dir)
	require.NoError(t, err)

	bus := events.NewBus()
	failures := make(chan events.SettingsLoadFailedEvent, 1)
	bus.Subscribe(events.EventTypeSettingsLoadFailed, func(ctx context.Context, e events.Event) {
		failures <- e.(events.SettingsLoadFailedEvent)
	})

	svc := service.NewSettingsService(store, prefixRegistry(), nil, bus)

	gs, err := svc.GetSettings(ctx, "42")
	require.NoError(t, err)
	assert.True(t, gs.Transient())
	require.NoError(t, svc.SaveAll(ctx))

	select {
	case e := <-failures:
		assert.Equal(t, "42", e.GuildID)
		assert.ErrorIs(t, e.Err, service.ErrCorruptDocument)
	case <-time.After(time.Second):
		t.Fatal("load failure was not published")
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"settings": {"Prefix": `, string(data))
}

func TestStorageWithFileStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	store, err := repository.NewFileStore(dir)
	require.NoError(t, err)

	svc := service.NewStorageService(store, nil)
	_, err = svc.SetItem(ctx, "42", models.CollectionGuild, "motd", "hello")
	require.NoError(t, err)
	require.NoError(t, svc.CreateCollection(ctx, "42", "quotes"))

	// A fresh service reads back what the first one wrote
	reloaded := service.NewStorageService(store, nil)
	item, err := reloaded.GetItem(ctx, "42", models.CollectionGuild, "motd")
	require.NoError(t, err)
	assert.Equal(t, "hello", item.Value)

	gs, err := reloaded.GetStorage(ctx, "42")
	require.NoError(t, err)
	_, ok := gs.Collection("quotes")
	assert.True(t, ok)
}

func TestStorageWithFileStore_ConcurrentSetItem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)

	svc := service.NewStorageService(store, nil)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.SetItem(ctx, "42", models.CollectionUsers, fmt.Sprintf("user%d", i), fmt.Sprintf("value %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	reloaded := service.NewStorageService(store, nil)
	gs, err := reloaded.GetStorage(ctx, "42")
	require.NoError(t, err)

	users, ok := gs.Collection(models.CollectionUsers)
	require.True(t, ok)
	assert.Equal(t, writers, users.Len())
	for i := 0; i < writers; i++ {
		item, ok := users.Get(fmt.Sprintf("user%d", i))
		if assert.True(t, ok, "user%d", i) {
			assert.Equal(t, fmt.Sprintf("value %d", i), item.Value)
		}
	}
}
