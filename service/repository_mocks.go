package service

import (
	"context"

	"swagclan/events"
	"swagclan/models"

	"github.com/stretchr/testify/mock"
)

// MockDocumentStore is a mock implementation of DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Load(ctx context.Context, guildID string) ([]byte, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDocumentStore) Save(ctx context.Context, guildID string, data []byte) error {
	args := m.Called(ctx, guildID, data)
	return args.Error(0)
}

func (m *MockDocumentStore) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Emit(ctx context.Context, event events.Event) {
	m.Called(ctx, event)
}

// MockGuildResolver is a mock implementation of models.GuildResolver
type MockGuildResolver struct {
	mock.Mock
}

func (m *MockGuildResolver) ResolveGuild(ctx context.Context, guildID string) (models.Guild, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Guild), args.Error(1)
}

// MockGuild is a mock implementation of models.Guild
type MockGuild struct {
	mock.Mock
}

func (m *MockGuild) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockGuild) HasTextChannel(channelID string) bool {
	args := m.Called(channelID)
	return args.Bool(0)
}
