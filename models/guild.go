package models

import (
	"context"
	"errors"
)

// ErrGuildUnresolved is returned when a guild ID cannot be mapped to a live guild
var ErrGuildUnresolved = errors.New("guild could not be resolved")

// Guild is the read-only view of a live guild that setting validation needs
type Guild interface {
	// ID returns the guild snowflake
	ID() string

	// HasTextChannel reports whether the guild exposes a text channel with this ID
	HasTextChannel(channelID string) bool
}

// GuildResolver maps a guild ID to a live guild
type GuildResolver interface {
	ResolveGuild(ctx context.Context, guildID string) (Guild, error)
}
