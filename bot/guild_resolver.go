package bot

import (
	"context"
	"fmt"

	"swagclan/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// discordGuild is the read-only view of a guild the setting kinds validate against
type discordGuild struct {
	id       string
	channels map[string]discordgo.ChannelType
}

func newDiscordGuild(id string, channels []*discordgo.Channel) *discordGuild {
	g := &discordGuild{
		id:       id,
		channels: make(map[string]discordgo.ChannelType, len(channels)),
	}
	for _, c := range channels {
		if c != nil {
			g.channels[c.ID] = c.Type
		}
	}
	return g
}

func (g *discordGuild) ID() string {
	return g.id
}

// HasTextChannel reports whether the guild has a channel messages can be posted to
func (g *discordGuild) HasTextChannel(channelID string) bool {
	t, ok := g.channels[channelID]
	if !ok {
		return false
	}
	return t == discordgo.ChannelTypeGuildText || t == discordgo.ChannelTypeGuildNews
}

// GuildResolver resolves guilds from the session state, falling back to the REST API
type GuildResolver struct {
	session *discordgo.Session
}

var _ models.GuildResolver = (*GuildResolver)(nil)

// NewGuildResolver creates a resolver bound to session
func NewGuildResolver(session *discordgo.Session) *GuildResolver {
	return &GuildResolver{session: session}
}

// ResolveGuild returns the guild with its current channels
func (r *GuildResolver) ResolveGuild(ctx context.Context, guildID string) (models.Guild, error) {
	if guild, err := r.session.State.Guild(guildID); err == nil && len(guild.Channels) > 0 {
		return newDiscordGuild(guild.ID, guild.Channels), nil
	}

	log.WithField("guild_id", guildID).Debug("Guild not in state, fetching channels")

	channels, err := r.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channels of guild %s: %w", guildID, err)
	}
	return newDiscordGuild(guildID, channels), nil
}
