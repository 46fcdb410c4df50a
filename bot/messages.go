package bot

import (
	"context"
	"fmt"
	"strings"

	"swagclan/bot/common"
	"swagclan/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// parsePrefixCommand splits a message into a command name and its arguments.
// ok is false when the message does not start with prefix or names no command.
func parsePrefixCommand(content, prefix string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID == "" {
		return
	}

	ctx := context.Background()
	gs, err := b.settingsService.GetSettings(ctx, m.GuildID)
	if err != nil {
		log.WithError(err).WithField("guild_id", m.GuildID).Error("Failed to load guild settings for message")
		return
	}
	if !gs.Value(models.SettingCustomCommands).Flag {
		return
	}

	prefix := gs.Value(models.SettingPrefix).Str
	name, _, ok := parsePrefixCommand(m.Content, prefix)
	if !ok {
		return
	}

	var reply string
	switch name {
	case "prefix":
		reply = fmt.Sprintf("The prefix of this server is `%s`", prefix)
	case "ping":
		reply = "Pong!"
	default:
		return
	}

	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"guild_id":   m.GuildID,
			"channel_id": m.ChannelID,
			"command":    name,
		}).Error("Failed to answer message command")
		return
	}

	if gs.Value(models.SettingDeleteInvocations).Flag &&
		common.MemberHasPermission(s, s.State.User.ID, m.ChannelID, discordgo.PermissionManageMessages) {
		if err := s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
			log.WithError(err).WithField("message_id", m.ID).Warn("Failed to delete command invocation")
		}
	}
}
