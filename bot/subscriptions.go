package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"swagclan/bot/common"
	"swagclan/events"
	"swagclan/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// RegisterBotSubscriptions registers all bot-level event subscriptions
func RegisterBotSubscriptions(bus *events.Bus, bot *Bot) {
	if bus == nil {
		return
	}

	bus.Subscribe(events.EventTypeSettingChanged, func(ctx context.Context, event events.Event) {
		changed, ok := event.(events.SettingChangedEvent)
		if !ok {
			log.Errorf("received %T in setting changed handler", event)
			return
		}
		if err := bot.postSettingNotice(ctx, changed); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"guild_id": changed.GuildID,
				"setting":  changed.Change.Setting,
			}).Warn("Failed to post setting change notice")
		}
	})

	log.Info("Bot event subscriptions registered successfully")
}

// postSettingNotice announces a saved setting change in the guild's log channel
func (b *Bot) postSettingNotice(ctx context.Context, e events.SettingChangedEvent) error {
	gs, err := b.settingsService.GetSettings(ctx, e.GuildID)
	if err != nil {
		return err
	}
	channelID := gs.Value(models.SettingLogChannel).Str
	if channelID == "" {
		return nil
	}

	embed := buildSettingNotice(e, GetDisplayName(b.session, e.GuildID, e.Change.ActorID))
	if _, err := b.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send notice to channel %s: %w", channelID, err)
	}
	return nil
}

func buildSettingNotice(e events.SettingChangedEvent, actorName string) *discordgo.MessageEmbed {
	name := e.Change.Setting
	before, after := e.Change.Before.String(), e.Change.After.String()
	if def := e.Definition; def != nil {
		name = strings.TrimSpace(def.Emoji + " " + def.Name)
		before, after = def.Format(e.Change.Before), def.Format(e.Change.After)
	}

	return &discordgo.MessageEmbed{
		Title:       "Setting changed",
		Description: fmt.Sprintf("**%s**: %s → %s", name, before, after),
		Color:       common.ColorInfo,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Changed by " + actorName},
		Timestamp:   e.Change.Timestamp.Format(time.RFC3339),
	}
}

// renderWelcome fills the {user} placeholder of a welcome template
func renderWelcome(template, userID string) string {
	return strings.ReplaceAll(template, "{user}", common.UserMention(userID))
}

// handleGuildMemberAdd posts the welcome message to the log channel when both are set
func (b *Bot) handleGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil || m.User.Bot {
		return
	}

	ctx := context.Background()
	gs, err := b.settingsService.GetSettings(ctx, m.GuildID)
	if err != nil {
		log.WithError(err).WithField("guild_id", m.GuildID).Error("Failed to load guild settings for welcome")
		return
	}

	template := gs.Value(models.SettingWelcomeMessage).Str
	channelID := gs.Value(models.SettingLogChannel).Str
	if template == "" || channelID == "" {
		return
	}

	message := common.Truncate(renderWelcome(template, m.User.ID), common.MaxMessageLength)
	if _, err := s.ChannelMessageSend(channelID, message); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"guild_id":   m.GuildID,
			"channel_id": channelID,
		}).Warn("Failed to post welcome message")
	}
}
