package settings

import (
	"fmt"
	"strings"

	"swagclan/bot/common"
	"swagclan/models"

	"github.com/bwmarrin/discordgo"
)

// buildSettingsEmbed lists every setting with its current value
func buildSettingsEmbed(gs *models.GuildSettings) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "⚙️ Server Settings",
		Color: common.ColorPrimary,
	}

	for _, setting := range gs.Settings() {
		if len(embed.Fields) == common.MaxEmbedFields {
			break
		}
		def := setting.Definition
		value := fmt.Sprintf("%s\n*%s*", setting.Display(), def.Description)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  strings.TrimSpace(def.Emoji + " " + def.Name),
			Value: common.Truncate(value, common.MaxEmbedFieldValue),
		})
	}

	if gs.Transient() {
		embed.Color = common.ColorWarning
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: "Saved settings could not be read, defaults are shown",
		}
	}

	return embed
}

// buildHistoryEmbed shows the most recent changes of one setting, newest last
func buildHistoryEmbed(def *models.SettingDefinition, changes []*models.GuildSettingChange) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("📜 %s history", def.Name),
		Color: common.ColorInfo,
	}

	if len(changes) == 0 {
		embed.Description = "This setting has never been changed."
		return embed
	}

	start := 0
	if len(changes) > common.HistoryPageSize {
		start = len(changes) - common.HistoryPageSize
	}

	var lines []string
	for _, c := range changes[start:] {
		line := fmt.Sprintf("%s %s → %s",
			common.FormatDiscordTimestamp(c.Timestamp, "R"),
			def.Format(c.Before),
			def.Format(c.After))
		if c.ActorID != "" {
			line += " by " + common.UserMention(c.ActorID)
		}
		lines = append(lines, line)
	}
	embed.Description = common.Truncate(strings.Join(lines, "\n"), 4096)

	if start > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Showing the last %d of %d changes", common.HistoryPageSize, len(changes)),
		}
	}
	return embed
}
