package storage

import (
	"fmt"

	"swagclan/bot/common"
	"swagclan/models"
	"swagclan/service"

	"github.com/bwmarrin/discordgo"
)

func buildItemEmbed(collection string, item *models.CollectionItem) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("📦 %s / %s", collection, item.Name),
		Description: common.Truncate(item.Value, 4096),
		Color:       common.ColorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Created", Value: common.FormatDiscordTimestamp(item.Created, "f"), Inline: true},
			{Name: "Modified", Value: common.FormatDiscordTimestamp(item.Modified, "R"), Inline: true},
			{Name: "Size", Value: common.FormatBytes(item.Size()), Inline: true},
		},
	}
}

func buildUsageEmbed(usage *service.StorageUsage) *discordgo.MessageEmbed {
	total := common.FormatBytes(usage.Size)
	if usage.Quota > 0 {
		total = fmt.Sprintf("%s of %s", total, common.FormatBytes(usage.Quota))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "📦 Server Storage",
		Description: fmt.Sprintf("Using %s", total),
		Color:       common.ColorInfo,
	}
	switch {
	case usage.Quota <= 0:
	case usage.Size >= usage.Quota:
		embed.Color = common.ColorDanger
	case usage.Size*10 >= usage.Quota*9:
		embed.Color = common.ColorWarning
	}

	for _, c := range usage.Collections {
		if len(embed.Fields) == common.MaxEmbedFields {
			break
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   c.Name,
			Value:  fmt.Sprintf("%d items, %s", c.Items, common.FormatBytes(c.Size)),
			Inline: true,
		})
	}
	return embed
}
