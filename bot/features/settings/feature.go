package settings

import (
	"swagclan/service"

	"github.com/bwmarrin/discordgo"
)

// Feature handles the /settings command
type Feature struct {
	session         *discordgo.Session
	settingsService service.SettingsService
}

// NewFeature creates a new settings feature instance
func NewFeature(session *discordgo.Session, settingsService service.SettingsService) *Feature {
	return &Feature{
		session:         session,
		settingsService: settingsService,
	}
}

// Command describes /settings with one choice per registered definition
func (f *Feature) Command() *discordgo.ApplicationCommand {
	defs := f.settingsService.Definitions()
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(defs))
	for _, def := range defs {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  def.Name,
			Value: def.Name,
		})
	}

	nameOption := func() *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "name",
			Description: "Setting to use",
			Required:    true,
			Choices:     choices,
		}
	}

	return &discordgo.ApplicationCommand{
		Name:        "settings",
		Description: "View and change server settings",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "Show every setting of this server",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Change a setting",
				Options: []*discordgo.ApplicationCommandOption{
					nameOption(),
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "value",
						Description: "New value (use 'none' to clear channels and text)",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "history",
				Description: "Show recent changes of a setting",
				Options: []*discordgo.ApplicationCommandOption{
					nameOption(),
				},
			},
		},
	}
}

// HandleCommand routes settings subcommands to their handlers
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}

	switch options[0].Name {
	case "list":
		f.handleList(s, i)
	case "set":
		f.handleSet(s, i, optionMap(options[0].Options))
	case "history":
		f.handleHistory(s, i, optionMap(options[0].Options))
	}
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	out := make(map[string]string, len(options))
	for _, opt := range options {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			out[opt.Name] = opt.StringValue()
		}
	}
	return out
}
