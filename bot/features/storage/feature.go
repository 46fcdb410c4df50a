package storage

import (
	"swagclan/models"
	"swagclan/service"

	"github.com/bwmarrin/discordgo"
)

// Feature handles the /storage command
type Feature struct {
	session        *discordgo.Session
	storageService service.StorageService
}

// NewFeature creates a new storage feature instance
func NewFeature(session *discordgo.Session, storageService service.StorageService) *Feature {
	return &Feature{
		session:        session,
		storageService: storageService,
	}
}

func keyOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "key",
		Description: "Item name",
		Required:    true,
		MaxLength:   models.MaxItemNameLength,
	}
}

func collectionOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "collection",
		Description: "Collection to use (defaults to guild)",
		Required:    false,
	}
}

// Command describes /storage
func (f *Feature) Command() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "storage",
		Description: "Read and write this server's stored items",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "get",
				Description: "Show a stored item",
				Options:     []*discordgo.ApplicationCommandOption{keyOption(), collectionOption()},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Store an item",
				Options: []*discordgo.ApplicationCommandOption{
					keyOption(),
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "value",
						Description: "Value to store",
						Required:    true,
					},
					collectionOption(),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "delete",
				Description: "Remove a stored item",
				Options:     []*discordgo.ApplicationCommandOption{keyOption(), collectionOption()},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "info",
				Description: "Show how much storage this server uses",
			},
		},
	}
}

// HandleCommand routes storage subcommands to their handlers
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}

	opts := parseOptions(options[0].Options)
	switch options[0].Name {
	case "get":
		f.handleGet(s, i, opts)
	case "set":
		f.handleSet(s, i, opts)
	case "delete":
		f.handleDelete(s, i, opts)
	case "info":
		f.handleInfo(s, i)
	}
}

type itemOptions struct {
	collection string
	key        string
	value      string
}

func parseOptions(options []*discordgo.ApplicationCommandInteractionDataOption) itemOptions {
	opts := itemOptions{collection: models.CollectionGuild}
	for _, opt := range options {
		switch opt.Name {
		case "collection":
			if v := opt.StringValue(); v != "" {
				opts.collection = v
			}
		case "key":
			opts.key = opt.StringValue()
		case "value":
			opts.value = opt.StringValue()
		}
	}
	return opts
}
