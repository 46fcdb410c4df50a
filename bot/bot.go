package bot

import (
	"context"
	"fmt"

	"swagclan/bot/features/settings"
	"swagclan/bot/features/storage"
	"swagclan/events"
	"swagclan/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token   string
	GuildID string // Registers commands for a single guild when set
}

// Bot manages the Discord session and all feature modules
type Bot struct {
	// Core components
	config          Config
	session         *discordgo.Session
	settingsService service.SettingsService
	storageService  service.StorageService

	// Feature modules
	settings *settings.Feature
	storage  *storage.Feature
}

// NewSession creates a Discord session with the intents the bot relies on.
// It is created before the bot so the guild resolver can share it.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	return dg, nil
}

// New wires the features to an unopened session, opens it and registers commands
func New(config Config, dg *discordgo.Session, settingsService service.SettingsService, storageService service.StorageService, bus *events.Bus) (*Bot, error) {
	bot := &Bot{
		config:          config,
		session:         dg,
		settingsService: settingsService,
		storageService:  storageService,
	}

	// Create feature modules
	bot.settings = settings.NewFeature(dg, settingsService)
	bot.storage = storage.NewFeature(dg, storageService)

	// Register handlers
	dg.AddHandler(bot.handleCommands)
	dg.AddHandler(bot.handleGuildCreate)
	dg.AddHandler(bot.handleMessageCreate)
	dg.AddHandler(bot.handleGuildMemberAdd)

	RegisterBotSubscriptions(bus, bot)

	// Open websocket connection
	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	// Register slash commands with Discord
	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	return bot, nil
}

// Close closes the Discord session
func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.GuildID == "" {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "settings":
		b.settings.HandleCommand(s, i)
	case "storage":
		b.storage.HandleCommand(s, i)
	}
}

// handleGuildCreate loads settings and storage of a guild as soon as it becomes available
func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	ctx := context.Background()

	gs, err := b.settingsService.GetSettings(ctx, g.ID)
	if err != nil {
		log.WithError(err).WithField("guild_id", g.ID).Error("Failed to load guild settings")
		return
	}
	if _, err := b.storageService.GetStorage(ctx, g.ID); err != nil {
		log.WithError(err).WithField("guild_id", g.ID).Error("Failed to load guild storage")
		return
	}

	log.WithFields(log.Fields{
		"guild_id":  g.ID,
		"name":      g.Name,
		"transient": gs.Transient(),
	}).Info("Guild available")
}
