package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"swagclan/bot"
	"swagclan/config"
	"swagclan/database"
	"swagclan/events"
	"swagclan/models"
	"swagclan/repository"
	"swagclan/service"

	"github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Println("Starting swagclan bot...")

	// Load configuration
	cfg := config.Get()
	configureLogging(cfg.LogLevel)

	// Initialize event bus
	log.Println("Initializing event bus...")
	eventBus := events.NewBus()
	subscribeLoadLogging(eventBus)
	log.Println("Event bus initialized successfully")

	// Initialize document stores
	settingsStore, storageStore, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	// Discord session is shared by the guild resolver and the bot
	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		return err
	}

	// Initialize services
	log.Println("Initializing services...")
	resolver := bot.NewGuildResolver(session)
	settingsService := service.NewSettingsService(
		settingsStore,
		models.DefaultSettingDefinitions(cfg.DefaultPrefix),
		resolver,
		eventBus,
	)
	storageService := service.NewStorageService(
		storageStore,
		eventBus,
		service.WithStorageQuota(cfg.StorageQuotaBytes),
	)
	log.Println("Services initialized successfully")

	// Warm the caches with every stored guild
	settings, err := settingsService.LoadAll(ctx)
	if err := startupLoadError(err); err != nil {
		return fmt.Errorf("failed to load guild settings: %w", err)
	}
	storage, err := storageService.LoadAll(ctx)
	if err := startupLoadError(err); err != nil {
		return fmt.Errorf("failed to load guild storage: %w", err)
	}
	log.Printf("Loaded settings for %d guilds and storage for %d guilds", len(settings), len(storage))

	// Initialize Discord bot
	log.Println("Initializing Discord bot...")
	botConfig := bot.Config{
		Token:   cfg.DiscordToken,
		GuildID: cfg.GuildID,
	}
	discordBot, err := bot.New(botConfig, session, settingsService, storageService, eventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	log.Println("Discord bot initialized successfully")

	// Wait for context cancellation
	log.Printf("Bot is running in %s mode with %s store...", cfg.Environment, cfg.StoreBackend)
	<-ctx.Done()

	// Cleanup resources
	log.Println("Shutting down bot...")

	// Close Discord bot connection first so nothing changes while saving
	if err := discordBot.Close(); err != nil {
		log.Printf("Error closing Discord bot: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Println("Saving guild documents...")
	if err := settingsService.SaveAll(shutdownCtx); err != nil {
		log.Printf("Error saving guild settings: %v", err)
	}
	if err := storageService.SaveAll(shutdownCtx); err != nil {
		log.Printf("Error saving guild storage: %v", err)
	}

	log.Println("Shutdown completed")
	return nil
}

// openStores returns the settings and storage stores of the configured backend
func openStores(ctx context.Context, cfg *config.Config) (service.DocumentStore, service.DocumentStore, func(), error) {
	if cfg.UsesPostgres() {
		log.Println("Connecting to database...")
		db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Println("Database connection established successfully")

		closeDB := func() {
			log.Println("Closing database connection...")
			db.Close()
		}
		return repository.NewPostgresStore(db, repository.DocumentKindSettings),
			repository.NewPostgresStore(db, repository.DocumentKindStorage),
			closeDB, nil
	}

	settingsStore, err := repository.NewFileStore(cfg.SettingsDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open settings directory: %w", err)
	}
	storageStore, err := repository.NewFileStore(cfg.StorageDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open storage directory: %w", err)
	}
	log.Printf("Using file store in %s and %s", cfg.SettingsDir, cfg.StorageDir)
	return settingsStore, storageStore, func() {}, nil
}

func configureLogging(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		log.Printf("Unknown LOG_LEVEL %q, using info", level)
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// subscribeLoadLogging reports document loads and load failures
func subscribeLoadLogging(bus *events.Bus) {
	bus.Subscribe(events.EventTypeSettingsLoaded, func(ctx context.Context, e events.Event) {
		loaded := e.(events.SettingsLoadedEvent)
		logrus.WithFields(logrus.Fields{
			"guild_id": loaded.GuildID,
			"created":  loaded.Created,
		}).Debug("Guild settings loaded")
	})
	bus.Subscribe(events.EventTypeSettingsLoadFailed, func(ctx context.Context, e events.Event) {
		failed := e.(events.SettingsLoadFailedEvent)
		logrus.WithError(failed.Err).WithField("guild_id", failed.GuildID).
			Error("Guild settings could not be read, serving defaults without saving")
	})
	bus.Subscribe(events.EventTypeStorageLoaded, func(ctx context.Context, e events.Event) {
		loaded := e.(events.StorageLoadedEvent)
		logrus.WithFields(logrus.Fields{
			"guild_id": loaded.GuildID,
			"created":  loaded.Created,
		}).Debug("Guild storage loaded")
	})
	bus.Subscribe(events.EventTypeStorageLoadFailed, func(ctx context.Context, e events.Event) {
		failed := e.(events.StorageLoadFailedEvent)
		logrus.WithError(failed.Err).WithField("guild_id", failed.GuildID).
			Error("Guild storage could not be read, serving an empty read-only copy")
	})
}

// startupLoadError drops the per-guild failures a LoadAll may report without
// stopping startup and joins whatever is left. Corrupt documents are reported
// through the load failed events.
func startupLoadError(err error) error {
	if err == nil {
		return nil
	}

	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}

	var fatal []error
	for _, e := range errs {
		switch {
		case errors.Is(e, service.ErrCorruptDocument):
			logrus.WithError(e).Debug("Skipping unreadable guild document")
		case errors.Is(e, service.ErrDocumentNotFound):
			// removed after listing
		default:
			fatal = append(fatal, e)
		}
	}
	return errors.Join(fatal...)
}
