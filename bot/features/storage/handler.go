package storage

import (
	"context"
	"errors"
	"fmt"

	"swagclan/bot/common"
	"swagclan/models"
	"swagclan/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// handleGet handles /storage get
func (f *Feature) handleGet(s *discordgo.Session, i *discordgo.InteractionCreate, opts itemOptions) {
	ctx := context.Background()

	item, err := f.storageService.GetItem(ctx, i.GuildID, opts.collection, opts.key)
	if err != nil {
		common.HandleError(s, i, translateStorageError(err, opts), false)
		return
	}

	if err := common.RespondWithEmbed(s, i, buildItemEmbed(opts.collection, item), true); err != nil {
		log.Errorf("Failed to respond to interaction: %v", err)
	}
}

// handleSet handles /storage set
func (f *Feature) handleSet(s *discordgo.Session, i *discordgo.InteractionCreate, opts itemOptions) {
	if !common.HasPermission(i, discordgo.PermissionManageServer) {
		common.HandleError(s, i, common.NewUserError("You need Manage Server to change stored items", "Missing permission for storage write"), false)
		return
	}

	ctx := context.Background()
	item, err := f.storageService.SetItem(ctx, i.GuildID, opts.collection, opts.key, opts.value)
	if err != nil {
		common.HandleError(s, i, translateStorageError(err, opts), false)
		return
	}

	message := fmt.Sprintf("Stored `%s` in %s (%s)", item.Name, opts.collection, common.FormatBytes(item.Size()))
	if err := common.RespondWithSuccess(s, i, message, true); err != nil {
		log.Errorf("Failed to respond to interaction: %v", err)
	}
}

// handleDelete handles /storage delete
func (f *Feature) handleDelete(s *discordgo.Session, i *discordgo.InteractionCreate, opts itemOptions) {
	if !common.HasPermission(i, discordgo.PermissionManageServer) {
		common.HandleError(s, i, common.NewUserError("You need Manage Server to change stored items", "Missing permission for storage write"), false)
		return
	}

	ctx := context.Background()
	if err := f.storageService.DeleteItem(ctx, i.GuildID, opts.collection, opts.key); err != nil {
		common.HandleError(s, i, translateStorageError(err, opts), false)
		return
	}

	message := fmt.Sprintf("Removed `%s` from %s", opts.key, opts.collection)
	if err := common.RespondWithSuccess(s, i, message, true); err != nil {
		log.Errorf("Failed to respond to interaction: %v", err)
	}
}

// handleInfo handles /storage info
func (f *Feature) handleInfo(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := common.DeferResponse(s, i, true); err != nil {
		log.Errorf("Failed to defer interaction: %v", err)
		return
	}

	ctx := context.Background()
	usage, err := f.storageService.Usage(ctx, i.GuildID)
	if err != nil {
		common.HandleError(s, i, common.NewSystemError(err, "Failed to read storage usage"), true)
		return
	}

	if _, err := common.FollowUpWithEmbed(s, i, buildUsageEmbed(usage), true); err != nil {
		log.Errorf("Failed to send follow-up: %v", err)
	}
}

// translateStorageError maps service errors to messages for the invoking user
func translateStorageError(err error, opts itemOptions) error {
	switch {
	case errors.Is(err, models.ErrCollectionNotFound):
		return common.NewUserError(fmt.Sprintf("There is no collection called `%s`", opts.collection), "Unknown storage collection")
	case errors.Is(err, models.ErrItemNotFound):
		return common.NewUserError(fmt.Sprintf("Nothing is stored under `%s`", common.Truncate(opts.key, 100)), "Unknown storage item")
	case errors.Is(err, models.ErrInvalidStorageKey):
		return common.NewUserError("Item names must be between 1 and 100 characters", "Invalid storage key")
	case errors.Is(err, service.ErrStorageQuotaExceeded):
		return common.NewUserError("This server has used up its storage space", "Storage quota exceeded")
	case errors.Is(err, service.ErrCorruptDocument):
		return common.NewUserError("Storage of this server can't be changed right now because its saved data could not be read", "Storage write on unreadable document")
	default:
		return common.NewSystemError(err, "Storage operation failed")
	}
}
