package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"swagclan/bot/common"
	"swagclan/models"
	"swagclan/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// handleList handles /settings list
func (f *Feature) handleList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	// Loading may hit the store for a guild seen for the first time
	if err := common.DeferResponse(s, i, true); err != nil {
		log.Errorf("Failed to defer interaction: %v", err)
		return
	}

	ctx := context.Background()
	gs, err := f.settingsService.GetSettings(ctx, i.GuildID)
	if err != nil {
		common.HandleError(s, i, common.NewSystemError(err, "Failed to load guild settings"), true)
		return
	}

	if _, err := common.FollowUpWithEmbed(s, i, buildSettingsEmbed(gs), true); err != nil {
		log.Errorf("Failed to send follow-up: %v", err)
	}
}

// handleSet handles /settings set
func (f *Feature) handleSet(s *discordgo.Session, i *discordgo.InteractionCreate, opts map[string]string) {
	name, raw := opts["name"], opts["value"]

	def, ok := findDefinition(f.settingsService.Definitions(), name)
	if !ok {
		common.HandleError(s, i, common.NewUserError(fmt.Sprintf("There is no setting called `%s`", name), "Unknown setting requested"), false)
		return
	}
	if !common.HasPermission(i, def.Permission) {
		common.HandleError(s, i, common.NewUserError("You don't have permission to change this setting", "Missing permission for setting change"), false)
		return
	}

	ctx := context.Background()
	change, err := f.settingsService.Set(ctx, i.GuildID, def.Name, raw, common.InteractionUserID(i))
	if err != nil {
		common.HandleError(s, i, translateSetError(err, def, raw), false)
		return
	}

	message := fmt.Sprintf("%s is already %s", def.Name, def.Format(change.After))
	if change.Changed() {
		message = fmt.Sprintf("%s changed from %s to %s", def.Name, def.Format(change.Before), def.Format(change.After))
	}
	if err := common.RespondWithSuccess(s, i, message, true); err != nil {
		log.Errorf("Failed to respond to interaction: %v", err)
	}
}

// handleHistory handles /settings history
func (f *Feature) handleHistory(s *discordgo.Session, i *discordgo.InteractionCreate, opts map[string]string) {
	name := opts["name"]

	def, ok := findDefinition(f.settingsService.Definitions(), name)
	if !ok {
		common.HandleError(s, i, common.NewUserError(fmt.Sprintf("There is no setting called `%s`", name), "Unknown setting requested"), false)
		return
	}

	ctx := context.Background()
	changes, err := f.settingsService.History(ctx, i.GuildID, def.Name)
	if err != nil {
		common.HandleError(s, i, common.NewSystemError(err, "Failed to load setting history"), false)
		return
	}

	if err := common.RespondWithEmbed(s, i, buildHistoryEmbed(def, changes), true); err != nil {
		log.Errorf("Failed to respond to interaction: %v", err)
	}
}

func findDefinition(defs []*models.SettingDefinition, name string) (*models.SettingDefinition, bool) {
	for _, def := range defs {
		if strings.EqualFold(def.Name, name) {
			return def, true
		}
	}
	return nil, false
}

// translateSetError maps service errors to messages for the invoking user
func translateSetError(err error, def *models.SettingDefinition, raw string) error {
	switch {
	case errors.Is(err, models.ErrInvalidSettingValue):
		return &common.BotError{
			UserMessage: fmt.Sprintf("`%s` is not a valid value for %s", common.Truncate(raw, 100), def.Name),
			LogMessage:  "Rejected setting value",
			Ephemeral:   true,
			Err:         err,
			Context:     def.Name,
		}
	case errors.Is(err, models.ErrGuildUnresolved):
		return common.NewUserError("This server could not be looked up, try again in a moment", "Guild resolution failed")
	case errors.Is(err, service.ErrCorruptDocument):
		return common.NewUserError("Settings of this server can't be changed right now because their saved data could not be read", "Setting change on unreadable settings")
	default:
		return common.NewSystemError(err, "Failed to change setting")
	}
}
