package testutil

import (
	"encoding/json"
	"time"

	"swagclan/models"
)

// CreateTestSettingsDocument returns an encoded settings document holding prefix
// and one history entry that moved it away from the default
func CreateTestSettingsDocument(prefix string) []byte {
	doc := models.GuildSettingsDocument{
		Settings: map[string]json.RawMessage{
			models.SettingPrefix: mustMarshal(prefix),
		},
		History: []models.SettingChangeDocument{
			{
				Timestamp: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC).UnixMilli(),
				Setting:   models.SettingPrefix,
				Before:    mustMarshal("."),
				After:     mustMarshal(prefix),
			},
		},
	}
	return mustMarshal(doc)
}

// CreateTestStorageDocument returns an encoded storage document with a single
// item in the guild collection
func CreateTestStorageDocument(name, value string) []byte {
	gs := models.NewGuildStorage("0", nil)
	guild, _ := gs.Collection(models.CollectionGuild)
	guild.Set(name, value, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC))
	data, err := gs.Encode()
	if err != nil {
		panic(err)
	}
	return data
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
