package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"swagclan/database"
	"swagclan/service"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// ImportResult counts what ImportFiles copied
type ImportResult struct {
	Imported int
	Skipped  int
}

// ImportFiles copies every document of a file store into the database under
// kind, in a single transaction. Files that are not valid JSON are skipped.
func ImportFiles(ctx context.Context, db *database.DB, source service.DocumentStore, kind DocumentKind) (ImportResult, error) {
	var result ImportResult

	ids, err := source.List(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list %s files: %w", kind, err)
	}

	err = db.WithTransaction(ctx, func(tx pgx.Tx) error {
		target := NewPostgresStoreScoped(tx, kind)
		for _, guildID := range ids {
			data, err := source.Load(ctx, guildID)
			if err != nil {
				return fmt.Errorf("failed to read %s file of guild %s: %w", kind, guildID, err)
			}
			if !json.Valid(data) {
				log.WithFields(log.Fields{
					"guild_id": guildID,
					"kind":     kind,
				}).Warn("Skipping unreadable document")
				result.Skipped++
				continue
			}
			if err := target.Save(ctx, guildID, data); err != nil {
				return err
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	log.WithFields(log.Fields{
		"kind":     kind,
		"imported": result.Imported,
		"skipped":  result.Skipped,
	}).Info("Imported guild documents")

	return result, nil
}
