package repository

import (
	"context"
	"errors"
	"fmt"

	"swagclan/database"
	"swagclan/service"

	"github.com/jackc/pgx/v5"
)

// DocumentKind separates settings documents from storage documents in the shared table
type DocumentKind string

const (
	DocumentKindSettings DocumentKind = "settings"
	DocumentKindStorage  DocumentKind = "storage"
)

// PostgresStore keeps guild documents as JSONB rows in guild_documents
type PostgresStore struct {
	q    Queryable
	kind DocumentKind
}

var _ service.DocumentStore = (*PostgresStore)(nil)

// NewPostgresStore creates a store for one document kind on the pool
func NewPostgresStore(db *database.DB, kind DocumentKind) *PostgresStore {
	return &PostgresStore{q: db.Pool, kind: kind}
}

// NewPostgresStoreScoped creates a store bound to a transaction
func NewPostgresStoreScoped(tx Queryable, kind DocumentKind) *PostgresStore {
	return &PostgresStore{q: tx, kind: kind}
}

// Load returns the stored document of a guild
func (s *PostgresStore) Load(ctx context.Context, guildID string) ([]byte, error) {
	query := `
		SELECT body
		FROM guild_documents
		WHERE kind = $1 AND guild_id = $2`

	var body []byte
	err := s.q.QueryRow(ctx, query, string(s.kind), guildID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("guild %s: %w", guildID, service.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s document for guild %s: %w", s.kind, guildID, err)
	}
	return body, nil
}

// Save upserts the document of a guild
func (s *PostgresStore) Save(ctx context.Context, guildID string, data []byte) error {
	query := `
		INSERT INTO guild_documents (kind, guild_id, body)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (kind, guild_id)
		DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`

	if _, err := s.q.Exec(ctx, query, string(s.kind), guildID, string(data)); err != nil {
		return fmt.Errorf("failed to save %s document for guild %s: %w", s.kind, guildID, err)
	}
	return nil
}

// List returns the IDs of every guild with a document of this kind
func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	query := `
		SELECT guild_id
		FROM guild_documents
		WHERE kind = $1
		ORDER BY guild_id`

	rows, err := s.q.Query(ctx, query, string(s.kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", s.kind, err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s documents: %w", s.kind, err)
	}
	return ids, nil
}
