package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"swagclan/service"

	log "github.com/sirupsen/logrus"
)

// ErrInvalidGuildID is returned for IDs that cannot be used as file names
var ErrInvalidGuildID = errors.New("invalid guild id")

const documentExt = ".json"

var guildIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// FileStore keeps one JSON file per guild in a directory
type FileStore struct {
	dir string
}

var _ service.DocumentStore = (*FileStore)(nil)

// NewFileStore creates the directory if needed and returns a store rooted at it
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory backing the store
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(guildID string) (string, error) {
	if !guildIDPattern.MatchString(guildID) {
		return "", fmt.Errorf("%q: %w", guildID, ErrInvalidGuildID)
	}
	return filepath.Join(s.dir, guildID+documentExt), nil
}

// Load reads the document of a guild
func (s *FileStore) Load(ctx context.Context, guildID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.path(guildID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("guild %s: %w", guildID, service.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Save writes the document to a temporary file and renames it over the target
func (s *FileStore) Save(ctx context.Context, guildID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.path(guildID)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+guildID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions on temporary file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"guild_id": guildID,
		"path":     path,
		"bytes":    len(data),
	}).Debug("Saved guild document")

	return nil
}

// List returns the guild IDs of every document file in the directory
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != documentExt {
			continue
		}
		id := strings.TrimSuffix(name, documentExt)
		if !guildIDPattern.MatchString(id) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
