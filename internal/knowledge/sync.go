package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/qri-io/jsonschema"
	"github.com/stormline/dispatch/internal/models"
	"github.com/stormline/dispatch/pkg/repository"
)

// Syncer imports externally authored knowledge documents into the store.
// Each document is a JSON array of entries; every entry is validated against
// the knowledge schema before import, and a document with any invalid entry
// is rejected whole so a partial edit never half-applies.
type Syncer struct {
	store  repository.KnowledgeStore
	schema *jsonschema.Schema
	logger *slog.Logger
}

func NewSyncer(store repository.KnowledgeStore, schemaJSON []byte, logger *slog.Logger) (*Syncer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(schemaJSON, schema); err != nil {
		return nil, fmt.Errorf("parse knowledge schema: %w", err)
	}
	return &Syncer{store: store, schema: schema, logger: logger}, nil
}

// ImportFS imports every .json document under dir in the given filesystem.
// Used for the embedded default content at startup.
func (s *Syncer) ImportFS(ctx context.Context, fsys fs.FS, dir string) (int, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("read content dir: %w", err)
	}

	total := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return total, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		n, err := s.ImportDocument(ctx, e.Name(), b)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// ImportDir imports every .json document in an on-disk content directory.
func (s *Syncer) ImportDir(ctx context.Context, dir string) (int, error) {
	return s.ImportFS(ctx, os.DirFS(dir), ".")
}

// ImportFile re-imports a single document, typically on a watcher event.
func (s *Syncer) ImportFile(ctx context.Context, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return s.ImportDocument(ctx, filepath.Base(path), b)
}

// ImportDocument validates and upserts one document. Returns the number of
// entries imported.
func (s *Syncer) ImportDocument(ctx context.Context, name string, doc []byte) (int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(doc, &raw); err != nil {
		return 0, fmt.Errorf("document %s is not a JSON array: %w", name, err)
	}

	entries := make([]models.KnowledgeEntry, 0, len(raw))
	for i, item := range raw {
		keyErrs, err := s.schema.ValidateBytes(ctx, item)
		if err != nil {
			return 0, fmt.Errorf("validate %s entry %d: %w", name, i, err)
		}
		if len(keyErrs) > 0 {
			return 0, fmt.Errorf("document %s entry %d violates the knowledge schema: %s", name, i, keyErrs[0].Error())
		}

		var e models.KnowledgeEntry
		if err := json.Unmarshal(item, &e); err != nil {
			return 0, fmt.Errorf("decode %s entry %d: %w", name, i, err)
		}
		entries = append(entries, e)
	}

	for i := range entries {
		if _, err := s.store.UpsertKnowledgeEntry(ctx, &entries[i]); err != nil {
			return i, fmt.Errorf("upsert %s entry %d: %w", name, i, err)
		}
	}

	s.logger.Info("knowledge document imported", slog.String("document", name), slog.Int("entries", len(entries)))
	return len(entries), nil
}
