package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stormline/dispatch/internal/models"
)

const knowledgeColumns = `id, kind, category, title, body, steps, keywords, audience, active, priority, estimated_response, last_verified`

// FindActiveEmergencyProtocol returns the highest-priority active protocol
// whose category matches the incident-type hint or whose keyword set overlaps
// the message keywords. Returns nil when nothing matches.
func (r *SQLiteRepo) FindActiveEmergencyProtocol(ctx context.Context, keywords []string, incidentTypeHint string) (*models.KnowledgeEntry, error) {
	entries, err := r.listActiveByKind(ctx, models.KindEmergencyProtocol, "")
	if err != nil {
		return nil, err
	}
	for i := range entries {
		e := &entries[i]
		if incidentTypeHint != "" && e.Category == incidentTypeHint {
			return e, nil
		}
		for _, k := range e.Keywords {
			for _, mk := range keywords {
				if strings.EqualFold(k, mk) || strings.Contains(strings.ToLower(mk), strings.ToLower(k)) {
					return e, nil
				}
			}
		}
	}
	return nil, nil
}

// FindActiveVerifiedContent returns the first active verified-content entry
// matching the query text, or nil.
func (r *SQLiteRepo) FindActiveVerifiedContent(ctx context.Context, query string) (*models.KnowledgeEntry, error) {
	entries, err := r.listActiveByKind(ctx, models.KindVerifiedContent, "")
	if err != nil {
		return nil, err
	}
	return firstMatch(entries, query), nil
}

// FindActiveGuide returns the first active guide for the given audience
// matching the query text, or nil. Guides with an empty audience apply to
// both roles.
func (r *SQLiteRepo) FindActiveGuide(ctx context.Context, audience, query string) (*models.KnowledgeEntry, error) {
	entries, err := r.listActiveByKind(ctx, models.KindGuide, audience)
	if err != nil {
		return nil, err
	}
	return firstMatch(entries, query), nil
}

// firstMatch applies the case-insensitive containment rule: an entry matches
// when its title or body contains the query, or when the query and any entry
// keyword contain each other.
func firstMatch(entries []models.KnowledgeEntry, query string) *models.KnowledgeEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	for i := range entries {
		e := &entries[i]
		if strings.Contains(strings.ToLower(e.Title), q) || strings.Contains(strings.ToLower(e.Body), q) {
			return e
		}
		for _, k := range e.Keywords {
			lk := strings.ToLower(k)
			if strings.Contains(q, lk) || strings.Contains(lk, q) {
				return e
			}
		}
	}
	return nil
}

func (r *SQLiteRepo) listActiveByKind(ctx context.Context, kind, audience string) ([]models.KnowledgeEntry, error) {
	q := `SELECT ` + knowledgeColumns + ` FROM knowledge_entries WHERE active = 1 AND kind = ?`
	args := []any{kind}
	if audience != "" {
		q += ` AND (audience = ? OR audience = '')`
		args = append(args, audience)
	}
	q += ` ORDER BY priority DESC, id ASC`

	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list knowledge entries: %w", err)
	}
	defer rows.Close()

	var out []models.KnowledgeEntry
	for rows.Next() {
		e, err := scanKnowledgeEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// UpsertKnowledgeEntry inserts or replaces an entry keyed by (kind, title).
// Used by the content sync; the serving path never writes.
func (r *SQLiteRepo) UpsertKnowledgeEntry(ctx context.Context, e *models.KnowledgeEntry) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("knowledge entry is nil")
	}
	steps, err := json.Marshal(stringsOrEmpty(e.Steps))
	if err != nil {
		return 0, err
	}
	keywords, err := json.Marshal(stringsOrEmpty(e.Keywords))
	if err != nil {
		return 0, err
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO knowledge_entries
		(kind, category, title, body, steps, keywords, audience, active, priority, estimated_response, last_verified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, title) DO UPDATE SET
			category=excluded.category, body=excluded.body, steps=excluded.steps,
			keywords=excluded.keywords, audience=excluded.audience, active=excluded.active,
			priority=excluded.priority, estimated_response=excluded.estimated_response,
			last_verified=excluded.last_verified`,
		e.Kind, e.Category, e.Title, e.Body, string(steps), string(keywords),
		e.Audience, boolToInt(e.Active), e.Priority, e.EstResponse, e.LastVerified)
	if err != nil {
		return 0, fmt.Errorf("upsert knowledge entry: %w", err)
	}
	return res.LastInsertId()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKnowledgeEntry(row rowScanner) (*models.KnowledgeEntry, error) {
	var (
		e            models.KnowledgeEntry
		steps        string
		keywords     string
		active       int
		lastVerified sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.Kind, &e.Category, &e.Title, &e.Body, &steps, &keywords,
		&e.Audience, &active, &e.Priority, &e.EstResponse, &lastVerified); err != nil {
		return nil, err
	}
	e.Active = active != 0
	if lastVerified.Valid {
		e.LastVerified = &lastVerified.Int64
	}
	if err := json.Unmarshal([]byte(steps), &e.Steps); err != nil {
		return nil, fmt.Errorf("decode steps for entry %d: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(keywords), &e.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords for entry %d: %w", e.ID, err)
	}
	return &e, nil
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
