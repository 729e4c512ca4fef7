/*
Package store persists the snippet corpus and its usage history in SQLite
and answers the aggregate queries the search pipeline needs: full-text
search, global popularity and per-user personalization.

Body lines and scope tags live in TEXT columns as JSON strings; the
conversion to structured values happens here and nowhere else.
*/
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/sneap/snipserve/pkg/snippet"
)

const schema = `
CREATE TABLE IF NOT EXISTS snippets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	prefix      TEXT NOT NULL UNIQUE,
	body        TEXT NOT NULL,
	description TEXT NOT NULL,
	scope       TEXT,
	category    TEXT DEFAULT 'general',
	usage_count INTEGER DEFAULT 0,
	last_used   INTEGER DEFAULT (unixepoch()),
	created_at  INTEGER DEFAULT (unixepoch()),
	updated_at  INTEGER DEFAULT (unixepoch())
);
CREATE TABLE IF NOT EXISTS usage_metrics (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	snippet_id     INTEGER NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
	user_id        TEXT NOT NULL,
	language       TEXT NOT NULL,
	file_extension TEXT,
	search_time    REAL,
	was_accepted   INTEGER DEFAULT 1,
	timestamp      INTEGER DEFAULT (unixepoch())
);
CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_metrics(user_id, snippet_id);
`

// scopeClause matches snippets whose tag set is absent (universal) or
// contains the given language. Tags are stored as a JSON string array, so
// containment is a quoted LIKE, same trick the admin backend used.
const scopeClause = `(scope IS NULL OR scope LIKE '%"' || ? || '"%')`

// Store wraps a SQLite database holding snippets and usage metrics.
type Store struct {
	db  *sql.DB
	now func() int64
}

// Open opens (or creates) the store at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// Single connection: SQLite serializes writers anyway, and keeping one
	// conn makes the pragmas (and ":memory:" databases) apply everywhere.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: func() int64 { return time.Now().Unix() }}, nil
}

// SetClock overrides the timestamp source. Test hook.
func (s *Store) SetClock(now func() int64) { s.now = now }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Create inserts a snippet and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, snip snippet.Snippet) (snippet.Snippet, error) {
	body, err := snippet.EncodeBody(snip.Body)
	if err != nil {
		return snippet.Snippet{}, err
	}
	scope, err := snippet.EncodeScope(snip.Scope)
	if err != nil {
		return snippet.Snippet{}, err
	}
	if snip.Category == "" {
		snip.Category = "general"
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO snippets (name, prefix, body, description, scope, category, usage_count, last_used, created_at, updated_at)
		 VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?)`,
		snip.Name, snip.Prefix, body, snip.Description, scope, snip.Category,
		snip.UsageCount, s.now(), s.now(), s.now())
	if err != nil {
		return snippet.Snippet{}, fmt.Errorf("create snippet %q: %w", snip.Prefix, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return snippet.Snippet{}, fmt.Errorf("create snippet %q: %w", snip.Prefix, err)
	}
	snip.ID = id
	return snip, nil
}

// Get fetches one snippet by id; (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id int64) (*snippet.Snippet, error) {
	row := s.db.QueryRowContext(ctx, selectCols+` FROM snippets WHERE id = ?`, id)
	snip, err := scanSnippet(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snippet %d: %w", id, err)
	}
	return &snip, nil
}

// Update rewrites the mutable fields of a snippet. Returns false when the
// id does not exist.
func (s *Store) Update(ctx context.Context, snip snippet.Snippet) (bool, error) {
	body, err := snippet.EncodeBody(snip.Body)
	if err != nil {
		return false, err
	}
	scope, err := snippet.EncodeScope(snip.Scope)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE snippets SET name = ?, prefix = ?, body = ?, description = ?,
		 scope = NULLIF(?, ''), category = ?, updated_at = ? WHERE id = ?`,
		snip.Name, snip.Prefix, body, snip.Description, scope, snip.Category,
		s.now(), snip.ID)
	if err != nil {
		return false, fmt.Errorf("update snippet %d: %w", snip.ID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Delete removes a snippet and, via the foreign key, its usage history.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete snippet %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// All returns the entire corpus, the snapshot the trie is rebuilt from.
func (s *Store) All(ctx context.Context) ([]snippet.Snippet, error) {
	return s.query(ctx, selectCols+` FROM snippets ORDER BY id`)
}

// Search runs the full-text path: substring match over trigger, name and
// description, optionally scoped to a language, ordered by global usage.
func (s *Store) Search(ctx context.Context, query, language string, limit int) ([]snippet.Snippet, error) {
	var conds []string
	var args []any

	if q := strings.TrimSpace(query); q != "" {
		conds = append(conds, `(prefix LIKE ? OR name LIKE ? OR description LIKE ?)`)
		pat := "%" + q + "%"
		args = append(args, pat, pat, pat)
	}
	if language != "" {
		conds = append(conds, scopeClause)
		args = append(args, language)
	}

	q := selectCols + ` FROM snippets`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY usage_count DESC, prefix LIMIT ?`
	args = append(args, limit)

	return s.query(ctx, q, args...)
}

// Popular returns the global popularity ordering: usage count, then most
// recently used. The anonymous counterpart of Personalized.
func (s *Store) Popular(ctx context.Context, language string, limit int) ([]snippet.Snippet, error) {
	q := selectCols + ` FROM snippets`
	var args []any
	if language != "" {
		q += ` WHERE ` + scopeClause
		args = append(args, language)
	}
	q += ` ORDER BY usage_count DESC, last_used DESC LIMIT ?`
	args = append(args, limit)
	return s.query(ctx, q, args...)
}

// Personalized biases ordering toward the requesting user's own accepted
// usage. Every snippet participates via the left join, so never-used ones
// still appear, ordered by global popularity after the personal counts.
func (s *Store) Personalized(ctx context.Context, userID, language string, limit int) ([]snippet.Snippet, error) {
	q := `SELECT s.id, s.name, s.prefix, s.body, s.description, s.scope, s.category, s.usage_count, s.last_used
	      FROM snippets s
	      LEFT JOIN usage_metrics m
	        ON s.id = m.snippet_id AND m.user_id = ? AND m.was_accepted = 1`
	args := []any{userID}
	if language != "" {
		q += ` WHERE (s.scope IS NULL OR s.scope LIKE '%"' || ? || '"%')`
		args = append(args, language)
	}
	q += ` GROUP BY s.id ORDER BY COUNT(m.id) DESC, s.usage_count DESC LIMIT ?`
	args = append(args, limit)
	return s.query(ctx, q, args...)
}

// RecordUsage appends a usage event and bumps the snippet's global counter
// iff the completion was accepted.
func (s *Store) RecordUsage(ctx context.Context, m snippet.UsageMetric) error {
	if err := m.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO usage_metrics (snippet_id, user_id, language, file_extension, search_time, was_accepted, timestamp)
		 VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, 0), ?, ?)`,
		m.SnippetID, m.UserID, m.Language, m.FileExtension, m.SearchTimeMs, m.WasAccepted, s.now())
	if err != nil {
		return fmt.Errorf("record usage for snippet %d: %w", m.SnippetID, err)
	}

	if m.WasAccepted {
		_, err = tx.ExecContext(ctx,
			`UPDATE snippets SET usage_count = usage_count + 1, last_used = ? WHERE id = ?`,
			s.now(), m.SnippetID)
		if err != nil {
			return fmt.Errorf("bump usage count for snippet %d: %w", m.SnippetID, err)
		}
	}
	return tx.Commit()
}

// UserStats aggregates one user's recorded history.
func (s *Store) UserStats(ctx context.Context, userID string) (snippet.UserStats, error) {
	var stats snippet.UserStats

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(search_time), 0) FROM usage_metrics WHERE user_id = ?`, userID)
	if err := row.Scan(&stats.TotalUsage, &stats.AvgSearchTimeMs); err != nil {
		return stats, fmt.Errorf("user stats for %q: %w", userID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT language, COUNT(*) AS n FROM usage_metrics WHERE user_id = ?
		 GROUP BY language ORDER BY n DESC LIMIT 5`, userID)
	if err != nil {
		return stats, fmt.Errorf("user stats for %q: %w", userID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var lc snippet.LanguageCount
		if err := rows.Scan(&lc.Language, &lc.Count); err != nil {
			return stats, fmt.Errorf("user stats for %q: %w", userID, err)
		}
		stats.FavoriteLanguages = append(stats.FavoriteLanguages, lc)
	}
	return stats, rows.Err()
}

// SnippetAnalytics aggregates all recorded usage of one snippet. Real
// aggregation over usage_metrics; no synthetic deltas.
func (s *Store) SnippetAnalytics(ctx context.Context, snippetID int64) (snippet.Analytics, error) {
	var a snippet.Analytics

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT user_id),
		        COALESCE(AVG(search_time), 0),
		        COALESCE(AVG(CASE WHEN was_accepted THEN 1.0 ELSE 0.0 END), 0)
		 FROM usage_metrics WHERE snippet_id = ?`, snippetID)
	if err := row.Scan(&a.TotalUsage, &a.UniqueUsers, &a.AvgSearchTimeMs, &a.AcceptanceRate); err != nil {
		return a, fmt.Errorf("analytics for snippet %d: %w", snippetID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT language, COUNT(*) AS n FROM usage_metrics WHERE snippet_id = ?
		 GROUP BY language ORDER BY n DESC`, snippetID)
	if err != nil {
		return a, fmt.Errorf("analytics for snippet %d: %w", snippetID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var lc snippet.LanguageCount
		if err := rows.Scan(&lc.Language, &lc.Count); err != nil {
			return a, fmt.Errorf("analytics for snippet %d: %w", snippetID, err)
		}
		a.LanguageBreakdown = append(a.LanguageBreakdown, lc)
	}
	return a, rows.Err()
}

// Categories lists the distinct non-empty category labels.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM snippets
		 WHERE category IS NOT NULL AND category != '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// Count reports the corpus size.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snippets`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count snippets: %w", err)
	}
	return n, nil
}

const selectCols = `SELECT id, name, prefix, body, description, scope, category, usage_count, last_used`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner) (snippet.Snippet, error) {
	var snip snippet.Snippet
	var body string
	var scope, category sql.NullString

	err := row.Scan(&snip.ID, &snip.Name, &snip.Prefix, &body, &snip.Description,
		&scope, &category, &snip.UsageCount, &snip.LastUsed)
	if err != nil {
		return snip, err
	}

	if snip.Body, err = snippet.DecodeBody(body); err != nil {
		return snip, err
	}
	if scope.Valid {
		if snip.Scope, err = snippet.DecodeScope(scope.String); err != nil {
			return snip, err
		}
	}
	snip.Category = category.String
	return snip, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]snippet.Snippet, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query snippets: %w", err)
	}
	defer rows.Close()

	var results []snippet.Snippet
	for rows.Next() {
		snip, err := scanSnippet(rows)
		if err != nil {
			log.Errorf("scanning snippet row: %v", err)
			return nil, err
		}
		results = append(results, snip)
	}
	return results, rows.Err()
}
