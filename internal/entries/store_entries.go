package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"glimpse/internal/logging"
)

const metaEmbeddingDimension = "embedding_dimension"

// InsertIfAbsent stores entry unless another entry with the same timestamp and
// filename exists. It reports whether a row was written. An empty ID is filled
// with a fresh v7 UUID. The first stored embedding fixes the vector dimension;
// later vectors of another length are dropped with a warning.
func (s *Store) InsertIfAbsent(ctx context.Context, entry *Entry) (bool, error) {
	if entry == nil {
		return false, errors.New("entry is nil")
	}
	if strings.TrimSpace(entry.Filename) == "" {
		return false, errors.New("entry filename required")
	}
	if entry.Timestamp.IsZero() {
		return false, errors.New("entry timestamp required")
	}
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return false, fmt.Errorf("generate entry id: %w", err)
		}
		entry.ID = id.String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var inserted bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		vector, err := s.admitEmbedding(ctx, tx, entry)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO entries (
                id, timestamp, app_name, title, text, embedding, page_url,
                filename, display, fingerprint, archived, archived_filename, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(timestamp, filename) DO NOTHING`,
			entry.ID,
			entry.Timestamp.UnixMilli(),
			entry.AppName,
			entry.Title,
			nullableStringPtr(entry.Text),
			encodeVector(vector),
			nullableStringPtr(entry.PageURL),
			entry.Filename,
			entry.Display,
			nullableString(entry.Fingerprint),
			boolToInt(entry.Archived),
			nullableString(entry.ArchivedFilename),
			entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = affected > 0
		if inserted && len(vector) > 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO store_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
				metaEmbeddingDimension, strconv.Itoa(len(vector)),
			); err != nil {
				return err
			}
		}
		entry.Embedding = vector
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("insert entry: %w", err)
	}
	return inserted, nil
}

// admitEmbedding returns the vector to persist for entry, or nil when its
// length disagrees with the dimension already fixed for the store.
func (s *Store) admitEmbedding(ctx context.Context, tx *sql.Tx, entry *Entry) ([]float32, error) {
	if len(entry.Embedding) == 0 {
		return nil, nil
	}
	dim, err := embeddingDimension(ctx, tx)
	if err != nil {
		return nil, err
	}
	if dim == 0 || dim == len(entry.Embedding) {
		return entry.Embedding, nil
	}
	logging.WarnWithContext(s.logger, "embedding dimension mismatch; vector dropped", "embedding_dimension_mismatch",
		logging.String(logging.FieldEntryID, entry.ID),
		logging.Int("expected_dimension", dim),
		logging.Int("actual_dimension", len(entry.Embedding)),
		logging.String(logging.FieldErrorHint, "keep embedding.model and embedding.dimensions stable for an existing database"),
		logging.String(logging.FieldImpact, "entry stored without an embedding"),
	)
	return nil, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func embeddingDimension(ctx context.Context, q queryRower) (int, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, metaEmbeddingDimension).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read embedding dimension: %w", err)
	}
	dim, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse embedding dimension %q: %w", raw, err)
	}
	return dim, nil
}

// EmbeddingDimension returns the vector length fixed by the first stored
// embedding, or 0 when none has been stored yet.
func (s *Store) EmbeddingDimension(ctx context.Context) (int, error) {
	return embeddingDimension(ensureContext(ctx), s.db)
}

// GetByID fetches one entry. Missing ids return ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// Query returns entries matching filter ordered by timestamp.
func (s *Store) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)
	if !filter.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.Since.UnixMilli())
	}
	if !filter.Until.IsZero() {
		clauses = append(clauses, "timestamp < ?")
		args = append(args, filter.Until.UnixMilli())
	}
	if filter.Archived != nil {
		clauses = append(clauses, "archived = ?")
		args = append(args, boolToInt(*filter.Archived))
	}
	if app := strings.TrimSpace(filter.AppName); app != "" {
		clauses = append(clauses, "app_name = ? COLLATE NOCASE")
		args = append(args, app)
	}
	if text := strings.TrimSpace(filter.Text); text != "" {
		pattern := "%" + escapeLike(text) + "%"
		clauses = append(clauses, `(title LIKE ? ESCAPE '\' OR text LIKE ? ESCAPE '\' OR app_name LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + entryColumns + ` FROM entries`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if filter.Descending {
		query += " ORDER BY timestamp DESC, id DESC"
	} else {
		query += " ORDER BY timestamp ASC, id ASC"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	} else if filter.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	return s.queryEntries(ctx, query, args...)
}

// Search returns the newest entries whose title, text or app name contains
// text, case-insensitively. Results are not ranked.
func (s *Store) Search(ctx context.Context, text string, limit int) ([]Entry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("search text required")
	}
	return s.Query(ctx, Filter{Text: text, Limit: limit, Descending: true})
}

// ColdEntries returns unarchived entries captured before cutoff, oldest first.
func (s *Store) ColdEntries(ctx context.Context, cutoff time.Time) ([]Entry, error) {
	return s.Query(ctx, Filter{Until: cutoff, Archived: Bool(false)})
}

// UpdateArchivalFields sets the archival state of a single entry.
func (s *Store) UpdateArchivalFields(ctx context.Context, id string, archived bool, archivedFilename string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE entries SET archived = ?, archived_filename = ? WHERE id = ?`,
		boolToInt(archived), nullableString(archivedFilename), id,
	)
	if err != nil {
		return fmt.Errorf("update archival fields: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update archival fields: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// MarkArchived applies every update in one transaction. Either all entries
// are marked or none are.
func (s *Store) MarkArchived(ctx context.Context, updates []ArchivalUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE entries SET archived = 1, archived_filename = ? WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, update := range updates {
			if strings.TrimSpace(update.ArchivedFilename) == "" {
				return fmt.Errorf("entry %s: archived filename required", update.ID)
			}
			if _, err := stmt.ExecContext(ctx, update.ArchivedFilename, update.ID); err != nil {
				return fmt.Errorf("entry %s: %w", update.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark archived: %w", err)
	}
	return nil
}

// Stats summarizes row counts and the captured time range.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var (
		stats          Stats
		oldest, newest sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `SELECT
            COUNT(1),
            COALESCE(SUM(archived), 0),
            COALESCE(SUM(CASE WHEN text IS NOT NULL AND text <> '' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN embedding IS NOT NULL THEN 1 ELSE 0 END), 0),
            MIN(timestamp),
            MAX(timestamp)
        FROM entries`).Scan(&stats.Total, &stats.Archived, &stats.WithText, &stats.WithEmbedding, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("entry stats: %w", err)
	}
	if oldest.Valid {
		stats.Oldest = time.UnixMilli(oldest.Int64)
	}
	if newest.Valid {
		stats.Newest = time.UnixMilli(newest.Int64)
	}
	dim, err := embeddingDimension(ctx, s.db)
	if err != nil {
		return Stats{}, err
	}
	stats.EmbeddingDim = dim
	return stats, nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
