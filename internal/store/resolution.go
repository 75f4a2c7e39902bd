package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ResolutionEntry is one persisted identity-resolution cache row (spec.md
// §6.3 "Resolution entry"). ExpiresAt is the zero time for no expiry.
type ResolutionEntry struct {
	Key        string
	ISIN       string // empty when unresolved
	Confidence float64
	Source     string
	ExpiresAt  time.Time
}

// SaveResolution upserts one resolution entry, persisting across restarts
// (spec.md §3 "Lifecycles").
func (s *Store) SaveResolution(ctx context.Context, e ResolutionEntry) error {
	var expiresAt interface{}
	if !e.ExpiresAt.IsZero() {
		expiresAt = e.ExpiresAt
	}
	var isin interface{}
	if e.ISIN != "" {
		isin = e.ISIN
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolution_entries (key, isin, confidence, source, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			isin = excluded.isin,
			confidence = excluded.confidence,
			source = excluded.source,
			expires_at = excluded.expires_at`,
		e.Key, isin, e.Confidence, e.Source, expiresAt)
	if err != nil {
		return fmt.Errorf("store: save resolution entry %s: %w", e.Key, err)
	}
	return nil
}

// LoadResolution returns the entry for key, including expired entries — the
// caller (internal/identity) decides whether an expired row still counts as
// a cache hit for its TTL semantics. Returns sql.ErrNoRows if absent.
func (s *Store) LoadResolution(ctx context.Context, key string) (ResolutionEntry, error) {
	var row struct {
		Key        string         `db:"key"`
		ISIN       sql.NullString `db:"isin"`
		Confidence float64        `db:"confidence"`
		Source     string         `db:"source"`
		ExpiresAt  sql.NullTime   `db:"expires_at"`
	}
	if err := s.db.GetContext(ctx, &row,
		`SELECT key, isin, confidence, source, expires_at FROM resolution_entries WHERE key = ?`, key); err != nil {
		return ResolutionEntry{}, err
	}

	entry := ResolutionEntry{Key: row.Key, Confidence: row.Confidence, Source: row.Source}
	if row.ISIN.Valid {
		entry.ISIN = row.ISIN.String
	}
	if row.ExpiresAt.Valid {
		entry.ExpiresAt = row.ExpiresAt.Time
	}
	return entry, nil
}

// LoadAllResolutions returns every persisted entry, used to warm the
// in-memory internal/cache.TTLCache index at startup.
func (s *Store) LoadAllResolutions(ctx context.Context) ([]ResolutionEntry, error) {
	var rows []struct {
		Key        string         `db:"key"`
		ISIN       sql.NullString `db:"isin"`
		Confidence float64        `db:"confidence"`
		Source     string         `db:"source"`
		ExpiresAt  sql.NullTime   `db:"expires_at"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT key, isin, confidence, source, expires_at FROM resolution_entries`); err != nil {
		return nil, fmt.Errorf("store: load all resolution entries: %w", err)
	}

	entries := make([]ResolutionEntry, 0, len(rows))
	for _, r := range rows {
		entry := ResolutionEntry{Key: r.Key, Confidence: r.Confidence, Source: r.Source}
		if r.ISIN.Valid {
			entry.ISIN = r.ISIN.String
		}
		if r.ExpiresAt.Valid {
			entry.ExpiresAt = r.ExpiresAt.Time
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// PruneExpiredResolutions deletes every resolution entry whose expiry has
// passed, keeping the on-disk cache bounded.
func (s *Store) PruneExpiredResolutions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM resolution_entries WHERE expires_at IS NOT NULL AND expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("store: prune expired resolutions: %w", err)
	}
	return result.RowsAffected()
}
