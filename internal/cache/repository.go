package cache

import (
	"context"
	"fmt"

	"github.com/linkitmedia/signage-core/internal/infrastructure/database"
)

// Item is a cached playlist entry as stored locally.
// Position preserves playlist order; Duration is in milliseconds.
type Item struct {
	URL      string
	Position int
	Type     string
	Duration int
}

// Repository persists the playlist mirror and device preferences in the
// local SQLite store. All methods are safe for concurrent use; SQLite's
// single-writer pool serializes writes.
type Repository struct {
	db *database.DB
}

// NewRepository creates a repository backed by the given database.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// ReadAll returns the cached playlist in position order.
//
// Returns:
//   - []Item: Cached items, empty slice when the cache is empty
//   - error: If the query fails
func (r *Repository) ReadAll(ctx context.Context) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT url, position, type, duration FROM media_items ORDER BY position",
	)
	if err != nil {
		return nil, fmt.Errorf("reading cached items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.URL, &item.Position, &item.Type, &item.Duration); err != nil {
			return nil, fmt.Errorf("scanning cached item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cached items: %w", err)
	}
	return items, nil
}

// ReplaceAll atomically replaces the entire cached playlist.
//
// The delete and inserts run in one transaction, so a reader sees either the
// previous playlist or the new one, never a partial mix. Positions are
// assigned from slice order. A playlist may repeat an item; the url key
// keeps the last occurrence.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - items: New playlist contents; an empty slice clears the cache
//
// Returns:
//   - error: If the transaction fails (previous contents are kept)
func (r *Repository) ReplaceAll(ctx context.Context, items []Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting replace transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM media_items"); err != nil {
		return fmt.Errorf("clearing cached items: %w", err)
	}

	for pos, item := range items {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO media_items (url, position, type, duration) VALUES (?, ?, ?, ?)",
			item.URL, pos, item.Type, item.Duration,
		); err != nil {
			return fmt.Errorf("inserting cached item %q: %w", item.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing replace: %w", err)
	}
	return nil
}

// Clear removes all cached playlist items.
// Used when the device's pairing is revoked.
func (r *Repository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM media_items"); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// GetPref returns a stored preference value, or "" if the key is unset.
// Preferences never store empty values, so "" unambiguously means absent.
func (r *Repository) GetPref(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM device_prefs WHERE key = ?", key,
	).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading pref %q: %w", key, err)
	}
	return value, nil
}

// SetPref stores a preference value, replacing any existing one.
func (r *Repository) SetPref(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO device_prefs (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	); err != nil {
		return fmt.Errorf("writing pref %q: %w", key, err)
	}
	return nil
}

// DeletePref removes a preference. Deleting an absent key is not an error.
func (r *Repository) DeletePref(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM device_prefs WHERE key = ?", key,
	); err != nil {
		return fmt.Errorf("deleting pref %q: %w", key, err)
	}
	return nil
}
