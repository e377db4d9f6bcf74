package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = 2
	// WishlistListLimit caps ListWishlist.
	WishlistListLimit = 500
)

// WishlistEntry is a wishlisted card.
type WishlistEntry struct {
	Card
	Priority int       `json:"priority"`
	Notes    *string   `json:"notes"`
	AddedAt  time.Time `json:"added_at"`
}

// ClampPriority forces p into [MinPriority, MaxPriority]; nil yields
// DefaultPriority.
func ClampPriority(p *int) int {
	if p == nil {
		return DefaultPriority
	}
	return max(MinPriority, min(MaxPriority, *p))
}

// AddWishlist upserts cardID on the wishlist. Priority is clamped, and
// added_at is refreshed on every call, not only the first.
func (s *Store) AddWishlist(ctx context.Context, cardID string, priority *int, notes *string) (*WishlistEntry, error) {
	p := ClampPriority(priority)
	addedAt := nowMillis()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := cardExists(ctx, tx, cardID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO wishlist_items (card_id, priority, notes, added_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(card_id) DO UPDATE SET
				priority = excluded.priority,
				notes = excluded.notes,
				added_at = excluded.added_at
		`, cardID, p, toNull(notes), addedAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("adding %s to wishlist: %w", cardID, err)
	}

	return &WishlistEntry{
		Card:     Card{ID: cardID},
		Priority: p,
		Notes:    notes,
		AddedAt:  time.UnixMilli(addedAt),
	}, nil
}

// RemoveWishlist deletes the wishlist record for cardID, if any.
func (s *Store) RemoveWishlist(ctx context.Context, cardID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM wishlist_items WHERE card_id = ?", cardID); err != nil {
		return fmt.Errorf("removing %s from wishlist: %w", cardID, err)
	}
	return nil
}

// ListWishlist returns wishlisted cards, newest first, capped at
// WishlistListLimit.
func (s *Store) ListWishlist(ctx context.Context) ([]WishlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			c.id, c.name, c.set_id, c.set_name, c.number, c.rarity,
			c.types_json, c.image_small, c.image_large,
			wi.priority, wi.notes, wi.added_at
		FROM wishlist_items wi
		JOIN cards c ON c.id = wi.card_id
		ORDER BY wi.added_at DESC, c.id ASC
		LIMIT ?
	`, WishlistListLimit)
	if err != nil {
		return nil, fmt.Errorf("querying wishlist: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	entries := []WishlistEntry{}
	for rows.Next() {
		var (
			e       WishlistEntry
			notes   sql.NullString
			addedAt int64
		)
		card, err := scanCard(rows, &e.Priority, &notes, &addedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning wishlist row: %w", err)
		}
		e.Card = card
		e.Notes = nullString(notes)
		e.AddedAt = time.UnixMilli(addedAt)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
