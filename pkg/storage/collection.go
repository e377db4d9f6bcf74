package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CollectionEntry is an owned card with its quantity.
type CollectionEntry struct {
	Card
	Qty       int       `json:"qty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AddOwnership adds one copy of cardID to the collection, creating the record
// at qty 1 when absent, and returns the new quantity.
func (s *Store) AddOwnership(ctx context.Context, cardID string) (int, error) {
	var qty int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := cardExists(ctx, tx, cardID); err != nil {
			return err
		}
		// updated_at never moves backwards, even if the clock does
		return tx.QueryRowContext(ctx, `
			INSERT INTO collection_items (card_id, qty, updated_at)
			VALUES (?, 1, ?)
			ON CONFLICT(card_id) DO UPDATE SET
				qty = collection_items.qty + 1,
				updated_at = MAX(collection_items.updated_at + 1, excluded.updated_at)
			RETURNING qty
		`, cardID, nowMillis()).Scan(&qty)
	})
	if err != nil {
		return 0, fmt.Errorf("adding %s to collection: %w", cardID, err)
	}
	return qty, nil
}

// RemoveOwnership removes one copy of cardID and returns the remaining
// quantity. The record is deleted when the last copy goes; removing a card
// that is not owned is a no-op returning 0.
func (s *Store) RemoveOwnership(ctx context.Context, cardID string) (int, error) {
	remaining := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var qty int
		err := tx.QueryRowContext(ctx,
			"SELECT qty FROM collection_items WHERE card_id = ?", cardID,
		).Scan(&qty)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if qty <= 1 {
			_, err = tx.ExecContext(ctx, "DELETE FROM collection_items WHERE card_id = ?", cardID)
			return err
		}

		return tx.QueryRowContext(ctx, `
			UPDATE collection_items
			SET qty = qty - 1, updated_at = MAX(updated_at + 1, ?)
			WHERE card_id = ?
			RETURNING qty
		`, nowMillis(), cardID).Scan(&remaining)
	})
	if err != nil {
		return 0, fmt.Errorf("removing %s from collection: %w", cardID, err)
	}
	return remaining, nil
}

// DeleteOwnership drops every copy of cardID from the collection.
func (s *Store) DeleteOwnership(ctx context.Context, cardID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM collection_items WHERE card_id = ?", cardID); err != nil {
		return fmt.Errorf("deleting %s from collection: %w", cardID, err)
	}
	return nil
}

// OwnedQty returns how many copies of cardID are owned.
func (s *Store) OwnedQty(ctx context.Context, cardID string) (int, error) {
	var qty int
	err := s.db.QueryRowContext(ctx,
		"SELECT qty FROM collection_items WHERE card_id = ?", cardID,
	).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading qty for %s: %w", cardID, err)
	}
	return qty, nil
}

// ListCollection returns owned cards, most recently touched first.
func (s *Store) ListCollection(ctx context.Context) ([]CollectionEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			c.id, c.name, c.set_id, c.set_name, c.number, c.rarity,
			c.types_json, c.image_small, c.image_large,
			ci.qty, ci.updated_at
		FROM collection_items ci
		JOIN cards c ON c.id = ci.card_id
		ORDER BY ci.updated_at DESC, c.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	entries := []CollectionEntry{}
	for rows.Next() {
		var (
			e         CollectionEntry
			updatedAt int64
		)
		card, err := scanCard(rows, &e.Qty, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning collection row: %w", err)
		}
		e.Card = card
		e.UpdatedAt = time.UnixMilli(updatedAt)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
