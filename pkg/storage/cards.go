package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Card is an immutable catalog entry. Nullable columns are pointers so they
// serialize as JSON null.
type Card struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	SetID      *string  `json:"set_id"`
	SetName    *string  `json:"set_name"`
	Number     *string  `json:"number"`
	Rarity     *string  `json:"rarity"`
	Types      []string `json:"types"`
	ImageSmall *string  `json:"image_small"`
	ImageLarge *string  `json:"image_large"`
}

// ProjectedCard is a card joined with its ownership and wishlist state.
type ProjectedCard struct {
	Card
	OwnedQty   int  `json:"owned_qty"`
	Wishlisted bool `json:"wishlisted"`
}

// ProjectionColumns selects the ProjectedCard columns from cards c joined to
// collection_items ci and wishlist_items wi. Scan the result with
// ScanProjected.
const ProjectionColumns = `
	c.id,
	c.name,
	c.set_id,
	c.set_name,
	c.number,
	c.rarity,
	c.types_json,
	c.image_small,
	c.image_large,
	COALESCE(ci.qty, 0) AS owned_qty,
	CASE WHEN wi.card_id IS NULL THEN 0 ELSE 1 END AS wishlisted`

// ProjectionJoins are the joins ProjectionColumns expects.
const ProjectionJoins = `
	LEFT JOIN collection_items ci ON ci.card_id = c.id
	LEFT JOIN wishlist_items wi ON wi.card_id = c.id`

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanProjected reads one ProjectionColumns row. Extra trailing columns can
// be captured through extra.
func ScanProjected(sc Scanner, extra ...any) (ProjectedCard, error) {
	var (
		pc         ProjectedCard
		wishlisted int
	)
	card, err := scanCard(sc, append([]any{&pc.OwnedQty, &wishlisted}, extra...)...)
	if err != nil {
		return pc, err
	}
	pc.Card = card
	pc.Wishlisted = wishlisted != 0
	return pc, nil
}

// scanCard reads the nine card columns followed by extra.
func scanCard(sc Scanner, extra ...any) (Card, error) {
	var (
		card      Card
		typesJSON sql.NullString
		nullable  [6]sql.NullString
	)
	dest := []any{
		&card.ID, &card.Name, &nullable[0], &nullable[1], &nullable[2], &nullable[3],
		&typesJSON, &nullable[4], &nullable[5],
	}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return card, err
	}
	card.SetID = nullString(nullable[0])
	card.SetName = nullString(nullable[1])
	card.Number = nullString(nullable[2])
	card.Rarity = nullString(nullable[3])
	card.ImageSmall = nullString(nullable[4])
	card.ImageLarge = nullString(nullable[5])
	card.Types = TypesOrEmpty(card.ID, typesJSON)
	return card, nil
}

// DecodeTypes parses a stored types_json value. NULL or blank decodes to an
// empty list. A JSON array keeps its string elements and skips the rest;
// anything that is not a JSON array is an error.
func DecodeTypes(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return []string{}, nil
	}
	var parsed []any
	if err := json.Unmarshal([]byte(raw.String), &parsed); err != nil {
		return nil, err
	}
	types := make([]string, 0, len(parsed))
	for _, v := range parsed {
		if t, ok := v.(string); ok {
			types = append(types, t)
		}
	}
	return types, nil
}

// TypesOrEmpty decodes raw, falling back to an empty list when the stored
// value is malformed so one bad record never fails a page.
func TypesOrEmpty(cardID string, raw sql.NullString) []string {
	types, err := DecodeTypes(raw)
	if err != nil {
		logger.Debugf("card %s: ignoring malformed types %q: %v", cardID, raw.String, err)
		return []string{}
	}
	return types
}

func encodeTypes(types []string) (sql.NullString, error) {
	if types == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(types)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func toNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// UpsertCards inserts or replaces catalog cards in a single transaction and
// returns how many rows were written. The text index is not touched; rebuild
// it once the batch is in.
func (s *Store) UpsertCards(ctx context.Context, cards []Card) (int, error) {
	if len(cards) == 0 {
		return 0, nil
	}

	written := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO cards (
				id, name, set_id, set_name, number, rarity, types_json, image_small, image_large
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				set_id = excluded.set_id,
				set_name = excluded.set_name,
				number = excluded.number,
				rarity = excluded.rarity,
				types_json = excluded.types_json,
				image_small = excluded.image_small,
				image_large = excluded.image_large
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer func() {
			if err := stmt.Close(); err != nil {
				logger.Warnf("failed to close statement: %v", err)
			}
		}()

		for _, card := range cards {
			if err := ctx.Err(); err != nil {
				return err
			}
			typesJSON, err := encodeTypes(card.Types)
			if err != nil {
				return fmt.Errorf("encoding types for card %s: %w", card.ID, err)
			}
			_, err = stmt.ExecContext(ctx,
				card.ID,
				card.Name,
				toNull(card.SetID),
				toNull(card.SetName),
				toNull(card.Number),
				toNull(card.Rarity),
				typesJSON,
				toNull(card.ImageSmall),
				toNull(card.ImageLarge),
			)
			if err != nil {
				return fmt.Errorf("inserting card %s: %w", card.ID, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return written, nil
}

// GetCard returns one card with its ownership and wishlist state.
func (s *Store) GetCard(ctx context.Context, id string) (*ProjectedCard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ProjectionColumns+`
		FROM cards c`+ProjectionJoins+`
		WHERE c.id = ?`, id)

	pc, err := ScanProjected(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting card %s: %w", id, err)
	}
	return &pc, nil
}

// CountCards returns the catalog size.
func (s *Store) CountCards(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cards").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cards: %w", err)
	}
	return n, nil
}
