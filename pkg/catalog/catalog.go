// Package catalog imports a pokemon-tcg-data checkout into the store.
//
// The expected layout is the one published by the upstream project:
//
//	<dir>/sets/en.json      array of {id, name, ...}
//	<dir>/cards/en/*.json   one file per set
//
// Card files may hold a bare array of cards or wrap it in a "data" or
// "cards" property. Cards without an id or a name are skipped. A card's set
// id is the part of its id before the first hyphen, falling back to the set
// segment of its image URL, and its set name comes from sets/en.json.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rubiojr/cardex/pkg/log"
	"github.com/rubiojr/cardex/pkg/storage"
)

var logger = log.ForService("catalog")

// ErrNoCardsDir is returned when the catalog directory has no cards/en.
var ErrNoCardsDir = errors.New("cards directory not found")

var imageSetPattern = regexp.MustCompile(`(?i)images\.pokemontcg\.io/([^/]+)/`)

// SetsPath returns the set list location inside a catalog checkout.
func SetsPath(dir string) string {
	return filepath.Join(dir, "sets", "en.json")
}

// CardsDir returns the card files location inside a catalog checkout.
func CardsDir(dir string) string {
	return filepath.Join(dir, "cards", "en")
}

// LoadSetNames reads the set id to name map. A missing file is not an error:
// cards are imported without set names.
func LoadSetNames(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warnf("sets file not found: %s (set names will be empty)", path)
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sets file: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing sets file %s: %w", path, err)
	}
	entries, ok := raw.([]any)
	if !ok {
		logger.Warnf("sets file %s is not an array, ignoring it", path)
		return map[string]string{}, nil
	}

	names := make(map[string]string, len(entries))
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		id, name := trimmed(obj["id"]), trimmed(obj["name"])
		if id != "" && name != "" {
			names[id] = name
		}
	}
	return names, nil
}

// CardFiles lists the JSON card files in dir, sorted by name.
func CardFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoCardsDir, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading cards directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ParseCards decodes one card file. It returns the importable cards and the
// number of entries skipped for lacking an id or a name.
func ParseCards(data []byte, setNames map[string]string) ([]storage.Card, int, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, err
	}

	var cards []storage.Card
	skipped := 0
	for _, entry := range cardEntries(doc) {
		obj, ok := entry.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		card, ok := toCard(obj, setNames)
		if !ok {
			skipped++
			continue
		}
		cards = append(cards, card)
	}
	return cards, skipped, nil
}

// cardEntries unwraps the supported file shapes.
func cardEntries(doc any) []any {
	switch v := doc.(type) {
	case []any:
		return v
	case map[string]any:
		if data, ok := v["data"].([]any); ok {
			return data
		}
		if cards, ok := v["cards"].([]any); ok {
			return cards
		}
	}
	return nil
}

func toCard(obj map[string]any, setNames map[string]string) (storage.Card, bool) {
	id, name := trimmed(obj["id"]), trimmed(obj["name"])
	if id == "" || name == "" {
		return storage.Card{}, false
	}

	card := storage.Card{
		ID:     id,
		Name:   name,
		Number: optional(obj["number"]),
		Rarity: optional(obj["rarity"]),
	}

	if images, ok := obj["images"].(map[string]any); ok {
		card.ImageSmall = optional(images["small"])
		card.ImageLarge = optional(images["large"])
	}

	if types, ok := obj["types"].([]any); ok {
		card.Types = make([]string, 0, len(types))
		for _, t := range types {
			if s, ok := t.(string); ok {
				card.Types = append(card.Types, s)
			}
		}
	}

	if setID := InferSetID(id, card.ImageSmall, card.ImageLarge); setID != "" {
		card.SetID = &setID
		if setName, ok := setNames[setID]; ok {
			card.SetName = &setName
		}
	}

	return card, true
}

// InferSetID derives a set id from a card id ("mcd14-5" is set "mcd14"),
// falling back to the set segment of an image URL.
func InferSetID(cardID string, images ...*string) string {
	prefix, _, _ := strings.Cut(cardID, "-")
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		return prefix
	}
	for _, img := range images {
		if img == nil {
			continue
		}
		if m := imageSetPattern.FindStringSubmatch(*img); m != nil {
			if id := strings.TrimSpace(m[1]); id != "" {
				return id
			}
		}
	}
	return ""
}

func trimmed(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func optional(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
