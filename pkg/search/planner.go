package search

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rubiojr/cardex/pkg/index"
)

// MaxSetIDLength is the longest input LooksLikeSetID accepts.
const MaxSetIDLength = 20

var setIDPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// LooksLikeSetID reports whether a set filter value is shaped like a catalog
// set identifier ("base1", "sv3pt5", "151"): non-empty, at most
// MaxSetIDLength characters, ASCII letters and digits only. Anything else is
// treated as a set display name or a fragment of one.
func LooksLikeSetID(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > MaxSetIDLength {
		return false
	}
	return setIDPattern.MatchString(v)
}

// Predicate is one SQL condition over cards c, collection_items ci and
// wishlist_items wi, with its bind arguments.
type Predicate struct {
	SQL  string
	Args []any
}

// Plan is a normalized search request.
type Plan struct {
	// Text is the trimmed text query, empty when absent.
	Text string
	// Tokens is Text tokenized for the index, nil when Text is shorter than
	// MinTextLength. A plan with Text but no Tokens matches nothing.
	Tokens     []string
	Set        string
	Rarity     string
	Type       string
	Owned      bool
	Wishlisted bool
	// Sort is the resolved order: relevance, name, set, rarity or number.
	Sort       string
	Page       int
	Limit      int
	Offset     int
	Predicates []Predicate
}

// NewPlan normalizes params. It never fails.
func NewPlan(params SearchParams) Plan {
	p := Plan{
		Set:        strings.TrimSpace(params.Set),
		Rarity:     strings.TrimSpace(params.Rarity),
		Type:       strings.TrimSpace(params.Type),
		Owned:      params.Owned,
		Wishlisted: params.Wishlisted,
		Page:       DefaultPage,
		Limit:      DefaultLimit,
	}

	if text := strings.TrimSpace(params.Text); text != "" {
		p.Text = text
		if utf8.RuneCountInString(text) >= MinTextLength {
			p.Tokens = index.Tokenize(text)
		}
	}

	if params.Page != 0 {
		p.Page = clamp(params.Page, DefaultPage, MaxPage)
	}
	if params.Limit != 0 {
		p.Limit = clamp(params.Limit, 1, MaxLimit)
	}
	p.Offset = (p.Page - 1) * p.Limit

	p.Sort = resolveSort(p.HasText(), strings.ToLower(strings.TrimSpace(params.Sort)))
	p.Predicates = buildPredicates(p)

	return p
}

// HasText reports whether the plan carries a text query.
func (p Plan) HasText() bool {
	return p.Text != ""
}

// MatchesNothing reports whether the text query is too short or cleaned down
// to nothing. Such a plan returns no rows rather than the whole catalog.
func (p Plan) MatchesNothing() bool {
	return p.HasText() && len(p.Tokens) == 0
}

// Key identifies the plan's result set for caching. Plans with the same key
// return the same rows from the same data.
func (p Plan) Key() string {
	parts := []string{
		strings.Join(p.Tokens, " "),
		strconv.FormatBool(p.HasText()),
		p.Set,
		p.Rarity,
		p.Type,
		strconv.FormatBool(p.Owned),
		strconv.FormatBool(p.Wishlisted),
		p.Sort,
		strconv.Itoa(p.Page),
		strconv.Itoa(p.Limit),
	}
	return strings.Join(parts, "\x1f")
}

func resolveSort(hasText bool, sort string) string {
	switch sort {
	case SortName, SortSet, SortRarity, SortNumber:
		return sort
	case "", SortRelevance:
		if hasText {
			return SortRelevance
		}
	}
	return SortName
}

// OrderBy returns the ORDER BY list for the plan. Relevance expects a score
// column in the select list.
func (p Plan) OrderBy() string {
	switch p.Sort {
	case SortRelevance:
		return "score DESC, c.name ASC, c.id ASC"
	case SortSet:
		return "c.set_name ASC, c.name ASC, c.id ASC"
	case SortRarity:
		return "c.rarity ASC, c.name ASC, c.id ASC"
	case SortNumber:
		return "c.number ASC, c.name ASC, c.id ASC"
	default:
		return "c.name ASC, c.id ASC"
	}
}

func buildPredicates(p Plan) []Predicate {
	var preds []Predicate

	if p.Set != "" {
		preds = append(preds, setPredicate(p.Set))
	}
	if p.Rarity != "" {
		preds = append(preds, Predicate{SQL: "c.rarity = ?", Args: []any{p.Rarity}})
	}
	if p.Type != "" {
		// malformed or non-array types_json counts as no types
		preds = append(preds, Predicate{
			SQL: `EXISTS (
				SELECT 1 FROM json_each(
					CASE WHEN json_valid(c.types_json)
						THEN CASE WHEN json_type(c.types_json) = 'array' THEN c.types_json ELSE '[]' END
						ELSE '[]'
					END
				) WHERE json_each.value = ?
			)`,
			Args: []any{p.Type},
		})
	}
	if p.Owned {
		preds = append(preds, Predicate{SQL: "COALESCE(ci.qty, 0) > 0"})
	}
	if p.Wishlisted {
		preds = append(preds, Predicate{SQL: "wi.card_id IS NOT NULL"})
	}

	return preds
}

// setPredicate matches the set by id, exact display name or display name
// fragment. The order of the alternatives follows the input's shape.
func setPredicate(set string) Predicate {
	contains := "%" + escapeLike(set) + "%"
	if LooksLikeSetID(set) {
		return Predicate{
			SQL:  `(c.set_id = ? OR c.set_name = ? OR c.set_name LIKE ? ESCAPE '\')`,
			Args: []any{set, set, contains},
		}
	}
	return Predicate{
		SQL:  `(c.set_name = ? OR c.set_name LIKE ? ESCAPE '\' OR c.set_id = ?)`,
		Args: []any{set, contains, set},
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
