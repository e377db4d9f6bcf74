package search

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 30
	MaxLimit     = 60
	DefaultPage  = 1
	MaxPage      = 10000
	// MinTextLength is the shortest trimmed text that triggers a text search.
	MinTextLength = 2
)

// Sort values understood by the planner.
const (
	SortRelevance = "relevance"
	SortName      = "name"
	SortSet       = "set"
	SortRarity    = "rarity"
	SortNumber    = "number"
)

// SearchParams is a raw search request. Zero values mean "not given".
type SearchParams struct {
	Text       string
	Set        string
	Rarity     string
	Type       string
	Owned      bool
	Wishlisted bool
	Sort       string
	// Page is 1-based; 0 selects DefaultPage.
	Page int
	// Limit is the page size; 0 selects DefaultLimit.
	Limit int
}

// ParseSearchParams reads search parameters from an HTTP query string. It
// never fails: unparseable numbers fall back to their defaults and numbers out
// of range are clamped.
//
// Supported parameters:
//   - q or text: free text query
//   - set, rarity, type: filters
//   - owned, wishlisted: "1" or "true" enables the filter
//   - sort: name, set, rarity, number or relevance
//   - page, limit: pagination, fractional values are floored
func ParseSearchParams(queryParams map[string][]string) SearchParams {
	get := func(key string) string {
		if v := queryParams[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	params := SearchParams{
		Text:       get("q"),
		Set:        get("set"),
		Rarity:     get("rarity"),
		Type:       get("type"),
		Owned:      parseFlag(get("owned")),
		Wishlisted: parseFlag(get("wishlisted")),
		Sort:       strings.ToLower(get("sort")),
	}
	if params.Text == "" {
		params.Text = get("text")
	}

	if n, ok := parseNumber(get("page")); ok {
		params.Page = clamp(n, DefaultPage, MaxPage)
	}
	if n, ok := parseNumber(get("limit")); ok {
		params.Limit = clamp(n, 1, MaxLimit)
	}

	return params
}

func parseFlag(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

// parseNumber floors a decimal number, saturating at the int range.
func parseNumber(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	f = math.Floor(f)
	switch {
	case f > math.MaxInt32:
		return math.MaxInt32, true
	case f < math.MinInt32:
		return math.MinInt32, true
	}
	return int(f), true
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}
