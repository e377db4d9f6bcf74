package search

import (
	"net/url"
	"strings"
	"testing"
)

func TestLooksLikeSetID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"sv3pt5", true},
		{"base1", true},
		{"151", true},
		{"SV3PT5", true},
		{"Sv3Pt5", true},
		{"  base1  ", true},
		{strings.Repeat("a", 20), true},
		{strings.Repeat("a", 21), false},
		{"", false},
		{"   ", false},
		{"Base Set", false},
		{"sv3.5", false},
		{"sv-3", false},
		{"base_1", false},
		{"Scarlet & Violet: 151", false},
		{"pokémon", false},
	}
	for _, tt := range tests {
		if got := LooksLikeSetID(tt.input); got != tt.want {
			t.Errorf("LooksLikeSetID(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseSearchParams(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected SearchParams
	}{
		{
			name:     "defaults when no params",
			query:    "",
			expected: SearchParams{},
		},
		{
			name:  "basic query",
			query: "q=char&page=2&limit=50",
			expected: SearchParams{
				Text:  "char",
				Page:  2,
				Limit: 50,
			},
		},
		{
			name:     "text alias",
			query:    "text=blast",
			expected: SearchParams{Text: "blast"},
		},
		{
			name:  "filters",
			query: "set=base1&rarity=Rare+Holo&type=Fire&owned=1&wishlisted=true&sort=Set",
			expected: SearchParams{
				Set:        "base1",
				Rarity:     "Rare Holo",
				Type:       "Fire",
				Owned:      true,
				Wishlisted: true,
				Sort:       "set",
			},
		},
		{
			name:     "flags other than 1 or true are off",
			query:    "owned=yes&wishlisted=0",
			expected: SearchParams{},
		},
		{
			name:     "limit clamped high",
			query:    "limit=500",
			expected: SearchParams{Limit: 60},
		},
		{
			name:     "limit clamped low",
			query:    "limit=0",
			expected: SearchParams{Limit: 1},
		},
		{
			name:     "page clamped",
			query:    "page=-4",
			expected: SearchParams{Page: 1},
		},
		{
			name:     "page upper bound",
			query:    "page=1e9",
			expected: SearchParams{Page: 10000},
		},
		{
			name:     "fractions floored",
			query:    "page=2.9&limit=10.5",
			expected: SearchParams{Page: 2, Limit: 10},
		},
		{
			name:     "invalid numbers use defaults",
			query:    "page=abc&limit=NaN",
			expected: SearchParams{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("Failed to parse query: %v", err)
			}
			got := ParseSearchParams(values)
			if got != tt.expected {
				t.Errorf("ParseSearchParams(%q) = %+v, want %+v", tt.query, got, tt.expected)
			}
		})
	}
}

func TestNewPlanPagination(t *testing.T) {
	tests := []struct {
		params                      SearchParams
		wantPage, wantLimit, offset int
	}{
		{SearchParams{}, 1, 30, 0},
		{SearchParams{Page: 3, Limit: 10}, 3, 10, 20},
		{SearchParams{Page: 99999, Limit: 100}, 10000, 60, 9999 * 60},
		{SearchParams{Page: -1, Limit: -1}, 1, 1, 0},
	}
	for _, tt := range tests {
		p := NewPlan(tt.params)
		if p.Page != tt.wantPage || p.Limit != tt.wantLimit || p.Offset != tt.offset {
			t.Errorf("NewPlan(%+v) page/limit/offset = %d/%d/%d, want %d/%d/%d",
				tt.params, p.Page, p.Limit, p.Offset, tt.wantPage, tt.wantLimit, tt.offset)
		}
	}
}

func TestNewPlanText(t *testing.T) {
	tests := []struct {
		text        string
		hasText     bool
		matchesNone bool
	}{
		{"", false, false},
		{"   ", false, false},
		{"a", true, true},
		{"  a  ", true, true},
		{"ab", true, false},
		{"é", true, true},
		{"!!", true, true},
		{`""`, true, true},
		{"char", true, false},
	}
	for _, tt := range tests {
		p := NewPlan(SearchParams{Text: tt.text})
		if p.HasText() != tt.hasText || p.MatchesNothing() != tt.matchesNone {
			t.Errorf("NewPlan(text=%q) hasText=%v matchesNothing=%v, want %v/%v",
				tt.text, p.HasText(), p.MatchesNothing(), tt.hasText, tt.matchesNone)
		}
	}
}

func TestResolveSort(t *testing.T) {
	tests := []struct {
		text, sort, want string
	}{
		{"char", "", SortRelevance},
		{"char", "relevance", SortRelevance},
		{"char", "RELEVANCE", SortRelevance},
		{"char", "name", SortName},
		{"char", "set", SortSet},
		{"char", "bogus", SortName},
		{"", "", SortName},
		{"", "relevance", SortName},
		{"", "rarity", SortRarity},
		{"", "number", SortNumber},
		{"   ", "", SortName},
	}
	for _, tt := range tests {
		p := NewPlan(SearchParams{Text: tt.text, Sort: tt.sort})
		if p.Sort != tt.want {
			t.Errorf("sort for text=%q sort=%q = %s, want %s", tt.text, tt.sort, p.Sort, tt.want)
		}
		if !strings.HasSuffix(p.OrderBy(), "c.id ASC") {
			t.Errorf("order %q is not tie-broken by id", p.OrderBy())
		}
	}
}

func TestSetPredicateShape(t *testing.T) {
	byID := setPredicate("sv3pt5")
	if !strings.HasPrefix(byID.SQL, "(c.set_id = ?") {
		t.Errorf("id-shaped input should check set_id first: %s", byID.SQL)
	}
	if byID.Args[2] != "%sv3pt5%" {
		t.Errorf("unexpected contains arg %v", byID.Args[2])
	}

	byName := setPredicate("Base_Set 100%")
	if !strings.HasPrefix(byName.SQL, "(c.set_name = ?") {
		t.Errorf("name input should check set_name first: %s", byName.SQL)
	}
	if byName.Args[1] != `%Base\_Set 100\%%` {
		t.Errorf("LIKE wildcards not escaped: %v", byName.Args[1])
	}
}

func TestPlanKey(t *testing.T) {
	a := NewPlan(SearchParams{Text: "char!", Page: 1})
	b := NewPlan(SearchParams{Text: " char ", Limit: 30})
	if a.Key() != b.Key() {
		t.Errorf("equivalent plans have different keys: %q vs %q", a.Key(), b.Key())
	}

	c := NewPlan(SearchParams{Text: "char", Owned: true})
	if a.Key() == c.Key() {
		t.Error("owned filter should change the key")
	}
	d := NewPlan(SearchParams{Text: "char", Page: 2})
	if a.Key() == d.Key() {
		t.Error("page should change the key")
	}
}
