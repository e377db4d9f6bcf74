// Package search is the cardex card search engine.
//
// # Overview
//
// A search request travels through two stages:
//
//   - Planning: SearchParams, usually parsed from an HTTP query string with
//     ParseSearchParams, are normalized by NewPlan into a Plan. Planning never
//     fails. Out of range or malformed values are clamped or defaulted, text
//     shorter than two characters runs no text search and matches nothing,
//     and the set filter input is classified as an id or a display name.
//   - Execution: SearchService.Execute runs a Plan against the store. With
//     text, the full text index supplies ranked candidates and the plan's
//     predicates are applied in the same query. Without text, predicates run
//     straight against the catalog.
//
// Every result row carries the card's ownership quantity and wishlist flag,
// whether or not those were used as filters.
//
// # Ordering
//
// Every ordering is total. Relevance is used when text is present and the
// sort is empty or "relevance"; it is tie-broken by name then id. Field sorts
// (name, set, rarity, number) are ascending and also tie-broken by name then
// id. Anything else orders by name then id. Pagination is offset based, so a
// total order is what keeps pages from overlapping.
//
// # Has more
//
// SearchResults.HasMore is true when the page came back full. It is a
// heuristic: a full last page reports more even though the next page will be
// empty.
//
// # Caching
//
// EnableCache turns on a small LRU of recent results keyed by the normalized
// plan. Entries expire after a TTL, and InvalidateCache drops everything; the
// API calls it after every collection or wishlist mutation so ownership flags
// are never stale for longer than a request. Concurrent misses for the same
// plan share a single query.
//
// # Usage
//
//	service := search.NewSearchService(store)
//	params := search.ParseSearchParams(r.URL.Query())
//	results, err := service.Search(ctx, params)
package search
