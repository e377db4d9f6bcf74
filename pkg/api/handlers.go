package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rubiojr/cardex/pkg/realtime"
	"github.com/rubiojr/cardex/pkg/search"
	"github.com/rubiojr/cardex/pkg/version"
)

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	params := search.ParseSearchParams(r.URL.Query())

	results, err := s.search.Search(r.Context(), params)
	if err != nil {
		s.writeStoreError(w, r, "Search failed", err)
		return
	}

	s.writeJSON(w, http.StatusOK, SearchResponse{
		Data:    results.Rows,
		Page:    results.Page,
		Limit:   results.Limit,
		Sort:    results.Sort,
		HasMore: results.HasMore,
		HasText: results.HasText,
	})
}

func (s *Server) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))

	cards, err := s.search.Suggest(r.Context(), query.Get("q"), limit)
	if err != nil {
		s.writeStoreError(w, r, "Suggest failed", err)
		return
	}

	s.writeJSON(w, http.StatusOK, CardsResponse{Data: cards})
}

func (s *Server) HandleFilters(w http.ResponseWriter, r *http.Request) {
	f, err := s.facets.Facets(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "Failed to load filters", err)
		return
	}

	s.writeJSON(w, http.StatusOK, FiltersResponse{Data: f})
}

func (s *Server) HandleSuggestSets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))

	sets, err := s.facets.SuggestSets(r.Context(), query.Get("q"), limit)
	if err != nil {
		s.writeStoreError(w, r, "Failed to suggest sets", err)
		return
	}

	s.writeJSON(w, http.StatusOK, SetsResponse{Data: sets})
}

func (s *Server) HandleCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.store.GetCard(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, "Failed to load card", err)
		return
	}

	s.writeJSON(w, http.StatusOK, CardResponse{Data: card})
}

func (s *Server) HandleListCollection(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListCollection(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "Failed to list collection", err)
		return
	}

	s.writeJSON(w, http.StatusOK, CollectionResponse{Data: entries, Count: len(entries)})
}

func (s *Server) HandleAddCollection(w http.ResponseWriter, r *http.Request) {
	cardID := r.PathValue("id")

	qty, err := s.store.AddOwnership(r.Context(), cardID)
	if err != nil {
		s.writeStoreError(w, r, "Failed to add card", err)
		return
	}
	s.search.InvalidateCache()
	s.publish(realtime.CollectionChanged(cardID, qty))

	s.writeJSON(w, http.StatusOK, OwnershipResponse{CardID: cardID, Qty: qty})
}

// HandleRemoveCollection removes one copy, or every copy with ?all=1.
func (s *Server) HandleRemoveCollection(w http.ResponseWriter, r *http.Request) {
	cardID := r.PathValue("id")

	var (
		qty int
		err error
	)
	if all := r.URL.Query().Get("all"); all == "1" || strings.EqualFold(all, "true") {
		err = s.store.DeleteOwnership(r.Context(), cardID)
	} else {
		qty, err = s.store.RemoveOwnership(r.Context(), cardID)
	}
	if err != nil {
		s.writeStoreError(w, r, "Failed to remove card", err)
		return
	}
	s.search.InvalidateCache()
	s.publish(realtime.CollectionChanged(cardID, qty))

	s.writeJSON(w, http.StatusOK, OwnershipResponse{CardID: cardID, Qty: qty})
}

func (s *Server) HandleListWishlist(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListWishlist(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "Failed to list wishlist", err)
		return
	}

	s.writeJSON(w, http.StatusOK, WishlistResponse{Data: entries, Count: len(entries)})
}

func (s *Server) HandleAddWishlist(w http.ResponseWriter, r *http.Request) {
	var req WishlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	req.CardID = strings.TrimSpace(req.CardID)
	if req.CardID == "" {
		s.writeError(w, http.StatusBadRequest, "Missing cardId", "cardId is required")
		return
	}

	var priority *int
	if req.Priority != nil && !math.IsNaN(*req.Priority) {
		p := int(max(math.MinInt32, min(math.MaxInt32, math.Floor(*req.Priority))))
		priority = &p
	}

	entry, err := s.store.AddWishlist(r.Context(), req.CardID, priority, req.Notes)
	if err != nil {
		s.writeStoreError(w, r, "Failed to update wishlist", err)
		return
	}
	s.search.InvalidateCache()
	s.publish(realtime.WishlistChanged(req.CardID, true, entry.Priority))

	s.writeJSON(w, http.StatusOK, WishlistItemResponse{Data: entry})
}

func (s *Server) HandleRemoveWishlist(w http.ResponseWriter, r *http.Request) {
	cardID := r.PathValue("id")

	if err := s.store.RemoveWishlist(r.Context(), cardID); err != nil {
		s.writeStoreError(w, r, "Failed to remove card", err)
		return
	}
	s.search.InvalidateCache()
	s.publish(realtime.WishlistChanged(cardID, false, 0))

	s.writeJSON(w, http.StatusOK, RemovedResponse{CardID: cardID, Removed: true})
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "Failed to get stats", err)
		return
	}
	indexed, err := s.index.Count(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "Failed to get stats", err)
		return
	}

	s.writeJSON(w, http.StatusOK, StatsResponse{Stats: stats, Indexed: indexed})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
