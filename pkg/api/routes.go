package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/suggest", s.HandleSuggest)
	mux.HandleFunc("GET /api/filters", s.HandleFilters)
	mux.HandleFunc("GET /api/filters/sets", s.HandleSuggestSets)
	mux.HandleFunc("GET /api/cards/{id}", s.HandleCard)

	mux.HandleFunc("GET /api/collection", s.HandleListCollection)
	mux.HandleFunc("POST /api/collection/{id}", s.HandleAddCollection)
	mux.HandleFunc("DELETE /api/collection/{id}", s.HandleRemoveCollection)

	mux.HandleFunc("GET /api/wishlist", s.HandleListWishlist)
	mux.HandleFunc("POST /api/wishlist", s.HandleAddWishlist)
	mux.HandleFunc("DELETE /api/wishlist/{id}", s.HandleRemoveWishlist)

	mux.HandleFunc("GET /api/stats", s.HandleStats)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
