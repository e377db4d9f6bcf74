package api

import (
	"time"

	"github.com/rubiojr/cardex/pkg/facets"
	"github.com/rubiojr/cardex/pkg/storage"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type SearchResponse struct {
	Data    []storage.ProjectedCard `json:"data"`
	Page    int                     `json:"page"`
	Limit   int                     `json:"limit"`
	Sort    string                  `json:"sort"`
	HasMore bool                    `json:"has_more"`
	HasText bool                    `json:"has_text"`
}

type CardsResponse struct {
	Data []storage.ProjectedCard `json:"data"`
}

type CardResponse struct {
	Data *storage.ProjectedCard `json:"data"`
}

type FiltersResponse struct {
	Data *facets.Facets `json:"data"`
}

type SetsResponse struct {
	Data []facets.SetSummary `json:"data"`
}

type CollectionResponse struct {
	Data  []storage.CollectionEntry `json:"data"`
	Count int                       `json:"count"`
}

type OwnershipResponse struct {
	CardID string `json:"card_id"`
	Qty    int    `json:"qty"`
}

type WishlistRequest struct {
	CardID   string   `json:"cardId"`
	Priority *float64 `json:"priority,omitempty"`
	Notes    *string  `json:"notes,omitempty"`
}

type WishlistResponse struct {
	Data  []storage.WishlistEntry `json:"data"`
	Count int                     `json:"count"`
}

type WishlistItemResponse struct {
	Data *storage.WishlistEntry `json:"data"`
}

type RemovedResponse struct {
	CardID  string `json:"card_id"`
	Removed bool   `json:"removed"`
}

type StatsResponse struct {
	*storage.Stats
	Indexed int `json:"indexed"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
