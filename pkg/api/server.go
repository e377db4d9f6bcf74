package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rubiojr/cardex/pkg/facets"
	"github.com/rubiojr/cardex/pkg/index"
	"github.com/rubiojr/cardex/pkg/log"
	"github.com/rubiojr/cardex/pkg/realtime"
	"github.com/rubiojr/cardex/pkg/search"
	"github.com/rubiojr/cardex/pkg/storage"
)

var logger = log.ForService("api")

type Server struct {
	store  *storage.Store
	search *search.SearchService
	facets *facets.Aggregator
	index  *index.Index
	hub    *realtime.Hub
}

func NewServer(store *storage.Store, searchService *search.SearchService) *Server {
	return &Server{
		store:  store,
		search: searchService,
		facets: facets.NewAggregator(store),
		index:  index.New(store.DB()),
	}
}

// Handler returns the API routes wrapped in the standard middleware. The
// events stream bypasses compression since it hijacks the connection.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	root := http.NewServeMux()
	root.HandleFunc("GET /api/events", s.HandleEvents)
	root.Handle("/", gzhttp.GzipHandler(mux))

	return RequestIDMiddleware(CorsMiddleware(root))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

// writeStoreError maps a store or index failure to a response. Unknown cards
// are 404; anything else is a retryable 500.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, what string, err error) {
	switch {
	case errors.Is(err, storage.ErrCardNotFound):
		s.writeError(w, http.StatusNotFound, "Card not found", err.Error())
	case errors.Is(err, context.Canceled):
		logger.Debugf("%s %s: request canceled", r.Method, r.URL.Path)
	default:
		logger.Errorf("%s %s [%s]: %s: %v", r.Method, r.URL.Path, RequestID(r.Context()), what, err)
		s.writeError(w, http.StatusInternalServerError, what, err.Error())
	}
}

type requestIDKey struct{}

// RequestID returns the id RequestIDMiddleware attached to ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware tags every request with an X-Request-ID, keeping one
// supplied by the client.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
