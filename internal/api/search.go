package api

import (
	"context"
	"net/http"
	"strconv"

	apperrors "github.com/anilpdv/video-downloader/internal/errors"
	"github.com/anilpdv/video-downloader/internal/logger"
	"github.com/anilpdv/video-downloader/internal/ytdlp"
)

// SearchFunc finds videos matching a query. The production wiring resolves
// the embedded binary and runs its flat-playlist search.
type SearchFunc func(ctx context.Context, query string, limit int) ([]ytdlp.SearchResult, error)

// SearchHandlers exposes media search over HTTP.
type SearchHandlers struct {
	search SearchFunc
	log    *logger.Logger
}

func NewSearchHandlers(search SearchFunc) *SearchHandlers {
	return &SearchHandlers{
		search: search,
		log:    logger.Default().WithComponent("api.search"),
	}
}

// SearchResponse wraps the results of one search.
type SearchResponse struct {
	Query   string               `json:"query"`
	Results []ytdlp.SearchResult `json:"results"`
	Count   int                  `json:"count"`
}

// Search handles GET /api/search?q=
func (h *SearchHandlers) Search(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())

	query := r.URL.Query().Get("q")
	if query == "" {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("q is required"))
		return
	}

	limit := ytdlp.DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > ytdlp.MaxSearchLimit {
			apperrors.WriteError(w, requestID, apperrors.BadRequest("limit must be between 1 and 25"))
			return
		}
		limit = n
	}

	results, err := h.search(r.Context(), query, limit)
	if err != nil {
		h.log.Error(r.Context(), "search failed", err, map[string]interface{}{
			"query": query,
		})
		apperrors.WriteError(w, requestID, apperrors.ProcessFailure(err.Error()))
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, SearchResponse{
		Query:   query,
		Results: results,
		Count:   len(results),
	})
}
