package validators

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/anilpdv/video-downloader/internal/errors"
	"github.com/anilpdv/video-downloader/internal/logger"
)

// Handlers provides HTTP handlers for URL validation
type Handlers struct {
	registry *Registry
}

// NewHandlers creates a new Handlers instance
func NewHandlers(registry *Registry) *Handlers {
	return &Handlers{
		registry: registry,
	}
}

// ValidateURLRequest is the request body for URL validation
type ValidateURLRequest struct {
	URL string `json:"url"`
}

// SupportedSourcesResponse is the response for listing supported sources
type SupportedSourcesResponse struct {
	Sources []SourceType `json:"sources"`
}

// ValidateURL handles POST /api/validate
func (h *Handlers) ValidateURL(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())

	var req ValidateURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid JSON body"))
		return
	}
	if req.URL == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("url field is required"))
		return
	}

	h.writeResult(w, requestID, h.registry.Validate(req.URL))
}

// ValidateURLQuery handles GET /api/validate?url=...
func (h *Handlers) ValidateURLQuery(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())

	url := r.URL.Query().Get("url")
	if url == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("url query parameter is required"))
		return
	}

	h.writeResult(w, requestID, h.registry.Validate(url))
}

// GetSupportedSources handles GET /api/sources
func (h *Handlers) GetSupportedSources(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusOK, SupportedSourcesResponse{
		Sources: h.registry.GetSupportedSources(),
	})
}

func (h *Handlers) writeResult(w http.ResponseWriter, requestID string, result ValidationResult) {
	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnprocessableEntity
	}
	apperrors.WriteJSON(w, requestID, status, result)
}
