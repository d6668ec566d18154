package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mnemo/mnemo/config"
	"github.com/mnemo/mnemo/pkg/api/middleware"
	"github.com/mnemo/mnemo/pkg/api/response"
	"github.com/mnemo/mnemo/pkg/vector"
)

// SocialStore is the shared-memory surface the handler needs. The vector
// manager satisfies this.
type SocialStore interface {
	SaveSocial(ctx context.Context, characterID string, texts []string) error
	SearchSocial(ctx context.Context, characterID, query string, k int, scoreThreshold float64) ([]vector.Candidate, error)
	DeleteSocial(ctx context.Context, characterID string) error
}

// SocialHandler handles shared character memory endpoints.
type SocialHandler struct {
	vectors SocialStore
	cfg     config.MemoryConfig
	logger  handlerLogger
}

// NewSocialHandler creates a new social memory handler.
func NewSocialHandler(vectors SocialStore, cfg config.MemoryConfig, log handlerLogger) *SocialHandler {
	return &SocialHandler{
		vectors: vectors,
		cfg:     cfg,
		logger:  log,
	}
}

type saveSocialRequest struct {
	Texts []string `json:"texts" validate:"required,min=1,dive,required"`
}

type searchSocialRequest struct {
	Query          string   `json:"query" validate:"required"`
	K              int      `json:"k" validate:"min=0"`
	ScoreThreshold *float64 `json:"score_threshold" validate:"omitempty,gte=0,lte=1"`
}

// Save handles POST /api/v1/social/{characterID}.
func (h *SocialHandler) Save(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "characterID")
	requestID := middleware.GetRequestID(r.Context())

	var req saveSocialRequest
	if !h.decode(w, r, &req, requestID) {
		return
	}
	if err := h.vectors.SaveSocial(r.Context(), characterID, req.Texts); err != nil {
		h.logger.Error("Failed to save social facts", "character_id", characterID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "failed to save social facts", requestID)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]int{"saved": len(req.Texts)})
}

// Search handles POST /api/v1/social/{characterID}/search.
func (h *SocialHandler) Search(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "characterID")
	requestID := middleware.GetRequestID(r.Context())

	var req searchSocialRequest
	if !h.decode(w, r, &req, requestID) {
		return
	}
	k := req.K
	if k <= 0 {
		k = h.cfg.RecallK
	}
	threshold := h.cfg.ScoreThreshold
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
	}
	candidates, err := h.vectors.SearchSocial(r.Context(), characterID, req.Query, k, threshold)
	if err != nil {
		h.logger.Error("Failed to search social facts", "character_id", characterID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "failed to search social facts", requestID)
		return
	}
	results := make([]string, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, c.Content)
	}
	response.JSON(w, http.StatusOK, recallResponse{Results: results})
}

// Delete handles DELETE /api/v1/social/{characterID}.
func (h *SocialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "characterID")
	requestID := middleware.GetRequestID(r.Context())

	if err := h.vectors.DeleteSocial(r.Context(), characterID); err != nil {
		h.logger.Error("Failed to delete social memory", "character_id", characterID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "failed to delete social memory", requestID)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *SocialHandler) decode(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "invalid JSON body", requestID)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, response.ErrCodeValidationFailed,
			"validation failed", validationDetails(err), requestID)
		return false
	}
	return true
}
