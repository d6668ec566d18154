package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mnemo/mnemo/config"
	"github.com/mnemo/mnemo/pkg/api/middleware"
	"github.com/mnemo/mnemo/pkg/api/response"
	"github.com/mnemo/mnemo/pkg/consolidate"
	"github.com/mnemo/mnemo/pkg/memstore"
)

// validate checks request payloads against their struct tags.
var validate = validator.New()

// handlerLogger is the logging surface handlers need.
type handlerLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Consolidator runs the importance-memory pipeline.
type Consolidator interface {
	Run(ctx context.Context, req consolidate.Request) ([]string, error)
}

// ConsolidationRecorder records consolidation outcomes.
type ConsolidationRecorder interface {
	RecordConsolidation(outcome string, duration time.Duration)
}

// MemoryHandler handles conversational memory endpoints.
type MemoryHandler struct {
	store    memstore.Store
	pipeline Consolidator
	cfg      config.MemoryConfig
	logger   handlerLogger
	metrics  ConsolidationRecorder // may be nil
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(store memstore.Store, pipeline Consolidator, cfg config.MemoryConfig, log handlerLogger) *MemoryHandler {
	return &MemoryHandler{
		store:    store,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   log,
	}
}

// SetMetrics attaches a consolidation recorder.
func (h *MemoryHandler) SetMetrics(m ConsolidationRecorder) {
	h.metrics = m
}

// --- Request/Response types ---

type turnPayload struct {
	Time    int64  `json:"time"`
	Role    string `json:"role" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type appendTurnsRequest struct {
	Turns      []turnPayload `json:"turns" validate:"required,min=1,dive"`
	MaxRecords int           `json:"max_records" validate:"min=0"`
}

type recentResponse struct {
	Turns []turnPayload `json:"turns"`
}

type recallRequest struct {
	Query          string   `json:"query" validate:"required"`
	K              int      `json:"k" validate:"min=0"`
	ScoreThreshold *float64 `json:"score_threshold" validate:"omitempty,gte=0,lte=1"`
}

type recallResponse struct {
	Results []string `json:"results"`
}

type importantResponse struct {
	Memories []string `json:"memories"`
	Present  bool     `json:"present"`
}

type setImportantRequest struct {
	Memories []string `json:"memories" validate:"required,max=15"`
}

type consolidateRequest struct {
	CharacterName string `json:"character_name" validate:"required"`
	Persona       string `json:"persona"`
	Question      string `json:"question" validate:"required"`
	Response      string `json:"response" validate:"required"`
}

// --- Handlers ---

// AppendTurns handles POST /api/v1/memory/{userID}/{characterID}/turns.
func (h *MemoryHandler) AppendTurns(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	characterID := chi.URLParam(r, "characterID")
	requestID := middleware.GetRequestID(r.Context())

	var req appendTurnsRequest
	if !h.decode(w, r, &req, requestID) {
		return
	}

	turns := make([]memstore.Turn, 0, len(req.Turns))
	for _, t := range req.Turns {
		turns = append(turns, memstore.Turn{Timestamp: t.Time, Role: t.Role, Content: t.Content})
	}
	if err := h.store.AppendTurns(r.Context(), userID, characterID, turns, req.MaxRecords); err != nil {
		h.logger.Error("Failed to append turns", "user_id", userID, "character_id", characterID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "failed to append turns", requestID)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]int{"appended": len(turns)})
}

// Recent handles GET /api/v1/memory/{userID}/{characterID}/recent.
func (h *MemoryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	characterID := chi.URLParam(r, "characterID")
	requestID := middleware.GetRequestID(r.Context())

	turns, err := h.store.ReadRecent(r.Context(), userID, characterID)
	if err != nil {
		h.logger.Error("Failed to read recent window", "user_id", userID, "character_id", characterID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "failed to read recent window", requestID)
		return
	}
	out := recentResponse{Turns: make([]turnPayload, 0, len(turns))}
	for _, t := range turns {
		out.Turns = append(out.Turns, turnPayload{Time: t.Timestamp, Role: t.Role, Content: t.Content})
	}
	response.JSON(w, http.StatusOK, out)
}

// Recall handles POST /api/v1/memory/{userID}/{characterID}/recall.
func (h *MemoryHandler) Recall(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	characterID := chi.URLParam(r, "characterID")
	requestID := middleware.GetRequestID(r.Context())

	var req recallRequest
	if !h.decode(w, r, &req, requestID) {
		return
	}
	threshold := h.cfg.ScoreThreshold
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
	}
	results, err := h.store.Recall(r.Context(), userID, characterID, req.Query, req.K, threshold)
	if err != nil {
		h.logger.Error("Failed to recall", "user_id", userID, "character_id", characterID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "failed to recall", requestID)
		return
	}
	if results == nil {
		results = []string{}
	}
	response.JSON(w, http.StatusOK, recallResponse{Results: results})
}

// GetImportant handles GET /api/v1/memory/{userID}/{characterID}/important.
func (h *MemoryHandler) GetImportant(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	characterID := chi.URLParam(r, "characterID")
	requestID := middleware.GetRequestID(r.Context())

	memories, present, err := h.store.ImportantMemories(r.Context(), userID, characterID)
	if err != nil {
		h.logger.Error("Failed to load importance summary", "user_id", userID, "character_id", characterID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "failed to load importance summary", requestID)
		return
	}
	if memories == nil {
		memories = []string{}
	}
	response.JSON(w, http.StatusOK, importantResponse{Memories: memories, Present: present})
}

// SetImportant handles PUT /api/v1/memory/{userID}/{characterID}/important.
func (h *MemoryHandler) SetImportant(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	characterID := chi.URLParam(r, "characterID")
	requestID := middleware.GetRequestID(r.Context())

	var req setImportantRequest
	if !h.decode(w, r, &req, requestID) {
		return
	}
	if err := h.store.SetImportantMemories(r.Context(), userID, characterID, req.Memories); err != nil {
		h.logger.Error("Failed to store importance summary", "user_id", userID, "character_id", characterID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "failed to store importance summary", requestID)
		return
	}
	response.JSON(w, http.StatusOK, map[string]int{"stored": len(req.Memories)})
}

// DeleteImportant handles DELETE /api/v1/memory/{userID}/{characterID}/important.
func (h *MemoryHandler) DeleteImportant(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	characterID := chi.URLParam(r, "characterID")
	requestID := middleware.GetRequestID(r.Context())

	if err := h.store.ForgetImportantMemories(r.Context(), userID, characterID); err != nil {
		h.logger.Error("Failed to delete importance summary", "user_id", userID, "character_id", characterID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "failed to delete importance summary", requestID)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Consolidate handles POST /api/v1/memory/{userID}/{characterID}/consolidate.
func (h *MemoryHandler) Consolidate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	characterID := chi.URLParam(r, "characterID")
	requestID := middleware.GetRequestID(r.Context())

	var req consolidateRequest
	if !h.decode(w, r, &req, requestID) {
		return
	}
	start := time.Now()
	memories, err := h.pipeline.Run(r.Context(), consolidate.Request{
		UserID:        userID,
		CharacterID:   characterID,
		CharacterName: req.CharacterName,
		Persona:       req.Persona,
		Exchange:      consolidate.Exchange{Question: req.Question, Response: req.Response},
	})
	if err != nil {
		h.recordConsolidation("error", start)
		h.logger.Error("Consolidation failed", "user_id", userID, "character_id", characterID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "consolidation failed", requestID)
		return
	}
	h.recordConsolidation("ok", start)
	if memories == nil {
		memories = []string{}
	}
	response.JSON(w, http.StatusOK, importantResponse{Memories: memories, Present: true})
}

// Forget handles DELETE /api/v1/memory/{userID}/{characterID}.
func (h *MemoryHandler) Forget(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	characterID := chi.URLParam(r, "characterID")
	requestID := middleware.GetRequestID(r.Context())

	if err := h.store.Forget(r.Context(), userID, characterID); err != nil {
		h.logger.Error("Failed to forget conversation", "user_id", userID, "character_id", characterID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "failed to forget conversation", requestID)
		return
	}
	h.logger.Info("Conversation memory forgotten", "user_id", userID, "character_id", characterID)
	response.JSON(w, http.StatusOK, map[string]bool{"forgotten": true})
}

// decode reads and validates a JSON request body, writing the error response
// itself when the payload is bad.
func (h *MemoryHandler) decode(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
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

// validationDetails flattens validator errors into a field to constraint map.
func validationDetails(err error) map[string]interface{} {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]interface{}{"error": err.Error()}
	}
	details := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

func (h *MemoryHandler) recordConsolidation(outcome string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordConsolidation(outcome, time.Since(start))
}
