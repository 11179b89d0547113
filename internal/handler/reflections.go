// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reflectlab/journal-platform/internal/evaluation"
	"github.com/reflectlab/journal-platform/internal/events"
	"github.com/reflectlab/journal-platform/internal/model"
	"github.com/reflectlab/journal-platform/internal/store"
	"github.com/reflectlab/journal-platform/internal/validation"
	"github.com/reflectlab/journal-platform/pkg/logger"
)

// ReflectionHandler handles reflection endpoints.
type ReflectionHandler struct {
	reflections *store.ReflectionStore
	evaluator   *evaluation.Service
	publisher   *events.Publisher
	logger      *logger.Logger
}

// NewReflectionHandler creates a new reflection handler.
func NewReflectionHandler(rs *store.ReflectionStore, eval *evaluation.Service, pub *events.Publisher, log *logger.Logger) *ReflectionHandler {
	return &ReflectionHandler{
		reflections: rs,
		evaluator:   eval,
		publisher:   pub,
		logger:      log,
	}
}

// Create handles POST /api/v1/reflections
func (h *ReflectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateReflectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reflection := h.reflections.Add(req.Text)
	if reflection == nil {
		writeError(w, http.StatusBadRequest, validation.ReflectionValidationError(req.Text))
		return
	}

	writeJSON(w, http.StatusCreated, reflection)
}

// List handles GET /api/v1/reflections
func (h *ReflectionHandler) List(w http.ResponseWriter, r *http.Request) {
	reflections, selectedID := h.reflections.List()

	writeJSON(w, http.StatusOK, model.ListReflectionsResponse{
		Reflections: reflections,
		Total:       len(reflections),
		SelectedID:  selectedID,
	})
}

// Get handles GET /api/v1/reflections/:id
func (h *ReflectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	reflection, ok := h.reflections.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "reflection not found")
		return
	}

	writeJSON(w, http.StatusOK, reflection)
}

// Update handles PUT /api/v1/reflections/:id
func (h *ReflectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.UpdateReflectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, ok := h.reflections.Get(id); !ok {
		writeError(w, http.StatusNotFound, "reflection not found")
		return
	}

	if !h.reflections.Update(id, req.Text) {
		writeError(w, http.StatusBadRequest, validation.ReflectionValidationError(req.Text))
		return
	}

	reflection, _ := h.reflections.Get(id)
	writeJSON(w, http.StatusOK, reflection)
}

// UpdateStatus handles PUT /api/v1/reflections/:id/status
func (h *ReflectionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	if !h.reflections.UpdateStatus(id, req.Status) {
		writeError(w, http.StatusNotFound, "reflection not found")
		return
	}

	reflection, _ := h.reflections.Get(id)
	writeJSON(w, http.StatusOK, reflection)
}

// Delete handles DELETE /api/v1/reflections/:id
func (h *ReflectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.reflections.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "reflection not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Select handles POST /api/v1/reflections/:id/select
func (h *ReflectionHandler) Select(w http.ResponseWriter, r *http.Request) {
	if !h.reflections.Select(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "reflection not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearSelection handles DELETE /api/v1/reflections/selection
func (h *ReflectionHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.reflections.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/v1/reflections/stats
func (h *ReflectionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reflections.Stats())
}

// Analyze handles POST /api/v1/reflections/analyze. It runs the local
// indicator-word heuristic on draft text so a client can show instant hints
// without spending a remote evaluation.
func (h *ReflectionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req model.CreateReflectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, validation.AnalyzeReflectionRequirements(req.Text))
}

// Evaluate handles POST /api/v1/reflections/:id/evaluate
func (h *ReflectionHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	reflection, ok := h.reflections.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "reflection not found")
		return
	}

	resp, err := h.evaluator.Evaluate(ctx, id, reflection.Text, h.reflections.PastPassing(id))
	if err != nil {
		if errors.Is(err, evaluation.ErrEvaluationInFlight) {
			writeError(w, http.StatusConflict, "an evaluation is already in progress for this reflection")
			return
		}
		h.logger.Error("evaluation failed", "reflection_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, model.EvaluationResponse{
			Success: false,
			Error:   "evaluation failed, please try again",
		})
		return
	}

	if resp.Flagged {
		h.publishEvent(r, model.EventEvaluationFlagged, id, map[string]any{"categories": resp.Categories})
		writeJSON(w, http.StatusOK, resp)
		return
	}

	// Evaluation moves the lifecycle: passing scores complete the
	// reflection, everything else marks it in progress.
	h.reflections.SetFeedback(id, resp.Data)
	status := model.StatusInProgress
	if resp.Data.OverallScore >= evaluation.PassingScore {
		status = model.StatusPassed
	}
	h.reflections.UpdateStatus(id, status)
	h.publishEvent(r, model.EventEvaluationDone, id, map[string]any{
		"score":  resp.Data.OverallScore,
		"status": string(status),
	})

	writeJSON(w, http.StatusOK, resp)
}

func (h *ReflectionHandler) publishEvent(r *http.Request, t model.EventType, reflectionID string, meta map[string]any) {
	h.publisher.Publish(r.Context(), &model.JournalEvent{
		ID:           validation.NewID(),
		Type:         t,
		ReflectionID: reflectionID,
		Metadata:     meta,
		CreatedAt:    time.Now(),
	})
}
