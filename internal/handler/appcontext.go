package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/reflectlab/journal-platform/internal/model"
	"github.com/reflectlab/journal-platform/internal/store"
	"github.com/reflectlab/journal-platform/pkg/logger"
)

// ContextHandler handles the UI-mode navigator endpoints.
type ContextHandler struct {
	navigator *store.Navigator
	logger    *logger.Logger
}

// NewContextHandler creates a new context handler.
func NewContextHandler(nav *store.Navigator, log *logger.Logger) *ContextHandler {
	return &ContextHandler{
		navigator: nav,
		logger:    log,
	}
}

// contextStateResponse is the navigator state plus the suggested next context.
type contextStateResponse struct {
	model.ContextState
	Next model.AppContext `json:"next"`
}

// Get handles GET /api/v1/context
func (h *ContextHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, contextStateResponse{
		ContextState: h.navigator.State(),
		Next:         h.navigator.Next(),
	})
}

// Put handles PUT /api/v1/context
func (h *ContextHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req model.SwitchContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch err := h.navigator.Switch(r.Context(), req.Target); {
	case errors.Is(err, store.ErrInvalidContext):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrContextUnavailable):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "context switch failed")
		return
	}

	writeJSON(w, http.StatusOK, contextStateResponse{
		ContextState: h.navigator.State(),
		Next:         h.navigator.Next(),
	})
}
