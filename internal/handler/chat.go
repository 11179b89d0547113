package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reflectlab/journal-platform/internal/model"
	"github.com/reflectlab/journal-platform/internal/store"
	"github.com/reflectlab/journal-platform/internal/validation"
	"github.com/reflectlab/journal-platform/pkg/logger"
)

// ChatHandler handles coaching chat endpoints.
type ChatHandler struct {
	reflections *store.ReflectionStore
	chats       *store.ChatStore
	logger      *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(rs *store.ReflectionStore, cs *store.ChatStore, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		reflections: rs,
		chats:       cs,
		logger:      log,
	}
}

// ListMessages handles GET /api/v1/reflections/:id/messages. Reading never
// creates a session; a reflection without one gets an empty message list.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok := h.reflections.Get(id); !ok {
		writeError(w, http.StatusNotFound, "reflection not found")
		return
	}

	session, ok := h.chats.Session(id)
	if !ok {
		writeJSON(w, http.StatusOK, model.ListChatMessagesResponse{
			Messages: []model.ChatMessage{},
		})
		return
	}

	writeJSON(w, http.StatusOK, model.ListChatMessagesResponse{
		SessionID: session.ID,
		Messages:  session.Messages,
	})
}

// Send handles POST /api/v1/reflections/:id/messages. The round trip always
// succeeds conversationally once accepted: the coaching call's failure mode
// is a fallback assistant turn, never an error response.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	reflection, ok := h.reflections.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "reflection not found")
		return
	}

	var req model.SendChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validation.IsValidChatMessage(req.Message) {
		writeError(w, http.StatusBadRequest, "message must be 1-2000 characters")
		return
	}

	if !h.chats.SendMessage(ctx, id, req.Message, reflection, h.reflections.Feedback(id)) {
		writeError(w, http.StatusConflict, "a message is already being sent")
		return
	}

	session, _ := h.chats.Session(id)
	writeJSON(w, http.StatusOK, model.ListChatMessagesResponse{
		SessionID: session.ID,
		Messages:  session.Messages,
	})
}

// ClearMessages handles DELETE /api/v1/reflections/:id/messages
func (h *ChatHandler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok := h.reflections.Get(id); !ok {
		writeError(w, http.StatusNotFound, "reflection not found")
		return
	}

	h.chats.ClearMessages(id)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSession handles DELETE /api/v1/reflections/:id/session
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.chats.DeleteSession(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
