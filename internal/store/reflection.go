// Package store provides the in-memory entity stores of the journal
// workflow. Each collection has a single owner here; every mutation is an
// in-memory update mirrored to storage best-effort.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/reflectlab/journal-platform/internal/evaluation"
	"github.com/reflectlab/journal-platform/internal/events"
	"github.com/reflectlab/journal-platform/internal/model"
	"github.com/reflectlab/journal-platform/internal/storage"
	"github.com/reflectlab/journal-platform/internal/validation"
	"github.com/reflectlab/journal-platform/pkg/logger"
	"github.com/reflectlab/journal-platform/pkg/metrics"
)

// ReflectionStore owns the reflection collection and the selection pointer.
type ReflectionStore struct {
	mu          sync.RWMutex
	reflections []model.Reflection // newest first
	selectedID  string

	// Transient evaluation feedback per reflection. Never persisted:
	// feedback is regenerated on demand after a reload.
	feedback map[string]*model.StructuredResponse

	storage   *storage.Store
	publisher *events.Publisher
	logger    *logger.Logger
}

// NewReflectionStore creates the store and restores persisted state. Load
// failures degrade to an empty collection.
func NewReflectionStore(st *storage.Store, pub *events.Publisher, log *logger.Logger) *ReflectionStore {
	s := &ReflectionStore{
		feedback:  make(map[string]*model.StructuredResponse),
		storage:   st,
		publisher: pub,
		logger:    log,
	}

	ctx := context.Background()
	if _, err := st.Load(ctx, storage.KeyReflections, &s.reflections); err != nil {
		log.Warn("failed to load reflections, starting empty", "error", err)
	}
	if _, err := st.Load(ctx, storage.KeySelectedReflection, &s.selectedID); err != nil {
		log.Warn("failed to load selection, starting empty", "error", err)
	}
	// A dangling selection pointer is cleared rather than kept.
	if s.selectedID != "" {
		if _, ok := s.find(s.selectedID); !ok {
			s.selectedID = ""
		}
	}

	return s
}

// Add validates text and prepends a new pending reflection, selecting it.
// Returns nil without mutating anything when validation fails.
func (s *ReflectionStore) Add(text string) *model.Reflection {
	if !validation.IsValidReflectionText(text) {
		return nil
	}

	now := time.Now()
	r := model.Reflection{
		ID:             validation.NewID(),
		Text:           text,
		Status:         model.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		ChatSessionID:  validation.NewID(),
		CurrentVersion: 1,
	}

	s.mu.Lock()
	s.reflections = append([]model.Reflection{r}, s.reflections...)
	s.selectedID = r.ID
	s.mu.Unlock()

	metrics.ReflectionsTotal.WithLabelValues("add").Inc()
	s.persist()
	s.persistSelection()
	s.publish(model.EventReflectionCreated, r.ID, nil)

	return &r
}

// Update validates and replaces the text of the matching reflection, bumping
// updatedAt and currentVersion. Returns false without mutation on invalid
// text or unknown id.
func (s *ReflectionStore) Update(id, text string) bool {
	if !validation.IsValidReflectionText(text) {
		return false
	}

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx == -1 {
		s.mu.Unlock()
		return false
	}
	s.reflections[idx].Text = text
	s.reflections[idx].UpdatedAt = time.Now()
	s.reflections[idx].CurrentVersion++
	version := s.reflections[idx].CurrentVersion
	// Stale feedback refers to the previous version.
	delete(s.feedback, id)
	s.mu.Unlock()

	metrics.ReflectionsTotal.WithLabelValues("update").Inc()
	s.persist()
	s.publish(model.EventReflectionUpdated, id, map[string]any{"version": version})

	return true
}

// UpdateStatus unconditionally moves the reflection to status.
func (s *ReflectionStore) UpdateStatus(id string, status model.ReflectionStatus) bool {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx == -1 {
		s.mu.Unlock()
		return false
	}
	s.reflections[idx].Status = status
	s.reflections[idx].UpdatedAt = time.Now()
	s.mu.Unlock()

	metrics.ReflectionsTotal.WithLabelValues("status").Inc()
	s.persist()
	s.publish(model.EventStatusChanged, id, map[string]any{"status": string(status)})

	return true
}

// Delete removes the reflection. Deleting the selected reflection clears the
// selection.
func (s *ReflectionStore) Delete(id string) bool {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx == -1 {
		s.mu.Unlock()
		return false
	}
	s.reflections = append(s.reflections[:idx], s.reflections[idx+1:]...)
	delete(s.feedback, id)
	clearedSelection := s.selectedID == id
	if clearedSelection {
		s.selectedID = ""
	}
	s.mu.Unlock()

	metrics.ReflectionsTotal.WithLabelValues("delete").Inc()
	s.persist()
	if clearedSelection {
		s.persistSelection()
	}
	s.publish(model.EventReflectionDeleted, id, nil)

	return true
}

// Select points the selection at an existing reflection.
func (s *ReflectionStore) Select(id string) bool {
	s.mu.Lock()
	if s.indexOf(id) == -1 {
		s.mu.Unlock()
		return false
	}
	s.selectedID = id
	s.mu.Unlock()

	s.persistSelection()
	return true
}

// ClearSelection clears the selection pointer.
func (s *ReflectionStore) ClearSelection() {
	s.mu.Lock()
	s.selectedID = ""
	s.mu.Unlock()

	s.persistSelection()
}

// Get returns a copy of the reflection with the given id.
func (s *ReflectionStore) Get(id string) (*model.Reflection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(id)
}

// List returns a copy of the collection, newest first, and the selected id.
func (s *ReflectionStore) List() ([]model.Reflection, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Reflection, len(s.reflections))
	copy(out, s.reflections)
	return out, s.selectedID
}

// SelectedID returns the current selection pointer.
func (s *ReflectionStore) SelectedID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// HasReflections reports whether any reflection exists. Used as the context
// navigator's availability guard.
func (s *ReflectionStore) HasReflections() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reflections) > 0
}

// Stats scans the current collection. Recomputed on every call.
func (s *ReflectionStore) Stats() model.ReflectionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.ReflectionStats{Total: len(s.reflections)}
	for _, r := range s.reflections {
		switch r.Status {
		case model.StatusPassed:
			stats.Passed++
		case model.StatusInProgress:
			stats.InProgress++
		case model.StatusPending:
			stats.Pending++
		}
	}
	return stats
}

// PastPassing returns the text and date of previously passed reflections,
// excluding the given id, for the duplicate-submission guard.
func (s *ReflectionStore) PastPassing(excludeID string) []evaluation.PastReflection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []evaluation.PastReflection
	for _, r := range s.reflections {
		if r.Status == model.StatusPassed && r.ID != excludeID {
			out = append(out, evaluation.PastReflection{Text: r.Text, CreatedAt: r.CreatedAt})
		}
	}
	return out
}

// SetFeedback caches the latest evaluation feedback for a reflection.
func (s *ReflectionStore) SetFeedback(id string, fb *model.StructuredResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) != -1 {
		s.feedback[id] = fb
	}
}

// Feedback returns the cached evaluation feedback for a reflection, if any.
func (s *ReflectionStore) Feedback(id string) *model.StructuredResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feedback[id]
}

func (s *ReflectionStore) indexOf(id string) int {
	for i := range s.reflections {
		if s.reflections[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *ReflectionStore) find(id string) (*model.Reflection, bool) {
	if idx := s.indexOf(id); idx != -1 {
		r := s.reflections[idx]
		return &r, true
	}
	return nil, false
}

// persist mirrors the full collection to storage. Best-effort: failures are
// logged, never surfaced to the caller.
func (s *ReflectionStore) persist() {
	s.mu.RLock()
	snapshot := make([]model.Reflection, len(s.reflections))
	copy(snapshot, s.reflections)
	s.mu.RUnlock()

	counts := make(map[model.ReflectionStatus]int)
	for _, r := range snapshot {
		counts[r.Status]++
	}
	for _, st := range []model.ReflectionStatus{model.StatusPending, model.StatusInProgress, model.StatusPassed} {
		metrics.ReflectionStatus.WithLabelValues(string(st)).Set(float64(counts[st]))
	}

	if err := s.storage.Save(context.Background(), storage.KeyReflections, snapshot); err != nil {
		s.logger.Error("failed to persist reflections", "error", err)
		metrics.PersistErrorsTotal.WithLabelValues(storage.KeyReflections).Inc()
	}
}

func (s *ReflectionStore) persistSelection() {
	s.mu.RLock()
	id := s.selectedID
	s.mu.RUnlock()

	if err := s.storage.Save(context.Background(), storage.KeySelectedReflection, id); err != nil {
		s.logger.Error("failed to persist selection", "error", err)
		metrics.PersistErrorsTotal.WithLabelValues(storage.KeySelectedReflection).Inc()
	}
}

func (s *ReflectionStore) publish(t model.EventType, reflectionID string, meta map[string]any) {
	s.publisher.Publish(context.Background(), &model.JournalEvent{
		ID:           validation.NewID(),
		Type:         t,
		ReflectionID: reflectionID,
		Metadata:     meta,
		CreatedAt:    time.Now(),
	})
}
