package store

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/reflectlab/journal-platform/internal/model"
	"github.com/reflectlab/journal-platform/internal/storage"
	"github.com/reflectlab/journal-platform/pkg/logger"
)

const validText = "Today I went to school. I felt happy about my test. Tomorrow I will study more."

func newTestStorage(t *testing.T) *storage.Store {
	t.Helper()
	return newTestStorageAt(t, filepath.Join(t.TempDir(), "test.db"))
}

func newTestStorageAt(t *testing.T, path string) *storage.Store {
	t.Helper()
	st, err := storage.NewStore(path, logger.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newReflectionStore(t *testing.T) *ReflectionStore {
	t.Helper()
	return NewReflectionStore(newTestStorage(t), nil, logger.NewNop())
}

func TestAddRejectsInvalidText(t *testing.T) {
	s := newReflectionStore(t)

	if r := s.Add("123456789"); r != nil {
		t.Errorf("expected nil for 9-char text, got %+v", r)
	}

	list, selected := s.List()
	if len(list) != 0 {
		t.Errorf("collection mutated on invalid add: %d entries", len(list))
	}
	if selected != "" {
		t.Errorf("selection mutated on invalid add: %q", selected)
	}
}

func TestAddCreatesAndSelects(t *testing.T) {
	s := newReflectionStore(t)

	first := s.Add(validText)
	if first == nil {
		t.Fatal("expected reflection")
	}
	if first.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", first.Status)
	}
	if first.CurrentVersion != 1 {
		t.Errorf("version = %d, want 1", first.CurrentVersion)
	}
	if first.ChatSessionID == "" {
		t.Error("expected a chat session id")
	}
	if s.SelectedID() != first.ID {
		t.Error("new reflection should be selected")
	}

	second := s.Add("Another day at school today. It was raining hard. I will bring an umbrella.")
	list, _ := s.List()
	if len(list) != 2 {
		t.Fatalf("got %d reflections, want 2", len(list))
	}
	// Newest first.
	if list[0].ID != second.ID {
		t.Error("new reflection should be prepended")
	}
	if s.SelectedID() != second.ID {
		t.Error("selection should follow the newest reflection")
	}
}

func TestUpdateBumpsVersionOnly(t *testing.T) {
	s := newReflectionStore(t)
	r := s.Add(validText)

	newText := "I played soccer at recess today. I felt proud of my goal. Next week I will practice passing."
	if !s.Update(r.ID, newText) {
		t.Fatal("Update failed")
	}

	got, ok := s.Get(r.ID)
	if !ok {
		t.Fatal("reflection disappeared")
	}
	if got.Text != newText {
		t.Errorf("text not updated: %q", got.Text)
	}
	if got.CurrentVersion != 2 {
		t.Errorf("version = %d, want 2", got.CurrentVersion)
	}
	if got.Status != r.Status || got.ID != r.ID || got.ChatSessionID != r.ChatSessionID {
		t.Error("update changed fields other than text/updatedAt/version")
	}
	if !got.CreatedAt.Equal(r.CreatedAt) {
		t.Error("update must not change createdAt")
	}
	if got.UpdatedAt.Before(r.UpdatedAt) {
		t.Error("updatedAt should move forward")
	}
}

func TestUpdateInvalidTextIsNoOp(t *testing.T) {
	s := newReflectionStore(t)
	r := s.Add(validText)

	if s.Update(r.ID, "short") {
		t.Error("expected failure for invalid text")
	}

	got, _ := s.Get(r.ID)
	if got.Text != validText || got.CurrentVersion != 1 {
		t.Errorf("invalid update mutated state: %+v", got)
	}
}

func TestUpdateUnknownID(t *testing.T) {
	s := newReflectionStore(t)
	if s.Update("missing", validText) {
		t.Error("expected failure for unknown id")
	}
}

func TestUpdateStatusUnconditional(t *testing.T) {
	s := newReflectionStore(t)
	r := s.Add(validText)

	if !s.UpdateStatus(r.ID, model.StatusPassed) {
		t.Fatal("UpdateStatus failed")
	}
	got, _ := s.Get(r.ID)
	if got.Status != model.StatusPassed {
		t.Errorf("status = %q, want passed", got.Status)
	}
}

func TestDeleteClearsSelection(t *testing.T) {
	s := newReflectionStore(t)
	r := s.Add(validText)

	if !s.Delete(r.ID) {
		t.Fatal("Delete failed")
	}
	if s.SelectedID() != "" {
		t.Error("deleting the selected reflection must clear the selection")
	}
	if list, _ := s.List(); len(list) != 0 {
		t.Error("reflection not removed")
	}
}

func TestDeleteUnselectedKeepsSelection(t *testing.T) {
	s := newReflectionStore(t)
	older := s.Add(validText)
	newer := s.Add("Another entry about my day today. It went well overall. I will keep it up.")

	if !s.Delete(older.ID) {
		t.Fatal("Delete failed")
	}
	if s.SelectedID() != newer.ID {
		t.Error("deleting an unselected reflection must keep the selection")
	}
}

func TestStats(t *testing.T) {
	s := newReflectionStore(t)
	a := s.Add(validText)
	b := s.Add("Second entry written today after class. I felt tired but good. Tomorrow I will rest.")
	s.Add("Third entry about practice today. It was hard work. I plan to try again.")

	s.UpdateStatus(a.ID, model.StatusPassed)
	s.UpdateStatus(b.ID, model.StatusInProgress)

	stats := s.Stats()
	if stats.Total != 3 || stats.Passed != 1 || stats.InProgress != 1 || stats.Pending != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPastPassingExcludesSelf(t *testing.T) {
	s := newReflectionStore(t)
	a := s.Add(validText)
	b := s.Add("I helped my brother with homework today. I felt useful and kind. I will help again tomorrow.")
	s.UpdateStatus(a.ID, model.StatusPassed)
	s.UpdateStatus(b.ID, model.StatusPassed)

	past := s.PastPassing(b.ID)
	if len(past) != 1 {
		t.Fatalf("got %d past reflections, want 1", len(past))
	}
	if !strings.Contains(past[0].Text, "school") {
		t.Errorf("wrong reflection in past set: %q", past[0].Text)
	}
}

func TestFeedbackCacheInvalidation(t *testing.T) {
	s := newReflectionStore(t)
	r := s.Add(validText)

	fb := &model.StructuredResponse{OverallScore: 80, Status: model.FeedbackGood}
	s.SetFeedback(r.ID, fb)
	if s.Feedback(r.ID) != fb {
		t.Fatal("feedback not cached")
	}

	// Editing the text invalidates feedback for the old version.
	s.Update(r.ID, "A new version of my day today. It felt much better this time. I will write more tomorrow.")
	if s.Feedback(r.ID) != nil {
		t.Error("feedback should be cleared on text update")
	}

	s.SetFeedback(r.ID, fb)
	s.Delete(r.ID)
	if s.Feedback(r.ID) != nil {
		t.Error("feedback should be cleared on delete")
	}

	// Unknown ids are never cached.
	s.SetFeedback("missing", fb)
	if s.Feedback("missing") != nil {
		t.Error("feedback cached for unknown reflection")
	}
}

func TestReflectionPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	st := newTestStorageAt(t, path)

	s := NewReflectionStore(st, nil, logger.NewNop())
	r := s.Add(validText)
	s.UpdateStatus(r.ID, model.StatusInProgress)

	// A fresh store over the same database restores the collection.
	restored := NewReflectionStore(st, nil, logger.NewNop())
	list, selected := restored.List()
	if len(list) != 1 {
		t.Fatalf("restored %d reflections, want 1", len(list))
	}

	got := list[0]
	if got.ID != r.ID || got.Text != r.Text || got.Status != model.StatusInProgress {
		t.Errorf("restored mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(r.CreatedAt) {
		t.Errorf("restored CreatedAt = %v, want %v", got.CreatedAt, r.CreatedAt)
	}
	if selected != r.ID {
		t.Errorf("restored selection = %q, want %q", selected, r.ID)
	}
}
