package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reflectlab/journal-platform/internal/coach"
	"github.com/reflectlab/journal-platform/internal/evaluation"
	"github.com/reflectlab/journal-platform/internal/llm"
	"github.com/reflectlab/journal-platform/internal/model"
	"github.com/reflectlab/journal-platform/internal/moderation"
	"github.com/reflectlab/journal-platform/internal/storage"
	"github.com/reflectlab/journal-platform/internal/store"
	"github.com/reflectlab/journal-platform/pkg/logger"
)

const validText = "Today I built a small robot in science club. I felt proud when it finally moved. Tomorrow I will add a sensor to it."

const validScoringJSON = `{
	"feedback": {
		"happened": {"pass": true, "remarks": "Clear event."},
		"feeling": {"pass": true, "remarks": "Nice feeling words."},
		"next": {"pass": true, "remarks": "Good plan."}
	},
	"suggestions": ["Keep it up"],
	"overallScore": 85,
	"status": "good"
}`

type testEnv struct {
	router      chi.Router
	reflections *store.ReflectionStore
	llm         *llm.MockClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()

	st, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"), log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mock := &llm.MockClient{Response: validScoringJSON}
	evaluator := evaluation.NewService(mock, moderation.PassThrough{}, "test-model", time.Second, log)
	coachSvc := coach.NewService(mock, moderation.PassThrough{}, "test-model", time.Second, log)

	reflections := store.NewReflectionStore(st, nil, log)
	chats := store.NewChatStore(coachSvc, st, nil, log)
	navigator := store.NewNavigator(st, reflections.HasReflections, log)
	navigator.SetTransitionDelay(0)

	reflectionHandler := NewReflectionHandler(reflections, evaluator, nil, log)
	chatHandler := NewChatHandler(reflections, chats, log)
	contextHandler := NewContextHandler(navigator, log)
	healthHandler := NewHealthHandler(st, nil)

	r := chi.NewRouter()
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/reflections", func(r chi.Router) {
			r.Post("/", reflectionHandler.Create)
			r.Get("/", reflectionHandler.List)
			r.Get("/stats", reflectionHandler.Stats)
			r.Post("/analyze", reflectionHandler.Analyze)
			r.Delete("/selection", reflectionHandler.ClearSelection)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", reflectionHandler.Get)
				r.Put("/", reflectionHandler.Update)
				r.Delete("/", reflectionHandler.Delete)
				r.Put("/status", reflectionHandler.UpdateStatus)
				r.Post("/select", reflectionHandler.Select)
				r.Post("/evaluate", reflectionHandler.Evaluate)
				r.Get("/messages", chatHandler.ListMessages)
				r.Post("/messages", chatHandler.Send)
				r.Delete("/messages", chatHandler.ClearMessages)
				r.Delete("/session", chatHandler.DeleteSession)
			})
		})
		r.Get("/context", contextHandler.Get)
		r.Put("/context", contextHandler.Put)
	})

	return &testEnv{router: r, reflections: reflections, llm: mock}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestCreateReflection(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/reflections", `{"text":"`+validText+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	created := decode[model.Reflection](t, rec)
	if created.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", created.Status)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/reflections", `{"text":"too short"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("short text status = %d, want 400", rec.Code)
	}
	errResp := decode[map[string]string](t, rec)
	if !strings.Contains(errResp["error"], "too short") {
		t.Errorf("error = %q, want length message", errResp["error"])
	}
}

func TestGetReflectionNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/reflections/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	r := env.reflections.Add(validText)

	rec := env.do(t, http.MethodPut, "/api/v1/reflections/"+r.ID+"/status", `{"status":"finished"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEvaluatePassingScoreMovesStatus(t *testing.T) {
	env := newTestEnv(t)
	r := env.reflections.Add(validText)

	rec := env.do(t, http.MethodPost, "/api/v1/reflections/"+r.ID+"/evaluate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[model.EvaluationResponse](t, rec)
	if !resp.Success {
		t.Fatalf("success = false, want true")
	}
	if resp.DisplayScore != 100 {
		t.Errorf("display score = %d, want 100 (85 boosted and capped)", resp.DisplayScore)
	}

	got, _ := env.reflections.Get(r.ID)
	if got.Status != model.StatusPassed {
		t.Errorf("reflection status = %q, want passed", got.Status)
	}
	if env.reflections.Feedback(r.ID) == nil {
		t.Error("feedback not cached after evaluation")
	}
}

func TestEvaluateContractViolationIs500(t *testing.T) {
	env := newTestEnv(t)
	env.llm.Response = "I think this reflection is great!"
	r := env.reflections.Add(validText)

	rec := env.do(t, http.MethodPost, "/api/v1/reflections/"+r.ID+"/evaluate", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decode[model.EvaluationResponse](t, rec)
	if resp.Success {
		t.Error("success = true, want false")
	}

	// A failed evaluation leaves the lifecycle untouched.
	got, _ := env.reflections.Get(r.ID)
	if got.Status != model.StatusPending {
		t.Errorf("reflection status = %q, want pending", got.Status)
	}
}

func TestEvaluateMissingReflection(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/reflections/missing/evaluate", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSendMessageFallbackOnFailure(t *testing.T) {
	env := newTestEnv(t)
	env.llm.Err = errors.New("upstream down")
	r := env.reflections.Add(validText)

	rec := env.do(t, http.MethodPost, "/api/v1/reflections/"+r.ID+"/messages", `{"message":"can you help me?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[model.ListChatMessagesResponse](t, rec)
	if len(resp.Messages) != 2 {
		t.Fatalf("got %d messages, want user turn + fallback", len(resp.Messages))
	}
	if resp.Messages[1].Content != store.FallbackMessage {
		t.Errorf("assistant turn = %q, want fallback", resp.Messages[1].Content)
	}
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	r := env.reflections.Add(validText)

	rec := env.do(t, http.MethodPost, "/api/v1/reflections/"+r.ID+"/messages", `{"message":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListMessagesDoesNotCreateSession(t *testing.T) {
	env := newTestEnv(t)
	r := env.reflections.Add(validText)

	rec := env.do(t, http.MethodGet, "/api/v1/reflections/"+r.ID+"/messages", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[model.ListChatMessagesResponse](t, rec)
	if len(resp.Messages) != 0 || resp.SessionID != "" {
		t.Errorf("got session %q with %d messages, want none", resp.SessionID, len(resp.Messages))
	}
}

func TestContextSwitchGuard(t *testing.T) {
	env := newTestEnv(t)

	// No reflection yet: chat is unreachable.
	rec := env.do(t, http.MethodPut, "/api/v1/context", `{"target":"chat"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/api/v1/context", `{"target":"studio"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown target status = %d, want 400", rec.Code)
	}

	env.reflections.Add(validText)
	rec = env.do(t, http.MethodPut, "/api/v1/context", `{"target":"chat"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	state := decode[model.ContextState](t, rec)
	if state.ActiveContext != model.ContextChat {
		t.Errorf("active context = %q, want chat", state.ActiveContext)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/ready", ""); rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", rec.Code)
	}
}
