package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/reflectlab/journal-platform/internal/model"
	"github.com/reflectlab/journal-platform/internal/storage"
	"github.com/reflectlab/journal-platform/pkg/logger"
	"github.com/reflectlab/journal-platform/pkg/metrics"
)

// ErrInvalidContext is returned for an unknown target context.
var ErrInvalidContext = errors.New("unknown context")

// ErrContextUnavailable is returned when the target's availability guard
// rejects the transition.
var ErrContextUnavailable = errors.New("context requires a reflection")

// defaultTransitionDelay is the cosmetic pause before committing a switch,
// there so a UI can animate the transition.
const defaultTransitionDelay = 150 * time.Millisecond

// Navigator is the UI-mode state machine. WRITE_EDIT is always reachable;
// FEEDBACK and CHAT require at least one reflection. There is no terminal
// state: the active context is persisted and restored verbatim.
type Navigator struct {
	mu            sync.Mutex
	active        model.AppContext
	transitioning bool

	hasReflection func() bool
	delay         time.Duration

	storage *storage.Store
	logger  *logger.Logger
}

// NewNavigator creates the navigator and restores the persisted context.
func NewNavigator(st *storage.Store, hasReflection func() bool, log *logger.Logger) *Navigator {
	n := &Navigator{
		active:        model.ContextWriteEdit,
		hasReflection: hasReflection,
		delay:         defaultTransitionDelay,
		storage:       st,
		logger:        log,
	}

	var saved model.AppContext
	if found, err := st.Load(context.Background(), storage.KeyActiveContext, &saved); err != nil {
		log.Warn("failed to load active context, using default", "error", err)
	} else if found && saved.Valid() {
		n.active = saved
	}

	return n
}

// Switch attempts a transition to target. Guard rejection leaves the state
// unchanged; switching to the current context is a success no-op.
func (n *Navigator) Switch(ctx context.Context, target model.AppContext) error {
	if !target.Valid() {
		metrics.ContextSwitchesTotal.WithLabelValues(string(target), "invalid").Inc()
		return ErrInvalidContext
	}

	n.mu.Lock()
	if target != model.ContextWriteEdit && !n.hasReflection() {
		n.mu.Unlock()
		metrics.ContextSwitchesTotal.WithLabelValues(string(target), "rejected").Inc()
		return ErrContextUnavailable
	}

	if target == n.active {
		n.mu.Unlock()
		metrics.ContextSwitchesTotal.WithLabelValues(string(target), "noop").Inc()
		return nil
	}

	n.transitioning = true
	n.mu.Unlock()

	// Cosmetic pause; interrupted by caller cancellation.
	select {
	case <-time.After(n.delay):
	case <-ctx.Done():
		n.mu.Lock()
		n.transitioning = false
		n.mu.Unlock()
		return ctx.Err()
	}

	n.mu.Lock()
	n.active = target
	n.transitioning = false
	n.mu.Unlock()

	metrics.ContextSwitchesTotal.WithLabelValues(string(target), "success").Inc()
	n.persist()

	return nil
}

// Active returns the current context.
func (n *Navigator) Active() model.AppContext {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// State returns the navigator's externally visible state.
func (n *Navigator) State() model.ContextState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return model.ContextState{
		ActiveContext:   n.active,
		IsTransitioning: n.transitioning,
		HasReflection:   n.hasReflection(),
	}
}

// Next suggests the next context in the write-edit → feedback → chat cycle.
// Advisory only; nothing enforces this ordering.
func (n *Navigator) Next() model.AppContext {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.active {
	case model.ContextWriteEdit:
		if n.hasReflection() {
			return model.ContextFeedback
		}
		return model.ContextWriteEdit
	case model.ContextFeedback:
		return model.ContextChat
	default:
		return model.ContextWriteEdit
	}
}

// SetTransitionDelay overrides the cosmetic delay. Used in tests.
func (n *Navigator) SetTransitionDelay(d time.Duration) {
	n.mu.Lock()
	n.delay = d
	n.mu.Unlock()
}

func (n *Navigator) persist() {
	n.mu.Lock()
	active := n.active
	n.mu.Unlock()

	if err := n.storage.Save(context.Background(), storage.KeyActiveContext, active); err != nil {
		n.logger.Error("failed to persist active context", "error", err)
		metrics.PersistErrorsTotal.WithLabelValues(storage.KeyActiveContext).Inc()
	}
}
