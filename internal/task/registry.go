package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Task type constants
const (
	// TaskTypeDailyDigest represents the task type for sending an
	// organization's daily Slack digest.
	TaskTypeDailyDigest = "daily-digest"

	// TaskTypeAnalysis represents the task type for running a conversation
	// analysis over a submitted batch.
	TaskTypeAnalysis = "analysis"
)

// Common errors returned by the Registry
var (
	ErrUnknownTaskType   = errors.New("unknown task type")
	ErrDuplicateTaskType = errors.New("task type already registered")
	ErrRegistrySealed    = errors.New("registry is sealed")
)

// Handler performs the actual work for one task type. Implementations must
// treat the payload as immutable input and must not assume anything about
// which worker invokes them or when.
// Version: 1.0
type Handler interface {
	// Type returns the task type identifier this handler is registered under.
	Type() string

	// ValidatePayload checks a payload at submission time, before a job is
	// created. A non-nil error rejects the submission.
	ValidatePayload(payload json.RawMessage) error

	// Execute runs the task logic and returns the structured result, or an
	// error describing the failure cause.
	Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// Registry is a static mapping from task-type identifiers to handlers.
// Registration happens once during process startup; Seal is called before
// the worker pool starts, after which the mapping is read-only.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	sealed   bool
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to its task type. Returns ErrRegistrySealed after
// Seal has been called and ErrDuplicateTaskType for repeated registrations.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, h.Type())
	}

	if _, exists := r.handlers[h.Type()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTaskType, h.Type())
	}

	r.handlers[h.Type()] = h
	return nil
}

// Seal marks the registry read-only. Called once all handlers are registered,
// before the worker pool starts.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Resolve returns the handler bound to taskType, or ErrUnknownTaskType.
func (r *Registry) Resolve(taskType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}
	return h, nil
}

// Types returns the registered task types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
