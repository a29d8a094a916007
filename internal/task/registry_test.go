package task

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHandler is a minimal Handler for registry and pool tests.
type stubHandler struct {
	taskType    string
	validateErr error
	execute     func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

func (h *stubHandler) Type() string { return h.taskType }

func (h *stubHandler) ValidatePayload(payload json.RawMessage) error {
	return h.validateErr
}

func (h *stubHandler) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	if h.execute != nil {
		return h.execute(ctx, payload)
	}
	return json.RawMessage(`{}`), nil
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	h := &stubHandler{taskType: "analysis"}

	require.NoError(t, r.Register(h))

	resolved, err := r.Resolve("analysis")
	require.NoError(t, err)
	assert.Same(t, Handler(h), resolved)
}

func TestRegistryUnknownTaskType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("nope")
	assert.ErrorIs(t, err, ErrUnknownTaskType)
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubHandler{taskType: "analysis"}))

	err := r.Register(&stubHandler{taskType: "analysis"})
	assert.ErrorIs(t, err, ErrDuplicateTaskType)
}

func TestRegistrySealRejectsRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubHandler{taskType: "analysis"}))
	r.Seal()

	err := r.Register(&stubHandler{taskType: "daily-digest"})
	assert.ErrorIs(t, err, ErrRegistrySealed)

	// Resolution still works after sealing.
	_, err = r.Resolve("analysis")
	assert.NoError(t, err)
}

func TestRegistryTypes(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubHandler{taskType: "daily-digest"}))
	require.NoError(t, r.Register(&stubHandler{taskType: "analysis"}))

	assert.Equal(t, []string{"analysis", "daily-digest"}, r.Types())
}
