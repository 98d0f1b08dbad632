package event

import (
	"testing"

	"task-registry-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate_StartedEvent(t *testing.T) {
	ops := []PatchOperation{
		{Op: "replace", Path: "/taskStatus", Value: "STARTED"},
	}

	ev, err := Translate("t-1", ops)

	require.NoError(t, err)
	started, ok := ev.(domain.TaskStartedEvent)
	require.True(t, ok)
	assert.Equal(t, "t-1", started.TaskID)
}

func TestTranslate_ExecutedEventWithOutput(t *testing.T) {
	ops := []PatchOperation{
		{Op: "replace", Path: "/taskStatus", Value: "EXECUTED"},
		{Op: "replace", Path: "/outputData", Value: "42"},
	}

	ev, err := Translate("t-1", ops)

	require.NoError(t, err)
	executed, ok := ev.(domain.TaskExecutedEvent)
	require.True(t, ok)
	assert.Equal(t, "t-1", executed.TaskID)
	require.NotNil(t, executed.OutputData)
	assert.Equal(t, "42", *executed.OutputData)
}

func TestTranslate_ExecutedEventWithoutOutput(t *testing.T) {
	ops := []PatchOperation{
		{Op: "replace", Path: "/taskStatus", Value: "EXECUTED"},
	}

	ev, err := Translate("t-1", ops)

	require.NoError(t, err)
	executed, ok := ev.(domain.TaskExecutedEvent)
	require.True(t, ok)
	assert.Nil(t, executed.OutputData)
}

func TestTranslate_OrderOfOperationsDoesNotMatter(t *testing.T) {
	ops := []PatchOperation{
		{Op: "replace", Path: "/outputData", Value: "42"},
		{Op: "replace", Path: "/taskStatus", Value: "EXECUTED"},
	}

	ev, err := Translate("t-1", ops)

	require.NoError(t, err)
	executed, ok := ev.(domain.TaskExecutedEvent)
	require.True(t, ok)
	require.NotNil(t, executed.OutputData)
	assert.Equal(t, "42", *executed.OutputData)
}

func TestTranslate_MalformedPayloads(t *testing.T) {
	cases := []struct {
		name string
		ops  []PatchOperation
	}{
		{
			name: "empty operation list",
			ops:  []PatchOperation{},
		},
		{
			name: "two status operations",
			ops: []PatchOperation{
				{Op: "replace", Path: "/taskStatus", Value: "STARTED"},
				{Op: "replace", Path: "/taskStatus", Value: "EXECUTED"},
			},
		},
		{
			name: "duplicate output operations",
			ops: []PatchOperation{
				{Op: "replace", Path: "/taskStatus", Value: "EXECUTED"},
				{Op: "replace", Path: "/outputData", Value: "a"},
				{Op: "replace", Path: "/outputData", Value: "b"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := Translate("t-1", tc.ops)

			assert.Nil(t, ev)
			assert.ErrorIs(t, err, domain.ErrMalformedPatch)
		})
	}
}

func TestTranslate_UnknownEvents(t *testing.T) {
	cases := []struct {
		name string
		ops  []PatchOperation
	}{
		{
			name: "unsupported op",
			ops: []PatchOperation{
				{Op: "add", Path: "/taskStatus", Value: "STARTED"},
			},
		},
		{
			name: "unrecognized path",
			ops: []PatchOperation{
				{Op: "replace", Path: "/taskName", Value: "renamed"},
			},
		},
		{
			name: "no status operation",
			ops: []PatchOperation{
				{Op: "replace", Path: "/outputData", Value: "42"},
			},
		},
		{
			name: "status value outside the lifecycle",
			ops: []PatchOperation{
				{Op: "replace", Path: "/taskStatus", Value: "CANCELLED"},
			},
		},
		{
			name: "backward status value",
			ops: []PatchOperation{
				{Op: "replace", Path: "/taskStatus", Value: "ASSIGNED"},
			},
		},
		{
			name: "output attached to a start event",
			ops: []PatchOperation{
				{Op: "replace", Path: "/taskStatus", Value: "STARTED"},
				{Op: "replace", Path: "/outputData", Value: "42"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := Translate("t-1", tc.ops)

			assert.Nil(t, ev)
			assert.ErrorIs(t, err, domain.ErrUnknownEvent)
		})
	}
}
