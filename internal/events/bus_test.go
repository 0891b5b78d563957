package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitDeliversToSubscribers(t *testing.T) {
	bus := NewBus()

	var got []any
	bus.Subscribe(ExecutionStarted, func(p any) { got = append(got, p) })
	bus.Subscribe(ExecutionStarted, func(p any) { got = append(got, p) })

	bus.Emit(ExecutionStarted, ExecutionStartedEvent{TaskID: "t1"})
	assert.Len(t, got, 2)

	bus.Emit(ExecutionCompleted, ExecutionCompletedEvent{TaskID: "t1"})
	assert.Len(t, got, 2, "unrelated event must not reach subscribers")
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsub := bus.Subscribe(ApprovalRequested, func(any) { calls++ })
	keep := 0
	bus.Subscribe(ApprovalRequested, func(any) { keep++ })

	bus.Emit(ApprovalRequested, ApprovalRequestedEvent{ID: "a"})
	unsub()
	bus.Emit(ApprovalRequested, ApprovalRequestedEvent{ID: "b"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, keep)
}

func TestEmitWithNoSubscribers(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Emit(ActionExecuted, ActionExecutedEvent{ID: "x"})
	})
}

func TestReset(t *testing.T) {
	bus := NewBus()
	calls := 0
	bus.Subscribe(ActionFailed, func(any) { calls++ })

	bus.Reset()
	bus.Emit(ActionFailed, ActionFailedEvent{ID: "x"})
	assert.Zero(t, calls)
}
