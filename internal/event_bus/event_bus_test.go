package event_bus

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_Publish(t *testing.T) {
	t.Run("should call handlers in subscription order", func(t *testing.T) {
		// given
		bus := NewEventBus()
		var calls []int
		for i := 1; i <= 5; i++ {
			bus.Subscribe(LineChangedEvent, func(e Event) error {
				calls = append(calls, i)
				return nil
			})
		}

		// when
		err := bus.Publish(NewEvent(context.Background(), LineChangedEvent, LineChanged{}))

		// then
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4, 5}, calls)
	})

	t.Run("should deliver typed payloads only", func(t *testing.T) {
		// given
		bus := NewEventBus()
		programId := uuid.New()
		var received []uuid.UUID
		SubscribeTyped(bus, LineChangedEvent, func(e EventT[LineChanged]) error {
			received = append(received, e.Data.ProgramId)
			return nil
		})

		// when
		require.NoError(t, bus.Publish(NewEvent(context.Background(), LineChangedEvent, LineChanged{ProgramId: programId})))
		require.NoError(t, bus.Publish(NewEvent(context.Background(), LineChangedEvent, "not a line")))
		require.NoError(t, bus.Publish(NewEvent(context.Background(), LineChangedEvent, nil)))

		// then
		assert.Equal(t, []uuid.UUID{programId}, received)
	})

	t.Run("should collect errors and recover panics", func(t *testing.T) {
		// given
		bus := NewEventBus()
		failure := errors.New("boom")
		called := false
		bus.Subscribe(ProgramChangedEvent, func(e Event) error { return failure })
		bus.Subscribe(ProgramChangedEvent, func(e Event) error { panic("unexpected") })
		bus.Subscribe(ProgramChangedEvent, func(e Event) error {
			called = true
			return nil
		})

		// when
		err := bus.Publish(NewEvent(context.Background(), ProgramChangedEvent, ProgramChanged{}))

		// then
		assert.ErrorIs(t, err, failure)
		assert.Contains(t, err.Error(), "handler panic")
		assert.True(t, called)
	})

	t.Run("should not publish with a cancelled context", func(t *testing.T) {
		// given
		bus := NewEventBus()
		called := false
		bus.Subscribe(LineChangedEvent, func(e Event) error {
			called = true
			return nil
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// when
		err := bus.Publish(NewEvent(ctx, LineChangedEvent, LineChanged{}))

		// then
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("should stop calling an unsubscribed handler", func(t *testing.T) {
		// given
		bus := NewEventBus()
		count := 0
		unsubscribe := bus.Subscribe(LineChangedEvent, func(e Event) error {
			count++
			return nil
		})
		require.NoError(t, bus.Publish(NewEvent(context.Background(), LineChangedEvent, LineChanged{})))

		// when
		unsubscribe()
		require.NoError(t, bus.Publish(NewEvent(context.Background(), LineChangedEvent, LineChanged{})))

		// then
		assert.Equal(t, 1, count)
	})
}
