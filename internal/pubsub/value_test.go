package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recv reads one value from ch or fails the test after a timeout.
func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for value")
		panic("unreachable")
	}
}

func TestValue_CurrentValueOnSubscribe(t *testing.T) {
	t.Parallel()

	v := NewValue(42)

	ch, cancel := v.Subscribe()
	defer cancel()

	assert.Equal(t, 42, recv(t, ch))
}

func TestValue_SetDelivers(t *testing.T) {
	t.Parallel()

	v := NewValue(0)

	ch, cancel := v.Subscribe()
	defer cancel()

	recv(t, ch) // drain initial

	v.Set(7)
	assert.Equal(t, 7, recv(t, ch))
	assert.Equal(t, 7, v.Get())
}

func TestValue_Conflation(t *testing.T) {
	t.Parallel()

	v := NewValue(0)

	ch, cancel := v.Subscribe()
	defer cancel()

	// No reads between sets: the subscriber must see the latest value only.
	v.Set(1)
	v.Set(2)
	v.Set(3)

	assert.Equal(t, 3, recv(t, ch))
}

func TestValue_CancelClosesChannel(t *testing.T) {
	t.Parallel()

	v := NewValue(0)

	ch, cancel := v.Subscribe()
	recv(t, ch)
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")

	// Cancel is idempotent and Set after cancel must not panic.
	cancel()
	v.Set(9)
}

func TestValue_HasSubscribers(t *testing.T) {
	t.Parallel()

	v := NewValue(0)
	assert.False(t, v.HasSubscribers())

	_, cancel := v.Subscribe()
	assert.True(t, v.HasSubscribers())

	cancel()
	assert.False(t, v.HasSubscribers())
}

func TestValue_IndependentSubscribers(t *testing.T) {
	t.Parallel()

	v := NewValue("a")

	ch1, cancel1 := v.Subscribe()
	ch2, cancel2 := v.Subscribe()

	defer cancel2()

	recv(t, ch1)
	recv(t, ch2)

	cancel1()
	v.Set("b")

	assert.Equal(t, "b", recv(t, ch2))
}
