package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_OnReceivesEveryPublish(t *testing.T) {
	t.Parallel()
	bus := NewBus()

	var got []any
	bus.On("topic", func(p any) { got = append(got, p) })

	bus.Publish("topic", 1)
	bus.Publish("topic", nil)
	bus.Publish("other", 3)

	assert.Equal(t, []any{1, nil}, got)
}

func TestBus_OnceFiresAtMostOnce(t *testing.T) {
	t.Parallel()
	bus := NewBus()

	calls := 0
	bus.Once(Communication, func(any) { calls++ })

	assert.Equal(t, 1, bus.Publish(Communication, nil))
	assert.Equal(t, 0, bus.Publish(Communication, nil))
	assert.Equal(t, 1, calls)
	assert.Zero(t, bus.Count(Communication))
}

func TestBus_OnceUnderConcurrentPublish(t *testing.T) {
	t.Parallel()
	bus := NewBus()

	var mu sync.Mutex
	calls := 0
	bus.Once("race", func(any) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish("race", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
}

func TestBus_OffRemovesOnlyThatListener(t *testing.T) {
	t.Parallel()
	bus := NewBus()

	var order []string
	first := bus.On("topic", func(any) { order = append(order, "first") })
	bus.On("topic", func(any) { order = append(order, "second") })

	bus.Off(first)
	bus.Publish("topic", nil)

	require.Equal(t, []string{"second"}, order)

	bus.OffAll("topic")
	assert.Zero(t, bus.Publish("topic", nil))
}

func TestBus_ListenersRunInRegistrationOrder(t *testing.T) {
	t.Parallel()
	bus := NewBus()

	var order []int
	for i := 0; i < 5; i++ {
		bus.On("topic", func(any) { order = append(order, i) })
	}
	bus.Publish("topic", nil)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}
