package progress

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInOrderPerSession(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := bus.Subscribe(ctx, "s1")
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, "s2")
	require.NoError(t, err)

	go func() {
		for i := 0; i < 20; i++ {
			_ = bus.Publish("s1", Thought(fmt.Sprintf("n%d", i), "working"))
		}
		_ = bus.Publish("s1", Complete("answer", 0.8, 2))
	}()

	var got []Event
	for ev := range events {
		got = append(got, ev)
		if ev.Terminal() {
			break
		}
	}

	require.Len(t, got, 21)
	for i := 0; i < 20; i++ {
		assert.Equal(t, fmt.Sprintf("n%d", i), got[i].Node)
	}
	last := got[20]
	assert.Equal(t, StatusComplete, last.Status)
	require.NotNil(t, last.Confidence)
	assert.Equal(t, 0.8, *last.Confidence)

	select {
	case ev := <-other:
		t.Fatalf("unexpected event on other session: %+v", ev)
	default:
	}
}

func TestEvent_Terminal(t *testing.T) {
	assert.False(t, Thought("label", "x").Terminal())
	assert.True(t, Failure("boom").Terminal())
	assert.True(t, Complete("a", 0, 1).Terminal())
}
