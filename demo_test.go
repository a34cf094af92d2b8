package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// demoAt builds a demo adapter whose clock sits a fixed offset into the
// simulated cycle.
func demoAt(offset time.Duration) *DemoAdapter {
	adapter := NewDemoAdapter()
	start := adapter.start
	adapter.now = func() time.Time { return start.Add(offset) }
	return adapter
}

func TestDemoAdapter(t *testing.T) {
	t.Run("printing phase", func(t *testing.T) {
		adapter := demoAt(60 * time.Second) // halfway through the print

		state, err := adapter.Fetch(context.Background())
		require.NoError(t, err)

		assert.Equal(t, StatusPrinting, state.Status)
		require.NotNil(t, state.Progress)
		assert.InDelta(t, 0.5, *state.Progress, 0.01)
		assert.InDelta(t, 60, *state.ETASeconds, 1)
		assert.Equal(t, "demo_model.gcode", state.JobName)
		assert.Equal(t, 215.0, *state.NozzleTemp)
		assert.Equal(t, 60.0, *state.BedTemp)
	})

	t.Run("progress increases and eta decreases", func(t *testing.T) {
		early, err := demoAt(10 * time.Second).Fetch(context.Background())
		require.NoError(t, err)
		late, err := demoAt(100 * time.Second).Fetch(context.Background())
		require.NoError(t, err)

		assert.Less(t, *early.Progress, *late.Progress)
		assert.Greater(t, *early.ETASeconds, *late.ETASeconds)
	})

	t.Run("paused phase", func(t *testing.T) {
		adapter := demoAt(DemoPrintDuration + 5*time.Second)

		state, err := adapter.Fetch(context.Background())
		require.NoError(t, err)

		assert.Equal(t, StatusPaused, state.Status)
		assert.Equal(t, 0.75, *state.Progress)
		assert.Equal(t, 30, *state.ETASeconds)
		assert.Nil(t, state.NozzleTemp, "no temperatures outside the printing phase")
	})

	t.Run("idle phase", func(t *testing.T) {
		adapter := demoAt(DemoPrintDuration + DemoPauseDuration + 5*time.Second)

		state, err := adapter.Fetch(context.Background())
		require.NoError(t, err)

		assert.Equal(t, StatusIdle, state.Status)
		assert.Nil(t, state.Progress)
		assert.Nil(t, state.ETASeconds)
		assert.Empty(t, state.JobName)
	})

	t.Run("cycle repeats", func(t *testing.T) {
		full := DemoPrintDuration + DemoPauseDuration + DemoIdleDuration
		adapter := demoAt(full + 60*time.Second)

		state, err := adapter.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusPrinting, state.Status)
	})
}
