package term

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayouterCoalesces(t *testing.T) {
	relayouter := NewRelayouter(50 * time.Millisecond)

	var fired atomic.Int32
	for i := 0; i < 10; i++ {
		relayouter.Schedule("surface-y", func() { fired.Add(1) })
		time.Sleep(10 * time.Millisecond)
	}

	// Exactly one relayout, roughly a quiet interval after the last request
	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestRelayouterLastScheduledWins(t *testing.T) {
	relayouter := NewRelayouter(30 * time.Millisecond)

	var got atomic.Int32
	relayouter.Schedule("s", func() { got.Store(1) })
	relayouter.Schedule("s", func() { got.Store(2) })
	relayouter.Schedule("s", func() { got.Store(3) })

	require.Eventually(t, func() bool {
		return got.Load() == 3
	}, time.Second, 5*time.Millisecond)
}

func TestRelayouterCancel(t *testing.T) {
	relayouter := NewRelayouter(30 * time.Millisecond)

	var fired atomic.Int32
	relayouter.Schedule("s", func() { fired.Add(1) })
	relayouter.Cancel("s")

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestRelayouterCancelThenReschedule(t *testing.T) {
	relayouter := NewRelayouter(50 * time.Millisecond)

	var stale, fresh atomic.Int32
	relayouter.Schedule("s", func() { stale.Add(1) })
	relayouter.Cancel("s")
	relayouter.Schedule("s", func() { fresh.Add(1) })

	require.Eventually(t, func() bool {
		return fresh.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// The canceled relayout must stay dead even though the surface was
	// rescheduled within the quiet interval
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), stale.Load())
	assert.Equal(t, int32(1), fresh.Load())
}

func TestRelayouterIndependentSurfaces(t *testing.T) {
	relayouter := NewRelayouter(30 * time.Millisecond)

	var a, b atomic.Int32
	relayouter.Schedule("a", func() { a.Add(1) })
	relayouter.Schedule("b", func() { b.Add(1) })

	require.Eventually(t, func() bool {
		return a.Load() == 1 && b.Load() == 1
	}, time.Second, 5*time.Millisecond)
}
