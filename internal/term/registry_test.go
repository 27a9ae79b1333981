package term

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAcquire(t *testing.T) {
	t.Run("CreatesOncePerKey", func(t *testing.T) {
		registry, launcher := newTestRegistry()
		defer registry.Shutdown()

		specA := ConsoleSpec{Command: "bash", Args: []string{"--login"}}
		specB := ConsoleSpec{Command: "zsh"}

		first, created, err := registry.Acquire("resume:s1", specA)
		require.NoError(t, err)
		assert.True(t, created)

		// A lookup hit ignores the newly supplied spec
		second, created, err := registry.Acquire("resume:s1", specB)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Same(t, first, second)
		assert.Equal(t, "bash", second.Spec().Command)

		assert.Equal(t, 1, launcher.launchCount())
		assert.True(t, registry.Exists("resume:s1"))
	})

	t.Run("ConcurrentAcquireSameKey", func(t *testing.T) {
		registry, launcher := newTestRegistry()
		defer registry.Shutdown()

		spec := ConsoleSpec{Command: "bash"}
		sessions := make([]*Session, 10)
		errs := make([]error, 10)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sessions[i], _, errs[i] = registry.Acquire("new:draft", spec)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}

		// First writer wins; everyone else joins the winner
		assert.Equal(t, 1, launcher.launchCount())
		for _, session := range sessions {
			assert.Same(t, sessions[0], session)
		}
	})

	t.Run("LaunchFailureLeavesKeyUnregistered", func(t *testing.T) {
		registry, launcher := newTestRegistry()
		defer registry.Shutdown()

		launcher.failNext = true
		spec := ConsoleSpec{Command: "definitely-not-a-shell"}

		_, _, err := registry.Acquire("new:broken", spec)
		require.Error(t, err)

		var creation *CreationError
		require.ErrorAs(t, err, &creation)
		assert.Equal(t, "definitely-not-a-shell", creation.Spec.Command)
		assert.False(t, registry.Exists("new:broken"))

		// Retry with a corrected spec succeeds
		_, created, err := registry.Acquire("new:broken", ConsoleSpec{Command: "bash"})
		require.NoError(t, err)
		assert.True(t, created)
	})
}

func TestRegistryRelease(t *testing.T) {
	t.Run("TerminatesProcessAndRemovesEntry", func(t *testing.T) {
		registry, launcher := newTestRegistry()

		_, _, err := registry.Acquire("resume:s1", ConsoleSpec{Command: "bash"})
		require.NoError(t, err)

		registry.Release("resume:s1")
		assert.False(t, registry.Exists("resume:s1"))
		assert.True(t, launcher.console(0).wasKilled())
	})

	t.Run("Idempotent", func(t *testing.T) {
		registry, _ := newTestRegistry()

		_, _, err := registry.Acquire("resume:s1", ConsoleSpec{Command: "bash"})
		require.NoError(t, err)

		registry.Release("resume:s1")
		registry.Release("resume:s1")
		registry.Release("resume:never-existed")
	})

	t.Run("DiscardsDeliveryInFlight", func(t *testing.T) {
		registry, launcher := newTestRegistry()

		session, _, err := registry.Acquire("resume:s1", ConsoleSpec{Command: "bash"})
		require.NoError(t, err)

		con := launcher.console(0)
		con.emit("before release\n")
		require.Eventually(t, func() bool {
			return len(session.Contents()) > 0
		}, time.Second, 5*time.Millisecond)

		registry.Release("resume:s1")

		// Input after release is rejected, not crashed on
		assert.ErrorIs(t, session.Write([]byte("x")), ErrInputRejected)
	})
}
