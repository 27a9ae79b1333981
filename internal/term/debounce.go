package term

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// DefaultQuietInterval is how long a surface must stop producing resize
// requests before the coalesced relayout fires. Long enough to absorb
// live-resize bursts, short enough not to feel sluggish.
const DefaultQuietInterval = 120 * time.Millisecond

// Relayouter coalesces bursts of layout-induced resize requests into a
// single deferred relayout per surface. Terminal programs treat every size
// change as a signal to the running process, so flooding them during a
// window drag corrupts full-screen TUIs; debouncing here is a correctness
// requirement, not an optimization.
type Relayouter struct {
	quiet time.Duration

	mu    sync.Mutex
	slots map[string]*relayoutSlot
}

type relayoutSlot struct {
	debounced func(func())
	gen       uint64
	armed     bool
}

// NewRelayouter creates a relayouter with the given quiet interval
func NewRelayouter(quiet time.Duration) *Relayouter {
	if quiet <= 0 {
		quiet = DefaultQuietInterval
	}
	return &Relayouter{
		quiet: quiet,
		slots: make(map[string]*relayoutSlot),
	}
}

// Schedule queues fn to run after the quiet interval, replacing any
// pending relayout for the same surface. Only the last-scheduled fn runs;
// two relayouts never execute concurrently for one surface.
func (r *Relayouter) Schedule(surfaceID string, fn func()) {
	r.mu.Lock()
	slot, ok := r.slots[surfaceID]
	if !ok {
		slot = &relayoutSlot{debounced: debounce.New(r.quiet)}
		r.slots[surfaceID] = slot
	}
	slot.gen++
	slot.armed = true
	gen := slot.gen
	r.mu.Unlock()

	slot.debounced(func() {
		// A newer schedule or a cancel invalidates this run
		r.mu.Lock()
		live := slot.gen == gen && slot.armed
		if live {
			slot.armed = false
		}
		if slot.gen == gen && r.slots[surfaceID] == slot {
			// This was the newest timer for the surface; drop the slot so
			// surfaces that come and go do not accumulate entries
			delete(r.slots, surfaceID)
		}
		r.mu.Unlock()

		if live {
			fn()
		}
	})
}

// Cancel drops any pending relayout for the surface. The slot itself stays
// until its timer drains: deleting it here would let a later Schedule
// restart the generation count and revive the canceled closure.
func (r *Relayouter) Cancel(surfaceID string) {
	r.mu.Lock()
	if slot, ok := r.slots[surfaceID]; ok {
		slot.armed = false
	}
	r.mu.Unlock()
}
