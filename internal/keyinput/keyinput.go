// Package keyinput implements the magic-key poll spec.md §4.1 rule 3 needs:
// watch the down-arrow key for up to magic_key_timeout_ms, at a 1ms poll
// interval, distinguishing a short press (RECOVERY) from a ≥2s hold
// (FASTBOOT). The actual input device enumeration and event decoding is an
// external collaborator; this package only fixes the Poll contract the
// Target Selector drives.
package keyinput

import (
	"context"
	"time"
)

// PollInterval is the fixed sampling cadence spec.md §4.1 rule 3 specifies.
const PollInterval = time.Millisecond

// LongPressThreshold is the hold duration that promotes a magic-key press
// from RECOVERY to FASTBOOT.
const LongPressThreshold = 2 * time.Second

// Result reports whether the magic key was observed, and for how long it
// was held (zero if never seen).
type Result struct {
	Seen bool
	Held time.Duration
}

// LongHeld reports whether the press qualifies as a long hold.
func (r Result) LongHeld() bool {
	return r.Seen && r.Held >= LongPressThreshold
}

// Source is the external collaborator delivering raw down-arrow key state.
// Down reports the instantaneous pressed/released state of the magic key;
// implementations read it from whatever device node carries it.
type Source interface {
	Down(ctx context.Context) (bool, error)
}

// Poll watches src for up to timeout for the magic key to go down. Once it
// is down, Poll keeps watching, past timeout if need be, until the key is
// released or has been held for LongPressThreshold, at PollInterval
// granularity. A Source error degrades to Result{} (key not
// seen) rather than surfacing — firmware input failures are never fatal to
// target selection (spec.md §7).
func Poll(ctx context.Context, src Source, timeout time.Duration) Result {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	var pressedAt time.Time
	pressed := false

	for {
		down, err := src.Down(ctx)
		if err != nil {
			down = false
		}

		now := time.Now()
		switch {
		case down && !pressed:
			pressed = true
			pressedAt = now
		case !down && pressed:
			return Result{Seen: true, Held: now.Sub(pressedAt)}
		}

		if pressed {
			if now.Sub(pressedAt) >= LongPressThreshold {
				return Result{Seen: true, Held: now.Sub(pressedAt)}
			}
		} else if now.After(deadline) {
			return Result{}
		}

		select {
		case <-ctx.Done():
			if pressed {
				return Result{Seen: true, Held: time.Since(pressedAt)}
			}
			return Result{}
		case <-ticker.C:
		}
	}
}
