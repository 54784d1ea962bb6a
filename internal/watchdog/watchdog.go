// Package watchdog implements the Watchdog/Panic Loop Detector (spec.md
// §4.7): persistent (counter, time_ref) state that escalates to a crash
// event menu after more than max_allowed consecutive watchdog/panic resets
// within a 10 minute window.
package watchdog

import (
	"context"
	"fmt"
	"time"

	"vbboot/internal/target"
)

// ResetReason classifies why this boot happened, as reported by the
// platform's reset-reason register. Decoding that register is out of
// scope; this core only consumes the classification.
type ResetReason int

const (
	ResetOther ResetReason = iota
	ResetWatchdog
	ResetPanic
	ResetUserShutdown
)

// Window is the 10 minute rolling window spec.md §4.7 step 3 names.
const Window = 10 * time.Minute

// State is the persistent counter and time reference.
type State struct {
	Counter uint8
	TimeRef time.Time
}

// Store is the external collaborator persisting State across boots,
// typically in the same opaque firmware-variable encoding as BootState.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, s State) error
}

// Policy carries the two build/runtime knobs this detector needs: the
// maximum consecutive resets tolerated, and whether user-requested
// shutdown reason handling (a production-only behavior) is active.
type Policy struct {
	MaxAllowed uint8
	Production bool
}

// Evaluate runs one boot's worth of the detector and returns the target it
// prefers. A NormalBoot result means "no opinion" — per spec.md §4.1's
// strict-priority contract, the selector must continue to the next rule
// exactly as if this detector had not fired.
func Evaluate(ctx context.Context, store Store, policy Policy, reason ResetReason, now time.Time) (target.BootTarget, error) {
	st, err := store.Load(ctx)
	if err != nil {
		// Transient environmental failure: degrade, never surface.
		st = State{}
	}

	// Step 2 is checked ahead of step 1 here: a production-build
	// user-requested shutdown is a more specific signal than the generic
	// "not watchdog/panic" catch-all, and the two would otherwise race —
	// step 1's counter>0 clause would swallow it before it ever took
	// effect.
	if policy.Production && reason == ResetUserShutdown {
		st = State{}
		if err := store.Save(ctx, st); err != nil {
			return target.NormalBoot, fmt.Errorf("watchdog: persist reset state: %w", err)
		}
		return target.PowerOff, nil
	}

	// Step 1: not a watchdog/panic reset. Reset state if it was armed and
	// yield to the rest of the selector.
	if reason != ResetWatchdog && reason != ResetPanic {
		if st.Counter > 0 {
			st = State{}
			if err := store.Save(ctx, st); err != nil {
				return target.NormalBoot, fmt.Errorf("watchdog: persist reset state: %w", err)
			}
		}
		return target.NormalBoot, nil
	}

	// Step 3: stale or clock-skewed time reference resets the window.
	if now.Sub(st.TimeRef) > Window || now.Before(st.TimeRef) {
		st.Counter = 0
		st.TimeRef = now
	}

	// Step 4: increment and check escalation.
	st.Counter++
	if st.Counter > policy.MaxAllowed {
		st = State{}
		if err := store.Save(ctx, st); err != nil {
			return target.NormalBoot, fmt.Errorf("watchdog: persist escalation reset: %w", err)
		}
		return target.Crashmode, nil
	}

	if err := store.Save(ctx, st); err != nil {
		return target.NormalBoot, fmt.Errorf("watchdog: persist counter state: %w", err)
	}
	return target.NormalBoot, nil
}
