// Package device holds the small cross-cutting device-state types shared
// by the target selector, trust reducer, and orchestrator, so none of them
// needs to import the others just to talk about lock state.
package device

// LockState is the device's bootloader lock state, persisted in a firmware
// variable (OemLock or equivalent; layout is opaque to this core).
type LockState int

const (
	Locked LockState = iota
	Unlocked
	Verified
)

func (l LockState) String() string {
	switch l {
	case Locked:
		return "LOCKED"
	case Unlocked:
		return "UNLOCKED"
	case Verified:
		return "VERIFIED"
	default:
		return "UNKNOWN_LOCK_STATE"
	}
}
