package trust

import "vbboot/internal/device"

// VerifierOutcome is the external verified-boot library's verdict, already
// classified into the buckets spec.md §4.3's mapping table distinguishes.
// The cryptographic detail behind each bucket is out of scope for this
// core; only the bucket matters.
type VerifierOutcome int

const (
	OutcomeOK VerifierOutcome = iota
	OutcomeVerificationError
	OutcomeRollbackIndex
	OutcomeKeyRejected
	OutcomeOtherError
)

func (o VerifierOutcome) String() string {
	switch o {
	case OutcomeOK:
		return "OK"
	case OutcomeVerificationError:
		return "VERIFICATION"
	case OutcomeRollbackIndex:
		return "ROLLBACK_INDEX"
	case OutcomeKeyRejected:
		return "KEY_REJECTED"
	case OutcomeOtherError:
		return "OTHER_ERROR"
	default:
		return "UNKNOWN_OUTCOME"
	}
}

// Inputs are the five signals spec.md §4.4 names: lock state, whether EFI
// secure boot is enabled, whether the device is mid-provisioning, the
// verifier's outcome, and whether the verified image's declared target name
// matched what this boot target expected.
type Inputs struct {
	Lock                 device.LockState
	EFISecureBootEnabled bool
	Provisioning         bool
	Outcome              VerifierOutcome
	TargetNameMismatch   bool
	VerityCorrupted      bool

	// Incoming is the color already persisted from a prior pipeline stage
	// (e.g. a previous fastboot-loop iteration). Zero value Green is
	// correct for a first boot. The ORANGE-latched-by-unlocked special
	// case falls out naturally: Incoming never gets lowered by Reduce.
	Incoming Color
}

// Reduce implements spec.md §4.4's five-step reduction. Every step may only
// raise the running color, never lower it — callers that re-run Reduce
// across a fastboot-loop iteration must feed the previous result back in
// as Incoming to preserve that guarantee across calls, not just within one.
func Reduce(in Inputs) Color {
	state := Green.RaiseTo(in.Incoming)

	// Step 2/3: unsigned firmware or an unlocked bootloader can never be
	// better than ORANGE. The !secureBoot && !provisioning case is latched
	// by virtue of being folded into `state` here and never cleared later.
	if !in.EFISecureBootEnabled && !in.Provisioning {
		state = state.RaiseTo(Orange)
	} else if in.Lock == device.Unlocked {
		state = state.RaiseTo(Orange)
	}

	// Step 4: apply the verifier mapping, using allow_error derived from
	// the state accumulated so far — a device that already isn't GREEN has
	// nothing left to lose by tolerating a verification error.
	allowError := state != Green
	state = state.RaiseTo(mapVerifierOutcome(in.Outcome, allowError, state))

	// Step 5: a mismatched declared target name is always fatal to trust,
	// regardless of anything else.
	if in.TargetNameMismatch {
		state = Red
	}

	// Supplemented: a kernel-flagged verity corruption can't be worse than
	// YELLOW on its own, but combines with whatever else already raised
	// the state.
	if in.VerityCorrupted {
		state = state.RaiseTo(Yellow)
	}

	return state
}

// mapVerifierOutcome implements spec.md §4.3's table. `state` is the
// running color computed so far (before this step), needed for the
// "ORANGE if <= ORANGE; else RED" branch of the allow_error=true column.
func mapVerifierOutcome(outcome VerifierOutcome, allowError bool, state Color) Color {
	if outcome == OutcomeOK {
		if !allowError {
			return Green // "keep state": no raise contributed
		}
		return Orange // "raise to ORANGE if below"
	}

	// VERIFICATION / ROLLBACK / KEY_REJECTED / any other error.
	if !allowError {
		return Red
	}
	if state <= Orange {
		return Orange
	}
	return Red
}
