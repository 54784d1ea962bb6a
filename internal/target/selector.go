package target

import "vbboot/internal/keyinput"

// CmdlineFlags is the subset of the loaded image's command-line flags
// choose_target inspects (spec.md §4.1 rule 1). Historical flags with no
// remaining effect ("-a <addr>") are represented only by the behavior they
// still have, not by the address itself.
type CmdlineFlags struct {
	ForceFastboot bool // -f
	RAMBootAddr   bool // -a <addr>: ignored beyond forcing FASTBOOT
	SelfTest      bool // -U [name]: non-production builds only
}

// WakeSource is the reason the platform powered on, consulted by rules 5
// and 9.
type WakeSource int

const (
	WakeOther WakeSource = iota
	WakeBatteryInserted
	WakeChargerInserted
)

// BCBResolution is the subset of a BCB consume result choose_target needs;
// kept as its own type (rather than importing internal/bcb) to avoid a
// dependency from target back onto bcb — bcb already depends on target for
// BootTarget and NameToTarget.
type BCBResolution struct {
	Target  BootTarget
	ESPPath string
	Oneshot bool
}

// Decision is choose_target's full result: the chosen target plus the two
// side channels spec.md §4.1 describes (an ESP path for path-like BCB/
// loader-variable targets, and whether the selection is one-shot) plus the
// verity_corrupted flag rule 7 can set independently of which target wins.
type Decision struct {
	Target          BootTarget
	ESPPath         string
	Oneshot         bool
	VerityCorrupted bool
}

// Inputs aggregates every external signal choose_target consults, ordered
// to match spec.md §4.1's ten rules. Each is collected by the orchestrator
// from the relevant component (§4.6's slot controller, §4.7's watchdog,
// keyinput's poll, the BCB consume, the fwvars store) before calling
// Choose; choose_target itself performs no I/O.
type Inputs struct {
	Flags              CmdlineFlags
	NonProductionBuild bool

	ForceFastbootSentinel bool // \force_fastboot exists on the ESP

	MagicKey keyinput.Result

	// WatchdogFired is true when §4.7's evaluation produced anything
	// other than NORMAL_BOOT; WatchdogTarget carries that result.
	WatchdogFired  bool
	WatchdogTarget BootTarget

	OffModeChargeEnabled bool
	WakeSource           WakeSource

	BCB BCBResolution

	// OneShotLoaderName is the (already name_to_target-resolvable) value
	// read from the LoaderEntryOneShot firmware variable, or "" if it was
	// absent. VerityCorruptedSentinel is handled by Choose directly.
	OneShotLoaderName string

	BatteryBelowThreshold bool
	ChargerAttached       bool
}

// VerityCorruptedSentinel is the special LoaderEntryOneShot string spec.md
// §4.1 rule 7 names.
const VerityCorruptedSentinel = "dm-verity device corrupted"

// Choose implements choose_target(env): strict priority order, first rule
// producing a non-NORMAL_BOOT result wins. Pure function of Inputs — no
// I/O, no clock, fully deterministic, so every rule is independently
// testable.
func Choose(in Inputs) Decision {
	// Rule 1: command-line flags.
	if in.Flags.ForceFastboot {
		return Decision{Target: Fastboot}
	}
	if in.Flags.RAMBootAddr {
		return Decision{Target: Fastboot}
	}
	if in.Flags.SelfTest && in.NonProductionBuild {
		return Decision{Target: ExitShell}
	}

	// Rule 2: fastboot sentinel file on the ESP.
	if in.ForceFastbootSentinel {
		return Decision{Target: Fastboot}
	}

	// Rule 3: magic key.
	if in.MagicKey.Seen {
		if in.MagicKey.LongHeld() {
			return Decision{Target: Fastboot}
		}
		return Decision{Target: Recovery}
	}

	// Rule 4: watchdog/panic loop detector (§4.7 already evaluated).
	if in.WatchdogFired {
		return Decision{Target: in.WatchdogTarget}
	}

	// Rule 5: battery-insert wake.
	if in.OffModeChargeEnabled && in.WakeSource == WakeBatteryInserted {
		return Decision{Target: PowerOff}
	}

	// Rule 6: BCB command.
	if in.BCB.Target != NormalBoot {
		return Decision{Target: in.BCB.Target, ESPPath: in.BCB.ESPPath, Oneshot: in.BCB.Oneshot}
	}

	// Rule 7: one-shot loader variable.
	if in.OneShotLoaderName == VerityCorruptedSentinel {
		// Falls through to NORMAL_BOOT, but the verity_corrupted flag
		// must still reach the caller so it can update slot metadata.
		verityDecision := Decision{Target: NormalBoot, VerityCorrupted: true}
		if d, ok := chooseRemaining(in); ok {
			d.VerityCorrupted = true
			return d
		}
		return verityDecision
	}
	if resolved, ok := NameToTarget[in.OneShotLoaderName]; ok && resolved != NormalBoot {
		if resolved == Charger && !in.OffModeChargeEnabled {
			resolved = PowerOff
		}
		return Decision{Target: resolved}
	}

	if d, ok := chooseRemaining(in); ok {
		return d
	}
	return Decision{Target: NormalBoot}
}

// chooseRemaining evaluates rules 8-9, used both for the normal flow past
// rule 7 and for the verity-corrupted fallthrough, which must still apply
// battery/charger routing rather than jumping straight to NORMAL_BOOT.
func chooseRemaining(in Inputs) (Decision, bool) {
	// Rule 8: battery level.
	if in.BatteryBelowThreshold {
		if in.ChargerAttached {
			return Decision{Target: Charger}, true
		}
		return Decision{Target: PowerOff}, true
	}

	// Rule 9: charger wake.
	if in.WakeSource == WakeChargerInserted && in.OffModeChargeEnabled {
		return Decision{Target: Charger}, true
	}

	return Decision{}, false
}
