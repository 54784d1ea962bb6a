package orchestrator

import (
	"vbboot/internal/cmdline"
	"vbboot/internal/config"
	"vbboot/internal/target"
	"vbboot/internal/verifyadapter"
)

// expectedLabels implements spec.md §4.4 step 5's table: which declared
// target names a verified image may legitimately carry for a given boot
// target. A nil result means this target carries no expectation (e.g. an
// ESP-chainloaded EFI binary declares nothing this core checks).
func expectedLabels(t target.BootTarget, recoveryInBootPartition bool) []string {
	switch t {
	case target.Recovery:
		if recoveryInBootPartition {
			return []string{"/boot"}
		}
		return []string{"/recovery"}
	case target.NormalBoot, target.Memory, target.Charger, target.ESPBootImage:
		return []string{"/boot", "/recovery"}
	default:
		return nil
	}
}

// nameMismatch reports whether declared fails every expected label for t.
func nameMismatch(t target.BootTarget, recoveryInBootPartition bool, declared string) bool {
	labels := expectedLabels(t, recoveryInBootPartition)
	if labels == nil {
		return false
	}
	for _, l := range labels {
		if l == declared {
			return false
		}
	}
	return true
}

// buildCmdline wires the Command-Line Builder from the orchestrator's
// accumulated state.
func buildCmdline(p config.Policy, dec target.Decision, activeSlot string, data verifyadapter.SlotData) string {
	return cmdline.Build(cmdline.Params{
		Target:          dec.Target,
		ABEnabled:       p.ABEnabled,
		SlotSuffix:      activeSlot,
		VerifiedCmdline: data.VerifiedCmdline,
		SystemPartUUID:  p.SystemPartUUID,
		CallerFragment:  p.CallerCmdlineFragment,
	})
}
