package target_test

import (
	"testing"
	"time"

	"vbboot/internal/keyinput"
	"vbboot/internal/target"
)

func TestChooseForceFastbootFlagWinsOverEverythingElse(t *testing.T) {
	in := target.Inputs{
		Flags:                 target.CmdlineFlags{ForceFastboot: true},
		ForceFastbootSentinel: true,
		BatteryBelowThreshold: true,
	}
	d := target.Choose(in)
	if d.Target != target.Fastboot {
		t.Fatalf("expected FASTBOOT, got %v", d.Target)
	}
}

func TestChooseSelfTestFlagRequiresNonProduction(t *testing.T) {
	d := target.Choose(target.Inputs{Flags: target.CmdlineFlags{SelfTest: true}, NonProductionBuild: false})
	if d.Target != target.NormalBoot {
		t.Fatalf("expected self-test ignored on production build, got %v", d.Target)
	}
	d = target.Choose(target.Inputs{Flags: target.CmdlineFlags{SelfTest: true}, NonProductionBuild: true})
	if d.Target != target.ExitShell {
		t.Fatalf("expected EXIT_SHELL, got %v", d.Target)
	}
}

func TestChooseFastbootSentinel(t *testing.T) {
	d := target.Choose(target.Inputs{ForceFastbootSentinel: true})
	if d.Target != target.Fastboot {
		t.Fatalf("expected FASTBOOT, got %v", d.Target)
	}
}

func TestChooseMagicKeyLongPressIsFastboot(t *testing.T) {
	d := target.Choose(target.Inputs{MagicKey: keyinput.Result{Seen: true, Held: 3 * time.Second}})
	if d.Target != target.Fastboot {
		t.Fatalf("expected FASTBOOT for long press, got %v", d.Target)
	}
}

func TestChooseMagicKeyShortPressIsRecovery(t *testing.T) {
	d := target.Choose(target.Inputs{MagicKey: keyinput.Result{Seen: true, Held: 100 * time.Millisecond}})
	if d.Target != target.Recovery {
		t.Fatalf("expected RECOVERY for short press, got %v", d.Target)
	}
}

func TestChooseWatchdogFiredOverridesLowerPriorityRules(t *testing.T) {
	d := target.Choose(target.Inputs{
		WatchdogFired:         true,
		WatchdogTarget:        target.Crashmode,
		BatteryBelowThreshold: true,
	})
	if d.Target != target.Crashmode {
		t.Fatalf("expected CRASHMODE, got %v", d.Target)
	}
}

func TestChooseBatteryInsertWake(t *testing.T) {
	d := target.Choose(target.Inputs{OffModeChargeEnabled: true, WakeSource: target.WakeBatteryInserted})
	if d.Target != target.PowerOff {
		t.Fatalf("expected POWER_OFF, got %v", d.Target)
	}
}

func TestChooseBatteryInsertWakeIgnoredWhenOffModeChargeDisabled(t *testing.T) {
	d := target.Choose(target.Inputs{OffModeChargeEnabled: false, WakeSource: target.WakeBatteryInserted})
	if d.Target != target.NormalBoot {
		t.Fatalf("expected NORMAL_BOOT, got %v", d.Target)
	}
}

func TestChooseBCBCommandWins(t *testing.T) {
	d := target.Choose(target.Inputs{BCB: target.BCBResolution{Target: target.Recovery}})
	if d.Target != target.Recovery {
		t.Fatalf("expected RECOVERY, got %v", d.Target)
	}
}

func TestChooseBCBPathLikeCarriesESPPathAndOneshot(t *testing.T) {
	d := target.Choose(target.Inputs{BCB: target.BCBResolution{Target: target.ESPEFIBinary, ESPPath: `\staging\boot.efi`, Oneshot: true}})
	if d.Target != target.ESPEFIBinary || d.ESPPath != `\staging\boot.efi` || !d.Oneshot {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestChooseOneShotLoaderVariableVerityCorruptedFallsThrough(t *testing.T) {
	d := target.Choose(target.Inputs{OneShotLoaderName: target.VerityCorruptedSentinel})
	if d.Target != target.NormalBoot {
		t.Fatalf("expected fall-through to NORMAL_BOOT, got %v", d.Target)
	}
	if !d.VerityCorrupted {
		t.Fatalf("expected VerityCorrupted flag set")
	}
}

func TestChooseOneShotLoaderVariableVerityCorruptedStillAppliesBatteryRule(t *testing.T) {
	d := target.Choose(target.Inputs{OneShotLoaderName: target.VerityCorruptedSentinel, BatteryBelowThreshold: true, ChargerAttached: true})
	if d.Target != target.Charger {
		t.Fatalf("expected CHARGER from the battery rule, got %v", d.Target)
	}
	if !d.VerityCorrupted {
		t.Fatalf("expected VerityCorrupted flag preserved through fall-through")
	}
}

func TestChooseOneShotLoaderVariableNamesTarget(t *testing.T) {
	d := target.Choose(target.Inputs{OneShotLoaderName: "recovery"})
	if d.Target != target.Recovery {
		t.Fatalf("expected RECOVERY, got %v", d.Target)
	}
}

func TestChooseOneShotLoaderNameUnaffectedWhenNotCharger(t *testing.T) {
	d := target.Choose(target.Inputs{OneShotLoaderName: "fastboot"})
	if d.Target != target.Fastboot {
		t.Fatalf("sanity check failed, got %v", d.Target)
	}
}

func TestChooseOneShotLoaderChargerDegradesWithoutOffModeCharge(t *testing.T) {
	d := target.Choose(target.Inputs{OneShotLoaderName: "charger", OffModeChargeEnabled: false})
	if d.Target != target.PowerOff {
		t.Fatalf("expected POWER_OFF degrade, got %v", d.Target)
	}
	d = target.Choose(target.Inputs{OneShotLoaderName: "charger", OffModeChargeEnabled: true})
	if d.Target != target.Charger {
		t.Fatalf("expected CHARGER preserved, got %v", d.Target)
	}
}

func TestChooseBatteryLevelLowWithCharger(t *testing.T) {
	d := target.Choose(target.Inputs{BatteryBelowThreshold: true, ChargerAttached: true})
	if d.Target != target.Charger {
		t.Fatalf("expected CHARGER, got %v", d.Target)
	}
}

func TestChooseBatteryLevelLowWithoutCharger(t *testing.T) {
	d := target.Choose(target.Inputs{BatteryBelowThreshold: true, ChargerAttached: false})
	if d.Target != target.PowerOff {
		t.Fatalf("expected POWER_OFF, got %v", d.Target)
	}
}

func TestChooseChargerWakeRequiresOffModeCharge(t *testing.T) {
	d := target.Choose(target.Inputs{WakeSource: target.WakeChargerInserted, OffModeChargeEnabled: false})
	if d.Target != target.NormalBoot {
		t.Fatalf("expected NORMAL_BOOT, got %v", d.Target)
	}
	d = target.Choose(target.Inputs{WakeSource: target.WakeChargerInserted, OffModeChargeEnabled: true})
	if d.Target != target.Charger {
		t.Fatalf("expected CHARGER, got %v", d.Target)
	}
}

func TestChooseDefaultsToNormalBoot(t *testing.T) {
	d := target.Choose(target.Inputs{})
	if d.Target != target.NormalBoot {
		t.Fatalf("expected NORMAL_BOOT, got %v", d.Target)
	}
}
