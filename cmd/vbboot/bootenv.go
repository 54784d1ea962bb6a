package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vbboot/internal/device"
	"vbboot/internal/orchestrator"
	"vbboot/internal/target"
	"vbboot/internal/trust"
	"vbboot/internal/watchdog"
)

// Boot-env flags: the transient platform signals a real firmware entry
// point would already have in hand (reset reason, lock state, battery
// level, ...), exposed here so this core can be driven and inspected from
// a shell instead of only from actual firmware callbacks.
var (
	flagForceFastboot    bool
	flagRAMBootAddr      uint64
	flagSelfTest         bool
	flagFastbootSentinel bool
	flagResetReason      string
	flagWakeSource       string
	flagLockState        string
	flagSecureBoot       bool
	flagProvisioning     bool
	flagChargerAttached  bool
	flagBatteryPercent   int
	flagIncomingColor    string
)

func addBootEnvFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&flagForceFastboot, "force-fastboot", false, "command-line flag forcing FASTBOOT (rule 1)")
	cmd.Flags().Uint64Var(&flagRAMBootAddr, "ram-boot-addr", 0, "non-zero RAM boot address command-line flag (rule 1)")
	cmd.Flags().BoolVar(&flagSelfTest, "self-test", false, "self-test command-line flag, non-production builds only (rule 1)")
	cmd.Flags().BoolVar(&flagFastbootSentinel, "fastboot-sentinel", false, "simulate the \\force_fastboot ESP sentinel (rule 2)")
	cmd.Flags().StringVar(&flagResetReason, "reset-reason", "other", "reset reason: other, watchdog, panic, shutdown")
	cmd.Flags().StringVar(&flagWakeSource, "wake-source", "other", "wake source: other, battery_inserted, charger_inserted")
	cmd.Flags().StringVar(&flagLockState, "lock-state", "locked", "bootloader lock state: locked, unlocked, verified")
	cmd.Flags().BoolVar(&flagSecureBoot, "secure-boot", true, "EFI secure boot enabled")
	cmd.Flags().BoolVar(&flagProvisioning, "provisioning", false, "device is in first-boot provisioning mode")
	cmd.Flags().BoolVar(&flagChargerAttached, "charger-attached", false, "charger currently attached")
	cmd.Flags().IntVar(&flagBatteryPercent, "battery-percent", 100, "current battery percentage")
	cmd.Flags().StringVar(&flagIncomingColor, "incoming-color", "green", "trust color carried in from a prior pipeline stage: green, orange, red")
}

func bindBootEnv() (orchestrator.Env, error) {
	reason, err := parseResetReason(flagResetReason)
	if err != nil {
		return orchestrator.Env{}, err
	}
	wake, err := parseWakeSource(flagWakeSource)
	if err != nil {
		return orchestrator.Env{}, err
	}
	lock, err := parseLockState(flagLockState)
	if err != nil {
		return orchestrator.Env{}, err
	}
	color, err := parseColor(flagIncomingColor)
	if err != nil {
		return orchestrator.Env{}, err
	}

	return orchestrator.Env{
		Flags: target.CmdlineFlags{
			ForceFastboot: flagForceFastboot,
			RAMBootAddr:   flagRAMBootAddr != 0,
			SelfTest:      flagSelfTest,
		},
		ForceFastbootSentinel: flagFastbootSentinel,
		ResetReason:           reason,
		WakeSource:            wake,
		Lock:                  lock,
		EFISecureBootEnabled:  flagSecureBoot,
		Provisioning:          flagProvisioning,
		ChargerAttached:       flagChargerAttached,
		BatteryPercent:        flagBatteryPercent,
		IncomingColor:         color,
	}, nil
}

func parseResetReason(s string) (watchdog.ResetReason, error) {
	switch s {
	case "other":
		return watchdog.ResetOther, nil
	case "watchdog":
		return watchdog.ResetWatchdog, nil
	case "panic":
		return watchdog.ResetPanic, nil
	case "shutdown":
		return watchdog.ResetUserShutdown, nil
	default:
		return 0, fmt.Errorf("vbboot: unknown --reset-reason %q", s)
	}
}

func parseWakeSource(s string) (target.WakeSource, error) {
	switch s {
	case "other":
		return target.WakeOther, nil
	case "battery_inserted":
		return target.WakeBatteryInserted, nil
	case "charger_inserted":
		return target.WakeChargerInserted, nil
	default:
		return 0, fmt.Errorf("vbboot: unknown --wake-source %q", s)
	}
}

func parseLockState(s string) (device.LockState, error) {
	switch s {
	case "locked":
		return device.Locked, nil
	case "unlocked":
		return device.Unlocked, nil
	case "verified":
		return device.Verified, nil
	default:
		return 0, fmt.Errorf("vbboot: unknown --lock-state %q", s)
	}
}

func parseColor(s string) (trust.Color, error) {
	switch s {
	case "green":
		return trust.Green, nil
	case "orange":
		return trust.Orange, nil
	case "red":
		return trust.Red, nil
	default:
		return 0, fmt.Errorf("vbboot: unknown --incoming-color %q", s)
	}
}
