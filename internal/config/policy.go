// Package config loads this core's boot policy: the tunables spec.md §6
// calls out as firmware variables or build-time settings, plus the ones
// that realistically live in an on-disk config file shipped with the
// bootloader image. Modeled on the teacher's cmd/root.go viper wiring.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/viper"
)

// DefaultConfigPath is where Policy is read from when no --config flag
// overrides it.
const DefaultConfigPath = "/etc/vbboot/policy.yaml"

// EnvPrefix namespaces environment-variable overrides, e.g.
// VBBOOT_WATCHDOG_MAX_ALLOWED.
const EnvPrefix = "VBBOOT"

// Policy is every tunable the orchestrator needs that isn't itself part of
// the boot-to-boot state machine (that state lives in fwvars/slot/bcb
// stores, not here).
type Policy struct {
	// Production is false on engineering builds, where rule 1's -U flag
	// and the RED-under-trusted-OS leniency (§4.3 Open Question 2,
	// deliberately NOT carried forward — see DESIGN.md) would otherwise
	// differ from a production build.
	Production bool

	// ABEnabled selects the A/B slot-failover Image Loader path.
	ABEnabled bool

	// RecoveryInBootPartition mirrors spec.md §4.2's recovery-routing
	// knob: true when there is no dedicated recovery partition.
	RecoveryInBootPartition bool

	// OffModeChargeEnabled gates target-selector rules 5, 7, 9.
	OffModeChargeEnabled bool

	// WatchdogMaxAllowed is §4.7's reset-counter ceiling before CRASHMODE.
	WatchdogMaxAllowed uint8

	// TrustedOSIntegrated reports whether a trusted OS consumes BootState
	// out-of-band; purely informational at this layer.
	TrustedOSIntegrated bool

	// BatteryThresholdPercent is the boot-OS battery floor rule 8 checks.
	BatteryThresholdPercent int

	// CallerCmdlineFragment is appended last by the Command-Line Builder
	// (spec.md §4.8); typically empty outside of OEM customization.
	CallerCmdlineFragment string

	// SystemPartUUID feeds the root= cmdline fragment.
	SystemPartUUID string
}

// Load reads cfgFile (or DefaultConfigPath if empty) plus VBBOOT_*
// environment overrides into a Policy. A missing config file is not an
// error: defaults apply, matching the teacher's initConfig, which treats a
// missing file as "using defaults" rather than failing cobra's
// PersistentPreRun. A config file that exists but cannot be read or
// parsed is returned as an error.
func Load(cfgFile string) (Policy, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigFile(DefaultConfigPath)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// An explicitly set config file that does not exist surfaces as a
		// plain fs.ErrNotExist rather than ConfigFileNotFoundError.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return Policy{}, fmt.Errorf("config: parse %s: %w", v.ConfigFileUsed(), err)
		}
	}

	return Policy{
		Production:              v.GetBool("production"),
		ABEnabled:               v.GetBool("ab_enabled"),
		RecoveryInBootPartition: v.GetBool("recovery_in_boot_partition"),
		OffModeChargeEnabled:    v.GetBool("off_mode_charge_enabled"),
		WatchdogMaxAllowed:      uint8(v.GetUint32("watchdog.max_allowed")),
		TrustedOSIntegrated:     v.GetBool("trusted_os_integrated"),
		BatteryThresholdPercent: v.GetInt("battery.threshold_percent"),
		CallerCmdlineFragment:   v.GetString("cmdline.caller_fragment"),
		SystemPartUUID:          v.GetString("system_part_uuid"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("production", true)
	v.SetDefault("ab_enabled", true)
	v.SetDefault("recovery_in_boot_partition", true)
	v.SetDefault("off_mode_charge_enabled", true)
	v.SetDefault("watchdog.max_allowed", 3)
	v.SetDefault("trusted_os_integrated", false)
	v.SetDefault("battery.threshold_percent", 3)
	v.SetDefault("cmdline.caller_fragment", "")
	v.SetDefault("system_part_uuid", "")
}
