// Package target implements the Target Selector (spec.md §4.1): the
// prioritized reduction of many boot signals to exactly one BootTarget.
package target

import "fmt"

// BootTarget is the tagged enumeration spec.md §3 names. Exactly these
// variants exist; there is no open extension point, matching the fixed
// set of actions the firmware's handoff switch can take.
type BootTarget int

const (
	NormalBoot BootTarget = iota
	Recovery
	Fastboot
	Charger
	PowerOff
	Memory        // boot from a RAM image supplied over fastboot
	ESPBootImage  // boot image file on the ESP
	ESPEFIBinary  // chainload an EFI binary from the ESP
	DNX
	Crashmode
	ExitShell
	UnknownTarget
)

func (t BootTarget) String() string {
	switch t {
	case NormalBoot:
		return "NORMAL_BOOT"
	case Recovery:
		return "RECOVERY"
	case Fastboot:
		return "FASTBOOT"
	case Charger:
		return "CHARGER"
	case PowerOff:
		return "POWER_OFF"
	case Memory:
		return "MEMORY"
	case ESPBootImage:
		return "ESP_BOOTIMAGE"
	case ESPEFIBinary:
		return "ESP_EFI_BINARY"
	case DNX:
		return "DNX"
	case Crashmode:
		return "CRASHMODE"
	case ExitShell:
		return "EXIT_SHELL"
	case UnknownTarget:
		return "UNKNOWN_TARGET"
	default:
		return fmt.Sprintf("BootTarget(%d)", int(t))
	}
}

// NameToTarget is the static BCB command-name lookup table spec.md §4.1
// rule 6 names. Keys are the bare target name with any "boot-"/"bootonce-"
// prefix already stripped.
var NameToTarget = map[string]BootTarget{
	"":           NormalBoot,
	"recovery":   Recovery,
	"fastboot":   Fastboot,
	"bootloader": Fastboot,
	"dnx":        DNX,
	"crashmode":  Crashmode,
	"charger":    Charger,
	"power_off":  PowerOff,
}
