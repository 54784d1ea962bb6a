// Package cmdline implements the Command-Line Builder (spec.md §4.8): the
// final assembly of the kernel command line from the boot target, the
// active slot, and the verifier's own verified fragment.
package cmdline

import (
	"fmt"
	"strings"

	"vbboot/internal/target"
)

// rootFragmentTemplate is prepended whenever the verified cmdline doesn't already
// carry a root= assignment. It is omitted for RECOVERY and MEMORY targets,
// which boot from a ramdisk-only root rather than a PARTUUID-addressed
// filesystem.
const rootFragmentTemplate = "skip_initramfs rootwait ro init=/init root=PARTUUID=%s"

// Params are the inputs the builder needs. VerifiedCmdline is whatever the
// Verifier Adapter returned alongside the loaded image; it may be empty.
type Params struct {
	Target          target.BootTarget
	ABEnabled       bool
	SlotSuffix      string // e.g. "_a"; ignored if ABEnabled is false
	VerifiedCmdline string
	SystemPartUUID  string
	CallerFragment  string
}

// Build assembles the final kernel command line. There is no hidden
// post-processing: what Build returns is exactly what the kernel sees.
func Build(p Params) string {
	line := strings.TrimSpace(p.VerifiedCmdline)

	if p.ABEnabled && p.SlotSuffix != "" {
		line = prepend("androidboot.slot_suffix="+p.SlotSuffix, line)
	}

	if needsRootFragment(p) {
		frag := rootFragmentFor(p.SystemPartUUID)
		line = prepend(frag, line)
	}

	if caller := strings.TrimSpace(p.CallerFragment); caller != "" {
		line = strings.TrimSpace(line + " " + caller)
	}

	return line
}

func needsRootFragment(p Params) bool {
	if p.Target == target.Recovery || p.Target == target.Memory {
		return false
	}
	return !strings.Contains(p.VerifiedCmdline, "root=")
}

func rootFragmentFor(uuid string) string {
	return fmt.Sprintf(rootFragmentTemplate, uuid)
}

func prepend(frag, line string) string {
	if line == "" {
		return frag
	}
	return frag + " " + line
}
