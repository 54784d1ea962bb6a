package cmdline_test

import (
	"strings"
	"testing"

	"vbboot/internal/cmdline"
	"vbboot/internal/target"
)

func TestNormalBootPrependsEverything(t *testing.T) {
	line := cmdline.Build(cmdline.Params{
		Target:          target.NormalBoot,
		ABEnabled:       true,
		SlotSuffix:      "_a",
		VerifiedCmdline: "console=ttyS0",
		SystemPartUUID:  "1234-5678",
		CallerFragment:  "androidboot.verifiedbootstate=green",
	})
	if !strings.HasPrefix(line, "skip_initramfs rootwait ro init=/init root=PARTUUID=1234-5678") {
		t.Fatalf("expected root fragment first, got %q", line)
	}
	if !strings.Contains(line, "androidboot.slot_suffix=_a") {
		t.Fatalf("expected slot suffix present, got %q", line)
	}
	if !strings.Contains(line, "console=ttyS0") {
		t.Fatalf("expected verified cmdline present, got %q", line)
	}
	if !strings.HasSuffix(line, "androidboot.verifiedbootstate=green") {
		t.Fatalf("expected caller fragment last, got %q", line)
	}
}

func TestRootFragmentOmittedWhenAlreadyPresent(t *testing.T) {
	line := cmdline.Build(cmdline.Params{
		Target:          target.NormalBoot,
		VerifiedCmdline: "root=/dev/sda1 console=ttyS0",
		SystemPartUUID:  "ignored",
	})
	if strings.Contains(line, "PARTUUID") {
		t.Fatalf("did not expect PARTUUID fragment, got %q", line)
	}
}

func TestRootFragmentOmittedForRecovery(t *testing.T) {
	line := cmdline.Build(cmdline.Params{
		Target:          target.Recovery,
		VerifiedCmdline: "console=ttyS0",
		SystemPartUUID:  "1234",
	})
	if strings.Contains(line, "PARTUUID") {
		t.Fatalf("expected no root fragment for RECOVERY, got %q", line)
	}
}

func TestRootFragmentOmittedForMemory(t *testing.T) {
	line := cmdline.Build(cmdline.Params{
		Target:          target.Memory,
		VerifiedCmdline: "console=ttyS0",
		SystemPartUUID:  "1234",
	})
	if strings.Contains(line, "PARTUUID") {
		t.Fatalf("expected no root fragment for MEMORY, got %q", line)
	}
}

func TestSlotSuffixOmittedWhenABDisabled(t *testing.T) {
	line := cmdline.Build(cmdline.Params{
		Target:          target.NormalBoot,
		ABEnabled:       false,
		SlotSuffix:      "_a",
		VerifiedCmdline: "root=/dev/sda1",
	})
	if strings.Contains(line, "slot_suffix") {
		t.Fatalf("did not expect slot suffix when A/B disabled, got %q", line)
	}
}

func TestNoHiddenPostProcessingOnEmptyInputs(t *testing.T) {
	line := cmdline.Build(cmdline.Params{Target: target.Recovery})
	if line != "" {
		t.Fatalf("expected empty cmdline for all-empty inputs, got %q", line)
	}
}
