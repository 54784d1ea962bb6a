package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"vbboot/internal/fwvars"
	"vbboot/internal/hostenv"
	"vbboot/internal/keyinput"
	"vbboot/internal/orchestrator"
	"vbboot/internal/slot"
	"vbboot/internal/verifyadapter"
)

// Host flags: where the partitions/ESP/misc/state this host-local stand-in
// drives live. Shared across every command that builds an Orchestrator;
// only one subcommand ever runs per process, so package-level vars are
// simpler than threading a struct through each RunE.
var (
	partitionDir string
	espDir       string
	miscFile     string
	stateDir     string
	keyDevice    string
)

func addHostFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&partitionDir, "partition-dir", "/data/vbboot/partitions", "directory of partition image files")
	cmd.Flags().StringVar(&espDir, "esp-dir", "/boot/efi", "EFI System Partition mount point")
	cmd.Flags().StringVar(&miscFile, "misc-file", "/data/vbboot/misc.img", "path standing in for the misc/BCB partition")
	cmd.Flags().StringVar(&stateDir, "state-dir", "/data/vbboot/state", "directory for slot/rollback/watchdog state")
	cmd.Flags().StringVar(&keyDevice, "key-device", "", "evdev device node for the magic key (empty disables key polling)")
}

// buildOrchestrator wires every external collaborator: efivarfs on Linux
// (a no-op stub elsewhere), the evdev magic key source if configured, and
// the hostenv file-backed stand-ins for the partition/BCB/rollback/
// watchdog/slot stores the real GPT driver and verified-boot library would
// otherwise own.
func buildOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	slotStore := hostenv.SlotFile{Path: filepath.Join(stateDir, "slots.json")}
	slots := slot.New(slotStore)
	if err := slots.Init(ctx); err != nil {
		return nil, fmt.Errorf("vbboot: slot controller init: %w", err)
	}

	var keySource keyinput.Source
	if keyDevice != "" {
		src, err := keyinput.OpenEvdevSource(keyDevice)
		if err != nil {
			log.Warn().Err(err).Str("device", keyDevice).Msg("magic key device unavailable, polling disabled")
		} else {
			keySource = src
		}
	}

	verifier := hostenv.MagicOnlyVerifier{PartitionName: "/boot"}
	log.Warn().Msg("using magic-only verifier stand-in: no cryptographic verification is performed")

	return &orchestrator.Orchestrator{
		Policy:   policy,
		FW:       fwvars.NewEFIStore(),
		BCB:      hostenv.MiscFile{Path: miscFile},
		Slots:    slots,
		Rollback: hostenv.RollbackFile{Path: filepath.Join(stateDir, "rollback.json")},
		Verifier: verifyadapter.New(verifier),
		Watchdog: hostenv.WatchdogFile{Path: filepath.Join(stateDir, "watchdog.json")},
		Parts:    hostenv.PartitionDir{BaseDir: partitionDir},
		ESP:      hostenv.ESPDir{BaseDir: espDir},
		Keys:     keySource,
		Log:      log.Logger,
	}, nil
}
