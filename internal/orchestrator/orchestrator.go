// Package orchestrator composes the Target Selector, Image Loader,
// Verifier Adapter, Trust-State Reducer, Rollback Controller, Slot
// Controller, and Command-Line Builder into the single linear pipeline
// spec.md §2 diagrams, plus the fastboot re-entry loop (orchestrator.go /
// fastboot.go). Every component it drives is itself fully testable in
// isolation; this package's own tests exercise the wiring between them
// with fakes, the way the teacher's magiskboot.go composed cpio/bootimg/
// patch behind one CLI entry point.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/sanity-io/litter"

	"vbboot/internal/bcb"
	"vbboot/internal/config"
	"vbboot/internal/device"
	"vbboot/internal/fwvars"
	"vbboot/internal/image"
	"vbboot/internal/keyinput"
	"vbboot/internal/rollback"
	"vbboot/internal/slot"
	"vbboot/internal/target"
	"vbboot/internal/trust"
	"vbboot/internal/verifyadapter"
	"vbboot/internal/watchdog"
)

// Env is everything the orchestrator needs each boot that isn't already
// owned by one of the persistent stores: transient platform signals the
// firmware hands over at entry.
type Env struct {
	Flags                 target.CmdlineFlags
	ForceFastbootSentinel bool
	ResetReason           watchdog.ResetReason
	WakeSource            target.WakeSource
	Lock                  device.LockState
	EFISecureBootEnabled  bool
	Provisioning          bool
	ChargerAttached       bool
	BatteryPercent        int
	IncomingColor         trust.Color
}

// Outcome is the final result of one pipeline run: what to hand the
// firmware's boot-target switch.
type Outcome struct {
	Target  target.BootTarget
	Color   trust.Color
	Cmdline string
	ESPPath string
}

// Orchestrator holds every external collaborator the pipeline drives.
// Construction wires concrete backends (efivarfs, evdev, GPT partition
// readers, the verified-boot library) in cmd/vbboot; tests wire fakes.
type Orchestrator struct {
	Policy    config.Policy
	FW        fwvars.Store
	BCB       bcb.Store
	Slots     *slot.Controller
	Rollback  rollback.Store
	Verifier  *verifyadapter.Adapter
	Watchdog  watchdog.Store
	Parts     image.PartitionReader
	ESP       image.ESPReader
	Keys      keyinput.Source
	KeyPollMS time.Duration

	Log zerolog.Logger
}

// Boot runs one full pipeline iteration: target selection through
// command-line assembly. Non-fatal failures (a failed image load, a failed
// rollback, slot-bookkeeping or BootState write) never stop the run: they
// degrade the returned Outcome, which is filled in even then, and are also
// returned together as the error so the caller can log them.
func (o *Orchestrator) Boot(ctx context.Context, env Env) (Outcome, error) {
	dec, err := o.ChooseTarget(ctx, env)
	if err != nil {
		return Outcome{}, err
	}
	o.Log.Debug().Str("decision", litter.Sdump(dec)).Msg("target selector decision")

	if dec.VerityCorrupted {
		if err := o.Slots.SetVerityCorrupted(ctx, true); err != nil {
			o.Log.Warn().Err(err).Msg("failed to persist verity_corrupted flag")
		}
	}

	switch dec.Target {
	case target.NormalBoot, target.Recovery, target.Memory, target.Charger,
		target.ESPBootImage, target.ESPEFIBinary:
		return o.runVerifiedPath(ctx, dec, env)
	default:
		// FASTBOOT, POWER_OFF, DNX, CRASHMODE, EXIT_SHELL, UNKNOWN_TARGET:
		// none of these hand off to a kernel, so there is nothing for the
		// verify/trust/cmdline stages to do.
		return Outcome{Target: dec.Target}, nil
	}
}

// ChooseTarget gathers every signal §4.1's priority chain consults and
// calls target.Choose. Each gather step degrades to its rule's "doesn't
// fire" zero value on failure rather than aborting target selection.
func (o *Orchestrator) ChooseTarget(ctx context.Context, env Env) (target.Decision, error) {
	wdTarget, err := watchdog.Evaluate(ctx, o.Watchdog, watchdog.Policy{
		MaxAllowed: o.Policy.WatchdogMaxAllowed,
		Production: o.Policy.Production,
	}, env.ResetReason, time.Now())
	if err != nil {
		o.Log.Warn().Err(err).Msg("watchdog evaluation degraded")
	}

	sentinel := env.ForceFastbootSentinel
	if !sentinel && o.ESP != nil {
		if _, err := o.ESP.ReadFile(ctx, `\force_fastboot`); err == nil {
			sentinel = true
		}
	}

	var keyResult keyinput.Result
	if o.Keys != nil {
		timeout := o.KeyPollMS
		if timeout == 0 {
			timeout = 200 * time.Millisecond
		}
		keyResult = keyinput.Poll(ctx, o.Keys, timeout)
	}

	bcbRes := bcb.Resolution{Target: target.NormalBoot}
	if o.BCB != nil {
		if r, err := bcb.Consume(ctx, o.BCB); err == nil {
			bcbRes = r
		} else {
			o.Log.Warn().Err(err).Msg("BCB consume degraded to NORMAL_BOOT")
		}
	}

	oneShotName := ""
	if o.FW != nil {
		if raw, err := o.FW.Get(ctx, fwvars.LoaderEntryOneShot); err == nil {
			oneShotName = fwvars.DecodeLoaderEntryOneShot(raw)
			if delErr := o.FW.Delete(ctx, fwvars.LoaderEntryOneShot); delErr != nil {
				o.Log.Warn().Err(delErr).Msg("failed to consume LoaderEntryOneShot")
			}
		}
	}

	in := target.Inputs{
		Flags:                 env.Flags,
		NonProductionBuild:    !o.Policy.Production,
		ForceFastbootSentinel: sentinel,
		MagicKey:              keyResult,
		WatchdogFired:         wdTarget != target.NormalBoot,
		WatchdogTarget:        wdTarget,
		OffModeChargeEnabled:  o.Policy.OffModeChargeEnabled,
		WakeSource:            env.WakeSource,
		BCB: target.BCBResolution{
			Target:  bcbRes.Target,
			ESPPath: bcbRes.ESPPath,
			Oneshot: bcbRes.Oneshot,
		},
		OneShotLoaderName:     oneShotName,
		BatteryBelowThreshold: env.BatteryPercent < o.Policy.BatteryThresholdPercent,
		ChargerAttached:       env.ChargerAttached,
	}

	return target.Choose(in), nil
}

// runVerifiedPath implements the §4.2-§4.8 portion of the pipeline for any
// target that results in a kernel handoff.
func (o *Orchestrator) runVerifiedPath(ctx context.Context, dec target.Decision, env Env) (Outcome, error) {
	partitions, err := o.gatherPartitions(ctx, dec)
	if err != nil {
		// No bootable source at all: feed OTHER_ERROR into the reducer so
		// the trust color still reflects the failure rather than silently
		// reporting GREEN.
		return o.finish(ctx, dec, env, trust.OutcomeOtherError, verifyadapter.SlotData{}, err)
	}

	allowError := env.IncomingColor != trust.Green
	var outcome trust.VerifierOutcome
	var data verifyadapter.SlotData
	if o.Policy.ABEnabled && dec.Target != target.ESPBootImage && dec.Target != target.ESPEFIBinary {
		outcome, data, err = o.Verifier.ABFlow(ctx, partitions, allowError)
	} else {
		outcome, data, err = o.Verifier.VerifySingleSlot(ctx, partitions, o.Slots.GetActive(), allowError)
	}
	if err != nil {
		o.Log.Warn().Err(err).Msg("verification call failed")
	}
	if data.ActiveSlotSuffix != "" {
		o.Slots.SetActiveCached(data.ActiveSlotSuffix)
	}

	return o.finish(ctx, dec, env, outcome, data, nil)
}

// finish applies the Trust-State Reducer, Rollback Controller, slot
// bookkeeping, and Command-Line Builder once a verifier outcome (real or
// synthesized from a load failure) is known.
func (o *Orchestrator) finish(ctx context.Context, dec target.Decision, env Env, outcome trust.VerifierOutcome, data verifyadapter.SlotData, loadErr error) (Outcome, error) {
	mismatch := nameMismatch(dec.Target, o.Policy.RecoveryInBootPartition, data.PartitionName)

	color := trust.Reduce(trust.Inputs{
		Lock:                 env.Lock,
		EFISecureBootEnabled: env.EFISecureBootEnabled,
		Provisioning:         env.Provisioning,
		Outcome:              outcome,
		TargetNameMismatch:   mismatch,
		VerityCorrupted:      dec.VerityCorrupted,
		Incoming:             env.IncomingColor,
	})

	var errs *multierror.Error
	if loadErr != nil {
		errs = multierror.Append(errs, fmt.Errorf("orchestrator: load: %w", loadErr))
	}

	if outcome == trust.OutcomeOK {
		if err := rollback.Update(ctx, o.Rollback, data.RollbackIndices); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("orchestrator: rollback update: %w", err))
		}
	}

	if color == trust.Red {
		if dec.Target == target.NormalBoot || dec.Target == target.Charger {
			if err := o.Slots.BootFailed(ctx); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("orchestrator: slot bookkeeping: %w", err))
			}
		}
		if o.Policy.Production {
			dec.Target = target.Crashmode
		}
	} else if dec.Target == target.NormalBoot || dec.Target == target.Recovery {
		if err := o.Slots.BootOK(ctx); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("orchestrator: slot bookkeeping: %w", err))
		}
	}

	if o.FW != nil {
		if err := o.FW.Set(ctx, fwvars.BootState, fwvars.EncodeBootState(color)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("orchestrator: persist BootState: %w", err))
		}
	}

	line := ""
	if color != trust.Red || !o.Policy.Production {
		line = buildCmdline(o.Policy, dec, o.Slots.GetActive(), data)
	}

	out := Outcome{Target: dec.Target, Color: color, Cmdline: line, ESPPath: dec.ESPPath}
	return out, errs.ErrorOrNil()
}

// gatherPartitions loads the raw bytes the verifier needs for dec.Target.
func (o *Orchestrator) gatherPartitions(ctx context.Context, dec target.Decision) (map[string][]byte, error) {
	switch dec.Target {
	case target.Recovery:
		data, err := image.LoadRecovery(ctx, o.Parts, o.Slots, o.Policy.ABEnabled, o.Policy.RecoveryInBootPartition)
		if err != nil {
			return nil, err
		}
		o.logLoadedSize("recovery", data)
		return map[string][]byte{"recovery": data}, nil
	case target.ESPBootImage, target.ESPEFIBinary:
		data, err := image.LoadFromESP(ctx, o.ESP, dec.ESPPath, true)
		if err != nil {
			return nil, err
		}
		o.logLoadedSize("esp", data)
		return map[string][]byte{"esp": data}, nil
	default: // NORMAL_BOOT, MEMORY, CHARGER all load the boot partition
		data, err := image.LoadBootPartition(ctx, o.Parts, o.Slots, o.Policy.ABEnabled, "boot")
		if err != nil {
			return nil, err
		}
		o.logLoadedSize("boot", data)
		return map[string][]byte{"boot": data}, nil
	}
}

// logLoadedSize reports how much was read off a partition/ESP file, using
// the same human-readable rendering as diagnostic logs elsewhere in the
// corpus (e.g. "8.4 MB") rather than a raw byte count.
func (o *Orchestrator) logLoadedSize(which string, data []byte) {
	o.Log.Debug().Str("partition", which).Str("size", image.SizeLabel(len(data))).Msg("loaded boot payload")
}
