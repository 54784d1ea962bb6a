// Package image implements the Image Loader (spec.md §4.2): locating,
// reading, and slot-routing a boot image. Partition/GPT parsing and raw
// storage drivers are external collaborators; this package only knows how
// to ask for a partition by label and react to failure by asking the slot
// controller to fail over.
package image

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"

	"vbboot/internal/slot"
)

// ErrKind classifies a loader failure the way spec.md §4.2 names them.
// None of these are fatal to the orchestrator at this layer — they feed
// the Trust-State Reducer instead of being surfaced directly.
type ErrKind int

const (
	ErrNotFound ErrKind = iota
	ErrIOError
	ErrInvalidParameter
)

func (k ErrKind) String() string {
	switch k {
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrIOError:
		return "IO_ERROR"
	case ErrInvalidParameter:
		return "INVALID_PARAMETER"
	default:
		return "UNKNOWN_ERROR"
	}
}

// LoadError wraps an underlying error with its spec.md error kind.
type LoadError struct {
	Kind ErrKind
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("image: %s", e.Kind)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PartitionReader is the external collaborator reading a GPT partition by
// logical label. Raw storage drivers and GPT parsing live below this seam.
type PartitionReader interface {
	ReadPartition(ctx context.Context, label string) ([]byte, error)
}

// ESPReader is the external collaborator reading (and optionally deleting)
// a file from the EFI System Partition.
type ESPReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	DeleteFile(ctx context.Context, path string) error
}

// LoadBootPartition reads label from the active slot, suffixing it with
// the active slot when A/B is enabled. A read failure marks the current
// slot failed (one try fewer) and retries against whichever slot is then
// active, which may be the same one, until a read succeeds, no slot
// remains bootable, or slot.MaxFailoverAttempts retries have failed. In
// that last case the result is an IO_ERROR even if a slot is still
// bootable.
func LoadBootPartition(ctx context.Context, reader PartitionReader, slots *slot.Controller, abEnabled bool, label string) ([]byte, error) {
	if !abEnabled {
		data, err := reader.ReadPartition(ctx, label)
		if err != nil {
			return nil, &LoadError{Kind: ErrIOError, Err: err}
		}
		return data, nil
	}

	var result []byte
	op := func() error {
		suffix := slots.GetActive()
		if suffix == "" {
			return backoff.Permanent(&LoadError{Kind: ErrNotFound, Err: errors.New("no bootable slot remains")})
		}
		data, err := reader.ReadPartition(ctx, label+suffix)
		if err != nil {
			if failErr := slots.BootFailed(ctx); failErr != nil {
				return backoff.Permanent(fmt.Errorf("image: slot failover bookkeeping: %w", failErr))
			}
			return fmt.Errorf("image: read %s%s: %w", label, suffix, err)
		}
		result = data
		return nil
	}

	// Each failed read costs the active slot one try, so the loop ends once
	// no slot is bootable; MaxFailoverAttempts caps it earlier when slots
	// still have tries left. There is no value in waiting between attempts:
	// the zero-interval constant backoff is used purely to get
	// backoff.Retry's attempt counting and Permanent-error short circuit.
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(0), slot.MaxFailoverAttempts)
	if err := backoff.Retry(op, bo); err != nil {
		var perm *LoadError
		if errors.As(err, &perm) {
			return nil, perm
		}
		return nil, &LoadError{Kind: ErrIOError, Err: err}
	}
	return result, nil
}

// LoadRecovery implements spec.md §4.2's recovery routing: when recovery
// lives in the boot partition it's identical to a NORMAL_BOOT load;
// otherwise it targets a dedicated recovery partition gated by the
// recovery retry counter.
func LoadRecovery(ctx context.Context, reader PartitionReader, slots *slot.Controller, abEnabled, recoveryInBootPartition bool) ([]byte, error) {
	if recoveryInBootPartition {
		return LoadBootPartition(ctx, reader, slots, abEnabled, "boot")
	}

	tries, err := slots.RecoveryTriesRemaining(ctx)
	if err != nil {
		return nil, &LoadError{Kind: ErrIOError, Err: err}
	}
	if tries == 0 {
		return nil, &LoadError{Kind: ErrInvalidParameter, Err: errors.New("recovery tries exhausted")}
	}

	data, err := reader.ReadPartition(ctx, "recovery")
	if err != nil {
		return nil, &LoadError{Kind: ErrIOError, Err: err}
	}
	return data, nil
}

// LoadFromESP reads a file from the ESP. When deleteAfterRead is set, the
// file is removed before verification runs, preserving one-shot semantics
// across an unexpected reset between read and verify.
func LoadFromESP(ctx context.Context, esp ESPReader, path string, deleteAfterRead bool) ([]byte, error) {
	data, err := esp.ReadFile(ctx, path)
	if err != nil {
		return nil, &LoadError{Kind: ErrNotFound, Err: err}
	}
	if deleteAfterRead {
		if err := esp.DeleteFile(ctx, path); err != nil {
			return nil, &LoadError{Kind: ErrIOError, Err: fmt.Errorf("delete %s before verification: %w", path, err)}
		}
	}
	return data, nil
}

// SizeLabel renders a byte count the way diagnostic logs show it, e.g.
// "8.4 MB" — purely cosmetic, never parsed back.
func SizeLabel(n int) string {
	return humanize.Bytes(uint64(n))
}
