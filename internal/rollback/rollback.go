// Package rollback implements the Rollback Controller (spec.md §4.5): a
// thin, monotonic wrapper around the external verifier's per-location
// rollback index store.
package rollback

import (
	"context"
	"fmt"
)

// MaxLocations bounds the sparse location space a verified boot image can
// assert indices for. AVB reserves 32 rollback index locations; this core
// carries the same policy constant rather than inventing its own.
const MaxLocations = 32

// Store is the external collaborator: the verified-boot library's rollback
// index persistence, typically backed by RPMB or a secure element. This
// core never talks to the hardware directly.
type Store interface {
	Read(ctx context.Context, location uint8) (uint64, error)
	Write(ctx context.Context, location uint8, value uint64) error
}

// Asserted is the sparse set of rollback indices a just-verified image
// claims, keyed by location. A location absent from the map asserts
// nothing and is left untouched.
type Asserted map[uint8]uint64

// Update advances every location in Store whose asserted value exceeds the
// currently stored one. Locations are processed in ascending order so that,
// if a write fails partway through, the lower-numbered locations that
// already landed stay landed — no partial write is ever undone, and an
// aborted Update is safely retried (and reconciled) on a later boot.
func Update(ctx context.Context, store Store, asserted Asserted) error {
	for loc := uint8(0); loc < MaxLocations; loc++ {
		newVal, ok := asserted[loc]
		if !ok || newVal == 0 {
			continue
		}

		stored, err := store.Read(ctx, loc)
		if err != nil {
			return fmt.Errorf("rollback: read location %d: %w", loc, err)
		}
		if newVal <= stored {
			continue
		}
		if err := store.Write(ctx, loc, newVal); err != nil {
			return fmt.Errorf("rollback: write location %d (stored=%d new=%d): %w", loc, stored, newVal, err)
		}
	}
	return nil
}
