// Package slot implements the Slot Controller (spec.md §4.6): active-slot
// selection and the success/failure counters that make A/B updates
// recoverable. The actual GPT attribute bits backing SlotMetadata live on
// disk, outside this core's scope; Store is the seam.
package slot

import (
	"context"
	"fmt"
	"sort"
)

// MaxFailoverAttempts bounds the Image Loader's slot-failover retry loop
// (spec.md §4.2): typical devices have 2 slots, but the bound is kept
// generous so a future device with more slots doesn't need this core
// rewritten.
const MaxFailoverAttempts = 8

// Metadata is SlotMetadata from spec.md §3.
type Metadata struct {
	Priority        uint8 // 0 (unbootable) ... 15
	TriesRemaining  uint8 // 0 ... 7
	SuccessfulBoot  bool
	VerityCorrupted bool
}

// bootable reports whether this slot is eligible for active-slot selection:
// priority 0 is never chosen, and a slot with no tries left is only still
// eligible if it already completed a successful boot (so it can keep
// serving NORMAL_BOOT without being treated as "failing").
func (m Metadata) bootable() bool {
	if m.Priority == 0 {
		return false
	}
	return m.TriesRemaining > 0 || m.SuccessfulBoot
}

// Store is the external collaborator persisting slot metadata (typically
// GPT partition attribute bits) and the separate recovery-partition retry
// counter used when recovery does not live in the boot partition.
type Store interface {
	Load(ctx context.Context) (map[string]Metadata, error)
	Save(ctx context.Context, slots map[string]Metadata) error
	RecoveryTriesRemaining(ctx context.Context) (uint8, error)
	SetRecoveryTriesRemaining(ctx context.Context, n uint8) error
}

// Controller tracks the active slot across a single boot cycle. Slot
// metadata is persistent across boots (loaded once via Store); the active
// suffix cache is the orchestrator's within-cycle memory of which slot the
// verifier most recently resolved.
type Controller struct {
	store  Store
	slots  map[string]Metadata
	active string // cached active slot suffix, e.g. "_a"; "" if none chosen
}

// New constructs a Controller. Call Init before any other method.
func New(store Store) *Controller {
	return &Controller{store: store}
}

// Init loads persisted slot metadata and selects the initial active slot.
func (c *Controller) Init(ctx context.Context) error {
	slots, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("slot: load metadata: %w", err)
	}
	c.slots = slots
	c.reselect()
	return nil
}

// reselect applies the active-slot rule: highest priority among bootable
// slots, ties broken by a stable (lexicographic) label ordering. A slot
// whose priority is 0 is never chosen, matching spec.md §3.
func (c *Controller) reselect() {
	labels := make([]string, 0, len(c.slots))
	for l := range c.slots {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	best := ""
	var bestMeta Metadata
	for _, l := range labels {
		m := c.slots[l]
		if !m.bootable() {
			continue
		}
		if best == "" || m.Priority > bestMeta.Priority {
			best = l
			bestMeta = m
		}
	}
	c.active = best
}

// GetActive returns the cached active slot suffix, or "" if no slot is
// currently bootable.
func (c *Controller) GetActive() string {
	return c.active
}

// SetActiveCached overrides the cached active suffix with the slot the
// verifier's A/B flow itself resolved, without touching persisted
// metadata. Spec.md §4.3: "For A/B flow, it records the slot suffix the
// verifier resolved as the new cached active slot."
func (c *Controller) SetActiveCached(suffix string) {
	c.active = suffix
}

// Metadata returns the metadata for a slot label, and whether it exists.
func (c *Controller) Metadata(label string) (Metadata, bool) {
	m, ok := c.slots[label]
	return m, ok
}

// BootOK marks the active slot's attempt as in progress, decrementing
// tries_remaining only if the slot has not already completed a successful
// boot (spec.md §4.6: "decrement tries_remaining if !successful_boot").
func (c *Controller) BootOK(ctx context.Context) error {
	if c.active == "" {
		return fmt.Errorf("slot: BootOK called with no active slot")
	}
	m := c.slots[c.active]
	if !m.SuccessfulBoot && m.TriesRemaining > 0 {
		m.TriesRemaining--
	}
	c.slots[c.active] = m
	return c.persist(ctx)
}

// BootFailed marks the active slot as failed: tries_remaining is
// decremented and a new active slot is selected. If no slot remains
// bootable, GetActive returns "" afterward and the caller (the orchestrator)
// must pin RED and route to the error UX per spec.md §4.2/§4.6.
func (c *Controller) BootFailed(ctx context.Context) error {
	if c.active == "" {
		return fmt.Errorf("slot: BootFailed called with no active slot")
	}
	m := c.slots[c.active]
	if m.TriesRemaining > 0 {
		m.TriesRemaining--
	}
	m.SuccessfulBoot = false
	c.slots[c.active] = m
	c.reselect()
	return c.persist(ctx)
}

// SetVerityCorrupted flags the active slot as verity-corrupted, read by the
// trust reducer to adjust policy on the next boot (glossary: "Verity
// corrupted").
func (c *Controller) SetVerityCorrupted(ctx context.Context, corrupted bool) error {
	if c.active == "" {
		return fmt.Errorf("slot: SetVerityCorrupted called with no active slot")
	}
	m := c.slots[c.active]
	m.VerityCorrupted = corrupted
	c.slots[c.active] = m
	return c.persist(ctx)
}

// RecoveryTriesRemaining gates recovery-partition boot attempts when
// recovery does not live in the boot partition (spec.md §4.2, §4.6).
func (c *Controller) RecoveryTriesRemaining(ctx context.Context) (uint8, error) {
	return c.store.RecoveryTriesRemaining(ctx)
}

// ConsumeRecoveryTry decrements the recovery retry counter by one, floored
// at zero.
func (c *Controller) ConsumeRecoveryTry(ctx context.Context) error {
	n, err := c.store.RecoveryTriesRemaining(ctx)
	if err != nil {
		return fmt.Errorf("slot: read recovery tries: %w", err)
	}
	if n > 0 {
		n--
	}
	return c.store.SetRecoveryTriesRemaining(ctx, n)
}

func (c *Controller) persist(ctx context.Context) error {
	if err := c.store.Save(ctx, c.slots); err != nil {
		return fmt.Errorf("slot: persist metadata: %w", err)
	}
	return nil
}
