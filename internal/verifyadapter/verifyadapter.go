// Package verifyadapter implements the Verifier Adapter (spec.md §4.3): the
// seam between this core and the external verified-boot cryptographic
// library. The mapping table itself (verifier outcome × allow_error →
// color contribution) is owned by internal/trust, since §4.4 step 4
// re-states it as something the reducer applies; this package's job is to
// call the external verifier, validate the loaded payload's magic before
// anything downstream ever sees it, and hand back a classified outcome.
package verifyadapter

import (
	"context"
	"fmt"

	"vbboot/internal/bootimg"
	"vbboot/internal/rollback"
	"vbboot/internal/trust"
)

// SlotData is what the external verifier hands back: the loaded payload
// bytes, the rollback indices it asserts, the slot suffix it resolved (A/B
// flow only), and an optional verified command-line fragment. Modeled as a
// scoped owned value per the design notes — no caller holds a pointer the
// verifier itself expects freed.
type SlotData struct {
	PartitionName    string
	Payload          []byte
	RollbackIndices  rollback.Asserted
	ActiveSlotSuffix string
	VerifiedCmdline  string
}

// Flags carries the allow_error bit down into the external verifier call,
// per spec.md's rationale: a device already not-GREEN has nothing left to
// lose by tolerating a verification error, so the verifier itself may be
// told to be lenient rather than just have its strict failure reinterpreted
// after the fact.
type Flags struct {
	AllowVerificationError bool
}

// Verifier is the external collaborator: the verified-boot cryptographic
// library. Its signature math and hash-tree verification are out of scope
// for this core.
type Verifier interface {
	Verify(ctx context.Context, partitions map[string][]byte, slotSuffix string, flags Flags) (trust.VerifierOutcome, SlotData, error)
	ABFlow(ctx context.Context, partitions map[string][]byte, flags Flags) (trust.VerifierOutcome, SlotData, error)
}

// Adapter wraps a Verifier with the magic-check-first guarantee spec.md's
// testable properties demand: no payload with a wrong magic is ever passed
// downstream, regardless of allow_verification_error.
type Adapter struct {
	verifier Verifier
}

// New constructs an Adapter around a concrete Verifier implementation.
func New(v Verifier) *Adapter {
	return &Adapter{verifier: v}
}

// VerifySingleSlot runs single-slot verification (no A/B slot selection).
func (a *Adapter) VerifySingleSlot(ctx context.Context, partitions map[string][]byte, slotSuffix string, allowError bool) (trust.VerifierOutcome, SlotData, error) {
	outcome, data, err := a.verifier.Verify(ctx, partitions, slotSuffix, Flags{AllowVerificationError: allowError})
	return a.finish(outcome, data, err)
}

// ABFlow runs A/B verification; the returned SlotData.ActiveSlotSuffix is
// the slot the verifier itself resolved and becomes the new cached active
// slot (spec.md §4.3).
func (a *Adapter) ABFlow(ctx context.Context, partitions map[string][]byte, allowError bool) (trust.VerifierOutcome, SlotData, error) {
	outcome, data, err := a.verifier.ABFlow(ctx, partitions, Flags{AllowVerificationError: allowError})
	return a.finish(outcome, data, err)
}

func (a *Adapter) finish(outcome trust.VerifierOutcome, data SlotData, err error) (trust.VerifierOutcome, SlotData, error) {
	if err != nil {
		// The external verifier call itself failed (not a verification
		// failure it classified — a genuine transport/IO problem talking
		// to it). Fold it into the same "any other error" bucket the
		// mapping table uses rather than propagating a raw Go error up
		// through the trust pipeline.
		return trust.OutcomeOtherError, SlotData{}, fmt.Errorf("verifyadapter: verifier call failed: %w", err)
	}

	if outcome != trust.OutcomeOK {
		return outcome, data, nil
	}

	if _, hdrErr := bootimg.ParseHeader(data.Payload); hdrErr != nil {
		// Magic-check-first: an OK verification result is downgraded the
		// instant the payload itself doesn't begin with a recognized boot
		// magic. This can never be bypassed by allow_verification_error,
		// since it runs after the verifier already said OK.
		return trust.OutcomeOtherError, SlotData{}, nil
	}

	return trust.OutcomeOK, data, nil
}
