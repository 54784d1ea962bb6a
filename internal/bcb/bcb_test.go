package bcb_test

import (
	"context"
	"errors"
	"testing"

	"vbboot/internal/bcb"
	"vbboot/internal/target"
)

type memStore struct {
	data    []byte
	readErr error
}

func newMemStore(rec bcb.Record) *memStore {
	return &memStore{data: rec.Encode()}
}

func (m *memStore) Read(ctx context.Context) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.data, nil
}

func (m *memStore) Write(ctx context.Context, data []byte) error {
	m.data = data
	return nil
}

func TestParseEncodeRoundTrip(t *testing.T) {
	rec := bcb.Record{Command: "boot-recovery", Status: "1\n", Recovery: "--wipe_data\n", Stage: ""}
	raw := rec.Encode()
	got, err := bcb.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Command != rec.Command || got.Status != rec.Status || got.Recovery != rec.Recovery {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestParseTooShort(t *testing.T) {
	if _, err := bcb.Parse(make([]byte, 10)); err == nil {
		t.Fatalf("expected error for undersized record")
	}
}

func TestConsumePersistentBootCommand(t *testing.T) {
	store := newMemStore(bcb.Record{Command: "boot-recovery", Status: "done"})
	res, err := bcb.Consume(context.Background(), store)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Target != target.Recovery {
		t.Fatalf("expected RECOVERY, got %v", res.Target)
	}
	if res.Oneshot {
		t.Fatalf("boot- form must not be one-shot")
	}
	after, _ := bcb.Parse(store.data)
	if after.Status != "" {
		t.Fatalf("expected status cleared, got %q", after.Status)
	}
	if after.Command != "boot-recovery" {
		t.Fatalf("persistent command must survive consume, got %q", after.Command)
	}
}

func TestConsumeOneShotClearsCommand(t *testing.T) {
	store := newMemStore(bcb.Record{Command: "bootonce-recovery"})
	res, err := bcb.Consume(context.Background(), store)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Target != target.Recovery || !res.Oneshot {
		t.Fatalf("expected one-shot RECOVERY, got %+v", res)
	}

	// Invariant: next read returns an empty command.
	again, err := bcb.Consume(context.Background(), store)
	if err != nil {
		t.Fatalf("second Consume: %v", err)
	}
	if again.Target != target.NormalBoot {
		t.Fatalf("expected NORMAL_BOOT on second read, got %v", again.Target)
	}
}

func TestConsumePathLikeEFITarget(t *testing.T) {
	store := newMemStore(bcb.Record{Command: `\EFI\foo\bootaa64.efi`})
	res, err := bcb.Consume(context.Background(), store)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Target != target.ESPEFIBinary {
		t.Fatalf("expected ESP_EFI_BINARY, got %v", res.Target)
	}
	if !res.Oneshot {
		t.Fatalf("path-like command must be one-shot")
	}
	if res.ESPPath != `\EFI\foo\bootaa64.efi` {
		t.Fatalf("unexpected esp path %q", res.ESPPath)
	}
}

func TestConsumePathLikeMixedCaseEFINormalized(t *testing.T) {
	store := newMemStore(bcb.Record{Command: `\EFI\foo\boot.Efi`})
	res, err := bcb.Consume(context.Background(), store)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Target != target.ESPEFIBinary {
		t.Fatalf("expected mixed-case .Efi to normalize to ESP_EFI_BINARY, got %v", res.Target)
	}
}

func TestConsumePathLikeNonEFIIsBootImage(t *testing.T) {
	store := newMemStore(bcb.Record{Command: `\staging\boot.img`})
	res, err := bcb.Consume(context.Background(), store)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Target != target.ESPBootImage {
		t.Fatalf("expected ESP_BOOTIMAGE, got %v", res.Target)
	}
}

func TestConsumeReadFailureDegradesToNormalBoot(t *testing.T) {
	store := newMemStore(bcb.Record{Command: "boot-recovery"})
	store.readErr = errors.New("disk glitch")
	res, err := bcb.Consume(context.Background(), store)
	if err != nil {
		t.Fatalf("Consume must not surface BCB read errors: %v", err)
	}
	if res.Target != target.NormalBoot {
		t.Fatalf("expected degrade to NORMAL_BOOT, got %v", res.Target)
	}
}

func TestConsumeEmptyCommandIsNormalBoot(t *testing.T) {
	store := newMemStore(bcb.Record{})
	res, err := bcb.Consume(context.Background(), store)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Target != target.NormalBoot {
		t.Fatalf("expected NORMAL_BOOT, got %v", res.Target)
	}
}
