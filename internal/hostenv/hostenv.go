// Package hostenv provides host-local stand-ins for the external
// collaborators spec.md places out of scope for this core: the GPT
// partition driver, the misc/BCB block device, and the RPMB-backed
// rollback store. On real hardware these are firmware or kernel driver
// seams; here they are plain files under a base directory, read the same
// mmap-first way the teacher's bootimg.go reads a boot image, so cmd/vbboot
// has something concrete to drive end to end off a directory of image
// files instead of a raw block device.
package hostenv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"

	"vbboot/internal/bcb"
	"vbboot/internal/bootimg"
	"vbboot/internal/image"
	"vbboot/internal/rollback"
	"vbboot/internal/slot"
	"vbboot/internal/trust"
	"vbboot/internal/verifyadapter"
	"vbboot/internal/watchdog"
)

// PartitionDir implements image.PartitionReader by mmap'ing a file named
// after the partition label out of a directory, e.g. baseDir/boot_a.
type PartitionDir struct {
	BaseDir string
}

func (p PartitionDir) ReadPartition(ctx context.Context, label string) ([]byte, error) {
	f, err := os.Open(filepath.Join(p.BaseDir, label))
	if err != nil {
		return nil, fmt.Errorf("hostenv: open partition %s: %w", label, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("hostenv: stat partition %s: %w", label, err)
	}
	if fi.Size() == 0 {
		return nil, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("hostenv: mmap partition %s: %w", label, err)
	}
	defer m.Unmap()

	out := make([]byte, len(m))
	copy(out, m)
	return out, nil
}

// ESPDir implements image.ESPReader against a directory standing in for
// the EFI System Partition. Paths arrive UEFI-style ("\foo\bar"); they are
// translated to filesystem-native separators and confined under BaseDir.
type ESPDir struct {
	BaseDir string
}

func (e ESPDir) resolve(path string) string {
	rel := filepath.FromSlash(strings.ReplaceAll(path, `\`, "/"))
	return filepath.Join(e.BaseDir, rel)
}

func (e ESPDir) ReadFile(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(e.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("hostenv: read ESP file %s: %w", path, err)
	}
	return data, nil
}

func (e ESPDir) DeleteFile(ctx context.Context, path string) error {
	err := os.Remove(e.resolve(path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("hostenv: delete ESP file %s: %w", path, err)
	}
	return nil
}

// MiscFile implements bcb.Store as a flat file standing in for the misc
// partition's BCB record.
type MiscFile struct {
	Path string
}

func (m MiscFile) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(m.Path)
	if os.IsNotExist(err) {
		return make([]byte, 2048), nil
	}
	if err != nil {
		return nil, fmt.Errorf("hostenv: read misc file: %w", err)
	}
	return data, nil
}

func (m MiscFile) Write(ctx context.Context, data []byte) error {
	if err := os.WriteFile(m.Path, data, 0o600); err != nil {
		return fmt.Errorf("hostenv: write misc file: %w", err)
	}
	return nil
}

var (
	_ image.PartitionReader = PartitionDir{}
	_ image.ESPReader       = ESPDir{}
	_ bcb.Store             = MiscFile{}
)

// jsonFile is the shared persistence primitive the remaining stores build
// on: a single small JSON document. Stand-in for RPMB/secure-element/GPT
// attribute storage this core never talks to directly; plain encoding/json
// is as far as a host-local loopback needs to go, so no pack dependency is
// recruited for it.
type jsonFile struct {
	path string
}

func (j jsonFile) load(v any) error {
	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (j jsonFile) save(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(j.path, data, 0o600)
}

// RollbackFile implements rollback.Store, one JSON document keyed by
// location.
type RollbackFile struct {
	Path string
}

func (r RollbackFile) Read(ctx context.Context, location uint8) (uint64, error) {
	var m map[string]uint64
	if err := (jsonFile{r.Path}).load(&m); err != nil {
		return 0, fmt.Errorf("hostenv: read rollback store: %w", err)
	}
	return m[fmt.Sprint(location)], nil
}

func (r RollbackFile) Write(ctx context.Context, location uint8, value uint64) error {
	var m map[string]uint64
	if err := (jsonFile{r.Path}).load(&m); err != nil {
		return fmt.Errorf("hostenv: read rollback store: %w", err)
	}
	if m == nil {
		m = map[string]uint64{}
	}
	m[fmt.Sprint(location)] = value
	if err := (jsonFile{r.Path}).save(m); err != nil {
		return fmt.Errorf("hostenv: write rollback store: %w", err)
	}
	return nil
}

var _ rollback.Store = RollbackFile{}

// WatchdogFile implements watchdog.Store.
type WatchdogFile struct {
	Path string
}

func (w WatchdogFile) Load(ctx context.Context) (watchdog.State, error) {
	var st watchdog.State
	if err := (jsonFile{w.Path}).load(&st); err != nil {
		return watchdog.State{}, fmt.Errorf("hostenv: read watchdog state: %w", err)
	}
	return st, nil
}

func (w WatchdogFile) Save(ctx context.Context, s watchdog.State) error {
	if err := (jsonFile{w.Path}).save(s); err != nil {
		return fmt.Errorf("hostenv: write watchdog state: %w", err)
	}
	return nil
}

var _ watchdog.Store = WatchdogFile{}

// SlotFile implements slot.Store. Metadata and the recovery retry counter
// share one document since both are small and both stand in for GPT
// attribute bits on the same disk.
type SlotFile struct {
	Path string
}

type slotDoc struct {
	Slots                  map[string]slot.Metadata `json:"slots"`
	RecoveryTriesRemaining uint8                    `json:"recovery_tries_remaining"`
}

func (s SlotFile) Load(ctx context.Context) (map[string]slot.Metadata, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if doc.Slots == nil {
		return map[string]slot.Metadata{}, nil
	}
	return doc.Slots, nil
}

func (s SlotFile) Save(ctx context.Context, slots map[string]slot.Metadata) error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Slots = slots
	return s.write(doc)
}

func (s SlotFile) RecoveryTriesRemaining(ctx context.Context) (uint8, error) {
	doc, err := s.read()
	if err != nil {
		return 0, err
	}
	return doc.RecoveryTriesRemaining, nil
}

func (s SlotFile) SetRecoveryTriesRemaining(ctx context.Context, n uint8) error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.RecoveryTriesRemaining = n
	return s.write(doc)
}

func (s SlotFile) read() (slotDoc, error) {
	var doc slotDoc
	if err := (jsonFile{s.Path}).load(&doc); err != nil {
		return slotDoc{}, fmt.Errorf("hostenv: read slot store: %w", err)
	}
	return doc, nil
}

func (s SlotFile) write(doc slotDoc) error {
	if err := (jsonFile{s.Path}).save(doc); err != nil {
		return fmt.Errorf("hostenv: write slot store: %w", err)
	}
	return nil
}

var _ slot.Store = SlotFile{}

// MagicOnlyVerifier is a stand-in for the external verified-boot
// cryptographic library (spec.md §1 Non-goals: "the actual signature
// verification algorithm"). It only confirms the loaded payload begins
// with a recognized boot magic — no signature, hash-tree, or rollback
// index checking happens here. It exists purely so cmd/vbboot has
// something concrete to drive the pipeline against on a development host;
// it must never be wired in a build meant to gate an unlocked bootloader.
type MagicOnlyVerifier struct {
	// PartitionName is reported to the reducer's name-mismatch check,
	// e.g. "/boot" or "/recovery".
	PartitionName string
}

func (m MagicOnlyVerifier) verify(partitions map[string][]byte) (trust.VerifierOutcome, verifyadapter.SlotData) {
	var payload []byte
	for _, v := range partitions {
		if len(v) > 0 {
			payload = v
			break
		}
	}
	if _, err := bootimg.ParseHeader(payload); err != nil {
		return trust.OutcomeVerificationError, verifyadapter.SlotData{}
	}
	return trust.OutcomeOK, verifyadapter.SlotData{PartitionName: m.PartitionName, Payload: payload}
}

func (m MagicOnlyVerifier) Verify(ctx context.Context, partitions map[string][]byte, slotSuffix string, flags verifyadapter.Flags) (trust.VerifierOutcome, verifyadapter.SlotData, error) {
	outcome, data := m.verify(partitions)
	return outcome, data, nil
}

func (m MagicOnlyVerifier) ABFlow(ctx context.Context, partitions map[string][]byte, flags verifyadapter.Flags) (trust.VerifierOutcome, verifyadapter.SlotData, error) {
	outcome, data := m.verify(partitions)
	return outcome, data, nil
}

var _ verifyadapter.Verifier = MagicOnlyVerifier{}
