// Package bcb parses and rewrites the Bootloader Control Block, the
// fixed-layout record on the misc partition spec.md §3 and §6 describe
// byte-exact: command[32], status[32], recovery[768], stage[32], the
// remainder reserved, all ASCII and NUL-padded. The whole structure is
// 2048 bytes, the same bootloader_message layout the AOSP bootloader
// ecosystem has used since the original "misc" partition convention.
package bcb

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"vbboot/internal/target"
)

const (
	commandSize  = 32
	statusSize   = 32
	recoverySize = 768
	stageSize    = 32
	// BlockSize is the total on-disk size of the record this package
	// consumes; anything past stage is reserved and round-tripped as-is.
	BlockSize = 2048
)

const (
	bootPrefix     = "boot-"
	bootoncePrefix = "bootonce-"
)

// Record is the decoded BCB. Reserved trails past Stage are preserved
// verbatim across a read/write round trip rather than modeled as a field,
// since this core has no opinion about their contents.
type Record struct {
	Command  string
	Status   string
	Recovery string
	Stage    string
	reserved []byte
}

// Store is the external collaborator: raw byte access to the misc
// partition. Partition/GPT parsing and disk I/O are out of this core's
// scope; Store is the seam.
type Store interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Parse decodes raw into a Record. raw shorter than the four named fields
// (864 bytes) is an error; raw longer than BlockSize is truncated to
// BlockSize, and a reserved tail missing from a shorter record reads as
// zeros.
func Parse(raw []byte) (Record, error) {
	if len(raw) < commandSize+statusSize+recoverySize+stageSize {
		return Record{}, fmt.Errorf("bcb: record too short (%d bytes)", len(raw))
	}
	if len(raw) > BlockSize {
		raw = raw[:BlockSize]
	}

	off := 0
	cmd := nulTrim(raw[off : off+commandSize])
	off += commandSize
	status := nulTrim(raw[off : off+statusSize])
	off += statusSize
	recovery := nulTrim(raw[off : off+recoverySize])
	off += recoverySize
	stage := nulTrim(raw[off : off+stageSize])
	off += stageSize

	reserved := make([]byte, BlockSize-off)
	if off < len(raw) {
		copy(reserved, raw[off:])
	}

	return Record{
		Command:  cmd,
		Status:   status,
		Recovery: recovery,
		Stage:    stage,
		reserved: reserved,
	}, nil
}

// Encode serializes r back to a BlockSize-byte buffer, NUL-padding every
// ASCII field the same way it was read.
func (r Record) Encode() []byte {
	buf := make([]byte, BlockSize)
	off := 0
	copy(buf[off:off+commandSize], r.Command)
	off += commandSize
	copy(buf[off:off+statusSize], r.Status)
	off += statusSize
	copy(buf[off:off+recoverySize], r.Recovery)
	off += recoverySize
	copy(buf[off:off+stageSize], r.Stage)
	off += stageSize
	if len(r.reserved) > 0 {
		copy(buf[off:], r.reserved)
	}
	return buf
}

func nulTrim(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Resolution is what reading the BCB command yields the target selector.
type Resolution struct {
	Target  target.BootTarget
	ESPPath string // set when Target is ESPBootImage or ESPEFIBinary
	Oneshot bool
}

// Consume reads the BCB, derives a Resolution from its command, and writes
// the record back with status always cleared (spec.md §3 invariant: "the
// bootloader owns status, always clears it") and command cleared whenever
// the resolution is one-shot — covering both the literal bootonce-<name>
// form and the path-like ESP form, so the testable property "after a
// one-shot BCB is read, the next read returns an empty command" holds for
// every one-shot path, not only the bootonce- prefix. This is a deliberate
// generalization of the narrower bootonce-only invariant.
//
// A read or parse failure degrades to a NormalBoot Resolution and a nil
// error's worth of BCB side effects: spec.md §4.1 says BCB failures never
// surface as errors to the caller, so the write-back is simply skipped.
func Consume(ctx context.Context, store Store) (Resolution, error) {
	raw, err := store.Read(ctx)
	if err != nil {
		return Resolution{Target: target.NormalBoot}, nil
	}
	rec, err := Parse(raw)
	if err != nil {
		return Resolution{Target: target.NormalBoot}, nil
	}

	res := resolve(rec.Command)

	rec.Status = ""
	if res.Oneshot {
		rec.Command = ""
	}

	if err := store.Write(ctx, rec.Encode()); err != nil {
		return res, fmt.Errorf("bcb: write back after consume: %w", err)
	}
	return res, nil
}

func resolve(command string) Resolution {
	if command == "" {
		return Resolution{Target: target.NormalBoot}
	}

	if strings.HasPrefix(command, "\\") {
		t := target.ESPBootImage
		if hasEFISuffixFold(command) {
			t = target.ESPEFIBinary
		}
		return Resolution{Target: t, ESPPath: command, Oneshot: true}
	}

	oneshot := false
	name := command
	switch {
	case strings.HasPrefix(command, bootoncePrefix):
		oneshot = true
		name = strings.TrimPrefix(command, bootoncePrefix)
	case strings.HasPrefix(command, bootPrefix):
		name = strings.TrimPrefix(command, bootPrefix)
	}

	t, ok := target.NameToTarget[name]
	if !ok {
		t = target.UnknownTarget
	}
	return Resolution{Target: t, Oneshot: oneshot}
}

// hasEFISuffixFold reports whether command ends in ".efi", case
// insensitively. The source accepted ".efi"/".EFI" but not mixed case
// (".Efi"); this core normalizes to a full case-insensitive match instead
// — see SPEC_FULL.md Open Question 3.
func hasEFISuffixFold(command string) bool {
	return strings.HasSuffix(strings.ToLower(command), ".efi")
}
