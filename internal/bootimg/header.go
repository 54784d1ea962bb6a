// Package bootimg parses the leading bytes of a loaded boot payload far
// enough to support the verified boot decision core: magic validation,
// second-stage presence, and the verified command-line region. Everything
// past that (ramdisk/dtb/vendor-ramdisk-table layout, page alignment for
// repacking, compression) belongs to an image-modification tool, not this
// core, and is intentionally not reproduced here.
package bootimg

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"vbboot/internal/align"
)

const (
	MagicSize     = 8
	NameSize      = 16
	IDSize        = 32
	ArgsSize      = 512
	ExtraArgsSize = 1024
)

// BootMagic and VendorBootMagic are the fixed 8-byte magics every supported
// header version begins with.
const (
	BootMagic       = "ANDROID!"
	VendorBootMagic = "VNDRBOOT"
)

// hdrV0Common mirrors the original AOSP boot image header's leading fields,
// present unchanged in every header version. SecondSize/SecondAddr describe
// the "second-stage" blob the trust-state reducer's OEM-variable-injection
// path cares about; it only exists in this pre-v3 layout.
type hdrV0Common struct {
	Magic       [MagicSize]byte
	KernelSize  uint32
	KernelAddr  uint32
	RamdiskSize uint32
	RamdiskAddr uint32
	SecondSize  uint32
	SecondAddr  uint32
}

type hdrV0 struct {
	hdrV0Common
	TagsAddr      uint32
	PageSize      uint32
	HeaderVersion uint32
	OsVersion     uint32
	Name          [NameSize]byte
	Cmdline       [ArgsSize]byte
	ID            [IDSize]byte
	ExtraCmdline  [ExtraArgsSize]byte
}

// hdrV3 is the page-size-fixed-at-4096 layout used by header versions 3-4.
type hdrV3 struct {
	Magic         [MagicSize]byte
	KernelSize    uint32
	RamdiskSize   uint32
	OsVersion     uint32
	HeaderSize    uint32
	Reserved      [4]uint32
	HeaderVersion uint32
	Cmdline       [ArgsSize + ExtraArgsSize]byte
}

type hdrV4 struct {
	hdrV3
	SignatureSize uint32
}

// Header is the subset of a parsed boot image the decision core consumes.
type Header struct {
	Version        uint32
	Cmdline        string
	HasSecondStage bool
	// PaddedHeaderSize is the header region rounded up to the image's page
	// size (v0-v2 only; 0 for v3+, which has no page-size field at all).
	PaddedHeaderSize uint64
}

// ErrBadMagic is returned when the payload's leading 8 bytes don't match a
// recognized boot image magic. Per the testable property "magic-check
// first", callers must treat this as fatal to the pipeline: no payload with
// a wrong magic may reach the command-line builder or handoff regardless of
// allow_verification_error.
var ErrBadMagic = fmt.Errorf("bootimg: magic mismatch, expected %q or %q", BootMagic, VendorBootMagic)

// ParseHeader reads just enough of data to extract Header. It does not
// validate kernel/ramdisk/dtb geometry — that belongs to the external
// verified-boot library this core treats as a collaborator.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < MagicSize {
		return Header{}, ErrBadMagic
	}
	if bytes.Equal(data[:MagicSize], []byte(VendorBootMagic)) {
		return Header{}, fmt.Errorf("bootimg: vendor boot header not consumed by this core")
	}
	if !bytes.Equal(data[:MagicSize], []byte(BootMagic)) {
		return Header{}, ErrBadMagic
	}

	// Header version lives at different offsets depending on layout; peek
	// it the same way the v0 and v3+ layouts both do, at a fixed offset
	// past the size fields common to both.
	version, err := peekHeaderVersion(data)
	if err != nil {
		return Header{}, err
	}

	if version >= 3 {
		return parseV3Plus(data, version)
	}
	return parseV0(data, version)
}

func peekHeaderVersion(data []byte) (uint32, error) {
	// v3+ stores header_version at a fixed offset (after magic, kernel
	// size, ramdisk size, os_version, header_size, 4 reserved words):
	// 8 + 4*4 + 4*4 = 40.
	const v3Offset = 8 + 4*4 + 4*4
	if len(data) >= v3Offset+4 {
		v := binary.LittleEndian.Uint32(data[v3Offset : v3Offset+4])
		if v >= 3 && v <= 4 {
			return v, nil
		}
	}
	if len(data) < binary.Size(hdrV0{}) {
		return 0, fmt.Errorf("bootimg: payload too small for a v0-v2 header (%d bytes)", len(data))
	}
	var h hdrV0
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return 0, fmt.Errorf("bootimg: decode header: %w", err)
	}
	return h.HeaderVersion, nil
}

func parseV0(data []byte, version uint32) (Header, error) {
	if len(data) < binary.Size(hdrV0{}) {
		return Header{}, fmt.Errorf("bootimg: payload too small for v%d header", version)
	}
	var h hdrV0
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return Header{}, fmt.Errorf("bootimg: decode v%d header: %w", version, err)
	}

	pageSize := h.PageSize
	if pageSize == 0 {
		pageSize = 1
	}

	cmd := nulTrim(h.Cmdline[:]) + nulTrim(h.ExtraCmdline[:])
	return Header{
		Version:        version,
		Cmdline:        cmd,
		HasSecondStage: h.SecondSize > 0,
		// v0-v2 pads the header itself out to a whole page before the
		// kernel region begins, the same align_to(hdr_size, page_size)
		// the teacher's DynImgV0 layout computes; kept as information for
		// an mmap-backed reader deciding how much to skip, not enforced
		// here since a header-only payload (as in this core's own tests)
		// legitimately omits the padding.
		PaddedHeaderSize: align.To(uint64(binary.Size(hdrV0{})), uint64(pageSize)),
	}, nil
}

func parseV3Plus(data []byte, version uint32) (Header, error) {
	size := binary.Size(hdrV3{})
	if version == 4 {
		size = binary.Size(hdrV4{})
	}
	if len(data) < size {
		return Header{}, fmt.Errorf("bootimg: payload too small for v%d header", version)
	}
	var h hdrV3
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return Header{}, fmt.Errorf("bootimg: decode v%d header: %w", version, err)
	}
	return Header{
		Version: version,
		Cmdline: nulTrim(h.Cmdline[:]),
		// v3+ carries the second stage, if any, in the vendor boot image;
		// this core never sees it here.
		HasSecondStage: false,
	}, nil
}

func nulTrim(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
