package bootimg_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"vbboot/internal/bootimg"
)

func buildV0(cmdline string, secondSize uint32) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString(bootimg.BootMagic)
	binary.Write(buf, binary.LittleEndian, uint32(0)) // kernel size
	binary.Write(buf, binary.LittleEndian, uint32(0)) // kernel addr
	binary.Write(buf, binary.LittleEndian, uint32(0)) // ramdisk size
	binary.Write(buf, binary.LittleEndian, uint32(0)) // ramdisk addr
	binary.Write(buf, binary.LittleEndian, secondSize)
	binary.Write(buf, binary.LittleEndian, uint32(0)) // second addr
	binary.Write(buf, binary.LittleEndian, uint32(0)) // tags addr
	binary.Write(buf, binary.LittleEndian, uint32(4096))
	binary.Write(buf, binary.LittleEndian, uint32(0)) // header version 0
	binary.Write(buf, binary.LittleEndian, uint32(0)) // os version
	buf.Write(make([]byte, bootimg.NameSize))
	cl := make([]byte, bootimg.ArgsSize)
	copy(cl, cmdline)
	buf.Write(cl)
	buf.Write(make([]byte, bootimg.IDSize))
	buf.Write(make([]byte, bootimg.ExtraArgsSize))
	return buf.Bytes()
}

func buildV4(cmdline string) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString(bootimg.BootMagic)
	binary.Write(buf, binary.LittleEndian, uint32(0)) // kernel size
	binary.Write(buf, binary.LittleEndian, uint32(0)) // ramdisk size
	binary.Write(buf, binary.LittleEndian, uint32(0)) // os version
	binary.Write(buf, binary.LittleEndian, uint32(4096))
	buf.Write(make([]byte, 4*4)) // reserved
	binary.Write(buf, binary.LittleEndian, uint32(4))
	cl := make([]byte, bootimg.ArgsSize+bootimg.ExtraArgsSize)
	copy(cl, cmdline)
	buf.Write(cl)
	binary.Write(buf, binary.LittleEndian, uint32(0)) // signature size
	return buf.Bytes()
}

func TestParseHeaderV0SecondStage(t *testing.T) {
	data := buildV0("console=ttyS0", 4096)
	h, err := bootimg.ParseHeader(data)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.Version != 0 {
		t.Fatalf("expected version 0, got %d", h.Version)
	}
	if !h.HasSecondStage {
		t.Fatalf("expected second stage blob to be detected")
	}
	if h.Cmdline != "console=ttyS0" {
		t.Fatalf("unexpected cmdline %q", h.Cmdline)
	}
}

func TestParseHeaderV0NoSecondStage(t *testing.T) {
	data := buildV0("", 0)
	h, err := bootimg.ParseHeader(data)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.HasSecondStage {
		t.Fatalf("did not expect second stage blob")
	}
}

func TestParseHeaderV4(t *testing.T) {
	data := buildV4("root=PARTUUID=test")
	h, err := bootimg.ParseHeader(data)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.Version != 4 {
		t.Fatalf("expected version 4, got %d", h.Version)
	}
	if h.Cmdline != "root=PARTUUID=test" {
		t.Fatalf("unexpected cmdline %q", h.Cmdline)
	}
}

func TestParseHeaderBadMagicRejectedFirst(t *testing.T) {
	data := buildV0("console=ttyS0", 4096)
	copy(data[:bootimg.MagicSize], []byte("NOTVALID"))
	if _, err := bootimg.ParseHeader(data); err != bootimg.ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestParseHeaderTooShort(t *testing.T) {
	if _, err := bootimg.ParseHeader([]byte("AND")); err != bootimg.ErrBadMagic {
		t.Fatalf("expected ErrBadMagic for short payload, got %v", err)
	}
}
