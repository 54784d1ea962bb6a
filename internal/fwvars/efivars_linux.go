//go:build linux

package fwvars

import (
	"context"
	"fmt"

	efi "github.com/canonical/go-efilib"
)

// VendorGUID scopes every variable this core owns in the firmware variable
// store, keeping it out of the global/BootXXXX namespace efilib also
// understands.
var VendorGUID = efi.MakeGUID(0x821aca26, 0x29ea, 0x4bf9, 0x9e42, [6]byte{0x08, 0x18, 0x33, 0x7b, 0x8f, 0x9a})

// EFIStore backs Store with efivarfs via go-efilib, for the normal case of
// running under a UEFI firmware's runtime services.
type EFIStore struct{}

// NewEFIStore constructs an EFIStore. There is no per-instance state:
// go-efilib talks to /sys/firmware/efi/efivars directly.
func NewEFIStore() *EFIStore { return &EFIStore{} }

func (EFIStore) Get(ctx context.Context, name string) ([]byte, error) {
	data, _, err := efi.ReadVariable(name, VendorGUID)
	if err != nil {
		if err == efi.ErrVarNotExist {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fwvars: read %s: %w", name, err)
	}
	return data, nil
}

func (EFIStore) Set(ctx context.Context, name string, value []byte) error {
	attrs := efi.AttributeNonVolatile | efi.AttributeBootserviceAccess | efi.AttributeRuntimeAccess
	if err := efi.WriteVariable(name, VendorGUID, attrs, value); err != nil {
		return fmt.Errorf("fwvars: write %s: %w", name, err)
	}
	return nil
}

func (EFIStore) Delete(ctx context.Context, name string) error {
	if err := efi.WriteVariable(name, VendorGUID, 0, nil); err != nil {
		if err == efi.ErrVarNotExist {
			return nil
		}
		return fmt.Errorf("fwvars: delete %s: %w", name, err)
	}
	return nil
}
