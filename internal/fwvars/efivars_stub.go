//go:build !linux

package fwvars

import "context"

// EFIStore is unavailable outside Linux/efivarfs. Platforms without direct
// firmware variable access (the Windows build of this core used only for
// host-side unit testing and tooling) get a Store that never has anything
// persisted, mirroring the teacher's windows stub.
type EFIStore struct{}

func NewEFIStore() *EFIStore { return &EFIStore{} }

func (EFIStore) Get(ctx context.Context, name string) ([]byte, error) {
	return nil, ErrNotFound
}

func (EFIStore) Set(ctx context.Context, name string, value []byte) error {
	return nil
}

func (EFIStore) Delete(ctx context.Context, name string) error {
	return nil
}
