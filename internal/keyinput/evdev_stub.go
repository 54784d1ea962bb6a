//go:build !linux

package keyinput

import "context"

// EvdevSource is unavailable outside Linux. It reports the magic key as
// never pressed, mirroring the teacher's windows stub: a platform this
// core doesn't boot real hardware under still gets a source that never
// blocks and never panics.
type EvdevSource struct{}

func OpenEvdevSource(path string) (*EvdevSource, error) {
	return &EvdevSource{}, nil
}

func (s *EvdevSource) Close() error { return nil }

func (s *EvdevSource) Down(ctx context.Context) (bool, error) {
	return false, nil
}
