//go:build linux

package keyinput

import (
	"context"
	"fmt"

	"github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// KeyDownArrow is the evdev key code the magic-key poll watches.
const KeyDownArrow = evdev.KEY_DOWN

// EvdevSource reads the magic key's instantaneous state from a Linux input
// device node (typically the platform's dedicated volume/navigation
// keypad).
type EvdevSource struct {
	dev   *evdev.InputDevice
	fd    int
	state bool
}

// OpenEvdevSource opens path (e.g. "/dev/input/event0") for non-blocking
// key-state polling.
func OpenEvdevSource(path string) (*EvdevSource, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("keyinput: open %s: %w", path, err)
	}
	return &EvdevSource{dev: dev, fd: int(dev.File.Fd())}, nil
}

func (s *EvdevSource) Close() error {
	return s.dev.File.Close()
}

// Down reports the last-known pressed state of KeyDownArrow, draining any
// events already buffered by the kernel without blocking — Poll's 1ms
// ticker is what provides the sampling cadence, not this call.
func (s *EvdevSource) Down(ctx context.Context) (bool, error) {
	for {
		ready, err := unix.Poll([]unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}, 0)
		if err != nil {
			return s.state, fmt.Errorf("keyinput: poll: %w", err)
		}
		if ready == 0 {
			return s.state, nil
		}

		events, err := s.dev.Read()
		if err != nil {
			return s.state, fmt.Errorf("keyinput: read: %w", err)
		}
		for _, ev := range events {
			if ev.Type != evdev.EV_KEY || ev.Code != uint16(KeyDownArrow) {
				continue
			}
			s.state = ev.Value != 0
		}
	}
}
