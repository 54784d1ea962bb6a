package keyinput_test

import (
	"context"
	"testing"
	"time"

	"vbboot/internal/keyinput"
)

// scriptedSource reports down==true for the first n calls, then false.
type scriptedSource struct {
	downFor int
	calls   int
	err     error
}

func (s *scriptedSource) Down(ctx context.Context) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.calls <= s.downFor, nil
}

func TestPollNeverPressedReturnsNotSeen(t *testing.T) {
	src := &scriptedSource{downFor: 0}
	r := keyinput.Poll(context.Background(), src, 5*time.Millisecond)
	if r.Seen {
		t.Fatalf("expected key not seen, got %+v", r)
	}
}

func TestPollShortPressIsNotLongHeld(t *testing.T) {
	src := &scriptedSource{downFor: 2}
	r := keyinput.Poll(context.Background(), src, 50*time.Millisecond)
	if !r.Seen {
		t.Fatalf("expected key seen")
	}
	if r.LongHeld() {
		t.Fatalf("expected short press to not qualify as long-held: %+v", r)
	}
}

func TestPollSourceErrorDegradesToNotSeen(t *testing.T) {
	src := &scriptedSource{err: context.DeadlineExceeded}
	r := keyinput.Poll(context.Background(), src, 3*time.Millisecond)
	if r.Seen {
		t.Fatalf("expected source errors to degrade to not-seen, got %+v", r)
	}
}

func TestPollRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptedSource{downFor: 1_000_000}
	cancel()
	r := keyinput.Poll(ctx, src, time.Second)
	if !r.Seen {
		t.Fatalf("expected key to be recorded seen even on cancellation once pressed")
	}
}
