package call

import (
	"context"
	"testing"
	"time"
)

func TestNew_DefaultsToUnknown(t *testing.T) {
	c := New(Options{Direction: DirectionOutgoing, Number: "12345"})
	if c.State() != StateUnknown {
		t.Fatalf("new call state = %s, want unknown", c.State())
	}
	if c.ID() == "" {
		t.Fatal("expected a generated ID")
	}
}

func TestTransitionTo_RejectsIllegalEdge(t *testing.T) {
	c := New(Options{Direction: DirectionOutgoing})
	if c.TransitionTo(StateActive, ReasonAccepted) {
		t.Fatal("unknown -> active must be illegal")
	}
	if c.State() != StateUnknown {
		t.Fatalf("state changed after rejected transition: %s", c.State())
	}
}

func TestTransitionTo_TerminalIsSticky(t *testing.T) {
	c := New(Options{Direction: DirectionOutgoing})
	c.TransitionTo(StateDialling, ReasonOutgoingStarted)
	c.TransitionTo(StateActive, ReasonAccepted)
	if !c.TransitionTo(StateTerminated, ReasonTerminated) {
		t.Fatal("active -> terminated should be legal")
	}
	if c.TransitionTo(StateDialling, ReasonOutgoingStarted) {
		t.Fatal("no transition should be legal once terminated")
	}
}

func TestTransitionTo_FiresCallbacksAndBroadcast(t *testing.T) {
	c := New(Options{Direction: DirectionIncoming})
	var seen []State
	unregister := c.OnStateChanged(func(old, new_ State, reason Reason) {
		seen = append(seen, new_)
	})
	defer unregister()

	done := make(chan struct{})
	go func() {
		_ = c.WaitForStateChange(context.Background())
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)

	c.TransitionTo(StateRingingIn, ReasonIncomingNew)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForStateChange did not observe the transition")
	}
	if len(seen) != 1 || seen[0] != StateRingingIn {
		t.Fatalf("callback saw %v, want [ringing_in]", seen)
	}
}

func TestSetIndexAndNumber_OnlyIfUnset(t *testing.T) {
	c := New(Options{Direction: DirectionIncoming})
	c.SetIndex(3)
	c.SetIndex(7)
	if c.Index() != 3 {
		t.Fatalf("index = %d, want 3 (first write wins)", c.Index())
	}
	c.SetNumber("111")
	c.SetNumber("222")
	if c.Number() != "111" {
		t.Fatalf("number = %q, want 111", c.Number())
	}
}

func TestTryBeginOp_ExclusiveUntilEnd(t *testing.T) {
	c := New(Options{Direction: DirectionOutgoing})
	if !c.TryBeginOp() {
		t.Fatal("first TryBeginOp should succeed")
	}
	if c.TryBeginOp() {
		t.Fatal("second TryBeginOp should fail while busy")
	}
	c.EndOp()
	if !c.TryBeginOp() {
		t.Fatal("TryBeginOp should succeed again after EndOp")
	}
}

func TestCancelPendingOp_CancelsBeginOpContext(t *testing.T) {
	c := New(Options{Direction: DirectionOutgoing})
	ctx, done := c.BeginOpContext(context.Background())
	defer done()

	c.CancelPendingOp()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected op context to be cancelled")
	}
}

func TestAudio_SetAndClear(t *testing.T) {
	c := New(Options{Direction: DirectionOutgoing})
	c.SetAudio("port0", AudioFormat{Encoding: "pcm_s16le", Rate: 8000})
	if c.AudioPort() != "port0" {
		t.Fatalf("audio port = %q", c.AudioPort())
	}
	c.ClearAudio()
	if c.AudioPort() != "" {
		t.Fatalf("audio port not cleared: %q", c.AudioPort())
	}
}
