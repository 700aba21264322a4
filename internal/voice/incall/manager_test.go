package incall

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modemvoiced/modemvoiced/internal/voice/call"
	"github.com/modemvoiced/modemvoiced/internal/voice/plugin"
	"github.com/modemvoiced/modemvoiced/internal/voice/registry"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestManager_SetupOnFirstInCallCall(t *testing.T) {
	var setupCalls, cleanupCalls atomic.Int32
	p := &plugin.Plugin{
		SetupInCallUnsolicitedEvents: func(ctx context.Context) error {
			setupCalls.Add(1)
			return nil
		},
		SetupInCallAudioChannel: func(ctx context.Context) (string, call.AudioFormat, error) {
			return "port0", call.AudioFormat{Encoding: "pcm_s16le"}, nil
		},
		CleanupInCallAudioChannel: func(ctx context.Context) error {
			return nil
		},
		CleanupInCallUnsolicitedEvents: func(ctx context.Context) error {
			cleanupCalls.Add(1)
			return nil
		},
	}
	calls := registry.NewCallList()
	m := New(calls, p, time.Second)
	defer m.Close()

	c := call.New(call.Options{Direction: call.DirectionOutgoing})
	mc := &registry.ManagedCall{Call: c, Handle: plugin.CallHandle{}}
	calls.Add(mc)
	c.TransitionTo(call.StateDialling, call.ReasonOutgoingStarted)
	m.Notify()

	waitFor(t, func() bool { return c.AudioPort() == "port0" }, "expected audio to be set up")
	if setupCalls.Load() != 1 {
		t.Fatalf("setup calls = %d, want 1", setupCalls.Load())
	}

	c.TransitionTo(call.StateActive, call.ReasonAccepted)
	c.TransitionTo(call.StateTerminated, call.ReasonTerminated)
	m.Notify()

	waitFor(t, func() bool { return c.AudioPort() == "" }, "expected audio to be cleared")
	if cleanupCalls.Load() != 1 {
		t.Fatalf("cleanup calls = %d, want 1", cleanupCalls.Load())
	}
}

func TestManager_InCall_ReflectsState(t *testing.T) {
	p := &plugin.Plugin{}
	calls := registry.NewCallList()
	m := New(calls, p, time.Second)
	defer m.Close()

	if m.InCall() {
		t.Fatal("should not be in-call with no calls")
	}
}
