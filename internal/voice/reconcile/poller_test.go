package reconcile

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modemvoiced/modemvoiced/internal/voice/call"
	"github.com/modemvoiced/modemvoiced/internal/voice/plugin"
	"github.com/modemvoiced/modemvoiced/internal/voice/registry"
)

func TestPoller_DisabledWithoutLoadCallList(t *testing.T) {
	p := &plugin.Plugin{}
	calls := registry.NewCallList()
	poller := New(calls, p, 5*time.Millisecond, time.Second, func([]plugin.CallInfo) {})
	poller.MaybeSchedule()
	if poller.Polling() {
		t.Fatal("poller must stay disabled when LoadCallList is nil")
	}
}

func TestPoller_PollsWhileEstablishingThenStops(t *testing.T) {
	var loadCount atomic.Int32
	p := &plugin.Plugin{
		LoadCallList: func(ctx context.Context) ([]plugin.CallInfo, error) {
			loadCount.Add(1)
			return nil, nil
		},
	}
	calls := registry.NewCallList()
	c := call.New(call.Options{Direction: call.DirectionOutgoing})
	calls.Add(&registry.ManagedCall{Call: c, Handle: plugin.CallHandle{}})
	c.TransitionTo(call.StateDialling, call.ReasonOutgoingStarted)

	var reported atomic.Int32
	poller := New(calls, p, 5*time.Millisecond, time.Second, func(infos []plugin.CallInfo) {
		reported.Add(1)
	})
	defer poller.Stop()

	poller.MaybeSchedule()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && loadCount.Load() == 0 {
		time.Sleep(2 * time.Millisecond)
	}
	if loadCount.Load() == 0 {
		t.Fatal("expected at least one poll while a call is establishing")
	}

	c.TransitionTo(call.StateActive, call.ReasonAccepted)
	c.TransitionTo(call.StateTerminated, call.ReasonTerminated)

	// allow any in-flight fire() to settle, then confirm no more scheduling
	// happens once nothing is establishing.
	time.Sleep(30 * time.Millisecond)
	if poller.Polling() {
		t.Fatal("poller should stop scheduling once no call is establishing")
	}
}
