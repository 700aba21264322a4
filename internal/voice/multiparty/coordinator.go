// Package multiparty implements the multi-party coordinator: joining the
// active and held calls into a single conference, and detaching one
// participant from an existing conference, which puts the remaining
// participants on hold.
package multiparty

import (
	"context"
	"time"

	"github.com/modemvoiced/modemvoiced/internal/voice/call"
	"github.com/modemvoiced/modemvoiced/internal/voice/plugin"
	"github.com/modemvoiced/modemvoiced/internal/voice/registry"
	"github.com/modemvoiced/modemvoiced/internal/voice/verrors"
)

// Coordinator drives plugin.JoinMultiparty / plugin.LeaveMultiparty against
// the call registry, keeping each participant's multiparty flag consistent
// with its membership in the conference.
type Coordinator struct {
	calls     *registry.CallList
	plugin    *plugin.Plugin
	opTimeout time.Duration
}

// New builds a Coordinator over calls, driving p within opTimeout per
// operation.
func New(calls *registry.CallList, p *plugin.Plugin, opTimeout time.Duration) *Coordinator {
	return &Coordinator{calls: calls, plugin: p, opTimeout: opTimeout}
}

// Join merges every active and held call into a single multiparty
// conference. Requires at least one active call and at least one held
// call; the conference result is all-active per network convention.
func (c *Coordinator) Join(ctx context.Context) error {
	if c.plugin.JoinMultiparty == nil {
		return verrors.New(verrors.ErrUnsupported, "join_multiparty")
	}
	active := c.calls.ByState(call.StateActive)
	held := c.calls.ByState(call.StateHeld)
	if len(active) == 0 || len(held) == 0 {
		return verrors.New(verrors.ErrWrongState, "join requires at least one active and one held call")
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.plugin.JoinMultiparty(opCtx); err != nil {
		return verrors.Wrap(verrors.ErrPluginFailure, err)
	}

	for _, mc := range held {
		mc.TransitionTo(call.StateActive, call.ReasonAccepted)
	}
	participants := append(append([]*registry.ManagedCall{}, active...), held...)
	for _, mc := range participants {
		mc.SetMultiparty(true)
	}
	return nil
}

// Leave detaches the call identified by id from its conference: it
// continues on as a standalone active call, no longer multiparty. Every
// other participant is put on hold; if exactly one other participant
// remains, it too is no longer considered multiparty.
func (c *Coordinator) Leave(ctx context.Context, id string) error {
	if c.plugin.LeaveMultiparty == nil {
		return verrors.New(verrors.ErrUnsupported, "leave_multiparty")
	}
	mc, ok := c.calls.Get(id)
	if !ok {
		return verrors.New(verrors.ErrNotFound, id)
	}
	if !mc.Multiparty() {
		return verrors.New(verrors.ErrWrongState, "call is not part of a multiparty conference")
	}
	if mc.Index() == 0 {
		return verrors.New(verrors.ErrInvalidArgs, "call has no hardware index to leave by")
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.plugin.LeaveMultiparty(opCtx, mc.Index()); err != nil {
		return verrors.Wrap(verrors.ErrPluginFailure, err)
	}

	others := otherMultipartyMembers(c.calls, mc.ID())
	for _, o := range others {
		if len(others) == 1 {
			o.SetMultiparty(false)
		}
		o.TransitionTo(call.StateHeld, call.ReasonUnknown)
	}

	// the call that left continues on its own as the active call.
	mc.SetMultiparty(false)
	if mc.State() == call.StateHeld {
		mc.TransitionTo(call.StateActive, call.ReasonUnknown)
	}
	return nil
}

func otherMultipartyMembers(calls *registry.CallList, excludeID string) []*registry.ManagedCall {
	var out []*registry.ManagedCall
	for _, mc := range calls.All() {
		if mc.ID() == excludeID {
			continue
		}
		if mc.State().IsTerminal() {
			continue
		}
		if mc.Multiparty() {
			out = append(out, mc)
		}
	}
	return out
}
