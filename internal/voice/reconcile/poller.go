// Package reconcile implements the call-list reconciler: a loop that
// bridges plugin event streams that can drop or re-order updates with the
// authoritative state in the call registry, by periodically polling the
// plugin for a full snapshot while any call is still establishing.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/modemvoiced/modemvoiced/internal/voice/call"
	"github.com/modemvoiced/modemvoiced/internal/voice/plugin"
	"github.com/modemvoiced/modemvoiced/internal/voice/registry"
)

// establishingStates is the set that motivates polling: dialling,
// ringing_out, ringing_in, held, waiting. active and terminated calls never
// motivate polling on their own.
var establishingStates = []call.State{
	call.StateDialling, call.StateRingingOut, call.StateRingingIn,
	call.StateHeld, call.StateWaiting,
}

// ReportAllFunc folds a full call-list snapshot into the registry; it is
// registry.Controller.ReportAllCalls in production and a stub in tests.
type ReportAllFunc func(infos []plugin.CallInfo)

// Poller is the per-modem call-list reconciler.
type Poller struct {
	mu        sync.Mutex
	calls     *registry.CallList
	plugin    *plugin.Plugin
	period    time.Duration
	opTimeout time.Duration
	reportAll ReportAllFunc

	scheduled bool
	inFlight  bool
	timer     *time.Timer
}

// New creates a reconciler. If p.LoadCallList is nil the reconciler is
// permanently disabled for this modem, per the plugin-capability contract.
func New(calls *registry.CallList, p *plugin.Plugin, period, opTimeout time.Duration, reportAll ReportAllFunc) *Poller {
	return &Poller{calls: calls, plugin: p, period: period, opTimeout: opTimeout, reportAll: reportAll}
}

// MaybeSchedule arms the poll timer if it is not already scheduled or in
// flight. Called on every call-added event, and internally after each fire.
func (p *Poller) MaybeSchedule() {
	if p.plugin.LoadCallList == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scheduled || p.inFlight {
		return
	}
	p.scheduled = true
	p.timer = time.AfterFunc(p.period, p.fire)
}

// Stop cancels any pending timer. Used on shutdown.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.scheduled = false
}

func (p *Poller) fire() {
	p.mu.Lock()
	p.scheduled = false
	n := p.calls.CountByState(establishingStates...)
	if n == 0 {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.opTimeout)
	defer cancel()
	infos, err := p.plugin.LoadCallList(ctx)

	if err != nil {
		slog.Warn("call-list reconciler poll failed", "error", err)
	} else {
		p.reportAll(infos)
	}

	p.mu.Lock()
	alreadyRescheduled := p.scheduled
	p.inFlight = false
	p.mu.Unlock()

	if !alreadyRescheduled {
		p.MaybeSchedule()
	}
}

// Polling reports whether the reconciler is currently scheduled or in
// flight, for diagnostics (admin HTTP surface, tests).
func (p *Poller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scheduled || p.inFlight
}
