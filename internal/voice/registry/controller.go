package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modemvoiced/modemvoiced/internal/store"
	"github.com/modemvoiced/modemvoiced/internal/voice/authz"
	"github.com/modemvoiced/modemvoiced/internal/voice/call"
	"github.com/modemvoiced/modemvoiced/internal/voice/dtmf"
	"github.com/modemvoiced/modemvoiced/internal/voice/incall"
	"github.com/modemvoiced/modemvoiced/internal/voice/modemstate"
	"github.com/modemvoiced/modemvoiced/internal/voice/plugin"
	"github.com/modemvoiced/modemvoiced/internal/voice/reconcile"
	"github.com/modemvoiced/modemvoiced/internal/voice/verrors"
)

// alwaysEmergency is the always-valid emergency set admitted regardless of
// registration or SIM state.
var alwaysEmergency = []string{"112", "911"}

// noSIMEmergency is admitted when no SIM is present, in addition to the
// always-valid set.
var noSIMEmergency = []string{"000", "08", "110", "999", "118", "119"}

// Bus is the subset of the dbus export layer the controller drives. It
// decouples report ingestion and operation handling from the bus
// technology; internal/dbusexport implements it over godbus.
type Bus interface {
	CallAdded(id string)
	CallDeleted(id string)
	StateChanged(id string, old, new call.State, reason call.Reason)
	DtmfReceived(id string, tone string)
	EmergencyOnlyChanged(emergencyOnly bool)
}

// Config carries the timing and admission parameters the controller needs.
type Config struct {
	IncomingCallValidity    time.Duration
	PluginOpTimeout         time.Duration
	ReconcilePeriod         time.Duration
	DefaultDtmfToneDuration time.Duration
	ExtraEmergencyNumbers   []string
}

// Controller is the Voice Interface Controller: root of the subsystem. It
// owns the CallList, authorises inbound requests, validates aggregate
// preconditions, routes create/delete, and forwards plugin reports into
// call objects.
type Controller struct {
	calls      *CallList
	plugin     *plugin.Plugin
	authz      authz.Checker
	modemState modemstate.Source
	bus        Bus
	cfg        Config

	incallMgr *incall.Manager
	poller    *reconcile.Poller

	incomingTimers *store.TTLStore[string, struct{}]

	voiceSupportOnce sync.Once
	voiceSupported   bool
}

// New builds a Controller wired to p, authorised by checker, admitting
// emergency calls per modemSrc's registration/SIM facts, and publishing
// through bus.
func New(p *plugin.Plugin, checker authz.Checker, modemSrc modemstate.Source, bus Bus, cfg Config) *Controller {
	c := &Controller{
		calls:      NewCallList(),
		plugin:     p,
		authz:      checker,
		modemState: modemSrc,
		bus:        bus,
		cfg:        cfg,
	}
	c.incallMgr = incall.New(c.calls, p, cfg.PluginOpTimeout)
	c.poller = reconcile.New(c.calls, p, cfg.ReconcilePeriod, cfg.PluginOpTimeout, c.ReportAllCalls)
	c.incomingTimers = store.NewTTLStoreWithEvict(time.Second, c.onIncomingTimeout)

	c.calls.OnAdded(c.handleAdded)
	c.calls.OnDeleted(c.handleDeleted)
	return c
}

// CallListForMultiparty exposes the underlying CallList so the multiparty
// coordinator, which is constructed after the controller, can share it
// rather than the controller needing to know about multiparty at
// construction time.
func (c *Controller) CallListForMultiparty() *CallList { return c.calls }

// IncallManager exposes the in-call resource manager for diagnostics (the
// admin HTTP surface).
func (c *Controller) IncallManager() *incall.Manager { return c.incallMgr }

// Poller exposes the call-list reconciler for diagnostics (the admin HTTP
// surface).
func (c *Controller) Poller() *reconcile.Poller { return c.poller }

// Close releases background resources (in-call manager loop, timers).
func (c *Controller) Close() {
	c.incallMgr.Close()
	c.poller.Stop()
	c.incomingTimers.Close()
}

func (c *Controller) handleAdded(mc *ManagedCall) {
	c.bus.CallAdded(mc.ID())
	mc.OnStateChanged(func(old, new_ call.State, reason call.Reason) {
		c.bus.StateChanged(mc.ID(), old, new_, reason)
		c.incallMgr.Notify()
	})
	mc.OnDtmfReceived(func(tone string) {
		c.bus.DtmfReceived(mc.ID(), tone)
	})
	c.poller.MaybeSchedule()
	c.incallMgr.Notify()
}

func (c *Controller) handleDeleted(mc *ManagedCall) {
	c.bus.CallDeleted(mc.ID())
	c.incomingTimers.Delete(mc.ID())
}

// EmergencyOnly reports whether only emergency numbers may currently be
// dialled (the modem is not registered).
func (c *Controller) EmergencyOnly() bool { return !c.modemState.Registered() }

func (c *Controller) checkVoiceSupported(ctx context.Context) bool {
	c.voiceSupportOnce.Do(func() {
		if c.plugin.CheckVoiceSupport == nil {
			c.voiceSupported = false
			return
		}
		ok, err := c.plugin.CheckVoiceSupport(ctx)
		c.voiceSupported = ok && err == nil
	})
	return c.voiceSupported
}

func (c *Controller) authorize(ctx context.Context, subject string) error {
	if c.authz == nil {
		return nil
	}
	if err := c.authz.Authorize(ctx, subject, "voice"); err != nil {
		return verrors.Wrap(verrors.ErrUnauthorized, err)
	}
	return nil
}

// admitted implements the emergency-only admission predicate of the Voice
// Interface Controller.
func (c *Controller) admitted(number string) bool {
	if c.modemState.Registered() {
		return true
	}
	always := append(append([]string{}, alwaysEmergency...), c.cfg.ExtraEmergencyNumbers...)
	for _, n := range always {
		if number == n {
			return true
		}
	}
	if !c.modemState.SIMPresent() {
		for _, n := range noSIMEmergency {
			if number == n {
				return true
			}
		}
		return false
	}
	for _, n := range c.modemState.EmergencyNumbers() {
		if number == n {
			return true
		}
	}
	return false
}

// ---- bus surface: call-list operations ----

// CreateCall creates an outgoing call in state unknown and exports it.
func (c *Controller) CreateCall(ctx context.Context, subject string, props plugin.CallProperties) (string, error) {
	if err := c.authorize(ctx, subject); err != nil {
		return "", err
	}
	if props.Number == "" {
		return "", verrors.New(verrors.ErrInvalidArgs, "number is required")
	}
	if !c.checkVoiceSupported(ctx) {
		return "", verrors.New(verrors.ErrUnsupported, "voice calls not supported by this modem")
	}

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.PluginOpTimeout)
	defer cancel()
	handle, err := c.plugin.CreateCall(opCtx, call.DirectionOutgoing, props.Number)
	if err != nil {
		return "", verrors.Wrap(verrors.ErrPluginFailure, err)
	}

	cc := call.New(call.Options{
		Direction:                 call.DirectionOutgoing,
		Number:                    props.Number,
		DtmfToneDurationMs:        props.DtmfToneDurationMs,
		SkipIncomingTimeout:       c.plugin.SkipIncomingTimeout,
		SupportsDiallingToRinging: c.plugin.SupportsDiallingToRinging,
		SupportsRingingToActive:   c.plugin.SupportsRingingToActive,
	})
	mc := &ManagedCall{Call: cc, Handle: handle}
	c.calls.Add(mc)
	return mc.ID(), nil
}

// DeleteCall removes a terminated call from the registry.
func (c *Controller) DeleteCall(ctx context.Context, subject, id string) error {
	if err := c.authorize(ctx, subject); err != nil {
		return err
	}
	mc, ok := c.calls.Get(id)
	if !ok {
		return verrors.New(verrors.ErrNotFound, id)
	}
	if mc.State() != call.StateTerminated {
		return verrors.New(verrors.ErrWrongState, "call is not terminated")
	}
	c.calls.Remove(id)
	return nil
}

// Lookup returns the managed call for id, for the export layer's per-call
// object construction.
func (c *Controller) Lookup(id string) (*ManagedCall, bool) { return c.calls.Get(id) }

// ListCalls returns every call id currently in the registry.
func (c *Controller) ListCalls() []string {
	all := c.calls.All()
	out := make([]string, 0, len(all))
	for _, mc := range all {
		out = append(out, mc.ID())
	}
	return out
}

func (c *Controller) pickNextAfterSwap() (*ManagedCall, bool) {
	if waiting := c.calls.ByState(call.StateWaiting); len(waiting) > 0 {
		return waiting[0], true
	}
	if held := c.calls.ByState(call.StateHeld); len(held) > 0 {
		return held[0], true
	}
	return nil, false
}

// HoldAndAccept holds every active call and accepts the next waiting (or
// held) call.
func (c *Controller) HoldAndAccept(ctx context.Context, subject string) error {
	if err := c.authorize(ctx, subject); err != nil {
		return err
	}
	next, ok := c.pickNextAfterSwap()
	if !ok {
		return verrors.New(verrors.ErrWrongState, "no waiting or held call to accept")
	}
	if c.plugin.HoldAndAccept == nil {
		return verrors.New(verrors.ErrUnsupported, "hold_and_accept")
	}
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.PluginOpTimeout)
	defer cancel()
	if err := c.plugin.HoldAndAccept(opCtx); err != nil {
		return verrors.Wrap(verrors.ErrPluginFailure, err)
	}
	for _, a := range c.calls.ByState(call.StateActive) {
		a.TransitionTo(call.StateHeld, call.ReasonUnknown)
	}
	next.TransitionTo(call.StateActive, call.ReasonAccepted)
	return nil
}

// HangupAndAccept terminates every active call and accepts the next
// waiting (or held) call.
func (c *Controller) HangupAndAccept(ctx context.Context, subject string) error {
	if err := c.authorize(ctx, subject); err != nil {
		return err
	}
	next, ok := c.pickNextAfterSwap()
	if !ok {
		return verrors.New(verrors.ErrWrongState, "no waiting or held call to accept")
	}
	if c.plugin.HangupAndAccept == nil {
		return verrors.New(verrors.ErrUnsupported, "hangup_and_accept")
	}
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.PluginOpTimeout)
	defer cancel()
	if err := c.plugin.HangupAndAccept(opCtx); err != nil {
		return verrors.Wrap(verrors.ErrPluginFailure, err)
	}
	for _, a := range c.calls.ByState(call.StateActive) {
		a.TransitionTo(call.StateTerminated, call.ReasonTerminated)
	}
	next.TransitionTo(call.StateActive, call.ReasonAccepted)
	return nil
}

// HangupAll terminates every call in {dialling, ringing_out, ringing_in,
// active}. held and waiting calls are untouched; their fate is reported
// out-of-band by the plugin.
func (c *Controller) HangupAll(ctx context.Context, subject string) error {
	if err := c.authorize(ctx, subject); err != nil {
		return err
	}
	if c.plugin.HangupAll == nil {
		return verrors.New(verrors.ErrUnsupported, "hangup_all")
	}
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.PluginOpTimeout)
	defer cancel()
	if err := c.plugin.HangupAll(opCtx); err != nil {
		return verrors.Wrap(verrors.ErrPluginFailure, err)
	}
	targets := c.calls.ByState(call.StateDialling, call.StateRingingOut, call.StateRingingIn, call.StateActive)
	for _, mc := range targets {
		mc.TransitionTo(call.StateTerminated, call.ReasonTerminated)
	}
	return nil
}

// HangupAllIncludingHeld is the redesign-flag second operation: like
// HangupAll but also terminates held calls.
func (c *Controller) HangupAllIncludingHeld(ctx context.Context, subject string) error {
	if err := c.authorize(ctx, subject); err != nil {
		return err
	}
	if c.plugin.HangupAll == nil {
		return verrors.New(verrors.ErrUnsupported, "hangup_all")
	}
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.PluginOpTimeout)
	defer cancel()
	if err := c.plugin.HangupAll(opCtx); err != nil {
		return verrors.Wrap(verrors.ErrPluginFailure, err)
	}
	targets := c.calls.ByState(call.StateDialling, call.StateRingingOut, call.StateRingingIn, call.StateActive, call.StateHeld)
	for _, mc := range targets {
		mc.TransitionTo(call.StateTerminated, call.ReasonTerminated)
	}
	return nil
}

// Transfer joins active and held calls and disconnects from both.
func (c *Controller) Transfer(ctx context.Context, subject string) error {
	if err := c.authorize(ctx, subject); err != nil {
		return err
	}
	if c.plugin.Transfer == nil {
		return verrors.New(verrors.ErrUnsupported, "transfer")
	}
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.PluginOpTimeout)
	defer cancel()
	if err := c.plugin.Transfer(opCtx); err != nil {
		return verrors.Wrap(verrors.ErrPluginFailure, err)
	}
	for _, mc := range c.calls.ByState(call.StateActive, call.StateHeld) {
		mc.TransitionTo(call.StateTerminated, call.ReasonTransferred)
	}
	return nil
}

// CallWaitingSetup enables or disables the network call-waiting service.
func (c *Controller) CallWaitingSetup(ctx context.Context, subject string, enable bool) error {
	if err := c.authorize(ctx, subject); err != nil {
		return err
	}
	if c.plugin.CallWaitingSetup == nil {
		return verrors.New(verrors.ErrUnsupported, "call_waiting_setup")
	}
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.PluginOpTimeout)
	defer cancel()
	return verrors.Wrap(verrors.ErrPluginFailure, c.plugin.CallWaitingSetup(opCtx, enable))
}

// CallWaitingQuery returns whether call waiting is enabled.
func (c *Controller) CallWaitingQuery(ctx context.Context, subject string) (bool, error) {
	if err := c.authorize(ctx, subject); err != nil {
		return false, err
	}
	if c.plugin.CallWaitingQuery == nil {
		return false, verrors.New(verrors.ErrUnsupported, "call_waiting_query")
	}
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.PluginOpTimeout)
	defer cancel()
	enabled, err := c.plugin.CallWaitingQuery(opCtx)
	if err != nil {
		return false, verrors.Wrap(verrors.ErrPluginFailure, err)
	}
	return enabled, nil
}

// ---- per-call operations ----

// StartCall begins an outgoing call, checking emergency-only admission.
func (c *Controller) StartCall(ctx context.Context, id string) error {
	mc, ok := c.calls.Get(id)
	if !ok {
		return verrors.New(verrors.ErrNotFound, id)
	}
	if mc.Direction() != call.DirectionOutgoing {
		return verrors.New(verrors.ErrWrongState, "Start is only legal for outgoing calls")
	}
	if mc.State() != call.StateUnknown {
		return verrors.New(verrors.ErrWrongState, fmt.Sprintf("call is %s, not unknown", mc.State()))
	}
	if !c.admitted(mc.Number()) {
		return verrors.New(verrors.ErrUnauthorized, "only emergency calls allowed")
	}
	if !mc.TryBeginOp() {
		return verrors.New(verrors.ErrInProgress, "")
	}
	defer mc.EndOp()

	opCtx, done := mc.BeginOpContext(ctx)
	defer done()
	opCtx, cancel := context.WithTimeout(opCtx, c.cfg.PluginOpTimeout)
	defer cancel()

	if err := mc.Handle.Start(opCtx); err != nil {
		mc.TransitionTo(call.StateTerminated, reasonForPluginFailure(err))
		return verrors.Wrap(verrors.ErrRefusedOrBusy, err)
	}
	mc.TransitionTo(call.StateDialling, call.ReasonOutgoingStarted)
	return nil
}

// AcceptCall accepts an incoming call that is ringing or waiting.
func (c *Controller) AcceptCall(ctx context.Context, id string) error {
	mc, ok := c.calls.Get(id)
	if !ok {
		return verrors.New(verrors.ErrNotFound, id)
	}
	if mc.Direction() != call.DirectionIncoming {
		return verrors.New(verrors.ErrWrongState, "Accept is only legal for incoming calls")
	}
	if mc.State() != call.StateRingingIn && mc.State() != call.StateWaiting {
		return verrors.New(verrors.ErrWrongState, fmt.Sprintf("call is %s", mc.State()))
	}
	if !mc.TryBeginOp() {
		return verrors.New(verrors.ErrInProgress, "")
	}
	defer mc.EndOp()

	opCtx, done := mc.BeginOpContext(ctx)
	defer done()
	opCtx, cancel := context.WithTimeout(opCtx, c.cfg.PluginOpTimeout)
	defer cancel()

	if err := mc.Handle.Accept(opCtx); err != nil {
		return verrors.Wrap(verrors.ErrPluginFailure, err)
	}
	mc.TransitionTo(call.StateActive, call.ReasonAccepted)
	return nil
}

// DeflectCall deflects an incoming call to a different number.
func (c *Controller) DeflectCall(ctx context.Context, id, number string) error {
	mc, ok := c.calls.Get(id)
	if !ok {
		return verrors.New(verrors.ErrNotFound, id)
	}
	if mc.Direction() != call.DirectionIncoming {
		return verrors.New(verrors.ErrWrongState, "Deflect is only legal for incoming calls")
	}
	if mc.State() != call.StateRingingIn && mc.State() != call.StateWaiting {
		return verrors.New(verrors.ErrWrongState, fmt.Sprintf("call is %s", mc.State()))
	}
	if !mc.TryBeginOp() {
		return verrors.New(verrors.ErrInProgress, "")
	}
	defer mc.EndOp()

	opCtx, done := mc.BeginOpContext(ctx)
	defer done()
	opCtx, cancel := context.WithTimeout(opCtx, c.cfg.PluginOpTimeout)
	defer cancel()

	if err := mc.Handle.Deflect(opCtx, number); err != nil {
		return verrors.Wrap(verrors.ErrPluginFailure, err)
	}
	mc.TransitionTo(call.StateTerminated, call.ReasonDeflected)
	return nil
}

// HangupCall terminates a call from any non-terminal state. Unlike
// Start/Accept/Deflect it does not wait for the per-call op lock: it
// cancels whichever of those is in flight first, so a slow dial can always
// be interrupted by a hangup.
func (c *Controller) HangupCall(ctx context.Context, id string) error {
	mc, ok := c.calls.Get(id)
	if !ok {
		return verrors.New(verrors.ErrNotFound, id)
	}
	if mc.State().IsTerminal() {
		return verrors.New(verrors.ErrWrongState, "call already terminated")
	}
	mc.CancelPendingOp()

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.PluginOpTimeout)
	defer cancel()
	if err := mc.Handle.Hangup(opCtx); err != nil {
		return verrors.Wrap(verrors.ErrPluginFailure, err)
	}
	mc.TransitionTo(call.StateTerminated, call.ReasonTerminated)
	return nil
}

// SendDtmfCall transmits tones on an active call via the DTMF engine.
func (c *Controller) SendDtmfCall(ctx context.Context, id, tones string) error {
	mc, ok := c.calls.Get(id)
	if !ok {
		return verrors.New(verrors.ErrNotFound, id)
	}
	acceptLen := c.plugin.DtmfAcceptLen
	if acceptLen < 1 {
		acceptLen = 1
	}
	return dtmf.Send(ctx, mc.Call, mc.Handle, acceptLen, c.cfg.DefaultDtmfToneDuration, tones)
}

// reasonForPluginFailure maps a wrapped plugin error to a termination
// reason for a failed Start.
func reasonForPluginFailure(err error) call.Reason {
	switch verrors.Category(err) {
	case verrors.ErrRefusedOrBusy.Error(), verrors.ErrNoDialTone.Error():
		return call.ReasonRefusedOrBusy
	default:
		return call.ReasonError
	}
}

// ---- report ingestion ----

func matches(mc *ManagedCall, info plugin.CallInfo) bool {
	if info.Index != 0 && mc.Index() == info.Index {
		return true
	}
	if info.Direction == mc.Direction() && info.State == mc.State() &&
		(info.Index == 0 || mc.Index() == 0 || info.Index == mc.Index()) {
		return true
	}
	if info.Number != "" && info.Number == mc.Number() {
		return true
	}
	if info.State == call.StateTerminated && info.Direction == call.DirectionUnknown &&
		info.Index == 0 && info.Number == "" && !mc.Multiparty() {
		return true
	}
	return false
}

func (c *Controller) applyMatch(mc *ManagedCall, info plugin.CallInfo) {
	if info.Number != "" {
		mc.SetNumber(info.Number)
	}
	if info.Index != 0 {
		mc.SetIndex(info.Index)
	}
	if info.State != mc.State() {
		if !mc.TransitionTo(info.State, reasonForReportedState(info.State)) {
			slog.Warn("report ingestion: illegal transition", "call", mc.ID(), "from", mc.State(), "to", info.State)
		}
	}
	if !mc.State().IsTerminal() && mc.Direction() == call.DirectionIncoming {
		c.refreshIncomingTimer(mc)
	}
}

func reasonForReportedState(to call.State) call.Reason {
	if to == call.StateTerminated {
		return call.ReasonTerminated
	}
	return call.ReasonUnknown
}

// ReportCall ingests a single plugin event (report_call).
func (c *Controller) ReportCall(info plugin.CallInfo) {
	for _, mc := range c.calls.All() {
		if mc.State().IsTerminal() {
			continue
		}
		if matches(mc, info) {
			c.applyMatch(mc, info)
			return
		}
	}
	if info.Direction == call.DirectionIncoming && (info.State == call.StateRingingIn || info.State == call.StateWaiting) {
		c.createIncoming(info)
		return
	}
	slog.Warn("report_call: no matching call", "info", info)
}

// ReportAllCalls ingests a full snapshot (report_all_calls), typically from
// the reconciler.
func (c *Controller) ReportAllCalls(infos []plugin.CallInfo) {
	remaining := append([]plugin.CallInfo{}, infos...)

	for _, mc := range c.calls.All() {
		if mc.State().IsTerminal() {
			continue
		}
		matchedIdx := -1
		for i, info := range remaining {
			if matches(mc, info) {
				matchedIdx = i
				break
			}
		}
		if matchedIdx >= 0 {
			c.applyMatch(mc, remaining[matchedIdx])
			remaining = append(remaining[:matchedIdx], remaining[matchedIdx+1:]...)
			continue
		}
		mc.TransitionTo(call.StateTerminated, call.ReasonTerminated)
	}

	for _, info := range remaining {
		if info.Direction == call.DirectionIncoming && (info.State == call.StateRingingIn || info.State == call.StateWaiting) {
			c.createIncoming(info)
		} else {
			slog.Warn("report_all_calls: unmatched info ignored", "info", info)
		}
	}
}

func (c *Controller) createIncoming(info plugin.CallInfo) {
	opCtx, cancel := context.WithTimeout(context.Background(), c.cfg.PluginOpTimeout)
	defer cancel()
	handle, err := c.plugin.CreateCall(opCtx, call.DirectionIncoming, info.Number)
	if err != nil {
		slog.Warn("failed to create incoming call handle", "error", err)
		return
	}

	cc := call.New(call.Options{
		Direction:                 call.DirectionIncoming,
		Number:                    info.Number,
		Index:                     info.Index,
		SkipIncomingTimeout:       c.plugin.SkipIncomingTimeout,
		SupportsDiallingToRinging: c.plugin.SupportsDiallingToRinging,
		SupportsRingingToActive:   c.plugin.SupportsRingingToActive,
	})
	mc := &ManagedCall{Call: cc, Handle: handle}
	cc.TransitionTo(info.State, call.ReasonIncomingNew)
	c.calls.Add(mc)
	c.refreshIncomingTimer(mc)
}

// ---- incoming call validity timer ----

func (c *Controller) refreshIncomingTimer(mc *ManagedCall) {
	if mc.SkipIncomingTimeout() {
		return
	}
	if mc.State() != call.StateRingingIn {
		// waiting/active calls are not subject to the missed-call timer.
		c.incomingTimers.Delete(mc.ID())
		return
	}
	c.incomingTimers.Set(mc.ID(), struct{}{}, c.cfg.IncomingCallValidity)
}

func (c *Controller) onIncomingTimeout(id string, _ struct{}) {
	mc, ok := c.calls.Get(id)
	if !ok {
		return
	}
	if mc.State() != call.StateRingingIn {
		return
	}
	mc.TransitionTo(call.StateTerminated, call.ReasonMissed)
}

// ---- incoming DTMF demultiplex ----

// ReceivedDtmf forwards tone to every active call whose index matches, or
// to all active calls if index is 0.
func (c *Controller) ReceivedDtmf(index int, tone string) {
	for _, mc := range c.calls.ByState(call.StateActive) {
		if index == 0 || mc.Index() == index {
			mc.EmitDtmfReceived(tone)
		}
	}
}
