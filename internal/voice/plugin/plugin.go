// Package plugin defines the capability surface the voice core invokes on
// a modem's hardware-specific driver. It is the Go rendering of the
// original's class-struct function pointer table: a single interface with
// optional methods, absence of which the controller maps uniformly to
// verrors.ErrUnsupported.
package plugin

import (
	"context"
	"errors"

	"github.com/modemvoiced/modemvoiced/internal/voice/call"
)

// ErrNotImplemented is available for a plugin to return from a capability it
// does not implement. The voice core detects unsupported capabilities by a
// nil function field instead; it does not map this error to
// verrors.ErrUnsupported (verrors.Category reports it as plugin_failure).
var ErrNotImplemented = errors.New("plugin: capability not implemented")

// CallInfo is the plugin-to-core transient descriptor used both for single
// report_call events and for full report_all_calls snapshots. Any field
// except State may be left at its zero value to mean "unset".
type CallInfo struct {
	Index     int
	Direction call.Direction
	State     call.State
	Number    string
}

// CallProperties is the client-supplied struct for CreateCall.
type CallProperties struct {
	Number             string
	DtmfToneDurationMs int // 0 means "use plugin default"
}

// Plugin is the capability surface: every modem plugin must support voice
// call admission checks and call creation.
type Plugin struct {
	// CheckVoiceSupport and CreateCall are required. LoadCallList may be
	// nil, which disables the call-list reconciler for this modem.
	CheckVoiceSupport func(ctx context.Context) (bool, error)
	LoadCallList      func(ctx context.Context) ([]CallInfo, error)
	CreateCall        func(ctx context.Context, direction call.Direction, number string) (CallHandle, error)

	// Optional aggregate capabilities. A nil field means unsupported.
	HoldAndAccept     func(ctx context.Context) error
	HangupAndAccept   func(ctx context.Context) error
	HangupAll         func(ctx context.Context) error
	Transfer          func(ctx context.Context) error
	JoinMultiparty    func(ctx context.Context) error
	LeaveMultiparty   func(ctx context.Context, callIndex int) error
	CallWaitingSetup  func(ctx context.Context, enable bool) error
	CallWaitingQuery  func(ctx context.Context) (bool, error)

	SetupInCallUnsolicitedEvents   func(ctx context.Context) error
	CleanupInCallUnsolicitedEvents func(ctx context.Context) error
	SetupInCallAudioChannel        func(ctx context.Context) (audioPort string, format call.AudioFormat, err error)
	CleanupInCallAudioChannel      func(ctx context.Context) error

	// DtmfAcceptLen is the maximum number of non-pause tone characters the
	// plugin can consume in one SendDtmf call (typically 1 for AT plugins,
	// N for binary protocols). Must be >= 1.
	DtmfAcceptLen int

	// Capability flags the plugin declares, copied by the controller onto
	// every new call. SkipIncomingTimeout disables the incoming-call
	// validity timer. The two Supports* flags are stored on the call only:
	// call.CanTransition does not consult them, and no transition is
	// inferred from them.
	SkipIncomingTimeout       bool
	SupportsDiallingToRinging bool
	SupportsRingingToActive   bool
}

// CallHandle is the per-call capability surface returned by CreateCall (for
// outgoing calls) or synthesised by the controller for incoming calls that
// only need the per-call operations below. Required fields must be set by
// every plugin; StopDtmf is optional.
type CallHandle struct {
	Start   func(ctx context.Context) error
	Accept  func(ctx context.Context) error
	Deflect func(ctx context.Context, number string) error
	Hangup  func(ctx context.Context) error

	SendDtmf func(ctx context.Context, tones string) (accepted int, err error)
	// StopDtmf is optional; nil means the plugin self-terminates tones and
	// the DTMF engine must not call it.
	StopDtmf func(ctx context.Context) error
}

// SupportsStopDtmf reports whether h advertises the paired stop_dtmf
// capability.
func SupportsStopDtmf(h CallHandle) bool { return h.StopDtmf != nil }
