// Package dtmf implements the per-call DTMF transmission engine: it drives
// a possibly multi-character user request across the plugin's
// one-tone-or-N-tones-at-a-time interface, honouring tone duration and the
// ',' pause character.
package dtmf

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modemvoiced/modemvoiced/internal/voice/call"
	"github.com/modemvoiced/modemvoiced/internal/voice/plugin"
	"github.com/modemvoiced/modemvoiced/internal/voice/verrors"
)

const pauseChar = ','

// ValidAlphabet reports whether s contains only 0-9, A-D (case
// insensitive), '*', '#' and ','.
func ValidAlphabet(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'D':
		case r >= 'a' && r <= 'd':
		case r == '*' || r == '#' || r == pauseChar:
		default:
			return false
		}
	}
	return true
}

// Normalize upper-cases the A-D letters, matching the original plugin's
// dispatch convention.
func Normalize(s string) string { return strings.ToUpper(s) }

// CountNonPause returns the number of characters in s that are not the
// pause character.
func CountNonPause(s string) int {
	n := 0
	for _, r := range s {
		if r != pauseChar {
			n++
		}
	}
	return n
}

// Handle is the subset of a managed call the engine needs: its state,
// serialisation lock, cancellation context and tone duration. The plugin
// call handle is passed to Send separately.
type Handle interface {
	State() call.State
	TryBeginDtmf() bool
	EndDtmf()
	Context() context.Context
	DtmfToneDurationMs() int
}

// Send runs the DTMF algorithm of the component design for tones against h
// using handle for the plugin calls, with acceptLen the plugin's declared
// dtmf_accept_len and defaultDuration used when the call has no override.
func Send(ctx context.Context, h Handle, handle plugin.CallHandle, acceptLen int, defaultDuration time.Duration, tones string) error {
	if tones == "" {
		return nil
	}
	if !ValidAlphabet(tones) {
		return verrors.New(verrors.ErrInvalidArgs, "invalid DTMF alphabet")
	}
	if h.State() != call.StateActive {
		return verrors.New(verrors.ErrWrongState, "call is not active")
	}
	if acceptLen < 1 {
		acceptLen = 1
	}

	if !h.TryBeginDtmf() {
		return verrors.New(verrors.ErrInProgress, "a DTMF transmission is already in flight on this call")
	}
	defer h.EndDtmf()

	duration := defaultDuration
	if ms := h.DtmfToneDurationMs(); ms > 0 {
		duration = time.Duration(ms) * time.Millisecond
	}

	s := Normalize(tones)
	i := 0
	for i < len(s) {
		if err := checkCancelled(ctx, h.Context()); err != nil {
			return err
		}

		if s[i] == pauseChar {
			if err := sleepCancelable(ctx, h.Context(), duration); err != nil {
				return err
			}
			i++
			continue
		}

		end := i
		for end < len(s) && s[end] != pauseChar && end-i < acceptLen {
			end++
		}
		chunk := s[i:end]

		accepted, err := handle.SendDtmf(ctx, chunk)
		if err != nil {
			return verrors.Wrap(verrors.ErrPluginFailure, err)
		}
		if accepted <= 0 {
			return verrors.New(verrors.ErrPluginFailure, fmt.Sprintf("plugin accepted 0 of %d characters", len(chunk)))
		}

		if plugin.SupportsStopDtmf(handle) {
			if err := sleepCancelable(ctx, h.Context(), duration); err != nil {
				// cancelled: do not call stop_dtmf on a call that may no
				// longer exist.
				return err
			}
			if err := handle.StopDtmf(ctx); err != nil {
				return verrors.Wrap(verrors.ErrPluginFailure, err)
			}
		} else {
			// no stop_dtmf: the modem self-terminates the tone, but the
			// engine still paces itself by the tone duration before
			// dispatching the next chunk.
			if err := sleepCancelable(ctx, h.Context(), duration); err != nil {
				return err
			}
		}

		i += accepted
	}
	return nil
}

func checkCancelled(ctx, callCtx context.Context) error {
	select {
	case <-ctx.Done():
		return verrors.New(verrors.ErrCancelled, ctx.Err().Error())
	case <-callCtx.Done():
		return verrors.New(verrors.ErrCancelled, "call terminated")
	default:
		return nil
	}
}

func sleepCancelable(ctx, callCtx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return verrors.New(verrors.ErrCancelled, ctx.Err().Error())
	case <-callCtx.Done():
		return verrors.New(verrors.ErrCancelled, "call terminated")
	}
}
