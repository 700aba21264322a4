// Package incall implements the in-call resource manager: it ensures the
// audio channel and unsolicited-event handlers are opened exactly once
// while any "in-call" call exists and closed exactly once when none remain.
package incall

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/modemvoiced/modemvoiced/internal/voice/call"
	"github.com/modemvoiced/modemvoiced/internal/voice/plugin"
	"github.com/modemvoiced/modemvoiced/internal/voice/registry"
)

type resourceState int

const (
	stateIdle resourceState = iota
	stateSettingUp
	stateInCall
	stateCleaningUp
)

// inCallStates is the set of call states that motivate audio-channel and
// URC-handler setup: dialling, ringing_out, held, active. ringing_in and
// waiting are deliberately excluded (invariant 5 of the Call data model).
var inCallStates = []call.State{
	call.StateDialling, call.StateRingingOut, call.StateHeld, call.StateActive,
}

// Manager is the per-modem in-call resource manager.
type Manager struct {
	mu    sync.Mutex
	state resourceState

	audioPort   string
	audioFormat call.AudioFormat

	setupCancel   context.CancelFunc
	cleanupCancel context.CancelFunc

	calls     *registry.CallList
	plugin    *plugin.Plugin
	opTimeout time.Duration

	wake chan struct{}
	stop chan struct{}
}

// New creates a manager watching calls, driving plugin for audio/URC setup
// and cleanup, each operation bounded by opTimeout.
func New(calls *registry.CallList, p *plugin.Plugin, opTimeout time.Duration) *Manager {
	m := &Manager{
		calls:     calls,
		plugin:    p,
		opTimeout: opTimeout,
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
	go m.loop()
	return m
}

// Close stops the manager's evaluation loop.
func (m *Manager) Close() { close(m.stop) }

// Notify schedules a coalesced re-evaluation; multiple calls in quick
// succession (e.g. several simultaneous state-changed emissions) collapse
// into a single pending re-evaluation, matching the coalescing contract.
func (m *Manager) Notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) loop() {
	for {
		select {
		case <-m.wake:
			m.evaluate()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) evaluate() {
	nInCall := m.calls.CountByState(inCallStates...)

	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	switch {
	case nInCall > 0 && state == stateIdle:
		m.beginSetup()
	case nInCall == 0 && state == stateInCall:
		m.beginCleanup()
	}
	// setting_up / cleaning_up: do nothing, the in-flight operation's own
	// completion re-evaluates.
}

func (m *Manager) beginSetup() {
	m.mu.Lock()
	if m.cleanupCancel != nil {
		m.cleanupCancel()
		m.cleanupCancel = nil
	}
	m.state = stateSettingUp
	ctx, cancel := context.WithCancel(context.Background())
	m.setupCancel = cancel
	m.mu.Unlock()

	go func() {
		opCtx, opCancel := context.WithTimeout(ctx, m.opTimeout)
		defer opCancel()

		if m.plugin.SetupInCallUnsolicitedEvents != nil {
			if err := m.plugin.SetupInCallUnsolicitedEvents(opCtx); err != nil {
				slog.Warn("in-call URC setup failed", "error", err)
				m.finishSetup("", call.AudioFormat{}, false)
				return
			}
		}

		var port string
		var format call.AudioFormat
		if m.plugin.SetupInCallAudioChannel != nil {
			var err error
			port, format, err = m.plugin.SetupInCallAudioChannel(opCtx)
			if err != nil {
				slog.Warn("in-call audio channel setup failed", "error", err)
				m.finishSetup("", call.AudioFormat{}, false)
				return
			}
		}
		m.finishSetup(port, format, true)
	}()
}

func (m *Manager) finishSetup(port string, format call.AudioFormat, ok bool) {
	m.mu.Lock()
	if m.state != stateSettingUp {
		m.mu.Unlock()
		return
	}
	if ok {
		m.audioPort = port
		m.audioFormat = format
		m.state = stateInCall
	} else {
		m.state = stateIdle
	}
	m.setupCancel = nil
	m.mu.Unlock()

	if ok {
		for _, mc := range m.calls.All() {
			if !mc.State().IsTerminal() {
				mc.SetAudio(port, format)
			}
		}
	}
	m.Notify()
}

func (m *Manager) beginCleanup() {
	m.mu.Lock()
	if m.setupCancel != nil {
		m.setupCancel()
		m.setupCancel = nil
	}
	m.state = stateCleaningUp
	ctx, cancel := context.WithCancel(context.Background())
	m.cleanupCancel = cancel
	m.mu.Unlock()

	go func() {
		opCtx, opCancel := context.WithTimeout(ctx, m.opTimeout)
		defer opCancel()

		if m.plugin.CleanupInCallAudioChannel != nil {
			if err := m.plugin.CleanupInCallAudioChannel(opCtx); err != nil {
				slog.Warn("in-call audio channel cleanup failed", "error", err)
				m.finishCleanup(false)
				return
			}
		}
		if m.plugin.CleanupInCallUnsolicitedEvents != nil {
			if err := m.plugin.CleanupInCallUnsolicitedEvents(opCtx); err != nil {
				slog.Warn("in-call URC cleanup failed", "error", err)
				m.finishCleanup(false)
				return
			}
		}
		m.finishCleanup(true)
	}()
}

func (m *Manager) finishCleanup(ok bool) {
	m.mu.Lock()
	if m.state != stateCleaningUp {
		m.mu.Unlock()
		return
	}
	if ok {
		m.audioPort = ""
		m.audioFormat = call.AudioFormat{}
		m.state = stateIdle
	} else {
		m.state = stateInCall
	}
	m.cleanupCancel = nil
	m.mu.Unlock()

	if ok {
		for _, mc := range m.calls.All() {
			mc.ClearAudio()
		}
	}
	m.Notify()
}

// InCall reports whether the manager currently holds the audio channel
// open, for diagnostics.
func (m *Manager) InCall() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateInCall
}
