package call

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// AudioFormat describes the in-call audio endpoint. The core never encodes
// or decodes audio; this is purely a descriptor handed to an external audio
// subsystem.
type AudioFormat struct {
	Encoding   string
	Resolution string
	Rate       uint32
}

// Options configure a Call at creation time.
type Options struct {
	ID                        string
	Direction                 Direction
	Number                    string
	Index                     int
	DtmfToneDurationMs        int
	SkipIncomingTimeout       bool
	SupportsDiallingToRinging bool
	SupportsRingingToActive   bool
}

// Call is the per-call object the controller exposes on the bus. It holds
// its own state and serialises its own client-visible operations; it owns
// no other call.
type Call struct {
	mu sync.RWMutex

	id        string
	index     int
	direction Direction
	number    string

	state       State
	stateReason Reason

	multiparty bool

	audioPort   string
	audioFormat AudioFormat

	dtmfToneDurationMs        int
	skipIncomingTimeout       bool
	supportsDiallingToRinging bool
	supportsRingingToActive   bool

	createdAt    time.Time
	ringingAt    time.Time
	answeredAt   time.Time
	terminatedAt time.Time

	// opBusy serialises Start/Accept/Deflect against each other. In
	// practice their state preconditions are already mutually exclusive
	// (Start needs unknown, Accept/Deflect need ringing_in/waiting), so
	// this only guards against a literal double-submit of the same
	// request. Hangup deliberately does not take this lock: it must be
	// able to interrupt a slow pending Start (see opCancel below).
	opBusy atomic.Bool
	// dtmfBusy serialises SendDtmf requests on this call.
	dtmfBusy atomic.Bool

	// opCancel cancels the context of whichever Start/Accept/Deflect
	// operation is currently in flight, so Hangup can make it observe
	// cancellation promptly instead of waiting out its full timeout.
	opCancel context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc

	stateChangeCallbacks map[uint64]func(old, new State, reason Reason)
	dtmfCallbacks        map[uint64]func(tone string)
	callbackSeq          atomic.Uint64

	// stateChanged is closed and replaced on every transition so callers can
	// block on a single transition with a select over this channel.
	stateChangedMu sync.Mutex
	stateChanged   chan struct{}
}

// New creates a Call in state unknown, ready to be exported.
func New(opts Options) *Call {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Call{
		id:                        id,
		index:                     opts.Index,
		direction:                 opts.Direction,
		number:                    opts.Number,
		state:                     StateUnknown,
		stateReason:               ReasonUnknown,
		dtmfToneDurationMs:        opts.DtmfToneDurationMs,
		skipIncomingTimeout:       opts.SkipIncomingTimeout,
		supportsDiallingToRinging: opts.SupportsDiallingToRinging,
		supportsRingingToActive:   opts.SupportsRingingToActive,
		createdAt:                 time.Now(),
		ctx:                       ctx,
		cancel:                    cancel,
		stateChangeCallbacks:      make(map[uint64]func(old, new State, reason Reason)),
		dtmfCallbacks:             make(map[uint64]func(tone string)),
		stateChanged:              make(chan struct{}),
	}
	return c
}

func (c *Call) ID() string        { c.mu.RLock(); defer c.mu.RUnlock(); return c.id }
func (c *Call) Index() int        { c.mu.RLock(); defer c.mu.RUnlock(); return c.index }
func (c *Call) Direction() Direction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.direction
}
func (c *Call) Number() string { c.mu.RLock(); defer c.mu.RUnlock(); return c.number }
func (c *Call) State() State   { c.mu.RLock(); defer c.mu.RUnlock(); return c.state }
func (c *Call) StateReason() Reason {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateReason
}
func (c *Call) Multiparty() bool { c.mu.RLock(); defer c.mu.RUnlock(); return c.multiparty }
func (c *Call) AudioPort() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.audioPort
}
func (c *Call) AudioFormat() AudioFormat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.audioFormat
}
func (c *Call) DtmfToneDurationMs() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dtmfToneDurationMs
}
func (c *Call) SkipIncomingTimeout() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.skipIncomingTimeout
}
func (c *Call) SupportsDiallingToRinging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.supportsDiallingToRinging
}
func (c *Call) SupportsRingingToActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.supportsRingingToActive
}
func (c *Call) CreatedAt() time.Time    { c.mu.RLock(); defer c.mu.RUnlock(); return c.createdAt }
func (c *Call) TerminatedAt() time.Time { c.mu.RLock(); defer c.mu.RUnlock(); return c.terminatedAt }

// Context is cancelled when the call terminates; plugin operations for this
// call should observe it for cancellation.
func (c *Call) Context() context.Context { return c.ctx }

// SetIndex assigns the hardware-side index if the call did not already have
// one (index 0 means unassigned).
func (c *Call) SetIndex(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == 0 {
		c.index = index
	}
}

// SetNumber assigns the number if the call did not already have one.
func (c *Call) SetNumber(number string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.number == "" {
		c.number = number
	}
}

// SetMultiparty sets the multiparty flag, used by the multi-party
// coordinator.
func (c *Call) SetMultiparty(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.multiparty = v
}

// SetAudio stores the audio port and format handed out by the in-call
// resource manager. Call objects hold only a borrow; the manager owns the
// lifetime.
func (c *Call) SetAudio(port string, format AudioFormat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioPort = port
	c.audioFormat = format
}

// ClearAudio invalidates the borrowed audio handle on in-call cleanup.
func (c *Call) ClearAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioPort = ""
	c.audioFormat = AudioFormat{}
}

// TryBeginOp attempts to acquire the per-call serial operation lock used by
// Start/Accept/Deflect (Hangup does not take it). Returns false if another
// such operation is already in flight.
func (c *Call) TryBeginOp() bool { return c.opBusy.CompareAndSwap(false, true) }

// EndOp releases the serial operation lock.
func (c *Call) EndOp() { c.opBusy.Store(false) }

// TryBeginDtmf attempts to acquire the per-call DTMF transmission lock.
func (c *Call) TryBeginDtmf() bool { return c.dtmfBusy.CompareAndSwap(false, true) }

// EndDtmf releases the DTMF transmission lock.
func (c *Call) EndDtmf() { c.dtmfBusy.Store(false) }

// BeginOpContext derives a cancellable context from parent for a
// Start/Accept/Deflect plugin invocation and remembers its cancel func so a
// concurrent Hangup can interrupt it. The returned done func must be called
// when the operation finishes.
func (c *Call) BeginOpContext(parent context.Context) (ctx context.Context, done func()) {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	c.opCancel = cancel
	c.mu.Unlock()
	return ctx, func() {
		c.mu.Lock()
		if c.opCancel != nil {
			c.opCancel = nil
		}
		c.mu.Unlock()
		cancel()
	}
}

// CancelPendingOp cancels whichever Start/Accept/Deflect operation is
// currently in flight, if any. Hangup calls this before invoking the
// plugin so a slow dial does not block a user-requested hangup.
func (c *Call) CancelPendingOp() {
	c.mu.Lock()
	cancel := c.opCancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// TransitionTo performs a state transition, updating timestamps and firing
// registered callbacks. Returns false if the edge is illegal (in particular,
// once terminated, no further transition is ever legal: invariant P1).
func (c *Call) TransitionTo(to State, reason Reason) bool {
	c.mu.Lock()
	from := c.state
	if !CanTransition(from, to) {
		c.mu.Unlock()
		return false
	}
	c.state = to
	c.stateReason = reason
	now := time.Now()
	switch to {
	case StateRingingOut, StateRingingIn, StateWaiting:
		if c.ringingAt.IsZero() {
			c.ringingAt = now
		}
	case StateActive:
		if c.answeredAt.IsZero() {
			c.answeredAt = now
		}
	case StateTerminated:
		c.terminatedAt = now
	}
	callbacks := make([]func(old, new State, reason Reason), 0, len(c.stateChangeCallbacks))
	for _, cb := range c.stateChangeCallbacks {
		callbacks = append(callbacks, cb)
	}
	c.mu.Unlock()

	if to == StateTerminated {
		c.cancel()
	}

	c.stateChangedMu.Lock()
	closed := c.stateChanged
	c.stateChanged = make(chan struct{})
	c.stateChangedMu.Unlock()
	close(closed)

	for _, cb := range callbacks {
		cb(from, to, reason)
	}
	return true
}

// OnStateChanged registers a callback invoked synchronously after every
// transition. Returns an unregister function.
func (c *Call) OnStateChanged(fn func(old, new State, reason Reason)) (unregister func()) {
	id := c.callbackSeq.Add(1)
	c.mu.Lock()
	c.stateChangeCallbacks[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.stateChangeCallbacks, id)
		c.mu.Unlock()
	}
}

// OnDtmfReceived registers a callback for inbound DTMF tones reported by the
// plugin while this call is active.
func (c *Call) OnDtmfReceived(fn func(tone string)) (unregister func()) {
	id := c.callbackSeq.Add(1)
	c.mu.Lock()
	c.dtmfCallbacks[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.dtmfCallbacks, id)
		c.mu.Unlock()
	}
}

// EmitDtmfReceived forwards an inbound tone to registered listeners.
func (c *Call) EmitDtmfReceived(tone string) {
	c.mu.RLock()
	callbacks := make([]func(tone string), 0, len(c.dtmfCallbacks))
	for _, cb := range c.dtmfCallbacks {
		callbacks = append(callbacks, cb)
	}
	c.mu.RUnlock()
	for _, cb := range callbacks {
		cb(tone)
	}
}

// WaitForStateChange blocks until the next transition or ctx is done.
func (c *Call) WaitForStateChange(ctx context.Context) error {
	c.stateChangedMu.Lock()
	ch := c.stateChanged
	c.stateChangedMu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
