// Package registry implements the Voice Interface Controller: the call-list
// registry, its dbus-facing operations, report ingestion, and the
// emergency-only admission rule.
package registry

import (
	"sync"

	"github.com/modemvoiced/modemvoiced/internal/voice/call"
	"github.com/modemvoiced/modemvoiced/internal/voice/plugin"
)

// ManagedCall pairs a Call object with the plugin capability handle used to
// drive its per-call operations. The CallList owns both; nothing else does.
type ManagedCall struct {
	*call.Call
	Handle plugin.CallHandle
}

// CallList is a mapping from call identifier to ManagedCall, per modem.
// Insertion order is preserved for diagnostic dump but carries no semantic
// weight. Added/Deleted events are consumed by the controller to keep the
// dbus Calls property and CallAdded/CallDeleted signals in sync.
type CallList struct {
	mu      sync.RWMutex
	byID    map[string]*ManagedCall
	order   []string
	onAdded []func(*ManagedCall)
	onGone  []func(*ManagedCall)
}

// NewCallList creates an empty call list.
func NewCallList() *CallList {
	return &CallList{byID: make(map[string]*ManagedCall)}
}

// OnAdded registers a listener fired synchronously after Add.
func (l *CallList) OnAdded(fn func(*ManagedCall)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onAdded = append(l.onAdded, fn)
}

// OnDeleted registers a listener fired synchronously after Remove.
func (l *CallList) OnDeleted(fn func(*ManagedCall)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onGone = append(l.onGone, fn)
}

// Add inserts mc and fires added listeners.
func (l *CallList) Add(mc *ManagedCall) {
	l.mu.Lock()
	l.byID[mc.ID()] = mc
	l.order = append(l.order, mc.ID())
	listeners := append([]func(*ManagedCall){}, l.onAdded...)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(mc)
	}
}

// Remove deletes the call with the given id, if present, and fires deleted
// listeners. Returns false if no such call existed.
func (l *CallList) Remove(id string) bool {
	l.mu.Lock()
	mc, ok := l.byID[id]
	if !ok {
		l.mu.Unlock()
		return false
	}
	delete(l.byID, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	listeners := append([]func(*ManagedCall){}, l.onGone...)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(mc)
	}
	return true
}

// Get returns the call with the given id.
func (l *CallList) Get(id string) (*ManagedCall, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	mc, ok := l.byID[id]
	return mc, ok
}

// All returns every call in insertion order.
func (l *CallList) All() []*ManagedCall {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*ManagedCall, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id])
	}
	return out
}

// CountByState returns the number of calls whose state is one of states. Grounded on the original ModemManager call-list's
// count-by-state helper; used to evaluate aggregate preconditions and to
// decide whether the reconciler should keep polling.
func (l *CallList) CountByState(states ...call.State) int {
	want := make(map[call.State]bool, len(states))
	for _, s := range states {
		want[s] = true
	}
	n := 0
	for _, mc := range l.All() {
		if want[mc.State()] {
			n++
		}
	}
	return n
}

// ByState returns every call whose state is one of states.
func (l *CallList) ByState(states ...call.State) []*ManagedCall {
	want := make(map[call.State]bool, len(states))
	for _, s := range states {
		want[s] = true
	}
	var out []*ManagedCall
	for _, mc := range l.All() {
		if want[mc.State()] {
			out = append(out, mc)
		}
	}
	return out
}

// FindByIndex returns the non-terminated call whose index equals idx (idx
// must be non-zero: 0 means unassigned and is never matched by identity).
func (l *CallList) FindByIndex(idx int) (*ManagedCall, bool) {
	if idx == 0 {
		return nil, false
	}
	for _, mc := range l.All() {
		if mc.State().IsTerminal() {
			continue
		}
		if mc.Index() == idx {
			return mc, true
		}
	}
	return nil, false
}
