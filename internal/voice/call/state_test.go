package call

import "testing"

func TestCanTransition_LegalEdges(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateUnknown, StateDialling, true},
		{StateUnknown, StateRingingIn, true},
		{StateUnknown, StateWaiting, true},
		{StateUnknown, StateActive, false},
		{StateDialling, StateRingingOut, true},
		{StateDialling, StateActive, true},
		{StateDialling, StateHeld, false},
		{StateRingingOut, StateActive, true},
		{StateRingingOut, StateHeld, false},
		{StateRingingIn, StateActive, true},
		{StateWaiting, StateActive, true},
		{StateActive, StateHeld, true},
		{StateHeld, StateActive, true},
		{StateActive, StateDialling, false},
		{StateTerminated, StateActive, false},
		{StateTerminated, StateUnknown, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	if !StateTerminated.IsTerminal() {
		t.Error("terminated must be terminal")
	}
	for _, s := range []State{StateUnknown, StateDialling, StateRingingOut, StateRingingIn, StateWaiting, StateActive, StateHeld} {
		if s.IsTerminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestState_InCallSet(t *testing.T) {
	want := map[State]bool{
		StateDialling:   true,
		StateRingingOut: true,
		StateHeld:       true,
		StateActive:     true,
	}
	for s := StateUnknown; s <= StateTerminated; s++ {
		if got := s.InCallSet(); got != want[s] {
			t.Errorf("%s.InCallSet() = %v, want %v", s, got, want[s])
		}
	}
}

func TestState_Establishing(t *testing.T) {
	want := map[State]bool{
		StateDialling:   true,
		StateRingingOut: true,
		StateRingingIn:  true,
		StateHeld:       true,
		StateWaiting:    true,
	}
	for s := StateUnknown; s <= StateTerminated; s++ {
		if got := s.Establishing(); got != want[s] {
			t.Errorf("%s.Establishing() = %v, want %v", s, got, want[s])
		}
	}
}
