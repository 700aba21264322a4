package atvoice

import (
	"testing"

	"github.com/modemvoiced/modemvoiced/internal/voice/call"
)

func TestClccState(t *testing.T) {
	cases := map[int]call.State{
		0: call.StateActive,
		1: call.StateHeld,
		2: call.StateDialling,
		3: call.StateRingingOut,
		4: call.StateRingingIn,
		5: call.StateWaiting,
		9: call.StateUnknown,
	}
	for stat, want := range cases {
		if got := clccState(stat); got != want {
			t.Errorf("clccState(%d) = %s, want %s", stat, got, want)
		}
	}
}

func TestParseCLCCLine_WithNumber(t *testing.T) {
	info, ok := parseCLCCLine(`+CLCC: 1,0,2,0,0,"5551234",129`)
	if !ok {
		t.Fatal("expected line to parse")
	}
	if info.Index != 1 {
		t.Errorf("Index = %d, want 1", info.Index)
	}
	if info.Direction != call.DirectionOutgoing {
		t.Errorf("Direction = %s, want outgoing", info.Direction)
	}
	if info.State != call.StateDialling {
		t.Errorf("State = %s, want dialling", info.State)
	}
	if info.Number != "5551234" {
		t.Errorf("Number = %q, want 5551234", info.Number)
	}
}

func TestParseCLCCLine_IncomingNoNumber(t *testing.T) {
	info, ok := parseCLCCLine("+CLCC: 1,1,4,0,0")
	if !ok {
		t.Fatal("expected line to parse")
	}
	if info.Direction != call.DirectionIncoming {
		t.Errorf("Direction = %s, want incoming", info.Direction)
	}
	if info.State != call.StateRingingIn {
		t.Errorf("State = %s, want ringing_in", info.State)
	}
	if info.Number != "" {
		t.Errorf("Number = %q, want empty", info.Number)
	}
}

func TestParseCLCCLine_Malformed(t *testing.T) {
	if _, ok := parseCLCCLine("+CLCC: garbage"); ok {
		t.Fatal("expected malformed line to be rejected")
	}
	if _, ok := parseCLCCLine("+CLCC: 1,0"); ok {
		t.Fatal("expected short line to be rejected")
	}
}
