package dtmf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modemvoiced/modemvoiced/internal/voice/call"
	"github.com/modemvoiced/modemvoiced/internal/voice/plugin"
	"github.com/modemvoiced/modemvoiced/internal/voice/verrors"
)

// fakeHandle is a minimal dtmf.Handle for tests.
type fakeHandle struct {
	state    call.State
	busy     bool
	ctx      context.Context
	duration int
}

func (f *fakeHandle) State() call.State         { return f.state }
func (f *fakeHandle) TryBeginDtmf() bool        { if f.busy { return false }; f.busy = true; return true }
func (f *fakeHandle) EndDtmf()                  { f.busy = false }
func (f *fakeHandle) Context() context.Context  { return f.ctx }
func (f *fakeHandle) DtmfToneDurationMs() int   { return f.duration }

func newActiveHandle() *fakeHandle {
	return &fakeHandle{state: call.StateActive, ctx: context.Background()}
}

func TestValidAlphabet(t *testing.T) {
	if !ValidAlphabet("123*#ABCDabcd,456") {
		t.Fatal("expected valid alphabet to be accepted")
	}
	if ValidAlphabet("12x3") {
		t.Fatal("expected invalid character to be rejected")
	}
}

func TestSend_EmptyIsNoop(t *testing.T) {
	h := newActiveHandle()
	err := Send(context.Background(), h, plugin.CallHandle{}, 1, time.Millisecond, "")
	if err != nil {
		t.Fatalf("empty tones should succeed trivially: %v", err)
	}
}

func TestSend_RejectsInvalidAlphabet(t *testing.T) {
	h := newActiveHandle()
	err := Send(context.Background(), h, plugin.CallHandle{}, 1, time.Millisecond, "12X")
	if !errors.Is(err, verrors.ErrInvalidArgs) {
		t.Fatalf("expected invalid_args, got %v", err)
	}
}

func TestSend_RequiresActiveState(t *testing.T) {
	h := &fakeHandle{state: call.StateHeld, ctx: context.Background()}
	err := Send(context.Background(), h, plugin.CallHandle{}, 1, time.Millisecond, "1")
	if !errors.Is(err, verrors.ErrWrongState) {
		t.Fatalf("expected wrong_state, got %v", err)
	}
}

func TestSend_RejectsWhenAlreadyBusy(t *testing.T) {
	h := newActiveHandle()
	h.busy = true
	err := Send(context.Background(), h, plugin.CallHandle{}, 1, time.Millisecond, "1")
	if !errors.Is(err, verrors.ErrInProgress) {
		t.Fatalf("expected in_progress, got %v", err)
	}
}

func TestSend_ChunksToAcceptLen(t *testing.T) {
	h := newActiveHandle()
	var chunks []string
	handle := plugin.CallHandle{
		SendDtmf: func(ctx context.Context, tones string) (int, error) {
			chunks = append(chunks, tones)
			return len(tones), nil
		},
	}
	err := Send(context.Background(), h, handle, 2, time.Millisecond, "12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"12", "34", "5"}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %v, want %v", chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunks = %v, want %v", chunks, want)
		}
	}
}

func TestSend_PausesOnPauseChar(t *testing.T) {
	h := newActiveHandle()
	var sent []string
	handle := plugin.CallHandle{
		SendDtmf: func(ctx context.Context, tones string) (int, error) {
			sent = append(sent, tones)
			return len(tones), nil
		},
	}
	start := time.Now()
	err := Send(context.Background(), h, handle, 1, 20*time.Millisecond, "1,2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("pause did not delay transmission: %v", elapsed)
	}
	if len(sent) != 2 || sent[0] != "1" || sent[1] != "2" {
		t.Fatalf("sent = %v, want [1 2]", sent)
	}
}

func TestSend_PluginFailurePropagates(t *testing.T) {
	h := newActiveHandle()
	handle := plugin.CallHandle{
		SendDtmf: func(ctx context.Context, tones string) (int, error) {
			return 0, errors.New("modem busy")
		},
	}
	err := Send(context.Background(), h, handle, 1, time.Millisecond, "1")
	if !errors.Is(err, verrors.ErrPluginFailure) {
		t.Fatalf("expected plugin_failure, got %v", err)
	}
}

func TestSend_PacesChunksWithoutStopDtmf(t *testing.T) {
	h := newActiveHandle()
	var sent []string
	handle := plugin.CallHandle{
		SendDtmf: func(ctx context.Context, tones string) (int, error) {
			sent = append(sent, tones)
			return len(tones), nil
		},
		// no StopDtmf: the modem self-terminates tones.
	}
	start := time.Now()
	err := Send(context.Background(), h, handle, 1, 20*time.Millisecond, "12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expected the engine to pace each chunk by the tone duration even without stop_dtmf, elapsed %v", elapsed)
	}
	if len(sent) != 2 || sent[0] != "1" || sent[1] != "2" {
		t.Fatalf("sent = %v, want [1 2]", sent)
	}
}

func TestSend_CancellationSkipsStopDtmf(t *testing.T) {
	h := newActiveHandle()
	ctx, cancel := context.WithCancel(context.Background())
	stopCalled := false
	handle := plugin.CallHandle{
		SendDtmf: func(ctx context.Context, tones string) (int, error) {
			cancel() // simulate cancellation arriving right after the tone is accepted
			return len(tones), nil
		},
		StopDtmf: func(ctx context.Context) error {
			stopCalled = true
			return nil
		},
	}
	err := Send(ctx, h, handle, 1, 50*time.Millisecond, "1")
	if !errors.Is(err, verrors.ErrCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
	if stopCalled {
		t.Fatal("stop_dtmf must not be called once cancelled")
	}
}
