package adminhttp

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modemvoiced/modemvoiced/internal/voice/authz"
	"github.com/modemvoiced/modemvoiced/internal/voice/call"
	"github.com/modemvoiced/modemvoiced/internal/voice/modemstate"
	"github.com/modemvoiced/modemvoiced/internal/voice/plugin"
	"github.com/modemvoiced/modemvoiced/internal/voice/registry"
)

type noopBus struct{}

func (noopBus) CallAdded(string)                                        {}
func (noopBus) CallDeleted(string)                                      {}
func (noopBus) StateChanged(string, call.State, call.State, call.Reason) {}
func (noopBus) DtmfReceived(string, string)                             {}
func (noopBus) EmergencyOnlyChanged(bool)                               {}

func newTestController(t *testing.T) *registry.Controller {
	t.Helper()
	p := &plugin.Plugin{
		CheckVoiceSupport: func(ctx context.Context) (bool, error) { return true, nil },
		CreateCall: func(ctx context.Context, d call.Direction, number string) (plugin.CallHandle, error) {
			return plugin.CallHandle{
				Start: func(ctx context.Context) error { return nil },
			}, nil
		},
	}
	cfg := registry.Config{
		IncomingCallValidity:    time.Minute,
		PluginOpTimeout:         time.Second,
		ReconcilePeriod:         time.Minute,
		DefaultDtmfToneDuration: time.Millisecond,
	}
	return registry.New(p, authz.AllowAll{}, modemstate.Static{RegisteredValue: true}, noopBus{}, cfg)
}

func TestHandleHealthz(t *testing.T) {
	ctrl := newTestController(t)
	defer ctrl.Close()
	s := New("", ctrl)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	s.handleHealthz(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleStatus_ReflectsCreatedCall(t *testing.T) {
	ctrl := newTestController(t)
	defer ctrl.Close()
	s := New("", ctrl)

	id, err := ctrl.CreateCall(context.Background(), "c", plugin.CallProperties{Number: "5551234"})
	if err != nil {
		t.Fatalf("CreateCall: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/status", nil)
	s.handleStatus(rec, req)

	var resp statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Calls) != 1 {
		t.Fatalf("Calls = %v, want 1 entry", resp.Calls)
	}
	if resp.Calls[0].ID != id {
		t.Fatalf("Calls[0].ID = %q, want %q", resp.Calls[0].ID, id)
	}
	if resp.Calls[0].Number != "5551234" {
		t.Fatalf("Calls[0].Number = %q, want 5551234", resp.Calls[0].Number)
	}
}
