// Package dbusexport exports the Voice Interface Controller on the system
// bus as org.freedesktop.ModemManager1.Modem.Voice plus one
// org.freedesktop.ModemManager1.Call object per managed call, matching the
// real ModemManager object model and naming (see
// github.com/mdlayher/modemmanager for the client-side counterpart this
// mirrors).
package dbusexport

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/modemvoiced/modemvoiced/internal/voice/call"
	"github.com/modemvoiced/modemvoiced/internal/voice/multiparty"
	"github.com/modemvoiced/modemvoiced/internal/voice/plugin"
	"github.com/modemvoiced/modemvoiced/internal/voice/registry"
	"github.com/modemvoiced/modemvoiced/internal/voice/verrors"
)

const (
	voiceIface = "org.freedesktop.ModemManager1.Modem.Voice"
	callIface  = "org.freedesktop.ModemManager1.Call"
	modemPath  = dbus.ObjectPath("/org/freedesktop/ModemManager1/Modem/0")
	callPrefix = "/org/freedesktop/ModemManager1/Call/"
)

// errName maps a verrors category to a D-Bus error name.
func errName(category string) string {
	return "org.freedesktop.ModemManager1.Error.Voice." + category
}

func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	cat := verrors.Category(err)
	return dbus.NewError(errName(cat), []interface{}{err.Error()})
}

// Server exports the voice subsystem on conn and relays controller events
// to signal emission, implementing registry.Bus.
type Server struct {
	conn       *dbus.Conn
	ctrl       *registry.Controller
	multiparty *multiparty.Coordinator
	props      *prop.Properties

	mu       sync.Mutex
	callObjs map[string]*callObject
}

// New creates a Server and exports the Voice interface object. Per-call
// objects are not exported here: controller events (CallAdded/CallDeleted)
// export and unexport them as calls are added and removed.
func New(conn *dbus.Conn, ctrl *registry.Controller, mp *multiparty.Coordinator) (*Server, error) {
	s := &Server{conn: conn, ctrl: ctrl, multiparty: mp, callObjs: make(map[string]*callObject)}

	if err := conn.Export((*voiceObject)(s), modemPath, voiceIface); err != nil {
		return nil, fmt.Errorf("dbusexport: export voice interface: %w", err)
	}
	node := &introspect.Node{
		Name: string(modemPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name: voiceIface,
				Methods: []introspect.Method{
					{Name: "ListCalls", Args: []introspect.Arg{{Name: "calls", Type: "ao", Direction: "out"}}},
					{Name: "CreateCall", Args: []introspect.Arg{
						{Name: "properties", Type: "a{sv}", Direction: "in"},
						{Name: "path", Type: "o", Direction: "out"},
					}},
					{Name: "DeleteCall", Args: []introspect.Arg{{Name: "path", Type: "o", Direction: "in"}}},
					{Name: "HoldAndAccept"},
					{Name: "HangupAndAccept"},
					{Name: "HangupAll"},
					{Name: "HangupAllIncludingHeld"},
					{Name: "Transfer"},
					{Name: "CallWaitingSetup", Args: []introspect.Arg{{Name: "enable", Type: "b", Direction: "in"}}},
					{Name: "CallWaitingQuery", Args: []introspect.Arg{{Name: "enabled", Type: "b", Direction: "out"}}},
				},
				Signals: []introspect.Signal{
					{Name: "CallAdded", Args: []introspect.Arg{{Name: "path", Type: "o"}}},
					{Name: "CallDeleted", Args: []introspect.Arg{{Name: "path", Type: "o"}}},
				},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), modemPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("dbusexport: export introspection: %w", err)
	}

	props := prop.New(conn, modemPath, map[string]map[string]*prop.Prop{
		voiceIface: {
			"Calls":         {Value: []dbus.ObjectPath{}, Writable: false, Emit: prop.EmitTrue},
			"EmergencyOnly": {Value: ctrl.EmergencyOnly(), Writable: false, Emit: prop.EmitTrue},
		},
	})
	s.props = props
	return s, nil
}

type voiceObject Server

// CallAdded implements registry.Bus: exports the new call object and emits
// the CallAdded signal.
func (s *Server) CallAdded(id string) {
	mc, ok := s.ctrl.Lookup(id)
	if !ok {
		return
	}
	path := s.pathFor(id)
	obj := newCallObject(s, mc)

	s.mu.Lock()
	s.callObjs[id] = obj
	s.mu.Unlock()

	if err := s.conn.Export(obj, path, callIface); err != nil {
		slog.Warn("dbusexport: export call object failed", "call", id, "error", err)
		return
	}
	s.refreshCallsProperty()
	_ = s.conn.Emit(modemPath, voiceIface+".CallAdded", path)
}

// CallDeleted implements registry.Bus: unexports the call object and emits
// the CallDeleted signal.
func (s *Server) CallDeleted(id string) {
	path := s.pathFor(id)
	s.mu.Lock()
	delete(s.callObjs, id)
	s.mu.Unlock()

	_ = s.conn.Export(nil, path, callIface)
	s.refreshCallsProperty()
	_ = s.conn.Emit(modemPath, voiceIface+".CallDeleted", path)
}

// StateChanged implements registry.Bus: updates the per-call State property
// and emits the Call interface's StateChanged signal.
func (s *Server) StateChanged(id string, old, new_ call.State, reason call.Reason) {
	path := s.pathFor(id)
	if err := s.conn.Emit(path, callIface+".StateChanged", int32(old), int32(new_), int32(reason)); err != nil {
		slog.Warn("dbusexport: emit StateChanged failed", "call", id, "error", err)
	}
	s.mu.Lock()
	obj, ok := s.callObjs[id]
	s.mu.Unlock()
	if ok && obj.props != nil {
		_ = obj.props.Set(callIface, "State", dbus.MakeVariant(int32(new_)))
	}
}

// DtmfReceived implements registry.Bus: emits DtmfReceived on the call path.
func (s *Server) DtmfReceived(id string, tone string) {
	path := s.pathFor(id)
	_ = s.conn.Emit(path, callIface+".DtmfReceived", tone)
}

// EmergencyOnlyChanged implements registry.Bus: updates the EmergencyOnly
// property on the modem path.
func (s *Server) EmergencyOnlyChanged(emergencyOnly bool) {
	if s.props != nil {
		_ = s.props.Set(voiceIface, "EmergencyOnly", dbus.MakeVariant(emergencyOnly))
	}
}

func (s *Server) pathFor(id string) dbus.ObjectPath {
	return dbus.ObjectPath(callPrefix + sanitize(id))
}

func sanitize(id string) string {
	out := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			out[i] = c
		} else {
			out[i] = '_'
		}
	}
	return string(out)
}

func (s *Server) refreshCallsProperty() {
	if s.props == nil {
		return
	}
	s.mu.Lock()
	paths := make([]dbus.ObjectPath, 0, len(s.callObjs))
	for id := range s.callObjs {
		paths = append(paths, s.pathFor(id))
	}
	s.mu.Unlock()
	_ = s.props.Set(voiceIface, "Calls", dbus.MakeVariant(paths))
}

// ---- Voice interface methods (exported via (*voiceObject)) ----

func (v *voiceObject) s() *Server { return (*Server)(v) }

func (v *voiceObject) ListCalls() ([]dbus.ObjectPath, *dbus.Error) {
	s := v.s()
	ids := s.ctrl.ListCalls()
	out := make([]dbus.ObjectPath, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.pathFor(id))
	}
	return out, nil
}

func (v *voiceObject) CreateCall(properties map[string]dbus.Variant, sender dbus.Sender) (dbus.ObjectPath, *dbus.Error) {
	s := v.s()
	props, err := parseCreateCallProperties(properties)
	if err != nil {
		return "", toDBusError(err)
	}
	id, err := s.ctrl.CreateCall(context.Background(), string(sender), props)
	if err != nil {
		return "", toDBusError(err)
	}
	return s.pathFor(id), nil
}

func (v *voiceObject) DeleteCall(path dbus.ObjectPath, sender dbus.Sender) *dbus.Error {
	s := v.s()
	id := s.idFromPath(path)
	return toDBusError(s.ctrl.DeleteCall(context.Background(), string(sender), id))
}

func (v *voiceObject) HoldAndAccept(sender dbus.Sender) *dbus.Error {
	s := v.s()
	return toDBusError(s.ctrl.HoldAndAccept(context.Background(), string(sender)))
}

func (v *voiceObject) HangupAndAccept(sender dbus.Sender) *dbus.Error {
	s := v.s()
	return toDBusError(s.ctrl.HangupAndAccept(context.Background(), string(sender)))
}

func (v *voiceObject) HangupAll(sender dbus.Sender) *dbus.Error {
	s := v.s()
	return toDBusError(s.ctrl.HangupAll(context.Background(), string(sender)))
}

func (v *voiceObject) HangupAllIncludingHeld(sender dbus.Sender) *dbus.Error {
	s := v.s()
	return toDBusError(s.ctrl.HangupAllIncludingHeld(context.Background(), string(sender)))
}

func (v *voiceObject) Transfer(sender dbus.Sender) *dbus.Error {
	s := v.s()
	return toDBusError(s.ctrl.Transfer(context.Background(), string(sender)))
}

func (v *voiceObject) CallWaitingSetup(enable bool, sender dbus.Sender) *dbus.Error {
	s := v.s()
	return toDBusError(s.ctrl.CallWaitingSetup(context.Background(), string(sender), enable))
}

func (v *voiceObject) CallWaitingQuery(sender dbus.Sender) (bool, *dbus.Error) {
	s := v.s()
	enabled, err := s.ctrl.CallWaitingQuery(context.Background(), string(sender))
	if err != nil {
		return false, toDBusError(err)
	}
	return enabled, nil
}

func (v *voiceObject) JoinMultiparty(sender dbus.Sender) *dbus.Error {
	s := v.s()
	if s.multiparty == nil {
		return toDBusError(verrors.New(verrors.ErrUnsupported, "multiparty"))
	}
	return toDBusError(s.multiparty.Join(context.Background()))
}

func (s *Server) idFromPath(path dbus.ObjectPath) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.callObjs {
		if s.pathFor(id) == path {
			return id
		}
	}
	return ""
}

func parseCreateCallProperties(m map[string]dbus.Variant) (plugin.CallProperties, error) {
	var props plugin.CallProperties
	for key, v := range m {
		switch key {
		case "number":
			if s, ok := v.Value().(string); ok {
				props.Number = s
			}
		case "dtmf-tone-duration":
			switch val := v.Value().(type) {
			case int32:
				props.DtmfToneDurationMs = int(val)
			case uint32:
				props.DtmfToneDurationMs = int(val)
			case string:
				if n, err := strconv.Atoi(val); err == nil {
					props.DtmfToneDurationMs = n
				}
			}
		default:
			return plugin.CallProperties{}, verrors.New(verrors.ErrInvalidArgs, fmt.Sprintf("unrecognised property %q", key))
		}
	}
	return props, nil
}
