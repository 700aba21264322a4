package dbusexport

import (
	"context"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"

	"github.com/modemvoiced/modemvoiced/internal/voice/registry"
	"github.com/modemvoiced/modemvoiced/internal/voice/verrors"
)

// callObject is the per-call org.freedesktop.ModemManager1.Call export.
type callObject struct {
	srv   *Server
	mc    *registry.ManagedCall
	props *prop.Properties
}

func newCallObject(srv *Server, mc *registry.ManagedCall) *callObject {
	c := &callObject{srv: srv, mc: mc}
	c.props = prop.New(srv.conn, srv.pathFor(mc.ID()), map[string]map[string]*prop.Prop{
		callIface: {
			"State":     {Value: int32(mc.State()), Writable: false, Emit: prop.EmitTrue},
			"Direction": {Value: int32(mc.Direction()), Writable: false, Emit: prop.EmitFalse},
			"Number":    {Value: mc.Number(), Writable: false, Emit: prop.EmitFalse},
			"Multiparty": {Value: mc.Multiparty(), Writable: false, Emit: prop.EmitTrue},
		},
	})
	return c
}

func (c *callObject) Start(sender dbus.Sender) *dbus.Error {
	return toDBusError(c.srv.ctrl.StartCall(context.Background(), c.mc.ID()))
}

func (c *callObject) Accept(sender dbus.Sender) *dbus.Error {
	return toDBusError(c.srv.ctrl.AcceptCall(context.Background(), c.mc.ID()))
}

func (c *callObject) Deflect(number string, sender dbus.Sender) *dbus.Error {
	return toDBusError(c.srv.ctrl.DeflectCall(context.Background(), c.mc.ID(), number))
}

func (c *callObject) Hangup(sender dbus.Sender) *dbus.Error {
	return toDBusError(c.srv.ctrl.HangupCall(context.Background(), c.mc.ID()))
}

func (c *callObject) SendDtmf(tones string, sender dbus.Sender) *dbus.Error {
	return toDBusError(c.srv.ctrl.SendDtmfCall(context.Background(), c.mc.ID(), tones))
}

func (c *callObject) Leave(sender dbus.Sender) *dbus.Error {
	if c.srv.multiparty == nil {
		return toDBusError(verrors.New(verrors.ErrUnsupported, "multiparty"))
	}
	return toDBusError(c.srv.multiparty.Leave(context.Background(), c.mc.ID()))
}
