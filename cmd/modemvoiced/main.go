// Command modemvoiced is the voice call subsystem daemon: it loads a modem
// plugin, exports the Voice interface and per-call objects on the D-Bus
// system bus, and runs the in-call resource manager and call-list
// reconciler for as long as the process lives.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sync/errgroup"

	"github.com/modemvoiced/modemvoiced/internal/adminhttp"
	"github.com/modemvoiced/modemvoiced/internal/config"
	"github.com/modemvoiced/modemvoiced/internal/dbusexport"
	"github.com/modemvoiced/modemvoiced/internal/logger"
	"github.com/modemvoiced/modemvoiced/internal/voice/authz"
	"github.com/modemvoiced/modemvoiced/internal/voice/call"
	"github.com/modemvoiced/modemvoiced/internal/voice/modemstate"
	"github.com/modemvoiced/modemvoiced/internal/voice/multiparty"
	"github.com/modemvoiced/modemvoiced/internal/voice/plugin/atvoice"
	"github.com/modemvoiced/modemvoiced/internal/voice/registry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "modemvoiced:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, os.Stderr)

	p, err := atvoice.New(atvoice.Config{Device: cfg.ModemDevice})
	if err != nil {
		return fmt.Errorf("open modem plugin: %w", err)
	}

	modemSrc := modemstate.Static{RegisteredValue: true, SIMPresentValue: true}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connect system bus: %w", err)
	}
	defer conn.Close()

	reply, err := conn.RequestName(cfg.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name %s: %w", cfg.BusName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already owned", cfg.BusName)
	}

	logger.Info("modemvoiced starting", "bus_name", cfg.BusName, "device", cfg.ModemDevice)

	var ctrl *registry.Controller
	bus := &lazyBus{}
	ctrl = registry.New(p, authz.AllowAll{}, modemSrc, bus, registry.Config{
		IncomingCallValidity:    cfg.IncomingCallValidity,
		PluginOpTimeout:         cfg.PluginOpTimeout,
		ReconcilePeriod:         cfg.ReconcilePeriod,
		DefaultDtmfToneDuration: cfg.DefaultDtmfToneDuration,
		ExtraEmergencyNumbers:   cfg.EmergencyNumbers,
	})
	defer ctrl.Close()

	mp := multiparty.New(ctrl.CallListForMultiparty(), p, cfg.PluginOpTimeout)

	srv, err := dbusexport.New(conn, ctrl, mp)
	if err != nil {
		return fmt.Errorf("export voice interface: %w", err)
	}
	bus.set(srv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// g supervises the signal wait alongside the optional admin HTTP
	// server: whichever exits first (a caught signal, or a listener
	// failure) cancels ctx and the other shuts down cleanly.
	g, gctx := errgroup.WithContext(ctx)

	var adminSrv *adminhttp.Server
	if cfg.AdminAddr != "" {
		adminSrv = adminhttp.New(cfg.AdminAddr, ctrl)
		g.Go(func() error {
			if err := adminSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("modemvoiced shutting down")
		if adminSrv != nil {
			_ = adminSrv.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Warn("modemvoiced exiting on error", "error", err)
	}
	return nil
}

// lazyBus forwards registry.Bus calls to the dbusexport.Server once it
// exists. The controller is constructed before the export layer (it needs
// to pass its own Bus at construction time) but the export layer needs the
// already-constructed controller, so this breaks the cycle.
type lazyBus struct {
	target registry.Bus
}

func (b *lazyBus) set(s registry.Bus) { b.target = s }

func (b *lazyBus) CallAdded(id string) {
	if b.target != nil {
		b.target.CallAdded(id)
	}
}

func (b *lazyBus) CallDeleted(id string) {
	if b.target != nil {
		b.target.CallDeleted(id)
	}
}

func (b *lazyBus) StateChanged(id string, old, new_ call.State, reason call.Reason) {
	if b.target != nil {
		b.target.StateChanged(id, old, new_, reason)
	}
}

func (b *lazyBus) DtmfReceived(id string, tone string) {
	if b.target != nil {
		b.target.DtmfReceived(id, tone)
	}
}

func (b *lazyBus) EmergencyOnlyChanged(emergencyOnly bool) {
	if b.target != nil {
		b.target.EmergencyOnlyChanged(emergencyOnly)
	}
}
