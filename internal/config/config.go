// Package config loads daemon configuration from command line flags and
// environment variables.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the modemvoiced daemon configuration.
type Config struct {
	// BusName is the well-known D-Bus name to request on the system bus.
	BusName string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// ModemDevice is the path to the plugin's underlying device (e.g. a
	// serial port for the reference AT plugin).
	ModemDevice string

	// ReconcilePeriod is T_POLL, the call-list reconciler period.
	ReconcilePeriod time.Duration
	// PluginOpTimeout bounds every plugin capability invocation.
	PluginOpTimeout time.Duration
	// IncomingCallValidity is the validity window for ringing_in calls
	// that are never refreshed by the modem.
	IncomingCallValidity time.Duration
	// DefaultDtmfToneDuration is used when a call does not override it.
	DefaultDtmfToneDuration time.Duration

	// AdminAddr is the bind address for the read-only admin HTTP surface.
	// Empty disables it.
	AdminAddr string

	// EmergencyNumbers supplements the always-valid emergency set.
	EmergencyNumbers []string
}

// Load parses flags then applies environment variable overrides, mirroring
// the flag-then-env precedence the rest of this daemon's ambient stack uses.
func Load() *Config {
	cfg := &Config{
		ReconcilePeriod:         2 * time.Second,
		PluginOpTimeout:         2 * time.Minute,
		IncomingCallValidity:    30 * time.Second,
		DefaultDtmfToneDuration: 100 * time.Millisecond,
	}

	flag.StringVar(&cfg.BusName, "bus-name", "org.freedesktop.ModemManager1.Voice", "D-Bus well-known name to request")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&cfg.ModemDevice, "device", "/dev/ttyUSB2", "path to the modem device used by the reference plugin")
	flag.DurationVar(&cfg.ReconcilePeriod, "reconcile-period", cfg.ReconcilePeriod, "call-list reconciler poll period")
	flag.DurationVar(&cfg.PluginOpTimeout, "plugin-timeout", cfg.PluginOpTimeout, "timeout for a single plugin capability invocation")
	flag.DurationVar(&cfg.IncomingCallValidity, "incoming-validity", cfg.IncomingCallValidity, "validity window for an unrefreshed ringing_in call")
	flag.DurationVar(&cfg.DefaultDtmfToneDuration, "dtmf-tone-duration", cfg.DefaultDtmfToneDuration, "default DTMF tone duration")
	flag.StringVar(&cfg.AdminAddr, "admin-addr", "", "bind address for the read-only admin HTTP surface (empty disables it)")

	var emergencyNumbers string
	flag.StringVar(&emergencyNumbers, "emergency-numbers", "", "comma-separated extra emergency numbers, in addition to the built-in set")

	flag.Parse()

	cfg.EmergencyNumbers = parseList(emergencyNumbers)

	if v := os.Getenv("MODEMVOICED_BUS_NAME"); v != "" {
		cfg.BusName = v
	}
	if v := os.Getenv("MODEMVOICED_LOGLEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MODEMVOICED_DEVICE"); v != "" {
		cfg.ModemDevice = v
	}
	if v := os.Getenv("MODEMVOICED_RECONCILE_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReconcilePeriod = d
		}
	}
	if v := os.Getenv("MODEMVOICED_PLUGIN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PluginOpTimeout = d
		}
	}
	if v := os.Getenv("MODEMVOICED_INCOMING_VALIDITY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.IncomingCallValidity = d
		}
	}
	if v := os.Getenv("MODEMVOICED_ADMIN_ADDR"); v != "" {
		cfg.AdminAddr = v
	}
	if v := os.Getenv("MODEMVOICED_EMERGENCY_NUMBERS"); v != "" {
		cfg.EmergencyNumbers = parseList(v)
	}

	return cfg
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AtoiOrDefault parses s, after trimming surrounding whitespace, as a
// decimal integer and returns def when it does not parse. It fits the
// dtmf-tone-duration CreateCall property, a bare integer string of
// milliseconds rather than a Go duration literal; the dbusexport property
// parser does not call it and uses strconv.Atoi directly.
func AtoiOrDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
