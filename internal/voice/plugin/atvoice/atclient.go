// Package atvoice is a reference plugin implementation driving a
// line-oriented AT command modem. It exists to make the daemon runnable
// end-to-end and to demonstrate that internal/voice/plugin.Plugin is a
// pluggable capability interface, not a fixed class hierarchy; production
// QMI/MBIM plugins are out of scope.
package atvoice

import (
	"bufio"
	"fmt"
	"strings"
	"sync"
	"time"

	serial "github.com/mfkenney/go-serial/v2"
)

// Config configures the serial transport to the modem.
type Config struct {
	Device           string
	BaudRate         int
	ATCommandTimeout time.Duration
	ReadTimeout      time.Duration
}

// DefaultConfig returns sensible AT modem defaults.
func DefaultConfig() Config {
	return Config{
		BaudRate:         115200,
		ATCommandTimeout: 5 * time.Second,
		ReadTimeout:      1 * time.Second,
	}
}

// atClient is the low-level line-oriented AT command transport. Voice call
// semantics live one layer up in plugin.go; this file only knows how to
// send a command and collect the response lines up to a terminator.
type atClient struct {
	cfg    Config
	port   *serial.Port
	reader *bufio.Reader
	mu     sync.Mutex

	urcHandler func(line string)
}

func dial(cfg Config) (*atClient, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("atvoice: device path is required")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = time.Second
	}
	if cfg.ATCommandTimeout == 0 {
		cfg.ATCommandTimeout = 5 * time.Second
	}

	port, err := serial.Open(cfg.Device,
		serial.WithBaudrate(cfg.BaudRate),
		serial.WithDataBits(8),
		serial.WithParity(serial.NoParity),
		serial.WithStopBits(serial.OneStopBit),
		serial.WithReadTimeout(int(cfg.ReadTimeout.Milliseconds())),
	)
	if err != nil {
		return nil, fmt.Errorf("atvoice: open %s: %w", cfg.Device, err)
	}

	return &atClient{cfg: cfg, port: port, reader: bufio.NewReader(port)}, nil
}

func (c *atClient) close() error {
	if c.port == nil {
		return nil
	}
	return c.port.Close()
}

// send writes cmd terminated by CR and collects lines until OK, ERROR, or a
// +CME/+CMS error, honouring ATCommandTimeout.
func (c *atClient) send(cmd string, timeout time.Duration) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timeout == 0 {
		timeout = c.cfg.ATCommandTimeout
	}

	if _, err := c.port.Write([]byte(cmd + "\r")); err != nil {
		return nil, fmt.Errorf("atvoice: write: %w", err)
	}

	deadline := time.Now().Add(timeout)
	var lines []string
	for time.Now().Before(deadline) {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == cmd {
			continue // echo
		}
		if c.urcHandler != nil && looksLikeURC(cmd, line) {
			c.urcHandler(line)
			continue
		}
		lines = append(lines, line)
		switch {
		case line == "OK":
			return lines, nil
		case line == "ERROR", strings.HasPrefix(line, "+CME ERROR"), strings.HasPrefix(line, "+CMS ERROR"):
			return lines, fmt.Errorf("atvoice: modem error: %s", line)
		}
	}
	return lines, fmt.Errorf("atvoice: timed out waiting for response to %q", cmd)
}

// looksLikeURC is a coarse heuristic: a response line is treated as an
// unsolicited report (rather than part of the current command's response)
// when the command itself isn't the query that would produce that prefix.
func looksLikeURC(cmd, line string) bool {
	if strings.HasPrefix(cmd, "AT+CLCC") {
		return false // +CLCC lines here are the command's own response
	}
	return strings.HasPrefix(line, "+CLCC") || strings.HasPrefix(line, "+CRING") || strings.HasPrefix(line, "RING")
}

func (c *atClient) setURCHandler(fn func(line string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urcHandler = fn
}
