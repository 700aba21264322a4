package atvoice

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/modemvoiced/modemvoiced/internal/voice/call"
	"github.com/modemvoiced/modemvoiced/internal/voice/plugin"
)

// New opens the serial device and returns a fully populated plugin.Plugin
// backed by it. DtmfAcceptLen is 1: AT+VTS accepts one tone per command.
func New(cfg Config) (*plugin.Plugin, error) {
	c, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	d := &driver{client: c}

	return &plugin.Plugin{
		CheckVoiceSupport: d.checkVoiceSupport,
		LoadCallList:      d.loadCallList,
		CreateCall:        d.createCall,

		HoldAndAccept:    d.holdAndAccept,
		HangupAndAccept:  d.hangupAndAccept,
		HangupAll:        d.hangupAll,
		Transfer:         d.transfer,
		JoinMultiparty:   d.joinMultiparty,
		LeaveMultiparty:  d.leaveMultiparty,
		CallWaitingSetup: d.callWaitingSetup,
		CallWaitingQuery: d.callWaitingQuery,

		SetupInCallUnsolicitedEvents:   d.setupURCs,
		CleanupInCallUnsolicitedEvents: d.cleanupURCs,
		SetupInCallAudioChannel:        d.setupAudio,
		CleanupInCallAudioChannel:      d.cleanupAudio,

		DtmfAcceptLen: 1,
	}, nil
}

// driver holds the AT command transport and translates voice capability
// calls into AT command strings.
type driver struct {
	client *atClient
}

func (d *driver) checkVoiceSupport(ctx context.Context) (bool, error) {
	_, err := d.client.send("AT+CLCC=?", 0)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// clccState maps a +CLCC status code to a call.State per 3GPP TS 27.007.
func clccState(stat int) call.State {
	switch stat {
	case 0:
		return call.StateActive
	case 1:
		return call.StateHeld
	case 2:
		return call.StateDialling
	case 3:
		return call.StateRingingOut
	case 4:
		return call.StateRingingIn
	case 5:
		return call.StateWaiting
	default:
		return call.StateUnknown
	}
}

// parseCLCCLine parses one "+CLCC: <id>,<dir>,<stat>,<mode>,<mpty>[,<number>,<type>]" line.
func parseCLCCLine(line string) (plugin.CallInfo, bool) {
	line = strings.TrimSpace(strings.TrimPrefix(line, "+CLCC:"))
	fields := strings.Split(line, ",")
	if len(fields) < 5 {
		return plugin.CallInfo{}, false
	}
	idx, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return plugin.CallInfo{}, false
	}
	dir, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return plugin.CallInfo{}, false
	}
	stat, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return plugin.CallInfo{}, false
	}

	direction := call.DirectionOutgoing
	if dir == 1 {
		direction = call.DirectionIncoming
	}

	info := plugin.CallInfo{
		Index:     idx,
		Direction: direction,
		State:     clccState(stat),
	}
	if len(fields) >= 6 {
		number := strings.Trim(strings.TrimSpace(fields[5]), `"`)
		info.Number = number
	}
	return info, true
}

func (d *driver) loadCallList(ctx context.Context) ([]plugin.CallInfo, error) {
	lines, err := d.client.send("AT+CLCC", 0)
	if err != nil {
		return nil, err
	}
	var infos []plugin.CallInfo
	for _, line := range lines {
		if !strings.HasPrefix(line, "+CLCC") {
			continue
		}
		if info, ok := parseCLCCLine(line); ok {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

func (d *driver) createCall(ctx context.Context, direction call.Direction, number string) (plugin.CallHandle, error) {
	return plugin.CallHandle{
		Start: func(ctx context.Context) error {
			_, err := d.client.send("ATD"+number+";", 0)
			return err
		},
		Accept: func(ctx context.Context) error {
			_, err := d.client.send("ATA", 0)
			return err
		},
		Deflect: func(ctx context.Context, target string) error {
			// 3GPP TS 27.007 +CTFR (call deflection), carrier-dependent.
			_, err := d.client.send(fmt.Sprintf("AT+CTFR=%q", target), 0)
			return err
		},
		Hangup: func(ctx context.Context) error {
			_, err := d.client.send("AT+CHUP", 0)
			return err
		},
		SendDtmf: func(ctx context.Context, tones string) (int, error) {
			if tones == "" {
				return 0, nil
			}
			tone := tones[:1]
			if _, err := d.client.send(fmt.Sprintf("AT+VTS=%s", tone), 0); err != nil {
				return 0, err
			}
			return 1, nil
		},
		// StopDtmf left nil: this modem self-terminates AT+VTS tones after
		// its own internal duration.
	}, nil
}

func (d *driver) holdAndAccept(ctx context.Context) error {
	_, err := d.client.send("AT+CHLD=2", 0)
	return err
}

func (d *driver) hangupAndAccept(ctx context.Context) error {
	_, err := d.client.send("AT+CHLD=1", 0)
	return err
}

func (d *driver) hangupAll(ctx context.Context) error {
	_, err := d.client.send("ATH", 0)
	return err
}

func (d *driver) transfer(ctx context.Context) error {
	_, err := d.client.send("AT+CHLD=4", 0)
	return err
}

func (d *driver) joinMultiparty(ctx context.Context) error {
	_, err := d.client.send("AT+CHLD=3", 0)
	return err
}

func (d *driver) leaveMultiparty(ctx context.Context, callIndex int) error {
	_, err := d.client.send(fmt.Sprintf("AT+CHLD=2%d", callIndex), 0)
	return err
}

func (d *driver) callWaitingSetup(ctx context.Context, enable bool) error {
	v := 0
	if enable {
		v = 1
	}
	_, err := d.client.send(fmt.Sprintf("AT+CCWA=1,%d", v), 0)
	return err
}

func (d *driver) callWaitingQuery(ctx context.Context) (bool, error) {
	lines, err := d.client.send("AT+CCWA=1,2", 0)
	if err != nil {
		return false, err
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "+CCWA:") {
			fields := strings.Split(strings.TrimPrefix(line, "+CCWA:"), ",")
			if len(fields) >= 1 {
				return strings.TrimSpace(fields[0]) == "1", nil
			}
		}
	}
	return false, nil
}

func (d *driver) setupURCs(ctx context.Context) error {
	if _, err := d.client.send("AT+CLIP=1", 0); err != nil {
		return err
	}
	_, err := d.client.send("AT+CRC=1", 0)
	return err
}

func (d *driver) cleanupURCs(ctx context.Context) error {
	if _, err := d.client.send("AT+CLIP=0", 0); err != nil {
		return err
	}
	_, err := d.client.send("AT+CRC=0", 0)
	return err
}

func (d *driver) setupAudio(ctx context.Context) (string, call.AudioFormat, error) {
	// AT modems route voice audio out of band (a codec/PCM interface the
	// platform owns); the plugin only identifies the endpoint.
	return d.client.cfg.Device + "#audio", call.AudioFormat{
		Encoding:   "pcm_s16le",
		Resolution: "16",
		Rate:       8000,
	}, nil
}

func (d *driver) cleanupAudio(ctx context.Context) error { return nil }

// Close releases the underlying serial port.
func (d *driver) Close() error { return d.client.close() }
