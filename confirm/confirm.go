// Package confirm implements the send-and-confirm loop every
// subcommand in this driver goes through: write a report, then poll
// inbound reports until a caller-supplied set of (offset, expected)
// byte pairs matches, or retries are exhausted. Grounded on the
// teacher's cmd/dumper/dumper.go security handshake (sendAndReceive,
// byte-position response checks, bounded retry with resend) adapted
// from UDS/ISO-TP request-response framing to the controller's HID
// subcommand/confirm shape.
package confirm

import (
	"ircam/errs"
	"ircam/report"
	"ircam/transport"
)

// DefaultRetries is R in spec terms: the bound on both the outer
// resend loop and the inner poll loop.
const DefaultRetries = 16

// Pair is one (offset, expected byte) constraint an inbound report
// must satisfy to count as the awaited confirmation. A Pair with
// Offset == 0 identifies the report's "family" (its type byte); a
// family match with any other Pair mismatching ends the inner poll
// early and triggers a resend rather than continuing to poll.
type Pair struct {
	Offset   int
	Expected byte
}

// Confirmer owns the shared outbound packet-number counter and drives
// every write through this transport.
type Confirmer struct {
	Device  transport.Device
	Counter *report.PacketCounter
	Retries int // 0 means DefaultRetries
}

// New builds a Confirmer with its own fresh packet-number counter.
func New(device transport.Device) *Confirmer {
	return &Confirmer{Device: device, Counter: &report.PacketCounter{}}
}

func (c *Confirmer) retries() int {
	if c.Retries > 0 {
		return c.Retries
	}
	return DefaultRetries
}

// Send builds and writes one report (command/subcommand/argument,
// with an optional CRC trailer), then, if confirm is non-nil, polls
// inbound reports for a match. With confirm == nil the first write
// succeeds unconditionally and Send returns (nil, nil).
//
// On success with confirm set, Send returns the matching inbound
// report. After Retries outer attempts with no match, it returns
// errs.ProtocolConfirmError.
func (c *Confirmer) Send(command, subcommand byte, argument []byte, crc report.CRC, confirm []Pair) ([]byte, error) {
	retries := c.retries()
	for attempt := 0; attempt < retries; attempt++ {
		pn := c.Counter.Next()
		data := report.Build(command, subcommand, argument, pn, crc)
		if err := c.Device.Write(data); err != nil {
			return nil, err
		}
		if confirm == nil {
			return nil, nil
		}

		in, resend, err := c.poll(confirm, retries)
		if err != nil {
			return nil, err
		}
		if in != nil {
			return in, nil
		}
		_ = resend // either a right-family mismatch or exhausted polling: resend either way
	}
	return nil, &errs.ProtocolConfirmError{Subcommand: subcommand}
}

// poll reads up to retries inbound reports looking for a match. It
// returns early (resend=true) the moment a right-family report
// mismatches on some other field, rather than continuing to poll
// through the remaining budget.
func (c *Confirmer) poll(confirm []Pair, retries int) (matched []byte, resend bool, err error) {
	remaining := retries
	for remaining > 0 {
		in, readErr := c.Device.Read()
		if readErr != nil {
			return nil, false, readErr
		}
		ok, rightFamily := matchConfirm(in, confirm)
		if ok {
			return in, false, nil
		}
		if rightFamily {
			return nil, true, nil
		}
		remaining--
	}
	return nil, false, nil
}

// matchConfirm reports whether in satisfies every pair, and whether
// the offset-0 ("family") pair matched regardless of overall success.
func matchConfirm(in []byte, confirm []Pair) (ok bool, rightFamily bool) {
	for _, p := range confirm {
		if p.Offset == 0 {
			if len(in) >= 1 && in[0] == p.Expected {
				rightFamily = true
				continue
			}
			return false, rightFamily
		}
		if len(in) <= p.Offset || in[p.Offset] != p.Expected {
			return false, rightFamily
		}
	}
	return true, rightFamily
}
