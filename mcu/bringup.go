package mcu

import (
	"time"

	"ircam/config"
	"ircam/confirm"
	"ircam/errs"
	"ircam/report"
)

// modeSetCRC is the CRC window for "01 21" envelopes (mode-set,
// IR-mode-configure): offset 48 over [12, 48).
var modeSetCRC = report.CRC{Location: 48, Start: 12, Length: 36}

// irRequestCRC is the CRC window for "11 03" envelopes: offset 47
// over [11, 47).
var irRequestCRC = report.CRC{Location: 47, Start: 11, Length: 36}

// maxArmAttempts bounds S8: up to this many request-IR-report cycles
// before giving up with DeviceTimeout.
const maxArmAttempts = 500

// Bringup drives the device from ordinary input-reporting mode into
// one of the three IR modes, per the fixed S0-S9 subcommand sequence.
// Grounded on the teacher's cmd/dumper/dumper.go doSecurityHandshake,
// which drives a comparable fixed multi-step handshake over the same
// Confirmer-style send/poll primitive.
type Bringup struct {
	Confirmer  *confirm.Confirmer
	Mode       config.IRMode
	Resolution config.Resolution
	Registers  *Registers

	// Sleep defaults to time.Sleep; tests override it to avoid
	// real delays.
	Sleep func(time.Duration)
}

func (b *Bringup) sleep(d time.Duration) {
	if b.Sleep != nil {
		b.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Run executes S0 through S9 in order, returning the first error
// encountered. On success the device is streaming IR data in b.Mode.
func (b *Bringup) Run() error {
	if !b.Mode.Valid() {
		return &errs.InvalidArgumentError{Msg: "unsupported IR mode"}
	}

	// S0: enable 6-axis, fire-and-wait.
	if _, err := b.Confirmer.Send(0x01, 0x40, []byte{0x01}, report.CRC{}, nil); err != nil {
		return err
	}
	b.sleep(20 * time.Millisecond)

	// S1: select report type 0x31.
	if _, err := b.Confirmer.Send(0x01, 0x03, []byte{0x31}, report.CRC{},
		[]confirm.Pair{{0, 0x21}, {0xD, 0x80}, {0xE, 0x03}}); err != nil {
		return err
	}

	// S2: enable MCU.
	if _, err := b.Confirmer.Send(0x01, 0x22, []byte{0x01}, report.CRC{},
		[]confirm.Pair{{0, 0x21}, {0xD, 0x80}, {0xE, 0x22}}); err != nil {
		return err
	}

	// S3: poll MCU status, expect ready (56 == 0x01).
	if _, err := b.Confirmer.Send(0x11, 0x01, nil, report.CRC{},
		[]confirm.Pair{{0, 0x31}, {49, 0x01}, {56, 0x01}}); err != nil {
		return err
	}

	// S4: set MCU mode = IR.
	if _, err := b.Confirmer.Send(0x01, 0x21, []byte{0x01, 0x00, 0x05}, modeSetCRC,
		[]confirm.Pair{{0, 0x21}, {15, 0x01}, {22, 0x01}}); err != nil {
		return err
	}

	// S5: poll MCU status again, expect IR-armed (56 == 0x05).
	if _, err := b.Confirmer.Send(0x11, 0x01, nil, report.CRC{},
		[]confirm.Pair{{0, 0x31}, {49, 0x01}, {56, 0x05}}); err != nil {
		return err
	}

	// S6: configure IR mode and resolution-dependent fragment count.
	fragCount, err := config.FragmentCount(b.Mode, b.Resolution)
	if err != nil {
		return err
	}
	arg := []byte{0x23, 0x01, byte(b.Mode), fragCount, 0x00, 0x05, 0x00, 0x18}
	if _, err := b.Confirmer.Send(0x01, 0x21, arg, modeSetCRC,
		[]confirm.Pair{{0, 0x21}, {15, 0x0B}}); err != nil {
		return err
	}

	// S7: write IR registers.
	if b.Registers != nil {
		if err := b.Registers.Flush(b.Confirmer); err != nil {
			return err
		}
	}

	// S8: arm the stream.
	if err := b.arm(); err != nil {
		return err
	}

	// S9: some writes are lost before the stream is armed; flush again.
	if b.Registers != nil {
		if err := b.Registers.Flush(b.Confirmer); err != nil {
			return err
		}
	}

	return nil
}

// arm repeatedly issues request-IR-report(ack=0) until an input
// report shows data flowing in b.Mode, or maxArmAttempts is exhausted.
func (b *Bringup) arm() error {
	for attempt := 0; attempt < maxArmAttempts; attempt++ {
		if _, err := b.Confirmer.Send(0x11, 0x03, irRequestArgument(0), irRequestCRC, nil); err != nil {
			return err
		}
		in, err := b.Confirmer.Device.Read()
		if err != nil {
			return err
		}
		if haveIRData(in, b.Mode) {
			return nil
		}
	}
	return &errs.DeviceTimeoutError{Step: "S8 arm stream"}
}

// irRequestArgument builds the "11 03" request-IR-report argument:
// three reserved zero bytes, the acknowledge fragment index, 33 more
// zero bytes, and a trailing 0xFF.
func irRequestArgument(ack byte) []byte {
	arg := make([]byte, 38)
	arg[3] = ack
	arg[37] = 0xFF
	return arg
}

// haveIRData reports whether an inbound report is a type-0x31 input
// report carrying IR data for mode.
func haveIRData(in []byte, mode config.IRMode) bool {
	return len(in) > 51 && in[0] == 0x31 && in[49] == 0x03 && in[51] == byte(mode)
}
