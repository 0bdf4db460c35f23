// Package mcu implements IR register configuration (this file) and
// the MCU bring-up state machine (bringup.go). Register encoding is
// grounded on original_source/pyjoycon/ir.py's IRRegistersJoyCon.write
// and on spec.md §3's register table, which the named-tuple source
// class does not fully agree with (see DESIGN.md); the batching and
// dispatch style (switch over which optional field is set, fixed
// visitation order, no field-name lookup) follows the teacher's
// ecus/k701.go ParseDIDBytes.
package mcu

import (
	"ircam/config"
	"ircam/confirm"
	"ircam/errs"
	"ircam/report"
)

// maxTriplesPerGroup is the largest number of register triples one
// "set MCU registers" subcommand carries.
const maxTriplesPerGroup = 9

var commitTriple = Triple{Page: 0x00, Register: 0x07, Value: 0x01}

// Triple is one (page, register, value) write.
type Triple struct {
	Page, Register, Value byte
}

// Registers is a snapshot of IR camera configuration. Every field is
// optional; an unset (nil) field contributes nothing to Serialize.
// Field order here is the order Serialize visits them in, and is
// fixed — no runtime field-name lookup is needed or performed.
type Registers struct {
	Resolution              *config.Resolution
	ExposureMicroseconds    *int // 0-600
	MaxExposure             *bool
	LEDMask                 *byte
	DigitalGain             *uint16 // 12 bits
	ExternalLightFilter     *bool
	BrightnessThreshold     *byte
	Leds12Intensity         *byte
	Leds34Intensity         *byte
	Flip                    *byte
	Denoise                 *bool
	SmoothingThreshold      *byte
	InterpolationThreshold  *byte
	UpdateTime              *byte
	PointingThreshold       *byte
}

func boolByte(b bool, ifTrue, ifFalse byte) byte {
	if b {
		return ifTrue
	}
	return ifFalse
}

// EncodeExposure maps microseconds (0-600) to the 16-bit register
// value per spec.md §3: (31200*us + 500) / 1000.
func EncodeExposure(microseconds int) uint16 {
	return uint16((31200*microseconds + 500) / 1000)
}

// Serialize produces the ordered list of (page, register, value)
// triples for every set field. Every field contributes exactly one
// triple except ExposureMicroseconds and DigitalGain, which each
// contribute two.
func (r *Registers) Serialize() ([]Triple, error) {
	var out []Triple

	if r.Resolution != nil {
		b, err := config.ResolutionByte(*r.Resolution)
		if err != nil {
			return nil, err
		}
		out = append(out, Triple{0x00, 0x2e, b})
	}
	if r.ExposureMicroseconds != nil {
		e := EncodeExposure(*r.ExposureMicroseconds)
		out = append(out, Triple{0x01, 0x30, byte(e & 0xFF)})
		out = append(out, Triple{0x01, 0x31, byte((e >> 8) & 0xFF)})
	}
	if r.MaxExposure != nil {
		out = append(out, Triple{0x01, 0x32, boolByte(*r.MaxExposure, 1, 0)})
	}
	if r.LEDMask != nil {
		out = append(out, Triple{0x00, 0x10, *r.LEDMask})
	}
	if r.DigitalGain != nil {
		gain := *r.DigitalGain
		low := byte(gain & 0xF)
		mid := byte((gain >> 4) & 0xF)
		high := byte((gain >> 8) & 0xF)
		out = append(out, Triple{0x01, 0x2e, low << 4})
		out = append(out, Triple{0x01, 0x2f, (mid << 4) | high})
	}
	if r.ExternalLightFilter != nil {
		out = append(out, Triple{0x00, 0x0e, boolByte(*r.ExternalLightFilter, 3, 0)})
	}
	if r.BrightnessThreshold != nil {
		out = append(out, Triple{0x01, 0x43, *r.BrightnessThreshold})
	}
	if r.Leds12Intensity != nil {
		out = append(out, Triple{0x00, 0x11, *r.Leds12Intensity})
	}
	if r.Leds34Intensity != nil {
		out = append(out, Triple{0x00, 0x12, *r.Leds34Intensity})
	}
	if r.Flip != nil {
		out = append(out, Triple{0x00, 0x2d, *r.Flip})
	}
	if r.Denoise != nil {
		out = append(out, Triple{0x01, 0x67, boolByte(*r.Denoise, 1, 0)})
	}
	if r.SmoothingThreshold != nil {
		out = append(out, Triple{0x01, 0x68, *r.SmoothingThreshold})
	}
	if r.InterpolationThreshold != nil {
		out = append(out, Triple{0x01, 0x69, *r.InterpolationThreshold})
	}
	if r.UpdateTime != nil {
		out = append(out, Triple{0x00, 0x04, *r.UpdateTime})
	} else if r.Resolution != nil {
		var synthesized byte = 0x32
		if *r.Resolution == config.Res40 {
			synthesized = 0x2D
		}
		out = append(out, Triple{0x00, 0x04, synthesized})
	}
	if r.PointingThreshold != nil {
		out = append(out, Triple{0x01, 0x21, *r.PointingThreshold})
	}

	return out, nil
}

// Flush sends every triple from Serialize in groups of at most
// maxTriplesPerGroup, always ending with the commit triple
// (0x00, 0x07, 0x01). If the final group has room (<= 8 entries) the
// commit rides along in it; if the final (or only) group is exactly
// full, the commit is sent as its own trailing group.
func (r *Registers) Flush(c *confirm.Confirmer) error {
	triples, err := r.Serialize()
	if err != nil {
		return err
	}
	return flushTriples(c, triples)
}

func flushTriples(c *confirm.Confirmer, triples []Triple) error {
	for len(triples) > 0 {
		if len(triples) < maxTriplesPerGroup {
			if err := sendGroup(c, append(append([]Triple{}, triples...), commitTriple)); err != nil {
				return err
			}
			return nil
		}
		if err := sendGroup(c, triples[:maxTriplesPerGroup]); err != nil {
			return err
		}
		triples = triples[maxTriplesPerGroup:]
		if len(triples) == 0 {
			return sendGroup(c, []Triple{commitTriple})
		}
	}
	// triples was empty to begin with: still must commit.
	return sendGroup(c, []Triple{commitTriple})
}

// ReadPage reads back up to 0x7F bytes of raw register storage from
// the given page via the "get MCU registers" command (11 03 | 03 01
// page 00 7F), grounded on spec.md §4.5. The reply is confirmed by
// report[49]=0x1B, report[51]=page, report[52]=0, and the payload is
// report[53] bytes starting at report[54].
func ReadPage(c *confirm.Confirmer, page byte) ([]byte, error) {
	arg := []byte{0x03, 0x01, page, 0x00, 0x7F}
	in, err := c.Send(0x11, 0x03, arg, irRequestCRC, []confirm.Pair{
		{0, 0x31}, {49, 0x1B}, {51, page}, {52, 0x00},
	})
	if err != nil {
		return nil, &errs.RegisterReadBackError{Page: page, Cause: err}
	}
	count := int(in[52]) + int(in[53])
	if len(in) < 54+count {
		return nil, &errs.RegisterReadBackError{Page: page, Cause: errShortReadBack}
	}
	return in[54 : 54+count], nil
}

var errShortReadBack = shortReadBackError{}

type shortReadBackError struct{}

func (shortReadBackError) Error() string { return "reply shorter than the echoed byte count" }

// at reads byte i out of a page buffer, treating a short or absent
// buffer as all zero (an un-written register reads back as zero).
func at(page []byte, i int) byte {
	if i < len(page) {
		return page[i]
	}
	return 0
}

// Decode reverses the §3 encodings against two raw page buffers, as
// returned by ReadPage for page 0 and page 1, reconstructing every
// field Serialize knows how to write. Register address doubles as
// byte offset within its page, so decoding is a direct index rather
// than a triple search. Every returned field is non-nil; a register
// Serialize never wrote still reads back as whatever the page buffer
// held there (zero for an unread buffer).
func Decode(page0, page1 []byte) *Registers {
	r := &Registers{}

	resolution := resolutionFromByte(at(page0, 0x2e))
	r.Resolution = &resolution

	exposure := int((1000*(uint32(at(page1, 0x30))|uint32(at(page1, 0x31))<<8) + 15600) / 31200)
	r.ExposureMicroseconds = &exposure

	maxExposure := at(page1, 0x32) == 1
	r.MaxExposure = &maxExposure

	ledMask := at(page0, 0x10)
	r.LEDMask = &ledMask

	low := at(page1, 0x2e) >> 4
	mid := at(page1, 0x2f) >> 4
	high := at(page1, 0x2f) & 0x0F
	gain := uint16(low) | uint16(mid)<<4 | uint16(high)<<8
	r.DigitalGain = &gain

	filter := at(page0, 0x0e) == 3
	r.ExternalLightFilter = &filter

	brightness := at(page1, 0x43)
	r.BrightnessThreshold = &brightness

	leds12 := at(page0, 0x11)
	r.Leds12Intensity = &leds12

	leds34 := at(page0, 0x12)
	r.Leds34Intensity = &leds34

	flip := at(page0, 0x2d)
	r.Flip = &flip

	denoise := at(page1, 0x67) == 1
	r.Denoise = &denoise

	smoothing := at(page1, 0x68)
	r.SmoothingThreshold = &smoothing

	interpolation := at(page1, 0x69)
	r.InterpolationThreshold = &interpolation

	updateTime := at(page0, 0x04)
	r.UpdateTime = &updateTime

	pointingThreshold := at(page1, 0x21)
	r.PointingThreshold = &pointingThreshold

	return r
}

func resolutionFromByte(b byte) config.Resolution {
	switch b {
	case 0x50:
		return config.Res160
	case 0x64:
		return config.Res80
	case 0x69:
		return config.Res40
	default:
		return config.Res320
	}
}

// sendGroup issues one "set MCU registers" subcommand for up to 9
// triples: argument layout 23 04 N | (page,reg,value)xN | zero-padding.
// Register writes carry no confirmation contract (spec's S7 row: "—");
// the device is expected to apply them without an acknowledgement.
func sendGroup(c *confirm.Confirmer, triples []Triple) error {
	if len(triples) > maxTriplesPerGroup {
		return &errs.InvalidArgumentError{Msg: "too many register triples in one group"}
	}
	arg := make([]byte, 0, 3+maxTriplesPerGroup*3)
	arg = append(arg, 0x23, 0x04, byte(len(triples)))
	for _, t := range triples {
		arg = append(arg, t.Page, t.Register, t.Value)
	}
	for i := len(triples); i < maxTriplesPerGroup; i++ {
		arg = append(arg, 0x00, 0x00, 0x00)
	}
	_, err := c.Send(0x01, 0x21, arg, report.CRC{Location: 48, Start: 12, Length: 36}, nil)
	return err
}
