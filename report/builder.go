// Package report assembles outbound 49-byte HID command reports:
// command byte, rotating packet number, the mandatory rumble
// placeholder, subcommand, argument, and an optional CRC8 trailer.
// The layout mirrors the inbound frame the teacher's arduino.go reads
// (magic/header/payload/crc), just built instead of parsed.
package report

import (
	"sync"

	"ircam/crc8"
)

// Size is the fixed length of every outbound HID command report.
const Size = 49

// rumblePlaceholder is the mandatory 8-byte rumble field. The device
// ignores its contents for this driver but expects it present.
var rumblePlaceholder = [8]byte{0x00, 0x01, 0x40, 0x40, 0x00, 0x01, 0x40, 0x40}

// CRC describes where and over what range to compute and place a
// CRC8 trailer. A zero value (Length == 0) means no CRC is added.
type CRC struct {
	Location int
	Start    int
	Length   int
}

// Build assembles one Size-byte report:
//
//	command(1) | packetNumber(1) | rumble(8) | subcommand(1) | argument(N)
//
// padded or truncated to Size. If crc.Length > 0, the buffer is first
// zero-padded up to crc.Location, the CRC8 over
// [crc.Start, crc.Start+crc.Length) is written at crc.Location, and
// zero-padding continues to Size.
func Build(command, subcommand byte, argument []byte, packetNumber byte, crc CRC) []byte {
	data := make([]byte, 0, Size)
	data = append(data, command, packetNumber)
	data = append(data, rumblePlaceholder[:]...)
	data = append(data, subcommand)
	data = append(data, argument...)

	if crc.Length > 0 {
		if len(data) < crc.Location {
			data = append(data, make([]byte, crc.Location-len(data))...)
		}
		sum := crc8.Sum(data, crc.Start, crc.Length)
		if crc.Location < len(data) {
			data[crc.Location] = sum
		} else {
			data = append(data, sum)
		}
	}

	switch {
	case len(data) > Size:
		data = data[:Size]
	case len(data) < Size:
		data = append(data, make([]byte, Size-len(data))...)
	}
	return data
}

// PacketCounter is the single owner of the modulo-16 packet number
// placed at byte 1 of every outbound report. One Controller shares
// exactly one counter across bring-up, the Confirmer, and the IR
// reader's fragment-acknowledge writes, so the sequence never skips
// or repeats regardless of which of those issues the next write.
type PacketCounter struct {
	mu sync.Mutex
	n  byte
}

// Next returns the current packet number and advances it modulo 16.
func (p *PacketCounter) Next() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.n
	p.n = (p.n + 1) & 0x0F
	return n
}
