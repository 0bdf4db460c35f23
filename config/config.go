// Package config holds the driver-wide enums and constants: vendor/
// product identification, IR mode and resolution tables, and the
// Options bundle a caller passes to controller.New. Mirrors the
// teacher's config package in spirit (a home for shared constants
// next to the CLI flag surface) but scoped to this driver's domain
// instead of dashboard streams.
package config

import "ircam/errs"

// VendorID is the only vendor ID this driver recognizes.
const VendorID uint16 = 0x057e

// Right- and left-hand-unit product IDs this driver recognizes. The left-hand
// unit's asymmetric layout is out of scope beyond identification.
const (
	ProductIDRight uint16 = 0x2007
	ProductIDLeft  uint16 = 0x2006
)

// IRMode selects one of the three camera operating modes.
type IRMode uint8

const (
	IRPointing   IRMode = 4
	IRClustering IRMode = 6
	IRImage      IRMode = 7
)

func (m IRMode) Valid() bool {
	switch m {
	case IRPointing, IRClustering, IRImage:
		return true
	}
	return false
}

// Resolution selects the IMAGE-mode line count.
type Resolution int

const (
	Res320 Resolution = 320
	Res160 Resolution = 160
	Res80  Resolution = 80
	Res40  Resolution = 40
)

// ResolutionByte encodes a Resolution to the byte written at page 0,
// register 0x2e.
func ResolutionByte(r Resolution) (byte, error) {
	switch r {
	case Res320:
		return 0x00, nil
	case Res160:
		return 0x50, nil
	case Res80:
		return 0x64, nil
	case Res40:
		return 0x69, nil
	default:
		return 0, &errs.InvalidArgumentError{Msg: "unsupported IR resolution"}
	}
}

// FragmentCount returns the highest valid fragment index for mode at
// resolution: 1 for the single-fragment modes, and the resolution-
// dependent count for IMAGE.
func FragmentCount(mode IRMode, res Resolution) (byte, error) {
	if mode != IRImage {
		return 1, nil
	}
	switch res {
	case Res320:
		return 0xFF, nil
	case Res160:
		return 0x3F, nil
	case Res80:
		return 0x0F, nil
	case Res40:
		return 0x03, nil
	default:
		return 0, &errs.InvalidArgumentError{Msg: "unsupported IR resolution"}
	}
}

// ValidateDeviceID reports an InvalidArgumentError unless vendorID is
// VendorID and productID is one of the recognized right- or left-hand
// unit product IDs. The left-hand unit is recognized only for
// identification, per spec's Non-goals on its asymmetric layout.
func ValidateDeviceID(vendorID, productID uint16) error {
	if vendorID != VendorID {
		return &errs.InvalidArgumentError{Msg: "unrecognized vendor id"}
	}
	switch productID {
	case ProductIDRight, ProductIDLeft:
		return nil
	default:
		return &errs.InvalidArgumentError{Msg: "unrecognized product id"}
	}
}

// Options bundles everything a caller supplies to controller.New.
type Options struct {
	VendorID  uint16
	ProductID uint16
	Serial    string // optional; empty opens the first matching device

	// IRMode is nil when IR streaming isn't wanted; bring-up is then
	// skipped entirely and no reader goroutine is started.
	IRMode *IRMode

	// Resolution only matters for IRImage; it is ignored otherwise.
	// The zero value is treated as Res320.
	Resolution Resolution
}
