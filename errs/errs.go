// Package errs holds the driver's typed error taxonomy. Every package
// that can fail in a way the caller needs to distinguish (open vs.
// timeout vs. protocol desync) wraps its cause in one of these rather
// than returning a bare fmt.Errorf, so callers can errors.As on it.
package errs

import "fmt"

// DeviceOpenFailedError is raised when the HID device cannot be opened.
type DeviceOpenFailedError struct {
	VendorID, ProductID uint16
	Cause               error
}

func (e *DeviceOpenFailedError) Error() string {
	return fmt.Sprintf("open device %04x:%04x: %v", e.VendorID, e.ProductID, e.Cause)
}

func (e *DeviceOpenFailedError) Unwrap() error { return e.Cause }

// DeviceTimeoutError is raised when MCU bring-up never observes IR data.
type DeviceTimeoutError struct {
	Step string
}

func (e *DeviceTimeoutError) Error() string {
	return fmt.Sprintf("device timeout during %s", e.Step)
}

// ProtocolConfirmError is raised when the Confirmer exhausts its retries.
type ProtocolConfirmError struct {
	Subcommand byte
}

func (e *ProtocolConfirmError) Error() string {
	return fmt.Sprintf("cannot confirm subcommand %02x", e.Subcommand)
}

// SpiReadFailedError is raised when an SPI flash read NACKs or echoes wrong.
type SpiReadFailedError struct {
	Address uint32
	Cause   error
}

func (e *SpiReadFailedError) Error() string {
	return fmt.Sprintf("spi read @ 0x%06x: %v", e.Address, e.Cause)
}

func (e *SpiReadFailedError) Unwrap() error { return e.Cause }

// InvalidArgumentError is raised for caller-supplied nonsense: bad VID/PID,
// too many register triples in one batch, an unrecognized IR mode.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string { return "invalid argument: " + e.Msg }

// RegisterReadBackError is raised when a register page read-back
// NACKs or replies shorter than the byte count it echoed.
type RegisterReadBackError struct {
	Page  byte
	Cause error
}

func (e *RegisterReadBackError) Error() string {
	return fmt.Sprintf("register read-back page %02x: %v", e.Page, e.Cause)
}

func (e *RegisterReadBackError) Unwrap() error { return e.Cause }

// TransportClosedError is raised by the reader goroutine when the
// underlying HID handle has been torn down; it causes the reader to
// exit silently rather than log a stream of read errors.
type TransportClosedError struct{}

func (e *TransportClosedError) Error() string { return "transport closed" }
