// Package transport owns the HID device handle: opening it by
// (vendor, product, serial), writing fixed-size outbound reports, and
// blocking-reading inbound ones. Grounded on the teacher's
// drivers/arduino.go (open-by-ID, single owned handle, Close on
// teardown), adapted from a serial port to an HID device via
// github.com/sstallion/go-hid, the library other_examples' XREAL-light
// driver uses for the same "host drives an HID-attached MCU" shape.
package transport

import (
	"sync"

	hid "github.com/sstallion/go-hid"

	"ircam/errs"
)

// InputReportSize is the fixed length of every inbound HID report.
const InputReportSize = 360

// Device is the byte-pipe primitive the rest of the driver consumes:
// write one outbound report, blocking-read one inbound report, close.
// Confirmer, McuBringup, and IrPipeline all depend on this interface
// rather than *HidTransport so tests can substitute a scripted mock
// transport (see confirm/confirm_test.go, mcu/bringup_test.go,
// ir/pipeline_test.go).
type Device interface {
	Write(data []byte) error
	Read() ([]byte, error)
	Close() error
}

// HidTransport owns one HID device handle for the lifetime of a
// Controller. Write and Read are safe to call from different
// goroutines (bring-up and the reader never overlap in practice, but
// Close can race either).
type HidTransport struct {
	mu     sync.RWMutex
	device *hid.Device
	closed bool
}

// Open opens the HID device by vendor/product/serial. An empty serial
// opens the first matching device.
func Open(vendorID, productID uint16, serial string) (*HidTransport, error) {
	var (
		device *hid.Device
		err    error
	)
	if serial == "" {
		device, err = hid.OpenFirst(vendorID, productID)
	} else {
		device, err = hid.Open(vendorID, productID, serial)
	}
	if err != nil {
		return nil, &errs.DeviceOpenFailedError{VendorID: vendorID, ProductID: productID, Cause: err}
	}
	return &HidTransport{device: device}, nil
}

// Write sends one report, which must already be exactly report.Size
// bytes (the caller, report.Build, guarantees this).
func (t *HidTransport) Write(data []byte) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return &errs.TransportClosedError{}
	}
	_, err := t.device.Write(data)
	if err != nil {
		return err
	}
	return nil
}

// Read blocks for exactly one inbound report, up to InputReportSize
// bytes long.
func (t *HidTransport) Read() ([]byte, error) {
	t.mu.RLock()
	closed := t.closed
	device := t.device
	t.mu.RUnlock()
	if closed {
		return nil, &errs.TransportClosedError{}
	}
	buf := make([]byte, InputReportSize)
	n, err := device.Read(buf)
	if err != nil {
		t.mu.RLock()
		closed = t.closed
		t.mu.RUnlock()
		if closed {
			return nil, &errs.TransportClosedError{}
		}
		return nil, err
	}
	return buf[:n], nil
}

// Close releases the HID handle; calling it again is a no-op. It waits
// for an in-flight Write to finish. A Read blocked in the device, and
// any later Read/Write, observes errs.TransportClosedError.
func (t *HidTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.device.Close()
}

var _ Device = (*HidTransport)(nil)
