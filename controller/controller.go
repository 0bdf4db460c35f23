// Package controller assembles the transport, calibration, bring-up,
// and IR pipeline pieces into the single handle callers construct and
// hold for the device's lifetime. Grounded on the teacher's
// drivers/arduino.go shape: a constructor that opens the underlying
// handle and a Run step that launches the reader as a detached
// background goroutine, adapted from one dedicated background
// goroutine per call into the blocking-construction model the spec
// requires (bring-up must finish before New returns).
package controller

import (
	"log"

	"ircam/config"
	"ircam/confirm"
	"ircam/ir"
	"ircam/mcu"
	"ircam/spi"
	"ircam/transport"
)

// Controller owns one HID device for its lifetime: the transport
// handle, the shared packet-number counter, and (if IR mode was
// requested) the running reader pipeline and the calibration read out
// of flash at construction.
type Controller struct {
	device    transport.Device
	confirmer *confirm.Confirmer
	pipeline  *ir.Pipeline

	ColorCalibration *spi.ColorCalibration
	IMUCalibration   *spi.IMUCalibration
}

// New opens the device, reads calibration, and — if opts.IRMode is
// set — runs bring-up (flushing registers, if non-nil, after both S7
// and S9) and launches the reader goroutine before returning. Any
// failure during this sequence leaves no background goroutine
// running.
func New(opts config.Options, registers *mcu.Registers) (*Controller, error) {
	if err := config.ValidateDeviceID(opts.VendorID, opts.ProductID); err != nil {
		return nil, err
	}
	dev, err := transport.Open(opts.VendorID, opts.ProductID, opts.Serial)
	if err != nil {
		return nil, err
	}
	c, err := newFromDevice(dev, opts, registers)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return c, nil
}

// newFromDevice builds a Controller around an already-open device.
// Split out from New so tests can substitute a scripted
// transport.Device in place of a real HID handle.
func newFromDevice(dev transport.Device, opts config.Options, registers *mcu.Registers) (*Controller, error) {
	c := &Controller{
		device:    dev,
		confirmer: confirm.New(dev),
	}

	if err := c.readCalibration(); err != nil {
		return nil, err
	}

	if opts.IRMode != nil {
		if err := c.bringUpIR(*opts.IRMode, opts.Resolution, registers); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Controller) readCalibration() error {
	color, err := spi.ReadColorCalibration(c.confirmer)
	if err != nil {
		return err
	}
	c.ColorCalibration = color

	imu, err := spi.ReadIMUCalibration(c.confirmer)
	if err != nil {
		return err
	}
	c.IMUCalibration = imu
	return nil
}

func (c *Controller) bringUpIR(mode config.IRMode, resolution config.Resolution, registers *mcu.Registers) error {
	if resolution == 0 {
		resolution = config.Res320
	}
	fragCount, err := config.FragmentCount(mode, resolution)
	if err != nil {
		return err
	}

	bringup := &mcu.Bringup{
		Confirmer:  c.confirmer,
		Mode:       mode,
		Resolution: resolution,
		Registers:  registers,
	}
	if err := bringup.Run(); err != nil {
		return err
	}

	c.pipeline = ir.New(c.device, c.confirmer.Counter, mode, fragCount)
	go func() {
		if err := c.pipeline.Run(); err != nil {
			log.Printf("controller: reader exited: %v", err)
		}
	}()
	return nil
}

// LatestImage returns the most recently completed IMAGE assembly, if
// IR mode is IMAGE and at least one cycle has completed.
func (c *Controller) LatestImage() ([]byte, bool) {
	if c.pipeline == nil {
		return nil, false
	}
	return c.pipeline.LatestImage()
}

// LatestClusters returns the most recently parsed cluster set, if IR
// mode is POINTING or CLUSTERING.
func (c *Controller) LatestClusters() ([]ir.ClusterDescriptor, bool) {
	if c.pipeline == nil {
		return nil, false
	}
	return c.pipeline.LatestClusters()
}

// RegisterUpdateHook registers fn to run, on the reader goroutine,
// after every dispatched report. fn receives the controller so it can
// read the latest state; it must not block.
func (c *Controller) RegisterUpdateHook(fn func(*Controller)) {
	if c.pipeline == nil {
		return
	}
	c.pipeline.RegisterUpdateHook(func() { fn(c) })
}

// Close releases the HID handle, causing the reader goroutine (if
// any) to observe errs.TransportClosedError and exit.
func (c *Controller) Close() error {
	return c.device.Close()
}
