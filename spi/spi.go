// Package spi implements SPI flash reads through the MCU's
// subcommand 0x10, used at construction time to pull factory/user
// calibration out of the controller's flash. Grounded on
// original_source/pyjoycon/joycon.py's _spi_flash_read, kept in its
// own package the way the teacher splits protocol concerns (crc8,
// report, confirm) into single-purpose packages rather than one
// monolithic driver file.
package spi

import (
	"encoding/binary"

	"ircam/confirm"
	"ircam/errs"
	"ircam/report"
)

// MaxReadSize is the largest single SPI read this command supports.
const MaxReadSize = 0x1D

// Well-known calibration addresses.
const (
	ColorCalibrationAddress uint32 = 0x6050
	ColorCalibrationSize           = 6

	imuCalibrationFactoryAddress uint32 = 0x6020
	imuCalibrationUserAddress    uint32 = 0x8026
	imuCalibrationUserTagAddress uint32 = 0x8028
	imuCalibrationSize                  = 24
)

// Read performs one SPI flash read of size bytes at addr, returning
// the payload. size must not exceed MaxReadSize.
func Read(c *confirm.Confirmer, addr uint32, size byte) ([]byte, error) {
	if size > MaxReadSize {
		return nil, &errs.InvalidArgumentError{Msg: "spi read size exceeds 0x1D"}
	}

	arg := make([]byte, 5)
	binary.LittleEndian.PutUint32(arg[:4], addr)
	arg[4] = size

	in, err := c.Send(0x01, 0x10, arg, report.CRC{}, []confirm.Pair{
		{0, 0x21},
		{15, 0x90},
		{16, 0x10},
		{17, arg[0]}, {18, arg[1]}, {19, arg[2]}, {20, arg[3]},
		{21, size},
	})
	if err != nil {
		return nil, &errs.SpiReadFailedError{Address: addr, Cause: err}
	}
	if len(in) < 22+int(size) {
		return nil, &errs.SpiReadFailedError{Address: addr, Cause: errShortReply}
	}
	return in[22 : 22+int(size)], nil
}

var errShortReply = shortReplyError{}

type shortReplyError struct{}

func (shortReplyError) Error() string { return "spi reply shorter than the echoed payload size" }

// ColorCalibration is the factory/user body-color calibration read
// from ColorCalibrationAddress.
type ColorCalibration struct {
	Body, Buttons [3]byte
}

// ReadColorCalibration reads and decodes the 6-byte color tuple.
func ReadColorCalibration(c *confirm.Confirmer) (*ColorCalibration, error) {
	data, err := Read(c, ColorCalibrationAddress, ColorCalibrationSize)
	if err != nil {
		return nil, err
	}
	return &ColorCalibration{
		Body:    [3]byte{data[0], data[1], data[2]},
		Buttons: [3]byte{data[3], data[4], data[5]},
	}, nil
}

// IMUCalibration is the 24-byte accelerometer/gyroscope calibration
// block, from whichever of the factory or user regions is valid.
type IMUCalibration struct {
	Raw [imuCalibrationSize]byte
}

// ReadIMUCalibration follows the factory/user selection rule: read
// the two tag bytes at imuCalibrationUserTagAddress; if they read
// B2 A1, the user region at imuCalibrationUserAddress is calibrated
// and used, otherwise fall back to the factory region.
func ReadIMUCalibration(c *confirm.Confirmer) (*IMUCalibration, error) {
	tag, err := Read(c, imuCalibrationUserTagAddress, 2)
	if err != nil {
		return nil, err
	}

	addr := imuCalibrationFactoryAddress
	if len(tag) == 2 && tag[0] == 0xB2 && tag[1] == 0xA1 {
		addr = imuCalibrationUserAddress
	}

	data, err := Read(c, addr, imuCalibrationSize)
	if err != nil {
		return nil, err
	}
	var cal IMUCalibration
	copy(cal.Raw[:], data)
	return &cal, nil
}
