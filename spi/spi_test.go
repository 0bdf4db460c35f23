package spi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ircam/confirm"
)

// recordingEcho is a mock transport.Device that decodes an SPI-read
// argument out of the last write (address/size) and synthesizes the
// matching echo-plus-payload reply on Read, keyed by address so the
// color/IMU selection logic can be tested without real flash.
type recordingEcho struct {
	payloads map[uint32][]byte
	lastArg  []byte
}

func (d *recordingEcho) Write(data []byte) error {
	// argument begins at byte 11: addr(4 LE) + size(1).
	d.lastArg = append([]byte(nil), data[11:16]...)
	return nil
}

func (d *recordingEcho) Read() ([]byte, error) {
	addr := uint32(d.lastArg[0]) | uint32(d.lastArg[1])<<8 | uint32(d.lastArg[2])<<16 | uint32(d.lastArg[3])<<24
	size := d.lastArg[4]

	reply := make([]byte, 360)
	reply[0] = 0x21
	reply[15] = 0x90
	reply[16] = 0x10
	copy(reply[17:21], d.lastArg[:4])
	reply[21] = size

	payload := d.payloads[addr]
	copy(reply[22:22+int(size)], payload)
	return reply, nil
}

func (d *recordingEcho) Close() error { return nil }

func TestReadColorCalibration(t *testing.T) {
	dev := &recordingEcho{payloads: map[uint32][]byte{
		ColorCalibrationAddress: {0x10, 0x20, 0x30, 0x40, 0x50, 0x60},
	}}
	c := confirm.New(dev)

	cal, err := ReadColorCalibration(c)

	require.NoError(t, err)
	assert.Equal(t, [3]byte{0x10, 0x20, 0x30}, cal.Body)
	assert.Equal(t, [3]byte{0x40, 0x50, 0x60}, cal.Buttons)
	// Scenario 6: outbound argument for a 6-byte read at 0x6050.
	require.NotNil(t, dev.lastArg)
	assert.Equal(t, []byte{0x50, 0x60, 0x00, 0x00, 0x06}, dev.lastArg)
}

func TestReadIMUCalibrationPrefersUserRegionWhenTagged(t *testing.T) {
	userData := make([]byte, imuCalibrationSize)
	for i := range userData {
		userData[i] = 0xAA
	}
	dev := &recordingEcho{payloads: map[uint32][]byte{
		imuCalibrationUserTagAddress: {0xB2, 0xA1},
		imuCalibrationUserAddress:    userData,
	}}
	c := confirm.New(dev)

	cal, err := ReadIMUCalibration(c)

	require.NoError(t, err)
	assert.Equal(t, userData, cal.Raw[:])
}

func TestReadIMUCalibrationFallsBackToFactoryRegion(t *testing.T) {
	factoryData := make([]byte, imuCalibrationSize)
	for i := range factoryData {
		factoryData[i] = 0x55
	}
	dev := &recordingEcho{payloads: map[uint32][]byte{
		imuCalibrationUserTagAddress: {0x00, 0x00}, // not the B2 A1 tag
		imuCalibrationFactoryAddress: factoryData,
	}}
	c := confirm.New(dev)

	cal, err := ReadIMUCalibration(c)

	require.NoError(t, err)
	assert.Equal(t, factoryData, cal.Raw[:])
}

func TestReadRejectsOversizedRequest(t *testing.T) {
	dev := &recordingEcho{payloads: map[uint32][]byte{}}
	c := confirm.New(dev)

	_, err := Read(c, 0x1000, MaxReadSize+1)

	require.Error(t, err)
}
