package mcu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ircam/config"
	"ircam/confirm"
)

// groupRecorder is a mock transport.Device that always confirms
// immediately (report type 0x21, offset 14 echoing 0x21) and decodes
// each write back into the triples it carried, so Flush's batching can
// be checked without a real MCU.
type groupRecorder struct {
	groups [][]Triple
}

func (g *groupRecorder) Write(data []byte) error {
	n := int(data[13])
	var triples []Triple
	for i := 0; i < n; i++ {
		off := 14 + i*3
		triples = append(triples, Triple{Page: data[off], Register: data[off+1], Value: data[off+2]})
	}
	g.groups = append(g.groups, triples)
	return nil
}

func (g *groupRecorder) Read() ([]byte, error) {
	reply := make([]byte, 360)
	reply[0] = 0x21
	reply[14] = 0x21
	return reply, nil
}

func (g *groupRecorder) Close() error { return nil }

func makeTriples(n int) []Triple {
	out := make([]Triple, n)
	for i := range out {
		out[i] = Triple{Page: 0x00, Register: byte(i), Value: byte(i * 2)}
	}
	return out
}

func TestEncodeExposure(t *testing.T) {
	cases := map[int]uint16{
		0:   0,
		100: uint16((31200*100 + 500) / 1000),
		200: uint16((31200*200 + 500) / 1000),
		500: uint16((31200*500 + 500) / 1000),
		600: uint16((31200*600 + 500) / 1000),
	}
	for us, want := range cases {
		assert.Equal(t, want, EncodeExposure(us), "exposure=%d", us)
	}
}

func TestFlushExactlyFullGroupCommitsSeparately(t *testing.T) {
	// N == maxTriplesPerGroup: the group is exactly full, so the commit
	// must travel in a second, standalone group.
	rec := &groupRecorder{}
	c := confirm.New(rec)

	require.NoError(t, flushTriples(c, makeTriples(9)))

	require.Len(t, rec.groups, 2)
	assert.Len(t, rec.groups[0], 9)
	assert.Len(t, rec.groups[1], 1)
	assert.Equal(t, commitTriple, rec.groups[1][0])
}

func TestFlushSpillGroupCarriesCommit(t *testing.T) {
	// N == 12: one full group of 9, then a second group of the
	// remaining 3 with room for the commit to ride along.
	rec := &groupRecorder{}
	c := confirm.New(rec)

	require.NoError(t, flushTriples(c, makeTriples(12)))

	require.Len(t, rec.groups, 2)
	assert.Len(t, rec.groups[0], 9)
	assert.Len(t, rec.groups[1], 4) // 3 triples + commit
	assert.Equal(t, commitTriple, rec.groups[1][len(rec.groups[1])-1])
}

func TestFlushEmptyStillCommits(t *testing.T) {
	rec := &groupRecorder{}
	c := confirm.New(rec)

	require.NoError(t, flushTriples(c, nil))

	require.Len(t, rec.groups, 1)
	assert.Equal(t, []Triple{commitTriple}, rec.groups[0])
}

func TestSerializeKnownFields(t *testing.T) {
	mode := true
	threshold := byte(0x42)
	r := &Registers{
		MaxExposure:       &mode,
		PointingThreshold: &threshold,
	}
	triples, err := r.Serialize()
	require.NoError(t, err)
	require.Len(t, triples, 2)
	assert.Equal(t, Triple{0x01, 0x32, 0x01}, triples[0])
	assert.Equal(t, Triple{0x01, 0x21, 0x42}, triples[1])
}

func TestSerializePointingThresholdZeroTriple(t *testing.T) {
	zero := byte(0)
	r := &Registers{PointingThreshold: &zero}
	triples, err := r.Serialize()
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, Triple{0x01, 0x21, 0x00}, triples[0])
}

// pageStore is a mock transport.Device that applies flushed triples to
// two 128-byte page buffers (register address as byte offset) and
// answers ReadPage requests out of whichever page was asked for, so
// the write/read round trip can be exercised without a real MCU.
type pageStore struct {
	pages [2][128]byte
	last  []byte
}

func (p *pageStore) Write(data []byte) error {
	p.last = append([]byte(nil), data...)
	if data[0] == 0x01 && data[10] == 0x21 && data[11] == 0x23 && data[12] == 0x04 {
		n := int(data[13])
		for i := 0; i < n; i++ {
			off := 14 + i*3
			page, reg, val := data[off], data[off+1], data[off+2]
			if int(page) < len(p.pages) {
				p.pages[page][reg] = val
			}
		}
	}
	return nil
}

func (p *pageStore) Read() ([]byte, error) {
	reply := make([]byte, 360)
	if p.last != nil && p.last[0] == 0x11 && p.last[10] == 0x03 && p.last[11] == 0x03 && p.last[12] == 0x01 {
		page := p.last[13]
		reply[0] = 0x31
		reply[49] = 0x1B
		reply[51] = page
		reply[52] = 0x00
		if int(page) < len(p.pages) {
			data := p.pages[page][:]
			reply[53] = byte(len(data))
			copy(reply[54:], data)
		}
	}
	return reply, nil
}

func (p *pageStore) Close() error { return nil }

func TestRegisterRoundTrip(t *testing.T) {
	// Exercises the testable property from spec.md §8: write(registers)
	// followed by read(...) through a mock MCU yields the same
	// Registers, modulo exposure quantization.
	store := &pageStore{}
	c := confirm.New(store)

	resolution := config.Res160
	exposureUs := 200
	maxExposure := true
	ledMask := byte(0x0F)
	gain := uint16(0x0AB)
	filter := true
	brightness := byte(0x55)
	leds12 := byte(0x22)
	leds34 := byte(0x33)
	flip := byte(0x01)
	denoise := true
	smoothing := byte(0x44)
	interpolation := byte(0x66)
	updateTime := byte(0x77)
	pointingThreshold := byte(0x12)

	want := &Registers{
		Resolution:             &resolution,
		ExposureMicroseconds:   &exposureUs,
		MaxExposure:            &maxExposure,
		LEDMask:                &ledMask,
		DigitalGain:            &gain,
		ExternalLightFilter:    &filter,
		BrightnessThreshold:    &brightness,
		Leds12Intensity:        &leds12,
		Leds34Intensity:        &leds34,
		Flip:                   &flip,
		Denoise:                &denoise,
		SmoothingThreshold:     &smoothing,
		InterpolationThreshold: &interpolation,
		UpdateTime:             &updateTime,
		PointingThreshold:      &pointingThreshold,
	}
	require.NoError(t, want.Flush(c))

	page0, err := ReadPage(c, 0x00)
	require.NoError(t, err)
	page1, err := ReadPage(c, 0x01)
	require.NoError(t, err)

	got := Decode(page0, page1)

	assert.Equal(t, want.Resolution, got.Resolution)
	assert.InDelta(t, *want.ExposureMicroseconds, *got.ExposureMicroseconds, 1)
	assert.Equal(t, want.MaxExposure, got.MaxExposure)
	assert.Equal(t, want.LEDMask, got.LEDMask)
	assert.Equal(t, want.DigitalGain, got.DigitalGain)
	assert.Equal(t, want.ExternalLightFilter, got.ExternalLightFilter)
	assert.Equal(t, want.BrightnessThreshold, got.BrightnessThreshold)
	assert.Equal(t, want.Leds12Intensity, got.Leds12Intensity)
	assert.Equal(t, want.Leds34Intensity, got.Leds34Intensity)
	assert.Equal(t, want.Flip, got.Flip)
	assert.Equal(t, want.Denoise, got.Denoise)
	assert.Equal(t, want.SmoothingThreshold, got.SmoothingThreshold)
	assert.Equal(t, want.InterpolationThreshold, got.InterpolationThreshold)
	assert.Equal(t, want.PointingThreshold, got.PointingThreshold)
}
