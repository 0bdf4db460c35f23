package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ircam/errs"
)

func TestResolutionByteEncoding(t *testing.T) {
	cases := map[Resolution]byte{
		Res320: 0x00,
		Res160: 0x50,
		Res80:  0x64,
		Res40:  0x69,
	}
	for res, want := range cases {
		got, err := ResolutionByte(res)
		require.NoError(t, err)
		assert.Equal(t, want, got, "resolution=%d", res)
	}
}

func TestFragmentCountSingleFragmentModes(t *testing.T) {
	for _, mode := range []IRMode{IRPointing, IRClustering} {
		n, err := FragmentCount(mode, Res320)
		require.NoError(t, err)
		assert.Equal(t, byte(1), n)
	}
}

func TestFragmentCountImageByResolution(t *testing.T) {
	cases := map[Resolution]byte{
		Res320: 0xFF,
		Res160: 0x3F,
		Res80:  0x0F,
		Res40:  0x03,
	}
	for res, want := range cases {
		n, err := FragmentCount(IRImage, res)
		require.NoError(t, err)
		assert.Equal(t, want, n, "resolution=%d", res)
	}
}

func TestValidateDeviceIDAcceptsKnownIDs(t *testing.T) {
	assert.NoError(t, ValidateDeviceID(VendorID, ProductIDRight))
	assert.NoError(t, ValidateDeviceID(VendorID, ProductIDLeft))
}

func TestValidateDeviceIDRejectsUnknownVendor(t *testing.T) {
	err := ValidateDeviceID(0xdead, ProductIDRight)
	var invalidErr *errs.InvalidArgumentError
	require.ErrorAs(t, err, &invalidErr)
}

func TestValidateDeviceIDRejectsUnknownProduct(t *testing.T) {
	err := ValidateDeviceID(VendorID, 0xbeef)
	var invalidErr *errs.InvalidArgumentError
	require.ErrorAs(t, err, &invalidErr)
}
