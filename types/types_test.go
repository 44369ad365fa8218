package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesToHash(t *testing.T) {
	t.Parallel()

	full := append([]byte{0x01}, make([]byte, 31)...)

	cases := []struct {
		input    []byte
		expected string
	}{
		{
			full,
			"0x0100000000000000000000000000000000000000000000000000000000000000",
		},
		{
			// shorter values are left padded
			[]byte{0x01},
			"0x0000000000000000000000000000000000000000000000000000000000000001",
		},
		{
			nil,
			"0x0000000000000000000000000000000000000000000000000000000000000000",
		},
	}

	for _, c := range cases {
		c := c

		t.Run("", func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, c.expected, BytesToHash(c.input).String())
		})
	}
}

func TestEmptyHash(t *testing.T) {
	t.Parallel()

	assert.True(t, EmptyHash(ZeroHash))
	assert.True(t, EmptyHash(BytesToHash(nil)))
	assert.False(t, EmptyHash(BytesToHash([]byte{0x01})))
}

func TestIsValidAddress(t *testing.T) {
	t.Parallel()

	cases := []struct {
		address string
		isValid bool
	}{
		{address: "0x123", isValid: false},
		{address: "FooBar", isValid: false},
		{address: "123FooBar", isValid: false},
		{address: "0x1234567890987654321012345678909876543210", isValid: true},
		{address: "0x0000000000000000000000000000000000000000", isValid: true},
		{address: "0x1000000000000000000000000000000000000000", isValid: true},
	}

	for _, c := range cases {
		err := IsValidAddress(c.address)
		if c.isValid {
			require.NoError(t, err)
		} else {
			require.Error(t, err)
		}
	}
}
