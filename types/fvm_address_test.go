package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFvmAddressIDRoundTrip(t *testing.T) {
	t.Parallel()

	addr := NewIDAddress(1001)
	assert.Equal(t, "f01001", addr.String())

	parsed, err := ParseFvmAddress("f01001")
	require.NoError(t, err)
	assert.True(t, addr.Equal(parsed))
	assert.Equal(t, uint64(1001), parsed.ID())
}

func TestFvmAddressSecp256k1RoundTrip(t *testing.T) {
	t.Parallel()

	payload := make([]byte, PayloadHashLength)
	for i := range payload {
		payload[i] = byte(i)
	}

	addr, err := NewSecp256k1Address(payload)
	require.NoError(t, err)

	parsed, err := ParseFvmAddress(addr.String())
	require.NoError(t, err)
	assert.True(t, addr.Equal(parsed))
	assert.Equal(t, payload, parsed.Payload())
}

func TestFvmAddressSecp256k1BadLength(t *testing.T) {
	t.Parallel()

	_, err := NewSecp256k1Address([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestFvmAddressDelegatedRoundTrip(t *testing.T) {
	t.Parallel()

	subAddr := StringToAddress("0x1a79385ead0e873fe0c441c034636d3edf7014cc")

	addr, err := NewDelegatedAddress(EthNamespace, subAddr.Bytes())
	require.NoError(t, err)

	parsed, err := ParseFvmAddress(addr.String())
	require.NoError(t, err)
	assert.True(t, addr.Equal(parsed))
	assert.Equal(t, EthNamespace, parsed.Namespace())
	assert.Equal(t, subAddr.Bytes(), parsed.SubAddress())
}

func TestFvmAddressFromEthString(t *testing.T) {
	t.Parallel()

	addr, err := ParseFvmAddress("0x1a79385ead0e873fe0c441c034636d3edf7014cc")
	require.NoError(t, err)

	assert.Equal(t, AddressDelegated, addr.Protocol())
	assert.Equal(t, EthNamespace, addr.Namespace())
	assert.Equal(t, StringToAddress("0x1a79385ead0e873fe0c441c034636d3edf7014cc").Bytes(), addr.SubAddress())
}

func TestFvmAddressChecksumMismatch(t *testing.T) {
	t.Parallel()

	payload := make([]byte, PayloadHashLength)

	addr, err := NewSecp256k1Address(payload)
	require.NoError(t, err)

	encoded := addr.String()
	// flip the last character of the checksum
	tampered := encoded[:len(encoded)-1]
	if encoded[len(encoded)-1] == 'a' {
		tampered += "b"
	} else {
		tampered += "a"
	}

	_, err = ParseFvmAddress(tampered)
	require.Error(t, err)
}

func TestSubnetIDRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []string{
		"/r31415926",
		"/r31415926/f0100",
		"/r123/f0100/f0101",
	}

	for _, c := range cases {
		c := c

		t.Run(c, func(t *testing.T) {
			t.Parallel()

			id, err := ParseSubnetID(c)
			require.NoError(t, err)
			assert.Equal(t, c, id.String())
		})
	}
}

func TestSubnetIDParent(t *testing.T) {
	t.Parallel()

	id, err := ParseSubnetID("/r123/f0100/f0101")
	require.NoError(t, err)

	parent, ok := id.Parent()
	require.True(t, ok)
	assert.Equal(t, "/r123/f0100", parent.String())

	actor, ok := id.Actor()
	require.True(t, ok)
	assert.Equal(t, "f0101", actor.String())

	root := NewRootSubnetID(123)
	_, ok = root.Parent()
	assert.False(t, ok)
	assert.True(t, root.IsRoot())
}
