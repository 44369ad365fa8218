package types

import (
	"fmt"
	"strings"

	"github.com/consensus-shipyard/go-ipc-relay/helper/hex"
)

var (
	ZeroAddress = Address{}
	ZeroHash    = Hash{}
)

const (
	HashLength    = 32
	AddressLength = 20
)

// Hash is a fixed 32-byte value, the EVM runtime's hash representation
type Hash [HashLength]byte

// Address is a 20-byte EVM runtime address
type Address [AddressLength]byte

func min(i, j int) int {
	if i < j {
		return i
	}

	return j
}

// BytesToHash copies b into a Hash, left padded with zero bytes
func BytesToHash(b []byte) Hash {
	var h Hash

	size := len(b)
	min := min(size, HashLength)

	copy(h[HashLength-min:], b[len(b)-min:])

	return h
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return hex.EncodeToHex(h[:])
}

// EmptyHash checks if a hash is all zeroes
func EmptyHash(hash Hash) bool {
	return hash == ZeroHash
}

func (a Address) String() string {
	return hex.EncodeToHex(a[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}

// BytesToAddress copies b into an Address, left padded with zero bytes
func BytesToAddress(b []byte) Address {
	var a Address

	size := len(b)
	min := min(size, AddressLength)

	copy(a[AddressLength-min:], b[len(b)-min:])

	return a
}

func StringToAddress(str string) Address {
	return BytesToAddress(stringToBytes(str))
}

// IsValidAddress checks if provided string is a valid EVM address
func IsValidAddress(address string) error {
	// remove 0x prefix if it exists
	address = strings.TrimPrefix(address, "0x")

	// decode the address
	decoded, err := hex.DecodeString(address)
	if err != nil {
		return fmt.Errorf("address %s contains invalid characters", address)
	}

	if len(decoded) != AddressLength {
		return fmt.Errorf("address %s has invalid length", address)
	}

	return nil
}

func stringToBytes(str string) []byte {
	str = strings.TrimPrefix(str, "0x")
	if len(str)%2 == 1 {
		str = "0" + str
	}

	b, _ := hex.DecodeString(str)

	return b
}

// UnmarshalText parses an address in hex syntax.
func (a *Address) UnmarshalText(input []byte) error {
	buf := stringToBytes(string(input))
	if len(buf) != AddressLength {
		return fmt.Errorf("incorrect length")
	}

	*a = BytesToAddress(buf)

	return nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
